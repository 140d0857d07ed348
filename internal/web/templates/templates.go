// Package templates renders the HTML fragments returned to HTMX clients.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/tabrecon/internal/core"
)

// PreviewRows caps the rows shown per table in a fragment.
const PreviewRows = 50

// ErrorAlert renders a dismissible error box with the support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<div class="alert alert-error" role="alert" data-code="%s">`, esc(code))
		ew.printf(`<p class="alert-message">%s</p>`, esc(message))
		if action != "" {
			ew.printf(`<p class="alert-action">%s</p>`, esc(action))
		}
		ew.printf(`<p class="alert-code">Code: %s</p></div>`, esc(code))
		return ew.err
	})
}

// DatasetCard summarizes a loaded dataset.
func DatasetCard(d core.DatasetSummary) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<div class="dataset" id="dataset-%s" data-id="%s">`, esc(d.ID), esc(d.ID))
		ew.printf(`<h3>%s <small>%s</small></h3>`, esc(d.FileName), esc(d.Sheet))
		ew.printf(`<p>%d rows, %d columns</p><ul class="columns">`, d.RowCount, len(d.Header))
		for i, h := range d.Header {
			kind := ""
			if i < len(d.Kinds) {
				kind = d.Kinds[i]
			}
			ew.printf(`<li data-index="%d" data-kind="%s">%s</li>`, i, esc(kind), esc(h))
		}
		ew.printf(`</ul></div>`)
		return ew.err
	})
}

// MergeSummary shows match counts and a preview of both merge parts.
func MergeSummary(result *core.MergeResult, run *core.MergeRun) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<section class="merge-result" data-run="%s">`, esc(run.ID))
		ew.printf(`<p class="merge-counts"><span class="matched">%d matched</span> <span class="unmatched">%d unmatched</span></p>`,
			len(result.Matched), len(result.Unmatched))
		if ew.err != nil {
			return ew.err
		}
		if err := Table("Matched", result.Header, result.Matched).Render(ctx, w); err != nil {
			return err
		}
		if err := Table("Unmatched", result.SourceHeader, result.Unmatched).Render(ctx, w); err != nil {
			return err
		}
		ew.printf(`</section>`)
		return ew.err
	})
}

// Table renders up to PreviewRows rows under a caption. Blank cells show
// the blank label.
func Table(caption string, header []string, rows [][]string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<table class="preview"><caption>%s</caption><thead><tr>`, esc(caption))
		for _, h := range header {
			ew.printf(`<th>%s</th>`, esc(h))
		}
		ew.printf(`</tr></thead><tbody>`)
		for i, row := range rows {
			if i == PreviewRows {
				ew.printf(`<tr class="more"><td colspan="%d">%s more rows</td></tr>`,
					max(len(header), 1), strconv.Itoa(len(rows)-PreviewRows))
				break
			}
			ew.printf(`<tr>`)
			for _, cell := range row {
				if cell == "" {
					ew.printf(`<td class="blank">%s</td>`, esc(core.BlankLabel))
					continue
				}
				ew.printf(`<td>%s</td>`, esc(cell))
			}
			ew.printf(`</tr>`)
		}
		ew.printf(`</tbody></table>`)
		return ew.err
	})
}

func esc(s string) string {
	return templ.EscapeString(s)
}

// errWriter keeps the first write error so fragments can be written without
// checking every call.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

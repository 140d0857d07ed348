package web

// handlers_common.go holds request parsing helpers shared by the handlers.

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tabrecon/internal/core"
	"github.com/JonMunkholm/tabrecon/internal/export"
)

const (
	defaultRecordLimit  = 100
	maxRecordLimit      = 10000
	defaultHistoryLimit = 50
)

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseOffset parses a non-negative offset query parameter.
func parseOffset(r *http.Request) int {
	i, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || i < 0 {
		return 0
	}
	return i
}

// parseFilters reads filter[col]=value query parameters. col is a header
// label or a column index; the value "(Blanks)" selects blank cells. Every
// repetition of a parameter adds an allowed value.
func parseFilters(r *http.Request, ds *core.Dataset) (core.ColumnFilters, error) {
	var filters core.ColumnFilters

	for key, values := range r.URL.Query() {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		ref := key[len("filter[") : len(key)-1]
		if ref == "" {
			continue
		}

		col, err := ds.ResolveColumn(ref)
		if err != nil {
			return nil, err
		}
		if filters == nil {
			filters = make(core.ColumnFilters)
		}
		for _, v := range values {
			if v == core.BlankLabel {
				v = ""
			}
			filters[col] = append(filters[col], v)
		}
	}

	return filters, nil
}

// columnRef is a column given either as a JSON number, which is always a
// 0-based index, or a string, which is a header label or an index.
type columnRef struct {
	value string
	index int
	// numeric is set for JSON numbers; they skip the label lookup.
	numeric bool
	set     bool
}

func (c *columnRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: column must be a number or a label", errBadRequest)
		}
		c.value, c.set = s, strings.TrimSpace(s) != ""
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: column must be a number or a label", errBadRequest)
	}
	idx, err := strconv.Atoi(n.String())
	if err != nil {
		return fmt.Errorf("%w: column index %s is not an integer", errBadRequest, n)
	}
	c.value, c.index, c.numeric, c.set = n.String(), idx, true, true
	return nil
}

// resolve turns the reference into an index within ds. An unset reference
// stays nil so request validation can name it.
func (c columnRef) resolve(ds *core.Dataset) (*int, error) {
	if !c.set {
		return nil, nil
	}
	if c.numeric {
		if err := ds.CheckColumn("column", c.index); err != nil {
			return nil, err
		}
		idx := c.index
		return &idx, nil
	}
	idx, err := ds.ResolveColumn(c.value)
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

// isJSONBody reports whether the request body is JSON rather than a form.
func isJSONBody(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "application/json"
}

// setDownloadHeaders marks the response as a file download.
func setDownloadHeaders(w http.ResponseWriter, f export.Format, fileName string) {
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	w.Header().Set("Cache-Control", "no-store")
}

// page slices rows for the records endpoint.
func page(rows [][]string, offset, limit int) [][]string {
	if offset >= len(rows) {
		return [][]string{}
	}
	end := min(offset+limit, len(rows))
	return rows[offset:end]
}

package web

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/tabrecon/internal/core"
	"github.com/JonMunkholm/tabrecon/internal/export"
	"github.com/JonMunkholm/tabrecon/internal/logging"
	"github.com/JonMunkholm/tabrecon/internal/render"
)

// handleExportDataset downloads a loaded dataset, narrowed by the same
// filter[...] parameters as the records endpoint.
func (s *Server) handleExportDataset(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ds, err := filteredDataset(r, entry.Dataset)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	base := r.URL.Query().Get("filename")
	if base == "" {
		base = strings.TrimSuffix(entry.FileName, filepath.Ext(entry.FileName))
	}
	s.sendDataset(w, r, ds, format, format.FileName(base))
}

// handleMergeExport reruns a merge and downloads one part of it. The query
// parameter part is matched or unmatched.
func (s *Server) handleMergeExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	result, _, err := s.runMerge(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	partName := r.URL.Query().Get("part")
	part, err := result.Part(partName)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if partName == "" {
		partName = "matched"
	}

	base := r.URL.Query().Get("filename")
	if base == "" {
		base = partName
	}
	s.sendDataset(w, r, part, format, format.FileName(base))
}

// sendDataset encodes ds fully before the headers go out so an encoding
// failure still produces an error response.
func (s *Server) sendDataset(w http.ResponseWriter, r *http.Request, ds *core.Dataset, format export.Format, fileName string) {
	var buf bytes.Buffer
	if err := export.Write(&buf, ds, format); err != nil {
		s.fail(w, r, err)
		return
	}

	setDownloadHeaders(w, format, fileName)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("export write interrupted", "file", fileName, "error", err)
	}
}

// handlePivotExport flattens the pivot table found in the submitted HTML
// into CSV. The markup is the raw body, or the form field "html" for form
// posts.
func (s *Server) handlePivotExport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	var markup io.Reader = r.Body
	if ct := r.Header.Get("Content-Type"); strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data") {
		markup = strings.NewReader(r.FormValue("html"))
	}

	table, err := render.ParseTable(markup)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	csvText, err := core.ExportPivotCSV(table, s.cfg.Upload.PivotMaxCells)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	base := r.URL.Query().Get("filename")
	if base == "" {
		base = "pivot"
	}
	setDownloadHeaders(w, export.FormatCSV, export.FormatCSV.FileName(base))
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, csvText); err != nil {
		logging.FromContext(r.Context()).Warn("pivot export write interrupted", "error", err)
	}
}

package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tabrecon/internal/core"
	"github.com/JonMunkholm/tabrecon/internal/logging"
	"github.com/JonMunkholm/tabrecon/internal/profile"
	"github.com/JonMunkholm/tabrecon/internal/web/templates"
	"github.com/JonMunkholm/tabrecon/internal/workbook"
)

var errNoFile = errors.New("no file provided")

// handleHealth reports liveness and load slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"datasets": len(s.service.Datasets()),
		"loads":    s.service.LoadStatus(),
	})
}

// handleLoadStatus returns the current state of the load limiter.
func (s *Server) handleLoadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.LoadStatus())
}

// handleUploadDataset loads one sheet of an uploaded .xlsx or .csv file.
// The optional form field "sheet" picks the sheet; the first sheet is used
// when it is empty or unknown.
func (s *Server) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(min(maxSize, 32<<20)); err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			s.fail(w, r, err)
			return
		}
		s.fail(w, r, errNoFile)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, errNoFile)
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	logger := logging.FromContext(ctx)
	logger.Info("upload received", "file", header.Filename, "size", header.Size)

	counter := core.NewCountingReader(file)
	src, err := workbook.Open(header.Filename, counter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer src.Close()

	entry, err := s.service.LoadWorkbook(ctx, header.Filename, src, r.FormValue("sheet"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	summary := entry.Summary()
	logger.Info("upload loaded", "dataset_id", summary.ID, "bytes_read", counter.Count(), "rows", summary.RowCount)
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		if err := templates.DatasetCard(summary).Render(r.Context(), w); err != nil {
			logger.Error("render dataset card", "error", err)
		}
		return
	}
	writeJSON(w, r, http.StatusCreated, summary)
}

// handleListDatasets lists every loaded dataset.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Datasets())
}

// dataset looks up the {id} URL parameter.
func (s *Server) dataset(r *http.Request) (*core.StoredDataset, error) {
	return s.service.Dataset(chi.URLParam(r, "id"))
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	entry, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.DatasetCard(entry.Summary()).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render dataset card", "error", err)
		}
		return
	}
	writeJSON(w, r, http.StatusOK, entry.Summary())
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDataset(chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBlankCounts returns the blank cell count of every column.
func (s *Server) handleBlankCounts(w http.ResponseWriter, r *http.Request) {
	entry, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entry.Dataset.BlankCounts())
}

// handleProfile returns blank, distinct and amount statistics per column.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	entry, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	profiles, err := profile.Dataset(entry.Dataset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profiles)
}

// DistinctResponse lists the values of one column for a filter picker.
// Labels repeat Values with the blank sentinel shown as "(Blanks)".
type DistinctResponse struct {
	Column string   `json:"column"`
	Index  int      `json:"index"`
	Values []string `json:"values"`
	Labels []string `json:"labels"`
}

func (s *Server) handleDistinctValues(w http.ResponseWriter, r *http.Request) {
	entry, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ds := entry.Dataset

	col, err := ds.ResolveColumn(chi.URLParam(r, "col"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	values, err := ds.DistinctValues(col)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	labels := make([]string, len(values))
	for i, v := range values {
		if v == "" {
			v = core.BlankLabel
		}
		labels[i] = v
	}
	writeJSON(w, r, http.StatusOK, DistinctResponse{
		Column: ds.Header[col],
		Index:  col,
		Values: values,
		Labels: labels,
	})
}

// RecordsResponse is one page of filtered rows.
type RecordsResponse struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
	Total  int        `json:"total"`
	Offset int        `json:"offset"`
	Limit  int        `json:"limit"`
}

// handleRecords pages through the rows that pass the filter[...] parameters.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	entry, err := s.dataset(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	filtered, err := filteredDataset(r, entry.Dataset)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	offset := parseOffset(r)
	limit := min(parseIntParam(r, "limit", defaultRecordLimit), maxRecordLimit)
	rows := page(filtered.Rows, offset, limit)

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Table(entry.FileName, filtered.Header, rows).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render records", "error", err)
		}
		return
	}
	writeJSON(w, r, http.StatusOK, RecordsResponse{
		Header: filtered.Header,
		Rows:   rows,
		Total:  len(filtered.Rows),
		Offset: offset,
		Limit:  limit,
	})
}

func filteredDataset(r *http.Request, ds *core.Dataset) (*core.Dataset, error) {
	filters, err := parseFilters(r, ds)
	if err != nil {
		return nil, err
	}
	return ds.Filter(filters)
}

package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/tabrecon/internal/core"
	"github.com/JonMunkholm/tabrecon/internal/logging"
	"github.com/JonMunkholm/tabrecon/internal/web/templates"
)

// mergeBody is the merge request as sent by clients. Columns may be given
// by index or by header label.
type mergeBody struct {
	FromID    string         `json:"fromId"`
	ToID      string         `json:"toId"`
	Mode      core.MergeMode `json:"mode"`
	FromKey   columnRef      `json:"fromKey"`
	ToKey     columnRef      `json:"toKey"`
	ReturnCol columnRef      `json:"returnCol"`
}

// MergeResponse carries the merge result and its history entry.
type MergeResponse struct {
	*core.MergeResult
	Run *core.MergeRun `json:"run"`
}

// decodeMergeBody reads a JSON body or, for HTMX forms, form fields of the
// same names.
func decodeMergeBody(r *http.Request) (mergeBody, error) {
	var body mergeBody
	if isJSONBody(r) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return body, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return body, nil
	}

	if err := r.ParseForm(); err != nil {
		return body, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	formRef := func(name string) columnRef {
		v := r.PostForm.Get(name)
		return columnRef{value: v, set: v != ""}
	}
	body.FromID = r.PostForm.Get("fromId")
	body.ToID = r.PostForm.Get("toId")
	body.Mode = core.MergeMode(r.PostForm.Get("mode"))
	body.FromKey = formRef("fromKey")
	body.ToKey = formRef("toKey")
	body.ReturnCol = formRef("returnCol")
	return body, nil
}

// runMerge resolves the body's column references and runs the merge.
func (s *Server) runMerge(r *http.Request) (*core.MergeResult, *core.MergeRun, error) {
	body, err := decodeMergeBody(r)
	if err != nil {
		return nil, nil, err
	}

	from, err := s.service.Dataset(body.FromID)
	if err != nil {
		return nil, nil, err
	}
	to, err := s.service.Dataset(body.ToID)
	if err != nil {
		return nil, nil, err
	}

	req := core.MergeRequest{Mode: body.Mode}
	if req.FromKey, err = body.FromKey.resolve(from.Dataset); err != nil {
		return nil, nil, err
	}
	if req.ToKey, err = body.ToKey.resolve(to.Dataset); err != nil {
		return nil, nil, err
	}
	if req.Mode == core.ModeXLookup {
		if req.ReturnCol, err = body.ReturnCol.resolve(to.Dataset); err != nil {
			return nil, nil, err
		}
	}

	return s.service.Merge(r.Context(), body.FromID, body.ToID, req)
}

// handleMerge runs a vlookup or xlookup between two loaded datasets.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	result, run, err := s.runMerge(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.MergeSummary(result, run).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render merge summary", "error", err)
		}
		return
	}
	writeJSON(w, r, http.StatusOK, MergeResponse{MergeResult: result, Run: run})
}

// handleHistory lists recent merge runs, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.History(r.Context(), parseIntParam(r, "limit", defaultHistoryLimit))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []core.MergeRun{}
	}
	writeJSON(w, r, http.StatusOK, runs)
}

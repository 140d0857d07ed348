package core

// validation.go checks merge requests and uploaded file names before any
// work is done.
//
// A merge request is validated as a whole: every missing field is reported at
// once so a form can highlight all of them, not just the first.

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Request field name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects every problem found in one request.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

// MergeRequest describes one lookup. Column fields are pointers because
// column 0 is valid and an unset field must be distinguishable from it.
type MergeRequest struct {
	Mode      MergeMode `json:"mode"`
	FromKey   *int      `json:"fromKey"`
	ToKey     *int      `json:"toKey"`
	ReturnCol *int      `json:"returnCol,omitempty"`
}

// Validate reports every missing field. A vlookup needs both keys; an
// xlookup also needs the return column.
func (r MergeRequest) Validate() error {
	var errs ValidationErrors

	switch r.Mode {
	case ModeVLookup, ModeXLookup:
	case "":
		errs = append(errs, ValidationError{Field: "mode", Message: "lookup type is required"})
	default:
		errs = append(errs, ValidationError{
			Field:   "mode",
			Value:   string(r.Mode),
			Message: "must be vlookup or xlookup",
		})
	}
	if r.FromKey == nil {
		errs = append(errs, ValidationError{Field: "fromKey", Message: "source key column is required"})
	}
	if r.ToKey == nil {
		errs = append(errs, ValidationError{Field: "toKey", Message: "lookup key column is required"})
	}
	if r.Mode == ModeXLookup && r.ReturnCol == nil {
		errs = append(errs, ValidationError{Field: "returnCol", Message: "return column is required for xlookup"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Merge validates req and runs the lookup it names.
func Merge(from, to *Dataset, req MergeRequest) (*MergeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Mode == ModeXLookup {
		return XLookupMerge(from, to, *req.FromKey, *req.ToKey, *req.ReturnCol)
	}
	return LookupMerge(from, to, *req.FromKey, *req.ToKey)
}

// CheckFileType accepts only .xlsx and .csv names, in any case.
func CheckFileType(name string) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".csv":
		return nil
	default:
		return fmt.Errorf("%w: %q (only .xlsx and .csv are accepted)", ErrUnsupportedFile, filepath.Base(name))
	}
}

// IntPtr is a convenience for building MergeRequests.
func IntPtr(i int) *int { return &i }

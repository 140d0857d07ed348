package core

// error_messages.go maps technical errors to user-friendly messages with codes
// for support reference. Users quote the code; support finds the technical
// error in the logs by request id.
//
// # Error Codes Reference
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid column: a key or return column is outside the header
//	         Matches: ErrInvalidColumn
//	VAL002 - Incomplete lookup: a required lookup field is missing
//	         Matches: ValidationErrors
//	VAL003 - Unknown merge part: only matched and unmatched exist
//	         Matches: ErrUnknownPart
//	VAL004 - Malformed request body
//	         Patterns: "invalid request body", "cannot unmarshal"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	          Patterns: "request body too large", "file too large"
//	FILE002 - Unsupported type: only .xlsx and .csv
//	          Matches: ErrUnsupportedFile
//	FILE003 - No headers in the selected sheet
//	          Matches: ErrNoHeaders
//	FILE004 - Workbook has no sheets
//	          Matches: ErrNoSheets
//	FILE005 - Unreadable workbook or CSV
//	          Patterns: "zip: not a valid zip file", "parse error", "open workbook"
//	FILE006 - No file in the upload
//	          Patterns: "no file provided", "no such file"
//
// # Dataset Errors (DS001-DS099)
//
//	DS001 - Dataset not found, usually expired after inactivity
//	        Matches: ErrDatasetNotFound
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - No pivot table in the submitted markup
//	         Matches: ErrNoRenderableTable
//	EXP002 - Pivot table spans overlap
//	         Matches: ErrSpanOverlap
//	EXP003 - Unknown export format
//	         Patterns: "unknown export format"
//	EXP004 - Pivot table spans cover too many positions
//	         Matches: ErrGridTooLarge
//
// # Load Errors (LOAD001-LOAD099)
//
//	LOAD001 - All load slots busy
//	          Matches: ErrTooManyLoads
//	LOAD002 - Load cancelled by the client
//	          Matches: context.Canceled
//	LOAD003 - Load timed out
//	          Matches: context.DeadlineExceeded
//
// # History Database Errors (DB001-DB099)
//
//	DB001 - Connection refused
//	DB002 - Connection reset
//	DB003 - Database timeout
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// Unmatched errors map to ERR000.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage contains user-friendly error information.
type UserMessage struct {
	Message string `json:"message"` // What went wrong
	Action  string `json:"action"`  // What the user can do
	Code    string `json:"code"`    // Reference code for support
}

type errorTarget struct {
	target error
	msg    UserMessage
}

// errorTargets are checked first with errors.Is, in order.
var errorTargets = []errorTarget{
	{ErrInvalidColumn, UserMessage{
		Message: "The selected column does not exist in this dataset",
		Action:  "Pick a key column from the dataset's header",
		Code:    "VAL001",
	}},
	{ErrUnknownPart, UserMessage{
		Message: "Unknown merge result part",
		Action:  "Export either the matched or the unmatched rows",
		Code:    "VAL003",
	}},
	{ErrUnsupportedFile, UserMessage{
		Message: "Unsupported file type",
		Action:  "Upload an .xlsx workbook or a .csv file",
		Code:    "FILE002",
	}},
	{ErrNoHeaders, UserMessage{
		Message: "The selected sheet has no header row",
		Action:  "Make sure the first row of the sheet holds column names",
		Code:    "FILE003",
	}},
	{ErrNoSheets, UserMessage{
		Message: "The workbook has no sheets",
		Action:  "Check that the file is a complete workbook",
		Code:    "FILE004",
	}},
	{ErrDatasetNotFound, UserMessage{
		Message: "Dataset not found",
		Action:  "It may have expired after inactivity. Load the file again",
		Code:    "DS001",
	}},
	{ErrNoRenderableTable, UserMessage{
		Message: "No pivot results found for export",
		Action:  "Build a pivot table before exporting",
		Code:    "EXP001",
	}},
	{ErrSpanOverlap, UserMessage{
		Message: "The pivot table layout is inconsistent",
		Action:  "Rebuild the pivot table and export again",
		Code:    "EXP002",
	}},
	{ErrGridTooLarge, UserMessage{
		Message: "The pivot table is too large to export",
		Action:  "Filter the pivot table down and export again",
		Code:    "EXP004",
	}},
	{ErrTooManyLoads, UserMessage{
		Message: "The server is busy loading other files",
		Action:  "Please try again in a few moments",
		Code:    "LOAD001",
	}},
	{context.Canceled, UserMessage{
		Message: "The operation was cancelled",
		Action:  "Start it again when ready",
		Code:    "LOAD002",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "The operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "LOAD003",
	}},
}

type errorPattern struct {
	pattern string // Lowercase substring to match
	msg     UserMessage
}

// errorPatterns catch errors from libraries that carry no sentinel.
// Patterns are checked in order; first match wins.
var errorPatterns = []errorPattern{
	{"invalid request body", UserMessage{
		Message: "The request could not be read",
		Action:  "Check the request format and try again",
		Code:    "VAL004",
	}},
	{"cannot unmarshal", UserMessage{
		Message: "The request could not be read",
		Action:  "Check the request format and try again",
		Code:    "VAL004",
	}},
	{"request body too large", UserMessage{
		Message: "File too large",
		Action:  "Split the file or remove unused sheets",
		Code:    "FILE001",
	}},
	{"file too large", UserMessage{
		Message: "File too large",
		Action:  "Split the file or remove unused sheets",
		Code:    "FILE001",
	}},
	{"not a valid zip file", UserMessage{
		Message: "The file could not be read as a workbook",
		Action:  "Re-save the file as .xlsx and try again",
		Code:    "FILE005",
	}},
	{"parse error", UserMessage{
		Message: "The CSV file could not be parsed",
		Action:  "Check for unbalanced quotes in the file",
		Code:    "FILE005",
	}},
	{"open workbook", UserMessage{
		Message: "The file could not be read as a workbook",
		Action:  "Re-save the file as .xlsx and try again",
		Code:    "FILE005",
	}},
	{"no file provided", UserMessage{
		Message: "No file was uploaded",
		Action:  "Choose a file before uploading",
		Code:    "FILE006",
	}},
	{"no such file", UserMessage{
		Message: "File not found",
		Action:  "Check the file path",
		Code:    "FILE006",
	}},
	{"unknown export format", UserMessage{
		Message: "That export format is not available",
		Action:  "Choose csv, json or parquet",
		Code:    "EXP003",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to the history database",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	}},
	{"connection reset", UserMessage{
		Message: "The history database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB002",
	}},
	{"timeout", UserMessage{
		Message: "The history database timed out",
		Action:  "Please try again later",
		Code:    "DB003",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check the logs for the technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Known sentinels are matched through the wrap chain first, then message
// patterns case-insensitively. Nil maps to the zero message.
//
// Example:
//
//	_, err := LookupMerge(from, to, 0, 9)
//	msg := MapError(err)
//	// msg.Code == "VAL001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return UserMessage{
			Message: "The lookup request is incomplete: " + verrs.fields(),
			Action:  "Choose a lookup type and fill in every column it needs",
			Code:    "VAL002",
		}
	}
	for _, et := range errorTargets {
		if errors.Is(err, et.target) {
			return et.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func (es ValidationErrors) fields() string {
	names := make([]string, len(es))
	for i, e := range es {
		names[i] = e.Field
	}
	return strings.Join(names, ", ")
}

// FormatUserError renders an error as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

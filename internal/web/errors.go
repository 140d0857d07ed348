package web

// errors.go turns handler errors into responses. The technical error is
// logged with the request id; the client gets the coded user message from
// core.MapError as JSON, an HTMX fragment or plain text.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/tabrecon/internal/core"
	"github.com/JonMunkholm/tabrecon/internal/export"
	"github.com/JonMunkholm/tabrecon/internal/web/templates"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var (
		verrs  core.ValidationErrors
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &verrs),
		errors.Is(err, core.ErrInvalidColumn),
		errors.Is(err, core.ErrUnknownPart),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrDatasetNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrNoHeaders),
		errors.Is(err, core.ErrNoRenderableTable),
		errors.Is(err, core.ErrNoSheets),
		errors.Is(err, core.ErrSpanOverlap),
		errors.Is(err, core.ErrGridTooLarge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyLoads):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch core.MapError(err).Code {
	case "VAL004", "FILE006":
		return http.StatusBadRequest
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "FILE005":
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// errBadRequest marks malformed requests that carry no sentinel of their
// own, such as undecodable JSON bodies.
var errBadRequest = errors.New("invalid request body")

// fail responds with the status statusFor chooses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, statusFor(err))
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logFn := slog.Warn
	if statusCode >= http.StatusInternalServerError {
		logFn = slog.Error
	}
	logFn("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, statusCode)
	case wantsJSON(r):
		respondErrorJSON(w, userMsg, statusCode)
	default:
		http.Error(w, userMsg.Message+" ("+userMsg.Code+")", statusCode)
	}
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		slog.Error("render error partial", "error", err)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json") ||
		strings.HasPrefix(r.URL.Path, "/api/")
}

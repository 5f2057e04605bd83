package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/pkg/logger"
	"github.com/go-chi/chi"
)

const maxJSONBody = 1 << 20

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// ErrorResponse is the JSON error envelope for domain failures.
type ErrorResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// UpstreamErrorResponse is the envelope adapters use when an upstream call fails.
type UpstreamErrorResponse struct {
	Error  string      `json:"error"`
	Result interface{} `json:"result"`
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes the {"status":"error","message":...} envelope
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	if status >= http.StatusInternalServerError {
		h.Logger.Error("http error", "status", status, "message", message)
	} else {
		h.Logger.Debug("http error", "status", status, "message", message)
	}
	h.WriteJSON(w, status, ErrorResponse{Status: "error", Message: message})
}

// HandleServiceError maps an error returned by a service onto the error
// envelope. AppErrors keep their status; anything else is a 500 with fallback.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error, fallback string) {
	if appErr, ok := internal.IsAppError(err); ok {
		if appErr.StatusCode >= http.StatusInternalServerError {
			h.Logger.Error("service error", "code", appErr.Code, "error", err)
		}
		status := appErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		h.WriteJSON(w, status, ErrorResponse{
			Status:  "error",
			Message: appErr.GetDetailedMessage(),
			Details: appErr.Details,
		})
		return
	}

	h.Logger.Error("unexpected service error", "error", err)
	h.WriteError(w, http.StatusInternalServerError, fallback)
}

// WriteUpstreamError answers a read endpoint whose upstream failed. The
// status stays 200 and result carries whatever cached view is available.
func (h *BaseHandler) WriteUpstreamError(w http.ResponseWriter, reason string, cached interface{}) {
	h.WriteJSON(w, http.StatusOK, UpstreamErrorResponse{Error: reason, Result: cached})
}

// DecodeJSON reads a bounded JSON body into dst.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return internal.NewValidationError("request body is required", internal.ErrCodeValidationFailed)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return internal.NewValidationError("request body is required", internal.ErrCodeValidationFailed)
		}
		return internal.NewValidationError(fmt.Sprintf("invalid request body: %v", err), internal.ErrCodeValidationFailed)
	}
	return nil
}

// PathInt64 parses a chi URL parameter.
func (h *BaseHandler) PathInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, internal.NewValidationError(fmt.Sprintf("invalid %s", name), internal.ErrCodeValidationFailed)
	}
	return id, nil
}

// QueryInt returns the integer query parameter or def when absent or malformed.
func (h *BaseHandler) QueryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

var queryTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02"}

// QueryTime parses an RFC 3339 or plain UTC timestamp query parameter,
// returning def when absent.
func (h *BaseHandler) QueryTime(r *http.Request, name string, def time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	for _, layout := range queryTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, internal.NewValidationFieldError(name, fmt.Sprintf("invalid %s", name), internal.ErrCodeInvalidDate)
}

// QueryBool accepts true/1/yes.
func (h *BaseHandler) QueryBool(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// RequirePrincipal returns the authenticated caller or writes a 401.
func (h *BaseHandler) RequirePrincipal(w http.ResponseWriter, r *http.Request) (*internal.Principal, bool) {
	p, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return p, true
}

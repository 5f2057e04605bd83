package logs

import (
	"net/http"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/rbac"
	"github.com/frahmantamala/opsboard/internal/transport"
)

const (
	defaultRangeMinutes = 5
	maxRangeMinutes     = 7 * 24 * 60
	defaultTimelineSpan = time.Hour
)

// PermissionGate answers whether the caller of a request holds a key.
type PermissionGate interface {
	Allowed(r *http.Request, key string) bool
	Forbidden(w http.ResponseWriter, r *http.Request)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Gate    PermissionGate
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, gate PermissionGate) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Gate:        gate,
	}
}

// GetLogs serves GET /logs?range=&force=&lang=
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	rangeMinutes := h.QueryInt(r, "range", defaultRangeMinutes)
	if rangeMinutes <= 0 || rangeMinutes > maxRangeMinutes {
		h.WriteError(w, http.StatusBadRequest, "invalid range")
		return
	}

	force := h.QueryBool(r, "force")
	if force && !h.Gate.Allowed(r, rbac.PermRefreshData) {
		h.Gate.Forbidden(w, r)
		return
	}

	locale := i18n.FromRequest(r, internal.LocaleFromContext(r.Context()))
	res := h.Service.Fetch(r.Context(), rangeMinutes, force, locale)
	if res.IsErr() {
		h.WriteJSON(w, http.StatusOK, map[string]string{"error": res.Reason})
		return
	}
	h.WriteJSON(w, http.StatusOK, res.Payload)
}

// GetTimeline serves GET /logs/timeline?start=&end=&interval=
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("interval")
	if name == "" {
		name = DefaultBucket
	}
	bucket, ok := ParseBucket(name)
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid interval")
		return
	}

	start, end, ok := h.timeRange(w, r, defaultTimelineSpan)
	if !ok {
		return
	}

	rows, err := h.Service.Timeline(r.Context(), start, end, bucket)
	if err != nil {
		h.HandleServiceError(w, err, "failed to build timeline")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"timeline": rows})
}

// GetMessages serves GET /logs/messages?start=&end=&limit=
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.timeRange(w, r, defaultTimelineSpan)
	if !ok {
		return
	}
	limit := h.QueryInt(r, "limit", DefaultMessageLimit)

	page, err := h.Service.Messages(r.Context(), start, end, limit)
	if err != nil {
		h.Logger.Error("GetMessages: failed to load log messages", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to load log messages")
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) timeRange(w http.ResponseWriter, r *http.Request, span time.Duration) (time.Time, time.Time, bool) {
	end, err := h.QueryTime(r, "end", time.Now().UTC())
	if err != nil {
		h.HandleServiceError(w, err, "invalid end")
		return time.Time{}, time.Time{}, false
	}
	start, err := h.QueryTime(r, "start", end.Add(-span))
	if err != nil {
		h.HandleServiceError(w, err, "invalid start")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

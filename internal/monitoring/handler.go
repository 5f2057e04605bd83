package monitoring

import (
	"net/http"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/result"
	"github.com/frahmantamala/opsboard/internal/transport"
	"github.com/go-chi/chi"
)

const defaultMetricsWindow = 24 * time.Hour

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// writeResult answers with {"result": payload}, or the upstream error shape
// carrying the degraded payload or an empty list.
func writeResult[T any](h *Handler, w http.ResponseWriter, res result.Result[[]T]) {
	switch {
	case res.IsOK():
		h.WriteJSON(w, http.StatusOK, map[string]interface{}{"result": res.Payload})
	case res.IsDegraded():
		h.WriteUpstreamError(w, res.Reason, res.Payload)
	default:
		h.WriteUpstreamError(w, res.Reason, []T{})
	}
}

// GetHosts serves GET /monitoring/hosts?view=
func (h *Handler) GetHosts(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	switch view {
	case ViewAll, ViewAvailable, ViewUnavailable, ViewUnknown:
	default:
		h.WriteError(w, http.StatusBadRequest, "invalid view")
		return
	}
	res := h.Service.Hosts(r.Context(), internal.LocaleFromContext(r.Context()), view)
	writeResult(h, w, res)
}

func (h *Handler) GetUnknownHosts(w http.ResponseWriter, r *http.Request) {
	writeResult(h, w, h.Service.UnknownHosts(r.Context()))
}

func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	writeResult(h, w, h.Service.Alerts(r.Context(), internal.LocaleFromContext(r.Context())))
}

// GetHostMetrics serves GET /monitoring/hosts/{host}/metrics?type=&start=&end=
// with bounds defaulting to the last 24 hours.
func (h *Handler) GetHostMetrics(w http.ResponseWriter, r *http.Request) {
	hostID := chi.URLParam(r, "host")
	metricType := r.URL.Query().Get("type")
	if metricType == "" {
		metricType = MetricCPU
	}

	end, err := h.QueryTime(r, "end", time.Now().UTC())
	if err != nil {
		h.HandleServiceError(w, err, "invalid end")
		return
	}
	start, err := h.QueryTime(r, "start", end.Add(-defaultMetricsWindow))
	if err != nil {
		h.HandleServiceError(w, err, "invalid start")
		return
	}

	points, err := h.Service.HistoricalMetrics(r.Context(), hostID, metricType, start, end)
	if err != nil {
		h.Logger.Error("GetHostMetrics: failed to load metrics", "host", hostID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to load metrics")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"result": points})
}

// GetHostHistory serves GET /monitoring/hosts/{host}/history?limit=
func (h *Handler) GetHostHistory(w http.ResponseWriter, r *http.Request) {
	hostName := chi.URLParam(r, "host")
	limit := h.QueryInt(r, "limit", defaultHistoryLimit)

	points, err := h.Service.StatusHistory(r.Context(), hostName, limit)
	if err != nil {
		h.Logger.Error("GetHostHistory: failed to load status history", "host", hostName, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to load status history")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"result": points})
}

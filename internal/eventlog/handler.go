package eventlog

import (
	"net/http"

	"github.com/frahmantamala/opsboard/internal/transport"
)

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

// ListEvents serves GET /system-events?source=&limit=
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	limit := h.QueryInt(r, "limit", defaultListLimit)

	events, err := h.Service.Recent(r.Context(), source, limit)
	if err != nil {
		h.Logger.Error("ListEvents: failed to list system events", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to list system events")
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

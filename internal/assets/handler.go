package assets

import (
	"net/http"

	"github.com/frahmantamala/opsboard/internal/transport"
	"github.com/go-chi/chi"
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

// GetAssets serves GET /assets with the categorized read model.
func (h *Handler) GetAssets(w http.ResponseWriter, r *http.Request) {
	model, err := h.Service.ReadModel(r.Context())
	if err != nil {
		h.Logger.Error("GetAssets: failed to build read model", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to load assets")
		return
	}
	h.WriteJSON(w, http.StatusOK, model)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.Refresh(r.Context())
	if err != nil {
		h.HandleServiceError(w, err, "failed to refresh assets")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "summary": summary})
}

func (h *Handler) RefreshCategory(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.RefreshCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		h.HandleServiceError(w, err, "failed to refresh assets")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "summary": summary})
}

// ListDevices serves GET /devices for task related-device pickers.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.Service.Devices(r.Context())
	if err != nil {
		h.Logger.Error("ListDevices: failed to list devices", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"devices": devices, "count": len(devices)})
}

func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleServiceError(w, err, "invalid id")
		return
	}
	device, err := h.Service.Device(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err, "failed to load device")
		return
	}
	h.WriteJSON(w, http.StatusOK, device)
}

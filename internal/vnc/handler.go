package vnc

import (
	"fmt"
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

type ConnectRequest struct {
	Hostname string `json:"hostname"`
}

// Connect handles POST /vnc/connect
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	p, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	var req ConnectRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, err, "invalid request body")
		return
	}

	if err := h.Service.Connect(r.Context(), p, req.Hostname); err != nil {
		h.HandleServiceError(w, err, "failed to start VNC viewer")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Connecting to %s", req.Hostname),
	})
}

package report

import (
	"fmt"
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

// ListReports handles GET /reports
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Service.Recent(r.Context(), h.QueryInt(r, "limit", DefaultRecentLimit))
	if err != nil {
		h.HandleServiceError(w, err, "failed to list reports")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

// GenerateReport handles POST /reports
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	p, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	var req GenerateRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, err, "invalid request body")
		return
	}

	rep, err := h.Service.Generate(r.Context(), p, &req)
	if err != nil {
		h.Logger.Error("GenerateReport: service error", "error", err, "type", req.Type)
		h.HandleServiceError(w, err, "failed to generate report")
		return
	}
	h.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success":      true,
		"report_id":    rep.ID,
		"filename":     rep.Name,
		"record_count": rep.RecordCount,
		"report":       rep,
	})
}

// DownloadReport handles GET /reports/{id}
func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	rep, f, err := h.Service.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err, "failed to open report")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.Logger.Error("DownloadReport: stat failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to open report")
		return
	}
	w.Header().Set("Content-Type", h.Service.ContentType(rep.Format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Name))
	http.ServeContent(w, r, rep.Name, info.ModTime(), f)
}

// DeleteReport handles DELETE /reports/{id}
func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, err, "failed to delete report")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

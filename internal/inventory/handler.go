package inventory

import (
	"errors"
	"io"
	"net/http"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/transport"
	"github.com/go-chi/chi"
)

const maxInvoiceBytes = 10 << 20

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

// ListDepartments handles GET /inventory/departments
func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.Service.Departments(r.Context(), internal.LocaleFromContext(r.Context()))
	if err != nil {
		h.Logger.Error("ListDepartments: service error", "error", err)
		h.HandleServiceError(w, err, "failed to list departments")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"departments": departments})
}

// GetDepartmentEquipment handles GET /inventory/departments/{name}/equipment
func (h *Handler) GetDepartmentEquipment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	out, err := h.Service.DepartmentEquipment(r.Context(), name, internal.LocaleFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, err, "failed to load department equipment")
		return
	}
	h.WriteJSON(w, http.StatusOK, out)
}

// GetPersonEquipment handles GET /inventory/people/{userID}/equipment
func (h *Handler) GetPersonEquipment(w http.ResponseWriter, r *http.Request) {
	userID, err := h.PathInt64(r, "userID")
	if err != nil {
		h.HandleServiceError(w, err, "invalid user id")
		return
	}
	out, err := h.Service.PersonEquipment(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, err, "failed to load person equipment")
		return
	}
	h.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) AddEquipment(w http.ResponseWriter, r *http.Request) {
	var req AddEquipmentRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, err, "invalid request body")
		return
	}

	e, err := h.Service.AddEquipment(r.Context(), &req)
	if err != nil {
		h.Logger.Error("AddEquipment: service error", "error", err)
		h.HandleServiceError(w, err, "failed to add equipment")
		return
	}
	h.WriteJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "item_id": e.ID, "equipment": e})
}

func (h *Handler) AssignEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleServiceError(w, err, "invalid equipment id")
		return
	}
	var req AssignRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, err, "invalid request body")
		return
	}

	e, err := h.Service.Assign(r.Context(), id, &req)
	if err != nil {
		h.Logger.Error("AssignEquipment: service error", "error", err, "equipment_id", id)
		h.HandleServiceError(w, err, "failed to assign equipment")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "equipment": e})
}

func (h *Handler) UnassignEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleServiceError(w, err, "invalid equipment id")
		return
	}

	e, err := h.Service.Unassign(r.Context(), id)
	if err != nil {
		h.Logger.Error("UnassignEquipment: service error", "error", err, "equipment_id", id)
		h.HandleServiceError(w, err, "failed to unassign equipment")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "equipment": e})
}

// ImportInvoice handles POST /inventory/invoices with a multipart "invoice"
// file and an optional "assign_to" department.
func (h *Handler) ImportInvoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxInvoiceBytes)
	if err := r.ParseMultipartForm(maxInvoiceBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.WriteError(w, http.StatusRequestEntityTooLarge, "invoice file is too large")
			return
		}
		h.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("invoice")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "no invoice file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.Logger.Error("ImportInvoice: failed to read upload", "error", err)
		h.WriteError(w, http.StatusBadRequest, "failed to read invoice")
		return
	}

	out, err := h.Service.ImportInvoice(r.Context(), data, r.FormValue("assign_to"))
	if err != nil {
		h.HandleServiceError(w, err, "failed to process invoice")
		return
	}
	h.WriteJSON(w, http.StatusCreated, out)
}

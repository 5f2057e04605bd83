package task

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/transport"
	"github.com/go-chi/chi"
)

// multipart framing allowance on top of the attachment itself
const formOverhead = 1 << 20

type Handler struct {
	*transport.BaseHandler
	Service   ServiceAPI
	maxUpload int64
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, maxUpload int64) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		maxUpload:   maxUpload,
	}
}

// ListTasks handles GET /tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	tasks, err := h.Service.List(r.Context(), p)
	if err != nil {
		h.Logger.Error("ListTasks: service error", "error", err)
		h.HandleServiceError(w, err, "failed to list tasks")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// GetTask handles GET /tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	p, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleServiceError(w, err, "invalid task id")
		return
	}

	detail, err := h.Service.Get(r.Context(), p, id)
	if err != nil {
		h.HandleServiceError(w, err, "failed to load task")
		return
	}
	h.WriteJSON(w, http.StatusOK, detail)
}

// CreateTask handles POST /tasks. It accepts a JSON body, or a multipart
// form whose optional "attachment" part is an image.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	p, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	var upload *Upload
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.WriteError(w, http.StatusRequestEntityTooLarge, i18n.T(internal.LocaleFromContext(r.Context()), "file_too_large"))
				return
			}
			h.WriteError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		req = CreateTaskRequest{
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Assignee:    r.FormValue("assignee"),
			Priority:    r.FormValue("priority"),
			DueDate:     r.FormValue("due_date"),
			RelatedType: r.FormValue("related_type"),
			RelatedID:   r.FormValue("related_id"),
		}
		if raw := r.FormValue("related_data"); raw != "" {
			req.RelatedData = json.RawMessage(raw)
		}

		file, header, err := r.FormFile("attachment")
		if err == nil {
			defer file.Close()
			upload = &Upload{Filename: header.Filename, Body: file}
		} else if !errors.Is(err, http.ErrMissingFile) {
			h.WriteError(w, http.StatusBadRequest, "invalid attachment")
			return
		}
	} else if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, err, "invalid request body")
		return
	}

	t, err := h.Service.Create(r.Context(), p, &req, upload)
	if err != nil {
		h.Logger.Error("CreateTask: service error", "error", err)
		h.HandleServiceError(w, err, "failed to create task")
		return
	}
	h.WriteJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "task_id": t.ID, "task": t})
}

// UpdateTask handles PUT /tasks/{id}
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	p, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleServiceError(w, err, "invalid task id")
		return
	}
	var req UpdateTaskRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, err, "invalid request body")
		return
	}

	t, err := h.Service.Update(r.Context(), p, id, &req)
	if err != nil {
		h.Logger.Error("UpdateTask: service error", "error", err, "task_id", id)
		h.HandleServiceError(w, err, "failed to update task")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "task": t})
}

// DeleteTask handles DELETE /tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	p, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleServiceError(w, err, "invalid task id")
		return
	}

	if err := h.Service.Delete(r.Context(), p, id); err != nil {
		h.Logger.Error("DeleteTask: service error", "error", err, "task_id", id)
		h.HandleServiceError(w, err, "failed to delete task")
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// AddComment handles POST /tasks/{id}/comments
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.RequirePrincipal(w, r)
	if !ok {
		return
	}
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleServiceError(w, err, "invalid task id")
		return
	}
	var req CommentRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, err, "invalid request body")
		return
	}

	c, err := h.Service.AddComment(r.Context(), p, id, req.Comment)
	if err != nil {
		h.HandleServiceError(w, err, "failed to add comment")
		return
	}
	h.WriteJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "comment": c})
}

// GetAttachment handles GET /tasks/attachments/{filename}
func (h *Handler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	f, err := h.Service.OpenAttachment(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		h.HandleServiceError(w, err, "failed to open attachment")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.Logger.Error("GetAttachment: stat failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to open attachment")
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

package task

import (
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/task/query"
	"github.com/ovaphlow/pitchfork/service-task-go/pkg/utilities"
)

// Handler exposes task endpoints; all of them require an authenticated caller.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, h.logger, apperr.ErrInvalidToken)
		return
	}
	var in entity.Input
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	t, err := h.svc.Create(r.Context(), caller.ID, in)
	if err != nil {
		h.logger.Debugw("create task failed", "owner_id", caller.ID, "err", err)
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, h.logger, apperr.ErrInvalidToken)
		return
	}
	f, p, err := parseListQuery(r.URL.Query())
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	ts, err := h.svc.List(r.Context(), caller.ID, f, p)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, ts)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, h.logger, apperr.ErrInvalidToken)
		return
	}
	id, err := pathID(r)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	t, err := h.svc.Get(r.Context(), id, caller.ID)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, h.logger, apperr.ErrInvalidToken)
		return
	}
	id, err := pathID(r)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	var patch entity.Patch
	if err := utilities.DecodeJSON(r, &patch); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	t, err := h.svc.Update(r.Context(), id, caller.ID, patch)
	if err != nil {
		h.logger.Debugw("update task failed", "task_id", id, "owner_id", caller.ID, "err", err)
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, h.logger, apperr.ErrInvalidToken)
		return
	}
	id, err := pathID(r)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id, caller.ID); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseListQuery reads status, priority, project_id, due_date, skip, limit,
// sort_by and sort_order. Empty parameters are ignored.
func parseListQuery(v url.Values) (query.Filter, query.Page, error) {
	var f query.Filter
	var p query.Page
	f.Status = v.Get("status")
	f.SortBy = v.Get("sort_by")
	f.SortOrder = v.Get("sort_order")
	if raw := v.Get("priority"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, p, apperr.Invalid("priority", "must be an integer")
		}
		f.Priority = &n
	}
	if raw := v.Get("project_id"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, p, apperr.Invalid("project_id", "must be an integer")
		}
		f.ProjectID = &n
	}
	if raw := v.Get("due_date"); raw != "" {
		d, err := entity.ParseDate(raw)
		if err != nil {
			return f, p, apperr.Invalid("due_date", "must be YYYY-MM-DD")
		}
		f.DueDate = &d
	}
	if raw := v.Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, p, apperr.Invalid("skip", "must be an integer")
		}
		p.Skip = n
	}
	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, p, apperr.Invalid("limit", "must be an integer")
		}
		p.Limit = n
	}
	return f, p, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("id", "must be a positive integer")
	}
	return id, nil
}

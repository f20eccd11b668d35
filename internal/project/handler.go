package project

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-go/pkg/utilities"
)

// Handler exposes project endpoints; all of them require an authenticated caller.
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
	var in Input
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	p, err := h.svc.Create(r.Context(), caller.ID, in)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, h.logger, apperr.ErrInvalidToken)
		return
	}
	ps, err := h.svc.List(r.Context(), caller.ID)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, ps)
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
	p, err := h.svc.Get(r.Context(), id, caller.ID)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, p)
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
	var in Input
	if err := utilities.DecodeJSON(r, &in); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	p, err := h.svc.Update(r.Context(), id, caller.ID, in)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, p)
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
	h.logger.Infow("project deleted", "project_id", id, "owner_id", caller.ID)
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("id", "must be a positive integer")
	}
	return id, nil
}

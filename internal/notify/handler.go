package notify

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/workhub/workhub/internal/apperr"
	"github.com/workhub/workhub/internal/middleware"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	items, err := h.repo.ListForUser(r.Context(), userID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if items == nil {
		items = []Notification{}
	}
	apperr.JSON(w, http.StatusOK, items)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		apperr.Write(w, apperr.InvalidInput("invalid notification id"))
		return
	}
	if err := h.repo.MarkRead(r.Context(), userID, id); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

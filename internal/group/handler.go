package group

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/workhub/workhub/internal/apperr"
	"github.com/workhub/workhub/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func urlID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, apperr.InvalidInput("invalid " + name)
	}
	return id, nil
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	var req struct {
		Name      string `json:"name"`
		MemberIDs []int  `json:"member_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.InvalidInput("invalid request body"))
		return
	}

	g, err := h.service.CreateGroup(r.Context(), userID, req.Name, req.MemberIDs)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusCreated, g)
}

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	groups, err := h.service.ListGroups(r.Context(), userID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, groups)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	members, err := h.service.ListMembers(r.Context(), id, userID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, members)
}

func (h *Handler) AddMembers(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	var req struct {
		MemberIDs []int `json:"member_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.InvalidInput("invalid request body"))
		return
	}
	if err := h.service.AddMembers(r.Context(), id, userID, req.MemberIDs); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	targetID, err := urlID(r, "userID")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if err := h.service.RemoveMember(r.Context(), id, userID, targetID); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) SetMemberRole(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	targetID, err := urlID(r, "userID")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.InvalidInput("invalid request body"))
		return
	}
	if err := h.service.SetMemberRole(r.Context(), id, userID, targetID, req.Role); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	var req struct {
		Content   string `json:"content"`
		ReplyToID *int   `json:"reply_to_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.InvalidInput("invalid request body"))
		return
	}

	m, err := h.service.SendMessage(r.Context(), id, userID, req.Content, req.ReplyToID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusCreated, m)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	msgs, err := h.service.ListMessages(r.Context(), id, userID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, msgs)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if err := h.service.MarkRead(r.Context(), id, userID); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) ListReadReceipts(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "messageID")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	receipts, err := h.service.ListReadReceipts(r.Context(), id, userID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, receipts)
}

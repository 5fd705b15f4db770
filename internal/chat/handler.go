package chat

import (
	"context"
	"encoding/json"
	"io"
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

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	list, err := h.service.ListConversations(r.Context(), userID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if list == nil {
		list = []ConversationSummary{}
	}
	apperr.JSON(w, http.StatusOK, list)
}

func (h *Handler) RequestConversation(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	var req struct {
		UserID int `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.InvalidInput("invalid request body"))
		return
	}

	c, created, err := h.service.RequestConversation(r.Context(), userID, req.UserID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	apperr.JSON(w, status, c)
}

func (h *Handler) AcceptConversation(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	c, err := h.service.AcceptConversation(r.Context(), id, userID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, c)
}

func (h *Handler) RejectConversation(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	c, err := h.service.RejectConversation(r.Context(), id, userID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, c)
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

func (h *Handler) SendAttachment(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}

	if err := r.ParseMultipartForm(MaxAttachmentSize); err != nil {
		apperr.Write(w, apperr.InvalidInput("invalid multipart body"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		apperr.Write(w, apperr.InvalidInput("file field is required"))
		return
	}
	defer file.Close()

	m, err := h.service.SendAttachment(r.Context(), id, userID, header.Filename, header.Size, file)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusCreated, m)
}

func (h *Handler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	rc, m, err := h.service.OpenAttachment(r.Context(), id, userID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Disposition", `attachment; filename="`+m.FileName+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, rc)
}

func (h *Handler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if err := h.service.MarkConversationRead(r.Context(), id, userID); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	h.markMessage(w, r, h.service.MarkDelivered)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.markMessage(w, r, h.service.MarkRead)
}

func (h *Handler) markMessage(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, messageID, actorID int) (*Message, error)) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	m, err := fn(r.Context(), id, userID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, m)
}

func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.InvalidInput("invalid request body"))
		return
	}

	m, err := h.service.EditMessage(r.Context(), id, userID, req.Content)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, m)
}

func (h *Handler) DeleteForMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if err := h.service.DeleteForMe(r.Context(), id, userID); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) DeleteForEveryone(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	m, err := h.service.DeleteForEveryone(r.Context(), id, userID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, m)
}

func (h *Handler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.InvalidInput("invalid request body"))
		return
	}

	re, added, err := h.service.ToggleReaction(r.Context(), id, userID, req.Emoji)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if added {
		apperr.JSON(w, http.StatusCreated, re)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (h *Handler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	msgID, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	reactionID, err := urlID(r, "reactionID")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if err := h.service.RemoveReaction(r.Context(), msgID, reactionID, userID); err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) ListReactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	id, err := urlID(r, "id")
	if err != nil {
		apperr.Write(w, err)
		return
	}
	res, err := h.service.ListReactions(r.Context(), id, userID)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	apperr.JSON(w, http.StatusOK, res)
}

package presence

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/workhub/workhub/internal/apperr"
	"github.com/workhub/workhub/internal/middleware"
)

// ConversationAccess and GroupAccess gate typing routes on membership;
// the chat and group services implement them.
type ConversationAccess interface {
	IsParticipant(ctx context.Context, conversationID, userID int) (bool, error)
}

type GroupAccess interface {
	IsMember(ctx context.Context, groupID, userID int) (bool, error)
}

type Handler struct {
	tracker       *Tracker
	conversations ConversationAccess
	groups        GroupAccess
}

func NewHandler(tracker *Tracker, conversations ConversationAccess, groups GroupAccess) *Handler {
	return &Handler{tracker: tracker, conversations: conversations, groups: groups}
}

func (h *Handler) scopeFor(r *http.Request, kind string) (string, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return "", apperr.InvalidInput("invalid id")
	}
	userID, _ := middleware.UserID(r)

	var ok bool
	switch kind {
	case "conversation":
		ok, err = h.conversations.IsParticipant(r.Context(), id, userID)
	case "group":
		ok, err = h.groups.IsMember(r.Context(), id, userID)
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.Forbidden("not a member of this channel")
	}
	if kind == "conversation" {
		return ConversationScope(id), nil
	}
	return GroupScope(id), nil
}

func (h *Handler) setTyping(w http.ResponseWriter, r *http.Request, kind string) {
	scope, err := h.scopeFor(r, kind)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	var req struct {
		Typing bool `json:"typing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.InvalidInput("invalid request body"))
		return
	}
	userID, _ := middleware.UserID(r)
	h.tracker.SetTyping(scope, userID, req.Typing)
	apperr.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) getTyping(w http.ResponseWriter, r *http.Request, kind string) {
	scope, err := h.scopeFor(r, kind)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	userID, _ := middleware.UserID(r)
	apperr.JSON(w, http.StatusOK, map[string][]int{"typing": h.tracker.Typing(scope, userID)})
}

func (h *Handler) SetConversationTyping(w http.ResponseWriter, r *http.Request) {
	h.setTyping(w, r, "conversation")
}

func (h *Handler) GetConversationTyping(w http.ResponseWriter, r *http.Request) {
	h.getTyping(w, r, "conversation")
}

func (h *Handler) SetGroupTyping(w http.ResponseWriter, r *http.Request) {
	h.setTyping(w, r, "group")
}

func (h *Handler) GetGroupTyping(w http.ResponseWriter, r *http.Request) {
	h.getTyping(w, r, "group")
}

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r)
	h.tracker.Heartbeat(userID)
	apperr.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetOnline reports online state for a comma separated ids query param.
func (h *Handler) GetOnline(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			apperr.Write(w, apperr.InvalidInput("invalid ids parameter"))
			return
		}
		ids = append(ids, id)
	}
	apperr.JSON(w, http.StatusOK, map[string]map[int]bool{"online": h.tracker.Online(ids)})
}

package user

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/workhub/workhub/internal/apperr"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.InvalidInput("invalid request body"))
		return
	}

	res, err := h.Service.Register(r.Context(), &req)
	if err != nil {
		apperr.Write(w, err)
		return
	}

	apperr.JSON(w, http.StatusCreated, res)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.InvalidInput("invalid request body"))
		return
	}

	res, err := h.Service.Login(r.Context(), &req)
	if err != nil {
		apperr.Write(w, apperr.Forbidden("invalid credentials"))
		return
	}

	apperr.JSON(w, http.StatusOK, res)
}

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	users, err := h.Service.SearchUsers(r.Context(), q)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if users == nil {
		users = []User{}
	}
	apperr.JSON(w, http.StatusOK, users)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		apperr.Write(w, apperr.InvalidInput("invalid user id"))
		return
	}
	u, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if u == nil {
		apperr.Write(w, apperr.NotFound("user not found"))
		return
	}
	apperr.JSON(w, http.StatusOK, u)
}

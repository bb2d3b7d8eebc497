package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hongminglow/loan-be/internal/http/respond"
	"github.com/hongminglow/loan-be/internal/middleware"
	"github.com/hongminglow/loan-be/internal/models/dto"
	"github.com/hongminglow/loan-be/internal/users"
)

// AdminHandler serves user management. The routes live under /loan for
// compatibility with the existing front end.
type AdminHandler struct {
	users  *users.Service
	logger *slog.Logger
}

func NewAdminHandler(users *users.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{users: users, logger: logger}
}

// Register attaches admin routes to the mux.
func (h *AdminHandler) Register(mux *http.ServeMux, guards Guards) {
	mux.Handle("/loan/getallusers", guards.privileged(h.handleSearch))
	mux.Handle("/loan/accesstousers", guards.privileged(h.handleSetRole))
}

func (h *AdminHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	found, err := h.users.Search(r.Context(), middleware.CapabilitiesFromContext(r.Context()), r.URL.Query().Get("query"))
	if err != nil {
		respond.Failure(w, r, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.Envelope{Message: "Users list", Data: found})
}

func (h *AdminHandler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req dto.RoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, message, err := h.users.SetRole(r.Context(), middleware.CapabilitiesFromContext(r.Context()), req.UserID, req.Role)
	if err != nil {
		respond.Failure(w, r, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.Envelope{Message: message, Data: updated})
}

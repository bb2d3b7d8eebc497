package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/hongminglow/loan-be/internal/apperr"
	"github.com/hongminglow/loan-be/internal/auth"
	"github.com/hongminglow/loan-be/internal/http/respond"
	"github.com/hongminglow/loan-be/internal/middleware"
	"github.com/hongminglow/loan-be/internal/models/dto"
	"github.com/hongminglow/loan-be/internal/uploads"
	"github.com/hongminglow/loan-be/internal/users"
)

// AuthHandler owns the /user endpoints: sign-up, sign-in and the caller's profile.
type AuthHandler struct {
	users   *users.Service
	tokens  *auth.TokenManager
	avatars *uploads.Store
	logger  *slog.Logger
}

// NewAuthHandler constructs the handler. avatars may be nil to ignore uploads.
func NewAuthHandler(users *users.Service, tokens *auth.TokenManager, avatars *uploads.Store, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, avatars: avatars, logger: logger}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux, guards Guards) {
	mux.Handle("/user/signup", guards.throttled("/user/signup", h.handleSignUp))
	mux.Handle("/user/signin", guards.throttled("/user/signin", h.handleSignIn))
	mux.Handle("/user/userdetails", guards.authenticated(h.handleUserDetails))
}

func (h *AuthHandler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	in, avatar, ok := h.readSignUp(w, r)
	if !ok {
		return
	}
	if avatar != nil {
		defer avatar.Close()
	}
	if err := users.ValidateSignUp(in); err != nil {
		respond.Failure(w, r, h.logger, err)
		return
	}

	if avatar != nil && h.avatars != nil {
		path, err := h.avatars.SaveImage(avatar)
		if err != nil {
			respond.Failure(w, r, h.logger, h.avatarError(err))
			return
		}
		in.ProfilePic = path
	}

	user, err := h.users.SignUp(r.Context(), in)
	if err != nil {
		h.discardAvatar(in.ProfilePic)
		respond.Failure(w, r, h.logger, err)
		return
	}
	token, err := h.tokens.Generate(user)
	if err != nil {
		respond.Failure(w, r, h.logger, fmt.Errorf("generate token: %w", err))
		return
	}
	respond.JSON(w, http.StatusCreated, respond.Envelope{
		Message: "User created successfully!",
		User:    user,
		Token:   token,
	})
}

// readSignUp accepts JSON or a multipart form with an optional "avatar" file.
func (h *AuthHandler) readSignUp(w http.ResponseWriter, r *http.Request) (users.SignUpInput, multipart.File, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req dto.SignUpRequest
		if !decodeJSON(w, r, &req) {
			return users.SignUpInput{}, nil, false
		}
		return users.SignUpInput{Email: req.Email, Password: req.Password, Name: req.Name}, nil, true
	}

	limit := int64(10 << 20)
	if h.avatars != nil {
		limit = h.avatars.MaxBytes()
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respond.Failure(w, r, h.logger, h.avatarError(uploads.ErrTooLarge))
		} else {
			respond.Error(w, http.StatusBadRequest, "invalid form payload")
		}
		return users.SignUpInput{}, nil, false
	}
	in := users.SignUpInput{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Name:     r.FormValue("name"),
	}
	file, _, err := r.FormFile("avatar")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return in, nil, true
		}
		respond.Error(w, http.StatusBadRequest, "invalid avatar upload")
		return users.SignUpInput{}, nil, false
	}
	return in, file, true
}

func (h *AuthHandler) avatarError(err error) error {
	switch {
	case errors.Is(err, uploads.ErrTooLarge):
		limit := int64(10 << 20)
		if h.avatars != nil {
			limit = h.avatars.MaxBytes()
		}
		return apperr.Validation(fmt.Sprintf("Avatar must be at most %d MB", (limit+1<<20-1)>>20))
	case errors.Is(err, uploads.ErrNotImage):
		return apperr.Validation("Avatar must be an image")
	default:
		return apperr.Internal(err)
	}
}

func (h *AuthHandler) discardAvatar(path string) {
	if path == "" || h.avatars == nil {
		return
	}
	if err := h.avatars.Remove(path); err != nil {
		h.logger.Warn("remove orphaned avatar failed", slog.String("path", path), slog.Any("error", err))
	}
}

func (h *AuthHandler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req dto.SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if apperr.Is(err, apperr.KindUnauthorized) {
			h.logger.Info("sign-in rejected", slog.String("email", strings.ToLower(strings.TrimSpace(req.Email))))
		}
		respond.Failure(w, r, h.logger, err)
		return
	}
	token, err := h.tokens.Generate(user)
	if err != nil {
		respond.Failure(w, r, h.logger, fmt.Errorf("generate token: %w", err))
		return
	}
	respond.JSON(w, http.StatusOK, respond.Envelope{
		Message: "Logged in successfully",
		User:    user,
		Token:   token,
	})
}

func (h *AuthHandler) handleUserDetails(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		respond.Failure(w, r, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.Envelope{
		Message: "User details retrieved successfully",
		User:    user,
	})
}

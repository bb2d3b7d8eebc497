// Package users owns accounts: sign-up, credential checks, role assignment
// and the admin bootstrap.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/loan-be/internal/apperr"
	"github.com/hongminglow/loan-be/internal/authz"
	"github.com/hongminglow/loan-be/internal/events"
	"github.com/hongminglow/loan-be/internal/logger"
	"github.com/hongminglow/loan-be/internal/models"
	"github.com/hongminglow/loan-be/internal/sanitize"
	"github.com/hongminglow/loan-be/internal/storage"
)

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

// SignUpInput is a new account request. ProfilePic is an already stored avatar path.
type SignUpInput struct {
	Email      string
	Password   string
	Name       string
	ProfilePic string
}

// Service manages user accounts.
type Service struct {
	users     storage.UserStore
	publisher events.Publisher
	logger    *slog.Logger
	hashCost  int
	now       func() time.Time
}

// NewService wires the account service. publisher and logger may be nil.
func NewService(users storage.UserStore, publisher events.Publisher, log *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		users:     users,
		publisher: publisher,
		logger:    log,
		hashCost:  bcrypt.DefaultCost,
		now:       time.Now,
	}
}

// ValidateSignUp reports the first missing field in the order email, password, name,
// then an oversized password or a name carrying markup.
// Handlers call it before storing an avatar.
func ValidateSignUp(in SignUpInput) error {
	switch {
	case normalizeEmail(in.Email) == "":
		return apperr.Validation("Please provide email")
	case in.Password == "":
		return apperr.Validation("Please provide password")
	case sanitize.Blank(in.Name):
		return apperr.Validation("Please provide name")
	case len(in.Password) > MaxPasswordBytes:
		return apperr.Validation("Password must be at most 72 bytes")
	case sanitize.ContainsMarkup(in.Name):
		return apperr.Validation("Name must not contain HTML markup")
	}
	return nil
}

// SignUp creates a USER account.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (models.User, error) {
	if err := ValidateSignUp(in); err != nil {
		return models.User{}, err
	}
	email := normalizeEmail(in.Email)

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return models.User{}, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}
	user, err := s.users.CreateUser(ctx, models.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        email,
		PasswordHash: string(hash),
		ProfilePic:   in.ProfilePic,
		Role:         models.RoleUser,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.User{}, apperr.Conflict("User already exists.")
		}
		return models.User{}, apperr.Internal(fmt.Errorf("create user: %w", err))
	}
	return user, nil
}

// Authenticate checks an email and password pair. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return models.User{}, apperr.Validation("Please provide email")
	}
	if password == "" {
		return models.User{}, apperr.Validation("Please provide password")
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperr.Unauthorized("Invalid credentials")
		}
		return models.User{}, apperr.Internal(fmt.Errorf("find user: %w", err))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, apperr.Unauthorized("Invalid credentials")
	}
	return user, nil
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id string) (models.User, error) {
	if id == "" {
		return models.User{}, apperr.Unauthorized("User ID is missing from request")
	}
	user, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperr.NotFound("User not found")
		}
		return models.User{}, apperr.Internal(fmt.Errorf("find user: %w", err))
	}
	return user, nil
}

// Search matches query against name, email and role. An empty query lists everyone.
func (s *Service) Search(ctx context.Context, caps authz.Capabilities, query string) ([]models.User, error) {
	if !caps.IsAdmin {
		return nil, apperr.Forbidden("Access denied")
	}
	users, err := s.users.SearchUsers(ctx, query)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("search users: %w", err))
	}
	return users, nil
}

// SetRole overwrites the target's role. There is no guard against an admin
// demoting itself or the last admin.
func (s *Service) SetRole(ctx context.Context, caps authz.Capabilities, userID, role string) (models.User, string, error) {
	if !caps.IsAdmin {
		return models.User{}, "", apperr.Forbidden("Access denied")
	}
	if userID == "" || strings.TrimSpace(role) == "" {
		return models.User{}, "", apperr.Validation("User ID and role are required")
	}
	newRole, ok := models.ParseRole(role)
	if !ok {
		return models.User{}, "", apperr.Validation("Invalid role provided")
	}

	user, err := s.users.UpdateUserRole(ctx, userID, newRole)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, "", apperr.NotFound("User not found")
		}
		return models.User{}, "", apperr.Internal(fmt.Errorf("update role: %w", err))
	}

	ev := events.RoleEvent{UserID: user.ID, ActorID: caps.UserID, Role: newRole, OccurredAt: s.now().UTC()}
	if err := s.publisher.PublishJSON(ctx, events.UserRoleChanged, ev); err != nil {
		s.logger.Warn("publish role event failed", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	s.logger.Info("user role changed",
		slog.String("user_id", user.ID),
		slog.String("actor_id", caps.UserID),
		slog.String("role", string(newRole)),
	)
	return user, fmt.Sprintf("User role updated to %s successfully", newRole), nil
}

// EnsureAdmin guarantees at least one ADMIN exists. When none does, the
// account with email is promoted, or created if missing.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) (models.User, bool, error) {
	count, err := s.users.CountUsersByRole(ctx, models.RoleAdmin)
	if err != nil {
		return models.User{}, false, fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return models.User{}, false, nil
	}

	existing, err := s.users.FindUserByEmail(ctx, normalizeEmail(email))
	switch {
	case err == nil:
		user, err := s.users.UpdateUserRole(ctx, existing.ID, models.RoleAdmin)
		if err != nil {
			return models.User{}, false, fmt.Errorf("promote admin: %w", err)
		}
		s.logger.Info("promoted bootstrap admin", slog.String("user_id", user.ID))
		return user, true, nil
	case !errors.Is(err, storage.ErrNotFound):
		return models.User{}, false, fmt.Errorf("find admin: %w", err)
	}

	user, err := s.SignUp(ctx, SignUpInput{Email: email, Password: password, Name: name})
	if err != nil {
		return models.User{}, false, fmt.Errorf("create admin: %w", err)
	}
	user, err = s.users.UpdateUserRole(ctx, user.ID, models.RoleAdmin)
	if err != nil {
		return models.User{}, false, fmt.Errorf("promote admin: %w", err)
	}
	s.logger.Info("created bootstrap admin", slog.String("user_id", user.ID))
	return user, true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

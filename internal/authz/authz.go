// Package authz turns an authenticated caller id into role capabilities.
package authz

import (
	"context"
	"errors"

	"github.com/hongminglow/loan-be/internal/apperr"
	"github.com/hongminglow/loan-be/internal/models"
	"github.com/hongminglow/loan-be/internal/storage"
)

// Capabilities are recomputed from the stored role on every request.
type Capabilities struct {
	UserID     string
	Role       models.Role
	IsAdmin    bool
	IsVerifier bool
}

// For derives capabilities from a user record.
func For(user models.User) Capabilities {
	return Capabilities{
		UserID:     user.ID,
		Role:       user.Role,
		IsAdmin:    user.Role == models.RoleAdmin,
		IsVerifier: user.Role == models.RoleVerifier,
	}
}

// Gate resolves capabilities against the identity store.
type Gate struct {
	users storage.UserStore
}

func NewGate(users storage.UserStore) *Gate {
	return &Gate{users: users}
}

// Resolve loads the caller and classifies its role.
func (g *Gate) Resolve(ctx context.Context, callerID string) (Capabilities, error) {
	if callerID == "" {
		return Capabilities{}, apperr.Unauthorized("User ID is missing from request")
	}
	user, err := g.users.FindUserByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Capabilities{}, apperr.NotFound("User not found")
		}
		return Capabilities{}, apperr.Internal(err)
	}
	return For(user), nil
}

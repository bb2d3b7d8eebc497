package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/loan-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore captures persistence operations on users.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByID(ctx context.Context, id string) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	// SearchUsers matches query case-insensitively as a substring of name, email or role.
	// An empty query returns every user.
	SearchUsers(ctx context.Context, query string) ([]models.User, error)
	UpdateUserRole(ctx context.Context, id string, role models.Role) (models.User, error)
	CountUsersByRole(ctx context.Context, role models.Role) (int, error)
}

// LoanStore captures persistence operations on loans. Updates are scoped to the
// fields each workflow step owns; there is no version check between writers.
type LoanStore interface {
	CreateLoan(ctx context.Context, loan models.Loan) (models.Loan, error)
	FindLoanByID(ctx context.Context, id string) (models.Loan, error)
	ApplyVerification(ctx context.Context, id string, v models.Verification) (models.Loan, error)
	ApplyDecision(ctx context.Context, id string, d models.Decision) (models.Loan, error)
	ListLoans(ctx context.Context) ([]models.Loan, error)
	// ListVerifiedUnapproved returns loans with isVerified=true and no approver.
	ListVerifiedUnapproved(ctx context.Context) ([]models.Loan, error)
	ListLoansByOwner(ctx context.Context, ownerID string) ([]models.OwnedLoan, error)
}

// Store is a complete backend.
type Store interface {
	UserStore
	LoanStore
	Close()
}

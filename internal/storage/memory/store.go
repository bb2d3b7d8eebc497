// Package memory is a process-local Store used by tests and `memory://` deployments.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hongminglow/loan-be/internal/models"
	"github.com/hongminglow/loan-be/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps users and loans in maps, preserving insertion order for listings.
type Store struct {
	mu        sync.RWMutex
	users     map[string]models.User
	userOrder []string
	loans     map[string]models.Loan
	loanOrder []string
	now       func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users: make(map[string]models.User),
		loans: make(map[string]models.Loan),
		now:   time.Now,
	}
}

// Close is a no-op.
func (s *Store) Close() {}

func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return models.User{}, storage.ErrAlreadyExists
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	now := s.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = user
	s.userOrder = append(s.userOrder, user.ID)
	return user, nil
}

func (s *Store) FindUserByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) SearchUsers(_ context.Context, query string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		user := s.users[id]
		if needle == "" ||
			strings.Contains(strings.ToLower(user.Name), needle) ||
			strings.Contains(strings.ToLower(user.Email), needle) ||
			strings.Contains(strings.ToLower(string(user.Role)), needle) {
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *Store) UpdateUserRole(_ context.Context, id string, role models.Role) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	user.Role = role
	user.UpdatedAt = s.now().UTC()
	s.users[id] = user
	return user, nil
}

func (s *Store) CountUsersByRole(_ context.Context, role models.Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, user := range s.users {
		if user.Role == role {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreateLoan(_ context.Context, loan models.Loan) (models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loans[loan.ID]; ok {
		return models.Loan{}, storage.ErrAlreadyExists
	}
	if _, ok := s.users[loan.UserID]; !ok {
		return models.Loan{}, storage.ErrNotFound
	}
	now := s.now().UTC()
	loan.CreatedAt, loan.UpdatedAt = now, now
	s.loans[loan.ID] = loan
	s.loanOrder = append(s.loanOrder, loan.ID)
	return cloneLoan(loan), nil
}

func (s *Store) FindLoanByID(_ context.Context, id string) (models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loan, ok := s.loans[id]
	if !ok {
		return models.Loan{}, storage.ErrNotFound
	}
	return cloneLoan(loan), nil
}

func (s *Store) ApplyVerification(_ context.Context, id string, v models.Verification) (models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loan, ok := s.loans[id]
	if !ok {
		return models.Loan{}, storage.ErrNotFound
	}
	verifier := v.VerifierID
	loan.IsVerified = v.Verified
	loan.VerifierID = &verifier
	loan.UpdatedAt = s.now().UTC()
	s.loans[id] = loan
	return cloneLoan(loan), nil
}

func (s *Store) ApplyDecision(_ context.Context, id string, d models.Decision) (models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loan, ok := s.loans[id]
	if !ok {
		return models.Loan{}, storage.ErrNotFound
	}
	approver := d.ApproverID
	loan.Status = d.Status
	loan.ApproverID = &approver
	if d.Remarks != nil {
		loan.Remarks = *d.Remarks
	}
	loan.UpdatedAt = s.now().UTC()
	s.loans[id] = loan
	return cloneLoan(loan), nil
}

func (s *Store) ListLoans(_ context.Context) ([]models.Loan, error) {
	return s.filterLoans(func(models.Loan) bool { return true }), nil
}

func (s *Store) ListVerifiedUnapproved(_ context.Context) ([]models.Loan, error) {
	return s.filterLoans(func(l models.Loan) bool { return l.IsVerified && l.ApproverID == nil }), nil
}

func (s *Store) ListLoansByOwner(_ context.Context, ownerID string) ([]models.OwnedLoan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.OwnedLoan, 0)
	owner, ok := s.users[ownerID]
	if !ok {
		return out, nil
	}
	for _, id := range s.loanOrder {
		loan := s.loans[id]
		if loan.UserID != ownerID {
			continue
		}
		out = append(out, models.OwnedLoan{
			Loan:  cloneLoan(loan),
			Owner: models.LoanOwner{ID: owner.ID, Name: owner.Name, ProfilePic: owner.ProfilePic},
		})
	}
	return out, nil
}

func (s *Store) filterLoans(keep func(models.Loan) bool) []models.Loan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Loan, 0)
	for _, id := range s.loanOrder {
		if loan := s.loans[id]; keep(loan) {
			out = append(out, cloneLoan(loan))
		}
	}
	return out
}

// cloneLoan detaches the pointer fields so callers cannot mutate stored state.
func cloneLoan(loan models.Loan) models.Loan {
	if loan.VerifierID != nil {
		v := *loan.VerifierID
		loan.VerifierID = &v
	}
	if loan.ApproverID != nil {
		a := *loan.ApproverID
		loan.ApproverID = &a
	}
	return loan
}

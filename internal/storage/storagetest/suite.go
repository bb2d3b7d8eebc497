// Package storagetest holds the behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/loan-be/internal/models"
	"github.com/hongminglow/loan-be/internal/storage"
)

// Run exercises a fresh store returned by open for each subtest.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()
	t.Run("users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("search", func(t *testing.T) { testSearch(t, open(t)) })
	t.Run("loan lifecycle", func(t *testing.T) { testLoanLifecycle(t, open(t)) })
	t.Run("loan listings", func(t *testing.T) { testLoanListings(t, open(t)) })
}

// NewUser builds a user with a unique id and email.
func NewUser(name string, role models.Role) models.User {
	id := uuid.NewString()
	return models.User{
		ID:           id,
		Name:         name,
		Email:        name + "-" + id[:8] + "@example.com",
		PasswordHash: "hash",
		Role:         role,
	}
}

// NewLoan builds a pending loan owned by ownerID.
func NewLoan(ownerID string) models.Loan {
	return models.Loan{
		ID:               uuid.NewString(),
		UserID:           ownerID,
		FullName:         "Jane Doe",
		Amount:           5000,
		LoanTenure:       12,
		EmploymentStatus: "Employed",
		Reason:           "home repair",
		StreetAddress:    "1 Main",
		CityStateZip:     "Springfield, IL 62704",
		Status:           models.LoanPending,
	}
}

func testUsers(t *testing.T, store storage.Store) {
	ctx := context.Background()
	user := NewUser("alice", models.RoleUser)
	created, err := store.CreateUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, user.ID, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	dup := NewUser("other", models.RoleUser)
	dup.Email = user.Email
	_, err = store.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	byEmail, err := store.FindUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	_, err = store.FindUserByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	updated, err := store.UpdateUserRole(ctx, user.ID, models.RoleVerifier)
	require.NoError(t, err)
	assert.Equal(t, models.RoleVerifier, updated.Role)

	_, err = store.UpdateUserRole(ctx, uuid.NewString(), models.RoleAdmin)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	count, err := store.CountUsersByRole(ctx, models.RoleVerifier)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = store.CountUsersByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func testSearch(t *testing.T, store storage.Store) {
	ctx := context.Background()
	alice, err := store.CreateUser(ctx, NewUser("alice", models.RoleUser))
	require.NoError(t, err)
	bob, err := store.CreateUser(ctx, NewUser("bob", models.RoleVerifier))
	require.NoError(t, err)

	all, err := store.SearchUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byName, err := store.SearchUsers(ctx, "ALI")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, alice.ID, byName[0].ID)

	byRole, err := store.SearchUsers(ctx, "verif")
	require.NoError(t, err)
	require.Len(t, byRole, 1)
	assert.Equal(t, bob.ID, byRole[0].ID)

	byEmail, err := store.SearchUsers(ctx, "@example.com")
	require.NoError(t, err)
	assert.Len(t, byEmail, 2)

	none, err := store.SearchUsers(ctx, "100%_")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testLoanLifecycle(t *testing.T, store storage.Store) {
	ctx := context.Background()
	owner, err := store.CreateUser(ctx, NewUser("owner", models.RoleUser))
	require.NoError(t, err)
	verifier, err := store.CreateUser(ctx, NewUser("verifier", models.RoleVerifier))
	require.NoError(t, err)
	admin, err := store.CreateUser(ctx, NewUser("admin", models.RoleAdmin))
	require.NoError(t, err)

	loan, err := store.CreateLoan(ctx, NewLoan(owner.ID))
	require.NoError(t, err)
	assert.Equal(t, models.LoanPending, loan.Status)
	assert.False(t, loan.IsVerified)
	assert.Nil(t, loan.VerifierID)
	assert.Nil(t, loan.ApproverID)
	assert.Equal(t, "", loan.Remarks)

	found, err := store.FindLoanByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, found.Amount)
	assert.Equal(t, 12, found.LoanTenure)
	assert.Equal(t, "Springfield, IL 62704", found.CityStateZip)

	verified, err := store.ApplyVerification(ctx, loan.ID, models.Verification{VerifierID: verifier.ID, Verified: true})
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	require.NotNil(t, verified.VerifierID)
	assert.Equal(t, verifier.ID, *verified.VerifierID)
	assert.Equal(t, models.LoanPending, verified.Status)

	remarks := "insufficient income proof"
	rejected, err := store.ApplyDecision(ctx, loan.ID, models.Decision{ApproverID: admin.ID, Status: models.LoanRejected, Remarks: &remarks})
	require.NoError(t, err)
	assert.Equal(t, models.LoanRejected, rejected.Status)
	require.NotNil(t, rejected.ApproverID)
	assert.Equal(t, admin.ID, *rejected.ApproverID)
	assert.Equal(t, remarks, rejected.Remarks)
	assert.True(t, rejected.IsVerified, "decision must not touch verification fields")

	approved, err := store.ApplyDecision(ctx, loan.ID, models.Decision{ApproverID: admin.ID, Status: models.LoanApproved})
	require.NoError(t, err)
	assert.Equal(t, models.LoanApproved, approved.Status)
	assert.Equal(t, remarks, approved.Remarks, "nil remarks leaves the stored value alone")

	_, err = store.FindLoanByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.ApplyVerification(ctx, uuid.NewString(), models.Verification{VerifierID: verifier.ID})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.ApplyDecision(ctx, uuid.NewString(), models.Decision{ApproverID: admin.ID, Status: models.LoanApproved})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testLoanListings(t *testing.T, store storage.Store) {
	ctx := context.Background()
	owner, err := store.CreateUser(ctx, NewUser("owner", models.RoleUser))
	require.NoError(t, err)
	other, err := store.CreateUser(ctx, NewUser("other", models.RoleUser))
	require.NoError(t, err)
	verifier, err := store.CreateUser(ctx, NewUser("verifier", models.RoleVerifier))
	require.NoError(t, err)
	admin, err := store.CreateUser(ctx, NewUser("admin", models.RoleAdmin))
	require.NoError(t, err)

	untouched, err := store.CreateLoan(ctx, NewLoan(owner.ID))
	require.NoError(t, err)
	verifiedOnly, err := store.CreateLoan(ctx, NewLoan(owner.ID))
	require.NoError(t, err)
	decided, err := store.CreateLoan(ctx, NewLoan(other.ID))
	require.NoError(t, err)

	_, err = store.ApplyVerification(ctx, verifiedOnly.ID, models.Verification{VerifierID: verifier.ID, Verified: true})
	require.NoError(t, err)
	_, err = store.ApplyVerification(ctx, decided.ID, models.Verification{VerifierID: verifier.ID, Verified: true})
	require.NoError(t, err)
	_, err = store.ApplyDecision(ctx, decided.ID, models.Decision{ApproverID: admin.ID, Status: models.LoanApproved})
	require.NoError(t, err)

	all, err := store.ListLoans(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	queue, err := store.ListVerifiedUnapproved(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, verifiedOnly.ID, queue[0].ID)

	mine, err := store.ListLoansByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	ids := []string{mine[0].ID, mine[1].ID}
	assert.ElementsMatch(t, []string{untouched.ID, verifiedOnly.ID}, ids)
	for _, loan := range mine {
		assert.Equal(t, owner.ID, loan.Owner.ID)
		assert.Equal(t, owner.Name, loan.Owner.Name)
	}

	empty, err := store.ListLoansByOwner(ctx, admin.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

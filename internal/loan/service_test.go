package loan

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/loan-be/internal/apperr"
	"github.com/hongminglow/loan-be/internal/authz"
	"github.com/hongminglow/loan-be/internal/events"
	"github.com/hongminglow/loan-be/internal/models"
	"github.com/hongminglow/loan-be/internal/storage/memory"
	"github.com/hongminglow/loan-be/internal/storage/storagetest"
)

type fixture struct {
	store     *memory.Store
	events    *events.Recorder
	stages    *stageRecorder
	svc       *Service
	borrower  models.User
	verifier  authz.Capabilities
	admin     authz.Capabilities
	plainUser authz.Capabilities
}

type stageRecorder struct{ stages []models.Stage }

func (r *stageRecorder) RecordRequest(string, int, time.Duration) {}
func (r *stageRecorder) RecordRateLimitHit(string)                {}
func (r *stageRecorder) RecordTransition(stage models.Stage) {
	r.stages = append(r.stages, stage)
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:  memory.New(),
		events: &events.Recorder{},
		stages: &stageRecorder{},
	}
	opts.Publisher = f.events
	opts.Metrics = f.stages
	f.svc = NewService(f.store, opts)

	mustUser := func(name string, role models.Role) models.User {
		u, err := f.store.CreateUser(ctx, storagetest.NewUser(name, role))
		require.NoError(t, err)
		return u
	}
	f.borrower = mustUser("borrower", models.RoleUser)
	f.plainUser = authz.For(f.borrower)
	f.verifier = authz.For(mustUser("verifier", models.RoleVerifier))
	f.admin = authz.For(mustUser("admin", models.RoleAdmin))
	return f
}

func validInput() CreateInput {
	return CreateInput{
		FullName:         "Jane Doe",
		Amount:           5000,
		LoanTenure:       12,
		EmploymentStatus: "Employed",
		Reason:           "home repair",
		StreetAddress:    "1 Main",
		CityStateZip:     "Springfield, IL 62704",
	}
}

func (f *fixture) create(t *testing.T) models.Loan {
	t.Helper()
	loan, err := f.svc.Create(context.Background(), f.borrower.ID, validInput())
	require.NoError(t, err)
	return loan
}

func requireKind(t *testing.T, err error, kind apperr.Kind, message string) {
	t.Helper()
	require.Error(t, err)
	appErr := apperr.From(err)
	assert.Equal(t, kind, appErr.Kind)
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
}

func TestCreatePendingLoan(t *testing.T) {
	f := newFixture(t, Options{})
	loan := f.create(t)

	assert.NotEmpty(t, loan.ID)
	assert.Equal(t, f.borrower.ID, loan.UserID)
	assert.Equal(t, models.LoanPending, loan.Status)
	assert.False(t, loan.IsVerified)
	assert.Nil(t, loan.VerifierID)
	assert.Nil(t, loan.ApproverID)
	assert.Equal(t, float64(5000), loan.Amount)
	assert.Equal(t, 12, loan.LoanTenure)
	assert.Equal(t, "Springfield, IL 62704", loan.CityStateZip)

	assert.Equal(t, []string{events.LoanCreated}, f.events.Keys())
	assert.Equal(t, []models.Stage{models.StagePendingVerification}, f.stages.stages)
}

func TestCreateValidationOrder(t *testing.T) {
	f := newFixture(t, Options{})

	cases := []struct {
		name    string
		mutate  func(*CreateInput)
		message string
	}{
		{"fullName", func(in *CreateInput) { in.FullName = "" }, "Full name is required"},
		{"amount", func(in *CreateInput) { in.Amount = 0 }, "Loan amount is required"},
		{"negative amount", func(in *CreateInput) { in.Amount = -1 }, "Loan amount must be positive"},
		{"loanTenure", func(in *CreateInput) { in.LoanTenure = 0 }, "Loan tenure is required"},
		{"negative tenure", func(in *CreateInput) { in.LoanTenure = -3 }, "Loan tenure must be positive"},
		{"fractional tenure", func(in *CreateInput) { in.LoanTenure = 12.5 }, "Loan tenure must be a whole number of months"},
		{"employmentStatus", func(in *CreateInput) { in.EmploymentStatus = "  " }, "Employment status is required"},
		{"reason", func(in *CreateInput) { in.Reason = "" }, "Reason for loan is required"},
		{"streetAddress", func(in *CreateInput) { in.StreetAddress = "" }, "Complete address is required"},
		{"cityStateZip", func(in *CreateInput) { in.CityStateZip = "" }, "Complete address is required"},
		{"tenure overflow", func(in *CreateInput) { in.LoanTenure = 1e19 }, "Loan tenure must be at most 1200 months"},
		{"tenure over cap", func(in *CreateInput) { in.LoanTenure = MaxTenureMonths + 1 }, "Loan tenure must be at most 1200 months"},
		{"markup fullName", func(in *CreateInput) { in.FullName = "<script></script>" }, "Full name must not contain HTML markup"},
		{"markup reason", func(in *CreateInput) { in.Reason = "debt<income ratio too high" }, "Reason for loan must not contain HTML markup"},
		{"markup street", func(in *CreateInput) { in.StreetAddress = "see <attached> docs" }, "Street address must not contain HTML markup"},
		{"markup city", func(in *CreateInput) { in.CityStateZip = "<b>Springfield</b>" }, "City, state and zip must not contain HTML markup"},
		{"missing before markup", func(in *CreateInput) { in.FullName, in.Reason = "<b>x</b>", "" }, "Reason for loan is required"},
		{"first missing wins", func(in *CreateInput) { in.Reason, in.FullName = "", "" }, "Full name is required"},
		{"amount before tenure", func(in *CreateInput) { in.LoanTenure, in.Amount = 0, 0 }, "Loan amount is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := f.svc.Create(context.Background(), f.borrower.ID, in)
			requireKind(t, err, apperr.KindValidation, tc.message)
		})
	}

	loans, err := f.store.ListLoans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loans)
	assert.Empty(t, f.events.Keys())
}

func TestCreateRequiresOwner(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.svc.Create(context.Background(), "", validInput())
	requireKind(t, err, apperr.KindUnauthorized, "User ID is required")

	_, err = f.svc.Create(context.Background(), "ghost", validInput())
	requireKind(t, err, apperr.KindNotFound, "User not found")
}

func TestCreateStoresTextVerbatim(t *testing.T) {
	f := newFixture(t, Options{})
	in := validInput()
	in.FullName = "  O'Brien & Sons  "
	in.Reason = "income < expenses this quarter"
	in.LoanTenure = MaxTenureMonths

	loan, err := f.svc.Create(context.Background(), f.borrower.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "  O'Brien & Sons  ", loan.FullName)
	assert.Equal(t, "income < expenses this quarter", loan.Reason)
	assert.Equal(t, MaxTenureMonths, loan.LoanTenure)

	stored, err := f.store.FindLoanByID(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.FullName, stored.FullName)
	assert.Equal(t, loan.Reason, stored.Reason)
}

func TestVerifyApprove(t *testing.T) {
	f := newFixture(t, Options{})
	loan := f.create(t)

	out, err := f.svc.Verify(context.Background(), f.verifier, loan.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "Loan verification approved", out.Message)
	assert.True(t, out.Loan.IsVerified)
	require.NotNil(t, out.Loan.VerifierID)
	assert.Equal(t, f.verifier.UserID, *out.Loan.VerifierID)
	assert.Equal(t, models.LoanPending, out.Loan.Status)
	assert.Equal(t, models.StageVerified, out.Loan.Stage())

	assert.Equal(t, []string{events.LoanCreated, events.LoanVerified}, f.events.Keys())
}

func TestVerifyRejectStillRecordsVerifier(t *testing.T) {
	f := newFixture(t, Options{})
	loan := f.create(t)

	out, err := f.svc.Verify(context.Background(), f.verifier, loan.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Loan verification rejected", out.Message)
	assert.False(t, out.Loan.IsVerified)
	require.NotNil(t, out.Loan.VerifierID)
	assert.Equal(t, f.verifier.UserID, *out.Loan.VerifierID)
	assert.Equal(t, models.LoanPending, out.Loan.Status)
	assert.Empty(t, out.Loan.Remarks)
	assert.Equal(t, models.StageVerificationRejected, out.Loan.Stage())
	assert.Equal(t, events.LoanVerificationRejected, f.events.Keys()[1])
}

func TestVerifyByNonVerifierLeavesLoanUnchanged(t *testing.T) {
	f := newFixture(t, Options{})
	loan := f.create(t)

	for _, caps := range []authz.Capabilities{f.plainUser, f.admin, {}} {
		_, err := f.svc.Verify(context.Background(), caps, loan.ID, true)
		requireKind(t, err, apperr.KindForbidden, "Access denied. Only verifiers can verify loans.")
	}

	stored, err := f.store.FindLoanByID(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loan, stored)
}

func TestVerifyErrors(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.svc.Verify(context.Background(), f.verifier, "", true)
	requireKind(t, err, apperr.KindValidation, "Loan ID is required")

	_, err = f.svc.Verify(context.Background(), f.verifier, "missing", true)
	requireKind(t, err, apperr.KindNotFound, "Loan not found")
}

func TestApproveWithoutVerification(t *testing.T) {
	f := newFixture(t, Options{})
	loan := f.create(t)

	for i := 0; i < 2; i++ {
		out, err := f.svc.Approve(context.Background(), f.admin, loan.ID, true, "ignored")
		require.NoError(t, err)
		assert.Equal(t, "Loan approved for Jane Doe", out.Message)
		assert.Equal(t, models.LoanApproved, out.Loan.Status)
		require.NotNil(t, out.Loan.ApproverID)
		assert.Equal(t, f.admin.UserID, *out.Loan.ApproverID)
		assert.False(t, out.Loan.IsVerified)
		assert.Empty(t, out.Loan.Remarks)
	}
	assert.Equal(t, []string{events.LoanCreated, events.LoanApproved, events.LoanApproved}, f.events.Keys())
}

func TestApproveReject(t *testing.T) {
	f := newFixture(t, Options{})
	loan := f.create(t)

	out, err := f.svc.Approve(context.Background(), f.admin, loan.ID, false, "insufficient income proof")
	require.NoError(t, err)
	assert.Equal(t, "Loan rejected for Jane Doe", out.Message)
	assert.Equal(t, models.LoanRejected, out.Loan.Status)
	assert.Equal(t, f.admin.UserID, *out.Loan.ApproverID)
	assert.Equal(t, "insufficient income proof", out.Loan.Remarks)
	assert.Equal(t, models.StageRejected, out.Loan.Stage())

	var payload events.LoanEvent
	msgs := f.events.Messages()
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Body, &payload))
	assert.Equal(t, events.LoanRejected, msgs[len(msgs)-1].Key)
	assert.Equal(t, "insufficient income proof", payload.Remarks)
	assert.Equal(t, f.admin.UserID, payload.ActorID)
}

func TestApproveRejectWithoutRemarks(t *testing.T) {
	f := newFixture(t, Options{})
	loan := f.create(t)
	_, err := f.svc.Approve(context.Background(), f.admin, loan.ID, false, "first")
	require.NoError(t, err)

	out, err := f.svc.Approve(context.Background(), f.admin, loan.ID, false, "")
	require.NoError(t, err)
	assert.Equal(t, models.LoanRejected, out.Loan.Status)
	assert.Equal(t, "", out.Loan.Remarks)
}

func TestApproveRejectKeepsRemarksExactly(t *testing.T) {
	for _, remarks := range []string{
		"debt<income ratio too high",
		"see <attached> docs",
		"  padded  ",
	} {
		t.Run(remarks, func(t *testing.T) {
			f := newFixture(t, Options{})
			loan := f.create(t)

			out, err := f.svc.Approve(context.Background(), f.admin, loan.ID, false, remarks)
			require.NoError(t, err)
			assert.Equal(t, remarks, out.Loan.Remarks)

			stored, err := f.store.FindLoanByID(context.Background(), loan.ID)
			require.NoError(t, err)
			assert.Equal(t, remarks, stored.Remarks)
		})
	}
}

func TestApproveErrors(t *testing.T) {
	f := newFixture(t, Options{})
	loan := f.create(t)

	for _, caps := range []authz.Capabilities{f.plainUser, f.verifier} {
		_, err := f.svc.Approve(context.Background(), caps, loan.ID, true, "")
		requireKind(t, err, apperr.KindForbidden, "Access denied. Only admins can approve loans.")
	}
	_, err := f.svc.Approve(context.Background(), f.admin, "", true, "")
	requireKind(t, err, apperr.KindValidation, "Loan ID is required")
	_, err = f.svc.Approve(context.Background(), f.admin, "missing", true, "")
	requireKind(t, err, apperr.KindNotFound, "Loan not found")

	stored, err := f.store.FindLoanByID(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanPending, stored.Status)
	assert.Nil(t, stored.ApproverID)
}

func TestWorkflowScenario(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	loan := f.create(t)
	assert.Equal(t, models.LoanPending, loan.Status)
	assert.False(t, loan.IsVerified)

	verified, err := f.svc.Verify(ctx, f.verifier, loan.ID, true)
	require.NoError(t, err)
	assert.True(t, verified.Loan.IsVerified)
	assert.Equal(t, f.verifier.UserID, *verified.Loan.VerifierID)
	assert.Equal(t, models.LoanPending, verified.Loan.Status)

	queue, err := f.svc.ListVerifiedUnapproved(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, loan.ID, queue[0].ID)

	rejected, err := f.svc.Approve(ctx, f.admin, loan.ID, false, "insufficient income proof")
	require.NoError(t, err)
	assert.Equal(t, models.LoanRejected, rejected.Loan.Status)
	assert.Equal(t, f.admin.UserID, *rejected.Loan.ApproverID)
	assert.Equal(t, "insufficient income proof", rejected.Loan.Remarks)
	assert.True(t, rejected.Loan.IsVerified)

	queue, err = f.svc.ListVerifiedUnapproved(ctx, f.admin)
	require.NoError(t, err)
	assert.Empty(t, queue)

	assert.Equal(t, []models.Stage{
		models.StagePendingVerification,
		models.StageVerified,
		models.StageRejected,
	}, f.stages.stages)
}

func TestListVerifiedUnapprovedRequiresAdmin(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.svc.ListVerifiedUnapproved(context.Background(), f.verifier)
	requireKind(t, err, apperr.KindForbidden, "Access denied")
}

func TestListOwn(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	first := f.create(t)
	second := f.create(t)

	other, err := f.store.CreateUser(ctx, storagetest.NewUser("other", models.RoleUser))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, other.ID, validInput())
	require.NoError(t, err)

	own, err := f.svc.ListOwn(ctx, f.borrower.ID)
	require.NoError(t, err)
	require.Len(t, own, 2)
	ids := []string{own[0].ID, own[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
	assert.Equal(t, f.borrower.Name, own[0].Owner.Name)
	assert.Equal(t, f.borrower.ID, own[0].Owner.ID)

	_, err = f.svc.ListOwn(ctx, "")
	requireKind(t, err, apperr.KindForbidden, "Access denied")
}

func TestListAllRequiresBothCapabilities(t *testing.T) {
	f := newFixture(t, Options{})
	f.create(t)
	ctx := context.Background()

	for _, caps := range []authz.Capabilities{f.plainUser, f.verifier, f.admin} {
		_, err := f.svc.ListAll(ctx, caps)
		requireKind(t, err, apperr.KindForbidden, "Access denied")
	}

	both := f.admin
	both.IsVerifier = true
	loans, err := f.svc.ListAll(ctx, both)
	require.NoError(t, err)
	assert.Len(t, loans, 1)
}

func TestListAllAnyStaff(t *testing.T) {
	f := newFixture(t, Options{ListAnyStaff: true})
	f.create(t)
	ctx := context.Background()

	for _, caps := range []authz.Capabilities{f.verifier, f.admin} {
		loans, err := f.svc.ListAll(ctx, caps)
		require.NoError(t, err)
		assert.Len(t, loans, 1)
	}
	_, err := f.svc.ListAll(ctx, f.plainUser)
	requireKind(t, err, apperr.KindForbidden, "Access denied")
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t, Options{})
	f.events.Err = errors.New("broker down")

	loan := f.create(t)
	out, err := f.svc.Verify(context.Background(), f.verifier, loan.ID, true)
	require.NoError(t, err)
	assert.True(t, out.Loan.IsVerified)
	assert.Empty(t, f.events.Keys())
}

// Package loan implements the loan workflow: application, verification and
// final approval, plus the listings each role reads.
package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hongminglow/loan-be/internal/apperr"
	"github.com/hongminglow/loan-be/internal/authz"
	"github.com/hongminglow/loan-be/internal/events"
	"github.com/hongminglow/loan-be/internal/logger"
	"github.com/hongminglow/loan-be/internal/metrics"
	"github.com/hongminglow/loan-be/internal/models"
	"github.com/hongminglow/loan-be/internal/storage"
)

// CreateInput is an application as submitted by the borrower.
type CreateInput struct {
	FullName         string
	Amount           float64
	LoanTenure       float64
	EmploymentStatus string
	Reason           string
	StreetAddress    string
	CityStateZip     string
}

// Outcome is a transitioned loan and the message shown to the actor.
type Outcome struct {
	Loan    models.Loan
	Message string
}

// Options configures a Service. Zero values are replaced by no-op collaborators.
type Options struct {
	Publisher events.Publisher
	Metrics   metrics.Recorder
	Logger    *slog.Logger
	// ListAnyStaff relaxes ListAll from admin AND verifier to admin OR verifier.
	ListAnyStaff bool
}

// Service enforces who may move a loan between workflow stages.
type Service struct {
	loans        storage.LoanStore
	publisher    events.Publisher
	metrics      metrics.Recorder
	logger       *slog.Logger
	listAnyStaff bool
	now          func() time.Time
}

func NewService(loans storage.LoanStore, opts Options) *Service {
	s := &Service{
		loans:        loans,
		publisher:    opts.Publisher,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		listAnyStaff: opts.ListAnyStaff,
		now:          time.Now,
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.logger == nil {
		s.logger = logger.Discard()
	}
	return s
}

// Create files a new application for ownerID in PendingVerification.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (models.Loan, error) {
	if ownerID == "" {
		return models.Loan{}, apperr.Unauthorized("User ID is required")
	}
	if err := validate(in); err != nil {
		return models.Loan{}, err
	}

	loan, err := s.loans.CreateLoan(ctx, models.Loan{
		ID:               uuid.NewString(),
		UserID:           ownerID,
		FullName:         in.FullName,
		Amount:           in.Amount,
		LoanTenure:       int(in.LoanTenure),
		EmploymentStatus: in.EmploymentStatus,
		Reason:           in.Reason,
		StreetAddress:    in.StreetAddress,
		CityStateZip:     in.CityStateZip,
		IsVerified:       false,
		Status:           models.LoanPending,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Loan{}, apperr.NotFound("User not found")
		}
		return models.Loan{}, apperr.Internal(fmt.Errorf("create loan: %w", err))
	}
	s.transitioned(ctx, events.LoanCreated, loan, ownerID)
	return loan, nil
}

// CanVerify rejects callers without the verifier capability. Handlers call it
// before reading the request body.
func CanVerify(caps authz.Capabilities) error {
	if !caps.IsVerifier {
		return apperr.Forbidden("Access denied. Only verifiers can verify loans.")
	}
	return nil
}

// CanDecide rejects callers without the admin capability.
func CanDecide(caps authz.Capabilities) error {
	if !caps.IsAdmin {
		return apperr.Forbidden("Access denied. Only admins can approve loans.")
	}
	return nil
}

// Verify records a verifier's judgement. Status is left untouched and the
// verifier is recorded whether the loan passes or not.
func (s *Service) Verify(ctx context.Context, caps authz.Capabilities, loanID string, approve bool) (Outcome, error) {
	if err := CanVerify(caps); err != nil {
		return Outcome{}, err
	}
	if loanID == "" {
		return Outcome{}, apperr.Validation("Loan ID is required")
	}
	loan, err := s.loans.ApplyVerification(ctx, loanID, models.Verification{
		VerifierID: caps.UserID,
		Verified:   approve,
	})
	if err != nil {
		return Outcome{}, loanError(err, "verify loan")
	}

	key, verb := events.LoanVerificationRejected, "rejected"
	if approve {
		key, verb = events.LoanVerified, "approved"
	}
	s.transitioned(ctx, key, loan, caps.UserID)
	return Outcome{Loan: loan, Message: "Loan verification " + verb}, nil
}

// Approve records the final decision. Verification is not a precondition.
// Rejection stores remarks as given, including the empty string.
func (s *Service) Approve(ctx context.Context, caps authz.Capabilities, loanID string, approve bool, remarks string) (Outcome, error) {
	if err := CanDecide(caps); err != nil {
		return Outcome{}, err
	}
	if loanID == "" {
		return Outcome{}, apperr.Validation("Loan ID is required")
	}

	decision := models.Decision{ApproverID: caps.UserID, Status: models.LoanApproved}
	key, verb := events.LoanApproved, "approved"
	if !approve {
		decision.Status = models.LoanRejected
		decision.Remarks = &remarks
		key, verb = events.LoanRejected, "rejected"
	}
	loan, err := s.loans.ApplyDecision(ctx, loanID, decision)
	if err != nil {
		return Outcome{}, loanError(err, "decide loan")
	}
	s.transitioned(ctx, key, loan, caps.UserID)
	return Outcome{Loan: loan, Message: fmt.Sprintf("Loan %s for %s", verb, loan.FullName)}, nil
}

// ListVerifiedUnapproved returns verified loans no admin has decided yet.
func (s *Service) ListVerifiedUnapproved(ctx context.Context, caps authz.Capabilities) ([]models.Loan, error) {
	if !caps.IsAdmin {
		return nil, apperr.Forbidden("Access denied")
	}
	loans, err := s.loans.ListVerifiedUnapproved(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list verified loans: %w", err))
	}
	return loans, nil
}

// ListOwn returns the caller's loans with the owner joined in.
func (s *Service) ListOwn(ctx context.Context, ownerID string) ([]models.OwnedLoan, error) {
	if ownerID == "" {
		return nil, apperr.Forbidden("Access denied")
	}
	loans, err := s.loans.ListLoansByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list own loans: %w", err))
	}
	return loans, nil
}

// ListAll returns every loan. The caller must hold both the admin and the
// verifier capability, which no single role grants, unless ListAnyStaff is set.
func (s *Service) ListAll(ctx context.Context, caps authz.Capabilities) ([]models.Loan, error) {
	if !s.canListAll(caps) {
		return nil, apperr.Forbidden("Access denied")
	}
	loans, err := s.loans.ListLoans(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list loans: %w", err))
	}
	return loans, nil
}

func (s *Service) canListAll(caps authz.Capabilities) bool {
	if s.listAnyStaff {
		return caps.IsAdmin || caps.IsVerifier
	}
	return caps.IsAdmin && caps.IsVerifier
}

// transitioned reports a successful write. Publish failures are logged and
// never undo the transition.
func (s *Service) transitioned(ctx context.Context, key string, loan models.Loan, actorID string) {
	stage := loan.Stage()
	s.metrics.RecordTransition(stage)
	s.logger.Info("loan transition",
		slog.String("event", key),
		slog.String("loan_id", loan.ID),
		slog.String("actor_id", actorID),
		slog.String("stage", string(stage)),
	)
	if err := s.publisher.PublishJSON(ctx, key, events.NewLoanEvent(loan, actorID, s.now())); err != nil {
		s.logger.Warn("publish loan event failed",
			slog.String("event", key),
			slog.String("loan_id", loan.ID),
			slog.Any("error", err),
		)
	}
}

func loanError(err error, op string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("Loan not found")
	}
	return apperr.Internal(fmt.Errorf("%s: %w", op, err))
}

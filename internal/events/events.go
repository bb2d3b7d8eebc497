// Package events fans loan workflow transitions out to a message broker.
package events

import (
	"context"
	"time"

	"github.com/hongminglow/loan-be/internal/models"
)

// Routing keys published on the topic exchange.
const (
	LoanCreated              = "loan.created"
	LoanVerified             = "loan.verified"
	LoanVerificationRejected = "loan.verification_rejected"
	LoanApproved             = "loan.approved"
	LoanRejected             = "loan.rejected"
	UserRoleChanged          = "user.role_changed"
)

// Publisher sends a JSON-encodable payload under a routing key.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
	Close() error
}

// LoanEvent is the payload for every loan.* key.
type LoanEvent struct {
	LoanID     string            `json:"loanId"`
	OwnerID    string            `json:"userId"`
	ActorID    string            `json:"actorId"`
	Stage      models.Stage      `json:"stage"`
	Status     models.LoanStatus `json:"status"`
	IsVerified bool              `json:"isVerified"`
	Remarks    string            `json:"remarks,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewLoanEvent snapshots a loan after a transition made by actorID.
func NewLoanEvent(loan models.Loan, actorID string, at time.Time) LoanEvent {
	return LoanEvent{
		LoanID:     loan.ID,
		OwnerID:    loan.UserID,
		ActorID:    actorID,
		Stage:      loan.Stage(),
		Status:     loan.Status,
		IsVerified: loan.IsVerified,
		Remarks:    loan.Remarks,
		OccurredAt: at.UTC(),
	}
}

// RoleEvent is the payload for user.role_changed.
type RoleEvent struct {
	UserID     string      `json:"userId"`
	ActorID    string      `json:"actorId"`
	Role       models.Role `json:"role"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishJSON(context.Context, string, any) error { return nil }

func (Nop) Close() error { return nil }

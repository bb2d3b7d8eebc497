package models

import "time"

// LoanStatus is the final-approval state of a loan.
type LoanStatus string

const (
	LoanPending  LoanStatus = "PENDING"
	LoanApproved LoanStatus = "APPROVED"
	LoanRejected LoanStatus = "REJECTED"
)

// Loan is a single loan application and its review trail.
type Loan struct {
	ID               string     `json:"_id"`
	UserID           string     `json:"userId"`
	VerifierID       *string    `json:"verifierId,omitempty"`
	ApproverID       *string    `json:"approverId,omitempty"`
	FullName         string     `json:"fullName"`
	Amount           float64    `json:"amount"`
	LoanTenure       int        `json:"loanTenure"`
	EmploymentStatus string     `json:"employmentStatus"`
	Reason           string     `json:"reason"`
	StreetAddress    string     `json:"streetAddress"`
	CityStateZip     string     `json:"cityStateZip"`
	IsVerified       bool       `json:"isVerified"`
	Status           LoanStatus `json:"status"`
	Remarks          string     `json:"remarks"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Stage is the workflow position derived from Status, IsVerified and VerifierID.
type Stage string

const (
	StagePendingVerification  Stage = "PENDING_VERIFICATION"
	StageVerified             Stage = "VERIFIED"
	StageVerificationRejected Stage = "VERIFICATION_REJECTED"
	StageApproved             Stage = "APPROVED"
	StageRejected             Stage = "REJECTED"
)

// Stage derives the workflow position. A final decision outranks verification.
func (l Loan) Stage() Stage {
	switch l.Status {
	case LoanApproved:
		return StageApproved
	case LoanRejected:
		return StageRejected
	}
	switch {
	case l.IsVerified:
		return StageVerified
	case l.VerifierID != nil:
		return StageVerificationRejected
	default:
		return StagePendingVerification
	}
}

// Verification is the field set written by a verifier. It never touches Status.
type Verification struct {
	VerifierID string
	Verified   bool
}

// Decision is the field set written by an approver. Remarks is nil when untouched.
type Decision struct {
	ApproverID string
	Status     LoanStatus
	Remarks    *string
}

// LoanOwner is the slice of the owning user joined into a loan listing.
type LoanOwner struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	ProfilePic string `json:"profilePic"`
}

// OwnedLoan is a loan with its owner populated in place of the bare userId.
type OwnedLoan struct {
	Loan
	Owner LoanOwner `json:"userId"`
}

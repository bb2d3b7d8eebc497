package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/hongminglow/loan-be/internal/models"
	"github.com/hongminglow/loan-be/internal/storage"
	"github.com/jackc/pgx/v5"
)

const loanColumns = `id, user_id, verifier_id, approver_id, full_name, amount, loan_tenure, employment_status,
	reason, street_address, city_state_zip, is_verified, status, remarks, created_at, updated_at`

// CreateLoan inserts a new loan row.
func (s *Store) CreateLoan(ctx context.Context, loan models.Loan) (models.Loan, error) {
	const query = `
	INSERT INTO loans (id, user_id, full_name, amount, loan_tenure, employment_status, reason,
		street_address, city_state_zip, is_verified, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING ` + loanColumns
	row := s.pool.QueryRow(ctx, query, loan.ID, loan.UserID, loan.FullName, loan.Amount, loan.LoanTenure,
		loan.EmploymentStatus, loan.Reason, loan.StreetAddress, loan.CityStateZip, loan.IsVerified, string(loan.Status))
	created, err := scanLoan(row)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return models.Loan{}, storage.ErrAlreadyExists
		case isForeignKeyViolation(err):
			return models.Loan{}, storage.ErrNotFound
		}
		return models.Loan{}, err
	}
	return created, nil
}

// FindLoanByID fetches a loan by id.
func (s *Store) FindLoanByID(ctx context.Context, id string) (models.Loan, error) {
	return scanLoan(s.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))
}

// ApplyVerification writes only is_verified and verifier_id.
func (s *Store) ApplyVerification(ctx context.Context, id string, v models.Verification) (models.Loan, error) {
	const query = `
	UPDATE loans SET is_verified = $2, verifier_id = $3, updated_at = NOW()
	WHERE id = $1
	RETURNING ` + loanColumns
	return scanLoan(s.pool.QueryRow(ctx, query, id, v.Verified, v.VerifierID))
}

// ApplyDecision writes status and approver_id, and remarks when provided.
func (s *Store) ApplyDecision(ctx context.Context, id string, d models.Decision) (models.Loan, error) {
	const query = `
	UPDATE loans SET status = $2, approver_id = $3, remarks = COALESCE($4, remarks), updated_at = NOW()
	WHERE id = $1
	RETURNING ` + loanColumns
	return scanLoan(s.pool.QueryRow(ctx, query, id, string(d.Status), d.ApproverID, d.Remarks))
}

// ListLoans returns every loan in insertion order.
func (s *Store) ListLoans(ctx context.Context) ([]models.Loan, error) {
	return s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at, id`)
}

// ListVerifiedUnapproved returns the admin review queue.
func (s *Store) ListVerifiedUnapproved(ctx context.Context) ([]models.Loan, error) {
	return s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans WHERE is_verified AND approver_id IS NULL ORDER BY created_at, id`)
}

// ListLoansByOwner returns the owner's loans with name and picture joined in.
func (s *Store) ListLoansByOwner(ctx context.Context, ownerID string) ([]models.OwnedLoan, error) {
	const query = `
	SELECT l.id, l.user_id, l.verifier_id, l.approver_id, l.full_name, l.amount, l.loan_tenure, l.employment_status,
		l.reason, l.street_address, l.city_state_zip, l.is_verified, l.status, l.remarks, l.created_at, l.updated_at,
		u.name, u.profile_pic
	FROM loans l
	JOIN users u ON u.id = l.user_id
	WHERE l.user_id = $1
	ORDER BY l.created_at, l.id`
	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list loans by owner: %w", err)
	}
	defer rows.Close()

	out := make([]models.OwnedLoan, 0)
	for rows.Next() {
		var owned models.OwnedLoan
		var status string
		l := &owned.Loan
		if err := rows.Scan(&l.ID, &l.UserID, &l.VerifierID, &l.ApproverID, &l.FullName, &l.Amount, &l.LoanTenure,
			&l.EmploymentStatus, &l.Reason, &l.StreetAddress, &l.CityStateZip, &l.IsVerified, &status, &l.Remarks,
			&l.CreatedAt, &l.UpdatedAt, &owned.Owner.Name, &owned.Owner.ProfilePic); err != nil {
			return nil, err
		}
		l.Status = models.LoanStatus(status)
		owned.Owner.ID = l.UserID
		out = append(out, owned)
	}
	return out, rows.Err()
}

func (s *Store) queryLoans(ctx context.Context, query string, args ...any) ([]models.Loan, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	loans := make([]models.Loan, 0)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

func scanLoan(row pgx.Row) (models.Loan, error) {
	var l models.Loan
	var status string
	if err := row.Scan(&l.ID, &l.UserID, &l.VerifierID, &l.ApproverID, &l.FullName, &l.Amount, &l.LoanTenure,
		&l.EmploymentStatus, &l.Reason, &l.StreetAddress, &l.CityStateZip, &l.IsVerified, &status, &l.Remarks,
		&l.CreatedAt, &l.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Loan{}, storage.ErrNotFound
		}
		return models.Loan{}, err
	}
	l.Status = models.LoanStatus(status)
	return l, nil
}

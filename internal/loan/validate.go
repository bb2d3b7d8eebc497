package loan

import (
	"math"

	"github.com/hongminglow/loan-be/internal/apperr"
	"github.com/hongminglow/loan-be/internal/sanitize"
)

// MaxTenureMonths caps loanTenure at one hundred years.
const MaxTenureMonths = 1200

// validate reports the first missing field in form order, then the first
// field carrying markup. Accepted values are stored exactly as supplied.
func validate(in CreateInput) error {
	switch {
	case sanitize.Blank(in.FullName):
		return apperr.Validation("Full name is required")
	case in.Amount == 0:
		return apperr.Validation("Loan amount is required")
	case in.Amount < 0:
		return apperr.Validation("Loan amount must be positive")
	case in.LoanTenure == 0:
		return apperr.Validation("Loan tenure is required")
	case in.LoanTenure < 0:
		return apperr.Validation("Loan tenure must be positive")
	case in.LoanTenure != math.Trunc(in.LoanTenure):
		return apperr.Validation("Loan tenure must be a whole number of months")
	case in.LoanTenure > MaxTenureMonths:
		return apperr.Validation("Loan tenure must be at most 1200 months")
	case sanitize.Blank(in.EmploymentStatus):
		return apperr.Validation("Employment status is required")
	case sanitize.Blank(in.Reason):
		return apperr.Validation("Reason for loan is required")
	case sanitize.Blank(in.StreetAddress) || sanitize.Blank(in.CityStateZip):
		return apperr.Validation("Complete address is required")
	}

	fields := []struct{ label, value string }{
		{"Full name", in.FullName},
		{"Employment status", in.EmploymentStatus},
		{"Reason for loan", in.Reason},
		{"Street address", in.StreetAddress},
		{"City, state and zip", in.CityStateZip},
	}
	for _, f := range fields {
		if sanitize.ContainsMarkup(f.value) {
			return apperr.Validation(f.label + " must not contain HTML markup")
		}
	}
	return nil
}

package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number decodes a JSON number, a numeric string or null. Empty strings and
// null decode to zero so that required-field checks report them as missing.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		data = []byte(s)
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid number %q", string(data))
	}
	*n = Number(v)
	return nil
}

type CreateLoanRequest struct {
	FullName         string `json:"fullName"`
	Amount           Number `json:"amount"`
	LoanTenure       Number `json:"loanTenure"`
	EmploymentStatus string `json:"employmentStatus"`
	Reason           string `json:"reason"`
	StreetAddress    string `json:"streetAddress"`
	CityStateZip     string `json:"cityStateZip"`
}

type VerifyLoanRequest struct {
	ID      string `json:"id"`
	Approve bool   `json:"approve"`
}

type ApproveLoanRequest struct {
	ID      string `json:"id"`
	Approve bool   `json:"approve"`
	Remarks string `json:"remarks"`
}

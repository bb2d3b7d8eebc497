package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hongminglow/loan-be/internal/http/respond"
	"github.com/hongminglow/loan-be/internal/loan"
	"github.com/hongminglow/loan-be/internal/middleware"
	"github.com/hongminglow/loan-be/internal/models/dto"
)

// LoanHandler exposes the loan workflow under /loan.
type LoanHandler struct {
	loans  *loan.Service
	logger *slog.Logger
}

func NewLoanHandler(loans *loan.Service, logger *slog.Logger) *LoanHandler {
	return &LoanHandler{loans: loans, logger: logger}
}

// Register attaches loan routes to the mux.
func (h *LoanHandler) Register(mux *http.ServeMux, guards Guards) {
	mux.Handle("/loan/createloan", guards.authenticated(h.handleCreate))
	mux.Handle("/loan/getmyloan", guards.authenticated(h.handleListOwn))
	mux.Handle("/loan/getloan", guards.privileged(h.handleListAll))
	mux.Handle("/loan/getverifiedloan", guards.privileged(h.handleListVerified))
	mux.Handle("/loan/verifyloan", guards.privileged(h.handleVerify))
	mux.Handle("/loan/approveloan", guards.privileged(h.handleApprove))
}

func (h *LoanHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req dto.CreateLoanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ownerID, _ := middleware.UserIDFromContext(r.Context())
	created, err := h.loans.Create(r.Context(), ownerID, loan.CreateInput{
		FullName:         req.FullName,
		Amount:           float64(req.Amount),
		LoanTenure:       float64(req.LoanTenure),
		EmploymentStatus: req.EmploymentStatus,
		Reason:           req.Reason,
		StreetAddress:    req.StreetAddress,
		CityStateZip:     req.CityStateZip,
	})
	if err != nil {
		respond.Failure(w, r, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusCreated, respond.Envelope{
		Message: "Loan application submitted successfully!",
		Data:    created,
	})
}

func (h *LoanHandler) handleListOwn(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	ownerID, _ := middleware.UserIDFromContext(r.Context())
	loans, err := h.loans.ListOwn(r.Context(), ownerID)
	if err != nil {
		respond.Failure(w, r, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.Envelope{
		Message: "Loans retrieved successfully",
		Loan:    loans,
	})
}

func (h *LoanHandler) handleListAll(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	loans, err := h.loans.ListAll(r.Context(), middleware.CapabilitiesFromContext(r.Context()))
	if err != nil {
		respond.Failure(w, r, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.Envelope{
		Message: "All loans retrieved successfully",
		Loan:    loans,
	})
}

func (h *LoanHandler) handleListVerified(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	loans, err := h.loans.ListVerifiedUnapproved(r.Context(), middleware.CapabilitiesFromContext(r.Context()))
	if err != nil {
		respond.Failure(w, r, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.Envelope{
		Message: "Verified loans",
		Data:    loans,
	})
}

func (h *LoanHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	caps := middleware.CapabilitiesFromContext(r.Context())
	if err := loan.CanVerify(caps); err != nil {
		respond.Failure(w, r, h.logger, err)
		return
	}
	var req dto.VerifyLoanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.loans.Verify(r.Context(), caps, req.ID, req.Approve)
	if err != nil {
		respond.Failure(w, r, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.Envelope{Message: out.Message, Data: out.Loan})
}

func (h *LoanHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	caps := middleware.CapabilitiesFromContext(r.Context())
	if err := loan.CanDecide(caps); err != nil {
		respond.Failure(w, r, h.logger, err)
		return
	}
	var req dto.ApproveLoanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.loans.Approve(r.Context(), caps, req.ID, req.Approve, req.Remarks)
	if err != nil {
		respond.Failure(w, r, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, respond.Envelope{Message: out.Message, Data: out.Loan})
}

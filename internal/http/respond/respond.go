package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hongminglow/loan-be/internal/apperr"
)

// Envelope is the standard API response wrapper used across handlers.
// Payloads go in Data, User, Loan or Token depending on the endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	User    any    `json:"user,omitempty"`
	Loan    any    `json:"loan,omitempty"`
	Token   string `json:"token,omitempty"`
}

// JSON writes a success response. Success and Error are set here.
func JSON(w http.ResponseWriter, status int, env Envelope) {
	env.Success, env.Error = true, false
	write(w, status, env)
}

// Error writes an error response with the shared envelope structure.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Success: false, Error: true, Message: message})
}

// Failure maps err onto its HTTP status. Internal causes are logged and never sent.
func Failure(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	appErr := apperr.From(err)
	if appErr.Kind == apperr.KindInternal && log != nil {
		log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	Error(w, appErr.Status(), appErr.Message)
}

func write(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("respond: encode payload failed", slog.Any("error", err))
	}
}

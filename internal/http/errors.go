package http

import (
	"errors"
	"fmt"
	"net/http"

	"consultoria/internal/core"
	"consultoria/internal/export/xlsx"
	"consultoria/internal/log"
	"consultoria/internal/records"
	"consultoria/internal/session"
)

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidRate,
	core.ErrEmptyCategory,
	core.ErrEmptyCreditor,
	core.ErrInvalidKind,
	core.ErrInvalidProfile,
	core.ErrInvalidProjection,
	core.ErrInvalidPeriod,
	session.ErrClientRequired,
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case isValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, records.ErrNotFound), errors.Is(err, ErrInvalidID):
		return http.StatusNotFound
	case errors.Is(err, xlsx.ErrSheetNameConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// userMessage returns the text shown in the notification for err.
func userMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrClientRequired):
		return "Enter the client name first"
	case errors.Is(err, core.ErrInvalidProfile):
		return "Invalid profile: age must be between 1 and 120"
	case errors.Is(err, core.ErrInvalidProjection):
		return "Invalid projection: use a non-negative amount and 1 to 60 months"
	case errors.Is(err, core.ErrInvalidPeriod):
		return fmt.Sprintf("Invalid period: pick a month and a year between %d and %d", core.MinPeriodYear, core.MaxPeriodYear)
	case errors.Is(err, records.ErrNotFound), errors.Is(err, ErrInvalidID):
		return "Record not found"
	case errors.Is(err, xlsx.ErrSheetNameConflict):
		return "Two clients map to the same sheet name; rename one of them"
	case isValidation(err):
		return "Invalid input"
	}
	return "Something went wrong, please try again"
}

// fail writes the error response with a notification. Server errors are
// logged; client errors only at debug level.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	status := statusFor(err)
	logger := log.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, log.ComponentHTTP, op, log.NewFields())
	} else {
		logger.DebugContext(ctx, "Request rejected",
			log.FieldOperation, op,
			log.FieldError, err,
			log.FieldStatusCode, status)
	}

	msg := userMessage(err)
	ErrorResponse(status, msg).
		TriggerNotification(NotificationError, msg, s.notice).
		Write(w)
}

package utils

import (
	"errors"

	"ms-gymclass/internal/models"
)

// DomainStatus maps a domain error to an HTTP status and a stable machine
// code for the response envelope. Unknown errors are server errors.
func DomainStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrClassNotFound):
		return 404, "class_not_found"
	case errors.Is(err, models.ErrBookingNotFound):
		return 404, "booking_not_found"
	case errors.Is(err, models.ErrTemplateNotFound):
		return 404, "template_not_found"
	case errors.Is(err, models.ErrPackageNotFound):
		return 404, "package_not_found"
	case errors.Is(err, models.ErrAlreadyBooked):
		return 409, "already_booked"
	case errors.Is(err, models.ErrClassFull):
		return 409, "class_full"
	case errors.Is(err, models.ErrClassBusy):
		return 409, "class_busy"
	case errors.Is(err, models.ErrInsufficientCredits):
		return 409, "insufficient_credits"
	case errors.Is(err, models.ErrCancellationWindowPassed):
		return 409, "cancellation_window_passed"
	case errors.Is(err, models.ErrNotSameDay):
		return 409, "not_same_day"
	case errors.Is(err, models.ErrInvalidTransition):
		return 409, "invalid_transition"
	case errors.Is(err, models.ErrCreditCeiling):
		return 409, "credit_ceiling"
	case errors.Is(err, models.ErrForbidden):
		return 403, "forbidden"
	case errors.Is(err, models.ErrValidation):
		return 400, "invalid_request"
	default:
		return 500, "server_error"
	}
}

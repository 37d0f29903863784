package validator

import (
	"errors"
	"fmt"
	"time"

	"roomcal/pkg/logger"
	"roomcal/pkg/model"

	"github.com/go-playground/validator/v10"
)

// Business rules for the single meeting room. Fixed by product, not
// runtime-configurable.
const (
	WindowStartHour = 9
	WindowEndHour   = 17

	IntervalMinutes    = 30
	DurationMinMinutes = 30
	DurationMaxHours   = 3
)

// Kind identifies which rule a candidate booking violated.
type Kind string

const (
	MissingField         Kind = "MissingField"
	WeekendNotAllowed    Kind = "WeekendNotAllowed"
	InvalidOrder         Kind = "InvalidOrder"
	OutsideBusinessHours Kind = "OutsideBusinessHours"
	MisalignedTime       Kind = "MisalignedTime"
	InvalidDuration      Kind = "InvalidDuration"
	Overlap              Kind = "Overlap"
)

type ValidationError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (v *ValidationError) Error() string {
	return v.Message
}

func newError(kind Kind, message string) *ValidationError {
	return &ValidationError{Kind: kind, Message: message}
}

// NewOverlapError is the rejection raised when a candidate collides with a
// stored booking. The check lives in the service (it needs the store), but
// the failure belongs to this taxonomy.
func NewOverlapError() *ValidationError {
	return newError(Overlap, "There is a booking already at the given time.")
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	return &BookingValidator{
		validate: validator.New(),
		logger:   log,
	}
}

// Validate runs the booking rules in a fixed order and reports only the
// first violation. The ordering is a contract: a weekend candidate with a
// bad duration always reports WeekendNotAllowed.
func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := v.validate.Struct(booking); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return newError(MissingField, "Fields are required.")
		}
		return err
	}

	if isWeekend(booking.StartTime) {
		return newError(WeekendNotAllowed, "Booking is available on weekdays.")
	}

	if !booking.EndTime.After(booking.StartTime) {
		return newError(InvalidOrder, "End time of the booking should be greater than the start time.")
	}

	// A start at exactly the window-end hour passes here. It can never
	// produce a valid booking (the duration check below kills it), but the
	// boundary is kept as-is.
	if booking.StartTime.Hour() < WindowStartHour ||
		booking.StartTime.Hour() > WindowEndHour ||
		booking.EndTime.Hour() > WindowEndHour {
		return newError(OutsideBusinessHours, "Booking is not in the allowed range time.")
	}

	if booking.StartTime.Minute()%IntervalMinutes != 0 || booking.EndTime.Minute()%IntervalMinutes != 0 {
		return newError(MisalignedTime, "Booking does not start or ends at whole or half hours.")
	}

	duration := booking.EndTime.Sub(booking.StartTime)
	if duration < DurationMinMinutes*time.Minute || duration > DurationMaxHours*time.Hour {
		return newError(InvalidDuration, fmt.Sprintf(
			"Booking durations is not multiple of [%d] minutes or more than [%d] hours",
			DurationMinMinutes, DurationMaxHours,
		))
	}

	return nil
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

package service

import (
	"context"
	"errors"
	"time"

	"roomcal/internal/bookings/repository"
	"roomcal/internal/bookings/validator"
	"roomcal/pkg/config"
	apperrors "roomcal/pkg/errors"
	"roomcal/pkg/kafka"
	"roomcal/pkg/model"
	"roomcal/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	// EventTypeBookingCreated is emitted after a booking is persisted.
	EventTypeBookingCreated = "booking.created"

	eventSchemaVersion = "1"
	publishTimeout     = 5 * time.Second
)

type BookingService interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByDateTime(ctx context.Context, instant time.Time) (*model.Booking, error)
	GetWeeklySchedule(ctx context.Context, date time.Time) ([]*model.Booking, error)
	GetAvailableTimeSlots(ctx context.Context, date time.Time) ([]time.Time, error)
}

// EventPublisher is the subset of the Kafka producer the service needs.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// BookingCreatedEvent is the payload published on successful creation.
type BookingCreatedEvent struct {
	ID        string    `json:"id"`
	UserName  string    `json:"user_name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
}

type bookingService struct {
	store     repository.BookingStore
	validator *validator.BookingValidator
	publisher EventPublisher
	cfg       *config.Config
}

// NewBookingService wires the scheduling core. The publisher may be nil when
// eventing is disabled.
func NewBookingService(
	store repository.BookingStore,
	validator *validator.BookingValidator,
	publisher EventPublisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		store:     store,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Create validates the candidate against the business rules and persists it.
// Rules run in a fixed order and only the first violation is reported. The
// overlap check and the insert share a transaction so the read-then-write
// window is as small as the store allows.
func (s *bookingService) Create(ctx context.Context, booking *model.Booking) error {
	s.sanitize(booking)

	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return err
	}

	err := s.store.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyNoOverlap(sessCtx, booking); err != nil {
			return err
		}
		if err := s.store.Save(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		var vErr *validator.ValidationError
		if !errors.As(err, &vErr) {
			s.cfg.Log.Error("Failed to create booking", "error", err)
		}
		return err
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"user_name", booking.UserName,
		"start_time", booking.StartTime,
		"end_time", booking.EndTime,
	)

	s.publishCreated(booking)
	return nil
}

func (s *bookingService) GetByDateTime(ctx context.Context, instant time.Time) (*model.Booking, error) {
	booking, err := s.store.FindContaining(ctx, instant)
	if err != nil {
		s.cfg.Log.Error("Failed to look up booking at instant", "instant", instant, "error", err)
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	if booking == nil {
		return nil, apperrors.NotFoundAt("Booking", instant.Format("2006-01-02 15:04"))
	}

	return booking, nil
}

// GetWeeklySchedule returns every booking starting in the Monday-to-Sunday
// week containing the given date, ordered by start time.
func (s *bookingService) GetWeeklySchedule(ctx context.Context, date time.Time) ([]*model.Booking, error) {
	weekStart := startOfWeek(date)
	weekEnd := weekStart.AddDate(0, 0, 7).Add(-time.Nanosecond)

	bookings, err := s.store.FindStartingBetween(ctx, weekStart, weekEnd)
	if err != nil {
		s.cfg.Log.Error("Failed to fetch weekly schedule", "week_start", weekStart, "error", err)
		return nil, apperrors.Internal("Failed to retrieve weekly schedule", err)
	}

	s.cfg.Log.Debug("Weekly schedule computed",
		"week_start", weekStart,
		"count", len(bookings),
	)
	return bookings, nil
}

// GetAvailableTimeSlots returns the free 30-minute slot starts inside the
// business window of the given day, ascending.
func (s *bookingService) GetAvailableTimeSlots(ctx context.Context, date time.Time) ([]time.Time, error) {
	windowStart := atHour(date, validator.WindowStartHour)
	windowEnd := atHour(date, validator.WindowEndHour)
	step := validator.IntervalMinutes * time.Minute

	bookings, err := s.store.FindStartingBetween(ctx, windowStart, windowEnd.Add(-time.Nanosecond))
	if err != nil {
		s.cfg.Log.Error("Failed to fetch bookings for availability", "date", date, "error", err)
		return nil, apperrors.Internal("Failed to compute available slots", err)
	}

	// Expansion is inclusive of the booking's end, so a booking ending on a
	// slot boundary marks that boundary occupied even though nothing after
	// it is booked. Known boundary quirk, kept deliberately.
	occupied := make(map[int64]bool)
	for _, b := range bookings {
		for t := b.StartTime; !t.After(b.EndTime); t = t.Add(step) {
			occupied[t.Unix()] = true
		}
	}

	// A slot counts as available when it is free itself OR the next slot
	// start is free. This look-ahead can report the last slot of a
	// contiguous booked block as available even though it is booked. Known
	// anomaly, kept for product clarification rather than fixed here.
	var slots []time.Time
	for t := windowStart; t.Before(windowEnd); t = t.Add(step) {
		if !occupied[t.Unix()] || !occupied[t.Add(step).Unix()] {
			slots = append(slots, t)
		}
	}

	return slots, nil
}

func (s *bookingService) sanitize(b *model.Booking) {
	b.UserName = sanitizer.NormalizeUserName(b.UserName)
}

func (s *bookingService) verifyNoOverlap(ctx context.Context, booking *model.Booking) error {
	existing, err := s.store.FindOverlapping(ctx, booking.StartTime, booking.EndTime)
	if err != nil {
		return apperrors.Internal("Failed to check existing bookings", err)
	}

	if len(existing) > 0 {
		return validator.NewOverlapError()
	}
	return nil
}

// publishCreated emits the creation event best-effort. A broker outage must
// never fail a booking that is already persisted.
func (s *bookingService) publishCreated(booking *model.Booking) {
	if s.publisher == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(booking.ID).
		WithEventType(EventTypeBookingCreated).
		WithSchemaVersion(eventSchemaVersion).
		WithSource("bookings").
		WithValue(BookingCreatedEvent{
			ID:        booking.ID,
			UserName:  booking.UserName,
			StartTime: booking.StartTime,
			EndTime:   booking.EndTime,
			CreatedAt: booking.CreatedAt,
		}).
		Build()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.cfg.Log.Warn("Failed to publish booking created event",
			"id", booking.ID,
			"error", err,
		)
	}
}

// startOfWeek returns midnight of the most recent Monday on or before the
// given date.
func startOfWeek(date time.Time) time.Time {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func atHour(date time.Time, hour int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location())
}

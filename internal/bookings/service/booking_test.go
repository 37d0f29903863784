package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"roomcal/internal/bookings/repository"
	"roomcal/internal/bookings/validator"
	"roomcal/pkg/config"
	mongotx "roomcal/pkg/db/mongo"
	apperrors "roomcal/pkg/errors"
	"roomcal/pkg/kafka"
	"roomcal/pkg/logger"
	"roomcal/pkg/model"
)

type fakeStore struct {
	bookings []*model.Booking
	nextID   int

	saveErr error
	findErr error
}

var _ repository.BookingStore = (*fakeStore)(nil)

func (f *fakeStore) Save(_ context.Context, booking *model.Booking) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.nextID++
	booking.ID = fmt.Sprintf("booking-%d", f.nextID)
	booking.CreatedAt = time.Now()
	f.bookings = append(f.bookings, booking)
	return nil
}

func (f *fakeStore) FindContaining(_ context.Context, instant time.Time) (*model.Booking, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, b := range f.bookings {
		if !b.StartTime.After(instant) && b.EndTime.After(instant) {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindStartingBetween(_ context.Context, rangeStart, rangeEnd time.Time) ([]*model.Booking, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var result []*model.Booking
	for _, b := range f.bookings {
		if !b.StartTime.Before(rangeStart) && !b.StartTime.After(rangeEnd) {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

func (f *fakeStore) FindOverlapping(_ context.Context, candidateStart, candidateEnd time.Time) ([]*model.Booking, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var result []*model.Booking
	for _, b := range f.bookings {
		if b.StartTime.Before(candidateEnd) && b.EndTime.After(candidateStart) {
			result = append(result, b)
		}
	}
	return result, nil
}

func (f *fakeStore) ExecuteTransaction(_ context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type fakePublisher struct {
	published []kafka.Message
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, msg kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func newTestService(store repository.BookingStore, publisher EventPublisher) BookingService {
	cfg := &config.Config{Log: logger.Discard()}
	return NewBookingService(store, validator.NewBookingValidator(cfg.Log), publisher, cfg)
}

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", value, err)
	}
	return parsed
}

func newBooking(t *testing.T, user, start, end string) *model.Booking {
	t.Helper()
	return &model.Booking{
		UserName:  user,
		StartTime: mustParse(t, start),
		EndTime:   mustParse(t, end),
	}
}

func TestCreate(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, nil)

	booking := newBooking(t, "alice", "2023-10-06 09:00", "2023-10-06 10:00")
	if err := svc.Create(context.Background(), booking); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	if booking.ID == "" {
		t.Error("expected an assigned booking ID")
	}
	if len(store.bookings) != 1 {
		t.Fatalf("expected 1 stored booking, got %d", len(store.bookings))
	}
}

func TestCreate_SanitizesUserName(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, nil)

	booking := newBooking(t, "  alice   smith ", "2023-10-06 09:00", "2023-10-06 10:00")
	if err := svc.Create(context.Background(), booking); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	if booking.UserName != "alice smith" {
		t.Errorf("expected normalized user name, got %q", booking.UserName)
	}
}

func TestCreate_RejectsOverlap(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, nil)

	first := newBooking(t, "alice", "2023-10-06 09:00", "2023-10-06 10:00")
	if err := svc.Create(context.Background(), first); err != nil {
		t.Fatalf("expected first create to succeed, got %v", err)
	}

	second := newBooking(t, "bob", "2023-10-06 09:30", "2023-10-06 10:00")
	err := svc.Create(context.Background(), second)

	var vErr *validator.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Kind != validator.Overlap {
		t.Errorf("expected kind %s, got %s", validator.Overlap, vErr.Kind)
	}
	if len(store.bookings) != 1 {
		t.Errorf("expected overlapping booking not to be stored, got %d bookings", len(store.bookings))
	}
}

func TestCreate_ValidationShortCircuitsBeforeStore(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("store should not be reached")}
	svc := newTestService(store, nil)

	booking := newBooking(t, "alice", "2023-10-07 09:00", "2023-10-07 10:00")
	err := svc.Create(context.Background(), booking)

	var vErr *validator.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Kind != validator.WeekendNotAllowed {
		t.Errorf("expected kind %s, got %s", validator.WeekendNotAllowed, vErr.Kind)
	}
}

func TestCreate_PublishesEvent(t *testing.T) {
	store := &fakeStore{}
	publisher := &fakePublisher{}
	svc := newTestService(store, publisher)

	booking := newBooking(t, "alice", "2023-10-06 09:00", "2023-10-06 10:00")
	if err := svc.Create(context.Background(), booking); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.published))
	}

	msg := publisher.published[0]
	if msg.Key != booking.ID {
		t.Errorf("expected message key %q, got %q", booking.ID, msg.Key)
	}
	if msg.GetEventType() != EventTypeBookingCreated {
		t.Errorf("expected event type %q, got %q", EventTypeBookingCreated, msg.GetEventType())
	}

	var event BookingCreatedEvent
	if err := msg.DecodeValue(&event); err != nil {
		t.Fatalf("failed to decode event payload: %v", err)
	}
	if event.UserName != "alice" {
		t.Errorf("expected user name in payload, got %q", event.UserName)
	}
}

func TestCreate_PublishFailureDoesNotFailBooking(t *testing.T) {
	store := &fakeStore{}
	publisher := &fakePublisher{err: errors.New("broker unavailable")}
	svc := newTestService(store, publisher)

	booking := newBooking(t, "alice", "2023-10-06 09:00", "2023-10-06 10:00")
	if err := svc.Create(context.Background(), booking); err != nil {
		t.Fatalf("expected create to succeed despite publish failure, got %v", err)
	}
	if len(store.bookings) != 1 {
		t.Errorf("expected booking to be stored, got %d", len(store.bookings))
	}
}

func TestGetByDateTime(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, nil)

	booking := newBooking(t, "alice", "2023-10-06 09:00", "2023-10-06 10:00")
	if err := svc.Create(context.Background(), booking); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	tests := []struct {
		name      string
		instant   string
		wantFound bool
	}{
		{name: "at start", instant: "2023-10-06 09:00", wantFound: true},
		{name: "mid interval", instant: "2023-10-06 09:30", wantFound: true},
		{name: "at end is exclusive", instant: "2023-10-06 10:00", wantFound: false},
		{name: "before start", instant: "2023-10-06 08:30", wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := svc.GetByDateTime(context.Background(), mustParse(t, tt.instant))

			if tt.wantFound {
				if err != nil {
					t.Fatalf("expected booking, got %v", err)
				}
				if found.ID != booking.ID {
					t.Errorf("expected booking %s, got %s", booking.ID, found.ID)
				}
				return
			}

			if err == nil {
				t.Fatal("expected not found error, got booking")
			}
			appErr := apperrors.AsAppError(err)
			if appErr.Code != apperrors.CodeNotFound {
				t.Errorf("expected code %s, got %s", apperrors.CodeNotFound, appErr.Code)
			}
		})
	}
}

func TestGetWeeklySchedule(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, nil)

	// Four consecutive 2-hour bookings on Thursday 2023-10-05.
	intervals := [][2]string{
		{"2023-10-05 09:00", "2023-10-05 11:00"},
		{"2023-10-05 11:00", "2023-10-05 13:00"},
		{"2023-10-05 13:00", "2023-10-05 15:00"},
		{"2023-10-05 15:00", "2023-10-05 17:00"},
	}
	for _, iv := range intervals {
		if err := svc.Create(context.Background(), newBooking(t, "alice", iv[0], iv[1])); err != nil {
			t.Fatalf("expected create %s to succeed, got %v", iv[0], err)
		}
	}

	// Booking in the following week must not appear.
	if err := svc.Create(context.Background(), newBooking(t, "bob", "2023-10-09 09:00", "2023-10-09 10:00")); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	schedule, err := svc.GetWeeklySchedule(context.Background(), mustParse(t, "2023-10-05 00:00"))
	if err != nil {
		t.Fatalf("expected schedule, got %v", err)
	}

	if len(schedule) != 4 {
		t.Fatalf("expected 4 bookings in week, got %d", len(schedule))
	}

	for i := 1; i < len(schedule); i++ {
		if schedule[i].StartTime.Before(schedule[i-1].StartTime) {
			t.Errorf("expected schedule ordered by start time")
		}
	}
}

func TestGetWeeklySchedule_AnyDayOfWeekSelectsSameWeek(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, nil)

	if err := svc.Create(context.Background(), newBooking(t, "alice", "2023-10-02 09:00", "2023-10-02 10:00")); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	// Monday 2023-10-02 through Sunday 2023-10-08 all contain the booking.
	for _, day := range []string{"2023-10-02 00:00", "2023-10-04 12:00", "2023-10-08 23:00"} {
		schedule, err := svc.GetWeeklySchedule(context.Background(), mustParse(t, day))
		if err != nil {
			t.Fatalf("expected schedule for %s, got %v", day, err)
		}
		if len(schedule) != 1 {
			t.Errorf("expected 1 booking for week of %s, got %d", day, len(schedule))
		}
	}
}

func TestGetAvailableTimeSlots_EmptyDay(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)

	slots, err := svc.GetAvailableTimeSlots(context.Background(), mustParse(t, "2023-10-06 00:00"))
	if err != nil {
		t.Fatalf("expected slots, got %v", err)
	}

	// 09:00 through 16:30 inclusive.
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	if !slots[0].Equal(mustParse(t, "2023-10-06 09:00")) {
		t.Errorf("expected first slot 09:00, got %s", slots[0])
	}
	if !slots[len(slots)-1].Equal(mustParse(t, "2023-10-06 16:30")) {
		t.Errorf("expected last slot 16:30, got %s", slots[len(slots)-1])
	}
}

func TestGetAvailableTimeSlots_WithBooking(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, nil)

	if err := svc.Create(context.Background(), newBooking(t, "alice", "2023-10-06 09:00", "2023-10-06 10:00")); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	slots, err := svc.GetAvailableTimeSlots(context.Background(), mustParse(t, "2023-10-06 00:00"))
	if err != nil {
		t.Fatalf("expected slots, got %v", err)
	}

	for _, blocked := range []string{"2023-10-06 09:00", "2023-10-06 09:30"} {
		if containsSlot(slots, mustParse(t, blocked)) {
			t.Errorf("expected %s to be unavailable", blocked)
		}
	}

	// The look-ahead rule reports 10:00 as available: the booking's
	// inclusive-of-end expansion marks it occupied, but the following slot
	// is free.
	if !containsSlot(slots, mustParse(t, "2023-10-06 10:00")) {
		t.Errorf("expected 10:00 to be reported available")
	}

	if len(slots) != 14 {
		t.Errorf("expected 14 slots, got %d", len(slots))
	}
}

func TestReadQueriesAreIdempotent(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, nil)

	if err := svc.Create(context.Background(), newBooking(t, "alice", "2023-10-06 09:00", "2023-10-06 10:00")); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	date := mustParse(t, "2023-10-06 00:00")

	first, err := svc.GetAvailableTimeSlots(context.Background(), date)
	if err != nil {
		t.Fatalf("expected slots, got %v", err)
	}
	second, err := svc.GetAvailableTimeSlots(context.Background(), date)
	if err != nil {
		t.Fatalf("expected slots, got %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected identical slot counts, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Errorf("slot %d differs between calls: %s vs %s", i, first[i], second[i])
		}
	}

	week1, err := svc.GetWeeklySchedule(context.Background(), date)
	if err != nil {
		t.Fatalf("expected schedule, got %v", err)
	}
	week2, err := svc.GetWeeklySchedule(context.Background(), date)
	if err != nil {
		t.Fatalf("expected schedule, got %v", err)
	}
	if len(week1) != len(week2) {
		t.Errorf("expected identical schedules, got %d and %d bookings", len(week1), len(week2))
	}
}

func TestGetAvailableTimeSlots_StoreFailure(t *testing.T) {
	store := &fakeStore{findErr: errors.New("connection lost")}
	svc := newTestService(store, nil)

	_, err := svc.GetAvailableTimeSlots(context.Background(), mustParse(t, "2023-10-06 00:00"))
	if err == nil {
		t.Fatal("expected error, got slots")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeInternal {
		t.Errorf("expected code %s, got %s", apperrors.CodeInternal, appErr.Code)
	}
}

func containsSlot(slots []time.Time, want time.Time) bool {
	for _, s := range slots {
		if s.Equal(want) {
			return true
		}
	}
	return false
}

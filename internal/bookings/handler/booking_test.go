package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"roomcal/internal/bookings/validator"
	apperrors "roomcal/pkg/errors"
	"roomcal/pkg/logger"
	"roomcal/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type fakeBookingService struct {
	createFn      func(ctx context.Context, booking *model.Booking) error
	getByDateTime func(ctx context.Context, instant time.Time) (*model.Booking, error)
	weekly        func(ctx context.Context, date time.Time) ([]*model.Booking, error)
	slots         func(ctx context.Context, date time.Time) ([]time.Time, error)
}

func (f *fakeBookingService) Create(ctx context.Context, booking *model.Booking) error {
	return f.createFn(ctx, booking)
}

func (f *fakeBookingService) GetByDateTime(ctx context.Context, instant time.Time) (*model.Booking, error) {
	return f.getByDateTime(ctx, instant)
}

func (f *fakeBookingService) GetWeeklySchedule(ctx context.Context, date time.Time) ([]*model.Booking, error) {
	return f.weekly(ctx, date)
}

func (f *fakeBookingService) GetAvailableTimeSlots(ctx context.Context, date time.Time) ([]time.Time, error) {
	return f.slots(ctx, date)
}

func newTestRouter(svc *fakeBookingService) *httprouter.Router {
	router := httprouter.New()
	NewBookingHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", value, err)
	}
	return parsed
}

func TestCreate(t *testing.T) {
	svc := &fakeBookingService{
		createFn: func(_ context.Context, booking *model.Booking) error {
			booking.ID = "booking-1"
			return nil
		},
	}
	router := newTestRouter(svc)

	body := `{"user_name":"alice","start_time":"2023-10-06 09:00","end_time":"2023-10-06 10:00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data model.Booking `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.ID != "booking-1" {
		t.Errorf("expected booking ID in response, got %q", resp.Data.ID)
	}
}

func TestCreate_ValidationFailure(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      *validator.ValidationError
		wantKind string
	}{
		{
			name:     "weekend rejected",
			body:     `{"user_name":"alice","start_time":"2023-10-07 09:00","end_time":"2023-10-07 10:00"}`,
			err:      &validator.ValidationError{Kind: validator.WeekendNotAllowed, Message: "Booking is available on weekdays."},
			wantKind: "WeekendNotAllowed",
		},
		{
			name:     "overlap rejected",
			body:     `{"user_name":"alice","start_time":"2023-10-06 09:30","end_time":"2023-10-06 10:00"}`,
			err:      validator.NewOverlapError(),
			wantKind: "Overlap",
		},
		{
			name:     "missing fields rejected",
			body:     `{"user_name":"alice"}`,
			err:      &validator.ValidationError{Kind: validator.MissingField, Message: "Fields are required."},
			wantKind: "MissingField",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeBookingService{
				createFn: func(_ context.Context, _ *model.Booking) error {
					return tt.err
				},
			}
			router := newTestRouter(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}

			var resp struct {
				Error   string         `json:"error"`
				Details map[string]any `json:"details"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error != tt.err.Message {
				t.Errorf("expected error %q, got %q", tt.err.Message, resp.Error)
			}
			if resp.Details["kind"] != tt.wantKind {
				t.Errorf("expected kind %q, got %v", tt.wantKind, resp.Details["kind"])
			}
		})
	}
}

func TestCreate_MalformedBody(t *testing.T) {
	svc := &fakeBookingService{
		createFn: func(_ context.Context, _ *model.Booking) error {
			t.Fatal("service should not be called")
			return nil
		},
	}
	router := newTestRouter(svc)

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"user_name":`},
		{name: "bad start time format", body: `{"user_name":"alice","start_time":"06/10/2023 09:00","end_time":"2023-10-06 10:00"}`},
		{name: "bad end time format", body: `{"user_name":"alice","start_time":"2023-10-06 09:00","end_time":"10am"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rec.Code)
			}
		})
	}
}

func TestGetWeeklySchedule(t *testing.T) {
	bookings := []*model.Booking{
		{ID: "booking-1", UserName: "alice", StartTime: mustParse(t, "2023-10-05 09:00"), EndTime: mustParse(t, "2023-10-05 11:00")},
		{ID: "booking-2", UserName: "bob", StartTime: mustParse(t, "2023-10-05 11:00"), EndTime: mustParse(t, "2023-10-05 13:00")},
	}
	svc := &fakeBookingService{
		weekly: func(_ context.Context, _ time.Time) ([]*model.Booking, error) {
			return bookings, nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/schedule?date=2023-10-05", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Data []model.Booking `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("expected 2 bookings, got %d", len(resp.Data))
	}
}

func TestGetWeeklySchedule_MissingDate(t *testing.T) {
	svc := &fakeBookingService{
		weekly: func(_ context.Context, _ time.Time) ([]*model.Booking, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/schedule", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestGetWeeklySchedule_EmptyWeek(t *testing.T) {
	svc := &fakeBookingService{
		weekly: func(_ context.Context, _ time.Time) ([]*model.Booking, error) {
			return nil, nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/schedule?date=2023-10-05", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestGetAvailableTimeSlots(t *testing.T) {
	svc := &fakeBookingService{
		slots: func(_ context.Context, _ time.Time) ([]time.Time, error) {
			return []time.Time{
				mustParse(t, "2023-10-06 10:00"),
				mustParse(t, "2023-10-06 10:30"),
			}, nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/available-slots?date=2023-10-06", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	want := []string{"2023-10-06 10:00", "2023-10-06 10:30"}
	if len(resp.Data) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(resp.Data))
	}
	for i := range want {
		if resp.Data[i] != want[i] {
			t.Errorf("slot %d: expected %q, got %q", i, want[i], resp.Data[i])
		}
	}
}

func TestGetByDateTime(t *testing.T) {
	booking := &model.Booking{
		ID:        "booking-1",
		UserName:  "alice",
		StartTime: mustParse(t, "2023-10-06 09:00"),
		EndTime:   mustParse(t, "2023-10-06 10:00"),
	}
	svc := &fakeBookingService{
		getByDateTime: func(_ context.Context, instant time.Time) (*model.Booking, error) {
			if !booking.StartTime.After(instant) && booking.EndTime.After(instant) {
				return booking, nil
			}
			return nil, apperrors.NotFoundAt("Booking", instant.Format("2006-01-02 15:04"))
		},
	}
	router := newTestRouter(svc)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/at?date_time=2023-10-06+09:30", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("free instant returns 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/at?date_time=2023-10-06+14:00", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("missing param returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/at", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"roomcal/internal/bookings/service"
	"roomcal/internal/bookings/validator"
	apperrors "roomcal/pkg/errors"
	httputil "roomcal/pkg/http"
	"roomcal/pkg/logger"
	"roomcal/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// createBookingRequest carries timestamps as strings so an absent field
// reaches the validator as a zero time and reports MissingField rather than
// a decode failure.
type createBookingRequest struct {
	UserName  string `json:"user_name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (req *createBookingRequest) toBooking() (*model.Booking, error) {
	booking := &model.Booking{UserName: req.UserName}

	if req.StartTime != "" {
		parsed, err := time.Parse(httputil.DateTimeLayout, req.StartTime)
		if err != nil {
			return nil, apperrors.InvalidInput("invalid 'start_time', must be " + httputil.DateTimeLayout)
		}
		booking.StartTime = parsed
	}

	if req.EndTime != "" {
		parsed, err := time.Parse(httputil.DateTimeLayout, req.EndTime)
		if err != nil {
			return nil, apperrors.InvalidInput("invalid 'end_time', must be " + httputil.DateTimeLayout)
		}
		booking.EndTime = parsed
	}

	return booking, nil
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	booking, err := req.toBooking()
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), booking); err != nil {
		h.writeCreateError(w, err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

// writeCreateError maps rule violations to 400 with the violation kind so
// clients can branch without string-matching messages.
func (h *BookingHandler) writeCreateError(w http.ResponseWriter, err error) {
	var vErr *validator.ValidationError
	if errors.As(err, &vErr) {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error:   vErr.Message,
			Details: map[string]any{"kind": string(vErr.Kind)},
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) GetWeeklySchedule(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	date, err := httputil.ExtractDateParam(r, "date")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetWeeklySchedule", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	schedule, err := h.service.GetWeeklySchedule(r.Context(), date)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetWeeklySchedule", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if schedule == nil {
		schedule = []*model.Booking{}
	}

	if err := httputil.WriteSuccess(w, schedule); err != nil {
		h.log.Error("failed to write success response", "handler", "GetWeeklySchedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetAvailableTimeSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	date, err := httputil.ExtractDateParam(r, "date")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAvailableTimeSlots", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	slots, err := h.service.GetAvailableTimeSlots(r.Context(), date)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAvailableTimeSlots", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	formatted := make([]string, 0, len(slots))
	for _, slot := range slots {
		formatted = append(formatted, slot.Format(httputil.DateTimeLayout))
	}

	if err := httputil.WriteSuccess(w, formatted); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAvailableTimeSlots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetByDateTime(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	instant, err := httputil.ExtractDateTimeParam(r, "date_time")
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByDateTime", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	booking, err := h.service.GetByDateTime(r.Context(), instant)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByDateTime", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByDateTime", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/schedule", h.GetWeeklySchedule)
	router.GET("/api/v1/bookings/available-slots", h.GetAvailableTimeSlots)
	router.GET("/api/v1/bookings/at", h.GetByDateTime)
}

package model

import (
	"time"
)

// Booking is a reserved, non-overlapping interval of room time. Timestamps
// are naive local wall-clock values; the calendar does not deal in timezones.
type Booking struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserName  string    `json:"user_name" bson:"user_name" validate:"required"`
	StartTime time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" bson:"end_time" validate:"required"`
	CreatedAt time.Time `json:"created_at,omitempty" bson:"created_at" validate:"omitempty"`
}

// Duration returns the booked interval length.
func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// Contains reports whether the instant falls inside the booking under the
// start-inclusive, end-exclusive rule.
func (b *Booking) Contains(t time.Time) bool {
	return !t.Before(b.StartTime) && t.Before(b.EndTime)
}

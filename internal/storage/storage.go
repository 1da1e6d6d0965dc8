package storage

import (
	"context"

	"assistant/internal/booking"
)

// BookingStore persists confirmed bookings. Save assigns b.ID.
type BookingStore interface {
	Save(ctx context.Context, b *booking.CompletedBooking) error
	// List returns all bookings, newest first.
	List(ctx context.Context) ([]booking.CompletedBooking, error)
}

package memory

import (
	"context"
	"sort"
	"sync"

	"assistant/internal/booking"
)

// DB keeps bookings in process memory. IDs start at 1.
type DB struct {
	mu       sync.Mutex
	nextID   int64
	bookings []booking.CompletedBooking
}

func New() *DB {
	return &DB{nextID: 1}
}

func (db *DB) Save(_ context.Context, b *booking.CompletedBooking) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	b.ID = db.nextID
	db.nextID++
	db.bookings = append(db.bookings, *b)

	return nil
}

func (db *DB) List(_ context.Context) ([]booking.CompletedBooking, error) {
	db.mu.Lock()
	out := make([]booking.CompletedBooking, len(db.bookings))
	copy(out, db.bookings)
	db.mu.Unlock()

	// Insertion order is ID order; newest first, ties on time by higher ID.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

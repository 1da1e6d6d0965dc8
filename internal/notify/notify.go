package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"assistant/internal/booking"
)

// Notifier tells a customer that their booking went through.
type Notifier interface {
	NotifyBookingConfirmed(ctx context.Context, b *booking.CompletedBooking) error
}

// Subject returns the confirmation email subject for b.
func Subject(b *booking.CompletedBooking) string {
	return fmt.Sprintf("Booking Confirmation - ID %d", b.ID)
}

// Body returns the plain-text confirmation email body for b.
func Body(b *booking.CompletedBooking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hi %s,\n\n", b.Name)
	sb.WriteString("Your booking has been confirmed successfully.\n\n")
	fmt.Fprintf(&sb, "Booking ID: %d\n", b.ID)
	fmt.Fprintf(&sb, "Booking Type: %s\n", b.BookingType)
	fmt.Fprintf(&sb, "Date: %s\n", b.Date)
	fmt.Fprintf(&sb, "Time: %s\n\n", b.Time)
	sb.WriteString("Thank you for using our booking assistant.\n\n")
	sb.WriteString("Regards,\nAI Booking Assistant\n")
	return sb.String()
}

// LogNotifier writes confirmations to the log instead of sending them. It
// reports booking.ErrNotDelivered so replies do not claim an email went out.
type LogNotifier struct {
	l *zap.Logger
}

func NewLogNotifier(l *zap.Logger) *LogNotifier {
	return &LogNotifier{l: l}
}

func (n *LogNotifier) NotifyBookingConfirmed(_ context.Context, b *booking.CompletedBooking) error {
	n.l.Info("Booking confirmation",
		zap.String("to", b.Email),
		zap.String("subject", Subject(b)),
		zap.Int64("booking_id", b.ID),
	)
	return booking.ErrNotDelivered
}

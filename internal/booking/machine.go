package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	replyCancelled   = "Booking cancelled."
	replyNotSaved    = "Sorry, your booking could not be saved. Reply Confirm to try again or Cancel to discard it."
	replyEmailSent   = "Confirmation email sent."
	replyEmailFailed = "Email could not be sent, but booking was saved."
)

// ErrNotDelivered is returned by notifiers that record a confirmation
// without sending it to the customer. The reply then mentions no email.
var ErrNotDelivered = errors.New("confirmation recorded but not delivered")

type store interface {
	Save(ctx context.Context, b *CompletedBooking) error
}

type notifier interface {
	NotifyBookingConfirmed(ctx context.Context, b *CompletedBooking) error
}

// Machine drives the slot-filling flow of a single ConversationState per call.
// It keeps no per-session data itself and is safe for concurrent use.
type Machine struct {
	l        *zap.Logger
	store    store
	notifier notifier
	prefill  bool
	now      func() time.Time
}

// Option customises a Machine.
type Option func(*Machine)

// WithNotifier enables best-effort confirmation notifications.
func WithNotifier(n notifier) Option {
	return func(m *Machine) { m.notifier = n }
}

// WithPrefill makes Start seed the draft from state.Prefill.
func WithPrefill(enabled bool) Option {
	return func(m *Machine) { m.prefill = enabled }
}

// WithClock overrides the timestamp source for created bookings.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func NewMachine(l *zap.Logger, store store, opts ...Option) *Machine {
	m := &Machine{l: l, store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start moves an idle conversation into collection and returns the first prompt.
func (m *Machine) Start(state *ConversationState) string {
	state.Active = true
	state.Draft = Draft{}
	if m.prefill {
		for f, v := range state.Prefill {
			if Validate(f, v) {
				state.Draft[f] = v
			}
		}
	}
	state.CurrentField = state.Draft.NextMissing()
	if state.CurrentField == "" {
		return Summarize(state.Draft)
	}
	return state.CurrentField.Prompt()
}

// Handle processes one message for an active conversation. Commands are
// checked before the message is treated as a field value.
func (m *Machine) Handle(ctx context.Context, state *ConversationState, input string) string {
	input = strings.TrimSpace(input)

	switch RecognizeCommand(input) {
	case CommandCancel:
		state.Reset()
		return replyCancelled
	case CommandConfirm:
		return m.confirm(ctx, state)
	}

	field := state.CurrentField
	if field == "" {
		return Summarize(state.Draft)
	}

	if !Validate(field, input) {
		return fmt.Sprintf("Invalid %s. %s", field.Label(), field.Prompt())
	}

	if state.Draft == nil {
		state.Draft = Draft{}
	}
	state.Draft[field] = input
	state.CurrentField = state.Draft.NextMissing()
	if state.CurrentField == "" {
		return Summarize(state.Draft)
	}
	return state.CurrentField.Prompt()
}

func (m *Machine) confirm(ctx context.Context, state *ConversationState) string {
	if missing := state.Draft.NextMissing(); missing != "" {
		state.CurrentField = missing
		return fmt.Sprintf("Missing %s. %s", missing.Label(), missing.Prompt())
	}

	b := NewCompletedBooking(state.Draft, m.now())
	if err := m.store.Save(ctx, b); err != nil {
		m.l.Error("Failed to persist booking", zap.Error(err))
		return replyNotSaved
	}

	state.Reset()
	state.LastBookingID = b.ID
	m.l.Info("Booking confirmed", zap.Int64("booking_id", b.ID))

	reply := fmt.Sprintf("Booking confirmed! ID: %d.", b.ID)
	if m.notifier == nil {
		return reply
	}
	err := m.notifier.NotifyBookingConfirmed(ctx, b)
	if errors.Is(err, ErrNotDelivered) {
		return reply
	}
	if err != nil {
		m.l.Warn("Failed to send booking confirmation", zap.Int64("booking_id", b.ID), zap.Error(err))
		return reply + " " + replyEmailFailed
	}
	return reply + " " + replyEmailSent
}

// Summarize renders the confirmation request for a complete draft.
func Summarize(d Draft) string {
	return fmt.Sprintf(
		"Please confirm:\n\nName: %s\nEmail: %s\nPhone: %s\nType: %s\nDate: %s\nTime: %s\n\nReply Confirm or Cancel.",
		d[FieldName], d[FieldEmail], d[FieldPhone], d[FieldBookingType], d[FieldDate], d[FieldTime],
	)
}

package booking

import "time"

// Phase is the coarse position of a conversation in the booking flow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCollecting
	PhaseReadyToConfirm
)

func (p Phase) String() string {
	switch p {
	case PhaseCollecting:
		return "collecting"
	case PhaseReadyToConfirm:
		return "ready_to_confirm"
	default:
		return "idle"
	}
}

// ConversationState is owned by exactly one session.
//
// When Active is false, Draft is empty and CurrentField is "". When
// CurrentField is set it names a field that is not yet in Draft.
type ConversationState struct {
	Active       bool  `json:"active"`
	Draft        Draft `json:"draft,omitempty"`
	CurrentField Field `json:"current_field,omitempty"`
	// Prefill keeps values extracted from the last uploaded document.
	Prefill Draft `json:"prefill,omitempty"`
	// LastBookingID is the ID of the most recent booking confirmed here.
	LastBookingID int64 `json:"last_booking_id,omitempty"`
}

// NewState returns an idle conversation.
func NewState() *ConversationState {
	return &ConversationState{}
}

// Phase derives the state machine phase from the stored fields.
func (s *ConversationState) Phase() Phase {
	switch {
	case !s.Active:
		return PhaseIdle
	case s.CurrentField != "":
		return PhaseCollecting
	default:
		return PhaseReadyToConfirm
	}
}

// Reset returns the conversation to idle and discards the draft.
func (s *ConversationState) Reset() {
	s.Active = false
	s.Draft = nil
	s.CurrentField = ""
}

// StatusConfirmed is the only status a persisted booking can have.
const StatusConfirmed = "CONFIRMED"

// CompletedBooking is the record handed to storage on confirmation.
type CompletedBooking struct {
	ID          int64     `json:"booking_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	BookingType string    `json:"booking_type"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewCompletedBooking builds an unsaved record from a complete draft.
func NewCompletedBooking(d Draft, now time.Time) *CompletedBooking {
	return &CompletedBooking{
		Name:        d[FieldName],
		Email:       d[FieldEmail],
		Phone:       d[FieldPhone],
		BookingType: d[FieldBookingType],
		Date:        d[FieldDate],
		Time:        d[FieldTime],
		Status:      StatusConfirmed,
		CreatedAt:   now.UTC(),
	}
}

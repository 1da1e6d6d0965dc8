package booking

import "strings"

// Command is a control word that takes priority over field values while a
// booking is active.
type Command int

const (
	CommandNone Command = iota
	CommandConfirm
	CommandCancel
)

// RecognizeCommand matches the whole input, case-insensitively.
func RecognizeCommand(input string) Command {
	s := strings.TrimSpace(input)
	switch {
	case strings.EqualFold(s, "confirm"):
		return CommandConfirm
	case strings.EqualFold(s, "cancel"):
		return CommandCancel
	default:
		return CommandNone
	}
}

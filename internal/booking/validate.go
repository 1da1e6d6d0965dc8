package booking

import (
	"regexp"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
	timeLen    = len(timeLayout)
	phoneLen   = 10
)

var emailRe = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)

// Validate reports whether raw is an acceptable value for field.
// It never panics and treats unknown fields as invalid.
func Validate(field Field, raw string) bool {
	switch field {
	case FieldName, FieldBookingType:
		return strings.TrimSpace(raw) != ""
	case FieldEmail:
		return emailRe.MatchString(raw)
	case FieldPhone:
		return isPhone(raw)
	case FieldDate:
		_, err := time.Parse(dateLayout, raw)
		return err == nil
	case FieldTime:
		// time.Parse takes a one-digit hour; HH:MM needs both.
		if len(raw) != timeLen {
			return false
		}
		_, err := time.Parse(timeLayout, raw)
		return err == nil
	default:
		return false
	}
}

func isPhone(raw string) bool {
	if len(raw) != phoneLen {
		return false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return false
		}
	}
	return true
}

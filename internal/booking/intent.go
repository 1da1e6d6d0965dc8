package booking

import "strings"

// DefaultIntentKeywords trigger a new booking when found anywhere in a message.
var DefaultIntentKeywords = []string{"book", "booking", "appointment", "reservation", "reserve", "schedule"}

// IntentClassifier is a substring heuristic. "I read a book" is a booking
// request for it, and paraphrases without a keyword are not.
type IntentClassifier struct {
	keywords []string
}

// NewIntentClassifier uses DefaultIntentKeywords when keywords is empty.
func NewIntentClassifier(keywords []string) *IntentClassifier {
	if len(keywords) == 0 {
		keywords = DefaultIntentKeywords
	}
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	return &IntentClassifier{keywords: kw}
}

// DetectsBookingIntent reports whether message contains any keyword.
func (c *IntentClassifier) DetectsBookingIntent(message string) bool {
	lower := strings.ToLower(message)
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

var defaultClassifier = NewIntentClassifier(nil)

// DetectsIntent runs the default classifier.
func DetectsIntent(message string) bool {
	return defaultClassifier.DetectsBookingIntent(message)
}

package booking

import (
	"regexp"
	"strings"
)

var (
	prefillEmailRe = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)
	prefillPhoneRe = regexp.MustCompile(`\b\d{10}\b`)
	prefillNameRe  = regexp.MustCompile(`Name[:\- ]+([A-Za-z ]+)`)
	prefillDateRe  = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	prefillTimeRe  = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
)

// ExtractFields finds booking values in free document text. Only values that
// pass Validate are returned.
func ExtractFields(text string) Draft {
	d := Draft{}
	add := func(f Field, v string) {
		v = strings.TrimSpace(v)
		if Validate(f, v) {
			d[f] = v
		}
	}
	if m := prefillEmailRe.FindString(text); m != "" {
		add(FieldEmail, m)
	}
	if m := prefillPhoneRe.FindString(text); m != "" {
		add(FieldPhone, m)
	}
	if m := prefillNameRe.FindStringSubmatch(text); len(m) == 2 {
		add(FieldName, m[1])
	}
	if m := prefillDateRe.FindString(text); m != "" {
		add(FieldDate, m)
	}
	if m := prefillTimeRe.FindString(text); m != "" {
		add(FieldTime, m)
	}
	return d
}

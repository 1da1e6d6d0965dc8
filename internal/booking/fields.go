package booking

// Field names one slot of a booking draft.
type Field string

const (
	FieldName        Field = "name"
	FieldEmail       Field = "email"
	FieldPhone       Field = "phone"
	FieldBookingType Field = "booking_type"
	FieldDate        Field = "date"
	FieldTime        Field = "time"
)

// Fields is the fixed collection order. Every booking needs all of them.
var Fields = []Field{FieldName, FieldEmail, FieldPhone, FieldBookingType, FieldDate, FieldTime}

var prompts = map[Field]string{
	FieldName:        "Please tell me your full name.",
	FieldEmail:       "Please provide your email address.",
	FieldPhone:       "Please provide your 10-digit phone number.",
	FieldBookingType: "What type of booking do you want?",
	FieldDate:        "Enter date (YYYY-MM-DD).",
	FieldTime:        "Enter time (HH:MM).",
}

var labels = map[Field]string{
	FieldName:        "name",
	FieldEmail:       "email",
	FieldPhone:       "phone",
	FieldBookingType: "booking type",
	FieldDate:        "date",
	FieldTime:        "time",
}

// Prompt returns the question asked when f is the active field.
func (f Field) Prompt() string { return prompts[f] }

// Label returns a human readable field name.
func (f Field) Label() string {
	if l, ok := labels[f]; ok {
		return l
	}
	return string(f)
}

// Valid reports whether f is one of Fields.
func (f Field) Valid() bool {
	_, ok := prompts[f]
	return ok
}

// Draft holds the validated values collected so far.
type Draft map[Field]string

// NextMissing returns the first field in collection order that has no value,
// or "" when the draft is complete.
func (d Draft) NextMissing() Field {
	for _, f := range Fields {
		if _, ok := d[f]; !ok {
			return f
		}
	}
	return ""
}

// Complete reports whether every field is present.
func (d Draft) Complete() bool { return d.NextMissing() == "" }

// Clone returns an independent copy of d.
func (d Draft) Clone() Draft {
	out := make(Draft, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

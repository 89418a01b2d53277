package listview

import (
	"cmp"
	"strconv"
	"strings"
	"time"
)

// Kind identifies how a field value is ordered.
type Kind int

const (
	KindMissing Kind = iota
	KindText
	KindNumber
	KindDate
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Value is a typed field value extracted from a record. A Value may be
// undefined: missing fields and unparseable dates both report Defined() false.
type Value struct {
	kind    Kind
	text    string
	number  float64
	instant time.Time
	defined bool
}

// Text wraps a string value.
func Text(s string) Value {
	return Value{kind: KindText, text: s, defined: true}
}

// Number wraps a numeric value.
func Number(n float64) Value {
	return Value{kind: KindNumber, number: n, defined: true}
}

// Int wraps an integer value.
func Int(n int) Value {
	return Number(float64(n))
}

// Date parses raw into an instant. Unparseable input yields an undefined date.
func Date(raw string) Value {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return Value{kind: KindDate, text: raw, instant: parsed, defined: true}
		}
	}
	return Value{kind: KindDate, text: raw}
}

// Missing is the undefined value.
func Missing() Value {
	return Value{}
}

// Optional wraps a possibly-nil string pointer as text.
func Optional(s *string) Value {
	if s == nil {
		return Missing()
	}
	return Text(*s)
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) Defined() bool { return v.defined }

// String returns the textual form used for categorical equality.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	default:
		return v.text
	}
}

// Instant returns the parsed time of a defined date value.
func (v Value) Instant() (time.Time, bool) {
	if v.kind != KindDate || !v.defined {
		return time.Time{}, false
	}
	return v.instant, true
}

// compareValues orders two values. Undefined values sort lowest. Values of
// different kinds fall back to their textual form.
func compareValues(a, b Value) int {
	switch {
	case !a.defined && !b.defined:
		return 0
	case !a.defined:
		return -1
	case !b.defined:
		return 1
	}
	if a.kind != b.kind {
		return strings.Compare(a.String(), b.String())
	}
	switch a.kind {
	case KindNumber:
		return cmp.Compare(a.number, b.number)
	case KindDate:
		return a.instant.Compare(b.instant)
	default:
		return strings.Compare(a.text, b.text)
	}
}

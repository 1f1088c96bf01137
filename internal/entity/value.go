package entity

import (
	"strconv"
	"strings"
)

// Kind identifies which member of a Value is set.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindText
	KindInt
	KindFloat
	KindBool
)

// Value is an entity value. The zero Value is empty.
type Value struct {
	kind     Kind
	text     string
	integer  int64
	float    float64
	decimals int
	boolean  bool
}

// Text returns a text value. An empty string yields the empty Value.
func Text(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: KindText, text: s}
}

// Int returns an integer value.
func Int(n int64) Value { return Value{kind: KindInt, integer: n} }

// Float returns a float value printed with the given number of decimals.
func Float(f float64, decimals int) Value {
	if decimals < 0 {
		decimals = 0
	}
	return Value{kind: KindFloat, float: f, decimals: decimals}
}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Kind returns the member that is set.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether the value carries nothing.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// String renders the broker wire form.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindInt:
		return strconv.FormatInt(v.integer, 10)
	case KindFloat:
		return strconv.FormatFloat(v.float, 'f', v.decimals, 64)
	case KindBool:
		if v.boolean {
			return "ON"
		}
		return "OFF"
	default:
		return ""
	}
}

// Equal compares wire forms, so Float(1, 1) equals Text("1.0").
func (v Value) Equal(o Value) bool { return v.String() == o.String() }

// Int returns the value as an integer. Text is read up to the first
// character that is not part of a number; anything unreadable yields 0.
func (v Value) Int() int64 {
	switch v.kind {
	case KindInt:
		return v.integer
	case KindFloat:
		return int64(v.float)
	case KindBool:
		if v.boolean {
			return 1
		}
		return 0
	case KindText:
		n, _ := strconv.ParseInt(numericPrefix(v.text, false), 10, 64)
		return n
	default:
		return 0
	}
}

// Float returns the value as a float. Unreadable text yields 0.
func (v Value) Float() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.integer)
	case KindFloat:
		return v.float
	case KindBool:
		if v.boolean {
			return 1
		}
		return 0
	case KindText:
		f, _ := strconv.ParseFloat(numericPrefix(v.text, true), 64)
		return f
	default:
		return 0
	}
}

// Bool reports whether the value reads as true: "true", "on" or "online" in
// any case, or exactly "1".
func (v Value) Bool() bool {
	switch v.kind {
	case KindBool:
		return v.boolean
	case KindEmpty:
		return false
	}
	s := v.String()
	return strings.EqualFold(s, "true") || strings.EqualFold(s, "on") || strings.EqualFold(s, "online") || s == "1"
}

// numericPrefix returns the leading number in s after optional spaces,
// e.g. "21.5C" -> "21.5". withFraction allows one decimal point.
func numericPrefix(s string, withFraction bool) string {
	s = strings.TrimLeft(s, " \t")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	point := false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && withFraction && !point {
			point = true
			end++
			continue
		}
		break
	}
	return strings.TrimSuffix(s[:end], ".")
}

// computeDecimals counts the characters after the first '.' in a resolution
// string: "0.01" -> 2, "1" -> 0.
func computeDecimals(resolution string) int {
	p := strings.IndexByte(resolution, '.')
	if p < 0 {
		return 0
	}
	return len(resolution) - p - 1
}

// isFloatLike accepts an optional leading '-', at most one '.', and at least
// one digit. Nothing else is allowed.
func isFloatLike(s string) bool {
	if s == "" {
		return false
	}
	point, digit := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '-' && i == 0:
		case c == '.':
			if point {
				return false
			}
			point = true
		case c >= '0' && c <= '9':
			digit = true
		default:
			return false
		}
	}
	return digit
}

// normalize parses s into a Value. With numeric set, float-like text is
// re-printed with the given precision; everything else stays text.
func normalize(s string, decimals int, numeric bool) Value {
	if numeric && isFloatLike(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return Float(f, decimals)
		}
	}
	return Text(s)
}

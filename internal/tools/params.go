package tools

import (
	"encoding/json"
	"regexp"
	"time"
)

// Params is the loosely-typed parameter bag proposed by the model.
// Values arrive from JSON decoding and may be float64, string, bool,
// json.Number or missing entirely.
type Params map[string]any

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDate reports whether s is a calendar-valid YYYY-MM-DD date.
func ValidDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// Int extracts an integer parameter, tolerating the numeric types JSON
// decoding produces. Zero is treated as absent: these parameters are counts
// and windows where zero is never a meaningful model choice.
func (p Params) Int(key string) (int, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}
	switch x := v.(type) {
	case int:
		if x == 0 {
			return 0, false
		}
		return x, true
	case int64:
		if x == 0 {
			return 0, false
		}
		return int(x), true
	case float64:
		if x == 0 {
			return 0, false
		}
		return int(x), true
	case json.Number:
		i, err := x.Int64()
		if err != nil || i == 0 {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// Float extracts a float parameter. Unlike Int, zero is a valid value here
// only when the key is explicitly present as a number.
func (p Params) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String extracts a non-empty string parameter.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// IntOr returns the parameter or a default when absent or malformed.
func (p Params) IntOr(key string, def int) int {
	if v, ok := p.Int(key); ok {
		return v
	}
	return def
}

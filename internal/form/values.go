package form

import (
	"strconv"
	"strings"
)

// Values maps field names to their captured value. Values are strings or booleans.
type Values map[string]interface{}

// String returns the value of name as a string; booleans render as "true"/"false".
func (v Values) String(name string) string {
	switch val := v[name].(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

// Bool reports whether a checkbox value is checked.
func (v Values) Bool(name string) bool {
	switch val := v[name].(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "on", "yes", "1":
			return true
		}
	}
	return false
}

// Clone copies the map.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// WithoutSensitive returns a copy without the identity number under any key variant.
func (v Values) WithoutSensitive() Values {
	out := make(Values, len(v))
	for k, val := range v {
		if IsSensitiveField(k) {
			continue
		}
		out[k] = val
	}
	return out
}

// normalizeValue coerces JSON-decoded input to a string or bool.
// ok is false for nil, which callers treat as "clear the field".
func normalizeValue(raw interface{}) (interface{}, bool) {
	switch val := raw.(type) {
	case nil:
		return nil, false
	case string:
		return val, true
	case bool:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	}
	return nil, false
}

// Package parsing contains the coercion helpers shared by the document,
// test and benchmark parsers. Document nodes arrive as the generic values
// produced by yaml.v3 or encoding/json.
package parsing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotMapping is returned when a node must be a mapping (or a list of
	// single-key mappings) and is not.
	ErrNotMapping = errors.New("expected a mapping")
	// ErrWrongType is returned when a scalar cannot be coerced.
	ErrWrongType = errors.New("wrong type")
)

// Normalize walks v and rewrites map[interface{}]interface{} values whose keys
// are all strings into map[string]interface{}. Mappings with non-string keys
// are left untouched so callers can report them.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				return t
			}
			out[ks] = Normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}

// FlattenDictionaries accepts a mapping or a list of mappings and merges them
// into a single mapping. Later entries win on duplicate keys.
func FlattenDictionaries(v interface{}) (map[string]interface{}, error) {
	switch t := Normalize(v).(type) {
	case map[string]interface{}:
		return t, nil
	case []interface{}:
		out := make(map[string]interface{})
		for i, item := range t {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: list entry %d is %T", ErrNotMapping, i, item)
			}
			for k, val := range m {
				out[k] = val
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNotMapping, v)
	}
}

// LowercaseKeys returns a copy of m with lowercased keys.
func LowercaseKeys(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Node flattens and lowercases a configuration node in one step.
func Node(v interface{}) (map[string]interface{}, error) {
	m, err := FlattenDictionaries(v)
	if err != nil {
		return nil, err
	}
	return LowercaseKeys(m), nil
}

// String coerces a scalar to a string. Numbers and booleans are formatted;
// anything else is rejected.
func String(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("%w: expected string, got %T", ErrWrongType, v)
	}
}

// Int coerces v to an int. Strings are parsed; floats must be integral.
func Int(v interface{}) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case uint64:
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrWrongType, t)
		}
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrWrongType, t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: expected integer, got %T", ErrWrongType, v)
	}
}

// Float coerces v to a float64.
func Float(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrWrongType, t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: expected number, got %T", ErrWrongType, v)
	}
}

// Bool coerces v to a bool. Strings accept true/false/yes/no/1/0.
func Bool(v interface{}) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int:
		return t != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0", "":
			return false, nil
		}
		return false, fmt.Errorf("%w: %q is not a boolean", ErrWrongType, t)
	default:
		return false, fmt.Errorf("%w: expected boolean, got %T", ErrWrongType, v)
	}
}

// StringList accepts a single string or a list of scalars.
func StringList(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, err := String(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return append([]string(nil), t...), nil
	default:
		return nil, fmt.Errorf("%w: expected list, got %T", ErrWrongType, v)
	}
}

// IntList accepts a single integer or a list of integers.
func IntList(v interface{}) ([]int, error) {
	items, ok := v.([]interface{})
	if !ok {
		n, err := Int(v)
		if err != nil {
			return nil, err
		}
		return []int{n}, nil
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := Int(item)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseDurationString parses a Go duration string, falling back to an
// integer number of seconds.
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if seconds, err := strconv.Atoi(s); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// Duration accepts a duration string or a plain number of seconds.
func Duration(v interface{}) (time.Duration, error) {
	switch t := v.(type) {
	case string:
		return ParseDurationString(t)
	case int, int64, float64:
		f, _ := Float(t)
		return time.Duration(f * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("%w: expected duration, got %T", ErrWrongType, v)
	}
}

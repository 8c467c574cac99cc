package shell

import (
	"fmt"
	"strings"
)

// argError marks a validation failure; the dispatcher maps it to the
// invalid_arguments code.
type argError struct{ msg string }

func (e *argError) Error() string { return e.msg }

func argErrorf(format string, a ...any) *argError {
	return &argError{msg: fmt.Sprintf(format, a...)}
}

// requiredString fetches a string argument that must be non-empty after
// trimming.
func requiredString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", argErrorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", argErrorf("argument %q must be a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", argErrorf("argument %q must not be empty", key)
	}
	return s, nil
}

// optionalString fetches a string argument, empty when absent.
func optionalString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", argErrorf("argument %q must be a string", key)
	}
	return strings.TrimSpace(s), nil
}

// optionalInt fetches an integer argument, 0 when absent. JSON numbers
// arrive as float64.
func optionalInt(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, argErrorf("argument %q must be an integer", key)
		}
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, argErrorf("argument %q must be an integer", key)
	}
}

// optionalLimit fetches the limit argument, 0 when absent. An explicit limit
// must be a positive integer; defaulting happens downstream only for absent
// values.
func optionalLimit(args map[string]any) (int, error) {
	n, err := optionalInt(args, "limit")
	if err != nil {
		return 0, err
	}
	if v, present := args["limit"]; present && v != nil && n < 1 {
		return 0, argErrorf("argument %q must be a positive integer", "limit")
	}
	return n, nil
}

// optionalBool fetches a boolean argument, false when absent.
func optionalBool(args map[string]any, key string) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, argErrorf("argument %q must be a boolean", key)
	}
	return b, nil
}

// optionalEnum fetches a string argument constrained to allowed values.
func optionalEnum(args map[string]any, key string, allowed ...string) (string, error) {
	s, err := optionalString(args, key)
	if err != nil || s == "" {
		return s, err
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", argErrorf("argument %q must be one of %s", key, strings.Join(allowed, ", "))
}

// anyOf ensures at least one of the named arguments is a non-empty string.
func anyOf(args map[string]any, keys ...string) error {
	for _, key := range keys {
		if s, err := optionalString(args, key); err == nil && s != "" {
			return nil
		}
	}
	return argErrorf("at least one of %s is required", strings.Join(keys, ", "))
}

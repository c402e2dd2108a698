package cmd

import (
	"fmt"
	"strconv"
	"strings"
)

// parseInjection parses a --inject flag value "time:type[:payload]". The
// payload is read as a bool, then an integer, then a float, else kept as a
// string.
func parseInjection(s string) (InjectionSpec, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[1] == "" {
		return InjectionSpec{}, fmt.Errorf("injection %q: expected time:type[:payload]", s)
	}
	t, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || t < 0 {
		return InjectionSpec{}, fmt.Errorf("injection %q: time must be a non-negative number", s)
	}
	spec := InjectionSpec{Time: t, Type: parts[1]}
	if len(parts) == 3 {
		spec.Payload = parsePayload(parts[2])
	}
	return spec, nil
}

func parsePayload(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

package gtfs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformedTime = errors.New("malformed time of day")

// ParseTimeOfDay parses GTFS HH:MM:SS into seconds since the start of the
// service day. Hours >= 24 are kept as-is (next-day service). Empty input is
// absent: ok is false and err is nil.
func ParseTimeOfDay(s string) (sec int, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	var v [3]int
	for i, p := range parts {
		if !allDigits(p) {
			return 0, false, fmt.Errorf("%w: %q", ErrMalformedTime, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, false, fmt.Errorf("%w: %q", ErrMalformedTime, s)
		}
		v[i] = n
	}
	if v[1] >= 60 || v[2] >= 60 {
		return 0, false, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	return v[0]*3600 + v[1]*60 + v[2], true, nil
}

// allDigits rejects what Atoi would otherwise accept, such as a sign.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationToken = regexp.MustCompile(`(\d+(?:\.\d+)?|\.\d+)\s*([a-z]*)`)

var durationUnits = map[string]time.Duration{
	"":             time.Millisecond,
	"ms":           time.Millisecond,
	"msec":         time.Millisecond,
	"millisecond":  time.Millisecond,
	"milliseconds": time.Millisecond,
	"s":            time.Second,
	"sec":          time.Second,
	"secs":         time.Second,
	"second":       time.Second,
	"seconds":      time.Second,
	"m":            time.Minute,
	"min":          time.Minute,
	"mins":         time.Minute,
	"minute":       time.Minute,
	"minutes":      time.Minute,
	"h":            time.Hour,
	"hr":           time.Hour,
	"hrs":          time.Hour,
	"hour":         time.Hour,
	"hours":        time.Hour,
	"d":            24 * time.Hour,
	"day":          24 * time.Hour,
	"days":         24 * time.Hour,
	"w":            7 * 24 * time.Hour,
	"week":         7 * 24 * time.Hour,
	"weeks":        7 * 24 * time.Hour,
}

// ParseDuration parses human durations such as "1s", "5min", "2h" or
// "1h 30min". A bare number is read as milliseconds. The result must be
// positive.
func ParseDuration(input string) (time.Duration, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	matches := durationToken.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid duration %q", input)
	}

	var total time.Duration
	pos := 0
	for _, m := range matches {
		if strings.TrimSpace(s[pos:m[0]]) != "" {
			return 0, fmt.Errorf("invalid duration %q", input)
		}
		pos = m[1]

		value, err := strconv.ParseFloat(s[m[2]:m[3]], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", input, err)
		}
		unit, ok := durationUnits[s[m[4]:m[5]]]
		if !ok {
			return 0, fmt.Errorf("unknown unit %q in duration %q", s[m[4]:m[5]], input)
		}
		total += time.Duration(value * float64(unit))
	}
	if strings.TrimSpace(s[pos:]) != "" {
		return 0, fmt.Errorf("invalid duration %q", input)
	}

	if total <= 0 {
		return 0, fmt.Errorf("duration %q must be greater than 0", input)
	}
	return total, nil
}

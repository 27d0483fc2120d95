package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

const (
	MinRetryDelay = time.Minute
	MaxRetryDelay = 24 * time.Hour
)

var (
	ErrRetryDelayOutOfRange = errors.New("retry delay out of range")
	ErrRetryDelayUnparsable = errors.New("retry delay unparsable")
)

// DefaultRetryDelay applies when nothing is configured for an action.
var DefaultRetryDelay = RetryDelay{d: 15 * time.Minute}

// RetryDelay is the time to wait before polling the provider again. It
// always lies within [MinRetryDelay, MaxRetryDelay]; the zero value is
// treated as DefaultRetryDelay.
type RetryDelay struct {
	d time.Duration
}

// NewRetryDelay fails when d is out of bounds.
func NewRetryDelay(d time.Duration) (RetryDelay, error) {
	if d < MinRetryDelay || d > MaxRetryDelay {
		return RetryDelay{}, fmt.Errorf("%w: %s not within [%s, %s]", ErrRetryDelayOutOfRange, d, MinRetryDelay, MaxRetryDelay)
	}
	return RetryDelay{d: d}, nil
}

// SaturatedRetryDelay clamps d to the nearest bound.
func SaturatedRetryDelay(d time.Duration) RetryDelay {
	return RetryDelay{d: min(max(d, MinRetryDelay), MaxRetryDelay)}
}

// ParseRetryDelay reads a bare integer as seconds and anything else as a
// duration ("15m", "1h30m", "2d"). Out of range values are rejected.
func ParseRetryDelay(text string) (RetryDelay, error) {
	d, err := parseDelayText(text)
	if err != nil {
		return RetryDelay{}, err
	}
	return NewRetryDelay(d)
}

// SaturatedParseRetryDelay is ParseRetryDelay with clamping instead of
// range errors. Unparsable text still fails.
func SaturatedParseRetryDelay(text string) (RetryDelay, error) {
	d, err := parseDelayText(text)
	if err != nil {
		return RetryDelay{}, err
	}
	return SaturatedRetryDelay(d), nil
}

// RetryDelayFromAny accepts a RetryDelay, a time.Duration, a number of
// seconds or text. It never fails; ok is false when v carries no usable
// delay.
func RetryDelayFromAny(v any) (RetryDelay, bool) {
	switch t := v.(type) {
	case nil:
		return RetryDelay{}, false
	case RetryDelay:
		return t.normalized(), true
	case *RetryDelay:
		if t == nil {
			return RetryDelay{}, false
		}
		return t.normalized(), true
	case time.Duration:
		return SaturatedRetryDelay(t), true
	case int:
		return saturatedSeconds(int64(t)), true
	case int8:
		return saturatedSeconds(int64(t)), true
	case int16:
		return saturatedSeconds(int64(t)), true
	case int32:
		return saturatedSeconds(int64(t)), true
	case int64:
		return saturatedSeconds(t), true
	case uint:
		return saturatedUnsignedSeconds(uint64(t)), true
	case uint8:
		return saturatedSeconds(int64(t)), true
	case uint16:
		return saturatedSeconds(int64(t)), true
	case uint32:
		return saturatedSeconds(int64(t)), true
	case uint64:
		return saturatedUnsignedSeconds(t), true
	case float32:
		return saturatedFloatSeconds(float64(t))
	case float64:
		return saturatedFloatSeconds(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return saturatedSeconds(n), true
		}
		if f, err := t.Float64(); err == nil {
			return saturatedFloatSeconds(f)
		}
		return RetryDelay{}, false
	case string:
		rd, err := SaturatedParseRetryDelay(t)
		return rd, err == nil
	case fmt.Stringer:
		rd, err := SaturatedParseRetryDelay(t.String())
		return rd, err == nil
	default:
		return RetryDelay{}, false
	}
}

func (r RetryDelay) normalized() RetryDelay {
	if r.d == 0 {
		return DefaultRetryDelay
	}
	return r
}

func (r RetryDelay) Duration() time.Duration {
	return r.normalized().d
}

func (r RetryDelay) Seconds() int64 {
	return int64(r.Duration() / time.Second)
}

// SecondsInt fits any valid delay since MaxRetryDelay is 86400 seconds.
func (r RetryDelay) SecondsInt() int {
	return int(r.Seconds())
}

func (r RetryDelay) Compare(other RetryDelay) int {
	a, b := r.Duration(), other.Duration()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders the delay like "1d2h30m" with zero components omitted.
func (r RetryDelay) String() string {
	remaining := r.Duration()
	var b strings.Builder
	for _, unit := range []struct {
		size   time.Duration
		suffix string
	}{
		{24 * time.Hour, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	} {
		if n := remaining / unit.size; n > 0 {
			b.WriteString(strconv.FormatInt(int64(n), 10))
			b.WriteString(unit.suffix)
			remaining -= n * unit.size
		}
	}
	if remaining > 0 {
		b.WriteString(remaining.String())
	}
	return b.String()
}

func (r RetryDelay) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText clamps, so operator supplied configuration never fails on range.
func (r *RetryDelay) UnmarshalText(text []byte) error {
	parsed, err := SaturatedParseRetryDelay(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

var simpleDelayPattern = regexp.MustCompile(`^([+-]?\d+)\s*(ns|us|µs|ms|s|m|h|d)$`)

var unitSizes = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"µs": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
}

// parseDelayText saturates numeric overflow to the extreme durations so
// that callers see it as out of range rather than unparsable.
func parseDelayText(text string) (time.Duration, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty text", ErrRetryDelayUnparsable)
	}

	if isInteger(trimmed) {
		return scaleSaturated(trimmed, time.Second), nil
	}
	if m := simpleDelayPattern.FindStringSubmatch(strings.ToLower(trimmed)); m != nil {
		return scaleSaturated(m[1], unitSizes[m[2]]), nil
	}

	d, err := str2duration.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrRetryDelayUnparsable, text, err)
	}
	return d, nil
}

func isInteger(s string) bool {
	digits := strings.TrimLeft(s, "+-")
	if len(s)-len(digits) > 1 || digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func scaleSaturated(number string, unit time.Duration) time.Duration {
	n, err := strconv.ParseInt(number, 10, 64)
	negative := strings.HasPrefix(number, "-")
	if err != nil {
		// only ErrRange is possible for a validated integer
		if negative {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	if n > int64(math.MaxInt64/unit) {
		return math.MaxInt64
	}
	if n < int64(math.MinInt64/unit) {
		return math.MinInt64
	}
	return time.Duration(n) * unit
}

func saturatedSeconds(n int64) RetryDelay {
	return SaturatedRetryDelay(scaleSaturated(strconv.FormatInt(n, 10), time.Second))
}

func saturatedUnsignedSeconds(n uint64) RetryDelay {
	if n > math.MaxInt64 {
		return SaturatedRetryDelay(math.MaxInt64)
	}
	return saturatedSeconds(int64(n))
}

func saturatedFloatSeconds(f float64) (RetryDelay, bool) {
	if math.IsNaN(f) {
		return RetryDelay{}, false
	}
	seconds := f * float64(time.Second)
	switch {
	case seconds >= math.MaxInt64:
		return SaturatedRetryDelay(math.MaxInt64), true
	case seconds <= math.MinInt64:
		return SaturatedRetryDelay(math.MinInt64), true
	default:
		return SaturatedRetryDelay(time.Duration(seconds)), true
	}
}

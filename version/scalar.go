package version

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned when the version table holds a value that
// cannot be read as an integer version. Value carries the raw scalar for
// diagnostics.
type ErrInvalidVersion struct {
	Value any
}

// Error returns the formatted error message for ErrInvalidVersion.
func (e *ErrInvalidVersion) Error() string {
	return fmt.Sprintf("version value %v (%T) cannot be read as an integer", e.Value, e.Value)
}

// toVersion normalizes the scalar returned by the current-version
// statement. Drivers disagree on the concrete type, so every integer
// width, integral floats, and numeric text are accepted.
func toVersion(value any) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, &ErrInvalidVersion{Value: value}
		}
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, &ErrInvalidVersion{Value: value}
		}
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, &ErrInvalidVersion{Value: value}
		}
		return int64(v), nil
	case float32:
		return toVersion(float64(v))
	case []byte:
		return parseVersion(string(v), value)
	case string:
		return parseVersion(v, value)
	default:
		return 0, &ErrInvalidVersion{Value: value}
	}
}

func parseVersion(text string, raw any) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, &ErrInvalidVersion{Value: raw}
	}
	return n, nil
}

const ellipsis = "..."

// truncateDescription shortens text to at most limit characters, ending in
// an ellipsis. A limit of zero disables truncation; limits shorter than
// the ellipsis itself cut hard.
func truncateDescription(text string, limit int) string {
	if limit <= 0 {
		return text
	}

	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= len(ellipsis) {
		return string(runes[:limit])
	}

	return string(runes[:limit-len(ellipsis)]) + ellipsis
}

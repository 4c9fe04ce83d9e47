package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/agentic-research/fieldmap/internal/mapping"
)

// dateLayouts are tried in order when date detection is on.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05 -0700",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

func parseDate(s string) (time.Time, bool) {
	// cheap reject before trying every layout
	if len(s) < 10 || s[0] < '0' || s[0] > '9' {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// rawTypeOf derives the raw type of a scalar document value. ok is false for
// values that are not scalars (maps, slices, nil) or not supported.
func rawTypeOf(v any, dateDetection bool) (raw mapping.RawType, ok bool) {
	switch x := v.(type) {
	case string:
		if dateDetection {
			if _, isDate := parseDate(x); isDate {
				return mapping.RawDate, true
			}
		}
		return mapping.RawString, true
	case bool:
		return mapping.RawBoolean, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return mapping.RawLong, true
	case float32, float64:
		return mapping.RawDouble, true
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return mapping.RawLong, true
		}
		return mapping.RawDouble, true
	case time.Time:
		return mapping.RawDate, true
	}
	return "", false
}

// coerce converts a document value into the Go representation stored for
// type t. The caller has already checked raw against the compatibility
// matrix; coerce fails only for values that cannot be represented.
func coerce(t mapping.FieldType, v any) (any, error) {
	switch t {
	case mapping.TypeText, mapping.TypeKeyword:
		return toString(v), nil
	case mapping.TypeLong:
		return toInt64(v)
	case mapping.TypeDouble:
		return toFloat64(v)
	case mapping.TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case mapping.TypeDate:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			if d, ok := parseDate(x); ok {
				return d, nil
			}
		default:
			if ms, err := toInt64(v); err == nil {
				return time.UnixMilli(ms).UTC(), nil
			}
		}
	}
	return nil, fmt.Errorf("cannot convert %v (%T) to %s", v, v, t)
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case json.Number:
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows long", x)
		}
		return int64(x), nil
	case float32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		return int64(f), err
	}
	return 0, fmt.Errorf("%v (%T) is not a number", v, v)
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	}
	i, err := toInt64(v)
	return float64(i), err
}

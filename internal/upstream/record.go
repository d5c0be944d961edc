package upstream

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// Record is one row returned by search_read. Empty upstream fields arrive as
// JSON false; every accessor maps them to the zero value.
type Record map[string]any

// ID returns the record id.
func (r Record) ID() int64 {
	return r.Int64("id")
}

// Int64 reads an integer field.
func (r Record) Int64(key string) int64 {
	switch v := r[key].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0
			}
			return int64(f)
		}
		return n
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

// String reads a text or selection field.
func (r Record) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Decimal reads a monetary or float field exactly as transmitted.
func (r Record) Decimal(key string) decimal.Decimal {
	switch v := r[key].(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// Many2One reads a [id, "display name"] reference. ok is false when the
// reference is empty or malformed.
func (r Record) Many2One(key string) (int64, string, bool) {
	pair, isSlice := r[key].([]any)
	if !isSlice || len(pair) == 0 {
		return 0, "", false
	}
	id := Record{"id": pair[0]}.ID()
	if id <= 0 {
		return 0, "", false
	}
	name := ""
	if len(pair) > 1 {
		name, _ = pair[1].(string)
	}
	return id, name, true
}

// Time reads a date or datetime field in UTC.
func (r Record) Time(key string) (time.Time, bool) {
	raw := strings.TrimSpace(r.String(key))
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{datetimeLayout, dateLayout, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDatetime renders t the way the upstream expects datetime values.
func FormatDatetime(t time.Time) string {
	return t.UTC().Format(datetimeLayout)
}

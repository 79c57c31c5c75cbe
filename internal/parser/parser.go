package parser

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/foreseon/IntelXScan/internal/config"
	"github.com/foreseon/IntelXScan/internal/model"
)

// DefaultFields matches the Intelligence X result format.
var DefaultFields = config.FieldsConfig{Content: "linea", Added: "item.added"}

// Normalize extracts a LeakRecord from raw. The values are kept verbatim;
// ok is false when either field is missing, not a string, or empty.
func Normalize(raw model.RawRecord, fields config.FieldsConfig) (model.LeakRecord, bool) {
	content := getString(raw, fields.Content)
	added := getString(raw, fields.Added)
	if content == "" || added == "" {
		return model.LeakRecord{}, false
	}
	return model.LeakRecord{Content: content, AddedAt: added}, true
}

// NormalizeAll drops unusable records and sorts the rest by AddedAt.
//
// Ordering is by the raw string, so "…:00.5" sorts after "…:00.123456"
// even though it is earlier. Baseline files depend on this order.
func NormalizeAll(raws []model.RawRecord, fields config.FieldsConfig) []model.LeakRecord {
	out := make([]model.LeakRecord, 0, len(raws))
	for _, raw := range raws {
		if rec, ok := Normalize(raw, fields); ok {
			out = append(out, rec)
		}
	}
	SortByAdded(out)
	return out
}

// SortByAdded is a stable ascending sort on the AddedAt string.
func SortByAdded(records []model.LeakRecord) {
	slices.SortStableFunc(records, func(a, b model.LeakRecord) int {
		return strings.Compare(a.AddedAt, b.AddedAt)
	})
}

const timestampLayout = "2006-01-02T15:04:05"

// ParseTimestamp parses an added-at value chronologically. A trailing "Z" is
// dropped, a trailing "+hh:mm" or "-hh:mm" offset is honored, and fractional
// seconds are right-padded or truncated to six digits. A space may stand in
// for the "T" separator. The result is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	v := strings.TrimSuffix(s, "Z")
	if len(v) > 10 && v[10] == ' ' {
		v = v[:10] + "T" + v[11:]
	}
	var offset string
	if n := len(v); n > len(timestampLayout) && (v[n-6] == '+' || v[n-6] == '-') && v[n-3] == ':' {
		v, offset = v[:n-6], v[n-6:]
	}
	layout := timestampLayout
	if base, frac, ok := strings.Cut(v, "."); ok {
		if len(frac) == 0 || strings.Trim(frac, "0123456789") != "" {
			return time.Time{}, fmt.Errorf("%w: %q", model.ErrMalformedTimestamp, s)
		}
		v = base + "." + PadFraction(frac)
		layout += ".000000"
	}
	if offset != "" {
		v += offset
		layout += "-07:00"
	}
	t, err := time.ParseInLocation(layout, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", model.ErrMalformedTimestamp, s, err)
	}
	return t.UTC(), nil
}

// PadFraction right-pads fractional-second digits with zeros to six places.
// Longer fractions are truncated to microseconds.
func PadFraction(frac string) string {
	if len(frac) >= 6 {
		return frac[:6]
	}
	return frac + strings.Repeat("0", 6-len(frac))
}

func lookupPath(data any, path string) any {
	if path == "" {
		return nil
	}
	cur := data
	for _, p := range strings.Split(path, ".") {
		if p == "" {
			continue
		}
		var m map[string]any
		switch v := cur.(type) {
		case model.RawRecord:
			m = v
		case map[string]any:
			m = v
		default:
			return nil
		}
		cur = m[p]
	}
	return cur
}

func getString(obj model.RawRecord, path string) string {
	s, _ := lookupPath(obj, path).(string)
	return s
}

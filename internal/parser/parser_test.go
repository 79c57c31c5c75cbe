package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foreseon/IntelXScan/internal/config"
	"github.com/foreseon/IntelXScan/internal/model"
)

func raw(linea any, added any) model.RawRecord {
	r := model.RawRecord{}
	if linea != nil {
		r["linea"] = linea
	}
	if added != nil {
		r["item"] = map[string]any{"added": added}
	}
	return r
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    model.RawRecord
		want   model.LeakRecord
		wantOK bool
	}{
		{
			name:   "both fields present",
			raw:    raw("a@example.com:pw", "2023-01-01T00:00:00Z"),
			want:   model.LeakRecord{Content: "a@example.com:pw", AddedAt: "2023-01-01T00:00:00Z"},
			wantOK: true,
		},
		{
			name:   "content kept verbatim",
			raw:    raw("  spaced  ", "2023-01-01T00:00:00.5"),
			want:   model.LeakRecord{Content: "  spaced  ", AddedAt: "2023-01-01T00:00:00.5"},
			wantOK: true,
		},
		{name: "missing content", raw: raw(nil, "2023-01-01T00:00:00")},
		{name: "missing item", raw: raw("x", nil)},
		{name: "empty content", raw: raw("", "2023-01-01T00:00:00")},
		{name: "empty added", raw: raw("x", "")},
		{name: "non-string content", raw: raw(42.0, "2023-01-01T00:00:00")},
		{name: "item not an object", raw: model.RawRecord{"linea": "x", "item": "2023"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Normalize(tc.raw, DefaultFields)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalize_CustomFields(t *testing.T) {
	fields := config.FieldsConfig{Content: "data.line", Added: "meta.ts"}
	r := model.RawRecord{
		"data": map[string]any{"line": "secret"},
		"meta": map[string]any{"ts": "2024-02-02T00:00:00"},
	}
	got, ok := Normalize(r, fields)
	require.True(t, ok)
	assert.Equal(t, model.LeakRecord{Content: "secret", AddedAt: "2024-02-02T00:00:00"}, got)
}

func TestNormalizeAll_FiltersAndSorts(t *testing.T) {
	raws := []model.RawRecord{
		raw("c", "2023-03-01T00:00:00"),
		raw(nil, "2023-01-01T00:00:00"),
		raw("a", "2023-01-01T00:00:00"),
		raw("b", "2023-02-01T00:00:00"),
		raw("a2", "2023-01-01T00:00:00"),
	}

	got := NormalizeAll(raws, DefaultFields)

	assert.Equal(t, []model.LeakRecord{
		{Content: "a", AddedAt: "2023-01-01T00:00:00"},
		{Content: "a2", AddedAt: "2023-01-01T00:00:00"},
		{Content: "b", AddedAt: "2023-02-01T00:00:00"},
		{Content: "c", AddedAt: "2023-03-01T00:00:00"},
	}, got)
}

func TestNormalizeAll_StringOrderNotChronological(t *testing.T) {
	raws := []model.RawRecord{
		raw("later", "2023-01-01T00:00:00.5"),
		raw("earlier", "2023-01-01T00:00:00.123456"),
	}
	got := NormalizeAll(raws, DefaultFields)
	require.Len(t, got, 2)
	assert.Equal(t, "earlier", got[0].Content)
	assert.Equal(t, "later", got[1].Content)

	a, err := ParseTimestamp(got[0].AddedAt)
	require.NoError(t, err)
	b, err := ParseTimestamp(got[1].AddedAt)
	require.NoError(t, err)
	assert.True(t, a.Before(b))
}

func TestNormalizeAll_Empty(t *testing.T) {
	assert.Empty(t, NormalizeAll(nil, DefaultFields))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2023-01-01T00:00:00.5", time.Date(2023, 1, 1, 0, 0, 0, 500000000, time.UTC)},
		{"2023-01-01T00:00:00Z", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2023-01-01T00:00:00.123456Z", time.Date(2023, 1, 1, 0, 0, 0, 123456000, time.UTC)},
		{"2023-06-30T12:34:56.07Z", time.Date(2023, 6, 30, 12, 34, 56, 70000000, time.UTC)},
		{"2023-06-30 12:34:56", time.Date(2023, 6, 30, 12, 34, 56, 0, time.UTC)},
		{"2023-01-01T00:00:00.1234567", time.Date(2023, 1, 1, 0, 0, 0, 123456000, time.UTC)},
		{"2023-01-01T00:00:00+00:00", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2023-01-01T00:00:00.5+00:00", time.Date(2023, 1, 1, 0, 0, 0, 500000000, time.UTC)},
		{"2023-01-01T02:30:00+02:30", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2022-12-31T23:00:00.25-01:00", time.Date(2023, 1, 1, 0, 0, 0, 250000000, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTimestamp(tc.in)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseTimestamp_Malformed(t *testing.T) {
	for _, in := range []string{
		"",
		"yesterday",
		"2023-13-01T00:00:00",
		"2023-01-01T00:00:00.",
		"2023-01-01T00:00:00.5x",
		"2023-01-01T00:00:00+0000",
		"2023-01-01T00:00:00+25:00",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTimestamp(in)
			assert.ErrorIs(t, err, model.ErrMalformedTimestamp)
		})
	}
}

func TestPadFraction(t *testing.T) {
	assert.Equal(t, "500000", PadFraction("5"))
	assert.Equal(t, "123456", PadFraction("123456"))
	assert.Equal(t, "070000", PadFraction("07"))
	assert.Equal(t, "123456", PadFraction("1234567"))
}

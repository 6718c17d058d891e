package scans

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	u := t.UTC()
	return &u
}

func TestMerge_DedupAndSort(t *testing.T) {
	existing := []Event{
		{Activity: "Picked Up", Timestamp: ts("2024-01-01T10:00:00Z")},
	}
	incoming := []Event{
		{Activity: "Picked Up", Timestamp: ts("2024-01-01T10:00:00Z")},
		{Activity: "In Transit", Timestamp: ts("2024-01-02T09:00:00Z")},
	}

	got := Merge(existing, incoming)
	require.Len(t, got, 2)
	require.Equal(t, "Picked Up", got[0].Activity)
	require.Equal(t, "In Transit", got[1].Activity)
}

func TestMerge_Idempotent(t *testing.T) {
	e := []Event{{Activity: "Booked", Timestamp: ts("2024-01-01T08:00:00Z")}}
	f := []Event{
		{Activity: "Picked Up", Timestamp: ts("2024-01-02T08:00:00Z")},
		{Activity: "Booked", Timestamp: ts("2024-01-01T08:00:00Z")},
	}

	once := Merge(e, f)
	twice := Merge(once, f)
	require.Equal(t, once, twice)
}

func TestMerge_NeverShrinks(t *testing.T) {
	e := []Event{
		{Activity: "A", Timestamp: ts("2024-03-01T00:00:00Z")},
		{Activity: "B"},
	}
	require.GreaterOrEqual(t, len(Merge(e, nil)), len(e))
	require.GreaterOrEqual(t, len(Merge(e, []Event{{Activity: "C"}})), len(e))
}

func TestMerge_NilTimestampsSortFirst(t *testing.T) {
	got := Merge(
		[]Event{{Activity: "timed", Timestamp: ts("2024-01-01T00:00:00Z")}},
		[]Event{{Activity: "untimed-1"}, {Activity: "untimed-2"}},
	)
	require.Len(t, got, 3)
	require.Nil(t, got[0].Timestamp)
	require.Nil(t, got[1].Timestamp)
	// stable: untimed events keep their relative order across merges
	require.Equal(t, "untimed-1", got[0].Activity)
	require.Equal(t, "untimed-2", got[1].Activity)
	require.Equal(t, "timed", got[2].Activity)
}

func TestMerge_DifferentLocationIsDifferentEvent(t *testing.T) {
	when := ts("2024-05-05T05:00:00Z")
	got := Merge(
		[]Event{{Activity: "In Transit", Location: "BLR", Timestamp: when}},
		[]Event{{Activity: "In Transit", Location: "DEL", Timestamp: when}},
	)
	require.Len(t, got, 2)
}

func TestParseTime_Formats(t *testing.T) {
	require.NotNil(t, ParseTime("2024-01-02T09:00:00Z"))
	require.NotNil(t, ParseTime("2024-01-02 09:00:00"))
	require.NotNil(t, ParseTime("02-01-2024 09:00"))
	require.NotNil(t, ParseTime("2024-01-02"))
	require.Nil(t, ParseTime(""))
	require.Nil(t, ParseTime("not a date"))
}

func TestFromAny_Shapes(t *testing.T) {
	// single object
	got := FromAny(map[string]any{"activity": "Picked Up", "date": "2024-01-02 09:00:00", "location": "BLR"})
	require.Len(t, got, 1)
	require.Equal(t, "Picked Up", got[0].Activity)
	require.Equal(t, "BLR", got[0].Location)
	require.NotNil(t, got[0].Timestamp)

	// array of objects with alias field names
	got = FromAny([]any{
		map[string]any{"scan": "Bagged", "scan_date": "2024-01-01 10:00:00"},
		map[string]any{"status_detail": "Out for delivery", "city": "DEL"},
	})
	require.Len(t, got, 2)
	require.Equal(t, "Bagged", got[0].Activity)
	require.Equal(t, "Out for delivery", got[1].Activity)

	// string-encoded JSON
	got = FromAny(`[{"activity":"In Transit","date":"2024-01-03T00:00:00Z"}]`)
	require.Len(t, got, 1)
	require.Equal(t, "In Transit", got[0].Activity)

	// junk entries are skipped, not fatal
	got = FromAny([]any{42, map[string]any{}, map[string]any{"activity": "ok"}})
	require.Len(t, got, 1)

	require.Nil(t, FromAny(nil))
}

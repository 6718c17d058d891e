package scans

import "encoding/json"

// Field aliases the carrier uses for the same thing across payload shapes.
var (
	activityAliases = []string{"activity", "scan", "status", "status_detail", "instructions", "description"}
	locationAliases = []string{"location", "scan_location", "city", "place"}
	timeAliases     = []string{"date", "time", "timestamp", "scan_date", "status_date_time", "updated_date"}
)

// FromAny flattens whatever the carrier put under its scans key into a flat
// event sequence: a single object, an array of objects, a string-encoded
// JSON blob, or an array mixing all of the above. Unrecognized entries are
// skipped rather than failing the whole batch.
func FromAny(v any) []Event {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		var out []Event
		for _, item := range t {
			out = append(out, FromAny(item)...)
		}
		return out
	case map[string]any:
		if e, ok := fromMap(t); ok {
			return []Event{e}
		}
		return nil
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(t), &decoded); err == nil {
			return FromAny(decoded)
		}
		if t != "" {
			// bare string entry: treat the text itself as the activity
			return []Event{{Activity: t}}
		}
		return nil
	default:
		return nil
	}
}

func fromMap(m map[string]any) (Event, bool) {
	var e Event
	e.Activity = firstString(m, activityAliases)
	e.Location = firstString(m, locationAliases)
	if raw := firstString(m, timeAliases); raw != "" {
		e.Timestamp = ParseTime(raw)
	}
	if e.Activity == "" && e.Location == "" && e.Timestamp == nil {
		return Event{}, false
	}
	return e, true
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

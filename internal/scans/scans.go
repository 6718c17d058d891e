// Package scans holds the order scan log: carrier checkpoint events and the
// merge that keeps the log grow-only and deterministically ordered.
package scans

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Event is one carrier-reported tracking checkpoint.
type Event struct {
	Activity  string     `json:"activity"`
	Location  string     `json:"location,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// key is the dedup identity: stable serialization of the full record.
// Two events are the same iff every field matches.
func (e Event) key() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Merge appends incoming events that are not already present and re-sorts
// the whole log ascending by timestamp. Events without a timestamp sort
// before events with one, stably, so repeated merges yield identical order.
// Existing events are never dropped.
func Merge(existing, incoming []Event) []Event {
	out := make([]Event, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, e := range existing {
		k := e.key()
		if _, dup := seen[k]; dup {
			// the stored log itself may carry historic duplicates; keep them,
			// we only guard against re-adding
			out = append(out, e)
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	for _, e := range incoming {
		k := e.key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Timestamp, out[j].Timestamp
		if ti == nil {
			return tj != nil
		}
		if tj == nil {
			return false
		}
		return ti.Before(*tj)
	})
	return out
}

// timeFormats covers the date spellings seen in carrier payloads.
var timeFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"02 Jan 2006 15:04",
	"2006-01-02",
}

// ParseTime parses a carrier timestamp string. Returns nil when no known
// format matches; an event with a nil timestamp still merges fine, it just
// sorts to the front.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, f := range timeFormats {
		if t, err := time.Parse(f, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

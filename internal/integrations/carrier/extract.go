package carrier

import (
	"encoding/json"
	"strconv"

	"github.com/pinecart/shipsync/internal/scans"
)

// Snapshot is what we could pull out of one tracking response, whatever its
// shape. Empty fields simply were not present.
type Snapshot struct {
	StatusText  string
	StatusCode  *int
	Waybill     string
	CourierName string
	TrackingURL string
	Events      []scans.Event
}

// Alias tables for the carrier's inconsistent field naming. Tried in order,
// first present value wins.
var (
	statusTextAliases = []string{"current_status", "shipment_status", "status", "tracking_status"}
	statusCodeAliases = []string{"current_status_id", "shipment_status_id", "status_code", "status_id"}
	waybillAliases    = []string{"awb", "awb_code", "waybill", "waybill_no", "tracking_number"}
	courierAliases    = []string{"courier_name", "courier", "carrier", "courier_company"}
	trackURLAliases   = []string{"track_url", "tracking_url", "track_link"}
	scanListAliases   = []string{"shipment_track_activities", "scans", "scan", "event_details", "checkpoints"}
)

// Extract normalizes one raw tracking response. Known shapes, tried in order:
//
//  1. {"tracking_data": {...}}        nested object
//  2. [{...}]                         array-wrapped object
//  3. {...}                           flat object
//
// Inside the object, the shipment_track array is the most specific source:
// when present, its first entry overrides top-level status/waybill/courier.
// Unknown shapes extract to an empty snapshot, never an error.
func Extract(raw json.RawMessage) Snapshot {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Snapshot{}
	}
	obj := unwrap(v)
	if obj == nil {
		return Snapshot{}
	}

	snap := Snapshot{
		StatusText:  firstString(obj, statusTextAliases),
		StatusCode:  firstInt(obj, statusCodeAliases),
		Waybill:     firstString(obj, waybillAliases),
		CourierName: firstString(obj, courierAliases),
		TrackingURL: firstString(obj, trackURLAliases),
	}

	for _, k := range scanListAliases {
		if list, ok := obj[k]; ok {
			snap.Events = scans.FromAny(list)
			break
		}
	}

	if track, ok := obj["shipment_track"].([]any); ok && len(track) > 0 {
		if entry, ok := track[0].(map[string]any); ok {
			if s := firstString(entry, statusTextAliases); s != "" {
				snap.StatusText = s
			}
			if c := firstInt(entry, statusCodeAliases); c != nil {
				snap.StatusCode = c
			}
			if w := firstString(entry, waybillAliases); w != "" {
				snap.Waybill = w
			}
			if c := firstString(entry, courierAliases); c != "" {
				snap.CourierName = c
			}
		}
	}

	return snap
}

// unwrap digs to the object that actually carries tracking fields.
func unwrap(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return nil
		}
		return unwrap(t[0])
	case map[string]any:
		if inner, ok := t["tracking_data"].(map[string]any); ok {
			return inner
		}
		return t
	default:
		return nil
	}
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstInt(m map[string]any, keys []string) *int {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			n := int(v)
			return &n
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return &n
			}
		}
	}
	return nil
}

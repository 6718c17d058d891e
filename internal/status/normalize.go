package status

import "strings"

// fuzzyOrder lists canonical statuses longest name first, so a raw string
// like "shipment out for delivery today" hits Out for Delivery before any
// shorter name that also happens to be a substring.
var fuzzyOrder = func() []Status {
	out := All()
	// insertion sort by name length, descending; ties keep progression order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j]) > len(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}()

// synonyms are tried in order after exact and fuzzy matching both miss.
// The carrier's free-text statuses are wildly inconsistent; these cover
// the spellings seen in production payloads.
var synonyms = []struct {
	terms  []string
	status Status
}{
	{[]string{"transit"}, InTransit},
	{[]string{"ofd", "out for delivery"}, OutForDelivery},
	{[]string{"rto", "return"}, ReturnInitiated},
	{[]string{"cancel"}, Cancelled},
	{[]string{"delivered"}, Delivered},
	{[]string{"pickup", "collected"}, PickupScheduled},
	{[]string{"picked up"}, PickedUp},
	{[]string{"manifest", "booked"}, Booked},
	{[]string{"packed", "ready"}, ReadyToShip},
	{[]string{"lost"}, Lost},
}

// Normalize maps whatever the carrier sent to a canonical status.
// A known numeric code always wins over the text. Failing everything else
// it returns Pending; it never errors, a webhook must not bounce because
// the carrier invented a new spelling.
func Normalize(rawStatus string, rawCode *int) Status {
	if rawCode != nil {
		if s, ok := FromCode(*rawCode); ok {
			return s
		}
	}

	raw := strings.ToLower(strings.TrimSpace(rawStatus))
	if raw == "" {
		return Pending
	}

	for _, s := range progression {
		if raw == strings.ToLower(string(s)) {
			return s
		}
	}

	for _, s := range fuzzyOrder {
		if strings.Contains(raw, strings.ToLower(string(s))) {
			return s
		}
	}

	for _, syn := range synonyms {
		for _, term := range syn.terms {
			if strings.Contains(raw, term) {
				return syn.status
			}
		}
	}

	return Pending
}

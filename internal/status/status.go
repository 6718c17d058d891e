package status

// Status is the canonical shipment state stored per order. It is the single
// source of truth for storefront display and business gating (e.g. an order
// with a waybill and a non-terminal status can no longer be cancelled).
type Status string

const (
	Pending         Status = "Pending"
	New             Status = "New"
	Booked          Status = "Booked"
	ReadyToShip     Status = "Ready To Ship"
	PickupScheduled Status = "Pickup Scheduled"
	PickupBooked    Status = "Pickup Booked"
	PickedUp        Status = "Picked Up"
	Shipped         Status = "Shipped"
	InTransit       Status = "In Transit"
	OutForDelivery  Status = "Out for Delivery"
	Delivered       Status = "Delivered"
	ReturnInitiated Status = "Return Initiated"
	Returned        Status = "Returned"
	RTOInitiated    Status = "RTO Initiated"
	Cancelled       Status = "Cancelled"
	Lost            Status = "Lost"
)

// progression is the fixed forward order. A candidate status may only replace
// the current one if its index here is greater or equal.
var progression = []Status{
	Pending,
	New,
	Booked,
	ReadyToShip,
	PickupScheduled,
	PickupBooked,
	PickedUp,
	Shipped,
	InTransit,
	OutForDelivery,
	Delivered,
	ReturnInitiated,
	Returned,
	RTOInitiated,
	Cancelled,
	Lost,
}

var terminal = map[Status]struct{}{
	Delivered: {},
	Returned:  {},
	Cancelled: {},
	Lost:      {},
}

var indexOf = func() map[Status]int {
	m := make(map[Status]int, len(progression))
	for i, s := range progression {
		m[s] = i
	}
	return m
}()

// Index returns the position of s in the progression order.
// Unknown values map to 0, so they can never move a recorded status backward.
func Index(s Status) int {
	return indexOf[s]
}

// IsTerminal reports whether no further status change is permitted after s.
func IsTerminal(s Status) bool {
	_, ok := terminal[s]
	return ok
}

// TransitionAllowed decides whether candidate may replace current.
// An empty current means no status has been observed yet: always allowed.
// A terminal current is locked forever, even against a higher index.
func TransitionAllowed(current, candidate Status) bool {
	if current == "" {
		return true
	}
	if IsTerminal(current) {
		return false
	}
	return Index(candidate) >= Index(current)
}

// All returns the progression order, lowest index first.
func All() []Status {
	out := make([]Status, len(progression))
	copy(out, progression)
	return out
}

package messages

import (
	"time"

	"github.com/google/uuid"
)

// UpdateSource names which entry point produced an update.
const (
	SourceWebhook = "webhook"
	SourcePoller  = "poller"
	SourceRefresh = "refresh"
)

// ShipmentUpdated is published after every applied tracking write, keyed by
// order id. ship-api consumes it to keep the redis snapshot cache fresh;
// storefront-side consumers (mail, UI push) are free to subscribe too.
type ShipmentUpdated struct {
	OrderID   uuid.UUID `json:"order_id"`
	OrderCode string    `json:"order_code"`
	Source    string    `json:"source"`

	Status        string `json:"status,omitempty"`
	StatusChanged bool   `json:"status_changed"`
	Waybill       string `json:"waybill,omitempty"`
	CourierName   string `json:"courier_name,omitempty"`

	EventsAdded int       `json:"events_added"`
	UpdatedAt   time.Time `json:"updated_at"`
}

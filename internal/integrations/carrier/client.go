package carrier

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pinecart/shipsync/internal/models"
)

// IdentifierKind names which key a tracking lookup is made by.
type IdentifierKind string

const (
	ByCarrierOrderID IdentifierKind = "carrier_order_id"
	ByWaybill        IdentifierKind = "waybill"
	ByShipmentID     IdentifierKind = "shipment_id"
)

type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// Client fetches raw tracking payloads from the carrier. The response shape
// varies by endpoint and carrier mood; callers run the result through Extract.
type Client interface {
	FetchTracking(ctx context.Context, id Identifier) (json.RawMessage, error)
}

// BestIdentifier picks the strongest available lookup key for an order.
// The carrier order id resolves fastest on their side, the waybill works once
// a courier is allocated, the shipment id is the fallback.
func BestIdentifier(o *models.Order) (Identifier, bool) {
	if o.CarrierOrderID != nil {
		return Identifier{Kind: ByCarrierOrderID, Value: strconv.FormatInt(*o.CarrierOrderID, 10)}, true
	}
	if o.CarrierWaybill != "" {
		return Identifier{Kind: ByWaybill, Value: o.CarrierWaybill}, true
	}
	if o.CarrierShipmentID != nil && *o.CarrierShipmentID != "" {
		return Identifier{Kind: ByShipmentID, Value: *o.CarrierShipmentID}, true
	}
	return Identifier{}, false
}

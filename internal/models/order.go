package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pinecart/shipsync/internal/scans"
	"github.com/pinecart/shipsync/internal/status"
)

// Order carries the shipment-tracking slice of a storefront order. Rows are
// created by checkout; this subsystem owns every tracking field below until
// the status goes terminal.
//
// Invariants: CanonicalStatus only moves forward per status.TransitionAllowed,
// ScanEvents only grows via scans.Merge, CarrierWaybill is never cleared once
// set (a waybill means the parcel is in carrier custody and the order can no
// longer be cancelled).
type Order struct {
	ID        uuid.UUID
	OrderCode string

	CarrierShipmentID *string
	CarrierOrderID    *int64
	CarrierWaybill    string
	CarrierName       string

	CanonicalStatus status.Status
	TrackingURL     string
	ScanEvents      []scans.Event

	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderCreateInput seeds a new order row. Checkout is out of scope for this
// service; creation exists for fixtures and local demos.
type OrderCreateInput struct {
	OrderCode         string
	CarrierShipmentID *string
	CarrierOrderID    *int64
	CarrierWaybill    string
}

package pgorders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/pinecart/shipsync/internal/models"
	"github.com/pinecart/shipsync/internal/scans"
	"github.com/pinecart/shipsync/internal/status"
)

const orderColumns = `
  id, order_code,
  carrier_shipment_id, carrier_order_id, carrier_waybill, carrier_name,
  canonical_status, tracking_url, scan_events,
  last_synced_at, created_at, updated_at
`

// OrderUpdate is one conditional, field-level write. Nil pointer fields are
// left untouched; Events, when non-nil, replaces the stored log with the
// already-merged one. The waybill, once stored non-empty, is never cleared
// regardless of what the update carries.
type OrderUpdate struct {
	OrderID uuid.UUID

	Status      *status.Status
	Waybill     *string
	CourierName *string
	TrackingURL *string
	Events      []scans.Event

	SyncedAt *time.Time
}

func (s *Storage) CreateOrder(ctx context.Context, in models.OrderCreateInput) (*models.Order, error) {
	now := time.Now().UTC()
	id := uuid.New()

	waybill := in.CarrierWaybill
	_, err := s.db.Exec(ctx, `
INSERT INTO orders (
  id, order_code, carrier_shipment_id, carrier_order_id, carrier_waybill,
  canonical_status, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
`, id, in.OrderCode, in.CarrierShipmentID, in.CarrierOrderID, waybill, status.Pending, now)
	if err != nil {
		return nil, errors.Wrap(err, "insert order")
	}

	return s.GetOrderByID(ctx, id)
}

func (s *Storage) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.findBy(ctx, `id = $1`, id)
}

func (s *Storage) FindByOrderCode(ctx context.Context, code string) (*models.Order, error) {
	return s.findBy(ctx, `order_code = $1`, code)
}

func (s *Storage) FindByShipmentID(ctx context.Context, shipmentID string) (*models.Order, error) {
	return s.findBy(ctx, `carrier_shipment_id = $1`, shipmentID)
}

func (s *Storage) FindByWaybill(ctx context.Context, waybill string) (*models.Order, error) {
	return s.findBy(ctx, `carrier_waybill = $1 AND carrier_waybill <> ''`, waybill)
}

func (s *Storage) FindByCarrierOrderID(ctx context.Context, carrierOrderID int64) (*models.Order, error) {
	return s.findBy(ctx, `carrier_order_id = $1`, carrierOrderID)
}

func (s *Storage) findBy(ctx context.Context, where string, arg any) (*models.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where+` LIMIT 1`, arg)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return o, nil
}

// ListCarrierRefOrders returns one page of orders that carry any carrier
// reference, most recently created first. The daemon walks pages until a
// short page comes back.
func (s *Storage) ListCarrierRefOrders(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE carrier_shipment_id IS NOT NULL
   OR carrier_order_id IS NOT NULL
   OR carrier_waybill <> ''
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select carrier ref orders")
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ApplyOrderUpdate writes the provided fields in a single statement.
// Last-writer-wins at the field level; there is no version check.
func (s *Storage) ApplyOrderUpdate(ctx context.Context, upd OrderUpdate) error {
	var eventsJSON []byte
	if upd.Events != nil {
		b, err := json.Marshal(upd.Events)
		if err != nil {
			return errors.Wrap(err, "marshal scan events")
		}
		eventsJSON = b
	}

	_, err := s.db.Exec(ctx, `
UPDATE orders SET
  canonical_status = COALESCE($2, canonical_status),
  carrier_waybill = CASE WHEN $3::text IS NOT NULL AND $3 <> '' THEN $3 ELSE carrier_waybill END,
  carrier_name = COALESCE(NULLIF($4::text, ''), carrier_name),
  tracking_url = COALESCE(NULLIF($5::text, ''), tracking_url),
  scan_events = COALESCE($6::jsonb, scan_events),
  last_synced_at = COALESCE($7, last_synced_at),
  updated_at = now()
WHERE id = $1
`, upd.OrderID, statusText(upd.Status), upd.Waybill, deref(upd.CourierName), deref(upd.TrackingURL), eventsJSON, upd.SyncedAt)
	return errors.Wrap(err, "update order")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (*models.Order, error) {
	var o models.Order
	var eventsJSON []byte
	if err := r.Scan(
		&o.ID, &o.OrderCode,
		&o.CarrierShipmentID, &o.CarrierOrderID, &o.CarrierWaybill, &o.CarrierName,
		&o.CanonicalStatus, &o.TrackingURL, &eventsJSON,
		&o.LastSyncedAt, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(eventsJSON) > 0 {
		if err := json.Unmarshal(eventsJSON, &o.ScanEvents); err != nil {
			return nil, errors.Wrap(err, "decode scan events")
		}
	}
	return &o, nil
}

func statusText(s *status.Status) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package pgorders

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id UUID PRIMARY KEY,
  order_code TEXT NOT NULL,
  carrier_shipment_id TEXT NULL,
  carrier_order_id BIGINT NULL,
  carrier_waybill TEXT NOT NULL DEFAULT '',
  carrier_name TEXT NOT NULL DEFAULT '',
  canonical_status TEXT NOT NULL DEFAULT 'Pending',
  tracking_url TEXT NOT NULL DEFAULT '',
  scan_events JSONB NOT NULL DEFAULT '[]',
  last_synced_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (order_code)
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_carrier_shipment_id ON orders(carrier_shipment_id) WHERE carrier_shipment_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_orders_carrier_order_id ON orders(carrier_order_id) WHERE carrier_order_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_orders_carrier_waybill ON orders(carrier_waybill) WHERE carrier_waybill <> ''`,
		// serves the daemon's "has any carrier ref, newest first" page scan
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}

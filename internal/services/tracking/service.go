// Package tracking is the reconciliation core: it resolves inbound updates to
// orders, gates status changes, merges scan logs and issues the conditional
// store writes. The webhook, the polling daemon and on-demand refreshes all
// funnel through here so every entry point obeys the same rules.
package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pinecart/shipsync/internal/broker/messages"
	"github.com/pinecart/shipsync/internal/cache"
	"github.com/pinecart/shipsync/internal/integrations/carrier"
	"github.com/pinecart/shipsync/internal/models"
	"github.com/pinecart/shipsync/internal/scans"
	"github.com/pinecart/shipsync/internal/status"
	"github.com/pinecart/shipsync/internal/storage/pgorders"
)

type Repository interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderCode(ctx context.Context, code string) (*models.Order, error)
	FindByShipmentID(ctx context.Context, shipmentID string) (*models.Order, error)
	FindByWaybill(ctx context.Context, waybill string) (*models.Order, error)
	FindByCarrierOrderID(ctx context.Context, carrierOrderID int64) (*models.Order, error)
	ApplyOrderUpdate(ctx context.Context, upd pgorders.OrderUpdate) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	repo     Repository
	carrier  carrier.Client
	cache    cache.BytesCache
	producer Producer
	topic    string
	cacheTTL time.Duration
}

func New(repo Repository, cc carrier.Client, c cache.BytesCache, producer Producer, topic string, cacheTTL time.Duration) *Service {
	return &Service{repo: repo, carrier: cc, cache: c, producer: producer, topic: topic, cacheTTL: cacheTTL}
}

// Candidates is the identifier bag extracted from an inbound message.
// Zero-valued keys are simply not tried.
type Candidates struct {
	OrderCode      string
	ShipmentID     string
	Waybill        string
	CarrierOrderID *int64
}

func (c Candidates) Empty() bool {
	return c.OrderCode == "" && c.ShipmentID == "" && c.Waybill == "" && c.CarrierOrderID == nil
}

// LogValue makes the full candidate set show up in unresolved-order
// diagnostics without hand-rolling the fields at each call site.
func (c Candidates) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("order_code", c.OrderCode),
		slog.String("shipment_id", c.ShipmentID),
		slog.String("waybill", c.Waybill),
	}
	if c.CarrierOrderID != nil {
		attrs = append(attrs, slog.Int64("carrier_order_id", *c.CarrierOrderID))
	}
	return slog.GroupValue(attrs...)
}

// Resolve locates the order for a candidate set. Precedence is fixed:
// order_code, then carrier shipment id, then waybill, then carrier order id.
// The order code is caller-controlled and least likely to collide; the
// carrier-assigned keys are only reliable after allocation.
// Returns pgorders.ErrNotFound when nothing matches; callers must treat that
// as "no match", not as a failure.
func (s *Service) Resolve(ctx context.Context, c Candidates) (*models.Order, error) {
	type attempt struct {
		present bool
		find    func() (*models.Order, error)
	}
	attempts := []attempt{
		{c.OrderCode != "", func() (*models.Order, error) { return s.repo.FindByOrderCode(ctx, c.OrderCode) }},
		{c.ShipmentID != "", func() (*models.Order, error) { return s.repo.FindByShipmentID(ctx, c.ShipmentID) }},
		{c.Waybill != "", func() (*models.Order, error) { return s.repo.FindByWaybill(ctx, c.Waybill) }},
		{c.CarrierOrderID != nil, func() (*models.Order, error) { return s.repo.FindByCarrierOrderID(ctx, *c.CarrierOrderID) }},
	}

	for _, a := range attempts {
		if !a.present {
			continue
		}
		o, err := a.find()
		if errors.Is(err, pgorders.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return o, nil
	}
	return nil, pgorders.ErrNotFound
}

// Update is one normalized inbound observation about an order's shipment.
type Update struct {
	Status      status.Status
	Waybill     string
	CourierName string
	TrackingURL string
	Events      []scans.Event
	Source      string
}

// Result reports what ApplyUpdate actually changed.
type Result struct {
	Applied       bool
	StatusChanged bool
	FinalStatus   status.Status
	EventsAdded   int
}

// ApplyUpdate gates, merges and conditionally persists one update.
// Only fields whose value differs from the stored one are written, so a
// redundant webhook replay produces zero writes. A disallowed status is not
// an error: the status is left alone while the other fields still update.
// Once the stored status is terminal the status and scan log are frozen;
// advisory fields (courier name, tracking url) may still refresh.
func (s *Service) ApplyUpdate(ctx context.Context, o *models.Order, upd Update) (Result, error) {
	res := Result{FinalStatus: o.CanonicalStatus}
	terminal := status.IsTerminal(o.CanonicalStatus)

	var w pgorders.OrderUpdate
	w.OrderID = o.ID

	if upd.Status != "" &&
		upd.Status != o.CanonicalStatus &&
		status.TransitionAllowed(o.CanonicalStatus, upd.Status) {
		st := upd.Status
		w.Status = &st
		res.StatusChanged = true
		res.FinalStatus = st
	}

	if !terminal && upd.Waybill != "" && upd.Waybill != o.CarrierWaybill {
		wb := upd.Waybill
		w.Waybill = &wb
	}
	if upd.CourierName != "" && upd.CourierName != o.CarrierName {
		cn := upd.CourierName
		w.CourierName = &cn
	}
	if upd.TrackingURL != "" && upd.TrackingURL != o.TrackingURL {
		tu := upd.TrackingURL
		w.TrackingURL = &tu
	}

	if !terminal && len(upd.Events) > 0 {
		merged := scans.Merge(o.ScanEvents, upd.Events)
		if added := len(merged) - len(o.ScanEvents); added > 0 {
			w.Events = merged
			res.EventsAdded = added
		}
	}

	if w.Status == nil && w.Waybill == nil && w.CourierName == nil && w.TrackingURL == nil && w.Events == nil {
		// nothing differs from the stored state
		return res, nil
	}

	if upd.Source == messages.SourcePoller || upd.Source == messages.SourceRefresh {
		now := time.Now().UTC()
		w.SyncedAt = &now
	}

	if err := s.repo.ApplyOrderUpdate(ctx, w); err != nil {
		return res, errors.Wrap(err, "apply order update")
	}
	res.Applied = true

	s.invalidate(ctx, o.ID)
	s.publish(ctx, o, upd, res)
	return res, nil
}

// ApplySnapshot runs one extracted carrier snapshot through the normalize and
// apply pipeline. Shared by the polling daemon and the on-demand refresh.
func (s *Service) ApplySnapshot(ctx context.Context, o *models.Order, snap carrier.Snapshot, source string) (Result, error) {
	return s.ApplyUpdate(ctx, o, Update{
		Status:      status.Normalize(snap.StatusText, snap.StatusCode),
		Waybill:     snap.Waybill,
		CourierName: snap.CourierName,
		TrackingURL: snap.TrackingURL,
		Events:      snap.Events,
		Source:      source,
	})
}

// Refresh is the on-demand lookup behind "view order" / "request invoice" /
// "generate waybill" actions. Carrier failures are swallowed: the caller
// always gets the freshest stored state, never a tracking error.
func (s *Service) Refresh(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	o, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	id, ok := carrier.BestIdentifier(o)
	if !ok {
		return o, nil
	}

	raw, err := s.carrier.FetchTracking(ctx, id)
	if err != nil {
		slog.Warn("on-demand tracking fetch failed, serving stored state",
			"order_id", o.ID, "identifier_kind", id.Kind, "error", err.Error())
		return o, nil
	}

	if _, err := s.ApplySnapshot(ctx, o, carrier.Extract(raw), messages.SourceRefresh); err != nil {
		slog.Error("on-demand tracking apply failed", "order_id", o.ID, "error", err.Error())
		return o, nil
	}

	return s.repo.GetOrderByID(ctx, orderID)
}

// GetTracking reads one order's tracking state, via the snapshot cache when
// one is configured. The cache is best effort only.
func (s *Service) GetTracking(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	key := trackingKey(orderID)
	if s.cache != nil && s.cacheTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var o models.Order
			if json.Unmarshal(b, &o) == nil {
				return &o, nil
			}
		}
	}

	o, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, o)
	return o, nil
}

// RefreshCache reloads one order into the snapshot cache. Driven by the
// shipment.updated consumer so writes from the worker process land in the
// cache the API serves from.
func (s *Service) RefreshCache(ctx context.Context, orderID uuid.UUID) error {
	o, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	s.cacheSet(ctx, o)
	return nil
}

func (s *Service) cacheSet(ctx context.Context, o *models.Order) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	if b, err := json.Marshal(o); err == nil {
		_ = s.cache.Set(ctx, trackingKey(o.ID), b, s.cacheTTL)
	}
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, trackingKey(id))
}

func (s *Service) publish(ctx context.Context, o *models.Order, upd Update, res Result) {
	if s.producer == nil || s.topic == "" {
		return
	}
	msg := messages.ShipmentUpdated{
		OrderID:       o.ID,
		OrderCode:     o.OrderCode,
		Source:        upd.Source,
		Status:        string(res.FinalStatus),
		StatusChanged: res.StatusChanged,
		Waybill:       o.CarrierWaybill,
		CourierName:   upd.CourierName,
		EventsAdded:   res.EventsAdded,
		UpdatedAt:     time.Now().UTC(),
	}
	if upd.Waybill != "" && msg.Waybill == "" {
		msg.Waybill = upd.Waybill
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.producer.Publish(ctx, s.topic, []byte(o.ID.String()), b); err != nil {
		// the store write already landed; a lost notification only delays the cache
		slog.Warn("publish shipment.updated failed", "order_id", o.ID, "error", err.Error())
	}
}

func trackingKey(id uuid.UUID) string {
	return fmt.Sprintf("order:%s:tracking", id)
}

package tracking

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pinecart/shipsync/internal/broker/messages"
	"github.com/pinecart/shipsync/internal/integrations/carrier"
	"github.com/pinecart/shipsync/internal/models"
	"github.com/pinecart/shipsync/internal/scans"
	"github.com/pinecart/shipsync/internal/status"
	"github.com/pinecart/shipsync/internal/storage/pgorders"
)

type fakeRepo struct {
	byID        map[uuid.UUID]*models.Order
	byCode      map[string]*models.Order
	byShipment  map[string]*models.Order
	byWaybill   map[string]*models.Order
	byCarrierID map[int64]*models.Order

	applied  []pgorders.OrderUpdate
	applyErr error
}

func newFakeRepo(orders ...*models.Order) *fakeRepo {
	f := &fakeRepo{
		byID:        map[uuid.UUID]*models.Order{},
		byCode:      map[string]*models.Order{},
		byShipment:  map[string]*models.Order{},
		byWaybill:   map[string]*models.Order{},
		byCarrierID: map[int64]*models.Order{},
	}
	for _, o := range orders {
		f.byID[o.ID] = o
		f.byCode[o.OrderCode] = o
		if o.CarrierShipmentID != nil {
			f.byShipment[*o.CarrierShipmentID] = o
		}
		if o.CarrierWaybill != "" {
			f.byWaybill[o.CarrierWaybill] = o
		}
		if o.CarrierOrderID != nil {
			f.byCarrierID[*o.CarrierOrderID] = o
		}
	}
	return f
}

func (f *fakeRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if o, ok := f.byID[id]; ok {
		return o, nil
	}
	return nil, pgorders.ErrNotFound
}
func (f *fakeRepo) FindByOrderCode(ctx context.Context, code string) (*models.Order, error) {
	if o, ok := f.byCode[code]; ok {
		return o, nil
	}
	return nil, pgorders.ErrNotFound
}
func (f *fakeRepo) FindByShipmentID(ctx context.Context, id string) (*models.Order, error) {
	if o, ok := f.byShipment[id]; ok {
		return o, nil
	}
	return nil, pgorders.ErrNotFound
}
func (f *fakeRepo) FindByWaybill(ctx context.Context, wb string) (*models.Order, error) {
	if o, ok := f.byWaybill[wb]; ok {
		return o, nil
	}
	return nil, pgorders.ErrNotFound
}
func (f *fakeRepo) FindByCarrierOrderID(ctx context.Context, cid int64) (*models.Order, error) {
	if o, ok := f.byCarrierID[cid]; ok {
		return o, nil
	}
	return nil, pgorders.ErrNotFound
}
func (f *fakeRepo) ApplyOrderUpdate(ctx context.Context, upd pgorders.OrderUpdate) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, upd)
	return nil
}

type fakeProducer struct {
	topics []string
	values [][]byte
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.topics = append(p.topics, topic)
	p.values = append(p.values, value)
	return nil
}

type fakeCarrier struct {
	raw json.RawMessage
	err error
}

func (c fakeCarrier) FetchTracking(ctx context.Context, id carrier.Identifier) (json.RawMessage, error) {
	return c.raw, c.err
}

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }

func order(code string) *models.Order {
	return &models.Order{ID: uuid.New(), OrderCode: code, CanonicalStatus: status.Pending}
}

func TestResolve_Precedence(t *testing.T) {
	a := order("A")
	b := order("B")
	b.CarrierWaybill = "AWB-B"

	repo := newFakeRepo(a, b)
	svc := New(repo, nil, nil, nil, "", 0)

	// both keys present and pointing at different orders: order_code wins
	got, err := svc.Resolve(context.Background(), Candidates{OrderCode: "A", Waybill: "AWB-B"})
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	got, err = svc.Resolve(context.Background(), Candidates{Waybill: "AWB-B"})
	require.NoError(t, err)
	require.Equal(t, b.ID, got.ID)
}

func TestResolve_SkipsMissingKeysAndMisses(t *testing.T) {
	b := order("B")
	b.CarrierOrderID = i64Ptr(900)
	repo := newFakeRepo(b)
	svc := New(repo, nil, nil, nil, "", 0)

	// order_code and shipment id miss, carrier order id lands
	got, err := svc.Resolve(context.Background(), Candidates{
		OrderCode:      "NOPE",
		ShipmentID:     "NOPE",
		CarrierOrderID: i64Ptr(900),
	})
	require.NoError(t, err)
	require.Equal(t, b.ID, got.ID)

	_, err = svc.Resolve(context.Background(), Candidates{OrderCode: "NOPE"})
	require.ErrorIs(t, err, pgorders.ErrNotFound)

	_, err = svc.Resolve(context.Background(), Candidates{})
	require.ErrorIs(t, err, pgorders.ErrNotFound)
}

func TestApplyUpdate_StatusGate(t *testing.T) {
	o := order("A")
	o.CanonicalStatus = status.Shipped
	repo := newFakeRepo(o)
	svc := New(repo, nil, nil, nil, "", 0)

	// backward status is dropped, other fields still write
	res, err := svc.ApplyUpdate(context.Background(), o, Update{
		Status:      status.Pending,
		CourierName: "BlueExpress",
		Source:      messages.SourceWebhook,
	})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.False(t, res.StatusChanged)
	require.Equal(t, status.Shipped, res.FinalStatus)
	require.Len(t, repo.applied, 1)
	require.Nil(t, repo.applied[0].Status)
	require.NotNil(t, repo.applied[0].CourierName)
}

func TestApplyUpdate_ForwardStatusWrites(t *testing.T) {
	o := order("A")
	o.CanonicalStatus = status.Shipped
	repo := newFakeRepo(o)
	svc := New(repo, nil, nil, nil, "", 0)

	res, err := svc.ApplyUpdate(context.Background(), o, Update{Status: status.Delivered, Source: messages.SourceWebhook})
	require.NoError(t, err)
	require.True(t, res.StatusChanged)
	require.Equal(t, status.Delivered, res.FinalStatus)
	require.NotNil(t, repo.applied[0].Status)
	require.Equal(t, status.Delivered, *repo.applied[0].Status)
}

func TestApplyUpdate_TerminalFreezesStatusAndEvents(t *testing.T) {
	o := order("A")
	o.CanonicalStatus = status.Delivered
	repo := newFakeRepo(o)
	svc := New(repo, nil, nil, nil, "", 0)

	res, err := svc.ApplyUpdate(context.Background(), o, Update{
		Status:      status.ReturnInitiated, // higher index, still locked out
		TrackingURL: "https://track.example/x",
		Events:      []scans.Event{{Activity: "Returned to sender"}},
		Source:      messages.SourcePoller,
	})
	require.NoError(t, err)
	require.True(t, res.Applied) // advisory tracking_url still refreshes
	require.False(t, res.StatusChanged)
	require.Zero(t, res.EventsAdded)
	require.Nil(t, repo.applied[0].Status)
	require.Nil(t, repo.applied[0].Events)
	require.NotNil(t, repo.applied[0].TrackingURL)
}

func TestApplyUpdate_NoChangeMeansNoWrite(t *testing.T) {
	when := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	o := order("A")
	o.CanonicalStatus = status.InTransit
	o.CarrierName = "BlueExpress"
	o.ScanEvents = []scans.Event{{Activity: "Picked Up", Timestamp: &when}}

	repo := newFakeRepo(o)
	svc := New(repo, nil, nil, nil, "", 0)

	res, err := svc.ApplyUpdate(context.Background(), o, Update{
		Status:      status.InTransit,
		CourierName: "BlueExpress",
		Events:      []scans.Event{{Activity: "Picked Up", Timestamp: &when}},
		Source:      messages.SourceWebhook,
	})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Empty(t, repo.applied)
}

func TestApplyUpdate_MergesEvents(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	o := order("A")
	o.CanonicalStatus = status.PickedUp
	o.ScanEvents = []scans.Event{{Activity: "Picked Up", Timestamp: &t1}}

	repo := newFakeRepo(o)
	svc := New(repo, nil, nil, nil, "", 0)

	res, err := svc.ApplyUpdate(context.Background(), o, Update{
		Status: status.InTransit,
		Events: []scans.Event{
			{Activity: "Picked Up", Timestamp: &t1},
			{Activity: "In Transit", Timestamp: &t2},
		},
		Source: messages.SourceWebhook,
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.EventsAdded)
	require.Len(t, repo.applied[0].Events, 2)
}

func TestApplyUpdate_SyncStampOnlyForCarrierBackedSources(t *testing.T) {
	o := order("A")
	repo := newFakeRepo(o)
	svc := New(repo, nil, nil, nil, "", 0)

	_, err := svc.ApplyUpdate(context.Background(), o, Update{Status: status.Booked, Source: messages.SourceWebhook})
	require.NoError(t, err)
	require.Nil(t, repo.applied[0].SyncedAt)

	o2 := order("B")
	repo2 := newFakeRepo(o2)
	svc2 := New(repo2, nil, nil, nil, "", 0)
	_, err = svc2.ApplyUpdate(context.Background(), o2, Update{Status: status.Booked, Source: messages.SourcePoller})
	require.NoError(t, err)
	require.NotNil(t, repo2.applied[0].SyncedAt)
}

func TestApplyUpdate_PublishesShipmentUpdated(t *testing.T) {
	o := order("A")
	repo := newFakeRepo(o)
	p := &fakeProducer{}
	svc := New(repo, nil, nil, p, "shipment.updated", 0)

	_, err := svc.ApplyUpdate(context.Background(), o, Update{Status: status.Booked, Source: messages.SourceWebhook})
	require.NoError(t, err)
	require.Equal(t, []string{"shipment.updated"}, p.topics)

	var msg messages.ShipmentUpdated
	require.NoError(t, json.Unmarshal(p.values[0], &msg))
	require.Equal(t, o.ID, msg.OrderID)
	require.True(t, msg.StatusChanged)
	require.Equal(t, string(status.Booked), msg.Status)
}

func TestRefresh_CarrierFailureServesStoredState(t *testing.T) {
	o := order("A")
	o.CarrierWaybill = "AWB1"
	o.CanonicalStatus = status.Shipped
	repo := newFakeRepo(o)
	svc := New(repo, fakeCarrier{err: context.DeadlineExceeded}, nil, nil, "", 0)

	got, err := svc.Refresh(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, status.Shipped, got.CanonicalStatus)
	require.Empty(t, repo.applied)
}

func TestRefresh_AppliesSnapshot(t *testing.T) {
	o := order("A")
	o.CarrierWaybill = "AWB1"
	o.CanonicalStatus = status.Shipped
	repo := newFakeRepo(o)
	raw := json.RawMessage(`{"tracking_data":{"shipment_status":"Out for Delivery","courier_name":"DartShip"}}`)
	svc := New(repo, fakeCarrier{raw: raw}, nil, nil, "", 0)

	_, err := svc.Refresh(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, repo.applied, 1)
	require.NotNil(t, repo.applied[0].Status)
	require.Equal(t, status.OutForDelivery, *repo.applied[0].Status)
	require.NotNil(t, repo.applied[0].SyncedAt)
}

func TestRefresh_NoIdentifierIsNoop(t *testing.T) {
	o := order("A")
	repo := newFakeRepo(o)
	svc := New(repo, fakeCarrier{}, nil, nil, "", 0)

	got, err := svc.Refresh(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, o.ID, got.ID)
	require.Empty(t, repo.applied)
}

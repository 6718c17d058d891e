package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pinecart/shipsync/internal/integrations/carrier"
)

func TestFakeClient_Deterministic(t *testing.T) {
	c := New()
	id := carrier.Identifier{Kind: carrier.ByWaybill, Value: "AWB1"}

	raw1, err := c.FetchTracking(context.Background(), id)
	require.NoError(t, err)
	raw2, err := c.FetchTracking(context.Background(), id)
	require.NoError(t, err)

	snap1 := carrier.Extract(raw1)
	snap2 := carrier.Extract(raw2)
	require.Equal(t, snap1.StatusText, snap2.StatusText)
	require.Equal(t, "AWB1", snap1.Waybill)
	require.Equal(t, "FakeShip", snap1.CourierName)
	require.NotEmpty(t, snap1.TrackingURL)
	require.Len(t, snap1.Events, 1)
}

func TestFakeClient_ExtractableForManyIdentifiers(t *testing.T) {
	c := New()
	for _, v := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		raw, err := c.FetchTracking(context.Background(), carrier.Identifier{Kind: carrier.ByShipmentID, Value: v})
		require.NoError(t, err)
		snap := carrier.Extract(raw)
		require.NotEmpty(t, snap.StatusText, "identifier %s", v)
		require.Equal(t, v, snap.Waybill)
	}
}

package status

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNormalize_CodeWinsOverText(t *testing.T) {
	// code 3 is Ready To Ship even when the text disagrees
	require.Equal(t, ReadyToShip, Normalize("", intPtr(3)))
	require.Equal(t, ReadyToShip, Normalize("Delivered", intPtr(3)))
}

func TestNormalize_UnknownCodeFallsThroughToText(t *testing.T) {
	require.Equal(t, Delivered, Normalize("Delivered", intPtr(100500)))
}

func TestNormalize_ExactCaseInsensitive(t *testing.T) {
	require.Equal(t, OutForDelivery, Normalize("out for delivery", nil))
	require.Equal(t, RTOInitiated, Normalize("RTO INITIATED", nil))
	require.Equal(t, InTransit, Normalize("  In Transit ", nil))
}

func TestNormalize_FuzzySubstring(t *testing.T) {
	require.Equal(t, OutForDelivery, Normalize("shipment out for delivery today", nil))
	require.Equal(t, ReturnInitiated, Normalize("return initiated by consignee", nil))
	require.Equal(t, PickupScheduled, Normalize("PICKUP SCHEDULED FOR TOMORROW", nil))
}

func TestNormalize_Synonyms(t *testing.T) {
	cases := map[string]Status{
		"package in-transit to hub": InTransit,
		"OFD":                       OutForDelivery,
		"rto marked":                ReturnInitiated,
		"seller cancelling order":   Cancelled,
		"successfully delivered":    Delivered,
		"collected from warehouse":  PickupScheduled,
		"manifest created":          Booked,
		"order packed":              ReadyToShip,
		"shipment lost by courier":  Lost,
	}
	for raw, want := range cases {
		require.Equal(t, want, Normalize(raw, nil), "raw=%q", raw)
	}
}

func TestNormalize_DefaultPending(t *testing.T) {
	require.Equal(t, Pending, Normalize("", nil))
	require.Equal(t, Pending, Normalize("zzzz unknown gibberish", nil))
}

func TestNormalize_Deterministic(t *testing.T) {
	inputs := []string{"", "Delivered", "ofd", "something in transit", "gibberish"}
	for _, in := range inputs {
		first := Normalize(in, nil)
		for range 5 {
			require.Equal(t, first, Normalize(in, nil))
		}
	}
}

func TestCodeTable_CoversCanonicalSet(t *testing.T) {
	require.GreaterOrEqual(t, len(codeTable), 90)
	for code, s := range codeTable {
		_, known := indexOf[s]
		require.True(t, known, "code %d maps to unknown status %q", code, s)
	}
}

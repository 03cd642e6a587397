package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShipmentStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to ShipmentStatus
		ok       bool
	}{
		{ShipmentCreated, ShipmentDispatched, true},
		{ShipmentDispatched, ShipmentOutForDelivery, true},
		{ShipmentCreated, ShipmentDelivered, true},
		{ShipmentOutForDelivery, ShipmentInTransit, false},
		{ShipmentInTransit, ShipmentInTransit, false},
		{ShipmentCreated, ShipmentFailed, true},
		{ShipmentOutForDelivery, ShipmentFailed, true},
		{ShipmentFailed, ShipmentReturned, true},
		{ShipmentInTransit, ShipmentReturned, false},
		{ShipmentFailed, ShipmentOutForDelivery, true},
		{ShipmentFailed, ShipmentInTransit, false},
		{ShipmentDelivered, ShipmentFailed, false},
		{ShipmentReturned, ShipmentDelivered, false},
		{ShipmentStatus("lost"), ShipmentDelivered, false},
	}
	for _, c := range cases {
		require.Equal(t, c.ok, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestParseShipmentStatus(t *testing.T) {
	s, ok := ParseShipmentStatus("IN_TRANSIT")
	require.True(t, ok)
	require.Equal(t, ShipmentInTransit, s)

	s, ok = ParseShipmentStatus(" Entregado ")
	require.True(t, ok)
	require.Equal(t, ShipmentDelivered, s)

	_, ok = ParseShipmentStatus("teleported")
	require.False(t, ok)
}

func TestFulfillmentStatus_LinearOnly(t *testing.T) {
	for i := range fulfillmentSequence {
		for j := range fulfillmentSequence {
			want := j == i+1
			require.Equal(t, want, fulfillmentSequence[i].CanTransitionTo(fulfillmentSequence[j]),
				"%s -> %s", fulfillmentSequence[i], fulfillmentSequence[j])
		}
	}
}

func TestDeriveWaveStatus(t *testing.T) {
	w := &Wave{ID: "w"}
	order := func(s FulfillmentStatus) *FulfillmentOrder { return &FulfillmentOrder{Status: s} }

	require.Equal(t, WaveOpen, DeriveWaveStatus(w, nil))
	require.Equal(t, WaveOpen, DeriveWaveStatus(w, []*FulfillmentOrder{order(FulfillmentPending)}))
	require.Equal(t, WaveInProgress, DeriveWaveStatus(w, []*FulfillmentOrder{order(FulfillmentPending), order(FulfillmentPicking)}))
	require.Equal(t, WaveInProgress, DeriveWaveStatus(w, []*FulfillmentOrder{order(FulfillmentPacked), order(FulfillmentReadyToPack)}))
	require.Equal(t, WaveCompleted, DeriveWaveStatus(w, []*FulfillmentOrder{order(FulfillmentPacked), order(FulfillmentDispatched)}))

	now := time.Now()
	started := &Wave{ID: "w", StartedAt: &now}
	require.Equal(t, WaveInProgress, DeriveWaveStatus(started, []*FulfillmentOrder{order(FulfillmentPending)}))
}

func TestFulfillmentOrder_Derived(t *testing.T) {
	o := &FulfillmentOrder{Lines: []PickLine{
		{SKU: "A", Quantity: 2, UnitWeightKg: 1.5, Picked: true},
		{SKU: "B", Quantity: 1, UnitWeightKg: 0.5},
	}}
	require.False(t, o.AllPicked())
	require.Equal(t, 3, o.ItemCount())
	require.InDelta(t, 3.5, o.WeightKg(), 1e-9)

	o.Lines[1].Picked = true
	require.True(t, o.AllPicked())
	require.False(t, (&FulfillmentOrder{}).AllPicked())
}

func TestDeriveStockAlert(t *testing.T) {
	critical := DeriveStockAlert(&StockItem{SKU: "A", Current: 10, Optimal: 100, DailyConsumption: 5, LeadTimeDays: 2})
	require.Equal(t, SeverityCritical, critical.Severity)
	require.InDelta(t, 2.0, critical.DaysRemaining, 1e-9)

	low := DeriveStockAlert(&StockItem{SKU: "B", Current: 50, Optimal: 100, DailyConsumption: 5, LeadTimeDays: 2})
	require.Equal(t, SeverityLow, low.Severity)

	ok := DeriveStockAlert(&StockItem{SKU: "C", Current: 100, Optimal: 100, DailyConsumption: 5, LeadTimeDays: 2})
	require.Equal(t, SeverityOK, ok.Severity)

	idle := DeriveStockAlert(&StockItem{SKU: "D", Current: 0, Optimal: 10, LeadTimeDays: 3})
	require.True(t, math.IsInf(idle.DaysRemaining, 1))
	require.Equal(t, SeverityLow, idle.Severity)
}

func TestComputeStockAlerts_Policy(t *testing.T) {
	items := []*StockItem{
		{SKU: "A", Current: 1, Optimal: 10, DailyConsumption: 1, LeadTimeDays: 5},
		{SKU: "B", Current: 10, Optimal: 10, DailyConsumption: 1, LeadTimeDays: 5},
	}
	require.Len(t, ComputeStockAlerts(items, ThresholdPolicy{}), 1)
	require.Len(t, ComputeStockAlerts(items, ThresholdPolicy{IncludeOK: true}), 2)
	only := ComputeStockAlerts(items, ThresholdPolicy{IncludeOK: true, SKUs: []string{"B"}})
	require.Len(t, only, 1)
	require.Equal(t, "B", only[0].SKU)
}

func TestSuggestedQuantity(t *testing.T) {
	require.Equal(t, 90, SuggestedQuantity(&StockItem{Current: 10, Optimal: 100}))
	require.Equal(t, 50, SuggestedQuantity(&StockItem{Current: 90, Optimal: 100, MinOrderQty: 50}))
	require.Equal(t, 0, SuggestedQuantity(&StockItem{Current: 100, Optimal: 100, MinOrderQty: 50}))
}

func TestPurchaseStatus_Transitions(t *testing.T) {
	require.True(t, PurchaseSuggested.CanTransitionTo(PurchaseApproved))
	require.True(t, PurchaseSent.CanTransitionTo(PurchaseCancelled))
	require.False(t, PurchaseReceived.CanTransitionTo(PurchaseApproved))
	require.False(t, PurchaseReceived.CanTransitionTo(PurchaseCancelled))
	require.False(t, PurchaseApproved.CanTransitionTo(PurchaseSuggested))
}

func TestAssemblyStatus_Transitions(t *testing.T) {
	require.True(t, AssemblyPending.CanTransitionTo(AssemblyInProgress))
	require.True(t, AssemblyPending.CanTransitionTo(AssemblyCancelled))
	require.True(t, AssemblyInProgress.CanTransitionTo(AssemblyCancelled))
	require.False(t, AssemblyPending.CanTransitionTo(AssemblyCompleted))
	require.False(t, AssemblyCompleted.CanTransitionTo(AssemblyCancelled))
}

func TestExplodeBOM(t *testing.T) {
	a := &CompositeArticle{BOM: []BOMLine{{SKU: "A", Quantity: 2}, {SKU: "B", Quantity: 10}}}
	reqs := ExplodeBOM(a, 3, map[string]int{"A": 6, "B": 5})
	require.Equal(t, []ComponentRequirement{
		{SKU: "A", Required: 6, Available: 6, Shortfall: 0},
		{SKU: "B", Required: 30, Available: 5, Shortfall: 25},
	}, reqs)
	require.Equal(t, []string{"B"}, ShortSKUs(reqs))

	a.ApplyStock(map[string]int{"A": 2, "B": 9})
	require.True(t, a.BOM[0].Available)
	require.False(t, a.BOM[1].Available)
	require.Equal(t, 9, a.BOM[1].Stock)
}

func TestRoute_RemoveShipmentReindexes(t *testing.T) {
	r := &Route{Stops: []*Stop{
		{ID: "s1", ShipmentID: "a", Status: StopPending},
		{ID: "s2", ShipmentID: "b", Status: StopPending},
		{ID: "s3", ShipmentID: "c", Status: StopPending},
	}}
	r.Reindex()
	require.True(t, r.RemoveShipment("b"))
	require.Len(t, r.Stops, 2)
	require.Equal(t, 0, r.Stops[0].Index)
	require.Equal(t, 1, r.Stops[1].Index)
	require.Equal(t, "s3", r.Stops[1].ID)
	require.False(t, r.RemoveShipment("zz"))
}

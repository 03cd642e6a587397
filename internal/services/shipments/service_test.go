package shipments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/LogiBox/internal/broker/messages"
	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/BearBump/LogiBox/internal/storage/memstore"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return New(st, nil, 0), st
}

func createShipment(t *testing.T, svc *Service, tenant, order string) *models.Shipment {
	t.Helper()
	sh, err := svc.CreateShipment(context.Background(), tenant, models.ShipmentCreateInput{
		OrderID:        order,
		CarrierCode:    "EMU",
		TrackingNumber: "TN-" + order,
		Destination:    "Av. Siempreviva 742",
	})
	require.NoError(t, err)
	return sh
}

func TestService_RecordEvent_HistoryBothOrders(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sh := createShipment(t, svc, "t1", "o-1")

	_, _, err := svc.RecordEvent(ctx, "t1", sh.ID, EventInput{Status: models.ShipmentDispatched, Description: "left warehouse"})
	require.NoError(t, err)
	_, _, err = svc.RecordEvent(ctx, "t1", sh.ID, EventInput{Status: models.ShipmentInTransit, Description: "on the road"})
	require.NoError(t, err)

	asc, err := svc.History(ctx, "t1", sh.ID, OldestFirst)
	require.NoError(t, err)
	require.Len(t, asc, 2)
	require.Equal(t, models.ShipmentDispatched, asc[0].Status)
	require.Equal(t, 1, asc[0].Seq)
	require.Equal(t, models.ShipmentInTransit, asc[1].Status)

	desc, err := svc.History(ctx, "t1", sh.ID, NewestFirst)
	require.NoError(t, err)
	require.Equal(t, asc[1].ID, desc[0].ID)
	require.Equal(t, asc[0].ID, desc[1].ID)

	cur, err := svc.GetShipment(ctx, "t1", sh.ID)
	require.NoError(t, err)
	require.Equal(t, models.LatestEvent(asc).Status, cur.Status)
}

func TestService_RecordEvent_InvalidTransitionKeepsState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sh := createShipment(t, svc, "t1", "o-1")

	_, _, err := svc.RecordEvent(ctx, "t1", sh.ID, EventInput{Status: models.ShipmentOutForDelivery})
	require.NoError(t, err)
	_, _, err = svc.RecordEvent(ctx, "t1", sh.ID, EventInput{Status: models.ShipmentInTransit})
	require.ErrorIs(t, err, errs.ErrInvalidTransition)

	evs, err := svc.History(ctx, "t1", sh.ID, OldestFirst)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	cur, _ := svc.GetShipment(ctx, "t1", sh.ID)
	require.Equal(t, models.ShipmentOutForDelivery, cur.Status)
}

func TestService_RecordEvent_TerminalAcceptsOnlyNotes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sh := createShipment(t, svc, "t1", "o-1")

	_, _, err := svc.RecordEvent(ctx, "t1", sh.ID, EventInput{Status: models.ShipmentDelivered})
	require.NoError(t, err)

	_, ev, err := svc.RecordEvent(ctx, "t1", sh.ID, EventInput{Status: models.ShipmentDelivered, Description: "left with neighbour"})
	require.NoError(t, err)
	require.Equal(t, 2, ev.Seq)

	_, _, err = svc.RecordEvent(ctx, "t1", sh.ID, EventInput{Status: models.ShipmentFailed})
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestService_FailedThenReturned(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sh := createShipment(t, svc, "t1", "o-1")

	_, _, err := svc.RecordEvent(ctx, "t1", sh.ID, EventInput{Status: models.ShipmentFailed})
	require.NoError(t, err)
	cur, _, err := svc.RecordEvent(ctx, "t1", sh.ID, EventInput{Status: models.ShipmentReturned})
	require.NoError(t, err)
	require.True(t, cur.Status.Terminal())
}

// Proof of delivery on an already delivered shipment is refused and leaves
// the history untouched.
func TestService_ProofOfDelivery_Twice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sh := createShipment(t, svc, "t1", "o-1")
	_, _, err := svc.RecordEvent(ctx, "t1", sh.ID, EventInput{Status: models.ShipmentOutForDelivery})
	require.NoError(t, err)

	got, err := svc.RegisterProofOfDelivery(ctx, "t1", sh.ID, PODInput{Signer: "Ana", SignatureRef: "sig-1"})
	require.NoError(t, err)
	require.Equal(t, models.ShipmentDelivered, got.Status)
	require.NotNil(t, got.DeliveredAt)
	require.Equal(t, "Ana", got.Proof.Signer)

	_, err = svc.RegisterProofOfDelivery(ctx, "t1", sh.ID, PODInput{Signer: "Ana"})
	require.ErrorIs(t, err, errs.ErrInvalidTransition)

	evs, _ := svc.History(ctx, "t1", sh.ID, OldestFirst)
	require.Len(t, evs, 2)

	_, err = svc.RegisterProofOfDelivery(ctx, "t1", sh.ID, PODInput{Signer: " "})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestService_ProofOfDelivery_ConcurrentOnlyOneWins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sh := createShipment(t, svc, "t1", "o-1")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errc int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RegisterProofOfDelivery(ctx, "t1", sh.ID, PODInput{Signer: "courier"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
			} else {
				errc++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, oks)
	require.Equal(t, 7, errc)

	evs, _ := svc.History(ctx, "t1", sh.ID, OldestFirst)
	require.Len(t, evs, 1)
}

func TestService_CreateShipment_IdempotentOnSourceRef(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	in := models.ShipmentCreateInput{OrderID: "o-1", SourceRef: "fo-1"}

	a, err := svc.CreateShipment(ctx, "t1", in)
	require.NoError(t, err)
	b, err := svc.CreateShipment(ctx, "t1", in)
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)

	// Another tenant gets its own shipment.
	c, err := svc.CreateShipment(ctx, "t2", in)
	require.NoError(t, err)
	require.NotEqual(t, a.ID, c.ID)
}

func TestService_ShipmentsForOrder_TenantScoped(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createShipment(t, svc, "t1", "o-1")
	_, err := svc.CreateShipment(ctx, "t1", models.ShipmentCreateInput{OrderID: "o-1", SourceRef: "second"})
	require.NoError(t, err)
	createShipment(t, svc, "t2", "o-1")

	got, err := svc.ShipmentsForOrder(ctx, "t1", "o-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	_, err = svc.GetShipment(ctx, "t2", got[0].ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestService_ApplyCarrierUpdate_DedupAndReject(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	sh := createShipment(t, svc, "t1", "o-1")

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	loc := "Depot Norte"
	msg := messages.CarrierUpdate{
		TenantID:    "t1",
		ShipmentID:  sh.ID,
		CheckedAt:   base.Add(3 * time.Hour),
		NextCheckAt: base.Add(4 * time.Hour),
		Events: []messages.CarrierEvent{
			{Status: "AT_DEPOT", StatusRaw: "arrived", EventTime: base.Add(2 * time.Hour), Location: &loc},
			{Status: "IN_TRANSIT", StatusRaw: "moving", EventTime: base.Add(time.Hour)},
			{Status: "TELEPORTED", StatusRaw: "??", EventTime: base},
		},
	}

	res, err := svc.ApplyCarrierUpdate(ctx, msg)
	require.NoError(t, err)
	require.Equal(t, ApplyResult{Recorded: 2, Rejected: 1}, res)

	cur, err := st.GetShipment(ctx, "t1", sh.ID)
	require.NoError(t, err)
	require.Equal(t, models.ShipmentAtDepot, cur.Status)
	require.True(t, cur.NextCheckAt.Equal(msg.NextCheckAt))
	require.Zero(t, cur.CheckFailCount)

	// Same poll delivered twice, plus an older status the machine refuses.
	msg.Events = append(msg.Events, messages.CarrierEvent{Status: "DISPATCHED", EventTime: base.Add(3 * time.Hour)})
	res, err = svc.ApplyCarrierUpdate(ctx, msg)
	require.NoError(t, err)
	require.Equal(t, ApplyResult{Duplicates: 2, Rejected: 2}, res)

	evs, _ := svc.History(ctx, "t1", sh.ID, OldestFirst)
	require.Len(t, evs, 2)
	for _, e := range evs {
		require.Equal(t, models.OriginCarrier, e.Origin)
		require.NotNil(t, e.OccurredAt)
	}
}

func TestService_ApplyCarrierUpdate_ErrorCountsFailures(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	sh := createShipment(t, svc, "t1", "o-1")
	e := "timeout"

	for i := 0; i < 2; i++ {
		_, err := svc.ApplyCarrierUpdate(ctx, messages.CarrierUpdate{TenantID: "t1", ShipmentID: sh.ID, Error: &e})
		require.NoError(t, err)
	}
	cur, _ := st.GetShipment(ctx, "t1", sh.ID)
	require.Equal(t, int32(2), cur.CheckFailCount)
	require.Equal(t, "timeout", *cur.LastError)
}

func TestService_SkippedStatesAreNotSynthesized(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sh := createShipment(t, svc, "t1", "o-1")

	_, _, err := svc.RecordEvent(ctx, "t1", sh.ID, EventInput{Status: models.ShipmentDispatched})
	require.NoError(t, err)
	cur, _, err := svc.RecordEvent(ctx, "t1", sh.ID, EventInput{Status: models.ShipmentOutForDelivery})
	require.NoError(t, err)
	require.Equal(t, models.ShipmentOutForDelivery, cur.Status)

	evs, err := svc.History(ctx, "t1", sh.ID, OldestFirst)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	require.Equal(t, models.ShipmentDispatched, evs[0].Status)
	require.Equal(t, models.ShipmentOutForDelivery, evs[1].Status)
}

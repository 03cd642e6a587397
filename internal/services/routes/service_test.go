package routes

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/LogiBox/internal/cache"
	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/BearBump/LogiBox/internal/services/shipments"
	"github.com/BearBump/LogiBox/internal/storage/memstore"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc     *Service
	tracker *shipments.Service
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	st := memstore.New()
	tracker := shipments.New(st, nil, 0)
	return &fixture{svc: New(st, tracker, cache.NewLocalLocker(), opts), tracker: tracker}
}

func (f *fixture) shipment(t *testing.T, coords *models.Coordinates) *models.Shipment {
	t.Helper()
	sh, err := f.tracker.CreateShipment(context.Background(), "t1", models.ShipmentCreateInput{
		OrderID:           "SO-1",
		DestinationCoords: coords,
	})
	require.NoError(t, err)
	return sh
}

func (f *fixture) route(t *testing.T, optimize bool) *models.Route {
	t.Helper()
	r, err := f.svc.CreateRoute(context.Background(), "t1", RouteInput{Name: "North", Driver: "Luis", Optimize: optimize})
	require.NoError(t, err)
	return r
}

func TestService_OptimizeRoute_NearestNeighbour(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	r := f.route(t, true)

	pts := []models.Coordinates{{Lat: 0, Lng: 0}, {Lat: 3, Lng: 0}, {Lat: 1, Lng: 0}, {Lat: 5, Lng: 5}}
	var shipmentsInOrder []string
	for i := range pts {
		sh := f.shipment(t, &pts[i])
		_, _, err := f.svc.AddStop(ctx, "t1", r.ID, StopInput{ShipmentID: sh.ID})
		require.NoError(t, err)
		shipmentsInOrder = append(shipmentsInOrder, sh.ID)
	}

	got, err := f.svc.OptimizeRoute(ctx, "t1", r.ID)
	require.NoError(t, err)
	var order []models.Coordinates
	for i, st := range got.Stops {
		require.Equal(t, i, st.Index)
		order = append(order, *st.Coords)
	}
	require.Equal(t, []models.Coordinates{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 0}, {Lat: 3, Lng: 0}, {Lat: 5, Lng: 5}}, order)
	require.Equal(t, shipmentsInOrder[0], got.Stops[0].ShipmentID)
	require.Greater(t, got.DistanceKm, 0.0)
	require.Greater(t, got.DurationMinutes, 0.0)

	again, err := f.svc.OptimizeRoute(ctx, "t1", r.ID)
	require.NoError(t, err)
	for i := range got.Stops {
		require.Equal(t, got.Stops[i].ID, again.Stops[i].ID)
	}
}

func TestService_OptimizeRoute_TwoOptNeverWorse(t *testing.T) {
	pts := []models.Coordinates{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 4}, {Lat: 1, Lng: 1}, {Lat: 0, Lng: 2}, {Lat: 2, Lng: 3}, {Lat: 3, Lng: 0}}

	var dist [2]float64
	for i, twoOpt := range []bool{false, true} {
		opts := DefaultOptions()
		opts.TwoOpt = twoOpt
		f := newFixture(t, opts)
		r := f.route(t, false)
		for j := range pts {
			_, _, err := f.svc.AddStop(context.Background(), "t1", r.ID, StopInput{ShipmentID: f.shipment(t, &pts[j]).ID})
			require.NoError(t, err)
		}
		got, err := f.svc.OptimizeRoute(context.Background(), "t1", r.ID)
		require.NoError(t, err)
		require.Equal(t, models.Coordinates{}, *got.Stops[0].Coords)
		dist[i] = got.DistanceKm
	}
	require.LessOrEqual(t, dist[1], dist[0])
}

func TestService_AddStop_Coordinates(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	blind := f.shipment(t, nil)
	_, _, err := f.svc.AddStop(ctx, "t1", f.route(t, true).ID, StopInput{ShipmentID: blind.ID})
	require.ErrorIs(t, err, errs.ErrMissingCoordinates)

	r := f.route(t, false)
	_, st, err := f.svc.AddStop(ctx, "t1", r.ID, StopInput{ShipmentID: blind.ID, Notes: "ring twice"})
	require.NoError(t, err)
	require.Nil(t, st.Coords)
	require.Equal(t, 0, st.Index)

	explicit := &models.Coordinates{Lat: 1, Lng: 2}
	_, st, err = f.svc.AddStop(ctx, "t1", r.ID, StopInput{ShipmentID: f.shipment(t, nil).ID, Coords: explicit})
	require.NoError(t, err)
	require.Equal(t, explicit, st.Coords)
	require.Equal(t, 1, st.Index)

	_, _, err = f.svc.AddStop(ctx, "t1", r.ID, StopInput{ShipmentID: blind.ID})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestService_AddStop_MovesShipmentBetweenRoutes(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	sh := f.shipment(t, &models.Coordinates{Lat: 1, Lng: 1})
	other := f.shipment(t, &models.Coordinates{Lat: 2, Lng: 2})

	first := f.route(t, false)
	_, _, err := f.svc.AddStop(ctx, "t1", first.ID, StopInput{ShipmentID: sh.ID})
	require.NoError(t, err)
	_, _, err = f.svc.AddStop(ctx, "t1", first.ID, StopInput{ShipmentID: other.ID})
	require.NoError(t, err)

	second := f.route(t, false)
	_, _, err = f.svc.AddStop(ctx, "t1", second.ID, StopInput{ShipmentID: sh.ID})
	require.NoError(t, err)

	got, err := f.svc.GetRoute(ctx, "t1", first.ID)
	require.NoError(t, err)
	require.Len(t, got.Stops, 1)
	require.Equal(t, other.ID, got.Stops[0].ShipmentID)
	require.Equal(t, 0, got.Stops[0].Index)
}

func TestService_ReorderStops(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	r := f.route(t, false)
	var stopIDs []string
	for i := 0; i < 3; i++ {
		_, st, err := f.svc.AddStop(ctx, "t1", r.ID, StopInput{ShipmentID: f.shipment(t, nil).ID})
		require.NoError(t, err)
		stopIDs = append(stopIDs, st.ID)
	}

	_, err := f.svc.ReorderStops(ctx, "t1", r.ID, stopIDs[:2])
	require.ErrorIs(t, err, errs.ErrInvalidPermutation)
	_, err = f.svc.ReorderStops(ctx, "t1", r.ID, []string{stopIDs[0], stopIDs[0], stopIDs[1]})
	require.ErrorIs(t, err, errs.ErrInvalidPermutation)
	_, err = f.svc.ReorderStops(ctx, "t1", r.ID, []string{stopIDs[0], stopIDs[1], "ghost"})
	require.ErrorIs(t, err, errs.ErrInvalidPermutation)

	got, err := f.svc.ReorderStops(ctx, "t1", r.ID, []string{stopIDs[2], stopIDs[0], stopIDs[1]})
	require.NoError(t, err)
	require.Equal(t, stopIDs[2], got.Stops[0].ID)
	require.Equal(t, 0, got.Stops[0].Index)
	require.Equal(t, 2, got.Stops[2].Index)
}

func TestService_CompleteStop_DrivesShipmentsAndRoute(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	r := f.route(t, false)
	okShip := f.shipment(t, nil)
	badShip := f.shipment(t, nil)
	_, okStop, err := f.svc.AddStop(ctx, "t1", r.ID, StopInput{ShipmentID: okShip.ID})
	require.NoError(t, err)
	_, badStop, err := f.svc.AddStop(ctx, "t1", r.ID, StopInput{ShipmentID: badShip.ID})
	require.NoError(t, err)

	_, err = f.svc.CompleteStop(ctx, "t1", r.ID, okStop.ID, StopOutcome{Status: models.StopPending})
	require.ErrorIs(t, err, errs.ErrValidation)

	got, err := f.svc.CompleteStop(ctx, "t1", r.ID, okStop.ID, StopOutcome{Status: models.StopCompleted, Signer: "Marta", SignatureRef: "sig-7"})
	require.NoError(t, err)
	require.Equal(t, models.RouteInProgress, got.Status)
	require.Equal(t, "sig-7", got.Stop(okStop.ID).ProofRef)
	require.NotNil(t, got.Stop(okStop.ID).CompletedAt)

	sh, err := f.tracker.GetShipment(ctx, "t1", okShip.ID)
	require.NoError(t, err)
	require.Equal(t, models.ShipmentDelivered, sh.Status)
	require.Equal(t, "Marta", sh.Proof.Signer)

	_, err = f.svc.CompleteStop(ctx, "t1", r.ID, okStop.ID, StopOutcome{Status: models.StopFailed})
	require.ErrorIs(t, err, errs.ErrInvalidTransition)

	got, err = f.svc.CompleteStop(ctx, "t1", r.ID, badStop.ID, StopOutcome{Status: models.StopFailed, Notes: "nobody home"})
	require.NoError(t, err)
	require.Equal(t, models.RouteCompleted, got.Status)

	sh, err = f.tracker.GetShipment(ctx, "t1", badShip.ID)
	require.NoError(t, err)
	require.Equal(t, models.ShipmentFailed, sh.Status)
	evs, err := f.tracker.History(ctx, "t1", badShip.ID, shipments.NewestFirst)
	require.NoError(t, err)
	require.Equal(t, models.OriginSystem, evs[0].Origin)
	require.Equal(t, "nobody home", evs[0].Description)

	_, err = f.svc.ReorderStops(ctx, "t1", r.ID, []string{badStop.ID, okStop.ID})
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestService_CompleteStop_AlreadyDeliveredIsNotReRecorded(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	r := f.route(t, false)
	sh := f.shipment(t, nil)
	_, st, err := f.svc.AddStop(ctx, "t1", r.ID, StopInput{ShipmentID: sh.ID})
	require.NoError(t, err)
	_, err = f.tracker.RegisterProofOfDelivery(ctx, "t1", sh.ID, shipments.PODInput{Signer: "front desk"})
	require.NoError(t, err)

	_, err = f.svc.CompleteStop(ctx, "t1", r.ID, st.ID, StopOutcome{Status: models.StopCompleted})
	require.NoError(t, err)
	evs, err := f.tracker.History(ctx, "t1", sh.ID, shipments.OldestFirst)
	require.NoError(t, err)
	require.Len(t, evs, 1)
}

func TestService_CompleteStop_FailedRedeliveryIsRecorded(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()
	sh := f.shipment(t, nil)
	_, _, err := f.tracker.RecordEvent(ctx, "t1", sh.ID, shipments.EventInput{
		Status:      models.ShipmentFailed,
		Description: "first attempt failed",
		Origin:      models.OriginCarrier,
	})
	require.NoError(t, err)

	r := f.route(t, false)
	_, st, err := f.svc.AddStop(ctx, "t1", r.ID, StopInput{ShipmentID: sh.ID})
	require.NoError(t, err)
	_, err = f.svc.CompleteStop(ctx, "t1", r.ID, st.ID, StopOutcome{Status: models.StopFailed, Notes: "second attempt, nobody home"})
	require.NoError(t, err)

	evs, err := f.tracker.History(ctx, "t1", sh.ID, shipments.NewestFirst)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	require.Equal(t, models.ShipmentFailed, evs[0].Status)
	require.Equal(t, models.OriginSystem, evs[0].Origin)
	require.Equal(t, "second attempt, nobody home", evs[0].Description)

	got, err := f.tracker.GetShipment(ctx, "t1", sh.ID)
	require.NoError(t, err)
	require.Equal(t, models.ShipmentFailed, got.Status)
}

func TestService_RouteLockHeld_Conflict(t *testing.T) {
	st := memstore.New()
	locker := cache.NewLocalLocker()
	svc := New(st, shipments.New(st, nil, 0), locker, DefaultOptions()).WithRetryBudget(errs.NoRetry())
	r, err := svc.CreateRoute(context.Background(), "t1", RouteInput{Name: "R"})
	require.NoError(t, err)

	release, err := locker.Acquire(context.Background(), lockKey("t1", r.ID), time.Minute)
	require.NoError(t, err)
	_, err = svc.StartRoute(context.Background(), "t1", r.ID)
	require.ErrorIs(t, err, errs.ErrConcurrencyConflict)

	require.NoError(t, release(context.Background()))
	got, err := svc.StartRoute(context.Background(), "t1", r.ID)
	require.NoError(t, err)
	require.Equal(t, models.RouteInProgress, got.Status)

	got, err = svc.CancelRoute(context.Background(), "t1", r.ID)
	require.NoError(t, err)
	require.Equal(t, models.RouteCancelled, got.Status)
	_, err = svc.StartRoute(context.Background(), "t1", r.ID)
	require.ErrorIs(t, err, errs.ErrInvalidTransition)
}

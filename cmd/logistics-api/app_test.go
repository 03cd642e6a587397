package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/LogiBox/config"
	"github.com/BearBump/LogiBox/internal/api/httpapi"
	"github.com/BearBump/LogiBox/internal/broker/messages"
	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/BearBump/LogiBox/internal/services/assembly"
	"github.com/BearBump/LogiBox/internal/services/fulfillment"
	"github.com/BearBump/LogiBox/internal/services/replenishment"
	"github.com/BearBump/LogiBox/internal/services/routes"
	"github.com/BearBump/LogiBox/internal/services/shipments"
	"github.com/BearBump/LogiBox/internal/storage/memstore"
	"github.com/stretchr/testify/require"
)

func newMemoryAPI() (*httpapi.API, *shipments.Service) {
	st := memstore.New()
	tracker := shipments.New(st, nil, 0)
	replen := replenishment.New(st)
	api := httpapi.New(tracker, replen, assembly.New(st, replen), fulfillment.New(st, tracker),
		routes.New(st, tracker, nil, routes.DefaultOptions()))
	return api, tracker
}

func writeSwagger(t *testing.T) string {
	t.Helper()
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	return sw
}

type fakeConsumer struct {
	msgs    [][]byte
	errs    []error
	handled chan struct{}
}

func (c *fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for _, m := range c.msgs {
		c.errs = append(c.errs, handler([]byte("k"), m))
	}
	close(c.handled)
	<-ctx.Done()
	return ctx.Err()
}

func TestRunLogisticsAPI_ServesSwaggerAndAPI(t *testing.T) {
	api, tracker := newMemoryAPI()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := logisticsAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: writeSwagger(t),
		topic:       "t",
		onListen:    func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLogisticsAPI(ctx, opts, api.Handler(), tracker, nil)
	}()
	addr := <-addrCh

	resp, err := http.Get("http://" + addr + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"swagger"`)

	resp, err = http.Get("http://" + addr + "/v1/tenants/t1/routes")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting server to stop")
	}
}

func TestRunLogisticsAPI_SwaggerRequired(t *testing.T) {
	api, tracker := newMemoryAPI()
	err := runLogisticsAPI(context.Background(), logisticsAPIOpts{httpAddr: "127.0.0.1:0"}, api.Handler(), tracker, nil)
	require.Error(t, err)

	err = runLogisticsAPI(context.Background(), logisticsAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: filepath.Join(t.TempDir(), "nope.json"),
	}, api.Handler(), tracker, nil)
	require.Error(t, err)
}

func TestRunLogisticsAPI_AppliesCarrierUpdates(t *testing.T) {
	st := memstore.New()
	tracker := shipments.New(st, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sh, err := tracker.CreateShipment(ctx, "t1", models.ShipmentCreateInput{
		OrderID:        "SO-1",
		CarrierCode:    "EMU",
		TrackingNumber: "TRK1",
		Destination:    "Calle 1",
	})
	require.NoError(t, err)

	update, err := json.Marshal(messages.CarrierUpdate{
		TenantID:   "t1",
		ShipmentID: sh.ID,
		CheckedAt:  time.Now().UTC(),
		Events: []messages.CarrierEvent{
			{Status: "IN_TRANSIT", StatusRaw: "in transit", EventTime: time.Now().UTC().Add(-time.Hour)},
		},
	})
	require.NoError(t, err)
	cons := &fakeConsumer{msgs: [][]byte{update, []byte("{")}, handled: make(chan struct{})}

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	api, _ := newMemoryAPI()
	go func() {
		errCh <- runLogisticsAPI(ctx, logisticsAPIOpts{
			httpAddr:    "127.0.0.1:0",
			swaggerPath: writeSwagger(t),
			onListen:    func(a string) { addrCh <- a },
		}, api.Handler(), tracker, cons)
	}()
	<-addrCh

	select {
	case <-cons.handled:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for carrier updates")
	}
	got, err := tracker.GetShipment(ctx, "t1", sh.ID)
	require.NoError(t, err)
	require.Equal(t, models.ShipmentInTransit, got.Status)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	require.Len(t, cons.errs, 2)
	require.NoError(t, cons.errs[0])
	require.ErrorIs(t, cons.errs[1], errs.ErrValidation)
}

type stoppingConsumer struct{ err error }

func (c stoppingConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	return c.err
}

func TestRunLogisticsAPI_ConsumerFailureStopsProcess(t *testing.T) {
	api, tracker := newMemoryAPI()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := runLogisticsAPI(ctx, logisticsAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: writeSwagger(t),
	}, api.Handler(), tracker, stoppingConsumer{err: errors.New("broker gone")})
	require.ErrorContains(t, err, "broker gone")
}

func TestRetryBudgetAndRouteOptions(t *testing.T) {
	b := retryBudget(config.LogiBoxConfig{RetryAttempts: 5, RetryMaxIntervalMillis: 100})
	require.Equal(t, 5, b.Attempts)
	require.Equal(t, errs.DefaultBudget().InitialInterval, b.InitialInterval)
	require.Equal(t, 100*time.Millisecond, b.MaxInterval)

	o := routeOptions(config.LogiBoxConfig{RouteAverageSpeedKmh: 45, RouteTwoOpt: true})
	require.Equal(t, 45.0, o.AverageSpeedKmh)
	require.Equal(t, routes.DefaultOptions().StopServiceMinutes, o.StopServiceMinutes)
	require.True(t, o.TwoOpt)
}

func TestNewCaches_WithoutRedisUsesLocalLocks(t *testing.T) {
	app := &logisticsAPIApp{}
	c, l := newCaches(&config.Config{}, app)
	require.Nil(t, c)
	require.NotNil(t, l)
	require.Empty(t, app.closers)
}

func TestMustOpenStore_Memory(t *testing.T) {
	app := &logisticsAPIApp{}
	st := mustOpenStore(&config.Config{LogiBox: config.LogiBoxConfig{Storage: "memory"}}, app)
	_, ok := st.(*memstore.Store)
	require.True(t, ok)
	require.Panics(t, func() {
		mustOpenStore(&config.Config{LogiBox: config.LogiBoxConfig{Storage: "sqlite"}}, app)
	})
}

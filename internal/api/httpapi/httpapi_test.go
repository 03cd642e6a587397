package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BearBump/LogiBox/internal/models"
	"github.com/BearBump/LogiBox/internal/services/assembly"
	"github.com/BearBump/LogiBox/internal/services/fulfillment"
	"github.com/BearBump/LogiBox/internal/services/replenishment"
	"github.com/BearBump/LogiBox/internal/services/routes"
	"github.com/BearBump/LogiBox/internal/services/shipments"
	"github.com/BearBump/LogiBox/internal/storage/memstore"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type APISuite struct {
	suite.Suite
	srv *httptest.Server
}

func (s *APISuite) SetupTest() {
	st := memstore.New()
	tracker := shipments.New(st, nil, 0)
	replen := replenishment.New(st)
	api := New(
		tracker,
		replen,
		assembly.New(st, replen),
		fulfillment.New(st, tracker),
		routes.New(st, tracker, nil, routes.DefaultOptions()),
	)
	s.srv = httptest.NewServer(api.Handler())
}

func (s *APISuite) TearDownTest() {
	s.srv.Close()
}

func (s *APISuite) do(method, path string, body any, wantStatus int, out any) {
	s.T().Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.srv.URL+"/v1/tenants/t1"+path, rd)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw := new(bytes.Buffer)
	_, _ = raw.ReadFrom(resp.Body)
	s.Require().Equal(wantStatus, resp.StatusCode, raw.String())
	if out != nil {
		s.Require().NoError(json.Unmarshal(raw.Bytes(), out))
	}
}

func (s *APISuite) TestFulfillmentToDelivery() {
	var order fulfillmentOrderView
	s.do(http.MethodPost, "/fulfillment-orders", map[string]any{
		"orderRef":          "SO-100",
		"recipient":         "Ana",
		"destination":       "Av. Siempre Viva 742",
		"destinationCoords": map[string]float64{"lat": -34.6, "lng": -58.4},
		"lines": []map[string]any{
			{"sku": "A", "quantity": 2, "unitWeightKg": 1.5},
			{"sku": "B", "quantity": 1, "unitWeightKg": 1},
		},
	}, http.StatusCreated, &order)
	s.Equal(models.FulfillmentPending, order.Status)
	s.Equal(3, order.ItemCount)

	s.do(http.MethodPost, "/fulfillment-orders/"+order.ID+"/lines/A/pick", nil, http.StatusOK, &order)
	s.Equal(models.FulfillmentPicking, order.Status)
	s.do(http.MethodPost, "/fulfillment-orders/"+order.ID+"/lines/B/pick", nil, http.StatusOK, &order)
	s.Equal(models.FulfillmentReadyToPack, order.Status)
	s.do(http.MethodPost, "/fulfillment-orders/"+order.ID+"/pack", map[string]int{"packages": 2}, http.StatusOK, &order)
	s.Equal(models.FulfillmentPacked, order.Status)

	var dispatched struct {
		Order    fulfillmentOrderView `json:"order"`
		Shipment shipmentView         `json:"shipment"`
	}
	s.do(http.MethodPost, "/fulfillment-orders/"+order.ID+"/dispatch", nil, http.StatusOK, &dispatched)
	s.Equal(models.FulfillmentDispatched, dispatched.Order.Status)
	s.Equal(models.ShipmentCreated, dispatched.Shipment.Status)
	s.InDelta(4.0, dispatched.Shipment.WeightKg, 1e-9)

	var rt routeView
	s.do(http.MethodPost, "/routes", map[string]any{"name": "Norte", "date": "2026-03-02"}, http.StatusCreated, &rt)
	s.Equal("2026-03-02", rt.Date)
	s.do(http.MethodPost, "/routes/"+rt.ID+"/stops", map[string]any{"shipmentId": dispatched.Shipment.ID}, http.StatusCreated, &rt)
	s.Require().Len(rt.Stops, 1)
	s.Require().NotNil(rt.Stops[0].Coords)

	s.do(http.MethodPost, "/routes/"+rt.ID+"/stops/"+rt.Stops[0].ID+"/complete", map[string]any{
		"status": "completed",
		"signer": "Ana",
	}, http.StatusOK, &rt)
	s.Equal(models.RouteCompleted, rt.Status)

	var sh shipmentView
	s.do(http.MethodGet, "/shipments/"+dispatched.Shipment.ID, nil, http.StatusOK, &sh)
	s.Equal(models.ShipmentDelivered, sh.Status)
	s.Require().NotNil(sh.Proof)
	s.Equal("Ana", sh.Proof.Signer)

	var hist struct {
		Events []eventView `json:"events"`
	}
	s.do(http.MethodGet, "/shipments/"+sh.ID+"/events?order=asc", nil, http.StatusOK, &hist)
	s.Require().NotEmpty(hist.Events)
	s.Equal(models.ShipmentDelivered, hist.Events[len(hist.Events)-1].Status)

	var byOrder struct {
		Shipments []shipmentView `json:"shipments"`
	}
	s.do(http.MethodGet, "/shipments?orderId=SO-100", nil, http.StatusOK, &byOrder)
	s.Len(byOrder.Shipments, 1)
}

func (s *APISuite) TestAssemblyShortage() {
	s.do(http.MethodPut, "/stock-items/WINE", map[string]any{"current": 1, "optimal": 10}, http.StatusOK, nil)
	var art articleView
	s.do(http.MethodPost, "/articles", map[string]any{
		"sku":  "GIFT",
		"name": "Gift",
		"bom":  []map[string]any{{"sku": "WINE", "quantity": 2}},
	}, http.StatusCreated, &art)

	var o assemblyOrderView
	s.do(http.MethodPost, "/assembly-orders", map[string]any{"articleId": art.ID, "quantity": 1}, http.StatusCreated, &o)

	var reqs struct {
		CanStart  bool     `json:"canStart"`
		ShortSKUs []string `json:"shortSkus"`
	}
	s.do(http.MethodGet, "/assembly-orders/"+o.ID+"/requirements", nil, http.StatusOK, &reqs)
	s.False(reqs.CanStart)
	s.Equal([]string{"WINE"}, reqs.ShortSKUs)

	var body errorBody
	s.do(http.MethodPost, "/assembly-orders/"+o.ID+"/start", nil, http.StatusUnprocessableEntity, &body)
	s.Equal("COMPONENT_SHORTAGE", body.Error.Kind)
	s.Equal([]string{"WINE"}, body.Error.SKUs)

	var sugs struct {
		Suggestions []suggestionView `json:"suggestions"`
	}
	s.do(http.MethodGet, "/purchase-suggestions?status=suggested", nil, http.StatusOK, &sugs)
	s.Require().Len(sugs.Suggestions, 1)
	s.Equal("WINE", sugs.Suggestions[0].SKU)

	s.do(http.MethodPost, "/purchase-suggestions/nope/approve", nil, http.StatusNotFound, nil)
	var sg suggestionView
	s.do(http.MethodPost, "/purchase-suggestions/"+sugs.Suggestions[0].ID+"/approve", nil, http.StatusOK, &sg)
	s.Equal(models.PurchaseApproved, sg.Status)
	s.do(http.MethodPost, "/purchase-suggestions/"+sg.ID+"/teleport", nil, http.StatusNotFound, nil)
}

func (s *APISuite) TestStockAlerts_InfiniteDaysAsNull() {
	s.do(http.MethodPut, "/stock-items/SALT", map[string]any{"current": 1, "optimal": 10}, http.StatusOK, nil)
	var out struct {
		Alerts []alertView `json:"alerts"`
	}
	s.do(http.MethodGet, "/stock-alerts?includeOk=true&sku=SALT", nil, http.StatusOK, &out)
	s.Require().Len(out.Alerts, 1)
	s.Nil(out.Alerts[0].DaysRemaining)
	s.Equal(models.SeverityLow, out.Alerts[0].Severity)

	s.do(http.MethodGet, "/stock-alerts?includeOk=maybe", nil, http.StatusBadRequest, nil)
}

func (s *APISuite) TestValidationErrors() {
	var body errorBody
	s.do(http.MethodPost, "/fulfillment-orders", map[string]any{
		"orderRef": "SO-1",
		"lines":    []map[string]any{{"sku": "A", "quantity": 0}},
	}, http.StatusBadRequest, &body)
	s.Equal("VALIDATION_ERROR", body.Error.Kind)
	s.Contains(body.Error.Fields, "destination")
	s.Contains(body.Error.Fields, "lines[0].quantity")

	s.do(http.MethodPost, "/routes", map[string]any{"name": "x", "speed": 3}, http.StatusBadRequest, nil)
	s.do(http.MethodPost, "/routes", map[string]any{"name": "x", "date": "02/03/2026"}, http.StatusBadRequest, nil)
	s.do(http.MethodGet, "/routes?status=flying", nil, http.StatusBadRequest, nil)
	s.do(http.MethodGet, "/shipments", nil, http.StatusBadRequest, nil)
	s.do(http.MethodGet, "/shipments/missing", nil, http.StatusNotFound, nil)
}

func (s *APISuite) TestRouteReorderInvalidPermutation() {
	var rt routeView
	s.do(http.MethodPost, "/routes", map[string]any{"name": "Sur"}, http.StatusCreated, &rt)

	var body errorBody
	s.do(http.MethodPut, "/routes/"+rt.ID+"/stops/order", map[string]any{"stopIds": []string{"x"}}, http.StatusBadRequest, &body)
	s.Equal("INVALID_PERMUTATION", body.Error.Kind)

	s.do(http.MethodPost, "/routes/"+rt.ID+"/cancel", nil, http.StatusOK, &rt)
	s.Equal(models.RouteCancelled, rt.Status)
	s.do(http.MethodPost, "/routes/"+rt.ID+"/start", nil, http.StatusConflict, nil)
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func TestWriteError_HidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	writeError(rec, req, errBoom{})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INTERNAL", body.Error.Kind)
	require.Equal(t, "internal error", body.Error.Message)
}

type errBoom struct{}

func (errBoom) Error() string { return "dial tcp 10.0.0.1:5432: secret" }

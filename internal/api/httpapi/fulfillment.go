package httpapi

import (
	"net/http"

	"github.com/BearBump/LogiBox/internal/models"
	"github.com/BearBump/LogiBox/internal/services/fulfillment"
	"github.com/go-chi/chi/v5"
)

type pickLineRequest struct {
	SKU          string  `json:"sku" validate:"required"`
	Description  string  `json:"description"`
	Quantity     int     `json:"quantity" validate:"min=1"`
	Location     string  `json:"location"`
	UnitWeightKg float64 `json:"unitWeightKg" validate:"gte=0"`
}

type createFulfillmentOrderRequest struct {
	OrderRef          string            `json:"orderRef" validate:"required"`
	Customer          string            `json:"customer"`
	Recipient         string            `json:"recipient"`
	Destination       string            `json:"destination" validate:"required"`
	DestinationCoords *coordsRequest    `json:"destinationCoords"`
	CarrierCode       string            `json:"carrierCode"`
	Priority          models.Priority   `json:"priority" validate:"omitempty,oneof=urgent high normal low"`
	Zone              string            `json:"zone"`
	Lines             []pickLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (a *API) createFulfillmentOrder(w http.ResponseWriter, r *http.Request) {
	var req createFulfillmentOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	lines := make([]models.PickLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, models.PickLine{
			SKU:          l.SKU,
			Description:  l.Description,
			Quantity:     l.Quantity,
			Location:     l.Location,
			UnitWeightKg: l.UnitWeightKg,
		})
	}
	o, err := a.fulfillment.CreateOrder(r.Context(), tenant(r), fulfillment.OrderInput{
		OrderRef:          req.OrderRef,
		Customer:          req.Customer,
		Recipient:         req.Recipient,
		Destination:       req.Destination,
		DestinationCoords: req.DestinationCoords.model(),
		CarrierCode:       req.CarrierCode,
		Priority:          req.Priority,
		Zone:              req.Zone,
		Lines:             lines,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFulfillmentOrderView(o))
}

func (a *API) listFulfillmentOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := a.fulfillment.ListOrders(r.Context(), tenant(r), models.FulfillmentFilter{
		WaveID: q.Get("waveId"),
		Status: models.FulfillmentStatus(q.Get("status")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": toFulfillmentOrderViews(list)})
}

func (a *API) getFulfillmentOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.fulfillment.GetOrder(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFulfillmentOrderView(o))
}

type assignToWaveRequest struct {
	WaveID string `json:"waveId" validate:"required"`
}

func (a *API) assignToWave(w http.ResponseWriter, r *http.Request) {
	var req assignToWaveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := a.fulfillment.AssignToWave(r.Context(), tenant(r), chi.URLParam(r, "id"), req.WaveID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFulfillmentOrderView(o))
}

type startPickingRequest struct {
	Worker string `json:"worker"`
}

func (a *API) startPicking(w http.ResponseWriter, r *http.Request) {
	var req startPickingRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := a.fulfillment.StartPicking(r.Context(), tenant(r), chi.URLParam(r, "id"), req.Worker)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFulfillmentOrderView(o))
}

func (a *API) markPicked(w http.ResponseWriter, r *http.Request) {
	o, err := a.fulfillment.MarkPicked(r.Context(), tenant(r), chi.URLParam(r, "id"), chi.URLParam(r, "sku"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFulfillmentOrderView(o))
}

type packRequest struct {
	Packages int `json:"packages" validate:"gte=0"`
}

func (a *API) pack(w http.ResponseWriter, r *http.Request) {
	var req packRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := a.fulfillment.Pack(r.Context(), tenant(r), chi.URLParam(r, "id"), req.Packages)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFulfillmentOrderView(o))
}

func (a *API) dispatch(w http.ResponseWriter, r *http.Request) {
	o, sh, err := a.fulfillment.Dispatch(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order":    toFulfillmentOrderView(o),
		"shipment": toShipmentView(sh),
	})
}

type createWaveRequest struct {
	Name        string `json:"name" validate:"required"`
	WorkerCount int    `json:"workerCount" validate:"gte=0"`
}

func (a *API) createWave(w http.ResponseWriter, r *http.Request) {
	var req createWaveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	wv, err := a.fulfillment.CreateWave(r.Context(), tenant(r), req.Name, req.WorkerCount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWaveView(&fulfillment.WaveView{Wave: wv, Status: models.WaveOpen}))
}

func (a *API) getWave(w http.ResponseWriter, r *http.Request) {
	v, err := a.fulfillment.GetWave(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWaveView(v))
}

func (a *API) startWave(w http.ResponseWriter, r *http.Request) {
	v, err := a.fulfillment.StartWave(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWaveView(v))
}

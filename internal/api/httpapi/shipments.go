package httpapi

import (
	"net/http"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/BearBump/LogiBox/internal/services/shipments"
	"github.com/go-chi/chi/v5"
)

type coordsRequest struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

func (c *coordsRequest) model() *models.Coordinates {
	if c == nil {
		return nil
	}
	return &models.Coordinates{Lat: c.Lat, Lng: c.Lng}
}

type createShipmentRequest struct {
	OrderID           string         `json:"orderId" validate:"required"`
	SourceRef         string         `json:"sourceRef"`
	CarrierCode       string         `json:"carrierCode"`
	TrackingNumber    string         `json:"trackingNumber" validate:"required_with=CarrierCode"`
	Leg               models.LegType `json:"leg" validate:"omitempty,oneof=local intercity international last_mile"`
	Origin            string         `json:"origin"`
	Destination       string         `json:"destination" validate:"required"`
	DestinationCoords *coordsRequest `json:"destinationCoords"`
	Recipient         string         `json:"recipient"`
	WeightKg          float64        `json:"weightKg" validate:"gte=0"`
	Packages          int            `json:"packages" validate:"gte=0"`
	EstimatedDelivery *time.Time     `json:"estimatedDelivery"`
}

func (a *API) createShipment(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sh, err := a.shipments.CreateShipment(r.Context(), tenant(r), models.ShipmentCreateInput{
		OrderID:           req.OrderID,
		SourceRef:         req.SourceRef,
		CarrierCode:       req.CarrierCode,
		TrackingNumber:    req.TrackingNumber,
		Leg:               req.Leg,
		Origin:            req.Origin,
		Destination:       req.Destination,
		DestinationCoords: req.DestinationCoords.model(),
		Recipient:         req.Recipient,
		WeightKg:          req.WeightKg,
		Packages:          req.Packages,
		EstimatedDelivery: req.EstimatedDelivery,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShipmentView(sh))
}

func (a *API) listShipments(w http.ResponseWriter, r *http.Request) {
	list, err := a.shipments.ShipmentsForOrder(r.Context(), tenant(r), r.URL.Query().Get("orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shipments": toShipmentViews(list)})
}

func (a *API) getShipment(w http.ResponseWriter, r *http.Request) {
	sh, err := a.shipments.GetShipment(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toShipmentView(sh))
}

func (a *API) shipmentHistory(w http.ResponseWriter, r *http.Request) {
	order := shipments.HistoryOrder(r.URL.Query().Get("order"))
	if order != "" && order != shipments.NewestFirst && order != shipments.OldestFirst {
		writeError(w, r, errs.Validation("order must be asc or desc"))
		return
	}
	evs, err := a.shipments.History(r.Context(), tenant(r), chi.URLParam(r, "id"), order)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]eventView, 0, len(evs))
	for _, e := range evs {
		out = append(out, toEventView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

type recordEventRequest struct {
	Status      models.ShipmentStatus `json:"status" validate:"required"`
	Description string                `json:"description"`
	Location    *string               `json:"location"`
	Coords      *coordsRequest        `json:"coords"`
	Origin      models.EventOrigin    `json:"origin" validate:"omitempty,oneof=system carrier manual"`
	OccurredAt  *time.Time            `json:"occurredAt"`
}

func (a *API) recordEvent(w http.ResponseWriter, r *http.Request) {
	var req recordEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	origin := req.Origin
	if origin == "" {
		origin = models.OriginManual
	}
	sh, ev, err := a.shipments.RecordEvent(r.Context(), tenant(r), chi.URLParam(r, "id"), shipments.EventInput{
		Status:      req.Status,
		Description: req.Description,
		Location:    req.Location,
		Coords:      req.Coords.model(),
		Origin:      origin,
		OccurredAt:  req.OccurredAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"shipment": toShipmentView(sh),
		"event":    toEventView(ev),
	})
}

type proofOfDeliveryRequest struct {
	Signer       string         `json:"signer" validate:"required"`
	SignatureRef string         `json:"signatureRef"`
	Location     *string        `json:"location"`
	Coords       *coordsRequest `json:"coords"`
}

func (a *API) registerProofOfDelivery(w http.ResponseWriter, r *http.Request) {
	var req proofOfDeliveryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sh, err := a.shipments.RegisterProofOfDelivery(r.Context(), tenant(r), chi.URLParam(r, "id"), shipments.PODInput{
		Signer:       req.Signer,
		SignatureRef: req.SignatureRef,
		Location:     req.Location,
		Coords:       req.Coords.model(),
		Origin:       models.OriginManual,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toShipmentView(sh))
}

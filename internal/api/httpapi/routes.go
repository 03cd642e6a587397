package httpapi

import (
	"net/http"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/BearBump/LogiBox/internal/services/routes"
	"github.com/go-chi/chi/v5"
)

type createRouteRequest struct {
	Name     string `json:"name" validate:"required"`
	Driver   string `json:"driver"`
	Vehicle  string `json:"vehicle"`
	Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Optimize bool   `json:"optimize"`
}

func (a *API) createRoute(w http.ResponseWriter, r *http.Request) {
	var req createRouteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var date time.Time
	if req.Date != "" {
		date, _ = time.Parse(dateLayout, req.Date)
	}
	rt, err := a.routes.CreateRoute(r.Context(), tenant(r), routes.RouteInput{
		Name:     req.Name,
		Driver:   req.Driver,
		Vehicle:  req.Vehicle,
		Date:     date,
		Optimize: req.Optimize,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRouteView(rt))
}

func (a *API) listRoutes(w http.ResponseWriter, r *http.Request) {
	status := models.RouteStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.RoutePending, models.RouteInProgress, models.RouteCompleted, models.RouteCancelled:
	default:
		writeError(w, r, errs.Validation("unknown route status %q", status))
		return
	}
	list, err := a.routes.ListRoutes(r.Context(), tenant(r), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]routeView, 0, len(list))
	for _, rt := range list {
		out = append(out, toRouteView(rt))
	}
	writeJSON(w, http.StatusOK, map[string]any{"routes": out})
}

func (a *API) getRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := a.routes.GetRoute(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRouteView(rt))
}

type addStopRequest struct {
	ShipmentID string         `json:"shipmentId" validate:"required"`
	Coords     *coordsRequest `json:"coords"`
	Notes      string         `json:"notes"`
}

func (a *API) addStop(w http.ResponseWriter, r *http.Request) {
	var req addStopRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rt, _, err := a.routes.AddStop(r.Context(), tenant(r), chi.URLParam(r, "id"), routes.StopInput{
		ShipmentID: req.ShipmentID,
		Coords:     req.Coords.model(),
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRouteView(rt))
}

type reorderStopsRequest struct {
	StopIDs []string `json:"stopIds" validate:"required"`
}

func (a *API) reorderStops(w http.ResponseWriter, r *http.Request) {
	var req reorderStopsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := a.routes.ReorderStops(r.Context(), tenant(r), chi.URLParam(r, "id"), req.StopIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRouteView(rt))
}

func (a *API) optimizeRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := a.routes.OptimizeRoute(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRouteView(rt))
}

func (a *API) startRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := a.routes.StartRoute(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRouteView(rt))
}

func (a *API) cancelRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := a.routes.CancelRoute(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRouteView(rt))
}

type completeStopRequest struct {
	Status       models.StopStatus `json:"status" validate:"required,oneof=completed failed"`
	Signer       string            `json:"signer"`
	SignatureRef string            `json:"signatureRef"`
	ProofRef     string            `json:"proofRef"`
	Notes        string            `json:"notes"`
}

func (a *API) completeStop(w http.ResponseWriter, r *http.Request) {
	var req completeStopRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := a.routes.CompleteStop(r.Context(), tenant(r), chi.URLParam(r, "id"), chi.URLParam(r, "stopID"), routes.StopOutcome{
		Status:       req.Status,
		Signer:       req.Signer,
		SignatureRef: req.SignatureRef,
		ProofRef:     req.ProofRef,
		Notes:        req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRouteView(rt))
}

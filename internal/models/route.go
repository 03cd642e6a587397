package models

import "time"

type RouteStatus string

const (
	RoutePending    RouteStatus = "pending"
	RouteInProgress RouteStatus = "in_progress"
	RouteCompleted  RouteStatus = "completed"
	RouteCancelled  RouteStatus = "cancelled"
)

var routeTransitions = map[RouteStatus][]RouteStatus{
	RoutePending:    {RouteInProgress, RouteCompleted, RouteCancelled},
	RouteInProgress: {RouteCompleted, RouteCancelled},
}

func (s RouteStatus) CanTransitionTo(next RouteStatus) bool {
	for _, to := range routeTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Active routes still hold references to their shipments.
func (s RouteStatus) Active() bool {
	return s == RoutePending || s == RouteInProgress
}

type StopStatus string

const (
	StopPending   StopStatus = "pending"
	StopCompleted StopStatus = "completed"
	StopFailed    StopStatus = "failed"
)

func (s StopStatus) Terminal() bool { return s == StopCompleted || s == StopFailed }

type Stop struct {
	ID          string
	RouteID     string
	ShipmentID  string
	Index       int
	Status      StopStatus
	Coords      *Coordinates
	Notes       string
	CompletedAt *time.Time
	ProofRef    string
}

type Route struct {
	ID              string
	TenantID        string
	Name            string
	Driver          string
	Vehicle         string
	Date            time.Time
	Status          RouteStatus
	Optimize        bool
	DistanceKm      float64
	DurationMinutes float64
	Stops           []*Stop
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (r *Route) Stop(id string) *Stop {
	for _, s := range r.Stops {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Reindex rewrites stop indices to match slice order.
func (r *Route) Reindex() {
	for i, s := range r.Stops {
		s.Index = i
	}
}

// RemoveShipment drops the pending stop referencing shipmentID, if any, and
// reindexes. It reports whether a stop was removed.
func (r *Route) RemoveShipment(shipmentID string) bool {
	for i, s := range r.Stops {
		if s.ShipmentID == shipmentID && s.Status == StopPending {
			r.Stops = append(r.Stops[:i], r.Stops[i+1:]...)
			r.Reindex()
			return true
		}
	}
	return false
}

func (r *Route) AllStopsTerminal() bool {
	if len(r.Stops) == 0 {
		return false
	}
	for _, s := range r.Stops {
		if !s.Status.Terminal() {
			return false
		}
	}
	return true
}

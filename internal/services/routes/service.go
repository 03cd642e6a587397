package routes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/LogiBox/internal/cache"
	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/BearBump/LogiBox/internal/services/shipments"
	"github.com/google/uuid"
)

type Repository interface {
	CreateRoute(ctx context.Context, r *models.Route) (*models.Route, error)
	GetRoute(ctx context.Context, tenantID, id string) (*models.Route, error)
	ListRoutes(ctx context.Context, tenantID string, status models.RouteStatus) ([]*models.Route, error)
	// MutateRoute runs fn on the locked route and replaces its stops with
	// the result.
	MutateRoute(ctx context.Context, tenantID, id string, fn func(r *models.Route) error) (*models.Route, error)
	// ReassignStop removes pending stops for shipmentID from every other
	// active route of the tenant, then runs fn on the locked route, in one
	// transaction.
	ReassignStop(ctx context.Context, tenantID, routeID, shipmentID string, fn func(r *models.Route) error) (*models.Route, error)
}

// Tracker is the shipment tracker as seen from route execution.
type Tracker interface {
	GetShipment(ctx context.Context, tenantID, id string) (*models.Shipment, error)
	RecordEvent(ctx context.Context, tenantID, shipmentID string, in shipments.EventInput) (*models.Shipment, *models.TrackingEvent, error)
	RegisterProofOfDelivery(ctx context.Context, tenantID, shipmentID string, in shipments.PODInput) (*models.Shipment, error)
}

type Options struct {
	AverageSpeedKmh    float64
	StopServiceMinutes float64
	TwoOpt             bool
	LockTTL            time.Duration
}

func DefaultOptions() Options {
	return Options{
		AverageSpeedKmh:    30,
		StopServiceMinutes: 5,
		LockTTL:            10 * time.Second,
	}
}

type Service struct {
	repo    Repository
	tracker Tracker
	locker  cache.Locker
	opts    Options
	retry   errs.Budget
	now     func() time.Time
}

func New(repo Repository, tracker Tracker, locker cache.Locker, opts Options) *Service {
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultOptions().LockTTL
	}
	return &Service{
		repo:    repo,
		tracker: tracker,
		locker:  locker,
		opts:    opts,
		retry:   errs.DefaultBudget(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithRetryBudget(b errs.Budget) *Service {
	s.retry = b
	return s
}

type RouteInput struct {
	Name     string
	Driver   string
	Vehicle  string
	Date     time.Time
	Optimize bool
}

func (s *Service) CreateRoute(ctx context.Context, tenantID string, in RouteInput) (*models.Route, error) {
	if tenantID == "" || strings.TrimSpace(in.Name) == "" {
		return nil, errs.Validation("tenantId and name are required")
	}
	now := s.now()
	if in.Date.IsZero() {
		in.Date = now.Truncate(24 * time.Hour)
	}
	return s.repo.CreateRoute(ctx, &models.Route{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      in.Name,
		Driver:    in.Driver,
		Vehicle:   in.Vehicle,
		Date:      in.Date,
		Status:    models.RoutePending,
		Optimize:  in.Optimize,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *Service) GetRoute(ctx context.Context, tenantID, id string) (*models.Route, error) {
	return s.repo.GetRoute(ctx, tenantID, id)
}

func (s *Service) ListRoutes(ctx context.Context, tenantID string, status models.RouteStatus) ([]*models.Route, error) {
	return s.repo.ListRoutes(ctx, tenantID, status)
}

type StopInput struct {
	ShipmentID string
	Coords     *models.Coordinates
	Notes      string
}

// AddStop appends a stop for the shipment. Coordinates default to the
// shipment destination. The shipment leaves any other active route it was
// pending on.
func (s *Service) AddStop(ctx context.Context, tenantID, routeID string, in StopInput) (*models.Route, *models.Stop, error) {
	if in.ShipmentID == "" {
		return nil, nil, errs.Validation("shipmentId is required")
	}
	sh, err := s.tracker.GetShipment(ctx, tenantID, in.ShipmentID)
	if err != nil {
		return nil, nil, err
	}
	if sh.Status.Terminal() {
		return nil, nil, errs.Validation("shipment %s is already %s", sh.Number, sh.Status)
	}
	coords := in.Coords
	if coords == nil {
		coords = sh.DestinationCoords
	}

	stop := &models.Stop{
		ID:         uuid.NewString(),
		RouteID:    routeID,
		ShipmentID: in.ShipmentID,
		Status:     models.StopPending,
		Coords:     coords,
		Notes:      in.Notes,
	}
	var out *models.Route
	err = s.withLock(ctx, tenantID, routeID, func(ctx context.Context) error {
		var err error
		out, err = s.repo.ReassignStop(ctx, tenantID, routeID, in.ShipmentID, func(r *models.Route) error {
			if !r.Status.Active() {
				return errs.InvalidTransition("route", string(r.Status), "add stop")
			}
			for _, st := range r.Stops {
				if st.ShipmentID == in.ShipmentID && st.Status == models.StopPending {
					return errs.Validation("shipment %s already has a pending stop on this route", sh.Number)
				}
			}
			if r.Optimize && coords == nil {
				return errs.MissingCoordinates(stop.ID)
			}
			stop.Index = len(r.Stops)
			r.Stops = append(r.Stops, stop)
			s.recompute(r)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return out, out.Stop(stop.ID), nil
}

// ReorderStops applies a manual order. stopIDs must name every stop of the
// route exactly once.
func (s *Service) ReorderStops(ctx context.Context, tenantID, routeID string, stopIDs []string) (*models.Route, error) {
	return s.mutate(ctx, tenantID, routeID, func(r *models.Route) error {
		if !r.Status.Active() {
			return errs.InvalidTransition("route", string(r.Status), "reorder")
		}
		if len(stopIDs) != len(r.Stops) {
			return errs.InvalidPermutation(fmt.Sprintf("got %d stop ids, route has %d stops", len(stopIDs), len(r.Stops)))
		}
		byID := make(map[string]*models.Stop, len(r.Stops))
		for _, st := range r.Stops {
			byID[st.ID] = st
		}
		next := make([]*models.Stop, 0, len(stopIDs))
		for _, id := range stopIDs {
			st, ok := byID[id]
			if !ok {
				return errs.InvalidPermutation(fmt.Sprintf("stop %s is not on the route or listed twice", id))
			}
			delete(byID, id)
			next = append(next, st)
		}
		r.Stops = next
		s.recompute(r)
		return nil
	})
}

// OptimizeRoute reorders the stops by nearest neighbour from the current
// first stop, optionally refined by 2-opt.
func (s *Service) OptimizeRoute(ctx context.Context, tenantID, routeID string) (*models.Route, error) {
	return s.mutate(ctx, tenantID, routeID, func(r *models.Route) error {
		if !r.Status.Active() {
			return errs.InvalidTransition("route", string(r.Status), "optimize")
		}
		ordered, err := NearestNeighbour(r.Stops)
		if err != nil {
			return err
		}
		if s.opts.TwoOpt {
			ordered = TwoOpt(ordered)
		}
		r.Stops = ordered
		s.recompute(r)
		return nil
	})
}

func (s *Service) StartRoute(ctx context.Context, tenantID, routeID string) (*models.Route, error) {
	return s.transition(ctx, tenantID, routeID, models.RouteInProgress)
}

func (s *Service) CancelRoute(ctx context.Context, tenantID, routeID string) (*models.Route, error) {
	return s.transition(ctx, tenantID, routeID, models.RouteCancelled)
}

type StopOutcome struct {
	Status       models.StopStatus
	Signer       string
	SignatureRef string
	ProofRef     string
	Notes        string
}

// CompleteStop closes a stop and reports the outcome to the shipment
// tracker first: failed stops fail the shipment, completed ones deliver it.
func (s *Service) CompleteStop(ctx context.Context, tenantID, routeID, stopID string, out StopOutcome) (*models.Route, error) {
	if !out.Status.Terminal() {
		return nil, errs.Validation("stop outcome must be completed or failed")
	}
	var res *models.Route
	err := s.withLock(ctx, tenantID, routeID, func(ctx context.Context) error {
		r, err := s.repo.GetRoute(ctx, tenantID, routeID)
		if err != nil {
			return err
		}
		if !r.Status.Active() {
			return errs.InvalidTransition("route", string(r.Status), "complete stop")
		}
		st := r.Stop(stopID)
		if st == nil {
			return errs.NotFound("stop", stopID)
		}
		if st.Status.Terminal() {
			return errs.InvalidTransition("stop", string(st.Status), string(out.Status))
		}
		if err := s.report(ctx, tenantID, st, out); err != nil {
			return err
		}

		res, err = s.repo.MutateRoute(ctx, tenantID, routeID, func(r *models.Route) error {
			st := r.Stop(stopID)
			if st == nil {
				return errs.NotFound("stop", stopID)
			}
			now := s.now()
			st.Status = out.Status
			st.CompletedAt = &now
			if out.ProofRef != "" {
				st.ProofRef = out.ProofRef
			} else if out.SignatureRef != "" {
				st.ProofRef = out.SignatureRef
			}
			if out.Notes != "" {
				st.Notes = out.Notes
			}
			if r.Status == models.RoutePending {
				r.Status = models.RouteInProgress
			}
			if r.AllStopsTerminal() {
				r.Status = models.RouteCompleted
			}
			r.UpdatedAt = now
			return nil
		})
		return err
	})
	return res, err
}

func (s *Service) report(ctx context.Context, tenantID string, st *models.Stop, out StopOutcome) error {
	sh, err := s.tracker.GetShipment(ctx, tenantID, st.ShipmentID)
	if err != nil {
		return err
	}
	if out.Status == models.StopFailed {
		// A shipment that is already fallido still gets the event: every
		// failed attempt is part of its history.
		desc := "delivery attempt failed"
		if out.Notes != "" {
			desc = out.Notes
		}
		_, _, err := s.tracker.RecordEvent(ctx, tenantID, st.ShipmentID, shipments.EventInput{
			Status:      models.ShipmentFailed,
			Description: desc,
			Coords:      st.Coords,
			Origin:      models.OriginSystem,
		})
		return err
	}

	if sh.Status == models.ShipmentDelivered {
		return nil
	}
	if out.Signer != "" {
		_, err = s.tracker.RegisterProofOfDelivery(ctx, tenantID, st.ShipmentID, shipments.PODInput{
			Signer:       out.Signer,
			SignatureRef: out.SignatureRef,
			Coords:       st.Coords,
			Origin:       models.OriginSystem,
		})
		return err
	}
	_, _, err = s.tracker.RecordEvent(ctx, tenantID, st.ShipmentID, shipments.EventInput{
		Status:      models.ShipmentDelivered,
		Description: "delivered on route",
		Coords:      st.Coords,
		Origin:      models.OriginSystem,
	})
	return err
}

func (s *Service) transition(ctx context.Context, tenantID, routeID string, to models.RouteStatus) (*models.Route, error) {
	return s.mutate(ctx, tenantID, routeID, func(r *models.Route) error {
		if !r.Status.CanTransitionTo(to) {
			return errs.InvalidTransition("route", string(r.Status), string(to))
		}
		r.Status = to
		r.UpdatedAt = s.now()
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, tenantID, routeID string, fn func(*models.Route) error) (*models.Route, error) {
	var out *models.Route
	err := s.withLock(ctx, tenantID, routeID, func(ctx context.Context) error {
		var err error
		out, err = s.repo.MutateRoute(ctx, tenantID, routeID, fn)
		return err
	})
	return out, err
}

// withLock runs fn holding the route writer lock, retrying lost races within
// the retry budget.
func (s *Service) withLock(ctx context.Context, tenantID, routeID string, fn func(ctx context.Context) error) error {
	if tenantID == "" || routeID == "" {
		return errs.Validation("tenantId and routeId are required")
	}
	key := lockKey(tenantID, routeID)
	return errs.Retry(ctx, s.retry, func(ctx context.Context) error {
		release, err := s.locker.Acquire(ctx, key, s.opts.LockTTL)
		if err != nil {
			return err
		}
		defer func() {
			// The lease expires on its own if this fails.
			if err := release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("release route lock", "key", key, "error", err.Error())
			}
		}()
		return fn(ctx)
	})
}

func (s *Service) recompute(r *models.Route) {
	r.Reindex()
	r.DistanceKm, r.DurationMinutes = PathMetrics(r.Stops, s.opts.AverageSpeedKmh, s.opts.StopServiceMinutes)
	r.UpdatedAt = s.now()
}

func lockKey(tenantID, routeID string) string {
	return fmt.Sprintf("route:%s:%s:lock", tenantID, routeID)
}

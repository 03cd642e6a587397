package fulfillment

import (
	"context"
	"strings"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/google/uuid"
)

type Repository interface {
	CreateFulfillmentOrder(ctx context.Context, o *models.FulfillmentOrder) (*models.FulfillmentOrder, error)
	GetFulfillmentOrder(ctx context.Context, tenantID, id string) (*models.FulfillmentOrder, error)
	ListFulfillmentOrders(ctx context.Context, tenantID string, f models.FulfillmentFilter) ([]*models.FulfillmentOrder, error)
	// MutateFulfillmentOrder runs fn on the locked order row, lines included.
	MutateFulfillmentOrder(ctx context.Context, tenantID, id string, fn func(o *models.FulfillmentOrder) error) (*models.FulfillmentOrder, error)

	CreateWave(ctx context.Context, w *models.Wave) (*models.Wave, error)
	GetWave(ctx context.Context, tenantID, id string) (*models.Wave, error)
	MutateWave(ctx context.Context, tenantID, id string, fn func(w *models.Wave) error) (*models.Wave, error)
}

// ShipmentCreator is the shipment tracker as seen by dispatch.
type ShipmentCreator interface {
	CreateShipment(ctx context.Context, tenantID string, in models.ShipmentCreateInput) (*models.Shipment, error)
}

type Service struct {
	repo      Repository
	shipments ShipmentCreator
	retry     errs.Budget
	now       func() time.Time
}

func New(repo Repository, shipments ShipmentCreator) *Service {
	return &Service{
		repo:      repo,
		shipments: shipments,
		retry:     errs.DefaultBudget(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithRetryBudget(b errs.Budget) *Service {
	s.retry = b
	return s
}

type OrderInput struct {
	OrderRef          string
	Customer          string
	Recipient         string
	Destination       string
	DestinationCoords *models.Coordinates
	CarrierCode       string
	Priority          models.Priority
	Zone              string
	Lines             []models.PickLine
}

func (s *Service) CreateOrder(ctx context.Context, tenantID string, in OrderInput) (*models.FulfillmentOrder, error) {
	if tenantID == "" || strings.TrimSpace(in.OrderRef) == "" {
		return nil, errs.Validation("tenantId and orderRef are required")
	}
	if len(in.Lines) == 0 {
		return nil, errs.Validation("order has no lines")
	}
	lines := make([]models.PickLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		if l.SKU == "" || l.Quantity <= 0 {
			return nil, errs.Validation("every line needs a sku and a positive quantity")
		}
		l.Picked = false
		lines = append(lines, l)
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	if !in.Priority.Valid() {
		return nil, errs.Validation("unknown priority %q", in.Priority)
	}

	now := s.now()
	return s.repo.CreateFulfillmentOrder(ctx, &models.FulfillmentOrder{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		OrderRef:          in.OrderRef,
		Customer:          in.Customer,
		Recipient:         in.Recipient,
		Destination:       in.Destination,
		DestinationCoords: in.DestinationCoords,
		CarrierCode:       in.CarrierCode,
		Status:            models.FulfillmentPending,
		Priority:          in.Priority,
		Zone:              in.Zone,
		Lines:             lines,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
}

func (s *Service) GetOrder(ctx context.Context, tenantID, id string) (*models.FulfillmentOrder, error) {
	return s.repo.GetFulfillmentOrder(ctx, tenantID, id)
}

func (s *Service) ListOrders(ctx context.Context, tenantID string, f models.FulfillmentFilter) ([]*models.FulfillmentOrder, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, errs.Validation("unknown status %q", f.Status)
	}
	return s.repo.ListFulfillmentOrders(ctx, tenantID, f)
}

func (s *Service) CreateWave(ctx context.Context, tenantID, name string, workers int) (*models.Wave, error) {
	if tenantID == "" || strings.TrimSpace(name) == "" {
		return nil, errs.Validation("tenantId and name are required")
	}
	if workers < 0 {
		return nil, errs.Validation("worker count must not be negative")
	}
	return s.repo.CreateWave(ctx, &models.Wave{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Name:        name,
		WorkerCount: workers,
		CreatedAt:   s.now(),
	})
}

type WaveView struct {
	Wave    *models.Wave
	Status  models.WaveStatus
	Members []*models.FulfillmentOrder
}

// GetWave returns the wave with its members and derived status.
func (s *Service) GetWave(ctx context.Context, tenantID, id string) (*WaveView, error) {
	w, err := s.repo.GetWave(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.ListFulfillmentOrders(ctx, tenantID, models.FulfillmentFilter{WaveID: id})
	if err != nil {
		return nil, err
	}
	return &WaveView{Wave: w, Status: models.DeriveWaveStatus(w, members), Members: members}, nil
}

// AssignToWave puts a pending order into a wave. Reassigning to another wave
// is allowed while the order is still pending.
func (s *Service) AssignToWave(ctx context.Context, tenantID, orderID, waveID string) (*models.FulfillmentOrder, error) {
	if _, err := s.repo.GetWave(ctx, tenantID, waveID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, tenantID, orderID, func(o *models.FulfillmentOrder) error {
		if o.Status != models.FulfillmentPending {
			return errs.InvalidTransition("fulfillment order", string(o.Status), "wave assignment")
		}
		o.WaveID = &waveID
		o.UpdatedAt = s.now()
		return nil
	})
}

// StartWave stamps the wave start and moves its pending members into picking.
func (s *Service) StartWave(ctx context.Context, tenantID, waveID string) (*WaveView, error) {
	_, err := s.mutateWave(ctx, tenantID, waveID, func(w *models.Wave) error {
		if w.StartedAt != nil {
			return errs.InvalidTransition("wave", string(models.WaveInProgress), string(models.WaveInProgress))
		}
		now := s.now()
		w.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	members, err := s.repo.ListFulfillmentOrders(ctx, tenantID, models.FulfillmentFilter{WaveID: waveID, Status: models.FulfillmentPending})
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		_, err := s.mutate(ctx, tenantID, m.ID, func(o *models.FulfillmentOrder) error {
			// Picked up by a worker in the meantime.
			if o.Status != models.FulfillmentPending {
				return nil
			}
			o.Status = models.FulfillmentPicking
			o.UpdatedAt = s.now()
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return s.GetWave(ctx, tenantID, waveID)
}

func (s *Service) StartPicking(ctx context.Context, tenantID, orderID, worker string) (*models.FulfillmentOrder, error) {
	return s.mutate(ctx, tenantID, orderID, func(o *models.FulfillmentOrder) error {
		if err := s.step(o, models.FulfillmentPicking); err != nil {
			return err
		}
		if worker != "" {
			o.Worker = &worker
		}
		return nil
	})
}

// MarkPicked flags the first unpicked line with sku. A pending order is
// started implicitly; once every line is picked the order is ready to pack.
func (s *Service) MarkPicked(ctx context.Context, tenantID, orderID, sku string) (*models.FulfillmentOrder, error) {
	if sku == "" {
		return nil, errs.Validation("sku is required")
	}
	return s.mutate(ctx, tenantID, orderID, func(o *models.FulfillmentOrder) error {
		if o.Status == models.FulfillmentPending {
			if err := s.step(o, models.FulfillmentPicking); err != nil {
				return err
			}
		}
		if o.Status != models.FulfillmentPicking {
			return errs.InvalidTransition("fulfillment order", string(o.Status), "pick")
		}

		idx, known := -1, false
		for i, l := range o.Lines {
			if l.SKU != sku {
				continue
			}
			known = true
			if !l.Picked {
				idx = i
				break
			}
		}
		switch {
		case !known:
			return errs.NotFound("pick line", sku)
		case idx < 0:
			return errs.Validation("every %s line is already picked", sku)
		}
		o.Lines[idx].Picked = true
		o.UpdatedAt = s.now()

		if o.AllPicked() {
			return s.step(o, models.FulfillmentReadyToPack)
		}
		return nil
	})
}

func (s *Service) Pack(ctx context.Context, tenantID, orderID string, packages int) (*models.FulfillmentOrder, error) {
	if packages < 0 {
		return nil, errs.Validation("packages must not be negative")
	}
	if packages == 0 {
		packages = 1
	}
	return s.mutate(ctx, tenantID, orderID, func(o *models.FulfillmentOrder) error {
		if !o.AllPicked() {
			return errs.InvalidTransition("fulfillment order", string(o.Status), string(models.FulfillmentPacked))
		}
		if err := s.step(o, models.FulfillmentPacked); err != nil {
			return err
		}
		o.Packages = packages
		return nil
	})
}

// Dispatch hands a packed order to the shipment tracker and closes it. The
// shipment is keyed by the order, so a retried dispatch reuses it.
func (s *Service) Dispatch(ctx context.Context, tenantID, orderID string) (*models.FulfillmentOrder, *models.Shipment, error) {
	o, err := s.repo.GetFulfillmentOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !o.Status.CanTransitionTo(models.FulfillmentDispatched) {
		return nil, nil, errs.InvalidTransition("fulfillment order", string(o.Status), string(models.FulfillmentDispatched))
	}

	sh, err := s.shipments.CreateShipment(ctx, tenantID, models.ShipmentCreateInput{
		OrderID:           o.OrderRef,
		SourceRef:         o.ID,
		CarrierCode:       o.CarrierCode,
		Leg:               models.LegLastMile,
		Destination:       o.Destination,
		DestinationCoords: o.DestinationCoords,
		Recipient:         o.Recipient,
		WeightKg:          o.WeightKg(),
		Packages:          o.Packages,
	})
	if err != nil {
		return nil, nil, err
	}

	o, err = s.mutate(ctx, tenantID, orderID, func(o *models.FulfillmentOrder) error {
		if err := s.step(o, models.FulfillmentDispatched); err != nil {
			return err
		}
		o.ShipmentID = &sh.ID
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return o, sh, nil
}

func (s *Service) step(o *models.FulfillmentOrder, to models.FulfillmentStatus) error {
	if !o.Status.CanTransitionTo(to) {
		return errs.InvalidTransition("fulfillment order", string(o.Status), string(to))
	}
	if to == models.FulfillmentReadyToPack && !o.AllPicked() {
		return errs.InvalidTransition("fulfillment order", string(o.Status), string(to))
	}
	o.Status = to
	o.UpdatedAt = s.now()
	return nil
}

func (s *Service) mutate(ctx context.Context, tenantID, id string, fn func(*models.FulfillmentOrder) error) (*models.FulfillmentOrder, error) {
	if tenantID == "" || id == "" {
		return nil, errs.Validation("tenantId and orderId are required")
	}
	var out *models.FulfillmentOrder
	err := errs.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		out, err = s.repo.MutateFulfillmentOrder(ctx, tenantID, id, fn)
		return err
	})
	return out, err
}

func (s *Service) mutateWave(ctx context.Context, tenantID, id string, fn func(*models.Wave) error) (*models.Wave, error) {
	var out *models.Wave
	err := errs.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		out, err = s.repo.MutateWave(ctx, tenantID, id, fn)
		return err
	})
	return out, err
}

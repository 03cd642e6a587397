package shipments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/LogiBox/internal/cache"
	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/google/uuid"
)

type Repository interface {
	// CreateOrGetShipment inserts sh, or returns the existing shipment with the
	// same SourceRef. The bool reports whether a row was inserted.
	CreateOrGetShipment(ctx context.Context, sh *models.Shipment) (*models.Shipment, bool, error)
	GetShipment(ctx context.Context, tenantID, id string) (*models.Shipment, error)
	ListShipmentsByOrder(ctx context.Context, tenantID, orderID string) ([]*models.Shipment, error)
	// ListShipmentEvents returns the events oldest first (ascending Seq).
	ListShipmentEvents(ctx context.Context, tenantID, shipmentID string) ([]*models.TrackingEvent, error)
	// MutateShipment runs fn on the locked shipment row. A non-nil event is
	// appended with the next Seq; shipment and event are committed together.
	MutateShipment(ctx context.Context, tenantID, id string, fn func(sh *models.Shipment) (*models.TrackingEvent, error)) (*models.Shipment, error)
	ScheduleNextCheck(ctx context.Context, tenantID, id string, checkedAt, next time.Time, checkErr *string) error
}

type Service struct {
	repo       Repository
	cache      cache.BytesCache
	currentTTL time.Duration
	retry      errs.Budget
	now        func() time.Time
}

func New(repo Repository, c cache.BytesCache, currentTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		cache:      c,
		currentTTL: currentTTL,
		retry:      errs.DefaultBudget(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithRetryBudget(b errs.Budget) *Service {
	s.retry = b
	return s
}

type EventInput struct {
	Status      models.ShipmentStatus
	Description string
	Location    *string
	Coords      *models.Coordinates
	Origin      models.EventOrigin
	OccurredAt  *time.Time
}

type PODInput struct {
	Signer       string
	SignatureRef string
	Location     *string
	Coords       *models.Coordinates
	Origin       models.EventOrigin
}

type HistoryOrder string

const (
	NewestFirst HistoryOrder = "desc"
	OldestFirst HistoryOrder = "asc"
)

func (s *Service) CreateShipment(ctx context.Context, tenantID string, in models.ShipmentCreateInput) (*models.Shipment, error) {
	if tenantID == "" {
		return nil, errs.Validation("tenantId is required")
	}
	if in.OrderID == "" {
		return nil, errs.Validation("orderId is required")
	}
	if in.Leg == "" {
		in.Leg = models.LegLastMile
	}
	if !in.Leg.Valid() {
		return nil, errs.Validation("unknown leg type %q", in.Leg)
	}
	if in.Packages <= 0 {
		in.Packages = 1
	}

	now := s.now()
	id := uuid.NewString()
	sh := &models.Shipment{
		ID:                id,
		TenantID:          tenantID,
		Number:            shipmentNumber(id),
		OrderID:           in.OrderID,
		SourceRef:         in.SourceRef,
		Status:            models.ShipmentCreated,
		CarrierCode:       in.CarrierCode,
		TrackingNumber:    in.TrackingNumber,
		Leg:               in.Leg,
		Origin:            in.Origin,
		Destination:       in.Destination,
		DestinationCoords: in.DestinationCoords,
		Recipient:         in.Recipient,
		WeightKg:          in.WeightKg,
		Packages:          in.Packages,
		EstimatedDelivery: in.EstimatedDelivery,
		NextCheckAt:       now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var out *models.Shipment
	err := errs.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		out, _, err = s.repo.CreateOrGetShipment(ctx, sh)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) GetShipment(ctx context.Context, tenantID, id string) (*models.Shipment, error) {
	if id == "" {
		return nil, errs.Validation("shipmentId is required")
	}
	if s.cacheEnabled() {
		if b, ok, err := s.cache.Get(ctx, currentKey(tenantID, id)); err == nil && ok {
			var sh models.Shipment
			if json.Unmarshal(b, &sh) == nil {
				return &sh, nil
			}
		}
	}
	sh, err := s.repo.GetShipment(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, sh)
	return sh, nil
}

// RecordEvent appends a tracking event and moves the shipment to its status
// when it differs from the current one. Terminal shipments only accept
// events repeating their status (corrective notes).
func (s *Service) RecordEvent(ctx context.Context, tenantID, shipmentID string, in EventInput) (*models.Shipment, *models.TrackingEvent, error) {
	if !in.Status.Valid() {
		return nil, nil, errs.Validation("unknown shipment status %q", in.Status)
	}
	if in.Origin == "" {
		in.Origin = models.OriginManual
	}
	if !in.Origin.Valid() {
		return nil, nil, errs.Validation("unknown event origin %q", in.Origin)
	}

	var ev *models.TrackingEvent
	sh, err := s.mutate(ctx, tenantID, shipmentID, func(sh *models.Shipment) (*models.TrackingEvent, error) {
		if in.Status != sh.Status && !sh.Status.CanTransitionTo(in.Status) {
			return nil, errs.InvalidTransition("shipment", string(sh.Status), string(in.Status))
		}
		now := s.now()
		if in.Status != sh.Status {
			sh.Status = in.Status
			if in.Status == models.ShipmentDelivered {
				sh.DeliveredAt = &now
			}
		}
		ev = &models.TrackingEvent{
			ShipmentID:  sh.ID,
			Status:      in.Status,
			Description: in.Description,
			Location:    in.Location,
			Coords:      in.Coords,
			Origin:      in.Origin,
			OccurredAt:  in.OccurredAt,
			RecordedAt:  now,
		}
		return ev, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sh, ev, nil
}

// RegisterProofOfDelivery closes the shipment as delivered with the
// recipient's signature.
func (s *Service) RegisterProofOfDelivery(ctx context.Context, tenantID, shipmentID string, in PODInput) (*models.Shipment, error) {
	if strings.TrimSpace(in.Signer) == "" {
		return nil, errs.Validation("signer is required")
	}
	if in.Origin == "" {
		in.Origin = models.OriginManual
	}
	return s.mutate(ctx, tenantID, shipmentID, func(sh *models.Shipment) (*models.TrackingEvent, error) {
		if !sh.Status.CanTransitionTo(models.ShipmentDelivered) {
			return nil, errs.InvalidTransition("shipment", string(sh.Status), string(models.ShipmentDelivered))
		}
		now := s.now()
		sh.Status = models.ShipmentDelivered
		sh.DeliveredAt = &now
		sh.Proof = &models.ProofOfDelivery{Signer: in.Signer, SignatureRef: in.SignatureRef}
		return &models.TrackingEvent{
			ShipmentID:  sh.ID,
			Status:      models.ShipmentDelivered,
			Description: fmt.Sprintf("delivered, signed by %s", in.Signer),
			Location:    in.Location,
			Coords:      in.Coords,
			Origin:      in.Origin,
			RecordedAt:  now,
		}, nil
	})
}

func (s *Service) History(ctx context.Context, tenantID, shipmentID string, order HistoryOrder) ([]*models.TrackingEvent, error) {
	if _, err := s.repo.GetShipment(ctx, tenantID, shipmentID); err != nil {
		return nil, err
	}
	evs, err := s.repo.ListShipmentEvents(ctx, tenantID, shipmentID)
	if err != nil {
		return nil, err
	}
	if order == NewestFirst || order == "" {
		out := make([]*models.TrackingEvent, len(evs))
		for i, e := range evs {
			out[len(evs)-1-i] = e
		}
		return out, nil
	}
	return evs, nil
}

// ShipmentsForOrder is the mother-order view: every shipment whose parent is
// orderID.
func (s *Service) ShipmentsForOrder(ctx context.Context, tenantID, orderID string) ([]*models.Shipment, error) {
	if orderID == "" {
		return nil, errs.Validation("orderId is required")
	}
	return s.repo.ListShipmentsByOrder(ctx, tenantID, orderID)
}

func (s *Service) mutate(ctx context.Context, tenantID, id string, fn func(sh *models.Shipment) (*models.TrackingEvent, error)) (*models.Shipment, error) {
	if tenantID == "" || id == "" {
		return nil, errs.Validation("tenantId and shipmentId are required")
	}
	var out *models.Shipment
	err := errs.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		out, err = s.repo.MutateShipment(ctx, tenantID, id, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.remember(ctx, out)
	return out, nil
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.currentTTL > 0
}

func (s *Service) remember(ctx context.Context, sh *models.Shipment) {
	if !s.cacheEnabled() || sh == nil {
		return
	}
	b, _ := json.Marshal(sh)
	if err := s.cache.Set(ctx, currentKey(sh.TenantID, sh.ID), b, s.currentTTL); err != nil {
		slog.Warn("cache shipment", "shipment_id", sh.ID, "error", err.Error())
	}
}

func currentKey(tenantID, id string) string {
	return fmt.Sprintf("shipment:%s:%s:current", tenantID, id)
}

func shipmentNumber(id string) string {
	return "ENV-" + strings.ToUpper(strings.ReplaceAll(id, "-", "")[:8])
}

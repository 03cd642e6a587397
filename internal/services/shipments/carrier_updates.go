package shipments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/BearBump/LogiBox/internal/broker/messages"
	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
)

// DefaultRecheck is used when the worker did not say when to poll next.
const DefaultRecheck = 60 * time.Minute

type ApplyResult struct {
	Recorded   int
	Duplicates int
	Rejected   int
}

// ApplyCarrierUpdate records the carrier events of one poll that are not
// stored yet, oldest first, and reschedules the next poll. Events the state
// machine refuses are skipped, not fatal: carriers report out of order.
func (s *Service) ApplyCarrierUpdate(ctx context.Context, msg messages.CarrierUpdate) (ApplyResult, error) {
	var res ApplyResult
	if msg.TenantID == "" || msg.ShipmentID == "" {
		return res, errs.Validation("tenant_id and shipment_id are required")
	}
	if msg.CheckedAt.IsZero() {
		msg.CheckedAt = s.now()
	}
	if msg.NextCheckAt.IsZero() {
		msg.NextCheckAt = msg.CheckedAt.Add(DefaultRecheck)
	}

	if msg.Error != nil {
		return res, s.repo.ScheduleNextCheck(ctx, msg.TenantID, msg.ShipmentID, msg.CheckedAt, msg.NextCheckAt, msg.Error)
	}

	stored, err := s.repo.ListShipmentEvents(ctx, msg.TenantID, msg.ShipmentID)
	if err != nil {
		return res, err
	}
	seen := make(map[string]struct{}, len(stored))
	for _, e := range stored {
		if e.Origin == models.OriginCarrier {
			seen[eventKey(e.Status, e.OccurredAt, e.Location)] = struct{}{}
		}
	}

	incoming := append([]messages.CarrierEvent(nil), msg.Events...)
	sort.SliceStable(incoming, func(i, j int) bool {
		return incoming[i].EventTime.Before(incoming[j].EventTime)
	})

	for _, ce := range incoming {
		st, ok := models.ParseShipmentStatus(ce.Status)
		if !ok {
			slog.Warn("carrier event with unknown status skipped",
				"shipment_id", msg.ShipmentID, "status", ce.Status, "status_raw", ce.StatusRaw)
			res.Rejected++
			continue
		}
		at := ce.EventTime
		key := eventKey(st, &at, ce.Location)
		if _, dup := seen[key]; dup {
			res.Duplicates++
			continue
		}

		_, _, err := s.RecordEvent(ctx, msg.TenantID, msg.ShipmentID, EventInput{
			Status:      st,
			Description: describe(ce),
			Location:    ce.Location,
			Coords:      coords(ce),
			Origin:      models.OriginCarrier,
			OccurredAt:  &at,
		})
		if errors.Is(err, errs.ErrInvalidTransition) {
			slog.Warn("carrier event rejected by shipment state machine",
				"shipment_id", msg.ShipmentID, "status", st, "error", err.Error())
			res.Rejected++
			continue
		}
		if err != nil {
			return res, err
		}
		seen[key] = struct{}{}
		res.Recorded++
	}

	return res, s.repo.ScheduleNextCheck(ctx, msg.TenantID, msg.ShipmentID, msg.CheckedAt, msg.NextCheckAt, nil)
}

func eventKey(st models.ShipmentStatus, at *time.Time, loc *string) string {
	ts := ""
	if at != nil {
		// Postgres keeps microseconds.
		ts = at.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
	}
	l := ""
	if loc != nil {
		l = *loc
	}
	return fmt.Sprintf("%s|%s|%s", st, ts, l)
}

func describe(ce messages.CarrierEvent) string {
	if ce.Message != nil && *ce.Message != "" {
		return *ce.Message
	}
	return ce.StatusRaw
}

func coords(ce messages.CarrierEvent) *models.Coordinates {
	if ce.Lat == nil || ce.Lng == nil {
		return nil
	}
	return &models.Coordinates{Lat: *ce.Lat, Lng: *ce.Lng}
}

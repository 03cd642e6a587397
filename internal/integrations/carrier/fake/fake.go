// Package fake is a deterministic stand-in carrier for local runs and tests.
package fake

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/BearBump/LogiBox/internal/integrations/carrier"
)

var progression = []string{"PICKED_UP", "IN_TRANSIT", "AT_DEPOT", "OUT_FOR_DELIVERY", "DELIVERED"}

// Client reports a fixed scan history per (carrier, tracking number): the
// hash picks how far along the progression the parcel is, and event times are
// fixed so repeated polls return identical events.
type Client struct{}

func New() *Client { return &Client{} }

func (f *Client) GetTracking(ctx context.Context, carrierCode, trackingNumber string) (carrier.TrackingResult, error) {
	if err := ctx.Err(); err != nil {
		return carrier.TrackingResult{}, err
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(carrierCode))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(trackingNumber))
	v := h.Sum32()

	stage := int(v % uint32(len(progression)))
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(v%86400) * time.Second)

	evs := make([]carrier.Event, 0, stage+1)
	for i := 0; i <= stage; i++ {
		evs = append(evs, carrier.Event{
			Status:    progression[i],
			StatusRaw: progression[i],
			EventTime: base.Add(time.Duration(i) * 6 * time.Hour),
			Message:   ptr("fake carrier update"),
		})
	}
	last := evs[len(evs)-1]
	at := last.EventTime

	return carrier.TrackingResult{
		Status:    last.Status,
		StatusRaw: last.StatusRaw,
		StatusAt:  &at,
		Events:    evs,
	}, nil
}

func ptr(s string) *string { return &s }

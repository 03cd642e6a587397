// Package carrier is the boundary to external carrier tracking APIs.
package carrier

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one scan reported by a carrier. Status carries the carrier's
// normalized code (IN_TRANSIT, DELIVERED, ...); mapping onto shipment states
// happens when the update is applied.
type Event struct {
	Status    string
	StatusRaw string
	EventTime time.Time
	Location  *string
	Message   *string
	Lat       *float64
	Lng       *float64
	Payload   json.RawMessage
}

type TrackingResult struct {
	Status    string
	StatusRaw string
	StatusAt  *time.Time
	Events    []Event
}

type Client interface {
	GetTracking(ctx context.Context, carrierCode, trackingNumber string) (TrackingResult, error)
}

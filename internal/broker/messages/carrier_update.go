package messages

import (
	"encoding/json"
	"time"
)

// CarrierUpdate is what the carrier worker learned about one shipment in a
// single poll. Error is set instead of Events when the carrier call failed.
type CarrierUpdate struct {
	TenantID       string    `json:"tenant_id"`
	ShipmentID     string    `json:"shipment_id"`
	CarrierCode    string    `json:"carrier_code"`
	TrackingNumber string    `json:"tracking_number"`
	CheckedAt      time.Time `json:"checked_at"`

	NextCheckAt time.Time `json:"next_check_at"`

	Events []CarrierEvent `json:"events,omitempty"`

	Error *string `json:"error,omitempty"`
}

type CarrierEvent struct {
	Status    string          `json:"status"`
	StatusRaw string          `json:"status_raw"`
	EventTime time.Time       `json:"event_time"`
	Location  *string         `json:"location,omitempty"`
	Message   *string         `json:"message,omitempty"`
	Lat       *float64        `json:"lat,omitempty"`
	Lng       *float64        `json:"lng,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

package models

import (
	"strings"
	"time"
)

type ShipmentStatus string

const (
	ShipmentCreated        ShipmentStatus = "creado"
	ShipmentDispatched     ShipmentStatus = "despachado"
	ShipmentInTransit      ShipmentStatus = "en_transito"
	ShipmentAtDepot        ShipmentStatus = "en_deposito"
	ShipmentOutForDelivery ShipmentStatus = "en_reparto"
	ShipmentDelivered      ShipmentStatus = "entregado"
	ShipmentFailed         ShipmentStatus = "fallido"
	ShipmentReturned       ShipmentStatus = "devuelto"
)

// Position along the idealized delivery sequence. Failed and returned sit
// outside it.
var shipmentRank = map[ShipmentStatus]int{
	ShipmentCreated:        0,
	ShipmentDispatched:     1,
	ShipmentInTransit:      2,
	ShipmentAtDepot:        3,
	ShipmentOutForDelivery: 4,
	ShipmentDelivered:      5,
}

func (s ShipmentStatus) Valid() bool {
	if _, ok := shipmentRank[s]; ok {
		return true
	}
	return s == ShipmentFailed || s == ShipmentReturned
}

func (s ShipmentStatus) Terminal() bool {
	return s == ShipmentDelivered || s == ShipmentReturned
}

// CanTransitionTo is the whole shipment state machine. Forward jumps along
// the delivery sequence are accepted because carriers report at different
// granularity. A failed shipment may be returned or re-enter delivery from
// the depot onwards.
func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() || s == next {
		return false
	}
	switch next {
	case ShipmentFailed:
		return true
	case ShipmentReturned:
		return s == ShipmentFailed
	}
	if s == ShipmentFailed {
		return shipmentRank[next] >= shipmentRank[ShipmentAtDepot]
	}
	return shipmentRank[next] > shipmentRank[s]
}

var shipmentStatusAliases = map[string]ShipmentStatus{
	"CREATED":          ShipmentCreated,
	"UNKNOWN":          ShipmentCreated,
	"DISPATCHED":       ShipmentDispatched,
	"PICKED_UP":        ShipmentDispatched,
	"IN_TRANSIT":       ShipmentInTransit,
	"AT_DEPOT":         ShipmentAtDepot,
	"ARRIVED":          ShipmentAtDepot,
	"OUT_FOR_DELIVERY": ShipmentOutForDelivery,
	"DELIVERED":        ShipmentDelivered,
	"FAILED":           ShipmentFailed,
	"DELIVERY_FAILED":  ShipmentFailed,
	"RETURNED":         ShipmentReturned,
}

// ParseShipmentStatus accepts the internal names and the normalized carrier
// vocabulary.
func ParseShipmentStatus(raw string) (ShipmentStatus, bool) {
	s := ShipmentStatus(strings.ToLower(strings.TrimSpace(raw)))
	if s.Valid() {
		return s, true
	}
	if alias, ok := shipmentStatusAliases[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return alias, true
	}
	return "", false
}

type LegType string

const (
	LegLocal         LegType = "local"
	LegIntercity     LegType = "intercity"
	LegInternational LegType = "international"
	LegLastMile      LegType = "last_mile"
)

func (l LegType) Valid() bool {
	switch l {
	case LegLocal, LegIntercity, LegInternational, LegLastMile:
		return true
	}
	return false
}

type EventOrigin string

const (
	OriginSystem  EventOrigin = "system"
	OriginCarrier EventOrigin = "carrier"
	OriginManual  EventOrigin = "manual"
)

func (o EventOrigin) Valid() bool {
	return o == OriginSystem || o == OriginCarrier || o == OriginManual
}

// Coordinates are latitude/longitude in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type ProofOfDelivery struct {
	Signer       string `json:"signer"`
	SignatureRef string `json:"signatureRef,omitempty"`
}

type Shipment struct {
	ID                string
	TenantID          string
	Number            string
	OrderID           string
	SourceRef         string
	Status            ShipmentStatus
	CarrierCode       string
	TrackingNumber    string
	Leg               LegType
	Origin            string
	Destination       string
	DestinationCoords *Coordinates
	Recipient         string
	WeightKg          float64
	Packages          int
	EstimatedDelivery *time.Time
	DeliveredAt       *time.Time
	Proof             *ProofOfDelivery

	NextCheckAt    time.Time
	CheckFailCount int32
	LastError      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type TrackingEvent struct {
	ID          string
	ShipmentID  string
	Seq         int
	Status      ShipmentStatus
	Description string
	Location    *string
	Coords      *Coordinates
	Origin      EventOrigin
	OccurredAt  *time.Time
	RecordedAt  time.Time
}

type ShipmentCreateInput struct {
	OrderID           string
	SourceRef         string
	CarrierCode       string
	TrackingNumber    string
	Leg               LegType
	Origin            string
	Destination       string
	DestinationCoords *Coordinates
	Recipient         string
	WeightKg          float64
	Packages          int
	EstimatedDelivery *time.Time
}

// LatestEvent returns the event with the highest sequence number.
func LatestEvent(events []*TrackingEvent) *TrackingEvent {
	var latest *TrackingEvent
	for _, e := range events {
		if latest == nil || e.Seq > latest.Seq {
			latest = e
		}
	}
	return latest
}

package models

import "time"

type FulfillmentStatus string

const (
	FulfillmentPending     FulfillmentStatus = "pending"
	FulfillmentPicking     FulfillmentStatus = "en_picking"
	FulfillmentReadyToPack FulfillmentStatus = "listo_empacar"
	FulfillmentPacked      FulfillmentStatus = "empacado"
	FulfillmentDispatched  FulfillmentStatus = "despachado"
)

var fulfillmentSequence = []FulfillmentStatus{
	FulfillmentPending,
	FulfillmentPicking,
	FulfillmentReadyToPack,
	FulfillmentPacked,
	FulfillmentDispatched,
}

func (s FulfillmentStatus) rank() int {
	for i, st := range fulfillmentSequence {
		if st == s {
			return i
		}
	}
	return -1
}

func (s FulfillmentStatus) Valid() bool { return s.rank() >= 0 }

// CanTransitionTo allows exactly one step forward.
func (s FulfillmentStatus) CanTransitionTo(next FulfillmentStatus) bool {
	r := s.rank()
	return r >= 0 && next.rank() == r+1
}

// PackedOrLater reports whether the order no longer blocks its wave.
func (s FulfillmentStatus) PackedOrLater() bool {
	return s == FulfillmentPacked || s == FulfillmentDispatched
}

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

type PickLine struct {
	SKU          string  `json:"sku"`
	Description  string  `json:"description"`
	Quantity     int     `json:"quantity"`
	Location     string  `json:"location"`
	UnitWeightKg float64 `json:"unitWeightKg"`
	Picked       bool    `json:"picked"`
}

type FulfillmentOrder struct {
	ID                string
	TenantID          string
	OrderRef          string
	Customer          string
	Recipient         string
	Destination       string
	DestinationCoords *Coordinates
	CarrierCode       string
	Status            FulfillmentStatus
	Priority          Priority
	Zone              string
	WaveID            *string
	Worker            *string
	Lines             []PickLine
	Packages          int
	ShipmentID        *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (o *FulfillmentOrder) ItemCount() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

func (o *FulfillmentOrder) AllPicked() bool {
	if len(o.Lines) == 0 {
		return false
	}
	for _, l := range o.Lines {
		if !l.Picked {
			return false
		}
	}
	return true
}

func (o *FulfillmentOrder) WeightKg() float64 {
	w := 0.0
	for _, l := range o.Lines {
		w += float64(l.Quantity) * l.UnitWeightKg
	}
	return w
}

type WaveStatus string

const (
	WaveOpen       WaveStatus = "open"
	WaveInProgress WaveStatus = "in_progress"
	WaveCompleted  WaveStatus = "completed"
)

type Wave struct {
	ID          string
	TenantID    string
	Name        string
	WorkerCount int
	StartedAt   *time.Time
	CreatedAt   time.Time
}

// DeriveWaveStatus computes the wave status from its members. A wave with no
// members is never completed.
func DeriveWaveStatus(w *Wave, members []*FulfillmentOrder) WaveStatus {
	if len(members) > 0 {
		done := true
		for _, o := range members {
			if !o.Status.PackedOrLater() {
				done = false
				break
			}
		}
		if done {
			return WaveCompleted
		}
	}
	if w != nil && w.StartedAt != nil {
		return WaveInProgress
	}
	for _, o := range members {
		if o.Status != FulfillmentPending {
			return WaveInProgress
		}
	}
	return WaveOpen
}

type FulfillmentFilter struct {
	WaveID string
	Status FulfillmentStatus
}

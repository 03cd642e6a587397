package models

import (
	"math"
	"time"
)

type StockItem struct {
	TenantID         string
	SKU              string
	Description      string
	Current          int
	Minimum          int
	Optimal          int
	DailyConsumption float64
	LeadTimeDays     float64
	Supplier         string
	UnitPrice        float64
	MinOrderQty      int
	UpdatedAt        time.Time
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityLow      Severity = "low"
	SeverityOK       Severity = "ok"
)

type StockAlert struct {
	SKU              string   `json:"sku"`
	Current          int      `json:"current"`
	Minimum          int      `json:"minimum"`
	Optimal          int      `json:"optimal"`
	DailyConsumption float64  `json:"dailyConsumption"`
	LeadTimeDays     float64  `json:"leadTimeDays"`
	DaysRemaining    float64  `json:"daysRemaining"`
	Severity         Severity `json:"severity"`
}

type ThresholdPolicy struct {
	IncludeOK bool
	// SKUs restricts the result when non-empty.
	SKUs []string
}

// DaysOfStock is current / daily consumption; +Inf when nothing is consumed.
func DaysOfStock(current int, dailyConsumption float64) float64 {
	if dailyConsumption <= 0 {
		return math.Inf(1)
	}
	return float64(current) / dailyConsumption
}

// DeriveStockAlert classifies a stock item: critical when the stock runs out
// within the supplier lead time, low when below optimal but outlasting the
// lead time, ok otherwise.
func DeriveStockAlert(it *StockItem) StockAlert {
	days := DaysOfStock(it.Current, it.DailyConsumption)
	sev := SeverityOK
	switch {
	case days <= it.LeadTimeDays:
		sev = SeverityCritical
	case it.Current < it.Optimal:
		sev = SeverityLow
	}
	return StockAlert{
		SKU:              it.SKU,
		Current:          it.Current,
		Minimum:          it.Minimum,
		Optimal:          it.Optimal,
		DailyConsumption: it.DailyConsumption,
		LeadTimeDays:     it.LeadTimeDays,
		DaysRemaining:    days,
		Severity:         sev,
	}
}

// ComputeStockAlerts derives alerts for every item that passes the policy,
// in input order.
func ComputeStockAlerts(items []*StockItem, p ThresholdPolicy) []StockAlert {
	var only map[string]struct{}
	if len(p.SKUs) > 0 {
		only = make(map[string]struct{}, len(p.SKUs))
		for _, s := range p.SKUs {
			only[s] = struct{}{}
		}
	}
	out := make([]StockAlert, 0, len(items))
	for _, it := range items {
		if only != nil {
			if _, ok := only[it.SKU]; !ok {
				continue
			}
		}
		a := DeriveStockAlert(it)
		if a.Severity == SeverityOK && !p.IncludeOK {
			continue
		}
		out = append(out, a)
	}
	return out
}

type PurchaseStatus string

const (
	PurchaseSuggested PurchaseStatus = "suggested"
	PurchaseApproved  PurchaseStatus = "approved"
	PurchaseSent      PurchaseStatus = "sent"
	PurchaseReceived  PurchaseStatus = "received"
	PurchaseCancelled PurchaseStatus = "cancelled"
)

var purchaseTransitions = map[PurchaseStatus][]PurchaseStatus{
	PurchaseSuggested: {PurchaseApproved, PurchaseCancelled},
	PurchaseApproved:  {PurchaseSent, PurchaseCancelled},
	PurchaseSent:      {PurchaseReceived, PurchaseCancelled},
}

func (s PurchaseStatus) CanTransitionTo(next PurchaseStatus) bool {
	for _, to := range purchaseTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type PurchaseSuggestion struct {
	ID          string
	TenantID    string
	SKU         string
	Supplier    string
	Quantity    int
	UnitPrice   float64
	Total       float64
	Reason      string
	Status      PurchaseStatus
	SuggestedAt time.Time
	UpdatedAt   time.Time
}

// SuggestedQuantity is optimal − current raised to the supplier minimum
// order quantity. Zero means nothing needs ordering.
func SuggestedQuantity(it *StockItem) int {
	q := it.Optimal - it.Current
	if q <= 0 {
		return 0
	}
	if it.MinOrderQty > 0 && q < it.MinOrderQty {
		q = it.MinOrderQty
	}
	return q
}

package httpapi

import (
	"math"
	"time"

	"github.com/BearBump/LogiBox/internal/models"
	"github.com/BearBump/LogiBox/internal/services/fulfillment"
)

type shipmentView struct {
	ID                string                  `json:"id"`
	Number            string                  `json:"number"`
	OrderID           string                  `json:"orderId"`
	SourceRef         string                  `json:"sourceRef,omitempty"`
	Status            models.ShipmentStatus   `json:"status"`
	CarrierCode       string                  `json:"carrierCode,omitempty"`
	TrackingNumber    string                  `json:"trackingNumber,omitempty"`
	Leg               models.LegType          `json:"leg"`
	Origin            string                  `json:"origin"`
	Destination       string                  `json:"destination"`
	DestinationCoords *models.Coordinates     `json:"destinationCoords,omitempty"`
	Recipient         string                  `json:"recipient"`
	WeightKg          float64                 `json:"weightKg"`
	Packages          int                     `json:"packages"`
	EstimatedDelivery *time.Time              `json:"estimatedDelivery,omitempty"`
	DeliveredAt       *time.Time              `json:"deliveredAt,omitempty"`
	Proof             *models.ProofOfDelivery `json:"proof,omitempty"`
	NextCheckAt       time.Time               `json:"nextCheckAt"`
	CheckFailCount    int32                   `json:"checkFailCount"`
	LastError         *string                 `json:"lastError,omitempty"`
	CreatedAt         time.Time               `json:"createdAt"`
	UpdatedAt         time.Time               `json:"updatedAt"`
}

func toShipmentView(sh *models.Shipment) shipmentView {
	return shipmentView{
		ID:                sh.ID,
		Number:            sh.Number,
		OrderID:           sh.OrderID,
		SourceRef:         sh.SourceRef,
		Status:            sh.Status,
		CarrierCode:       sh.CarrierCode,
		TrackingNumber:    sh.TrackingNumber,
		Leg:               sh.Leg,
		Origin:            sh.Origin,
		Destination:       sh.Destination,
		DestinationCoords: sh.DestinationCoords,
		Recipient:         sh.Recipient,
		WeightKg:          sh.WeightKg,
		Packages:          sh.Packages,
		EstimatedDelivery: sh.EstimatedDelivery,
		DeliveredAt:       sh.DeliveredAt,
		Proof:             sh.Proof,
		NextCheckAt:       sh.NextCheckAt,
		CheckFailCount:    sh.CheckFailCount,
		LastError:         sh.LastError,
		CreatedAt:         sh.CreatedAt,
		UpdatedAt:         sh.UpdatedAt,
	}
}

func toShipmentViews(in []*models.Shipment) []shipmentView {
	out := make([]shipmentView, 0, len(in))
	for _, sh := range in {
		out = append(out, toShipmentView(sh))
	}
	return out
}

type eventView struct {
	ID          string                `json:"id"`
	Seq         int                   `json:"seq"`
	Status      models.ShipmentStatus `json:"status"`
	Description string                `json:"description"`
	Location    *string               `json:"location,omitempty"`
	Coords      *models.Coordinates   `json:"coords,omitempty"`
	Origin      models.EventOrigin    `json:"origin"`
	OccurredAt  *time.Time            `json:"occurredAt,omitempty"`
	RecordedAt  time.Time             `json:"recordedAt"`
}

func toEventView(e *models.TrackingEvent) eventView {
	return eventView{
		ID:          e.ID,
		Seq:         e.Seq,
		Status:      e.Status,
		Description: e.Description,
		Location:    e.Location,
		Coords:      e.Coords,
		Origin:      e.Origin,
		OccurredAt:  e.OccurredAt,
		RecordedAt:  e.RecordedAt,
	}
}

type stockItemView struct {
	SKU              string    `json:"sku"`
	Description      string    `json:"description"`
	Current          int       `json:"current"`
	Minimum          int       `json:"minimum"`
	Optimal          int       `json:"optimal"`
	DailyConsumption float64   `json:"dailyConsumption"`
	LeadTimeDays     float64   `json:"leadTimeDays"`
	Supplier         string    `json:"supplier,omitempty"`
	UnitPrice        float64   `json:"unitPrice"`
	MinOrderQty      int       `json:"minOrderQty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toStockItemView(it *models.StockItem) stockItemView {
	return stockItemView{
		SKU:              it.SKU,
		Description:      it.Description,
		Current:          it.Current,
		Minimum:          it.Minimum,
		Optimal:          it.Optimal,
		DailyConsumption: it.DailyConsumption,
		LeadTimeDays:     it.LeadTimeDays,
		Supplier:         it.Supplier,
		UnitPrice:        it.UnitPrice,
		MinOrderQty:      it.MinOrderQty,
		UpdatedAt:        it.UpdatedAt,
	}
}

type suggestionView struct {
	ID          string                `json:"id"`
	SKU         string                `json:"sku"`
	Supplier    string                `json:"supplier,omitempty"`
	Quantity    int                   `json:"quantity"`
	UnitPrice   float64               `json:"unitPrice"`
	Total       float64               `json:"total"`
	Reason      string                `json:"reason"`
	Status      models.PurchaseStatus `json:"status"`
	SuggestedAt time.Time             `json:"suggestedAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

func toSuggestionView(sg *models.PurchaseSuggestion) suggestionView {
	return suggestionView{
		ID:          sg.ID,
		SKU:         sg.SKU,
		Supplier:    sg.Supplier,
		Quantity:    sg.Quantity,
		UnitPrice:   sg.UnitPrice,
		Total:       sg.Total,
		Reason:      sg.Reason,
		Status:      sg.Status,
		SuggestedAt: sg.SuggestedAt,
		UpdatedAt:   sg.UpdatedAt,
	}
}

func toSuggestionViews(in []*models.PurchaseSuggestion) []suggestionView {
	out := make([]suggestionView, 0, len(in))
	for _, sg := range in {
		out = append(out, toSuggestionView(sg))
	}
	return out
}

type articleView struct {
	ID              string                 `json:"id"`
	SKU             string                 `json:"sku"`
	Name            string                 `json:"name"`
	Category        models.ArticleCategory `json:"category,omitempty"`
	AssemblyMinutes int                    `json:"assemblyMinutes"`
	LaborCost       float64                `json:"laborCost"`
	Active          bool                   `json:"active"`
	BOM             []models.BOMLine       `json:"bom"`
	CreatedAt       time.Time              `json:"createdAt"`
}

func toArticleView(a *models.CompositeArticle) articleView {
	return articleView{
		ID:              a.ID,
		SKU:             a.SKU,
		Name:            a.Name,
		Category:        a.Category,
		AssemblyMinutes: a.AssemblyMinutes,
		LaborCost:       a.LaborCost,
		Active:          a.Active,
		BOM:             a.BOM,
		CreatedAt:       a.CreatedAt,
	}
}

type assemblyOrderView struct {
	ID           string                `json:"id"`
	ArticleID    string                `json:"articleId"`
	Quantity     int                   `json:"quantity"`
	Status       models.AssemblyStatus `json:"status"`
	Assignee     string                `json:"assignee,omitempty"`
	Priority     models.Priority       `json:"priority"`
	BlockingNote string                `json:"blockingNote,omitempty"`
	RequestedAt  time.Time             `json:"requestedAt"`
	DueAt        *time.Time            `json:"dueAt,omitempty"`
	StartedAt    *time.Time            `json:"startedAt,omitempty"`
	CompletedAt  *time.Time            `json:"completedAt,omitempty"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

func toAssemblyOrderView(o *models.AssemblyOrder) assemblyOrderView {
	return assemblyOrderView{
		ID:           o.ID,
		ArticleID:    o.ArticleID,
		Quantity:     o.Quantity,
		Status:       o.Status,
		Assignee:     o.Assignee,
		Priority:     o.Priority,
		BlockingNote: o.BlockingNote,
		RequestedAt:  o.RequestedAt,
		DueAt:        o.DueAt,
		StartedAt:    o.StartedAt,
		CompletedAt:  o.CompletedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

type fulfillmentOrderView struct {
	ID                string                   `json:"id"`
	OrderRef          string                   `json:"orderRef"`
	Customer          string                   `json:"customer"`
	Recipient         string                   `json:"recipient"`
	Destination       string                   `json:"destination"`
	DestinationCoords *models.Coordinates      `json:"destinationCoords,omitempty"`
	CarrierCode       string                   `json:"carrierCode,omitempty"`
	Status            models.FulfillmentStatus `json:"status"`
	Priority          models.Priority          `json:"priority"`
	Zone              string                   `json:"zone,omitempty"`
	WaveID            *string                  `json:"waveId,omitempty"`
	Worker            *string                  `json:"worker,omitempty"`
	Lines             []models.PickLine        `json:"lines"`
	ItemCount         int                      `json:"itemCount"`
	WeightKg          float64                  `json:"weightKg"`
	Packages          int                      `json:"packages"`
	ShipmentID        *string                  `json:"shipmentId,omitempty"`
	CreatedAt         time.Time                `json:"createdAt"`
	UpdatedAt         time.Time                `json:"updatedAt"`
}

func toFulfillmentOrderView(o *models.FulfillmentOrder) fulfillmentOrderView {
	return fulfillmentOrderView{
		ID:                o.ID,
		OrderRef:          o.OrderRef,
		Customer:          o.Customer,
		Recipient:         o.Recipient,
		Destination:       o.Destination,
		DestinationCoords: o.DestinationCoords,
		CarrierCode:       o.CarrierCode,
		Status:            o.Status,
		Priority:          o.Priority,
		Zone:              o.Zone,
		WaveID:            o.WaveID,
		Worker:            o.Worker,
		Lines:             o.Lines,
		ItemCount:         o.ItemCount(),
		WeightKg:          o.WeightKg(),
		Packages:          o.Packages,
		ShipmentID:        o.ShipmentID,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func toFulfillmentOrderViews(in []*models.FulfillmentOrder) []fulfillmentOrderView {
	out := make([]fulfillmentOrderView, 0, len(in))
	for _, o := range in {
		out = append(out, toFulfillmentOrderView(o))
	}
	return out
}

type waveView struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	WorkerCount int                    `json:"workerCount"`
	Status      models.WaveStatus      `json:"status"`
	StartedAt   *time.Time             `json:"startedAt,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	Members     []fulfillmentOrderView `json:"members"`
}

func toWaveView(v *fulfillment.WaveView) waveView {
	return waveView{
		ID:          v.Wave.ID,
		Name:        v.Wave.Name,
		WorkerCount: v.Wave.WorkerCount,
		Status:      v.Status,
		StartedAt:   v.Wave.StartedAt,
		CreatedAt:   v.Wave.CreatedAt,
		Members:     toFulfillmentOrderViews(v.Members),
	}
}

type stopView struct {
	ID          string              `json:"id"`
	ShipmentID  string              `json:"shipmentId"`
	Index       int                 `json:"index"`
	Status      models.StopStatus   `json:"status"`
	Coords      *models.Coordinates `json:"coords,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
	ProofRef    string              `json:"proofRef,omitempty"`
}

type routeView struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Driver          string             `json:"driver,omitempty"`
	Vehicle         string             `json:"vehicle,omitempty"`
	Date            string             `json:"date"`
	Status          models.RouteStatus `json:"status"`
	Optimize        bool               `json:"optimize"`
	DistanceKm      float64            `json:"distanceKm"`
	DurationMinutes float64            `json:"durationMinutes"`
	Stops           []stopView         `json:"stops"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func toRouteView(r *models.Route) routeView {
	stops := make([]stopView, 0, len(r.Stops))
	for _, s := range r.Stops {
		stops = append(stops, stopView{
			ID:          s.ID,
			ShipmentID:  s.ShipmentID,
			Index:       s.Index,
			Status:      s.Status,
			Coords:      s.Coords,
			Notes:       s.Notes,
			CompletedAt: s.CompletedAt,
			ProofRef:    s.ProofRef,
		})
	}
	return routeView{
		ID:              r.ID,
		Name:            r.Name,
		Driver:          r.Driver,
		Vehicle:         r.Vehicle,
		Date:            r.Date.Format(dateLayout),
		Status:          r.Status,
		Optimize:        r.Optimize,
		DistanceKm:      r.DistanceKm,
		DurationMinutes: r.DurationMinutes,
		Stops:           stops,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type alertView struct {
	SKU              string          `json:"sku"`
	Current          int             `json:"current"`
	Minimum          int             `json:"minimum"`
	Optimal          int             `json:"optimal"`
	DailyConsumption float64         `json:"dailyConsumption"`
	LeadTimeDays     float64         `json:"leadTimeDays"`
	DaysRemaining    *float64        `json:"daysRemaining"`
	Severity         models.Severity `json:"severity"`
}

// toAlertView renders an unbounded days-of-stock as null; JSON has no Inf.
func toAlertView(al models.StockAlert) alertView {
	v := alertView{
		SKU:              al.SKU,
		Current:          al.Current,
		Minimum:          al.Minimum,
		Optimal:          al.Optimal,
		DailyConsumption: al.DailyConsumption,
		LeadTimeDays:     al.LeadTimeDays,
		Severity:         al.Severity,
	}
	if !math.IsInf(al.DaysRemaining, 0) && !math.IsNaN(al.DaysRemaining) {
		d := al.DaysRemaining
		v.DaysRemaining = &d
	}
	return v
}

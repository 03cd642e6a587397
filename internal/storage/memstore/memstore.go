// Package memstore keeps the whole pipeline state in process memory. It
// satisfies the same repository contracts as the Postgres store; one mutex
// stands in for row locks and transactions.
package memstore

import (
	"context"
	"sync"

	"github.com/BearBump/LogiBox/internal/models"
)

type key struct {
	tenant string
	id     string
}

type Store struct {
	mu sync.Mutex

	shipments map[key]*models.Shipment
	events    map[key][]*models.TrackingEvent
	eventSeq  int64

	orders map[key]*models.FulfillmentOrder
	waves  map[key]*models.Wave

	articles    map[key]*models.CompositeArticle
	assemblies  map[key]*models.AssemblyOrder
	stock       map[key]*models.StockItem
	suggestions map[key]*models.PurchaseSuggestion

	routes map[key]*models.Route
}

func New() *Store {
	return &Store{
		shipments:   make(map[key]*models.Shipment),
		events:      make(map[key][]*models.TrackingEvent),
		orders:      make(map[key]*models.FulfillmentOrder),
		waves:       make(map[key]*models.Wave),
		articles:    make(map[key]*models.CompositeArticle),
		assemblies:  make(map[key]*models.AssemblyOrder),
		stock:       make(map[key]*models.StockItem),
		suggestions: make(map[key]*models.PurchaseSuggestion),
		routes:      make(map[key]*models.Route),
	}
}

func (s *Store) lock(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	return nil
}

func cloneShipment(sh *models.Shipment) *models.Shipment {
	c := *sh
	return &c
}

func cloneEvent(e *models.TrackingEvent) *models.TrackingEvent {
	c := *e
	return &c
}

func cloneOrder(o *models.FulfillmentOrder) *models.FulfillmentOrder {
	c := *o
	c.Lines = append([]models.PickLine(nil), o.Lines...)
	return &c
}

func cloneWave(w *models.Wave) *models.Wave {
	c := *w
	return &c
}

func cloneArticle(a *models.CompositeArticle) *models.CompositeArticle {
	c := *a
	c.BOM = append([]models.BOMLine(nil), a.BOM...)
	return &c
}

func cloneAssembly(o *models.AssemblyOrder) *models.AssemblyOrder {
	c := *o
	return &c
}

func cloneStock(it *models.StockItem) *models.StockItem {
	c := *it
	return &c
}

func cloneSuggestion(sg *models.PurchaseSuggestion) *models.PurchaseSuggestion {
	c := *sg
	return &c
}

func cloneRoute(r *models.Route) *models.Route {
	c := *r
	c.Stops = make([]*models.Stop, len(r.Stops))
	for i, st := range r.Stops {
		sc := *st
		c.Stops[i] = &sc
	}
	return &c
}

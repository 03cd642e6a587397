// Package httpapi is the JSON over HTTP surface of the logistics pipeline.
// Every resource lives under /v1/tenants/{tenantID}.
package httpapi

import (
	"net/http"

	"github.com/BearBump/LogiBox/internal/services/assembly"
	"github.com/BearBump/LogiBox/internal/services/fulfillment"
	"github.com/BearBump/LogiBox/internal/services/replenishment"
	"github.com/BearBump/LogiBox/internal/services/routes"
	"github.com/BearBump/LogiBox/internal/services/shipments"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const dateLayout = "2006-01-02"

type API struct {
	shipments     *shipments.Service
	replenishment *replenishment.Service
	assembly      *assembly.Service
	fulfillment   *fulfillment.Service
	routes        *routes.Service
}

func New(
	shipmentsSvc *shipments.Service,
	replenishmentSvc *replenishment.Service,
	assemblySvc *assembly.Service,
	fulfillmentSvc *fulfillment.Service,
	routesSvc *routes.Service,
) *API {
	return &API{
		shipments:     shipmentsSvc,
		replenishment: replenishmentSvc,
		assembly:      assemblySvc,
		fulfillment:   fulfillmentSvc,
		routes:        routesSvc,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1/tenants/{tenantID}", func(r chi.Router) {
		r.Route("/shipments", func(r chi.Router) {
			r.Post("/", a.createShipment)
			r.Get("/", a.listShipments)
			r.Get("/{id}", a.getShipment)
			r.Get("/{id}/events", a.shipmentHistory)
			r.Post("/{id}/events", a.recordEvent)
			r.Post("/{id}/proof-of-delivery", a.registerProofOfDelivery)
		})

		r.Get("/stock-items", a.listStockItems)
		r.Put("/stock-items/{sku}", a.upsertStockItem)
		r.Post("/stock-items/{sku}/adjustments", a.adjustStock)
		r.Get("/stock-alerts", a.stockAlerts)
		r.Route("/purchase-suggestions", func(r chi.Router) {
			r.Post("/", a.suggestPurchase)
			r.Get("/", a.listSuggestions)
			r.Get("/{id}", a.getSuggestion)
			r.Post("/{id}/{action}", a.suggestionAction)
		})

		r.Route("/articles", func(r chi.Router) {
			r.Post("/", a.createArticle)
			r.Get("/", a.listArticles)
			r.Get("/{id}", a.getArticle)
		})
		r.Route("/assembly-orders", func(r chi.Router) {
			r.Post("/", a.createAssemblyOrder)
			r.Get("/{id}", a.getAssemblyOrder)
			r.Get("/{id}/requirements", a.assemblyRequirements)
			r.Post("/{id}/start", a.startAssembly)
			r.Post("/{id}/complete", a.completeAssembly)
			r.Post("/{id}/cancel", a.cancelAssembly)
		})

		r.Route("/fulfillment-orders", func(r chi.Router) {
			r.Post("/", a.createFulfillmentOrder)
			r.Get("/", a.listFulfillmentOrders)
			r.Get("/{id}", a.getFulfillmentOrder)
			r.Post("/{id}/wave", a.assignToWave)
			r.Post("/{id}/start-picking", a.startPicking)
			r.Post("/{id}/lines/{sku}/pick", a.markPicked)
			r.Post("/{id}/pack", a.pack)
			r.Post("/{id}/dispatch", a.dispatch)
		})
		r.Route("/waves", func(r chi.Router) {
			r.Post("/", a.createWave)
			r.Get("/{id}", a.getWave)
			r.Post("/{id}/start", a.startWave)
		})

		r.Route("/routes", func(r chi.Router) {
			r.Post("/", a.createRoute)
			r.Get("/", a.listRoutes)
			r.Get("/{id}", a.getRoute)
			r.Post("/{id}/stops", a.addStop)
			r.Put("/{id}/stops/order", a.reorderStops)
			r.Post("/{id}/optimize", a.optimizeRoute)
			r.Post("/{id}/start", a.startRoute)
			r.Post("/{id}/cancel", a.cancelRoute)
			r.Post("/{id}/stops/{stopID}/complete", a.completeStop)
		})
	})
	return r
}

package models

import "time"

type AssemblyStatus string

const (
	AssemblyPending    AssemblyStatus = "pending"
	AssemblyInProgress AssemblyStatus = "in_progress"
	AssemblyCompleted  AssemblyStatus = "completed"
	AssemblyCancelled  AssemblyStatus = "cancelled"
)

var assemblyTransitions = map[AssemblyStatus][]AssemblyStatus{
	AssemblyPending:    {AssemblyInProgress, AssemblyCancelled},
	AssemblyInProgress: {AssemblyCompleted, AssemblyCancelled},
}

func (s AssemblyStatus) CanTransitionTo(next AssemblyStatus) bool {
	for _, to := range assemblyTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

func (s AssemblyStatus) Terminal() bool {
	return s == AssemblyCompleted || s == AssemblyCancelled
}

type ArticleCategory string

const (
	CategoryKit    ArticleCategory = "kit"
	CategoryBasket ArticleCategory = "basket"
	CategoryCombo  ArticleCategory = "combo"
	CategoryPack   ArticleCategory = "pack"
)

// BOMLine is one component of a composite article, per assembled unit.
// Stock and Available reflect live inventory at read time.
type BOMLine struct {
	SKU         string `json:"sku"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Unit        string `json:"unit"`
	Stock       int    `json:"stock"`
	Available   bool   `json:"available"`
}

type CompositeArticle struct {
	ID              string
	TenantID        string
	SKU             string
	Name            string
	Category        ArticleCategory
	AssemblyMinutes int
	LaborCost       float64
	Active          bool
	BOM             []BOMLine
	CreatedAt       time.Time
}

type AssemblyOrder struct {
	ID           string
	TenantID     string
	ArticleID    string
	Quantity     int
	Status       AssemblyStatus
	Assignee     string
	Priority     Priority
	BlockingNote string
	RequestedAt  time.Time
	DueAt        *time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	UpdatedAt    time.Time
}

// ComponentRequirement is one row of a BOM explosion.
type ComponentRequirement struct {
	SKU       string `json:"sku"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
	Shortfall int    `json:"shortfall"`
}

func (r ComponentRequirement) Short() bool { return r.Shortfall > 0 }

// StockMovement is a signed stock change applied atomically with an order
// transition.
type StockMovement struct {
	SKU   string
	Delta int
}

// ApplyStock fills Stock and Available on every BOM line. Available means
// enough stock to assemble one unit; whether a given order can start is
// answered by ExplodeBOM for the order quantity. Missing SKUs count as zero.
func (a *CompositeArticle) ApplyStock(stock map[string]int) {
	for i := range a.BOM {
		l := &a.BOM[i]
		l.Stock = stock[l.SKU]
		l.Available = l.Stock >= l.Quantity
	}
}

// ExplodeBOM returns the component requirements for units of the article,
// in BOM order, against the given stock levels.
func ExplodeBOM(a *CompositeArticle, units int, stock map[string]int) []ComponentRequirement {
	out := make([]ComponentRequirement, 0, len(a.BOM))
	for _, l := range a.BOM {
		req := l.Quantity * units
		have := stock[l.SKU]
		short := req - have
		if short < 0 {
			short = 0
		}
		out = append(out, ComponentRequirement{SKU: l.SKU, Required: req, Available: have, Shortfall: short})
	}
	return out
}

// ShortSKUs lists the SKUs whose requirement exceeds stock, in BOM order.
func ShortSKUs(reqs []ComponentRequirement) []string {
	var out []string
	for _, r := range reqs {
		if r.Short() {
			out = append(out, r.SKU)
		}
	}
	return out
}

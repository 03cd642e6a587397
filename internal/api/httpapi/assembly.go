package httpapi

import (
	"net/http"
	"time"

	"github.com/BearBump/LogiBox/internal/models"
	"github.com/BearBump/LogiBox/internal/services/assembly"
	"github.com/go-chi/chi/v5"
)

type bomLineRequest struct {
	SKU         string `json:"sku" validate:"required"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity" validate:"min=1"`
	Unit        string `json:"unit"`
}

type createArticleRequest struct {
	SKU             string                 `json:"sku" validate:"required"`
	Name            string                 `json:"name" validate:"required"`
	Category        models.ArticleCategory `json:"category" validate:"omitempty,oneof=kit basket combo pack"`
	AssemblyMinutes int                    `json:"assemblyMinutes" validate:"gte=0"`
	LaborCost       float64                `json:"laborCost" validate:"gte=0"`
	BOM             []bomLineRequest       `json:"bom" validate:"required,min=1,dive"`
}

func (a *API) createArticle(w http.ResponseWriter, r *http.Request) {
	var req createArticleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	bom := make([]models.BOMLine, 0, len(req.BOM))
	for _, l := range req.BOM {
		bom = append(bom, models.BOMLine{SKU: l.SKU, Description: l.Description, Quantity: l.Quantity, Unit: l.Unit})
	}
	art, err := a.assembly.CreateArticle(r.Context(), tenant(r), assembly.ArticleInput{
		SKU:             req.SKU,
		Name:            req.Name,
		Category:        req.Category,
		AssemblyMinutes: req.AssemblyMinutes,
		LaborCost:       req.LaborCost,
		BOM:             bom,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toArticleView(art))
}

func (a *API) listArticles(w http.ResponseWriter, r *http.Request) {
	list, err := a.assembly.ListArticles(r.Context(), tenant(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]articleView, 0, len(list))
	for _, art := range list {
		out = append(out, toArticleView(art))
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": out})
}

func (a *API) getArticle(w http.ResponseWriter, r *http.Request) {
	art, err := a.assembly.GetArticle(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleView(art))
}

type createAssemblyOrderRequest struct {
	ArticleID string          `json:"articleId" validate:"required"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	Assignee  string          `json:"assignee"`
	Priority  models.Priority `json:"priority" validate:"omitempty,oneof=urgent high normal low"`
	DueAt     *time.Time      `json:"dueAt"`
}

func (a *API) createAssemblyOrder(w http.ResponseWriter, r *http.Request) {
	var req createAssemblyOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := a.assembly.CreateOrder(r.Context(), tenant(r), assembly.OrderInput{
		ArticleID: req.ArticleID,
		Quantity:  req.Quantity,
		Assignee:  req.Assignee,
		Priority:  req.Priority,
		DueAt:     req.DueAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssemblyOrderView(o))
}

func (a *API) getAssemblyOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.assembly.GetOrder(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssemblyOrderView(o))
}

func (a *API) assemblyRequirements(w http.ResponseWriter, r *http.Request) {
	reqs, err := a.assembly.Requirements(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	short := models.ShortSKUs(reqs)
	writeJSON(w, http.StatusOK, map[string]any{
		"requirements": reqs,
		"canStart":     len(short) == 0,
		"shortSkus":    short,
	})
}

func (a *API) startAssembly(w http.ResponseWriter, r *http.Request) {
	o, err := a.assembly.Start(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssemblyOrderView(o))
}

func (a *API) completeAssembly(w http.ResponseWriter, r *http.Request) {
	o, err := a.assembly.Complete(r.Context(), tenant(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssemblyOrderView(o))
}

type cancelRequest struct {
	Note string `json:"note"`
}

func (a *API) cancelAssembly(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := a.assembly.Cancel(r.Context(), tenant(r), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssemblyOrderView(o))
}

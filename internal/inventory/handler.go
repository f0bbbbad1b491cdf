package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/stockroom-hq/stockroom/internal/platform/httpx"
	"github.com/stockroom-hq/stockroom/internal/shared"
)

// Handler exposes the ledger over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	manage  func(http.Handler) http.Handler
}

// NewHandler builds Handler instance. manage gates mutating routes to
// inventory management roles.
func NewHandler(logger *slog.Logger, service *Service, manage func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, manage: manage}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/low-stock", h.lowStock)
		r.Get("/out-of-stock", h.outOfStock)
		r.Get("/summary", h.summary)
		r.Get("/{id}", h.get)

		r.Group(func(r chi.Router) {
			r.Use(h.manage)
			r.Post("/", h.create)
			r.Put("/{id}", h.update)
			r.Delete("/{id}", h.deactivate)
			r.Post("/{id}/add-stock", h.addStock)
			r.Post("/{id}/remove-stock", h.removeStock)
		})
	})
}

type itemResponse struct {
	ID              int64  `json:"id"`
	SKU             string `json:"sku"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	CategoryID      int64  `json:"category_id"`
	LocationID      int64  `json:"location_id"`
	Quantity        int64  `json:"quantity"`
	UnitPrice       string `json:"unit_price"`
	TotalValue      string `json:"total_value"`
	ReorderLevel    int64  `json:"reorder_level"`
	ReorderQuantity int64  `json:"reorder_quantity"`
	SupplierID      int64  `json:"supplier_id,omitempty"`
	Barcode         string `json:"barcode,omitempty"`
	Status          string `json:"status"`
	IsActive        bool   `json:"is_active"`
}

func toItemResponse(item Item) itemResponse {
	return itemResponse{
		ID:              item.ID,
		SKU:             item.SKU,
		Name:            item.Name,
		Description:     item.Description,
		CategoryID:      item.CategoryID,
		LocationID:      item.LocationID,
		Quantity:        item.Quantity,
		UnitPrice:       item.UnitPrice.StringFixed(2),
		TotalValue:      item.TotalValue().StringFixed(2),
		ReorderLevel:    item.ReorderLevel,
		ReorderQuantity: item.ReorderQuantity,
		SupplierID:      item.SupplierID,
		Barcode:         item.Barcode,
		Status:          string(item.Status()),
		IsActive:        item.IsActive,
	}
}

type createItemRequest struct {
	SKU             string `json:"sku" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Description     string `json:"description"`
	CategoryID      int64  `json:"category_id" validate:"required"`
	LocationID      int64  `json:"location_id" validate:"required"`
	InitialQuantity int64  `json:"initial_quantity" validate:"gte=0"`
	UnitPrice       string `json:"unit_price"`
	ReorderLevel    int64  `json:"reorder_level" validate:"gte=0"`
	ReorderQuantity int64  `json:"reorder_quantity" validate:"gte=0"`
	SupplierID      int64  `json:"supplier_id"`
	Barcode         string `json:"barcode"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	price, err := parsePrice(req.UnitPrice)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	item, err := h.service.Create(r.Context(), CreateInput{
		SKU:             req.SKU,
		Name:            req.Name,
		Description:     req.Description,
		CategoryID:      req.CategoryID,
		LocationID:      req.LocationID,
		InitialQuantity: req.InitialQuantity,
		UnitPrice:       price,
		ReorderLevel:    req.ReorderLevel,
		ReorderQuantity: req.ReorderQuantity,
		SupplierID:      req.SupplierID,
		Barcode:         req.Barcode,
		ActorID:         actor.UserID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(item))
}

type updateItemRequest struct {
	Name            string `json:"name" validate:"required"`
	Description     string `json:"description"`
	CategoryID      int64  `json:"category_id" validate:"required"`
	LocationID      int64  `json:"location_id" validate:"required"`
	UnitPrice       string `json:"unit_price"`
	ReorderLevel    int64  `json:"reorder_level" validate:"gte=0"`
	ReorderQuantity int64  `json:"reorder_quantity" validate:"gte=0"`
	SupplierID      int64  `json:"supplier_id"`
	Barcode         string `json:"barcode"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	itemID := pathID(r, "id")
	var req updateItemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	price, err := parsePrice(req.UnitPrice)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	item, err := h.service.Update(r.Context(), UpdateInput{
		ItemID:          itemID,
		Name:            req.Name,
		Description:     req.Description,
		CategoryID:      req.CategoryID,
		LocationID:      req.LocationID,
		UnitPrice:       price,
		ReorderLevel:    req.ReorderLevel,
		ReorderQuantity: req.ReorderQuantity,
		SupplierID:      req.SupplierID,
		Barcode:         req.Barcode,
		ActorID:         actor.UserID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

type stockRequest struct {
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
	Notes    string `json:"notes"`
}

func (h *Handler) addStock(w http.ResponseWriter, r *http.Request) {
	h.moveStock(w, r, h.service.AddStock)
}

func (h *Handler) removeStock(w http.ResponseWriter, r *http.Request) {
	h.moveStock(w, r, h.service.RemoveStock)
}

func (h *Handler) moveStock(w http.ResponseWriter, r *http.Request, op func(context.Context, StockInput) (Item, error)) {
	var req stockRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	item, err := op(r.Context(), StockInput{
		ItemID:   pathID(r, "id"),
		Quantity: req.Quantity,
		ActorID:  actor.UserID,
		Notes:    req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.Deactivate(r.Context(), pathID(r, "id"), actor.UserID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	categoryID, _ := strconv.ParseInt(q.Get("category_id"), 10, 64)
	locationID, _ := strconv.ParseInt(q.Get("location_id"), 10, 64)
	items, total, err := h.service.List(r.Context(), ListFilter{
		Search:     q.Get("search"),
		CategoryID: categoryID,
		LocationID: locationID,
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out, "total": total})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) outOfStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.OutOfStock(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summarize(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"total_items":     summary.TotalItems,
		"total_value":     summary.TotalValue.StringFixed(2),
		"low_stock_count": summary.LowStockCount,
		"out_of_stock":    summary.OutOfStock,
	})
}

func pathID(r *http.Request, key string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	return id
}

func parsePrice(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("inventory: invalid unit price %q: %w", raw, shared.ErrValidation)
	}
	return price, nil
}

package purchaseorder

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/stockroom-hq/stockroom/internal/platform/httpx"
	"github.com/stockroom-hq/stockroom/internal/shared"
)

// Handler exposes the workflow over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	manage  func(http.Handler) http.Handler
}

// NewHandler builds Handler instance. manage gates approval and delivery
// routes to inventory management roles.
func NewHandler(logger *slog.Logger, service *Service, manage func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, manage: manage}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/purchase-orders", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/summary", h.summary)
		r.Get("/{id}", h.get)
		r.Post("/", h.create)
		r.Post("/{id}/items", h.addItem)
		r.Delete("/{id}/items/{lineID}", h.removeItem)
		r.Post("/{id}/cancel", h.cancel)

		r.Group(func(r chi.Router) {
			r.Use(h.manage)
			r.Post("/{id}/approve", h.approve)
			r.Post("/{id}/reject", h.reject)
			r.Post("/{id}/deliver", h.deliver)
		})
	})
}

type lineResponse struct {
	ID              int64  `json:"id"`
	InventoryItemID int64  `json:"inventory_item_id"`
	Quantity        int64  `json:"quantity"`
	UnitPrice       string `json:"unit_price"`
	Total           string `json:"total"`
	Notes           string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID              int64          `json:"id"`
	PONumber        string         `json:"po_number"`
	SupplierID      int64          `json:"supplier_id"`
	Status          string         `json:"status"`
	TotalAmount     string         `json:"total_amount"`
	Currency        string         `json:"currency"`
	DeliveryDate    string         `json:"delivery_date,omitempty"`
	DeliveryAddress string         `json:"delivery_address,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	CreatedBy       int64          `json:"created_by"`
	ApprovedBy      int64          `json:"approved_by,omitempty"`
	Lines           []lineResponse `json:"lines,omitempty"`
}

func toOrderResponse(order Order, lines []Line) orderResponse {
	resp := orderResponse{
		ID:              order.ID,
		PONumber:        order.PONumber,
		SupplierID:      order.SupplierID,
		Status:          string(order.Status),
		TotalAmount:     order.TotalAmount.StringFixed(2),
		Currency:        order.Currency,
		DeliveryAddress: order.DeliveryAddress,
		Notes:           order.Notes,
		CreatedBy:       order.CreatedBy,
		ApprovedBy:      order.ApprovedBy,
	}
	if !order.DeliveryDate.IsZero() {
		resp.DeliveryDate = order.DeliveryDate.Format("2006-01-02")
	}
	for _, line := range lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:              line.ID,
			InventoryItemID: line.InventoryItemID,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice.StringFixed(2),
			Total:           line.Total().StringFixed(2),
			Notes:           line.Notes,
		})
	}
	return resp
}

type lineRequest struct {
	InventoryItemID int64  `json:"inventory_item_id" validate:"required"`
	Quantity        int64  `json:"quantity" validate:"required,gt=0"`
	UnitPrice       string `json:"unit_price" validate:"required"`
	Notes           string `json:"notes"`
}

type createOrderRequest struct {
	SupplierID      int64         `json:"supplier_id" validate:"required"`
	Currency        string        `json:"currency"`
	DeliveryDate    string        `json:"delivery_date"`
	DeliveryAddress string        `json:"delivery_address"`
	Notes           string        `json:"notes"`
	Lines           []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	input := CreateInput{
		SupplierID:      req.SupplierID,
		CreatedBy:       actor.UserID,
		Currency:        req.Currency,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	}
	if req.DeliveryDate != "" {
		date, err := time.Parse("2006-01-02", req.DeliveryDate)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("purchaseorder: invalid delivery date %q: %w", req.DeliveryDate, shared.ErrValidation))
			return
		}
		input.DeliveryDate = date
	}
	for _, line := range req.Lines {
		price, err := parsePrice(line.UnitPrice)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		input.Lines = append(input.Lines, LineInput{
			InventoryItemID: line.InventoryItemID,
			Quantity:        line.Quantity,
			UnitPrice:       price,
			Notes:           line.Notes,
		})
	}
	order, lines, err := h.service.Create(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrderResponse(order, lines))
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
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
	order, err := h.service.AddItem(r.Context(), AddItemInput{
		OrderID:         pathID(r, "id"),
		InventoryItemID: req.InventoryItemID,
		Quantity:        req.Quantity,
		UnitPrice:       price,
		Notes:           req.Notes,
		ActorID:         actor.UserID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order, nil))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	order, err := h.service.RemoveItem(r.Context(), pathID(r, "id"), pathID(r, "lineID"), actor.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order, nil))
}

type transitionRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.service.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.service.Reject)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.service.Cancel)
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.service.Deliver)
}

func (h *Handler) doTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, orderID, actorID int64, notes string) (Order, error)) {
	var req transitionRequest
	if r.ContentLength > 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	actor, _ := shared.ActorFromContext(r.Context())
	order, err := op(r.Context(), pathID(r, "id"), actor.UserID, req.Notes)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order, nil))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	order, lines, err := h.service.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order, lines))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	supplierID, _ := strconv.ParseInt(q.Get("supplier_id"), 10, 64)
	orders, total, err := h.service.List(r.Context(), ListFilter{
		Status:     Status(q.Get("status")),
		SupplierID: supplierID,
		Search:     q.Get("search"),
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderResponse(order, nil))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": out, "total": total})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summarize(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"total_orders":     summary.TotalOrders,
		"pending_orders":   summary.PendingOrders,
		"approved_orders":  summary.ApprovedOrders,
		"delivered_orders": summary.DeliveredOrders,
		"total_value":      summary.TotalValue.StringFixed(2),
	})
}

func pathID(r *http.Request, key string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	return id
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("purchaseorder: invalid unit price %q: %w", raw, shared.ErrValidation)
	}
	return price, nil
}

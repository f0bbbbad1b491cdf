package supplier

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockroom-hq/stockroom/internal/platform/httpx"
	"github.com/stockroom-hq/stockroom/internal/shared"
)

// Handler exposes the supplier registry over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	manage  func(http.Handler) http.Handler
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, manage func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, manage: manage}
}

// MountRoutes registers supplier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)

		r.Group(func(r chi.Router) {
			r.Use(h.manage)
			r.Post("/", h.create)
			r.Put("/{id}", h.update)
			r.Post("/{id}/rating", h.rate)
			r.Delete("/{id}", h.deactivate)
		})
	})
}

type supplierResponse struct {
	ID            int64  `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	TaxID         string `json:"tax_id,omitempty"`
	PaymentTerms  string `json:"payment_terms,omitempty"`
	Rating        int    `json:"rating"`
	IsActive      bool   `json:"is_active"`
}

func toSupplierResponse(s Supplier) supplierResponse {
	return supplierResponse{
		ID:            s.ID,
		Code:          s.Code,
		Name:          s.Name,
		ContactPerson: s.ContactPerson,
		Email:         s.Email,
		Phone:         s.Phone,
		Address:       s.Address,
		TaxID:         s.TaxID,
		PaymentTerms:  s.PaymentTerms,
		Rating:        s.Rating,
		IsActive:      s.IsActive,
	}
}

type supplierRequest struct {
	Name          string `json:"name" validate:"required"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	TaxID         string `json:"tax_id"`
	PaymentTerms  string `json:"payment_terms"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	created, err := h.service.Create(r.Context(), CreateInput{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		TaxID:         req.TaxID,
		PaymentTerms:  req.PaymentTerms,
		ActorID:       actor.UserID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSupplierResponse(created))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	updated, err := h.service.Update(r.Context(), UpdateInput{
		SupplierID:    pathID(r),
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		TaxID:         req.TaxID,
		PaymentTerms:  req.PaymentTerms,
		ActorID:       actor.UserID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSupplierResponse(updated))
}

type ratingRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

func (h *Handler) rate(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	updated, err := h.service.Rate(r.Context(), pathID(r), req.Rating, actor.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSupplierResponse(updated))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.Deactivate(r.Context(), pathID(r), actor.UserID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Get(r.Context(), pathID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSupplierResponse(s))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	suppliers, total, err := h.service.List(r.Context(), ListFilter{
		Search:     q.Get("search"),
		ActiveOnly: q.Get("include_inactive") != "1",
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]supplierResponse, 0, len(suppliers))
	for _, s := range suppliers {
		out = append(out, toSupplierResponse(s))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suppliers": out, "total": total})
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

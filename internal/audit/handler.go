package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stockroom-hq/stockroom/internal/platform/httpx"
)

// Handler exposes trail reads over JSON. The trail has no mutating routes.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Get("/", h.search)
		r.Get("/summary", h.summary)
	})
}

type entryResponse struct {
	ID         int64  `json:"id"`
	ActorID    int64  `json:"actor_id"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   int64  `json:"entity_id"`
	OldValue   string `json:"old_value,omitempty"`
	NewValue   string `json:"new_value,omitempty"`
	Notes      string `json:"notes,omitempty"`
	IP         string `json:"ip,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func toEntryResponse(e Entry) entryResponse {
	resp := entryResponse{
		ID:         e.ID,
		ActorID:    e.ActorID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		OldValue:   e.OldValue,
		NewValue:   e.NewValue,
		Notes:      e.Notes,
		IP:         e.IP,
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.RequestID != uuid.Nil {
		resp.RequestID = e.RequestID.String()
	}
	return resp
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actorID, _ := strconv.ParseInt(q.Get("actor_id"), 10, 64)
	entityID, _ := strconv.ParseInt(q.Get("entity_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := Filter{
		ActorID:    actorID,
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   entityID,
		Search:     q.Get("search"),
		Limit:      limit,
	}
	if raw := q.Get("from"); raw != "" {
		if from, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = from
		}
	}
	if raw := q.Get("to"); raw != "" {
		if to, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = to
		}
	}
	entries, err := h.service.Search(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if days, _ := strconv.Atoi(r.URL.Query().Get("days")); days > 0 {
		window = time.Duration(days) * 24 * time.Hour
	}
	summary, err := h.service.Summarize(r.Context(), window)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"from":      summary.From.UTC().Format(time.RFC3339),
		"to":        summary.To.UTC().Format(time.RFC3339),
		"total":     summary.Total,
		"by_action": summary.ByAction,
		"by_entity": summary.ByEntity,
		"by_actor":  summary.ByActor,
	})
}

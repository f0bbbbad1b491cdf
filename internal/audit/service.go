package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/stockroom-hq/stockroom/internal/shared"
)

// RepositoryPort abstracts trail persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, entry Entry) (int64, error)
	List(ctx context.Context, filter Filter) ([]Entry, error)
	Summarize(ctx context.Context, from, to time.Time) (Summary, error)
}

// Service exposes the query surface of the append-only trail. There is no
// update or delete operation.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Record appends a standalone entry outside any wider transaction. Mutations
// with their own transaction embed RecorderTx instead.
func (s *Service) Record(ctx context.Context, entry Entry) (int64, error) {
	if entry.ActorID == 0 || entry.Action == "" || entry.EntityType == "" {
		return 0, fmt.Errorf("audit: actor, action and entity type required: %w", shared.ErrValidation)
	}
	return s.repo.Insert(ctx, entry)
}

// ByActor returns recent entries produced by one actor.
func (s *Service) ByActor(ctx context.Context, actorID int64, limit int) ([]Entry, error) {
	if actorID == 0 {
		return nil, fmt.Errorf("audit: actor required: %w", shared.ErrValidation)
	}
	return s.repo.List(ctx, Filter{ActorID: actorID, Limit: limit})
}

// ByEntity returns recent entries touching one entity.
func (s *Service) ByEntity(ctx context.Context, entityType string, entityID int64, limit int) ([]Entry, error) {
	if entityType == "" {
		return nil, fmt.Errorf("audit: entity type required: %w", shared.ErrValidation)
	}
	return s.repo.List(ctx, Filter{EntityType: entityType, EntityID: entityID, Limit: limit})
}

// ByAction returns recent entries for one action tag.
func (s *Service) ByAction(ctx context.Context, action string, limit int) ([]Entry, error) {
	if action == "" {
		return nil, fmt.Errorf("audit: action required: %w", shared.ErrValidation)
	}
	return s.repo.List(ctx, Filter{Action: action, Limit: limit})
}

// Search runs a free-text search over notes and value snapshots, optionally
// combined with the other filter fields.
func (s *Service) Search(ctx context.Context, filter Filter) ([]Entry, error) {
	return s.repo.List(ctx, filter)
}

// Summarize aggregates trail activity for the trailing window ending now.
// Reads may be served from a snapshot that lags the most recent commits.
func (s *Service) Summarize(ctx context.Context, window time.Duration) (Summary, error) {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	to := time.Now().UTC()
	return s.repo.Summarize(ctx, to.Add(-window), to)
}

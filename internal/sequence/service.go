package sequence

import (
	"context"
	"fmt"
	"strings"

	"github.com/stockroom-hq/stockroom/internal/platform/db"
	"github.com/stockroom-hq/stockroom/internal/shared"
)

// CounterPort abstracts counter persistence for the service.
type CounterPort interface {
	IncrementCounter(ctx context.Context, entityType, periodKey string) (int64, error)
}

// Service issues collision-free ordinals scoped by entity type and period.
type Service struct {
	counters CounterPort
}

// NewService builds Service.
func NewService(counters CounterPort) *Service {
	return &Service{counters: counters}
}

// Next returns the next ordinal for (entityType, periodKey). Successive calls
// for a fixed key return strictly increasing integers; under a store outage it
// fails rather than falling back to a value that could duplicate or leave gaps.
func (s *Service) Next(ctx context.Context, entityType, periodKey string) (int64, error) {
	entityType = strings.TrimSpace(entityType)
	periodKey = strings.TrimSpace(periodKey)
	if entityType == "" || periodKey == "" {
		return 0, fmt.Errorf("sequence: entity type and period key required: %w", shared.ErrValidation)
	}
	ordinal, err := s.counters.IncrementCounter(ctx, entityType, periodKey)
	if err != nil {
		if db.IsUnavailable(err) {
			return 0, fmt.Errorf("sequence: increment %s/%s: %w", entityType, periodKey, shared.ErrStoreUnavailable)
		}
		return 0, fmt.Errorf("sequence: increment %s/%s: %w", entityType, periodKey, err)
	}
	return ordinal, nil
}

package audit

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockroom-hq/stockroom/internal/shared"
)

type memoryAuditRepo struct {
	entries []Entry
	nextID  int64
}

func (r *memoryAuditRepo) Insert(ctx context.Context, entry Entry) (int64, error) {
	r.nextID++
	entry.ID = r.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.entries = append(r.entries, entry)
	return entry.ID, nil
}

func (r *memoryAuditRepo) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if filter.ActorID != 0 && e.ActorID != filter.ActorID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != 0 && e.EntityID != filter.EntityID {
			continue
		}
		if filter.Search != "" && !strings.Contains(e.Notes, filter.Search) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memoryAuditRepo) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	s := Summary{
		From:     from,
		To:       to,
		ByAction: make(map[string]int64),
		ByEntity: make(map[string]int64),
		ByActor:  make(map[int64]int64),
	}
	for _, e := range r.entries {
		if e.CreatedAt.Before(from) || e.CreatedAt.After(to) {
			continue
		}
		s.Total++
		s.ByAction[e.Action]++
		s.ByEntity[e.EntityType]++
		s.ByActor[e.ActorID]++
	}
	return s, nil
}

func seedTrail(t *testing.T, svc *Service) {
	t.Helper()
	for _, e := range []Entry{
		{ActorID: 1, Action: "add_stock", EntityType: EntityInventoryItem, EntityID: 10, Notes: "Added 5 units"},
		{ActorID: 1, Action: "remove_stock", EntityType: EntityInventoryItem, EntityID: 10, Notes: "Removed 2 units"},
		{ActorID: 2, Action: "approve_po", EntityType: EntityPurchaseOrder, EntityID: 3, Notes: "Purchase order PO-202403-001 approved"},
	} {
		_, err := svc.Record(context.Background(), e)
		require.NoError(t, err)
	}
}

func TestRecordValidates(t *testing.T) {
	svc := NewService(&memoryAuditRepo{})
	_, err := svc.Record(context.Background(), Entry{Action: "add_stock", EntityType: EntityInventoryItem})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Record(context.Background(), Entry{ActorID: 1, EntityType: EntityInventoryItem})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTrailQueries(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewService(repo)
	seedTrail(t, svc)

	byActor, err := svc.ByActor(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, byActor, 2)
	require.Equal(t, "remove_stock", byActor[0].Action, "newest first")

	byEntity, err := svc.ByEntity(context.Background(), EntityPurchaseOrder, 3, 0)
	require.NoError(t, err)
	require.Len(t, byEntity, 1)

	byAction, err := svc.ByAction(context.Background(), "add_stock", 0)
	require.NoError(t, err)
	require.Len(t, byAction, 1)

	found, err := svc.Search(context.Background(), Filter{Search: "PO-202403-001"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "approve_po", found[0].Action)
}

func TestSummaryGroups(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewService(repo)
	seedTrail(t, svc)

	summary, err := svc.Summarize(context.Background(), 0)
	require.NoError(t, err)
	require.EqualValues(t, 3, summary.Total)
	require.EqualValues(t, 2, summary.ByEntity[EntityInventoryItem])
	require.EqualValues(t, 2, summary.ByActor[1])
	require.EqualValues(t, 1, summary.ByAction["approve_po"])
	require.Equal(t, 30*24*time.Hour, summary.To.Sub(summary.From), "default window is 30 days")
}

package supplier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockroom-hq/stockroom/internal/audit"
	"github.com/stockroom-hq/stockroom/internal/shared"
)

type memorySupplierRepo struct {
	suppliers map[int64]Supplier
	counters  map[string]int64
	entries   []audit.Entry
	nextID    int64
}

func newMemorySupplierRepo() *memorySupplierRepo {
	return &memorySupplierRepo{
		suppliers: make(map[int64]Supplier),
		counters:  make(map[string]int64),
	}
}

type memorySupplierTx struct {
	repo      *memorySupplierRepo
	suppliers map[int64]Supplier
	counters  map[string]int64
	entries   []audit.Entry
	nextID    int64
}

func (r *memorySupplierRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memorySupplierTx{
		repo:      r,
		suppliers: make(map[int64]Supplier, len(r.suppliers)),
		counters:  make(map[string]int64, len(r.counters)),
		nextID:    r.nextID,
	}
	for id, s := range r.suppliers {
		tx.suppliers[id] = s
	}
	for k, v := range r.counters {
		tx.counters[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.suppliers = tx.suppliers
	r.counters = tx.counters
	r.entries = append(r.entries, tx.entries...)
	r.nextID = tx.nextID
	return nil
}

func (r *memorySupplierRepo) Get(ctx context.Context, supplierID int64) (Supplier, error) {
	s, ok := r.suppliers[supplierID]
	if !ok {
		return Supplier{}, shared.ErrNotFound
	}
	return s, nil
}

func (r *memorySupplierRepo) List(ctx context.Context, filter ListFilter) ([]Supplier, int, error) {
	var out []Supplier
	for _, s := range r.suppliers {
		if filter.ActiveOnly && !s.IsActive {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (tx *memorySupplierTx) IncrementCounter(ctx context.Context, entityType, periodKey string) (int64, error) {
	key := entityType + "/" + periodKey
	tx.counters[key]++
	return tx.counters[key], nil
}

func (tx *memorySupplierTx) SupplierForUpdate(ctx context.Context, supplierID int64) (Supplier, error) {
	s, ok := tx.suppliers[supplierID]
	if !ok {
		return Supplier{}, shared.ErrNotFound
	}
	return s, nil
}

func (tx *memorySupplierTx) InsertSupplier(ctx context.Context, s Supplier) (int64, error) {
	tx.nextID++
	s.ID = tx.nextID
	tx.suppliers[s.ID] = s
	return s.ID, nil
}

func (tx *memorySupplierTx) UpdateSupplier(ctx context.Context, s Supplier) error {
	if _, ok := tx.suppliers[s.ID]; !ok {
		return shared.ErrNotFound
	}
	tx.suppliers[s.ID] = s
	return nil
}

func (tx *memorySupplierTx) SetSupplierActive(ctx context.Context, supplierID int64, active bool) error {
	s := tx.suppliers[supplierID]
	s.IsActive = active
	tx.suppliers[supplierID] = s
	return nil
}

func (tx *memorySupplierTx) SetSupplierRating(ctx context.Context, supplierID int64, rating int) error {
	s := tx.suppliers[supplierID]
	s.Rating = rating
	tx.suppliers[supplierID] = s
	return nil
}

func (tx *memorySupplierTx) InsertAuditEntry(ctx context.Context, entry audit.Entry) (int64, error) {
	tx.entries = append(tx.entries, entry)
	return int64(len(tx.entries)), nil
}

func newTestService(repo *memorySupplierRepo, at time.Time) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return at }
	return svc
}

func TestCreateAssignsYearlyCode(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))

	first, err := svc.Create(context.Background(), CreateInput{Name: "Acme Fasteners", ActorID: 7})
	require.NoError(t, err)
	require.Equal(t, "SUP2024001", first.Code)
	require.True(t, first.IsActive)

	second, err := svc.Create(context.Background(), CreateInput{Name: "Bolt Depot", ActorID: 7})
	require.NoError(t, err)
	require.Equal(t, "SUP2024002", second.Code)

	// The yearly counter resets with the period key.
	svc.now = func() time.Time { return time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC) }
	third, err := svc.Create(context.Background(), CreateInput{Name: "Nut House", ActorID: 7})
	require.NoError(t, err)
	require.Equal(t, "SUP2025001", third.Code)

	require.Len(t, repo.entries, 3)
	require.Equal(t, ActionCreate, repo.entries[0].Action)
	require.Equal(t, audit.EntitySupplier, repo.entries[0].EntityType)
}

func TestCreateValidates(t *testing.T) {
	svc := newTestService(newMemorySupplierRepo(), time.Now())
	_, err := svc.Create(context.Background(), CreateInput{ActorID: 7})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(context.Background(), CreateInput{Name: "Acme"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRateBounds(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo, time.Now())
	created, err := svc.Create(context.Background(), CreateInput{Name: "Acme", ActorID: 7})
	require.NoError(t, err)

	for _, bad := range []int{0, -1, 6} {
		_, err := svc.Rate(context.Background(), created.ID, bad, 7)
		require.ErrorIs(t, err, shared.ErrValidation, "rating %d", bad)
	}

	rated, err := svc.Rate(context.Background(), created.ID, 4, 7)
	require.NoError(t, err)
	require.Equal(t, 4, rated.Rating)

	last := repo.entries[len(repo.entries)-1]
	require.Equal(t, ActionRate, last.Action)
	require.Equal(t, "0", last.OldValue)
	require.Equal(t, "4", last.NewValue)
}

func TestDeactivateIdempotent(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo, time.Now())
	created, err := svc.Create(context.Background(), CreateInput{Name: "Acme", ActorID: 7})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), created.ID, 7))
	audited := len(repo.entries)
	require.NoError(t, svc.Deactivate(context.Background(), created.ID, 7))
	require.Len(t, repo.entries, audited)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	active, _, err := svc.List(context.Background(), ListFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestUpdateMissingSupplier(t *testing.T) {
	svc := newTestService(newMemorySupplierRepo(), time.Now())
	_, err := svc.Update(context.Background(), UpdateInput{SupplierID: 99, Name: "Ghost", ActorID: 7})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

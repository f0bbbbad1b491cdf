package notification

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stockroom-hq/stockroom/internal/shared"
)

type memoryNotifRepo struct {
	notes       map[int64]Notification
	nextID      int64
	failForUser int64
}

func newMemoryNotifRepo() *memoryNotifRepo {
	return &memoryNotifRepo{notes: make(map[int64]Notification)}
}

func (r *memoryNotifRepo) Insert(ctx context.Context, n Notification) (Notification, error) {
	if r.failForUser != 0 && n.UserID == r.failForUser {
		return Notification{}, errors.New("insert failed")
	}
	r.nextID++
	n.ID = r.nextID
	n.CreatedAt = time.Now().UTC()
	r.notes[n.ID] = n
	return n, nil
}

func (r *memoryNotifRepo) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error) {
	var out []Notification
	for _, n := range r.notes {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *memoryNotifRepo) SetRead(ctx context.Context, userID, notificationID int64, read bool) error {
	n, ok := r.notes[notificationID]
	if !ok || n.UserID != userID {
		return fmt.Errorf("set read %d: %w", notificationID, ErrNotificationNotFound)
	}
	n.IsRead = read
	if read {
		n.ReadAt = time.Now().UTC()
	} else {
		n.ReadAt = time.Time{}
	}
	r.notes[notificationID] = n
	return nil
}

func (r *memoryNotifRepo) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	var count int64
	for id, n := range r.notes {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = time.Now().UTC()
			r.notes[id] = n
			count++
		}
	}
	return count, nil
}

func (r *memoryNotifRepo) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	for _, n := range r.notes {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *memoryNotifRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	for id, n := range r.notes {
		if n.Expired(now) {
			delete(r.notes, id)
			count++
		}
	}
	return count, nil
}

type staticDirectory struct {
	byRole map[shared.Role][]int64
}

func (d staticDirectory) ActiveUserIDsByRole(ctx context.Context, roles ...shared.Role) ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	for _, role := range roles {
		for _, id := range d.byRole[role] {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func TestDispatchFansOutToRoleHolders(t *testing.T) {
	repo := newMemoryNotifRepo()
	dir := staticDirectory{byRole: map[shared.Role][]int64{
		shared.RoleAdmin:   {1},
		shared.RoleManager: {2, 3},
	}}
	svc := NewService(repo, dir, nil, nil)

	delivered, err := svc.Dispatch(context.Background(), ToRoles(shared.InventoryManagementRoles...), Note{
		Title:    "Low Stock Alert",
		Body:     "Item 'Bolts' (SKU: SKU-1) is running low on stock. Current quantity: 3",
		Severity: SeverityWarning,
	})
	require.NoError(t, err)
	require.Len(t, delivered, 3)

	mine, err := svc.ListForUser(context.Background(), 2, true, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, SeverityWarning, mine[0].Severity)
}

func TestDispatchSkipsFailedRecipients(t *testing.T) {
	repo := newMemoryNotifRepo()
	repo.failForUser = 2
	dir := staticDirectory{byRole: map[shared.Role][]int64{
		shared.RoleManager: {1, 2, 3},
	}}
	svc := NewService(repo, dir, nil, nil)

	delivered, err := svc.Dispatch(context.Background(), ToRoles(shared.RoleManager), Note{
		Title: "Heads up", Body: "something happened",
	})
	require.NoError(t, err, "one failed insert must not fail the dispatch")
	require.Len(t, delivered, 2)
}

func TestDispatchValidatesTarget(t *testing.T) {
	svc := NewService(newMemoryNotifRepo(), nil, nil, nil)

	_, err := svc.Dispatch(context.Background(), Target{}, Note{Title: "t", Body: "b"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Dispatch(context.Background(), ToUser(1), Note{Title: "", Body: "b"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReadToggleIsIdempotent(t *testing.T) {
	repo := newMemoryNotifRepo()
	svc := NewService(repo, nil, nil, nil)

	delivered, err := svc.Dispatch(context.Background(), ToUser(5), Note{Title: "t", Body: "b"})
	require.NoError(t, err)
	id := delivered[0].ID

	require.NoError(t, svc.MarkRead(context.Background(), 5, id))
	require.NoError(t, svc.MarkRead(context.Background(), 5, id))
	require.True(t, repo.notes[id].IsRead)

	require.NoError(t, svc.MarkUnread(context.Background(), 5, id))
	require.False(t, repo.notes[id].IsRead)

	// Another user's notification is invisible, not toggleable.
	err = svc.MarkRead(context.Background(), 6, id)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMarkAllRead(t *testing.T) {
	repo := newMemoryNotifRepo()
	svc := NewService(repo, nil, nil, nil)
	for i := 0; i < 3; i++ {
		_, err := svc.Dispatch(context.Background(), ToUser(5), Note{Title: "t", Body: "b"})
		require.NoError(t, err)
	}
	_, err := svc.Dispatch(context.Background(), ToUser(6), Note{Title: "t", Body: "b"})
	require.NoError(t, err)

	count, err := svc.MarkAllRead(context.Background(), 5)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	unread, err := svc.UnreadCount(context.Background(), 6)
	require.NoError(t, err)
	require.EqualValues(t, 1, unread)
}

func TestSweepExpired(t *testing.T) {
	repo := newMemoryNotifRepo()
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Dispatch(context.Background(), ToUser(5), Note{
		Title: "old", Body: "b", ExpiresAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = svc.Dispatch(context.Background(), ToUser(5), Note{
		Title: "fresh", Body: "b", ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = svc.Dispatch(context.Background(), ToUser(5), Note{Title: "forever", Body: "b"})
	require.NoError(t, err)

	swept, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, swept)

	left, err := svc.ListForUser(context.Background(), 5, false, 0)
	require.NoError(t, err)
	require.Len(t, left, 2)
}

func TestUnreadCountUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryNotifRepo()
	cache := NewUnreadCache(client, time.Minute)
	svc := NewService(repo, nil, cache, nil)

	_, err := svc.Dispatch(context.Background(), ToUser(5), Note{Title: "t", Body: "b"})
	require.NoError(t, err)

	count, err := svc.UnreadCount(context.Background(), 5)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.True(t, mr.Exists("notification:unread:5"))

	// Cached value is served even when the store would disagree.
	mr.Set("notification:unread:5", "9")
	count, err = svc.UnreadCount(context.Background(), 5)
	require.NoError(t, err)
	require.EqualValues(t, 9, count)

	// Any read-state write invalidates the badge.
	require.NoError(t, svc.MarkRead(context.Background(), 5, 1))
	require.False(t, mr.Exists("notification:unread:5"))
}

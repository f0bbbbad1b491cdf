package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stockroom-hq/stockroom/internal/shared"
)

// RepositoryPort abstracts notification persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error)
	SetRead(ctx context.Context, userID, notificationID int64, read bool) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// DirectoryPort resolves role targets to their current active holders.
type DirectoryPort interface {
	ActiveUserIDsByRole(ctx context.Context, roles ...shared.Role) ([]int64, error)
}

// Service fans out alerts and serves the per-user read surface. Dispatch is
// fire-and-forget relative to whatever transaction triggered it.
type Service struct {
	repo      RepositoryPort
	directory DirectoryPort
	cache     *UnreadCache
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, directory DirectoryPort, cache *UnreadCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, directory: directory, cache: cache, logger: logger}
}

// Dispatch resolves the target and best-effort-delivers to each recipient
// independently. A per-user insert failure is logged and skipped; the call
// only errors when the target itself cannot be resolved or validated.
func (s *Service) Dispatch(ctx context.Context, target Target, note Note) ([]Notification, error) {
	if note.Title == "" || note.Body == "" {
		return nil, fmt.Errorf("notification: title and body required: %w", shared.ErrValidation)
	}
	if note.Severity == "" {
		note.Severity = SeverityInfo
	}

	recipients, err := s.resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	delivered := make([]Notification, 0, len(recipients))
	for _, userID := range recipients {
		n, err := s.repo.Insert(ctx, Notification{
			UserID:    userID,
			Title:     note.Title,
			Body:      note.Body,
			Severity:  note.Severity,
			ActionRef: note.ActionRef,
			ExpiresAt: note.ExpiresAt,
		})
		if err != nil {
			s.logger.Error("notification delivery failed",
				slog.Int64("user_id", userID),
				slog.String("title", note.Title),
				slog.Any("error", err))
			continue
		}
		delivered = append(delivered, n)
		s.cache.Invalidate(ctx, userID)
	}
	return delivered, nil
}

// DispatchAll delivers a batch of intents, typically emitted by a committed
// ledger or workflow mutation. Failures never propagate to the caller.
func (s *Service) DispatchAll(ctx context.Context, intents []Intent) {
	for _, intent := range intents {
		if _, err := s.Dispatch(ctx, intent.Target, intent.Note); err != nil {
			s.logger.Error("notification dispatch failed",
				slog.String("title", intent.Note.Title),
				slog.Any("error", err))
		}
	}
}

func (s *Service) resolve(ctx context.Context, target Target) ([]int64, error) {
	if target.UserID != 0 {
		return []int64{target.UserID}, nil
	}
	if len(target.Roles) == 0 {
		return nil, fmt.Errorf("notification: target requires a user or role set: %w", shared.ErrValidation)
	}
	if s.directory == nil {
		return nil, fmt.Errorf("notification: role targets need a directory")
	}
	return s.directory.ActiveUserIDsByRole(ctx, target.Roles...)
}

// ListForUser returns a user's notifications, optionally unread-only.
func (s *Service) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error) {
	if userID == 0 {
		return nil, fmt.Errorf("notification: user required: %w", shared.ErrValidation)
	}
	return s.repo.ListByUser(ctx, userID, unreadOnly, limit)
}

// UnreadCount returns the unread badge count, served from cache when warm.
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	if count, ok := s.cache.Get(ctx, userID); ok {
		return count, nil
	}
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.cache.Set(ctx, userID, count)
	return count, nil
}

// MarkRead marks one notification read. Re-marking is a no-op.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID int64) error {
	return s.setRead(ctx, userID, notificationID, true)
}

// MarkUnread marks one notification unread. Re-marking is a no-op.
func (s *Service) MarkUnread(ctx context.Context, userID, notificationID int64) error {
	return s.setRead(ctx, userID, notificationID, false)
}

func (s *Service) setRead(ctx context.Context, userID, notificationID int64, read bool) error {
	if userID == 0 || notificationID == 0 {
		return fmt.Errorf("notification: user and notification required: %w", shared.ErrValidation)
	}
	if err := s.repo.SetRead(ctx, userID, notificationID, read); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			return fmt.Errorf("notification %d: %w", notificationID, shared.ErrNotFound)
		}
		return err
	}
	s.cache.Invalidate(ctx, userID)
	return nil
}

// MarkAllRead marks every unread notification of one user read.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	if userID == 0 {
		return 0, fmt.Errorf("notification: user required: %w", shared.ErrValidation)
	}
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.cache.Invalidate(ctx, userID)
	return count, nil
}

// SweepExpired deletes notifications whose expiry has passed.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("expired notifications swept", slog.Int64("count", count))
	}
	return count, nil
}

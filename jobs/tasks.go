package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockroom-hq/stockroom/internal/inventory"
	"github.com/stockroom-hq/stockroom/internal/notification"
	"github.com/stockroom-hq/stockroom/internal/observability"
	"github.com/stockroom-hq/stockroom/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotificationSweep deletes expired notifications.
	TaskNotificationSweep = "notification:sweep"
	// TaskLowStockScan alerts managers about items at or below reorder level.
	TaskLowStockScan = "inventory:lowstock:scan"
)

// SweepPayload carries scheduling metadata for the expiry sweep.
type SweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewNotificationSweepTask constructs an Asynq task for the expiry sweep.
func NewNotificationSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationSweep, body, asynq.Queue(QueueDefault)), nil
}

// NewNotificationSweepHandler returns the handler deleting expired
// notifications. Sweep failures retry on the normal Asynq schedule.
func NewNotificationSweepHandler(svc *notification.Service, metrics *observability.JobMetrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		track := metrics.Track(TaskNotificationSweep)
		deleted, err := svc.SweepExpired(ctx)
		if err != nil {
			return track.End(fmt.Errorf("jobs: notification sweep: %w", err))
		}
		logger.Info("notification sweep done", slog.Int64("deleted", deleted))
		return track.End(nil)
	}
}

// LowStockScanPayload carries scheduling metadata for the low-stock scan.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock scan.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewLowStockScanHandler returns the handler that sends managers a digest of
// items sitting at or below their reorder level. Dispatch is best-effort;
// the scan itself fails only when the ledger read fails.
func NewLowStockScanHandler(inv *inventory.Service, notifier *notification.Service, metrics *observability.JobMetrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LowStockScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		track := metrics.Track(TaskLowStockScan)
		items, err := inv.LowStock(ctx)
		if err != nil {
			return track.End(fmt.Errorf("jobs: low stock scan: %w", err))
		}
		metrics.SetLowStockItems(len(items))
		if len(items) == 0 {
			logger.Info("low stock scan clean")
			return track.End(nil)
		}
		body := fmt.Sprintf("%d item(s) are at or below their reorder level.", len(items))
		if len(items) == 1 {
			body = fmt.Sprintf("%s (SKU: %s) is at or below its reorder level (%d remaining).",
				items[0].Name, items[0].SKU, items[0].Quantity)
		}
		notifier.DispatchAll(ctx, []notification.Intent{{
			Target: notification.ToRoles(shared.InventoryManagementRoles...),
			Note: notification.Note{
				Title:    "Low Stock Alert",
				Body:     body,
				Severity: notification.SeverityWarning,
			},
		}})
		logger.Info("low stock scan done", slog.Int("items", len(items)))
		return track.End(nil)
	}
}

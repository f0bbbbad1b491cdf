package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/stockroom-hq/stockroom/cmd/stockroom/cli"
	"github.com/stockroom-hq/stockroom/internal/app"
)

// runJobsCommand handles `stockroom jobs <trigger|stats|scheduled> [arg]`
// without starting the HTTP server.
func runJobsCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	if len(args) == 0 {
		logger.Error("usage: stockroom jobs <trigger|stats|scheduled> [arg]")
		return 2
	}

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		logger.Error("jobs cli init", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			logger.Error("usage: stockroom jobs trigger <task>")
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			logger.Error("trigger job", slog.Any("error", err))
			return 1
		}
		logger.Info("job enqueued", slog.String("task", info.Type), slog.String("id", info.ID))
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			logger.Error("inspect queue", slog.Any("error", err))
			return 1
		}
		logger.Info("queue stats",
			slog.String("queue", stats.Queue),
			slog.Int("pending", stats.Pending),
			slog.Int("active", stats.Active),
			slog.Int("scheduled", stats.Scheduled),
			slog.Int("retry", stats.Retry))
	case "scheduled":
		size := 10
		if len(args) > 1 {
			if n, err := strconv.Atoi(args[1]); err == nil {
				size = n
			}
		}
		tasks, err := jobsCLI.ListScheduled(ctx, size)
		if err != nil {
			logger.Error("list scheduled", slog.Any("error", err))
			return 1
		}
		for _, t := range tasks {
			logger.Info("scheduled task", slog.String("task", t.Type), slog.String("id", t.ID))
		}
	default:
		logger.Error("unknown jobs subcommand", slog.String("subcommand", args[0]))
		return 2
	}
	return 0
}

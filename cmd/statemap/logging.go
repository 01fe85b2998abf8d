package main

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/goliatone/go-statemap/pkg/activity"
)

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newLogger writes text logs to w. Unknown levels fall back to warn.
func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, ok := logLevelMap[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// activityLogger turns committed changes into info log lines.
func activityLogger(logger *slog.Logger) activity.ActivityHook {
	return activity.HookFunc(func(ctx context.Context, event activity.Event) error {
		logger.InfoContext(ctx, "statemap activity",
			slog.String("verb", event.Verb),
			slog.String("object_id", event.ObjectID),
			slog.String("actor_id", event.ActorID),
			slog.Any("metadata", event.Metadata),
		)
		return nil
	})
}

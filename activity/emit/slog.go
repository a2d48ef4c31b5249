package emit

import (
	"context"
	"log/slog"
	"sort"
)

// SlogEmitter implements Emitter on top of a *slog.Logger.
//
// Events whose Meta carries an "error" key are logged at Error level,
// step events at Debug, and everything else at Info.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter returns an emitter writing to logger. A nil logger means
// slog.Default().
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{logger: logger}
}

// Emit logs event as one structured record.
func (s *SlogEmitter) Emit(event Event) {
	level := slog.LevelInfo
	switch {
	case event.Meta["error"] != nil:
		level = slog.LevelError
	case event.Msg == "step_start" || event.Msg == "step_end":
		level = slog.LevelDebug
	}

	ctx := context.Background()
	if !s.logger.Enabled(ctx, level) {
		return
	}

	attrs := []slog.Attr{
		slog.String("run_id", event.RunID),
		slog.Int("step", event.Step),
	}
	if event.RowID != "" {
		attrs = append(attrs, slog.String("row_id", event.RowID))
	}

	keys := make([]string, 0, len(event.Meta))
	for k := range event.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, event.Meta[k]))
	}

	s.logger.LogAttrs(ctx, level, event.Msg, attrs...)
}

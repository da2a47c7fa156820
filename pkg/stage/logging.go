package stage

import (
	"context"
	"log/slog"
	"time"
)

// LoggingExtension logs evaluation and invalidation events at debug level.
type LoggingExtension struct {
	BaseExtension
	logger *slog.Logger
}

func NewLoggingExtension(logger *slog.Logger) *LoggingExtension {
	return &LoggingExtension{
		BaseExtension: NewBaseExtension("logging"),
		logger:        logger.With(slog.String("component", "stage")),
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	start := time.Now()
	result, err := next()

	attrs := []any{
		slog.String("pipeline", op.Instance.Pipeline().Name()),
		slog.String("instance", op.Instance.ID().String()),
		slog.String("op", string(op.Kind)),
		slog.Duration("duration", time.Since(start)),
	}
	if op.Kind == OpTransform {
		attrs = append(attrs,
			slog.String("stage", op.Stage),
			slog.Int("position", op.Position),
			slog.String("variant", op.Variant))
	}

	if err != nil {
		e.logger.DebugContext(ctx, "stage evaluation failed", append(attrs, slog.Any("error", err))...)
	} else {
		e.logger.DebugContext(ctx, "stage evaluated", attrs...)
	}
	return result, err
}

func (e *LoggingExtension) OnConfigure(inst *Instance, cfg Summary) {
	e.logger.Debug("stage configured",
		slog.String("pipeline", inst.Pipeline().Name()),
		slog.String("instance", inst.ID().String()),
		slog.String("stage", cfg.Stage),
		slog.String("variant", cfg.Variant),
		slog.Int("args", len(cfg.Args)))
}

func (e *LoggingExtension) OnInvalidate(inst *Instance, position, dropped int) {
	if dropped == 0 {
		return
	}
	e.logger.Debug("stage cache invalidated",
		slog.String("pipeline", inst.Pipeline().Name()),
		slog.String("instance", inst.ID().String()),
		slog.Int("from", position),
		slog.Int("dropped", dropped))
}

package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type HandlersRegistry struct {
	mux *asynq.ServeMux
}

// NewHandlersRegistry returns a registry whose handlers are wrapped with task logging.
func NewHandlersRegistry() *HandlersRegistry {
	mux := asynq.NewServeMux()
	mux.Use(logTasks(slog.Default().With("component", "queue")))
	return &HandlersRegistry{mux: mux}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Use(mws ...asynq.MiddlewareFunc) {
	r.mux.Use(mws...)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

func logTasks(logger *slog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()
			taskID, _ := asynq.GetTaskID(ctx)
			retry, _ := asynq.GetRetryCount(ctx)

			err := next.ProcessTask(ctx, t)

			attrs := []any{
				"task_type", t.Type(),
				"task_id", taskID,
				"retry", retry,
				"duration", time.Since(start),
			}
			if err != nil {
				logger.Warn("task failed", append(attrs, "error", err)...)
				return err
			}
			logger.Debug("task done", attrs...)
			return nil
		})
	}
}

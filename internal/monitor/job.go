package monitor

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Job owns the cursor between ticks and is what the scheduler runs.
type Job struct {
	Driver *Driver
	Logger *zap.Logger

	mu     sync.Mutex
	cursor Cursor
}

func (j *Job) Run(ctx context.Context) {
	j.mu.Lock()
	cur := j.cursor
	j.mu.Unlock()

	next, rep, err := j.Driver.Tick(ctx, cur)

	j.mu.Lock()
	j.cursor = next
	j.mu.Unlock()

	if err != nil && j.Logger != nil {
		j.Logger.Warn("monitor tick failed",
			zap.String("label", j.Driver.Label),
			zap.Uint64("cursor", next.EventID),
			zap.Error(err),
		)
		return
	}
	if rep.Broadcast != nil && j.Logger != nil {
		j.Logger.Info("monitor tick broadcast",
			zap.String("label", j.Driver.Label),
			zap.Uint64("cursor", next.EventID),
			zap.Int("succeeded", rep.Broadcast.Succeeded),
			zap.Int("failed", rep.Broadcast.Failed),
		)
	}
}

func (j *Job) Cursor() Cursor {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cursor
}

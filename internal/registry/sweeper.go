package registry

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often expired sessions are removed.
const DefaultSweepInterval = time.Hour

// RunSweeper calls [Registry.ExpireSweep] every interval until ctx is cancelled.
//
// Sweep failures are logged and retried on the next tick.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Debug("sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("sweeper stopped")
			return
		case <-ticker.Chan():
			removed, err := r.ExpireSweep(ctx)
			if err != nil {
				r.logger.Error("sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				r.logger.Info("expired sessions removed", "count", removed)
			}
		}
	}
}

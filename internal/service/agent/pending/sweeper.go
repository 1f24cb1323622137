package pending

import (
	"context"
	"log/slog"
	"time"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/repositories"
)

// DefaultSweepInterval is how often expired actions are purged.
const DefaultSweepInterval = time.Minute

// RunSweeper purges expired actions every interval until ctx is done.
// Expiry is also enforced lazily by Take, so the sweeper only bounds memory.
func RunSweeper(ctx context.Context, store repositories.PendingActionStore, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			n, err := store.Sweep(ctx, now)
			if err != nil {
				logger.Warn("pending action sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("swept expired pending actions", "count", n)
			}
		}
	}
}

package storage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartReplayLoop replays fallback files every interval until ctx ends.
// A non-positive interval disables the loop.
func (s *Service) StartReplayLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.store == nil {
		return
	}
	go s.replayLoop(ctx, interval)
}

func (s *Service) replayLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ReplayFallback(ctx)
			if err != nil {
				s.log.Warn("replay fallback files failed", zap.Int("replayed", n), zap.Error(err))
				continue
			}
			if n > 0 {
				s.log.Info("replayed fallback files", zap.Int("count", n))
			}
		}
	}
}

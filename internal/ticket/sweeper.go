package ticket

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"go-dataset-converter/internal/logger"
)

// Sweeper periodically removes tickets whose last_seen exceeds the TTL,
// together with their backing files.
type Sweeper struct {
	store    *Store
	interval time.Duration
	ttl      time.Duration
}

// NewSweeper creates a sweeper over store.
func NewSweeper(store *Store, interval, ttl time.Duration) *Sweeper {
	return &Sweeper{store: store, interval: interval, ttl: ttl}
}

// Run loops until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep performs one pass and reports how many tickets were removed.
func (s *Sweeper) Sweep() int {
	removed := s.store.SweepExpired(s.ttl)
	if len(removed) > 0 {
		logger.WithFields(logrus.Fields{
			"count": len(removed),
			"ttl":   s.ttl.String(),
		}).Info("Cleanup removed expired tickets")
	}
	return len(removed)
}

package identity

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often expired unverified accounts are purged
var DefaultSweepInterval = 10 * time.Minute

// Sweeper periodically removes never verified accounts whose bounded
// lifetime has passed. Verified accounts are untouched, their expiry
// field is cleared at verification time.
type Sweeper struct {
	repo     RepositoryManager
	interval time.Duration
	logger   Logger
}

// NewSweeper creates a sweeper over the given store
func NewSweeper(repo RepositoryManager) *Sweeper {
	return &Sweeper{
		repo:     repo,
		interval: DefaultSweepInterval,
		logger:   defLogger{},
	}
}

func (s *Sweeper) WithInterval(interval time.Duration) *Sweeper {
	if interval > 0 {
		s.interval = interval
	}
	return s
}

func (s *Sweeper) WithLogger(logger Logger) *Sweeper {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Run blocks, purging on every tick until the context is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Start runs the sweeper in its own goroutine
func (s *Sweeper) Start(ctx context.Context) {
	go s.Run(ctx)
}

func (s *Sweeper) sweep(ctx context.Context) {
	purged, err := s.repo.Users().PurgeExpiredUnverified(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to purge expired unverified accounts", "error", err)
		return
	}

	if purged > 0 {
		s.logger.Info("purged expired unverified accounts", "count", purged)
	}
}

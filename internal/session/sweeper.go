package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweepable is implemented by stores that can drop expired sessions.
type Sweepable interface {
	Sweep(ctx context.Context) (int64, error)
}

// Sweeper periodically removes expired sessions from a store.
type Sweeper struct {
	store    Sweepable
	interval time.Duration
	done     chan struct{}
	once     sync.Once
}

func NewSweeper(store Sweepable, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start sweeps on a timer. It blocks until Stop is called or the context is
// cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := s.store.Sweep(ctx)
	if err != nil {
		slog.Error("failed to sweep expired sessions", "error", err)
		return
	}
	if n > 0 {
		slog.Debug("swept expired sessions", "count", n)
	}
}

// Stop signals the background goroutine to exit.
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.done) })
}

package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// shutdownGrace bounds how long the pipeline waits for its tasks to drain
// and exit after cancellation.
const shutdownGrace = 5 * time.Second

// Pipeline wires T-Live, T-Challenge, and T-Pack around a shared queue.
type Pipeline struct {
	Queue     *Queue
	Live      *LiveTailer
	Challenge *ChallengeSyncer
	Pack      *PackTask
	logger    *slog.Logger
}

// NewPipeline assembles the three tasks. queue may be nil to use the
// production QueueCapacity.
func NewPipeline(queue *Queue, live *LiveTailer, challenge *ChallengeSyncer, pack *PackTask, logger *slog.Logger) *Pipeline {
	if queue == nil {
		queue = NewQueue(QueueCapacity)
	}
	return &Pipeline{Queue: queue, Live: live, Challenge: challenge, Pack: pack, logger: logger.With("component", "archive-pipeline")}
}

// Run starts all three tasks and blocks until parent is cancelled or a task
// fails fatally, draining within shutdownGrace before returning.
func (p *Pipeline) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	spawn("t-live", p.Live.Run)
	spawn("t-challenge", p.Challenge.Run)
	spawn("t-pack", p.Pack.Run)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-parent.Done():
		cancel()
		select {
		case <-done:
		case <-time.After(shutdownGrace):
			p.logger.Warn("shutdown grace period elapsed; returning without full drain")
		}
	case <-done:
	}

	close(errCh)
	for err := range errCh {
		return err
	}
	return nil
}

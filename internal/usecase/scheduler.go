package usecase

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"PairTrader/internal/domain/models"
	"PairTrader/internal/domain/repository"
	"PairTrader/pkg/logger"
)

// SchedulerConfig tunes batch fan-out.
type SchedulerConfig struct {
	BatchSize    int
	MaxParallel  int
	Stagger      time.Duration
	ClientIDBase int
}

// DispatchResult aggregates what one sweep's worth of sessions produced.
type DispatchResult struct {
	Entries     []models.Entry
	FailedPairs []string
}

// Scheduler splits the eligible pair universe into fixed-size batches
// and runs each batch in its own session over a fresh broker connection.
// Session identity is ClientIDBase plus the batch index, so reruns of a
// batch reuse the same venue client id.
type Scheduler struct {
	dialer  repository.BrokerDialer
	factory SessionFactory
	cfg     SchedulerConfig
	log     *logger.Logger
	metrics repository.Metrics
	sleep   func(time.Duration)
}

func NewScheduler(
	dialer repository.BrokerDialer,
	factory SessionFactory,
	cfg SchedulerConfig,
	log *logger.Logger,
	metrics repository.Metrics,
) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 8
	}
	return &Scheduler{
		dialer:  dialer,
		factory: factory,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		sleep:   time.Sleep,
	}
}

// Dispatch runs all batches for the given pairs and blocks until every
// session has returned. Launches are staggered to avoid hammering the
// venue with simultaneous connects, and at most MaxParallel sessions run
// concurrently. A panicking session is logged and dropped; it never
// takes the sweep down with it.
func (s *Scheduler) Dispatch(ctx context.Context, pairs []models.Pair) DispatchResult {
	batches := chunkPairs(pairs, s.cfg.BatchSize)
	if len(batches) == 0 {
		return DispatchResult{}
	}
	s.log.Info("dispatching pair batches",
		logger.Int("pairs", len(pairs)),
		logger.Int("batches", len(batches)))

	var (
		mu     sync.Mutex
		out    DispatchResult
		wg     sync.WaitGroup
		tokens = make(chan struct{}, s.cfg.MaxParallel)
	)

	for idx, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		if idx > 0 && s.cfg.Stagger > 0 {
			s.sleep(s.cfg.Stagger)
		}

		tokens <- struct{}{}
		wg.Add(1)
		go func(idx int, batch []models.Pair) {
			defer wg.Done()
			defer func() { <-tokens }()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("session panicked",
						logger.Int("batch", idx),
						logger.Any("panic", r),
						logger.String("stack", string(debug.Stack())))
					s.metrics.RecordError("session_panic")
				}
			}()

			session := s.factory(s.dialer.Session())
			entries, failed := session.Execute(ctx, batch, s.cfg.ClientIDBase+idx)

			mu.Lock()
			out.Entries = append(out.Entries, entries...)
			out.FailedPairs = append(out.FailedPairs, failed...)
			mu.Unlock()
		}(idx, batch)
	}

	wg.Wait()
	return out
}

// chunkPairs splits pairs into consecutive batches of at most size.
func chunkPairs(pairs []models.Pair, size int) [][]models.Pair {
	var batches [][]models.Pair
	for start := 0; start < len(pairs); start += size {
		end := start + size
		if end > len(pairs) {
			end = len(pairs)
		}
		batches = append(batches, pairs[start:end])
	}
	return batches
}

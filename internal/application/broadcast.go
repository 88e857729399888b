package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

const (
	defaultFanOutBatchSize   = 100
	defaultFanOutConcurrency = 4
	defaultFanOutTimeout     = 30 * time.Second
)

// BroadcastConfig tunes the fan-out of broadcast notifications.
type BroadcastConfig struct {
	BatchSize   int
	Concurrency int
	Timeout     time.Duration
}

// Broadcaster fans a notification out to every registered user. Submit never
// blocks on the directory or the dispatcher, and failures are only logged.
type Broadcaster struct {
	users      UserDirectoryPort
	dispatcher NotificationDispatcherPort
	logger     LoggerPort
	cfg        BroadcastConfig
	inflight   sync.WaitGroup
}

// NewBroadcaster creates a new Broadcaster.
func NewBroadcaster(
	users UserDirectoryPort,
	dispatcher NotificationDispatcherPort,
	logger LoggerPort,
	cfg BroadcastConfig,
) *Broadcaster {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultFanOutBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultFanOutConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFanOutTimeout
	}
	return &Broadcaster{
		users:      users,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// Submit schedules the fan-out for a created problem and returns immediately.
func (b *Broadcaster) Submit(event domain.ProblemCreated) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("fanout_failed", map[string]interface{}{
					"problem_id": event.ProblemID.String(),
					"error":      fmt.Sprint(r),
				})
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Timeout)
		defer cancel()
		b.fanOut(ctx, event)
	}()
}

// Wait blocks until every submitted fan-out has finished.
func (b *Broadcaster) Wait() {
	b.inflight.Wait()
}

func (b *Broadcaster) fanOut(ctx context.Context, event domain.ProblemCreated) {
	href := event.Href()

	userIds, err := b.users.AllUserIds(ctx)
	if err != nil {
		b.logger.Error("fanout_failed", map[string]interface{}{
			"problem_id": event.ProblemID.String(),
			"href":       href,
			"error":      err.Error(),
		})
		return
	}

	b.logger.Info("fanout_started", map[string]interface{}{
		"problem_id": event.ProblemID.String(),
		"href":       href,
		"recipients": len(userIds),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)
	for _, batch := range batches(userIds, b.cfg.BatchSize) {
		g.Go(func() error {
			defer b.recoverBatch(event, len(batch))
			b.dispatcher.Notify(gctx, batch, href)
			return nil
		})
	}
	_ = g.Wait()

	b.logger.Debug("fanout_finished", map[string]interface{}{
		"problem_id": event.ProblemID.String(),
		"href":       href,
	})
}

// recoverBatch turns a dispatcher panic into a logged fan-out failure.
func (b *Broadcaster) recoverBatch(event domain.ProblemCreated, size int) {
	if r := recover(); r != nil {
		b.logger.Error("fanout_failed", map[string]interface{}{
			"problem_id": event.ProblemID.String(),
			"batch_size": size,
			"error":      fmt.Sprint(r),
		})
	}
}

func batches(ids []domain.ActorId, size int) [][]domain.ActorId {
	var out [][]domain.ActorId
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

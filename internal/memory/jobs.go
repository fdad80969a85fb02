// Package memory provides the HOT/COLD memory subsystem for Atlas Cortex.
// This file implements background jobs for memory maintenance: rapport
// decay, COLD write-queue retry, and vector index upkeep.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Logger interface for job logging.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// RapportStore applies the daily rapport decay to every tracked user, per
// Config.Memory.RapportDayDecay.
type RapportStore interface {
	DecayAll(ctx context.Context, dailyDecay float64) (int, error)
}

// ColdQueue reports how many COLD memory writes are still pending; the
// Consumer's Drain is what reprocesses them.
type ColdQueue interface {
	RetryPending(ctx context.Context, maxAttempts int) (int, error)
}

// JobConfig configures the memory maintenance jobs.
type JobConfig struct {
	// Interval is how often to run maintenance jobs.
	Interval time.Duration `json:"interval"`

	// RapportDayDecay is the per-day rapport decay applied to idle users.
	RapportDayDecay float64 `json:"rapport_day_decay"`

	// ColdQueueRetries is the max retry attempts for a pending COLD write.
	ColdQueueRetries int `json:"cold_queue_retries"`

	// RebuildVectorIndex triggers a full index rebuild if true.
	RebuildVectorIndex bool `json:"rebuild_vector_index"`
}

// DefaultJobConfig returns sensible defaults for maintenance jobs.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		Interval:           5 * time.Minute,
		RapportDayDecay:    0.005,
		ColdQueueRetries:   5,
		RebuildVectorIndex: false,
	}
}

// MemoryJobs manages scheduled maintenance tasks for the memory system,
// driven by a robfig/cron scheduler rather than a hand-rolled ticker so the
// job cadence can be expressed and audited as a cron spec.
type MemoryJobs struct {
	db          *sql.DB
	rapport     RapportStore
	cold        ColdQueue
	consumer    *Consumer
	notifier    *Notifier
	vectorIndex *VectorIndex
	config      JobConfig
	cron        *cron.Cron
	readyCh     <-chan struct{}
	stopCh      chan struct{}
	logger      Logger
	once        sync.Once
	running     bool
	mu          sync.Mutex
}

// NewMemoryJobs creates a new MemoryJobs instance.
func NewMemoryJobs(db *sql.DB, rapport RapportStore, cold ColdQueue, config JobConfig, logger Logger) *MemoryJobs {
	return &MemoryJobs{
		db:      db,
		rapport: rapport,
		cold:    cold,
		config:  config,
		stopCh:  make(chan struct{}, 1),
		logger:  logger,
	}
}

// SetVectorIndex attaches the vector index for maintenance.
func (j *MemoryJobs) SetVectorIndex(vi *VectorIndex) {
	j.vectorIndex = vi
}

// SetConsumer attaches the COLD-path consumer so the job loop actually
// drains cold_events (redact/classify/embed/upsert), not just reports on its
// backlog.
func (j *MemoryJobs) SetConsumer(c *Consumer) {
	j.consumer = c
}

// SetNotifier attaches the cross-instance Redis notifier. Nil is valid; it
// just means this instance won't wake early on a sibling's enqueue.
func (j *MemoryJobs) SetNotifier(n *Notifier) {
	j.notifier = n
}

// Start launches the cron scheduler and the Redis-notified drain loop.
func (j *MemoryJobs) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return
	}

	j.cron = cron.New()
	spec := fmt.Sprintf("@every %s", j.config.Interval.String())
	if _, err := j.cron.AddFunc(spec, j.runScheduledTick); err != nil {
		j.logger.Error("memory jobs cron spec rejected", "spec", spec, "error", err.Error())
		return
	}
	j.cron.Start()

	if j.notifier != nil {
		ctx, cancel := context.WithCancel(context.Background())
		j.readyCh = j.notifier.Subscribe(ctx)
		go j.watchReadySignals(ctx, cancel)
	}

	j.running = true
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		j.runAllJobs(ctx)
	}()
	j.logger.Info("memory jobs started", "interval", j.config.Interval.String())
}

// watchReadySignals drains promptly whenever a sibling instance publishes a
// ready signal, instead of waiting for the next cron tick.
func (j *MemoryJobs) watchReadySignals(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		select {
		case <-j.stopCh:
			return
		case _, ok := <-j.readyCh:
			if !ok {
				return
			}
			if j.consumer == nil {
				continue
			}
			drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
			if _, err := j.consumer.Drain(drainCtx, j.config.ColdQueueRetries*10); err != nil {
				j.logger.Error("notified cold drain failed", "error", err.Error())
			}
			drainCancel()
		}
	}
}

func (j *MemoryJobs) runScheduledTick() {
	jobCtx, jobCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer jobCancel()
	j.runAllJobs(jobCtx)
}

// Stop cleanly shuts down the background jobs.
func (j *MemoryJobs) Stop() {
	j.once.Do(func() {
		j.mu.Lock()
		defer j.mu.Unlock()

		if !j.running {
			return
		}

		if j.cron != nil {
			<-j.cron.Stop().Done()
		}
		close(j.stopCh)
		j.running = false
		j.logger.Info("memory jobs stopped")
	})
}

// RunNow executes all maintenance jobs immediately (useful for testing).
func (j *MemoryJobs) RunNow(ctx context.Context) error {
	j.runAllJobs(ctx)
	return nil
}

// runAllJobs executes all maintenance tasks. Errors are logged but don't
// stop subsequent jobs.
func (j *MemoryJobs) runAllJobs(ctx context.Context) {
	j.logger.Info("running memory maintenance jobs")

	if err := j.runRapportDecay(ctx); err != nil {
		j.logger.Error("rapport decay job failed", "error", err.Error())
	}

	if err := j.runColdQueueRetry(ctx); err != nil {
		j.logger.Error("cold queue retry job failed", "error", err.Error())
	}

	if err := j.runVectorIndexMaintenance(ctx); err != nil {
		j.logger.Error("vector index job failed", "error", err.Error())
	}

	j.logger.Info("memory maintenance jobs complete")
}

// runRapportDecay applies the configured daily decay to every user's
// rapport score.
func (j *MemoryJobs) runRapportDecay(ctx context.Context) error {
	if j.rapport == nil {
		return nil
	}

	updated, err := j.rapport.DecayAll(ctx, j.config.RapportDayDecay)
	if err != nil {
		return fmt.Errorf("rapport decay: %w", err)
	}

	j.logger.Info("rapport decay complete", "users_updated", updated)
	return nil
}

// runColdQueueRetry drains pending cold_events through the consumer (a
// failed event stays pending and is claimed again until the consumer marks
// it dead), then logs how many remain pending with fewer than
// ColdQueueRetries attempts.
func (j *MemoryJobs) runColdQueueRetry(ctx context.Context) error {
	if j.consumer != nil {
		committed, err := j.consumer.Drain(ctx, j.config.ColdQueueRetries*10)
		if err != nil {
			return fmt.Errorf("cold queue drain: %w", err)
		}
		j.logger.Info("cold queue drain complete", "committed", committed)
	}

	if j.cold == nil {
		return nil
	}

	pending, err := j.cold.RetryPending(ctx, j.config.ColdQueueRetries)
	if err != nil {
		return fmt.Errorf("cold queue retry: %w", err)
	}

	j.logger.Info("cold queue retry complete", "pending", pending)
	return nil
}

// runVectorIndexMaintenance rebuilds or reports on the vector index.
func (j *MemoryJobs) runVectorIndexMaintenance(ctx context.Context) error {
	if j.vectorIndex == nil {
		return nil
	}

	if j.config.RebuildVectorIndex {
		if err := j.vectorIndex.RebuildIndex(ctx); err != nil {
			return fmt.Errorf("rebuild vector index: %w", err)
		}
		j.logger.Info("vector index rebuilt")
		return nil
	}

	stats, err := j.vectorIndex.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get vector index stats: %w", err)
	}

	j.logger.Info("vector index stats", "indexed", stats["total_indexed"], "buckets", stats["unique_buckets"])
	return nil
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/config"
	"github.com/stemsi/exstem-authoring/internal/service"
)

// BulkExecutor runs one queued bulk job.
type BulkExecutor interface {
	Execute(ctx context.Context, job service.BulkJob) error
}

// BulkWorker consumes bulk_create_queue one job at a time, so runs never
// overlap.
type BulkWorker struct {
	rdb  *redis.Client
	exec BulkExecutor
	log  zerolog.Logger
	done chan struct{}
}

// NewBulkWorker creates a new BulkWorker.
func NewBulkWorker(rdb *redis.Client, exec BulkExecutor, log zerolog.Logger) *BulkWorker {
	return &BulkWorker{
		rdb:  rdb,
		exec: exec,
		log:  log.With().Str("component", "bulk_worker").Logger(),
		done: make(chan struct{}),
	}
}

// Start begins the worker loop. Call in a goroutine. Jobs still queued at
// shutdown stay in Redis for the next start.
func (w *BulkWorker) Start(ctx context.Context) {
	defer close(w.done)
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

// Wait blocks until Start has returned or ctx expires.
func (w *BulkWorker) Wait(ctx context.Context) {
	select {
	case <-w.done:
	case <-ctx.Done():
		w.log.Warn().Msg("Worker did not stop in time")
	}
}

func (w *BulkWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.BulkCreateQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(time.Second)
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var job service.BulkJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	// A popped job runs to the end even during shutdown. Rows already
	// created cannot be retried safely, so failed jobs are not requeued.
	start := time.Now()
	if err := w.exec.Execute(context.WithoutCancel(ctx), job); err != nil {
		w.log.Error().Err(err).Str("run_id", job.RunID).Msg("Bulk run error")
		return
	}
	w.log.Debug().Str("run_id", job.RunID).Dur("took", time.Since(start)).Msg("Bulk run processed")
}

// Package worker runs the background export pipeline: export jobs are
// persisted in SQLite, queued through a Redis list when one is available,
// and retried with exponential backoff.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coophours/internal/domain"
	"coophours/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SnapshotWriter renders one equipment ledger to a file under dir.
type SnapshotWriter interface {
	SaveToDir(ctx context.Context, equipmentID int64, dir string) (string, error)
}

// ExportWorker drains export jobs and writes workbook snapshots. The Redis
// queue is an accelerator: jobs survive in the database either way, and the
// polling loop picks up whatever the queue missed.
type ExportWorker struct {
	repo          domain.Repository
	snapshots     SnapshotWriter
	redis         *redis.Client
	exportDir     string
	retryPolicy   RetryPolicy
	queue         chan models.ExportJob
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewExportWorker(repo domain.Repository, snapshots SnapshotWriter, redisClient *redis.Client, exportDir string, retry RetryPolicy, logger *zerolog.Logger) *ExportWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &ExportWorker{
		repo:          repo,
		snapshots:     snapshots,
		redis:         redisClient,
		exportDir:     exportDir,
		retryPolicy:   retry,
		queue:         make(chan models.ExportJob, models.ExportQueueSize),
		redisQueueKey: "exports:queue",
		deadLetterKey: "exports:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// Enqueue persists the job and schedules it via Redis or the in-memory
// queue. The job row is the source of truth; queue loss only delays it.
func (w *ExportWorker) Enqueue(ctx context.Context, equipmentID int64, requestedBy string) (*models.ExportJob, error) {
	if equipmentID == 0 {
		return nil, errors.New("equipment id is required")
	}

	job := &models.ExportJob{
		EquipmentID: equipmentID,
		RequestedBy: requestedBy,
		Status:      models.ExportStatusPending,
	}
	if err := w.repo.CreateExportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist export job: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, *job); err != nil {
			w.logger.Warn().Err(err).Int64("job_id", job.ID).Msg("redis push failed, using memory queue")
		} else {
			return job, nil
		}
	}

	select {
	case w.queue <- *job:
	default:
		w.logger.Warn().Int64("job_id", job.ID).Msg("memory queue full, job left to polling")
	}
	return job, nil
}

// Start runs the drain loop until ctx is canceled.
func (w *ExportWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("export worker started")
	defer w.logger.Info().Msg("export worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if job, ok := w.tryLocalQueue(); ok {
			w.processJob(ctx, &job)
			continue
		}

		if job, ok := w.tryRedis(ctx); ok {
			w.processJob(ctx, &job)
			continue
		}

		jobs, err := w.repo.GetPendingExportJobs(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("failed to fetch pending export jobs")
			w.sleep(ctx)
			continue
		}

		processed := 0
		for _, job := range jobs {
			if !w.dueForRetry(job) {
				continue
			}
			w.processJob(ctx, job)
			processed++
		}
		if processed == 0 {
			w.sleep(ctx)
		}
	}
}

func (w *ExportWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}

func (w *ExportWorker) tryLocalQueue() (models.ExportJob, bool) {
	select {
	case job := <-w.queue:
		return job, true
	default:
		return models.ExportJob{}, false
	}
}

func (w *ExportWorker) tryRedis(ctx context.Context) (models.ExportJob, bool) {
	if w.redis == nil {
		return models.ExportJob{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			w.logger.Error().Err(err).Msg("redis BRPOP error")
		}
		return models.ExportJob{}, false
	}
	if len(res) != 2 {
		return models.ExportJob{}, false
	}
	var job models.ExportJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		w.logger.Error().Err(err).Msg("failed to decode queued export job")
		return models.ExportJob{}, false
	}
	return job, true
}

// dueForRetry holds a failed job back until its backoff window has passed.
func (w *ExportWorker) dueForRetry(job *models.ExportJob) bool {
	if job.Attempts == 0 {
		return true
	}
	return time.Since(job.UpdatedAt) >= w.retryPolicy.NextDelay(job.Attempts)
}

func (w *ExportWorker) processJob(ctx context.Context, job *models.ExportJob) {
	path, err := w.snapshots.SaveToDir(ctx, job.EquipmentID, w.exportDir)
	if err != nil {
		w.retryOrFail(ctx, job, err)
		return
	}

	if err := w.repo.UpdateExportJobStatus(ctx, job.ID, models.ExportStatusDone, "", job.Attempts); err != nil {
		w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to mark export job done")
		return
	}
	w.logger.Info().Int64("job_id", job.ID).Str("file_path", path).Msg("export job completed")
}

func (w *ExportWorker) retryOrFail(ctx context.Context, job *models.ExportJob, cause error) {
	attempts := job.Attempts + 1
	if attempts >= w.retryPolicy.MaxRetries {
		if err := w.repo.UpdateExportJobStatus(ctx, job.ID, models.ExportStatusError, cause.Error(), attempts); err != nil {
			w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to mark export job failed")
		}
		w.pushDeadLetter(ctx, job)
		return
	}

	if err := w.repo.UpdateExportJobStatus(ctx, job.ID, models.ExportStatusPending, cause.Error(), attempts); err != nil {
		w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to record export job retry")
	}
}

func (w *ExportWorker) pushRedis(ctx context.Context, job models.ExportJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *ExportWorker) pushDeadLetter(ctx context.Context, job *models.ExportJob) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to encode dead-letter job")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("job_id", job.ID).Msg("failed to push dead-letter job")
	}
}

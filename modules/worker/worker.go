package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"clonesome-server/modules/common/cancel"
	"clonesome-server/modules/common/config"
	"clonesome-server/modules/common/metrics"
	"clonesome-server/modules/common/model"
	generateimage "clonesome-server/modules/generate-image"
)

const (
	dequeueTimeout      = time.Second
	retryBackoff        = 5 * time.Second
	defaultDrainTimeout = 25 * time.Second
)

// HistoryRecorder - terminal 상태 job 기록 (Supabase)
type HistoryRecorder interface {
	RecordGeneration(ctx context.Context, job *model.GenerationJob) error
}

// Worker - jobs:generate 큐를 소비해 이미지를 생성한다
type Worker struct {
	store     *Store
	generator generateimage.Generator
	recorder  HistoryRecorder
	cfg       config.WorkerConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewWorker - recorder 는 nil 이어도 된다
func NewWorker(store *Store, generator generateimage.Generator, recorder HistoryRecorder, cfg config.WorkerConfig, logger *zap.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.CancelCheckInterval <= 0 {
		cfg.CancelCheckInterval = time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	return &Worker{
		store:     store,
		generator: generator,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run - ctx 가 끝날 때까지 큐 감시.
// 종료 시 진행 중인 job 은 DrainTimeout 동안 계속 실행되고, 그 안에 끝나지 않으면
// 중단되어 큐에 다시 들어간다.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("[Worker] watching queue", zap.String("queue", QueueKey), zap.Int("concurrency", w.cfg.Concurrency))

	// job 은 ctx 취소와 분리해서 실행한다
	jobCtx, stopJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer stopJobs()

	sem := semaphore.NewWeighted(int64(w.cfg.Concurrency))
	defer w.drain(sem, stopJobs)

	for {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil
		}

		jobID, err := w.store.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			sem.Release(1)
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("[Worker] BRPOP failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryBackoff):
			}
			continue
		}
		if jobID == "" {
			sem.Release(1)
			continue
		}

		w.logger.Info("[Worker] received job", zap.String("job_id", jobID))
		go func() {
			defer sem.Release(1)
			w.ProcessJob(jobCtx, jobID)
		}()
	}
}

// drain - 진행 중인 job 을 DrainTimeout 까지 기다리고, 남은 job 은 중단시킨 뒤 끝날 때까지 기다린다
func (w *Worker) drain(sem *semaphore.Weighted, stopJobs context.CancelFunc) {
	drained := make(chan struct{})
	go func() {
		_ = sem.Acquire(context.Background(), int64(w.cfg.Concurrency))
		close(drained)
	}()

	timer := time.NewTimer(w.cfg.DrainTimeout)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		w.logger.Warn("[Worker] drain timeout, interrupting in-flight jobs", zap.Duration("timeout", w.cfg.DrainTimeout))
		stopJobs()
		<-drained
	}
	w.logger.Info("[Worker] stopped")
}

// ProcessJob - job 하나 처리. 결과는 Redis 에 기록되고 이벤트로 발행된다.
func (w *Worker) ProcessJob(ctx context.Context, jobID string) {
	log := w.logger.With(zap.String("job_id", jobID))
	// 종료 중에도 최종 상태는 기록한다
	writeCtx := context.WithoutCancel(ctx)

	job, err := w.store.Get(writeCtx, jobID)
	if err != nil {
		log.Error("[Worker] failed to load job", zap.Error(err))
		return
	}
	if model.IsTerminalStatus(job.Status) {
		log.Warn("[Worker] job already finished, skipping", zap.String("status", job.Status))
		return
	}

	if cancelled, err := w.store.IsJobCancelled(writeCtx, jobID); err == nil && cancelled {
		log.Info("[Worker] job cancelled before start")
		w.finish(writeCtx, job, model.StatusUserCancelled, log)
		return
	}

	job.SetStatus(model.StatusProcessing, w.now())
	w.update(writeCtx, job, log)

	jobCtx, stop := cancel.Watch(ctx, w.store, jobID, w.cfg.CancelCheckInterval, w.logger)
	result, genErr := w.generator.Generate(jobCtx, generateimage.GenerationRequest{
		Prompt: job.Prompt,
		Style:  generateimage.Style(job.Style),
		Width:  job.Width,
		Height: job.Height,
	})
	userCancelled := cancel.IsUserCancelled(jobCtx)
	interrupted := ctx.Err() != nil
	stop()

	switch {
	case genErr == nil:
		job.ImageURL = result.ImageURL
		w.finish(writeCtx, job, model.StatusCompleted, log)
	case userCancelled:
		w.finish(writeCtx, job, model.StatusUserCancelled, log)
	case interrupted && isCancelled(genErr):
		w.requeue(writeCtx, job, log)
	default:
		job.ErrorCode = generateimage.ErrorCode(genErr)
		job.ErrorMessage = generateimage.ErrorReason(genErr)
		w.finish(writeCtx, job, model.StatusFailed, log)
	}
}

func isCancelled(err error) bool {
	var ce *generateimage.CancelledError
	return errors.As(err, &ce)
}

// requeue - 종료로 중단된 job 을 pending 으로 되돌리고 큐에 다시 넣는다
func (w *Worker) requeue(ctx context.Context, job *model.GenerationJob, log *zap.Logger) {
	job.StartedAt = 0
	job.SetStatus(model.StatusPending, w.now())
	w.update(ctx, job, log)

	if _, err := w.store.Enqueue(ctx, job.JobID); err != nil {
		log.Error("[Worker] failed to requeue interrupted job", zap.Error(err))
		return
	}
	metrics.QueueJobsTotal.WithLabelValues("requeued").Inc()
	log.Warn("[Worker] job interrupted by shutdown, requeued")
}

func (w *Worker) finish(ctx context.Context, job *model.GenerationJob, status string, log *zap.Logger) {
	job.SetStatus(status, w.now())
	w.update(ctx, job, log)
	metrics.QueueJobsTotal.WithLabelValues(status).Inc()

	if err := w.store.ClearCancelled(ctx, job.JobID); err != nil {
		log.Warn("[Worker] failed to clear cancel flag", zap.Error(err))
	}

	if w.recorder != nil {
		if err := w.recorder.RecordGeneration(ctx, job); err != nil {
			log.Warn("[Worker] failed to record generation history", zap.Error(err))
		}
	}

	log.Info("[Worker] job finished",
		zap.String("status", status),
		zap.String("image_url", job.ImageURL),
		zap.String("error_code", job.ErrorCode))
}

func (w *Worker) update(ctx context.Context, job *model.GenerationJob, log *zap.Logger) {
	if err := w.store.Save(ctx, job); err != nil {
		log.Error("[Worker] failed to save job", zap.Error(err))
		return
	}
	if err := w.store.Publish(ctx, job); err != nil {
		log.Warn("[Worker] failed to publish job event", zap.Error(err))
	}
}

package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/internal/permits/ingest"
	"permit_ingest_backend/platform/apperr"
	"permit_ingest_backend/platform/config"
	"permit_ingest_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// IngestRunner is the part of the ingest runner the worker drives.
type IngestRunner interface {
	Run(ctx context.Context, source domain.Source, dryRun bool) (domain.BatchSummary, error)
	RunAll(ctx context.Context, dryRun bool) []domain.BatchSummary
}

type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	runner    IngestRunner
	log       *logger.Logger
}

// NewWorker builds the asynq server that executes ingest tasks and the
// periodic scheduler that enqueues them from INGEST_SCHEDULE.
func NewWorker(cfg config.SchedulerConfig, runner IngestRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := queueName(cfg)
	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 4
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	periodic := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Error("periodic ingest enqueue failed", "error", err)
				return
			}
			log.Debug("periodic ingest enqueued", "taskId", info.ID)
		},
	})
	if err := registerSchedule(periodic, cfg.GetIngestSchedule(), queue, runTimeout(cfg), log); err != nil {
		return nil, err
	}

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		scheduler: periodic,
		mux:       mux,
		runner:    runner,
		log:       log,
	}
	mux.HandleFunc(TaskPermitsIngest, w.handleIngest)

	return w, nil
}

// periodicRegistrar is the part of asynq.Scheduler used to register entries.
type periodicRegistrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

func registerSchedule(s periodicRegistrar, schedule map[string]string, queue string, timeout time.Duration, log *logger.Logger) error {
	sources := make([]string, 0, len(schedule))
	for source := range schedule {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	for _, source := range sources {
		task, err := NewIngestTask(IngestPayload{Source: source})
		if err != nil {
			return err
		}
		spec := schedule[source]
		entryID, err := s.Register(spec, task, ingestOptions(queue, timeout)...)
		if err != nil {
			return fmt.Errorf("schedule %s (%q): %w", source, spec, err)
		}
		log.Info("ingest schedule registered", "source", source, "spec", spec, "entryId", entryID)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	if err := w.scheduler.Start(); err != nil {
		w.log.Error("periodic scheduler failed to start", "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		w.scheduler.Shutdown()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleIngest runs the task's source. A fetch failure of a single source
// fails the task so asynq retries it; "all" runs never fail as a whole.
func (w *Worker) handleIngest(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseIngestPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if payload.Source == ingest.AllSources {
		for _, summary := range w.runner.RunAll(ctx, payload.DryRun) {
			if summary.Failed() {
				w.log.Warn("scheduled source run failed", "source", summary.Source, "fetchError", summary.FetchError, "aborted", summary.Aborted)
			}
		}
		return nil
	}

	if !domain.IsKnownSource(payload.Source) {
		return fmt.Errorf("unknown source %q: %w", payload.Source, asynq.SkipRetry)
	}

	summary, err := w.runner.Run(ctx, domain.Source(payload.Source), payload.DryRun)
	if apperr.Is(err, apperr.KindValidation) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	if summary.FetchError != "" {
		return fmt.Errorf("source %s: %s", payload.Source, summary.FetchError)
	}
	return nil
}

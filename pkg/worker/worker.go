package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/hunt2035/SoundSync-sub002/pkg/config"
	"github.com/hunt2035/SoundSync-sub002/pkg/importer"
	"github.com/hunt2035/SoundSync-sub002/pkg/joblogs"
	"github.com/hunt2035/SoundSync-sub002/pkg/jobs"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/uptrace/bun"
)

var processID = randStringBytes(8)

type processFunc func(ctx context.Context, job *models.Job, jobLog *joblogs.JobLogger) error

// Worker runs queued jobs in the background. One goroutine polls the
// database for jobs and claims them; WorkerProcesses goroutines run them.
type Worker struct {
	config *config.Config
	log    logger.Logger

	processFuncs map[string]processFunc

	jobService    *jobs.Service
	jobLogService *joblogs.Service
	pipeline      *importer.Pipeline

	// ctx is cancelled on shutdown to stop running imports.
	ctx    context.Context
	cancel context.CancelFunc

	queue          chan *models.Job
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneProcessing chan struct{}
}

func New(cfg *config.Config, db *bun.DB, pipeline *importer.Pipeline) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		config: cfg,
		log:    logger.New(),

		jobService:    jobs.NewService(db),
		jobLogService: joblogs.NewService(db),
		pipeline:      pipeline,

		ctx:    ctx,
		cancel: cancel,

		queue:          make(chan *models.Job, cfg.WorkerProcesses),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneProcessing: make(chan struct{}, cfg.WorkerProcesses),
	}

	w.processFuncs = map[string]processFunc{
		models.JobTypeImport: w.ProcessImportJob,
	}

	return w
}

func (w *Worker) Start() {
	go w.fetchJobs()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processJobs()
	}
}

func (w *Worker) fetchJobs() {
	duration := w.config.WorkerPollInterval
	timer := time.NewTimer(duration)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more jobs to the queue.
			timer.Stop()
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			if !w.fetchOnce() {
				w.doneFetching <- struct{}{}
				return
			}
			timer.Reset(duration)
		}
	}
}

// fetchOnce claims up to one job per processor and queues them. It reports
// false when shutdown started while it was waiting on the queue.
func (w *Worker) fetchOnce() bool {
	ctx := context.Background()
	j, err := w.jobService.ListJobs(ctx, jobs.ListJobsOptions{
		Limit:              pointerutil.Int(w.config.WorkerProcesses),
		Statuses:           []string{models.JobStatusPending, models.JobStatusInProgress},
		ProcessIDToExclude: &processID,
	})
	if err != nil {
		w.log.Err(err).Error("list jobs error")
		return true
	}

	for _, job := range j {
		claimed, err := w.jobService.ClaimJob(ctx, job, processID)
		if err != nil {
			w.log.Err(err).Error("claim job error", logger.Data{"job_id": job.ID})
			continue
		}
		if !claimed {
			continue
		}
		select {
		case w.queue <- job:
		case <-w.shutdown:
			return false
		}
	}
	return true
}

func (w *Worker) processJobs() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case job := <-w.queue:
			w.process(job)
		}
	}
}

// process runs one claimed job to a terminal status. A job interrupted by
// shutdown goes back to pending so the next process picks it up again.
func (w *Worker) process(job *models.Job) {
	// Prep the context to be passed down to the process function.
	id, err := uuid.NewRandom()
	if err != nil {
		w.log.Err(err).Error("new uuid error")
		return
	}
	log := w.log.ID(id.String()).Root(logger.Data{"job_id": job.ID, "type": job.Type, "process_id": processID})
	ctx := log.WithContext(w.ctx)
	// Bookkeeping writes must still land after ctx is cancelled.
	dbCtx := log.WithContext(context.Background())
	jobLog := w.jobLogService.NewJobLogger(dbCtx, job.ID, log)

	fn, ok := w.processFuncs[job.Type]
	if !ok {
		jobLog.Error("can't find process function for type", nil, nil)
		job.Status = models.JobStatusFailed
		w.updateJob(dbCtx, job, "status")
		return
	}

	err = fn(ctx, job, jobLog)
	switch {
	case err == nil:
		job.Status = models.JobStatusCompleted
	case w.ctx.Err() != nil && errors.Is(err, context.Canceled):
		jobLog.Info("job interrupted by shutdown, requeueing", nil)
		job.Status = models.JobStatusPending
		job.ProcessID = nil
		job.Progress = 0
		job.Step = nil
		w.updateJob(dbCtx, job, "status", "process_id", "progress", "step")
		return
	default:
		job.Status = models.JobStatusFailed
	}

	if err := job.MarshalData(); err != nil {
		log.Err(err).Error("marshal job data error")
	}
	w.updateJob(dbCtx, job, "status", "data", "progress", "step")
}

func (w *Worker) updateJob(ctx context.Context, job *models.Job, columns ...string) {
	err := w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
		Columns: columns,
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).Error("update job error")
	}
}

// Shutdown stops fetching, cancels running jobs and waits for every
// processor to return.
func (w *Worker) Shutdown() {
	close(w.shutdown)
	w.cancel()

	<-w.doneFetching
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}

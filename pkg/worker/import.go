package worker

import (
	"context"

	"github.com/hunt2035/SoundSync-sub002/pkg/importer"
	"github.com/hunt2035/SoundSync-sub002/pkg/joblogs"
	"github.com/hunt2035/SoundSync-sub002/pkg/jobs"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// minProgressDelta is the smallest aggregate change written to the job row
// within a step. Step changes and completion are always written.
const minProgressDelta = 5

// ProcessImportJob runs the import pipeline for job. The outcome is written
// into the job's data: the new book's ID, or the failure message and step.
func (w *Worker) ProcessImportJob(ctx context.Context, job *models.Job, jobLog *joblogs.JobLogger) error {
	data, ok := job.DataParsed.(*models.JobImportData)
	if !ok {
		return errors.Errorf("unexpected data for import job: %T", job.DataParsed)
	}

	jobLog.Info("import started", logger.Data{"source": data.Source, "file_name": data.FileName})

	rec := newProgressRecorder(context.WithoutCancel(ctx), w.jobService, job, jobLog)
	book, err := w.pipeline.Run(ctx, importer.Request{
		Source:   data.Source,
		FileName: data.FileName,
	}, rec.observe)
	rec.flush()

	if err != nil {
		data.Error = err.Error()
		var failure *importer.Failure
		if errors.As(err, &failure) {
			data.Step = failure.StepName()
		}
		if importer.IsDuplicate(err) {
			jobLog.Warn("import skipped", logger.Data{"reason": data.Error})
		} else {
			jobLog.Error("import failed", err, logger.Data{"step": data.Step})
		}
		return err
	}

	data.BookID = &book.ID
	data.Error = ""
	data.Step = ""
	jobLog.Info("import completed", logger.Data{
		"book_id": book.ID,
		"title":   book.Title,
		"format":  book.Format,
	})
	return nil
}

// progressRecorder persists pipeline progress onto the job row. Values go
// through an importer.Tracker so the stored progress never decreases, and
// small moves within a step are coalesced.
type progressRecorder struct {
	ctx        context.Context
	jobService *jobs.Service
	job        *models.Job
	jobLog     *joblogs.JobLogger
	tracker    *importer.Tracker

	persisted int
	step      string
	dirty     bool
	writes    int
}

func newProgressRecorder(ctx context.Context, jobService *jobs.Service, job *models.Job, jobLog *joblogs.JobLogger) *progressRecorder {
	return &progressRecorder{
		ctx:        ctx,
		jobService: jobService,
		job:        job,
		jobLog:     jobLog,
		tracker:    importer.NewTracker(),
		persisted:  job.Progress,
	}
}

func (r *progressRecorder) observe(p importer.Progress) {
	overall, advanced := r.tracker.Observe(p)
	if !advanced {
		return
	}

	step := p.Step.String()
	stepChanged := step != r.step
	r.job.Progress = overall
	r.job.Step = &step
	r.dirty = true

	if stepChanged {
		r.jobLog.SetStep(step)
		r.jobLog.Info("step started", logger.Data{"step": step, "file_name": p.FileName})
		r.step = step
	}
	if stepChanged || overall >= 100 || overall-r.persisted >= minProgressDelta {
		r.write()
	}
}

// flush writes the last observed value if it was coalesced away.
func (r *progressRecorder) flush() {
	if r.dirty {
		r.write()
	}
}

func (r *progressRecorder) write() {
	err := r.jobService.UpdateJob(r.ctx, r.job, jobs.UpdateJobOptions{
		Columns: []string{"progress", "step"},
	})
	if err != nil {
		logger.FromContext(r.ctx).Err(err).Warn("failed to persist job progress")
		return
	}
	r.persisted = r.job.Progress
	r.dirty = false
	r.writes++
}

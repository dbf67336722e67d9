package jobs

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/hunt2035/SoundSync-sub002/pkg/migrations"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createImportJob(t *testing.T, svc *Service, source, status string) *models.Job {
	t.Helper()
	job := &models.Job{
		Type:       models.JobTypeImport,
		Status:     status,
		DataParsed: &models.JobImportData{Source: source},
	}
	require.NoError(t, svc.CreateJob(context.Background(), job))
	return job
}

func TestCreateAndRetrieveJob(t *testing.T) {
	t.Parallel()
	svc := NewService(newTestDB(t))
	ctx := context.Background()

	job := &models.Job{
		Type:       models.JobTypeImport,
		DataParsed: &models.JobImportData{Source: "/srv/inbox/a.txt", FileName: "a.txt"},
	}
	require.NoError(t, svc.CreateJob(ctx, job))
	assert.NotZero(t, job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)

	got, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &job.ID})
	require.NoError(t, err)
	data, ok := got.DataParsed.(*models.JobImportData)
	require.True(t, ok)
	assert.Equal(t, "/srv/inbox/a.txt", data.Source)
	assert.Equal(t, "a.txt", data.FileName)
	assert.Equal(t, 0, got.Progress)

	_, err = svc.RetrieveJob(ctx, RetrieveJobOptions{ID: pointerutil.Int(9999)})
	assert.True(t, errcodes.HasCode(err, "not_found"))
}

func TestListJobs_Filters(t *testing.T) {
	t.Parallel()
	svc := NewService(newTestDB(t))
	ctx := context.Background()

	createImportJob(t, svc, "/a.txt", models.JobStatusCompleted)
	pending := createImportJob(t, svc, "/b.txt", models.JobStatusPending)
	running := createImportJob(t, svc, "/c.txt", models.JobStatusInProgress)
	running.ProcessID = pointerutil.String("proc1")
	require.NoError(t, svc.UpdateJob(ctx, running, UpdateJobOptions{Columns: []string{"process_id"}}))

	jobs, total, err := svc.ListJobsWithTotal(ctx, ListJobsOptions{
		Statuses: []string{models.JobStatusPending, models.JobStatusInProgress},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, jobs, 2)
	assert.Equal(t, pending.ID, jobs[0].ID)

	jobs, err = svc.ListJobs(ctx, ListJobsOptions{
		Statuses:           []string{models.JobStatusPending, models.JobStatusInProgress},
		ProcessIDToExclude: pointerutil.String("proc1"),
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, pending.ID, jobs[0].ID)

	jobs, total, err = svc.ListJobsWithTotal(ctx, ListJobsOptions{
		Limit: pointerutil.Int(1),
		Type:  pointerutil.String(models.JobTypeImport),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, jobs, 1)
}

func TestClaimJob(t *testing.T) {
	t.Parallel()
	svc := NewService(newTestDB(t))
	ctx := context.Background()

	job := createImportJob(t, svc, "/a.txt", models.JobStatusPending)

	claimed, err := svc.ClaimJob(ctx, job, "proc1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, models.JobStatusInProgress, job.Status)

	again, err := svc.ClaimJob(ctx, &models.Job{ID: job.ID}, "proc1")
	require.NoError(t, err)
	assert.False(t, again, "a process does not claim its own job twice")

	// A job left in progress by another process is taken over.
	takeover := &models.Job{ID: job.ID}
	claimed, err = svc.ClaimJob(ctx, takeover, "proc2")
	require.NoError(t, err)
	assert.True(t, claimed)

	got, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &job.ID})
	require.NoError(t, err)
	require.NotNil(t, got.ProcessID)
	assert.Equal(t, "proc2", *got.ProcessID)

	done := createImportJob(t, svc, "/b.txt", models.JobStatusFailed)
	claimed, err = svc.ClaimJob(ctx, done, "proc1")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRetryJob(t *testing.T) {
	t.Parallel()
	svc := NewService(newTestDB(t))
	ctx := context.Background()

	job := createImportJob(t, svc, "/a.txt", models.JobStatusFailed)
	job.Progress = 35
	job.Step = pointerutil.String("metadata_extraction")
	job.ProcessID = pointerutil.String("old-process")
	job.DataParsed = &models.JobImportData{Source: "/a.txt", Error: "boom", Step: "metadata_extraction"}
	require.NoError(t, job.MarshalData())
	require.NoError(t, svc.UpdateJob(ctx, job, UpdateJobOptions{Columns: []string{"progress", "step", "process_id", "data"}}))

	retried, err := svc.RetryJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, retried.Status)

	got, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &job.ID})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.Nil(t, got.Step)
	assert.Nil(t, got.ProcessID)
	data, ok := got.DataParsed.(*models.JobImportData)
	require.True(t, ok)
	assert.Equal(t, "/a.txt", data.Source)
	assert.Empty(t, data.Error)
	assert.Empty(t, data.Step)

	// A pending job is not failed any more.
	_, err = svc.RetryJob(ctx, job.ID)
	assert.True(t, errcodes.HasCode(err, "conflict"))

	done := createImportJob(t, svc, "/b.txt", models.JobStatusCompleted)
	_, err = svc.RetryJob(ctx, done.ID)
	assert.True(t, errcodes.HasCode(err, "conflict"))

	_, err = svc.RetryJob(ctx, 9999)
	assert.True(t, errcodes.HasCode(err, "not_found"))
}

func TestUpdateJob(t *testing.T) {
	t.Parallel()
	svc := NewService(newTestDB(t))
	ctx := context.Background()

	job := createImportJob(t, svc, "/a.txt", models.JobStatusInProgress)
	job.Progress = 40
	job.Step = pointerutil.String("metadata_extraction")
	require.NoError(t, svc.UpdateJob(ctx, job, UpdateJobOptions{Columns: []string{"progress", "step"}}))

	got, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &job.ID})
	require.NoError(t, err)
	assert.Equal(t, 40, got.Progress)
	require.NotNil(t, got.Step)
	assert.Equal(t, "metadata_extraction", *got.Step)

	require.NoError(t, svc.UpdateJob(ctx, job, UpdateJobOptions{}))

	err = svc.UpdateJob(ctx, &models.Job{ID: 9999}, UpdateJobOptions{Columns: []string{"progress"}})
	assert.True(t, errcodes.HasCode(err, "not_found"))
}

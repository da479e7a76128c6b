package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/artifact"
	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/cuongbtq/subtitle-pipeline/internal/queue"
	"github.com/cuongbtq/subtitle-pipeline/internal/storage"
	"github.com/cuongbtq/subtitle-pipeline/shared/database"
	"github.com/cuongbtq/subtitle-pipeline/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, queue.Task) error {
	return errors.New("broker unreachable")
}

type fixture struct {
	svc    *Service
	store  *storage.Storage
	queue  *queue.Memory
	layout *artifact.Layout
	clock  time.Time
}

func newFixture(t *testing.T, publisher queue.Publisher) *fixture {
	t.Helper()

	root := t.TempDir()
	client, err := database.NewClient(&database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(root, "jobs.db"),
	}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := storage.NewStorage(client.GetDB(), logger.Discard())
	require.NoError(t, store.Migrate(context.Background()))

	f := &fixture{
		store:  store,
		queue:  queue.NewMemory(16),
		layout: artifact.NewLayout(filepath.Join(root, "uploads"), filepath.Join(root, "results")),
		clock:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if publisher == nil {
		publisher = f.queue
	}
	f.svc = NewService(store, publisher, f.layout, Config{}, logger.Discard())
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) upload(t *testing.T, filename string) *domain.Job {
	t.Helper()
	job, err := f.svc.Upload(context.Background(), filename, strings.NewReader("media"))
	require.NoError(t, err)
	return job
}

func (f *fixture) nextTask(t *testing.T) queue.Task {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	deliveries, err := f.queue.Consume(ctx, "test")
	require.NoError(t, err)
	d, ok := <-deliveries
	require.True(t, ok, "no task published")
	require.NoError(t, d.Ack())

	var task queue.Task
	require.NoError(t, json.Unmarshal(d.Body(), &task))
	return task
}

func eventLabels(t *testing.T, f *fixture, jobID string) []string {
	t.Helper()
	events, err := f.svc.Events(context.Background(), jobID, 0)
	require.NoError(t, err)
	labels := make([]string, len(events))
	for i, e := range events {
		labels[i] = e.Event
	}
	return labels
}

func TestUpload(t *testing.T) {
	f := newFixture(t, nil)

	job := f.upload(t, "Lecture.MP4")
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, domain.InputKind("mp4"), job.InputType)
	assert.Equal(t, f.layout.UploadPath(job.ID, "Lecture.MP4"), job.InputPath)

	data, err := os.ReadFile(job.InputPath)
	require.NoError(t, err)
	assert.Equal(t, "media", string(data))
	assert.Equal(t, []string{"pending"}, eventLabels(t, f, job.ID))
}

func TestUpload_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		filename string
	}{
		{name: "extension not allowed", filename: "song.mp3"},
		{name: "no extension", filename: "README"},
		{name: "empty name", filename: "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			_, err := f.svc.Upload(context.Background(), tt.filename, strings.NewReader("x"))
			assert.True(t, domain.IsValidation(err), "got %v", err)

			entries, _ := os.ReadDir(f.layout.UploadDir)
			assert.Empty(t, entries)
		})
	}
}

func TestCreate_UnsupportedKind(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Create(context.Background(), "doc.pdf", "/tmp/doc.pdf", "pdf")
	assert.True(t, domain.IsValidation(err))
}

func TestEnqueue(t *testing.T) {
	f := newFixture(t, nil)
	job := f.upload(t, "talk.mp4")

	queued, err := f.svc.Enqueue(context.Background(), job.ID, "subtitle", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, queued.Status)
	assert.Equal(t, domain.OutputSubtitle, queued.OutputType)
	assert.Equal(t, DefaultModel, queued.ModelName)

	task := f.nextTask(t)
	assert.Equal(t, queue.Task{JobID: job.ID, OutputType: "subtitle", ModelName: "whisper"}, task)
	assert.Equal(t, []string{"pending", "queued"}, eventLabels(t, f, job.ID))
}

func TestEnqueue_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	video := f.upload(t, "talk.mp4")
	audio := f.upload(t, "voice.wav")

	t.Run("unknown output type", func(t *testing.T) {
		_, err := f.svc.Enqueue(ctx, video.ID, "gif", "")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("missing job", func(t *testing.T) {
		_, err := f.svc.Enqueue(ctx, "00000000-0000-4000-8000-000000000000", "text", "")
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("video output from audio", func(t *testing.T) {
		_, err := f.svc.Enqueue(ctx, audio.ID, "embedded_video", "")
		assert.True(t, domain.IsValidation(err))

		got, err := f.svc.Get(ctx, audio.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, got.Status)
	})

	t.Run("already queued", func(t *testing.T) {
		_, err := f.svc.Enqueue(ctx, video.ID, "text", "dummy")
		require.NoError(t, err)

		_, err = f.svc.Enqueue(ctx, video.ID, "text", "dummy")
		assert.True(t, domain.IsConflict(err))
	})

	assert.Equal(t, 1, f.queue.Len())
}

func TestEnqueue_Concurrent(t *testing.T) {
	f := newFixture(t, nil)
	job := f.upload(t, "voice.wav")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Enqueue(context.Background(), job.ID, "text", "")
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case domain.IsConflict(err):
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, f.queue.Len())
	assert.Equal(t, []string{"pending", "queued"}, eventLabels(t, f, job.ID))
}

func TestEnqueue_PublishFailureLeavesJobQueued(t *testing.T) {
	f := newFixture(t, failingPublisher{})
	job := f.upload(t, "voice.wav")

	_, err := f.svc.Enqueue(context.Background(), job.ID, "text", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unreachable")

	got, err := f.svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, got.Status)
}

func TestEnqueue_PublishFailureIsLoggedWithJob(t *testing.T) {
	f := newFixture(t, failingPublisher{})
	output := &bytes.Buffer{}
	f.svc.logger = slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: slog.LevelError}))
	job := f.upload(t, "voice.wav")

	_, err := f.svc.Enqueue(context.Background(), job.ID, "subtitle", "whisper")
	require.Error(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, job.ID, entry["job_id"])
	assert.Equal(t, "QUEUED", entry["status"])
	assert.Equal(t, "subtitle", entry["output_type"])
	assert.Equal(t, "whisper", entry["model"])
	assert.Equal(t, "broker unreachable", entry["error"])
	assert.Contains(t, entry, "queued_at")
}

func TestLifecycle_Complete(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		result     domain.Result
		wantText   string
		wantOutput string
	}{
		{
			name:     "text keeps only the text",
			output:   "text",
			result:   domain.Result{Text: "hello", OutputPath: "/ignored"},
			wantText: "hello",
		},
		{
			name:       "subtitle keeps only the path",
			output:     "subtitle",
			result:     domain.Result{Text: "ignored", OutputPath: "/results/x.srt"},
			wantOutput: "/results/x.srt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, nil)
			job := f.upload(t, "voice.wav")

			_, err := f.svc.Enqueue(ctx, job.ID, tt.output, "")
			require.NoError(t, err)

			running, err := f.svc.Start(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusRunning, running.Status)

			f.advance(5 * time.Second)
			done, err := f.svc.Complete(ctx, job.ID, tt.result)
			require.NoError(t, err)

			assert.Equal(t, domain.StatusSucceeded, done.Status)
			assert.Equal(t, tt.wantText, done.ResultText)
			assert.Equal(t, tt.wantOutput, done.OutputPath)
			assert.Empty(t, done.Error)
			require.NotNil(t, done.DurationSeconds)
			assert.InDelta(t, 5.0, *done.DurationSeconds, 0.001)

			assert.Equal(t, []string{"pending", "queued", "running", "succeeded"}, eventLabels(t, f, job.ID))

			got, err := f.svc.Result(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, job.ID, got.ID)
		})
	}
}

func TestLifecycle_Fail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	job := f.upload(t, "voice.wav")

	_, err := f.svc.Enqueue(ctx, job.ID, "subtitle", "")
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, job.ID)
	require.NoError(t, err)

	failed, err := f.svc.Fail(ctx, job.ID, "  ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Equal(t, "unknown error", failed.Error)
	require.NotNil(t, failed.DurationSeconds)
	assert.GreaterOrEqual(t, *failed.DurationSeconds, 0.0)

	_, err = f.svc.Complete(ctx, job.ID, domain.Result{})
	assert.True(t, domain.IsConflict(err), "terminal jobs do not move")

	_, err = f.svc.Result(ctx, job.ID)
	assert.True(t, domain.IsConflict(err))

	view, err := f.svc.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, view.Status)
	assert.Equal(t, "unknown error", view.Error)
}

func TestStart_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	job := f.upload(t, "voice.wav")

	_, err := f.svc.Start(ctx, job.ID)
	assert.True(t, domain.IsConflict(err), "pending jobs cannot start")

	_, err = f.svc.Start(ctx, "00000000-0000-4000-8000-000000000000")
	assert.True(t, domain.IsNotFound(err))

	_, err = f.svc.Events(ctx, "00000000-0000-4000-8000-000000000000", 0)
	assert.True(t, domain.IsNotFound(err))
}

func TestListAndMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	for i := 0; i < 3; i++ {
		f.upload(t, "voice.wav")
		f.advance(time.Second)
	}

	jobs, err := f.svc.List(ctx, storage.JobFilter{PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	m, err := f.svc.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, m.TotalJobs)
	assert.Equal(t, 3, m.PendingTotal)
}

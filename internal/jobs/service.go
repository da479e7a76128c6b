package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/artifact"
	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/cuongbtq/subtitle-pipeline/internal/queue"
	"github.com/cuongbtq/subtitle-pipeline/internal/storage"
	"github.com/google/uuid"
)

// DefaultModel is used when a job is enqueued without a model name.
const DefaultModel = "whisper"

// DefaultAllowedExtensions are the upload extensions accepted out of the box.
var DefaultAllowedExtensions = []string{".mp4", ".wav"}

// Store is the persistence the service needs.
type Store interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	Transition(ctx context.Context, jobID string, from, to domain.Status, upd storage.Update) (*domain.Job, error)
	UpdateJobHeartbeat(ctx context.Context, jobID string, at time.Time) error
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error)
	ListEvents(ctx context.Context, jobID string, limit int) ([]domain.JobEvent, error)
	Metrics(ctx context.Context) (*domain.Metrics, error)
}

// Config tunes the service.
type Config struct {
	AllowedExtensions []string
	DefaultModel      string
}

// Service owns the job lifecycle. Every status change goes through a
// compare-and-set in the store, so concurrent callers cannot both win.
type Service struct {
	store        Store
	publisher    queue.Publisher
	layout       *artifact.Layout
	allowed      map[string]bool
	defaultModel string
	now          func() time.Time
	logger       *slog.Logger
}

// NewService creates a new job Service
func NewService(store Store, publisher queue.Publisher, layout *artifact.Layout, cfg Config, logger *slog.Logger) *Service {
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultAllowedExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}

	model := cfg.DefaultModel
	if model == "" {
		model = DefaultModel
	}

	return &Service{
		store:        store,
		publisher:    publisher,
		layout:       layout,
		allowed:      allowed,
		defaultModel: model,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
}

// Upload stores the input bytes and creates a PENDING job for them.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (*domain.Job, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, domain.NewValidationError("filename is required")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !s.allowed[ext] {
		return nil, domain.NewValidationError("unsupported file type %q", ext)
	}

	jobID := uuid.NewString()
	path, err := s.layout.SaveUpload(jobID, filename, r)
	if err != nil {
		return nil, err
	}

	job, err := s.create(ctx, jobID, filename, path, domain.InputKindFromFilename(filename))
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return job, nil
}

// Create records a PENDING job for an input already on disk.
func (s *Service) Create(ctx context.Context, filename, inputPath string, kind domain.InputKind) (*domain.Job, error) {
	return s.create(ctx, uuid.NewString(), filename, inputPath, kind)
}

func (s *Service) create(ctx context.Context, jobID, filename, inputPath string, kind domain.InputKind) (*domain.Job, error) {
	if !kind.IsSupported() {
		return nil, domain.NewValidationError("unsupported input type %q", kind)
	}

	now := s.now()
	job := &domain.Job{
		ID:        jobID,
		Filename:  filename,
		InputPath: inputPath,
		InputType: kind,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Enqueue moves a PENDING job to QUEUED and publishes its task. If publishing
// fails the job stays QUEUED and the error is returned to the caller.
func (s *Service) Enqueue(ctx context.Context, jobID, outputType, modelName string) (*domain.Job, error) {
	kind, err := domain.ParseOutputKind(outputType)
	if err != nil {
		return nil, err
	}

	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusPending {
		return nil, &domain.ConflictError{JobID: jobID, Status: job.Status, Message: "only pending jobs can be queued"}
	}
	if err := domain.CheckCompatible(job.InputType, kind); err != nil {
		return nil, err
	}

	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = s.defaultModel
	}

	job, err = s.store.Transition(ctx, jobID, domain.StatusPending, domain.StatusQueued, storage.Update{
		At:         s.now(),
		OutputType: &kind,
		ModelName:  &modelName,
	})
	if err != nil {
		return nil, err
	}

	task := queue.Task{JobID: jobID, OutputType: string(kind), ModelName: modelName}
	if err := s.publisher.Publish(ctx, task); err != nil {
		// No task exists for the job now; a sweeper has to republish it
		s.logger.Error("Job stranded in QUEUED, task not published",
			slog.String("job_id", jobID),
			slog.String("status", string(job.Status)),
			slog.String("output_type", string(kind)),
			slog.String("model", modelName),
			slog.Time("queued_at", job.UpdatedAt),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to publish job %s: %w", jobID, err)
	}

	s.logger.Info("Job queued",
		slog.String("job_id", jobID),
		slog.String("output_type", string(kind)),
		slog.String("model", modelName),
	)
	return job, nil
}

// Start claims a QUEUED job for execution.
func (s *Service) Start(ctx context.Context, jobID string) (*domain.Job, error) {
	now := s.now()
	return s.store.Transition(ctx, jobID, domain.StatusQueued, domain.StatusRunning, storage.Update{
		At:        now,
		StartedAt: &now,
	})
}

// Heartbeat refreshes the liveness timestamp of a RUNNING job.
func (s *Service) Heartbeat(ctx context.Context, jobID string) error {
	return s.store.UpdateJobHeartbeat(ctx, jobID, s.now())
}

// Complete records the artifact of a RUNNING job. Text output keeps only the
// text, every other output keeps only the path.
func (s *Service) Complete(ctx context.Context, jobID string, result domain.Result) (*domain.Job, error) {
	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	duration := elapsed(job.StartedAt, now)
	upd := storage.Update{At: now, DurationSeconds: &duration}
	if job.OutputType == domain.OutputText {
		upd.ResultText = &result.Text
	} else {
		upd.OutputPath = &result.OutputPath
	}

	return s.store.Transition(ctx, jobID, domain.StatusRunning, domain.StatusSucceeded, upd)
}

// Fail records why a RUNNING job could not finish.
func (s *Service) Fail(ctx context.Context, jobID, message string) (*domain.Job, error) {
	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	message = strings.TrimSpace(message)
	if message == "" {
		message = "unknown error"
	}

	now := s.now()
	duration := elapsed(job.StartedAt, now)
	return s.store.Transition(ctx, jobID, domain.StatusRunning, domain.StatusFailed, storage.Update{
		At:              now,
		Error:           &message,
		DurationSeconds: &duration,
	})
}

func elapsed(startedAt *time.Time, now time.Time) float64 {
	if startedAt == nil {
		return 0
	}
	d := now.Sub(*startedAt).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// Get returns a job by id.
func (s *Service) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.store.GetJobByID(ctx, jobID)
}

// StatusView is the client-facing summary of a job.
type StatusView struct {
	JobID      string
	Status     domain.Status
	OutputType domain.OutputKind
	OutputPath string
	ResultText string
	Error      string
}

// Status returns the current status of a job.
func (s *Service) Status(ctx context.Context, jobID string) (*StatusView, error) {
	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &StatusView{
		JobID:      job.ID,
		Status:     job.Status,
		OutputType: job.OutputType,
		OutputPath: job.OutputPath,
		ResultText: job.ResultText,
		Error:      job.Error,
	}, nil
}

// Result returns a SUCCEEDED job; any other status is a conflict.
func (s *Service) Result(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := s.store.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusSucceeded {
		return nil, &domain.ConflictError{JobID: jobID, Status: job.Status, Message: "result not available"}
	}
	return job, nil
}

// List returns jobs newest first.
func (s *Service) List(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error) {
	return s.store.ListJobs(ctx, filter)
}

// Events returns the event log of a job.
func (s *Service) Events(ctx context.Context, jobID string, limit int) ([]domain.JobEvent, error) {
	if _, err := s.store.GetJobByID(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, jobID, limit)
}

// Metrics aggregates the job table.
func (s *Service) Metrics(ctx context.Context) (*domain.Metrics, error) {
	return s.store.Metrics(ctx)
}

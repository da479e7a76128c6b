package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/cuongbtq/subtitle-pipeline/internal/artifact"
	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/cuongbtq/subtitle-pipeline/internal/inference"
	"github.com/cuongbtq/subtitle-pipeline/internal/output"
	"github.com/cuongbtq/subtitle-pipeline/internal/subtitle"
)

// Stage names, in execution order.
const (
	StageExtract     = "extract"
	StageTranscribe  = "transcribe"
	StageReconstruct = "reconstruct"
	StageAssemble    = "assemble"
)

// AudioExtractor converts input media into a WAV file the models accept.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
}

// ModelResolver finds the transcriber for a model name.
type ModelResolver interface {
	Lookup(name, version string) (inference.Transcriber, error)
}

// Assembler produces the final artifact.
type Assembler interface {
	Assemble(ctx context.Context, req output.Request) (domain.Result, error)
}

// Pipeline runs one job from input media to output artifact.
type Pipeline struct {
	extractor   AudioExtractor
	models      ModelResolver
	assembler   Assembler
	layout      *artifact.Layout
	chunkLength float64
	logger      *slog.Logger
}

// New creates a Pipeline. chunkLength is the inference window used to repair
// timestamps; zero selects subtitle.DefaultChunkLength.
func New(extractor AudioExtractor, models ModelResolver, assembler Assembler, layout *artifact.Layout, chunkLength float64, logger *slog.Logger) *Pipeline {
	if chunkLength <= 0 {
		chunkLength = subtitle.DefaultChunkLength
	}
	return &Pipeline{
		extractor:   extractor,
		models:      models,
		assembler:   assembler,
		layout:      layout,
		chunkLength: chunkLength,
		logger:      logger,
	}
}

// run carries values between stages.
type run struct {
	job           *domain.Job
	audioPath     string
	extracted     bool
	transcription *inference.Transcription
	cues          []subtitle.Cue
	result        domain.Result
}

type stage struct {
	name string
	fn   func(ctx context.Context, r *run) error
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{StageExtract, p.extract},
		{StageTranscribe, p.transcribe},
		{StageReconstruct, p.reconstruct},
		{StageAssemble, p.assemble},
	}
}

// Run executes the stages in order and stops at the first error.
func (p *Pipeline) Run(ctx context.Context, job *domain.Job) (domain.Result, error) {
	r := &run{job: job}
	defer p.cleanup(r)

	for _, s := range p.stages() {
		start := time.Now()
		if err := s.fn(ctx, r); err != nil {
			p.logger.Warn("Pipeline stage failed",
				slog.String("job_id", job.ID),
				slog.String("stage", s.name),
				slog.String("error", err.Error()),
			)
			return domain.Result{}, err
		}
		p.logger.Debug("Pipeline stage finished",
			slog.String("job_id", job.ID),
			slog.String("stage", s.name),
			slog.Duration("elapsed", time.Since(start)),
		)
	}

	return r.result, nil
}

func (p *Pipeline) extract(ctx context.Context, r *run) error {
	if r.job.InputType == domain.InputWAV {
		r.audioPath = r.job.InputPath
		return nil
	}

	r.audioPath = p.layout.ResultPath(r.job.ID, string(domain.InputWAV))
	if err := p.extractor.ExtractAudio(ctx, r.job.InputPath, r.audioPath); err != nil {
		return err
	}
	r.extracted = true
	return nil
}

func (p *Pipeline) transcribe(ctx context.Context, r *run) error {
	model, err := p.models.Lookup(r.job.ModelName, "")
	if err != nil {
		return err
	}

	t, err := model.Transcribe(ctx, r.audioPath)
	if err != nil {
		return err
	}
	r.transcription = t
	return nil
}

func (p *Pipeline) reconstruct(_ context.Context, r *run) error {
	r.cues = subtitle.Reconstruct(r.transcription.Chunks, p.chunkLength)
	return nil
}

func (p *Pipeline) assemble(ctx context.Context, r *run) error {
	result, err := p.assembler.Assemble(ctx, output.Request{
		JobID:     r.job.ID,
		InputPath: r.job.InputPath,
		Kind:      r.job.OutputType,
		Text:      r.transcription.Text,
		Cues:      r.cues,
	})
	if err != nil {
		return err
	}
	r.result = result
	return nil
}

// cleanup removes the intermediate WAV produced by the extract stage.
func (p *Pipeline) cleanup(r *run) {
	if !r.extracted {
		return
	}
	if err := os.Remove(r.audioPath); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("Failed to remove intermediate audio",
			slog.String("job_id", r.job.ID),
			slog.String("path", r.audioPath),
			slog.String("error", err.Error()),
		)
	}
}

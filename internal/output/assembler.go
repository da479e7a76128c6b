package output

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/subtitle-pipeline/internal/artifact"
	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/cuongbtq/subtitle-pipeline/internal/media"
	"github.com/cuongbtq/subtitle-pipeline/internal/subtitle"
)

// Step is one action taken to produce an output artifact.
type Step string

const (
	StepReturnText    Step = "return_text"
	StepWriteSRT      Step = "write_srt"
	StepMuxSubtitles  Step = "mux_subtitles"
	StepBurnSubtitles Step = "burn_subtitles"
)

// Plan returns the ordered steps that produce kind.
func Plan(kind domain.OutputKind) ([]Step, error) {
	switch kind {
	case domain.OutputText:
		return []Step{StepReturnText}, nil
	case domain.OutputSubtitle:
		return []Step{StepWriteSRT}, nil
	case domain.OutputMetadataVideo:
		return []Step{StepWriteSRT, StepMuxSubtitles}, nil
	case domain.OutputEmbeddedVideo:
		return []Step{StepWriteSRT, StepBurnSubtitles}, nil
	}
	return nil, domain.NewValidationError("unknown output type %q", kind)
}

// Renderer attaches a subtitle file to a video.
type Renderer interface {
	MuxSubtitles(ctx context.Context, videoPath, srtPath, outputPath string) error
	BurnSubtitles(ctx context.Context, videoPath, srtPath, outputPath string) error
}

// Request is everything the assembler needs for one job.
type Request struct {
	JobID     string
	InputPath string
	Kind      domain.OutputKind
	Text      string
	Cues      []subtitle.Cue
}

// Assembler turns a reconstructed transcription into the requested artifact.
type Assembler struct {
	layout   *artifact.Layout
	renderer Renderer
	logger   *slog.Logger
}

// NewAssembler creates a new Assembler
func NewAssembler(layout *artifact.Layout, renderer Renderer, logger *slog.Logger) *Assembler {
	return &Assembler{layout: layout, renderer: renderer, logger: logger}
}

// Assemble runs the plan for req.Kind. Text output yields only Result.Text,
// every other kind yields only Result.OutputPath.
func (a *Assembler) Assemble(ctx context.Context, req Request) (domain.Result, error) {
	steps, err := Plan(req.Kind)
	if err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	srtPath := a.layout.ResultPath(req.JobID, "srt")
	videoPath := a.layout.ResultPath(req.JobID, videoExt(req.InputPath))

	for _, step := range steps {
		switch step {
		case StepReturnText:
			result.Text = req.Text
		case StepWriteSRT:
			if err := subtitle.WriteFile(srtPath, req.Cues); err != nil {
				return domain.Result{}, &domain.PipelineError{Stage: media.StageAssemble, Err: err}
			}
			result.OutputPath = srtPath
		case StepMuxSubtitles:
			if err := a.renderer.MuxSubtitles(ctx, req.InputPath, srtPath, videoPath); err != nil {
				return domain.Result{}, err
			}
			result.OutputPath = videoPath
		case StepBurnSubtitles:
			if err := a.renderer.BurnSubtitles(ctx, req.InputPath, srtPath, videoPath); err != nil {
				return domain.Result{}, err
			}
			result.OutputPath = videoPath
		}
	}

	a.logger.Debug("Output assembled",
		slog.String("job_id", req.JobID),
		slog.String("output_type", string(req.Kind)),
		slog.String("output_path", result.OutputPath),
	)
	return result, nil
}

// videoExt keeps the input container for video results.
func videoExt(inputPath string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(inputPath), "."))
	if ext == "" {
		return "mp4"
	}
	return ext
}

package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
)

// Stage names reported in PipelineError.
const (
	StageExtract  = "extract"
	StageAssemble = "assemble"
)

// FFmpeg wraps the ffmpeg binary for the three media operations the pipeline needs.
type FFmpeg struct {
	path   string
	runner CommandRunner
	logger *slog.Logger
}

// NewFFmpeg creates an FFmpeg wrapper. A nil runner executes real processes.
func NewFFmpeg(path string, runner CommandRunner, logger *slog.Logger) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &FFmpeg{path: path, runner: runner, logger: logger}
}

// ExtractAudio converts the input media to 16 kHz mono PCM WAV.
func (f *FFmpeg) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	return f.run(ctx, StageExtract, outputPath, buildExtractArgs(inputPath, outputPath))
}

// MuxSubtitles adds the SRT file as a soft subtitle track without re-encoding.
func (f *FFmpeg) MuxSubtitles(ctx context.Context, videoPath, srtPath, outputPath string) error {
	return f.run(ctx, StageAssemble, outputPath, buildMuxArgs(videoPath, srtPath, outputPath))
}

// BurnSubtitles renders the SRT file into the video frames.
func (f *FFmpeg) BurnSubtitles(ctx context.Context, videoPath, srtPath, outputPath string) error {
	return f.run(ctx, StageAssemble, outputPath, buildBurnArgs(videoPath, srtPath, outputPath))
}

func (f *FFmpeg) run(ctx context.Context, stage, outputPath string, args []string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return &domain.PipelineError{Stage: stage, Err: fmt.Errorf("cannot create output directory: %w", err)}
	}

	f.logger.Debug("Running ffmpeg",
		slog.String("stage", stage),
		slog.String("args", strings.Join(args, " ")),
	)

	result, err := f.runner.Run(ctx, f.path, args...)
	if err != nil {
		f.logger.Error("ffmpeg failed",
			slog.String("stage", stage),
			slog.Int("exit_code", result.ExitCode),
			slog.String("stderr", Tail(result.Stderr)),
		)
		return &domain.PipelineError{
			Stage: stage,
			Err:   fmt.Errorf("ffmpeg exited with code %d: %s", result.ExitCode, Tail(result.Stderr)),
		}
	}

	if _, err := os.Stat(outputPath); err != nil {
		return &domain.PipelineError{
			Stage: stage,
			Err:   fmt.Errorf("ffmpeg completed but output file is missing: %w", err),
		}
	}
	return nil
}

func buildExtractArgs(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outputPath,
	}
}

func buildMuxArgs(videoPath, srtPath, outputPath string) []string {
	title := strings.TrimSuffix(filepath.Base(srtPath), filepath.Ext(srtPath))
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", videoPath,
		"-i", srtPath,
		"-map", "0:v",
		"-map", "0:a?",
		"-map", "1:0",
		"-c", "copy",
		"-c:s", SubtitleCodec(outputPath),
		"-metadata:s:s:0", "language=en",
		"-metadata:s:s:0", "title=" + title,
		outputPath,
	}
}

func buildBurnArgs(videoPath, srtPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", videoPath,
		"-vf", "subtitles=" + escapeFilterPath(srtPath),
		"-c:a", "copy",
		outputPath,
	}
}

// SubtitleCodec picks the soft subtitle codec the output container accepts.
func SubtitleCodec(outputPath string) string {
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".mkv":
		return "srt"
	default:
		return "mov_text"
	}
}

// escapeFilterPath escapes the characters the filtergraph parser treats specially.
func escapeFilterPath(path string) string {
	r := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`)
	return r.Replace(path)
}

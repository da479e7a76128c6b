package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/cuongbtq/subtitle-pipeline/internal/media"
	"github.com/cuongbtq/subtitle-pipeline/internal/subtitle"
)

// RemoteModel forwards transcription to the inference service.
type RemoteModel struct {
	client  *Client
	name    string
	version string
}

// NewRemoteModel binds a model name and version to a client.
func NewRemoteModel(client *Client, name, version string) *RemoteModel {
	return &RemoteModel{client: client, name: name, version: version}
}

// Transcribe sends the audio file to the remote inference service.
func (m *RemoteModel) Transcribe(ctx context.Context, audioPath string) (*Transcription, error) {
	return m.client.Transcribe(ctx, audioPath, m.name, m.version)
}

// DummyText is what DummyModel returns for every input.
const DummyText = "Placeholder transcription for tests."

// DummyModel returns a fixed one-second transcription without reading the audio.
type DummyModel struct{}

// Transcribe returns a fixed transcription without reading the audio.
func (DummyModel) Transcribe(ctx context.Context, audioPath string) (*Transcription, error) {
	return &Transcription{
		Text:   DummyText,
		Chunks: []subtitle.Chunk{{Start: 0, End: 1, Text: DummyText}},
	}, nil
}

// WhisperCPP runs the whisper.cpp CLI locally with JSON output.
type WhisperCPP struct {
	binary    string
	modelPath string
	runner    media.CommandRunner
	logger    *slog.Logger
}

// NewWhisperCPP creates a whisper.cpp model. A nil runner executes real processes.
func NewWhisperCPP(binary, modelPath string, runner media.CommandRunner, logger *slog.Logger) *WhisperCPP {
	if binary == "" {
		binary = "whisper-cli"
	}
	if runner == nil {
		runner = media.ExecRunner{}
	}
	return &WhisperCPP{binary: binary, modelPath: modelPath, runner: runner, logger: logger}
}

type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe runs whisper.cpp on the audio file and parses its JSON output.
func (w *WhisperCPP) Transcribe(ctx context.Context, audioPath string) (*Transcription, error) {
	if w.modelPath == "" {
		return nil, &domain.InferenceError{Op: "whisper.cpp", Err: fmt.Errorf("model path is required")}
	}

	dir, err := os.MkdirTemp("", "whisper-*")
	if err != nil {
		return nil, &domain.InferenceError{Op: "whisper.cpp", Err: err}
	}
	defer os.RemoveAll(dir)

	base := filepath.Join(dir, "transcript")
	args := []string{
		"-m", w.modelPath,
		"-f", audioPath,
		"-of", base,
		"-oj",
	}

	result, err := w.runner.Run(ctx, w.binary, args...)
	if err != nil {
		return nil, &domain.InferenceError{
			Op:  "whisper.cpp",
			Err: fmt.Errorf("exited with code %d: %s", result.ExitCode, media.Tail(result.Stderr)),
		}
	}

	data, err := os.ReadFile(base + ".json")
	if err != nil {
		return nil, &domain.InferenceError{Op: "whisper.cpp", Err: fmt.Errorf("transcript file is missing: %w", err)}
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &domain.InferenceError{Op: "whisper.cpp", Err: fmt.Errorf("malformed transcript: %w", err)}
	}

	t := &Transcription{Chunks: make([]subtitle.Chunk, 0, len(out.Transcription))}
	texts := make([]string, 0, len(out.Transcription))
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		t.Chunks = append(t.Chunks, subtitle.Chunk{
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  text,
		})
		if text != "" {
			texts = append(texts, text)
		}
	}
	t.Text = strings.Join(texts, " ")

	w.logger.Debug("whisper.cpp transcription finished",
		slog.String("audio", audioPath),
		slog.Int("segments", len(t.Chunks)),
	)
	return t, nil
}

package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuongbtq/subtitle-pipeline/internal/domain"
	"github.com/cuongbtq/subtitle-pipeline/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records invocations and optionally writes the output file.
type fakeRunner struct {
	calls [][]string
	run   func(name string, args []string) (CommandResult, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (CommandResult, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.run == nil {
		return CommandResult{}, nil
	}
	return f.run(name, args)
}

// writesOutput simulates a successful ffmpeg that creates its last argument.
func writesOutput(_ string, args []string) (CommandResult, error) {
	out := args[len(args)-1]
	if err := os.WriteFile(out, []byte("media"), 0o644); err != nil {
		return CommandResult{ExitCode: 1}, err
	}
	return CommandResult{}, nil
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestFFmpeg_ExtractAudio(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "audio", "job.wav")
	runner := &fakeRunner{run: writesOutput}

	f := NewFFmpeg("ffmpeg-custom", runner, logger.Discard())
	require.NoError(t, f.ExtractAudio(context.Background(), "in.mp4", out))

	require.Len(t, runner.calls, 1)
	call := runner.calls[0]
	assert.Equal(t, "ffmpeg-custom", call[0])
	args := call[1:]
	assert.Equal(t, "in.mp4", argValue(args, "-i"))
	assert.Equal(t, "16000", argValue(args, "-ar"))
	assert.Equal(t, "1", argValue(args, "-ac"))
	assert.Equal(t, "pcm_s16le", argValue(args, "-c:a"))
	assert.Contains(t, args, "-vn")
	assert.Equal(t, out, args[len(args)-1])
}

func TestFFmpeg_MuxSubtitles(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		wantCodec string
	}{
		{name: "mp4 uses mov_text", output: "job.mp4", wantCodec: "mov_text"},
		{name: "mov uses mov_text", output: "job.mov", wantCodec: "mov_text"},
		{name: "mkv keeps srt", output: "job.mkv", wantCodec: "srt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), tt.output)
			runner := &fakeRunner{run: writesOutput}

			f := NewFFmpeg("", runner, logger.Discard())
			require.NoError(t, f.MuxSubtitles(context.Background(), "in.mp4", "/tmp/job.srt", out))

			args := runner.calls[0][1:]
			assert.Equal(t, "ffmpeg", runner.calls[0][0])
			assert.Equal(t, "copy", argValue(args, "-c"))
			assert.Equal(t, tt.wantCodec, argValue(args, "-c:s"))
			assert.Contains(t, args, "language=en")
			assert.Contains(t, args, "title=job")
		})
	}
}

func TestFFmpeg_BurnSubtitles(t *testing.T) {
	out := filepath.Join(t.TempDir(), "job.mp4")
	runner := &fakeRunner{run: writesOutput}

	f := NewFFmpeg("ffmpeg", runner, logger.Discard())
	require.NoError(t, f.BurnSubtitles(context.Background(), "in.mp4", `C:\subs\it's.srt`, out))

	args := runner.calls[0][1:]
	assert.Equal(t, `subtitles=C\:\\subs\\it\'s.srt`, argValue(args, "-vf"))
}

func TestFFmpeg_Failures(t *testing.T) {
	t.Run("non-zero exit carries the stderr tail", func(t *testing.T) {
		runner := &fakeRunner{run: func(string, []string) (CommandResult, error) {
			return CommandResult{
				Stderr:   "line one\n\nInvalid data found when processing input\n",
				ExitCode: 1,
			}, errors.New("exit status 1")
		}}

		f := NewFFmpeg("ffmpeg", runner, logger.Discard())
		err := f.ExtractAudio(context.Background(), "in.mp4", filepath.Join(t.TempDir(), "out.wav"))
		require.Error(t, err)

		var pipelineErr *domain.PipelineError
		require.ErrorAs(t, err, &pipelineErr)
		assert.Equal(t, StageExtract, pipelineErr.Stage)
		assert.Contains(t, err.Error(), "code 1")
		assert.Contains(t, err.Error(), "Invalid data found")
	})

	t.Run("missing output file", func(t *testing.T) {
		runner := &fakeRunner{}

		f := NewFFmpeg("ffmpeg", runner, logger.Discard())
		err := f.BurnSubtitles(context.Background(), "in.mp4", "job.srt", filepath.Join(t.TempDir(), "out.mp4"))
		require.Error(t, err)

		var pipelineErr *domain.PipelineError
		require.ErrorAs(t, err, &pipelineErr)
		assert.Equal(t, StageAssemble, pipelineErr.Stage)
		assert.Contains(t, err.Error(), "output file is missing")
	})
}

func TestTail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "single line", input: "boom\n", expected: "boom"},
		{name: "keeps last five", input: "1\n2\n3\n4\n5\n6\n7", expected: "3 | 4 | 5 | 6 | 7"},
		{name: "skips blanks", input: "a\n\n  \nb", expected: "a | b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tail(tt.input))
		})
	}
}

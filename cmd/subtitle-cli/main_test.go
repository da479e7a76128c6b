package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuongbtq/subtitle-pipeline/internal/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliTestEnv struct {
	dbPath     string
	storageDir string
	inputDir   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	env := &cliTestEnv{
		dbPath:     filepath.Join(base, "db", "jobs.db"),
		storageDir: filepath.Join(base, "storage"),
		inputDir:   filepath.Join(base, "input"),
	}
	require.NoError(t, os.MkdirAll(env.inputDir, 0o755))
	return env
}

func (env *cliTestEnv) writeInput(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(env.inputDir, name)
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVE"), 0o644))
	return path
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--db", env.dbPath, "--storage", env.storageDir, "--log-level", "error"}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// jobIDFrom extracts the id from the "Job <id> succeeded" line.
func jobIDFrom(t *testing.T, out string) string {
	t.Helper()
	fields := strings.Fields(out)
	require.GreaterOrEqual(t, len(fields), 2, out)
	require.Equal(t, "Job", fields[0], out)
	return fields[1]
}

func TestTranscribe_Text(t *testing.T) {
	env := setupCLITestEnv(t)
	input := env.writeInput(t, "clip.wav")

	out, _, err := runCLI(t, env, "transcribe", input, "--model", "dummy", "--timeout", "10s")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, inference.DummyText)

	jobID := jobIDFrom(t, out)

	out, _, err = runCLI(t, env, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, jobID)
	assert.Contains(t, out, "SUCCEEDED")

	out, _, err = runCLI(t, env, "jobs", "events", jobID)
	require.NoError(t, err)
	for _, event := range []string{"pending", "queued", "running", "succeeded"} {
		assert.Contains(t, out, event)
	}

	out, _, err = runCLI(t, env, "jobs", "show", jobID)
	require.NoError(t, err)
	assert.Contains(t, out, inference.DummyText)
}

func TestTranscribe_Subtitle(t *testing.T) {
	env := setupCLITestEnv(t)
	input := env.writeInput(t, "clip.wav")

	out, _, err := runCLI(t, env, "transcribe", input, "-o", "subtitle", "-m", "dummy", "--timeout", "10s")
	require.NoError(t, err)

	jobID := jobIDFrom(t, out)
	resultPath := filepath.Join(env.storageDir, "results", jobID+".srt")
	assert.Contains(t, out, "Result: "+resultPath)

	data, err := os.ReadFile(resultPath)
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,000\n"+inference.DummyText+"\n\n", string(data))
}

func TestTranscribe_Rejected(t *testing.T) {
	env := setupCLITestEnv(t)

	tests := []struct {
		name    string
		input   string
		args    []string
		wantErr string
	}{
		{name: "video output for audio", input: "clip.wav", args: []string{"-o", "embedded_video"}, wantErr: "not available"},
		{name: "unknown output", input: "clip.wav", args: []string{"-o", "gif"}, wantErr: "unknown output type"},
		{name: "unsupported extension", input: "notes.txt", wantErr: "unsupported file type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := env.writeInput(t, tt.input)
			args := append([]string{"transcribe", input, "-m", "dummy"}, tt.args...)
			_, _, err := runCLI(t, env, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTranscribe_UnknownModelFailsJob(t *testing.T) {
	env := setupCLITestEnv(t)
	input := env.writeInput(t, "clip.wav")

	_, _, err := runCLI(t, env, "transcribe", input, "-m", "nope", "--timeout", "10s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
	assert.Contains(t, err.Error(), "unknown model nope:v1")

	out, _, err := runCLI(t, env, "jobs", "list", "--status", "FAILED")
	require.NoError(t, err)
	assert.Contains(t, out, "FAILED")
}

func TestJobs_Errors(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs")

	_, _, err = runCLI(t, env, "jobs", "list", "--status", "DONE")
	require.Error(t, err)

	_, _, err = runCLI(t, env, "jobs", "events", "0f8fad5b-d9cb-469f-a165-70867728950e")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "3"}}, []columnAlignment{alignRight})
	assert.Contains(t, out, "A")
	assert.Contains(t, out, "3")
	assert.Empty(t, renderTable(nil, nil, nil))
}

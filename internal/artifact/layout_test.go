package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_Paths(t *testing.T) {
	l := NewLayout("/data/uploads", "/data/results")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"upload keeps base name", l.UploadPath("abc", "talk.mp4"), "/data/uploads/abc_talk.mp4"},
		{"upload strips directories", l.UploadPath("abc", "../../etc/passwd"), "/data/uploads/abc_passwd"},
		{"result without dot", l.ResultPath("abc", "srt"), "/data/results/abc.srt"},
		{"result with dot", l.ResultPath("abc", ".mp4"), "/data/results/abc.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.expected), tt.got)
		})
	}
}

func TestLayout_SaveUpload(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(filepath.Join(root, "uploads"), filepath.Join(root, "results"))

	path, err := l.SaveUpload("job-1", "clip.wav", strings.NewReader("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, l.UploadPath("job-1", "clip.wav"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))

	_, err = os.Stat(l.ResultDir)
	assert.NoError(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestLayout_SaveUpload_RemovesPartialFile(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(filepath.Join(root, "uploads"), filepath.Join(root, "results"))

	_, err := l.SaveUpload("job-1", "clip.wav", failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	_, statErr := os.Stat(l.UploadPath("job-1", "clip.wav"))
	assert.True(t, os.IsNotExist(statErr))
}

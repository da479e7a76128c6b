package subtitle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{name: "exact seconds", seconds: 62, want: "00:01:02,000"},
		{name: "with milliseconds", seconds: 62.345, want: "00:01:02,345"},
		{name: "large value", seconds: 3723.12, want: "01:02:03,120"},
		{name: "zero", seconds: 0, want: "00:00:00,000"},
		{name: "millisecond carry into seconds", seconds: 1.9996, want: "00:00:02,000"},
		{name: "carry into minutes", seconds: 59.9999, want: "00:01:00,000"},
		{name: "carry into hours", seconds: 3599.9996, want: "01:00:00,000"},
		{name: "negative clamps to zero", seconds: -3, want: "00:00:00,000"},
		{name: "half second", seconds: 1.5, want: "00:00:01,500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatTimestamp(tt.seconds)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, ",1000")
		})
	}
}

func TestReconstruct_Basic(t *testing.T) {
	chunks := []Chunk{
		{Start: 0.0, End: 1.5, Text: "Hello world"},
		{Start: 1.5, End: 3.0, Text: "How are you"},
	}

	cues := Reconstruct(chunks, DefaultChunkLength)

	require.Len(t, cues, 2)
	assert.Equal(t, Cue{Index: 1, Start: 0.0, End: 1.5, Text: "Hello world"}, cues[0])
	assert.Equal(t, Cue{Index: 2, Start: 1.5, End: 3.0, Text: "How are you"}, cues[1])

	srt := Render(cues)
	assert.Contains(t, srt, "1\n00:00:00,000 --> 00:00:01,500\nHello world\n")
	assert.Contains(t, srt, "2\n00:00:01,500 --> 00:00:03,000\nHow are you\n")
}

func TestReconstruct_AnomalousChunk(t *testing.T) {
	chunks := []Chunk{
		{Start: 0.0, End: 10.0, Text: " first "},
		{Start: 20.0, End: 27.5, Text: "second"},
		{Start: 27.9, End: 0.0, Text: ""},
		{Start: 0.5, End: 4.0, Text: "third"},
		{Start: 4.0, End: 9.0, Text: "fourth"},
	}

	cues := Reconstruct(chunks, 28)

	require.Len(t, cues, 4)
	for i, cue := range cues {
		assert.Equal(t, i+1, cue.Index, "indices must stay contiguous")
	}
	assert.Equal(t, "first", cues[0].Text)
	assert.Equal(t, 20.0, cues[1].Start)
	assert.InDelta(t, 28.5, cues[2].Start, 1e-9)
	assert.InDelta(t, 32.0, cues[2].End, 1e-9)
	assert.InDelta(t, 32.0, cues[3].Start, 1e-9)
	assert.InDelta(t, 37.0, cues[3].End, 1e-9)

	for i := 1; i < len(cues); i++ {
		assert.Greater(t, cues[i].Start, cues[i-1].Start)
	}
}

func TestReconstruct_OffsetAccumulates(t *testing.T) {
	chunks := []Chunk{
		{Start: 5, End: 1},
		{Start: 5, End: 1},
		{Start: 1, End: 2, Text: "late"},
	}

	cues := Reconstruct(chunks, 28)

	require.Len(t, cues, 1)
	assert.Equal(t, 1, cues[0].Index)
	assert.InDelta(t, 57.0, cues[0].Start, 1e-9)
	assert.InDelta(t, 58.0, cues[0].End, 1e-9)
}

func TestReconstruct_Idempotent(t *testing.T) {
	chunks := []Chunk{
		{Start: 0, End: 2, Text: "a"},
		{Start: 3, End: 1, Text: ""},
		{Start: 0, End: 2, Text: "b"},
	}

	first := Reconstruct(chunks, 28)
	second := Reconstruct(chunks, 28)

	assert.Equal(t, first, second)
	assert.Equal(t, Render(first), Render(second))
}

func TestReconstruct_Empty(t *testing.T) {
	cues := Reconstruct(nil, 28)
	assert.Empty(t, cues)
	assert.Equal(t, "", Render(cues))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	cues := Reconstruct([]Chunk{{Start: 0, End: 1, Text: "Bonjour"}}, 28)

	require.NoError(t, WriteFile(path, cues))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,000\nBonjour\n\n", string(data))
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "missing", "out.srt"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write srt")
}

// Package subtitle turns raw transcription chunks into ordered SRT cues.
//
// Chunked inference processes fixed-length windows of audio and sometimes
// reports a window boundary as a chunk whose start lies after its end. Such
// a chunk carries no content; every chunk after it is timed relative to the
// next window, so its offsets must be shifted by one window length.
package subtitle

import (
	"fmt"
	"math"
	"os"
	"strings"
)

// DefaultChunkLength is the inference engine's window length in seconds.
const DefaultChunkLength = 28.0

// Chunk is one time-bounded transcription segment as emitted by the engine.
type Chunk struct {
	Start float64
	End   float64
	Text  string
}

// Cue is a corrected subtitle entry.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Reconstruct converts chunks into cues, dropping anomalous boundary chunks
// and shifting every following chunk by window seconds per dropped chunk.
// Cue indices are contiguous from 1.
func Reconstruct(chunks []Chunk, window float64) []Cue {
	cues := make([]Cue, 0, len(chunks))
	offset := 0.0
	index := 1

	for _, chunk := range chunks {
		if chunk.Start > chunk.End {
			offset += window
			continue
		}

		cues = append(cues, Cue{
			Index: index,
			Start: chunk.Start + offset,
			End:   chunk.End + offset,
			Text:  strings.TrimSpace(chunk.Text),
		})
		index++
	}

	return cues
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm.
// Milliseconds are rounded; a rounded value of 1000 carries into the seconds field.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}

	totalMillis := int64(math.Round(seconds * 1000))

	hours := totalMillis / 3_600_000
	rem := totalMillis % 3_600_000
	minutes := rem / 60_000
	rem %= 60_000
	secs := rem / 1000
	millis := rem % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// Render formats cues as an SRT document.
func Render(cues []Cue) string {
	var b strings.Builder
	for _, cue := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			cue.Index,
			FormatTimestamp(cue.Start),
			FormatTimestamp(cue.End),
			cue.Text,
		)
	}
	return b.String()
}

// WriteFile writes cues to path as an SRT file.
func WriteFile(path string, cues []Cue) error {
	if err := os.WriteFile(path, []byte(Render(cues)), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

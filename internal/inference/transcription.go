package inference

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/subtitle-pipeline/internal/subtitle"
)

// Transcription is the decoded output of a speech model.
type Transcription struct {
	Text   string
	Chunks []subtitle.Chunk
}

// Transcriber turns a WAV file into a transcription.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Transcription, error)
}

type wireChunk struct {
	Timestamp []*float64 `json:"timestamp"`
	Text      string     `json:"text"`
}

type wireTranscription struct {
	Text   string      `json:"text"`
	Chunks []wireChunk `json:"chunks"`
}

// Decode parses the wire form {text, chunks:[{timestamp:[start,end], text}]}.
// A null end timestamp is replaced by the start; a null start is rejected.
func Decode(data []byte) (*Transcription, error) {
	var wire wireTranscription
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("malformed transcription: %w", err)
	}

	t := &Transcription{
		Text:   wire.Text,
		Chunks: make([]subtitle.Chunk, 0, len(wire.Chunks)),
	}
	for i, c := range wire.Chunks {
		if len(c.Timestamp) != 2 {
			return nil, fmt.Errorf("chunk %d: expected [start, end] timestamp, got %d values", i, len(c.Timestamp))
		}
		if c.Timestamp[0] == nil {
			return nil, fmt.Errorf("chunk %d: missing start timestamp", i)
		}
		start := *c.Timestamp[0]
		end := start
		if c.Timestamp[1] != nil {
			end = *c.Timestamp[1]
		}
		t.Chunks = append(t.Chunks, subtitle.Chunk{Start: start, End: end, Text: c.Text})
	}
	return t, nil
}

// MarshalJSON encodes the transcription in its wire form.
func (t *Transcription) MarshalJSON() ([]byte, error) {
	wire := wireTranscription{
		Text:   t.Text,
		Chunks: make([]wireChunk, len(t.Chunks)),
	}
	for i, c := range t.Chunks {
		start, end := c.Start, c.End
		wire.Chunks[i] = wireChunk{Timestamp: []*float64{&start, &end}, Text: c.Text}
	}
	return json.Marshal(wire)
}

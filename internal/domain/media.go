package domain

import (
	"path/filepath"
	"strings"
)

// MediaClass separates inputs that carry a video stream from pure audio.
type MediaClass string

const (
	MediaAudio MediaClass = "audio"
	MediaVideo MediaClass = "video"
)

// InputKind is the input media kind, the lower-case file extension without the dot.
type InputKind string

const (
	InputWAV  InputKind = "wav"
	InputMP3  InputKind = "mp3"
	InputFLAC InputKind = "flac"
	InputM4A  InputKind = "m4a"
	InputMP4  InputKind = "mp4"
	InputMOV  InputKind = "mov"
	InputMKV  InputKind = "mkv"
)

var inputClasses = map[InputKind]MediaClass{
	InputWAV:  MediaAudio,
	InputMP3:  MediaAudio,
	InputFLAC: MediaAudio,
	InputM4A:  MediaAudio,
	InputMP4:  MediaVideo,
	InputMOV:  MediaVideo,
	InputMKV:  MediaVideo,
}

// InputKindFromFilename derives the input kind from a file name extension.
func InputKindFromFilename(filename string) InputKind {
	ext := strings.ToLower(filepath.Ext(filename))
	return InputKind(strings.TrimPrefix(ext, "."))
}

// Class returns the media class of the kind and whether the kind is supported.
func (k InputKind) Class() (MediaClass, bool) {
	class, ok := inputClasses[k]
	return class, ok
}

// IsSupported reports whether the pipeline knows how to handle k.
func (k InputKind) IsSupported() bool {
	_, ok := inputClasses[k]
	return ok
}

// OutputKind is the artifact requested for a job.
type OutputKind string

const (
	OutputText          OutputKind = "text"
	OutputSubtitle      OutputKind = "subtitle"
	OutputMetadataVideo OutputKind = "metadata_video"
	OutputEmbeddedVideo OutputKind = "embedded_video"
)

// ParseOutputKind validates a requested output type.
func ParseOutputKind(raw string) (OutputKind, error) {
	kind := OutputKind(strings.TrimSpace(raw))
	switch kind {
	case OutputText, OutputSubtitle, OutputMetadataVideo, OutputEmbeddedVideo:
		return kind, nil
	}
	return "", NewValidationError("unknown output type %q", raw)
}

// IsVideo reports whether the output kind produces a video artifact.
func (k OutputKind) IsVideo() bool {
	return k == OutputMetadataVideo || k == OutputEmbeddedVideo
}

// CheckCompatible rejects (input, output) pairs the pipeline cannot produce,
// such as a video artifact from audio-only input.
func CheckCompatible(input InputKind, output OutputKind) error {
	class, ok := input.Class()
	if !ok {
		return NewValidationError("unsupported input type %q", input)
	}
	if output.IsVideo() && class != MediaVideo {
		return NewValidationError("output type %q is not available for %s input", output, class)
	}
	return nil
}

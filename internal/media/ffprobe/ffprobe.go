package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrExtraction indicates the file could not be inspected or contained no
// usable streams. Callers treat it as a per-file failure.
var ErrExtraction = errors.New("extraction failed")

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index       int               `json:"index"`
	CodecName   string            `json:"codec_name"`
	CodecType   string            `json:"codec_type"`
	Channels    int               `json:"channels"`
	Tags        map[string]string `json:"tags"`
	Disposition map[string]int    `json:"disposition"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON
// response. A run that yields no streams is an extraction failure.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, fmt.Errorf("%w: empty path", ErrExtraction)
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %s", ErrExtraction, err, strings.TrimSpace(string(output)))
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("%w: parse: %s", ErrExtraction, err)
	}
	if len(result.Streams) == 0 {
		return Result{}, fmt.Errorf("%w: no streams in %s", ErrExtraction, path)
	}
	return result, nil
}

// Language returns the lowercased language tag for the stream, or empty
// when untagged. Checks the tag keys ffprobe emits across containers.
func (s Stream) Language() string {
	if len(s.Tags) == 0 {
		return ""
	}
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"} {
		if value, ok := s.Tags[key]; ok {
			value = strings.TrimSpace(strings.ReplaceAll(value, "\x00", ""))
			if value != "" {
				return strings.ToLower(value)
			}
		}
	}
	return ""
}

// Title returns the stream title tag, or empty when untagged.
func (s Stream) Title() string {
	if len(s.Tags) == 0 {
		return ""
	}
	for _, key := range []string{"title", "TITLE", "handler_name", "HANDLER_NAME"} {
		if value, ok := s.Tags[key]; ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// IsDefault reports whether the stream carries the default disposition flag.
func (s Stream) IsDefault() bool {
	return s.Disposition != nil && s.Disposition["default"] == 1
}

// IsForced reports whether the stream carries the forced disposition flag.
func (s Stream) IsForced() bool {
	return s.Disposition != nil && s.Disposition["forced"] == 1
}

// IsCommentaryFlagged reports whether the container marks the stream as a
// commentary via its disposition.
func (s Stream) IsCommentaryFlagged() bool {
	return s.Disposition != nil && s.Disposition["comment"] == 1
}

// AudioStreams returns the audio streams in container order.
func (r Result) AudioStreams() []Stream {
	return r.streamsOfType("audio")
}

// SubtitleStreams returns the subtitle streams in container order.
func (r Result) SubtitleStreams() []Stream {
	return r.streamsOfType("subtitle")
}

func (r Result) streamsOfType(codecType string) []Stream {
	out := make([]Stream, 0, len(r.Streams))
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			out = append(out, stream)
		}
	}
	return out
}

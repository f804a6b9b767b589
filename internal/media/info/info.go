package info

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"autosubs/internal/media/ffprobe"
)

// ErrMalformedMetadata indicates extraction succeeded but returned data
// violating the shape the classifier expects. Callers treat it as a
// per-file failure.
var ErrMalformedMetadata = errors.New("malformed metadata")

// Track is one media stream classified for selection.
type Track struct {
	// Index is the 0-based ordinal among tracks of the same kind, matching
	// the player's per-type stream numbering rather than the container's
	// global index.
	Index      int
	Language   string // lowercased raw tag value, empty when untagged
	Title      string
	Codec      string
	Default    bool
	Forced     bool
	Commentary bool // audio only
	External   bool // subtitle only
}

// FileInfo is an immutable per-file snapshot of classified tracks.
type FileInfo struct {
	Path      string
	Audio     []Track
	Subtitles []Track
	Warnings  []string
}

// Classify builds a FileInfo from raw extracted streams. externalSub, when
// non-empty, is the path of a sidecar subtitle file to synthesize as a
// subtitle track numbered after the embedded ones.
func Classify(path string, streams []ffprobe.Stream, externalSub string) (FileInfo, error) {
	if len(streams) == 0 {
		return FileInfo{}, fmt.Errorf("%w: no streams for %s", ErrMalformedMetadata, path)
	}

	file := FileInfo{Path: path}
	for _, stream := range streams {
		if stream.Index < 0 {
			return FileInfo{}, fmt.Errorf("%w: negative stream index in %s", ErrMalformedMetadata, path)
		}
		kind := strings.ToLower(strings.TrimSpace(stream.CodecType))
		if kind == "" {
			return FileInfo{}, fmt.Errorf("%w: stream %d has no codec type in %s", ErrMalformedMetadata, stream.Index, path)
		}
		switch kind {
		case "audio":
			file.Audio = append(file.Audio, Track{
				Index:      len(file.Audio),
				Language:   stream.Language(),
				Title:      stream.Title(),
				Codec:      stream.CodecName,
				Default:    stream.IsDefault(),
				Commentary: isCommentary(stream),
			})
		case "subtitle":
			file.Subtitles = append(file.Subtitles, Track{
				Index:    len(file.Subtitles),
				Language: stream.Language(),
				Title:    stream.Title(),
				Codec:    stream.CodecName,
				Default:  stream.IsDefault(),
				Forced:   stream.IsForced(),
			})
		}
	}

	if externalSub != "" {
		// The player numbers external subtitles after all embedded ones, so
		// the synthetic track takes the next per-type ordinal. It carries no
		// flags and outranks embedded tracks in the selection cascade.
		file.Subtitles = append(file.Subtitles, Track{
			Index:    len(file.Subtitles),
			Title:    "External",
			Codec:    "srt",
			External: true,
		})
	}

	if defaults := countDefaults(file.Audio); defaults > 1 {
		file.Warnings = append(file.Warnings, fmt.Sprintf("%d audio tracks flagged default", defaults))
	}
	if forced := countForced(file.Subtitles); forced > 1 {
		file.Warnings = append(file.Warnings, fmt.Sprintf("%d subtitle tracks flagged forced", forced))
	}
	return file, nil
}

// ExternalSubtitle looks for a sidecar .srt next to the media file, either
// as path.srt or with the media extension replaced. Returns the sidecar
// path, or empty when none exists.
func ExternalSubtitle(path string) string {
	candidates := []string{path + ".srt"}
	if dot := strings.LastIndexByte(path, '.'); dot > 0 {
		candidates = append(candidates, path[:dot]+".srt")
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// SelectedAudio returns the audio track at the given per-type index,
// falling back to the flagged default and then the first track when the
// index refers to no stream inside the file.
func (f FileInfo) SelectedAudio(index int) (Track, bool) {
	if index >= 0 && index < len(f.Audio) {
		return f.Audio[index], true
	}
	for _, track := range f.Audio {
		if track.Default {
			return track, true
		}
	}
	if len(f.Audio) > 0 {
		return f.Audio[0], true
	}
	return Track{}, false
}

// IsSDH reports whether a subtitle track advertises itself as a hearing
// impaired variant in its title.
func (t Track) IsSDH() bool {
	return strings.Contains(strings.ToUpper(t.Title), "SDH")
}

func isCommentary(stream ffprobe.Stream) bool {
	if stream.IsCommentaryFlagged() {
		return true
	}
	return strings.Contains(strings.ToLower(stream.Title()), "commentary")
}

func countDefaults(tracks []Track) int {
	n := 0
	for _, track := range tracks {
		if track.Default {
			n++
		}
	}
	return n
}

func countForced(tracks []Track) int {
	n := 0
	for _, track := range tracks {
		if track.Forced {
			n++
		}
	}
	return n
}

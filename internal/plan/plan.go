// Package plan turns a validated download request into a fully explicit
// option sequence for the media engine. Nothing here performs I/O; the
// builder is deterministic for identical inputs.
package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/streamsaavy/streamsaavy-go/internal/domain"
)

// Stable client-presentation string. Upstream varies behavior by presumed
// client, so every request pins the same one.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/122.0 Safari/537.36"

// audioFormatSelector is the ordered audio fallback chain. The order encodes
// real availability gaps in the upstream catalog; keep it verbatim.
const audioFormatSelector = "bestaudio[ext=m4a]/bestaudio[ext=webm]/best[protocol*=https]"

// videoFormatSelector caps height and framerate, then degrades to "best
// available at or under the target height" and finally "best available".
func videoFormatSelector(maxHeight int) string {
	return fmt.Sprintf(
		"bestvideo[ext=mp4][height<=%d][fps<=60]+bestaudio[ext=m4a]/"+
			"bestvideo[height<=%d][fps<=60]+bestaudio/best[ext=mp4]/best",
		maxHeight, maxHeight)
}

// outputTemplate anchors every download at the request's destination.
const outputTemplate = "%(title)s.%(ext)s"

// Plan is an immutable, fully explicit engine option sequence.
type Plan struct {
	args []string
}

// Args returns a copy of the option sequence, engine binary excluded,
// target URL last.
func (p Plan) Args() []string {
	out := make([]string, len(p.args))
	copy(out, p.args)
	return out
}

// URL returns the target URL the plan was built for.
func (p Plan) URL() string {
	if len(p.args) == 0 {
		return ""
	}
	return p.args[len(p.args)-1]
}

// Destination returns the destination directory option.
func (p Plan) Destination() string {
	return p.optionValue("-P")
}

// IsPlaylist reports whether the plan downloads every playlist entry.
func (p Plan) IsPlaylist() bool {
	return p.hasFlag("--yes-playlist")
}

// Mode re-derives the download mode from the explicit options.
func (p Plan) Mode() domain.Mode {
	audio := p.hasFlag("--extract-audio")
	switch {
	case p.hasFlag("--ignore-errors"):
		return domain.ModeCompatibility
	case audio && p.IsPlaylist():
		return domain.ModePlaylistSongs
	case audio:
		return domain.ModeSingleSong
	case p.IsPlaylist():
		return domain.ModePlaylistVideos
	default:
		return domain.ModeSingleVideo
	}
}

func (p Plan) hasFlag(flag string) bool {
	for _, a := range p.args {
		if a == flag {
			return true
		}
	}
	return false
}

func (p Plan) optionValue(opt string) string {
	for i, a := range p.args {
		if a == opt && i+1 < len(p.args) {
			return p.args[i+1]
		}
	}
	return ""
}

// Builder produces Plans. DefaultCredentialsFile, when non-empty, is used
// only for requests that carry no explicit credentials file.
type Builder struct {
	DefaultCredentialsFile string
}

// DiscoverDefaultCredentials returns the well-known credentials file path if
// one exists on disk, otherwise "". Call it once at startup and hand the
// result to the Builder so Build itself stays free of I/O.
func DiscoverDefaultCredentials() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".yt-dlp-cookies.txt")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Build derives the engine option sequence for a validated request.
// It is total: every valid DownloadRequest yields a Plan.
func (b Builder) Build(req *domain.DownloadRequest) Plan {
	args := []string{
		"--newline",
		"--extractor-args", "youtube:player_client=web",
		"--user-agent", userAgent,
		"--compat-options", "prefer-free-formats,manifestless",
		"--no-warnings",
		"--concurrent-fragments", "4",
	}

	// Exactly one auth branch: explicit file, well-known fallback, or none.
	switch {
	case req.CredentialsFile != "":
		args = append(args, "--cookies", req.CredentialsFile)
	case b.DefaultCredentialsFile != "":
		args = append(args, "--cookies", b.DefaultCredentialsFile)
	}

	args = append(args, "-P", req.DestinationPath, "-o", outputTemplate)

	if req.Mode.IsAudio() {
		args = append(args, b.audioArgs(req)...)
	} else {
		args = append(args, b.videoArgs(req)...)
	}

	if req.EmbedMetadata {
		args = append(args, "--embed-metadata")
	}

	if req.Mode.IsPlaylist() {
		args = append(args, "--yes-playlist")
	} else {
		args = append(args, "--no-playlist")
	}

	args = append(args, req.URL)
	return Plan{args: args}
}

func (b Builder) audioArgs(req *domain.DownloadRequest) []string {
	args := []string{
		"-f", audioFormatSelector,
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", strconv.Itoa(req.AudioBitrateKbps),
		"--postprocessor-args",
		fmt.Sprintf("ExtractAudio:-b:a %dk -ar 44100", req.AudioBitrateKbps),
	}
	if req.EmbedThumbnail {
		args = append(args, "--embed-thumbnail")
	}
	if req.Mode == domain.ModeCompatibility {
		args = append(args, "--ignore-errors")
	}
	return args
}

func (b Builder) videoArgs(req *domain.DownloadRequest) []string {
	h := req.MaxVideoHeight
	return []string{
		"-f", videoFormatSelector(h),
		"--merge-output-format", "mp4",
		"--recode-video", "mp4",
		"--postprocessor-args",
		fmt.Sprintf("VideoConvertor:-map 0:v:0? -map 0:a:0? "+
			"-vf scale=-2:%d:force_original_aspect_ratio=decrease "+
			"-c:v libx264 -preset medium -crf 19 -c:a aac -b:a 192k "+
			"-movflags +faststart", h),
	}
}

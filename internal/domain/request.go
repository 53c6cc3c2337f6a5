package domain

import (
	"os"
	"path/filepath"
	"strings"
)

// Normalization defaults applied when the caller leaves a quality knob unset.
const (
	DefaultAudioBitrateKbps = 256
	DefaultMaxVideoHeight   = 1080
)

// RequestParams carries the raw caller-supplied fields for a download request.
type RequestParams struct {
	URL              string
	DestinationPath  string
	Mode             string
	AudioBitrateKbps int
	MaxVideoHeight   int
	EmbedThumbnail   bool
	EmbedMetadata    bool
	CredentialsFile  string
}

// DownloadRequest is a validated, normalized download request. Construct it
// with NewDownloadRequest; a zero value is not usable.
type DownloadRequest struct {
	URL              string
	DestinationPath  string
	Mode             Mode
	AudioBitrateKbps int
	MaxVideoHeight   int
	EmbedThumbnail   bool
	EmbedMetadata    bool
	CredentialsFile  string
}

// NewDownloadRequest validates and normalizes the raw parameters.
// It resolves the mode token, expands the destination to an absolute path and
// creates it if missing, applies quality defaults, and verifies that an
// explicit credentials file exists and is readable. All violations are
// reported as a RequestError before any job starts.
func NewDownloadRequest(p RequestParams) (*DownloadRequest, error) {
	mode, err := ResolveMode(p.Mode)
	if err != nil {
		return nil, err
	}

	url := strings.TrimSpace(p.URL)
	if url == "" {
		return nil, &RequestError{
			Kind:    KindInvalidRequest,
			Message: "a video or playlist URL is required",
		}
	}

	dest := strings.TrimSpace(p.DestinationPath)
	if dest == "" {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return nil, &RequestError{
				Kind:    KindInvalidRequest,
				Message: "destination path is required: " + herr.Error(),
			}
		}
		dest = filepath.Join(home, "Downloads")
	}
	dest, err = expandPath(dest)
	if err != nil {
		return nil, &RequestError{
			Kind:    KindInvalidRequest,
			Message: "invalid destination path: " + err.Error(),
		}
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, &RequestError{
			Kind:    KindInvalidRequest,
			Message: "cannot create destination directory: " + err.Error(),
		}
	}

	bitrate := p.AudioBitrateKbps
	if bitrate <= 0 {
		bitrate = DefaultAudioBitrateKbps
	}
	height := p.MaxVideoHeight
	if height <= 0 {
		height = DefaultMaxVideoHeight
	}

	creds := strings.TrimSpace(p.CredentialsFile)
	if creds != "" {
		creds, err = expandPath(creds)
		if err != nil {
			return nil, &RequestError{
				Kind:    KindInvalidRequest,
				Message: "invalid credentials file path: " + err.Error(),
			}
		}
		f, ferr := os.Open(creds)
		if ferr != nil {
			return nil, &RequestError{
				Kind:    KindInvalidRequest,
				Message: "credentials file is not readable: " + ferr.Error(),
			}
		}
		f.Close()
	}

	return &DownloadRequest{
		URL:              url,
		DestinationPath:  dest,
		Mode:             mode,
		AudioBitrateKbps: bitrate,
		MaxVideoHeight:   height,
		EmbedThumbnail:   p.EmbedThumbnail,
		EmbedMetadata:    p.EmbedMetadata,
		CredentialsFile:  creds,
	}, nil
}

// expandPath resolves a leading ~ and returns an absolute path.
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

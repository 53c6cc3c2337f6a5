// Package domain contains the core business entities and types.
package domain

// Mode identifies one of the supported download modes.
type Mode string

const (
	ModeSingleSong     Mode = "single-song"
	ModeSingleVideo    Mode = "single-video"
	ModePlaylistSongs  Mode = "playlist-songs"
	ModePlaylistVideos Mode = "playlist-videos"
	ModeCompatibility  Mode = "compatibility"
)

// modeOrder fixes the presentation order of the closed mode set.
var modeOrder = []Mode{
	ModeSingleSong,
	ModeSingleVideo,
	ModePlaylistSongs,
	ModePlaylistVideos,
	ModeCompatibility,
}

var modeLabels = map[Mode]string{
	ModeSingleSong:     "Single Song (Audio)",
	ModeSingleVideo:    "Single Video (Video)",
	ModePlaylistSongs:  "Playlist Songs (Audio)",
	ModePlaylistVideos: "Playlist Videos (Video)",
	ModeCompatibility:  "Compatibility (Audio Fallback)",
}

// ResolveMode maps a mode token to a Mode.
// It returns a RequestError with KindUnknownMode for anything outside the closed set.
func ResolveMode(token string) (Mode, error) {
	m := Mode(token)
	if _, ok := modeLabels[m]; !ok {
		return "", &RequestError{
			Kind:    KindUnknownMode,
			Message: "unknown download mode: " + token,
		}
	}
	return m, nil
}

// Modes returns the supported modes in presentation order.
func Modes() []Mode {
	out := make([]Mode, len(modeOrder))
	copy(out, modeOrder)
	return out
}

// IsAudio reports whether the mode produces an audio file.
func (m Mode) IsAudio() bool {
	switch m {
	case ModeSingleSong, ModePlaylistSongs, ModeCompatibility:
		return true
	}
	return false
}

// IsPlaylist reports whether the mode downloads every playlist entry.
func (m Mode) IsPlaylist() bool {
	return m == ModePlaylistSongs || m == ModePlaylistVideos
}

// Label returns a human friendly label for UI elements.
func (m Mode) Label() string {
	return modeLabels[m]
}

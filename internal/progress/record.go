// Package progress normalizes raw engine output into a small set of events.
// The engine may report progress as free-text lines or as structured hook
// records depending on how it is driven; both shapes funnel through one
// Normalizer so nothing downstream branches on the integration style.
package progress

// Hook is a structured progress record, as emitted by the engine's
// progress-template integration.
type Hook struct {
	Status   string `json:"status"`
	Percent  string `json:"percent"`
	Speed    string `json:"speed,omitempty"`
	ETA      string `json:"eta,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Record is one raw unit of engine output: either a free-text line or a
// structured hook, never both.
type Record struct {
	line string
	hook *Hook
}

// LineRecord wraps a free-text output line.
func LineRecord(text string) Record {
	return Record{line: text}
}

// HookRecord wraps a structured progress hook.
func HookRecord(h Hook) Record {
	return Record{hook: &h}
}

// IsHook reports whether the record carries a structured hook.
func (r Record) IsHook() bool {
	return r.hook != nil
}

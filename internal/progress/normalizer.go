package progress

import (
	"strconv"
	"strings"

	"github.com/streamsaavy/streamsaavy-go/internal/domain"
)

// stageMarkers are the output fragments that indicate post-processing has
// begun. Matching any of them produces a single Stage event per job.
var stageMarkers = []string{
	"Merging formats into",
	"Transcoding",
	"Extracting audio",
}

// stageNote is the note carried by the Stage event regardless of which
// marker fired.
const stageNote = "transcoding"

// Normalizer folds raw engine records into normalized events. It is
// per-job state: the stage gate and the finished flag reset with each job,
// so create a fresh Normalizer per run.
type Normalizer struct {
	stageSeen    bool
	finishedSeen bool
}

// NewNormalizer returns a Normalizer for a single job.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize maps one raw record to exactly one event.
func (n *Normalizer) Normalize(rec Record) domain.Event {
	if rec.hook != nil {
		return n.normalizeHook(*rec.hook)
	}
	return n.normalizeLine(rec.line)
}

func (n *Normalizer) normalizeHook(h Hook) domain.Event {
	switch h.Status {
	case "downloading":
		// Malformed percent strings degrade to 0, never fail the job.
		pct, ok := parsePercentToken(h.Percent)
		if !ok {
			pct = 0
		}
		return domain.ProgressEvent(pct)
	case "finished":
		n.finishedSeen = true
		return domain.FinishedEvent(strings.TrimSpace(h.Filename))
	case "error":
		return domain.ErrorEvent(domain.KindUnknown, "engine reported error")
	default:
		return domain.LogEvent(h.Status)
	}
}

func (n *Normalizer) normalizeLine(line string) domain.Event {
	line = strings.TrimSpace(line)

	// Markers win over embedded percent tokens; once the gate has fired,
	// repeated marker lines fall through to percent scanning.
	for _, marker := range stageMarkers {
		if strings.Contains(line, marker) {
			if !n.stageSeen {
				n.stageSeen = true
				return domain.StageEvent(stageNote)
			}
			break
		}
	}

	if pct, ok := scanPercent(line); ok {
		return domain.ProgressEvent(pct)
	}

	return domain.LogEvent(line)
}

// Finish emits the synthetic end-of-stream events: when the engine closed
// its stream without an explicit finished record, completion is assumed and
// a full progress bar is synthesized.
func (n *Normalizer) Finish() []domain.Event {
	if n.finishedSeen {
		return nil
	}
	n.finishedSeen = true
	return []domain.Event{
		domain.FinishedEvent(""),
		domain.ProgressEvent(100),
	}
}

// FinishedSeen reports whether an explicit finished record was observed.
func (n *Normalizer) FinishedSeen() bool {
	return n.finishedSeen
}

// scanPercent finds the first parseable %-suffixed token in a line.
// Malformed tokens are skipped, not fatal.
func scanPercent(line string) (float64, bool) {
	if !strings.Contains(line, "%") {
		return 0, false
	}
	for _, part := range strings.Fields(line) {
		if pct, ok := parsePercentToken(part); ok {
			return pct, true
		}
	}
	return 0, false
}

func parsePercentToken(token string) (float64, bool) {
	token = strings.TrimSpace(token)
	if !strings.HasSuffix(token, "%") {
		return 0, false
	}
	pct, err := strconv.ParseFloat(strings.TrimSuffix(token, "%"), 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

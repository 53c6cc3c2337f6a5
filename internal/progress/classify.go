package progress

import (
	"fmt"
	"strings"

	"github.com/streamsaavy/streamsaavy-go/internal/domain"
)

// formatUnavailableMarkers identify the upstream refusing to serve a
// playable stream for the requested selector. These get their own error
// kind so presentation layers can suggest the compatibility fallback.
var formatUnavailableMarkers = []string{
	"Requested format is not available",
	"Only images are available",
}

// ClassifyExit classifies an unclean engine termination. output is the
// retained tail of the engine's diagnostic stream.
func ClassifyExit(exitIndicator string, output string) *domain.ClassifiedError {
	for _, marker := range formatUnavailableMarkers {
		if strings.Contains(output, marker) {
			return &domain.ClassifiedError{
				Kind: domain.KindFormatUnavailable,
				Detail: "no playable stream for the requested format; " +
					"try the compatibility mode or list available formats",
			}
		}
	}

	detail := fmt.Sprintf("engine exited: %s", exitIndicator)
	if tail := lastNonEmptyLine(output); tail != "" {
		detail = fmt.Sprintf("%s: %s", detail, tail)
	}
	return &domain.ClassifiedError{
		Kind:   domain.KindEngineExit,
		Detail: detail,
	}
}

func lastNonEmptyLine(output string) string {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

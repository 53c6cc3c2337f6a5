package domain

// ErrorKind classifies failures into actionable categories.
type ErrorKind string

const (
	// KindUnknownMode means the caller supplied an unsupported mode token.
	KindUnknownMode ErrorKind = "unknown_mode"
	// KindInvalidRequest means the request failed validation before any job started.
	KindInvalidRequest ErrorKind = "invalid_request"
	// KindAlreadyRunning means admission control rejected a start while a job was active.
	KindAlreadyRunning ErrorKind = "already_running"
	// KindFormatUnavailable means the engine found no playable stream for the
	// requested selector. Callers should suggest the compatibility fallback.
	KindFormatUnavailable ErrorKind = "format_unavailable"
	// KindEngineExit means the engine process ended with an otherwise
	// unclassified failure indication.
	KindEngineExit ErrorKind = "engine_exit"
	// KindUnknown means the engine explicitly reported an error without detail.
	KindUnknown ErrorKind = "unknown"
)

// RequestError is a synchronous validation failure, raised before a job starts.
type RequestError struct {
	Kind    ErrorKind
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// ClassifiedError is a runtime engine failure with its classification.
// It surfaces only through JobState, never as a panic or a Start error.
type ClassifiedError struct {
	Kind   ErrorKind
	Detail string
}

func (e *ClassifiedError) Error() string {
	return e.Detail
}

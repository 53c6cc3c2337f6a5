package domain

// EventType tags a normalized engine event.
type EventType string

const (
	EventStarted  EventType = "started"
	EventProgress EventType = "progress"
	EventStage    EventType = "stage"
	EventLogLine  EventType = "log_line"
	EventFinished EventType = "finished"
	EventError    EventType = "error"
)

// Event is one normalized unit of progress/log/outcome information derived
// from raw engine output. Only the fields relevant to Type are populated.
type Event struct {
	Type       EventType
	Percent    float64   // EventProgress
	Note       string    // EventStage
	Text       string    // EventLogLine
	OutputPath string    // EventFinished; empty when the engine did not report a path
	Kind       ErrorKind // EventError
	Detail     string    // EventError
}

// StartedEvent marks the beginning of a job.
func StartedEvent() Event {
	return Event{Type: EventStarted}
}

// ProgressEvent carries a download percentage.
func ProgressEvent(percent float64) Event {
	return Event{Type: EventProgress, Percent: percent}
}

// StageEvent marks a post-processing stage transition.
func StageEvent(note string) Event {
	return Event{Type: EventStage, Note: note}
}

// LogEvent carries a raw engine log line.
func LogEvent(text string) Event {
	return Event{Type: EventLogLine, Text: text}
}

// FinishedEvent marks successful completion. outputPath may be empty when the
// engine finished without reporting a filename.
func FinishedEvent(outputPath string) Event {
	return Event{Type: EventFinished, OutputPath: outputPath}
}

// ErrorEvent carries a classified terminal failure.
func ErrorEvent(kind ErrorKind, detail string) Event {
	return Event{Type: EventError, Kind: kind, Detail: detail}
}

package domain

import "time"

// Phase is the lifecycle phase of the single in-process job slot.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Terminal reports whether the phase is a terminal outcome.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Snapshot is a point-in-time copy of the job state, safe to hand to any
// poller. LogTail is an owned copy, never shared with the supervisor.
type Snapshot struct {
	JobID      string     `json:"job_id,omitempty"`
	Phase      Phase      `json:"phase"`
	Percent    float64    `json:"percent"`
	LogTail    []string   `json:"log_tail"`
	LastError  string     `json:"last_error,omitempty"`
	ErrorKind  ErrorKind  `json:"error_kind,omitempty"`
	OutputPath string     `json:"output_path,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Job is the persisted record of one admitted download job.
type Job struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Mode        Mode       `json:"mode"`
	Phase       Phase      `json:"phase"`
	Percent     float64    `json:"percent"`
	OutputPath  string     `json:"-"`
	DownloadURL string     `json:"download_url,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a running Job record for an admitted request.
func NewJob(id string, req *DownloadRequest) *Job {
	return &Job{
		ID:        id,
		URL:       req.URL,
		Mode:      req.Mode,
		Phase:     PhaseRunning,
		CreatedAt: time.Now().UTC(),
	}
}

// MarkCompleted finalizes the job record as a success.
func (j *Job) MarkCompleted(outputPath string) {
	j.Phase = PhaseCompleted
	j.Percent = 100
	j.OutputPath = outputPath
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// MarkFailed finalizes the job record with a classified failure.
func (j *Job) MarkFailed(kind ErrorKind, detail string) {
	j.Phase = PhaseFailed
	j.ErrorKind = kind
	j.Error = detail
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// MediaInfo contains probed metadata about a media item.
type MediaInfo struct {
	Title       string  `json:"title"`
	Duration    float64 `json:"duration"` // seconds
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Filesize    int64   `json:"filesize,omitempty"`
	Extractor   string  `json:"extractor,omitempty"`
	WebpageURL  string  `json:"webpage_url,omitempty"`
	Description string  `json:"description,omitempty"`
}

// ModeInfo describes one mode for presentation layers.
type ModeInfo struct {
	Token      string `json:"token"`
	Label      string `json:"label"`
	IsAudio    bool   `json:"is_audio"`
	IsPlaylist bool   `json:"is_playlist"`
}

// ModesView returns the closed mode set in presentation order.
func ModesView() []ModeInfo {
	modes := Modes()
	out := make([]ModeInfo, 0, len(modes))
	for _, m := range modes {
		out = append(out, ModeInfo{
			Token:      string(m),
			Label:      m.Label(),
			IsAudio:    m.IsAudio(),
			IsPlaylist: m.IsPlaylist(),
		})
	}
	return out
}

// ErrorResponse is the standard API error payload.
type ErrorResponse struct {
	Error string    `json:"error"`
	Code  string    `json:"code,omitempty"`
	Kind  ErrorKind `json:"kind,omitempty"`
}

// HealthResponse is the payload for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Phase  Phase  `json:"phase"`
}

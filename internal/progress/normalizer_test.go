package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamsaavy/streamsaavy-go/internal/domain"
)

func TestNormalizeHookDownloading(t *testing.T) {
	tests := []struct {
		name    string
		percent string
		want    float64
	}{
		{"plain", "42.5%", 42.5},
		{"padded", "  7.0% ", 7.0},
		{"whole", "100%", 100},
		{"malformed defaults to zero", "N/A", 0},
		{"empty defaults to zero", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer()
			ev := n.Normalize(HookRecord(Hook{Status: "downloading", Percent: tt.percent}))
			assert.Equal(t, domain.EventProgress, ev.Type)
			assert.Equal(t, tt.want, ev.Percent)
		})
	}
}

func TestNormalizeHookFinished(t *testing.T) {
	n := NewNormalizer()
	ev := n.Normalize(HookRecord(Hook{Status: "finished", Filename: " /tmp/out/song.mp3 "}))
	assert.Equal(t, domain.EventFinished, ev.Type)
	assert.Equal(t, "/tmp/out/song.mp3", ev.OutputPath)
	assert.True(t, n.FinishedSeen())
}

func TestNormalizeHookError(t *testing.T) {
	n := NewNormalizer()
	ev := n.Normalize(HookRecord(Hook{Status: "error"}))
	assert.Equal(t, domain.EventError, ev.Type)
	assert.Equal(t, domain.KindUnknown, ev.Kind)
	assert.NotEmpty(t, ev.Detail)
}

func TestNormalizeHookUnknownStatusIsLogged(t *testing.T) {
	n := NewNormalizer()
	ev := n.Normalize(HookRecord(Hook{Status: "post_processing"}))
	assert.Equal(t, domain.EventLogLine, ev.Type)
	assert.Equal(t, "post_processing", ev.Text)
}

func TestNormalizeLinePercent(t *testing.T) {
	tests := []struct {
		name string
		line string
		want float64
	}{
		{"typical progress line", "[download]  12.3% of 4.56MiB at 1.2MiB/s ETA 00:03", 12.3},
		{"percent only", "50%", 50},
		{"first parseable token wins", "[download] garbage% then 75.0% of file", 75.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer()
			ev := n.Normalize(LineRecord(tt.line))
			require.Equal(t, domain.EventProgress, ev.Type)
			assert.Equal(t, tt.want, ev.Percent)
		})
	}
}

func TestNormalizeLineMalformedPercentFallsThrough(t *testing.T) {
	n := NewNormalizer()
	ev := n.Normalize(LineRecord("100 percent done, fragment x%y"))
	assert.Equal(t, domain.EventLogLine, ev.Type)
}

func TestNormalizeLineStageGate(t *testing.T) {
	n := NewNormalizer()

	first := n.Normalize(LineRecord("[Merger] Merging formats into \"out.mp4\""))
	require.Equal(t, domain.EventStage, first.Type)
	assert.Equal(t, "transcoding", first.Note)

	// Subsequent markers demote to plain log lines within the same job.
	second := n.Normalize(LineRecord("[ExtractAudio] Extracting audio"))
	assert.Equal(t, domain.EventLogLine, second.Type)

	// A fresh normalizer gets a fresh gate.
	next := NewNormalizer().Normalize(LineRecord("Transcoding video"))
	assert.Equal(t, domain.EventStage, next.Type)
}

func TestStageMarkerWinsOverPercentToken(t *testing.T) {
	n := NewNormalizer()

	first := n.Normalize(LineRecord("Transcoding 40.0% done"))
	require.Equal(t, domain.EventStage, first.Type)

	// With the gate already fired, the embedded percent is still usable.
	second := n.Normalize(LineRecord("Transcoding 80.0% done"))
	require.Equal(t, domain.EventProgress, second.Type)
	assert.Equal(t, 80.0, second.Percent)
}

func TestNormalizeLineDefaultIsLog(t *testing.T) {
	n := NewNormalizer()
	ev := n.Normalize(LineRecord("[youtube] abc123: Downloading webpage"))
	assert.Equal(t, domain.EventLogLine, ev.Type)
	assert.Equal(t, "[youtube] abc123: Downloading webpage", ev.Text)
}

func TestFinishSynthesizesCompletion(t *testing.T) {
	n := NewNormalizer()
	n.Normalize(LineRecord("[download]  99.9% of 4MiB"))

	events := n.Finish()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventFinished, events[0].Type)
	assert.Empty(t, events[0].OutputPath)
	assert.Equal(t, domain.EventProgress, events[1].Type)
	assert.Equal(t, float64(100), events[1].Percent)

	// Second call is a no-op.
	assert.Nil(t, n.Finish())
}

func TestFinishAfterExplicitFinishedIsNil(t *testing.T) {
	n := NewNormalizer()
	n.Normalize(HookRecord(Hook{Status: "finished", Filename: "a.mp3"}))
	assert.Nil(t, n.Finish())
}

func TestRecordShape(t *testing.T) {
	assert.False(t, LineRecord("hello").IsHook())
	assert.True(t, HookRecord(Hook{Status: "downloading"}).IsHook())
}

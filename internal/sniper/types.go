package sniper

import (
	"errors"
	"time"

	"github.com/tdh8316/rbxsniper/internal/checker"
)

// ErrAlreadyRunning is returned by Start while a run is in progress.
var ErrAlreadyRunning = errors.New("a run is already in progress")

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseStopped   Phase = "stopped"
)

// Result is recorded exactly once per successful classification.
type Result struct {
	Username   string
	Status     checker.Status
	ObservedAt time.Time
}

// Snapshot is a copy of the externally observable run state.
type Snapshot struct {
	RunID     string
	Phase     Phase
	IsRunning bool

	Target   int
	Found    int
	Attempts int
	Progress float64

	Logs []string
	// LogSeq counts every line ever appended to Logs, including the
	// ones already evicted. Observers use it to print only new lines.
	LogSeq  uint64
	Results []Result
}

// NewLogs returns the lines appended since a snapshot whose LogSeq was seen.
func (s Snapshot) NewLogs(seen uint64) []string {
	if s.LogSeq <= seen {
		return nil
	}
	n := min(int(s.LogSeq-seen), len(s.Logs))
	return s.Logs[len(s.Logs)-n:]
}

// Observer receives flushed snapshots. Calls are sequential.
type Observer func(Snapshot)

// Recorder receives per-event counters, typically Prometheus.
type Recorder interface {
	ObserveAttempt()
	ObserveOutcome(status checker.Status)
	ObserveFound()
}

type nopRecorder struct{}

func (nopRecorder) ObserveAttempt()               {}
func (nopRecorder) ObserveOutcome(checker.Status) {}
func (nopRecorder) ObserveFound()                 {}

package sniper

import (
	"fmt"
	"sync"
	"time"

	"github.com/tdh8316/rbxsniper/internal/checker"
)

// LogCapacity bounds the visible log; the oldest lines are evicted first.
const LogCapacity = 200

type LogKind int

const (
	LogInfo LogKind = iota
	LogSuccess
	LogFailure
)

func (k LogKind) prefix() string {
	switch k {
	case LogSuccess:
		return "✓"
	case LogFailure:
		return "✗"
	default:
		return "•"
	}
}

// Aggregator is the single mutation point for counters and buffers.
// Workers write into pending buffers; Flush publishes them.
type Aggregator struct {
	mu sync.Mutex

	target   int
	found    int
	attempts int
	progress float64

	pendingLogs    []string
	pendingResults []Result

	logs    []string
	logSeq  uint64
	results []Result

	recorder Recorder
	now      func() time.Time
}

func NewAggregator(target int, recorder Recorder) *Aggregator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Aggregator{
		target:   target,
		recorder: recorder,
		now:      time.Now,
	}
}

// TargetReached reports whether found has met the target.
func (a *Aggregator) TargetReached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.found >= a.target
}

func (a *Aggregator) AddAttempt() {
	a.mu.Lock()
	a.attempts++
	a.mu.Unlock()
	a.recorder.ObserveAttempt()
}

// RecordValid counts a hit only while found < target. It reports whether
// the hit was recorded; a late hit leaves no trace.
func (a *Aggregator) RecordValid(username string) bool {
	a.mu.Lock()
	if a.found >= a.target {
		a.mu.Unlock()
		return false
	}
	a.found++
	now := a.now()
	a.pendingResults = append(a.pendingResults, Result{Username: username, Status: checker.StatusValid, ObservedAt: now})
	a.pendingLogs = append(a.pendingLogs, formatLog(now, LogSuccess, "[Found] "+username))
	a.mu.Unlock()

	a.recorder.ObserveOutcome(checker.StatusValid)
	a.recorder.ObserveFound()
	return true
}

func (a *Aggregator) RecordTaken(username string, code int) {
	a.Logf(LogInfo, "%s : Taken (Code %d)", username, code)
	a.recorder.ObserveOutcome(checker.StatusTaken)
}

func (a *Aggregator) RecordError(username string, err error) {
	if err != nil {
		a.Logf(LogFailure, "%s : Check Failed (%v)", username, err)
	} else {
		a.Logf(LogFailure, "%s : Check Failed (API Error)", username)
	}
	a.recorder.ObserveOutcome(checker.StatusError)
}

// Logf buffers one log line until the next Flush.
func (a *Aggregator) Logf(kind LogKind, format string, args ...any) {
	a.mu.Lock()
	a.pendingLogs = append(a.pendingLogs, formatLog(a.now(), kind, fmt.Sprintf(format, args...)))
	a.mu.Unlock()
}

// Flush moves buffered lines and results into the visible state and
// recomputes progress.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushLocked()
}

func (a *Aggregator) flushLocked() {
	if len(a.pendingLogs) > 0 {
		a.logs = append(a.logs, a.pendingLogs...)
		a.logSeq += uint64(len(a.pendingLogs))
		if over := len(a.logs) - LogCapacity; over > 0 {
			a.logs = append(a.logs[:0:0], a.logs[over:]...)
		}
		a.pendingLogs = a.pendingLogs[:0]
	}
	if len(a.pendingResults) > 0 {
		a.results = append(a.results, a.pendingResults...)
		a.pendingResults = a.pendingResults[:0]
	}
	a.progress = progress(a.found, a.target)
}

// finish performs the last flush. A run that completed without being
// stopped reports full progress.
func (a *Aggregator) finish(stopped bool, final string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	kind := LogSuccess
	if stopped {
		kind = LogInfo
	}
	a.pendingLogs = append(a.pendingLogs, formatLog(a.now(), kind, final))
	a.flushLocked()
	if !stopped {
		a.progress = 100
	}
}

func (a *Aggregator) snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		Target:   a.target,
		Found:    a.found,
		Attempts: a.attempts,
		Progress: a.progress,
		LogSeq:   a.logSeq,
		Logs:     make([]string, len(a.logs)),
		Results:  make([]Result, len(a.results)),
	}
	copy(s.Logs, a.logs)
	copy(s.Results, a.results)
	return s
}

func progress(found, target int) float64 {
	if target <= 0 {
		return 0
	}
	return min(100, float64(found)/float64(target)*100)
}

func formatLog(at time.Time, kind LogKind, msg string) string {
	return fmt.Sprintf("[%s] %s %s", at.Format("15:04:05"), kind.prefix(), msg)
}

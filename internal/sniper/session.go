package sniper

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tdh8316/rbxsniper/internal/checker"
	"github.com/tdh8316/rbxsniper/internal/config"
)

type Options struct {
	PaceMin       time.Duration
	PaceJitter    time.Duration
	Cooldown      time.Duration
	FlushInterval time.Duration

	Observer  Observer
	Recorder  Recorder
	Logger    logrus.FieldLogger
	NewSource func(worker int) rand.Source
}

// DefaultOptions uses the production pacing.
func DefaultOptions() Options {
	return Options{
		PaceMin:       DefaultPaceMin,
		PaceJitter:    DefaultPaceJitter,
		Cooldown:      DefaultCooldown,
		FlushInterval: DefaultFlushInterval,
	}
}

// Session owns the run lifecycle: Idle -> Running -> Completed | Stopped.
type Session struct {
	checker checker.Checker
	opts    Options
	log     logrus.FieldLogger

	mu    sync.Mutex
	phase Phase
	runID string
	agg   *Aggregator
	token *Token
	done  chan struct{}
}

func NewSession(c checker.Checker, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	done := make(chan struct{})
	close(done)
	return &Session{
		checker: c,
		opts:    opts,
		log:     opts.Logger.WithField("component", "session"),
		phase:   PhaseIdle,
		agg:     NewAggregator(0, nil),
		done:    done,
	}
}

// Start launches a run. It returns ErrAlreadyRunning without side effects
// when a run is in progress.
func (s *Session) Start(ctx context.Context, cfg config.RunConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.phase == PhaseRunning {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}

	s.runID = uuid.NewString()
	s.agg = NewAggregator(cfg.Names, s.opts.Recorder)
	s.token = NewToken(ctx)
	s.done = make(chan struct{})
	s.phase = PhaseRunning

	agg, token, done, runID := s.agg, s.token, s.done, s.runID

	agg.Logf(LogInfo, "Initializing sniper...")
	agg.Logf(LogInfo, "Target: %d valid names", cfg.Names)
	agg.Logf(LogInfo, "Method: %s, Length: %d", cfg.Method, cfg.Length)
	agg.Flush()
	s.mu.Unlock()

	log := s.log.WithField("run_id", runID)
	log.WithFields(logrus.Fields{
		"names":       cfg.Names,
		"length":      cfg.Length,
		"method":      cfg.Method,
		"concurrency": cfg.Concurrency,
	}).Info("run started")

	s.notify(s.Snapshot())

	pool := NewPool(s.checker, PoolConfig{
		Run:        cfg,
		PaceMin:    s.opts.PaceMin,
		PaceJitter: s.opts.PaceJitter,
		Cooldown:   s.opts.Cooldown,
		NewSource:  s.opts.NewSource,
	}, log.WithField("component", "pool"))

	go s.run(pool, agg, token, done, log)
	return nil
}

func (s *Session) run(pool *Pool, agg *Aggregator, token *Token, done chan struct{}, log *logrus.Entry) {
	stopReporter := make(chan struct{})
	reporterDone := make(chan struct{})
	reporter := NewReporter(s.opts.FlushInterval, func() Snapshot {
		agg.Flush()
		return s.Snapshot()
	}, s.notify)
	go func() {
		defer close(reporterDone)
		reporter.Run(stopReporter)
	}()

	pool.Run(token, agg)

	close(stopReporter)
	<-reporterDone

	stopped := token.Aborted()
	token.release()

	final := "Process stopped by user."
	if !stopped {
		snap := agg.snapshot()
		final = fmt.Sprintf("Complete! Found %d valid names.", snap.Found)
	}
	agg.finish(stopped, final)

	s.mu.Lock()
	if stopped {
		s.phase = PhaseStopped
	} else {
		s.phase = PhaseCompleted
	}
	s.mu.Unlock()

	snap := s.Snapshot()
	log.WithFields(logrus.Fields{
		"phase":    snap.Phase,
		"found":    snap.Found,
		"attempts": snap.Attempts,
	}).Info("run settled")

	s.notify(snap)
	close(done)
}

// Stop requests cooperative cancellation. In-flight checks observe it at
// their next checkpoint. No-op when not running.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRunning || s.token.Aborted() {
		return
	}
	s.agg.Logf(LogFailure, "Stopping...")
	s.token.Abort()
}

// Done is closed when the current run has settled.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Wait blocks until the current run settles and returns the frozen state.
func (s *Session) Wait() Snapshot {
	<-s.Done()
	return s.Snapshot()
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseRunning
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	agg, phase, runID := s.agg, s.phase, s.runID
	s.mu.Unlock()

	snap := agg.snapshot()
	snap.RunID = runID
	snap.Phase = phase
	snap.IsRunning = phase == PhaseRunning
	return snap
}

func (s *Session) notify(snap Snapshot) {
	if s.opts.Observer != nil {
		s.opts.Observer(snap)
	}
}

package sniper

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tdh8316/rbxsniper/internal/checker"
	"github.com/tdh8316/rbxsniper/internal/config"
	"github.com/tdh8316/rbxsniper/internal/namegen"
)

const (
	DefaultPaceMin    = 50 * time.Millisecond
	DefaultPaceJitter = 50 * time.Millisecond
	DefaultCooldown   = time.Second
)

type PoolConfig struct {
	Run config.RunConfig

	// Every check waits PaceMin plus up to PaceJitter first.
	PaceMin    time.Duration
	PaceJitter time.Duration
	// Cooldown is the extra wait after an indeterminate outcome.
	Cooldown time.Duration

	// NewSource seeds one generator per worker. Nil uses crypto-seeded PCG.
	NewSource func(worker int) rand.Source
}

// Pool runs independent generate-check-record loops. Workers share only
// the token and the aggregator.
type Pool struct {
	checker checker.Checker
	cfg     PoolConfig
	log     *logrus.Entry
}

func NewPool(c checker.Checker, cfg PoolConfig, log *logrus.Entry) *Pool {
	if cfg.Run.Concurrency <= 0 {
		cfg.Run.Concurrency = 1
	}
	if cfg.PaceMin < 0 {
		cfg.PaceMin = 0
	}
	if cfg.PaceJitter < 0 {
		cfg.PaceJitter = 0
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pool{checker: c, cfg: cfg, log: log}
}

// Run returns once every worker has exited.
func (p *Pool) Run(token *Token, agg *Aggregator) {
	var wg sync.WaitGroup
	wg.Add(p.cfg.Run.Concurrency)
	for i := range p.cfg.Run.Concurrency {
		// Worker goroutines.
		go func() {
			defer wg.Done()
			p.worker(i, token, agg)
		}()
	}
	wg.Wait()
}

func (p *Pool) worker(id int, token *Token, agg *Aggregator) {
	var src rand.Source
	if p.cfg.NewSource != nil {
		src = p.cfg.NewSource(id)
	}
	gen := namegen.New(src)
	jitter := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(id)))
	log := p.log.WithField("worker", id)

	log.Debug("worker started")
	defer log.Debug("worker exited")

	for !agg.TargetReached() && !token.Aborted() {
		if !p.iterate(gen, jitter, token, agg, log) {
			return
		}
	}
}

// iterate runs one attempt and reports whether the worker should go on.
// A panic is logged as a system error and does not end the worker.
func (p *Pool) iterate(gen *namegen.Generator, jitter *rand.Rand, token *Token, agg *Aggregator, log *logrus.Entry) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("worker iteration panicked")
			agg.Logf(LogFailure, "System Error: %v", r)
			cont = sleep(token, p.cfg.Cooldown)
		}
	}()

	agg.AddAttempt()
	username := gen.Generate(p.cfg.Run)

	if !sleep(token, p.pace(jitter)) {
		return false
	}

	out, err := p.checker.Check(token.Context(), username)
	if err != nil {
		if errors.Is(err, context.Canceled) || token.Aborted() {
			return false
		}
		// Checkers only return cancellation; anything else is a bug in the checker.
		log.WithError(err).Error("unexpected checker error")
		agg.Logf(LogFailure, "System Error: %v", err)
		return sleep(token, p.cfg.Cooldown)
	}
	if token.Aborted() {
		return false
	}

	switch out.Status() {
	case checker.StatusValid:
		if agg.RecordValid(username) {
			log.WithField("username", username).Info("found available username")
		}
	case checker.StatusTaken:
		agg.RecordTaken(username, out.Code)
	default:
		log.WithField("username", username).WithError(out.Err).Debug("check failed")
		agg.RecordError(username, out.Err)
		return sleep(token, p.cfg.Cooldown)
	}
	return true
}

func (p *Pool) pace(r *rand.Rand) time.Duration {
	d := p.cfg.PaceMin
	if p.cfg.PaceJitter > 0 {
		d += time.Duration(r.Int64N(int64(p.cfg.PaceJitter)))
	}
	return d
}

// sleep waits for d and reports false if the token was aborted first.
func sleep(token *Token, d time.Duration) bool {
	if d <= 0 {
		return !token.Aborted()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return !token.Aborted()
	case <-token.Done():
		return !token.Aborted()
	}
}

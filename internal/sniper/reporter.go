package sniper

import "time"

// DefaultFlushInterval bounds how often observers see new state.
const DefaultFlushInterval = 100 * time.Millisecond

// Reporter periodically drains the aggregator buffers and publishes the
// result. It is the only drainer while a run is in progress.
type Reporter struct {
	interval time.Duration
	flush    func() Snapshot
	observer Observer
}

func NewReporter(interval time.Duration, flush func() Snapshot, observer Observer) *Reporter {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Reporter{interval: interval, flush: flush, observer: observer}
}

// Run ticks until stop is closed.
func (r *Reporter) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := r.flush()
			if r.observer != nil {
				r.observer(snap)
			}
		}
	}
}

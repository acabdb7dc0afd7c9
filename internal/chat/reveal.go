package chat

import (
	"sync"
	"time"
)

// Reveal cadence: a fixed-size batch of runes every tick, regardless of
// how bursty the network delivery was.
const (
	revealInterval = 20 * time.Millisecond
	revealBatch    = 2
)

// Revealer buffers streamed text and releases it to a sink at typing
// cadence. One revealer serves one store; it is never a process-wide
// singleton, so concurrent conversations cannot leak into each other.
//
// A generation counter guards against stale ticks: Stop bumps it, and a
// tick loop from an older generation exits without touching whatever is
// enqueued afterwards.
type Revealer struct {
	mu       sync.Mutex
	queue    []rune
	targetID string
	gen      int
	running  bool
	waiters  []chan struct{}

	sink     func(targetID, text string)
	interval time.Duration
	batch    int
}

// NewRevealer creates a revealer delivering batches through sink. The
// sink is called without internal locks held.
func NewRevealer(sink func(targetID, text string)) *Revealer {
	return newRevealerWithCadence(sink, revealInterval, revealBatch)
}

func newRevealerWithCadence(sink func(targetID, text string), interval time.Duration, batch int) *Revealer {
	return &Revealer{sink: sink, interval: interval, batch: batch}
}

// Enqueue buffers text for the target message and starts the tick loop
// if idle. Switching to a new target discards anything still buffered
// for the old one.
func (r *Revealer) Enqueue(targetID, text string) {
	if text == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if targetID != r.targetID {
		// A retarget invalidates anything still buffered for the old
		// message; a live tick loop carries on serving the new target.
		r.queue = r.queue[:0]
		r.targetID = targetID
	}
	r.queue = append(r.queue, []rune(text)...)

	if !r.running {
		r.running = true
		go r.run(r.gen)
	}
}

// Stop discards all buffered text and forces the revealer idle. Safe to
// call at any time, including when already idle.
func (r *Revealer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queue = nil
	r.targetID = ""
	r.gen++
	if r.running {
		r.running = false
		r.notifyIdleLocked()
	}
}

// Wait blocks until the revealer has drained its queue and gone idle.
// Returns immediately when nothing is revealing.
func (r *Revealer) Wait() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	r.waiters = append(r.waiters, ch)
	r.mu.Unlock()
	<-ch
}

func (r *Revealer) notifyIdleLocked() {
	for _, ch := range r.waiters {
		close(ch)
	}
	r.waiters = nil
}

func (r *Revealer) run(gen int) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for range ticker.C {
		r.mu.Lock()
		if gen != r.gen {
			// Superseded by Stop or a retarget; the successor loop (if
			// any) owns the queue now.
			r.mu.Unlock()
			return
		}
		if len(r.queue) == 0 {
			r.running = false
			r.notifyIdleLocked()
			r.mu.Unlock()
			return
		}

		n := r.batch
		if n > len(r.queue) {
			n = len(r.queue)
		}
		text := string(r.queue[:n])
		r.queue = r.queue[n:]
		target := r.targetID
		sink := r.sink
		r.mu.Unlock()

		sink(target, text)
	}
}

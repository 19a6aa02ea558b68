package countdown

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TickerFunc starts a ticker and returns its channel and a stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

// RealTicker is the TickerFunc backed by time.Ticker.
func RealTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Timer decrements a remaining-seconds budget once per interval, floored at
// zero, and reports every new value. Reaching zero is informational only.
type Timer struct {
	mu        sync.Mutex
	interval  time.Duration
	newTicker TickerFunc
	stop      chan struct{}
	done      chan struct{}
}

// Option configures a Timer.
type Option func(*Timer)

// WithTicker replaces the ticker source, mainly for tests.
func WithTicker(f TickerFunc) Option {
	return func(t *Timer) {
		t.newTicker = f
	}
}

// WithInterval changes the tick interval from the default of one second.
func WithInterval(d time.Duration) Option {
	return func(t *Timer) {
		t.interval = d
	}
}

func New(opts ...Option) *Timer {
	t := &Timer{interval: time.Second, newTicker: RealTicker}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Running reports whether a countdown is in progress.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// Start begins counting down from remaining, stopping any previous run
// first. onTick is called from the timer goroutine after each decrement.
func (t *Timer) Start(remaining int, onTick func(remaining int)) {
	t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()

	ticks, stopTicker := t.newTicker(t.interval)
	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done

	log.Debug().Int("remaining", remaining).Msg("countdown started")

	go func() {
		defer close(done)
		defer stopTicker()

		exhausted := remaining <= 0
		for {
			select {
			case <-stop:
				return
			case <-ticks:
			}

			// A stop that raced the tick wins.
			select {
			case <-stop:
				return
			default:
			}

			remaining = max(0, remaining-1)
			onTick(remaining)

			if remaining == 0 && !exhausted {
				exhausted = true
				log.Info().Msg("work budget exhausted")
			}
		}
	}()
}

// Stop halts the countdown and returns once the timer goroutine has exited,
// so no tick is delivered after Stop returns. It must not be called from
// within onTick.
func (t *Timer) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}

	close(stop)
	<-done

	log.Debug().Msg("countdown stopped")
}

package countdown

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) start(time.Duration) (<-chan time.Time, func()) {
	return m.ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.stopped = true
	}
}

func (m *manualTicker) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func TestTimer_Decrements(t *testing.T) {
	ticker := newManualTicker()
	timer := New(WithTicker(ticker.start))

	got := make(chan int, 10)
	timer.Start(3, func(remaining int) { got <- remaining })
	assert.True(t, timer.Running())

	for _, want := range []int{2, 1, 0, 0} {
		ticker.ch <- time.Now()
		select {
		case v := <-got:
			require.Equal(t, want, v)
		case <-time.After(time.Second):
			t.Fatal("tick not delivered")
		}
	}

	timer.Stop()
	assert.False(t, timer.Running())
	assert.True(t, ticker.isStopped())
}

func TestTimer_NoTicksAfterStop(t *testing.T) {
	ticker := newManualTicker()
	timer := New(WithTicker(ticker.start))

	var mu sync.Mutex
	calls := 0
	timer.Start(10, func(int) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	ticker.ch <- time.Now()
	timer.Stop()

	select {
	case ticker.ch <- time.Now():
		t.Fatal("tick accepted after stop")
	case <-time.After(50 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestTimer_RestartReplacesRun(t *testing.T) {
	first := newManualTicker()
	second := newManualTicker()
	tickers := []*manualTicker{first, second}
	timer := New(WithTicker(func(d time.Duration) (<-chan time.Time, func()) {
		tk := tickers[0]
		tickers = tickers[1:]
		return tk.start(d)
	}))

	got := make(chan int, 10)
	timer.Start(100, func(r int) { got <- r })
	timer.Start(50, func(r int) { got <- r })
	assert.True(t, first.isStopped())

	second.ch <- time.Now()
	assert.Equal(t, 49, <-got)

	timer.Stop()
}

func TestTimer_StopWithoutStart(t *testing.T) {
	timer := New()
	timer.Stop()
	assert.False(t, timer.Running())
}

func TestTimer_RealTicker(t *testing.T) {
	timer := New(WithInterval(5 * time.Millisecond))

	got := make(chan int, 100)
	timer.Start(2, func(r int) { got <- r })
	defer timer.Stop()

	assert.Equal(t, 1, <-got)
	assert.Equal(t, 0, <-got)
}

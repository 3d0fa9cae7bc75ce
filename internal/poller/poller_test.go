package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fetchGate позволяет тесту держать батч "в полёте" и отпускать его
// в нужный момент
type fetchGate struct {
	started chan struct{}
	release chan struct{}
	commits atomic.Int64
	fetches atomic.Int64
}

func newFetchGate() *fetchGate {
	return &fetchGate{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (g *fetchGate) fetch(ctx context.Context) (func(), error) {
	g.fetches.Add(1)
	g.started <- struct{}{}

	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return func() { g.commits.Add(1) }, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("condition not met in time")
}

func TestTickNoOverlap(t *testing.T) {
	gate := newFetchGate()
	p := New("test", time.Hour, time.Second, gate.fetch, testLogger())

	if !p.Tick() {
		t.Fatal("first tick must start a batch")
	}
	<-gate.started

	// Батч в полёте: тики отбрасываются
	if p.Tick() {
		t.Error("tick during in-flight batch must be dropped")
	}
	if p.Tick() {
		t.Error("tick during in-flight batch must be dropped")
	}

	close(gate.release)
	waitFor(t, func() bool { return gate.commits.Load() == 1 })

	if got := gate.fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestStaleGenerationDiscarded(t *testing.T) {
	var mu sync.Mutex
	applied := []int{}

	// Первый батч завершается последним и должен быть отброшен
	// по поколению
	var nextGen atomic.Int64
	slow := make(chan struct{})
	fast := make(chan struct{})

	p := New("test", time.Hour, time.Second, func(ctx context.Context) (func(), error) {
		gen := int(nextGen.Add(1))

		if gen == 1 {
			<-slow
		} else {
			<-fast
		}

		return func() {
			mu.Lock()
			applied = append(applied, gen)
			mu.Unlock()
		}, nil
	}, testLogger())

	if !p.Tick() {
		t.Fatal("first tick must start")
	}

	// Первый батч висит. finish() снимет inflight только после fetch,
	// поэтому второй тик возможен лишь после завершения первого.
	// Симулируем гонку напрямую через finish.
	p.mu.Lock()
	p.inflight = false
	p.status = Idle
	p.mu.Unlock()

	if !p.Tick() {
		t.Fatal("second tick must start")
	}

	// Завершаем второй (свежий) батч первым
	close(fast)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) == 1
	})

	// Теперь завершается первый (устаревший) - его commit отбрасывается
	close(slow)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if len(applied) != 1 || applied[0] != 2 {
		t.Errorf("applied = %v, want [2]", applied)
	}
}

func TestSuspendDiscardsInflightResult(t *testing.T) {
	gate := newFetchGate()
	p := New("test", time.Hour, time.Second, gate.fetch, testLogger())

	p.Tick()
	<-gate.started

	// Модал открылся, пока батч в полёте
	p.Suspend()

	close(gate.release)
	time.Sleep(50 * time.Millisecond)

	if got := gate.commits.Load(); got != 0 {
		t.Errorf("commits = %d, want 0 (suspended view must not be overwritten)", got)
	}

	if p.Status() != Suspended {
		t.Errorf("status = %v, want Suspended", p.Status())
	}
}

func TestSuspendBlocksTicks(t *testing.T) {
	gate := newFetchGate()
	p := New("test", time.Hour, time.Second, gate.fetch, testLogger())

	p.Suspend()

	if p.Tick() {
		t.Error("tick while suspended must be dropped")
	}
	p.ForceRefresh()

	if got := gate.fetches.Load(); got != 0 {
		t.Errorf("fetches = %d, want 0", got)
	}

	// Resume не навёрстывает пропущенные тики
	p.Resume()

	if p.Status() != Idle {
		t.Errorf("status after resume = %v, want Idle", p.Status())
	}
	if got := gate.fetches.Load(); got != 0 {
		t.Errorf("fetches after resume = %d, want 0 (no catch-up poll)", got)
	}
}

func TestCloseDropsInflightResult(t *testing.T) {
	gate := newFetchGate()
	p := New("test", time.Hour, time.Second, gate.fetch, testLogger())

	p.Tick()
	<-gate.started

	p.Close()

	close(gate.release)
	time.Sleep(50 * time.Millisecond)

	if got := gate.commits.Load(); got != 0 {
		t.Errorf("commits = %d, want 0 (closed poller must not apply)", got)
	}

	if p.Tick() {
		t.Error("tick after close must be dropped")
	}
}

func TestForceRefreshCoalesced(t *testing.T) {
	gate := newFetchGate()
	p := New("test", time.Hour, time.Second, gate.fetch, testLogger())

	p.Tick()
	<-gate.started

	// Несколько ForceRefresh во время полёта коалесцируются в один
	p.ForceRefresh()
	p.ForceRefresh()
	p.ForceRefresh()

	close(gate.release)

	// Завершение первого батча запускает ровно один отложенный
	<-gate.started
	waitFor(t, func() bool { return gate.fetches.Load() == 2 })

	time.Sleep(50 * time.Millisecond)
	if got := gate.fetches.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
}

func TestErrorKeepsSchedule(t *testing.T) {
	var calls atomic.Int64
	var errCount atomic.Int64

	p := New("test", time.Hour, time.Second, func(ctx context.Context) (func(), error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("backend down")
		}

		return func() {}, nil
	}, testLogger())

	p.SetErrorHandler(func(err error) { errCount.Add(1) })

	p.Tick()
	waitFor(t, func() bool { return errCount.Load() == 1 })

	// После ошибки поллер не застревает в Polling
	if p.Status() != Idle {
		t.Errorf("status after failed batch = %v, want Idle", p.Status())
	}

	if !p.Tick() {
		t.Error("tick after failed batch must start")
	}
	waitFor(t, func() bool { return calls.Load() == 2 })
}

package notify

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
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

func TestShowReplacesCurrent(t *testing.T) {
	c := NewCenter(testLogger())

	first := c.Show("saving...", Info)
	second := c.Show("saved", Success)

	current := c.Current()
	if current == nil || current.ID != second.ID {
		t.Fatalf("current = %+v, want the second toast", current)
	}
	if current.ID == first.ID {
		t.Error("first toast must be replaced, not kept")
	}
}

func TestAutoDismissTimerRestartsOnReplace(t *testing.T) {
	c := NewCenter(testLogger())
	c.ttl = 60 * time.Millisecond

	c.Show("first", Info)
	time.Sleep(40 * time.Millisecond)

	// Замена перезапускает отсчёт: старый таймер не должен скрыть
	// новое уведомление
	second := c.Show("second", Info)
	time.Sleep(40 * time.Millisecond)

	current := c.Current()
	if current == nil || current.ID != second.ID {
		t.Fatal("second toast must still be visible, timer was not restarted")
	}

	waitFor(t, func() bool { return c.Current() == nil })
}

func TestManualDismiss(t *testing.T) {
	c := NewCenter(testLogger())

	c.Show("message", Error)
	c.Dismiss()

	if c.Current() != nil {
		t.Error("toast must be hidden after Dismiss")
	}

	// Dismiss без текущего уведомления - no-op
	c.Dismiss()
}

func TestSinksAndChangeHandler(t *testing.T) {
	c := NewCenter(testLogger())
	c.ttl = 30 * time.Millisecond

	var mu sync.Mutex
	var delivered []Toast
	var changes []*Toast

	c.AddSink(SinkFunc(func(toast Toast) {
		mu.Lock()
		delivered = append(delivered, toast)
		mu.Unlock()
	}))
	c.SetChangeHandler(func(current *Toast) {
		mu.Lock()
		changes = append(changes, current)
		mu.Unlock()
	})

	c.Show("one", Warning)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 2 // показ + автоскрытие
	})

	mu.Lock()
	defer mu.Unlock()

	if len(delivered) != 1 || delivered[0].Message != "one" {
		t.Errorf("delivered = %+v, want single toast 'one'", delivered)
	}
	if changes[0] == nil || changes[1] != nil {
		t.Errorf("changes = [%v, %v], want [toast, nil]", changes[0], changes[1])
	}
}

package settings

import (
	"errors"
	"testing"

	"agent_console/pkg/models"
)

func TestEditorLifecycle(t *testing.T) {
	opens, closes := 0, 0
	e := NewEditor(func() { opens++ }, func() { closes++ })

	confirmed := models.Settings{"LEVERAGE": 10.0, "LIVE_TRADING": true}

	draft, err := e.Open(confirmed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opens != 1 {
		t.Errorf("opens = %d, want 1", opens)
	}
	if draft["LEVERAGE"] != 10.0 {
		t.Errorf("draft seeded from confirmed, got %v", draft["LEVERAGE"])
	}

	// Повторное открытие блокируется
	if _, err := e.Open(confirmed); !errors.Is(err, ErrEditorOpen) {
		t.Errorf("second Open = %v, want ErrEditorOpen", err)
	}

	// Правка трогает только черновик
	if err := e.Set("LEVERAGE", float64(20)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if confirmed["LEVERAGE"] != 10.0 {
		t.Error("confirmed copy must stay untouched while editing")
	}

	got, err := e.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got["LEVERAGE"] != float64(20) {
		t.Errorf("committed LEVERAGE = %v, want 20", got["LEVERAGE"])
	}
	if closes != 1 {
		t.Errorf("closes = %d, want 1", closes)
	}
	if e.IsOpen() {
		t.Error("editor must be closed after Commit")
	}
}

func TestEditorCancelDiscardsDraft(t *testing.T) {
	closes := 0
	e := NewEditor(nil, func() { closes++ })

	if _, err := e.Open(models.Settings{"LEVERAGE": 10.0}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := e.Set("LEVERAGE", float64(50)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	e.Cancel()

	if closes != 1 {
		t.Errorf("closes = %d, want 1", closes)
	}
	if _, err := e.Draft(); !errors.Is(err, ErrEditorClosed) {
		t.Errorf("Draft after Cancel = %v, want ErrEditorClosed", err)
	}

	// Cancel закрытого редактора - no-op
	e.Cancel()
	if closes != 1 {
		t.Errorf("closes after double Cancel = %d, want 1", closes)
	}
}

func TestEditorSetValidates(t *testing.T) {
	e := NewEditor(nil, nil)

	if _, err := e.Open(models.Settings{}); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := e.Set("LEVERAGE", float64(500)); err == nil {
		t.Error("Set must reject out-of-range value")
	}
	if err := e.Set("NOT_A_SETTING", 1); err == nil {
		t.Error("Set must reject unknown key")
	}

	draft, err := e.Draft()
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if _, exists := draft["LEVERAGE"]; exists {
		t.Error("rejected edit must not land in draft")
	}
}

func TestEditorClosedOperations(t *testing.T) {
	e := NewEditor(nil, nil)

	if err := e.Set("LEVERAGE", float64(10)); !errors.Is(err, ErrEditorClosed) {
		t.Errorf("Set on closed editor = %v, want ErrEditorClosed", err)
	}
	if _, err := e.Commit(); !errors.Is(err, ErrEditorClosed) {
		t.Errorf("Commit on closed editor = %v, want ErrEditorClosed", err)
	}
}

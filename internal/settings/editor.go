package settings

import (
	"errors"
	"sync"

	"agent_console/pkg/models"
)

var (
	ErrEditorClosed = errors.New("settings editor is not open")
	ErrEditorOpen   = errors.New("settings editor is already open")
)

// Editor - двухуровневая модель настроек: подтверждённая копия живёт
// в state.Store, черновик - здесь. Черновик засевается из
// подтверждённой копии при открытии, правки трогают только черновик,
// фоновый опрос на время редактирования приостановлен (Suspended).
type Editor struct {
	mu    sync.Mutex
	open  bool
	draft models.Settings

	// хуки приостановки опроса на время редактирования
	onOpen  func()
	onClose func()
}

// NewEditor создаёт редактор. onOpen/onClose вызываются при
// открытии/закрытии поверхности редактирования (Suspend/Resume poller).
func NewEditor(onOpen, onClose func()) *Editor {
	return &Editor{
		onOpen:  onOpen,
		onClose: onClose,
	}
}

// Open открывает редактор и засевает черновик из подтверждённой копии
func (e *Editor) Open(confirmed models.Settings) (models.Settings, error) {
	e.mu.Lock()

	if e.open {
		e.mu.Unlock()
		return nil, ErrEditorOpen
	}

	e.open = true
	e.draft = confirmed.Clone()
	draft := e.draft.Clone()
	e.mu.Unlock()

	if e.onOpen != nil {
		e.onOpen()
	}

	return draft, nil
}

// IsOpen сообщает, открыта ли поверхность редактирования
func (e *Editor) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.open
}

// Set применяет одну правку к черновику после валидации по схеме
func (e *Editor) Set(key string, value any) error {
	normalized, err := Normalize(key, value)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.open {
		return ErrEditorClosed
	}

	e.draft[key] = normalized

	return nil
}

// Draft возвращает копию текущего черновика
func (e *Editor) Draft() (models.Settings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.open {
		return nil, ErrEditorClosed
	}

	return e.draft.Clone(), nil
}

// Cancel закрывает редактор, отбрасывая черновик.
// Подтверждённая копия остаётся нетронутой.
func (e *Editor) Cancel() {
	e.mu.Lock()

	if !e.open {
		e.mu.Unlock()
		return
	}

	e.open = false
	e.draft = nil
	e.mu.Unlock()

	if e.onClose != nil {
		e.onClose()
	}
}

// Commit закрывает редактор после подтверждённого бэкендом сохранения
// и возвращает черновик, ставший новой подтверждённой копией.
// Вызывается только после успешного PUT.
func (e *Editor) Commit() (models.Settings, error) {
	e.mu.Lock()

	if !e.open {
		e.mu.Unlock()
		return nil, ErrEditorClosed
	}

	confirmed := e.draft
	e.open = false
	e.draft = nil
	e.mu.Unlock()

	if e.onClose != nil {
		e.onClose()
	}

	return confirmed, nil
}

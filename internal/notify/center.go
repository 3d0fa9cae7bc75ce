package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity уведомления
type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
	Warning Severity = "warning"
	Info    Severity = "info"
)

// Toast - одно видимое пользователю уведомление
type Toast struct {
	ID       string    `json:"id"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	ShownAt  time.Time `json:"shown_at"`
}

// Sink получает каждое показанное уведомление (WebSocket push,
// Telegram relay, журнал в sqlite)
type Sink interface {
	Notify(toast Toast)
}

// SinkFunc адаптирует функцию к интерфейсу Sink
type SinkFunc func(toast Toast)

func (f SinkFunc) Notify(toast Toast) {
	f(toast)
}

const defaultTTL = 5 * time.Second

// Center - очередь уведомлений глубиной один: новое уведомление
// заменяет текущее, таймер автоскрытия перезапускается. Ручное
// скрытие доступно всегда.
type Center struct {
	logger *slog.Logger
	ttl    time.Duration

	mu      sync.Mutex
	current *Toast
	timer   *time.Timer
	sinks   []Sink

	// onChange вызывается при смене текущего уведомления
	// (nil - уведомление скрыто)
	onChange func(current *Toast)
}

func NewCenter(logger *slog.Logger) *Center {
	return &Center{
		logger: logger,
		ttl:    defaultTTL,
	}
}

// AddSink подключает получателя уведомлений
func (c *Center) AddSink(sink Sink) {
	c.mu.Lock()
	c.sinks = append(c.sinks, sink)
	c.mu.Unlock()
}

// SetChangeHandler регистрирует подписчика смены текущего уведомления
func (c *Center) SetChangeHandler(f func(current *Toast)) {
	c.mu.Lock()
	c.onChange = f
	c.mu.Unlock()
}

// Show показывает уведомление, заменяя текущее. Таймер автоскрытия
// (5 секунд) перезапускается при каждой замене.
func (c *Center) Show(message string, severity Severity) Toast {
	toast := Toast{
		ID:       uuid.NewString(),
		Message:  message,
		Severity: severity,
		ShownAt:  time.Now(),
	}

	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.current = &toast
	id := toast.ID
	c.timer = time.AfterFunc(c.ttl, func() {
		c.dismissID(id)
	})
	sinks := append([]Sink(nil), c.sinks...)
	onChange := c.onChange
	c.mu.Unlock()

	c.logger.Debug("Toast shown",
		slog.String("severity", string(severity)),
		slog.String("message", message))

	if onChange != nil {
		onChange(&toast)
	}
	for _, sink := range sinks {
		sink.Notify(toast)
	}

	return toast
}

// Dismiss скрывает текущее уведомление (ручное закрытие)
func (c *Center) Dismiss() {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.current = nil
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(nil)
	}
}

// Current возвращает видимое сейчас уведомление (nil если нет)
func (c *Center) Current() *Toast {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}
	copied := *c.current

	return &copied
}

// dismissID скрывает уведомление по таймеру, только если оно всё ещё
// текущее (замена перезапускает отсчёт заново)
func (c *Center) dismissID(id string) {
	c.mu.Lock()
	if c.current == nil || c.current.ID != id {
		c.mu.Unlock()
		return
	}
	c.current = nil
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(nil)
	}
}

package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Status - состояние цикла опроса одного view
type Status int

const (
	Idle Status = iota
	Polling
	Suspended
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// FetchFunc выполняет один батч чтений (fan-out/fan-in) и возвращает
// commit-замыкание, атомарно применяющее результат к состоянию view.
// Poller сам решает, вызывать ли commit: устаревшие (по поколению),
// пришедшие после Close или во время Suspended результаты отбрасываются.
type FetchFunc func(ctx context.Context) (commit func(), err error)

// Poller - цикл периодической сверки одного view с бэкендом.
//
// Инварианты:
//   - не более одного батча в полёте: тик во время Polling отбрасывается;
//   - монотонный счётчик поколений не даёт медленному старому ответу
//     затереть уже применённый новый;
//   - после Close ни один in-flight результат не применяется;
//   - ошибка батча не останавливает таймер - следующий тик по расписанию.
type Poller struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	fetch    FetchFunc
	logger   *slog.Logger

	// onError показывает пользователю единичную ошибку батча
	onError func(err error)

	mu            sync.Mutex
	status        Status
	closed        bool
	inflight      bool
	refreshQueued bool
	gen           uint64 // поколение последнего запущенного батча
	lastApplied   uint64 // поколение последнего применённого батча
}

// New создаёт poller для одного view. interval - период таймера,
// timeout - предел длительности одного батча.
func New(name string, interval, timeout time.Duration, fetch FetchFunc, logger *slog.Logger) *Poller {
	return &Poller{
		name:     name,
		interval: interval,
		timeout:  timeout,
		fetch:    fetch,
		logger:   logger,
	}
}

// SetErrorHandler регистрирует показ ошибок фонового опроса
func (p *Poller) SetErrorHandler(f func(err error)) {
	p.onError = f
}

// Run гонит цикл опроса до отмены контекста. Первый батч запускается
// сразу (mount view), дальше по таймеру.
func (p *Poller) Run(ctx context.Context) {
	p.Tick()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Close()
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick запускает один батч. Возвращает false, если тик отброшен
// (уже есть батч в полёте, view приостановлен или закрыт).
func (p *Poller) Tick() bool {
	p.mu.Lock()

	if p.closed || p.inflight || p.status == Suspended {
		if p.inflight {
			p.logger.Debug("Poll tick dropped, batch in flight",
				slog.String("poller", p.name))
		}
		p.mu.Unlock()

		return false
	}

	p.gen++
	gen := p.gen
	p.status = Polling
	p.inflight = true
	p.mu.Unlock()

	go p.poll(gen)

	return true
}

// ForceRefresh запускает внеочередной батч после успешной мутации,
// не дожидаясь следующего тика. Если батч уже в полёте, новый
// запускается сразу по его завершении (коалесценция).
func (p *Poller) ForceRefresh() {
	p.mu.Lock()

	if p.closed || p.status == Suspended {
		p.mu.Unlock()
		return
	}

	if p.inflight {
		p.refreshQueued = true
		p.mu.Unlock()

		return
	}

	p.mu.Unlock()
	p.Tick()
}

// Suspend переводит view в Suspended (открыт блокирующий модал).
// Результат батча, находящегося в полёте, будет отброшен.
func (p *Poller) Suspend() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.status = Suspended
	p.refreshQueued = false

	p.logger.Debug("Polling suspended", slog.String("poller", p.name))
}

// Resume снимает приостановку. Пропущенные тики не навёрстываются:
// следующий опрос произойдёт по таймеру.
func (p *Poller) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.status != Suspended {
		return
	}

	if p.inflight {
		p.status = Polling
	} else {
		p.status = Idle
	}

	p.logger.Debug("Polling resumed", slog.String("poller", p.name))
}

// Close останавливает применение любых будущих результатов (unmount view).
func (p *Poller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.refreshQueued = false
}

// Status возвращает текущее состояние цикла
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.status
}

func (p *Poller) poll(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	commit, err := p.fetch(ctx)
	p.finish(gen, commit, err)
}

func (p *Poller) finish(gen uint64, commit func(), err error) {
	p.mu.Lock()

	p.inflight = false

	// Dead-view guard: после Close ничего не применяем
	if p.closed {
		p.mu.Unlock()
		return
	}

	apply := false
	switch {
	case err != nil:
		// ошибка обрабатывается ниже, вне мьютекса
	case gen <= p.lastApplied:
		p.logger.Warn("Stale poll response discarded",
			slog.String("poller", p.name),
			slog.Uint64("gen", gen),
			slog.Uint64("last_applied", p.lastApplied))
	case p.status == Suspended:
		// Модал открылся, пока батч был в полёте - не затираем черновик
		p.logger.Debug("Poll result discarded, view is suspended",
			slog.String("poller", p.name))
	default:
		p.lastApplied = gen
		apply = true
	}

	if p.status == Polling {
		p.status = Idle
	}

	runQueued := p.refreshQueued && p.status == Idle
	p.refreshQueued = false
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("Poll batch failed",
			slog.String("poller", p.name),
			slog.Any("error", err))

		if p.onError != nil {
			p.onError(err)
		}
	} else if apply && commit != nil {
		commit()
	}

	if runQueued {
		p.Tick()
	}
}

package state

import (
	"sort"
	"sync"
	"time"

	"agent_console/pkg/models"
)

// Snapshot - результат одного батча сверки дашборда.
// Применяется целиком: либо все срезы, либо ни одного.
type Snapshot struct {
	Dashboard *models.DashboardData
	Positions []models.ManagedPosition
	Settings  models.Settings
	Events    []models.Event
}

// View - состояние, отдаваемое наружу (UI, telegram)
type View struct {
	Rev        uint64                   `json:"rev"`
	Dashboard  *models.DashboardData    `json:"dashboard"`
	Positions  []models.ManagedPosition `json:"positions"`
	Settings   models.Settings          `json:"settings"`
	Events     []models.Event           `json:"events"`
	Candidates []models.Candidate       `json:"candidates"`
	Busy       []string                 `json:"busy"`
}

// Store - локальное зеркало состояния бэкенда.
// Каждый commit увеличивает rev; подписчик (WebSocket push) получает
// уведомление и забирает свежий View.
type Store struct {
	mu         sync.RWMutex
	rev        uint64
	dashboard  *models.DashboardData
	positions  []models.ManagedPosition
	settings   models.Settings
	events     []models.Event
	candidates []models.Candidate
	busy       map[string]struct{}

	onChange func(rev uint64)
}

func New() *Store {
	return &Store{
		busy: make(map[string]struct{}),
	}
}

// SetChangeHandler регистрирует подписчика изменений состояния
func (s *Store) SetChangeHandler(f func(rev uint64)) {
	s.mu.Lock()
	s.onChange = f
	s.mu.Unlock()
}

// ApplySnapshot атомарно заменяет все срезы дашборда результатом батча.
// Полузаполненные снапшоты сюда не попадают: батч либо успешен целиком,
// либо отбрасывается poller'ом.
func (s *Store) ApplySnapshot(snap Snapshot) {
	if snap.Dashboard != nil {
		snap.Dashboard.TradeHistory = normalizeHistory(snap.Dashboard.TradeHistory)
	}

	s.mu.Lock()
	s.dashboard = snap.Dashboard
	s.positions = dedupePositions(snap.Positions)
	s.settings = snap.Settings
	s.events = snap.Events
	s.rev++
	rev, onChange := s.rev, s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(rev)
	}
}

// ReplaceCandidates заменяет весь набор кандидатов сканера
func (s *Store) ReplaceCandidates(candidates []models.Candidate) {
	s.mu.Lock()
	s.candidates = dedupeCandidates(candidates)
	s.rev++
	rev, onChange := s.rev, s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(rev)
	}
}

// UpdateCandidate заменяет одного кандидата по символу (точечный refresh).
// Кандидаты, которых не удалось обновить, сохраняют прежнее значение.
func (s *Store) UpdateCandidate(candidate models.Candidate) {
	s.mu.Lock()
	replaced := false
	for i := range s.candidates {
		if s.candidates[i].Symbol == candidate.Symbol {
			s.candidates[i] = candidate
			replaced = true

			break
		}
	}
	if !replaced {
		s.candidates = append(s.candidates, candidate)
	}
	s.rev++
	rev, onChange := s.rev, s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(rev)
	}
}

// SetBusy помечает сущность занятой на время мутирующего вызова.
// Возвращает false, если сущность уже занята (повторное действие
// по той же строке блокируется, действия по другим - независимы).
func (s *Store) SetBusy(id string) bool {
	s.mu.Lock()
	if _, exists := s.busy[id]; exists {
		s.mu.Unlock()
		return false
	}
	s.busy[id] = struct{}{}
	s.rev++
	rev, onChange := s.rev, s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(rev)
	}

	return true
}

// ClearBusy снимает пометку занятости
func (s *Store) ClearBusy(id string) {
	s.mu.Lock()
	if _, exists := s.busy[id]; !exists {
		s.mu.Unlock()
		return
	}
	delete(s.busy, id)
	s.rev++
	rev, onChange := s.rev, s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(rev)
	}
}

// IsBusy сообщает, занята ли сущность
func (s *Store) IsBusy(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.busy[id]
	return exists
}

// Rev возвращает текущую ревизию состояния
func (s *Store) Rev() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.rev
}

// Settings возвращает подтверждённую копию настроек
func (s *Store) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings.Clone()
}

// SetSettings заменяет подтверждённую копию настроек
// (после успешного сохранения черновика)
func (s *Store) SetSettings(settings models.Settings) {
	s.mu.Lock()
	s.settings = settings.Clone()
	s.rev++
	rev, onChange := s.rev, s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(rev)
	}
}

// Positions возвращает копию списка позиций
func (s *Store) Positions() []models.ManagedPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.ManagedPosition(nil), s.positions...)
}

// Candidates возвращает копию списка кандидатов
func (s *Store) Candidates() []models.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.Candidate(nil), s.candidates...)
}

// Dashboard возвращает последний снапшот дашборда (может быть nil)
func (s *Store) Dashboard() *models.DashboardData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dashboard
}

// View собирает полное состояние для выдачи наружу
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	busy := make([]string, 0, len(s.busy))
	for id := range s.busy {
		busy = append(busy, id)
	}
	sort.Strings(busy)

	return View{
		Rev:        s.rev,
		Dashboard:  s.dashboard,
		Positions:  append([]models.ManagedPosition(nil), s.positions...),
		Settings:   s.settings.Clone(),
		Events:     append([]models.Event(nil), s.events...),
		Candidates: append([]models.Candidate(nil), s.candidates...),
		Busy:       busy,
	}
}

// dedupePositions схлопывает дубликаты символов: последний выигрывает,
// порядок первого вхождения сохраняется.
func dedupePositions(positions []models.ManagedPosition) []models.ManagedPosition {
	index := make(map[string]int, len(positions))
	out := positions[:0:0]

	for _, pos := range positions {
		if i, seen := index[pos.Symbol]; seen {
			out[i] = pos
			continue
		}
		index[pos.Symbol] = len(out)
		out = append(out, pos)
	}

	return out
}

func dedupeCandidates(candidates []models.Candidate) []models.Candidate {
	index := make(map[string]int, len(candidates))
	out := candidates[:0:0]

	for _, c := range candidates {
		if i, seen := index[c.Symbol]; seen {
			out[i] = c
			continue
		}
		index[c.Symbol] = len(out)
		out = append(out, c)
	}

	return out
}

// normalizeHistory отбрасывает сделки с closed_at в будущем и
// сортирует историю от новых к старым независимо от порядка бэкенда.
func normalizeHistory(history []models.ClosedTrade) []models.ClosedTrade {
	now := time.Now()
	out := make([]models.ClosedTrade, 0, len(history))

	for _, trade := range history {
		if trade.ClosedAt.After(now) {
			continue
		}
		out = append(out, trade)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ClosedAt.Time.After(out[j].ClosedAt.Time)
	})

	return out
}

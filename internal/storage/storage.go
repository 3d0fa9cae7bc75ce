package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Storage - локальная база консоли. Хранит токен сессии бэкенда
// (аналог localStorage браузерной версии), кэш последнего снапшота
// для показа до первой успешной сверки и журнал уведомлений.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// New открывает (и при необходимости создаёт) базу консоли
func New(dbPath string, logger *slog.Logger) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	storage := &Storage{
		db:     db,
		logger: logger,
	}

	if err := storage.init(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// init инициализирует таблицы БД
func (s *Storage) init() error {
	migrationSQL := `
-- Сессия бэкенда (одна строка)
CREATE TABLE if NOT EXISTS backend_session (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    token TEXT NOT NULL,
    saved_at DATETIME NOT NULL
);

-- Кэш последних снапшотов состояния (по имени view)
CREATE TABLE if NOT EXISTS snapshot_cache (
    name TEXT PRIMARY KEY,
    payload TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);

-- Журнал показанных уведомлений
CREATE TABLE if NOT EXISTS notification_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    severity TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX if NOT EXISTS idx_notification_created ON notification_log(created_at DESC);
`

	if _, err := s.db.Exec(migrationSQL); err != nil {
		return fmt.Errorf("failed to run migration: %w", err)
	}

	s.logger.Debug("Console database initialized")

	return nil
}

// Close закрывает базу
func (s *Storage) Close() error {
	return s.db.Close()
}

// === Токен сессии бэкенда ===

// SaveBackendToken сохраняет токен, переживающий рестарт консоли
func (s *Storage) SaveBackendToken(token string) error {
	_, err := s.db.Exec(`
		INSERT INTO backend_session (id, token, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token, saved_at = excluded.saved_at`,
		token, time.Now().UTC())

	return err
}

// LoadBackendToken возвращает сохранённый токен ("" если его нет)
func (s *Storage) LoadBackendToken() (string, error) {
	var token string
	err := s.db.QueryRow(`SELECT token FROM backend_session WHERE id = 1`).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return token, nil
}

// ClearBackendToken удаляет сохранённый токен
func (s *Storage) ClearBackendToken() error {
	_, err := s.db.Exec(`DELETE FROM backend_session WHERE id = 1`)
	return err
}

// === Кэш снапшотов ===

// SaveSnapshot сериализует и сохраняет снапшот view
func (s *Storage) SaveSnapshot(name string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %q: %w", name, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO snapshot_cache (name, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		name, string(encoded), time.Now().UTC())

	return err
}

// LoadSnapshot читает снапшот в out. Возвращает false, если кэша нет.
func (s *Storage) LoadSnapshot(name string, out any) (bool, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM snapshot_cache WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return false, fmt.Errorf("failed to decode snapshot %q: %w", name, err)
	}

	return true, nil
}

// === Журнал уведомлений ===

// NotificationRecord - одна запись журнала уведомлений
type NotificationRecord struct {
	ID        int       `json:"id"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// LogNotification пишет показанное уведомление в журнал
func (s *Storage) LogNotification(severity, message string) error {
	_, err := s.db.Exec(`INSERT INTO notification_log (severity, message) VALUES (?, ?)`,
		severity, message)

	return err
}

// Notifications возвращает последние записи журнала, новые первыми
func (s *Storage) Notifications(limit int) ([]NotificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, severity, message, created_at
		FROM notification_log
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []NotificationRecord
	for rows.Next() {
		var record NotificationRecord
		if err := rows.Scan(&record.ID, &record.Severity, &record.Message, &record.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

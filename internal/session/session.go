package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"agent_console/pkg/models"
	"agent_console/pkg/services/httpmiddleware"

	"github.com/golang-jwt/jwt/v5"
)

const loginTimeout = 15 * time.Second

// TokenStore - персистентное хранилище токена бэкенда
// (аналог localStorage из браузерной версии)
type TokenStore interface {
	SaveBackendToken(token string) error
	LoadBackendToken() (string, error)
	ClearBackendToken() error
}

// Manager управляет сессией с бэкендом агента.
// Токен - единственный разделяемый между view ресурс: читается каждым
// исходящим запросом, пишется только login/logout.
type Manager struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	store      TokenStore

	mu            sync.RWMutex
	token         string
	authenticated bool

	// onError показывает пользователю ошибку логина (toast)
	onError func(message string)
	// onChange уведомляет подписчиков о смене состояния сессии
	onChange func(authenticated bool)
}

// New создаёт менеджер сессии. store может быть nil - тогда токен
// живёт только в памяти процесса.
func New(baseURL string, store TokenStore, logger *slog.Logger) *Manager {
	// Логин идёт form-encoded и без bearer, поэтому у менеджера
	// свой HTTP клиент, отдельный от JSON API клиента.
	httpClient := &http.Client{
		Timeout: loginTimeout,
		Transport: httpmiddleware.Wrap(
			httpmiddleware.DefaultTransport(),
			httpmiddleware.Logger(logger, -1),
		),
	}

	return &Manager{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		store:      store,
	}
}

// SetErrorHandler регистрирует показ ошибок логина пользователю
func (m *Manager) SetErrorHandler(f func(message string)) {
	m.onError = f
}

// SetChangeHandler регистрирует подписчика состояния сессии
func (m *Manager) SetChangeHandler(f func(authenticated bool)) {
	m.onChange = f
}

// Token возвращает текущий bearer токен ("" если сессии нет)
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.token
}

// Authenticated сообщает, есть ли активная сессия
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.authenticated
}

// Login обменивает учётные данные на токен через form-encoded endpoint.
// При неудаче показывает пользователю ошибку и возвращает false,
// состояние сессии не меняется.
func (m *Manager) Login(ctx context.Context, username, password string) bool {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		m.reportError(fmt.Sprintf("login request failed: %v", err))
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.reportError(fmt.Sprintf("backend unreachable: %v", err))
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		m.reportError(fmt.Sprintf("login response unreadable: %v", err))
		return false
	}

	if resp.StatusCode != http.StatusOK {
		detail := loginDetail(body, resp.StatusCode)
		m.logger.Warn("Login rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("detail", detail))
		m.reportError(detail)

		return false
	}

	var tokenResp models.TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil || tokenResp.AccessToken == "" {
		m.reportError("login succeeded but token is missing in response")
		return false
	}

	m.setToken(tokenResp.AccessToken)

	if m.store != nil {
		if err := m.store.SaveBackendToken(tokenResp.AccessToken); err != nil {
			m.logger.Error("Failed to persist backend token", slog.Any("error", err))
		}
	}

	m.logger.Info("✅ Logged in to agent backend",
		slog.String("user", username),
		slog.Time("token_expires", m.ExpiresAt()))

	return true
}

// Logout безусловно очищает токен и флаг аутентификации.
// Повторный вызов - no-op помимо очистки состояния.
func (m *Manager) Logout() {
	m.mu.Lock()
	wasAuthenticated := m.authenticated
	m.token = ""
	m.authenticated = false
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.ClearBackendToken(); err != nil {
			m.logger.Error("Failed to clear persisted token", slog.Any("error", err))
		}
	}

	if wasAuthenticated {
		m.logger.Info("🔒 Session closed")

		if m.onChange != nil {
			m.onChange(false)
		}
	}
}

// Expire - воронка для 401 с любого endpoint'а.
// Сессия уже мертва на стороне бэкенда, локально только фиксируем.
func (m *Manager) Expire() {
	if !m.Authenticated() {
		return
	}

	m.logger.Warn("⚠️ Backend rejected the session token (401), logging out")
	m.Logout()

	if m.onError != nil {
		m.onError("Session expired. Please log in again.")
	}
}

// Restore поднимает сохранённый токен из хранилища.
// Просроченный или отсутствующий токен игнорируется.
func (m *Manager) Restore() bool {
	if m.store == nil {
		return false
	}

	token, err := m.store.LoadBackendToken()
	if err != nil || token == "" {
		return false
	}

	expires := tokenExpiry(token)
	if !expires.IsZero() && time.Now().After(expires) {
		m.logger.Info("Stored backend token is expired, ignoring")
		m.store.ClearBackendToken()

		return false
	}

	m.setToken(token)
	m.logger.Info("✅ Restored backend session from storage",
		slog.Time("token_expires", expires))

	return true
}

// ExpiresAt возвращает срок действия текущего токена
// (нулевое время, если токен отсутствует или без exp claim)
func (m *Manager) ExpiresAt() time.Time {
	return tokenExpiry(m.Token())
}

func (m *Manager) setToken(token string) {
	m.mu.Lock()
	m.token = token
	m.authenticated = true
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(true)
	}
}

func (m *Manager) reportError(message string) {
	if m.onError != nil {
		m.onError(message)
	}
}

// tokenExpiry читает exp claim без проверки подписи.
// Подпись знает только бэкенд; нам нужен лишь срок действия.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}

	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}

	if claims.ExpiresAt == nil {
		return time.Time{}
	}

	return claims.ExpiresAt.Time
}

func loginDetail(body []byte, status int) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}

	return fmt.Sprintf("login failed with HTTP %d", status)
}

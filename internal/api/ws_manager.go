package api

import (
	"log/slog"
	"net/http"
	"sync"

	"agent_console/internal/notify"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// UI раздается этим же сервером
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSMessage событие, отправляемое в браузер
type WSMessage struct {
	Type  string `json:"type"` // state | toast | session
	Rev   uint64 `json:"rev,omitempty"`
	Toast any    `json:"toast,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// WSManager рассылает события об изменении состояния подключенным клиентам
type WSManager struct {
	clients map[string]*wsClient
	mu      sync.RWMutex
	logger  *slog.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan WSMessage
}

func NewWSManager(logger *slog.Logger) *WSManager {
	return &WSManager{
		clients: make(map[string]*wsClient),
		logger:  logger,
	}
}

// HandleWS апгрейдит соединение и регистрирует клиента
func (m *WSManager) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("Failed to upgrade websocket", "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan WSMessage, 16),
	}

	clientID := uuid.New().String()

	m.mu.Lock()
	m.clients[clientID] = client
	m.mu.Unlock()

	m.logger.Info("Browser client connected", slog.String("client_id", clientID))

	go m.writeLoop(clientID, client)
	go m.readLoop(clientID, client)
}

// NotifyStateChanged сообщает клиентам о новой ревизии состояния
func (m *WSManager) NotifyStateChanged(rev uint64) {
	m.broadcast(WSMessage{Type: "state", Rev: rev})
}

// NotifyToast сообщает клиентам о смене активного уведомления
func (m *WSManager) NotifyToast(toast *notify.Toast) {
	m.broadcast(WSMessage{Type: "toast", Toast: toast})
}

// NotifySession сообщает клиентам о смене статуса сессии агента
func (m *WSManager) NotifySession(authenticated bool) {
	m.broadcast(WSMessage{Type: "session", Data: map[string]bool{"authenticated": authenticated}})
}

func (m *WSManager) broadcast(msg WSMessage) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for clientID, client := range m.clients {
		select {
		case client.send <- msg:
		default:
			// Медленный клиент, не блокируем рассылку
			m.logger.Warn("Dropping websocket message", slog.String("client_id", clientID))
		}
	}
}

func (m *WSManager) writeLoop(clientID string, client *wsClient) {
	defer m.remove(clientID)

	for msg := range client.send {
		if err := client.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (m *WSManager) readLoop(clientID string, client *wsClient) {
	defer m.remove(clientID)

	for {
		// Входящие сообщения не используются, читаем только ради close frames
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (m *WSManager) remove(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[clientID]
	if !ok {
		return
	}

	delete(m.clients, clientID)
	close(client.send)
	client.conn.Close()

	m.logger.Info("Browser client disconnected", slog.String("client_id", clientID))
}

package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pictionary/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 畫筆事件可能較大
	sendBufferSize = 256
)

// InboundHandler 處理從連線讀到的事件
type InboundHandler interface {
	HandleEvent(ctx context.Context, connID string, evt models.InboundEvent)
	HandleInvalid(connID string, err error)
	HandleDisconnect(ctx context.Context, connID string, roomIDs []string)
}

// Client 代表一個 WebSocket 客戶端連接
type Client struct {
	ID       string          // 連線 ID，同時作為玩家 ID
	Conn     *websocket.Conn // WebSocket 連接
	SendChan chan []byte     // 已編碼的訊息，由 writePump 依序寫出

	rooms     map[string]struct{} // 已訂閱的房間，受 WebSocketManager.clientsMux 保護
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		SendChan: make(chan []byte, sendBufferSize),
		rooms:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// close 關閉連線，可重複呼叫
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.Conn.Close()
	})
}

// WebSocketManager 管理所有連線與房間的訂閱關係
type WebSocketManager struct {
	clients    map[string]*Client          // connID -> client
	rooms      map[string]map[*Client]bool // roomID -> client -> bool
	clientsMux sync.RWMutex                // 保護 clients、rooms 與 Client.rooms，不在持有時做 I/O
	logger     *zap.Logger
}

// NewWebSocketManager 創建並初始化新的 WebSocket 管理器
func NewWebSocketManager(logger *zap.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[*Client]bool),
		logger:  logger,
	}
}

// HandleConnection 處理新的 WebSocket 連接，阻塞到連線結束
func (m *WebSocketManager) HandleConnection(ctx context.Context, conn *websocket.Conn, handler InboundHandler) {
	client := newClient(conn)
	m.addClient(client)
	log := m.logger.With(zap.String("conn_id", client.ID))
	log.Info("client connected", zap.String("remote_addr", conn.RemoteAddr().String()))

	m.Send(client.ID, models.ConnectedEvent{ID: client.ID})

	go m.writePump(client)
	m.readPump(ctx, client, handler)

	roomIDs := m.removeClient(client)
	handler.HandleDisconnect(ctx, client.ID, roomIDs)
	client.close()
	log.Info("client disconnected", zap.Int("rooms_left", len(roomIDs)))
}

// readPump 依序讀取並處理客戶端訊息，同一連線的事件不會並行處理
func (m *WebSocketManager) readPump(ctx context.Context, client *Client, handler InboundHandler) {
	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("websocket unexpected close", zap.String("conn_id", client.ID), zap.Error(err))
			}
			return
		}

		evt, err := models.DecodeInbound(message)
		if err != nil {
			handler.HandleInvalid(client.ID, err)
			continue
		}
		handler.HandleEvent(ctx, client.ID, evt)
	}
}

// writePump 處理向客戶端發送消息的邏輯
func (m *WebSocketManager) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.close()
	}()

	for {
		select {
		case <-client.done:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-client.SendChan:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			// 發送心跳包
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Subscribe 將連線加入房間的廣播名單
func (m *WebSocketManager) Subscribe(connID, roomID string) {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()

	client, ok := m.clients[connID]
	if !ok {
		return
	}
	if m.rooms[roomID] == nil {
		m.rooms[roomID] = make(map[*Client]bool)
	}
	m.rooms[roomID][client] = true
	client.rooms[roomID] = struct{}{}
}

// Unsubscribe 將連線移出房間的廣播名單
func (m *WebSocketManager) Unsubscribe(connID, roomID string) {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()

	client, ok := m.clients[connID]
	if !ok {
		return
	}
	m.unsubscribeLocked(client, roomID)
}

// DropRoom 清除房間的所有訂閱
func (m *WebSocketManager) DropRoom(roomID string) {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()

	for client := range m.rooms[roomID] {
		delete(client.rooms, roomID)
	}
	delete(m.rooms, roomID)
}

// DropAll 清除所有房間的訂閱，連線本身不受影響
func (m *WebSocketManager) DropAll() {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()

	for _, client := range m.clients {
		clear(client.rooms)
	}
	m.rooms = make(map[string]map[*Client]bool)
}

func (m *WebSocketManager) unsubscribeLocked(client *Client, roomID string) {
	delete(client.rooms, roomID)
	if clients, ok := m.rooms[roomID]; ok {
		delete(clients, client)
		// 如果房間空了，刪除房間
		if len(clients) == 0 {
			delete(m.rooms, roomID)
		}
	}
}

// Send 單播給一個連線
func (m *WebSocketManager) Send(connID string, evt models.OutboundEvent) {
	data, ok := m.encode(evt)
	if !ok {
		return
	}
	m.clientsMux.RLock()
	client := m.clients[connID]
	m.clientsMux.RUnlock()
	if client != nil {
		m.enqueue(client, data)
	}
}

// Broadcast 向房間內的所有客戶端廣播消息
func (m *WebSocketManager) Broadcast(roomID string, evt models.OutboundEvent) {
	m.BroadcastExcept(roomID, "", evt)
}

// BroadcastExcept 向房間內除了 exceptConnID 以外的客戶端廣播
func (m *WebSocketManager) BroadcastExcept(roomID, exceptConnID string, evt models.OutboundEvent) {
	data, ok := m.encode(evt)
	if !ok {
		return
	}

	m.clientsMux.RLock()
	targets := make([]*Client, 0, len(m.rooms[roomID]))
	for client := range m.rooms[roomID] {
		if client.ID != exceptConnID {
			targets = append(targets, client)
		}
	}
	m.clientsMux.RUnlock()

	for _, client := range targets {
		m.enqueue(client, data)
	}
}

// RoomClients 獲取指定房間的在線客戶端數量
func (m *WebSocketManager) RoomClients(roomID string) int {
	m.clientsMux.RLock()
	defer m.clientsMux.RUnlock()

	return len(m.rooms[roomID])
}

// CloseAll 關閉所有連線，各連線的 readPump 結束後會照常清理
func (m *WebSocketManager) CloseAll() {
	m.clientsMux.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.clientsMux.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

// enqueue 客戶端消息隊列已滿時直接斷線
func (m *WebSocketManager) enqueue(client *Client, data []byte) {
	select {
	case <-client.done:
	case client.SendChan <- data:
	default:
		m.logger.Warn("send queue full, dropping client", zap.String("conn_id", client.ID))
		client.close()
	}
}

func (m *WebSocketManager) encode(evt models.OutboundEvent) ([]byte, bool) {
	data, err := models.Encode(evt)
	if err != nil {
		m.logger.Error("failed to encode event", zap.String("event", evt.EventName()), zap.Error(err))
		return nil, false
	}
	return data, true
}

func (m *WebSocketManager) addClient(client *Client) {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()
	m.clients[client.ID] = client
}

// removeClient 移除連線並回傳它訂閱過的房間
func (m *WebSocketManager) removeClient(client *Client) []string {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()

	roomIDs := make([]string, 0, len(client.rooms))
	for roomID := range client.rooms {
		roomIDs = append(roomIDs, roomID)
	}
	for _, roomID := range roomIDs {
		m.unsubscribeLocked(client, roomID)
	}
	delete(m.clients, client.ID)
	return roomIDs
}

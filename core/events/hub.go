package events

import (
	"sync"
	"time"

	"bopus/logger"
	"bopus/model"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// EventType 事件类型
type EventType string

const (
	EventRunCompleted EventType = "run_completed" // 切分完成
	EventPing         EventType = "ping"
	EventPong         EventType = "pong"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // 必须小于 pongWait
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Event WebSocket 推送的消息结构
type Event struct {
	Type      EventType  `json:"type"`
	Run       *model.Run `json:"run,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// Client 一个订阅者连接
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub 把切分事件广播给所有订阅者
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu       sync.RWMutex
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub 创建事件 Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环，Stop 后返回
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug("event client registered", logger.Int("clients", h.ClientCount()))

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.broadcastAll(message)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub，可重复调用
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// removeClient 需要持有锁
func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) broadcastAll(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			// 发送缓冲区满，直接断开慢客户端
			h.removeClient(client)
			logger.Warn("event client too slow, dropped")
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[*Client]bool)
}

// ClientCount 当前订阅者数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish 广播一个事件，Hub 已停止时丢弃
func (h *Hub) Publish(evt *Event) error {
	evt.Timestamp = time.Now().UnixMilli()
	data, err := sonic.Marshal(evt)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
	return nil
}

// PublishRun 切分完成通知，可直接作为流水线的 notifier
func (h *Hub) PublishRun(run *model.Run) {
	if err := h.Publish(&Event{Type: EventRunCompleted, Run: run}); err != nil {
		logger.Warn("failed to publish run event", logger.String("runId", run.ID), logger.ErrorField(err))
	}
}

// Attach 注册一个已升级的连接并启动读写循环
func (h *Hub) Attach(conn *websocket.Conn) {
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// readPump 只处理心跳，其余消息丢弃
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err))
			}
			return
		}

		var evt Event
		if err := sonic.Unmarshal(message, &evt); err != nil || evt.Type != EventPing {
			continue
		}
		pong, err := sonic.Marshal(&Event{Type: EventPong, Timestamp: time.Now().UnixMilli()})
		if err != nil {
			continue
		}
		c.hub.mu.RLock()
		if c.hub.clients[c] {
			select {
			case c.send <- pong:
			default:
			}
		}
		c.hub.mu.RUnlock()
	}
}

// writePump 写入消息循环
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

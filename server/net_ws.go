package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	id   PlayerID
	ws   *websocket.Conn
	send chan []byte

	// closed 只由 Hub 事件循环读写
	closed bool

	writeTimeout time.Duration
	readTimeout  time.Duration
	pingInterval time.Duration
	readLimit    int64
}

func newClientConn(id PlayerID, ws *websocket.Conn, h *Hub) *ClientConn {
	t := h.cfg
	return &ClientConn{
		id:           id,
		ws:           ws,
		send:         make(chan []byte, t.SendQueue),
		writeTimeout: t.WriteTimeout,
		readTimeout:  t.ReadTimeout,
		pingInterval: t.PingInterval,
		readLimit:    t.ReadLimit,
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性丢弃，避免阻塞事件循环
		return false
	}
}

// Close 关闭发送队列；写协程发完剩余消息后发送关闭帧并断开
func (c *ClientConn) Close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端帧，解析外壳后投递到 Hub 事件循环
func (c *ClientConn) readPump(h *Hub) {
	defer c.ws.Close()
	// 读泵退出时，通知 Hub 在事件循环中移除该玩家
	defer h.leave(c)
	c.ws.SetReadLimit(c.readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("read error", zap.String("id", string(c.id)), zap.Error(err))
			}
			return
		}
		event, data, err := DecodeEnvelope(payload)
		if err != nil {
			h.metrics.IncMalformed()
			h.log.Debug("discarding malformed frame", zap.String("id", string(c.id)), zap.Error(err))
			continue
		}
		h.deliver(c.id, event, data)
	}
}

func newUpgrader(allowed []string) websocket.Upgrader {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// 未配置白名单或非浏览器客户端（无 Origin）时放行
			return len(origins) == 0 || origin == "" || origins[origin]
		},
	}
}

// ServeWS WebSocket 接入：分配连接 id，注册到 Hub 后启动读写协程
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade error", zap.Error(err))
		return
	}

	id := PlayerID(uuid.NewString())
	client := newClientConn(id, ws, h)
	if !h.register(client) {
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = ws.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

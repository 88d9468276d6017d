package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"arenarelay/config"
)

// ErrHubStopped 事件循环已退出
var ErrHubStopped = errors.New("hub stopped")

var _ Transport = (*Hub)(nil)

type hubEventKind int

const (
	evConnect hubEventKind = iota
	evMessage
	evLeave
	evCall
)

type hubEvent struct {
	kind  hubEventKind
	id    PlayerID
	conn  *ClientConn
	event string
	data  json.RawMessage
	fn    func()
}

// Hub 持有所有 WebSocket 连接，并在单个事件循环中驱动 Relay。
// 注册表与 clients 只在 Run 所在的 goroutine 中读写。
type Hub struct {
	relay   *Relay
	clients map[PlayerID]*ClientConn

	events   chan hubEvent
	done     chan struct{}
	upgrader websocket.Upgrader

	cfg     config.TransportConfig
	log     *zap.Logger
	metrics *RelayMetrics
}

// HubOptions 可选依赖；Random 为 nil 时使用 math/rand
type HubOptions struct {
	Logger *zap.Logger
	Audit  AuditLog
	Auth   Authenticator
	Random Random
}

// NewHub 按配置组装注册表、认证策略与 Relay
func NewHub(cfg config.Config, opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	auth := opts.Auth
	if auth == nil {
		auth = NewPrefixAuthenticator(cfg.Auth.AdminMarker)
	}
	h := &Hub{
		clients:  make(map[PlayerID]*ClientConn),
		events:   make(chan hubEvent, cfg.Transport.InboundQueue),
		done:     make(chan struct{}),
		upgrader: newUpgrader(cfg.Server.AllowedOrigins),
		cfg:      cfg.Transport,
		log:      logger,
		metrics:  &RelayMetrics{},
	}
	h.relay = NewRelay(RelayOptions{
		Registry:   NewRegistry(opts.Random, cfg.World.Extent, cfg.World.DefaultName),
		Transport:  h,
		Auth:       auth,
		Audit:      opts.Audit,
		Metrics:    h.metrics,
		Logger:     logger.Named("relay"),
		NameMaxLen: cfg.World.NameMaxLen,
	})
	return h
}

// Metrics 运行指标
func (h *Hub) Metrics() *RelayMetrics { return h.metrics }

// Run 事件循环：逐个处理连接、消息与断开，直到 ctx 取消
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for id, c := range h.clients {
				c.Close()
				delete(h.clients, id)
			}
			h.log.Info("hub stopped")
			return
		case ev := <-h.events:
			h.handle(ev)
		}
	}
}

func (h *Hub) handle(ev hubEvent) {
	switch ev.kind {
	case evConnect:
		h.clients[ev.id] = ev.conn
		h.metrics.IncConnected()
		h.relay.Connect(ev.id)
		h.EmitTo(ev.id, EventWelcome, Welcome{ID: ev.id})
	case evMessage:
		if _, ok := h.clients[ev.id]; !ok {
			// 已被踢出的连接残留的帧
			return
		}
		if err := h.relay.HandleMessage(ev.id, ev.event, ev.data); err != nil {
			h.log.Debug("discarding event", zap.String("id", string(ev.id)), zap.Error(err))
		}
	case evLeave:
		if c, ok := h.clients[ev.id]; ok && c == ev.conn {
			delete(h.clients, ev.id)
			c.Close()
			h.metrics.DecConnected()
		}
		h.relay.Disconnect(ev.id)
	case evCall:
		ev.fn()
	}
}

// register 连接事件必须送达，阻塞直到入队或 Hub 停止
func (h *Hub) register(c *ClientConn) bool {
	select {
	case h.events <- hubEvent{kind: evConnect, id: c.id, conn: c}:
		return true
	case <-h.done:
		return false
	}
}

// leave 同 register，断开事件不能丢
func (h *Hub) leave(c *ClientConn) {
	select {
	case h.events <- hubEvent{kind: evLeave, id: c.id, conn: c}:
	case <-h.done:
	}
}

// deliver 入站消息（非阻塞：拥塞时丢弃，保证读协程不被事件循环拖住）
func (h *Hub) deliver(id PlayerID, event string, data json.RawMessage) {
	select {
	case h.events <- hubEvent{kind: evMessage, id: id, event: event, data: data}:
	default:
		h.metrics.IncInboundDiscarded()
	}
}

// Do 在事件循环中执行 fn 并等待其完成，用于安全读取注册表
func (h *Hub) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	call := hubEvent{kind: evCall, fn: func() {
		fn()
		close(finished)
	}}
	select {
	case h.events <- call:
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublicView 经由事件循环取得公开视图快照
func (h *Hub) PublicView(ctx context.Context) (PublicView, error) {
	var view PublicView
	err := h.Do(ctx, func() {
		view = h.relay.Registry().PublicView()
	})
	return view, err
}

// ---- Transport 实现（只在事件循环中被 Relay 调用） ----

func (h *Hub) encode(event string, payload any) []byte {
	b, err := json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: payload})
	if err != nil {
		h.log.Error("encoding outbound event", zap.String("event", event), zap.Error(err))
		return nil
	}
	return b
}

func (h *Hub) enqueue(c *ClientConn, b []byte) {
	if !c.Enqueue(b) {
		h.metrics.IncFrameDropped()
	}
}

// EmitTo 单播
func (h *Hub) EmitTo(id PlayerID, event string, payload any) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	if b := h.encode(event, payload); b != nil {
		h.enqueue(c, b)
	}
}

// EmitToAllExcept 广播给除 id 以外的所有连接
func (h *Hub) EmitToAllExcept(id PlayerID, event string, payload any) {
	b := h.encode(event, payload)
	if b == nil {
		return
	}
	for cid, c := range h.clients {
		if cid != id {
			h.enqueue(c, b)
		}
	}
}

// EmitToAll 广播（单次编码）
func (h *Hub) EmitToAll(event string, payload any) {
	b := h.encode(event, payload)
	if b == nil {
		return
	}
	for _, c := range h.clients {
		h.enqueue(c, b)
	}
}

// ForceDisconnect 发完已排队的消息后关闭连接；连接不存在时视为已完成
func (h *Hub) ForceDisconnect(id PlayerID) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	c.Close()
	h.metrics.DecConnected()
}

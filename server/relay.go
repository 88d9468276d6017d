package server

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Transport 核心对传输层的全部要求，按连接 id 寻址。
// 所有发送都是 fire-and-forget，不返回错误。
type Transport interface {
	EmitTo(id PlayerID, event string, payload any)
	EmitToAllExcept(id PlayerID, event string, payload any)
	EmitToAll(event string, payload any)
	// ForceDisconnect 对已断开的连接调用时什么也不做
	ForceDisconnect(id PlayerID)
}

// RelayOptions 构造 Relay 的依赖；除 Registry 与 Transport 外都可为零值
type RelayOptions struct {
	Registry   *Registry
	Transport  Transport
	Auth       Authenticator
	Audit      AuditLog
	Metrics    *RelayMetrics
	Logger     *zap.Logger
	NameMaxLen int
	Clock      func() time.Time
}

// Relay 实现 connect / join / move / command / disconnect 状态迁移。
// 所有方法都必须在同一个 goroutine 中调用（见 Hub.Run），内部不加锁。
type Relay struct {
	registry   *Registry
	transport  Transport
	auth       Authenticator
	audit      AuditLog
	metrics    *RelayMetrics
	log        *zap.Logger
	nameMaxLen int
	now        func() time.Time
}

// NewRelay 填充缺省依赖
func NewRelay(opts RelayOptions) *Relay {
	r := &Relay{
		registry:   opts.Registry,
		transport:  opts.Transport,
		auth:       opts.Auth,
		audit:      opts.Audit,
		metrics:    opts.Metrics,
		log:        opts.Logger,
		nameMaxLen: opts.NameMaxLen,
		now:        opts.Clock,
	}
	if r.auth == nil {
		r.auth = NewPrefixAuthenticator("!!!")
	}
	if r.audit == nil {
		r.audit = NewZapAudit(nil)
	}
	if r.metrics == nil {
		r.metrics = &RelayMetrics{}
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.nameMaxLen <= 0 {
		r.nameMaxLen = 15
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Registry 只读访问（测试与诊断）
func (r *Relay) Registry() *Registry { return r.registry }

// Connect 以随机默认值创建记录，不广播：未 join 的玩家不进入公开视图的更新
func (r *Relay) Connect(id PlayerID) {
	r.registry.Spawn(id)
	r.record(AuditEntry{Kind: AuditConnect, ID: id})
	r.log.Info("player connected", zap.String("id", string(id)))
}

// HandleMessage 解析入站事件并分发；无法解析时返回错误，状态不变
func (r *Relay) HandleMessage(id PlayerID, event string, data json.RawMessage) error {
	ev, err := ParseEvent(event, data)
	if err != nil {
		r.metrics.IncMalformed()
		return err
	}
	r.Dispatch(id, ev)
	return nil
}

// Dispatch 按事件类型执行迁移
func (r *Relay) Dispatch(id PlayerID, ev Event) {
	switch e := ev.(type) {
	case JoinEvent:
		r.Join(id, e)
	case MoveEvent:
		r.Move(id, e)
	case CommandEvent:
		r.Command(id, e)
	}
}

// Join 认证并更新记录。可重复调用，每次都重新推导 IsAdmin。
// 记录不存在时不做更新，但认证结果照常回发。
func (r *Relay) Join(id PlayerID, ev JoinEvent) {
	name := ev.Name
	if name == "" {
		name = r.registry.defaultName
	}
	isAdmin, display := r.auth.Classify(name)
	display = truncateRunes(display, r.nameMaxLen)

	p, ok := r.registry.Get(id)
	if ok {
		if ev.X != nil {
			p.X = *ev.X
		}
		if ev.Y != nil {
			p.Y = *ev.Y
		}
		if ev.Color != nil {
			p.Color = *ev.Color
		}
		p.Name = display
		p.IsAdmin = isAdmin
		r.metrics.IncJoins()
		if isAdmin {
			r.metrics.IncAdminGrants()
			r.record(AuditEntry{Kind: AuditAdminGrant, ID: id, Name: display})
		}
		r.log.Info("player joined", zap.String("id", string(id)), zap.String("name", display))
	}

	r.transport.EmitTo(id, EventAuthResult, isAdmin)
	r.BroadcastPublicView()
}

// Move 只更新提交了数值的字段，然后把合并后的位置发给除自己以外的所有人
func (r *Relay) Move(id PlayerID, ev MoveEvent) {
	p, ok := r.registry.Get(id)
	if !ok {
		return
	}
	if ev.X != nil {
		p.X = *ev.X
	}
	if ev.Y != nil {
		p.Y = *ev.Y
	}
	if ev.Angle != nil {
		p.Angle = *ev.Angle
	}
	r.metrics.IncMoves()
	r.BroadcastMove(p)
}

// Command 管理员命令分发。未授权、目标不存在或类型未知时静默丢弃（只记审计）。
func (r *Relay) Command(id PlayerID, ev CommandEvent) {
	target := TargetAll
	if ev.Target != nil {
		target = string(*ev.Target)
	}
	entry := AuditEntry{Kind: AuditCommand, ID: id, Command: ev.Type, Target: target}

	issuer, ok := r.registry.Get(id)
	if !ok || !issuer.IsAdmin {
		r.metrics.IncDenied()
		entry.Outcome = OutcomeDenied
		r.record(entry)
		return
	}
	entry.Name = issuer.Name

	switch {
	case ev.Type == CmdAnnounce:
		r.transport.EmitToAll(EventServerMessage, ServerMessage{Text: ev.Payload, From: issuer.Name})
		r.dispatched(entry)
		return
	case ev.Type == CmdUnknown:
		entry.Outcome = OutcomeUnknown
		r.record(entry)
		return
	case ev.Target == nil:
		if ev.Type.IsEffect() {
			r.transport.EmitToAll(EventEffect, Effect{Type: ev.Type})
			r.dispatched(entry)
			return
		}
		entry.Outcome = OutcomeNoTarget
		r.record(entry)
		return
	}

	victim, ok := r.registry.Get(*ev.Target)
	if !ok {
		entry.Outcome = OutcomeNoTarget
		r.record(entry)
		return
	}

	switch ev.Type {
	case CmdKick:
		r.dispatched(entry)
		r.kick(victim)
		return
	case CmdTeleport:
		// 只读：把目标位置告诉发起者
		r.transport.EmitTo(issuer.ID, EventForceTeleport, victim.Position())
	case CmdPull:
		// 服务端不改目标位置，等目标客户端自己上报 move
		r.transport.EmitTo(victim.ID, EventForceTeleport, issuer.Position())
	default:
		r.transport.EmitTo(victim.ID, EventEffect, Effect{Type: ev.Type})
	}
	r.dispatched(entry)
}

// kick 先通知，再断开连接、删除记录并广播公开视图
func (r *Relay) kick(victim *PlayerRecord) {
	r.transport.EmitTo(victim.ID, EventEffect, Effect{Type: CmdKick})
	r.transport.ForceDisconnect(victim.ID)
	r.registry.Remove(victim.ID)
	r.metrics.IncKicks()
	r.record(AuditEntry{Kind: AuditDisconnect, ID: victim.ID, Name: victim.Name})
	r.log.Info("player kicked", zap.String("id", string(victim.ID)), zap.String("name", victim.Name))
	r.BroadcastPublicView()
}

// Disconnect 删除记录并广播；id 不存在时什么也不做（包括不广播）
func (r *Relay) Disconnect(id PlayerID) {
	p, ok := r.registry.Get(id)
	if !ok {
		return
	}
	r.registry.Remove(id)
	r.record(AuditEntry{Kind: AuditDisconnect, ID: id, Name: p.Name})
	r.log.Info("player disconnected", zap.String("id", string(id)))
	r.BroadcastPublicView()
}

// BroadcastPublicView 全量广播：O(n) 计算 + O(n) 扇出，用于 join / 断开 / 踢出
func (r *Relay) BroadcastPublicView() {
	r.transport.EmitToAll(EventPlayerList, r.registry.PublicView())
}

// BroadcastMove 增量广播：O(1) 计算 + O(n) 扇出，不发给移动者本人
func (r *Relay) BroadcastMove(p *PlayerRecord) {
	r.transport.EmitToAllExcept(p.ID, EventPlayerMoved, PlayerMoved{
		ID:    p.ID,
		X:     p.X,
		Y:     p.Y,
		Angle: p.Angle,
	})
}

func (r *Relay) dispatched(e AuditEntry) {
	e.Outcome = OutcomeDispatched
	r.metrics.IncCommands()
	r.record(e)
	r.log.Info("admin command",
		zap.String("issuer", string(e.ID)),
		zap.String("command", string(e.Command)),
		zap.String("target", e.Target),
	)
}

func (r *Relay) record(e AuditEntry) {
	e.Time = r.now()
	r.audit.Record(e)
}

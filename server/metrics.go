package server

import (
	"sync/atomic"
)

// RelayMetrics 运行期关键指标；事件循环写入，HTTP 处理器读取
type RelayMetrics struct {
	Connections      int64 // 当前连接数
	Joins            int64
	AdminGrants      int64
	Moves            int64
	Commands         int64 // 已分发的管理员命令
	CommandsDenied   int64 // 非管理员发出的命令
	Kicks            int64
	MalformedInputs  int64 // 无法解析的入站帧
	FramesDropped    int64 // 发送队列满被丢弃的帧
	InboundDiscarded int64 // 入站队列满被丢弃的事件
}

func (m *RelayMetrics) IncConnected()    { atomic.AddInt64(&m.Connections, 1) }
func (m *RelayMetrics) DecConnected()    { atomic.AddInt64(&m.Connections, -1) }
func (m *RelayMetrics) IncJoins()        { atomic.AddInt64(&m.Joins, 1) }
func (m *RelayMetrics) IncAdminGrants()  { atomic.AddInt64(&m.AdminGrants, 1) }
func (m *RelayMetrics) IncMoves()        { atomic.AddInt64(&m.Moves, 1) }
func (m *RelayMetrics) IncCommands()     { atomic.AddInt64(&m.Commands, 1) }
func (m *RelayMetrics) IncDenied()       { atomic.AddInt64(&m.CommandsDenied, 1) }
func (m *RelayMetrics) IncKicks()        { atomic.AddInt64(&m.Kicks, 1) }
func (m *RelayMetrics) IncMalformed()    { atomic.AddInt64(&m.MalformedInputs, 1) }
func (m *RelayMetrics) IncFrameDropped() { atomic.AddInt64(&m.FramesDropped, 1) }
func (m *RelayMetrics) IncInboundDiscarded() {
	atomic.AddInt64(&m.InboundDiscarded, 1)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RelayMetrics) Snapshot() map[string]any {
	return map[string]any{
		"connections":       atomic.LoadInt64(&m.Connections),
		"joins":             atomic.LoadInt64(&m.Joins),
		"admin_grants":      atomic.LoadInt64(&m.AdminGrants),
		"moves":             atomic.LoadInt64(&m.Moves),
		"commands":          atomic.LoadInt64(&m.Commands),
		"commands_denied":   atomic.LoadInt64(&m.CommandsDenied),
		"kicks":             atomic.LoadInt64(&m.Kicks),
		"malformed_inputs":  atomic.LoadInt64(&m.MalformedInputs),
		"frames_dropped":    atomic.LoadInt64(&m.FramesDropped),
		"inbound_discarded": atomic.LoadInt64(&m.InboundDiscarded),
	}
}

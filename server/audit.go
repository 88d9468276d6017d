package server

import (
	"time"

	"go.uber.org/zap"
)

// AuditKind 审计条目种类
type AuditKind string

const (
	AuditConnect    AuditKind = "connect"
	AuditDisconnect AuditKind = "disconnect"
	AuditAdminGrant AuditKind = "admin_grant"
	AuditCommand    AuditKind = "command"
)

// 命令审计结果
const (
	OutcomeDispatched = "dispatched"
	OutcomeDenied     = "denied"
	OutcomeNoTarget   = "no_target"
	OutcomeUnknown    = "unknown_type"
)

// TargetAll 未指定目标时的审计占位
const TargetAll = "ALL"

// AuditEntry 一条只追加的审计记录
type AuditEntry struct {
	Time    time.Time
	Kind    AuditKind
	ID      PlayerID
	Name    string
	Command CommandType
	Target  string
	Outcome string
}

// AuditLog 审计输出
type AuditLog interface {
	Record(e AuditEntry)
}

// ZapAudit 把审计条目写成结构化日志
type ZapAudit struct {
	log *zap.Logger
}

// NewZapAudit logger 为 nil 时丢弃所有条目
func NewZapAudit(logger *zap.Logger) *ZapAudit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAudit{log: logger}
}

// Record 写入一条审计
func (a *ZapAudit) Record(e AuditEntry) {
	fields := []zap.Field{
		zap.Time("at", e.Time),
		zap.String("kind", string(e.Kind)),
		zap.String("id", string(e.ID)),
	}
	if e.Name != "" {
		fields = append(fields, zap.String("name", e.Name))
	}
	if e.Kind == AuditCommand {
		fields = append(fields,
			zap.String("command", string(e.Command)),
			zap.String("target", e.Target),
			zap.String("outcome", e.Outcome),
		)
	}
	a.log.Info("audit", fields...)
}

package server

import "strings"

// 出站事件名
const (
	EventWelcome       = "welcome"
	EventAuthResult    = "authResult"
	EventPlayerList    = "playerList"
	EventPlayerMoved   = "playerMoved"
	EventEffect        = "effect"
	EventServerMessage = "serverMessage"
	EventForceTeleport = "forceTeleport"
)

// CommandType 管理员命令种类
type CommandType string

const (
	CmdUnknown  CommandType = ""
	CmdAnnounce CommandType = "announce"
	CmdKick     CommandType = "kick"
	CmdTeleport CommandType = "teleport"
	CmdPull     CommandType = "pull"

	// 效果类：只在客户端生效，服务端状态不变
	CmdFreeze CommandType = "freeze"
	CmdSpin   CommandType = "spin"
	CmdBlind  CommandType = "blind"
	CmdBoost  CommandType = "boost"
)

var commandTypes = map[string]CommandType{
	"announce": CmdAnnounce,
	"kick":     CmdKick,
	"teleport": CmdTeleport,
	"pull":     CmdPull,
	"freeze":   CmdFreeze,
	"spin":     CmdSpin,
	"blind":    CmdBlind,
	"boost":    CmdBoost,
	// 旧客户端的命名
	"teleportto": CmdTeleport,
	"bringhere":  CmdPull,
}

// ParseCommandType 未识别的名称返回 CmdUnknown
func ParseCommandType(s string) CommandType {
	return commandTypes[strings.ToLower(strings.TrimSpace(s))]
}

// IsEffect 是否属于效果词表
func (c CommandType) IsEffect() bool {
	switch c {
	case CmdFreeze, CmdSpin, CmdBlind, CmdBoost:
		return true
	}
	return false
}

// Welcome 连接建立后告知客户端自己的 id
type Welcome struct {
	ID PlayerID `json:"id"`
}

// PlayerMoved 位置增量
type PlayerMoved struct {
	ID    PlayerID `json:"id"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Angle float64  `json:"angle"`
}

// Effect 客户端效果指令；踢出时 Type 为 "kick"
type Effect struct {
	Type CommandType `json:"type"`
}

// ServerMessage 公告
type ServerMessage struct {
	Text string `json:"text"`
	From string `json:"from"`
}

// Position 用于 forceTeleport
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

package server

// PlayerID 连接标识，由传输层分配，在连接生命周期内唯一
type PlayerID string

// PlayerRecord 每个活动连接一条的服务端状态
type PlayerRecord struct {
	ID    PlayerID
	X     float64
	Y     float64
	Angle float64
	Color string
	Name  string

	// IsAdmin 只在 join 时写入，绝不出现在任何公开视图中
	IsAdmin bool
}

// PublicPlayer 允许广播给所有客户端的字段子集
type PublicPlayer struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
	Color string  `json:"color"`
	Name  string  `json:"name"`
}

// PublicView id → 公开字段
type PublicView map[PlayerID]PublicPlayer

// Public 投影为公开字段
func (p *PlayerRecord) Public() PublicPlayer {
	return PublicPlayer{X: p.X, Y: p.Y, Angle: p.Angle, Color: p.Color, Name: p.Name}
}

// Position 当前坐标
func (p *PlayerRecord) Position() Position {
	return Position{X: p.X, Y: p.Y}
}

package server

// Registry 连接 id → 玩家记录。
// 只由 Hub 的事件循环访问，因此不加锁。
type Registry struct {
	players map[PlayerID]*PlayerRecord
	rng     Random

	extent      float64
	defaultName string
}

// NewRegistry 创建空注册表；extent 为出生坐标范围
func NewRegistry(rng Random, extent float64, defaultName string) *Registry {
	if rng == nil {
		rng = NewRandom()
	}
	return &Registry{
		players:     make(map[PlayerID]*PlayerRecord),
		rng:         rng,
		extent:      extent,
		defaultName: defaultName,
	}
}

// Spawn 以随机默认值创建记录；同 id 已存在时覆盖
func (r *Registry) Spawn(id PlayerID) *PlayerRecord {
	p := &PlayerRecord{
		ID:    id,
		X:     r.rng.Float64() * r.extent,
		Y:     r.rng.Float64() * r.extent,
		Angle: 0,
		Color: randomColor(r.rng),
		Name:  r.defaultName,
	}
	r.players[id] = p
	return p
}

// Get 查找记录
func (r *Registry) Get(id PlayerID) (*PlayerRecord, bool) {
	p, ok := r.players[id]
	return p, ok
}

// Remove 删除记录，返回是否存在
func (r *Registry) Remove(id PlayerID) bool {
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	return true
}

// Len 当前记录数
func (r *Registry) Len() int {
	return len(r.players)
}

// PublicView 计算全部记录的公开视图（不含权限标记）
func (r *Registry) PublicView() PublicView {
	view := make(PublicView, len(r.players))
	for id, p := range r.players {
		view[id] = p.Public()
	}
	return view
}

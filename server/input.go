package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// 入站事件名
const (
	EventJoin    = "join"
	EventMove    = "move"
	EventCommand = "command"
)

// 旧客户端使用的事件名
var eventAliases = map[string]string{
	"playermovement": EventMove,
	"adminaction":    EventCommand,
	"admincmd":       EventCommand,
}

// ErrUnknownEvent 未知事件名
var ErrUnknownEvent = errors.New("unknown event")

// Envelope 入站与出站共用的 JSON 外壳
// 示例：{"event":"move","data":{"x":10,"y":20,"angle":1.5}}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event 经过边界校验后的入站事件（JoinEvent / MoveEvent / CommandEvent）
type Event interface {
	eventName() string
}

// JoinEvent 加入；Name 为空表示缺失或非字符串
type JoinEvent struct {
	Name  string
	X     *float64
	Y     *float64
	Color *string
}

// MoveEvent 部分更新：nil 字段保持原值
type MoveEvent struct {
	X     *float64
	Y     *float64
	Angle *float64
}

// CommandEvent 管理员命令。Target 为 nil 表示未指定目标；
// 指定了但不是字符串时为空 ID，不会命中任何玩家
type CommandEvent struct {
	Type    CommandType
	Target  *PlayerID
	Payload string
}

func (JoinEvent) eventName() string    { return EventJoin }
func (MoveEvent) eventName() string    { return EventMove }
func (CommandEvent) eventName() string { return EventCommand }

// DecodeEnvelope 解析一条文本帧
func DecodeEnvelope(raw []byte) (string, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("decoding envelope: %w", err)
	}
	return env.Event, env.Data, nil
}

// ParseEvent 把松散的载荷转换为严格的内部事件。字段缺失或类型错误时取默认值，
// 只有事件名未知或载荷不是 JSON 对象时才返回错误。
func ParseEvent(name string, data json.RawMessage) (Event, error) {
	key := strings.ToLower(name)
	if alias, ok := eventAliases[key]; ok {
		key = alias
	}
	fields, err := decodeFields(data)
	if err != nil {
		return nil, err
	}
	switch key {
	case EventJoin:
		return JoinEvent{
			Name:  stringField(fields, "name"),
			X:     numberField(fields, "x"),
			Y:     numberField(fields, "y"),
			Color: colorField(fields, "color"),
		}, nil
	case EventMove:
		return MoveEvent{
			X:     numberField(fields, "x"),
			Y:     numberField(fields, "y"),
			Angle: numberField(fields, "angle"),
		}, nil
	case EventCommand:
		kind := stringField(fields, "type")
		if kind == "" {
			kind = stringField(fields, "action")
		}
		return CommandEvent{
			Type:    ParseCommandType(kind),
			Target:  targetField(fields, "targetId"),
			Payload: payloadField(fields, "payload"),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

func decodeFields(data json.RawMessage) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(data) == 0 || string(data) == "null" {
		return fields, nil
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return fields, nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func numberField(fields map[string]json.RawMessage, key string) *float64 {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

// 颜色只接受 #hex 或纯字母名称，其余输入视为缺失
var colorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{1,20})$`)

func colorField(fields map[string]json.RawMessage, key string) *string {
	s := stringField(fields, key)
	if !colorPattern.MatchString(s) {
		return nil
	}
	return &s
}

func targetField(fields map[string]json.RawMessage, key string) *PlayerID {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	id := PlayerID(stringField(fields, key))
	return &id
}

// payloadField 字符串原样返回，其他 JSON 标量保留字面量文本
func payloadField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

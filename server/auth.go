package server

import (
	"strings"
)

// Authenticator 由提交的名称推导权限与显示名称。
// 替换实现不需要改动命令分发逻辑。
type Authenticator interface {
	Classify(name string) (isAdmin bool, displayName string)
}

// PrefixAuthenticator 默认策略：名称以 Marker 开头即为管理员，Marker 被剥离
type PrefixAuthenticator struct {
	Marker string
}

// NewPrefixAuthenticator 创建前缀认证策略
func NewPrefixAuthenticator(marker string) *PrefixAuthenticator {
	return &PrefixAuthenticator{Marker: marker}
}

// Classify 剥离前缀后，显示名称中残留的 Marker 也一并移除，保证公开视图里不会出现密钥
func (a *PrefixAuthenticator) Classify(name string) (bool, string) {
	if a.Marker == "" {
		return false, name
	}
	isAdmin := strings.HasPrefix(name, a.Marker)
	if isAdmin {
		name = name[len(a.Marker):]
	}
	return isAdmin, scrub(name, a.Marker)
}

// scrub 反复移除 marker 直到不再出现（移除后拼接可能产生新的匹配）
func scrub(s, marker string) string {
	for strings.Contains(s, marker) {
		s = strings.ReplaceAll(s, marker, "")
	}
	return s
}

// truncateRunes 按字符截断
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

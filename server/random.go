package server

import (
	"fmt"
	"math/rand/v2"
)

// Random 出生默认值的随机源，测试中可替换为固定序列
type Random interface {
	// Float64 返回 [0, 1) 内的数
	Float64() float64
	// IntN 返回 [0, n) 内的整数
	IntN(n int) int
}

type mathRandom struct{}

// NewRandom 基于 math/rand/v2 的全局源
func NewRandom() Random {
	return mathRandom{}
}

func (mathRandom) Float64() float64 { return rand.Float64() }
func (mathRandom) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return rand.IntN(n)
}

// randomColor 生成 #rrggbb
func randomColor(r Random) string {
	return fmt.Sprintf("#%06x", r.IntN(0x1000000))
}

package colorscience

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedMethod = errors.New("colorscience: unsupported adaptation method")

// 色适应锥响应矩阵
var catMatrices = map[string]mat3{
	"bradford": {
		{0.8951, 0.2664, -0.1614},
		{-0.7502, 1.7135, 0.0367},
		{0.0389, -0.0685, 1.0296},
	},
	"cat02": {
		{0.7328, 0.4296, -0.1624},
		{-0.7036, 1.6975, 0.0061},
		{0.0030, 0.0136, 0.9834},
	},
	// 经典 von Kries（Hunt–Pointer–Estevez 锥模型）
	"kries": {
		{0.4002, 0.7075, -0.0807},
		{-0.2280, 1.1500, 0.0612},
		{0.0000, 0.0000, 0.9184},
	},
}

// Adapt 把 XYZ 从源白点适应到目标白点：XYZ与两白点映射到锥空间，
// 按 dst/src 分量缩放后逆映射回 XYZ。
func Adapt(c XYZ, srcWhite, dstWhite XYZ, method string) (XYZ, error) {
	key := strings.ToLower(strings.TrimSpace(method))
	if key == "vonkries" || key == "von kries" {
		key = "kries"
	}
	m, ok := catMatrices[key]
	if !ok {
		return XYZ{}, fmt.Errorf("%w: %q (use bradford, cat02 or kries)", ErrUnsupportedMethod, method)
	}

	srcCone := m.mulVec([3]float64{srcWhite.X, srcWhite.Y, srcWhite.Z})
	dstCone := m.mulVec([3]float64{dstWhite.X, dstWhite.Y, dstWhite.Z})
	cone := m.mulVec([3]float64{c.X, c.Y, c.Z})

	for i := range cone {
		cone[i] *= dstCone[i] / srcCone[i]
	}

	out := m.inverse().mulVec(cone)
	return XYZ{X: out[0], Y: out[1], Z: out[2]}, nil
}

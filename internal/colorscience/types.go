package colorscience

import "math"

// XYZ CIE 1931 三刺激值
type XYZ struct {
	X, Y, Z float64
}

// Lab CIE L*a*b* 值
type Lab struct {
	L, A, B float64
}

// RGB sRGB 值，分量范围 [0,1]
type RGB struct {
	R, G, B float64
}

// Clamp8 压缩并取整到 [0,255]
func (c RGB) Clamp8() (r, g, b uint8) {
	return clamp8(c.R), clamp8(c.G), clamp8(c.B)
}

func clamp8(v float64) uint8 {
	v = math.Round(v * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// SpectralCurve 有序的 (波长, 值) 序列。Complete 为 false 时表示
// 测量数据不完整，数值仅供诊断。
type SpectralCurve struct {
	Wavelengths []float64
	Values      []float64
	Complete    bool
}

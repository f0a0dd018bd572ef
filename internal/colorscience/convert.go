package colorscience

import "math"

// CIE L*a*b* 分段函数拐点 δ = 6/29
const labDelta = 6.0 / 29.0

// sRGB 标准矩阵对（D65），正/逆互为精确逆
var (
	rgbToXYZMat = mat3{
		{0.4124564, 0.3575761, 0.1804375},
		{0.2126729, 0.7151522, 0.0721750},
		{0.0193339, 0.1191920, 0.9503041},
	}
	xyzToRGBMat = mat3{
		{3.2404542, -1.5371385, -0.4985314},
		{-0.9692660, 1.8760108, 0.0415560},
		{0.0556434, -0.2040259, 1.0572252},
	}
)

// XYZToLab 按参考白归一化后套用 f(t) 分段函数。white 零值时用 D65/10°。
func XYZToLab(c XYZ, white XYZ) Lab {
	if white == (XYZ{}) {
		white = D65_10
	}
	fx := labF(c.X / white.X)
	fy := labF(c.Y / white.Y)
	fz := labF(c.Z / white.Z)
	return Lab{
		L: 116*fy - 16,
		A: 500 * (fx - fy),
		B: 200 * (fy - fz),
	}
}

// LabToXYZ f(t) 的精确分段逆变换
func LabToXYZ(c Lab, white XYZ) XYZ {
	if white == (XYZ{}) {
		white = D65_10
	}
	fy := (c.L + 16) / 116
	fx := fy + c.A/500
	fz := fy - c.B/200
	return XYZ{
		X: labFInv(fx) * white.X,
		Y: labFInv(fy) * white.Y,
		Z: labFInv(fz) * white.Z,
	}
}

func labF(t float64) float64 {
	if t > labDelta*labDelta*labDelta {
		return math.Cbrt(t)
	}
	return t/(3*labDelta*labDelta) + 4.0/29.0
}

func labFInv(ft float64) float64 {
	if ft > labDelta {
		return ft * ft * ft
	}
	return 3 * labDelta * labDelta * (ft - 4.0/29.0)
}

// XYZToRGB 固定D65矩阵 + sRGB分段gamma，结果压缩到 [0,1]。
// 输入按 Y=100 标度。
func XYZToRGB(c XYZ) RGB {
	lin := xyzToRGBMat.mulVec([3]float64{c.X / 100, c.Y / 100, c.Z / 100})
	return RGB{
		R: clamp01(srgbEncode(lin[0])),
		G: clamp01(srgbEncode(lin[1])),
		B: clamp01(srgbEncode(lin[2])),
	}
}

// RGBToXYZ sRGB逆gamma后过正向矩阵，输出按 Y=100 标度
func RGBToXYZ(c RGB) XYZ {
	v := rgbToXYZMat.mulVec([3]float64{
		srgbDecode(c.R),
		srgbDecode(c.G),
		srgbDecode(c.B),
	})
	return XYZ{X: v[0] * 100, Y: v[1] * 100, Z: v[2] * 100}
}

// RGBToLab 链式 RGBToXYZ → XYZToLab
func RGBToLab(c RGB, white XYZ) Lab {
	return XYZToLab(RGBToXYZ(c), white)
}

// LabToRGB 链式 LabToXYZ → XYZToRGB
func LabToRGB(c Lab, white XYZ) RGB {
	return XYZToRGB(LabToXYZ(c, white))
}

func srgbEncode(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1.0/2.4) - 0.055
}

func srgbDecode(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

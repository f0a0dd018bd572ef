package colorscience

import "strings"

// 标准白点 (CIE 1931 XYZ, Y=100)，含常见白光LED
var whitePoints = map[string]XYZ{
	// 标准光源
	"D50/10": {96.72, 100.000, 81.43},
	"D55/10": {95.682, 100.000, 92.149},
	"D65/10": {94.81, 100.000, 107.32},
	"D75/10": {94.972, 100.000, 122.638},
	"D50/2":  {96.422, 100.000, 82.521},
	"D65/2":  {95.047, 100.000, 108.883},
	"D75/2":  {94.972, 100.000, 122.638},
	"A":      {109.850, 100.000, 35.585},
	"B":      {99.092, 100.000, 85.313},
	"C":      {98.074, 100.000, 118.232},
	"E":      {100.000, 100.000, 100.000},
	"F1":     {92.834, 100.000, 103.665},
	"F2":     {99.187, 100.000, 67.395},
	"F3":     {103.754, 100.000, 49.861},
	"F4":     {109.147, 100.000, 38.813},
	"F5":     {90.872, 100.000, 98.723},
	"F6":     {97.309, 100.000, 60.188},
	"F7":     {95.044, 100.000, 108.755},
	"F8":     {96.413, 100.000, 82.333},
	"F9":     {100.365, 100.000, 67.868},
	"F10":    {96.174, 100.000, 108.882},
	"F11":    {100.966, 100.000, 64.370},
	"F12":    {108.046, 100.000, 39.228},

	// 常见白光LED
	"LED_CW_6500K":  {95.04, 100.0, 108.88},
	"LED_NW_4300K":  {97.0, 100.0, 92.0},
	"LED_WW_3000K":  {98.5, 100.0, 67.0},
	"LED_VWW_2200K": {103.0, 100.0, 50.0},
}

// D65_10 缺省参考白
var D65_10 = whitePoints["D65/10"]

// WhitePoint 查询白点，D系列光源缺省补 /10 观察者
func WhitePoint(name string) (XYZ, bool) {
	key := normalizeWhiteKey(name)
	wp, ok := whitePoints[key]
	return wp, ok
}

func normalizeWhiteKey(name string) string {
	key := strings.ToUpper(strings.TrimSpace(name))
	if !strings.Contains(key, "/") {
		switch key {
		case "D50", "D55", "D65", "D75":
			key += "/10"
		}
	}
	return key
}

// WhitePointNames 返回全部白点名称（测试与前端枚举用）
func WhitePointNames() []string {
	names := make([]string, 0, len(whitePoints))
	for k := range whitePoints {
		names = append(names, k)
	}
	return names
}

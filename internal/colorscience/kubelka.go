package colorscience

// KOverS 由反射率计算 Kubelka-Munk K/S 值。
// 输入按百分比 (0..100)，先压缩到 [0.01, 0.99] 避免除零。
func KOverS(reflectance []float64) []float64 {
	out := make([]float64, len(reflectance))
	for i, v := range reflectance {
		r := v / 100.0
		if r < 0.01 {
			r = 0.01
		}
		if r > 0.99 {
			r = 0.99
		}
		out[i] = (1 - r) * (1 - r) / (2 * r)
	}
	return out
}

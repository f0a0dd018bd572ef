package colorscience

import (
	"errors"
	"strings"
)

var ErrLengthMismatch = errors.New("colorscience: wavelengths and spd lengths must match")

// Engine 光谱→色度转换引擎。参考数据集按值注入，互不共享全局状态，
// 便于多引擎/多网格并存。
type Engine struct {
	ds *Dataset
}

func NewEngine(ds *Dataset) *Engine {
	return &Engine{ds: ds}
}

// Dataset 返回引擎持有的参考数据集
func (e *Engine) Dataset() *Dataset { return e.ds }

// SpectrumToXYZ 把光谱曲线积分为 CIE XYZ（矩形法，均匀Δλ）。
// ref 形如 "D65/10"；传空串按发射光谱处理（无光源加权）。
// 反射模式: k = 100/Σ(S·ȳ·Δλ)，X = k·Σ(S·R·x̄·Δλ)
// 发射模式: k = 100/Σ(R·ȳ·Δλ)，X = k·Σ(R·x̄·Δλ)
func (e *Engine) SpectrumToXYZ(curve SpectralCurve, ref string) (XYZ, error) {
	if len(curve.Values) != len(curve.Wavelengths) || len(curve.Values) == 0 {
		return XYZ{}, ErrLengthMismatch
	}

	illumName, obsName := parseRef(ref)
	emissive := strings.TrimSpace(ref) == "" || illumName == "NONE"

	obs, err := e.ds.Observer(obsName)
	if err != nil {
		return XYZ{}, err
	}

	grid := obs.Wavelengths
	spd := curve.Values
	xBar, yBar, zBar := obs.XBar, obs.YBar, obs.ZBar

	if len(e.ds.grid) > 0 {
		// 数据集已重采样到工作网格，曲线必须与之对齐
		if len(spd) != len(grid) {
			return XYZ{}, ErrLengthMismatch
		}
	} else {
		// 原生参考网格：截断到输入范围后把低分辨率曲线上采样
		var rx []float64
		rx, xBar = restrictToRange(curve.Wavelengths, obs.Wavelengths, obs.XBar)
		_, yBar = restrictToRange(curve.Wavelengths, obs.Wavelengths, obs.YBar)
		_, zBar = restrictToRange(curve.Wavelengths, obs.Wavelengths, obs.ZBar)
		grid = rx
		spd = upsampleInterp(grid, curve.Wavelengths, curve.Values)
	}

	var illum []float64
	if !emissive {
		ill, err := e.ds.Illuminant(illumName)
		if err != nil {
			return XYZ{}, err
		}
		if len(e.ds.grid) > 0 {
			illum = ill.Values
		} else {
			_, illum = restrictToRange(grid, ill.Wavelengths, ill.Values)
		}
		if len(illum) != len(grid) {
			return XYZ{}, ErrLengthMismatch
		}
	}

	deltaLambda := 1.0
	if len(grid) > 1 {
		deltaLambda = grid[1] - grid[0]
	}

	var sumX, sumY, sumZ, sumNorm float64
	for i := range grid {
		r := spd[i] / 100.0
		if emissive {
			sumX += r * xBar[i] * deltaLambda
			sumY += r * yBar[i] * deltaLambda
			sumZ += r * zBar[i] * deltaLambda
			sumNorm += r * yBar[i] * deltaLambda
		} else {
			s := illum[i]
			sumX += s * r * xBar[i] * deltaLambda
			sumY += s * r * yBar[i] * deltaLambda
			sumZ += s * r * zBar[i] * deltaLambda
			sumNorm += s * yBar[i] * deltaLambda
		}
	}

	k := 100.0 / sumNorm
	return XYZ{X: k * sumX, Y: k * sumY, Z: k * sumZ}, nil
}

package colorscience

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatCurve(grid []float64, v float64) SpectralCurve {
	vals := make([]float64, len(grid))
	for i := range vals {
		vals[i] = v
	}
	return SpectralCurve{Wavelengths: grid, Values: vals, Complete: true}
}

func rampCurve(grid []float64) SpectralCurve {
	vals := make([]float64, len(grid))
	for i := range vals {
		vals[i] = 20 + 2*float64(i)
	}
	return SpectralCurve{Wavelengths: grid, Values: vals, Complete: true}
}

func TestSpectrumToXYZ_FlatReflectance(t *testing.T) {
	ds, err := LoadDataset(deviceGrid())
	require.NoError(t, err)
	e := NewEngine(ds)

	// 归一化常数k保证理想漫反射体 Y=100
	xyz, err := e.SpectrumToXYZ(flatCurve(deviceGrid(), 100), "D65/10")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, xyz.Y, 1e-9)
	assert.Greater(t, xyz.X, 85.0)
	assert.Less(t, xyz.X, 105.0)
	assert.Greater(t, xyz.Z, 90.0)
	assert.Less(t, xyz.Z, 125.0)

	// 50%灰卡 Y=50
	xyz, err = e.SpectrumToXYZ(flatCurve(deviceGrid(), 50), "D50/2")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, xyz.Y, 1e-9)
}

func TestSpectrumToXYZ_DeviceCurve(t *testing.T) {
	ds, err := LoadDataset(deviceGrid())
	require.NoError(t, err)
	e := NewEngine(ds)

	xyz, err := e.SpectrumToXYZ(rampCurve(deviceGrid()), "D65/10")
	require.NoError(t, err)
	assert.Greater(t, xyz.Y, 0.0)
	assert.Less(t, xyz.Y, 100.0)
	assert.Greater(t, xyz.X, 0.0)
	assert.Greater(t, xyz.Z, 0.0)
}

func TestSpectrumToXYZ_UpsamplePath(t *testing.T) {
	// 原生5nm参考网格 + 10nm设备曲线：曲线线性插值上采样
	ds, err := LoadDataset(nil)
	require.NoError(t, err)
	e := NewEngine(ds)

	xyz, err := e.SpectrumToXYZ(rampCurve(deviceGrid()), "D65/10")
	require.NoError(t, err)
	assert.Greater(t, xyz.Y, 0.0)
	assert.Less(t, xyz.Y, 100.0)

	// 平坦曲线上采样后仍平坦，Y仍为50
	xyz, err = e.SpectrumToXYZ(flatCurve(deviceGrid(), 50), "D65/10")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, xyz.Y, 1e-9)
}

func TestSpectrumToXYZ_Emissive(t *testing.T) {
	ds, err := LoadDataset(deviceGrid())
	require.NoError(t, err)
	e := NewEngine(ds)

	xyz, err := e.SpectrumToXYZ(flatCurve(deviceGrid(), 80), "")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, xyz.Y, 1e-9, "发射模式按自身ȳ积分归一化")
	assert.Greater(t, xyz.X, 0.0)
	assert.Greater(t, xyz.Z, 0.0)
}

func TestSpectrumToXYZ_Errors(t *testing.T) {
	ds, err := LoadDataset(deviceGrid())
	require.NoError(t, err)
	e := NewEngine(ds)

	_, err = e.SpectrumToXYZ(SpectralCurve{Wavelengths: deviceGrid(), Values: []float64{1, 2}}, "D65/10")
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = e.SpectrumToXYZ(SpectralCurve{}, "D65/10")
	assert.ErrorIs(t, err, ErrLengthMismatch)

	short := SpectralCurve{Wavelengths: []float64{400, 410}, Values: []float64{50, 50}}
	_, err = e.SpectrumToXYZ(short, "D65/10")
	assert.ErrorIs(t, err, ErrLengthMismatch, "工作网格模式下曲线长度必须对齐")

	_, err = e.SpectrumToXYZ(flatCurve(deviceGrid(), 50), "D99/10")
	assert.ErrorIs(t, err, ErrUnknownIlluminant)
}

func TestKOverS(t *testing.T) {
	ks := KOverS([]float64{50})
	assert.InDelta(t, 0.25, ks[0], 1e-12) // (1-0.5)^2 / (2*0.5)

	ks = KOverS([]float64{0, 100})
	assert.InDelta(t, (1-0.01)*(1-0.01)/(2*0.01), ks[0], 1e-9, "下限压缩到0.01")
	assert.InDelta(t, (1-0.99)*(1-0.99)/(2*0.99), ks[1], 1e-9, "上限压缩到0.99")
}

package colorscience

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// 参考数据集
// CIE 观察者与标准光源表以CSV形式内嵌 (5nm, 380–780nm)，进程内只加载一次，
// 可在加载时最近邻重采样到工作网格（如设备的10nm网格）。

//go:embed data/*.csv
var dataFS embed.FS

var (
	ErrUnknownObserver   = errors.New("colorscience: unknown observer")
	ErrUnknownIlluminant = errors.New("colorscience: unknown illuminant")
)

// Observer 配色函数表
type Observer struct {
	Wavelengths []float64
	XBar        []float64
	YBar        []float64
	ZBar        []float64
}

// Illuminant 光源相对光谱功率表
type Illuminant struct {
	Wavelengths []float64
	Values      []float64
}

// Dataset 进程内只加载一次的参考表集合，grid 非空时所有表已重采样到该网格
type Dataset struct {
	grid        []float64
	observers   map[string]Observer
	illuminants map[string]Illuminant
}

var observerFiles = map[string]string{
	"2":  "data/CIE_xyz_1931_2deg.csv",
	"10": "data/CIE_xyz_1964_10deg.csv",
}

var illuminantFiles = map[string]string{
	"D65": "data/CIE_std_illum_D65.csv",
	"D50": "data/CIE_std_illum_D50.csv",
	"A":   "data/CIE_std_illum_A.csv",
}

// LoadDataset 加载内嵌参考表。grid 非空时按最近邻降采样到该网格
// （设备分辨率），为空时保留原生5nm网格供上采样路径使用。
func LoadDataset(grid []float64) (*Dataset, error) {
	ds := &Dataset{
		grid:        append([]float64(nil), grid...),
		observers:   make(map[string]Observer, len(observerFiles)),
		illuminants: make(map[string]Illuminant, len(illuminantFiles)),
	}
	for name, path := range observerFiles {
		rows, err := loadCSV(path)
		if err != nil {
			return nil, err
		}
		obs := Observer{
			Wavelengths: column(rows, 0),
			XBar:        column(rows, 1),
			YBar:        column(rows, 2),
			ZBar:        column(rows, 3),
		}
		if len(grid) > 0 {
			obs = Observer{
				Wavelengths: append([]float64(nil), grid...),
				XBar:        downsampleNearest(grid, obs.Wavelengths, obs.XBar),
				YBar:        downsampleNearest(grid, obs.Wavelengths, obs.YBar),
				ZBar:        downsampleNearest(grid, obs.Wavelengths, obs.ZBar),
			}
		}
		ds.observers[name] = obs
	}
	for name, path := range illuminantFiles {
		rows, err := loadCSV(path)
		if err != nil {
			return nil, err
		}
		ill := Illuminant{Wavelengths: column(rows, 0), Values: column(rows, 1)}
		if len(grid) > 0 {
			ill = Illuminant{
				Wavelengths: append([]float64(nil), grid...),
				Values:      downsampleNearest(grid, ill.Wavelengths, ill.Values),
			}
		}
		ds.illuminants[name] = ill
	}
	return ds, nil
}

// Grid 返回工作网格，未重采样时为 nil
func (d *Dataset) Grid() []float64 {
	return append([]float64(nil), d.grid...)
}

// Observer 按名称取配色函数表（"2" 或 "10"）
func (d *Dataset) Observer(name string) (Observer, error) {
	obs, ok := d.observers[name]
	if !ok {
		return Observer{}, fmt.Errorf("%w: %q", ErrUnknownObserver, name)
	}
	return obs, nil
}

// Illuminant 按名称取光源表（"D65"/"D50"/"A"）
func (d *Dataset) Illuminant(name string) (Illuminant, error) {
	ill, ok := d.illuminants[name]
	if !ok {
		return Illuminant{}, fmt.Errorf("%w: %q", ErrUnknownIlluminant, name)
	}
	return ill, nil
}

// parseRef 拆分 "D65/10" 形式的参考条件，缺省 D65 与 10° 观察者
func parseRef(ref string) (illum, observer string) {
	illum, observer = "D65", "10"
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return
	}
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		if ref[:i] != "" {
			illum = ref[:i]
		}
		if ref[i+1:] != "" {
			observer = ref[i+1:]
		}
		return
	}
	illum = ref
	return
}

func loadCSV(path string) ([][]float64, error) {
	f, err := dataFS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference table: %w", err)
	}
	defer f.Close()

	var rows [][]float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if len(line) < 3 {
			continue
		}
		parts := strings.Split(line, ",")
		row := make([]float64, len(parts))
		for i, p := range parts {
			if strings.EqualFold(strings.TrimSpace(p), "nan") {
				row[i] = 0
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func column(rows [][]float64, idx int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r[idx]
	}
	return out
}

// downsampleNearest 把 (xp, yp) 降采样到网格 x，取最近样本
func downsampleNearest(x, xp, yp []float64) []float64 {
	out := make([]float64, len(x))
	for i, xi := range x {
		best := 0
		bestDist := math.Abs(xp[0] - xi)
		for j := 1; j < len(xp); j++ {
			if d := math.Abs(xp[j] - xi); d < bestDist {
				best, bestDist = j, d
			}
		}
		out[i] = yp[best]
	}
	return out
}

// restrictToRange 把 (xp, yp) 截断到 [min(x), max(x)] 区间内
func restrictToRange(x, xp, yp []float64) (rx, ry []float64) {
	lo, hi := x[0], x[0]
	for _, v := range x {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	for i, v := range xp {
		if v >= lo && v <= hi {
			rx = append(rx, v)
			ry = append(ry, yp[i])
		}
	}
	return rx, ry
}

// upsampleInterp 把低分辨率 (xp, yp) 线性插值到高分辨率网格 x，
// 超出范围时取端点值
func upsampleInterp(x, xp, yp []float64) []float64 {
	out := make([]float64, len(x))
	for i, xi := range x {
		out[i] = interp(xi, xp, yp)
	}
	return out
}

func interp(xi float64, xp, yp []float64) float64 {
	if xi <= xp[0] {
		return yp[0]
	}
	if xi >= xp[len(xp)-1] {
		return yp[len(yp)-1]
	}
	for j := 0; j < len(xp)-1; j++ {
		if xp[j] <= xi && xi <= xp[j+1] {
			t := (xi - xp[j]) / (xp[j+1] - xp[j])
			return yp[j] + t*(yp[j+1]-yp[j])
		}
	}
	return yp[len(yp)-1]
}

package service

import (
	"go.uber.org/zap"

	"github.com/chromalab/cr30d/internal/colorscience"
	"github.com/chromalab/cr30d/internal/session"
	"github.com/chromalab/cr30d/internal/storage"
)

// Recorder 把测量结果换算成色度并写入归档库。
// 注册为会话观察者后，主机触发与设备按键产生的测量都会落库。
type Recorder struct {
	repo       *storage.MeasurementRepo
	engine     *colorscience.Engine
	illuminant string
	log        *zap.Logger
}

func NewRecorder(repo *storage.MeasurementRepo, engine *colorscience.Engine, illuminant string, log *zap.Logger) *Recorder {
	if illuminant == "" {
		illuminant = "D65/10"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{repo: repo, engine: engine, illuminant: illuminant, log: log}
}

// Record 归档单个测量结果。换算失败只影响色度字段，光谱仍然入库。
func (r *Recorder) Record(res *session.Result) {
	m := &storage.Measurement{
		ID:         res.ID,
		TakenAt:    res.TakenAt,
		Complete:   res.Curve.Complete,
		Illuminant: r.illuminant,
	}
	if err := m.SetSPD(res.Curve.Values); err != nil {
		r.log.Error("encode spd failed", zap.String("id", res.ID), zap.Error(err))
		return
	}

	if r.engine != nil && len(res.Curve.Values) > 0 {
		xyz, err := r.engine.SpectrumToXYZ(res.Curve, r.illuminant)
		if err != nil {
			r.log.Warn("spectrum conversion failed", zap.String("id", res.ID), zap.Error(err))
		} else {
			white, _ := colorscience.WhitePoint(r.illuminant)
			lab := colorscience.XYZToLab(xyz, white)
			rgb := colorscience.XYZToRGB(xyz)
			m.X, m.Y, m.Z = xyz.X, xyz.Y, xyz.Z
			m.LabL, m.LabA, m.LabB = lab.L, lab.A, lab.B
			m.R, m.G, m.B = rgb.Clamp8()
		}
	}

	if err := r.repo.Save(m); err != nil {
		r.log.Error("archive measurement failed", zap.String("id", res.ID), zap.Error(err))
		return
	}
	r.log.Info("measurement archived",
		zap.String("id", res.ID), zap.Bool("complete", m.Complete))
}

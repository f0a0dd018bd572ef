package storage

import (
	"encoding/json"
	"time"
)

// Measurement 一次测量的归档记录。光谱以JSON数组持久化，
// 色度值在入库前由色彩引擎换算完成。
type Measurement struct {
	ID       string    `gorm:"primarykey;size:36" json:"id"`
	TakenAt  time.Time `gorm:"index" json:"takenAt"`
	Complete bool      `json:"complete"`

	Illuminant string `gorm:"size:16" json:"illuminant"`
	SPD        string `json:"spd"` // JSON数组，31个反射率值

	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	LabL float64 `json:"labL"`
	LabA float64 `json:"labA"`
	LabB float64 `json:"labB"`

	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func (Measurement) TableName() string {
	return "measurements"
}

// SetSPD 序列化光谱值
func (m *Measurement) SetSPD(values []float64) error {
	if values == nil {
		m.SPD = "[]"
		return nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	m.SPD = string(raw)
	return nil
}

// SPDValues 反序列化光谱值，空记录返回空切片
func (m *Measurement) SPDValues() ([]float64, error) {
	if m.SPD == "" {
		return nil, nil
	}
	var values []float64
	if err := json.Unmarshal([]byte(m.SPD), &values); err != nil {
		return nil, err
	}
	return values, nil
}

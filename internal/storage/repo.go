package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("storage: measurement not found")

// MeasurementRepo 测量记录仓储
type MeasurementRepo struct {
	db *gorm.DB
}

func NewMeasurementRepo(db *gorm.DB) *MeasurementRepo {
	return &MeasurementRepo{db: db}
}

// Save 写入一条测量记录
func (r *MeasurementRepo) Save(m *Measurement) error {
	if m == nil {
		return fmt.Errorf("storage: measurement cannot be nil")
	}
	if m.ID == "" {
		return fmt.Errorf("storage: measurement id is empty")
	}
	return r.db.Create(m).Error
}

// Get 按ID查询
func (r *MeasurementRepo) Get(id string) (*Measurement, error) {
	var m Measurement
	err := r.db.Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Recent 按时间倒序返回最近的记录
func (r *MeasurementRepo) Recent(limit int) ([]Measurement, error) {
	if limit <= 0 {
		limit = 20
	}
	var ms []Measurement
	err := r.db.Order("taken_at DESC").Limit(limit).Find(&ms).Error
	return ms, err
}

// Count 记录总数
func (r *MeasurementRepo) Count() (int64, error) {
	var count int64
	err := r.db.Model(&Measurement{}).Count(&count).Error
	return count, err
}

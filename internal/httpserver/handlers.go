package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chromalab/cr30d/internal/colorscience"
	cfgpkg "github.com/chromalab/cr30d/internal/config"
	"github.com/chromalab/cr30d/internal/session"
	"github.com/chromalab/cr30d/internal/storage"
)

// handlers 设备API处理器
type handlers struct {
	device  Device
	archive Archive
	engine  *colorscience.Engine
	measure cfgpkg.MeasureConfig
	limiter *rate.Limiter
	log     *zap.Logger
}

func newHandlers(deps Deps) *handlers {
	return &handlers{
		device:  deps.Device,
		archive: deps.Archive,
		engine:  deps.Engine,
		measure: deps.Measure,
		limiter: deps.Limiter,
		log:     deps.Logger,
	}
}

// allow 测量与校准共用的限流闸门
func (h *handlers) allow(c *gin.Context) bool {
	if h.limiter == nil || h.limiter.Allow() {
		return true
	}
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "device busy, retry later"})
	return false
}

// GetDevice 查询设备信息与会话状态
func (h *handlers) GetDevice(c *gin.Context) {
	if h.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "device not attached"})
		return
	}
	id := h.device.Identity()
	c.JSON(http.StatusOK, gin.H{
		"state":    h.device.State().String(),
		"name":     id.DisplayName(),
		"model":    id.DisplayModel(),
		"serial":   id.DisplaySerial(),
		"firmware": id.DisplayFirmware(),
		"build":    id.Build,
	})
}

// ListMeasurements 查询最近的归档记录
func (h *handlers) ListMeasurements(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
		return
	}
	limit := 20
	if v := c.Query("limit"); v != "" {
		if vv, e := strconv.Atoi(v); e == nil {
			limit = vv
		}
	}
	list, err := h.archive.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// 初始化为空数组，避免JSON序列化为null
	if list == nil {
		list = []storage.Measurement{}
	}
	c.JSON(http.StatusOK, gin.H{"measurements": list})
}

// GetMeasurement 按ID查询归档记录
func (h *handlers) GetMeasurement(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
		return
	}
	m, err := h.archive.Get(c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"measurement": m})
}

type measureRequest struct {
	Mode       string `json:"mode"`       // trigger(默认) | button
	Count      int    `json:"count"`      // >1 时取平均
	Illuminant string `json:"illuminant"` // 默认 D65/10
}

type calibrateRequest struct {
	Mode string `json:"mode" binding:"required"` // black | white
}

// TriggerMeasure 触发一次测量并返回光谱与色度换算
func (h *handlers) TriggerMeasure(c *gin.Context) {
	if h.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "device not attached"})
		return
	}
	if !h.allow(c) {
		return
	}

	var req measureRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Count < 1 {
		req.Count = 1
	}
	if req.Illuminant == "" {
		req.Illuminant = "D65/10"
	}

	var (
		r   *session.Result
		err error
	)
	switch req.Mode {
	case "", "trigger":
		if req.Count > 1 {
			r, err = h.device.MeasureAvg(req.Count, 200*time.Millisecond, h.measure.StepTimeout)
		} else {
			r, err = h.device.Measure(h.measure.StepTimeout)
		}
	case "button":
		r, err = h.device.WaitMeasurement(h.measure.ButtonWait, h.measure.StepTimeout)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown mode %q", req.Mode)})
		return
	}
	if errors.Is(err, session.ErrTimeout) {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"id":       r.ID,
		"takenAt":  r.TakenAt,
		"complete": r.Curve.Complete,
		"curve": gin.H{
			"wavelengths": r.Curve.Wavelengths,
			"values":      r.Curve.Values,
		},
	}
	if color, ok := h.convert(r, req.Illuminant); ok {
		resp["color"] = color
	}
	c.JSON(http.StatusOK, resp)
}

// convert 光谱到色度的换算，曲线无数据或引擎未配置时跳过
func (h *handlers) convert(r *session.Result, illuminant string) (gin.H, bool) {
	if h.engine == nil || len(r.Curve.Values) == 0 {
		return nil, false
	}
	xyz, err := h.engine.SpectrumToXYZ(r.Curve, illuminant)
	if err != nil {
		h.log.Warn("spectrum conversion failed", zap.String("illuminant", illuminant), zap.Error(err))
		return nil, false
	}
	white, _ := colorscience.WhitePoint(illuminant)
	lab := colorscience.XYZToLab(xyz, white)
	rgb := colorscience.XYZToRGB(xyz)
	r8, g8, b8 := rgb.Clamp8()
	return gin.H{
		"illuminant": illuminant,
		"xyz":        gin.H{"x": xyz.X, "y": xyz.Y, "z": xyz.Z},
		"lab":        gin.H{"l": lab.L, "a": lab.A, "b": lab.B},
		"rgb":        gin.H{"r": r8, "g": g8, "b": b8},
		"hex":        fmt.Sprintf("#%02X%02X%02X", r8, g8, b8),
	}, true
}

// TriggerCalibrate 黑/白板校准
func (h *handlers) TriggerCalibrate(c *gin.Context) {
	if h.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "device not attached"})
		return
	}
	if !h.allow(c) {
		return
	}

	var req calibrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var mode session.CalibrationMode
	switch req.Mode {
	case "black":
		mode = session.CalibrateBlack
	case "white":
		mode = session.CalibrateWhite
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown mode %q", req.Mode)})
		return
	}

	res, err := h.device.Calibrate(mode, h.measure.StepTimeout)
	if errors.Is(err, session.ErrTimeout) {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": req.Mode, "result": res})
}

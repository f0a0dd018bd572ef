package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chromalab/cr30d/internal/colorscience"
	cfgpkg "github.com/chromalab/cr30d/internal/config"
	"github.com/chromalab/cr30d/internal/health"
	"github.com/chromalab/cr30d/internal/protocol/cr30"
	"github.com/chromalab/cr30d/internal/session"
	"github.com/chromalab/cr30d/internal/storage"
)

// Device 驱动会话能力，由 session.Session 实现
type Device interface {
	State() session.State
	Identity() cr30.DeviceIdentity
	Measure(stepTimeout time.Duration) (*session.Result, error)
	MeasureAvg(count int, delay, stepTimeout time.Duration) (*session.Result, error)
	WaitMeasurement(wait, stepTimeout time.Duration) (*session.Result, error)
	Calibrate(mode session.CalibrationMode, timeout time.Duration) (session.CalibrationResult, error)
}

// Archive 测量归档查询能力，由 storage.MeasurementRepo 实现
type Archive interface {
	Recent(limit int) ([]storage.Measurement, error)
	Get(id string) (*storage.Measurement, error)
}

// Deps 服务依赖。Archive/Engine/Limiter 可为 nil，对应路由降级或不限流。
type Deps struct {
	Device  Device
	Archive Archive
	Engine  *colorscience.Engine
	Measure cfgpkg.MeasureConfig

	// Limiter 限制测量与校准端点的触发频率：设备同一时刻只能执行一个物理动作
	Limiter *rate.Limiter

	// Health 就绪与详细健康检查聚合器，可为 nil（退化为仅看会话状态）
	Health *health.Aggregator

	MetricsPath    string
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

// Server HTTP 服务封装
type Server struct {
	srv *http.Server
}

// New 创建并配置 Gin + HTTP Server，注册健康检查、指标与设备API路由
func New(cfg cfgpkg.HTTPConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		ready := deps.Device != nil && deps.Device.State() == session.Ready
		if deps.Health != nil {
			ready = deps.Health.Ready(c.Request.Context())
		}
		if ready {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	if deps.Health != nil {
		r.GET("/health", func(c *gin.Context) {
			report := deps.Health.Report(c.Request.Context())
			code := http.StatusOK
			if report.Status == health.StatusUnhealthy {
				code = http.StatusServiceUnavailable
			}
			c.JSON(code, report)
		})
	}

	metricsPath := deps.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if deps.MetricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(deps.MetricsHandler))
	}

	h := newHandlers(deps)
	api := r.Group("/api/v1")
	api.GET("/device", h.GetDevice)
	api.GET("/measurements", h.ListMeasurements)
	api.GET("/measurements/:id", h.GetMeasurement)
	api.POST("/measure", h.TriggerMeasure)
	api.POST("/calibrate", h.TriggerCalibrate)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv}
}

// Start 启动 HTTP 服务（阻塞）
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chromalab/cr30d/internal/colorscience"
	cfgpkg "github.com/chromalab/cr30d/internal/config"
	"github.com/chromalab/cr30d/internal/health"
	"github.com/chromalab/cr30d/internal/httpserver"
	"github.com/chromalab/cr30d/internal/logging"
	"github.com/chromalab/cr30d/internal/metrics"
	"github.com/chromalab/cr30d/internal/protocol/cr30"
	"github.com/chromalab/cr30d/internal/service"
	"github.com/chromalab/cr30d/internal/session"
	"github.com/chromalab/cr30d/internal/storage"
	"github.com/chromalab/cr30d/internal/transport"
)

var errNoDevice = errors.New("device not connected")

// deviceProxy 在重连之间保持稳定的设备句柄。
// 串口断链后会话被整体重建，HTTP 层通过代理始终引用当前会话。
type deviceProxy struct {
	cur atomic.Value // *session.Session
}

func (p *deviceProxy) set(s *session.Session) { p.cur.Store(s) }

func (p *deviceProxy) get() *session.Session {
	s, _ := p.cur.Load().(*session.Session)
	return s
}

func (p *deviceProxy) State() session.State {
	if s := p.get(); s != nil {
		return s.State()
	}
	return session.Disconnected
}

func (p *deviceProxy) Identity() cr30.DeviceIdentity {
	if s := p.get(); s != nil {
		return s.Identity()
	}
	return cr30.DeviceIdentity{}
}

func (p *deviceProxy) Measure(stepTimeout time.Duration) (*session.Result, error) {
	if s := p.get(); s != nil {
		return s.Measure(stepTimeout)
	}
	return nil, errNoDevice
}

func (p *deviceProxy) MeasureAvg(count int, delay, stepTimeout time.Duration) (*session.Result, error) {
	if s := p.get(); s != nil {
		return s.MeasureAvg(count, delay, stepTimeout)
	}
	return nil, errNoDevice
}

func (p *deviceProxy) WaitMeasurement(wait, stepTimeout time.Duration) (*session.Result, error) {
	if s := p.get(); s != nil {
		return s.WaitMeasurement(wait, stepTimeout)
	}
	return nil, errNoDevice
}

func (p *deviceProxy) Calibrate(mode session.CalibrationMode, timeout time.Duration) (session.CalibrationResult, error) {
	if s := p.get(); s != nil {
		return s.Calibrate(mode, timeout)
	}
	return session.CalibrationResult{}, errNoDevice
}

// runDeviceLoop 打开串口、握手并在断链后重连
func runDeviceLoop(ctx context.Context, cfg *cfgpkg.Config, proxy *deviceProxy,
	rec *service.Recorder, log *zap.Logger, m *metrics.AppMetrics) {
	const retryDelay = 3 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		port, err := transport.OpenPort(cfg.Serial)
		if err != nil {
			log.Warn("open serial failed, retrying",
				zap.String("port", cfg.Serial.Port), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		tr := transport.New(port, cfg.Serial.QueueSize, log, m)
		sess := session.New(tr, cfg.Handshake.StepTimeout, log, m)
		if rec != nil {
			sess.SubscribeResults(rec.Record)
		}
		tr.Start()
		proxy.set(sess)

		sess.Handshake()

		select {
		case <-tr.Done():
			sess.MarkDisconnected()
			log.Warn("device disconnected, reconnecting")
		case <-ctx.Done():
			_ = tr.Close()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

func main() {
	// 1) 加载配置
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	// 3) 指标注册与处理器
	var (
		appMetrics     *metrics.AppMetrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enable {
		reg := metrics.NewRegistry()
		appMetrics = metrics.NewAppMetrics(reg)
		metricsHandler = metrics.Handler(reg)
	}

	// 4) 色彩数据集与引擎（按设备波长网格重采样）
	ds, err := colorscience.LoadDataset(cr30.DeviceGrid())
	if err != nil {
		log.Fatal("load colorimetry dataset", zap.Error(err))
	}
	engine := colorscience.NewEngine(ds)

	// 5) 测量归档
	db, err := storage.Open(cfg.Storage.Path, log)
	if err != nil {
		log.Fatal("open measurement archive", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	repo := storage.NewMeasurementRepo(db.GORM())
	recorder := service.NewRecorder(repo, engine, "D65/10", log)

	// 6) 设备连接循环
	proxy := &deviceProxy{}
	ctx, cancel := context.WithCancel(context.Background())
	go runDeviceLoop(ctx, cfg, proxy, recorder, log, appMetrics)

	// 7) HTTP 服务
	checks := health.NewAggregator(
		health.NewArchiveChecker(db),
		health.NewDeviceChecker(proxy),
	)
	httpSrv := httpserver.New(cfg.HTTP, httpserver.Deps{
		Device:         proxy,
		Archive:        repo,
		Engine:         engine,
		Measure:        cfg.Measure,
		Limiter:        rate.NewLimiter(rate.Every(time.Second), 1),
		Health:         checks,
		MetricsPath:    cfg.Metrics.Path,
		MetricsHandler: metricsHandler,
		Logger:         log,
	})
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
		}
	}()

	log.Info("cr30d started",
		zap.String("serial", cfg.Serial.Port),
		zap.String("http", cfg.HTTP.Addr))

	// 信号处理，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	FramesReceived    prometheus.Counter     // 读循环收到的有效帧
	FramesInvalid     *prometheus.CounterVec // labels: reason=malformed|checksum
	FramesDropped     prometheus.Counter     // 队列满被丢弃的帧
	BytesReceived     prometheus.Counter     // 串口累计接收字节
	MeasurementsTotal *prometheus.CounterVec // labels: result=complete|partial|error
	CalibrationsTotal *prometheus.CounterVec // labels: mode=black|white, result=ok|failed|timeout
	SPDBytes          prometheus.Counter     // 累计装配的光谱字节
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serial_frames_received_total",
			Help: "Total valid frames accepted by the read loop.",
		}),
		FramesInvalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "serial_frames_invalid_total",
			Help: "Discarded 60-byte windows by reason.",
		}, []string{"reason"}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serial_frames_dropped_total",
			Help: "Valid frames dropped because the FIFO was full.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serial_bytes_received_total",
			Help: "Total bytes received over the serial link.",
		}),
		MeasurementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "measurements_total",
			Help: "Measurement attempts by result.",
		}, []string{"result"}),
		CalibrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calibrations_total",
			Help: "Calibration attempts by mode and result.",
		}, []string{"mode", "result"}),
		SPDBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spd_bytes_accumulated_total",
			Help: "Total spectral bytes assembled from measurement chunks.",
		}),
	}
	reg.MustRegister(m.FramesReceived, m.FramesInvalid, m.FramesDropped,
		m.BytesReceived, m.MeasurementsTotal, m.CalibrationsTotal, m.SPDBytes)
	return m
}

// 以下封装允许 m 为 nil（未启用指标或测试时安全跳过）

// IncFrameReceived 有效帧与字节计数
func (m *AppMetrics) IncFrameReceived(n int) {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
	m.BytesReceived.Add(float64(n))
}

// IncFrameInvalid 无效帧计数
func (m *AppMetrics) IncFrameInvalid(reason string) {
	if m == nil {
		return
	}
	m.FramesInvalid.WithLabelValues(reason).Inc()
}

// IncFrameDropped 队列满丢帧计数
func (m *AppMetrics) IncFrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

// IncMeasurement 测量结果计数
func (m *AppMetrics) IncMeasurement(result string) {
	if m == nil {
		return
	}
	m.MeasurementsTotal.WithLabelValues(result).Inc()
}

// IncCalibration 校准结果计数
func (m *AppMetrics) IncCalibration(mode, result string) {
	if m == nil {
		return
	}
	m.CalibrationsTotal.WithLabelValues(mode, result).Inc()
}

// AddSPDBytes 光谱字节计数
func (m *AppMetrics) AddSPDBytes(n int) {
	if m == nil {
		return
	}
	m.SPDBytes.Add(float64(n))
}

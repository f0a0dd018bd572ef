package health

import (
	"context"
	"time"

	"github.com/chromalab/cr30d/internal/session"
)

// StateReporter 设备会话状态能力
type StateReporter interface {
	State() session.State
}

// DeviceChecker 设备链路健康检查器。
// 设备离线只降级不判不健康：归档查询仍可服务。
type DeviceChecker struct {
	dev StateReporter
}

func NewDeviceChecker(dev StateReporter) *DeviceChecker {
	return &DeviceChecker{dev: dev}
}

func (c *DeviceChecker) Name() string {
	return "device"
}

func (c *DeviceChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	state := c.dev.State()

	status := StatusDegraded
	message := "handshake in progress"
	switch state {
	case session.Ready:
		status = StatusHealthy
		message = "ok"
	case session.Disconnected:
		message = "device disconnected"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]interface{}{"state": state.String()},
		Latency: time.Since(start),
	}
}

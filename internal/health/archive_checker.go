package health

import (
	"context"
	"fmt"
	"time"
)

// Pinger 归档库连接探测能力，由 storage.DB 实现
type Pinger interface {
	Health() error
}

// ArchiveChecker 测量归档库健康检查器
type ArchiveChecker struct {
	db Pinger
}

func NewArchiveChecker(db Pinger) *ArchiveChecker {
	return &ArchiveChecker{db: db}
}

func (c *ArchiveChecker) Name() string {
	return "archive"
}

// Check 归档库不可达时整体不健康：测量结果无处落库
func (c *ArchiveChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.db.Health(); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Latency: time.Since(start),
	}
}

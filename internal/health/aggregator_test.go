package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromalab/cr30d/internal/session"
)

// mockChecker 模拟检查器
type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{
		Status:  m.status,
		Message: "mock",
		Latency: time.Millisecond,
	}
}

func TestAggregator(t *testing.T) {
	t.Run("全部健康", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"archive", StatusHealthy},
			&mockChecker{"device", StatusHealthy},
		)

		if status := agg.OverallStatus(context.Background()); status != StatusHealthy {
			t.Errorf("期望StatusHealthy，实际: %v", status)
		}
		if !agg.Ready(context.Background()) {
			t.Error("全部健康时应该Ready")
		}
	})

	t.Run("设备降级仍然Ready", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"archive", StatusHealthy},
			&mockChecker{"device", StatusDegraded},
		)

		if status := agg.OverallStatus(context.Background()); status != StatusDegraded {
			t.Errorf("期望StatusDegraded，实际: %v", status)
		}
		if !agg.Ready(context.Background()) {
			t.Error("降级状态应该仍然Ready")
		}
	})

	t.Run("归档不健康则不Ready", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"archive", StatusUnhealthy},
			&mockChecker{"device", StatusHealthy},
		)

		if status := agg.OverallStatus(context.Background()); status != StatusUnhealthy {
			t.Errorf("期望StatusUnhealthy，实际: %v", status)
		}
		if agg.Ready(context.Background()) {
			t.Error("不健康状态不应该Ready")
		}
	})

	t.Run("CheckAll并发执行", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"check1", StatusHealthy},
			&mockChecker{"check2", StatusHealthy},
			&mockChecker{"check3", StatusHealthy},
		)

		results := agg.CheckAll(context.Background())
		if len(results) != 3 {
			t.Errorf("期望3个结果，实际: %d", len(results))
		}
	})

	t.Run("动态添加检查器", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"initial", StatusHealthy})
		agg.AddChecker(&mockChecker{"added", StatusHealthy})

		results := agg.CheckAll(context.Background())
		if len(results) != 2 {
			t.Errorf("期望2个结果，实际: %d", len(results))
		}
	})

	t.Run("Report包含全部结果", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"archive", StatusHealthy},
			&mockChecker{"device", StatusDegraded},
		)

		report := agg.Report(context.Background())
		if report.Status != StatusDegraded {
			t.Errorf("期望StatusDegraded，实际: %v", report.Status)
		}
		if len(report.Checks) != 2 {
			t.Errorf("期望2个检查结果，实际: %d", len(report.Checks))
		}
	})
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Health() error { return f.err }

func TestArchiveChecker(t *testing.T) {
	t.Run("连接正常", func(t *testing.T) {
		c := NewArchiveChecker(&fakePinger{})
		result := c.Check(context.Background())
		if result.Status != StatusHealthy {
			t.Errorf("期望StatusHealthy，实际: %v", result.Status)
		}
	})

	t.Run("连接失败", func(t *testing.T) {
		c := NewArchiveChecker(&fakePinger{err: errors.New("database is locked")})
		result := c.Check(context.Background())
		if result.Status != StatusUnhealthy {
			t.Errorf("期望StatusUnhealthy，实际: %v", result.Status)
		}
	})
}

type fakeStateReporter struct {
	state session.State
}

func (f *fakeStateReporter) State() session.State { return f.state }

func TestDeviceChecker(t *testing.T) {
	cases := []struct {
		名称   string
		state session.State
		want  Status
	}{
		{"就绪", session.Ready, StatusHealthy},
		{"握手中", session.Initializing, StatusDegraded},
		{"断链", session.Disconnected, StatusDegraded},
	}
	for _, tc := range cases {
		t.Run(tc.名称, func(t *testing.T) {
			c := NewDeviceChecker(&fakeStateReporter{state: tc.state})
			result := c.Check(context.Background())
			if result.Status != tc.want {
				t.Errorf("期望%v，实际: %v", tc.want, result.Status)
			}
		})
	}
}

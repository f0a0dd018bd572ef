package transport

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"go.uber.org/zap"

	"github.com/chromalab/cr30d/internal/metrics"
	"github.com/chromalab/cr30d/internal/protocol/cr30"
)

// Transport 持有字节流连接，运行固定60字节窗口的读循环。
// 校验通过的帧进入FIFO并同步广播给诊断观察者；帧接收路径与
// 请求/响应调用解耦，保证请求间隙到达的主动帧（按键测量）不丢失。
//
// 同步策略：窗口内容非法时仅计数、告警并丢弃该窗口，不做逐字节
// 重同步——短读视为断链，由上层重连恢复对齐。

var ErrClosed = errors.New("transport: closed")

// Observer 原始帧观察者，读循环内同步调用，每帧至多一次，不得阻塞
type Observer func(*cr30.Frame)

type Transport struct {
	rw        io.ReadWriteCloser
	frames    chan *cr30.Frame
	observers []Observer
	log       *zap.Logger
	m         *metrics.AppMetrics

	wmu       sync.Mutex // 串行化写入
	done      chan struct{}
	closeOnce sync.Once
}

// New 创建传输层。queueSize 为帧FIFO容量；m 可为 nil。
func New(rw io.ReadWriteCloser, queueSize int, log *zap.Logger, m *metrics.AppMetrics) *Transport {
	if queueSize <= 0 {
		queueSize = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{
		rw:     rw,
		frames: make(chan *cr30.Frame, queueSize),
		log:    log,
		m:      m,
		done:   make(chan struct{}),
	}
}

// Subscribe 注册原始帧观察者，须在 Start 之前调用
func (t *Transport) Subscribe(fn Observer) {
	t.observers = append(t.observers, fn)
}

// Start 启动读循环
func (t *Transport) Start() {
	go t.readLoop()
}

// readLoop 持续读取精确60字节窗口。短读/读错误视为断链并终止循环；
// 零字节的串口空闲超时除外——按键测量间隔里链路本来就静默。
func (t *Transport) readLoop() {
	buf := make([]byte, cr30.FrameSize)
	for {
		if n, err := io.ReadFull(t.rw, buf); err != nil {
			if n == 0 && errors.Is(err, serial.ErrTimeout) {
				continue
			}
			select {
			case <-t.done:
			default:
				t.log.Warn("read loop terminated", zap.Error(err))
			}
			t.markDone()
			return
		}

		f, err := cr30.Decode(buf)
		if err != nil {
			t.m.IncFrameInvalid("malformed")
			t.log.Warn("discard malformed window", zap.Error(err))
			continue
		}
		if !f.Verify() {
			t.m.IncFrameInvalid("checksum")
			t.log.Warn("discard frame with bad checksum",
				zap.Uint8("cmd", f.Cmd), zap.Uint8("subcmd", f.Subcmd))
			continue
		}

		t.m.IncFrameReceived(cr30.FrameSize)
		select {
		case t.frames <- f:
		default:
			t.m.IncFrameDropped()
			t.log.Warn("frame fifo full, dropping frame",
				zap.Uint8("cmd", f.Cmd), zap.Uint8("subcmd", f.Subcmd))
		}

		// 诊断广播：仅副作用，无背压
		for _, fn := range t.observers {
			fn(f)
		}
	}
}

// Send 编码并写入一帧
func (t *Transport) Send(start, cmd, subcmd, param byte, payload []byte) error {
	raw, err := cr30.Encode(start, cmd, subcmd, param, payload)
	if err != nil {
		return err
	}
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	if _, err := t.rw.Write(raw); err != nil {
		return err
	}
	return nil
}

// Recv 从FIFO取一帧，最多等待 timeout。超时返回 (nil, false)，
// 属正常结果而非错误，由调用方解释。
func (t *Transport) Recv(timeout time.Duration) (*cr30.Frame, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f := <-t.frames:
		return f, true
	case <-timer.C:
		return nil, false
	case <-t.done:
		// 断链时先排空已入队的帧
		select {
		case f := <-t.frames:
			return f, true
		default:
			return nil, false
		}
	}
}

// SendRecv 发送后阻塞等待一帧回复
func (t *Transport) SendRecv(start, cmd, subcmd, param byte, payload []byte, timeout time.Duration) (*cr30.Frame, bool, error) {
	if err := t.Send(start, cmd, subcmd, param, payload); err != nil {
		return nil, false, err
	}
	f, ok := t.Recv(timeout)
	return f, ok, nil
}

// Flush 丢弃FIFO中滞留的帧，在开始新的逻辑交换前调用
func (t *Transport) Flush() int {
	n := 0
	for {
		select {
		case <-t.frames:
			n++
		default:
			return n
		}
	}
}

// Done 读循环结束（断链或关闭）时关闭
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Close 停止读循环并释放连接。进行中的等待观察到关闭后直接返回，
// FIFO与测量装配状态随之废弃，无需额外清理。
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.rw.Close()
	})
	return err
}

func (t *Transport) markDone() {
	t.closeOnce.Do(func() {
		close(t.done)
		_ = t.rw.Close()
	})
}

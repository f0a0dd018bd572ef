package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chromalab/cr30d/internal/metrics"
	"github.com/chromalab/cr30d/internal/protocol/cr30"
	"github.com/chromalab/cr30d/internal/transport"
)

// State 握手状态机
type State int32

const (
	Disconnected State = iota
	Connecting
	QueryingIdentity
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case QueryingIdentity:
		return "querying_identity"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	}
	return "unknown"
}

var ErrTimeout = errors.New("session: no response within timeout")

// CalibrationMode 校准模式
type CalibrationMode int

const (
	CalibrateBlack CalibrationMode = iota
	CalibrateWhite
)

func (m CalibrationMode) String() string {
	if m == CalibrateWhite {
		return "white"
	}
	return "black"
}

// CalibrationResult 校准结果，StatusByte 为设备回复 payload[1]
type CalibrationResult struct {
	Success    bool `json:"success"`
	StatusByte byte `json:"statusByte"`
}

// Session 协议会话：单连接、单会话、同一时刻只有一个逻辑请求在途
type Session struct {
	tr  *transport.Transport
	log *zap.Logger
	m   *metrics.AppMetrics

	stepTimeout time.Duration

	state    atomic.Int32
	identity atomic.Value // cr30.DeviceIdentity

	reqMu sync.Mutex // 串行化逻辑请求（无命令流水线）

	obsMu     sync.Mutex
	observers []func(*Result)
}

// New 创建会话。stepTimeout 为握手单步等待时长。
func New(tr *transport.Transport, stepTimeout time.Duration, log *zap.Logger, m *metrics.AppMetrics) *Session {
	if stepTimeout <= 0 {
		stepTimeout = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{tr: tr, log: log, m: m, stepTimeout: stepTimeout}
	s.identity.Store(cr30.DeviceIdentity{})
	return s
}

// State 当前握手状态
func (s *Session) State() State {
	return State(s.state.Load())
}

// Identity 握手获取的设备信息快照
func (s *Session) Identity() cr30.DeviceIdentity {
	return s.identity.Load().(cr30.DeviceIdentity)
}

// SubscribeResults 注册测量结果观察者，结果装配完成后同步调用
func (s *Session) SubscribeResults(fn func(*Result)) {
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
}

// Handshake 执行完整握手序列。每一步独立容错：超时或缺损回复记录
// 日志后跳过，不中断序列；所有步骤尝试完毕后无条件进入 Ready。
func (s *Session) Handshake() {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	s.state.Store(int32(Connecting))
	s.tr.Flush()

	// 1) 设备信息查询 0xAA 0x0A {00,01,02,03}
	s.state.Store(int32(QueryingIdentity))
	id := cr30.DeviceIdentity{}
	for _, sub := range []byte{cr30.SubIdentName, cr30.SubIdentSerial, cr30.SubIdentFirmware, cr30.SubIdentStatus} {
		f, ok, err := s.tr.SendRecv(cr30.StartHandshake, cr30.CmdIdentity, sub, 0x00, nil, s.stepTimeout)
		if err != nil || !ok {
			s.log.Warn("identity query skipped", zap.Uint8("subcmd", sub), zap.Error(err))
			continue
		}
		payload := f.Payload[:]
		switch sub {
		case cr30.SubIdentName:
			id.Name, id.Model = cr30.ParseNameModel(payload)
		case cr30.SubIdentSerial:
			id.Serial = cr30.ParseSerial(payload)
		case cr30.SubIdentFirmware:
			id.Build, id.Firmware = cr30.ParseFirmwareBuild(payload)
		case cr30.SubIdentStatus:
			// 读取但不解析：维持设备侧链路状态机同步
		}
	}
	s.identity.Store(id)

	// 2) 初始化序列 0xBB {0x17, 0x13 "Check", 0x28×5}
	s.state.Store(int32(Initializing))
	s.step(cr30.CmdInit, 0x00, 0x00, nil)
	s.step(cr30.CmdCheck, 0x00, 0x00, cr30.CheckPayload)
	for _, idx := range cr30.ParamIndexes {
		s.step(cr30.CmdParamQery, 0x00, idx, nil)
	}

	s.state.Store(int32(Ready))
	s.log.Info("handshake complete",
		zap.String("name", id.DisplayName()),
		zap.String("model", id.DisplayModel()),
		zap.String("serial", id.DisplaySerial()),
		zap.String("firmware", id.DisplayFirmware()))
}

// step 单个容错握手步骤：回复不解析，超时仅记录
func (s *Session) step(cmd, subcmd, param byte, payload []byte) {
	_, ok, err := s.tr.SendRecv(cr30.StartCommand, cmd, subcmd, param, payload, s.stepTimeout)
	if err != nil || !ok {
		s.log.Warn("handshake step skipped",
			zap.Uint8("cmd", cmd), zap.Uint8("param", param), zap.Error(err))
	}
}

// MarkDisconnected 标记断链状态（传输层关闭后由上层调用）
func (s *Session) MarkDisconnected() {
	s.state.Store(int32(Disconnected))
}

// Calibrate 黑/白板校准。success = payload[1] == 0x01；
// 超时无回复返回 ErrTimeout，不自动重试。
func (s *Session) Calibrate(mode CalibrationMode, timeout time.Duration) (CalibrationResult, error) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	cmd := byte(cr30.CmdBlackCal)
	if mode == CalibrateWhite {
		cmd = cr30.CmdWhiteCal
	}
	s.tr.Flush()
	f, ok, err := s.tr.SendRecv(cr30.StartCommand, cmd, 0x00, 0x00, nil, timeout)
	if err != nil {
		s.m.IncCalibration(mode.String(), "error")
		return CalibrationResult{}, err
	}
	if !ok {
		s.m.IncCalibration(mode.String(), "timeout")
		return CalibrationResult{}, fmt.Errorf("%w: %s calibration", ErrTimeout, mode)
	}

	res := CalibrationResult{StatusByte: f.Payload[1], Success: f.Payload[1] == 0x01}
	if res.Success {
		s.m.IncCalibration(mode.String(), "ok")
		s.log.Info("calibration ok", zap.String("mode", mode.String()))
	} else {
		s.m.IncCalibration(mode.String(), "failed")
		s.log.Warn("calibration failed",
			zap.String("mode", mode.String()), zap.Uint8("status", res.StatusByte))
	}
	return res, nil
}

package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chromalab/cr30d/internal/colorscience"
	"github.com/chromalab/cr30d/internal/protocol/cr30"
)

// Result 一次测量的完整产物：头帧、逐块诊断、光谱曲线与完整性标记。
// Curve.Complete 为 false 表示有数据块缺失或光谱字节不足124。
type Result struct {
	ID      string
	TakenAt time.Time
	Header  *cr30.Frame
	Chunks  []cr30.ChunkInfo
	Curve   colorscience.SpectralCurve
}

// Measure 主机触发测量：发送触发命令，把回复作为头帧进入读取流程
func (s *Session) Measure(stepTimeout time.Duration) (*Result, error) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	header, ok, err := s.tr.SendRecv(cr30.StartCommand, cr30.CmdMeasure, cr30.SubMeasureTrigger, 0x00, nil, stepTimeout)
	if err != nil {
		s.m.IncMeasurement("error")
		return nil, err
	}
	if !ok {
		s.m.IncMeasurement("error")
		return nil, fmt.Errorf("%w: no header after trigger", ErrTimeout)
	}
	return s.readMeasurement(header, stepTimeout)
}

// WaitMeasurement 设备触发测量：等待按键产生的主动头帧，最多 wait。
// 等不到头帧返回 ErrTimeout。
func (s *Session) WaitMeasurement(wait, stepTimeout time.Duration) (*Result, error) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	header, ok := s.tr.Recv(wait)
	if !ok {
		return nil, fmt.Errorf("%w: no button press detected", ErrTimeout)
	}
	return s.readMeasurement(header, stepTimeout)
}

// MeasureAvg 连续触发 count 次测量并对光谱逐点取平均。
// 任意一次失败即中止；仅全部完整时结果标记为完整。
func (s *Session) MeasureAvg(count int, delay, stepTimeout time.Duration) (*Result, error) {
	if count < 1 {
		return nil, fmt.Errorf("session: count must be positive, got %d", count)
	}
	first, err := s.Measure(stepTimeout)
	if err != nil {
		return nil, err
	}
	results := []*Result{first}
	for i := 1; i < count; i++ {
		time.Sleep(delay)
		r, err := s.Measure(stepTimeout)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	avg := &Result{
		ID:      uuid.NewString(),
		TakenAt: time.Now(),
		Header:  first.Header,
		Chunks:  first.Chunks,
		Curve: colorscience.SpectralCurve{
			Wavelengths: cr30.DeviceGrid(),
			Complete:    true,
		},
	}
	values := make([]float64, cr30.SPDBandCount)
	for _, r := range results {
		if !r.Curve.Complete || len(r.Curve.Values) != cr30.SPDBandCount {
			avg.Curve.Complete = false
		}
		for i, v := range r.Curve.Values {
			values[i] += v
		}
	}
	for i := range values {
		values[i] /= float64(count)
	}
	avg.Curve.Values = values
	return avg, nil
}

// readMeasurement 测量读取主流程：清掉滞留帧，按固定顺序请求4个
// 数据块，装配光谱并广播结果。
//
// 容错边界：数据块超时只停止后续请求，保留已装配的部分；同一块重复
// 到达说明流已失步，作为硬错误向上传播。
func (s *Session) readMeasurement(header *cr30.Frame, stepTimeout time.Duration) (*Result, error) {
	s.tr.Flush()

	acc := cr30.NewAccumulator()
	for _, sub := range []byte{cr30.ChunkFirst, cr30.ChunkSecond, cr30.ChunkThird, cr30.ChunkTerm} {
		f, ok, err := s.tr.SendRecv(cr30.StartCommand, cr30.CmdMeasure, sub, 0x00, nil, stepTimeout)
		if err != nil {
			s.m.IncMeasurement("error")
			return nil, err
		}
		if !ok {
			s.log.Warn("no response for chunk, keeping partial data", zap.Uint8("subcmd", sub))
			break
		}
		if _, err := acc.Consume(f); err != nil {
			s.m.IncMeasurement("error")
			return nil, err
		}
	}

	raw := acc.Bytes()
	s.m.AddSPDBytes(len(raw))

	curve := colorscience.SpectralCurve{Wavelengths: cr30.DeviceGrid()}
	spd, decoded := cr30.DecodeSPD(raw)
	if decoded {
		curve.Values = spd
	} else {
		s.log.Warn("insufficient spd data", zap.Int("bytes", len(raw)), zap.Int("need", cr30.SPDByteCount))
	}
	curve.Complete = acc.Complete() && decoded

	result := &Result{
		ID:      uuid.NewString(),
		TakenAt: time.Now(),
		Header:  header,
		Chunks:  acc.Chunks(),
		Curve:   curve,
	}

	if curve.Complete {
		s.m.IncMeasurement("complete")
	} else {
		s.m.IncMeasurement("partial")
	}

	s.broadcast(result)
	return result, nil
}

// broadcast 同步通知观察者，每个结果至多一次
func (s *Session) broadcast(r *Result) {
	s.obsMu.Lock()
	observers := make([]func(*Result), len(s.observers))
	copy(observers, s.observers)
	s.obsMu.Unlock()
	for _, fn := range observers {
		fn(r)
	}
}

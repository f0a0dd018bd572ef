package session

import (
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chromalab/cr30d/internal/protocol/cr30"
	"github.com/chromalab/cr30d/internal/transport"
)

// pipePort 内存双工管道，模拟串口
type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipePort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipePort) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipePort) Close() error {
	_ = p.r.Close()
	_ = p.w.Close()
	return nil
}

// fakeDevice 脚本化设备：读取主机命令帧，按 handle 决定回复（nil 表示不回）
type fakeDevice struct {
	in     *io.PipeWriter
	out    *io.PipeReader
	handle func(f *cr30.Frame) [][]byte
}

func startFakeDevice(handle func(f *cr30.Frame) [][]byte) (*transport.Transport, *fakeDevice) {
	hostR, devW := io.Pipe()
	devR, hostW := io.Pipe()
	host := &pipePort{r: hostR, w: hostW}
	dev := &fakeDevice{in: devW, out: devR, handle: handle}
	go dev.run()
	tr := transport.New(host, 16, nil, nil)
	tr.Start()
	return tr, dev
}

func (d *fakeDevice) run() {
	buf := make([]byte, cr30.FrameSize)
	for {
		if _, err := io.ReadFull(d.out, buf); err != nil {
			return
		}
		f, err := cr30.Decode(buf)
		if err != nil {
			continue
		}
		for _, reply := range d.handle(f) {
			if _, err := d.in.Write(reply); err != nil {
				return
			}
		}
	}
}

// namePayload 构造设备名称查询回复的 payload
func namePayload(name, model string) []byte {
	p := make([]byte, cr30.PayloadSize)
	copy(p[5:30], name)
	copy(p[35:45], model)
	return p
}

func serialPayload(head, tail string) []byte {
	p := make([]byte, cr30.PayloadSize)
	copy(p[16:30], head)
	copy(p[len(p)-7:], tail)
	return p
}

func TestHandshake_ReachesReadyDespiteMissingReplies(t *testing.T) {
	// 设备只回应名称与序列号查询，固件/状态/初始化序列全部沉默
	tr, _ := startFakeDevice(func(f *cr30.Frame) [][]byte {
		if f.Start != cr30.StartHandshake || f.Cmd != cr30.CmdIdentity {
			return nil
		}
		switch f.Subcmd {
		case cr30.SubIdentName:
			raw, _ := cr30.Encode(cr30.StartHandshake, cr30.CmdIdentity, cr30.SubIdentName, 0x00,
				namePayload("CR30 Colorimeter", "CR30"))
			return [][]byte{raw}
		case cr30.SubIdentSerial:
			raw, _ := cr30.Encode(cr30.StartHandshake, cr30.CmdIdentity, cr30.SubIdentSerial, 0x00,
				serialPayload("SD6870B6670", "2301234"))
			return [][]byte{raw}
		}
		return nil
	})
	defer tr.Close()

	s := New(tr, 40*time.Millisecond, nil, nil)
	assert.Equal(t, Disconnected, s.State())

	s.Handshake()

	assert.Equal(t, Ready, s.State())
	id := s.Identity()
	assert.Equal(t, "CR30 Colorimeter", id.Name)
	assert.Equal(t, "CR30", id.Model)
	assert.Equal(t, "SD6870B6670 - 2301234", id.Serial)
	assert.Equal(t, "Unknown", id.DisplayFirmware())
}

func TestCalibrate_StatusByte(t *testing.T) {
	tr, _ := startFakeDevice(func(f *cr30.Frame) [][]byte {
		status := byte(0x00)
		if f.Cmd == cr30.CmdWhiteCal {
			status = 0x01
		}
		raw, _ := cr30.Encode(cr30.StartCommand, f.Cmd, 0x00, 0x00, []byte{0x00, status})
		return [][]byte{raw}
	})
	defer tr.Close()
	s := New(tr, time.Second, nil, nil)

	white, err := s.Calibrate(CalibrateWhite, time.Second)
	require.NoError(t, err)
	assert.True(t, white.Success)
	assert.Equal(t, byte(0x01), white.StatusByte)

	black, err := s.Calibrate(CalibrateBlack, time.Second)
	require.NoError(t, err)
	assert.False(t, black.Success)
	assert.Equal(t, byte(0x00), black.StatusByte)
}

func TestCalibrate_Timeout(t *testing.T) {
	tr, _ := startFakeDevice(func(f *cr30.Frame) [][]byte { return nil })
	defer tr.Close()
	s := New(tr, time.Second, nil, nil)

	_, err := s.Calibrate(CalibrateBlack, 40*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

// measureHandler 完整测量脚本：触发返回头帧，数据块按请求顺序返回
func measureHandler(t *testing.T, spd []float64) func(f *cr30.Frame) [][]byte {
	data := make([]byte, 144)
	copy(data, cr30.EncodeSPD(spd))
	return func(f *cr30.Frame) [][]byte {
		if f.Cmd != cr30.CmdMeasure {
			return nil
		}
		switch f.Subcmd {
		case cr30.SubMeasureTrigger:
			raw, _ := cr30.Encode(cr30.StartCommand, cr30.CmdMeasure, cr30.SubMeasureHeader, 0x00, nil)
			return [][]byte{raw}
		case cr30.ChunkFirst, cr30.ChunkSecond, cr30.ChunkThird:
			i := int(f.Subcmd - cr30.ChunkFirst)
			p := make([]byte, cr30.PayloadSize)
			copy(p[2:50], data[i*48:(i+1)*48])
			raw, _ := cr30.Encode(cr30.StartCommand, cr30.CmdMeasure, f.Subcmd, 0x00, p)
			return [][]byte{raw}
		case cr30.ChunkTerm:
			raw, _ := cr30.Encode(cr30.StartCommand, cr30.CmdMeasure, cr30.ChunkTerm, 0x00, nil)
			return [][]byte{raw}
		}
		return nil
	}
}

func rampSPD() []float64 {
	spd := make([]float64, cr30.SPDBandCount)
	for i := range spd {
		spd[i] = 0.05 + 0.02*float64(i)
	}
	return spd
}

func TestMeasure_CompleteCurve(t *testing.T) {
	want := rampSPD()
	tr, _ := startFakeDevice(measureHandler(t, want))
	defer tr.Close()
	s := New(tr, time.Second, nil, nil)

	r, err := s.Measure(time.Second)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.NotEmpty(t, r.ID)
	require.NotNil(t, r.Header)
	assert.Equal(t, byte(cr30.SubMeasureHeader), r.Header.Subcmd)
	assert.Len(t, r.Chunks, 4)

	assert.True(t, r.Curve.Complete)
	require.Len(t, r.Curve.Values, cr30.SPDBandCount)
	assert.Equal(t, cr30.DeviceGrid(), r.Curve.Wavelengths)
	for i, v := range want {
		assert.InDelta(t, v, r.Curve.Values[i], 1e-6, "波段 %d", i)
	}
}

func TestMeasure_TriggerTimeout(t *testing.T) {
	tr, _ := startFakeDevice(func(f *cr30.Frame) [][]byte { return nil })
	defer tr.Close()
	s := New(tr, time.Second, nil, nil)

	_, err := s.Measure(40 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestMeasure_DuplicateChunkIsHardError(t *testing.T) {
	// 请求 0x11 时重放 0x10：字节流失步必须硬失败
	base := measureHandler(t, rampSPD())
	tr, _ := startFakeDevice(func(f *cr30.Frame) [][]byte {
		if f.Cmd == cr30.CmdMeasure && f.Subcmd == cr30.ChunkSecond {
			p := make([]byte, cr30.PayloadSize)
			raw, _ := cr30.Encode(cr30.StartCommand, cr30.CmdMeasure, cr30.ChunkFirst, 0x00, p)
			return [][]byte{raw}
		}
		return base(f)
	})
	defer tr.Close()
	s := New(tr, time.Second, nil, nil)

	_, err := s.Measure(time.Second)
	assert.ErrorIs(t, err, cr30.ErrDuplicateChunk)
}

func TestMeasure_MissingTerminatorKeepsDecodedButIncomplete(t *testing.T) {
	// 终止块不回：144字节光谱数据仍可解码，但结果不得标记完整
	base := measureHandler(t, rampSPD())
	tr, _ := startFakeDevice(func(f *cr30.Frame) [][]byte {
		if f.Cmd == cr30.CmdMeasure && f.Subcmd == cr30.ChunkTerm {
			return nil
		}
		return base(f)
	})
	defer tr.Close()
	s := New(tr, time.Second, nil, nil)

	r, err := s.Measure(60 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, r.Curve.Complete)
	assert.Len(t, r.Curve.Values, cr30.SPDBandCount)
	assert.Len(t, r.Chunks, 3)
}

func TestMeasure_MissingMiddleChunkYieldsPartial(t *testing.T) {
	// 0x11 不回：停止后续请求，字节不足不解码
	base := measureHandler(t, rampSPD())
	tr, _ := startFakeDevice(func(f *cr30.Frame) [][]byte {
		if f.Cmd == cr30.CmdMeasure && f.Subcmd == cr30.ChunkSecond {
			return nil
		}
		return base(f)
	})
	defer tr.Close()
	s := New(tr, time.Second, nil, nil)

	r, err := s.Measure(60 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, r.Curve.Complete)
	assert.Nil(t, r.Curve.Values)
	assert.Len(t, r.Chunks, 1)
}

func TestWaitMeasurement_ButtonPress(t *testing.T) {
	base := measureHandler(t, rampSPD())
	tr, dev := startFakeDevice(base)
	defer tr.Close()
	s := New(tr, time.Second, nil, nil)

	var broadcasts int32
	var got atomic.Value
	s.SubscribeResults(func(r *Result) {
		atomic.AddInt32(&broadcasts, 1)
		got.Store(r)
	})

	// 设备按键：主动头帧
	go func() {
		time.Sleep(20 * time.Millisecond)
		raw, _ := cr30.Encode(cr30.StartCommand, cr30.CmdMeasure, cr30.SubMeasureHeader, 0x00, nil)
		dev.in.Write(raw)
	}()

	r, err := s.WaitMeasurement(time.Second, time.Second)
	require.NoError(t, err)
	assert.True(t, r.Curve.Complete)
	assert.Equal(t, int32(1), atomic.LoadInt32(&broadcasts))
	assert.Same(t, r, got.Load().(*Result))
}

func TestBroadcast_EachObserverOnce(t *testing.T) {
	tr, _ := startFakeDevice(measureHandler(t, rampSPD()))
	defer tr.Close()
	s := New(tr, time.Second, nil, nil)

	var first, second int32
	s.SubscribeResults(func(*Result) { atomic.AddInt32(&first, 1) })
	s.SubscribeResults(func(*Result) { atomic.AddInt32(&second, 1) })

	r, err := s.Measure(time.Second)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, int32(1), atomic.LoadInt32(&first))
	assert.Equal(t, int32(1), atomic.LoadInt32(&second))
}

func TestWaitMeasurement_Timeout(t *testing.T) {
	tr, _ := startFakeDevice(func(f *cr30.Frame) [][]byte { return nil })
	defer tr.Close()
	s := New(tr, time.Second, nil, nil)

	_, err := s.WaitMeasurement(40*time.Millisecond, time.Second)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestMeasureAvg_AveragesBands(t *testing.T) {
	// 设备交替返回两条平坦曲线 0.2 / 0.4
	var calls int32
	tr, _ := startFakeDevice(func(f *cr30.Frame) [][]byte {
		if f.Cmd == cr30.CmdMeasure && f.Subcmd == cr30.SubMeasureTrigger {
			atomic.AddInt32(&calls, 1)
		}
		level := 0.2
		if atomic.LoadInt32(&calls) > 1 {
			level = 0.4
		}
		flat := make([]float64, cr30.SPDBandCount)
		for i := range flat {
			flat[i] = level
		}
		return measureHandler(t, flat)(f)
	})
	defer tr.Close()
	s := New(tr, time.Second, nil, nil)

	r, err := s.MeasureAvg(2, 0, time.Second)
	require.NoError(t, err)
	assert.True(t, r.Curve.Complete)
	require.Len(t, r.Curve.Values, cr30.SPDBandCount)
	for _, v := range r.Curve.Values {
		assert.InDelta(t, 0.3, v, 1e-6)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestMeasureAvg_RejectsNonPositiveCount(t *testing.T) {
	tr, _ := startFakeDevice(func(f *cr30.Frame) [][]byte { return nil })
	defer tr.Close()
	s := New(tr, time.Second, nil, nil)

	_, err := s.MeasureAvg(0, 0, time.Second)
	assert.Error(t, err)
}

package cr30

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// 光谱数据装配
// 一次测量的光谱数据由4个数据块 (0x10..0x13) 拼装；
// 0x10~0x12 各贡献 payload[2:50] 共48字节，0x13 为终止块不贡献数据。
const (
	chunkDataStart = 2
	chunkDataEnd   = 50

	// SPDByteCount 完整光谱所需字节数：31个小端float32
	SPDByteCount  = 124
	SPDBandCount  = 31
	gridStartNm   = 400.0
	gridStepNm    = 10.0
)

var (
	ErrDuplicateChunk = errors.New("cr30: duplicate spd chunk")
	ErrUnknownChunk   = errors.New("cr30: unknown spd chunk subcmd")
)

// DeviceGrid 设备原生波长网格：400–700nm，10nm间隔，31个波段
func DeviceGrid() []float64 {
	grid := make([]float64, SPDBandCount)
	for i := range grid {
		grid[i] = gridStartNm + gridStepNm*float64(i)
	}
	return grid
}

// ChunkInfo 单个数据块的诊断信息
type ChunkInfo struct {
	Subcmd    byte
	ByteCount int
	Payload   []byte
}

// Accumulator 单次测量的数据块装配状态，每次测量开始前必须 Reset
type Accumulator struct {
	received map[byte]bool
	buf      []byte
	chunks   []ChunkInfo
}

func NewAccumulator() *Accumulator {
	a := &Accumulator{}
	a.Reset()
	return a
}

// Reset 清空装配状态
func (a *Accumulator) Reset() {
	a.received = make(map[byte]bool, 4)
	a.buf = a.buf[:0]
	a.chunks = a.chunks[:0]
}

// Consume 吸收一个数据块回复。同一子命令重复出现说明字节流已失步，
// 返回 ErrDuplicateChunk 并终止本次测量。
func (a *Accumulator) Consume(f *Frame) (ChunkInfo, error) {
	sub := f.Subcmd
	if sub < ChunkFirst || sub > ChunkTerm {
		return ChunkInfo{}, fmt.Errorf("%w: 0x%02X", ErrUnknownChunk, sub)
	}
	if a.received[sub] {
		return ChunkInfo{}, fmt.Errorf("%w: 0x%02X", ErrDuplicateChunk, sub)
	}
	info := ChunkInfo{Subcmd: sub, Payload: append([]byte(nil), f.Payload[:]...)}
	if sub != ChunkTerm {
		data := f.Payload[chunkDataStart:chunkDataEnd]
		a.buf = append(a.buf, data...)
		info.ByteCount = len(data)
	}
	a.received[sub] = true
	a.chunks = append(a.chunks, info)
	return info, nil
}

// Bytes 返回已累积的光谱字节
func (a *Accumulator) Bytes() []byte {
	return append([]byte(nil), a.buf...)
}

// Chunks 返回已吸收的数据块诊断信息
func (a *Accumulator) Chunks() []ChunkInfo {
	return append([]ChunkInfo(nil), a.chunks...)
}

// Complete 判断4个数据块是否全部到齐
func (a *Accumulator) Complete() bool {
	return a.received[ChunkFirst] && a.received[ChunkSecond] &&
		a.received[ChunkThird] && a.received[ChunkTerm]
}

// DecodeSPD 将累积字节解码为31个反射率值。不足124字节时返回 ok=false，
// 不伪造数据。
func DecodeSPD(b []byte) (spd []float64, ok bool) {
	if len(b) < SPDByteCount {
		return nil, false
	}
	spd = make([]float64, SPDBandCount)
	for i := 0; i < SPDBandCount; i++ {
		bits := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		spd[i] = float64(math.Float32frombits(bits))
	}
	return spd, true
}

// EncodeSPD 将反射率值编码为小端float32字节（用于测试与仿真）
func EncodeSPD(spd []float64) []byte {
	out := make([]byte, len(spd)*4)
	for i, v := range spd {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)))
	}
	return out
}

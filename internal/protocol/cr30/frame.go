package cr30

import (
	"errors"
	"fmt"
)

// 帧布局
// 格式：start(1) + cmd(1) + subcmd(1) + param(1) + payload(52) + 保留(2) + marker(1) + checksum(1)
const (
	FrameSize    = 60
	PayloadStart = 4
	PayloadEnd   = 56
	PayloadSize  = 52
	markerPos    = 58
	checksumPos  = 59

	// MarkerDefault 0xAA帧固定为0xFF；0xBB帧可为0x00或0xFF
	MarkerDefault = 0xFF
)

var (
	ErrMalformedFrame = errors.New("cr30: malformed frame")
	ErrPayloadTooLong = errors.New("cr30: payload exceeds 52 bytes")
	ErrBadStart       = errors.New("cr30: start byte must be 0xAA or 0xBB")
)

// Frame CR30 协议帧，解码校验通过后视为不可变。
// Reserved 保留字节56–57原样保存：校验和覆盖前59字节，丢弃它们会让
// Verify 对被篡改的保留字节失明，也会误杀携带非零保留字节的设备帧。
type Frame struct {
	Start    byte
	Cmd      byte
	Subcmd   byte
	Param    byte
	Payload  [PayloadSize]byte
	Reserved [2]byte
	Marker   byte
	Checksum byte
}

// CalcChecksum 计算帧校验和：前59字节累加取模256，0xBB帧再减1
func CalcChecksum(buf []byte) byte {
	var sum byte
	for _, b := range buf[:checksumPos] {
		sum += b
	}
	if buf[0] == StartCommand {
		sum--
	}
	return sum
}

// Encode 构造60字节帧，payload不足52字节时尾部补零
func Encode(start, cmd, subcmd, param byte, payload []byte) ([]byte, error) {
	if start != StartHandshake && start != StartCommand {
		return nil, ErrBadStart
	}
	if len(payload) > PayloadSize {
		return nil, ErrPayloadTooLong
	}
	buf := make([]byte, FrameSize)
	buf[0] = start
	buf[1] = cmd
	buf[2] = subcmd
	buf[3] = param
	copy(buf[PayloadStart:PayloadEnd], payload)
	buf[markerPos] = MarkerDefault
	buf[checksumPos] = CalcChecksum(buf)
	return buf, nil
}

// Decode 解析60字节为帧结构，仅做结构校验，校验和由 Verify 负责
func Decode(b []byte) (*Frame, error) {
	if len(b) != FrameSize {
		return nil, fmt.Errorf("%w: length %d", ErrMalformedFrame, len(b))
	}
	if b[0] != StartHandshake && b[0] != StartCommand {
		return nil, fmt.Errorf("%w: start 0x%02X", ErrMalformedFrame, b[0])
	}
	marker := b[markerPos]
	if b[0] == StartHandshake && marker != 0xFF {
		return nil, fmt.Errorf("%w: marker 0x%02X for 0xAA frame", ErrMalformedFrame, marker)
	}
	if b[0] == StartCommand && marker != 0x00 && marker != 0xFF {
		return nil, fmt.Errorf("%w: marker 0x%02X for 0xBB frame", ErrMalformedFrame, marker)
	}
	f := &Frame{
		Start:    b[0],
		Cmd:      b[1],
		Subcmd:   b[2],
		Param:    b[3],
		Marker:   marker,
		Checksum: b[checksumPos],
	}
	copy(f.Payload[:], b[PayloadStart:PayloadEnd])
	copy(f.Reserved[:], b[PayloadEnd:markerPos])
	return f, nil
}

// Bytes 重新序列化为60字节（不重算校验和，保留原始字节）
func (f *Frame) Bytes() []byte {
	buf := make([]byte, FrameSize)
	buf[0] = f.Start
	buf[1] = f.Cmd
	buf[2] = f.Subcmd
	buf[3] = f.Param
	copy(buf[PayloadStart:PayloadEnd], f.Payload[:])
	copy(buf[PayloadEnd:markerPos], f.Reserved[:])
	buf[markerPos] = f.Marker
	buf[checksumPos] = f.Checksum
	return buf
}

// Verify 重算校验和并与存储字节比较
func (f *Frame) Verify() bool {
	return CalcChecksum(f.Bytes()) == f.Checksum
}

// IsChunk 判断是否为光谱数据块回复 (0x10..0x13)
func (f *Frame) IsChunk() bool {
	return f.Subcmd >= ChunkFirst && f.Subcmd <= ChunkTerm
}

package cr30

import "strings"

// DeviceIdentity 握手期间逐步填充的设备信息，缺失字段保持空串
type DeviceIdentity struct {
	Name     string
	Model    string
	Serial   string
	Firmware string
	Build    string
}

const unknown = "Unknown"

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

// DisplayName 返回名称，未获取时为 "Unknown"
func (d DeviceIdentity) DisplayName() string { return orUnknown(d.Name) }

// DisplayModel 返回型号，未获取时为 "Unknown"
func (d DeviceIdentity) DisplayModel() string { return orUnknown(d.Model) }

// DisplaySerial 返回序列号，未获取时为 "Unknown"
func (d DeviceIdentity) DisplaySerial() string { return orUnknown(d.Serial) }

// DisplayFirmware 返回固件版本，未获取时为 "Unknown"
func (d DeviceIdentity) DisplayFirmware() string { return orUnknown(d.Firmware) }

// ParseNameModel 解析 0x0A/0x00 回复：名称 payload[5:30]，型号 payload[35:45]
func ParseNameModel(payload []byte) (name, model string) {
	return asciiField(payload, 5, 30), asciiField(payload, 35, 45)
}

// ParseSerial 解析 0x0A/0x01 回复：payload[16:30] 与末7字节拼接
func ParseSerial(payload []byte) string {
	head := asciiField(payload, 16, 30)
	tail := asciiField(payload, len(payload)-7, len(payload))
	return head + " - " + tail
}

// ParseFirmwareBuild 解析 0x0A/0x02 回复：构建号 payload[1:20]，固件 payload[20:30]
func ParseFirmwareBuild(payload []byte) (build, firmware string) {
	return asciiField(payload, 1, 20), asciiField(payload, 20, 30)
}

// asciiField 截取区间并丢弃非可打印字节，去除首尾NUL/空白
func asciiField(payload []byte, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(payload) {
		end = len(payload)
	}
	if start >= end {
		return ""
	}
	var sb strings.Builder
	for _, b := range payload[start:end] {
		if b >= 0x20 && b < 0x7F {
			sb.WriteByte(b)
		}
	}
	return strings.TrimSpace(sb.String())
}

package cr30

import "testing"

func payloadWith(fields map[int]string) []byte {
	p := make([]byte, PayloadSize)
	for off, s := range fields {
		copy(p[off:], s)
	}
	return p
}

func TestParseNameModel(t *testing.T) {
	p := payloadWith(map[int]string{5: "CR30 Colorimeter", 35: "CR30"})
	name, model := ParseNameModel(p)
	if name != "CR30 Colorimeter" {
		t.Errorf("name = %q", name)
	}
	if model != "CR30" {
		t.Errorf("model = %q", model)
	}
}

func TestParseNameModel_NonPrintableDropped(t *testing.T) {
	p := payloadWith(map[int]string{5: "SD6870B6670"})
	p[4] = 0x03  // 名称区间之前的二进制字节不影响解析
	p[20] = 0x01 // 区间内的不可打印字节被丢弃
	name, _ := ParseNameModel(p)
	if name != "SD6870B6670" {
		t.Errorf("name = %q, want SD6870B6670", name)
	}
}

func TestParseSerial(t *testing.T) {
	p := payloadWith(map[int]string{16: "20105520", PayloadSize - 7: "B667000"})
	serial := ParseSerial(p)
	if serial != "20105520 - B667000" {
		t.Errorf("serial = %q", serial)
	}
}

func TestParseFirmwareBuild(t *testing.T) {
	p := payloadWith(map[int]string{1: "build-20231108", 20: "V1.05"})
	build, fw := ParseFirmwareBuild(p)
	if build != "build-20231108" {
		t.Errorf("build = %q", build)
	}
	if fw != "V1.05" {
		t.Errorf("firmware = %q", fw)
	}
}

func TestDeviceIdentity_Unknown(t *testing.T) {
	var id DeviceIdentity
	if id.DisplayName() != "Unknown" || id.DisplaySerial() != "Unknown" {
		t.Errorf("empty identity should display Unknown")
	}
	id.Name = "CR30"
	if id.DisplayName() != "CR30" {
		t.Errorf("DisplayName = %q", id.DisplayName())
	}
}

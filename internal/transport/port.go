package transport

import (
	"fmt"
	"io"

	"github.com/goburrow/serial"

	cfgpkg "github.com/chromalab/cr30d/internal/config"
)

// OpenPort 按配置打开串口 (8N1)。返回 io.ReadWriteCloser 以便测试注入管道。
func OpenPort(cfg cfgpkg.SerialConfig) (io.ReadWriteCloser, error) {
	port, err := serial.Open(&serial.Config{
		Address:  cfg.Port,
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s@%d: %w", cfg.Port, cfg.BaudRate, err)
	}
	return port, nil
}

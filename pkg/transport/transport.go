package transport

import (
	"fmt"

	"github.com/itohio/psemu/pkg/config"
	"github.com/sirupsen/logrus"
)

// New creates the transport selected by cfg.Mode. The transport is not
// opened.
func New(cfg config.TransportConfig, log logrus.FieldLogger) (Transport, error) {
	switch cfg.Mode {
	case config.ModeSerial:
		return NewSerial(cfg.Port, cfg.BaudRate, cfg.LineBuffer, log), nil
	case config.ModeTCP:
		return NewTCP(cfg.Host, cfg.TCPPort, cfg.LineBuffer, log), nil
	case config.ModeScript:
		return NewScript(cfg.Script, cfg.LineBuffer, log), nil
	default:
		return nil, fmt.Errorf("unknown transport mode %q", cfg.Mode)
	}
}

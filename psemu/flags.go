package main

import (
	"flag"
	"time"

	"github.com/itohio/psemu/pkg/config"
)

// options holds command line overrides. Only flags that were set replace
// configuration file values.
type options struct {
	configPath string
	listPorts  bool

	mode       string
	port       string
	baudRate   int
	tcpPort    int
	script     string
	tickPeriod time.Duration
	plot       bool
	logLevel   string

	set map[string]bool
}

func parseFlags(args []string) (*options, error) {
	o := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("psemu", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "config.yaml", "Configuration file path")
	fs.BoolVar(&o.listPorts, "list-ports", false, "List serial ports and exit")
	fs.StringVar(&o.mode, "mode", "", "Transport override: serial, tcp or script")
	fs.StringVar(&o.port, "p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB0)")
	fs.IntVar(&o.baudRate, "baud", 0, "Serial baud rate override")
	fs.IntVar(&o.tcpPort, "tcp-port", 0, "TCP listen port override")
	fs.StringVar(&o.script, "script", "", "Command script to replay (implies -mode script)")
	fs.DurationVar(&o.tickPeriod, "tick", 0, "Tick period override")
	fs.BoolVar(&o.plot, "plot", false, "Show the live voltage/current plot")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	return o, nil
}

// apply copies the set flags into cfg.
func (o *options) apply(cfg *config.Config) {
	if o.set["script"] {
		cfg.Transport.Script = o.script
		cfg.Transport.Mode = config.ModeScript
	}
	if o.set["mode"] {
		cfg.Transport.Mode = o.mode
	}
	if o.set["p"] {
		cfg.Transport.Port = o.port
	}
	if o.set["baud"] {
		cfg.Transport.BaudRate = o.baudRate
	}
	if o.set["tcp-port"] {
		cfg.Transport.TCPPort = o.tcpPort
	}
	if o.set["tick"] {
		cfg.Emulator.TickPeriod = o.tickPeriod
	}
	if o.set["plot"] {
		cfg.Plot.Enabled = o.plot
	}
	if o.set["log-level"] {
		cfg.Log.Level = o.logLevel
	}
}

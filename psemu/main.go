package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/itohio/psemu/pkg/config"
	"github.com/itohio/psemu/pkg/emulator"
	"github.com/itohio/psemu/pkg/monitor"
	"github.com/itohio/psemu/pkg/psu"
	"github.com/itohio/psemu/pkg/scpi"
	"github.com/itohio/psemu/pkg/telemetry"
	"github.com/itohio/psemu/pkg/transport"
	"github.com/sirupsen/logrus"
)

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if opts.listPorts {
		if err := listPorts(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	err = run(cfg, log)
	if err != nil {
		if errors.Is(err, transport.ErrTransportUnavailable) {
			log.WithError(err).Error("Cannot open command channel")
		} else {
			log.WithError(err).Error("Emulator terminated")
		}
	}
	closeLog.Close()
	if err != nil {
		os.Exit(1)
	}
}

// run serves the configured transport until interrupted or the transport
// fails.
func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, err := transport.New(cfg.Transport, log)
	if err != nil {
		return err
	}
	if err := tr.Open(); err != nil {
		return err
	}
	defer tr.Close()
	go watchReplay(ctx, tr, log)

	emuOpts := []emulator.Option{
		emulator.WithLogger(log),
		emulator.WithPeriod(cfg.Emulator.TickPeriod),
	}

	var observer scpi.Observer
	if cfg.Metrics.Enabled {
		mon := monitor.New(log)
		observer = mon
		emuOpts = append(emuOpts, emulator.WithObserver(mon))
		go func() {
			if err := mon.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	var sink telemetry.Sink = telemetry.SinkFunc(func(s telemetry.Sample) {
		log.WithFields(logrus.Fields{
			"elapsed": s.Elapsed,
			"voltage": s.Voltage,
			"current": s.Current,
		}).Debug("Sample")
	})

	var stream *telemetry.Stream
	if cfg.Plot.Enabled {
		stream = telemetry.NewStream(telemetry.DefaultBufferSize)
		sink = telemetry.Multi{sink, stream}
	}

	emu := emulator.New(psu.New(), tr, scpi.NewDispatcher(log, observer), sink, emuOpts...)

	if stream != nil {
		return runPlot(ctx, stop, cfg.Plot, emu, stream, log)
	}
	return emu.Run(ctx)
}

// watchReplay logs once a script transport has queued its last command. The
// emulator keeps serving afterwards so pending ramps complete and stay
// visible on the plot and metrics.
func watchReplay(ctx context.Context, tr transport.Transport, log logrus.FieldLogger) {
	replay, ok := tr.(interface{ Done() <-chan struct{} })
	if !ok {
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-replay.Done():
	}
	if ctx.Err() != nil {
		return
	}
	log.Info("Script replay finished, emulator keeps running until interrupted")
}

// listPorts prints the serial ports found on the host.
func listPorts(w io.Writer) error {
	ports, err := transport.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found")
		return nil
	}

	for _, p := range ports {
		if p.IsUSB {
			fmt.Fprintf(w, "%s\t%s\tUSB VID:PID=%s:%s", p.Name, p.Description, p.VID, p.PID)
			if p.SerialNumber != "" {
				fmt.Fprintf(w, " SER=%s", p.SerialNumber)
			}
			fmt.Fprintln(w)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Description)
	}
	return nil
}

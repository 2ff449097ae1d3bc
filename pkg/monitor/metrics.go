// Package monitor exposes emulator activity as Prometheus metrics.
package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/itohio/psemu/pkg/psu"
	"github.com/itohio/psemu/pkg/scpi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "psemu"

// Monitor collects tick and command metrics. It satisfies both the
// dispatcher and the emulator observer interfaces.
type Monitor struct {
	registry *prometheus.Registry
	log      logrus.FieldLogger

	ticks         prometheus.Counter
	overruns      prometheus.Counter
	tickWork      prometheus.Histogram
	commands      *prometheus.CounterVec
	commandErrors *prometheus.CounterVec
	voltage       prometheus.Gauge
	current       prometheus.Gauge
	targetVoltage prometheus.Gauge
	targetCurrent prometheus.Gauge
	ramping       prometheus.Gauge
}

// New creates a Monitor with its own registry.
func New(log logrus.FieldLogger) *Monitor {
	if log == nil {
		log = logrus.StandardLogger()
	}

	m := &Monitor{
		registry: prometheus.NewRegistry(),
		log:      log,

		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Completed emulator ticks.",
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_overruns_total",
			Help:      "Ticks whose work exceeded the tick period.",
		}),
		tickWork: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_work_seconds",
			Help:      "Time spent working within a tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Handled commands by kind.",
		}, []string{"kind"}),
		commandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Rejected or failed commands by kind.",
		}, []string{"kind"}),
		voltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "voltage_volts",
			Help:      "Present output voltage.",
		}),
		current: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_amperes",
			Help:      "Present output current.",
		}),
		targetVoltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_voltage_volts",
			Help:      "Voltage setpoint.",
		}),
		targetCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_current_amperes",
			Help:      "Current setpoint.",
		}),
		ramping: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ramping",
			Help:      "1 while a voltage or current ramp is in progress.",
		}),
	}

	m.registry.MustRegister(
		m.ticks,
		m.overruns,
		m.tickWork,
		m.commands,
		m.commandErrors,
		m.voltage,
		m.current,
		m.targetVoltage,
		m.targetCurrent,
		m.ramping,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry holding the emulator metrics.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// TickCompleted records one finished tick.
func (m *Monitor) TickCompleted(st psu.State, work time.Duration, overrun bool) {
	m.ticks.Inc()
	if overrun {
		m.overruns.Inc()
	}
	m.tickWork.Observe(work.Seconds())

	m.voltage.Set(st.Voltage)
	m.current.Set(st.Current)
	m.targetVoltage.Set(st.TargetVoltage)
	m.targetCurrent.Set(st.TargetCurrent)
	if st.Ramping() {
		m.ramping.Set(1)
	} else {
		m.ramping.Set(0)
	}
}

// CommandHandled counts a successfully handled command.
func (m *Monitor) CommandHandled(kind scpi.Kind) {
	m.commands.WithLabelValues(kind.String()).Inc()
}

// CommandFailed counts a rejected command.
func (m *Monitor) CommandFailed(kind scpi.Kind, _ error) {
	m.commandErrors.WithLabelValues(kind.String()).Inc()
}

// Handler serves /metrics and /health.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Serve runs the metrics server on addr until ctx is cancelled.
func (m *Monitor) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		m.log.WithField("addr", addr).Info("Metrics server started")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	m.log.Info("Metrics server stopped")
	return nil
}

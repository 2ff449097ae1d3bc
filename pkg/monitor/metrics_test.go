package monitor

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/itohio/psemu/pkg/emulator"
	"github.com/itohio/psemu/pkg/psu"
	"github.com/itohio/psemu/pkg/scpi"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ scpi.Observer     = (*Monitor)(nil)
	_ emulator.Observer = (*Monitor)(nil)
)

func newTestMonitor() *Monitor {
	log, _ := test.NewNullLogger()
	return New(log)
}

func TestMonitor_TickCompleted(t *testing.T) {
	m := newTestMonitor()

	st := psu.New()
	st.SetVoltSlewRise(1)
	st.SetVoltage(3)
	st.Step()
	st.SetCurrent(0.5)

	m.TickCompleted(st.Snapshot(), 2*time.Millisecond, false)
	m.TickCompleted(st.Snapshot(), 2*time.Second, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.overruns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.voltage))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.current))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.targetVoltage))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.targetCurrent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ramping))

	done := psu.New()
	m.TickCompleted(done.Snapshot(), 0, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ramping))
}

func TestMonitor_Commands(t *testing.T) {
	m := newTestMonitor()

	m.CommandHandled(scpi.SetVoltage)
	m.CommandHandled(scpi.SetVoltage)
	m.CommandHandled(scpi.QueryCurrent)
	m.CommandFailed(scpi.Invalid, scpi.ErrUnknownCommand)
	m.CommandFailed(scpi.SetCurrent, errors.New("bad value"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues(scpi.SetVoltage.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues(scpi.QueryCurrent.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandErrors.WithLabelValues(scpi.Invalid.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandErrors.WithLabelValues(scpi.SetCurrent.String())))
}

func TestMonitor_ThroughDispatcher(t *testing.T) {
	m := newTestMonitor()
	log, _ := test.NewNullLogger()
	d := scpi.NewDispatcher(log, m)
	st := psu.New()

	require.NoError(t, d.Handle(io.Discard, ":SOURce:VOLTage 2\n", st))
	assert.Error(t, d.Handle(io.Discard, "nonsense\n", st))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues(scpi.SetVoltage.String())))
	assert.Equal(t, 1, testutil.CollectAndCount(m.commandErrors))
}

func TestMonitor_Handler(t *testing.T) {
	m := newTestMonitor()
	m.CommandHandled(scpi.QueryVoltage)
	m.TickCompleted(psu.State{Voltage: 4.5}, time.Millisecond, false)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "psemu_ticks_total 1")
	assert.Contains(t, string(body), "psemu_voltage_volts 4.5")
	assert.Contains(t, string(body), `psemu_commands_total{kind="query-voltage"} 1`)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestMonitor_Serve(t *testing.T) {
	m := newTestMonitor()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Serve(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestMonitor_ServeListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	m := newTestMonitor()
	err = m.Serve(context.Background(), l.Addr().String())
	assert.Error(t, err)
}

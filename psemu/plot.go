package main

import (
	"context"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/itohio/psemu/pkg/config"
	"github.com/itohio/psemu/pkg/emulator"
	"github.com/itohio/psemu/pkg/scope"
	"github.com/itohio/psemu/pkg/telemetry"
	"github.com/sirupsen/logrus"
)

// runPlot runs the emulator in the background and the plot window on the
// calling goroutine. Closing the window stops the emulator; the emulator
// stopping closes the window.
func runPlot(ctx context.Context, cancel context.CancelFunc, cfg config.PlotConfig, emu *emulator.Emulator, stream *telemetry.Stream, log logrus.FieldLogger) error {
	application := app.NewWithID("com.itohio.psemu")

	window := application.NewWindow("Power Supply Emulator")
	window.Resize(fyne.NewSize(1000, 600))
	window.CenterOnScreen()

	scopeWidget := scope.New(cfg)
	window.SetContent(scopeWidget)

	history := telemetry.NewHistory(time.Duration(cfg.WindowSeconds * float64(time.Second)))
	history.OnUpdate(func(samples []telemetry.Sample) {
		fyne.Do(func() {
			scopeWidget.UpdateData(samples)
		})
	})
	go history.Consume(stream.Samples())

	errc := make(chan error, 1)
	go func() {
		err := emu.Run(ctx)
		stream.Close()
		if dropped := stream.Dropped(); dropped > 0 {
			log.WithField("dropped", dropped).Warn("Plot fell behind, samples dropped")
		}
		errc <- err
		fyne.Do(application.Quit)
	}()

	window.ShowAndRun()
	cancel()
	return <-errc
}

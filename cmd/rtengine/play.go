package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	ossignal "os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"pipelined.dev/engine"
	"pipelined.dev/engine/log"
	"pipelined.dev/engine/metric"
	"pipelined.dev/engine/mock"
	"pipelined.dev/engine/oto"
	"pipelined.dev/engine/portaudio"
	"pipelined.dev/engine/signal"
)

type playCommand struct {
	graphFlags
	driver   string
	duration time.Duration
	metrics  string
}

func (cmd *playCommand) Name() string {
	return "play"
}

func (cmd *playCommand) Help() string {
	return "Play the graph on audio device"
}

func (cmd *playCommand) Register(fs *flag.FlagSet) {
	cmd.graphFlags.register(fs)
	fs.StringVar(&cmd.driver, "driver", "portaudio", "audio driver: portaudio, oto or null")
	fs.DurationVar(&cmd.duration, "duration", 5*time.Second, "playback duration, zero plays until interrupted")
	fs.StringVar(&cmd.metrics, "metrics", "", "address to serve prometheus metrics on")
}

func (cmd *playCommand) Run(out io.Writer) error {
	cfg, err := cmd.load()
	if err != nil {
		return err
	}
	logger := log.GetLogger()
	logger.SetOutput(out)

	driver, err := newDriver(cmd.driver, cfg.Device)
	if err != nil {
		return err
	}
	g, _, err := cmd.build(cfg)
	if err != nil {
		return err
	}
	e := engine.New(driver, g, append(cfg.Options(), engine.WithLogger(logger))...)

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if cmd.duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, cmd.duration)
		defer cancel()
	}

	if cmd.metrics != "" {
		stop, err := serveMetrics(cmd.metrics, e, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	if err := e.Open(cfg.Device); err != nil {
		return err
	}
	if err := e.Start(); err != nil {
		return errors.Join(err, e.Close())
	}
	if l, ok := e.Latency(); ok {
		logger.WithFields(logrus.Fields{
			"buffer":     l.Buffer,
			"graph":      l.Graph,
			"round_trip": l.RoundTrip,
			"device":     l.Device,
		}).Info("playing")
	}
	<-ctx.Done()

	err = errors.Join(e.Stop(), e.Close())
	d := e.Diagnostics()
	logger.WithFields(logrus.Fields{
		"callbacks": d.Sequence,
		"overruns":  d.Overruns,
		"discarded": d.EventsDiscarded,
		"dropped":   d.EventsDropped,
		"peak":      d.PeakCallback,
	}).Info("stopped")
	return err
}

func newDriver(name string, cfg engine.DeviceConfig) (engine.Driver, error) {
	switch name {
	case "portaudio":
		return portaudio.Driver{}, nil
	case "oto":
		return oto.Driver{}, nil
	case "null":
		// null driver renders blocks in real time without a device.
		rate, block := cfg.SampleRate, cfg.BlockSize
		if rate == 0 {
			rate = engine.DefaultSampleRate
		}
		if block == 0 {
			block = engine.DefaultBlockSize
		}
		return &mock.Driver{Interval: signal.DurationOf(rate, int64(block))}, nil
	}
	return nil, fmt.Errorf("unknown driver %q", name)
}

func serveMetrics(addr string, e *engine.Engine, logger *logrus.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metric.NewCollector(e)); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server failed")
		}
	}()
	logger.Infof("serving metrics on %s/metrics", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

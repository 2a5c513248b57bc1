package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pipelined.dev/engine/event"
	"pipelined.dev/engine/graph"
	"pipelined.dev/engine/log"
	"pipelined.dev/engine/ring"
	"pipelined.dev/engine/signal"
	"pipelined.dev/engine/transport"
	"pipelined.dev/engine/unit"
)

// Engine drives a graph from an audio device. Its methods are called
// from the control thread and serialized.
type Engine struct {
	id     xid.ID
	driver Driver
	graph  *graph.Graph
	logger log.Logger

	stopTimeout     time.Duration
	eventCapacity   int
	stagingCapacity int

	producer *ring.Producer[event.Event]
	consumer *ring.Consumer[event.Event]

	mu         sync.Mutex
	state      state
	config     DeviceConfig
	negotiated Negotiated
	stream     Stream
	clock      *transport.Clock
	trampoline *Trampoline
}

// New creates an engine in closed state. The graph is owned by the engine
// until it is closed.
func New(driver Driver, g *graph.Graph, options ...Option) *Engine {
	e := &Engine{
		id:              xid.New(),
		driver:          driver,
		graph:           g,
		logger:          log.GetLogger(),
		stopTimeout:     DefaultStopTimeout,
		eventCapacity:   DefaultEventCapacity,
		stagingCapacity: DefaultStagingCapacity,
		state:           closed,
	}
	for _, option := range options {
		option(e)
	}
	e.logger = log.With(e.logger, logrus.Fields{"engine": e.id.String()})
	e.producer, e.consumer = ring.New[event.Event](e.eventCapacity)
	return e
}

// ID returns unique engine id.
func (e *Engine) ID() string {
	return e.id.String()
}

// Graph returns the graph driven by the engine.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Open negotiates the device configuration and prepares the graph.
func (e *Engine) Open(cfg DeviceConfig) error {
	return e.do(action{kind: openAction, config: cfg})
}

// Start makes the device invoke the callback. If topology changed since
// Open, the graph is prepared again before streaming.
func (e *Engine) Start() error {
	return e.do(action{kind: startAction})
}

// Stop makes the device stop invoking the callback. It returns after the
// last callback completed or stop timeout expired.
func (e *Engine) Stop() error {
	return e.do(action{kind: stopAction})
}

// Close releases the device and resources allocated in Open.
func (e *Engine) Close() error {
	return e.do(action{kind: closeAction})
}

// State returns name of the current state.
func (e *Engine) State() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.String()
}

func (e *Engine) do(a action) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := e.state.transition(e, a)
	if next != e.state {
		e.logger.Debug(fmt.Sprintf("engine %v: %v -> %v", a.kind, e.state, next))
	}
	e.state = next
	return err
}

// Events returns the producer side of the event channel. Events pushed
// into it are delivered to every node in the next block.
func (e *Engine) Events() *ring.Producer[event.Event] {
	return e.producer
}

// Transport returns the transport clock. It's nil while engine is
// closed.
func (e *Engine) Transport() *transport.Clock {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

// Negotiated returns the configuration of the opened device.
func (e *Engine) Negotiated() (Negotiated, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.negotiated, e.stream != nil
}

// Trampoline returns the callback entry point of the opened device.
func (e *Engine) Trampoline() *Trampoline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trampoline
}

func (e *Engine) open(cfg DeviceConfig) error {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return &unit.ConfigurationError{Reason: "device config", Err: err}
	}

	// trampoline is bound before negotiation and sized after it.
	t := &Trampoline{}
	stream, negotiated, err := e.driver.Open(cfg, t)
	if err != nil {
		return deviceError("open", cfg.Device, err)
	}
	if err := negotiated.validate(); err != nil {
		return closeStream(stream, deviceError("open", cfg.Device, err))
	}
	workers, pin, cores := e.graph.Scheduling()
	if err := e.graph.SetScheduling(cfg.Workers, cfg.Pin, cfg.Affinity); err != nil {
		return closeStream(stream, err)
	}

	clock := transport.New(negotiated.SampleRate)
	e.consumer.Reset()
	t.bind(e.graph, clock, e.consumer, e.stagingCapacity, negotiated)

	if err := e.graph.Prepare(unitConfig(negotiated)); err != nil {
		_ = e.graph.SetScheduling(workers, pin, cores)
		return closeStream(stream, err)
	}

	e.config = cfg
	e.negotiated = negotiated
	e.stream = stream
	e.clock = clock
	e.trampoline = t
	e.logger.Info(fmt.Sprintf("opened %s: %d Hz, %d frames, %d in %d out channels",
		deviceName(cfg.Device), negotiated.SampleRate, negotiated.BlockSize, negotiated.InputChannels, negotiated.Channels))
	return nil
}

func (e *Engine) start() error {
	if e.graph.Dirty() {
		if err := e.graph.Prepare(unitConfig(e.negotiated)); err != nil {
			return err
		}
	}
	e.graph.Seal()
	e.trampoline.open()
	if err := e.stream.Start(); err != nil {
		e.trampoline.shut()
		e.graph.Unseal()
		return deviceError("start", e.config.Device, err)
	}
	return nil
}

func (e *Engine) stop() error {
	e.trampoline.shut()
	var errs closeErrors
	if err := e.stream.Stop(); err != nil {
		errs = append(errs, deviceError("stop", e.config.Device, err))
	}
	if err := e.drain(); err != nil {
		errs = append(errs, err)
	}
	e.graph.Unseal()
	return errs.ret()
}

// drain waits at least one period and until no callback is in flight.
func (e *Engine) drain() error {
	period := signal.DurationOf(e.negotiated.SampleRate, int64(e.negotiated.BlockSize))
	deadline := time.Now().Add(max(e.stopTimeout, period))
	time.Sleep(period)
	for !e.trampoline.idle() {
		if time.Now().After(deadline) {
			return ErrStopTimeout
		}
		time.Sleep(period / 8)
	}
	return nil
}

func (e *Engine) close() error {
	var errs closeErrors
	if err := e.stream.Close(); err != nil {
		errs = append(errs, deviceError("close", e.config.Device, err))
	}
	if err := e.graph.Release(); err != nil {
		errs = append(errs, err)
	}
	e.stream = nil
	e.clock = nil
	e.trampoline = nil
	e.negotiated = Negotiated{}
	e.logger.Info(fmt.Sprintf("closed %s", deviceName(e.config.Device)))
	return errs.ret()
}

func closeStream(s Stream, err error) error {
	if cerr := s.Close(); cerr != nil {
		return closeErrors{err, cerr}
	}
	return err
}

func unitConfig(n Negotiated) unit.Config {
	return unit.Config{
		SampleRate:   n.SampleRate,
		MaxBlockSize: n.BlockSize,
		Channels:     n.Channels,
		Layout:       n.Layout,
	}
}

func deviceName(name string) string {
	if name == "" {
		return "default device"
	}
	return name
}

package internal_agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/alphabot-community/alphabot-agent/internal/api"
	"github.com/alphabot-community/alphabot-agent/pkg/agent"
	"github.com/alphabot-community/alphabot-agent/pkg/events"
	"github.com/alphabot-community/alphabot-agent/pkg/hal"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/led"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/mmio"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/sim"
	"github.com/alphabot-community/alphabot-agent/pkg/ledengine"
	"github.com/alphabot-community/alphabot-agent/pkg/log"
	"github.com/alphabot-community/alphabot-agent/pkg/motor"
	"github.com/alphabot-community/alphabot-agent/pkg/pca9685"
	"github.com/alphabot-community/alphabot-agent/pkg/servo"
	"github.com/alphabot-community/alphabot-agent/pkg/ws2812b"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sierrasoftworks/humane-errors-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	sweepStep     = 2
	sweepInterval = 500 * time.Millisecond
)

var (
	// eventCounter counts the events handled by the agent
	eventCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alphabot_agent",
		Name:      "events_count",
		Help:      "AlphaBot agent internal event handler statistics (handled events)",
	}, []string{"type"})

	// failedEventCounter counts the events whose handler returned an error
	failedEventCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alphabot_agent",
		Name:      "events_failed_count",
		Help:      "AlphaBot agent internal event handler statistics (failed events)",
	}, []string{"type"})
)

type alphaBotAgentImpl struct {
	config   agent.AlphaBotAgentConfig
	gate     mmio.Gate
	reg      *hal.Registry
	platform string

	strip     *ws2812b.Controller
	ledEngine ledengine.LedEngine
	bridge    *motor.Bridge
	pca       *pca9685.Device
	servos    map[string]servo.Servo
	buzzer    *hal.Clock

	// closers are closed in reverse order on shutdown
	closers []io.Closer

	eventChan chan events.Event
	server    *api.AgentGrpcService

	mu          sync.Mutex
	ledPattern  events.LedPattern
	buzzerHz    uint32
	sweeping    string
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
	runDone     chan struct{}
}

// NewAlphaBotAgent validates config and brings up every enabled peripheral.
func NewAlphaBotAgent(ctx context.Context, config agent.AlphaBotAgentConfig, opts ...Option) (agent.AlphaBotAgent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	a := &alphaBotAgentImpl{
		config:    config,
		servos:    make(map[string]servo.Servo),
		eventChan: make(chan events.Event, 10),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.gate == nil {
		a.gate = a.defaultGate(ctx)
	}
	a.reg = hal.NewRegistry(
		hal.WithGate(a.gate),
		hal.WithPollInterval(config.Hal.PollInterval),
		hal.WithTimeout(config.Hal.Timeout),
	)

	if err := a.setup(ctx); err != nil {
		return nil, errors.Join(err, a.close())
	}

	a.server = api.NewGrpcApiServer(ctx,
		api.WithAlphaBotAgent(a),
		api.WithListenAddr(config.Listen.Api),
		api.WithListenMode(config.Listen.Mode),
		api.WithMetricsAddr(config.Listen.Metrics),
	)
	return a, nil
}

func (a *alphaBotAgentImpl) defaultGate(ctx context.Context) mmio.Gate {
	if a.config.Simulate {
		a.platform = "simulated"
		board := sim.NewBoard()
		if a.config.Servos.Enabled {
			route, _ := hal.LookupRoute(hal.ClassI2C, a.config.Servos.Bus.SDA)
			board.AttachI2C(int(route.Channel), a.config.Servos.Address, sim.NewPCA9685())
		}
		return board
	}

	platform, err := hal.DetectPlatform()
	switch {
	case err != nil:
		log.FromContext(ctx).Warn("Failed to detect platform", zap.Error(err))
		a.platform = "unknown"
	case !platform.Supported:
		log.FromContext(ctx).Warn("Platform is not a BCM2837, register access may fail or misbehave",
			zap.Stringer("platform", platform))
		a.platform = platform.String()
	default:
		a.platform = platform.String()
	}
	return mmio.NewDevMem(a.config.Hal.Device)
}

func (a *alphaBotAgentImpl) setup(ctx context.Context) error {
	if a.config.Leds.Enabled {
		if err := a.setupLeds(ctx); err != nil {
			return err
		}
	}
	if a.config.Motors.Enabled {
		if err := a.setupMotors(ctx); err != nil {
			return err
		}
	}
	if a.config.Servos.Enabled {
		if err := a.setupServos(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *alphaBotAgentImpl) setupLeds(ctx context.Context) error {
	strip, err := ws2812b.Open(ctx, a.reg, a.config.Leds.Pin)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, strip)

	if a.config.Leds.Count > strip.MaxPixels() {
		return humane.New(
			fmt.Sprintf("leds.count %d exceeds the %d pixels one frame can carry", a.config.Leds.Count, strip.MaxPixels()),
			fmt.Sprintf("Set leds.count to at most %d", strip.MaxPixels()),
		)
	}

	a.strip = strip
	a.ledEngine = ledengine.NewLedEngine(ledengine.Options{
		Strip:      strip,
		Brightness: a.config.Leds.Brightness,
	})
	return nil
}

func (a *alphaBotAgentImpl) setupMotors(ctx context.Context) error {
	pins := a.config.Motors.Pins

	var out interface {
		motor.Outputs
		io.Closer
	}
	var err error
	switch a.config.Motors.Backend {
	case agent.BackendChardev:
		out, err = hal.NewLineOutputs(a.config.Motors.Chip, pins.All()...)
	default:
		out, err = hal.NewGpioOut(ctx, a.reg, pins.All()...)
	}
	if err != nil {
		return err
	}
	a.closers = append(a.closers, out)

	a.bridge, err = motor.NewBridge(out, pins)
	return err
}

func (a *alphaBotAgentImpl) setupServos(ctx context.Context) error {
	cfg := a.config.Servos

	bus, err := hal.NewI2C(ctx, a.reg, cfg.Bus.SDA, cfg.Bus.SCL)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, bus)

	if err := bus.SetBusSpeed(cfg.Bus.Speed); err != nil {
		return err
	}

	a.pca = pca9685.New(bus, cfg.Address)
	if err := a.pca.Configure(cfg.Frequency); err != nil {
		return err
	}

	for name, servoCfg := range map[string]servo.Config{"yaw": cfg.Yaw, "pitch": cfg.Pitch} {
		s, err := servo.NewServo(name, a.pca, servoCfg)
		if err != nil {
			return err
		}
		a.servos[name] = s
	}
	return nil
}

// RunAsync starts the agent in a separate goroutine and handles errors, allowing cancellation through the provided context.
func (a *alphaBotAgentImpl) RunAsync(ctx context.Context, cancel context.CancelCauseFunc) {
	go func() {
		log.FromContext(ctx).Info("Starting agent")
		err := a.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.FromContext(ctx).Error("Failed to run agent", zap.Error(err))
			cancel(err)
		}
	}()
}

// Run starts the LED engine, event handler, temperature monitor and API servers and waits for termination.
func (a *alphaBotAgentImpl) Run(origCtx context.Context) error {
	a.mu.Lock()
	a.runDone = make(chan struct{})
	done := a.runDone
	a.mu.Unlock()
	defer close(done)

	log.FromContext(origCtx).Info("Starting AlphaBot agent", zap.String("platform", a.platform))
	group, ctx := errgroup.WithContext(origCtx)

	// Ingest noop event to initialise metrics
	eventCounter.WithLabelValues(events.NoopEvent.String())

	if a.ledEngine != nil {
		if err := a.applyLedPattern(a.config.Leds.Pattern, a.config.Leds.Color); err != nil {
			return err
		}
		group.Go(func() error { return a.runLedEngine(ctx) })
	}
	group.Go(func() error { return a.runEventHandler(ctx) })
	group.Go(func() error { return a.runTemperatureMonitor(ctx) })
	group.Go(func() error {
		if err := a.server.Serve(ctx); err != nil {
			return err
		}
		return ctx.Err()
	})

	return group.Wait()
}

// GracefulStop stops the API, puts the hardware in a safe state and releases every register block.
func (a *alphaBotAgentImpl) GracefulStop(ctx context.Context) error {
	if err := a.server.GracefulStop(ctx); err != nil {
		log.FromContext(ctx).Warn("Failed to stop api server", zap.Error(err))
	}

	a.mu.Lock()
	done := a.runDone
	a.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.stopSweep()

	log.FromContext(ctx).Info("Exiting, restoring safe settings")
	if a.bridge != nil {
		if err := a.bridge.Move(motor.Stop); err != nil {
			log.FromContext(ctx).Error("Failed to stop motors", zap.Error(err))
		}
	}
	if a.strip != nil {
		if err := a.strip.Off(ctx, a.config.Leds.Count); err != nil {
			log.FromContext(ctx).Error("Failed to turn LEDs off", zap.Error(err))
		}
	}
	if a.pca != nil {
		if err := a.pca.AllOff(); err != nil {
			log.FromContext(ctx).Error("Failed to switch servo outputs off", zap.Error(err))
		}
	}
	if a.buzzer != nil {
		if err := a.buzzer.Stop(ctx); err != nil {
			log.FromContext(ctx).Error("Failed to silence buzzer", zap.Error(err))
		}
	}

	return a.close()
}

func (a *alphaBotAgentImpl) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	errs = append(errs, a.reg.Close())
	return errors.Join(errs...)
}

// EmitEvent dispatches an event to the event handler
func (a *alphaBotAgentImpl) EmitEvent(ctx context.Context, event events.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	select {
	case a.eventChan <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *alphaBotAgentImpl) Status(ctx context.Context) (agent.Status, error) {
	status := agent.Status{
		Platform:  a.platform,
		Simulated: a.config.Simulate,
		Direction: "disabled",
		Servos:    make(map[string]uint16, len(a.servos)),
	}

	if !a.config.Simulate {
		if temp, err := hal.SocTemperature(); err == nil {
			status.Temperature = &temp
		} else {
			log.FromContext(ctx).Debug("Failed to read SoC temperature", zap.Error(err))
		}
	}

	if a.bridge != nil {
		status.Direction = a.bridge.Direction().String()
	}
	for name, s := range a.servos {
		status.Servos[name] = s.Position()
	}

	a.mu.Lock()
	status.LedPattern = a.ledPattern
	status.Sweeping = a.sweeping
	status.BuzzerHz = a.buzzerHz
	a.mu.Unlock()

	for _, kind := range []hal.BlockKind{hal.BlockGPIO, hal.BlockPWM, hal.BlockClock, hal.BlockI2C0, hal.BlockI2C1} {
		if a.reg.Mapped(kind) {
			status.MappedBlocks = append(status.MappedBlocks, kind.String())
		}
	}
	for _, claim := range a.reg.Arbiter().Claims() {
		status.Claims = append(status.Claims, agent.ChannelClaim{
			Class:   claim.Class.String(),
			Channel: int(claim.Channel),
			Pin:     claim.Pin,
		})
	}
	return status, nil
}

// handleEvent applies one event to the hardware. It runs on the event handler goroutine only.
func (a *alphaBotAgentImpl) handleEvent(ctx context.Context, event events.Event) error {
	log.FromContext(ctx).Info("Handling event", zap.String("event", event.String()))
	eventCounter.WithLabelValues(event.String()).Inc()

	switch event.Type {
	case events.MoveEvent:
		return a.handleMove(event)
	case events.LedEvent:
		return a.applyLedPattern(event.Pattern, event.Color)
	case events.ServoEvent:
		return a.handleServo(event)
	case events.SweepEvent:
		return a.handleSweep(ctx, event)
	case events.BuzzerEvent:
		return a.handleBuzzer(ctx, event.Frequency)
	case events.HaltEvent:
		return a.handleHalt(ctx)
	case events.NoopEvent:
	}
	return nil
}

func (a *alphaBotAgentImpl) handleMove(event events.Event) error {
	if a.bridge == nil {
		return disabled("motors")
	}
	direction, err := motor.ParseDirection(event.Direction)
	if err != nil {
		return err
	}
	return a.bridge.Move(direction)
}

func (a *alphaBotAgentImpl) lookupServo(name string) (servo.Servo, error) {
	if len(a.servos) == 0 {
		return nil, disabled("servos")
	}
	s, ok := a.servos[name]
	if !ok {
		return nil, humane.New(fmt.Sprintf("unknown servo %q", name), "Use yaw or pitch")
	}
	return s, nil
}

func (a *alphaBotAgentImpl) handleServo(event events.Event) error {
	s, err := a.lookupServo(event.Servo)
	if err != nil {
		return err
	}
	a.stopSweep()
	return s.MovePercent(event.Percent)
}

func (a *alphaBotAgentImpl) handleSweep(ctx context.Context, event events.Event) error {
	s, err := a.lookupServo(event.Servo)
	if err != nil {
		return err
	}
	a.stopSweep()

	sweepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	a.mu.Lock()
	a.sweeping, a.sweepCancel, a.sweepDone = event.Servo, cancel, done
	a.mu.Unlock()

	go func() {
		defer close(done)
		if err := s.Sweep(sweepCtx, sweepStep, sweepInterval); err != nil && !errors.Is(err, context.Canceled) {
			log.FromContext(ctx).Error("Servo sweep failed", zap.String("servo", event.Servo), zap.Error(err))
		}
	}()
	return nil
}

// stopSweep cancels a running sweep and waits until it no longer touches the bus.
func (a *alphaBotAgentImpl) stopSweep() {
	a.mu.Lock()
	cancel, done := a.sweepCancel, a.sweepDone
	a.sweeping, a.sweepCancel, a.sweepDone = "", nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (a *alphaBotAgentImpl) handleBuzzer(ctx context.Context, hz uint32) error {
	if !a.config.Buzzer.Enabled {
		return disabled("buzzer")
	}

	var err error
	switch {
	case hz == 0 && a.buzzer == nil:
	case hz == 0:
		err = a.buzzer.Stop(ctx)
	case a.buzzer == nil:
		a.buzzer, err = hal.NewClock(ctx, a.reg, a.config.Buzzer.Pin, hz)
		if err == nil {
			a.closers = append(a.closers, a.buzzer)
		}
	default:
		err = a.buzzer.SetFrequency(ctx, hz)
	}
	if err != nil {
		return err
	}

	a.setBuzzerHz(hz)
	return nil
}

func (a *alphaBotAgentImpl) setBuzzerHz(hz uint32) {
	a.mu.Lock()
	a.buzzerHz = hz
	a.mu.Unlock()
}

func (a *alphaBotAgentImpl) handleHalt(ctx context.Context) error {
	a.stopSweep()

	var errs []error
	if a.bridge != nil {
		errs = append(errs, a.bridge.Move(motor.Stop))
	}
	if a.buzzer != nil {
		if err := a.buzzer.Stop(ctx); err != nil {
			errs = append(errs, err)
		} else {
			a.setBuzzerHz(0)
		}
	}
	return errors.Join(errs...)
}

func (a *alphaBotAgentImpl) applyLedPattern(name events.LedPattern, color led.Color) error {
	if a.ledEngine == nil {
		return disabled("leds")
	}

	n := a.config.Leds.Count
	var pattern ledengine.Pattern
	switch name {
	case events.PatternStatic:
		pattern = ledengine.NewStaticPattern(n, color)
	case events.PatternBlink:
		pattern = ledengine.NewSlowBlinkPattern(n, led.Color{}, color)
	case events.PatternWaterLight:
		pattern = ledengine.NewWaterLightPattern(n, a.config.Leds.Palette, a.config.Leds.Interval)
	default:
		pattern = ledengine.NewStaticPattern(n, led.Color{})
	}

	if err := a.ledEngine.SetPattern(pattern); err != nil {
		return err
	}
	a.mu.Lock()
	a.ledPattern = name
	a.mu.Unlock()
	return nil
}

// runLedEngine runs the LED engine
func (a *alphaBotAgentImpl) runLedEngine(ctx context.Context) error {
	log.FromContext(ctx).Info("Starting LED engine")
	err := a.ledEngine.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.FromContext(ctx).Error("LED engine failed", zap.Error(err))
	}
	return err
}

// runEventHandler applies queued events until ctx is done. Handler failures are logged, not fatal.
func (a *alphaBotAgentImpl) runEventHandler(ctx context.Context) error {
	log.FromContext(ctx).Info("Starting event handler")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-a.eventChan:
			if err := a.handleEvent(ctx, event); err != nil {
				failedEventCounter.WithLabelValues(event.String()).Inc()
				log.FromContext(ctx).Error("Failed to handle event",
					append(log.ErrorFields(err), zap.String("event", event.String()))...)
			}
		}
	}
}

// runTemperatureMonitor samples the SoC temperature into its gauge periodically.
func (a *alphaBotAgentImpl) runTemperatureMonitor(ctx context.Context) error {
	if a.config.Simulate {
		return nil
	}

	ticker := time.NewTicker(a.config.Hal.TemperatureInterval)
	defer ticker.Stop()

	warned := false
	for {
		if _, err := hal.SocTemperature(); err != nil && !warned {
			log.FromContext(ctx).Warn("Failed to read SoC temperature", zap.Error(err))
			warned = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func disabled(what string) error {
	return humane.New(what+" are disabled", "Enable "+what+" in the agent configuration")
}

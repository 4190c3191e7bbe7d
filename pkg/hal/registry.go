package hal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alphabot-community/alphabot-agent/pkg/hal/bcm2837"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/mmio"
	"github.com/alphabot-community/alphabot-agent/pkg/log"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 10 * time.Microsecond
	DefaultTimeout      = 10 * time.Millisecond
	// DefaultSettleDelay is slept between PWM reconfiguration writes.
	DefaultSettleDelay = 10 * time.Microsecond
)

// BlockKind names one fixed register block of the SoC.
type BlockKind int

const (
	BlockGPIO BlockKind = iota
	BlockPWM
	BlockClock
	BlockI2C0
	BlockI2C1
)

func (k BlockKind) String() string {
	switch k {
	case BlockGPIO:
		return "gpio"
	case BlockPWM:
		return "pwm"
	case BlockClock:
		return "clock"
	case BlockI2C0:
		return "i2c0"
	case BlockI2C1:
		return "i2c1"
	}
	return fmt.Sprintf("block(%d)", int(k))
}

// Base returns the physical base address of the block.
func (k BlockKind) Base() int64 {
	switch k {
	case BlockGPIO:
		return bcm2837.GpioBase
	case BlockPWM:
		return bcm2837.PwmBase
	case BlockClock:
		return bcm2837.ClockBase
	case BlockI2C0:
		return bcm2837.Bsc0Base
	case BlockI2C1:
		return bcm2837.Bsc1Base
	}
	return -1
}

type registerBlock struct {
	mapping mmio.Mapping
	live    int
}

type options struct {
	gate         mmio.Gate
	pollInterval time.Duration
	timeout      time.Duration
	settle       time.Duration
}

type Option func(*options)

// WithGate replaces the /dev/mem gate, e.g. with a simulated board.
func WithGate(gate mmio.Gate) Option {
	return func(o *options) {
		o.gate = gate
	}
}

// WithPollInterval sets the delay between hardware status polls.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithTimeout bounds every hardware status wait.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithSettleDelay sets the pause between PWM reconfiguration writes.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) {
		o.settle = d
	}
}

// Registry owns the register mappings and the channel claim table for one
// process. Every peripheral is constructed against a Registry.
type Registry struct {
	opts options

	mu       sync.Mutex
	gateOpen bool
	blocks   map[BlockKind]*registerBlock

	arbiter *Arbiter
}

func NewRegistry(opts ...Option) *Registry {
	o := options{
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
		settle:       DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.gate == nil {
		o.gate = mmio.NewDevMem(mmio.DefaultDevMemPath)
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}
	if o.timeout < o.pollInterval {
		o.timeout = o.pollInterval
	}

	return &Registry{
		opts:    o,
		blocks:  make(map[BlockKind]*registerBlock),
		arbiter: NewArbiter(),
	}
}

// Arbiter returns the channel claim table shared by all peripherals of this registry.
func (r *Registry) Arbiter() *Arbiter {
	return r.arbiter
}

// Acquire returns the register view of kind, mapping it on first use.
// Every successful Acquire must be paired with a Release.
func (r *Registry) Acquire(ctx context.Context, kind BlockKind) (mmio.Registers, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if blk, ok := r.blocks[kind]; ok {
		blk.live++
		mappedBlocks.WithLabelValues(kind.String()).Set(float64(blk.live))
		return blk.mapping, nil
	}

	base := kind.Base()
	if base < 0 {
		return nil, Errorf(KindInvalidArgument, "unknown register block %s", kind)
	}

	if !r.gateOpen {
		if err := r.opts.gate.Open(); err != nil {
			return nil, WrapError(KindMapFailed, err, "failed to open physical memory",
				"run as root or grant CAP_SYS_RAWIO",
				"ensure /dev/mem is present and not restricted by the kernel",
			)
		}
		r.gateOpen = true
	}

	mapping, err := r.opts.gate.Map(base, bcm2837.BlockSize)
	if err != nil {
		r.closeGateIfIdle()
		return nil, WrapError(KindMapFailed, err, fmt.Sprintf("failed to map %s registers at 0x%x", kind, base),
			"ensure the board is a Raspberry Pi 3B (BCM2837)",
		)
	}

	r.blocks[kind] = &registerBlock{mapping: mapping, live: 1}
	mappedBlocks.WithLabelValues(kind.String()).Set(1)
	log.FromContext(ctx).Debug("mapped register block", zap.Stringer("block", kind), zap.String("base", fmt.Sprintf("0x%x", base)))

	return mapping, nil
}

// MustAcquire is Acquire for callers that cannot run without the block; a
// mapping failure terminates the process.
func (r *Registry) MustAcquire(ctx context.Context, kind BlockKind) mmio.Registers {
	regs, err := r.Acquire(ctx, kind)
	if err != nil {
		log.FromContext(ctx).Fatal("register block unavailable", log.ErrorFields(err)...)
	}
	return regs
}

// Release drops one reference on kind. The last release unmaps the block;
// views handed out for it must not be used afterwards.
func (r *Registry) Release(kind BlockKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	blk, ok := r.blocks[kind]
	if !ok {
		return nil
	}

	blk.live--
	mappedBlocks.WithLabelValues(kind.String()).Set(float64(blk.live))
	if blk.live > 0 {
		return nil
	}

	delete(r.blocks, kind)
	return errors.Join(blk.mapping.Unmap(), r.closeGateIfIdle())
}

// Mapped reports whether kind currently has a live mapping.
func (r *Registry) Mapped(kind BlockKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.blocks[kind]
	return ok
}

// LiveCount returns the number of outstanding references on kind.
func (r *Registry) LiveCount(kind BlockKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if blk, ok := r.blocks[kind]; ok {
		return blk.live
	}
	return 0
}

// Close force-unmaps every block and closes the gate.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for kind, blk := range r.blocks {
		errs = append(errs, blk.mapping.Unmap())
		mappedBlocks.WithLabelValues(kind.String()).Set(0)
		delete(r.blocks, kind)
	}
	errs = append(errs, r.closeGateIfIdle())
	return errors.Join(errs...)
}

func (r *Registry) closeGateIfIdle() error {
	if !r.gateOpen || len(r.blocks) > 0 {
		return nil
	}
	r.gateOpen = false
	return r.opts.gate.Close()
}

var errNotReady = errors.New("not ready")

// waitUntil polls ready until it reports true, the timeout elapses or ctx is
// done. Cancellation returns the ctx error and is not counted as a stall.
func (r *Registry) waitUntil(ctx context.Context, op string, ready func() bool) error {
	if ready() {
		return nil
	}

	retries := uint64(r.opts.timeout / r.opts.pollInterval)
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(r.opts.pollInterval), retries), ctx)
	err := backoff.Retry(func() error {
		if ready() {
			return nil
		}
		return errNotReady
	}, b)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	timingStalls.WithLabelValues(op).Inc()
	log.FromContext(ctx).Warn("hardware status wait timed out", zap.String("op", op), zap.Duration("timeout", r.opts.timeout))
	return WrapError(KindTimingStall, err, fmt.Sprintf("%s did not complete within %s", op, r.opts.timeout),
		"check that the peripheral is powered and its clock is running",
	)
}

func (r *Registry) settle() {
	if r.opts.settle > 0 {
		time.Sleep(r.opts.settle)
	}
}

// Package selftest orchestrates the engine's built-in test modes on top
// of the driver: a loopback generator/checker run whose byte counters
// are cross-checked against the rate meters.
package selftest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hwnet/uoesim/driver"
)

// Mode identifies a built-in test flavor.
type Mode int

const (
	// NoBIT means no built-in test ran.
	NoBIT Mode = iota
	// PBIT is the power-on built-in test, run once at startup.
	PBIT
	// IBIT is the initiated built-in test, run on operator request.
	IBIT
	// CBIT is the continuous built-in test, short runs in the background.
	CBIT
)

func (m Mode) String() string {
	switch m {
	case NoBIT:
		return "none"
	case PBIT:
		return "pbit"
	case IBIT:
		return "ibit"
	case CBIT:
		return "cbit"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ErrMeterMismatch reports that the rate meters disagree with the
// generator/checker byte targets after a run that otherwise completed.
var ErrMeterMismatch = errors.New("selftest: rate meter mismatch")

// ErrAlreadyRunning reports a second StartCBIT without a StopCBIT.
var ErrAlreadyRunning = errors.New("selftest: continuous test already running")

// Config sizes one test run.
type Config struct {
	// FrameSize is the static frame size of the loopback traffic.
	FrameSize uint16
	// Bytes is the byte target of one run.
	Bytes uint64
	// Rate is the generator rate limitation; 255 is line rate.
	Rate uint8
	// Port is the UDP port the loopback traffic uses.
	Port uint16
	// Interval is the pause between continuous-test runs.
	Interval time.Duration
}

// DefaultConfig returns a short run suitable for PBIT at bring-up.
func DefaultConfig() Config {
	return Config{
		FrameSize: 256,
		Bytes:     4096,
		Rate:      255,
		Port:      0xBEE7,
		Interval:  time.Second,
	}
}

// Report is the outcome of one test run.
type Report struct {
	Mode         Mode
	Passed       bool
	Err          error
	BytesSent    uint64
	BytesChecked uint64
	// Cycles is the transmit meter's cycle count over the run.
	Cycles uint64
	// TxThroughput is bytes per device clock cycle.
	TxThroughput float64
}

// Runner serializes built-in test runs over one driver. The mutex also
// fences test traffic from any caller-owned traffic job, so a run never
// contaminates live counters.
type Runner struct {
	d   *driver.Driver
	cfg Config
	log *zap.Logger

	mu sync.Mutex

	cbitMu     sync.Mutex
	cbitCancel context.CancelFunc
	cbitDone   chan struct{}

	lastMu sync.Mutex
	last   *Report
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConfig overrides the run sizing.
func WithConfig(cfg Config) RunnerOption {
	return func(r *Runner) { r.cfg = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// NewRunner creates a Runner over the given driver.
func NewRunner(d *driver.Driver, opts ...RunnerOption) *Runner {
	r := &Runner{
		d:   d,
		cfg: DefaultConfig(),
		log: zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RunPBIT performs the power-on built-in test.
func (r *Runner) RunPBIT(ctx context.Context) (Report, error) {
	return r.run(ctx, PBIT)
}

// RunIBIT performs an operator-initiated built-in test.
func (r *Runner) RunIBIT(ctx context.Context) (Report, error) {
	return r.run(ctx, IBIT)
}

// StartCBIT launches the continuous built-in test loop. Each pass runs
// one short test and records its report; LastReport reads the most
// recent one. StopCBIT or context cancellation ends the loop.
func (r *Runner) StartCBIT(ctx context.Context) error {
	r.cbitMu.Lock()
	defer r.cbitMu.Unlock()
	if r.cbitCancel != nil {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cbitCancel = cancel
	r.cbitDone = done

	go func() {
		defer close(done)
		for {
			rep, err := r.run(ctx, CBIT)
			if err != nil && ctx.Err() != nil {
				return
			}
			if err != nil {
				r.log.Warn("continuous test run failed", zap.Error(err))
			}
			r.lastMu.Lock()
			r.last = &rep
			r.lastMu.Unlock()

			select {
			case <-ctx.Done():
				return
			case <-time.After(r.cfg.Interval):
			}
		}
	}()
	return nil
}

// StopCBIT ends the continuous test loop and waits for the in-flight
// run to finish. Safe to call when no loop is running.
func (r *Runner) StopCBIT() {
	r.cbitMu.Lock()
	cancel, done := r.cbitCancel, r.cbitDone
	r.cbitCancel, r.cbitDone = nil, nil
	r.cbitMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// LastReport returns the most recent continuous-test report, if any.
func (r *Runner) LastReport() (Report, bool) {
	r.lastMu.Lock()
	defer r.lastMu.Unlock()
	if r.last == nil {
		return Report{}, false
	}
	return *r.last, true
}

func (r *Runner) run(ctx context.Context, mode Mode) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := Report{Mode: mode}
	r.log.Info("built-in test starting",
		zap.Stringer("mode", mode),
		zap.Uint64("bytes", r.cfg.Bytes))

	if err := r.setup(); err != nil {
		rep.Err = err
		return rep, err
	}
	if err := r.d.StartChecker(); err != nil {
		rep.Err = err
		return rep, err
	}
	if err := r.d.StartGenerator(); err != nil {
		rep.Err = err
		return rep, err
	}

	if err := r.d.WaitGenerator(ctx); err != nil {
		r.abort()
		rep.Err = err
		return rep, err
	}
	if err := r.d.WaitChecker(ctx); err != nil {
		r.abort()
		rep.Err = err
		return rep, err
	}

	if err := r.harvest(&rep); err != nil {
		rep.Err = err
		return rep, err
	}
	rep.Passed = rep.Err == nil
	r.log.Info("built-in test finished",
		zap.Stringer("mode", mode),
		zap.Bool("passed", rep.Passed))
	return rep, rep.Err
}

// setup routes the generator into the checker over UDP loopback and
// arms both rate meters for the run.
func (r *Runner) setup() error {
	if err := r.d.SetLoopback(false, true); err != nil {
		return err
	}
	if err := r.d.ConfigureChecker(driver.ChkConfig{
		FrameSizeStatic: r.cfg.FrameSize,
		NBBytes:         r.cfg.Bytes,
		ListeningPort:   r.cfg.Port,
	}); err != nil {
		return err
	}
	if err := r.d.ConfigureGenerator(driver.GenConfig{
		FrameSizeStatic: r.cfg.FrameSize,
		RateLimit:       r.cfg.Rate,
		NBBytes:         r.cfg.Bytes,
		DestPort:        r.cfg.Port,
		SrcPort:         r.cfg.Port,
	}); err != nil {
		return err
	}
	if err := r.d.TxMeter().Init(); err != nil {
		return err
	}
	if err := r.d.RxMeter().Init(); err != nil {
		return err
	}
	// The init pulse rearms the counters but not the latched interrupt
	// bits; acknowledge leftovers from an earlier run.
	for _, src := range []string{
		"rate_meter_tx_done", "rate_meter_rx_done",
		"rate_meter_tx_overflow", "rate_meter_rx_overflow",
	} {
		if err := r.d.TestIRQ().Clear(src); err != nil {
			return err
		}
	}
	return r.d.TxMeter().SetExpectedBytes(r.cfg.Bytes)
}

// abort stops both engines after a failed wait so a later run starts
// from Idle. Stop errors are secondary to the wait error already held.
func (r *Runner) abort() {
	if err := r.d.StopGenerator(); err != nil {
		r.log.Warn("generator stop failed", zap.Error(err))
	}
	if err := r.d.StopChecker(); err != nil {
		r.log.Warn("checker stop failed", zap.Error(err))
	}
}

// harvest reads the meters and cross-checks them against the target.
func (r *Runner) harvest(rep *Report) error {
	var err error
	if rep.BytesSent, err = r.d.TxMeter().Bytes(); err != nil {
		return err
	}
	if rep.BytesChecked, err = r.d.RxMeter().Bytes(); err != nil {
		return err
	}
	if rep.Cycles, err = r.d.TxMeter().Cycles(); err != nil {
		return err
	}
	if rep.Cycles > 0 {
		rep.TxThroughput = float64(rep.BytesSent) / float64(rep.Cycles)
	}

	done, err := r.d.TxMeter().Done()
	if err != nil {
		return err
	}
	if !done || rep.BytesSent != r.cfg.Bytes || rep.BytesChecked != r.cfg.Bytes {
		return fmt.Errorf("%w: sent %d, checked %d, want %d",
			ErrMeterMismatch, rep.BytesSent, rep.BytesChecked, r.cfg.Bytes)
	}
	return nil
}

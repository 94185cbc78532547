// Package driver is the software side of the UOE register contract.
//
// The driver owns all access to the two register blocks (main engine and
// built-in test engine) through an abstract 32-bit bus. Hardware state
// machines progress on their own; the driver's job is to configure,
// trigger, poll and translate status bits into typed errors. It never
// assumes a blocking primitive from the hardware: every wait is a
// bounded poll under a caller-supplied context.
package driver

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hwnet/uoesim/regmap"
)

// Bus provides raw 32-bit access to the register space. Implementations
// wrap whatever transport the platform offers (AXI bridge, PCIe BAR,
// the simulated device in package hw). Transport errors pass through
// the driver unwrapped; they are distinct from protocol errors, which
// only ever surface via status bits.
type Bus interface {
	Read32(offset uint32) (uint32, error)
	Write32(offset uint32, value uint32) error
}

// Default base offsets of the two blocks, as wired on the KCU105
// reference design.
const (
	DefaultMainBase = 0x0000
	DefaultTestBase = 0x2000
)

const defaultPollInterval = 100 * time.Microsecond

// Driver mediates all register access for one UOE instance.
type Driver struct {
	main *BlockClient
	test *BlockClient

	mainIRQ *IRQ
	testIRQ *IRQ

	poll time.Duration
	log  *zap.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the structured logger. The default discards logs.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithMainBase overrides the main block's byte offset on the bus.
func WithMainBase(base uint32) Option {
	return func(d *Driver) { d.main.base = base }
}

// WithTestBase overrides the test block's byte offset on the bus.
func WithTestBase(base uint32) Option {
	return func(d *Driver) { d.test.base = base }
}

// WithPollInterval sets the status polling period for waits.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Driver) { d.poll = interval }
}

// New creates a driver over the given bus.
func New(bus Bus, opts ...Option) *Driver {
	d := &Driver{
		main: &BlockClient{bus: bus, base: DefaultMainBase, block: regmap.MainBlock()},
		test: &BlockClient{bus: bus, base: DefaultTestBase, block: regmap.TestBlock()},
		poll: defaultPollInterval,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.mainIRQ = &IRQ{c: d.main, bank: regmap.MainIRQBank, poll: d.poll, log: d.log}
	d.testIRQ = &IRQ{c: d.test, bank: regmap.TestIRQBank, poll: d.poll, log: d.log}
	return d
}

// Main returns the main block's register client.
func (d *Driver) Main() *BlockClient { return d.main }

// Test returns the test block's register client.
func (d *Driver) Test() *BlockClient { return d.test }

// MainIRQ returns the main engine interrupt aggregator.
func (d *Driver) MainIRQ() *IRQ { return d.mainIRQ }

// TestIRQ returns the test engine interrupt aggregator.
func (d *Driver) TestIRQ() *IRQ { return d.testIRQ }

// BlockClient serializes access to one register block. Sibling fields
// share 32-bit words, so read-modify-write must be exclusive; one lock
// guards the whole block, not individual registers.
type BlockClient struct {
	bus   Bus
	base  uint32
	block *regmap.Block

	mu sync.Mutex
}

// Block returns the layout this client works against.
func (c *BlockClient) Block() *regmap.Block { return c.block }

// ReadReg reads a whole register by name.
func (c *BlockClient) ReadReg(name string) (uint32, error) {
	r, ok := c.block.Reg(name)
	if !ok {
		return 0, fmt.Errorf("driver: %s: no register %q", c.block.Name, name)
	}
	return c.bus.Read32(c.base + r.Offset)
}

// WriteReg writes a whole register by name.
func (c *BlockClient) WriteReg(name string, v uint32) error {
	r, ok := c.block.Reg(name)
	if !ok {
		return fmt.Errorf("driver: %s: no register %q", c.block.Name, name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bus.Write32(c.base+r.Offset, v)
}

// ReadField reads one named field.
func (c *BlockClient) ReadField(reg, field string) (uint32, error) {
	r, f, ok := c.block.Field(reg, field)
	if !ok {
		return 0, fmt.Errorf("driver: %s: no field %s.%s", c.block.Name, reg, field)
	}
	raw, err := c.bus.Read32(c.base + r.Offset)
	if err != nil {
		return 0, err
	}
	return regmap.Extract(raw, f), nil
}

// WriteField read-modify-writes one named field under the block lock.
// Read-only and write-1-to-clear fields are rejected; status bits are
// hardware-driven and only reachable through the clear/set registers.
func (c *BlockClient) WriteField(reg, field string, v uint32) error {
	r, f, ok := c.block.Field(reg, field)
	if !ok {
		return fmt.Errorf("driver: %s: no field %s.%s", c.block.Name, reg, field)
	}
	if f.Access == regmap.RO || f.Access == regmap.W1C {
		return fmt.Errorf("driver: %s.%s: %w", reg, field, ErrAccessMode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := c.bus.Read32(c.base + r.Offset)
	if err != nil {
		return err
	}
	raw, err = regmap.Insert(raw, f, v)
	if err != nil {
		return fmt.Errorf("driver: %s.%s: %w", reg, field, err)
	}
	return c.bus.Write32(c.base+r.Offset, raw)
}

// Pulse fires a write-triggered field, preserving sibling configuration
// bits in the same word.
func (c *BlockClient) Pulse(reg, field string) error {
	r, f, ok := c.block.Field(reg, field)
	if !ok {
		return fmt.Errorf("driver: %s: no field %s.%s", c.block.Name, reg, field)
	}
	if f.Access != regmap.WT {
		return fmt.Errorf("driver: %s.%s is not write-triggered: %w", reg, field, ErrAccessMode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := c.bus.Read32(c.base + r.Offset)
	if err != nil {
		return err
	}
	return c.bus.Write32(c.base+r.Offset, raw|f.Mask())
}

// read64 reads a split lsb/msb counter pair with the msb-lsb-msb
// recheck discipline. The two words cannot be read atomically; if the
// msb changes between samples the lsb may belong to either half, so
// the read is retried.
func (c *BlockClient) read64(lsbReg, msbReg string) (uint64, error) {
	const attempts = 8
	for i := 0; i < attempts; i++ {
		msb1, err := c.ReadReg(msbReg)
		if err != nil {
			return 0, err
		}
		lsb, err := c.ReadReg(lsbReg)
		if err != nil {
			return 0, err
		}
		msb2, err := c.ReadReg(msbReg)
		if err != nil {
			return 0, err
		}
		if msb1 == msb2 {
			return uint64(msb2)<<32 | uint64(lsb), nil
		}
	}
	return 0, ErrUnstableCounter
}

// write64 writes a 64-bit value to a split lsb/msb register pair.
func (c *BlockClient) write64(lsbReg, msbReg string, v uint64) error {
	if err := c.WriteReg(lsbReg, uint32(v)); err != nil {
		return err
	}
	return c.WriteReg(msbReg, uint32(v>>32))
}

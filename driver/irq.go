package driver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hwnet/uoesim/regmap"
)

// IRQ is the uniform view over one block's status/enable/clear/set
// register quartet. Both engine blocks instantiate it independently;
// the two share no state.
//
// The status register is hardware-driven: this API never writes it.
// Status is only influenced through the clear and set registers, and a
// clear does not guarantee the source stays down — hardware may assert
// it again at any time, so callers re-read instead of assuming.
type IRQ struct {
	c    *BlockClient
	bank regmap.IRQBank
	poll time.Duration
	log  *zap.Logger
}

func (q *IRQ) source(name string) (regmap.IRQSource, error) {
	s, ok := q.bank.Source(name)
	if !ok {
		return regmap.IRQSource{}, fmt.Errorf("driver: %s: no irq source %q", q.c.block.Name, name)
	}
	return s, nil
}

// Pending reports whether the source's status bit is asserted.
func (q *IRQ) Pending(src string) (bool, error) {
	s, err := q.source(src)
	if err != nil {
		return false, err
	}
	raw, err := q.c.ReadReg(q.bank.Status)
	if err != nil {
		return false, err
	}
	return raw&(1<<s.Bit) != 0, nil
}

// PendingAll returns the raw status word, one bit per source.
func (q *IRQ) PendingAll() (uint32, error) {
	return q.c.ReadReg(q.bank.Status)
}

// SetEnabled gates the source's propagation to the external interrupt
// line. It does not affect the status bit itself.
func (q *IRQ) SetEnabled(src string, enabled bool) error {
	s, err := q.source(src)
	if err != nil {
		return err
	}
	v := uint32(0)
	if enabled {
		v = 1
	}
	return q.c.WriteField(q.bank.Enable, s.Name, v)
}

// Enabled reports the source's enable bit.
func (q *IRQ) Enabled(src string) (bool, error) {
	s, err := q.source(src)
	if err != nil {
		return false, err
	}
	v, err := q.c.ReadField(q.bank.Enable, s.Name)
	return v != 0, err
}

// Clear writes 1 to the source's bit in the clear register. Clearing a
// source that is not pending is a no-op. The clear register is
// self-clearing, so only the target bit is written.
func (q *IRQ) Clear(src string) error {
	s, err := q.source(src)
	if err != nil {
		return err
	}
	return q.c.WriteReg(q.bank.Clear, 1<<s.Bit)
}

// ClearAll clears every source in the bank.
func (q *IRQ) ClearAll() error {
	var mask uint32
	for _, s := range q.bank.Sources {
		mask |= 1 << s.Bit
	}
	return q.c.WriteReg(q.bank.Clear, mask)
}

// Force asserts the source through the set register. Diagnostic use:
// it exercises the interrupt path without the hardware condition.
func (q *IRQ) Force(src string) error {
	s, err := q.source(src)
	if err != nil {
		return err
	}
	q.log.Debug("forcing irq", zap.String("block", q.c.block.Name), zap.String("source", src))
	return q.c.WriteReg(q.bank.Set, 1<<s.Bit)
}

// Wait polls the source until it asserts or the context ends. The
// hardware offers level-triggered bits only; the bounded-wait policy
// lives here, in software.
func (q *IRQ) Wait(ctx context.Context, src string) error {
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()
	for {
		pending, err := q.Pending(src)
		if err != nil {
			return err
		}
		if pending {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitAny polls until one of the named sources asserts and returns its
// name, or the context ends.
func (q *IRQ) WaitAny(ctx context.Context, srcs ...string) (string, error) {
	bits := make(map[string]uint8, len(srcs))
	for _, name := range srcs {
		s, err := q.source(name)
		if err != nil {
			return "", err
		}
		bits[name] = s.Bit
	}
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()
	for {
		raw, err := q.PendingAll()
		if err != nil {
			return "", err
		}
		for _, name := range srcs {
			if raw&(1<<bits[name]) != 0 {
				return name, nil
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

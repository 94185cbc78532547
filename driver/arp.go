package driver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hwnet/uoesim/regmap"
)

// ARPConfig parametrizes the hardware ARP engine.
type ARPConfig struct {
	// TimeoutMS is the per-attempt reply timeout in milliseconds
	// (12-bit field, 0..4095).
	TimeoutMS uint16
	// Tryings is the retry budget before the engine declares a
	// permanent timeout (4-bit field, 0..15).
	Tryings uint8
	// Filter selects which incoming ARP frames are accepted.
	Filter regmap.ARPFilter
	// TestLocalIPConflict arms detection of another station claiming
	// the local IP.
	TestLocalIPConflict bool
}

// SetARPConfig writes the ARP engine configuration.
func (d *Driver) SetARPConfig(cfg ARPConfig) error {
	if cfg.TimeoutMS > 4095 {
		return fmt.Errorf("driver: arp timeout %d ms exceeds 12-bit field: %w", cfg.TimeoutMS, regmap.ErrOutOfRange)
	}
	if cfg.Tryings > 15 {
		return fmt.Errorf("driver: arp tryings %d exceeds 4-bit field: %w", cfg.Tryings, regmap.ErrOutOfRange)
	}
	if cfg.Filter > regmap.ARPFilterStaticTable {
		return fmt.Errorf("driver: arp filter %d: %w", cfg.Filter, regmap.ErrOutOfRange)
	}
	for field, v := range map[string]uint32{
		"arp_timeout_ms":                uint32(cfg.TimeoutMS),
		"arp_tryings":                   uint32(cfg.Tryings),
		"arp_rx_target_ip_filter":       uint32(cfg.Filter),
		"arp_rx_test_local_ip_conflict": boolBit(cfg.TestLocalIPConflict),
	} {
		if err := d.main.WriteField("arp_configuration", field, v); err != nil {
			return err
		}
	}
	return nil
}

// ARPConfig reads back the current engine configuration.
func (d *Driver) ARPConfig() (ARPConfig, error) {
	raw, err := d.main.ReadReg("arp_configuration")
	if err != nil {
		return ARPConfig{}, err
	}
	get := func(field string) uint32 {
		_, f, _ := d.main.block.Field("arp_configuration", field)
		return regmap.Extract(raw, f)
	}
	return ARPConfig{
		TimeoutMS:           uint16(get("arp_timeout_ms")),
		Tryings:             uint8(get("arp_tryings")),
		Filter:              regmap.ARPFilter(get("arp_rx_target_ip_filter")),
		TestLocalIPConflict: get("arp_rx_test_local_ip_conflict") != 0,
	}, nil
}

// RequestResolve fires a software ARP request for ip. Fire-and-forget:
// the outcome is only observable through status bits (CheckARP).
func (d *Driver) RequestResolve(ip uint32) error {
	d.log.Debug("arp software request", zap.Uint32("ip", ip))
	return d.main.WriteReg("arp_sw_req", ip)
}

// CheckARP translates any pending ARP error status into a typed error
// and acknowledges the bit. It returns nil when no ARP error is
// pending. Resolution success has no status bit of its own; it is
// observed as the absence of errors over the engine's retry window.
func (d *Driver) CheckARP() error {
	raw, err := d.mainIRQ.PendingAll()
	if err != nil {
		return err
	}
	checks := []struct {
		src string
		err error
	}{
		{"arp_ip_conflict", ErrARPIPConflict},
		{"arp_mac_conflict", ErrARPMACConflict},
		{"arp_error", ErrARPTimeout},
	}
	for _, c := range checks {
		s, _ := d.mainIRQ.bank.Source(c.src)
		if raw&(1<<s.Bit) == 0 {
			continue
		}
		if cerr := d.mainIRQ.Clear(c.src); cerr != nil {
			return cerr
		}
		return c.err
	}
	return nil
}

// Resolve requests resolution of ip and watches for errors over the
// engine's worst-case window, (tryings+1) attempts of timeout_ms each.
// nil means no error interrupt asserted within that window, which is
// the hardware's way of reporting success. The context bounds the wait.
func (d *Driver) Resolve(ctx context.Context, ip uint32) error {
	cfg, err := d.ARPConfig()
	if err != nil {
		return err
	}
	if err := d.RequestResolve(ip); err != nil {
		return err
	}
	window := time.Duration(cfg.Tryings+1)*time.Duration(cfg.TimeoutMS)*time.Millisecond + 2*d.poll
	deadline := time.NewTimer(window)
	defer deadline.Stop()
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()
	for {
		if err := d.CheckARP(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return d.CheckARP()
		case <-ticker.C:
		}
	}
}

// GratuitousRequest broadcasts an unsolicited ARP announcement. It
// bypasses the reply wait entirely.
func (d *Driver) GratuitousRequest() error {
	return d.main.Pulse("arp_configuration", "arp_gratuitous_req")
}

// ClearARPTable flushes the hardware ARP table and waits for the
// completion interrupt.
func (d *Driver) ClearARPTable(ctx context.Context) error {
	if err := d.main.Pulse("arp_configuration", "arp_table_clear"); err != nil {
		return err
	}
	if err := d.mainIRQ.Wait(ctx, "arp_table_clear_done"); err != nil {
		return err
	}
	return d.mainIRQ.Clear("arp_table_clear_done")
}

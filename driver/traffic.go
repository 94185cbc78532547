package driver

import (
	"context"
	"fmt"
)

// GenConfig parametrizes a generator job.
type GenConfig struct {
	// VariableFrameSize selects varying frame sizes instead of the
	// static size below.
	VariableFrameSize bool
	// FrameSizeStatic is the emitted frame size in bytes when static.
	FrameSizeStatic uint16
	// RateLimit throttles emission; 255 is line rate.
	RateLimit uint8
	// NBBytes ends the job once this many bytes were emitted (0: no
	// byte target).
	NBBytes uint64
	// Duration ends the job after this many device clock cycles
	// (0: no duration target).
	Duration uint64

	DestIP   uint32
	DestPort uint16
	SrcPort  uint16
}

// ChkConfig parametrizes a checker job.
type ChkConfig struct {
	VariableFrameSize bool
	FrameSizeStatic   uint16
	RateLimit         uint8
	// NBBytes completes the job once this many bytes were received.
	NBBytes uint64
	// Duration completes the job after this many device clock cycles.
	Duration uint64
	// ListeningPort is the UDP port the checker accepts frames on.
	ListeningPort uint16
}

// ConfigureGenerator writes a generator job description. The job does
// not start until StartGenerator.
func (d *Driver) ConfigureGenerator(cfg GenConfig) error {
	for field, v := range map[string]uint32{
		"gen_frame_size_type":   boolBit(cfg.VariableFrameSize),
		"gen_frame_size_static": uint32(cfg.FrameSizeStatic),
		"gen_rate_limitation":   uint32(cfg.RateLimit),
	} {
		if err := d.test.WriteField("gen_config", field, v); err != nil {
			return err
		}
	}
	if err := d.test.write64("gen_nb_bytes_lsb", "gen_nb_bytes_msb", cfg.NBBytes); err != nil {
		return err
	}
	if err := d.test.write64("gen_test_duration_lsb", "gen_test_duration_msb", cfg.Duration); err != nil {
		return err
	}
	if err := d.test.WriteField("lb_gen_udp_port", "lb_gen_dest_port", uint32(cfg.DestPort)); err != nil {
		return err
	}
	if err := d.test.WriteField("lb_gen_udp_port", "lb_gen_src_port", uint32(cfg.SrcPort)); err != nil {
		return err
	}
	return d.test.WriteReg("lb_gen_dest_ip_addr", cfg.DestIP)
}

// ConfigureChecker writes a checker job description.
func (d *Driver) ConfigureChecker(cfg ChkConfig) error {
	for field, v := range map[string]uint32{
		"chk_frame_size_type":   boolBit(cfg.VariableFrameSize),
		"chk_frame_size_static": uint32(cfg.FrameSizeStatic),
		"chk_rate_limitation":   uint32(cfg.RateLimit),
	} {
		if err := d.test.WriteField("chk_config", field, v); err != nil {
			return err
		}
	}
	if err := d.test.write64("chk_nb_bytes_lsb", "chk_nb_bytes_msb", cfg.NBBytes); err != nil {
		return err
	}
	if err := d.test.write64("chk_test_duration_lsb", "chk_test_duration_msb", cfg.Duration); err != nil {
		return err
	}
	return d.test.WriteField("chk_udp_port", "chk_listening_port", uint32(cfg.ListeningPort))
}

// SetLoopback routes generator output back into the checker at the MAC
// or UDP layer, for self-test without external equipment.
func (d *Driver) SetLoopback(mac, udp bool) error {
	if err := d.test.WriteField("gen_chk_control", "loopback_mac_en", boolBit(mac)); err != nil {
		return err
	}
	return d.test.WriteField("gen_chk_control", "loopback_udp_en", boolBit(udp))
}

// StartGenerator pulses gen_start. Completion or failure is reported
// through the test block's interrupt bank.
func (d *Driver) StartGenerator() error {
	d.log.Debug("generator start")
	return d.test.Pulse("gen_chk_control", "gen_start")
}

// StopGenerator aborts a running job; counters freeze where they are.
func (d *Driver) StopGenerator() error {
	d.log.Debug("generator stop")
	return d.test.Pulse("gen_chk_control", "gen_stop")
}

// StartChecker pulses chk_start.
func (d *Driver) StartChecker() error {
	d.log.Debug("checker start")
	return d.test.Pulse("gen_chk_control", "chk_start")
}

// StopChecker aborts a running checker job.
func (d *Driver) StopChecker() error {
	d.log.Debug("checker stop")
	return d.test.Pulse("gen_chk_control", "chk_stop")
}

// WaitGenerator blocks until the generator signals done or failure,
// acknowledges the bit, and translates failure into a typed error.
func (d *Driver) WaitGenerator(ctx context.Context) error {
	src, err := d.testIRQ.WaitAny(ctx, "gen_done", "gen_err_timeout")
	if err != nil {
		return err
	}
	if cerr := d.testIRQ.Clear(src); cerr != nil {
		return cerr
	}
	if src == "gen_err_timeout" {
		return ErrGenTimeout
	}
	return nil
}

// WaitChecker blocks until the checker signals done or one of its
// failure conditions, acknowledges the bit, and translates it.
func (d *Driver) WaitChecker(ctx context.Context) error {
	src, err := d.testIRQ.WaitAny(ctx,
		"chk_done", "chk_err_frame_size", "chk_err_data", "chk_err_timeout")
	if err != nil {
		return err
	}
	if cerr := d.testIRQ.Clear(src); cerr != nil {
		return cerr
	}
	switch src {
	case "chk_err_frame_size":
		return ErrChkFrameSize
	case "chk_err_data":
		return ErrChkData
	case "chk_err_timeout":
		return ErrChkTimeout
	}
	return nil
}

// CheckTraffic is the poll-style variant: it translates any pending
// generator/checker failure bit without blocking and acknowledges it.
func (d *Driver) CheckTraffic() error {
	raw, err := d.testIRQ.PendingAll()
	if err != nil {
		return err
	}
	checks := []struct {
		src string
		err error
	}{
		{"gen_err_timeout", ErrGenTimeout},
		{"chk_err_frame_size", ErrChkFrameSize},
		{"chk_err_data", ErrChkData},
		{"chk_err_timeout", ErrChkTimeout},
	}
	for _, c := range checks {
		s, ok := d.testIRQ.bank.Source(c.src)
		if !ok {
			return fmt.Errorf("driver: missing irq source %q", c.src)
		}
		if raw&(1<<s.Bit) == 0 {
			continue
		}
		if cerr := d.testIRQ.Clear(c.src); cerr != nil {
			return cerr
		}
		return c.err
	}
	return nil
}

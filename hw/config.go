// Package hw is a tick-driven behavioral model of the UOE hardware.
//
// The model implements driver.Bus, so the real driver runs against it
// unchanged. Register words live in an akita storage; the ARP engine,
// traffic generator, checker and rate meters progress on Tick, the way
// the silicon progresses on its clock. The model is cycle-based, not
// cycle-accurate: latencies are configurable approximations.
package hw

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/akita/v4/sim"
)

// Config holds the device's timing and identification parameters.
type Config struct {
	// FreqMHz is the device clock frequency. The reference design runs
	// the SFP+ clock domain at 156.25 MHz.
	FreqMHz float64 `json:"freq_mhz"`

	// ARPReplyLatencyCycles is the delay between an ARP request going
	// out and a responder's reply being processed.
	ARPReplyLatencyCycles uint64 `json:"arp_reply_latency_cycles"`

	// GenTimeoutCycles is how long the generator waits on an
	// unreachable destination before raising gen_err_timeout.
	GenTimeoutCycles uint64 `json:"gen_timeout_cycles"`

	// ChkTimeoutCycles is how long the checker tolerates silence
	// before raising chk_err_timeout. Zero disables the timeout.
	ChkTimeoutCycles uint64 `json:"chk_timeout_cycles"`

	// Version word content.
	Version  uint8  `json:"version"`
	Revision uint8  `json:"revision"`
	Debug    uint16 `json:"debug"`
}

// DefaultConfig returns the reference design parameters.
func DefaultConfig() Config {
	return Config{
		FreqMHz:               156.25,
		ARPReplyLatencyCycles: 2,
		GenTimeoutCycles:      2000,
		ChkTimeoutCycles:      2000,
		Version:               1,
		Revision:              0,
		Debug:                 0,
	}
}

// Freq returns the device clock as an akita frequency.
func (c Config) Freq() sim.Freq {
	return sim.Freq(c.FreqMHz) * sim.MHz
}

// CyclesPerMS converts the arp_timeout_ms unit into device cycles.
func (c Config) CyclesPerMS() uint64 {
	return uint64(c.FreqMHz * 1000)
}

// Validate rejects configurations the model cannot run with.
func (c Config) Validate() error {
	if c.FreqMHz <= 0 {
		return fmt.Errorf("hw: freq_mhz must be positive, got %v", c.FreqMHz)
	}
	return nil
}

// LoadConfig reads a JSON config file. Missing fields keep their
// default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("hw: reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("hw: parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

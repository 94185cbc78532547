package driver

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// MulticastSlot is one of the four IPv4 multicast filter entries.
type MulticastSlot struct {
	// Addr holds the low 28 bits of the multicast group address; the
	// 1110 prefix of 224.0.0.0/4 is implied by the hardware.
	Addr    uint32
	Enabled bool
}

// NetConfig is the engine's network identity and filtering setup,
// written during bring-up before config_done.
type NetConfig struct {
	MAC        uint64 // 48-bit local MAC
	IP         uint32 // local IPv4
	TTL        uint8
	RawDestMAC uint64 // 48-bit destination for raw ethernet traffic

	BroadcastFilter bool
	MulticastFilter bool
	UnicastFilter   bool
	Multicast       [4]MulticastSlot
}

// Configure writes the network identity and raises config_done, which
// releases the engine from reset. Call WaitReady to observe init_done.
func (d *Driver) Configure(cfg NetConfig) error {
	if cfg.MAC >= 1<<48 {
		return fmt.Errorf("driver: mac 0x%X wider than 48 bits", cfg.MAC)
	}
	if cfg.RawDestMAC >= 1<<48 {
		return fmt.Errorf("driver: raw dest mac 0x%X wider than 48 bits", cfg.RawDestMAC)
	}
	writes := []struct {
		reg string
		v   uint32
	}{
		{"local_mac_addr_lsb", uint32(cfg.MAC)},
		{"local_mac_addr_msb", uint32(cfg.MAC >> 32)},
		{"local_ip_addr", cfg.IP},
		{"raw_dest_mac_addr_lsb", uint32(cfg.RawDestMAC)},
		{"raw_dest_mac_addr_msb", uint32(cfg.RawDestMAC >> 32)},
	}
	for _, w := range writes {
		if err := d.main.WriteReg(w.reg, w.v); err != nil {
			return err
		}
	}
	if err := d.main.WriteField("ipv4_time_to_leave", "ttl", uint32(cfg.TTL)); err != nil {
		return err
	}
	for name, on := range map[string]bool{
		"broadcast_filter_enable":      cfg.BroadcastFilter,
		"ipv4_multicast_filter_enable": cfg.MulticastFilter,
		"unicast_filter_enable":        cfg.UnicastFilter,
	} {
		if err := d.main.WriteField("filtering_control", name, boolBit(on)); err != nil {
			return err
		}
	}
	for i, slot := range cfg.Multicast {
		reg := fmt.Sprintf("ipv4_multicast_ip_addr_%d", i+1)
		if slot.Addr >= 1<<28 {
			return fmt.Errorf("driver: %s: address 0x%X wider than 28 bits", reg, slot.Addr)
		}
		if err := d.main.WriteField(reg, "multicast_ip_addr", slot.Addr); err != nil {
			return err
		}
		if err := d.main.WriteField(reg, "multicast_ip_addr_enable", boolBit(slot.Enabled)); err != nil {
			return err
		}
	}
	d.log.Info("uoe configured",
		zap.Uint64("mac", cfg.MAC),
		zap.Uint32("ip", cfg.IP))
	return d.main.WriteField("config_done", "config_done", 1)
}

// WaitReady waits for the init_done interrupt and acknowledges it.
func (d *Driver) WaitReady(ctx context.Context) error {
	if err := d.mainIRQ.Wait(ctx, "init_done"); err != nil {
		return err
	}
	return d.mainIRQ.Clear("init_done")
}

// Version is the hardware identification word.
type Version struct {
	Version  uint8
	Revision uint8
	Debug    uint16
}

// ReadVersion reads the hardware identification register.
func (d *Driver) ReadVersion() (Version, error) {
	raw, err := d.main.ReadReg("version")
	if err != nil {
		return Version{}, err
	}
	return Version{
		Version:  uint8(raw),
		Revision: uint8(raw >> 8),
		Debug:    uint16(raw >> 16),
	}, nil
}

// DropCounters are the main block's free-running monitors. They are
// read-only and reset only with the hardware.
type DropCounters struct {
	CRCFilter uint32
	MACFilter uint32
	ExtDrop   uint32
	RawDrop   uint32
	UDPDrop   uint32
}

// ReadDropCounters samples all five monitoring counters.
func (d *Driver) ReadDropCounters() (DropCounters, error) {
	var (
		dc   DropCounters
		regs = []struct {
			name string
			dst  *uint32
		}{
			{"monitoring_crc_filter", &dc.CRCFilter},
			{"monitoring_mac_filter", &dc.MACFilter},
			{"monitoring_ext_drop", &dc.ExtDrop},
			{"monitoring_raw_drop", &dc.RawDrop},
			{"monitoring_udp_drop", &dc.UDPDrop},
		}
	)
	for _, r := range regs {
		v, err := d.main.ReadReg(r.name)
		if err != nil {
			return DropCounters{}, err
		}
		*r.dst = v
	}
	return dc, nil
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

package hw

import "go.uber.org/zap"

// arpState is the resolution engine's state. Resolved, TimedOut and
// Conflict are terminal for a session and collapse back to idle; the
// outcome is visible through the ARP table and the interrupt bits.
type arpState uint8

const (
	arpIdle arpState = iota
	arpRequesting
)

// arpEngine resolves IP addresses to MACs. One session at a time: a
// software request while busy replaces the running session, as a new
// trigger would in hardware.
type arpEngine struct {
	state   arpState
	target  uint32
	attempt int
	started uint64 // cycle the current attempt began

	table map[uint32]uint64

	gratuitousSent int
}

func (a *arpEngine) timeoutCycles(d *Device) uint64 {
	ms := uint64(d.mainField("arp_configuration", "arp_timeout_ms"))
	c := ms * d.cfg.CyclesPerMS()
	if c == 0 {
		c = 1
	}
	return c
}

func (a *arpEngine) maxAttempts(d *Device) int {
	// arp_tryings retries on top of the initial attempt.
	return int(d.mainField("arp_configuration", "arp_tryings")) + 1
}

// request starts a resolution session for ip. A target already in the
// table resolves immediately without traffic.
func (a *arpEngine) request(d *Device, ip uint32) {
	if _, known := a.table[ip]; known {
		return
	}
	a.state = arpRequesting
	a.target = ip
	a.attempt = 1
	a.started = d.cycle
	d.log.Debug("arp request", zap.Uint32("ip", ip))
}

// gratuitous broadcasts an unsolicited announcement. No reply wait, no
// session.
func (a *arpEngine) gratuitous(d *Device) {
	a.gratuitousSent++
	d.log.Debug("gratuitous arp", zap.Int("total", a.gratuitousSent))
}

// tableClear flushes the table and aborts any running session. The
// hardware completes the flush within the same write.
func (a *arpEngine) tableClear(d *Device) {
	a.table = make(map[uint32]uint64)
	a.state = arpIdle
	d.raiseMain("arp_table_clear_done")
}

func (a *arpEngine) tick(d *Device) {
	if a.state != arpRequesting {
		return
	}
	elapsed := d.cycle - a.started

	// The responder's reply lands after the configured latency. The
	// tick following the request is elapsed==1, so the effective
	// minimum latency is one cycle.
	replyAt := d.cfg.ARPReplyLatencyCycles
	if replyAt == 0 {
		replyAt = 1
	}
	if d.responder != nil && elapsed == replyAt {
		if mac, ok := d.responder.Respond(a.target, a.attempt); ok {
			a.learn(d, a.target, mac)
			a.state = arpIdle
			return
		}
	}

	if elapsed < a.timeoutCycles(d) {
		return
	}
	if a.attempt >= a.maxAttempts(d) {
		// Retry budget exhausted: permanent timeout.
		a.state = arpIdle
		d.raiseMain("arp_error")
		d.log.Debug("arp timeout", zap.Uint32("ip", a.target), zap.Int("attempts", a.attempt))
		return
	}
	a.attempt++
	a.started = d.cycle
}

// learn records a sender, raising the conflict interrupts the
// configuration arms.
func (a *arpEngine) learn(d *Device, ip uint32, mac uint64) {
	localIP := d.storeRead32(MainBase + mustOffset(d.main, "local_ip_addr"))
	if ip == localIP && d.mainField("arp_configuration", "arp_rx_test_local_ip_conflict") != 0 {
		d.raiseMain("arp_ip_conflict")
		return
	}
	if prev, known := a.table[ip]; known && prev != mac {
		d.raiseMain("arp_mac_conflict")
		return
	}
	a.table[ip] = mac
}

// DeliverARP feeds an incoming ARP frame (sender IP/MAC pair) to the
// engine, subject to the receive filter. Test harness entry point for
// conflict and table population scenarios.
func (d *Device) DeliverARP(senderIP uint32, senderMAC uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	filter := d.mainField("arp_configuration", "arp_rx_target_ip_filter")
	if filter == 3 { // static table only: never learn from traffic
		if prev, known := d.arp.table[senderIP]; known && prev != senderMAC {
			d.raiseMain("arp_mac_conflict")
		}
		return
	}
	d.arp.learn(d, senderIP, senderMAC)
}

// ResolvedMAC reports the table entry for ip, if any.
func (d *Device) ResolvedMAC(ip uint32) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mac, ok := d.arp.table[ip]
	return mac, ok
}

// GratuitousSent counts gratuitous announcements since reset.
func (d *Device) GratuitousSent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.arp.gratuitousSent
}

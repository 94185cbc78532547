package hw

import "go.uber.org/zap"

// patternByte is the deterministic payload pattern both engines agree
// on, so the checker can validate content without a reference stream.
func patternByte(i int) byte {
	return byte(i) ^ 0x5A
}

// genJob is a generator run's parameters, latched from the config
// registers at the start pulse.
type genJob struct {
	varSize    bool
	staticSize uint32
	rate       uint8
	nbBytes    uint64
	duration   uint64
	destIP     uint32
	destPort   uint16
	srcPort    uint16
}

// emitInterval converts the 8-bit rate limitation into cycles between
// frames: 255 is line rate (one frame per cycle), 0 the slowest.
func (j genJob) emitInterval() uint64 {
	return 256 - uint64(j.rate)
}

type genEngine struct {
	running   bool
	job       genJob
	sent      uint64
	frames    uint64
	started   uint64
	nextEmit  uint64
	reachable bool
}

func (g *genEngine) start(d *Device) {
	g.job = genJob{
		varSize:    d.testField("gen_config", "gen_frame_size_type") != 0,
		staticSize: d.testField("gen_config", "gen_frame_size_static"),
		rate:       uint8(d.testField("gen_config", "gen_rate_limitation")),
		nbBytes:    d.storeRead64(d.testOffset("gen_nb_bytes_lsb"), d.testOffset("gen_nb_bytes_msb")),
		duration:   d.storeRead64(d.testOffset("gen_test_duration_lsb"), d.testOffset("gen_test_duration_msb")),
		destIP:     d.storeRead32(d.testOffset("lb_gen_dest_ip_addr")),
		destPort:   uint16(d.testField("lb_gen_udp_port", "lb_gen_dest_port")),
		srcPort:    uint16(d.testField("lb_gen_udp_port", "lb_gen_src_port")),
	}
	g.sent = 0
	g.frames = 0
	g.started = d.cycle
	g.nextEmit = d.cycle + g.job.emitInterval()
	g.reachable = d.testField("gen_chk_control", "loopback_mac_en") != 0 ||
		d.testField("gen_chk_control", "loopback_udp_en") != 0 ||
		d.sink != nil
	g.running = true
	d.log.Debug("generator started",
		zap.Uint64("nb_bytes", g.job.nbBytes),
		zap.Uint32("frame_size", g.job.staticSize))
}

// stop aborts the job. Counters freeze where they are; no interrupt.
func (g *genEngine) stop(d *Device) {
	g.running = false
}

func (g *genEngine) frameSize() uint32 {
	if g.job.varSize {
		return 64 + uint32(g.frames*37)%1408
	}
	if g.job.staticSize == 0 {
		return 1
	}
	return g.job.staticSize
}

func (g *genEngine) tick(d *Device) {
	if !g.running {
		return
	}
	if !g.reachable {
		if d.cycle-g.started >= d.cfg.GenTimeoutCycles {
			g.running = false
			d.raiseTest("gen_err_timeout")
		}
		return
	}
	if g.job.duration > 0 && d.cycle-g.started >= g.job.duration {
		g.finish(d)
		return
	}
	if d.cycle < g.nextEmit {
		return
	}
	g.nextEmit += g.job.emitInterval()

	size := uint64(g.frameSize())
	if g.job.nbBytes > 0 {
		if remaining := g.job.nbBytes - g.sent; size > remaining {
			size = remaining
		}
	}
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = patternByte(i)
	}
	frame := Frame{
		DestIP:   g.job.destIP,
		DestPort: g.job.destPort,
		SrcPort:  g.job.srcPort,
		Payload:  payload,
	}
	g.sent += size
	g.frames++
	d.tx.addBytes(d, dirTx, size)
	d.route(frame)

	if g.job.nbBytes > 0 && g.sent >= g.job.nbBytes {
		g.finish(d)
	}
}

func (g *genEngine) finish(d *Device) {
	g.running = false
	d.raiseTest("gen_done")
	d.log.Debug("generator done", zap.Uint64("bytes", g.sent), zap.Uint64("frames", g.frames))
}

// route delivers a generated frame: loopback into the checker when
// enabled, otherwise to the external sink. The sink is called with the
// device lock held and must not call back into the device.
func (d *Device) route(f Frame) {
	lbMAC := d.testField("gen_chk_control", "loopback_mac_en") != 0
	lbUDP := d.testField("gen_chk_control", "loopback_udp_en") != 0
	if lbMAC || lbUDP {
		d.chk.deliver(d, f)
		return
	}
	if d.sink != nil {
		d.sink.Send(f)
	}
}

// chkJob is a checker run's parameters, latched at the start pulse.
type chkJob struct {
	varSize    bool
	staticSize uint32
	nbBytes    uint64
	duration   uint64
	port       uint16
}

type chkEngine struct {
	running  bool
	job      chkJob
	received uint64
	frames   uint64
	started  uint64
	lastRx   uint64
}

func (c *chkEngine) start(d *Device) {
	c.job = chkJob{
		varSize:    d.testField("chk_config", "chk_frame_size_type") != 0,
		staticSize: d.testField("chk_config", "chk_frame_size_static"),
		nbBytes:    d.storeRead64(d.testOffset("chk_nb_bytes_lsb"), d.testOffset("chk_nb_bytes_msb")),
		duration:   d.storeRead64(d.testOffset("chk_test_duration_lsb"), d.testOffset("chk_test_duration_msb")),
		port:       uint16(d.testField("chk_udp_port", "chk_listening_port")),
	}
	c.received = 0
	c.frames = 0
	c.started = d.cycle
	c.lastRx = d.cycle
	c.running = true
}

func (c *chkEngine) stop(d *Device) {
	c.running = false
}

func (c *chkEngine) deliver(d *Device, f Frame) {
	if !c.running || f.DestPort != c.job.port {
		d.bumpDrop(DropUDP)
		return
	}
	if !c.job.varSize && c.job.staticSize > 0 && uint32(len(f.Payload)) != c.job.staticSize {
		c.running = false
		d.raiseTest("chk_err_frame_size")
		return
	}
	for i, b := range f.Payload {
		if b != patternByte(i) {
			c.running = false
			d.raiseTest("chk_err_data")
			return
		}
	}
	c.received += uint64(len(f.Payload))
	c.frames++
	c.lastRx = d.cycle
	d.rx.addBytes(d, dirRx, uint64(len(f.Payload)))
	if c.job.nbBytes > 0 && c.received >= c.job.nbBytes {
		c.running = false
		d.raiseTest("chk_done")
	}
}

func (c *chkEngine) tick(d *Device) {
	if !c.running {
		return
	}
	if c.job.duration > 0 && d.cycle-c.started >= c.job.duration {
		c.running = false
		d.raiseTest("chk_done")
		return
	}
	if d.cfg.ChkTimeoutCycles > 0 && d.cycle-c.lastRx >= d.cfg.ChkTimeoutCycles {
		c.running = false
		d.raiseTest("chk_err_timeout")
	}
}

// InjectFrame feeds a frame to the checker from outside the loopback
// path, as external traffic would arrive.
func (d *Device) InjectFrame(f Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chk.deliver(d, f)
}

// GenStats reports the generator's progress: bytes and frames emitted
// in the current or last job, and whether it is still running.
func (d *Device) GenStats() (bytes, frames uint64, running bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen.sent, d.gen.frames, d.gen.running
}

// ChkStats reports the checker's progress.
func (d *Device) ChkStats() (bytes, frames uint64, running bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chk.received, d.chk.frames, d.chk.running
}

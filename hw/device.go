package hw

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/akita/v4/mem/mem"
	"go.uber.org/zap"

	"github.com/hwnet/uoesim/regmap"
)

// Block base offsets on the simulated bus, matching the reference
// design's address decode.
const (
	MainBase = 0x0000
	TestBase = 0x2000

	storageSize = 0x4000
)

// Frame is one UDP datagram moving through the test datapath.
type Frame struct {
	DestIP   uint32
	DestPort uint16
	SrcPort  uint16
	Payload  []byte
}

// FrameSink receives generator output when no loopback is enabled.
type FrameSink interface {
	Send(Frame)
}

// ARPResponder models the far end of the ARP exchange. Respond is
// consulted once per attempt (first attempt is 1); returning ok=false
// leaves the attempt unanswered.
type ARPResponder interface {
	Respond(ip uint32, attempt int) (mac uint64, ok bool)
}

// ARPResponderFunc adapts a function to ARPResponder.
type ARPResponderFunc func(ip uint32, attempt int) (uint64, bool)

// Respond implements ARPResponder.
func (f ARPResponderFunc) Respond(ip uint32, attempt int) (uint64, bool) {
	return f(ip, attempt)
}

// Device is the simulated UOE. It implements driver.Bus; Tick advances
// the hardware clock.
type Device struct {
	mu  sync.Mutex
	cfg Config
	log *zap.Logger

	store *mem.Storage
	main  *regmap.Block
	test  *regmap.Block

	// Hardware-owned interrupt status words. Never written through the
	// bus; only via the clear/set registers and internal raises.
	statusMain uint32
	statusTest uint32

	cycle uint64

	arp arpEngine
	gen genEngine
	chk chkEngine
	tx  rateMeter
	rx  rateMeter

	responder ARPResponder
	sink      FrameSink
}

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithLogger sets the device's structured logger.
func WithLogger(l *zap.Logger) DeviceOption {
	return func(d *Device) { d.log = l }
}

// WithARPResponder plugs in the simulated far end for ARP requests.
func WithARPResponder(r ARPResponder) DeviceOption {
	return func(d *Device) { d.responder = r }
}

// WithFrameSink attaches an external consumer for generator frames.
func WithFrameSink(s FrameSink) DeviceOption {
	return func(d *Device) { d.sink = s }
}

// NewDevice builds a simulated UOE with the given timing parameters.
func NewDevice(cfg Config, opts ...DeviceOption) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Device{
		cfg:   cfg,
		log:   zap.NewNop(),
		store: mem.NewStorage(storageSize),
		main:  regmap.MainBlock(),
		test:  regmap.TestBlock(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.arp.table = make(map[uint32]uint64)
	version := uint32(cfg.Version) | uint32(cfg.Revision)<<8 | uint32(cfg.Debug)<<16
	d.storeWrite32(MainBase+0x00, version)
	return d, nil
}

// Config returns the device's timing parameters.
func (d *Device) Config() Config { return d.cfg }

// Cycle returns the current device clock cycle.
func (d *Device) Cycle() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cycle
}

func (d *Device) storeRead32(off uint32) uint32 {
	data, err := d.store.Read(uint64(off), 4)
	if err != nil {
		panic(fmt.Sprintf("hw: storage read at 0x%X: %v", off, err))
	}
	return binary.LittleEndian.Uint32(data)
}

func (d *Device) storeWrite32(off uint32, v uint32) {
	var data [4]byte
	binary.LittleEndian.PutUint32(data[:], v)
	if err := d.store.Write(uint64(off), data[:]); err != nil {
		panic(fmt.Sprintf("hw: storage write at 0x%X: %v", off, err))
	}
}

func (d *Device) storeRead64(lsbOff, msbOff uint32) uint64 {
	return uint64(d.storeRead32(msbOff))<<32 | uint64(d.storeRead32(lsbOff))
}

// locate maps a bus offset to its block, base and register.
func (d *Device) locate(off uint32) (*regmap.Block, uint32, regmap.Reg, error) {
	for _, cand := range []struct {
		base  uint32
		block *regmap.Block
	}{
		{MainBase, d.main},
		{TestBase, d.test},
	} {
		if off >= cand.base && off < cand.base+cand.block.Size() {
			r, ok := cand.block.RegAt(off - cand.base)
			if !ok {
				break
			}
			return cand.block, cand.base, r, nil
		}
	}
	return nil, 0, regmap.Reg{}, fmt.Errorf("hw: bus error: no register at 0x%X", off)
}

// Read32 implements driver.Bus.
func (d *Device) Read32(off uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	block, _, r, err := d.locate(off)
	if err != nil {
		return 0, err
	}
	switch {
	case r.Name == "interrupt_status":
		if block == d.main {
			return d.statusMain, nil
		}
		return d.statusTest, nil
	case r.Name == "interrupt_clear" || r.Name == "interrupt_set":
		// Write-only-effective; reads return zero.
		return 0, nil
	case block == d.test:
		if v, ok := d.meterRead(r.Name); ok {
			return v, nil
		}
	}
	return d.storeRead32(off), nil
}

// Write32 implements driver.Bus. Access modes are enforced here the
// way the silicon enforces them: RO bits keep their value, WT bits
// fire and stay zero, the status word is unreachable.
func (d *Device) Write32(off uint32, v uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	block, _, r, err := d.locate(off)
	if err != nil {
		return err
	}
	switch r.Name {
	case "interrupt_status":
		return nil // hardware-driven, software writes ignored
	case "interrupt_clear":
		d.applyClear(block, v)
		return nil
	case "interrupt_set":
		d.applySet(block, v)
		return nil
	}

	stored := d.storeRead32(off)
	next := stored
	var triggers []regmap.Field
	for _, f := range r.Fields {
		switch f.Access {
		case regmap.RW:
			next = regmap.InsertTrunc(next, f, regmap.Extract(v, f))
		case regmap.WT:
			if regmap.Extract(v, f) != 0 {
				triggers = append(triggers, f)
			}
		default:
			// RO and reserved bits keep their stored value.
		}
	}
	d.storeWrite32(off, next)
	for _, f := range triggers {
		d.fire(block, r, f, v)
	}
	if block == d.main && r.Name == "config_done" {
		if stored&1 == 0 && next&1 == 1 {
			d.raiseMain("init_done")
		}
	}
	return nil
}

func sourceMask(bank regmap.IRQBank) uint32 {
	var m uint32
	for _, s := range bank.Sources {
		m |= 1 << s.Bit
	}
	return m
}

func (d *Device) applyClear(block *regmap.Block, v uint32) {
	if block == d.main {
		d.statusMain &^= v & sourceMask(regmap.MainIRQBank)
	} else {
		d.statusTest &^= v & sourceMask(regmap.TestIRQBank)
	}
}

func (d *Device) applySet(block *regmap.Block, v uint32) {
	if block == d.main {
		d.statusMain |= v & sourceMask(regmap.MainIRQBank)
	} else {
		d.statusTest |= v & sourceMask(regmap.TestIRQBank)
	}
}

func (d *Device) raiseMain(src string) {
	s, ok := regmap.MainIRQBank.Source(src)
	if !ok {
		panic("hw: unknown main irq source " + src)
	}
	d.statusMain |= 1 << s.Bit
	d.log.Debug("main irq raised", zap.String("source", src))
}

func (d *Device) raiseTest(src string) {
	s, ok := regmap.TestIRQBank.Source(src)
	if !ok {
		panic("hw: unknown test irq source " + src)
	}
	d.statusTest |= 1 << s.Bit
	d.log.Debug("test irq raised", zap.String("source", src))
}

// fire dispatches a write-triggered field.
func (d *Device) fire(block *regmap.Block, r regmap.Reg, f regmap.Field, raw uint32) {
	if block == d.main {
		switch r.Name + "." + f.Name {
		case "arp_configuration.arp_gratuitous_req":
			d.arp.gratuitous(d)
		case "arp_configuration.arp_table_clear":
			d.arp.tableClear(d)
		case "arp_sw_req.arp_sw_req_dest_ip_addr":
			d.arp.request(d, raw)
		}
		return
	}
	switch r.Name + "." + f.Name {
	case "gen_chk_control.gen_start":
		d.gen.start(d)
	case "gen_chk_control.gen_stop":
		d.gen.stop(d)
	case "gen_chk_control.chk_start":
		d.chk.start(d)
	case "gen_chk_control.chk_stop":
		d.chk.stop(d)
	case "tx_rate_meter_ctrl.tx_rm_init_counter":
		d.tx.init()
	case "rx_rate_meter_ctrl.rx_rm_init_counter":
		d.rx.init()
	}
}

// Tick advances the device clock by n cycles.
func (d *Device) Tick(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.cycle++
		d.tx.tick(d, dirTx)
		d.rx.tick(d, dirRx)
		d.arp.tick(d)
		d.gen.tick(d)
		d.chk.tick(d)
	}
}

// TickEvery runs the device clock in the background, one cycle per
// period, until the returned stop function is called.
func (d *Device) TickEvery(period time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				d.Tick(1)
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// field reads a named config field from backing storage.
func (d *Device) field(block *regmap.Block, base uint32, reg, field string) uint32 {
	r, f, ok := block.Field(reg, field)
	if !ok {
		panic(fmt.Sprintf("hw: no field %s.%s", reg, field))
	}
	return regmap.Extract(d.storeRead32(base+r.Offset), f)
}

func (d *Device) mainField(reg, field string) uint32 {
	return d.field(d.main, MainBase, reg, field)
}

func (d *Device) testField(reg, field string) uint32 {
	return d.field(d.test, TestBase, reg, field)
}

func (d *Device) testOffset(reg string) uint32 {
	r, ok := d.test.Reg(reg)
	if !ok {
		panic("hw: no test register " + reg)
	}
	return TestBase + r.Offset
}

// DropKind selects one of the main block's monitoring counters.
type DropKind int

// Monitoring counters.
const (
	DropCRCFilter DropKind = iota
	DropMACFilter
	DropExt
	DropRaw
	DropUDP
)

var dropRegs = map[DropKind]string{
	DropCRCFilter: "monitoring_crc_filter",
	DropMACFilter: "monitoring_mac_filter",
	DropExt:       "monitoring_ext_drop",
	DropRaw:       "monitoring_raw_drop",
	DropUDP:       "monitoring_udp_drop",
}

// InjectDrop increments a monitoring counter, as the datapath would on
// a filtered or dropped frame.
func (d *Device) InjectDrop(kind DropKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bumpDrop(kind)
}

func (d *Device) bumpDrop(kind DropKind) {
	r, ok := d.main.Reg(dropRegs[kind])
	if !ok {
		panic("hw: unknown drop counter")
	}
	off := uint32(MainBase) + r.Offset
	d.storeWrite32(off, d.storeRead32(off)+1)
}

// IRQLines reports the two external interrupt lines: the OR of each
// block's enabled pending sources.
func (d *Device) IRQLines() (mainLine, testLine bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mainEn := d.storeRead32(MainBase + mustOffset(d.main, "interrupt_enable"))
	testEn := d.storeRead32(TestBase + mustOffset(d.test, "interrupt_enable"))
	return d.statusMain&mainEn != 0, d.statusTest&testEn != 0
}

func mustOffset(b *regmap.Block, reg string) uint32 {
	r, ok := b.Reg(reg)
	if !ok {
		panic("hw: no register " + reg)
	}
	return r.Offset
}

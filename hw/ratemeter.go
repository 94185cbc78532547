package hw

// Rate meter directions; also the prefix of the related interrupt
// sources and expected-byte registers.
const (
	dirTx = "tx"
	dirRx = "rx"
)

// rateMeter is one direction's byte/cycle accumulator pair. Armed by
// the init pulse; counts until the next init. On overflow the counter
// keeps running but the overflow interrupt marks the reading as
// unreliable.
type rateMeter struct {
	armed  bool
	bytes  uint64
	cycles uint64

	doneRaised bool
}

func (m *rateMeter) init() {
	m.armed = true
	m.bytes = 0
	m.cycles = 0
	m.doneRaised = false
}

func (m *rateMeter) tick(d *Device, dir string) {
	if !m.armed {
		return
	}
	m.cycles++
	if m.cycles == 0 {
		d.raiseTest("rate_meter_" + dir + "_overflow")
	}
}

func (m *rateMeter) addBytes(d *Device, dir string, n uint64) {
	if !m.armed {
		return
	}
	prev := m.bytes
	m.bytes += n
	if m.bytes < prev {
		d.raiseTest("rate_meter_" + dir + "_overflow")
	}
	expt := d.storeRead64(
		d.testOffset(dir+"_rm_bytes_expt_lsb"),
		d.testOffset(dir+"_rm_bytes_expt_msb"),
	)
	if expt > 0 && !m.doneRaised && m.bytes >= expt {
		m.doneRaised = true
		d.raiseTest("rate_meter_" + dir + "_done")
	}
}

// meterRead serves the read-only counter registers from the live
// accumulators. Returns ok=false for registers the meters do not own.
func (d *Device) meterRead(reg string) (uint32, bool) {
	switch reg {
	case "tx_rm_cnt_bytes_lsb":
		return uint32(d.tx.bytes), true
	case "tx_rm_cnt_bytes_msb":
		return uint32(d.tx.bytes >> 32), true
	case "tx_rm_cnt_cycles_lsb":
		return uint32(d.tx.cycles), true
	case "tx_rm_cnt_cycles_msb":
		return uint32(d.tx.cycles >> 32), true
	case "rx_rm_cnt_bytes_lsb":
		return uint32(d.rx.bytes), true
	case "rx_rm_cnt_bytes_msb":
		return uint32(d.rx.bytes >> 32), true
	case "rx_rm_cnt_cycles_lsb":
		return uint32(d.rx.cycles), true
	case "rx_rm_cnt_cycles_msb":
		return uint32(d.rx.cycles >> 32), true
	}
	return 0, false
}

package driver

// RateMeter reads one direction's byte/cycle counter pair. The
// accumulators are monotonically increasing 64-bit values exposed as
// lsb/msb register pairs; reads go through the msb-lsb-msb recheck in
// BlockClient.read64 because the two words cannot be sampled
// atomically.
type RateMeter struct {
	c *BlockClient
	q *IRQ

	ctrlReg   string
	initField string
	exptLSB   string
	exptMSB   string
	bytesLSB  string
	bytesMSB  string
	cyclesLSB string
	cyclesMSB string
	doneSrc   string
	ovfSrc    string
}

// TxMeter returns the transmit-direction rate meter.
func (d *Driver) TxMeter() *RateMeter {
	return &RateMeter{
		c:         d.test,
		q:         d.testIRQ,
		ctrlReg:   "tx_rate_meter_ctrl",
		initField: "tx_rm_init_counter",
		exptLSB:   "tx_rm_bytes_expt_lsb",
		exptMSB:   "tx_rm_bytes_expt_msb",
		bytesLSB:  "tx_rm_cnt_bytes_lsb",
		bytesMSB:  "tx_rm_cnt_bytes_msb",
		cyclesLSB: "tx_rm_cnt_cycles_lsb",
		cyclesMSB: "tx_rm_cnt_cycles_msb",
		doneSrc:   "rate_meter_tx_done",
		ovfSrc:    "rate_meter_tx_overflow",
	}
}

// RxMeter returns the receive-direction rate meter.
func (d *Driver) RxMeter() *RateMeter {
	return &RateMeter{
		c:         d.test,
		q:         d.testIRQ,
		ctrlReg:   "rx_rate_meter_ctrl",
		initField: "rx_rm_init_counter",
		exptLSB:   "rx_rm_bytes_expt_lsb",
		exptMSB:   "rx_rm_bytes_expt_msb",
		bytesLSB:  "rx_rm_cnt_bytes_lsb",
		bytesMSB:  "rx_rm_cnt_bytes_msb",
		cyclesLSB: "rx_rm_cnt_cycles_lsb",
		cyclesMSB: "rx_rm_cnt_cycles_msb",
		doneSrc:   "rate_meter_rx_done",
		ovfSrc:    "rate_meter_rx_overflow",
	}
}

// Init pulses the init counter: both accumulators reset to zero and
// counting starts.
func (m *RateMeter) Init() error {
	return m.c.Pulse(m.ctrlReg, m.initField)
}

// SetExpectedBytes arms the done interrupt at the given byte count.
func (m *RateMeter) SetExpectedBytes(n uint64) error {
	return m.c.write64(m.exptLSB, m.exptMSB, n)
}

// Bytes reads the byte accumulator.
func (m *RateMeter) Bytes() (uint64, error) {
	return m.c.read64(m.bytesLSB, m.bytesMSB)
}

// Cycles reads the cycle accumulator.
func (m *RateMeter) Cycles() (uint64, error) {
	return m.c.read64(m.cyclesLSB, m.cyclesMSB)
}

// Done reports whether the expected byte count was reached.
func (m *RateMeter) Done() (bool, error) {
	return m.q.Pending(m.doneSrc)
}

// Overflowed reports a counter wrap. The accumulator keeps counting
// but its reading is unreliable until the next Init; recoverable, not
// fatal.
func (m *RateMeter) Overflowed() (bool, error) {
	return m.q.Pending(m.ovfSrc)
}

package regmap

// Test engine interrupt sources, in hardware bit order.
var TestIRQSources = []IRQSource{
	{Name: "gen_done", Bit: 0},
	{Name: "gen_err_timeout", Bit: 1},
	{Name: "chk_done", Bit: 2},
	{Name: "chk_err_frame_size", Bit: 3},
	{Name: "chk_err_data", Bit: 4},
	{Name: "chk_err_timeout", Bit: 5},
	{Name: "rate_meter_tx_done", Bit: 6},
	{Name: "rate_meter_tx_overflow", Bit: 7},
	{Name: "rate_meter_rx_done", Bit: 8},
	{Name: "rate_meter_rx_overflow", Bit: 9},
}

// TestIRQBank describes the test block's four interrupt registers.
var TestIRQBank = IRQBank{
	Status:  "interrupt_status",
	Enable:  "interrupt_enable",
	Clear:   "interrupt_clear",
	Set:     "interrupt_set",
	Sources: TestIRQSources,
}

var testBlock = NewBlock("test", []Reg{
	{Name: "gen_chk_control", Offset: 0x00, Fields: []Field{
		{Name: "loopback_mac_en", Offset: 0, Width: 1, Access: RW},
		{Name: "loopback_udp_en", Offset: 1, Width: 1, Access: RW},
		{Name: "gen_start", Offset: 2, Width: 1, Access: WT},
		{Name: "gen_stop", Offset: 3, Width: 1, Access: WT},
		{Name: "chk_start", Offset: 4, Width: 1, Access: WT},
		{Name: "chk_stop", Offset: 5, Width: 1, Access: WT},
		reserved(6, 26),
	}},
	engineConfig("gen_config", 0x04, "gen"),
	word("gen_nb_bytes_lsb", 0x08, RW),
	word("gen_nb_bytes_msb", 0x0C, RW),
	word("gen_test_duration_lsb", 0x10, RW),
	word("gen_test_duration_msb", 0x14, RW),
	engineConfig("chk_config", 0x18, "chk"),
	word("chk_nb_bytes_lsb", 0x1C, RW),
	word("chk_nb_bytes_msb", 0x20, RW),
	word("chk_test_duration_lsb", 0x24, RW),
	word("chk_test_duration_msb", 0x28, RW),
	{Name: "lb_gen_udp_port", Offset: 0x2C, Fields: []Field{
		{Name: "lb_gen_dest_port", Offset: 0, Width: 16, Access: RW},
		{Name: "lb_gen_src_port", Offset: 16, Width: 16, Access: RW},
	}},
	word("lb_gen_dest_ip_addr", 0x30, RW),
	{Name: "chk_udp_port", Offset: 0x34, Fields: []Field{
		{Name: "chk_listening_port", Offset: 0, Width: 16, Access: RW},
		reserved(16, 16),
	}},
	irqReg("interrupt_status", 0x38, RO, TestIRQSources),
	irqReg("interrupt_enable", 0x3C, RW, TestIRQSources),
	irqReg("interrupt_clear", 0x40, W1C, TestIRQSources),
	irqReg("interrupt_set", 0x44, W1S, TestIRQSources),
	{Name: "tx_rate_meter_ctrl", Offset: 0x48, Fields: []Field{
		{Name: "tx_rm_init_counter", Offset: 0, Width: 1, Access: WT},
		reserved(1, 31),
	}},
	word("tx_rm_bytes_expt_lsb", 0x4C, RW),
	word("tx_rm_bytes_expt_msb", 0x50, RW),
	word("tx_rm_cnt_bytes_lsb", 0x54, RO),
	word("tx_rm_cnt_bytes_msb", 0x58, RO),
	word("tx_rm_cnt_cycles_lsb", 0x5C, RO),
	word("tx_rm_cnt_cycles_msb", 0x60, RO),
	{Name: "rx_rate_meter_ctrl", Offset: 0x64, Fields: []Field{
		{Name: "rx_rm_init_counter", Offset: 0, Width: 1, Access: WT},
		reserved(1, 31),
	}},
	word("rx_rm_bytes_expt_lsb", 0x68, RW),
	word("rx_rm_bytes_expt_msb", 0x6C, RW),
	word("rx_rm_cnt_bytes_lsb", 0x70, RO),
	word("rx_rm_cnt_bytes_msb", 0x74, RO),
	word("rx_rm_cnt_cycles_lsb", 0x78, RO),
	word("rx_rm_cnt_cycles_msb", 0x7C, RO),
})

// TestBlock returns the built-in test register block layout.
func TestBlock() *Block { return testBlock }

// word builds a register holding a single full-width field of the same
// name, the common shape of address and split-64 counter registers.
func word(name string, offset uint32, access Access) Reg {
	return Reg{Name: name, Offset: offset, Fields: []Field{
		{Name: name, Offset: 0, Width: 32, Access: access},
	}}
}

// engineConfig is the shared generator/checker config word. The C header
// draws this register with a 16-bit pad after the mode bit, which cannot
// fit in one 32-bit word; the layout below matches the value the KCU105
// reference design actually programs (size at bit 8, rate at bit 24).
func engineConfig(name string, offset uint32, prefix string) Reg {
	return Reg{Name: name, Offset: offset, Fields: []Field{
		{Name: prefix + "_frame_size_type", Offset: 0, Width: 1, Access: RW},
		reserved(1, 7),
		{Name: prefix + "_frame_size_static", Offset: 8, Width: 16, Access: RW},
		{Name: prefix + "_rate_limitation", Offset: 24, Width: 8, Access: RW},
	}}
}

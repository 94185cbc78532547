package regmap

// ARPFilter selects which incoming ARP frames the engine accepts
// (reg_arp_configuration.arp_rx_target_ip_filter).
type ARPFilter uint8

// ARP receive filter modes.
const (
	// ARPFilterUnicast accepts frames targeting the local IP only.
	ARPFilterUnicast ARPFilter = 0
	// ARPFilterBroadcastUnicast also accepts broadcast requests.
	ARPFilterBroadcastUnicast ARPFilter = 1
	// ARPFilterNone accepts every ARP frame.
	ARPFilterNone ARPFilter = 2
	// ARPFilterStaticTable accepts only senders already in the table.
	ARPFilterStaticTable ARPFilter = 3
)

// Main engine interrupt sources, in hardware bit order.
var MainIRQSources = []IRQSource{
	{Name: "init_done", Bit: 0},
	{Name: "arp_table_clear_done", Bit: 1},
	{Name: "arp_ip_conflict", Bit: 2},
	{Name: "arp_mac_conflict", Bit: 3},
	{Name: "arp_error", Bit: 4},
	{Name: "arp_rx_fifo_overflow", Bit: 5},
	{Name: "router_data_rx_fifo_overflow", Bit: 6},
	{Name: "router_crc_rx_fifo_overflow", Bit: 7},
	{Name: "ipv4_rx_frag_offset_error", Bit: 8},
}

// MainIRQBank describes the main block's four interrupt registers.
var MainIRQBank = IRQBank{
	Status:  "interrupt_status",
	Enable:  "interrupt_enable",
	Clear:   "interrupt_clear",
	Set:     "interrupt_set",
	Sources: MainIRQSources,
}

var mainBlock = NewBlock("main", []Reg{
	{Name: "version", Offset: 0x00, Fields: []Field{
		{Name: "version", Offset: 0, Width: 8, Access: RO},
		{Name: "revision", Offset: 8, Width: 8, Access: RO},
		{Name: "debug", Offset: 16, Width: 16, Access: RO},
	}},
	{Name: "local_mac_addr_lsb", Offset: 0x04, Fields: []Field{
		{Name: "local_mac_addr_lsb", Offset: 0, Width: 32, Access: RW},
	}},
	{Name: "local_mac_addr_msb", Offset: 0x08, Fields: []Field{
		{Name: "local_mac_addr_msb", Offset: 0, Width: 16, Access: RW},
		reserved(16, 16),
	}},
	{Name: "local_ip_addr", Offset: 0x0C, Fields: []Field{
		{Name: "local_ip_addr", Offset: 0, Width: 32, Access: RW},
	}},
	{Name: "raw_dest_mac_addr_lsb", Offset: 0x10, Fields: []Field{
		{Name: "raw_dest_mac_addr_lsb", Offset: 0, Width: 32, Access: RW},
	}},
	{Name: "raw_dest_mac_addr_msb", Offset: 0x14, Fields: []Field{
		{Name: "raw_dest_mac_addr_msb", Offset: 0, Width: 16, Access: RW},
		reserved(16, 16),
	}},
	{Name: "ipv4_time_to_leave", Offset: 0x18, Fields: []Field{
		{Name: "ttl", Offset: 0, Width: 8, Access: RW},
		reserved(8, 24),
	}},
	{Name: "filtering_control", Offset: 0x1C, Fields: []Field{
		{Name: "broadcast_filter_enable", Offset: 0, Width: 1, Access: RW},
		{Name: "ipv4_multicast_filter_enable", Offset: 1, Width: 1, Access: RW},
		{Name: "unicast_filter_enable", Offset: 2, Width: 1, Access: RW},
		reserved(3, 29),
	}},
	multicastSlot(1, 0x20),
	multicastSlot(2, 0x24),
	multicastSlot(3, 0x28),
	multicastSlot(4, 0x2C),
	{Name: "arp_configuration", Offset: 0x30, Fields: []Field{
		{Name: "arp_timeout_ms", Offset: 0, Width: 12, Access: RW},
		{Name: "arp_tryings", Offset: 12, Width: 4, Access: RW},
		{Name: "arp_gratuitous_req", Offset: 16, Width: 1, Access: WT},
		{Name: "arp_rx_target_ip_filter", Offset: 17, Width: 2, Access: RW},
		{Name: "arp_rx_test_local_ip_conflict", Offset: 19, Width: 1, Access: RW},
		{Name: "arp_table_clear", Offset: 20, Width: 1, Access: WT},
		reserved(21, 11),
	}},
	{Name: "arp_sw_req", Offset: 0x34, Fields: []Field{
		{Name: "arp_sw_req_dest_ip_addr", Offset: 0, Width: 32, Access: WT},
	}},
	{Name: "config_done", Offset: 0x38, Fields: []Field{
		{Name: "config_done", Offset: 0, Width: 1, Access: RW},
		reserved(1, 31),
	}},
	{Name: "reserved_3c", Offset: 0x3C, Fields: []Field{reserved(0, 32)}},
	monitorReg("monitoring_crc_filter", 0x40, "crc_filter_counter"),
	monitorReg("monitoring_mac_filter", 0x44, "mac_filter_counter"),
	monitorReg("monitoring_ext_drop", 0x48, "ext_drop_counter"),
	monitorReg("monitoring_raw_drop", 0x4C, "raw_drop_counter"),
	monitorReg("monitoring_udp_drop", 0x50, "udp_drop_counter"),
	irqReg("interrupt_status", 0x54, RO, MainIRQSources),
	irqReg("interrupt_enable", 0x58, RW, MainIRQSources),
	irqReg("interrupt_clear", 0x5C, W1C, MainIRQSources),
	irqReg("interrupt_set", 0x60, W1S, MainIRQSources),
})

// MainBlock returns the main UOE register block layout.
func MainBlock() *Block { return mainBlock }

func multicastSlot(n int, offset uint32) Reg {
	name := "ipv4_multicast_ip_addr_" + string(rune('0'+n))
	return Reg{Name: name, Offset: offset, Fields: []Field{
		{Name: "multicast_ip_addr", Offset: 0, Width: 28, Access: RW},
		{Name: "multicast_ip_addr_enable", Offset: 28, Width: 1, Access: RW},
		reserved(29, 3),
	}}
}

func monitorReg(name string, offset uint32, field string) Reg {
	return Reg{Name: name, Offset: offset, Fields: []Field{
		{Name: field, Offset: 0, Width: 32, Access: RO},
	}}
}

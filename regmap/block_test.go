package regmap_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hwnet/uoesim/regmap"
)

var _ = Describe("Register Blocks", func() {
	blocks := []*regmap.Block{regmap.MainBlock(), regmap.TestBlock()}

	It("should validate both layouts", func() {
		for _, b := range blocks {
			Expect(b.Validate()).To(Succeed())
		}
	})

	It("should place the main registers at their hardware offsets", func() {
		b := regmap.MainBlock()
		for name, offset := range map[string]uint32{
			"version":           0x00,
			"local_mac_addr_lsb": 0x04,
			"local_ip_addr":     0x0C,
			"arp_configuration": 0x30,
			"arp_sw_req":        0x34,
			"config_done":       0x38,
			"interrupt_status":  0x54,
			"interrupt_enable":  0x58,
			"interrupt_clear":   0x5C,
			"interrupt_set":     0x60,
		} {
			r, ok := b.Reg(name)
			Expect(ok).To(BeTrue(), name)
			Expect(r.Offset).To(Equal(offset), name)
		}
		Expect(b.Size()).To(Equal(uint32(0x64)))
	})

	It("should place the test registers at their hardware offsets", func() {
		b := regmap.TestBlock()
		for name, offset := range map[string]uint32{
			"gen_chk_control":     0x00,
			"gen_config":          0x04,
			"chk_config":          0x18,
			"lb_gen_udp_port":     0x2C,
			"lb_gen_dest_ip_addr": 0x30,
			"interrupt_status":    0x38,
			"tx_rate_meter_ctrl":  0x48,
			"rx_rm_cnt_cycles_msb": 0x7C,
		} {
			r, ok := b.Reg(name)
			Expect(ok).To(BeTrue(), name)
			Expect(r.Offset).To(Equal(offset), name)
		}
		Expect(b.Size()).To(Equal(uint32(0x80)))
	})

	It("should round-trip every named field of both blocks", func() {
		for _, b := range blocks {
			for _, r := range b.Regs {
				for _, f := range r.Fields {
					if f.Name == "" {
						continue // reserved padding
					}
					for _, v := range []uint32{0, 1, f.Max(), f.Max() / 2} {
						raw, err := regmap.Insert(0xFFFFFFFF, f, v)
						Expect(err).NotTo(HaveOccurred())
						Expect(regmap.Extract(raw, f)).To(Equal(v),
							"%s/%s/%s v=%d", b.Name, r.Name, f.Name, v)
						Expect(raw &^ f.Mask()).To(Equal(0xFFFFFFFF &^ f.Mask()))
					}
				}
			}
		}
	})

	It("should keep irq source bits aligned across the four registers", func() {
		Expect(regmap.MainIRQBank.Validate(regmap.MainBlock())).To(Succeed())
		Expect(regmap.TestIRQBank.Validate(regmap.TestBlock())).To(Succeed())
	})

	It("should expose the documented arp configuration packing", func() {
		b := regmap.MainBlock()
		_, timeout, ok := b.Field("arp_configuration", "arp_timeout_ms")
		Expect(ok).To(BeTrue())
		Expect(timeout.Offset).To(Equal(uint8(0)))
		Expect(timeout.Width).To(Equal(uint8(12)))

		_, tryings, ok := b.Field("arp_configuration", "arp_tryings")
		Expect(ok).To(BeTrue())
		Expect(tryings.Offset).To(Equal(uint8(12)))

		_, filter, ok := b.Field("arp_configuration", "arp_rx_target_ip_filter")
		Expect(ok).To(BeTrue())
		Expect(filter.Offset).To(Equal(uint8(17)))
		Expect(filter.Width).To(Equal(uint8(2)))

		// 2 ms timeout, 3 tryings, unicast filter, as the testbench packs it.
		raw := uint32(0)
		raw = regmap.InsertTrunc(raw, timeout, 2)
		raw = regmap.InsertTrunc(raw, tryings, 3)
		Expect(raw).To(Equal(uint32(0x3002)))
	})

	It("should pack the reference gen_config value", func() {
		b := regmap.TestBlock()
		_, size, ok := b.Field("gen_config", "gen_frame_size_static")
		Expect(ok).To(BeTrue())
		_, rate, ok := b.Field("gen_config", "gen_rate_limitation")
		Expect(ok).To(BeTrue())

		raw := uint32(0)
		raw = regmap.InsertTrunc(raw, size, 1024)
		raw = regmap.InsertTrunc(raw, rate, 0xFF)
		Expect(raw).To(Equal(uint32(0xFF040000)))
	})
})

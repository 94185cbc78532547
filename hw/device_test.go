package hw_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hwnet/uoesim/driver"
	"github.com/hwnet/uoesim/hw"
)

// testConfig runs the model at one cycle per millisecond of register
// time, so arp_timeout_ms values translate to single-digit tick counts.
func testConfig() hw.Config {
	return hw.Config{
		FreqMHz:               0.001,
		ARPReplyLatencyCycles: 1,
		GenTimeoutCycles:      5,
		ChkTimeoutCycles:      50,
		Version:               1,
		Revision:              2,
		Debug:                 0xBEEF,
	}
}

func shortCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}

var _ = Describe("Device register access", func() {
	var (
		dev *hw.Device
		d   *driver.Driver
	)

	BeforeEach(func() {
		var err error
		dev, err = hw.NewDevice(testConfig())
		Expect(err).NotTo(HaveOccurred())
		d = driver.New(dev)
	})

	It("should expose the version word", func() {
		v, err := d.ReadVersion()
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(driver.Version{Version: 1, Revision: 2, Debug: 0xBEEF}))
	})

	It("should ignore writes to read-only fields", func() {
		Expect(dev.Write32(hw.MainBase+0x00, 0xFFFFFFFF)).To(Succeed())
		v, err := d.ReadVersion()
		Expect(err).NotTo(HaveOccurred())
		Expect(v.Version).To(Equal(uint8(1)))
	})

	It("should fail on addresses outside both blocks", func() {
		_, err := dev.Read32(0x1F00)
		Expect(err).To(HaveOccurred())
		Expect(dev.Write32(0x1F00, 1)).NotTo(Succeed())
	})

	It("should raise init_done when configuration completes", func() {
		Expect(d.Configure(driver.NetConfig{
			MAC: 0x000A35033EF1,
			IP:  0xC0A80169,
			TTL: 64,
		})).To(Succeed())

		ctx, cancel := shortCtx()
		defer cancel()
		Expect(d.WaitReady(ctx)).To(Succeed())

		pending, err := d.MainIRQ().Pending("init_done")
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeFalse(), "acknowledged after WaitReady")
	})

	It("should count injected drops in the monitoring registers", func() {
		dev.InjectDrop(hw.DropUDP)
		dev.InjectDrop(hw.DropUDP)
		dev.InjectDrop(hw.DropCRCFilter)
		dc, err := d.ReadDropCounters()
		Expect(err).NotTo(HaveOccurred())
		Expect(dc.UDPDrop).To(Equal(uint32(2)))
		Expect(dc.CRCFilter).To(Equal(uint32(1)))
	})
})

var _ = Describe("Interrupt aggregation", func() {
	var (
		dev *hw.Device
		d   *driver.Driver
	)

	BeforeEach(func() {
		var err error
		dev, err = hw.NewDevice(testConfig())
		Expect(err).NotTo(HaveOccurred())
		d = driver.New(dev)
	})

	It("should assert after force and deassert after clear", func() {
		Expect(d.MainIRQ().Force("arp_error")).To(Succeed())
		Expect(d.MainIRQ().Pending("arp_error")).To(BeTrue())

		Expect(d.MainIRQ().Clear("arp_error")).To(Succeed())
		Expect(d.MainIRQ().Pending("arp_error")).To(BeFalse())
	})

	It("should treat clearing a quiet source as a no-op", func() {
		Expect(d.TestIRQ().Clear("chk_done")).To(Succeed())
		Expect(d.TestIRQ().Pending("chk_done")).To(BeFalse())
	})

	It("should keep enable separate from pending", func() {
		Expect(d.MainIRQ().Force("arp_ip_conflict")).To(Succeed())
		Expect(d.MainIRQ().SetEnabled("arp_ip_conflict", false)).To(Succeed())
		Expect(d.MainIRQ().Pending("arp_ip_conflict")).To(BeTrue(),
			"enable gates the line, not the status bit")
	})

	It("should gate the external line on the enable bit", func() {
		Expect(d.MainIRQ().Force("arp_error")).To(Succeed())
		mainLine, _ := dev.IRQLines()
		Expect(mainLine).To(BeFalse())

		Expect(d.MainIRQ().SetEnabled("arp_error", true)).To(Succeed())
		mainLine, _ = dev.IRQLines()
		Expect(mainLine).To(BeTrue())
	})

	It("should keep the two blocks' banks independent", func() {
		Expect(d.MainIRQ().Force("init_done")).To(Succeed())
		Expect(d.TestIRQ().Pending("gen_done")).To(BeFalse())

		Expect(d.TestIRQ().Force("gen_done")).To(Succeed())
		Expect(d.MainIRQ().Clear("init_done")).To(Succeed())
		Expect(d.TestIRQ().Pending("gen_done")).To(BeTrue())
	})

	It("should ignore direct writes to the status register", func() {
		Expect(dev.Write32(hw.MainBase+0x54, 0xFFFFFFFF)).To(Succeed())
		raw, err := d.MainIRQ().PendingAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(BeZero())
	})

	It("should wait for a source under a context deadline", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		err := d.MainIRQ().Wait(ctx, "arp_error")
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})
})

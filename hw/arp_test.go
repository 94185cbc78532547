package hw_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hwnet/uoesim/driver"
	"github.com/hwnet/uoesim/hw"
	"github.com/hwnet/uoesim/regmap"
)

const (
	localIP  = uint32(0xC0A80169)
	targetIP = uint32(0xC0A80105)
	peerMAC  = uint64(0x2122_2324_2526)
)

var _ = Describe("ARP engine", func() {
	var (
		dev *hw.Device
		d   *driver.Driver
	)

	setup := func(responder hw.ARPResponder) {
		var err error
		opts := []hw.DeviceOption{}
		if responder != nil {
			opts = append(opts, hw.WithARPResponder(responder))
		}
		dev, err = hw.NewDevice(testConfig(), opts...)
		Expect(err).NotTo(HaveOccurred())
		d = driver.New(dev)
		Expect(d.Configure(driver.NetConfig{MAC: 0x000A35033EF1, IP: localIP})).To(Succeed())
		Expect(d.MainIRQ().Clear("init_done")).To(Succeed())
	}

	Context("with no responder", func() {
		BeforeEach(func() { setup(nil) })

		It("should exhaust the retry budget and raise arp_error", func() {
			Expect(d.SetARPConfig(driver.ARPConfig{TimeoutMS: 2, Tryings: 3})).To(Succeed())
			Expect(d.RequestResolve(targetIP)).To(Succeed())

			// 4 attempts of 2 cycles each.
			dev.Tick(12)

			Expect(d.CheckARP()).To(MatchError(driver.ErrARPTimeout))
			Expect(d.CheckARP()).To(Succeed(), "bit acknowledged on translation")

			_, known := dev.ResolvedMAC(targetIP)
			Expect(known).To(BeFalse())
		})

		It("should not raise before the budget is spent", func() {
			Expect(d.SetARPConfig(driver.ARPConfig{TimeoutMS: 2, Tryings: 3})).To(Succeed())
			Expect(d.RequestResolve(targetIP)).To(Succeed())

			dev.Tick(5) // mid second attempt
			Expect(d.CheckARP()).To(Succeed())
		})
	})

	Context("with a responder that answers the second attempt", func() {
		BeforeEach(func() {
			setup(hw.ARPResponderFunc(func(ip uint32, attempt int) (uint64, bool) {
				if ip == targetIP && attempt == 2 {
					return peerMAC, true
				}
				return 0, false
			}))
		})

		It("should resolve without a timeout interrupt", func() {
			Expect(d.SetARPConfig(driver.ARPConfig{TimeoutMS: 3, Tryings: 3})).To(Succeed())
			Expect(d.RequestResolve(targetIP)).To(Succeed())

			dev.Tick(10)

			Expect(d.CheckARP()).To(Succeed())
			mac, known := dev.ResolvedMAC(targetIP)
			Expect(known).To(BeTrue())
			Expect(mac).To(Equal(peerMAC))
		})

		It("should answer a repeat request from the table without traffic", func() {
			Expect(d.SetARPConfig(driver.ARPConfig{TimeoutMS: 3, Tryings: 3})).To(Succeed())
			Expect(d.RequestResolve(targetIP)).To(Succeed())
			dev.Tick(10)

			Expect(d.RequestResolve(targetIP)).To(Succeed())
			dev.Tick(20) // no retries happen, so no arp_error either
			Expect(d.CheckARP()).To(Succeed())
		})
	})

	Context("conflict detection", func() {
		BeforeEach(func() { setup(nil) })

		It("should flag a station claiming the local IP", func() {
			Expect(d.SetARPConfig(driver.ARPConfig{
				TimeoutMS: 2, Tryings: 1, TestLocalIPConflict: true,
			})).To(Succeed())

			dev.DeliverARP(localIP, peerMAC)
			Expect(d.CheckARP()).To(MatchError(driver.ErrARPIPConflict))
		})

		It("should ignore a local IP claim when the test is disarmed", func() {
			Expect(d.SetARPConfig(driver.ARPConfig{TimeoutMS: 2, Tryings: 1})).To(Succeed())
			dev.DeliverARP(localIP, peerMAC)
			Expect(d.CheckARP()).To(Succeed())
		})

		It("should flag a MAC change for a known IP", func() {
			Expect(d.SetARPConfig(driver.ARPConfig{TimeoutMS: 2, Tryings: 1})).To(Succeed())
			dev.DeliverARP(targetIP, peerMAC)
			dev.DeliverARP(targetIP, peerMAC+1)
			Expect(d.CheckARP()).To(MatchError(driver.ErrARPMACConflict))
		})

		It("should not learn from traffic in static table mode", func() {
			Expect(d.SetARPConfig(driver.ARPConfig{
				TimeoutMS: 2, Tryings: 1, Filter: regmap.ARPFilterStaticTable,
			})).To(Succeed())
			dev.DeliverARP(targetIP, peerMAC)
			_, known := dev.ResolvedMAC(targetIP)
			Expect(known).To(BeFalse())
		})
	})

	Context("table clear and gratuitous requests", func() {
		BeforeEach(func() { setup(nil) })

		It("should flush the table and signal completion", func() {
			dev.DeliverARP(targetIP, peerMAC)
			_, known := dev.ResolvedMAC(targetIP)
			Expect(known).To(BeTrue())

			ctx, cancel := shortCtx()
			defer cancel()
			Expect(d.ClearARPTable(ctx)).To(Succeed())

			_, known = dev.ResolvedMAC(targetIP)
			Expect(known).To(BeFalse())
			Expect(d.MainIRQ().Pending("arp_table_clear_done")).To(BeFalse())
		})

		It("should broadcast gratuitous announcements without waiting", func() {
			Expect(d.GratuitousRequest()).To(Succeed())
			Expect(d.GratuitousRequest()).To(Succeed())
			Expect(dev.GratuitousSent()).To(Equal(2))
			dev.Tick(20)
			Expect(d.CheckARP()).To(Succeed(), "no session, no timeout")
		})
	})
})

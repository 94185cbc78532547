package selftest_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hwnet/uoesim/driver"
	"github.com/hwnet/uoesim/hw"
	"github.com/hwnet/uoesim/selftest"
)

func simConfig() hw.Config {
	return hw.Config{
		FreqMHz:               0.001,
		ARPReplyLatencyCycles: 1,
		GenTimeoutCycles:      1000,
		ChkTimeoutCycles:      100000,
		Version:               1,
		Revision:              0,
		Debug:                 0,
	}
}

func runConfig() selftest.Config {
	return selftest.Config{
		FrameSize: 100,
		Bytes:     1000,
		Rate:      255,
		Port:      0xBEE7,
		Interval:  time.Millisecond,
	}
}

var _ = Describe("Built-in test runner", func() {
	var (
		dev  *hw.Device
		d    *driver.Driver
		r    *selftest.Runner
		stop func()
	)

	BeforeEach(func() {
		var err error
		dev, err = hw.NewDevice(simConfig())
		Expect(err).NotTo(HaveOccurred())
		d = driver.New(dev)
		r = selftest.NewRunner(d, selftest.WithConfig(runConfig()))
		stop = dev.TickEvery(50 * time.Microsecond)
	})

	AfterEach(func() {
		r.StopCBIT()
		stop()
	})

	It("should pass a power-on test over UDP loopback", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rep, err := r.RunPBIT(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Mode).To(Equal(selftest.PBIT))
		Expect(rep.Passed).To(BeTrue())
		Expect(rep.BytesSent).To(Equal(uint64(1000)))
		Expect(rep.BytesChecked).To(Equal(uint64(1000)))
		Expect(rep.Cycles).NotTo(BeZero())
		Expect(rep.TxThroughput).To(BeNumerically(">", 0))
	})

	It("should pass repeated initiated tests back to back", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		for i := 0; i < 3; i++ {
			rep, err := r.RunIBIT(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rep.Mode).To(Equal(selftest.IBIT))
			Expect(rep.Passed).To(BeTrue())
			Expect(rep.BytesSent).To(Equal(uint64(1000)))
		}
	})

	It("should give up cleanly when the context expires mid-run", func() {
		stop() // freeze the clock so the run can never complete
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		rep, err := r.RunPBIT(ctx)
		Expect(err).To(MatchError(context.Canceled))
		Expect(rep.Passed).To(BeFalse())
	})

	Describe("continuous mode", func() {
		It("should record reports in the background until stopped", func() {
			Expect(r.StartCBIT(context.Background())).To(Succeed())

			Eventually(func() bool {
				rep, ok := r.LastReport()
				return ok && rep.Passed && rep.Mode == selftest.CBIT
			}, 5*time.Second, 10*time.Millisecond).Should(BeTrue())

			r.StopCBIT()
			rep, ok := r.LastReport()
			Expect(ok).To(BeTrue())
			Expect(rep.BytesChecked).To(Equal(uint64(1000)))
		})

		It("should refuse a second start while running", func() {
			Expect(r.StartCBIT(context.Background())).To(Succeed())
			Expect(r.StartCBIT(context.Background())).To(MatchError(selftest.ErrAlreadyRunning))
			r.StopCBIT()
			Expect(r.StartCBIT(context.Background())).To(Succeed())
		})

		It("should tolerate StopCBIT with no loop running", func() {
			r.StopCBIT()
		})
	})
})

// failingBus forwards everything to the device except writes to one
// register, for exercising the transport error path.
type failingBus struct {
	inner   driver.Bus
	failOff uint32
}

var errInjected = errors.New("bus fault")

func (b *failingBus) Read32(off uint32) (uint32, error) {
	return b.inner.Read32(off)
}

func (b *failingBus) Write32(off uint32, v uint32) error {
	if off == b.failOff {
		return errInjected
	}
	return b.inner.Write32(off, v)
}

var _ = Describe("Transport failures", func() {
	It("should surface a bus fault from the run", func() {
		dev, err := hw.NewDevice(simConfig())
		Expect(err).NotTo(HaveOccurred())

		// gen_chk_control sits at the test block base; SetLoopback is
		// the first register touched by a run.
		bus := &failingBus{inner: dev, failOff: hw.TestBase}
		r := selftest.NewRunner(driver.New(bus), selftest.WithConfig(runConfig()))

		rep, err := r.RunPBIT(context.Background())
		Expect(err).To(MatchError(errInjected))
		Expect(rep.Passed).To(BeFalse())
		Expect(rep.Err).To(MatchError(errInjected))
	})
})

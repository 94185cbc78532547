// Package main provides the entry point for uoectl.
// uoectl brings up a simulated UDP Offload Engine, runs a built-in
// test over loopback and reports the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hwnet/uoesim/driver"
	"github.com/hwnet/uoesim/hw"
	"github.com/hwnet/uoesim/selftest"
)

var (
	configPath = flag.String("config", "", "Path to device timing configuration JSON file")
	mode       = flag.String("mode", "pbit", "Built-in test mode: pbit or ibit")
	bytesFlag  = flag.Uint64("bytes", 1<<20, "Byte target of the test run")
	frameSize  = flag.Uint("frame-size", 1024, "Static frame size of the test traffic")
	timeout    = flag.Duration("timeout", 30*time.Second, "Overall run deadline")
	tickPeriod = flag.Duration("tick", 10*time.Microsecond, "Wall-clock period of one device cycle")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := hw.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = hw.LoadConfig(*configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	log := zap.NewNop()
	if *verbose {
		var err error
		log, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer log.Sync()
	}

	dev, err := hw.NewDevice(cfg, hw.WithLogger(log))
	if err != nil {
		return fmt.Errorf("creating device: %w", err)
	}
	stop := dev.TickEvery(*tickPeriod)
	defer stop()

	d := driver.New(dev, driver.WithLogger(log))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := bringUp(ctx, d); err != nil {
		return fmt.Errorf("bring-up: %w", err)
	}

	runner := selftest.NewRunner(d,
		selftest.WithLogger(log),
		selftest.WithConfig(selftest.Config{
			FrameSize: uint16(*frameSize),
			Bytes:     *bytesFlag,
			Rate:      255,
			Port:      0xBEE7,
			Interval:  time.Second,
		}))

	var rep selftest.Report
	switch *mode {
	case "pbit":
		rep, err = runner.RunPBIT(ctx)
	case "ibit":
		rep, err = runner.RunIBIT(ctx)
	default:
		return fmt.Errorf("unknown mode %q (want pbit or ibit)", *mode)
	}
	printReport(rep)
	if err != nil {
		return err
	}

	return printDrops(d)
}

// bringUp configures the network identity and waits for init_done, the
// same order the reference bring-up script uses.
func bringUp(ctx context.Context, d *driver.Driver) error {
	v, err := d.ReadVersion()
	if err != nil {
		return err
	}
	if *verbose {
		fmt.Printf("UOE version %d.%d (debug 0x%04X)\n", v.Version, v.Revision, v.Debug)
	}

	if err := d.Configure(driver.NetConfig{
		MAC: 0x000A35033EF1,
		IP:  0xC0A80169,
		TTL: 64,
	}); err != nil {
		return err
	}
	return d.WaitReady(ctx)
}

func printReport(rep selftest.Report) {
	verdict := "FAIL"
	if rep.Passed {
		verdict = "PASS"
	}
	fmt.Printf("%s %s\n", rep.Mode, verdict)
	fmt.Printf("  bytes sent:    %d\n", rep.BytesSent)
	fmt.Printf("  bytes checked: %d\n", rep.BytesChecked)
	fmt.Printf("  cycles:        %d\n", rep.Cycles)
	fmt.Printf("  throughput:    %.3f bytes/cycle\n", rep.TxThroughput)
	if rep.Err != nil {
		fmt.Printf("  error:         %v\n", rep.Err)
	}
}

func printDrops(d *driver.Driver) error {
	dc, err := d.ReadDropCounters()
	if err != nil {
		return err
	}
	fmt.Printf("drops: crc=%d mac=%d ext=%d raw=%d udp=%d\n",
		dc.CRCFilter, dc.MACFilter, dc.ExtDrop, dc.RawDrop, dc.UDPDrop)
	return nil
}

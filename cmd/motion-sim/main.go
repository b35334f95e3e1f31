package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"cncmotion/config"
	"cncmotion/core"
	"cncmotion/hal"
	"cncmotion/host/serial"
)

var (
	configPath = flag.String("config", "", "Machine config (.json, .yaml), built-in 3 axis mill when empty")
	device     = flag.String("device", "", "Serial device streaming moves, stdin or the file argument when empty")
	baud       = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	useTUI     = flag.Bool("tui", false, "Show a live status view")
	useGPIO    = flag.Bool("gpio", false, "Also drive the configured Raspberry Pi pins, in real time")
	verbosity  = flag.Int("v", LevelInfo, "Log level 0-3")
	timing     = flag.Bool("timing", false, "Dump the motion event ring on exit (needs -v 3)")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [file]\n\n", os.Args[0])
	fmt.Fprintln(flag.CommandLine.Output(), "Input lines: \"x y z [feed]\", \"rapid x y z\" or \"dwell seconds\".")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	lvl := *verbosity
	if *useTUI {
		// the status view owns the terminal
		lvl = LevelOff
	}
	initLog(lvl, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	logInfo("machine: %s, %d axes, look-ahead %d, DSS up to %dx", cfg.Kinematics, len(cfg.Axes),
		cfg.Motion.PlannerBufferSize, 1<<cfg.Motion.DSSMaxOversampling)

	src, err := openInput()
	if err != nil {
		return err
	}
	defer src.Close()

	var gpio hal.StepOutput
	if *useGPIO {
		out, closeGPIO, err := openGPIO(cfg)
		if err != nil {
			return err
		}
		defer closeGPIO()
		gpio = out
	}

	s, err := newSession(cfg, gpio)
	if err != nil {
		return err
	}

	core.SetDebugWriter(timingWriter)
	core.SetDebugEnabled(*timing)

	if *useTUI {
		if src == os.Stdin {
			return errors.New("-tui needs -device or an input file")
		}
		err = runTUI(ctx, s, src)
	} else {
		err = runBatch(ctx, s, src)
	}

	if *timing {
		core.DumpTimingRing()
	}
	s.report(os.Stdout)
	return err
}

func openInput() (io.ReadCloser, error) {
	if *device != "" {
		cfg := serial.DefaultConfig(*device)
		cfg.Baud = *baud
		port, err := serial.Open(cfg)
		if err != nil {
			return nil, err
		}
		logInfo("reading moves from %s", *device)
		return port, nil
	}

	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		return f, nil
	}
	return os.Stdin, nil
}

// runBatch submits every input line, waiting in virtual time whenever the
// look-ahead queue is full, then drains the machine.
func runBatch(ctx context.Context, s *session, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		req, ok, err := s.parse(sc.Text())
		if err != nil {
			logError(err)
			continue
		}
		if !ok {
			continue
		}
		if err := s.submit(ctx, req); err != nil {
			if ctx.Err() != nil {
				return err
			}
			logError(err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	if err := s.ctl.Sync(ctx); err != nil {
		return err
	}
	logInfo("done after %v of machine time", s.elapsed())
	return nil
}

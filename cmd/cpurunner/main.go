package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/emu"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/interrupt"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
)

// Exit codes.
const (
	exitPass    = 0
	exitFail    = 1
	exitTimeout = 2
)

// writerFunc adapts a function to io.Writer
type writerFunc func(p []byte) (n int, err error)

func (f writerFunc) Write(p []byte) (n int, err error) { return f(p) }

// ring keeps the last n items appended.
type ring[T any] struct {
	items []T
	next  int
	fill  int
}

func newRing[T any](n int) *ring[T] { return &ring[T]{items: make([]T, max(n, 1))} }

func (r *ring[T]) push(v T) {
	r.items[r.next] = v
	r.next = (r.next + 1) % len(r.items)
	r.fill = min(r.fill+1, len(r.items))
}

// ordered returns the kept items oldest first.
func (r *ring[T]) ordered() []T {
	out := make([]T, 0, r.fill)
	start := (r.next - r.fill + len(r.items)) % len(r.items)
	for i := range r.fill {
		out = append(out, r.items[(start+i)%len(r.items)])
	}
	return out
}

type traceEntry struct {
	pc                     uint16
	op                     string
	cyc                    int
	a, f, b, c, d, e, h, l byte
	sp                     uint16
	ime                    bool
	ifreg, ie              byte
}

func (te traceEntry) String() string {
	return fmt.Sprintf("PC=%04X %-12s cyc=%d A=%02X F=%02X B=%02X C=%02X D=%02X E=%02X H=%02X L=%02X SP=%04X IME=%t IF=%02X IE=%02X",
		te.pc, te.op, te.cyc, te.a, te.f, te.b, te.c, te.d, te.e, te.h, te.l, te.sp, te.ime, te.ifreg, te.ie)
}

type runner struct {
	m      *emu.Machine
	serial bytes.Buffer
	recent *ring[byte]
	traces *ring[traceEntry]
	trace  bool
	keep   bool
	op     string
}

var (
	failRe  = regexp.MustCompile(`(?i)failed\s+(\d+)\s+tests?`)
	stageRe = regexp.MustCompile(`\b(\d{2}:\d{2})\b`)
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb)")
	bootPath := flag.String("bootrom", "", "optional DMG boot ROM to run from 0x0000 until FF50 disables it")
	steps := flag.Int("steps", 5_000_000, "max CPU steps to run")
	startPC := flag.Int("pc", 0x0100, "initial PC value when no boot ROM is used")
	trace := flag.Bool("trace", false, "print every instruction with registers")
	until := flag.String("until", "Passed", "stop when serial output contains this substring (case-insensitive); empty to disable")
	auto := flag.Bool("auto", false, "auto-detect 'Passed' or 'Failed N tests' in serial output and exit with code 0/1")
	timeout := flag.Duration("timeout", 0, "optional wall-clock timeout (e.g. 30s, 2m); 0 disables")
	traceOnFail := flag.Bool("traceOnFail", false, "when -auto detects failure, print a recent trace window (slows down)")
	traceWindow := flag.Int("traceWindow", 200, "number of recent instructions to include in 'traceOnFail' dump")
	serialWindow := flag.Int("serialWindow", 8192, "number of recent serial bytes to retain for diagnostics on fail")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg := log.DefaultConfig()
	if *debug {
		cfg.Level = log.DebugLevel
	}
	logger := log.NewWithConfig(cfg)

	if *romPath == "" {
		logger.Fatal("-rom is required")
	}
	rom, err := os.ReadFile(*romPath)
	if err != nil {
		logger.Fatal("reading ROM", log.Err(err))
	}
	var boot []byte
	if *bootPath != "" {
		if boot, err = os.ReadFile(*bootPath); err != nil {
			logger.Fatal("reading boot ROM", log.Err(err))
		}
	}

	r := &runner{
		recent: newRing[byte](max(*serialWindow, 256)),
		traces: newRing[traceEntry](*traceWindow),
		trace:  *trace,
		keep:   *traceOnFail,
	}
	out := io.MultiWriter(os.Stdout, &r.serial, writerFunc(func(p []byte) (int, error) {
		for _, ch := range p {
			r.recent.push(ch)
		}
		return len(p), nil
	}))

	r.m, err = emu.New(emu.Config{BootROM: boot, Serial: out, Logger: logger}, rom)
	if err != nil {
		logger.Fatal(err.Error())
	}
	if boot == nil {
		r.m.CPU().PC = uint16(*startPC)
	}
	if r.trace || r.keep {
		r.m.CPU().SetTrace(func(_, _ uint16, in cpu.Instruction) { r.op = in.Mnemonic })
	}

	ctx := app.Context()
	cancel := context.CancelFunc(func() {})
	if *timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeout)
	}
	code := r.run(ctx, *steps, *until, *auto)
	cancel()
	os.Exit(code)
}

func (r *runner) run(ctx context.Context, steps int, until string, auto bool) int {
	start := time.Now()
	var cycles int
	done := func(n int) {
		fmt.Printf("\nDone: steps=%d cycles~=%d elapsed=%s\n", n, cycles, time.Since(start).Truncate(time.Millisecond))
	}

	lastStage := ""
	for i := range steps {
		c := r.m.CPU()
		pc := c.PC
		r.op = ""
		cyc := r.m.Step()
		cycles += cyc
		if r.trace || r.keep {
			r.record(pc, cyc)
		}

		if auto {
			s := r.serial.String()
			if mm := stageRe.FindAllString(s, -1); len(mm) > 0 {
				lastStage = mm[len(mm)-1]
			}
			if strings.Contains(strings.ToLower(s), "passed") {
				fmt.Printf("\nDetected PASS in serial output.\n")
				printStage(lastStage)
				done(i + 1)
				return exitPass
			}
			if m := failRe.FindStringSubmatch(s); m != nil {
				fmt.Printf("\nDetected %s in serial output.\n", m[0])
				printStage(lastStage)
				r.dumpFailure()
				done(i + 1)
				return exitFail
			}
		} else if until != "" {
			if strings.Contains(strings.ToLower(r.serial.String()), strings.ToLower(until)) {
				fmt.Printf("\nDetected '%s' in serial output.\n", until)
				done(i + 1)
				return exitPass
			}
		}

		if i%1024 == 0 && ctx.Err() != nil {
			fmt.Printf("\nStopped after %s: %v.\n", time.Since(start).Truncate(time.Millisecond), ctx.Err())
			done(i + 1)
			return exitTimeout
		}
	}
	done(steps)
	if auto {
		return exitTimeout
	}
	return exitPass
}

func (r *runner) record(pc uint16, cyc int) {
	c := r.m.CPU()
	b := r.m.Bus()
	te := traceEntry{
		pc: pc, op: r.op, cyc: cyc,
		a: c.A, f: c.F, b: c.B, c: c.C, d: c.D, e: c.E, h: c.H, l: c.L,
		sp: c.SP, ime: c.IME(),
		ifreg: b.Read(interrupt.AddrIF), ie: b.Read(interrupt.AddrIE),
	}
	if r.trace {
		fmt.Println(te)
	}
	if r.keep {
		r.traces.push(te)
	}
}

func (r *runner) dumpFailure() {
	if entries := r.traces.ordered(); r.keep && len(entries) > 0 {
		fmt.Printf("\n--- recent trace (last %d instructions) ---\n", len(entries))
		for _, te := range entries {
			fmt.Println(te)
		}
		fmt.Printf("--- end trace ---\n")
	}
	if recent := r.recent.ordered(); len(recent) > 0 {
		fmt.Printf("\n--- recent serial (last %d bytes) ---\n%s\n--- end serial ---\n", len(recent), recent)
	}
}

func printStage(stage string) {
	if stage != "" {
		fmt.Printf("Last stage seen: %s\n", stage)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/emu"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/ppu"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/script"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/stats"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/termview"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/ui"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

type CLIFlags struct {
	ROMPath string
	BootROM string
	Scale   int
	Title   string
	ShowFPS bool
	Trace   bool
	Debug   bool
	Quiet   bool
	Version bool
	Stats   bool
	SaveRAM bool // persist battery RAM next to the ROM (.sav)

	// headless
	Headless bool
	Frames   int
	PNGOut   string
	Expect   string // expected framebuffer CRC32 hex (e.g., "1a2b3c4d")
	Script   string
	Term     bool
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gb)")
	flag.StringVar(&f.BootROM, "bootrom", "", "optional DMG boot ROM")
	flag.IntVar(&f.Scale, "scale", 3, "window scale")
	flag.StringVar(&f.Title, "title", "gbemu", "window title")
	flag.BoolVar(&f.ShowFPS, "fps", false, "show frame rate in the window")
	flag.BoolVar(&f.Trace, "trace", false, "log every executed instruction (needs -debug)")
	flag.BoolVar(&f.Debug, "debug", false, "enable debug logging")
	flag.BoolVar(&f.Quiet, "quiet", false, "only log errors")
	flag.BoolVar(&f.Version, "version", false, "print version and exit")
	flag.BoolVar(&f.SaveRAM, "save", true, "persist battery RAM to ROM.sav on exit and load on start")
	flag.BoolVar(&f.Stats, "stats", false, "serve runtime statistics on "+stats.DefaultAddress)

	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 (hex)")
	flag.StringVar(&f.Script, "script", "", "Lua script providing input(frame) in headless mode")
	flag.BoolVar(&f.Term, "term", false, "print the last frame to the terminal in headless mode")
	flag.Parse()
	return f
}

func newLogger(f CLIFlags) *log.Logger {
	cfg := log.DefaultConfig()
	switch {
	case f.Debug:
		cfg.Level = log.DebugLevel
	case f.Quiet:
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

func runHeadless(ctx context.Context, logger *log.Logger, m *emu.Machine, f CLIFlags) error {
	frames := max(f.Frames, 1)

	var input func(frame int) error
	if f.Script != "" {
		s, err := script.LoadFile(f.Script, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		input = func(frame int) error {
			held, err := s.Input(frame)
			if err != nil {
				return err
			}
			m.SetButtons(held)
			return nil
		}
	}

	start := time.Now()
	if err := m.RunFrames(ctx, frames, input); err != nil {
		return fmt.Errorf("running frames: %w", err)
	}
	dur := time.Since(start)

	fb := m.Framebuffer()
	crc := crc32.ChecksumIEEE(fb)
	logger.Info("headless run finished",
		log.Int("frames", frames),
		log.String("elapsed", dur.Truncate(time.Millisecond).String()),
		log.String("fps", fmt.Sprintf("%.2f", float64(frames)/dur.Seconds())),
		log.String("fb_crc32", fmt.Sprintf("%08x", crc)))

	if f.Term {
		if err := termview.Render(os.Stdout, fb, ppu.ScreenWidth, ppu.ScreenHeight, termview.Columns(int(os.Stdout.Fd()))); err != nil {
			return fmt.Errorf("terminal preview: %w", err)
		}
	}
	if f.PNGOut != "" {
		if err := ui.SavePNG(fb, f.PNGOut); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		logger.Info("wrote frame", log.String("path", f.PNGOut))
	}
	if f.Expect != "" {
		want := strings.TrimPrefix(strings.ToLower(f.Expect), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return b, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	f := parseFlags()
	if f.Version {
		fmt.Printf("gbemu version: %s\n", buildinfo.Version(version, commit, date))
		return 0
	}
	logger := newLogger(f)
	if f.ROMPath == "" {
		flag.Usage()
		logger.Fatal("-rom is required")
	}

	rom, err := readFile(f.ROMPath)
	if err != nil {
		logger.Fatal(err.Error())
	}
	boot, err := readFile(f.BootROM)
	if err != nil {
		logger.Fatal(err.Error())
	}

	m, err := emu.New(emu.Config{BootROM: boot, Logger: logger, Trace: f.Trace}, rom)
	if err != nil {
		logger.Fatal(err.Error())
	}
	h := m.Header()
	logger.Info("ROM loaded",
		log.String("title", h.Title),
		log.String("type", h.CartTypeStr),
		log.Int("banks", h.ROMBanks),
		log.Int("ram", h.RAMSizeBytes))

	if f.SaveRAM && h.Battery() {
		savPath := strings.TrimSuffix(f.ROMPath, filepath.Ext(f.ROMPath)) + ".sav"
		loadBattery(logger, m, savPath)
		defer saveBattery(logger, m, savPath)
	}

	if f.Stats {
		stop := stats.Launch(stats.DefaultAddress, logger)
		defer stop()
	}

	if f.Headless {
		err = runHeadless(app.Context(), logger, m, f)
	} else {
		err = ui.NewApp(ui.Config{Title: f.Title, Scale: f.Scale, ShowFPS: f.ShowFPS}, m, logger).Run()
	}
	if err != nil {
		logger.Error(err.Error())
		return 1
	}
	return 0
}

func loadBattery(logger *log.Logger, m *emu.Machine, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	n := copy(m.CartRAM(), data)
	logger.Info("loaded save RAM", log.String("path", path), log.Int("bytes", n))
}

func saveBattery(logger *log.Logger, m *emu.Machine, path string) {
	if err := os.WriteFile(path, m.CartRAM(), 0o644); err != nil {
		logger.Error("writing save RAM", log.Err(err))
		return
	}
	logger.Info("wrote save RAM", log.String("path", path))
}

package timer

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/interrupt"
	"github.com/retroenv/retrogolib/assert"
)

func newTestTimer() (*Timer, *interrupt.Controller) {
	irq := interrupt.New()
	return New(irq.Line(interrupt.Timer)), irq
}

func TestDividerCountsAndResets(t *testing.T) {
	tm, _ := newTestTimer()
	tm.Tick(255)
	assert.Equal(t, byte(0), tm.Read(AddrDIV))
	tm.Tick(1)
	assert.Equal(t, byte(1), tm.Read(AddrDIV))
	tm.Tick(256 * 3)
	assert.Equal(t, byte(4), tm.Read(AddrDIV))

	tm.Tick(200)
	tm.Write(AddrDIV, 0x99)
	assert.Equal(t, byte(0), tm.Read(AddrDIV))
	tm.Tick(100)
	assert.Equal(t, byte(0), tm.Read(AddrDIV))
}

func TestTIMADisabled(t *testing.T) {
	tm, _ := newTestTimer()
	tm.Write(AddrTAC, 0x01)
	tm.Tick(4096)
	assert.Equal(t, byte(0), tm.Read(AddrTIMA))
}

func TestTIMAPeriods(t *testing.T) {
	tests := []struct {
		tac    byte
		period int
	}{
		{0x04, 1024},
		{0x05, 16},
		{0x06, 64},
		{0x07, 256},
	}
	for _, tt := range tests {
		tm, _ := newTestTimer()
		tm.Write(AddrTAC, tt.tac)
		tm.Tick(tt.period*3 - 1)
		if got := tm.Read(AddrTIMA); got != 2 {
			t.Fatalf("TAC %02X: TIMA got %d want 2", tt.tac, got)
		}
		tm.Tick(1)
		if got := tm.Read(AddrTIMA); got != 3 {
			t.Fatalf("TAC %02X: TIMA got %d want 3", tt.tac, got)
		}
	}
}

func TestTIMAOverflowReloadsAndRaises(t *testing.T) {
	tm, irq := newTestTimer()
	tm.Write(AddrTMA, 0xF0)
	tm.Write(AddrTIMA, 0xFE)
	tm.Write(AddrTAC, 0x05)

	tm.Tick(16)
	assert.Equal(t, byte(0xFF), tm.Read(AddrTIMA))
	assert.Equal(t, byte(0), irq.Requested())

	tm.Tick(16)
	assert.Equal(t, byte(0xF0), tm.Read(AddrTIMA))
	assert.Equal(t, byte(interrupt.Timer), irq.Requested())
}

func TestTACUpperBitsReadAsOne(t *testing.T) {
	tm, _ := newTestTimer()
	tm.Write(AddrTAC, 0xFD)
	assert.Equal(t, byte(0xFD), tm.Read(AddrTAC))
	tm.Write(AddrTAC, 0x00)
	assert.Equal(t, byte(0xF8), tm.Read(AddrTAC))
}

package serial

import (
	"bytes"
	"errors"
	"testing"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/interrupt"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func TestSerialTransferToWriter(t *testing.T) {
	var buf bytes.Buffer
	irq := interrupt.New()
	s := New(&buf, irq.Line(interrupt.Serial), log.NewTestLogger(t))

	for _, c := range []byte("ok\n") {
		s.Write(AddrSB, c)
		s.Write(AddrSC, 0x81)
	}
	assert.Equal(t, "ok\n", buf.String())
	assert.Equal(t, byte(0xFF), s.Read(AddrSB))
	assert.Equal(t, byte(0x7F), s.Read(AddrSC))
	assert.Equal(t, byte(interrupt.Serial), irq.Requested())
}

func TestSerialExternalClockDoesNothing(t *testing.T) {
	var buf bytes.Buffer
	irq := interrupt.New()
	s := New(&buf, irq.Line(interrupt.Serial), log.NewTestLogger(t))
	s.Write(AddrSB, 'x')
	s.Write(AddrSC, 0x80)
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, byte('x'), s.Read(AddrSB))
	assert.Equal(t, byte(0xFE), s.Read(AddrSC))
	assert.Equal(t, byte(0), irq.Requested())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestSerialWriterErrorIsNotFatal(t *testing.T) {
	irq := interrupt.New()
	s := New(failingWriter{}, irq.Line(interrupt.Serial), log.NewTestLogger(t))
	s.Write(AddrSB, 1)
	s.Write(AddrSC, 0x81)
	assert.Equal(t, byte(0xFF), s.Read(AddrSB))
	assert.Equal(t, byte(interrupt.Serial), irq.Requested())
}

func TestSerialNilWriterDiscards(t *testing.T) {
	s := New(nil, interrupt.Line{}, log.NewTestLogger(t))
	s.Write(AddrSB, 1)
	s.Write(AddrSC, 0x81)
	assert.Equal(t, byte(0x7F), s.Read(AddrSC))
}

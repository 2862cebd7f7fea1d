// Package serial is a link-port stub. A transfer started with the internal clock
// completes immediately: the outgoing byte goes to a writer and 0xFF comes back.
package serial

import (
	"io"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/interrupt"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/memory"
	"github.com/retroenv/retrogolib/log"
)

const (
	AddrSB uint16 = 0xFF01
	AddrSC uint16 = 0xFF02

	scStart    byte = 1 << 7
	scInternal byte = 1 << 0
)

type Serial struct {
	*memory.Block

	sb *memory.Unit
	sc *memory.Unit

	out    io.Writer
	irq    interrupt.Line
	logger *log.Logger
}

// New creates the port. A nil writer discards transferred bytes.
func New(out io.Writer, irq interrupt.Line, logger *log.Logger) *Serial {
	if out == nil {
		out = io.Discard
	}
	s := &Serial{
		sb:     memory.NewRegister(AddrSB, 0),
		sc:     memory.NewRegister(AddrSC, 0),
		out:    out,
		irq:    irq,
		logger: logger,
	}
	s.sc.OnRead(func(_ uint16, v byte) byte { return 0x7E | v })
	s.sc.OnWrite(s.control)
	s.Block = memory.MustBlock(s.sb, s.sc)
	return s
}

func (s *Serial) control(_ uint16, v byte) (byte, bool) {
	v &= scStart | scInternal
	if v&(scStart|scInternal) != scStart|scInternal {
		return v, true
	}
	if _, err := s.out.Write([]byte{s.sb.Value()}); err != nil {
		s.logger.Warn("Serial output failed", log.Err(err))
	}
	s.sb.Set(0xFF)
	s.irq.Raise()
	return v &^ scStart, true
}

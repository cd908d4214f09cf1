// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package link

import (
	"errors"
	"io"
)

// ErrWouldBlock reports that a Pump step made no progress because the
// transport had nothing to read (PumpIn) or the Link had nothing queued
// to write (PumpOut); it is a control-flow signal, not a failure, and
// callers should simply invoke the step again later. The rest of this
// package never blocks; whether a Pump step blocks depends on the
// io.ReadWriter it wraps.
var ErrWouldBlock = errors.New("link: would block")

// Pump adapts an io.ReadWriter to a Link: it is the one place in this
// package allowed to perform blocking I/O, and it is never required by
// Link itself (PushByte/PopTransmit/Tick are transport-agnostic).
type Pump struct {
	rw io.ReadWriter
	l  *Link

	readBuf [256]byte

	writeBuf    []byte
	writeOffset int
}

// NewPump constructs a Pump moving bytes between rw and l. l is a
// reference the Pump does not own.
func NewPump(rw io.ReadWriter, l *Link) *Pump {
	return &Pump{rw: rw, l: l}
}

// PumpIn performs at most one non-blocking-sized read from the transport
// and feeds every byte read into the Link. It returns ErrWouldBlock if rw
// returned (0, nil) or a timeout-shaped error, io.EOF if the transport is
// closed, or any other read error verbatim.
func (p *Pump) PumpIn() error {
	n, err := p.rw.Read(p.readBuf[:])
	for i := 0; i < n; i++ {
		p.l.PushByte(p.readBuf[i])
	}
	if err != nil {
		var te interface{ Timeout() bool }
		if errors.As(err, &te) && te.Timeout() {
			return ErrWouldBlock
		}
		return err
	}
	if n == 0 {
		return ErrWouldBlock
	}
	return nil
}

// PumpOut drains the Link's transmit queue into the transport. If a
// previous call left a partially written buffer (a short write), it
// resumes that buffer before popping a new one, honoring io.Writer's
// short-write contract one fragment at a time.
func (p *Pump) PumpOut() error {
	if p.writeBuf == nil {
		buf, _, ok := p.l.PopTransmit()
		if !ok {
			return ErrWouldBlock
		}
		p.writeBuf = buf
		p.writeOffset = 0
	}

	n, err := p.rw.Write(p.writeBuf[p.writeOffset:])
	p.writeOffset += n
	if err != nil {
		return err
	}
	if p.writeOffset >= len(p.writeBuf) {
		p.writeBuf = nil
		p.writeOffset = 0
	}
	return nil
}

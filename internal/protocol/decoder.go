package protocol

import (
	"errors"
	"io"
)

const readChunkSize = 1024

// Decoder turns an arbitrarily chunked byte stream into frames. Bytes that do not
// yet make up a full frame stay buffered until the next Write.
type Decoder struct {
	buf []byte
}

func NewDecoder() *Decoder {
	return &Decoder{
		buf: make([]byte, 0, readChunkSize),
	}
}

// Write buffers p. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next pops the oldest complete frame, if any.
func (d *Decoder) Next() (Frame, bool) {
	if len(d.buf) < FrameSize {
		return Frame{}, false
	}

	var raw [FrameSize]byte
	copy(raw[:], d.buf[:FrameSize])
	remaining := copy(d.buf, d.buf[FrameSize:])
	d.buf = d.buf[:remaining]
	return ParseFrame(raw), true
}

// Buffered reports how many bytes of an incomplete frame are held.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// StreamDecoder pulls frames from a reader on demand.
type StreamDecoder struct {
	r       io.Reader
	decoder *Decoder
	chunk   []byte
	err     error //sticky, set once the reader is exhausted
	pending error
}

func NewStreamDecoder(r io.Reader) *StreamDecoder {
	return &StreamDecoder{
		r:       r,
		decoder: NewDecoder(),
		chunk:   make([]byte, readChunkSize),
	}
}

// Next blocks until a full frame is available or the reader fails. A clean close
// is reported as io.EOF and every later call returns io.EOF again; a trailing
// partial frame is dropped.
//
// Other read errors (such as a deadline) are returned once. The partial frame stays
// buffered so a later call can still complete it.
func (s *StreamDecoder) Next() (Frame, error) {
	for {
		if frame, ok := s.decoder.Next(); ok {
			return frame, nil
		}
		if s.err != nil {
			return Frame{}, s.err
		}
		if s.pending != nil {
			err := s.pending
			s.pending = nil
			return Frame{}, err
		}

		n, err := s.r.Read(s.chunk)
		if n > 0 {
			s.decoder.Write(s.chunk[:n])
		}
		if errors.Is(err, io.EOF) {
			s.err = io.EOF
		} else if err != nil {
			s.pending = err
		}
	}
}

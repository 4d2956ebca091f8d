// Package wire implements the framed peer stream (component A of the relay
// engine): a length-prefixed protobuf read/write wrapper around a duplex
// byte stream. Every HOP and STOP handler reads exactly one message and
// writes exactly one reply per stream, so DelimitedReader/DelimitedWriter
// are used directly rather than through an async queue.
package wire

import (
	"bufio"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// Message is the minimal surface the framing layer needs from a wire
// message; pb.HopMessage and pb.StopMessage both implement it.
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// MaxMessageSize bounds a single frame; larger varint-prefixed lengths are
// rejected as malformed rather than read into memory.
const MaxMessageSize = 4096

// DelimitedReader reads one varint-length-prefixed message at a time.
type DelimitedReader struct {
	r       *bufio.Reader
	maxSize int
}

func NewDelimitedReader(r io.Reader, maxSize int) *DelimitedReader {
	return &DelimitedReader{r: bufio.NewReader(r), maxSize: maxSize}
}

// ReadMsg reads exactly one length-prefixed frame and unmarshals it into m.
func (d *DelimitedReader) ReadMsg(m Message) error {
	length, err := varint.ReadUvarint(d.r)
	if err != nil {
		return err
	}
	if int(length) > d.maxSize {
		return fmt.Errorf("wire: message size %d exceeds maximum %d", length, d.maxSize)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return err
	}
	return m.Unmarshal(buf)
}

// DelimitedWriter writes one varint-length-prefixed message at a time.
type DelimitedWriter struct {
	w io.Writer
}

func NewDelimitedWriter(w io.Writer) *DelimitedWriter {
	return &DelimitedWriter{w: w}
}

func (d *DelimitedWriter) WriteMsg(m Message) error {
	payload, err := m.Marshal()
	if err != nil {
		return err
	}
	prefix := varint.ToUvarint(uint64(len(payload)))
	if _, err := d.w.Write(prefix); err != nil {
		return err
	}
	_, err = d.w.Write(payload)
	return err
}

// Package pb implements the wire messages of the circuit relay v2 HOP and
// STOP protocols by hand: HopMessage, StopMessage, Limit, Reservation, Peer
// and ReservationVoucher, encoded using plain protobuf wire rules (varint
// tags, length-delimited bytes and submessages). There is no generated code
// and no reflection; each type implements Marshal/Unmarshal/Size directly,
// matching the field numbers fixed by the wire format.
package pb

import (
	"encoding/binary"
	"fmt"
)

const (
	wireVarint = 0
	wireBytes  = 2
)

func appendTag(buf []byte, field int, wireType int) []byte {
	return binary.AppendUvarint(buf, uint64(field)<<3|uint64(wireType))
}

func appendVarintField(buf []byte, field int, v uint64) []byte {
	buf = appendTag(buf, field, wireVarint)
	return binary.AppendUvarint(buf, v)
}

func appendBytesField(buf []byte, field int, v []byte) []byte {
	buf = appendTag(buf, field, wireBytes)
	buf = binary.AppendUvarint(buf, uint64(len(v)))
	return append(buf, v...)
}

func sizeVarint(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func sizeTag(field int) int {
	return sizeVarint(uint64(field) << 3)
}

func sizeVarintField(field int, v uint64) int {
	return sizeTag(field) + sizeVarint(v)
}

func sizeBytesField(field int, v []byte) int {
	return sizeTag(field) + sizeVarint(uint64(len(v))) + len(v)
}

// fieldReader walks a buffer field by field. Decoders pass each unknown
// field to skip, which discards varint, 64-bit, length-delimited and 32-bit
// values; a group or invalid wire type is reported as an error.
type fieldReader struct {
	buf []byte
}

func (r *fieldReader) done() bool { return len(r.buf) == 0 }

func (r *fieldReader) next() (field int, wireType int, err error) {
	tag, n := binary.Uvarint(r.buf)
	if n <= 0 {
		return 0, 0, fmt.Errorf("pb: malformed tag")
	}
	r.buf = r.buf[n:]
	return int(tag >> 3), int(tag & 7), nil
}

func (r *fieldReader) varint() (uint64, error) {
	v, n := binary.Uvarint(r.buf)
	if n <= 0 {
		return 0, fmt.Errorf("pb: malformed varint")
	}
	r.buf = r.buf[n:]
	return v, nil
}

func (r *fieldReader) bytes() ([]byte, error) {
	l, n := binary.Uvarint(r.buf)
	if n <= 0 {
		return nil, fmt.Errorf("pb: malformed length")
	}
	r.buf = r.buf[n:]
	if uint64(len(r.buf)) < l {
		return nil, fmt.Errorf("pb: truncated field")
	}
	v := r.buf[:l]
	r.buf = r.buf[l:]
	return v, nil
}

// skip discards the value of the field whose wire type was just read.
func (r *fieldReader) skip(wireType int) error {
	switch wireType {
	case wireVarint:
		_, err := r.varint()
		return err
	case wireBytes:
		_, err := r.bytes()
		return err
	case 1, 5: // 64-bit and 32-bit fixed-width values
		width := 8
		if wireType == 5 {
			width = 4
		}
		if len(r.buf) < width {
			return fmt.Errorf("pb: truncated field")
		}
		r.buf = r.buf[width:]
		return nil
	default:
		return fmt.Errorf("pb: unsupported wire type %d", wireType)
	}
}

package pb

import "fmt"

// HopMessage is the single message type exchanged on the HOP protocol
// stream. Field numbers: type=1, peer=2, reservation=3, limit=4, status=5.
type HopMessage struct {
	Type        *HopType
	Peer        *Peer
	Reservation *Reservation
	Limit       *Limit
	Status      *Status
}

func (m *HopMessage) Reset()        { *m = HopMessage{} }
func (m *HopMessage) ProtoMessage() {}
func (m *HopMessage) String() string {
	return fmt.Sprintf("HopMessage{Type: %v, Status: %v}", m.GetType(), m.GetStatus())
}

func (m *HopMessage) GetType() HopType {
	if m == nil || m.Type == nil {
		return HopMessage_RESERVE
	}
	return *m.Type
}

func (m *HopMessage) GetPeer() *Peer { return m.Peer }

func (m *HopMessage) GetReservation() *Reservation { return m.Reservation }

func (m *HopMessage) GetLimit() *Limit { return m.Limit }

func (m *HopMessage) GetStatus() Status {
	if m == nil || m.Status == nil {
		return Status_OK
	}
	return *m.Status
}

func (m *HopMessage) Size() int {
	n := 0
	if m.Type != nil {
		n += sizeVarintField(1, uint64(*m.Type))
	}
	if m.Peer != nil {
		pl := m.Peer.Size()
		n += sizeTag(2) + sizeVarint(uint64(pl)) + pl
	}
	if m.Reservation != nil {
		rl := m.Reservation.Size()
		n += sizeTag(3) + sizeVarint(uint64(rl)) + rl
	}
	if m.Limit != nil {
		ll := m.Limit.Size()
		n += sizeTag(4) + sizeVarint(uint64(ll)) + ll
	}
	if m.Status != nil {
		n += sizeVarintField(5, uint64(*m.Status))
	}
	return n
}

func (m *HopMessage) Marshal() ([]byte, error) {
	buf := make([]byte, 0, m.Size())
	if m.Type != nil {
		buf = appendVarintField(buf, 1, uint64(*m.Type))
	}
	if m.Peer != nil {
		buf = appendTag(buf, 2, wireBytes)
		buf = appendLenPrefixed(buf, m.Peer.marshalTo)
	}
	if m.Reservation != nil {
		buf = appendTag(buf, 3, wireBytes)
		buf = appendLenPrefixed(buf, m.Reservation.marshalTo)
	}
	if m.Limit != nil {
		buf = appendTag(buf, 4, wireBytes)
		buf = appendLenPrefixed(buf, m.Limit.marshalTo)
	}
	if m.Status != nil {
		buf = appendVarintField(buf, 5, uint64(*m.Status))
	}
	return buf, nil
}

func (m *HopMessage) Unmarshal(data []byte) error {
	*m = HopMessage{}
	r := &fieldReader{buf: data}
	for !r.done() {
		field, wt, err := r.next()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			v, err := r.varint()
			if err != nil {
				return err
			}
			t := HopType(v)
			m.Type = &t
		case 2:
			v, err := r.bytes()
			if err != nil {
				return err
			}
			p, err := unmarshalPeer(v)
			if err != nil {
				return err
			}
			m.Peer = p
		case 3:
			v, err := r.bytes()
			if err != nil {
				return err
			}
			rv, err := unmarshalReservation(v)
			if err != nil {
				return err
			}
			m.Reservation = rv
		case 4:
			v, err := r.bytes()
			if err != nil {
				return err
			}
			l, err := unmarshalLimit(v)
			if err != nil {
				return err
			}
			m.Limit = l
		case 5:
			v, err := r.varint()
			if err != nil {
				return err
			}
			s := Status(v)
			m.Status = &s
		default:
			if err := r.skip(wt); err != nil {
				return err
			}
		}
	}
	return nil
}

// appendLenPrefixed appends the varint length of whatever marshalTo writes,
// followed by the bytes themselves. The submessage is built in a scratch
// buffer first since protobuf length-delimited fields are length-prefixed,
// not self-delimiting.
func appendLenPrefixed(buf []byte, marshalTo func([]byte) []byte) []byte {
	sub := marshalTo(nil)
	buf = append(buf, varintBytes(uint64(len(sub)))...)
	return append(buf, sub...)
}

func varintBytes(v uint64) []byte {
	var tmp [10]byte
	n := 0
	for v >= 0x80 {
		tmp[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	tmp[n] = byte(v)
	n++
	return tmp[:n]
}

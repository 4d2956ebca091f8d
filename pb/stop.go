package pb

import "fmt"

// StopMessage is the single message type exchanged on the STOP protocol
// stream. Field numbers: type=1, peer=2, limit=3, status=4.
type StopMessage struct {
	Type   *StopType
	Peer   *Peer
	Limit  *Limit
	Status *Status
}

func (m *StopMessage) Reset()        { *m = StopMessage{} }
func (m *StopMessage) ProtoMessage() {}
func (m *StopMessage) String() string {
	return fmt.Sprintf("StopMessage{Type: %v, Status: %v}", m.GetType(), m.GetStatus())
}

func (m *StopMessage) GetType() StopType {
	if m == nil || m.Type == nil {
		return StopMessage_CONNECT
	}
	return *m.Type
}

func (m *StopMessage) GetPeer() *Peer { return m.Peer }

func (m *StopMessage) GetLimit() *Limit { return m.Limit }

func (m *StopMessage) GetStatus() Status {
	if m == nil || m.Status == nil {
		return Status_OK
	}
	return *m.Status
}

func (m *StopMessage) Size() int {
	n := 0
	if m.Type != nil {
		n += sizeVarintField(1, uint64(*m.Type))
	}
	if m.Peer != nil {
		pl := m.Peer.Size()
		n += sizeTag(2) + sizeVarint(uint64(pl)) + pl
	}
	if m.Limit != nil {
		ll := m.Limit.Size()
		n += sizeTag(3) + sizeVarint(uint64(ll)) + ll
	}
	if m.Status != nil {
		n += sizeVarintField(4, uint64(*m.Status))
	}
	return n
}

func (m *StopMessage) Marshal() ([]byte, error) {
	buf := make([]byte, 0, m.Size())
	if m.Type != nil {
		buf = appendVarintField(buf, 1, uint64(*m.Type))
	}
	if m.Peer != nil {
		buf = appendTag(buf, 2, wireBytes)
		buf = appendLenPrefixed(buf, m.Peer.marshalTo)
	}
	if m.Limit != nil {
		buf = appendTag(buf, 3, wireBytes)
		buf = appendLenPrefixed(buf, m.Limit.marshalTo)
	}
	if m.Status != nil {
		buf = appendVarintField(buf, 4, uint64(*m.Status))
	}
	return buf, nil
}

func (m *StopMessage) Unmarshal(data []byte) error {
	*m = StopMessage{}
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
			t := StopType(v)
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
			l, err := unmarshalLimit(v)
			if err != nil {
				return err
			}
			m.Limit = l
		case 4:
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

package pb

// Peer carries a relay-scoped peer identity plus any addresses the sender
// knows for it. Field numbers: id=1, addrs=2 (repeated).
type Peer struct {
	Id    []byte
	Addrs [][]byte
}

func (p *Peer) GetId() []byte {
	if p == nil {
		return nil
	}
	return p.Id
}

func (p *Peer) GetAddrs() [][]byte {
	if p == nil {
		return nil
	}
	return p.Addrs
}

func (p *Peer) Size() int {
	if p == nil {
		return 0
	}
	n := 0
	if len(p.Id) > 0 {
		n += sizeBytesField(1, p.Id)
	}
	for _, a := range p.Addrs {
		n += sizeBytesField(2, a)
	}
	return n
}

func (p *Peer) marshalTo(buf []byte) []byte {
	if p == nil {
		return buf
	}
	if len(p.Id) > 0 {
		buf = appendBytesField(buf, 1, p.Id)
	}
	for _, a := range p.Addrs {
		buf = appendBytesField(buf, 2, a)
	}
	return buf
}

func unmarshalPeer(data []byte) (*Peer, error) {
	p := &Peer{}
	r := &fieldReader{buf: data}
	for !r.done() {
		field, wt, err := r.next()
		if err != nil {
			return nil, err
		}
		switch field {
		case 1:
			v, err := r.bytes()
			if err != nil {
				return nil, err
			}
			p.Id = append([]byte(nil), v...)
		case 2:
			v, err := r.bytes()
			if err != nil {
				return nil, err
			}
			p.Addrs = append(p.Addrs, append([]byte(nil), v...))
		default:
			if err := r.skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// Limit mirrors the Limit message: duration=1 (uint32 seconds), data=2
// (uint64 bytes). Zero on either field means unbounded on that axis.
type Limit struct {
	Duration *uint32
	Data     *uint64
}

func (l *Limit) GetDuration() uint32 {
	if l == nil || l.Duration == nil {
		return 0
	}
	return *l.Duration
}

func (l *Limit) GetData() uint64 {
	if l == nil || l.Data == nil {
		return 0
	}
	return *l.Data
}

func (l *Limit) Size() int {
	if l == nil {
		return 0
	}
	n := 0
	if l.Duration != nil {
		n += sizeVarintField(1, uint64(*l.Duration))
	}
	if l.Data != nil {
		n += sizeVarintField(2, *l.Data)
	}
	return n
}

func (l *Limit) marshalTo(buf []byte) []byte {
	if l == nil {
		return buf
	}
	if l.Duration != nil {
		buf = appendVarintField(buf, 1, uint64(*l.Duration))
	}
	if l.Data != nil {
		buf = appendVarintField(buf, 2, *l.Data)
	}
	return buf
}

func unmarshalLimit(data []byte) (*Limit, error) {
	l := &Limit{}
	r := &fieldReader{buf: data}
	for !r.done() {
		field, wt, err := r.next()
		if err != nil {
			return nil, err
		}
		switch field {
		case 1:
			v, err := r.varint()
			if err != nil {
				return nil, err
			}
			d := uint32(v)
			l.Duration = &d
		case 2:
			v, err := r.varint()
			if err != nil {
				return nil, err
			}
			l.Data = &v
		default:
			if err := r.skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return l, nil
}

// Reservation mirrors the Reservation message: expire=1 (uint64 unix
// seconds), addrs=2 (repeated bytes), voucher=3 (bytes, optional).
type Reservation struct {
	Expire  *uint64
	Addrs   [][]byte
	Voucher []byte
}

func (r *Reservation) GetExpire() uint64 {
	if r == nil || r.Expire == nil {
		return 0
	}
	return *r.Expire
}

func (r *Reservation) GetAddrs() [][]byte {
	if r == nil {
		return nil
	}
	return r.Addrs
}

func (r *Reservation) GetVoucher() []byte {
	if r == nil {
		return nil
	}
	return r.Voucher
}

func (rv *Reservation) Size() int {
	if rv == nil {
		return 0
	}
	n := 0
	if rv.Expire != nil {
		n += sizeVarintField(1, *rv.Expire)
	}
	for _, a := range rv.Addrs {
		n += sizeBytesField(2, a)
	}
	if len(rv.Voucher) > 0 {
		n += sizeBytesField(3, rv.Voucher)
	}
	return n
}

func (rv *Reservation) marshalTo(buf []byte) []byte {
	if rv == nil {
		return buf
	}
	if rv.Expire != nil {
		buf = appendVarintField(buf, 1, *rv.Expire)
	}
	for _, a := range rv.Addrs {
		buf = appendBytesField(buf, 2, a)
	}
	if len(rv.Voucher) > 0 {
		buf = appendBytesField(buf, 3, rv.Voucher)
	}
	return buf
}

func unmarshalReservation(data []byte) (*Reservation, error) {
	rv := &Reservation{}
	r := &fieldReader{buf: data}
	for !r.done() {
		field, wt, err := r.next()
		if err != nil {
			return nil, err
		}
		switch field {
		case 1:
			v, err := r.varint()
			if err != nil {
				return nil, err
			}
			rv.Expire = &v
		case 2:
			v, err := r.bytes()
			if err != nil {
				return nil, err
			}
			rv.Addrs = append(rv.Addrs, append([]byte(nil), v...))
		case 3:
			v, err := r.bytes()
			if err != nil {
				return nil, err
			}
			rv.Voucher = append([]byte(nil), v...)
		default:
			if err := r.skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return rv, nil
}

package pb

// ReservationVoucher is the payload sealed inside a signed record.Envelope
// and carried as HopMessage.Reservation.Voucher. Field numbers: relay=1
// (peer id bytes), peer=2 (peer id bytes), expiration=3 (uint64 unix
// seconds).
type ReservationVoucher struct {
	Relay      []byte
	Peer       []byte
	Expiration *uint64
}

func (v *ReservationVoucher) Reset()        { *v = ReservationVoucher{} }
func (v *ReservationVoucher) ProtoMessage() {}
func (v *ReservationVoucher) String() string {
	return "ReservationVoucher"
}

func (v *ReservationVoucher) GetRelay() []byte { return v.Relay }
func (v *ReservationVoucher) GetPeer() []byte  { return v.Peer }
func (v *ReservationVoucher) GetExpiration() uint64 {
	if v == nil || v.Expiration == nil {
		return 0
	}
	return *v.Expiration
}

func (v *ReservationVoucher) Size() int {
	n := 0
	if len(v.Relay) > 0 {
		n += sizeBytesField(1, v.Relay)
	}
	if len(v.Peer) > 0 {
		n += sizeBytesField(2, v.Peer)
	}
	if v.Expiration != nil {
		n += sizeVarintField(3, *v.Expiration)
	}
	return n
}

func (v *ReservationVoucher) Marshal() ([]byte, error) {
	buf := make([]byte, 0, v.Size())
	if len(v.Relay) > 0 {
		buf = appendBytesField(buf, 1, v.Relay)
	}
	if len(v.Peer) > 0 {
		buf = appendBytesField(buf, 2, v.Peer)
	}
	if v.Expiration != nil {
		buf = appendVarintField(buf, 3, *v.Expiration)
	}
	return buf, nil
}

func (v *ReservationVoucher) Unmarshal(data []byte) error {
	*v = ReservationVoucher{}
	r := &fieldReader{buf: data}
	for !r.done() {
		field, wt, err := r.next()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			v.Relay = append([]byte(nil), b...)
		case 2:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			v.Peer = append([]byte(nil), b...)
		case 3:
			n, err := r.varint()
			if err != nil {
				return err
			}
			v.Expiration = &n
		default:
			if err := r.skip(wt); err != nil {
				return err
			}
		}
	}
	return nil
}

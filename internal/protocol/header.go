package protocol

import "encoding/binary"

// Header is the fixed 10-byte prefix carried by every frame. The payload
// of any packet type starts at the same offset, HeaderSize.
//
// Wire layout:
//
//	ver_type:u8 src:u8 dst:u8 exp_id:u8 session_id:u16 seq_num:u16 tx_pow:u8 sf_cr:u8
type Header struct {
	VerType   uint8
	Src       uint8
	Dst       uint8
	ExpID     uint8
	SessionID uint16
	SeqNum    uint16
	TxPower   uint8
	SFCR      uint8
}

// Version extracts the protocol version from the packed ver_type byte.
func (h Header) Version() uint8 {
	return h.VerType >> 4 & 0x0F
}

// Type extracts the packet type from the packed ver_type byte.
func (h Header) Type() PacketType {
	return PacketType(h.VerType & 0x0F)
}

// SpreadingFactor extracts the spreading factor from the packed sf_cr byte.
func (h Header) SpreadingFactor() uint8 {
	return h.SFCR >> 4 & 0x0F
}

// CodingRate extracts the coding-rate denominator from the packed sf_cr byte.
func (h Header) CodingRate() uint8 {
	return h.SFCR & 0x0F
}

// Encode serializes the header into exactly HeaderSize bytes.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.VerType
	buf[1] = h.Src
	buf[2] = h.Dst
	buf[3] = h.ExpID
	binary.LittleEndian.PutUint16(buf[4:6], h.SessionID)
	binary.LittleEndian.PutUint16(buf[6:8], h.SeqNum)
	buf[8] = h.TxPower
	buf[9] = h.SFCR
	return buf
}

// DecodeHeader parses the fixed header from the front of buf. It never
// reads past HeaderSize bytes.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortBuffer
	}
	return Header{
		VerType:   buf[0],
		Src:       buf[1],
		Dst:       buf[2],
		ExpID:     buf[3],
		SessionID: binary.LittleEndian.Uint16(buf[4:6]),
		SeqNum:    binary.LittleEndian.Uint16(buf[6:8]),
		TxPower:   buf[8],
		SFCR:      buf[9],
	}, nil
}

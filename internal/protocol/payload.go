package protocol

import "encoding/binary"

// Payload is the tagged variant carried after the header. Exactly one
// payload shape exists per packet type, and encoding never emits more
// bytes than the active variant occupies on the wire.
type Payload interface {
	PacketType() PacketType
	encode() []byte
}

// AudioStart announces a transfer: how many fragments follow and the
// metadata needed to play the reassembled audio. CRC16 covers the
// preceding 11 bytes of this payload, never itself.
type AudioStart struct {
	TotalFrags uint16
	CodecID    CodecID
	SampleHz   uint16
	DurationMs uint16
	TotalSize  uint32
	CRC16      uint16
}

func (p AudioStart) PacketType() PacketType { return TypeAudioStart }

func (p AudioStart) encode() []byte {
	buf := make([]byte, AudioStartSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.TotalFrags)
	buf[2] = uint8(p.CodecID)
	binary.LittleEndian.PutUint16(buf[3:5], p.SampleHz)
	binary.LittleEndian.PutUint16(buf[5:7], p.DurationMs)
	binary.LittleEndian.PutUint32(buf[7:11], p.TotalSize)
	binary.LittleEndian.PutUint16(buf[11:13], p.CRC16)
	return buf
}

// ComputeCRC16 returns the checksum over every field preceding CRC16.
func (p AudioStart) ComputeCRC16() uint16 {
	return Checksum16(p.encode()[:AudioStartSize-2])
}

// Seal fills in the CRC16 field and returns the payload ready to send.
func (p AudioStart) Seal() AudioStart {
	p.CRC16 = p.ComputeCRC16()
	return p
}

// VerifyCRC16 recomputes the checksum and compares it against the
// transmitted value.
func (p AudioStart) VerifyCRC16() bool {
	return p.ComputeCRC16() == p.CRC16
}

// AudioData carries one fragment of the original payload. Only len(Data)
// bytes follow the header on the wire; the receiver recovers the length
// from the frame size.
type AudioData struct {
	Data []byte
}

func (p AudioData) PacketType() PacketType { return TypeAudioData }

func (p AudioData) encode() []byte { return p.Data }

// AudioEnd closes a transfer with the claimed fragment count and the
// CRC32 of the entire original payload. Reserved is always zero.
type AudioEnd struct {
	FragCount uint16
	CRC32     uint32
	Reserved  uint8
}

func (p AudioEnd) PacketType() PacketType { return TypeAudioEnd }

func (p AudioEnd) encode() []byte {
	buf := make([]byte, AudioEndSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.FragCount)
	binary.LittleEndian.PutUint32(buf[2:6], p.CRC32)
	buf[6] = p.Reserved
	return buf
}

// Ack reports the receiver's verdict for one acknowledged sequence number.
type Ack struct {
	AckSeq uint16
	Status AckStatus
}

func (p Ack) PacketType() PacketType { return TypeAck }

func (p Ack) encode() []byte {
	buf := make([]byte, AckSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.AckSeq)
	buf[2] = uint8(p.Status)
	return buf
}

// EncodeFrame serializes header plus payload into one wire frame. The
// header's type nibble is forced to match the payload variant.
func EncodeFrame(h Header, p Payload) ([]byte, error) {
	if d, ok := p.(AudioData); ok && len(d.Data) > MaxDataPayload {
		return nil, ErrPayloadTooLarge
	}
	h.VerType = MakeVerType(h.Version(), p.PacketType())
	body := p.encode()
	if HeaderSize+len(body) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	frame := make([]byte, 0, HeaderSize+len(body))
	frame = append(frame, h.Encode()...)
	frame = append(frame, body...)
	return frame, nil
}

// DecodeFrame parses a complete frame into its header and payload. The
// payload slice of an AudioData result is copied out of buf.
func DecodeFrame(buf []byte) (Header, Payload, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Header{}, nil, err
	}
	p, err := DecodePayload(h.Type(), buf[HeaderSize:])
	if err != nil {
		return Header{}, nil, err
	}
	return h, p, nil
}

// DecodePayload parses the payload bytes following the header for the
// given packet type. It never reads past buf.
func DecodePayload(typ PacketType, buf []byte) (Payload, error) {
	switch typ {
	case TypeAudioStart:
		if len(buf) < AudioStartSize {
			return nil, ErrShortBuffer
		}
		return AudioStart{
			TotalFrags: binary.LittleEndian.Uint16(buf[0:2]),
			CodecID:    CodecID(buf[2]),
			SampleHz:   binary.LittleEndian.Uint16(buf[3:5]),
			DurationMs: binary.LittleEndian.Uint16(buf[5:7]),
			TotalSize:  binary.LittleEndian.Uint32(buf[7:11]),
			CRC16:      binary.LittleEndian.Uint16(buf[11:13]),
		}, nil
	case TypeAudioData:
		if len(buf) > MaxDataPayload {
			return nil, ErrPayloadTooLarge
		}
		data := make([]byte, len(buf))
		copy(data, buf)
		return AudioData{Data: data}, nil
	case TypeAudioEnd:
		if len(buf) < AudioEndSize {
			return nil, ErrShortBuffer
		}
		return AudioEnd{
			FragCount: binary.LittleEndian.Uint16(buf[0:2]),
			CRC32:     binary.LittleEndian.Uint32(buf[2:6]),
			Reserved:  buf[6],
		}, nil
	case TypeAck:
		if len(buf) < AckSize {
			return nil, ErrShortBuffer
		}
		return Ack{
			AckSeq: binary.LittleEndian.Uint16(buf[0:2]),
			Status: AckStatus(buf[2]),
		}, nil
	default:
		return nil, ErrUnknownType
	}
}

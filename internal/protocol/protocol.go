// Package protocol defines the on-wire format for point-to-point audio
// transfer between two LoRa nodes: a fixed 10-byte header, four payload
// variants (start, data fragment, end, ack) and the checksums used to
// detect corruption. All multi-byte fields are little-endian.
package protocol

// ProtocolVersion is carried in the high nibble of the first header byte.
const ProtocolVersion = 1

// Radio frame limits. The modem rejects anything above MaxFrameSize, so a
// data fragment can carry at most MaxDataPayload bytes after the header.
const (
	MaxFrameSize   = 255
	HeaderSize     = 10
	MaxDataPayload = MaxFrameSize - HeaderSize
)

// Fixed payload sizes on the wire. AudioData has no fixed size: its length
// is implicit in the frame size minus the header.
const (
	AudioStartSize = 13
	AudioEndSize   = 7
	AckSize        = 3
)

// PacketType identifies the payload variant carried after the header.
type PacketType uint8

const (
	TypeAudioStart PacketType = 0x01
	TypeAudioData  PacketType = 0x02
	TypeAudioEnd   PacketType = 0x03
	TypeAck        PacketType = 0x04
)

func (t PacketType) String() string {
	switch t {
	case TypeAudioStart:
		return "AUDIO_START"
	case TypeAudioData:
		return "AUDIO_DATA"
	case TypeAudioEnd:
		return "AUDIO_END"
	case TypeAck:
		return "ACK"
	default:
		return "UNKNOWN"
	}
}

// CodecID describes the encoding of the transferred audio payload.
type CodecID uint8

const (
	CodecRawPCM     CodecID = 0x00
	CodecCompressed CodecID = 0x01
)

// AckStatus is the receiver's verdict reported in an Ack payload.
type AckStatus uint8

const (
	AckOK               AckStatus = 0x00
	AckChecksumError    AckStatus = 0x01
	AckFragmentsMissing AckStatus = 0x02
)

func (s AckStatus) String() string {
	switch s {
	case AckOK:
		return "OK"
	case AckChecksumError:
		return "CHECKSUM_ERROR"
	case AckFragmentsMissing:
		return "FRAGMENTS_MISSING"
	default:
		return "UNKNOWN"
	}
}

// MakeVerType packs protocol version (high nibble) and packet type
// (low nibble) into one byte.
func MakeVerType(version uint8, typ PacketType) uint8 {
	return (version&0x0F)<<4 | uint8(typ)&0x0F
}

// MakeSFCR packs spreading factor (high nibble) and coding-rate
// denominator (low nibble, 5 means 4/5) into one byte.
func MakeSFCR(sf, cr uint8) uint8 {
	return (sf&0x0F)<<4 | cr&0x0F
}

// TotalFragments returns how many data fragments a payload of totalSize
// bytes splits into at MaxDataPayload bytes per fragment.
func TotalFragments(totalSize uint32) uint16 {
	return uint16((totalSize + MaxDataPayload - 1) / MaxDataPayload)
}

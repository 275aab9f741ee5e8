package protocol

import (
	"bytes"
	"testing"
)

func TestVerTypeNibbleRoundTrip(t *testing.T) {
	for version := uint8(0); version < 16; version++ {
		for typ := uint8(0); typ < 16; typ++ {
			h := Header{VerType: MakeVerType(version, PacketType(typ))}
			if h.Version() != version {
				t.Fatalf("version mismatch: got %d want %d", h.Version(), version)
			}
			if uint8(h.Type()) != typ {
				t.Fatalf("type mismatch: got %d want %d", h.Type(), typ)
			}
		}
	}
}

func TestSFCRNibbleRoundTrip(t *testing.T) {
	for sf := uint8(0); sf < 16; sf++ {
		for cr := uint8(0); cr < 16; cr++ {
			h := Header{SFCR: MakeSFCR(sf, cr)}
			if h.SpreadingFactor() != sf {
				t.Fatalf("sf mismatch: got %d want %d", h.SpreadingFactor(), sf)
			}
			if h.CodingRate() != cr {
				t.Fatalf("cr mismatch: got %d want %d", h.CodingRate(), cr)
			}
		}
	}
}

func TestHeaderEncodeLayout(t *testing.T) {
	h := Header{
		VerType:   MakeVerType(ProtocolVersion, TypeAudioStart),
		Src:       0x01,
		Dst:       0x02,
		ExpID:     0x07,
		SessionID: 0xBEEF,
		SeqNum:    0x0102,
		TxPower:   14,
		SFCR:      MakeSFCR(7, 5),
	}
	want := []byte{0x11, 0x01, 0x02, 0x07, 0xEF, 0xBE, 0x02, 0x01, 0x0E, 0x75}
	if got := h.Encode(); !bytes.Equal(got, want) {
		t.Fatalf("header layout mismatch: got %x want %x", got, want)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	want := Header{
		VerType:   MakeVerType(ProtocolVersion, TypeAck),
		Src:       0xAA,
		Dst:       0xBB,
		ExpID:     0x03,
		SessionID: 0x1234,
		SeqNum:    0xFFFE,
		TxPower:   22,
		SFCR:      MakeSFCR(12, 8),
	}
	got, err := DecodeHeader(want.Encode())
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if got != want {
		t.Fatalf("header mismatch: got %+v want %+v", got, want)
	}
}

func TestDecodeHeaderShortBuffer(t *testing.T) {
	if _, err := DecodeHeader(make([]byte, HeaderSize-1)); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestFrameRoundTrips(t *testing.T) {
	cases := []struct {
		name    string
		payload Payload
	}{
		{"audio_start", AudioStart{TotalFrags: 3, CodecID: CodecRawPCM, SampleHz: 8000, DurationMs: 64, TotalSize: 512}.Seal()},
		{"audio_data", AudioData{Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}}},
		{"audio_data_empty", AudioData{}},
		{"audio_end", AudioEnd{FragCount: 3, CRC32: 0xCBF43926}},
		{"ack", Ack{AckSeq: 41, Status: AckFragmentsMissing}},
	}
	hdr := Header{
		VerType:   MakeVerType(ProtocolVersion, 0),
		Src:       1,
		Dst:       2,
		SessionID: 0x4242,
		SeqNum:    7,
		TxPower:   14,
		SFCR:      MakeSFCR(7, 5),
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := EncodeFrame(hdr, tc.payload)
			if err != nil {
				t.Fatalf("encode frame: %v", err)
			}

			gotHdr, gotPayload, err := DecodeFrame(frame)
			if err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			if gotHdr.Type() != tc.payload.PacketType() {
				t.Fatalf("type mismatch: got %v want %v", gotHdr.Type(), tc.payload.PacketType())
			}
			if gotHdr.SeqNum != hdr.SeqNum || gotHdr.SessionID != hdr.SessionID {
				t.Fatalf("header fields lost: got %+v", gotHdr)
			}

			switch want := tc.payload.(type) {
			case AudioData:
				got, ok := gotPayload.(AudioData)
				if !ok {
					t.Fatalf("expected AudioData, got %T", gotPayload)
				}
				if !bytes.Equal(got.Data, want.Data) {
					t.Fatalf("data mismatch: got %x want %x", got.Data, want.Data)
				}
			default:
				if gotPayload != tc.payload {
					t.Fatalf("payload mismatch: got %+v want %+v", gotPayload, tc.payload)
				}
			}
		})
	}
}

func TestAudioDataWireSizeIsExact(t *testing.T) {
	// Only the valid bytes may follow the header, never a full-size buffer.
	frame, err := EncodeFrame(Header{}, AudioData{Data: make([]byte, 22)})
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	if len(frame) != HeaderSize+22 {
		t.Fatalf("frame size: got %d want %d", len(frame), HeaderSize+22)
	}
}

func TestEncodeFrameRejectsOversizedData(t *testing.T) {
	_, err := EncodeFrame(Header{}, AudioData{Data: make([]byte, MaxDataPayload+1)})
	if err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecodePayloadShortBuffers(t *testing.T) {
	cases := []struct {
		typ  PacketType
		size int
	}{
		{TypeAudioStart, AudioStartSize - 1},
		{TypeAudioEnd, AudioEndSize - 1},
		{TypeAck, AckSize - 1},
	}
	for _, tc := range cases {
		if _, err := DecodePayload(tc.typ, make([]byte, tc.size)); err != ErrShortBuffer {
			t.Fatalf("type %v: expected ErrShortBuffer, got %v", tc.typ, err)
		}
	}
}

func TestDecodePayloadUnknownType(t *testing.T) {
	if _, err := DecodePayload(PacketType(0x0F), nil); err != ErrUnknownType {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestAudioStartSealVerify(t *testing.T) {
	p := AudioStart{TotalFrags: 10, CodecID: CodecCompressed, SampleHz: 16000, DurationMs: 1200, TotalSize: 2450}.Seal()
	if !p.VerifyCRC16() {
		t.Fatalf("sealed payload failed verification: crc=0x%04X", p.CRC16)
	}

	p.TotalSize++
	if p.VerifyCRC16() {
		t.Fatalf("verification passed after field mutation")
	}
}

func TestTotalFragments(t *testing.T) {
	cases := []struct {
		size uint32
		want uint16
	}{
		{0, 0},
		{1, 1},
		{244, 1},
		{245, 1},
		{246, 2},
		{512, 3},
		{245 * 22, 22},
	}
	for _, tc := range cases {
		if got := TotalFragments(tc.size); got != tc.want {
			t.Fatalf("TotalFragments(%d): got %d want %d", tc.size, got, tc.want)
		}
	}
}

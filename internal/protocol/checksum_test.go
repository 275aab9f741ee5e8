package protocol

import "testing"

func TestChecksum16KnownVectors(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", nil, 0xFFFF},
		{"check_string", []byte("123456789"), 0x29B1},
	}
	for _, tc := range cases {
		if got := Checksum16(tc.data); got != tc.want {
			t.Fatalf("%s: got 0x%04X want 0x%04X", tc.name, got, tc.want)
		}
	}
}

func TestChecksum32KnownVectors(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want uint32
	}{
		{"empty", nil, 0x00000000},
		{"check_string", []byte("123456789"), 0xCBF43926},
	}
	for _, tc := range cases {
		if got := Checksum32(tc.data); got != tc.want {
			t.Fatalf("%s: got 0x%08X want 0x%08X", tc.name, got, tc.want)
		}
	}
}

func TestChecksumDeterminism(t *testing.T) {
	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i * 7)
	}
	if Checksum16(data) != Checksum16(data) {
		t.Fatalf("Checksum16 not deterministic")
	}
	if Checksum32(data) != Checksum32(data) {
		t.Fatalf("Checksum32 not deterministic")
	}
}

func TestDigest32MatchesOnePass(t *testing.T) {
	data := make([]byte, 245*3)
	for i := range data {
		data[i] = byte(i)
	}

	var d Digest32
	for off := 0; off < len(data); off += 100 {
		end := off + 100
		if end > len(data) {
			end = len(data)
		}
		d.Write(data[off:end])
	}
	if d.Sum() != Checksum32(data) {
		t.Fatalf("incremental crc 0x%08X != one-pass 0x%08X", d.Sum(), Checksum32(data))
	}

	d.Reset()
	if d.Sum() != 0 {
		t.Fatalf("reset digest not zero")
	}
}

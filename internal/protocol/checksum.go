package protocol

import "hash/crc32"

// Checksum16 computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF, no
// final XOR). Used over small control payloads only; both ends must agree
// bit for bit.
func Checksum16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Checksum32 computes the standard reflected CRC-32 (poly 0xEDB88320,
// init 0xFFFFFFFF, final complement) over the whole buffer in one pass.
func Checksum32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Digest32 accumulates the same CRC-32 incrementally. Sum is bit-identical
// to Checksum32 over the concatenation of all written chunks.
type Digest32 struct {
	crc uint32
}

func (d *Digest32) Write(p []byte) {
	d.crc = crc32.Update(d.crc, crc32.IEEETable, p)
}

func (d *Digest32) Sum() uint32 {
	return d.crc
}

func (d *Digest32) Reset() {
	d.crc = 0
}

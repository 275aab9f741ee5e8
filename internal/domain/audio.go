// Package domain holds the value types shared between the engines and
// the peripheral surfaces.
package domain

import "github.com/skobkin/loracast/internal/protocol"

// AudioClip is one complete audio payload plus the metadata announced in
// the transfer's start packet.
type AudioClip struct {
	Data       []byte
	Codec      protocol.CodecID
	SampleHz   uint16
	DurationMs uint16
}

// Size returns the payload size in bytes as carried on the wire.
func (c AudioClip) Size() uint32 {
	return uint32(len(c.Data))
}

package protocol

import "errors"

var (
	// ErrShortBuffer reports a buffer smaller than the structure it was
	// asked to hold.
	ErrShortBuffer = errors.New("buffer too short")
	// ErrPayloadTooLarge reports a data fragment above MaxDataPayload.
	ErrPayloadTooLarge = errors.New("payload exceeds max fragment size")
	// ErrFrameTooLarge reports an encoded frame above MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame exceeds max frame size")
	// ErrUnknownType reports a header whose type nibble matches no
	// known packet type.
	ErrUnknownType = errors.New("unknown packet type")
)

package events

import (
	"time"

	"github.com/skobkin/loracast/internal/channel"
	"github.com/skobkin/loracast/internal/protocol"
)

// LinkState mirrors the node's radio activity for the status surface.
type LinkState string

const (
	LinkIdle         LinkState = "idle"
	LinkTransmitting LinkState = "transmitting"
	LinkReceiving    LinkState = "receiving"
	LinkFail         LinkState = "fail"
)

// ConnStatus is published whenever the link state changes.
type ConnStatus struct {
	State     LinkState
	Err       string
	Timestamp time.Time
}

// Frame is published for every frame put on or taken off the channel.
type Frame struct {
	Type      protocol.PacketType
	SeqNum    uint16
	SessionID uint16
	Len       int
	Signal    channel.SignalReport // zero value on the transmit side
}

// TransferProgress is published per acknowledged data fragment.
type TransferProgress struct {
	SessionID uint16
	Fragment  uint16
	Total     uint16
}

// TransferOutcome identifies how a transfer session ended.
type TransferOutcome string

const (
	OutcomeOK               TransferOutcome = "ok"
	OutcomeChecksumError    TransferOutcome = "checksum_error"
	OutcomeFragmentsMissing TransferOutcome = "fragments_missing"
	OutcomeAborted          TransferOutcome = "aborted"
)

// TransferDone is published once per completed or failed session.
type TransferDone struct {
	SessionID  uint16
	Outcome    TransferOutcome
	Bytes      uint32
	Fragments  uint16
	StartedAt  time.Time
	FinishedAt time.Time
}

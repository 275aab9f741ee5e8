// Package events defines the bus topics and event payloads exchanged
// between the engines and the peripheral surfaces (status reporter,
// metrics recorder).
package events

const (
	TopicConnStatus       = "conn.status"
	TopicFrameOut         = "frame.out"
	TopicFrameIn          = "frame.in"
	TopicTransferProgress = "transfer.progress"
	TopicTransferDone     = "transfer.done"
)

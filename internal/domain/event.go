package domain

// PlatformEvent is one inbound chat platform webhook callback.
type PlatformEvent interface {
	platformEvent()
}

// ChallengeEvent is the webhook verification handshake.
type ChallengeEvent struct {
	Challenge string
}

// MessageEvent is a relayable channel message.
type MessageEvent struct {
	EventID string
	Channel string
	Message PlatformMessage
}

// IgnoredEvent is any callback the relay acknowledges without work.
type IgnoredEvent struct {
	Reason string
}

func (ChallengeEvent) platformEvent() {}
func (MessageEvent) platformEvent()   {}
func (IgnoredEvent) platformEvent()   {}

// RelayResult is the outcome of handling a platform event.
type RelayResult struct {
	Challenge string
	Delivered int
	Pruned    int
	Duplicate bool
}

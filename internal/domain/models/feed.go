package models

// FeedEventType enumerates transport events of a FeedConnection.
type FeedEventType int

const (
	FeedOpened FeedEventType = iota + 1
	FeedMessage
	FeedClosed
	FeedError
)

func (t FeedEventType) String() string {
	switch t {
	case FeedOpened:
		return "opened"
	case FeedMessage:
		return "message"
	case FeedClosed:
		return "closed"
	case FeedError:
		return "error"
	default:
		return "unknown"
	}
}

// CloseCause tells a requested close from a fault.
type CloseCause int

const (
	CloseFault CloseCause = iota
	CloseManual
)

func (c CloseCause) String() string {
	if c == CloseManual {
		return "manual"
	}
	return "fault"
}

// FeedEvent is delivered by a FeedConnection to its handler.
type FeedEvent struct {
	Type    FeedEventType
	Payload []byte // FeedMessage only, undecoded
	Reason  string
	Cause   CloseCause
	Err     error
}

// ConnState is the lifecycle state of one connection attempt.
type ConnState int

const (
	// ConnIdle is the zero value of a connection that has not been opened.
	ConnIdle ConnState = iota
	ConnOpening
	ConnOpen
	ConnClosing
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnOpening:
		return "opening"
	case ConnOpen:
		return "open"
	case ConnClosing:
		return "closing"
	case ConnClosed:
		return "closed"
	default:
		return "idle"
	}
}

package inspect

// ChannelSink forwards every inspection event onto a Go channel, dropping
// on backpressure rather than blocking the actor loop — the same
// non-blocking-send-with-drop discipline as the teacher's ChannelPublisher
// (internal/production/eventpublisher.go).
type ChannelSink struct {
	ch chan<- Event
}

// NewChannelSink wraps ch. The caller owns ch's lifetime (closing it is the
// caller's responsibility, mirroring ChannelPublisher.Close).
func NewChannelSink(ch chan<- Event) *ChannelSink {
	return &ChannelSink{ch: ch}
}

func (s *ChannelSink) Inspect(ev Event) {
	select {
	case s.ch <- ev:
	default:
	}
}

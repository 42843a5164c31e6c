package inspect

import "github.com/comalice/actorstate/actorlog"

// LogSink writes every inspection event as a structured log line through
// actorlog.Logger, at a level chosen by Kind: KindError and KindEffect log
// at Warn (the loop itself decides whether a fault is fatal), everything
// else at Debug
// so a sink can be left wired in production without flooding Info.
type LogSink struct {
	log *actorlog.Logger
}

// NewLogSink wraps log.
func NewLogSink(log *actorlog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Inspect(ev Event) {
	entry := s.log.WithActor(ev.ActorID, ev.MachineType).WithField("kind", string(ev.Kind))

	switch ev.Kind {
	case KindSpawn, KindStop:
		entry.WithField("state", ev.State.Tag).Debug("actor lifecycle event")
	case KindEvent:
		entry.WithField("event", ev.Event.Tag).Debug("actor received event")
	case KindTransition:
		entry.WithFields(map[string]any{
			"previous": ev.Previous.Tag,
			"next":     ev.Next.Tag,
			"reentered": ev.LifecycleRan,
		}).Debug("actor transitioned")
	case KindEffect:
		entry.WithFields(map[string]any{
			"phase": ev.Phase,
			"error": errString(ev.Err),
		}).Warn("actor effect fault")
	case KindError:
		entry.WithFields(map[string]any{
			"phase": ev.Phase,
			"error": errString(ev.Err),
		}).Warn("actor defect")
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

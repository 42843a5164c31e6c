package inspect

// MultiSink fans one inspection event out to several sinks, each isolated
// by Dispatch's panic recovery so one faulty sink cannot suppress delivery
// to the others.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks into one.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Inspect(ev Event) {
	for _, s := range m.sinks {
		Dispatch(s, ev)
	}
}

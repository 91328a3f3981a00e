package session

// Sink abstracts the display layer so the controller can report
// without knowing what renders it. All methods are called from
// session goroutines and must not block.
type Sink interface {
	Status(state State, detail string)
	Caption(text string)
	Level(rms float64)
	FrameRate(framesPerSecond int)
	ContextLabel(label string)
	Advisories(tips []string)
	Muted(muted bool)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Status(State, string) {}
func (NopSink) Caption(string)       {}
func (NopSink) Level(float64)        {}
func (NopSink) FrameRate(int)        {}
func (NopSink) ContextLabel(string)  {}
func (NopSink) Advisories([]string)  {}
func (NopSink) Muted(bool)           {}

package session

import "sync"

// FakeSink records every event for assertions.
type FakeSink struct {
	mu         sync.Mutex
	states     []State
	captions   []string
	labels     []string
	advisories [][]string
	frameRates []int
	mutes      []bool
}

func NewFakeSink() *FakeSink { return &FakeSink{} }

func (f *FakeSink) Status(s State, _ string) {
	f.mu.Lock()
	f.states = append(f.states, s)
	f.mu.Unlock()
}

func (f *FakeSink) Level(float64) {}

func (f *FakeSink) Caption(text string) {
	f.mu.Lock()
	f.captions = append(f.captions, text)
	f.mu.Unlock()
}

func (f *FakeSink) FrameRate(fps int) {
	f.mu.Lock()
	f.frameRates = append(f.frameRates, fps)
	f.mu.Unlock()
}

func (f *FakeSink) ContextLabel(label string) {
	f.mu.Lock()
	f.labels = append(f.labels, label)
	f.mu.Unlock()
}

func (f *FakeSink) Advisories(tips []string) {
	f.mu.Lock()
	f.advisories = append(f.advisories, tips)
	f.mu.Unlock()
}

func (f *FakeSink) Muted(muted bool) {
	f.mu.Lock()
	f.mutes = append(f.mutes, muted)
	f.mu.Unlock()
}

func (f *FakeSink) States() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]State, len(f.states))
	copy(out, f.states)
	return out
}

func (f *FakeSink) Captions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.captions))
	copy(out, f.captions)
	return out
}

func (f *FakeSink) Labels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.labels))
	copy(out, f.labels)
	return out
}

func (f *FakeSink) AdvisorySets() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.advisories))
	copy(out, f.advisories)
	return out
}

package vision

import (
	"context"
	"sync"
	"sync/atomic"
)

// FakeClassifier returns scripted labels and advisories and records
// call counts for scheduling tests.
type FakeClassifier struct {
	mu         sync.Mutex
	labels     []string
	advisories []string

	ClassifyErr error
	AdviseErr   error

	// Block, when non-nil, is closed by the test to release an
	// in-flight Classify call.
	Block chan struct{}

	ClassifyCalls atomic.Int64
	AdviseCalls   atomic.Int64
}

func NewFakeClassifier(labels ...string) *FakeClassifier {
	return &FakeClassifier{labels: labels}
}

func (f *FakeClassifier) SetAdvisories(tips ...string) {
	f.mu.Lock()
	f.advisories = tips
	f.mu.Unlock()
}

func (f *FakeClassifier) Classify(ctx context.Context, _ []byte) (string, error) {
	f.ClassifyCalls.Add(1)
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.ClassifyErr != nil {
		return "", f.ClassifyErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.labels) == 0 {
		return UnknownLabel, nil
	}
	label := f.labels[0]
	if len(f.labels) > 1 {
		f.labels = f.labels[1:]
	}
	return label, nil
}

func (f *FakeClassifier) Advise(_ context.Context, _ string) ([]string, error) {
	f.AdviseCalls.Add(1)
	if f.AdviseErr != nil {
		return FallbackAdvisories(), f.AdviseErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.advisories) == 0 {
		return FallbackAdvisories(), nil
	}
	out := make([]string, len(f.advisories))
	copy(out, f.advisories)
	return out, nil
}

package capture

import (
	"testing"

	"github.com/retropreserve/uff/flux"
)

type fakeSource struct{}

func (fakeSource) CaptureTrack(cylinder, head, revolutions int) (Session, error) {
	revs := make([]flux.Revolution, revolutions)
	for i := range revs {
		revs[i] = flux.Revolution{Samples: []flux.Sample{100, 100, 100}, Confidence: 90}
	}
	return Session{Cylinder: cylinder, Head: head, Revolutions: revs}, nil
}

func TestSourceInterfaceSatisfiedByFake(t *testing.T) {
	var src Source = fakeSource{}
	session, err := src.CaptureTrack(1, 0, 3)
	if err != nil {
		t.Fatalf("CaptureTrack: %v", err)
	}
	if len(session.Revolutions) != 3 {
		t.Fatalf("Revolutions count = %d, want 3", len(session.Revolutions))
	}
}

package uffcore

import (
	"testing"

	"github.com/retropreserve/uff/capture"
	"github.com/retropreserve/uff/flux"
	"github.com/retropreserve/uff/g64"
)

func TestProbeUnknownFormatWraps(t *testing.T) {
	_, err := Probe([]byte{1, 2, 3})
	if err == nil {
		t.Fatalf("expected an error for an unrecognizable buffer")
	}
	var facadeErr *Error
	if e, ok := err.(*Error); ok {
		facadeErr = e
	} else {
		t.Fatalf("err type = %T, want *uffcore.Error", err)
	}
	if facadeErr.Kind != "UnsupportedVariant" {
		t.Fatalf("Kind = %q, want UnsupportedVariant", facadeErr.Kind)
	}
}

func TestFuseTrackRejectsEmptyInput(t *testing.T) {
	_, err := FuseTrack(nil, nil)
	if err == nil {
		t.Fatalf("expected an error for zero revolutions")
	}
}

func TestFuseTrackProducesFusedFlux(t *testing.T) {
	revs := []flux.Revolution{
		{Samples: []flux.Sample{100, 100, 100}, Confidence: 90},
		{Samples: []flux.Sample{102, 98, 101}, Confidence: 85},
	}
	track, err := FuseTrack(revs, nil)
	if err != nil {
		t.Fatalf("FuseTrack: %v", err)
	}
	if len(track.FusedFlux) != 3 {
		t.Fatalf("FusedFlux length = %d, want 3", len(track.FusedFlux))
	}
}

func TestExportD64RejectsNilImage(t *testing.T) {
	_, err := ExportD64(nil)
	if err == nil {
		t.Fatalf("expected an error for a nil image")
	}
}

func TestExportD64ProducesStandardSize(t *testing.T) {
	out, err := ExportD64(&g64.Image{})
	if err != nil {
		t.Fatalf("ExportD64: %v", err)
	}
	if len(out) != 174848+683 {
		t.Fatalf("export size = %d, want %d", len(out), 174848+683)
	}
}

func TestOpenAmigaDOSRejectsBadSize(t *testing.T) {
	_, err := OpenAmigaDOS(make([]byte, 100))
	if err == nil {
		t.Fatalf("expected an error for a non-block-aligned image")
	}
}

func TestFuseAllHonoursCancel(t *testing.T) {
	cancel := make(chan struct{})
	close(cancel)
	sessions := []capture.Session{{Revolutions: []flux.Revolution{{Samples: []flux.Sample{1}, Confidence: 90}}}}
	_, err := FuseAll(sessions, nil, cancel)
	if err == nil {
		t.Fatalf("expected a cancellation error")
	}
}

func TestFuseAllFusesEverySession(t *testing.T) {
	sessions := []capture.Session{
		{Cylinder: 0, Head: 0, Revolutions: []flux.Revolution{{Samples: []flux.Sample{100, 100}, Confidence: 90}}},
		{Cylinder: 1, Head: 0, Revolutions: []flux.Revolution{{Samples: []flux.Sample{50, 50}, Confidence: 80}}},
	}
	tracks, err := FuseAll(sessions, nil, nil)
	if err != nil {
		t.Fatalf("FuseAll: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("fused %d tracks, want 2", len(tracks))
	}
	if tracks[1].Cylinder != 1 {
		t.Fatalf("cylinder not carried through: %d", tracks[1].Cylinder)
	}
}

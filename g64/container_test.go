package g64

import (
	"bytes"
	"testing"

	"github.com/retropreserve/uff/diagnosis"
)

func TestContainerRoundTrip(t *testing.T) {
	var data [256]byte
	for i := range data {
		data[i] = byte(255 - i)
	}
	raw := buildSector(1, 0, data)

	c := &Container{Version: 0, NumTracks: containerSlots, MaxTrackSize: 7928}
	c.RawTracks[0] = raw
	for i := range c.SpeedZones {
		c.SpeedZones[i] = uint32(SpeedZoneFor(i/2 + 1))
	}

	out := c.Write()
	if string(out[0:8]) != containerMagic {
		t.Fatalf("written container missing magic")
	}

	back, err := ReadContainer(out)
	if err != nil {
		t.Fatalf("ReadContainer: %v", err)
	}
	if back.NumTracks != containerSlots {
		t.Fatalf("NumTracks = %d, want %d", back.NumTracks, containerSlots)
	}
	if !bytes.Equal(back.RawTracks[0], raw) {
		t.Fatalf("track 1 raw data did not survive the round trip")
	}
	if back.RawTracks[1] != nil {
		t.Fatalf("absent track slot came back non-nil")
	}
	if back.SpeedZones[0] != 3 {
		t.Fatalf("speed zone for track 1 = %d, want 3", back.SpeedZones[0])
	}
}

func TestReadContainerRejectsBadMagic(t *testing.T) {
	data := make([]byte, containerMinSize)
	copy(data, "NOT-G64!")
	if _, err := ReadContainer(data); err != ErrBadContainer {
		t.Fatalf("err = %v, want ErrBadContainer", err)
	}
}

func TestContainerDecodeParsesTracks(t *testing.T) {
	var data [256]byte
	raw := buildSector(1, 0, data)

	c := &Container{NumTracks: containerSlots, MaxTrackSize: 7928}
	c.RawTracks[0] = raw // full track 1
	c.RawTracks[1] = raw // half-track 1.5

	log := &diagnosis.Log{}
	img := c.Decode(log)
	if len(img.Tracks) != 2 {
		t.Fatalf("decoded %d tracks, want 2", len(img.Tracks))
	}
	if img.Tracks[0].HalfTrack || !img.Tracks[1].HalfTrack {
		t.Fatalf("half-track flags wrong: %v %v", img.Tracks[0].HalfTrack, img.Tracks[1].HalfTrack)
	}
}

func TestExpectedTrackSizePerZone(t *testing.T) {
	want := map[int]int{0: 6250, 1: 6666, 2: 7142, 3: 7692}
	for zone, size := range want {
		if got := ExpectedTrackSize(zone); got != size {
			t.Fatalf("zone %d size = %d, want %d", zone, got, size)
		}
	}
}

func TestClassifyProtectionVMaxFromStats(t *testing.T) {
	img := &Image{Tracks: []*Track{{Number: 20}}}
	stats := ComputeDiskStats(img, map[int]bool{20: true})
	p, ok := ClassifyProtection(stats)
	if !ok || p.Name != "V-Max!" || p.Confidence != 0.85 {
		t.Fatalf("ClassifyProtection = %+v, want V-Max! at 0.85", p)
	}
}

package g64

import (
	"testing"

	"github.com/retropreserve/uff/diagnosis"
	"github.com/retropreserve/uff/gcr"
)

// buildSector synthesizes a raw GCR byte stream for a single sector: a
// sync run, an encoded header block, a second sync run, and an encoded
// 260-byte data block, mirroring the layout ParseTrack expects.
func buildSector(track, sector byte, data [256]byte) []byte {
	var out []byte
	sync := make([]byte, 6)
	for i := range sync {
		sync[i] = 0xff
	}
	out = append(out, sync...)

	csum := sector ^ track ^ 0 ^ 0
	h1 := gcr.Encode4to5([4]byte{0x08, csum, sector, track})
	h2 := gcr.Encode4to5([4]byte{0, 0, 0x0f, 0x0f})
	out = append(out, h1[:]...)
	out = append(out, h2[:]...)

	out = append(out, sync...)

	body := make([]byte, 260)
	body[0] = 0x07
	copy(body[1:257], data[:])
	body[257] = gcr.Checksum(data[:])

	for i := 0; i < 65; i++ {
		var block [4]byte
		copy(block[:], body[i*4:i*4+4])
		enc := gcr.Encode4to5(block)
		out = append(out, enc[:]...)
	}
	return out
}

func TestParseTrackDecodesCleanSector(t *testing.T) {
	var data [256]byte
	for i := range data {
		data[i] = byte(i)
	}
	raw := buildSector(1, 0, data)

	log := &diagnosis.Log{}
	track := ParseTrack(raw, 1, false, log)

	if len(track.Sectors) != 1 {
		t.Fatalf("decoded %d sectors, want 1", len(track.Sectors))
	}
	sec := track.Sectors[0]
	if !sec.HeaderOK || !sec.DataOK {
		t.Fatalf("sector decode failed: headerOK=%v dataOK=%v", sec.HeaderOK, sec.DataOK)
	}
	if sec.Data != data {
		t.Fatalf("decoded data does not match input")
	}
}

func TestParseTrackFlagsMissingSector(t *testing.T) {
	var data [256]byte
	raw := buildSector(5, 0, data)

	log := &diagnosis.Log{}
	ParseTrack(raw, 5, false, log)

	found := false
	for _, d := range log.Entries {
		if d.Code == diagnosis.CodeMissingSector {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a missing-sector diagnosis for a track with only 1/21 sectors present")
	}
}

func TestClassifyProtectionVorpal(t *testing.T) {
	p, ok := ClassifyProtection(DiskStats{WeakTracks: 2, HalfTracksWithData: 1})
	if !ok || p.Name != "Vorpal/RapidLok" {
		t.Fatalf("ClassifyProtection = %+v, want Vorpal/RapidLok", p)
	}
}

func TestClassifyProtectionNone(t *testing.T) {
	_, ok := ClassifyProtection(DiskStats{})
	if ok {
		t.Fatalf("expected no protection classification for a clean disk")
	}
}

func TestExportD64SizeMatchesStandard(t *testing.T) {
	img := &Image{}
	out := ExportD64(img, true)
	if len(out) != 174848+683 {
		t.Fatalf("export size = %d, want %d", len(out), 174848+683)
	}
}

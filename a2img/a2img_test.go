package a2img

import (
	"bytes"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	data := make([]byte, 143360) // 140K 5.25" image
	for i := range data {
		data[i] = byte(i * 3)
	}
	out := Write([4]byte{'R', 'T', 'R', 'O'}, FormatProDOS, data, []byte("archival copy"))

	f, err := Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.Format != FormatProDOS {
		t.Fatalf("format = %d, want ProDOS", f.Format)
	}
	if f.ProDOSBlocks != uint32(len(data)/512) {
		t.Fatalf("ProDOSBlocks = %d, want %d", f.ProDOSBlocks, len(data)/512)
	}
	if !bytes.Equal(f.Data, data) {
		t.Fatalf("data region did not survive the round trip")
	}
	if string(f.Comment) != "archival copy" {
		t.Fatalf("comment = %q", f.Comment)
	}

	geom, ok := f.Geometry()
	if !ok {
		t.Fatalf("sector-order image should expose a geometry")
	}
	if geom.TotalSectors != 560 || geom.SectorsPerTrack != 16 {
		t.Fatalf("geometry = %+v", geom)
	}
}

func TestNibbleImageHasNoGeometry(t *testing.T) {
	out := Write([4]byte{'R', 'T', 'R', 'O'}, FormatNibble, make([]byte, 6656), nil)
	f, err := Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, ok := f.Geometry(); ok {
		t.Fatalf("nibble-order image should not expose a sector geometry")
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	data := make([]byte, headerSize)
	copy(data, "4IMG")
	if _, err := Read(data); err != ErrBadMagic {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}

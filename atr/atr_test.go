package atr

import (
	"bytes"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	data := make([]byte, 92160) // standard 90K single density
	for i := range data {
		data[i] = byte(i)
	}
	out, err := Write(128, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.SizeBytes() != 92160 {
		t.Fatalf("SizeBytes = %d, want 92160", f.SizeBytes())
	}
	if f.SectorSize != 128 {
		t.Fatalf("SectorSize = %d, want 128", f.SectorSize)
	}
	if f.SectorCount() != 720 {
		t.Fatalf("SectorCount = %d, want 720", f.SectorCount())
	}

	sec, err := f.ReadSector(1)
	if err != nil {
		t.Fatalf("ReadSector(1): %v", err)
	}
	if !bytes.Equal(sec, data[:128]) {
		t.Fatalf("sector 1 does not match source data")
	}
}

func TestDoubleDensityBootSectors(t *testing.T) {
	// 180K double density: 3 boot sectors of 128 bytes + 717 of 256.
	size := 3*128 + 717*256
	data := make([]byte, size)
	data[3*128] = 0xAB // first byte of sector 4
	out, err := Write(256, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.SectorCount() != 720 {
		t.Fatalf("SectorCount = %d, want 720", f.SectorCount())
	}
	boot, err := f.ReadSector(1)
	if err != nil {
		t.Fatalf("ReadSector(1): %v", err)
	}
	if len(boot) != 128 {
		t.Fatalf("boot sector length = %d, want 128", len(boot))
	}
	sec4, err := f.ReadSector(4)
	if err != nil {
		t.Fatalf("ReadSector(4): %v", err)
	}
	if len(sec4) != 256 || sec4[0] != 0xAB {
		t.Fatalf("sector 4 = len %d first byte %#02x", len(sec4), sec4[0])
	}
}

func TestReadRejectsBadSignature(t *testing.T) {
	data := make([]byte, 32)
	if _, err := Read(data); err != ErrBadMagic {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}

package woz

import (
	"testing"
)

func buildInfoChunk(version, diskType, bitTiming byte) Chunk {
	data := make([]byte, 60)
	data[0] = version
	data[1] = diskType
	copy(data[5:37], "retropreserve test              ")
	data[39] = bitTiming
	return Chunk{ID: "INFO", Data: data}
}

func TestWriteReadRoundTrip(t *testing.T) {
	tmap := make([]byte, 160)
	for i := range tmap {
		tmap[i] = 0xFF
	}
	tmap[0] = 0

	out, err := Write(2, []Chunk{
		buildInfoChunk(2, 1, 32),
		{ID: "TMAP", Data: tmap},
		{ID: "META", Data: []byte("title\tTest Disk\nside\tA\n")},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.Version != 2 {
		t.Fatalf("version = %d, want 2", f.Version)
	}
	if !f.CRCOK {
		t.Fatalf("CRC mismatch on a freshly written file")
	}

	info, err := f.ParseInfo()
	if err != nil {
		t.Fatalf("ParseInfo: %v", err)
	}
	if info.DiskType != 1 || info.OptimalBitTiming != 32 {
		t.Fatalf("info = %+v", info)
	}

	gotTMAP, err := f.ParseTMAP()
	if err != nil {
		t.Fatalf("ParseTMAP: %v", err)
	}
	if gotTMAP[0] != 0 || gotTMAP[1] != 0xFF {
		t.Fatalf("TMAP round-trip wrong: %v %v", gotTMAP[0], gotTMAP[1])
	}

	meta, err := f.ParseMeta()
	if err != nil {
		t.Fatalf("ParseMeta: %v", err)
	}
	if meta["title"] != "Test Disk" || meta["side"] != "A" {
		t.Fatalf("meta = %v", meta)
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	data := make([]byte, 32)
	copy(data, "WOZ3")
	if _, err := Read(data); err != ErrBadMagic {
		t.Fatalf("err = %v, want ErrBadMagic", err)
	}
}

func TestReadFlagsCRCMismatch(t *testing.T) {
	out, err := Write(1, []Chunk{buildInfoChunk(1, 1, 0)})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	out[len(out)-1] ^= 0xFF

	f, err := Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.CRCOK {
		t.Fatalf("corrupted stream still reports CRCOK")
	}
}

func TestParseTRKS(t *testing.T) {
	trks := make([]byte, trksSlots*8)
	// Slot 0: starting block 3, 2 blocks, 50304 bits.
	trks[0] = 3
	trks[2] = 2
	trks[4] = 0x80
	trks[5] = 0xC4
	out, err := Write(2, []Chunk{{ID: "TRKS", Data: trks}})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	entries, err := f.ParseTRKS()
	if err != nil {
		t.Fatalf("ParseTRKS: %v", err)
	}
	if entries[0].StartingBlock != 3 || entries[0].BlockCount != 2 || entries[0].BitCount != 50304 {
		t.Fatalf("entry 0 = %+v", entries[0])
	}
}

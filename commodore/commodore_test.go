package commodore

import "testing"

func TestSectorsPerTrackD64Zones(t *testing.T) {
	cases := map[int]int{1: 21, 17: 21, 18: 19, 24: 19, 25: 18, 30: 18, 31: 17, 35: 17}
	for track, want := range cases {
		if got := D64.SectorsPerTrack(track); got != want {
			t.Fatalf("SectorsPerTrack(%d) = %d, want %d", track, got, want)
		}
	}
}

func TestSectorOffsetMatchesD64Size(t *testing.T) {
	total := 0
	for tr := 1; tr <= 35; tr++ {
		total += D64.SectorsPerTrack(tr) * 256
	}
	if total != 174848 {
		t.Fatalf("computed D64 size = %d, want 174848", total)
	}
	if off := D64.SectorOffset(36, 0); off != total {
		t.Fatalf("SectorOffset(36,0) = %d, want %d (total size)", off, total)
	}
}

func TestLoadBAMAndAllocNext(t *testing.T) {
	image := make([]byte, 174848)
	bamOffset := D64.SectorOffset(18, 0)
	// Track 1: 21 sectors, all free (3-byte bitmap, low 21 bits set).
	image[bamOffset+4] = 21
	image[bamOffset+5] = 0xff
	image[bamOffset+6] = 0xff
	image[bamOffset+7] = 0x1f

	bam, err := LoadBAM(D64, image)
	if err != nil {
		t.Fatalf("LoadBAM: %v", err)
	}
	if bam.FreeSectors[1] != 21 {
		t.Fatalf("FreeSectors[1] = %d, want 21", bam.FreeSectors[1])
	}

	track, sector, ok := bam.AllocNext(1)
	if !ok {
		t.Fatalf("AllocNext(1) failed to find a free sector")
	}
	if track != 1 {
		t.Fatalf("AllocNext track = %d, want 1", track)
	}
	if bam.FreeSectors[1] != 20 {
		t.Fatalf("FreeSectors[1] after alloc = %d, want 20", bam.FreeSectors[1])
	}
	_ = sector
}

func TestMatchFilenameWildcards(t *testing.T) {
	entry := PETSCIIPad([]byte("GAME"))
	if !MatchFilename(entry, []byte("GAME")) {
		t.Fatalf("exact match failed")
	}
	if !MatchFilename(entry, []byte("GA*")) {
		t.Fatalf("trailing wildcard match failed")
	}
	if !MatchFilename(entry, []byte("G?ME")) {
		t.Fatalf("single-char wildcard match failed")
	}
	if MatchFilename(entry, []byte("NOPE")) {
		t.Fatalf("non-matching pattern reported a match")
	}
}

func TestWalkDirectoryDetectsCycle(t *testing.T) {
	image := make([]byte, 174848)
	offset := D64.SectorOffset(18, 1)
	image[offset] = 18
	image[offset+1] = 1

	_, err := WalkDirectory(D64, image)
	if err == nil {
		t.Fatalf("expected a circular-chain error")
	}
}

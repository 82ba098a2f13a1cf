// Package commodore implements the Commodore directory/BAM engine shared by
// D64, D71, and D81 images: sector addressing, BAM load and allocation,
// directory walking, and PETSCII filename matching.
package commodore

import "fmt"

// Type identifies a Commodore disk image kind.
type Type int

const (
	D64 Type = iota
	D71
	D81
)

func (t Type) String() string {
	switch t {
	case D64:
		return "D64"
	case D71:
		return "D71"
	case D81:
		return "D81"
	default:
		return "unknown"
	}
}

// DirectoryTrack returns the track number holding the root directory.
func (t Type) DirectoryTrack() int {
	if t == D81 {
		return 40
	}
	return 18
}

// Interleave returns the type-specific sector interleave used by
// AllocNext.
func (t Type) Interleave() int {
	switch t {
	case D64:
		return 10
	case D71:
		return 6
	case D81:
		return 1
	default:
		return 10
	}
}

// sectorsPerTrackD64 is the 1541 zone table, shared by D64 and each side of
// D71.
func sectorsPerTrackD64(track int) int {
	switch {
	case track >= 1 && track <= 17:
		return 21
	case track >= 18 && track <= 24:
		return 19
	case track >= 25 && track <= 30:
		return 18
	default:
		return 17
	}
}

// SectorsPerTrack returns the sector count for track on a disk of type t.
// D71 track numbers run 1..70 (second side is track-35+35..); D81 is a
// uniform 40 sectors/track across 80 tracks.
func (t Type) SectorsPerTrack(track int) int {
	switch t {
	case D81:
		return 40
	case D71:
		if track > 35 {
			return sectorsPerTrackD64(track - 35)
		}
		return sectorsPerTrackD64(track)
	default:
		return sectorsPerTrackD64(track)
	}
}

// SectorOffset returns the linear byte offset of (track, sector) within a
// raw image of type t.
func (t Type) SectorOffset(track, sector int) int {
	offset := 0
	for tr := 1; tr < track; tr++ {
		offset += t.SectorsPerTrack(tr) * 256
	}
	return offset + sector*256
}

// BAM is the decoded free-space bitmap for one disk.
type BAM struct {
	Type        Type
	FreeSectors map[int]int    // track -> free sector count
	Bitmap      map[int][]byte // track -> bitmap bytes, bit=1 means free
	TotalFree   int
	Dirty       bool
}

func bitmapBytesFor(t Type) int {
	if t == D81 {
		return 5
	}
	return 3
}

// LoadBAM decodes the BAM sector(s) for the given disk image bytes, per
// the fixed layout each type uses: D64 18/0, D71 18/0 and 53/0, D81 40/1
// and 40/2.
func LoadBAM(t Type, image []byte) (*BAM, error) {
	bam := &BAM{Type: t, FreeSectors: map[int]int{}, Bitmap: map[int][]byte{}}

	switch t {
	case D64:
		if err := readBAMSector(t, image, 18, 0, 4, 1, 35, bam); err != nil {
			return nil, err
		}
	case D71:
		if err := readBAMSector(t, image, 18, 0, 4, 1, 35, bam); err != nil {
			return nil, err
		}
		if err := readBAMSector(t, image, 53, 0, 0, 36, 70, bam); err != nil {
			return nil, err
		}
	case D81:
		if err := readBAMSector(t, image, 40, 1, 16, 1, 40, bam); err != nil {
			return nil, err
		}
		if err := readBAMSector(t, image, 40, 2, 16, 41, 80, bam); err != nil {
			return nil, err
		}
	}

	for track, free := range bam.FreeSectors {
		if track == t.DirectoryTrack() {
			continue
		}
		bam.TotalFree += free
	}
	return bam, nil
}

func readBAMSector(t Type, image []byte, track, sector, entryBase, firstTrack, lastTrack int, bam *BAM) error {
	offset := t.SectorOffset(track, sector)
	if offset+256 > len(image) {
		return fmt.Errorf("commodore: BAM sector %d/%d out of range", track, sector)
	}
	data := image[offset : offset+256]
	bmBytes := bitmapBytesFor(t)
	entrySize := 1 + bmBytes

	for tr := firstTrack; tr <= lastTrack; tr++ {
		idx := entryBase + (tr-firstTrack)*entrySize
		if idx+entrySize > len(data) {
			break
		}
		bam.FreeSectors[tr] = int(data[idx])
		bitmap := make([]byte, bmBytes)
		copy(bitmap, data[idx+1:idx+1+bmBytes])
		bam.Bitmap[tr] = bitmap
	}
	return nil
}

func isSectorFree(bitmap []byte, sector int) bool {
	byteIdx := sector / 8
	bitIdx := uint(sector % 8)
	if byteIdx >= len(bitmap) {
		return false
	}
	return bitmap[byteIdx]&(1<<bitIdx) != 0
}

func setSectorFree(bitmap []byte, sector int, free bool) {
	byteIdx := sector / 8
	bitIdx := uint(sector % 8)
	if byteIdx >= len(bitmap) {
		return
	}
	if free {
		bitmap[byteIdx] |= 1 << bitIdx
	} else {
		bitmap[byteIdx] &^= 1 << bitIdx
	}
}

// AllocNext searches outward from nearTrack (delta 0, 1, -1, 2, -2, ...),
// skipping the directory track, and returns the first free sector honoring
// the type's interleave. It clears the allocated bit and updates counters.
func (b *BAM) AllocNext(nearTrack int) (track, sector int, ok bool) {
	dirTrack := b.Type.DirectoryTrack()
	maxTrack := 35
	if b.Type == D71 {
		maxTrack = 70
	} else if b.Type == D81 {
		maxTrack = 80
	}

	interleave := b.Type.Interleave()

	for delta := 0; delta <= maxTrack; delta++ {
		for _, sign := range []int{1, -1} {
			if delta == 0 && sign == -1 {
				continue
			}
			tr := nearTrack + sign*delta
			if tr < 1 || tr > maxTrack || tr == dirTrack {
				continue
			}
			bitmap, exists := b.Bitmap[tr]
			if !exists {
				continue
			}
			perTrack := b.Type.SectorsPerTrack(tr)
			// Interleave pass first, then linear: the interleave stride
			// only reaches every sector when it is coprime with the
			// track's sector count.
			for s := 0; s < perTrack; s++ {
				candidate := (s * interleave) % perTrack
				if isSectorFree(bitmap, candidate) {
					setSectorFree(bitmap, candidate, false)
					b.FreeSectors[tr]--
					b.TotalFree--
					b.Dirty = true
					return tr, candidate, true
				}
			}
			for s := 0; s < perTrack; s++ {
				if isSectorFree(bitmap, s) {
					setSectorFree(bitmap, s, false)
					b.FreeSectors[tr]--
					b.TotalFree--
					b.Dirty = true
					return tr, s, true
				}
			}
		}
	}
	return 0, 0, false
}

// IsFree reports whether (track, sector) is free in the loaded BAM.
func (b *BAM) IsFree(track, sector int) bool {
	bitmap, exists := b.Bitmap[track]
	if !exists {
		return false
	}
	return isSectorFree(bitmap, sector)
}

// Alloc marks (track, sector) allocated, updating the counters.
func (b *BAM) Alloc(track, sector int) bool {
	bitmap, exists := b.Bitmap[track]
	if !exists || !isSectorFree(bitmap, sector) {
		return false
	}
	setSectorFree(bitmap, sector, false)
	b.FreeSectors[track]--
	if track != b.Type.DirectoryTrack() {
		b.TotalFree--
	}
	b.Dirty = true
	return true
}

// Free marks (track, sector) free again, updating the counters.
func (b *BAM) Free(track, sector int) {
	bitmap, exists := b.Bitmap[track]
	if !exists || isSectorFree(bitmap, sector) {
		return
	}
	setSectorFree(bitmap, sector, true)
	b.FreeSectors[track]++
	if track != b.Type.DirectoryTrack() {
		b.TotalFree++
	}
	b.Dirty = true
}

// allocOnTrack returns the first free sector on track, marking it
// allocated. Used for directory-chain growth, which must stay on the
// directory track AllocNext otherwise skips.
func (b *BAM) allocOnTrack(track int) (int, bool) {
	bitmap, exists := b.Bitmap[track]
	if !exists {
		return 0, false
	}
	for s := 0; s < b.Type.SectorsPerTrack(track); s++ {
		if isSectorFree(bitmap, s) {
			setSectorFree(bitmap, s, false)
			b.FreeSectors[track]--
			if track != b.Type.DirectoryTrack() {
				b.TotalFree--
			}
			b.Dirty = true
			return s, true
		}
	}
	return 0, false
}

// DirEntry is one 32-byte directory slot.
type DirEntry struct {
	NextTrack, NextSector int
	FileType              byte
	FirstTrack, FirstSector int
	Filename                [16]byte
	RelTrack, RelSector     byte
	RelRecordLen            byte
	GeosType, GeosStruct    byte
	GeosInfoTrack, GeosInfoSector byte
	BlockCountLo, BlockCountHi    byte
}

const maxDirectorySectors = 100

// WalkDirectory follows the (next_track, next_sector) chain starting at
// the type's first directory sector, aborting on a cycle or after
// maxDirectorySectors sectors.
func WalkDirectory(t Type, image []byte) ([]DirEntry, error) {
	track, sector := t.DirectoryTrack(), 1
	if t == D81 {
		sector = 3
	}

	visited := map[[2]int]bool{}
	var entries []DirEntry

	for track != 0 {
		key := [2]int{track, sector}
		if visited[key] {
			return entries, fmt.Errorf("commodore: circular directory chain at %d/%d", track, sector)
		}
		visited[key] = true
		if len(visited) > maxDirectorySectors {
			return entries, fmt.Errorf("commodore: directory chain exceeds %d sectors", maxDirectorySectors)
		}

		offset := t.SectorOffset(track, sector)
		if offset+256 > len(image) {
			return entries, fmt.Errorf("commodore: directory sector %d/%d out of range", track, sector)
		}
		data := image[offset : offset+256]

		nextTrack := int(data[0])
		nextSector := int(data[1])

		for i := 0; i < 8; i++ {
			e := data[2+i*32:]
			var entry DirEntry
			entry.NextTrack = int(data[0])
			entry.NextSector = int(data[1])
			entry.FileType = e[0]
			entry.FirstTrack = int(e[1])
			entry.FirstSector = int(e[2])
			copy(entry.Filename[:], e[3:19])
			entry.RelTrack = e[19]
			entry.RelSector = e[20]
			entry.RelRecordLen = e[21]
			entry.GeosType = e[22]
			entry.GeosStruct = e[23]
			entry.GeosInfoTrack = e[24]
			entry.GeosInfoSector = e[25]
			entry.BlockCountLo = e[26]
			entry.BlockCountHi = e[27]
			if entry.FileType != 0 {
				entries = append(entries, entry)
			}
		}

		if nextTrack == 0 {
			break
		}
		track, sector = nextTrack, nextSector
	}

	return entries, nil
}

// PETSCIIPad pads name to 16 bytes with 0xA0 (shifted space), the
// directory-entry filename convention.
func PETSCIIPad(name []byte) [16]byte {
	var out [16]byte
	for i := range out {
		out[i] = 0xa0
	}
	copy(out[:], name)
	return out
}

// MatchFilename compares a padded 16-byte directory filename against a
// pattern supporting "*" (anchor-to-end wildcard) and "?" (single char).
func MatchFilename(entry [16]byte, pattern []byte) bool {
	ei, pi := 0, 0
	for pi < len(pattern) {
		if pattern[pi] == '*' {
			return true
		}
		if ei >= 16 {
			return false
		}
		if pattern[pi] != '?' && pattern[pi] != entry[ei] {
			return false
		}
		ei++
		pi++
	}
	for ; ei < 16; ei++ {
		if entry[ei] != 0xa0 {
			return false
		}
	}
	return true
}

package commodore

import "fmt"

// Image is a sector-addressed Commodore disk image. Created via
// FormatImage it owns its backing buffer; opened via OpenImage it borrows
// the caller's bytes and rejects mutation.
type Image struct {
	Type     Type
	data     []byte
	readOnly bool
}

// Mutation and catalog errors.
var (
	ErrReadOnly     = fmt.Errorf("commodore: mutating call on a read-only (borrowed) image")
	ErrNoFreeBlock  = fmt.Errorf("commodore: no free block available")
	ErrCatalogFull  = fmt.Errorf("commodore: directory has no free slot and cannot grow")
	ErrFileNotFound = fmt.Errorf("commodore: no directory entry matches")
	ErrFileLocked   = fmt.Errorf("commodore: file is locked")
)

// ImageSize returns the raw byte size of a standard image of type t,
// without a trailing error block.
func ImageSize(t Type) int {
	last := 35
	if t == D71 {
		last = 70
	} else if t == D81 {
		last = 80
	}
	return t.SectorOffset(last, t.SectorsPerTrack(last))
}

// OpenImage wraps data as a borrowed, read-only image.
func OpenImage(t Type, data []byte) (*Image, error) {
	if len(data) < ImageSize(t) {
		return nil, fmt.Errorf("commodore: image size %d is short of the %d bytes a %v needs", len(data), ImageSize(t), t)
	}
	return &Image{Type: t, data: data, readOnly: true}, nil
}

// OpenImageMutable copies data into an owned buffer so mutating calls are
// permitted without touching the caller's bytes.
func OpenImageMutable(t Type, data []byte) (*Image, error) {
	img, err := OpenImage(t, data)
	if err != nil {
		return nil, err
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	img.data = owned
	img.readOnly = false
	return img, nil
}

// Bytes returns the backing buffer.
func (img *Image) Bytes() []byte { return img.data }

func (img *Image) sector(track, sector int) []byte {
	off := img.Type.SectorOffset(track, sector)
	return img.data[off : off+256]
}

// FormatImage builds a fresh, empty image: header sector, BAM marking
// everything free except the directory structures, and a terminated
// directory chain.
func FormatImage(t Type, diskName string, diskID [2]byte) *Image {
	img := &Image{Type: t, data: make([]byte, ImageSize(t))}
	dirTrack := t.DirectoryTrack()

	bam := &BAM{Type: t, FreeSectors: map[int]int{}, Bitmap: map[int][]byte{}}
	lastTrack := 35
	if t == D71 {
		lastTrack = 70
	} else if t == D81 {
		lastTrack = 80
	}
	for tr := 1; tr <= lastTrack; tr++ {
		per := t.SectorsPerTrack(tr)
		bitmap := make([]byte, bitmapBytesFor(t))
		for s := 0; s < per; s++ {
			setSectorFree(bitmap, s, true)
		}
		bam.Bitmap[tr] = bitmap
		bam.FreeSectors[tr] = per
		if tr != dirTrack {
			bam.TotalFree += per
		}
	}

	name := PETSCIIPad([]byte(diskName))

	switch t {
	case D64, D71:
		header := img.sector(dirTrack, 0)
		header[0] = byte(dirTrack)
		header[1] = 1
		header[2] = 0x41
		if t == D71 {
			header[3] = 0x80 // double-sided flag
		}
		copy(header[0x90:0xA0], name[:])
		header[0xA0], header[0xA1] = 0xA0, 0xA0
		header[0xA2], header[0xA3] = diskID[0], diskID[1]
		header[0xA4] = 0xA0
		header[0xA5], header[0xA6] = '2', 'A'
		bam.Alloc(dirTrack, 0)
		bam.Alloc(dirTrack, 1)
		if t == D71 {
			bam.Alloc(53, 0)
		}
	case D81:
		header := img.sector(dirTrack, 0)
		header[0] = byte(dirTrack)
		header[1] = 3
		header[2] = 'D'
		copy(header[0x04:0x14], name[:])
		header[0x16], header[0x17] = diskID[0], diskID[1]
		header[0x19], header[0x1A] = '3', 'D'
		for s := 0; s <= 3; s++ {
			bam.Alloc(dirTrack, s)
		}
	}

	firstDir := img.sector(dirTrack, firstDirectorySector(t))
	firstDir[0] = 0
	firstDir[1] = 0xFF

	img.StoreBAM(bam)
	return img
}

func firstDirectorySector(t Type) int {
	if t == D81 {
		return 3
	}
	return 1
}

// StoreBAM writes bam back into the image's BAM sector(s), the inverse of
// LoadBAM.
func (img *Image) StoreBAM(bam *BAM) {
	t := img.Type
	switch t {
	case D64:
		img.writeBAMSector(bam, 18, 0, 4, 1, 35)
	case D71:
		img.writeBAMSector(bam, 18, 0, 4, 1, 35)
		img.writeBAMSector(bam, 53, 0, 0, 36, 70)
	case D81:
		img.writeBAMSector(bam, 40, 1, 16, 1, 40)
		img.writeBAMSector(bam, 40, 2, 16, 41, 80)
	}
	bam.Dirty = false
}

func (img *Image) writeBAMSector(bam *BAM, track, sector, entryBase, firstTrack, lastTrack int) {
	data := img.sector(track, sector)
	bmBytes := bitmapBytesFor(img.Type)
	entrySize := 1 + bmBytes

	for tr := firstTrack; tr <= lastTrack; tr++ {
		idx := entryBase + (tr-firstTrack)*entrySize
		if idx+entrySize > len(data) {
			break
		}
		data[idx] = byte(bam.FreeSectors[tr])
		copy(data[idx+1:idx+1+bmBytes], bam.Bitmap[tr])
	}
}

const sectorPayload = 254

// InjectFile writes data as a new closed PRG file named name: it allocates
// the sector chain through the BAM, links the sectors, claims (or grows)
// a directory slot, and stores the updated BAM.
func (img *Image) InjectFile(name string, data []byte) error {
	if img.readOnly {
		return ErrReadOnly
	}
	bam, err := LoadBAM(img.Type, img.data)
	if err != nil {
		return err
	}

	needed := (len(data) + sectorPayload - 1) / sectorPayload
	if needed == 0 {
		needed = 1
	}
	if bam.TotalFree < needed {
		return ErrNoFreeBlock
	}

	slotTrack, slotSector, slotIndex, err := img.findDirectorySlot(bam)
	if err != nil {
		return err
	}

	type allocated struct{ track, sector int }
	chain := make([]allocated, 0, needed)
	near := img.Type.DirectoryTrack()
	for i := 0; i < needed; i++ {
		tr, s, ok := bam.AllocNext(near)
		if !ok {
			return ErrNoFreeBlock
		}
		chain = append(chain, allocated{tr, s})
		near = tr
	}

	for i, link := range chain {
		sec := img.sector(link.track, link.sector)
		for j := range sec {
			sec[j] = 0
		}
		start := i * sectorPayload
		end := start + sectorPayload
		if end > len(data) {
			end = len(data)
		}
		copy(sec[2:], data[start:end])
		if i+1 < len(chain) {
			sec[0] = byte(chain[i+1].track)
			sec[1] = byte(chain[i+1].sector)
		} else {
			sec[0] = 0
			sec[1] = byte(end - start + 1)
		}
	}

	entry := img.sector(slotTrack, slotSector)[2+slotIndex*32:]
	entry[0] = 0x82 // closed PRG
	entry[1] = byte(chain[0].track)
	entry[2] = byte(chain[0].sector)
	padded := PETSCIIPad([]byte(name))
	copy(entry[3:19], padded[:])
	entry[26] = byte(needed & 0xFF)
	entry[27] = byte(needed >> 8)

	img.StoreBAM(bam)
	return nil
}

// findDirectorySlot walks the directory chain for a zero file-type slot,
// growing the chain by one sector on the directory track when every slot
// in every sector is taken.
func (img *Image) findDirectorySlot(bam *BAM) (track, sector, slot int, err error) {
	t := img.Type
	track, sector = t.DirectoryTrack(), firstDirectorySector(t)
	visited := map[[2]int]bool{}

	for {
		key := [2]int{track, sector}
		if visited[key] || len(visited) > maxDirectorySectors {
			return 0, 0, 0, ErrCatalogFull
		}
		visited[key] = true

		data := img.sector(track, sector)
		for i := 0; i < 8; i++ {
			if data[2+i*32] == 0 {
				return track, sector, i, nil
			}
		}
		if data[0] == 0 {
			// Chain exhausted: grow it on the directory track.
			next, ok := bam.allocOnTrack(t.DirectoryTrack())
			if !ok {
				return 0, 0, 0, ErrCatalogFull
			}
			data[0] = byte(t.DirectoryTrack())
			data[1] = byte(next)
			grown := img.sector(t.DirectoryTrack(), next)
			for j := range grown {
				grown[j] = 0
			}
			grown[0] = 0
			grown[1] = 0xFF
			return t.DirectoryTrack(), next, 0, nil
		}
		track, sector = int(data[0]), int(data[1])
	}
}

// ExtractFile returns the payload of the first directory entry matching
// pattern (PETSCII, with * and ? wildcards).
func (img *Image) ExtractFile(pattern []byte) ([]byte, error) {
	entries, err := WalkDirectory(img.Type, img.data)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !MatchFilename(e.Filename, pattern) {
			continue
		}
		return img.readChain(e.FirstTrack, e.FirstSector)
	}
	return nil, ErrFileNotFound
}

func (img *Image) readChain(track, sector int) ([]byte, error) {
	var out []byte
	visited := map[[2]int]bool{}

	for track != 0 {
		key := [2]int{track, sector}
		if visited[key] {
			return out, fmt.Errorf("commodore: circular file chain at %d/%d", track, sector)
		}
		visited[key] = true

		off := img.Type.SectorOffset(track, sector)
		if off+256 > len(img.data) {
			return out, fmt.Errorf("commodore: file chain sector %d/%d out of range", track, sector)
		}
		sec := img.data[off : off+256]
		nextTrack, nextSector := int(sec[0]), int(sec[1])
		if nextTrack == 0 {
			last := nextSector
			if last < 2 {
				last = 2
			}
			if last > 255 {
				last = 255
			}
			out = append(out, sec[2:last+1]...)
			break
		}
		out = append(out, sec[2:]...)
		track, sector = nextTrack, nextSector
	}
	return out, nil
}

// DeleteFile scratches the first matching entry: it refuses locked files,
// frees the data chain in the BAM, and zeroes the slot's file type.
func (img *Image) DeleteFile(pattern []byte) error {
	if img.readOnly {
		return ErrReadOnly
	}
	bam, err := LoadBAM(img.Type, img.data)
	if err != nil {
		return err
	}

	t := img.Type
	track, sector := t.DirectoryTrack(), firstDirectorySector(t)
	visited := map[[2]int]bool{}

	for track != 0 {
		key := [2]int{track, sector}
		if visited[key] || len(visited) > maxDirectorySectors {
			break
		}
		visited[key] = true

		data := img.sector(track, sector)
		for i := 0; i < 8; i++ {
			e := data[2+i*32:]
			if e[0] == 0 {
				continue
			}
			var fn [16]byte
			copy(fn[:], e[3:19])
			if !MatchFilename(fn, pattern) {
				continue
			}
			if e[0]&0x40 != 0 {
				return ErrFileLocked
			}
			img.freeChain(bam, int(e[1]), int(e[2]))
			e[0] = 0
			img.StoreBAM(bam)
			return nil
		}
		track, sector = int(data[0]), int(data[1])
	}
	return ErrFileNotFound
}

func (img *Image) freeChain(bam *BAM, track, sector int) {
	visited := map[[2]int]bool{}
	for track != 0 {
		key := [2]int{track, sector}
		if visited[key] {
			return
		}
		visited[key] = true
		off := img.Type.SectorOffset(track, sector)
		if off+256 > len(img.data) {
			return
		}
		bam.Free(track, sector)
		sec := img.data[off : off+256]
		track, sector = int(sec[0]), int(sec[1])
	}
}

// Package sectorimg defines the common sector-geometry abstraction shared
// by the plain sector-image formats (PC IMG/BPB, 2IMG, ATR) so each format
// reader only has to produce a Geometry rather than its own ad hoc offset
// math.
package sectorimg

// Geometry describes a flat sector-addressed image.
type Geometry struct {
	BytesPerSector  int
	SectorsPerTrack int
	Heads           int
	TotalSectors    int
}

// Offset returns the byte offset of (track, head, sector) within a flat
// image using this geometry, with sector numbered from 1 as the IBM PC/CHS
// convention does.
func (g Geometry) Offset(track, head, sector int) int {
	lba := (track*g.Heads+head)*g.SectorsPerTrack + (sector - 1)
	return lba * g.BytesPerSector
}

// TotalBytes is the full image size this geometry implies.
func (g Geometry) TotalBytes() int {
	return g.TotalSectors * g.BytesPerSector
}

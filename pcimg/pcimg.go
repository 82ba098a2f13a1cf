// Package pcimg implements a minimal FAT12 BIOS Parameter Block reader,
// backing the IMG fallback path of the variant detector and giving the
// 2IMG/ATR sibling formats a common sectorimg.Geometry abstraction.
package pcimg

import (
	"encoding/binary"
	"fmt"

	"github.com/retropreserve/uff/sectorimg"
)

// BPB is the decoded subset of a FAT12 BIOS Parameter Block this module
// cares about.
type BPB struct {
	BytesPerSector   uint16
	SectorsPerTrack  uint16
	Heads            uint16
	MediaDescriptor  byte
	FATCount         byte
	RootEntryCount   uint16
	TotalSectors     uint32
	SectorsPerFAT    uint16
}

// ErrTooShort is returned when the image is smaller than a BPB-bearing
// boot sector.
var ErrTooShort = fmt.Errorf("pcimg: image too short for a BPB")

// ReadBPB decodes the BPB fields from the first sector of image.
func ReadBPB(image []byte) (*BPB, error) {
	if len(image) < 36 {
		return nil, ErrTooShort
	}

	bpb := &BPB{
		BytesPerSector:  binary.LittleEndian.Uint16(image[11:13]),
		MediaDescriptor: image[21],
		SectorsPerFAT:   binary.LittleEndian.Uint16(image[22:24]),
		SectorsPerTrack: binary.LittleEndian.Uint16(image[24:26]),
		Heads:           binary.LittleEndian.Uint16(image[26:28]),
		FATCount:        image[16],
		RootEntryCount:  binary.LittleEndian.Uint16(image[17:19]),
	}

	totalSectors16 := binary.LittleEndian.Uint16(image[19:21])
	if totalSectors16 != 0 {
		bpb.TotalSectors = uint32(totalSectors16)
	} else if len(image) >= 36 {
		bpb.TotalSectors = binary.LittleEndian.Uint32(image[32:36])
	}

	return bpb, nil
}

// Geometry returns the sectorimg.Geometry this BPB describes.
func (b *BPB) Geometry() sectorimg.Geometry {
	return sectorimg.Geometry{
		BytesPerSector:  int(b.BytesPerSector),
		SectorsPerTrack: int(b.SectorsPerTrack),
		Heads:           int(b.Heads),
		TotalSectors:    int(b.TotalSectors),
	}
}

// RootDirEntry is one 32-byte FAT root directory entry.
type RootDirEntry struct {
	Name     string
	Ext      string
	Attr     byte
	SizeByte uint32
}

const rootEntrySize = 32

// rootDirOffset returns the byte offset of the root directory given the
// reserved sectors (assumed 1, the boot sector) and FAT layout.
func rootDirOffset(b *BPB) int {
	reservedSectors := 1
	fatSectors := int(b.FATCount) * int(b.SectorsPerFAT)
	return (reservedSectors + fatSectors) * int(b.BytesPerSector)
}

// ListRootDirectory reads the FAT12 root directory entries.
func ListRootDirectory(image []byte, b *BPB) ([]RootDirEntry, error) {
	offset := rootDirOffset(b)
	var entries []RootDirEntry

	for i := 0; i < int(b.RootEntryCount); i++ {
		start := offset + i*rootEntrySize
		if start+rootEntrySize > len(image) {
			break
		}
		raw := image[start : start+rootEntrySize]
		if raw[0] == 0x00 {
			break // no more entries
		}
		if raw[0] == 0xE5 {
			continue // deleted
		}

		entries = append(entries, RootDirEntry{
			Name:     trimSpaces(raw[0:8]),
			Ext:      trimSpaces(raw[8:11]),
			Attr:     raw[11],
			SizeByte: binary.LittleEndian.Uint32(raw[28:32]),
		})
	}
	return entries, nil
}

func trimSpaces(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

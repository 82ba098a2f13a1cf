// Package atr reads and writes the Atari ATR container: a 16-byte header
// (0x96 0x02 signature, disk size in 16-byte paragraphs, sector size)
// followed by raw sector data. The first three sectors of a disk are
// always 128 bytes regardless of the nominal sector size.
package atr

import (
	"encoding/binary"
	"fmt"

	"github.com/retropreserve/uff/sectorimg"
)

const (
	headerSize    = 16
	paragraphSize = 16
	bootSectors   = 3
	bootSectorLen = 128
)

// Signature is the little-endian magic word 0x0296.
const Signature = 0x0296

// File is a decoded ATR image.
type File struct {
	Paragraphs uint32 // disk size in 16-byte paragraphs
	SectorSize uint16
	Flags      byte
	Data       []byte
}

// ErrBadMagic is returned when the signature word mismatches.
var ErrBadMagic = fmt.Errorf("atr: bad signature, not an ATR image")

// Read parses the 16-byte header and references the trailing sector data.
func Read(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("atr: %d bytes is too short for an ATR header", len(data))
	}
	if binary.LittleEndian.Uint16(data[0:2]) != Signature {
		return nil, ErrBadMagic
	}

	f := &File{
		Paragraphs: uint32(binary.LittleEndian.Uint16(data[2:4])) | uint32(data[6])<<16,
		SectorSize: binary.LittleEndian.Uint16(data[4:6]),
		Flags:      data[7],
		Data:       data[headerSize:],
	}
	if f.SectorSize == 0 {
		return nil, fmt.Errorf("atr: sector size 0 is invalid")
	}
	return f, nil
}

// SizeBytes is the disk size the header declares.
func (f *File) SizeBytes() int {
	return int(f.Paragraphs) * paragraphSize
}

// SectorCount derives the total sector count, accounting for the three
// 128-byte boot sectors on double-density disks.
func (f *File) SectorCount() int {
	size := f.SizeBytes()
	if f.SectorSize <= bootSectorLen {
		return size / int(f.SectorSize)
	}
	rest := size - bootSectors*bootSectorLen
	if rest < 0 {
		return 0
	}
	return bootSectors + rest/int(f.SectorSize)
}

// ReadSector returns sector n (1-based, the Atari convention).
func (f *File) ReadSector(n int) ([]byte, error) {
	if n < 1 || n > f.SectorCount() {
		return nil, fmt.Errorf("atr: sector %d out of range 1..%d", n, f.SectorCount())
	}
	var offset, length int
	if n <= bootSectors && f.SectorSize > bootSectorLen {
		offset = (n - 1) * bootSectorLen
		length = bootSectorLen
	} else if f.SectorSize > bootSectorLen {
		offset = bootSectors*bootSectorLen + (n-1-bootSectors)*int(f.SectorSize)
		length = int(f.SectorSize)
	} else {
		offset = (n - 1) * int(f.SectorSize)
		length = int(f.SectorSize)
	}
	if offset+length > len(f.Data) {
		return nil, fmt.Errorf("atr: sector %d extends beyond image data", n)
	}
	return f.Data[offset : offset+length], nil
}

// Geometry maps the common single-sided Atari layouts onto the shared
// sector abstraction (18 sectors per track for 90K/180K disks, 26 for
// enhanced density).
func (f *File) Geometry() sectorimg.Geometry {
	sectorsPerTrack := 18
	if f.SectorSize == 128 && f.SectorCount() == 1040 {
		sectorsPerTrack = 26
	}
	return sectorimg.Geometry{
		BytesPerSector:  int(f.SectorSize),
		SectorsPerTrack: sectorsPerTrack,
		Heads:           1,
		TotalSectors:    f.SectorCount(),
	}
}

// Write serialises sector data behind a fresh ATR header.
func Write(sectorSize uint16, data []byte) ([]byte, error) {
	if sectorSize == 0 {
		return nil, fmt.Errorf("atr: sector size 0 is invalid")
	}
	if len(data)%paragraphSize != 0 {
		return nil, fmt.Errorf("atr: data length %d is not paragraph-aligned", len(data))
	}
	paragraphs := len(data) / paragraphSize

	out := make([]byte, headerSize+len(data))
	binary.LittleEndian.PutUint16(out[0:2], Signature)
	binary.LittleEndian.PutUint16(out[2:4], uint16(paragraphs&0xFFFF))
	binary.LittleEndian.PutUint16(out[4:6], sectorSize)
	out[6] = byte(paragraphs >> 16)
	copy(out[headerSize:], data)
	return out, nil
}

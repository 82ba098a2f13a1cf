// Package a2img reads and writes the Apple II 2IMG container: a 64-byte
// header describing the sector order (DOS 3.3, ProDOS, or raw nibbles),
// followed by the data region and optional comment and creator blocks.
package a2img

import (
	"encoding/binary"
	"fmt"

	"github.com/retropreserve/uff/sectorimg"
)

const headerSize = 64

// Magic is the leading four bytes.
const Magic = "2IMG"

// Sector-order formats.
const (
	FormatDOS33  uint32 = 0
	FormatProDOS uint32 = 1
	FormatNibble uint32 = 2
)

// File is a decoded 2IMG container.
type File struct {
	Creator      [4]byte
	Version      uint16
	Format       uint32
	Flags        uint32
	ProDOSBlocks uint32
	Data         []byte
	Comment      []byte
}

// ErrBadMagic is returned when the leading bytes are not "2IMG".
var ErrBadMagic = fmt.Errorf("a2img: bad magic, not a 2IMG container")

// Read parses the 64-byte header and slices out the data and comment
// regions it references.
func Read(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("a2img: %d bytes is too short for a 2IMG header", len(data))
	}
	if string(data[0:4]) != Magic {
		return nil, ErrBadMagic
	}

	hdrSize := binary.LittleEndian.Uint16(data[8:10])
	if hdrSize < headerSize {
		return nil, fmt.Errorf("a2img: declared header size %d is below the fixed 64", hdrSize)
	}

	f := &File{
		Version:      binary.LittleEndian.Uint16(data[10:12]),
		Format:       binary.LittleEndian.Uint32(data[12:16]),
		Flags:        binary.LittleEndian.Uint32(data[16:20]),
		ProDOSBlocks: binary.LittleEndian.Uint32(data[20:24]),
	}
	copy(f.Creator[:], data[4:8])

	dataOffset := binary.LittleEndian.Uint32(data[24:28])
	dataSize := binary.LittleEndian.Uint32(data[28:32])
	if int(dataOffset)+int(dataSize) > len(data) {
		return nil, fmt.Errorf("a2img: data region extends beyond EOF")
	}
	f.Data = data[dataOffset : dataOffset+dataSize]

	commentOffset := binary.LittleEndian.Uint32(data[32:36])
	commentSize := binary.LittleEndian.Uint32(data[36:40])
	if commentSize > 0 && int(commentOffset)+int(commentSize) <= len(data) {
		f.Comment = data[commentOffset : commentOffset+commentSize]
	}
	return f, nil
}

// Geometry maps a 5.25" 140K image onto the shared sector abstraction.
// Nibble-order images have no sector geometry.
func (f *File) Geometry() (sectorimg.Geometry, bool) {
	if f.Format == FormatNibble {
		return sectorimg.Geometry{}, false
	}
	return sectorimg.Geometry{
		BytesPerSector:  256,
		SectorsPerTrack: 16,
		Heads:           1,
		TotalSectors:    len(f.Data) / 256,
	}, true
}

// Write serialises data (and an optional comment) behind a fresh header.
func Write(creator [4]byte, format uint32, data, comment []byte) []byte {
	out := make([]byte, headerSize+len(data)+len(comment))
	copy(out[0:4], Magic)
	copy(out[4:8], creator[:])
	binary.LittleEndian.PutUint16(out[8:10], headerSize)
	binary.LittleEndian.PutUint16(out[10:12], 1)
	binary.LittleEndian.PutUint32(out[12:16], format)
	if format == FormatProDOS {
		binary.LittleEndian.PutUint32(out[20:24], uint32(len(data)/512))
	}
	binary.LittleEndian.PutUint32(out[24:28], headerSize)
	binary.LittleEndian.PutUint32(out[28:32], uint32(len(data)))
	if len(comment) > 0 {
		binary.LittleEndian.PutUint32(out[32:36], uint32(headerSize+len(data)))
		binary.LittleEndian.PutUint32(out[36:40], uint32(len(comment)))
	}
	copy(out[headerSize:], data)
	copy(out[headerSize+len(data):], comment)
	return out
}

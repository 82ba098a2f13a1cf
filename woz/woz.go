// Package woz reads and writes the Apple II WOZ container: a 12-byte
// header whose CRC32 covers the whole chunk stream, followed by
// length-prefixed INFO/TMAP/TRKS/META chunks.
package woz

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/retropreserve/uff/primitive"
)

const (
	headerSize = 12
	tmapSize   = 160
	trksSlots  = 160
)

// Header tail bytes after the 4-byte magic, shared by WOZ1 and WOZ2.
var headerTail = [4]byte{0xFF, 0x0A, 0x0D, 0x0A}

// Chunk is one {id, size, data} record from the stream.
type Chunk struct {
	ID   string
	Data []byte
}

// File is a decoded WOZ container.
type File struct {
	Version int // 1 or 2, from the magic
	Chunks  []Chunk
	CRCOK   bool
}

// Info is the decoded INFO chunk.
type Info struct {
	Version          byte
	DiskType         byte // 1 = 5.25", 2 = 3.5"
	WriteProtected   bool
	Synchronized     bool
	Cleaned          bool
	Creator          string
	OptimalBitTiming byte // WOZ2 INFO version >= 2, offset 39
}

// TRKEntry is one TRKS slot in a WOZ2 file.
type TRKEntry struct {
	StartingBlock uint16
	BlockCount    uint16
	BitCount      uint32
}

// ErrBadMagic is returned when the magic or its fixed tail mismatch.
var ErrBadMagic = fmt.Errorf("woz: bad magic, not a WOZ container")

// Read parses the header, verifies the stream CRC32, and splits the chunk
// stream. A CRC mismatch does not fail the read — CRCOK reports it, and
// the forensic caller decides.
func Read(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("woz: %d bytes is too short for a WOZ header", len(data))
	}
	var version int
	switch string(data[0:4]) {
	case "WOZ1":
		version = 1
	case "WOZ2":
		version = 2
	default:
		return nil, ErrBadMagic
	}
	if [4]byte{data[4], data[5], data[6], data[7]} != headerTail {
		return nil, ErrBadMagic
	}

	storedCRC := binary.LittleEndian.Uint32(data[8:12])
	f := &File{Version: version, CRCOK: storedCRC == primitive.CRC32(data[headerSize:])}

	pos := headerSize
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8
		if pos+size > len(data) {
			return f, fmt.Errorf("woz: chunk %q truncated", id)
		}
		chunk := Chunk{ID: id, Data: make([]byte, size)}
		copy(chunk.Data, data[pos:pos+size])
		f.Chunks = append(f.Chunks, chunk)
		pos += size
	}
	return f, nil
}

// Chunk returns the first chunk with the given id, or nil.
func (f *File) Chunk(id string) *Chunk {
	for i := range f.Chunks {
		if f.Chunks[i].ID == id {
			return &f.Chunks[i]
		}
	}
	return nil
}

// ParseInfo decodes the INFO chunk.
func (f *File) ParseInfo() (*Info, error) {
	c := f.Chunk("INFO")
	if c == nil || len(c.Data) < 37 {
		return nil, fmt.Errorf("woz: INFO chunk missing or short")
	}
	info := &Info{
		Version:        c.Data[0],
		DiskType:       c.Data[1],
		WriteProtected: c.Data[2] != 0,
		Synchronized:   c.Data[3] != 0,
		Cleaned:        c.Data[4] != 0,
		Creator:        strings.TrimRight(string(c.Data[5:37]), " "),
	}
	if len(c.Data) > 39 {
		info.OptimalBitTiming = c.Data[39]
	}
	return info, nil
}

// ParseTMAP decodes the 160-entry track map (quarter-track positions to
// TRKS slots; 0xFF means no track).
func (f *File) ParseTMAP() ([tmapSize]byte, error) {
	var tmap [tmapSize]byte
	c := f.Chunk("TMAP")
	if c == nil || len(c.Data) < tmapSize {
		return tmap, fmt.Errorf("woz: TMAP chunk missing or short")
	}
	copy(tmap[:], c.Data[:tmapSize])
	return tmap, nil
}

// ParseTRKS decodes the WOZ2 TRKS slot table. The bits data that follows
// the table stays accessible through the raw chunk.
func (f *File) ParseTRKS() ([]TRKEntry, error) {
	c := f.Chunk("TRKS")
	if c == nil {
		return nil, fmt.Errorf("woz: TRKS chunk missing")
	}
	if f.Version < 2 {
		return nil, fmt.Errorf("woz: TRKS slot table is a WOZ2 structure")
	}
	if len(c.Data) < trksSlots*8 {
		return nil, fmt.Errorf("woz: TRKS chunk short")
	}
	entries := make([]TRKEntry, trksSlots)
	for i := 0; i < trksSlots; i++ {
		e := c.Data[i*8:]
		entries[i] = TRKEntry{
			StartingBlock: binary.LittleEndian.Uint16(e[0:2]),
			BlockCount:    binary.LittleEndian.Uint16(e[2:4]),
			BitCount:      binary.LittleEndian.Uint32(e[4:8]),
		}
	}
	return entries, nil
}

// ParseMeta decodes the META chunk's tab-separated key/value lines.
func (f *File) ParseMeta() (map[string]string, error) {
	c := f.Chunk("META")
	if c == nil {
		return nil, fmt.Errorf("woz: META chunk missing")
	}
	meta := map[string]string{}
	for _, line := range strings.Split(string(c.Data), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) == 2 {
			meta[parts[0]] = parts[1]
		}
	}
	return meta, nil
}

// Write serialises the chunk stream with a freshly computed header CRC.
func Write(version int, chunks []Chunk) ([]byte, error) {
	if version != 1 && version != 2 {
		return nil, fmt.Errorf("woz: unsupported version %d", version)
	}

	var body []byte
	for _, c := range chunks {
		if len(c.ID) != 4 {
			return nil, fmt.Errorf("woz: chunk id %q is not 4 bytes", c.ID)
		}
		var sz [4]byte
		binary.LittleEndian.PutUint32(sz[:], uint32(len(c.Data)))
		body = append(body, c.ID...)
		body = append(body, sz[:]...)
		body = append(body, c.Data...)
	}

	out := make([]byte, headerSize+len(body))
	copy(out[0:4], fmt.Sprintf("WOZ%d", version))
	copy(out[4:8], headerTail[:])
	binary.LittleEndian.PutUint32(out[8:12], primitive.CRC32(body))
	copy(out[headerSize:], body)
	return out, nil
}

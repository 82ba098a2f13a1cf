// Package uff implements the Universal Flux Format container: a bit-exact
// header, track index, per-track chunk stream, optional metadata and
// forensic block, and footer, following the open/create/verify paths of
// the flux container design.
package uff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/retropreserve/uff/flux"
	"github.com/retropreserve/uff/primitive"
)

const (
	headerSize = 128
	magicUFF   = "UFF\x00"
	magicTRK   = "TRK\x00"
	magicFOR   = "FOR\x00"
	magicEND   = "END\x00"

	// Version is the current container version, major 1 minor 0.
	Version = 0x0100

	trackIndexEntrySize = 24
	trackChunkHeaderLen = 36
	forensicBlockSize   = 512
	maxMetadataLen      = 64 * 1024
	footerSize          = 16
)

// Fixed-offset ASCIIZ field layout inside the 512-byte forensic block.
const (
	forExaminerOff   = 4
	forExaminerLen   = 64
	forCaseOff       = 68
	forCaseLen       = 32
	forDeviceOff     = 100
	forDeviceLen     = 64
	forTimestampOff  = 164
	forTimestampLen  = 32
)

// Geometry describes a container's track layout at creation time.
type Geometry struct {
	Cylinders   uint8
	Heads       uint8
	StartTrack  uint8
	EndTrack    uint8
	TickNs      uint16
	RPM         uint16
	Encoding    uint8
	Platform    uint8
	Revolutions uint8
	Compression uint8
}

// Header is the 128-byte fixed header, decoded.
type Header struct {
	Version        uint16
	Flags          uint32
	Geometry       Geometry
	IndexOffset    uint32
	MetadataOffset uint32
	ForensicOffset uint32
	DataOffset     uint32
	TrackCount     uint32
	FileSize       uint64
	HeaderCRC      uint32
}

// TrackIndexEntry is one 24-byte entry in the track index.
type TrackIndexEntry struct {
	Cylinder         uint8
	Head             uint8
	Flags            uint8
	Encoding         uint8
	Offset           uint32
	CompressedSize   uint32
	UncompressedSize uint32
	Revolutions      uint16
	WeakRegions      uint16
	CRC32            uint32
}

// Track index entry flags.
const (
	TrackFlagDamaged uint8 = 1 << 0
)

// ForensicBlock carries chain-of-custody fields for preservation work.
type ForensicBlock struct {
	Examiner   string
	CaseNumber string
	Device     string
	Timestamp  string
}

// Warning flags, set non-fatally during Open.
const (
	WarnCorruptHeader uint32 = 1 << iota
)

// ValidationReport is the aggregate result of Verify: per-track health
// counts and every CRC32 mismatch.
type ValidationReport struct {
	ValidTracks   int
	DamagedTracks int
	EmptyTracks   int
	Mismatches    []TrackMismatch
}

// TrackMismatch records one track whose recomputed CRC32 disagrees with its
// index entry.
type TrackMismatch struct {
	Cylinder int
	Head     int
	Want     uint32
	Got      uint32
}

// Statistics is the read-only container summary: track health counts, weak
// region and flux transition totals, and the header feature flags.
type Statistics struct {
	ValidTracks     int
	DamagedTracks   int
	EmptyTracks     int
	WeakRegions     int
	FluxTransitions uint64
	Flags           uint32
}

// File is an opened, read-oriented UFF container. Tracks are loaded on
// demand from the backing ReaderAt.
type File struct {
	r        io.ReaderAt
	size     int64
	Header   Header
	Index    []TrackIndexEntry
	Metadata []byte
	Forensic *ForensicBlock
	Warn     uint32
}

// ErrBadMagic is returned when the leading magic bytes do not match "UFF\0".
var ErrBadMagic = fmt.Errorf("uff: bad magic, not a UFF container")

// ErrCancelled is returned when a long operation observes its cancel
// signal at a track boundary.
var ErrCancelled = fmt.Errorf("uff: operation cancelled")

// Open reads and validates the header and track index from r, deferring
// track bodies until requested via ReadTrack. A header CRC mismatch does
// not fail the open — it sets WarnCorruptHeader and the caller decides how
// to proceed, in keeping with the forensic "partial recovery" requirement.
func Open(r io.ReaderAt, size int64) (*File, error) {
	raw := make([]byte, headerSize)
	if _, err := r.ReadAt(raw, 0); err != nil {
		return nil, fmt.Errorf("uff: reading header: %w", err)
	}
	if string(raw[0:4]) != magicUFF {
		return nil, ErrBadMagic
	}

	h := Header{
		Version: binary.LittleEndian.Uint16(raw[4:6]),
		Flags:   binary.LittleEndian.Uint32(raw[6:10]),
		Geometry: Geometry{
			Cylinders:   raw[10],
			Heads:       raw[11],
			StartTrack:  raw[12],
			EndTrack:    raw[13],
			TickNs:      binary.LittleEndian.Uint16(raw[14:16]),
			RPM:         binary.LittleEndian.Uint16(raw[16:18]),
			Encoding:    raw[18],
			Platform:    raw[19],
			Revolutions: raw[20],
			Compression: raw[21],
		},
		IndexOffset:    binary.LittleEndian.Uint32(raw[22:26]),
		MetadataOffset: binary.LittleEndian.Uint32(raw[26:30]),
		ForensicOffset: binary.LittleEndian.Uint32(raw[30:34]),
		DataOffset:     binary.LittleEndian.Uint32(raw[34:38]),
		TrackCount:     binary.LittleEndian.Uint32(raw[38:42]),
		FileSize:       binary.LittleEndian.Uint64(raw[42:50]),
		HeaderCRC:      binary.LittleEndian.Uint32(raw[50:54]),
	}

	f := &File{r: r, size: size, Header: h}

	// The CRC field sits inside the covered range and counts as zero.
	crcInput := append([]byte(nil), raw[:headerSize-12]...)
	binary.LittleEndian.PutUint32(crcInput[50:54], 0)
	wantCRC := primitive.CRC32(crcInput)
	if wantCRC != h.HeaderCRC {
		f.Warn |= WarnCorruptHeader
	}

	index, err := f.loadIndex()
	if err != nil {
		return nil, err
	}
	f.Index = index

	if h.MetadataOffset != 0 {
		f.Metadata, _ = f.loadMetadata()
	}
	if h.ForensicOffset != 0 {
		f.Forensic, _ = f.loadForensic()
	}
	return f, nil
}

func (f *File) loadIndex() ([]TrackIndexEntry, error) {
	count := int(f.Header.TrackCount)
	buf := make([]byte, count*trackIndexEntrySize)
	if count > 0 {
		if _, err := f.r.ReadAt(buf, int64(f.Header.IndexOffset)); err != nil {
			return nil, fmt.Errorf("uff: reading track index: %w", err)
		}
	}
	entries := make([]TrackIndexEntry, count)
	for i := 0; i < count; i++ {
		e := buf[i*trackIndexEntrySize:]
		entries[i] = TrackIndexEntry{
			Cylinder:         e[0],
			Head:             e[1],
			Flags:            e[2],
			Encoding:         e[3],
			Offset:           binary.LittleEndian.Uint32(e[4:8]),
			CompressedSize:   binary.LittleEndian.Uint32(e[8:12]),
			UncompressedSize: binary.LittleEndian.Uint32(e[12:16]),
			Revolutions:      binary.LittleEndian.Uint16(e[16:18]),
			WeakRegions:      binary.LittleEndian.Uint16(e[18:20]),
			CRC32:            binary.LittleEndian.Uint32(e[20:24]),
		}
	}
	return entries, nil
}

func (f *File) loadMetadata() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := f.r.ReadAt(lenBuf[:], int64(f.Header.MetadataOffset)); err != nil {
		return nil, fmt.Errorf("uff: reading metadata length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxMetadataLen {
		return nil, fmt.Errorf("uff: metadata length %d exceeds limit", n)
	}
	blob := make([]byte, n)
	if _, err := f.r.ReadAt(blob, int64(f.Header.MetadataOffset)+4); err != nil {
		return nil, fmt.Errorf("uff: reading metadata: %w", err)
	}
	return blob, nil
}

func (f *File) loadForensic() (*ForensicBlock, error) {
	raw := make([]byte, forensicBlockSize)
	if _, err := f.r.ReadAt(raw, int64(f.Header.ForensicOffset)); err != nil {
		return nil, fmt.Errorf("uff: reading forensic block: %w", err)
	}
	if string(raw[0:4]) != magicFOR {
		return nil, fmt.Errorf("uff: forensic block missing %q magic", magicFOR)
	}
	return &ForensicBlock{
		Examiner:   asciiz(raw[forExaminerOff : forExaminerOff+forExaminerLen]),
		CaseNumber: asciiz(raw[forCaseOff : forCaseOff+forCaseLen]),
		Device:     asciiz(raw[forDeviceOff : forDeviceOff+forDeviceLen]),
		Timestamp:  asciiz(raw[forTimestampOff : forTimestampOff+forTimestampLen]),
	}, nil
}

func asciiz(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func putASCIIZ(dst []byte, s string) {
	n := copy(dst, s)
	if n < len(dst) {
		dst[n] = 0
	} else {
		dst[len(dst)-1] = 0
	}
}

// ReadTrack loads and decodes the track chunk referenced by index entry i.
func (f *File) ReadTrack(i int) (*flux.Track, error) {
	if i < 0 || i >= len(f.Index) {
		return nil, fmt.Errorf("uff: track index %d out of range", i)
	}
	entry := f.Index[i]

	buf := make([]byte, entry.UncompressedSize)
	if _, err := f.r.ReadAt(buf, int64(entry.Offset)); err != nil {
		return nil, fmt.Errorf("uff: reading track %d chunk: %w", i, err)
	}
	return decodeTrackChunk(buf)
}

func decodeTrackChunk(buf []byte) (*flux.Track, error) {
	if len(buf) < trackChunkHeaderLen || string(buf[0:4]) != magicTRK {
		return nil, fmt.Errorf("uff: track chunk missing %q magic", magicTRK)
	}

	cyl := int(buf[4])
	head := int(buf[5])
	revCount := binary.LittleEndian.Uint32(buf[8:12])
	weakOffset := binary.LittleEndian.Uint32(buf[16:20])
	spliceOffset := binary.LittleEndian.Uint32(buf[20:24])
	hashOffset := binary.LittleEndian.Uint32(buf[24:28])

	pos := trackChunkHeaderLen
	if pos+int(revCount)*16 > len(buf) {
		return nil, fmt.Errorf("uff: track chunk truncated in revolution table")
	}
	revolutions := make([]flux.Revolution, revCount)
	revFluxCounts := make([]uint32, revCount)
	for r := uint32(0); r < revCount; r++ {
		fluxCount := binary.LittleEndian.Uint32(buf[pos : pos+4])
		confidence := binary.LittleEndian.Uint16(buf[pos+4 : pos+6])
		revFluxCounts[r] = fluxCount
		revolutions[r] = flux.Revolution{Confidence: int(confidence)}
		pos += 16
	}

	for r := uint32(0); r < revCount; r++ {
		n := int(revFluxCounts[r])
		if pos+n*4 > len(buf) {
			return nil, fmt.Errorf("uff: track chunk truncated in revolution %d samples", r)
		}
		samples := make([]flux.Sample, n)
		for i := 0; i < n; i++ {
			samples[i] = flux.Sample(binary.LittleEndian.Uint32(buf[pos:]))
			pos += 4
		}
		revolutions[r].Samples = samples
	}

	track := &flux.Track{Cylinder: cyl, Head: head, Revolutions: revolutions}
	if revCount > 0 {
		fused := flux.Fuse(cyl, head, revolutions)
		track.FusedFlux = fused.FusedFlux
		track.FusedConfidence = fused.FusedConfidence
	}

	if weakOffset != 0 && int(weakOffset)+4 <= len(buf) {
		p := int(weakOffset)
		count := int(binary.LittleEndian.Uint32(buf[p:]))
		p += 4
		for i := 0; i < count && p+12 <= len(buf); i++ {
			track.WeakRegions = append(track.WeakRegions, flux.WeakRegion{
				FluxOffset: int(binary.LittleEndian.Uint32(buf[p:])),
				BitCount:   int(binary.LittleEndian.Uint32(buf[p+4:])),
				Confidence: int(binary.LittleEndian.Uint32(buf[p+8:])),
			})
			p += 12
		}
	}
	if spliceOffset != 0 && int(spliceOffset)+4 <= len(buf) {
		p := int(spliceOffset)
		count := int(binary.LittleEndian.Uint32(buf[p:]))
		p += 4
		for i := 0; i < count && p+4 <= len(buf); i++ {
			track.SplicePoints = append(track.SplicePoints, flux.SplicePoint{
				BitOffset: int(binary.LittleEndian.Uint32(buf[p:])),
			})
			p += 4
		}
	}
	if hashOffset != 0 && int(hashOffset)+32 <= len(buf) {
		copy(track.SHA256[:], buf[hashOffset:hashOffset+32])
	}
	return track, nil
}

// Verify recomputes each track's CRC32 and compares it against the stored
// index entry, returning a ValidationReport with every mismatch recorded.
// The cancel channel is checked at track boundaries; a nil channel never
// cancels.
func Verify(f *File, cancel <-chan struct{}) (ValidationReport, error) {
	var report ValidationReport

	for i, entry := range f.Index {
		if primitive.Cancelled(cancel) {
			return report, ErrCancelled
		}
		if entry.UncompressedSize == 0 {
			report.EmptyTracks++
			continue
		}

		track, err := f.ReadTrack(i)
		if err != nil {
			report.DamagedTracks++
			continue
		}

		_, crc := track.ComputeHash(entry.Flags, entry.Encoding)
		if crc != entry.CRC32 {
			report.DamagedTracks++
			report.Mismatches = append(report.Mismatches, TrackMismatch{
				Cylinder: int(entry.Cylinder),
				Head:     int(entry.Head),
				Want:     entry.CRC32,
				Got:      crc,
			})
			continue
		}
		report.ValidTracks++
	}

	return report, nil
}

// Statistics summarises the container from its index, reading only the
// fixed chunk header of each present track for the flux transition total.
func (f *File) Statistics() Statistics {
	stats := Statistics{Flags: f.Header.Flags}
	var chunkHead [trackChunkHeaderLen]byte

	for _, entry := range f.Index {
		stats.WeakRegions += int(entry.WeakRegions)
		switch {
		case entry.UncompressedSize == 0:
			stats.EmptyTracks++
		case entry.Flags&TrackFlagDamaged != 0:
			stats.DamagedTracks++
		default:
			stats.ValidTracks++
		}
		if entry.UncompressedSize == 0 {
			continue
		}
		if _, err := f.r.ReadAt(chunkHead[:], int64(entry.Offset)); err == nil &&
			string(chunkHead[0:4]) == magicTRK {
			stats.FluxTransitions += uint64(binary.LittleEndian.Uint32(chunkHead[12:16]))
		}
	}
	return stats
}

// Writer accumulates tracks for a new container, reserving header and index
// space up front and streaming track chunks after it, then flushing the
// final header, index, optional metadata/forensic blocks, and footer on
// Close. A shadow copy of everything written feeds the footer's whole-file
// CRC64.
type Writer struct {
	w             io.WriteSeeker
	geometry      Geometry
	entries       []TrackIndexEntry
	shadow        []byte
	offset        int64
	indexCapacity int
	metadata      []byte
	forensic      *ForensicBlock
	locked        bool
}

// CreateWriter writes a placeholder header and a placeholder index sized
// for the geometry's full track complement, and returns a Writer ready to
// stream tracks. The real header and index are rewritten on Close, once
// the final size and CRCs are known.
func CreateWriter(w io.WriteSeeker, geom Geometry) (*Writer, error) {
	capacity := int(geom.Cylinders) * int(geom.Heads)
	if capacity == 0 {
		capacity = 1
	}

	placeholder := make([]byte, headerSize+capacity*trackIndexEntrySize)
	if _, err := w.Write(placeholder); err != nil {
		return nil, fmt.Errorf("uff: writing placeholder header and index: %w", err)
	}

	writer := &Writer{
		w:             w,
		geometry:      geom,
		shadow:        placeholder,
		offset:        int64(len(placeholder)),
		indexCapacity: capacity,
	}

	if err := lockForWrite(w); err != nil {
		return nil, err
	}
	writer.locked = true
	return writer, nil
}

// SetMetadata attaches a UTF-8 JSON blob (at most 64 KiB) to be written
// between the track stream and the footer.
func (wr *Writer) SetMetadata(blob []byte) error {
	if len(blob) > maxMetadataLen {
		return fmt.Errorf("uff: metadata length %d exceeds the 64 KiB limit", len(blob))
	}
	wr.metadata = append([]byte(nil), blob...)
	return nil
}

// SetForensic attaches a forensic chain-of-custody block.
func (wr *Writer) SetForensic(fb ForensicBlock) {
	copied := fb
	wr.forensic = &copied
}

// WriteTrack serializes track fully (header, revolutions, flux samples,
// weak regions, splice points, hash) before recording its index entry —
// each track chunk is atomic, so an interrupted write orphans only the
// partial chunk, never the index.
func (wr *Writer) WriteTrack(track *flux.Track, flags, encoding byte) error {
	if len(wr.entries) >= wr.indexCapacity {
		return fmt.Errorf("uff: track index full (%d entries)", wr.indexCapacity)
	}
	_, crc := track.ComputeHash(flags, encoding)
	chunk := encodeTrackChunk(track, flags, encoding)

	n, err := wr.w.Write(chunk)
	if err != nil {
		return fmt.Errorf("uff: writing track %d/%d chunk: %w", track.Cylinder, track.Head, err)
	}
	wr.shadow = append(wr.shadow, chunk...)

	wr.entries = append(wr.entries, TrackIndexEntry{
		Cylinder:         uint8(track.Cylinder),
		Head:             uint8(track.Head),
		Flags:            flags,
		Encoding:         encoding,
		Offset:           uint32(wr.offset),
		CompressedSize:   uint32(n),
		UncompressedSize: uint32(n),
		Revolutions:      uint16(len(track.Revolutions)),
		WeakRegions:      uint16(len(track.WeakRegions)),
		CRC32:            crc,
	})
	wr.offset += int64(n)
	return nil
}

func encodeTrackChunk(track *flux.Track, flags, encoding byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(magicTRK)
	buf.WriteByte(byte(track.Cylinder))
	buf.WriteByte(byte(track.Head))
	buf.WriteByte(flags)
	buf.WriteByte(encoding)

	totalFlux := 0
	for _, rev := range track.Revolutions {
		totalFlux += rev.FluxCount()
	}

	// Section offsets are chunk-relative; zero means absent.
	sampleBytes := totalFlux * 4
	pos := trackChunkHeaderLen + len(track.Revolutions)*16 + sampleBytes
	weakOffset := 0
	if len(track.WeakRegions) > 0 {
		weakOffset = pos
		pos += 4 + len(track.WeakRegions)*12
	}
	spliceOffset := 0
	if len(track.SplicePoints) > 0 {
		spliceOffset = pos
		pos += 4 + len(track.SplicePoints)*4
	}
	hashOffset := pos

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(track.Revolutions)))
	buf.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], uint32(totalFlux))
	buf.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], uint32(weakOffset))
	buf.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], uint32(spliceOffset))
	buf.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], uint32(hashOffset))
	buf.Write(u32[:])
	buf.Write(make([]byte, 8)) // reserved

	for _, rev := range track.Revolutions {
		binary.LittleEndian.PutUint32(u32[:], uint32(rev.FluxCount()))
		buf.Write(u32[:])
		var u16 [2]byte
		binary.LittleEndian.PutUint16(u16[:], uint16(rev.Confidence))
		buf.Write(u16[:])
		buf.Write(make([]byte, 10))
	}

	for _, rev := range track.Revolutions {
		for _, s := range rev.Samples {
			binary.LittleEndian.PutUint32(u32[:], uint32(s))
			buf.Write(u32[:])
		}
	}

	if len(track.WeakRegions) > 0 {
		binary.LittleEndian.PutUint32(u32[:], uint32(len(track.WeakRegions)))
		buf.Write(u32[:])
		for _, r := range track.WeakRegions {
			binary.LittleEndian.PutUint32(u32[:], uint32(r.FluxOffset))
			buf.Write(u32[:])
			binary.LittleEndian.PutUint32(u32[:], uint32(r.BitCount))
			buf.Write(u32[:])
			binary.LittleEndian.PutUint32(u32[:], uint32(r.Confidence))
			buf.Write(u32[:])
		}
	}

	if len(track.SplicePoints) > 0 {
		binary.LittleEndian.PutUint32(u32[:], uint32(len(track.SplicePoints)))
		buf.Write(u32[:])
		for _, s := range track.SplicePoints {
			binary.LittleEndian.PutUint32(u32[:], uint32(s.BitOffset))
			buf.Write(u32[:])
		}
	}

	buf.Write(track.SHA256[:])
	return buf.Bytes()
}

// Close flushes the container tail in the torn-write-safe order: metadata
// and forensic blocks, then the footer, then a seek back to rewrite the
// header and index with the final file_size/track_count/header_crc. The
// footer's CRC64 covers every byte of the final file except the CRC field
// itself.
func (wr *Writer) Close() error {
	defer unlockForWrite(wr.w, wr.locked)

	metadataOffset := int64(0)
	if wr.metadata != nil {
		metadataOffset = wr.offset
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(wr.metadata)))
		if _, err := wr.w.Write(lenBuf[:]); err != nil {
			return fmt.Errorf("uff: writing metadata length: %w", err)
		}
		if _, err := wr.w.Write(wr.metadata); err != nil {
			return fmt.Errorf("uff: writing metadata: %w", err)
		}
		wr.shadow = append(wr.shadow, lenBuf[:]...)
		wr.shadow = append(wr.shadow, wr.metadata...)
		wr.offset += int64(4 + len(wr.metadata))
	}

	forensicOffset := int64(0)
	if wr.forensic != nil {
		forensicOffset = wr.offset
		block := make([]byte, forensicBlockSize)
		copy(block[0:4], magicFOR)
		putASCIIZ(block[forExaminerOff:forExaminerOff+forExaminerLen], wr.forensic.Examiner)
		putASCIIZ(block[forCaseOff:forCaseOff+forCaseLen], wr.forensic.CaseNumber)
		putASCIIZ(block[forDeviceOff:forDeviceOff+forDeviceLen], wr.forensic.Device)
		putASCIIZ(block[forTimestampOff:forTimestampOff+forTimestampLen], wr.forensic.Timestamp)
		if _, err := wr.w.Write(block); err != nil {
			return fmt.Errorf("uff: writing forensic block: %w", err)
		}
		wr.shadow = append(wr.shadow, block...)
		wr.offset += forensicBlockSize
	}

	fileSize := uint64(wr.offset) + footerSize

	header := make([]byte, headerSize)
	copy(header[0:4], magicUFF)
	binary.LittleEndian.PutUint16(header[4:6], Version)
	header[10] = wr.geometry.Cylinders
	header[11] = wr.geometry.Heads
	header[12] = wr.geometry.StartTrack
	header[13] = wr.geometry.EndTrack
	binary.LittleEndian.PutUint16(header[14:16], wr.geometry.TickNs)
	binary.LittleEndian.PutUint16(header[16:18], wr.geometry.RPM)
	header[18] = wr.geometry.Encoding
	header[19] = wr.geometry.Platform
	header[20] = wr.geometry.Revolutions
	header[21] = wr.geometry.Compression
	binary.LittleEndian.PutUint32(header[22:26], headerSize)
	binary.LittleEndian.PutUint32(header[26:30], uint32(metadataOffset))
	binary.LittleEndian.PutUint32(header[30:34], uint32(forensicOffset))
	binary.LittleEndian.PutUint32(header[34:38], uint32(headerSize+wr.indexCapacity*trackIndexEntrySize))
	binary.LittleEndian.PutUint32(header[38:42], uint32(len(wr.entries)))
	binary.LittleEndian.PutUint64(header[42:50], fileSize)
	binary.LittleEndian.PutUint32(header[50:54], primitive.CRC32(header[:headerSize-12]))
	copy(wr.shadow[0:headerSize], header)

	index := make([]byte, wr.indexCapacity*trackIndexEntrySize)
	for i, e := range wr.entries {
		entry := index[i*trackIndexEntrySize:]
		entry[0], entry[1], entry[2], entry[3] = e.Cylinder, e.Head, e.Flags, e.Encoding
		binary.LittleEndian.PutUint32(entry[4:8], e.Offset)
		binary.LittleEndian.PutUint32(entry[8:12], e.CompressedSize)
		binary.LittleEndian.PutUint32(entry[12:16], e.UncompressedSize)
		binary.LittleEndian.PutUint16(entry[16:18], e.Revolutions)
		binary.LittleEndian.PutUint16(entry[18:20], e.WeakRegions)
		binary.LittleEndian.PutUint32(entry[20:24], e.CRC32)
	}
	copy(wr.shadow[headerSize:headerSize+len(index)], index)

	var footer bytes.Buffer
	footer.WriteString(magicEND)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(wr.entries)))
	footer.Write(u32[:])
	crcInput := append(append([]byte(nil), wr.shadow...), footer.Bytes()...)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], primitive.CRC64(crcInput))
	footer.Write(u64[:])
	if _, err := wr.w.Write(footer.Bytes()); err != nil {
		return fmt.Errorf("uff: writing footer: %w", err)
	}

	if _, err := wr.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("uff: seeking to rewrite header: %w", err)
	}
	if _, err := wr.w.Write(header); err != nil {
		return fmt.Errorf("uff: rewriting header: %w", err)
	}
	if _, err := wr.w.Write(index); err != nil {
		return fmt.Errorf("uff: rewriting index: %w", err)
	}
	return nil
}

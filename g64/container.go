package g64

import (
	"encoding/binary"
	"fmt"

	"github.com/retropreserve/uff/diagnosis"
)

// G64 container constants: 12-byte header, then two 84-entry u32 tables
// (track offsets, speed zones), then length-prefixed track data.
const (
	containerMagic   = "GCR-1541"
	containerSlots   = 84
	containerHeader  = 12
	containerTables  = containerSlots * 4 * 2
	containerMinSize = containerHeader + containerTables
)

// Container is a decoded G64 file: one raw GCR byte stream per half-track
// slot (slot i holds half-track i+1; even slots are full tracks).
type Container struct {
	Version      byte
	NumTracks    byte
	MaxTrackSize uint16
	RawTracks    [containerSlots][]byte
	SpeedZones   [containerSlots]uint32
}

// ErrBadContainer is returned when the leading magic does not match.
var ErrBadContainer = fmt.Errorf("g64: bad magic, not a G64 container")

// ReadContainer parses the bit-exact G64 layout: header, track-offset
// table, speed-zone table, and each present track's u16-length-prefixed
// data.
func ReadContainer(data []byte) (*Container, error) {
	if len(data) < containerMinSize {
		return nil, fmt.Errorf("g64: %d bytes is too short for a G64 container", len(data))
	}
	if string(data[0:8]) != containerMagic {
		return nil, ErrBadContainer
	}

	c := &Container{
		Version:      data[8],
		NumTracks:    data[9],
		MaxTrackSize: binary.LittleEndian.Uint16(data[10:12]),
	}

	for i := 0; i < containerSlots; i++ {
		offset := binary.LittleEndian.Uint32(data[containerHeader+i*4:])
		c.SpeedZones[i] = binary.LittleEndian.Uint32(data[containerHeader+containerSlots*4+i*4:])
		if offset == 0 {
			continue
		}
		if int(offset)+2 > len(data) {
			return nil, fmt.Errorf("g64: track slot %d offset %d beyond EOF", i, offset)
		}
		length := int(binary.LittleEndian.Uint16(data[offset:]))
		start := int(offset) + 2
		if start+length > len(data) {
			return nil, fmt.Errorf("g64: track slot %d data truncated", i)
		}
		raw := make([]byte, length)
		copy(raw, data[start:start+length])
		c.RawTracks[i] = raw
	}
	return c, nil
}

// Write serialises the container back to the bit-exact G64 layout. Track
// data regions are padded to MaxTrackSize so offsets stay uniform, the way
// mastering tools emit them.
func (c *Container) Write() []byte {
	maxSize := int(c.MaxTrackSize)
	for _, raw := range c.RawTracks {
		if len(raw) > maxSize {
			maxSize = len(raw)
		}
	}

	present := 0
	for _, raw := range c.RawTracks {
		if raw != nil {
			present++
		}
	}

	out := make([]byte, containerMinSize+present*(2+maxSize))
	copy(out[0:8], containerMagic)
	out[8] = c.Version
	out[9] = c.NumTracks
	binary.LittleEndian.PutUint16(out[10:12], uint16(maxSize))

	offset := containerMinSize
	for i, raw := range c.RawTracks {
		binary.LittleEndian.PutUint32(out[containerHeader+containerSlots*4+i*4:], c.SpeedZones[i])
		if raw == nil {
			continue
		}
		binary.LittleEndian.PutUint32(out[containerHeader+i*4:], uint32(offset))
		binary.LittleEndian.PutUint16(out[offset:], uint16(len(raw)))
		copy(out[offset+2:], raw)
		offset += 2 + maxSize
	}
	return out
}

// Decode parses every present track slot into a decoded Image: even slots
// are full tracks, odd slots half-track steps.
func (c *Container) Decode(log *diagnosis.Log) *Image {
	img := &Image{}
	for i, raw := range c.RawTracks {
		if raw == nil {
			continue
		}
		fullTrack := i/2 + 1
		halfStep := i%2 == 1
		img.Tracks = append(img.Tracks, ParseTrack(raw, fullTrack, halfStep, log))
	}
	return img
}

// SpeedZoneFor returns the standard 1541 speed zone for a full track
// number: zone 3 is the fastest (outer) zone.
func SpeedZoneFor(track int) int {
	switch {
	case track >= 1 && track <= 17:
		return 3
	case track >= 18 && track <= 24:
		return 2
	case track >= 25 && track <= 30:
		return 1
	default:
		return 0
	}
}

// ExpectedTrackSize returns the nominal GCR byte count for a speed zone.
func ExpectedTrackSize(zone int) int {
	sizes := [4]int{6250, 6666, 7142, 7692}
	if zone < 0 || zone > 3 {
		return sizes[0]
	}
	return sizes[zone]
}

// ComputeDiskStats aggregates per-track flags into the DiskStats the
// protection classifier consumes. weakTracks names the full-track numbers
// the flux layer found weak regions on.
func ComputeDiskStats(img *Image, weakTracks map[int]bool) DiskStats {
	var s DiskStats
	s.WeakTracks = len(weakTracks)
	s.Track20HasWeakBits = weakTracks[20]

	for _, t := range img.Tracks {
		if t.HalfTrack && len(t.Sectors) > 0 {
			s.HalfTracksWithData++
		}
		if t.HasLongSync {
			s.LongSyncTracks++
		}
		if t.HasExtraSectors {
			s.ExtraSectorTracks++
		}
		if t.IsKillerTrack {
			s.KillerTracks++
			if t.Number == 20 && !t.HalfTrack {
				s.Track20IsKiller = true
			}
		}
	}
	return s
}

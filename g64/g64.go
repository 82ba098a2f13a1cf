// Package g64 implements the GCR track engine: sync scan, header/data
// sector decode, per-track scoring, disk-level protection heuristics, and
// D64 export, built on the gcr codec and diagnosis event log.
package g64

import (
	"github.com/retropreserve/uff/diagnosis"
	"github.com/retropreserve/uff/gcr"
)

// Sector is one decoded GCR sector.
type Sector struct {
	Track    uint8
	Sector   uint8
	Data     [256]byte
	HeaderOK bool
	DataOK   bool
}

// Track is the result of parsing one raw GCR byte stream.
type Track struct {
	Number          int
	HalfTrack       bool
	Sectors         []Sector
	SyncCount       int
	HasLongSync     bool
	HasExtraSectors bool
	IsKillerTrack   bool
	Score           TrackScore
}

// TrackScore breaks down the 0..1 overall quality score into its
// contributing factors, per the track-scoring formula.
type TrackScore struct {
	Sync      float64
	GCR       float64
	Checksum  float64
	Structure float64
	Timing    float64
	Overall   float64
}

const maxSyncScans = 32
const dataSyncSearchWindow = 100

// sectorsPerTrack is the standard 1541 zone table: tracks 1-17 have 21
// sectors, 18-24 have 19, 25-30 have 18, 31+ have 17.
func sectorsPerTrack(track int) int {
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

// ParseTrack scans raw for sync marks, decodes header and data sectors, and
// scores the result. Diagnoses are appended to log rather than returned as
// errors — a damaged or protected track is still fully parsed.
func ParseTrack(raw []byte, trackNumber int, halfTrack bool, log *diagnosis.Log) *Track {
	t := &Track{Number: trackNumber, HalfTrack: halfTrack}
	expected := sectorsPerTrack(trackNumber)

	pos := 0
	headerDecodeErrors := 0
	dataDecodeErrors := 0

	for pos < len(raw) && t.SyncCount < maxSyncScans {
		syncPos, syncLen := gcr.ScanSync(raw, pos, gcr.MinSyncBytes)
		if syncPos < 0 {
			break
		}
		t.SyncCount++
		if syncLen > 10 {
			t.HasLongSync = true
			log.Add(diagnosis.New(diagnosis.Protection, diagnosis.CodeLongSync, uint8(trackNumber),
				"sync run exceeds 10 bytes"))
		}

		headerPos := syncPos + syncLen
		// A sync introducing a data block (marker 0x07) belongs to the
		// sector before it, not to a new header.
		if headerPos+5 <= len(raw) {
			var first [5]byte
			copy(first[:], raw[headerPos:headerPos+5])
			if b, _, ok := gcr.Decode5to4(first); ok && b[0] == 0x07 {
				pos = headerPos + 1
				continue
			}
		}
		sec, headerOK, dataOK := decodeSector(raw, headerPos, trackNumber, log)
		if !headerOK {
			headerDecodeErrors++
		}
		if headerOK && !dataOK {
			dataDecodeErrors++
		}
		if sec != nil {
			t.Sectors = append(t.Sectors, *sec)
		}

		pos = headerPos + 1
	}

	if len(t.Sectors) > expected {
		t.HasExtraSectors = true
		log.Add(diagnosis.New(diagnosis.Protection, diagnosis.CodeExtraSectors, uint8(trackNumber),
			"more sectors found than the nominal layout"))
	} else if len(t.Sectors) < expected {
		log.Add(diagnosis.New(diagnosis.Warning, diagnosis.CodeMissingSector, uint8(trackNumber),
			"fewer sectors found than expected"))
	}

	validSectors := 0
	for _, s := range t.Sectors {
		if s.HeaderOK && s.DataOK {
			validSectors++
		}
	}
	if t.SyncCount == 0 || (validSectors == 0 && len(t.Sectors) > 0) {
		t.IsKillerTrack = true
		log.Add(diagnosis.New(diagnosis.Protection, diagnosis.CodeKillerTrack, uint8(trackNumber),
			"no sync marks or no valid sectors decoded"))
	}

	t.Score = scoreTrack(t, expected, len(raw), headerDecodeErrors+dataDecodeErrors, validSectors)
	return t
}

// decodeSector attempts a header decode at headerPos (two 5-byte GCR
// blocks), then scans forward for the data sync and decodes 65 GCR blocks
// into the 256-byte sector body.
func decodeSector(raw []byte, headerPos, expectedTrack int, log *diagnosis.Log) (*Sector, bool, bool) {
	if headerPos+10 > len(raw) {
		return nil, false, false
	}

	var hBlock1, hBlock2 [5]byte
	copy(hBlock1[:], raw[headerPos:headerPos+5])
	copy(hBlock2[:], raw[headerPos+5:headerPos+10])

	b1, _, ok1 := gcr.Decode5to4(hBlock1)
	b2, _, ok2 := gcr.Decode5to4(hBlock2)
	headerOK := ok1 && ok2

	decoded := [8]byte{b1[0], b1[1], b1[2], b1[3], b2[0], b2[1], b2[2], b2[3]}
	if decoded[0] != 0x08 {
		headerOK = false
	}
	csum := decoded[2] ^ decoded[3] ^ decoded[4] ^ decoded[5]
	if csum != decoded[1] {
		headerOK = false
		log.Add(diagnosis.WithSector(diagnosis.Error, diagnosis.CodeChecksumError, uint8(expectedTrack), decoded[2],
			"header checksum mismatch"))
	}

	sectorID := decoded[2]
	trackID := decoded[3]
	if headerOK && int(trackID) != expectedTrack {
		log.Add(diagnosis.WithSector(diagnosis.Warning, diagnosis.CodeWrongTrackID, uint8(expectedTrack), sectorID,
			"header reports a different track id"))
	}

	sec := &Sector{Track: trackID, Sector: sectorID, HeaderOK: headerOK}
	if !headerOK {
		return sec, false, false
	}

	dataSyncPos, dataSyncLen := gcr.ScanSync(raw, headerPos+10, gcr.MinSyncBytes)
	if dataSyncPos < 0 || dataSyncPos > headerPos+10+dataSyncSearchWindow {
		return sec, true, false
	}
	dataPos := dataSyncPos + dataSyncLen

	dataOK := decodeDataBlock(raw, dataPos, sec, log)
	return sec, true, dataOK
}

func decodeDataBlock(raw []byte, dataPos int, sec *Sector, log *diagnosis.Log) bool {
	const blocks = 65
	if dataPos+blocks*5 > len(raw) {
		return false
	}

	var body [260]byte
	for i := 0; i < blocks; i++ {
		var block [5]byte
		copy(block[:], raw[dataPos+i*5:dataPos+i*5+5])
		out, _, _ := gcr.Decode5to4(block)
		body[i*4], body[i*4+1], body[i*4+2], body[i*4+3] = out[0], out[1], out[2], out[3]
	}

	if body[0] != 0x07 {
		return false
	}
	copy(sec.Data[:], body[1:257])
	storedChecksum := body[257]
	if gcr.Checksum(sec.Data[:]) != storedChecksum {
		log.Add(diagnosis.WithSector(diagnosis.Error, diagnosis.CodeChecksumError, sec.Track, sec.Sector,
			"data checksum mismatch"))
		sec.DataOK = false
		return false
	}
	sec.DataOK = true
	return true
}

func scoreTrack(t *Track, expected, rawLen, decodeErrors, validSectors int) TrackScore {
	clampRatio := func(n, d int) float64 {
		if d == 0 {
			return 0
		}
		v := float64(n) / float64(d)
		if v > 1 {
			return 1
		}
		return v
	}

	sync := clampRatio(t.SyncCount, expected)

	gcrScore := 1.0
	if len(t.Sectors) > 0 {
		gcrScore = 1 - float64(decodeErrors)/float64(len(t.Sectors))
	}
	if gcrScore < 0 {
		gcrScore = 0
	}

	checksum := clampRatio(validSectors, expected)
	structure := clampRatio(len(t.Sectors), expected)

	timing := 1.0
	expectedSize := expected * 356 // approximate GCR bytes/sector
	if expectedSize > 0 {
		if float64(rawLen) > 1.1*float64(expectedSize) {
			timing = 0.9
		} else if float64(rawLen) < 0.9*float64(expectedSize) {
			timing = 0.8
		}
	}

	overall := 0.20*sync + 0.25*gcrScore + 0.25*checksum + 0.15*structure + 0.15*timing
	return TrackScore{Sync: sync, GCR: gcrScore, Checksum: checksum, Structure: structure, Timing: timing, Overall: overall}
}

// Protection names a disk-level protection scheme inferred from aggregate
// per-track statistics.
type Protection struct {
	Name       string
	Confidence float64
}

// DiskStats aggregates the per-track flags that the protection heuristic
// consumes.
type DiskStats struct {
	WeakTracks         int
	HalfTracksWithData int
	LongSyncTracks     int
	ExtraSectorTracks  int
	KillerTracks        int
	Track20HasWeakBits bool
	Track20IsKiller    bool
}

// ClassifyProtection applies the disk-level protection heuristic ladder.
func ClassifyProtection(s DiskStats) (Protection, bool) {
	switch {
	case s.WeakTracks > 0 && s.HalfTracksWithData > 0:
		return Protection{"Vorpal/RapidLok", 0.90}, true
	case s.Track20HasWeakBits || s.Track20IsKiller:
		return Protection{"V-Max!", 0.85}, true
	case s.LongSyncTracks > 5:
		return Protection{"Epyx FastLoad", 0.75}, true
	case s.WeakTracks > 3:
		return Protection{"weak-bit", 0.70}, true
	case s.HalfTracksWithData > 2:
		return Protection{"half-track", 0.80}, true
	case s.ExtraSectorTracks > 0:
		return Protection{"extra-sector", 0.65}, true
	case s.KillerTracks > 0:
		return Protection{"killer-track", 0.70}, true
	default:
		return Protection{}, false
	}
}

// Image is a full decoded G64/D64-source disk: one Track per physical (or
// half-) track position.
type Image struct {
	Tracks []*Track
}

// d64TrackOffset gives the byte offset of the start of each of the 35
// standard D64 tracks.
func d64TrackOffset(track int) int {
	offset := 0
	for t := 1; t < track; t++ {
		offset += sectorsPerTrack(t) * 256
	}
	return offset
}

const d64ErrorBlockSize = 683

// ExportD64 copies decoded sector data for the 35 standard tracks into a
// flat D64 image, appending a 683-byte error-info block when withErrors is
// set: 0x01 per clean sector, 0x05 where the data checksum failed.
func ExportD64(img *Image, withErrors bool) []byte {
	const standardTracks = 35
	total := 0
	for t := 1; t <= standardTracks; t++ {
		total += sectorsPerTrack(t) * 256
	}
	if withErrors {
		total += d64ErrorBlockSize
	}

	buf := make([]byte, total)
	errBlock := make([]byte, 0, d64ErrorBlockSize)

	for _, track := range img.Tracks {
		if track.Number < 1 || track.Number > standardTracks || track.HalfTrack {
			continue
		}
		perTrack := sectorsPerTrack(track.Number)
		base := d64TrackOffset(track.Number)

		clean := make([]bool, perTrack)
		for _, sec := range track.Sectors {
			if int(sec.Sector) >= perTrack {
				continue
			}
			copy(buf[(base+int(sec.Sector)*256):], sec.Data[:])
			clean[sec.Sector] = sec.DataOK
		}
		for _, ok := range clean {
			if ok {
				errBlock = append(errBlock, 0x01)
			} else {
				errBlock = append(errBlock, 0x05)
			}
		}
	}

	if withErrors {
		copy(buf[total-d64ErrorBlockSize:], errBlock)
	}
	return buf
}

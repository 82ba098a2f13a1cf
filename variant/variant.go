// Package variant identifies which of the 47 supported floppy image
// variants a byte buffer holds, in the confidence-scored priority ladder
// the detector tries in fixed order: magic-prefix, exact-size,
// range-size, modular-size, structural, then BPB fallback.
package variant

import (
	"bytes"
	"fmt"
)

// Format names the top-level container kind.
type Format string

const (
	FormatSCP     Format = "SCP"
	FormatHFE     Format = "HFE"
	FormatWOZ     Format = "WOZ"
	FormatG64     Format = "G64"
	FormatIPF     Format = "IPF"
	FormatATR     Format = "ATR"
	FormatADF     Format = "ADF"
	FormatD64     Format = "D64"
	FormatD71     Format = "D71"
	FormatD81     Format = "D81"
	FormatNIB     Format = "NIB"
	FormatDMK     Format = "DMK"
	FormatIMG     Format = "IMG"
	Format2IMG    Format = "2IMG"
	FormatUnknown Format = "UNKNOWN"
)

// Info is the by-value result of detection: no references into the input
// buffer escape it.
type Info struct {
	Format      Format
	Variant     string // sub-variant label, e.g. "35-Track", "GEOS", "CTRaw"
	Confidence  int    // 0..100
	Tracks      int
	Sides       int
	SizeBytes   int
	HasErrors   bool
	Limitations []string // sub-variants detected but not fully supported
}

// ErrUnknownFormat is returned when no rule in the priority ladder matches.
type ErrUnknownFormat struct {
	Size int
}

func (e *ErrUnknownFormat) Error() string {
	return fmt.Sprintf("variant: could not identify format for %d-byte buffer", e.Size)
}

// D64 size table: the error-map variants trail one byte per sector.
const (
	d64Size35Track       = 174848
	d64Size35TrackErrors = d64Size35Track + 683
	d64Size40Track       = 196608
	d64Size40TrackErrors = 197376
	d64Size42Track       = 205312
	d64Size42TrackErrors = 206114
)

const (
	adfSizeDD = 901120
	adfSizeHD = 1802240
)

const nibModulus = 6656

// Detect runs the priority ladder against data and returns the best-matching
// VariantInfo, or ErrUnknownFormat if nothing matches. It performs no
// mutation and allocates nothing beyond its return value.
func Detect(data []byte) (Info, error) {
	if info, ok := detectMagicPrefix(data); ok {
		return info, nil
	}
	if info, ok := detectExactSize(data); ok {
		return info, nil
	}
	if info, ok := detectD64RangeSize(data); ok {
		return info, nil
	}
	if info, ok := detectNIB(data); ok {
		return info, nil
	}
	if info, ok := detectDMK(data); ok {
		return info, nil
	}
	if info, ok := detectIMGFallback(data); ok {
		return info, nil
	}
	return Info{}, &ErrUnknownFormat{Size: len(data)}
}

func detectMagicPrefix(data []byte) (Info, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("SCP")):
		return Info{Format: FormatSCP, Confidence: 100, SizeBytes: len(data)}, true

	case bytes.HasPrefix(data, []byte("HXCPICFE")):
		return Info{Format: FormatHFE, Variant: "v1", Confidence: 100, SizeBytes: len(data)}, true

	case bytes.HasPrefix(data, []byte("HXCHFE3")), bytes.HasPrefix(data, []byte("HXCHFEV3")):
		return Info{Format: FormatHFE, Variant: "v3", Confidence: 100, SizeBytes: len(data)}, true

	case isWOZ(data):
		return detectWOZSubVariant(data), true

	case bytes.HasPrefix(data, []byte("GCR-1541")):
		return detectG64(data), true

	case bytes.HasPrefix(data, []byte("CAPS")):
		return detectIPFSubVariant(data), true

	case len(data) >= 2 && data[0] == 0x96 && data[1] == 0x02:
		return Info{Format: FormatATR, Confidence: 100, SizeBytes: len(data)}, true

	case bytes.HasPrefix(data, []byte("2IMG")):
		return Info{Format: Format2IMG, Confidence: 100, SizeBytes: len(data)}, true
	}
	return Info{}, false
}

func isWOZ(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// The four tail bytes follow the magic; read as a little-endian u32
	// they spell 0x0A0D0AFF. Some tooling writes them in the reversed
	// order, which is accepted too.
	hasTail := data[4] == 0xFF && data[5] == 0x0A && data[6] == 0x0D && data[7] == 0x0A
	altTail := data[4] == 0x0A && data[5] == 0x0D && data[6] == 0x0A && data[7] == 0xFF
	if !hasTail && !altTail {
		return false
	}
	return bytes.HasPrefix(data, []byte("WOZ1")) || bytes.HasPrefix(data, []byte("WOZ2"))
}

func detectWOZSubVariant(data []byte) Info {
	variant := "1"
	if bytes.HasPrefix(data, []byte("WOZ2")) {
		variant = "2"
	}
	info := Info{Format: FormatWOZ, Variant: variant, Confidence: 100, SizeBytes: len(data)}

	infoChunkVersion, bitTiming, ok := parseWOZInfoChunk(data)
	if ok && variant == "2" && infoChunkVersion >= 3 {
		info.Variant = "2.1"
		_ = bitTiming
		info.Limitations = append(info.Limitations, "WOZ 2.1 optimal bit timing not fully supported")
	}
	return info
}

// parseWOZInfoChunk walks the {id,size,bytes} chunk stream looking for the
// "INFO" chunk and returns its version byte and optimal-bit-timing byte
// (offset 39 within the chunk payload).
func parseWOZInfoChunk(data []byte) (version byte, bitTiming byte, ok bool) {
	const headerLen = 12
	pos := headerLen
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := le32(data[pos+4 : pos+8])
		payloadStart := pos + 8
		if id == "INFO" && payloadStart < len(data) {
			version = data[payloadStart]
			if payloadStart+39 < len(data) {
				bitTiming = data[payloadStart+39]
			}
			return version, bitTiming, true
		}
		pos = payloadStart + int(size)
		if size == 0 {
			break
		}
	}
	return 0, 0, false
}

func detectG64(data []byte) Info {
	info := Info{Format: FormatG64, Confidence: 100, SizeBytes: len(data)}
	if len(data) >= 10 {
		numTracks := int(data[9])
		info.Tracks = numTracks / 2
	}
	return info
}

func detectIPFSubVariant(data []byte) Info {
	info := Info{Format: FormatIPF, Confidence: 100, SizeBytes: len(data)}
	pos := 0
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		length := be32(data[pos+4 : pos+8])
		if id == "CTRA" {
			info.Variant = "CTRaw"
			info.Limitations = append(info.Limitations, "IPF CTRaw raw-flux sub-variant not fully supported")
			break
		}
		if length == 0 {
			break
		}
		pos += int(length)
	}
	return info
}

func detectExactSize(data []byte) (Info, bool) {
	size := len(data)
	switch size {
	case adfSizeDD:
		info := detectADFSubVariant(data)
		info.SizeBytes = size
		info.Confidence = 95
		return info, true
	case adfSizeHD:
		info := detectADFSubVariant(data)
		info.SizeBytes = size
		info.Confidence = 95
		info.Variant += "-HD"
		return info, true
	}
	return Info{}, false
}

var adfDOSVariants = map[byte]string{
	0: "OFS", 1: "FFS", 2: "OFS-INTL", 3: "FFS-INTL", 4: "OFS-DC", 5: "FFS-DC",
}

func detectADFSubVariant(data []byte) Info {
	info := Info{Format: FormatADF, Confidence: 95}
	if len(data) < 4 || string(data[0:3]) != "DOS" {
		info.Variant = "unknown"
		return info
	}
	if name, ok := adfDOSVariants[data[3]]; ok {
		info.Variant = name
	} else {
		info.Variant = "unknown"
	}
	if len(data) >= 512 && data[510] == 0x55 && data[511] == 0xAA && (data[0] == 0xEB || data[0] == 0xE9) {
		info.Variant = "PC-FAT"
	}
	return info
}

func detectD64RangeSize(data []byte) (Info, bool) {
	size := len(data)
	info := Info{SizeBytes: size}
	switch size {
	case d64Size35Track:
		info.Format, info.Variant, info.Confidence, info.Tracks = FormatD64, "35-Track", 95, 35
	case d64Size35TrackErrors:
		info.Format, info.Variant, info.Confidence, info.Tracks, info.HasErrors = FormatD64, "35-Track", 95, 35, true
	case d64Size40Track:
		info.Format, info.Variant, info.Confidence, info.Tracks = FormatD64, "40-Track", 95, 40
	case d64Size40TrackErrors:
		info.Format, info.Variant, info.Confidence, info.Tracks, info.HasErrors = FormatD64, "40-Track", 95, 40, true
	case d64Size42Track:
		info.Format, info.Variant, info.Confidence, info.Tracks = FormatD64, "42-Track", 95, 42
	case d64Size42TrackErrors:
		info.Format, info.Variant, info.Confidence, info.Tracks, info.HasErrors = FormatD64, "42-Track", 95, 42, true
	default:
		return Info{}, false
	}

	refineD64SubVariant(data, &info)
	return info, true
}

// refineD64SubVariant inspects the catalog sector at 0x16500 for GEOS and
// SpeedDOS markers.
func refineD64SubVariant(data []byte, info *Info) {
	const catalogOffset = 0x16500
	if len(data) < catalogOffset+256 {
		return
	}

	catalog := data[catalogOffset : catalogOffset+256]
	for i := 0; i+32 <= len(catalog) && i < 8*32; i += 32 {
		fileType := catalog[i+2]
		if fileType&0x80 != 0 && fileType != 0x80 {
			info.Variant = "GEOS"
			break
		}
	}

	if len(data) > catalogOffset+1 {
		track, sector := data[catalogOffset], data[catalogOffset+1]
		if !(track == 18 && (sector == 0 || sector == 1)) {
			info.Variant = "SpeedDOS"
		}
	}
}

func detectNIB(data []byte) (Info, bool) {
	size := len(data)
	if size == 0 || size%nibModulus != 0 {
		return Info{}, false
	}
	if size < nibModulus || size > nibModulus*90 {
		return Info{}, false
	}
	return Info{
		Format:      FormatNIB,
		Confidence:  80,
		SizeBytes:   size,
		Tracks:      size / nibModulus,
		Limitations: []string{"NIB half-track bit-timing not fully supported"},
	}, true
}

func detectDMK(data []byte) (Info, bool) {
	if len(data) < 16 {
		return Info{}, false
	}
	trackCount := data[0]
	if trackCount == 0 || trackCount > 96 {
		return Info{}, false
	}
	trackLen := int(le16(data[2:4]))
	if trackLen < 128 || trackLen > 0x4000 {
		return Info{}, false
	}

	sides := 1
	flags := data[4]
	if flags&0x10 == 0 {
		sides = 2
	}

	expected := 16 + int(trackCount)*trackLen*sides
	if abs(len(data)-expected) > trackLen {
		return Info{}, false
	}

	return Info{
		Format:     FormatDMK,
		Confidence: 80,
		SizeBytes:  len(data),
		Tracks:     int(trackCount),
		Sides:      sides,
	}, true
}

var imgSizeTable = map[int]string{
	160 * 1024:    "160K",
	180 * 1024:    "180K",
	320 * 1024:    "320K",
	360 * 1024:    "360K",
	720 * 1024:    "720K",
	1200 * 1024:   "1.2M",
	1440 * 1024:   "1.44M",
	1680 * 1024:   "DMF",
	2880 * 1024:   "2.88M",
}

func detectIMGFallback(data []byte) (Info, bool) {
	if name, ok := imgSizeTable[len(data)]; ok {
		return Info{Format: FormatIMG, Variant: name, Confidence: 60, SizeBytes: len(data)}, true
	}

	if len(data) < 13 {
		return Info{}, false
	}
	bytesPerSector := le16(data[11:13])
	if bytesPerSector == 0 || len(data) < 26 {
		return Info{}, false
	}
	sectorsPerTrack := le16(data[24:26])
	var heads uint16
	if len(data) >= 28 {
		heads = le16(data[26:28])
	}
	if bytesPerSector%128 != 0 || sectorsPerTrack == 0 || heads == 0 {
		return Info{}, false
	}

	return Info{
		Format:     FormatIMG,
		Variant:    "BPB",
		Confidence: 75,
		SizeBytes:  len(data),
		Sides:      int(heads),
	}, true
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func be32(b []byte) uint32 {
	return uint32(b[3]) | uint32(b[2])<<8 | uint32(b[1])<<16 | uint32(b[0])<<24
}
func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

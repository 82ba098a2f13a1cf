package primitive

import "testing"

func TestXORChecksumSelfCancels(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		{0x08, 0x00, 0x01, 0x00, 0x02, 0x03, 0xAA, 0x55},
	}
	for _, data := range cases {
		sum := XORChecksum(data)
		withSum := append(append([]byte{}, data...), sum)
		if got := XORChecksum(withSum); got != 0 {
			t.Errorf("XORChecksum(data ++ [sum]) = %#x, want 0", got)
		}
	}
}

func TestCRC32Stable(t *testing.T) {
	data := []byte("UFF track payload")
	a := CRC32(data)
	b := CRC32(data)
	if a != b {
		t.Fatalf("CRC32 not deterministic: %x vs %x", a, b)
	}
	if a == 0 {
		t.Fatalf("CRC32 of non-empty data should not be zero")
	}
}

func TestCRC64Stable(t *testing.T) {
	data := []byte("UFF\x00 footer region")
	if CRC64(data) != CRC64(data) {
		t.Fatalf("CRC64 not deterministic")
	}
}

func TestCRC16CCITTKnownVector(t *testing.T) {
	// CRC-16/CCITT-FALSE ("false" ITU variant) check value for the
	// standard "123456789" test vector is 0x29B1.
	got := CRC16CCITT([]byte("123456789"))
	if got != 0x29b1 {
		t.Fatalf("CRC16CCITT(\"123456789\") = %#04x, want 0x29b1", got)
	}
}

func TestEndianRoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	PutUint32LE(buf, 0xdeadbeef)
	if got := Uint32LE(buf); got != 0xdeadbeef {
		t.Fatalf("Uint32LE round trip = %#x", got)
	}

	buf16 := make([]byte, 2)
	PutUint16LE(buf16, 0xcafe)
	if got := Uint16LE(buf16); got != 0xcafe {
		t.Fatalf("Uint16LE round trip = %#x", got)
	}

	bufBE := make([]byte, 4)
	PutUint32BE(bufBE, 0x01020304)
	if got := Uint32BE(bufBE); got != 0x01020304 {
		t.Fatalf("Uint32BE round trip = %#x", got)
	}
}

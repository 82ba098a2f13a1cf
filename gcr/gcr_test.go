package gcr

import "testing"

func TestRoundTrip(t *testing.T) {
	cases := [][4]byte{
		{0x08, 0x00, 0x01, 0x00},
		{0x00, 0x00, 0x00, 0x00},
		{0xff, 0xff, 0xff, 0xff},
		{0x12, 0x34, 0x56, 0x78},
	}
	for _, in := range cases {
		encoded := Encode4to5(in)
		out, errBitmap, valid := Decode5to4(encoded)
		if !valid || errBitmap != 0 {
			t.Fatalf("decode(encode(%v)) reported errors: bitmap=%#02x valid=%v", in, errBitmap, valid)
		}
		if out != in {
			t.Fatalf("decode(encode(%v)) = %v, want %v", in, out, in)
		}
	}
}

func TestDecodeAllZeroBlockFullyInvalid(t *testing.T) {
	_, errBitmap, valid := Decode5to4([5]byte{0x00, 0x00, 0x00, 0x00, 0x00})
	if valid {
		t.Fatalf("all-zero GCR block should not be valid")
	}
	if errBitmap != 0xff {
		t.Fatalf("all-zero GCR block errorBitmap = %#02x, want 0xff", errBitmap)
	}
}

func TestScanSyncFindsRunStart(t *testing.T) {
	data := make([]byte, 20)
	for i := 8; i < 14; i++ {
		data[i] = 0xff
	}
	pos, length := ScanSync(data, 0, MinSyncBytes)
	if pos != 8 || length != 6 {
		t.Fatalf("ScanSync = (%d, %d), want (8, 6)", pos, length)
	}
}

func TestScanSyncNoRun(t *testing.T) {
	data := make([]byte, 20)
	pos, _ := ScanSync(data, 0, MinSyncBytes)
	if pos != -1 {
		t.Fatalf("ScanSync on all-zero data should return -1, got %d", pos)
	}
}

func TestChecksumSelfCancels(t *testing.T) {
	s := []byte{1, 2, 3, 4, 5}
	sum := Checksum(s)
	if Checksum(append(append([]byte{}, s...), sum)) != 0 {
		t.Fatalf("csum(s ++ [csum(s)]) != 0")
	}
}

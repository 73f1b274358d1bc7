package ipstack

import "testing"

func TestChecksumRoundTrip(t *testing.T) {
	data := []byte{0x45, 0x00, 0x00, 0x1c, 0x00, 0x00, 0x40, 0x00, 0x40, 0x01, 0x00, 0x00, 0x0a, 0x00, 0x00, 0x01, 0x0a, 0x00, 0x00, 0x02}
	sum := Checksum(data)
	data[10] = byte(sum >> 8)
	data[11] = byte(sum)
	if !VerifyChecksum(data) {
		t.Fatalf("expected checksum to verify after patching in computed value")
	}
}

func TestChecksumOddLength(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	if Checksum(data) == 0 {
		t.Fatalf("expected nonzero checksum for arbitrary odd-length data")
	}
}

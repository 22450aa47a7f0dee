package mocks

// Parameter sets of a 352x288 High profile stream. They parse with any
// conforming SPS/PPS reader, so muxers can build real sample descriptions
// from fake codec output.
var (
	TestSPS = []byte{
		0x67, 0x64, 0x00, 0x0c, 0xac, 0x3b, 0x50, 0xb0,
		0x4b, 0x42, 0x00, 0x00, 0x03, 0x00, 0x02, 0x00,
		0x00, 0x03, 0x00, 0x3d, 0x08,
	}
	TestPPS = []byte{0x68, 0xee, 0x3c, 0x80}
)

const (
	TestSPSWidth  = 352
	TestSPSHeight = 288
)

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// AccessUnit returns an Annex B access unit. Key units carry SPS, PPS and
// an IDR slice; others a single non-IDR slice. seq is embedded in the
// slice payload so packets are distinguishable.
func AccessUnit(key bool, seq int, withParams bool) []byte {
	var out []byte
	if key && withParams {
		out = append(out, startCode...)
		out = append(out, TestSPS...)
		out = append(out, startCode...)
		out = append(out, TestPPS...)
	}
	out = append(out, startCode...)
	if key {
		out = append(out, 0x65, 0x88, 0x84)
	} else {
		out = append(out, 0x41, 0x9a, 0x02)
	}
	out = append(out, byte(seq>>8), byte(seq), 0x10, 0x20, 0x30)
	return out
}

// ExtraData returns SPS and PPS in Annex B framing.
func ExtraData() []byte {
	var out []byte
	out = append(out, startCode...)
	out = append(out, TestSPS...)
	out = append(out, startCode...)
	out = append(out, TestPPS...)
	return out
}

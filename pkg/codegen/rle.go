package codegen

// The RLE packet encoding understood by the __rle_unpack runtime routine:
//
//	0x01..0x7F  n literal bytes follow
//	0x81..0xFF  the next byte repeats (n - 0x80) + 1 times
//	0x00        end of stream
//
// Runs shorter than three bytes are not worth a repeat packet.

// RLEEncode packs b into the packet encoding.
func RLEEncode(b []byte) []byte {
	var out []byte
	i := 0
	for i < len(b) {
		run := 1
		for i+run < len(b) && b[i+run] == b[i] && run < 127 {
			run++
		}
		if run >= 3 {
			out = append(out, byte(0x80+run-1), b[i])
			i += run
			continue
		}
		// Collect literals until the next long run or the cap.
		start := i
		for i < len(b) {
			r := 1
			for i+r < len(b) && b[i+r] == b[i] && r < 127 {
				r++
			}
			if r >= 3 || i-start+r > 127 {
				break
			}
			i += r
		}
		out = append(out, byte(i-start))
		out = append(out, b[start:i]...)
	}
	return append(out, 0x00)
}

// RLEDecode reverses RLEEncode. It mirrors what __rle_unpack does at
// runtime and exists for round-trip verification.
func RLEDecode(b []byte) []byte {
	var out []byte
	i := 0
	for i < len(b) {
		ctl := b[i]
		i++
		switch {
		case ctl == 0x00:
			return out
		case ctl <= 0x7F:
			n := int(ctl)
			out = append(out, b[i:i+n]...)
			i += n
		default:
			n := int(ctl-0x80) + 1
			for j := 0; j < n; j++ {
				out = append(out, b[i])
			}
			i++
		}
	}
	return out
}

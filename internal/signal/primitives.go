package signal

// Unsigned16 combines two bytes big-endian into [0, 65535].
func Unsigned16(hi, lo byte) int {
	return int(hi)<<8 | int(lo)
}

// Signed16 combines two bytes big-endian and reinterprets the result as
// two's complement, giving [-32768, 32767].
func Signed16(hi, lo byte) int {
	x := Unsigned16(hi, lo)
	if x&0x8000 != 0 {
		x -= 0x10000
	}
	return x
}

// Percent scales a byte onto 0..100.
func Percent(b byte) float64 {
	return 100 * (float64(b) / 255)
}

// Flag normalises an already-masked byte to 0 or 1. It never applies a mask
// itself; callers pass b&mask.
func Flag(masked byte) int {
	if masked != 0 {
		return 1
	}
	return 0
}

// FlagIf normalises a condition to 0 or 1.
func FlagIf(cond bool) int {
	if cond {
		return 1
	}
	return 0
}

// Lookup maps raw through table, falling back to def for unmapped codes.
// It is total: an unknown raw value is never an error.
func Lookup(table map[byte]int, raw byte, def int) int {
	if v, ok := table[raw]; ok {
		return v
	}
	return def
}

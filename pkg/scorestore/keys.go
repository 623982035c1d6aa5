package scorestore

// EncodeKey maps an arbitrary string (typically a player or message name) to
// a non-negative 32-bit integer usable as a scoreboard score.
//
// The function is pure and deterministic: the same input always yields the
// same output. It is a rolling polynomial hash (multiply by 31, add the code
// unit, wrap to 32-bit signed, take the absolute value) - not
// cryptographically strong, only collision-resistant enough for the expected
// key cardinality. Two distinct names mapping to the same key is a known,
// unhandled limitation.
func EncodeKey(name string) int32 {
	var h int32
	for _, r := range name {
		h = h*31 + int32(r)
	}
	if h < 0 {
		// math.MinInt32 has no positive counterpart; fold it to zero.
		if h == -2147483648 {
			return 0
		}
		return -h
	}
	return h
}

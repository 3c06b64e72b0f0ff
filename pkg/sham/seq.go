package sham

// Sequence numbers live in a 32-bit modular space and must always be
// compared with wrap awareness (§9 re-architecture guidance: the C
// original's naive unsigned comparisons are only safe within a single
// connection lifetime far from wrap).

// seqLess reports whether a is strictly before b in sequence space,
// using signed-difference wraparound comparison (RFC 1982 style).
func seqLess(a, b uint32) bool {
	return int32(a-b) < 0
}

// seqLessEq reports whether a is before or equal to b in sequence space.
func seqLessEq(a, b uint32) bool {
	return a == b || seqLess(a, b)
}

// seqAdd advances a sequence number by n bytes, wrapping modulo 2^32.
func seqAdd(seq uint32, n int) uint32 {
	return seq + uint32(n)
}

// seqDiff returns b-a as a signed distance in sequence space: positive
// when b is ahead of a, negative when b is behind.
func seqDiff(a, b uint32) int64 {
	return int64(int32(b - a))
}

// seqInRange reports whether seq falls in [lo, hi) in sequence space.
func seqInRange(seq, lo, hi uint32) bool {
	return seqLessEq(lo, seq) && seqLess(seq, hi)
}

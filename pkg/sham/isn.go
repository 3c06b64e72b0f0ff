package sham

import "math/rand/v2"

// generateISN picks an initial sequence number. Any value is acceptable
// per §4.3; ISN collisions across time are out of scope. math/rand/v2's
// package-level source is auto-seeded, matching the time-seeded PRNG the
// C original uses (sham_generate_isn).
func generateISN() uint32 {
	return rand.Uint32()
}

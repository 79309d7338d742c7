package dilithium

// power2Round splits r into (r1, r0) with r = r1·2^D + r0 mod q and
// r0 ∈ (-2^(D-1), 2^(D-1)], r0 in normal form.
func power2Round(r uint32) (r1, r0 uint32) {
	const half = 1 << (D - 1)
	r1 = r >> D
	r0 = r - r1<<D
	if r0 > half {
		r0 = fieldSub(r0, 1<<D)
		r1++
	}
	return r1, r0
}

// highBits returns r1 = HighBits(r, 2γ₂) using the branch-free magic
// constants of the reference implementation.
func highBits(r uint32, gamma2 int32) uint32 {
	r1 := int32((r + 127) >> 7)
	if gamma2 == (Q-1)/32 {
		r1 = (r1*1025 + (1 << 21)) >> 22
		return uint32(r1) & 15
	}
	// γ₂ = (q-1)/88
	r1 = (r1*11275 + (1 << 23)) >> 24
	r1 ^= ((43 - r1) >> 31) & r1
	return uint32(r1)
}

// decompose splits r into (r1, r0) with r = r1·2γ₂ + r0 mod q and
// r0 ∈ (-γ₂, γ₂] centered, except the q-1 wraparound case which folds into
// r1 = 0 with r0 decremented.
func decompose(r uint32, gamma2 int32) (r1 uint32, r0 int32) {
	r1 = highBits(r, gamma2)
	r0 = int32(r) - int32(r1)*gamma2*2
	r0 -= (((Q-1)/2 - r0) >> 31) & Q
	return r1, r0
}

// makeHint returns the hint bit for low part z (normal form) against high
// part r: 0 iff z ≤ γ₂ ∨ z > q-γ₂ ∨ (z = q-γ₂ ∧ r = 0).
func makeHint(z, r uint32, gamma2 int32) uint32 {
	g := uint32(gamma2)
	if z <= g || z > Q-g || (z == Q-g && r == 0) {
		return 0
	}
	return 1
}

// useHint recovers HighBits(r) adjusted by the hint bit, in ℤ_m with
// m = (q-1)/(2γ₂).
func useHint(hint, r uint32, gamma2 int32) uint32 {
	r1, r0 := decompose(r, gamma2)
	if hint == 0 {
		return r1
	}
	if gamma2 == (Q-1)/32 {
		if r0 > 0 {
			return (r1 + 1) & 15
		}
		return (r1 - 1) & 15
	}
	// m = 44
	if r0 > 0 {
		if r1 == 43 {
			return 0
		}
		return r1 + 1
	}
	if r1 == 0 {
		return 43
	}
	return r1 - 1
}

// Power2Round splits v into (v1, v0) coefficient-wise.
func (v Vec) Power2Round(v0, v1 Vec) {
	for i := range v {
		for j := 0; j < N; j++ {
			v1[i][j], v0[i][j] = power2Round(v[i][j])
		}
	}
}

// Decompose splits v into high and low vectors for the given γ₂.  Low
// coefficients are returned in normal form.
func (v Vec) Decompose(v0, v1 Vec, gamma2 int32) {
	for i := range v {
		for j := 0; j < N; j++ {
			r1, r0 := decompose(v[i][j], gamma2)
			v1[i][j] = r1
			if r0 < 0 {
				r0 += Q
			}
			v0[i][j] = uint32(r0)
		}
	}
}

// HighBits fills v1 with HighBits of v.
func (v Vec) HighBits(v1 Vec, gamma2 int32) {
	for i := range v {
		for j := 0; j < N; j++ {
			v1[i][j] = highBits(v[i][j], gamma2)
		}
	}
}

// MakeHint fills h with hint bits of the low vector v against the high
// vector w1 and returns the total number of ones.
func (v Vec) MakeHint(h, w1 Vec, gamma2 int32) int {
	pop := 0
	for i := range v {
		for j := 0; j < N; j++ {
			b := makeHint(v[i][j], w1[i][j], gamma2)
			h[i][j] = b
			pop += int(b)
		}
	}
	return pop
}

// UseHint fills v with the hint-adjusted HighBits of w.
func (v Vec) UseHint(w, h Vec, gamma2 int32) {
	for i := range v {
		for j := 0; j < N; j++ {
			v[i][j] = useHint(h[i][j], w[i][j], gamma2)
		}
	}
}

package dilithium

// Arithmetic in ℤ_q.  Coefficients are kept in normal form [0, q) at every
// package boundary; pointwise products use Montgomery reduction, so the
// 46-bit intermediate always lives in a uint64.

const (
	// qInv = q⁻¹ mod 2³²
	qInv = 58728449
	// qNegInv = -q⁻¹ mod 2³²
	qNegInv = 4236238847
	// montR2 = 2⁶⁴ mod q
	montR2 = 2365951
	// invN = 256⁻¹·R² mod q.  The Montgomery multiplication by invN at the
	// end of InvNTT leaves a net factor R that cancels the R⁻¹ picked up by
	// MulHat, so a MulHat/InvNTT pair is exact in normal form.
	invN = 41978
)

// reduceOnce brings a value < 2q into [0, q).
func reduceOnce(a uint32) uint32 {
	x := a - Q
	x += (x >> 31) * Q
	return x
}

// fieldAdd returns (a + b) mod q for a, b in [0, q).
func fieldAdd(a, b uint32) uint32 {
	return reduceOnce(a + b)
}

// fieldSub returns (a - b) mod q for a, b in [0, q).
func fieldSub(a, b uint32) uint32 {
	return reduceOnce(a - b + Q)
}

// montReduce returns a·R⁻¹ mod q for a < q·2³².
func montReduce(a uint64) uint32 {
	t := uint32(a) * qNegInv
	return reduceOnce(uint32((a + uint64(t)*Q) >> 32))
}

// montMul returns a·b·R⁻¹ mod q.
func montMul(a, b uint32) uint32 {
	return montReduce(uint64(a) * uint64(b))
}

// fieldCenter returns the centered representative of a, in (-q/2, q/2].
func fieldCenter(a uint32) int32 {
	const half = (Q - 1) / 2
	if a > half {
		return int32(a) - Q
	}
	return int32(a)
}

// fieldNorm returns |smod(a)|.
func fieldNorm(a uint32) uint32 {
	const half = (Q - 1) / 2
	if a > half {
		return Q - a
	}
	return a
}

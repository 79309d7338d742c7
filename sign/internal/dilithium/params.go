package dilithium

import "errors"

const (
	// N is the number of coefficients of a polynomial.
	N = 256

	// Q is the modulus: 2²³ - 2¹³ + 1.
	Q = 8380417

	// QBits is the number of bits needed to represent a coefficient.
	QBits = 23

	// D is the number of bits dropped from t by Power2Round.
	D = 13

	// SeedSize is the size of the seed consumed by key generation.
	SeedSize = 32

	// TRSize is the size of tr = H(pk).
	TRSize = 64

	// CRHSize is the size of μ and ρ′ digests.
	CRHSize = 64

	// PolyT1Size is the size of a packed polynomial with 10-bit coefficients.
	PolyT1Size = (N * 10) / 8

	// PolyT0Size is the size of a packed polynomial with 13-bit coefficients.
	PolyT0Size = (N * 13) / 8

	// PolyQSize is the size of a polynomial packed at full 23-bit width,
	// used for threshold commitments and mask pieces.
	PolyQSize = (N * QBits) / 8
)

// Mode bundles the parameters of one ML-DSA parameter set.  All three
// security levels share a single implementation body; a Mode is consumed at
// construction time and threaded through every operation.
type Mode struct {
	Name string

	K     int // rows of A, length of t, s₂
	L     int // columns of A, length of y, s₁, z
	Eta   int // s₁, s₂ coefficient bound
	Tau   int // Hamming weight of the challenge
	Omega int // maximum number of ones in the hint

	Gamma1Bits uint  // γ₁ = 2^Gamma1Bits
	Gamma2     int32 // low-order rounding range
	CTildeSize int   // size of the packed challenge seed

	// Derived values.
	Beta             int32 // τ·η
	Gamma1           int32
	W1Bits           uint // bits per packed w₁ coefficient
	PolyLeqEtaSize   int
	PolyLeGamma1Size int
	PolyW1Size       int
	PublicKeySize    int
	PrivateKeySize   int
	SignatureSize    int
}

func newMode(name string, k, l, eta, tau, omega int, gamma1Bits uint, gamma2 int32, cTildeSize int) *Mode {
	m := &Mode{
		Name:       name,
		K:          k,
		L:          l,
		Eta:        eta,
		Tau:        tau,
		Omega:      omega,
		Gamma1Bits: gamma1Bits,
		Gamma2:     gamma2,
		CTildeSize: cTildeSize,
	}
	m.Beta = int32(tau * eta)
	m.Gamma1 = 1 << gamma1Bits

	etaBits := 3
	if eta == 4 {
		etaBits = 4
	}
	m.PolyLeqEtaSize = (N * etaBits) / 8
	m.PolyLeGamma1Size = (N * int(gamma1Bits+1)) / 8
	m.W1Bits = uint(QBits - int(gamma1Bits))
	m.PolyW1Size = (N * int(m.W1Bits)) / 8

	m.PublicKeySize = 32 + PolyT1Size*k
	m.PrivateKeySize = 32 + 32 + TRSize + m.PolyLeqEtaSize*(k+l) + PolyT0Size*k
	m.SignatureSize = cTildeSize + m.PolyLeGamma1Size*l + omega + k
	return m
}

// The three FIPS 204 parameter sets.
var (
	MLDSA44 = newMode("ML-DSA-44", 4, 4, 2, 39, 80, 17, (Q-1)/88, 32)
	MLDSA65 = newMode("ML-DSA-65", 6, 5, 4, 49, 55, 19, (Q-1)/32, 48)
	MLDSA87 = newMode("ML-DSA-87", 8, 7, 2, 60, 75, 19, (Q-1)/32, 64)
)

// ModeByLevel maps a NIST level (44, 65, 87) or a classical-equivalent bit
// strength (128, 192, 256) to its parameter set.
func ModeByLevel(level int) (*Mode, error) {
	switch level {
	case 44, 128:
		return MLDSA44, nil
	case 65, 192:
		return MLDSA65, nil
	case 87, 256:
		return MLDSA87, nil
	}
	return nil, errors.New("dilithium: unsupported security level")
}

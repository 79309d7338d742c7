package thmldsa

import (
	"math"

	"golang.org/x/crypto/sha3"

	"github.com/btc-vision/noble-post-quantum/sign/internal/dilithium"
)

// FVec is a float vector of dimension 256·(K+L): the L-block (indices
// below 256·L) ahead of the K-block.  It carries the hyperball mask and
// the centered secret contributions during response computation.
type FVec []float64

// newFVec allocates a zero vector for the given mode.
func newFVec(mode *dilithium.Mode) FVec {
	return make(FVec, dilithium.N*(mode.K+mode.L))
}

// Add sets v to w + u.
func (v FVec) Add(w, u FVec) {
	for i := range v {
		v[i] = w[i] + u[i]
	}
}

// From sets v to the centered form of [s1 s2].
func (v FVec) From(s1, s2 dilithium.Vec) {
	l := len(s1)
	for i := 0; i < l+len(s2); i++ {
		var p *dilithium.Poly
		if i < l {
			p = &s1[i]
		} else {
			p = &s2[i-l]
		}
		for j := 0; j < dilithium.N; j++ {
			u := int32(p[j])
			if u > (dilithium.Q-1)/2 {
				u -= dilithium.Q
			}
			v[i*dilithium.N+j] = float64(u)
		}
	}
}

// Round rounds v to the nearest integers, mapping negatives into [0, q):
// the L-block lands in s1, the K-block in s2.
func (v FVec) Round(s1, s2 dilithium.Vec) {
	l := len(s1)
	for i := 0; i < l+len(s2); i++ {
		var p *dilithium.Poly
		if i < l {
			p = &s1[i]
		} else {
			p = &s2[i-l]
		}
		for j := 0; j < dilithium.N; j++ {
			u := int32(math.Round(v[i*dilithium.N+j]))
			u += (u >> 31) & dilithium.Q
			p[j] = uint32(u)
		}
	}
}

// Excess reports whether the ν-weighted squared L2 norm of v exceeds r²:
// L-block contributions are divided by ν².
func (v FVec) Excess(r, nu float64, l int) bool {
	var sq float64
	split := dilithium.N * l
	for i := range v {
		if i < split {
			sq += v[i] * v[i] / (nu * nu)
		} else {
			sq += v[i] * v[i]
		}
	}
	return sq > r*r
}

// Zero wipes v.
func (v FVec) Zero() {
	for i := range v {
		v[i] = 0
	}
}

// hyperballDomain is the domain-separation byte of the hyperball XOF.
const hyperballDomain = 0x48

// sampleHyperball fills v with a uniform point on the ball of radius
// rPrime in ℝ^dim via Box–Muller over SHAKE256(0x48 ‖ ρ′ ‖ nonce_le16).
// The squared norm is accumulated over all generated pairs (one beyond
// dim) before the ν stretch of the L-block, matching the reference
// sampler exactly.
func sampleHyperball(v FVec, rPrime, nu float64, l int, rhop *[64]byte, nonce uint16) {
	dim := len(v)

	h := sha3.NewShake256()
	_, _ = h.Write([]byte{hyperballDomain})
	_, _ = h.Write(rhop[:])
	_, _ = h.Write([]byte{byte(nonce), byte(nonce >> 8)})

	buf := make([]byte, 8*(dim+2))
	_, _ = h.Read(buf)

	uniform := func(off int) float64 {
		x := uint64(buf[off]) | uint64(buf[off+1])<<8 | uint64(buf[off+2])<<16 |
			uint64(buf[off+3])<<24 | uint64(buf[off+4])<<32 | uint64(buf[off+5])<<40 |
			uint64(buf[off+6])<<48 | uint64(buf[off+7])<<56
		// Exactly 53 bits so the product is a single rounding.
		u := float64(x>>11) * 0x1p-53
		if u == 0 {
			u = math.SmallestNonzeroFloat64
		}
		return u
	}

	var sq float64
	for i := 0; i < dim+2; i += 2 {
		u1 := uniform(8 * i)
		u2 := uniform(8 * (i + 1))
		rad := math.Sqrt(-2 * math.Log(u1))
		z1 := rad * math.Cos(2*math.Pi*u2)
		z2 := rad * math.Sin(2*math.Pi*u2)
		sq += z1*z1 + z2*z2
		if i < dim {
			v[i] = z1
		}
		if i+1 < dim {
			v[i+1] = z2
		}
	}

	split := dilithium.N * l
	for i := 0; i < split; i++ {
		v[i] *= nu
	}
	scale := rPrime / math.Sqrt(sq)
	for i := range v {
		v[i] *= scale
	}
}

package dilithium

import (
	"golang.org/x/crypto/sha3"
)

const (
	shake128Rate = 168
	shake256Rate = 136
)

// PolyDeriveUniform samples p uniformly in the NTT domain from
// SHAKE128(ρ ‖ s ‖ r) by rejection on 3-byte little-endian chunks masked
// to 23 bits.
func PolyDeriveUniform(p *Poly, rho *[32]byte, s, r byte) {
	h := sha3.NewShake128()
	_, _ = h.Write(rho[:])
	_, _ = h.Write([]byte{s, r})

	var buf [shake128Rate]byte
	j := 0
	for {
		_, _ = h.Read(buf[:])
		for i := 0; i < len(buf) && j < N; i += 3 {
			t := uint32(buf[i]) | uint32(buf[i+1])<<8 | (uint32(buf[i+2])&0x7f)<<16
			if t < Q {
				p[j] = t
				j++
			}
		}
		if j >= N {
			return
		}
	}
}

// rejectNibbleEta maps a nibble to a coefficient in [-η, η] (normal form)
// or reports rejection.
func rejectNibbleEta(eta int, z byte) (uint32, bool) {
	if eta == 2 {
		if z >= 15 {
			return 0, false
		}
		z -= (z / 5) * 5
		return fieldSub(2, uint32(z)), true
	}
	if z > 8 {
		return 0, false
	}
	return fieldSub(4, uint32(z)), true
}

// PolyDeriveUniformLeqEta samples p with coefficients in [-η, η] from
// SHAKE256(seed ‖ nonce_le16) by nibble rejection, as RejBoundedPoly.
func PolyDeriveUniformLeqEta(p *Poly, seed []byte, eta int, nonce uint16) {
	h := sha3.NewShake256()
	_, _ = h.Write(seed)
	_, _ = h.Write([]byte{byte(nonce), byte(nonce >> 8)})
	polyFillLeqEta(p, h, eta)
}

// PolyDeriveUniformLeqEtaShare is the share-derivation variant used by the
// trusted dealer and DKG: a 64-byte seed and a single-byte nonce.
func PolyDeriveUniformLeqEtaShare(p *Poly, seed *[64]byte, eta int, nonce uint8) {
	h := sha3.NewShake256()
	_, _ = h.Write(seed[:])
	_, _ = h.Write([]byte{nonce})
	polyFillLeqEta(p, h, eta)
}

func polyFillLeqEta(p *Poly, h sha3.ShakeHash, eta int) {
	var buf [shake256Rate]byte
	j := 0
	for {
		_, _ = h.Read(buf[:])
		for i := 0; i < len(buf) && j < N; i++ {
			if c, ok := rejectNibbleEta(eta, buf[i]&0x0f); ok {
				p[j] = c
				j++
			}
			if j >= N {
				break
			}
			if c, ok := rejectNibbleEta(eta, buf[i]>>4); ok {
				p[j] = c
				j++
			}
		}
		if j >= N {
			return
		}
	}
}

// PolyDeriveUniformBall samples the challenge polynomial with exactly τ
// coefficients in {-1, +1} from SHAKE256(seed), as SampleInBall.
func PolyDeriveUniformBall(p *Poly, seed []byte, tau int) {
	h := sha3.NewShake256()
	_, _ = h.Write(seed)

	var buf [shake256Rate]byte
	_, _ = h.Read(buf[:])

	var signs uint64
	for i := 0; i < 8; i++ {
		signs |= uint64(buf[i]) << (8 * i)
	}
	offset := 8

	p.Zero()
	for i := N - tau; i < N; i++ {
		var j byte
		for {
			if offset >= len(buf) {
				_, _ = h.Read(buf[:])
				offset = 0
			}
			j = buf[offset]
			offset++
			if int(j) <= i {
				break
			}
		}
		p[i] = p[j]
		p[j] = 1
		if signs&1 == 1 {
			p[j] = Q - 1
		}
		signs >>= 1
	}
}

// PolyDeriveUniformLeGamma1 samples p with coefficients in
// [-γ₁+1, γ₁] from SHAKE256(seed ‖ nonce_le16), as ExpandMask.
func PolyDeriveUniformLeGamma1(p *Poly, seed *[64]byte, nonce uint16, gamma1Bits uint) {
	h := sha3.NewShake256()
	_, _ = h.Write(seed[:])
	_, _ = h.Write([]byte{byte(nonce), byte(nonce >> 8)})

	size := (N * int(gamma1Bits+1)) / 8
	buf := make([]byte, size)
	_, _ = h.Read(buf)
	unpackLeGamma1(p, buf, gamma1Bits)
}

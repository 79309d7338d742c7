package dilithium

import (
	"errors"
	"io"

	"golang.org/x/crypto/sha3"
)

// maxSignAttempts bounds the rejection loop.  With correct parameters one
// attempt succeeds with probability between 1/7 and 1/4, so hitting the
// bound signals corrupted key material rather than bad luck.
const maxSignAttempts = 500

// ErrMaxAttempts is returned when the rejection loop exhausts its budget.
var ErrMaxAttempts = errors.New("dilithium: signing failed after maximum attempts")

// ComputeMu computes μ = SHAKE256(tr ‖ msg, 64).
func ComputeMu(tr *[TRSize]byte, msg func(io.Writer)) [CRHSize]byte {
	var mu [CRHSize]byte
	h := sha3.NewShake256()
	_, _ = h.Write(tr[:])
	msg(h)
	_, _ = h.Read(mu[:])
	return mu
}

// SignTo signs the framed message and writes the signature into sig.
// This is ML-DSA.Sign_internal up to the μ computation.
func SignTo(sk *PrivateKey, msg func(io.Writer), rnd [32]byte, sig []byte) error {
	mu := ComputeMu(&sk.Tr, msg)
	return SignMuTo(sk, &mu, rnd, sig)
}

// SignMuTo signs a precomputed μ (the external-μ entry point); SignTo
// computes μ and delegates here.  sk is never modified.
func SignMuTo(sk *PrivateKey, mu *[CRHSize]byte, rnd [32]byte, sig []byte) error {
	mode := sk.Mode
	if len(sig) < mode.SignatureSize {
		return errors.New("dilithium: signature buffer too small")
	}

	// ρ″ = SHAKE256(K ‖ rnd ‖ μ, 64)
	var rhop [CRHSize]byte
	h := sha3.NewShake256()
	_, _ = h.Write(sk.Key[:])
	_, _ = h.Write(rnd[:])
	_, _ = h.Write(mu[:])
	_, _ = h.Read(rhop[:])

	y := NewVec(mode.L)
	yh := NewVec(mode.L)
	w := NewVec(mode.K)
	w0 := NewVec(mode.K)
	w1 := NewVec(mode.K)
	z := NewVec(mode.L)
	cs2 := NewVec(mode.K)
	ct0 := NewVec(mode.K)
	hint := NewVec(mode.K)
	var c, ch Poly
	w1Packed := make([]byte, mode.PolyW1Size*mode.K)
	cTilde := make([]byte, mode.CTildeSize)

	defer func() {
		y.Zero()
		yh.Zero()
		z.Zero()
		cs2.Zero()
		ct0.Zero()
	}()

	var kappa uint16
	for attempt := 0; attempt < maxSignAttempts; attempt++ {
		// y = ExpandMask(ρ″, κ), κ advances by L.
		for i := 0; i < mode.L; i++ {
			PolyDeriveUniformLeGamma1(&y[i], &rhop, kappa+uint16(i), mode.Gamma1Bits)
		}
		kappa += uint16(mode.L)

		// w = NTT⁻¹(A·NTT(y)), w₁ = HighBits(w).
		copy(yh, y)
		yh.NTT()
		sk.A.MulVecHat(w, yh)
		w.InvNTT()
		w.HighBits(w1, mode.Gamma2)

		// c~ = SHAKE256(μ ‖ w₁, CTildeSize)
		for i := 0; i < mode.K; i++ {
			PackW1(&w1[i], w1Packed[i*mode.PolyW1Size:], mode.W1Bits)
		}
		h.Reset()
		_, _ = h.Write(mu[:])
		_, _ = h.Write(w1Packed)
		_, _ = h.Read(cTilde)

		PolyDeriveUniformBall(&c, cTilde, mode.Tau)
		ch = c
		ch.NTT()

		// z = y + c·s₁; reject on ‖z‖∞ ≥ γ₁ - β.
		for i := 0; i < mode.L; i++ {
			z[i].MulHat(&ch, &sk.s1h[i])
			z[i].InvNTT()
			z[i].Add(&z[i], &y[i])
		}
		if z.Exceeds(mode.Gamma1 - mode.Beta) {
			continue
		}

		// r₀ = LowBits(w - c·s₂); reject on ‖r₀‖∞ ≥ γ₂ - β.
		for i := 0; i < mode.K; i++ {
			cs2[i].MulHat(&ch, &sk.s2h[i])
			cs2[i].InvNTT()
			cs2[i].Sub(&w[i], &cs2[i])
		}
		cs2.Decompose(w0, w1, mode.Gamma2)
		rejected := false
		for i := 0; i < mode.K; i++ {
			for j := 0; j < N; j++ {
				if fieldNorm(w0[i][j]) >= uint32(mode.Gamma2-mode.Beta) {
					rejected = true
				}
			}
		}
		if rejected {
			continue
		}

		// ct₀ = c·t₀; reject on ‖ct₀‖∞ ≥ γ₂.
		for i := 0; i < mode.K; i++ {
			ct0[i].MulHat(&ch, &sk.t0h[i])
			ct0[i].InvNTT()
		}
		if ct0.Exceeds(mode.Gamma2) {
			continue
		}

		// Hint over w₀ - c·s₂... + c·t₀ against w₁.
		w0.Add(w0, ct0)
		if w0.MakeHint(hint, w1, mode.Gamma2) > mode.Omega {
			continue
		}

		packSignature(mode, sig, cTilde, z, hint)
		return nil
	}
	return ErrMaxAttempts
}

func packSignature(mode *Mode, sig, cTilde []byte, z, hint Vec) {
	copy(sig[:mode.CTildeSize], cTilde)
	off := mode.CTildeSize
	for i := 0; i < mode.L; i++ {
		PackLeGamma1(&z[i], sig[off:], mode.Gamma1Bits)
		off += mode.PolyLeGamma1Size
	}
	PackHint(hint, sig[off:], mode.Omega)
}

// unpackSignature decodes sig, verifying the z range and hint encoding.
func unpackSignature(mode *Mode, sig []byte) (cTilde []byte, z, hint Vec, ok bool) {
	if len(sig) != mode.SignatureSize {
		return nil, nil, nil, false
	}
	cTilde = sig[:mode.CTildeSize]
	z = NewVec(mode.L)
	hint = NewVec(mode.K)
	off := mode.CTildeSize
	for i := 0; i < mode.L; i++ {
		UnpackLeGamma1(&z[i], sig[off:], mode.Gamma1Bits)
		off += mode.PolyLeGamma1Size
	}
	if z.Exceeds(mode.Gamma1 - mode.Beta) {
		return nil, nil, nil, false
	}
	if !UnpackHint(hint, sig[off:], mode.Omega) {
		return nil, nil, nil, false
	}
	return cTilde, z, hint, true
}

// Verify checks the signature over the framed message.
func Verify(pk *PublicKey, msg func(io.Writer), sig []byte) bool {
	mu := ComputeMu(&pk.Tr, msg)
	return VerifyMu(pk, &mu, sig)
}

// VerifyMu checks the signature against a precomputed μ.
func VerifyMu(pk *PublicKey, mu *[CRHSize]byte, sig []byte) bool {
	mode := pk.Mode
	cTilde, z, hint, ok := unpackSignature(mode, sig)
	if !ok {
		return false
	}

	var ch Poly
	PolyDeriveUniformBall(&ch, cTilde, mode.Tau)
	ch.NTT()

	zh := z.Copy()
	zh.NTT()
	az := NewVec(mode.K)
	pk.A.MulVecHat(az, zh)

	// Az - c·NTT(t₁·2^D)
	ct1 := NewVec(mode.K)
	for i := 0; i < mode.K; i++ {
		var t1Shift Poly
		t1Shift.ShiftL(&pk.T1[i])
		t1Shift.NTT()
		ct1[i].MulHat(&ch, &t1Shift)
	}
	az.Sub(az, ct1)
	az.InvNTT()

	w1 := NewVec(mode.K)
	w1.UseHint(az, hint, mode.Gamma2)

	w1Packed := make([]byte, mode.PolyW1Size*mode.K)
	for i := 0; i < mode.K; i++ {
		PackW1(&w1[i], w1Packed[i*mode.PolyW1Size:], mode.W1Bits)
	}
	h := sha3.NewShake256()
	_, _ = h.Write(mu[:])
	_, _ = h.Write(w1Packed)
	cp := make([]byte, mode.CTildeSize)
	_, _ = h.Read(cp)

	var diff byte
	for i := range cp {
		diff |= cp[i] ^ cTilde[i]
	}
	return diff == 0
}

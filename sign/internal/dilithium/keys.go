package dilithium

import (
	"crypto/subtle"
	"errors"
	"io"

	"golang.org/x/crypto/sha3"
)

// PublicKey is a parameterized ML-DSA public key.
type PublicKey struct {
	Mode *Mode
	Rho  [32]byte
	T1   Vec

	// Cached values.
	A      *Mat
	Tr     [TRSize]byte
	packed []byte
}

// PrivateKey is a parameterized ML-DSA private key.
type PrivateKey struct {
	Mode *Mode
	Rho  [32]byte
	Key  [32]byte
	Tr   [TRSize]byte
	S1   Vec
	S2   Vec
	T0   Vec

	// Cached values.
	A   *Mat
	s1h Vec // NTT(s₁)
	s2h Vec // NTT(s₂)
	t0h Vec // NTT(t₀)
}

// NewKeyFromSeed derives a key pair from a 32-byte seed, as ML-DSA.KeyGen
// with the K,L domain separator.
func NewKeyFromSeed(mode *Mode, seed *[SeedSize]byte) (*PublicKey, *PrivateKey) {
	var expanded [32 + CRHSize + 32]byte
	h := sha3.NewShake256()
	_, _ = h.Write(seed[:])
	_, _ = h.Write([]byte{byte(mode.K), byte(mode.L)})
	_, _ = h.Read(expanded[:])

	pk := &PublicKey{Mode: mode, T1: NewVec(mode.K)}
	sk := &PrivateKey{
		Mode: mode,
		S1:   NewVec(mode.L),
		S2:   NewVec(mode.K),
		T0:   NewVec(mode.K),
	}
	copy(pk.Rho[:], expanded[:32])
	rhop := expanded[32 : 32+CRHSize]
	copy(sk.Key[:], expanded[32+CRHSize:])
	sk.Rho = pk.Rho

	pk.A = NewMat(mode.K, mode.L)
	pk.A.Derive(&pk.Rho)
	sk.A = pk.A

	for i := 0; i < mode.L; i++ {
		PolyDeriveUniformLeqEta(&sk.S1[i], rhop, mode.Eta, uint16(i))
	}
	for i := 0; i < mode.K; i++ {
		PolyDeriveUniformLeqEta(&sk.S2[i], rhop, mode.Eta, uint16(mode.L+i))
	}

	// t = A·NTT(s₁) + s₂, then (t₀, t₁) = Power2Round(t).
	s1h := sk.S1.Copy()
	s1h.NTT()
	t := NewVec(mode.K)
	pk.A.MulVecHat(t, s1h)
	t.InvNTT()
	t.Add(t, sk.S2)
	t.Power2Round(sk.T0, pk.T1)

	pk.packed = pk.Pack()
	h.Reset()
	_, _ = h.Write(pk.packed)
	_, _ = h.Read(pk.Tr[:])
	sk.Tr = pk.Tr

	sk.cache()
	return pk, sk
}

func (sk *PrivateKey) cache() {
	sk.s1h = sk.S1.Copy()
	sk.s1h.NTT()
	sk.s2h = sk.S2.Copy()
	sk.s2h.NTT()
	sk.t0h = sk.T0.Copy()
	sk.t0h.NTT()
}

// Pack encodes the public key as ρ ‖ packT1(t₁).
func (pk *PublicKey) Pack() []byte {
	buf := make([]byte, pk.Mode.PublicKeySize)
	copy(buf[:32], pk.Rho[:])
	VecPack(pk.T1, buf[32:], PolyT1Size, PackT1)
	return buf
}

// Bytes returns the packed public key.
func (pk *PublicKey) Bytes() []byte {
	if pk.packed == nil {
		pk.packed = pk.Pack()
	}
	out := make([]byte, len(pk.packed))
	copy(out, pk.packed)
	return out
}

// UnpackPublicKey decodes a public key and recomputes its caches.
func UnpackPublicKey(mode *Mode, buf []byte) (*PublicKey, error) {
	if len(buf) != mode.PublicKeySize {
		return nil, errors.New("dilithium: wrong public key length")
	}
	pk := &PublicKey{Mode: mode, T1: NewVec(mode.K)}
	copy(pk.Rho[:], buf[:32])
	for i := 0; i < mode.K; i++ {
		UnpackT1(&pk.T1[i], buf[32+i*PolyT1Size:])
	}
	pk.A = NewMat(mode.K, mode.L)
	pk.A.Derive(&pk.Rho)

	pk.packed = make([]byte, len(buf))
	copy(pk.packed, buf)
	h := sha3.NewShake256()
	_, _ = h.Write(buf)
	_, _ = h.Read(pk.Tr[:])
	return pk, nil
}

// Pack encodes the private key as ρ ‖ K ‖ tr ‖ s₁ ‖ s₂ ‖ t₀.
func (sk *PrivateKey) Pack() []byte {
	mode := sk.Mode
	buf := make([]byte, mode.PrivateKeySize)
	copy(buf[:32], sk.Rho[:])
	copy(buf[32:64], sk.Key[:])
	copy(buf[64:64+TRSize], sk.Tr[:])
	off := 64 + TRSize
	for i := 0; i < mode.L; i++ {
		PackLeqEta(&sk.S1[i], buf[off:], mode.Eta)
		off += mode.PolyLeqEtaSize
	}
	for i := 0; i < mode.K; i++ {
		PackLeqEta(&sk.S2[i], buf[off:], mode.Eta)
		off += mode.PolyLeqEtaSize
	}
	for i := 0; i < mode.K; i++ {
		PackT0(&sk.T0[i], buf[off:])
		off += PolyT0Size
	}
	return buf
}

// UnpackPrivateKey decodes a private key and recomputes its caches.
func UnpackPrivateKey(mode *Mode, buf []byte) (*PrivateKey, error) {
	if len(buf) != mode.PrivateKeySize {
		return nil, errors.New("dilithium: wrong private key length")
	}
	sk := &PrivateKey{
		Mode: mode,
		S1:   NewVec(mode.L),
		S2:   NewVec(mode.K),
		T0:   NewVec(mode.K),
	}
	copy(sk.Rho[:], buf[:32])
	copy(sk.Key[:], buf[32:64])
	copy(sk.Tr[:], buf[64:64+TRSize])
	off := 64 + TRSize
	for i := 0; i < mode.L; i++ {
		if !UnpackLeqEta(&sk.S1[i], buf[off:], mode.Eta) {
			return nil, errors.New("dilithium: invalid s1 encoding")
		}
		off += mode.PolyLeqEtaSize
	}
	for i := 0; i < mode.K; i++ {
		if !UnpackLeqEta(&sk.S2[i], buf[off:], mode.Eta) {
			return nil, errors.New("dilithium: invalid s2 encoding")
		}
		off += mode.PolyLeqEtaSize
	}
	for i := 0; i < mode.K; i++ {
		UnpackT0(&sk.T0[i], buf[off:])
		off += PolyT0Size
	}
	sk.A = NewMat(mode.K, mode.L)
	sk.A.Derive(&sk.Rho)
	sk.cache()
	return sk, nil
}

// Public computes the public key matching sk.
func (sk *PrivateKey) Public() *PublicKey {
	mode := sk.Mode
	pk := &PublicKey{Mode: mode, T1: NewVec(mode.K), A: sk.A, Rho: sk.Rho, Tr: sk.Tr}
	t := NewVec(mode.K)
	sk.A.MulVecHat(t, sk.s1h)
	t.InvNTT()
	t.Add(t, sk.S2)
	t0 := NewVec(mode.K)
	t.Power2Round(t0, pk.T1)
	pk.packed = pk.Pack()
	return pk
}

// Equal compares public keys.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk.Mode != other.Mode || pk.Rho != other.Rho {
		return false
	}
	for i := range pk.T1 {
		if pk.T1[i] != other.T1[i] {
			return false
		}
	}
	return true
}

// Equal compares private keys in constant time over the secret material.
func (sk *PrivateKey) Equal(other *PrivateKey) bool {
	if sk.Mode != other.Mode {
		return false
	}
	ret := subtle.ConstantTimeCompare(sk.Rho[:], other.Rho[:]) &
		subtle.ConstantTimeCompare(sk.Key[:], other.Key[:]) &
		subtle.ConstantTimeCompare(sk.Tr[:], other.Tr[:])
	acc := uint32(0)
	for i := range sk.S1 {
		for j := 0; j < N; j++ {
			acc |= sk.S1[i][j] ^ other.S1[i][j]
		}
	}
	for i := range sk.S2 {
		for j := 0; j < N; j++ {
			acc |= sk.S2[i][j] ^ other.S2[i][j]
		}
	}
	for i := range sk.T0 {
		for j := 0; j < N; j++ {
			acc |= sk.T0[i][j] ^ other.T0[i][j]
		}
	}
	return (ret & subtle.ConstantTimeEq(int32(acc), 0)) == 1
}

// GenerateKey draws a fresh seed from rand and derives a key pair.
func GenerateKey(mode *Mode, rand io.Reader) (*PublicKey, *PrivateKey, error) {
	var seed [SeedSize]byte
	if _, err := io.ReadFull(rand, seed[:]); err != nil {
		return nil, nil, err
	}
	pk, sk := NewKeyFromSeed(mode, &seed)
	return pk, sk, nil
}

package thmldsa

import (
	cryptoRand "crypto/rand"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"github.com/btc-vision/noble-post-quantum/sign/internal/dilithium"
)

// PublicKey is the threshold public key; on the wire it is a plain ML-DSA
// public key.
type PublicKey dilithium.PublicKey

// Bytes returns the FIPS 204 encoding of the public key.
func (pk *PublicKey) Bytes() []byte { return (*dilithium.PublicKey)(pk).Bytes() }

// UnpackPublicKey decodes a threshold public key for the given parameters.
func UnpackPublicKey(params *Params, buf []byte) (*PublicKey, error) {
	pk, err := dilithium.UnpackPublicKey(params.mode, buf)
	if err != nil {
		return nil, err
	}
	return (*PublicKey)(pk), nil
}

// SecretShare is the share jointly held by the parties of one bitmask.
// Every holder derives identical (s1, s2); the Hat values are NTT copies
// kept for speed.
type SecretShare struct {
	S1    dilithium.Vec
	S2    dilithium.Vec
	S1Hat dilithium.Vec
	S2Hat dilithium.Vec
}

func newSecretShare(mode *dilithium.Mode) *SecretShare {
	return &SecretShare{
		S1: dilithium.NewVec(mode.L),
		S2: dilithium.NewVec(mode.K),
	}
}

func (s *SecretShare) cacheHat() {
	s.S1Hat = s.S1.Copy()
	s.S1Hat.NTT()
	s.S2Hat = s.S2.Copy()
	s.S2Hat.NTT()
}

// KeyShare is one party's threshold key share: the per-bitmask shares it
// holds plus the public binding material.
type KeyShare struct {
	ID  uint8
	Rho [32]byte
	Key [32]byte
	Tr  [dilithium.TRSize]byte

	// Shares maps each bitmask containing bit ID to its secret share.
	Shares map[uint8]*SecretShare

	params *Params
	a      *dilithium.Mat
}

// Params returns the threshold parameters the share was generated for.
func (ks *KeyShare) Params() *Params { return ks.params }

// firstBitmask returns the Gosper start mask for the enumeration.
func firstBitmask(params *Params) uint8 {
	return uint8(1)<<(params.N-params.T+1) - 1
}

// nextBitmask advances the Gosper next-combination step.
func nextBitmask(b uint8) uint8 {
	c := b & -b
	r := b + c
	return (((r ^ b) >> 2) / c) | r
}

// bitmasks enumerates every subset of N parties with exactly N-T+1 members.
func bitmasks(params *Params) []uint8 {
	var out []uint8
	for b := firstBitmask(params); b < 1<<params.N; b = nextBitmask(b) {
		out = append(out, b)
	}
	return out
}

// holdersOf lists the party indices whose bit is set in b, ascending.
func holdersOf(b uint8, n uint8) []uint8 {
	var out []uint8
	for i := uint8(0); i < n; i++ {
		if b&(1<<i) != 0 {
			out = append(out, i)
		}
	}
	return out
}

// deriveShare derives (s1, s2) from a 64-byte share seed, identically for
// every holder.
func deriveShare(mode *dilithium.Mode, seed *[64]byte) *SecretShare {
	share := newSecretShare(mode)
	for j := 0; j < mode.L; j++ {
		dilithium.PolyDeriveUniformLeqEtaShare(&share.S1[j], seed, mode.Eta, uint8(j))
	}
	for j := 0; j < mode.K; j++ {
		dilithium.PolyDeriveUniformLeqEtaShare(&share.S2[j], seed, mode.Eta, uint8(mode.L+j))
	}
	share.cacheHat()
	return share
}

// NewThresholdKeysFromSeed derives the public key and all N key shares
// from a 32-byte seed, acting as the trusted dealer.
func NewThresholdKeysFromSeed(params *Params, seed *[32]byte) (*PublicKey, []*KeyShare) {
	mode := params.mode

	h := sha3.NewShake256()
	_, _ = h.Write(seed[:])
	_, _ = h.Write([]byte{byte(mode.K), byte(mode.L)})

	var rho [32]byte
	_, _ = h.Read(rho[:])

	a := dilithium.NewMat(mode.K, mode.L)
	a.Derive(&rho)

	shares := make([]*KeyShare, params.N)
	for i := uint8(0); i < params.N; i++ {
		ks := &KeyShare{
			ID:     i,
			Rho:    rho,
			Shares: make(map[uint8]*SecretShare),
			params: params,
			a:      a,
		}
		_, _ = h.Read(ks.Key[:])
		shares[i] = ks
	}

	totalS1 := dilithium.NewVec(mode.L)
	totalS2 := dilithium.NewVec(mode.K)
	for _, b := range bitmasks(params) {
		var shareSeed [64]byte
		_, _ = h.Read(shareSeed[:])
		share := deriveShare(mode, &shareSeed)
		for _, holder := range holdersOf(b, params.N) {
			shares[holder].Shares[b] = share
		}
		totalS1.Add(totalS1, share.S1)
		totalS2.Add(totalS2, share.S2)
	}

	pk := finishPublicKey(params, a, rho, totalS1, totalS2)
	for i := range shares {
		shares[i].Tr = pk.Tr
	}
	totalS1.Zero()
	totalS2.Zero()
	return (*PublicKey)(pk), shares
}

// finishPublicKey computes t = A·NTT(s1) + s2, splits it, and packs the
// public key together with tr = SHAKE256(pk).
func finishPublicKey(params *Params, a *dilithium.Mat, rho [32]byte, s1, s2 dilithium.Vec) *dilithium.PublicKey {
	mode := params.mode
	s1h := s1.Copy()
	s1h.NTT()
	t := dilithium.NewVec(mode.K)
	a.MulVecHat(t, s1h)
	t.InvNTT()
	t.Add(t, s2)

	pk := &dilithium.PublicKey{Mode: mode, T1: dilithium.NewVec(mode.K), A: a, Rho: rho}
	t0 := dilithium.NewVec(mode.K)
	t.Power2Round(t0, pk.T1)

	packed := pk.Pack()
	h := sha3.NewShake256()
	_, _ = h.Write(packed)
	_, _ = h.Read(pk.Tr[:])
	s1h.Zero()
	t0.Zero()
	return pk
}

// GenerateThresholdKey draws a fresh seed from rand (crypto/rand when nil)
// and runs the trusted dealer.
func GenerateThresholdKey(rand io.Reader, params *Params) (*PublicKey, []*KeyShare, error) {
	if rand == nil {
		rand = cryptoRand.Reader
	}
	var seed [32]byte
	if _, err := io.ReadFull(rand, seed[:]); err != nil {
		return nil, nil, err
	}
	pk, shares := NewThresholdKeysFromSeed(params, &seed)
	return pk, shares, nil
}

// recoverShare computes the active combined share (NTT domain) for the
// signing set act.  The returned vectors are freshly allocated; the caller
// zeroes them after use.
func (ks *KeyShare) recoverShare(act uint8) (s1h, s2h dilithium.Vec, err error) {
	mode := ks.params.mode
	s1h = dilithium.NewVec(mode.L)
	s2h = dilithium.NewVec(mode.K)

	// With T = N each party holds exactly one share.
	if ks.params.T == ks.params.N {
		for _, share := range ks.Shares {
			copy(s1h, share.S1Hat)
			copy(s2h, share.S2Hat)
			return s1h, s2h, nil
		}
	}

	pattern, ok := sharingPatterns[[2]uint8{ks.params.T, ks.params.N}]
	if !ok {
		return nil, nil, errors.Errorf("thmldsa: no sharing pattern for T=%d N=%d", ks.params.T, ks.params.N)
	}
	perm, pos, err := activePermutation(ks.params, act, ks.ID)
	if err != nil {
		return nil, nil, err
	}
	for _, u := range pattern[pos] {
		b := permuteShareMask(u, perm)
		share, ok := ks.Shares[b]
		if !ok {
			return nil, nil, errors.Errorf("thmldsa: party %d is missing the share for bitmask %#x", ks.ID, b)
		}
		s1h.Add(s1h, share.S1Hat)
		s2h.Add(s2h, share.S2Hat)
	}
	return s1h, s2h, nil
}

// Pack encodes the key share as id ‖ ρ ‖ key ‖ tr ‖ (bitmask ‖ s1 ‖ s2)*.
func (ks *KeyShare) Pack() []byte {
	mode := ks.params.mode
	etaSize := mode.PolyLeqEtaSize
	buf := make([]byte, 1+32+32+dilithium.TRSize+(1+etaSize*(mode.L+mode.K))*len(ks.Shares))
	buf[0] = ks.ID
	copy(buf[1:33], ks.Rho[:])
	copy(buf[33:65], ks.Key[:])
	copy(buf[65:65+dilithium.TRSize], ks.Tr[:])
	off := 65 + dilithium.TRSize
	for _, b := range bitmasks(ks.params) {
		share, ok := ks.Shares[b]
		if !ok {
			continue
		}
		buf[off] = b
		off++
		for i := 0; i < mode.L; i++ {
			dilithium.PackLeqEta(&share.S1[i], buf[off:], mode.Eta)
			off += etaSize
		}
		for i := 0; i < mode.K; i++ {
			dilithium.PackLeqEta(&share.S2[i], buf[off:], mode.Eta)
			off += etaSize
		}
	}
	return buf
}

// UnpackKeyShare decodes a packed key share.
func UnpackKeyShare(params *Params, buf []byte) (*KeyShare, error) {
	mode := params.mode
	etaSize := mode.PolyLeqEtaSize
	want := 1 + 32 + 32 + dilithium.TRSize + (1+etaSize*(mode.L+mode.K))*params.SharesPerParty()
	if len(buf) != want {
		return nil, errors.Errorf("thmldsa: packed key share must be %d bytes", want)
	}
	ks := &KeyShare{
		ID:     buf[0],
		Shares: make(map[uint8]*SecretShare),
		params: params,
	}
	copy(ks.Rho[:], buf[1:33])
	copy(ks.Key[:], buf[33:65])
	copy(ks.Tr[:], buf[65:65+dilithium.TRSize])
	off := 65 + dilithium.TRSize
	for off < len(buf) {
		b := buf[off]
		off++
		share := newSecretShare(mode)
		for i := 0; i < mode.L; i++ {
			if !dilithium.UnpackLeqEta(&share.S1[i], buf[off:], mode.Eta) {
				return nil, errors.Errorf("thmldsa: invalid share encoding for bitmask %#x", b)
			}
			off += etaSize
		}
		for i := 0; i < mode.K; i++ {
			if !dilithium.UnpackLeqEta(&share.S2[i], buf[off:], mode.Eta) {
				return nil, errors.Errorf("thmldsa: invalid share encoding for bitmask %#x", b)
			}
			off += etaSize
		}
		share.cacheHat()
		ks.Shares[b] = share
	}
	ks.a = dilithium.NewMat(mode.K, mode.L)
	ks.a.Derive(&ks.Rho)
	return ks, nil
}

// matrix returns the cached expansion of A, deriving it on first use.
func (ks *KeyShare) matrix() *dilithium.Mat {
	if ks.a == nil {
		ks.a = dilithium.NewMat(ks.params.mode.K, ks.params.mode.L)
		ks.a.Derive(&ks.Rho)
	}
	return ks.a
}

// Package mldsa implements the ML-DSA signature scheme of FIPS 204 for the
// three parameter sets ML-DSA-44, ML-DSA-65 and ML-DSA-87.
//
// A single parameterized implementation body backs all three modes; a Mode
// value selects the parameter set at construction time.  The threshold
// layer in sign/thmldsa computes μ with the same shared core and encodes
// its combined signatures in the same FIPS 204 format, so the Verify of
// this package accepts them unmodified.
package mldsa

import (
	"crypto"
	cryptoRand "crypto/rand"
	"errors"
	"io"

	"github.com/btc-vision/noble-post-quantum/sign/internal/dilithium"
)

// SeedSize is the size of the key generation seed.
const SeedSize = dilithium.SeedSize

// ErrContextTooLong is returned when a context string exceeds 255 bytes.
var ErrContextTooLong = dilithium.ErrContextTooLong

// Mode selects one of the three FIPS 204 parameter sets.
type Mode struct {
	impl *dilithium.Mode
}

var (
	Mode44 = &Mode{dilithium.MLDSA44}
	Mode65 = &Mode{dilithium.MLDSA65}
	Mode87 = &Mode{dilithium.MLDSA87}
)

// ModeByLevel maps a NIST level (44, 65, 87) or a classical bit strength
// (128, 192, 256) to its Mode.
func ModeByLevel(level int) (*Mode, error) {
	m, err := dilithium.ModeByLevel(level)
	if err != nil {
		return nil, err
	}
	switch m {
	case dilithium.MLDSA44:
		return Mode44, nil
	case dilithium.MLDSA65:
		return Mode65, nil
	default:
		return Mode87, nil
	}
}

// Name returns the FIPS 204 name of the mode.
func (m *Mode) Name() string { return m.impl.Name }

// PublicKeySize returns the size of a packed public key.
func (m *Mode) PublicKeySize() int { return m.impl.PublicKeySize }

// PrivateKeySize returns the size of a packed private key.
func (m *Mode) PrivateKeySize() int { return m.impl.PrivateKeySize }

// SignatureSize returns the size of a signature.
func (m *Mode) SignatureSize() int { return m.impl.SignatureSize }

// Internal exposes the parameter set to sibling packages.
func (m *Mode) Internal() *dilithium.Mode { return m.impl }

// PublicKey is an ML-DSA public key.
type PublicKey struct {
	mode *Mode
	impl *dilithium.PublicKey
}

// PrivateKey is an ML-DSA private key.
type PrivateKey struct {
	mode *Mode
	impl *dilithium.PrivateKey
}

// GenerateKey generates a key pair using rand, defaulting to crypto/rand.
func (m *Mode) GenerateKey(rand io.Reader) (*PublicKey, *PrivateKey, error) {
	if rand == nil {
		rand = cryptoRand.Reader
	}
	pk, sk, err := dilithium.GenerateKey(m.impl, rand)
	if err != nil {
		return nil, nil, err
	}
	return &PublicKey{m, pk}, &PrivateKey{m, sk}, nil
}

// NewKeyFromSeed derives a key pair from a 32-byte seed.  The derivation
// is deterministic: equal seeds yield byte-identical keys.
func (m *Mode) NewKeyFromSeed(seed []byte) (*PublicKey, *PrivateKey, error) {
	if len(seed) != SeedSize {
		return nil, nil, errors.New("mldsa: seed must be 32 bytes")
	}
	var s [SeedSize]byte
	copy(s[:], seed)
	pk, sk := dilithium.NewKeyFromSeed(m.impl, &s)
	return &PublicKey{m, pk}, &PrivateKey{m, sk}, nil
}

// Sign signs msg under the optional context string.  When randomized is
// false the signature is deterministic.
func (m *Mode) Sign(sk *PrivateKey, msg, ctx []byte, randomized bool) ([]byte, error) {
	sig := make([]byte, m.impl.SignatureSize)
	if err := m.SignTo(sk, msg, ctx, randomized, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// SignTo signs msg into sig, which must be at least SignatureSize bytes.
func (m *Mode) SignTo(sk *PrivateKey, msg, ctx []byte, randomized bool, sig []byte) error {
	if len(ctx) > 255 {
		return ErrContextTooLong
	}
	var rnd [32]byte
	if randomized {
		if _, err := cryptoRand.Read(rnd[:]); err != nil {
			return err
		}
	}
	return dilithium.SignTo(sk.impl, dilithium.Framed(msg, ctx), rnd, sig)
}

// Verify reports whether sig is a valid signature of msg under ctx.  It
// returns false, never an error, on malformed input.
func (m *Mode) Verify(pk *PublicKey, msg, ctx, sig []byte) bool {
	if len(ctx) > 255 {
		return false
	}
	return dilithium.Verify(pk.impl, dilithium.Framed(msg, ctx), sig)
}

// Bytes returns the packed public key.
func (pk *PublicKey) Bytes() []byte { return pk.impl.Bytes() }

// MarshalBinary implements encoding.BinaryMarshaler.
func (pk *PublicKey) MarshalBinary() ([]byte, error) { return pk.impl.Bytes(), nil }

// Equal reports whether pk and other are the same public key.
func (pk *PublicKey) Equal(other crypto.PublicKey) bool {
	o, ok := other.(*PublicKey)
	if !ok {
		return false
	}
	return pk.impl.Equal(o.impl)
}

// Internal exposes the underlying key to sibling packages.
func (pk *PublicKey) Internal() *dilithium.PublicKey { return pk.impl }

// UnpackPublicKey decodes a packed public key.
func (m *Mode) UnpackPublicKey(buf []byte) (*PublicKey, error) {
	pk, err := dilithium.UnpackPublicKey(m.impl, buf)
	if err != nil {
		return nil, err
	}
	return &PublicKey{m, pk}, nil
}

// Bytes returns the packed private key.
func (sk *PrivateKey) Bytes() []byte { return sk.impl.Pack() }

// MarshalBinary implements encoding.BinaryMarshaler.
func (sk *PrivateKey) MarshalBinary() ([]byte, error) { return sk.impl.Pack(), nil }

// UnpackPrivateKey decodes a packed private key.
func (m *Mode) UnpackPrivateKey(buf []byte) (*PrivateKey, error) {
	sk, err := dilithium.UnpackPrivateKey(m.impl, buf)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{m, sk}, nil
}

// Equal reports whether sk and other hold the same key material.
func (sk *PrivateKey) Equal(other crypto.PrivateKey) bool {
	o, ok := other.(*PrivateKey)
	if !ok {
		return false
	}
	return sk.impl.Equal(o.impl)
}

// Public returns the matching public key, implementing crypto.Signer.
func (sk *PrivateKey) Public() crypto.PublicKey {
	return &PublicKey{sk.mode, sk.impl.Public()}
}

// Sign implements crypto.Signer.  opts.HashFunc() must be zero; pass a
// *SignerOpts to supply a context string.
func (sk *PrivateKey) Sign(rand io.Reader, msg []byte, opts crypto.SignerOpts) ([]byte, error) {
	if opts != nil && opts.HashFunc() != crypto.Hash(0) {
		return nil, errors.New("mldsa: cannot sign hashed message")
	}
	var ctx []byte
	if so, ok := opts.(*SignerOpts); ok {
		ctx = so.Context
	}
	return sk.mode.Sign(sk, msg, ctx, rand != nil)
}

// SignerOpts carries the optional context string for crypto.Signer use.
type SignerOpts struct {
	Context []byte
}

// HashFunc returns zero: ML-DSA signs messages, not digests.
func (*SignerOpts) HashFunc() crypto.Hash { return 0 }

package mldsa

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestKnownSizes(t *testing.T) {
	cases := []struct {
		mode          *Mode
		pk, sk, sig   int
	}{
		{Mode44, 1312, 2560, 2420},
		{Mode65, 1952, 4032, 3309},
		{Mode87, 2592, 4896, 4627},
	}
	for _, c := range cases {
		if c.mode.PublicKeySize() != c.pk {
			t.Fatalf("%s: public key size %d, want %d", c.mode.Name(), c.mode.PublicKeySize(), c.pk)
		}
		if c.mode.PrivateKeySize() != c.sk {
			t.Fatalf("%s: private key size %d, want %d", c.mode.Name(), c.mode.PrivateKeySize(), c.sk)
		}
		if c.mode.SignatureSize() != c.sig {
			t.Fatalf("%s: signature size %d, want %d", c.mode.Name(), c.mode.SignatureSize(), c.sig)
		}
	}
}

func TestModeByLevel(t *testing.T) {
	for _, c := range []struct {
		level int
		mode  *Mode
	}{{44, Mode44}, {65, Mode65}, {87, Mode87}, {128, Mode44}, {192, Mode65}, {256, Mode87}} {
		m, err := ModeByLevel(c.level)
		if err != nil || m != c.mode {
			t.Fatalf("level %d: got %v, %v", c.level, m, err)
		}
	}
	if _, err := ModeByLevel(512); err == nil {
		t.Fatal("level 512 accepted")
	}
}

func TestKeyGenDeterministic(t *testing.T) {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = 0x01
	}
	pk1, sk1, err := Mode44.NewKeyFromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	pk2, sk2, err := Mode44.NewKeyFromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pk1.Bytes(), pk2.Bytes()) {
		t.Fatal("public keys differ for equal seeds")
	}
	if !bytes.Equal(sk1.Bytes(), sk2.Bytes()) {
		t.Fatal("private keys differ for equal seeds")
	}
	if len(pk1.Bytes()) != 1312 || len(sk1.Bytes()) != 2560 {
		t.Fatal("unexpected packed lengths")
	}
}

func testSignThenVerify(t *testing.T, mode *Mode) {
	var seed [SeedSize]byte
	var msg [8]byte
	for i := uint64(0); i < 3; i++ {
		binary.LittleEndian.PutUint64(seed[:], i)
		pk, sk, err := mode.NewKeyFromSeed(seed[:])
		if err != nil {
			t.Fatal(err)
		}
		for j := uint64(0); j < 3; j++ {
			binary.LittleEndian.PutUint64(msg[:], j)
			sig, err := mode.Sign(sk, msg[:], nil, false)
			if err != nil {
				t.Fatal(err)
			}
			if len(sig) != mode.SignatureSize() {
				t.Fatalf("signature length %d", len(sig))
			}
			if !mode.Verify(pk, msg[:], nil, sig) {
				t.Fatal("valid signature rejected")
			}
			sig[17] ^= 1
			if mode.Verify(pk, msg[:], nil, sig) {
				t.Fatal("tampered signature accepted")
			}
		}
	}
}

func TestSignThenVerify44(t *testing.T) { testSignThenVerify(t, Mode44) }
func TestSignThenVerify65(t *testing.T) { testSignThenVerify(t, Mode65) }
func TestSignThenVerify87(t *testing.T) { testSignThenVerify(t, Mode87) }

func TestContextBinding(t *testing.T) {
	seed := make([]byte, SeedSize)
	seed[0] = 42
	pk, sk, err := Mode44.NewKeyFromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte{1, 2, 3, 4}
	ctx := []byte{0xDE, 0xAD}
	sig, err := Mode44.Sign(sk, msg, ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if !Mode44.Verify(pk, msg, ctx, sig) {
		t.Fatal("signature rejected under its own context")
	}
	if Mode44.Verify(pk, msg, nil, sig) {
		t.Fatal("signature accepted without context")
	}
	if Mode44.Verify(pk, msg, []byte{0x00, 0x00}, sig) {
		t.Fatal("signature accepted under wrong context")
	}
}

func TestContextTooLong(t *testing.T) {
	seed := make([]byte, SeedSize)
	_, sk, err := Mode44.NewKeyFromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	ctx := make([]byte, 256)
	if _, err := Mode44.Sign(sk, []byte("m"), ctx, false); err == nil {
		t.Fatal("256-byte context accepted")
	}
}

// Signing must never mutate the private key, no matter how many rejection
// iterations it runs through.
func TestSignDoesNotMutatePrivateKey(t *testing.T) {
	seed := make([]byte, SeedSize)
	seed[31] = 7
	pk, sk, err := Mode44.NewKeyFromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	before := sk.Bytes()
	var msg [8]byte
	for i := uint64(0); i < 10; i++ {
		binary.LittleEndian.PutUint64(msg[:], i)
		sig, err := Mode44.Sign(sk, msg[:], nil, false)
		if err != nil {
			t.Fatal(err)
		}
		if !Mode44.Verify(pk, msg[:], nil, sig) {
			t.Fatal("valid signature rejected")
		}
	}
	if !bytes.Equal(before, sk.Bytes()) {
		t.Fatal("private key mutated by signing")
	}
}

func TestKeyPackUnpack(t *testing.T) {
	seed := make([]byte, SeedSize)
	seed[4] = 9
	pk, sk, err := Mode65.NewKeyFromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	pk2, err := Mode65.UnpackPublicKey(pk.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !pk.Equal(pk2) {
		t.Fatal("public key roundtrip mismatch")
	}
	sk2, err := Mode65.UnpackPrivateKey(sk.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !sk.Equal(sk2) {
		t.Fatal("private key roundtrip mismatch")
	}

	msg := []byte("round-trip")
	sig, err := Mode65.Sign(sk2, msg, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !Mode65.Verify(pk2, msg, nil, sig) {
		t.Fatal("unpacked keys fail to sign/verify")
	}
}

func TestVerifyMalformedInput(t *testing.T) {
	seed := make([]byte, SeedSize)
	pk, sk, err := Mode44.NewKeyFromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := Mode44.Sign(sk, []byte("m"), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if Mode44.Verify(pk, []byte("m"), nil, sig[:len(sig)-1]) {
		t.Fatal("truncated signature accepted")
	}
	if Mode44.Verify(pk, []byte("m"), make([]byte, 256), sig) {
		t.Fatal("oversized context accepted")
	}
	if _, err := Mode44.UnpackPublicKey(make([]byte, 100)); err == nil {
		t.Fatal("short public key accepted")
	}
}

func TestRandomizedSigning(t *testing.T) {
	pk, sk, err := Mode44.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("randomized")
	s1, err := Mode44.Sign(sk, msg, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := Mode44.Sign(sk, msg, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if !Mode44.Verify(pk, msg, nil, s1) || !Mode44.Verify(pk, msg, nil, s2) {
		t.Fatal("randomized signature rejected")
	}
	if bytes.Equal(s1, s2) {
		t.Fatal("randomized signatures are identical")
	}
}

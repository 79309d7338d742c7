package thmldsa

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btc-vision/noble-post-quantum/sign/mldsa"
)

// runDKG drives a full DKG session and returns the per-party outputs.
func runDKG(t *testing.T, params *Params, sessionID []byte) ([]*PublicKey, []*KeyShare) {
	t.Helper()
	n := int(params.N)

	dkgs := make([]*DKG, n)
	for i := 0; i < n; i++ {
		d, err := NewDKG(params, sessionID, uint8(i))
		require.NoError(t, err)
		dkgs[i] = d
	}

	// Phase 1: commit.
	bcasts1 := make([]*Phase1Broadcast, n)
	st1s := make([]*Phase1State, n)
	for i, d := range dkgs {
		var err error
		bcasts1[i], st1s[i], err = d.Phase1(rand.Reader)
		require.NoError(t, err)
	}

	// Phase 2: reveal.
	bcasts2 := make([]*Phase2Broadcast, n)
	privates := make([]map[uint8]*Phase2Private, n)
	st2s := make([]*Phase2State, n)
	for i, d := range dkgs {
		var err error
		bcasts2[i], privates[i], st2s[i], err = d.Phase2(st1s[i])
		require.NoError(t, err)
	}

	// Non-holder exclusion: a party only ever receives reveals for
	// bitmasks it holds.
	for i := 0; i < n; i++ {
		for to, p := range privates[i] {
			require.Equal(t, p.To, to)
			for b := range p.Seeds {
				require.NotZero(t, b&(1<<to), "party %d revealed bitmask %#x to non-holder %d", i, b, to)
				require.NotZero(t, b&(1<<uint8(i)), "party %d revealed a bitmask it does not hold", i)
			}
		}
	}

	// Phase 2 finalize, which emits the phase 3 mask pieces.
	outs := make([]*Phase3Output, n)
	st3s := make([]*Phase3State, n)
	for i, d := range dkgs {
		var received []*Phase2Private
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if p, ok := privates[j][uint8(i)]; ok {
				received = append(received, p)
			}
		}
		var err error
		outs[i], st3s[i], err = d.Phase2Finalize(bcasts1, bcasts2, received, st2s[i], rand.Reader)
		require.NoError(t, err)
		st1s[i].Destroy()
		st2s[i].Destroy()
	}

	// Phase 3 routing + phase 4 aggregation.
	bcasts4 := make([]*Phase4Broadcast, n)
	for i, d := range dkgs {
		var received []*MaskPiece
		for j := 0; j < n; j++ {
			received = append(received, outs[j].Private[uint8(i)]...)
		}
		var err error
		bcasts4[i], err = d.Phase4(received, st3s[i])
		require.NoError(t, err)
	}

	// Finalize.
	pks := make([]*PublicKey, n)
	shares := make([]*KeyShare, n)
	for i, d := range dkgs {
		var err error
		pks[i], shares[i], err = d.Finalize(bcasts4, st3s[i])
		require.NoError(t, err)
	}
	return pks, shares
}

func TestDKG2of3(t *testing.T) {
	params, err := GetParams(44, 2, 3)
	require.NoError(t, err)
	sessionID := make([]byte, SessionIDSize)

	pks, shares := runDKG(t, params, sessionID)

	// All parties finalize to byte-identical ρ, pk and tr.
	for i := 1; i < 3; i++ {
		require.Equal(t, pks[0].Bytes(), pks[i].Bytes())
		require.Equal(t, shares[0].Rho, shares[i].Rho)
		require.Equal(t, shares[0].Tr, shares[i].Tr)
	}

	// Seed consistency across holders.
	for _, b := range bitmasks(params) {
		var ref *SecretShare
		for _, holder := range holdersOf(b, params.N) {
			share, ok := shares[holder].Shares[b]
			require.True(t, ok)
			if ref == nil {
				ref = share
				continue
			}
			require.Equal(t, ref.S1, share.S1)
			require.Equal(t, ref.S2, share.S2)
		}
	}

	// Any 2 of the 3 resulting shares sign; the plain verifier accepts.
	verifier, err := mldsa.Mode44.UnpackPublicKey(pks[0].Bytes())
	require.NoError(t, err)
	msg := []byte("TEST")
	for _, subset := range [][]int{{0, 1}, {0, 2}, {1, 2}} {
		sig := signSubset(t, pks[0], []*KeyShare{shares[subset[0]], shares[subset[1]]}, msg, nil)
		require.True(t, mldsa.Mode44.Verify(verifier, msg, nil, sig), "subset %v", subset)
	}
}

func TestDKGGeneratorBalance(t *testing.T) {
	for _, cfg := range [][2]uint8{{2, 3}, {2, 5}, {3, 6}} {
		params, err := GetParams(44, cfg[0], cfg[1])
		require.NoError(t, err)
		d, err := NewDKG(params, make([]byte, SessionIDSize), 0)
		require.NoError(t, err)

		load := make(map[uint8]int)
		for b, gen := range d.generator {
			require.NotZero(t, b&(1<<gen), "generator of %#x is not a holder", b)
			load[gen]++
		}
		min, max := 1<<30, 0
		for i := uint8(0); i < params.N; i++ {
			if load[i] < min {
				min = load[i]
			}
			if load[i] > max {
				max = load[i]
			}
		}
		require.LessOrEqual(t, max-min, 1, "T=%d N=%d generator loads %v", cfg[0], cfg[1], load)
	}
}

func TestDKGSessionIsolation(t *testing.T) {
	params, err := GetParams(44, 2, 3)
	require.NoError(t, err)

	sidA := make([]byte, SessionIDSize)
	sidB := make([]byte, SessionIDSize)
	sidB[0] = 1

	n := int(params.N)
	dkgsA := make([]*DKG, n)
	dkgsB := make([]*DKG, n)
	bcasts1A := make([]*Phase1Broadcast, n)
	bcasts2B := make([]*Phase2Broadcast, n)
	st2sB := make([]*Phase2State, n)
	for i := 0; i < n; i++ {
		dkgsA[i], err = NewDKG(params, sidA, uint8(i))
		require.NoError(t, err)
		dkgsB[i], err = NewDKG(params, sidB, uint8(i))
		require.NoError(t, err)

		bcasts1A[i], _, err = dkgsA[i].Phase1(rand.Reader)
		require.NoError(t, err)

		var st1 *Phase1State
		_, st1, err = dkgsB[i].Phase1(rand.Reader)
		require.NoError(t, err)
		bcasts2B[i], _, st2sB[i], err = dkgsB[i].Phase2(st1)
		require.NoError(t, err)
	}

	// Session B reveals must fail against session A commitments.
	_, _, err = dkgsB[0].Phase2Finalize(bcasts1A, bcasts2B, nil, st2sB[0], rand.Reader)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rho commitment mismatch")
}

func TestDKGTamperedSeedReveal(t *testing.T) {
	params, err := GetParams(44, 2, 3)
	require.NoError(t, err)
	sessionID := make([]byte, SessionIDSize)
	n := int(params.N)

	dkgs := make([]*DKG, n)
	bcasts1 := make([]*Phase1Broadcast, n)
	st1s := make([]*Phase1State, n)
	bcasts2 := make([]*Phase2Broadcast, n)
	privates := make([]map[uint8]*Phase2Private, n)
	st2s := make([]*Phase2State, n)
	for i := 0; i < n; i++ {
		dkgs[i], err = NewDKG(params, sessionID, uint8(i))
		require.NoError(t, err)
		bcasts1[i], st1s[i], err = dkgs[i].Phase1(rand.Reader)
		require.NoError(t, err)
	}
	for i := 0; i < n; i++ {
		bcasts2[i], privates[i], st2s[i], err = dkgs[i].Phase2(st1s[i])
		require.NoError(t, err)
	}

	// Tamper party 1's reveal to party 0.
	p := privates[1][0]
	for b, seed := range p.Seeds {
		seed[0] ^= 1
		p.Seeds[b] = seed
		break
	}
	var received []*Phase2Private
	for j := 1; j < n; j++ {
		if pr, ok := privates[j][0]; ok {
			received = append(received, pr)
		}
	}
	_, _, err = dkgs[0].Phase2Finalize(bcasts1, bcasts2, received, st2s[0], rand.Reader)
	require.Error(t, err)
	require.Contains(t, err.Error(), "seed commitment mismatch for party 1")
}

func TestDKGValidation(t *testing.T) {
	params, err := GetParams(44, 2, 3)
	require.NoError(t, err)

	_, err = NewDKG(params, make([]byte, 16), 0)
	require.Error(t, err, "short session id must be rejected")

	_, err = NewDKG(params, make([]byte, SessionIDSize), 3)
	require.Error(t, err, "party id ≥ N must be rejected")

	d, err := NewDKG(params, make([]byte, SessionIDSize), 0)
	require.NoError(t, err)
	_, st1, err := d.Phase1(rand.Reader)
	require.NoError(t, err)
	_, _, st2, err := d.Phase2(st1)
	require.NoError(t, err)

	// Wrong broadcast counts are fatal.
	_, _, err = d.Phase2Finalize(nil, nil, nil, st2, rand.Reader)
	require.Error(t, err)

	st1.Destroy()
	require.Panics(t, func() { _, _, _, _ = d.Phase2(st1) })
	st2.Destroy()
	require.Panics(t, func() { _, _, _ = d.Phase2Finalize(nil, nil, nil, st2, rand.Reader) })
}

func TestDKG2of2(t *testing.T) {
	params, err := GetParams(44, 2, 2)
	require.NoError(t, err)
	sessionID := make([]byte, SessionIDSize)
	sessionID[31] = 9

	pks, shares := runDKG(t, params, sessionID)
	require.Equal(t, pks[0].Bytes(), pks[1].Bytes())

	verifier, err := mldsa.Mode44.UnpackPublicKey(pks[0].Bytes())
	require.NoError(t, err)
	msg := []byte("dkg 2-of-2")
	sig := signSubset(t, pks[0], shares, msg, nil)
	require.True(t, mldsa.Mode44.Verify(verifier, msg, nil, sig))
}

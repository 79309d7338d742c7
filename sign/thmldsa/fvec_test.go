package thmldsa

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btc-vision/noble-post-quantum/sign/internal/dilithium"
)

func TestFVecFrom(t *testing.T) {
	mode := dilithium.MLDSA44
	v := newFVec(mode)
	s1 := dilithium.NewVec(mode.L)
	s2 := dilithium.NewVec(mode.K)

	s1[0][0] = 5
	s1[0][1] = dilithium.Q - 3 // -3 centered
	s2[0][0] = dilithium.Q - 1 // -1 centered
	v.From(s1, s2)

	require.Equal(t, 5.0, v[0])
	require.Equal(t, -3.0, v[1])
	require.Equal(t, -1.0, v[mode.L*dilithium.N])
}

func TestFVecRound(t *testing.T) {
	mode := dilithium.MLDSA44
	v := newFVec(mode)
	s1 := dilithium.NewVec(mode.L)
	s2 := dilithium.NewVec(mode.K)

	v[0] = 1.2
	v[1] = 3.6
	v[2] = -2.3
	v.Round(s1, s2)

	require.Equal(t, uint32(1), s1[0][0])
	require.Equal(t, uint32(4), s1[0][1])
	require.Equal(t, uint32(dilithium.Q-2), s1[0][2])
}

func TestFVecExcessWeighting(t *testing.T) {
	mode := dilithium.MLDSA44
	v := newFVec(mode)
	// A single L-block coordinate of 3ν has weighted contribution 9.
	v[0] = 3 * 3.0
	require.False(t, v.Excess(3.0001, 3.0, mode.L))
	require.True(t, v.Excess(2.9999, 3.0, mode.L))
}

func TestSampleHyperballDeterministic(t *testing.T) {
	mode := dilithium.MLDSA44
	var rhop [64]byte
	rhop[0] = 0x5a

	a := newFVec(mode)
	b := newFVec(mode)
	sampleHyperball(a, 252833, 3.0, mode.L, &rhop, 0)
	sampleHyperball(b, 252833, 3.0, mode.L, &rhop, 0)
	require.Equal(t, a, b, "hyperball sampling must be deterministic for fixed ρ′ and nonce")

	sampleHyperball(b, 252833, 3.0, mode.L, &rhop, 1)
	require.NotEqual(t, a, b, "nonce must separate domains")
}

func TestSampleHyperballNorm(t *testing.T) {
	mode := dilithium.MLDSA44
	var rhop [64]byte
	const rPrime = 252833.0

	v := newFVec(mode)
	sampleHyperball(v, rPrime, 3.0, mode.L, &rhop, 7)

	// The ν-weighted norm is bounded by r′: the scale divides by the full
	// Box–Muller norm, which includes one extra pair.
	var sq float64
	for i := range v {
		if i < mode.L*dilithium.N {
			sq += v[i] * v[i] / 9.0
		} else {
			sq += v[i] * v[i]
		}
	}
	require.LessOrEqual(t, math.Sqrt(sq), rPrime+1e-6)
	require.Greater(t, math.Sqrt(sq), 0.0)
	require.False(t, v.Excess(rPrime, 3.0, mode.L))
}

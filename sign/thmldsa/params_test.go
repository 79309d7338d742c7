package thmldsa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetParamsValidation(t *testing.T) {
	_, err := GetParams(44, 1, 3)
	require.Error(t, err, "T=1 must be rejected")
	_, err = GetParams(44, 4, 3)
	require.Error(t, err, "T>N must be rejected")
	_, err = GetParams(44, 2, 7)
	require.Error(t, err, "N=7 must be rejected")
	_, err = GetParams(99, 2, 3)
	require.Error(t, err, "unknown level must be rejected")
}

func TestGetParamsTables(t *testing.T) {
	for _, level := range []int{44, 65, 87, 128, 192, 256} {
		for n := uint8(2); n <= 6; n++ {
			for tt := uint8(2); tt <= n; tt++ {
				p, err := GetParams(level, tt, n)
				require.NoError(t, err)
				require.GreaterOrEqual(t, p.KIter, uint16(2))
				require.LessOrEqual(t, p.KIter, uint16(100))
				require.Less(t, p.R, p.RPrime, "level %d T=%d N=%d", level, tt, n)
				require.Equal(t, 3.0, p.Nu)
			}
		}
	}
}

func TestParamsSizes(t *testing.T) {
	p, err := GetParams(44, 2, 3)
	require.NoError(t, err)
	require.Equal(t, int(p.KIter)*4*736, p.CommitmentSize())
	require.Equal(t, int(p.KIter)*4*736, p.ResponseSize())
	require.Equal(t, 2420, p.SignatureSize())
	require.Equal(t, 2, p.SharesPerParty())
}

func TestSharingPatternsCoverEveryBitmask(t *testing.T) {
	for key, pattern := range sharingPatterns {
		tt, n := key[0], key[1]
		p, err := GetParams(44, tt, n)
		require.NoError(t, err)
		seen := make(map[uint8]int)
		for _, row := range pattern {
			for _, b := range row {
				seen[b]++
			}
		}
		all := bitmasks(p)
		for _, b := range all {
			require.Equal(t, 1, seen[b], "T=%d N=%d bitmask %#x", tt, n, b)
		}
		require.Len(t, seen, len(all), "pattern references a bitmask outside the enumeration")
		require.Len(t, pattern, int(tt))
	}
}

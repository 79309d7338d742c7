package thmldsa

import "github.com/pkg/errors"

// Share-recovery patterns for every supported (T, N) with T < N.  Entry i
// lists the bitmasks whose NTT-encoded shares the i-th active party sums
// to recover the combined signing share.  The patterns are a precomputed
// max-flow result and are embedded as constants; they are defined for the
// reference active set {0, …, T-1} and translated to any other active set
// by permuteShareMask.
var sharingPatterns = map[[2]uint8][][]uint8{
	{2, 3}: {{3, 5}, {6}},
	{2, 4}: {{11, 13}, {7, 14}},
	{3, 4}: {{3, 9}, {6, 10}, {12, 5}},
	{2, 5}: {{27, 29, 23}, {30, 15}},
	{3, 5}: {{25, 11, 19, 13}, {7, 14, 22, 26}, {28, 21}},
	{4, 5}: {{3, 9, 17}, {6, 10, 18}, {12, 5, 20}, {24}},
	{2, 6}: {{61, 47, 55}, {62, 31, 59}},
	{3, 6}: {{27, 23, 43, 57, 39}, {51, 58, 46, 30, 54}, {45, 53, 29, 15, 60}},
	{4, 6}: {{19, 13, 35, 7, 49}, {42, 26, 38, 50, 22}, {52, 21, 44, 28, 37}, {25, 11, 14, 56, 41}},
	{5, 6}: {{3, 5, 33}, {6, 10, 34}, {12, 20, 36}, {9, 24, 40}, {48, 17, 18}},
}

// activePermutation maps reference bit positions to actual party indices
// for the active set act: the first T set bits of act map to [0, T-1], the
// remaining bits to [T, N-1].  It also returns the position of party id
// within the active ordering.
func activePermutation(params *Params, act uint8, id uint8) (perm []uint8, pos int, err error) {
	perm = make([]uint8, params.N)
	i1, i2 := 0, int(params.T)
	pos = -1
	for j := uint8(0); j < params.N; j++ {
		if act&(1<<j) != 0 {
			if j == id {
				pos = i1
			}
			if i1 >= int(params.T) {
				return nil, 0, errors.Errorf("thmldsa: active set has more than %d parties", params.T)
			}
			perm[i1] = j
			i1++
		} else {
			perm[i2] = j
			i2++
		}
	}
	if i1 != int(params.T) {
		return nil, 0, errors.Errorf("thmldsa: active set has %d parties, need %d", i1, params.T)
	}
	if pos < 0 {
		return nil, 0, errors.Errorf("thmldsa: party %d is not in the active set", id)
	}
	return perm, pos, nil
}

// permuteShareMask translates a reference-pattern bitmask through the
// active-set permutation.
func permuteShareMask(u uint8, perm []uint8) uint8 {
	var out uint8
	for i := range perm {
		if u&(1<<uint(i)) != 0 {
			out |= 1 << perm[i]
		}
	}
	return out
}

package thmldsa

import (
	cryptoRand "crypto/rand"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"github.com/btc-vision/noble-post-quantum/sign/internal/dilithium"
)

// CommitmentHashSize is the size of a round-1 commitment hash.
const CommitmentHashSize = 32

// maxSignAttempts bounds the retry loop of the co-located Sign driver.
const maxSignAttempts = 500

// ErrMaxAttempts is returned when no attempt yields an accepting
// transcript.
var ErrMaxAttempts = errors.New("thmldsa: signing failed after maximum attempts")

// Round1State owns one signing attempt's hyperball vectors and packed
// commitment.  It must be destroyed after the attempt, whether or not a
// signature was produced.
type Round1State struct {
	stw       []FVec
	wbuf      []byte
	destroyed bool
}

// Destroy zeroes the sensitive floats.  It is idempotent; any later access
// to the state panics.
func (st *Round1State) Destroy() {
	for i := range st.stw {
		st.stw[i].Zero()
	}
	st.stw = nil
	st.wbuf = nil
	st.destroyed = true
}

func (st *Round1State) guard() {
	if st.destroyed {
		panic("thmldsa: use of destroyed Round1State")
	}
}

// Round2State holds the peer commitment hashes, μ, and the active set for
// one signing attempt.
type Round2State struct {
	hashes    [][CommitmentHashSize]byte
	mu        [dilithium.CRHSize]byte
	act       uint8
	activeIDs []uint8
	destroyed bool
}

// Destroy zeroes μ.  It is idempotent; any later access panics.
func (st *Round2State) Destroy() {
	for i := range st.mu {
		st.mu[i] = 0
	}
	st.hashes = nil
	st.activeIDs = nil
	st.destroyed = true
}

func (st *Round2State) guard() {
	if st.destroyed {
		panic("thmldsa: use of destroyed Round2State")
	}
}

// commitmentHash computes SHAKE256(tr ‖ partyId ‖ packed, 32).
func commitmentHash(tr *[dilithium.TRSize]byte, id uint8, packed []byte) [CommitmentHashSize]byte {
	var out [CommitmentHashSize]byte
	h := sha3.NewShake256()
	_, _ = h.Write(tr[:])
	_, _ = h.Write([]byte{id})
	_, _ = h.Write(packed)
	_, _ = h.Read(out[:])
	return out
}

// Round1 samples the K_iter hyperball commitments for one signing attempt
// and returns the binding commitment hash.  rhop seeds the hyperball
// sampler; when nil, 64 fresh random bytes are drawn.  The nonce must be
// strictly greater than any previously used nonce of this session.
func Round1(ks *KeyShare, nonce uint16, rhop *[64]byte) ([]byte, *Round1State, error) {
	params := ks.params
	mode := params.mode

	if rhop == nil {
		rhop = new([64]byte)
		if _, err := io.ReadFull(cryptoRand.Reader, rhop[:]); err != nil {
			return nil, nil, err
		}
	}

	a := ks.matrix()
	st := &Round1State{
		stw:  make([]FVec, params.KIter),
		wbuf: make([]byte, params.CommitmentSize()),
	}
	ws := make([]dilithium.Vec, params.KIter)
	y := dilithium.NewVec(mode.L)
	e := dilithium.NewVec(mode.K)

	for iter := uint16(0); iter < params.KIter; iter++ {
		st.stw[iter] = newFVec(mode)
		sampleHyperball(st.stw[iter], params.RPrime, params.Nu, mode.L, rhop, nonce*params.KIter+iter)
		st.stw[iter].Round(y, e)

		// w = NTT⁻¹(A·NTT(y)) + e
		y.NTT()
		w := dilithium.NewVec(mode.K)
		a.MulVecHat(w, y)
		w.InvNTT()
		w.Add(w, e)
		ws[iter] = w
	}
	y.Zero()
	e.Zero()

	packVecs(ws, st.wbuf)
	hash := commitmentHash(&ks.Tr, ks.ID, st.wbuf)
	return hash[:], st, nil
}

// Round2 validates the active set, binds the round-1 hashes and the
// message digest μ, and reveals the packed commitment.  round1Hashes must
// be ordered like activeIDs.
func Round2(ks *KeyShare, activeIDs []uint8, msg, ctx []byte, round1Hashes [][]byte, st1 *Round1State) ([]byte, *Round2State, error) {
	st1.guard()
	params := ks.params

	if len(ctx) > 255 {
		return nil, nil, dilithium.ErrContextTooLong
	}
	if len(activeIDs) < int(params.T) {
		return nil, nil, errors.Errorf("thmldsa: active set has %d parties, threshold is %d", len(activeIDs), params.T)
	}
	if len(round1Hashes) != len(activeIDs) {
		return nil, nil, errors.Errorf("thmldsa: got %d round-1 hashes for %d active parties", len(round1Hashes), len(activeIDs))
	}

	st2 := &Round2State{
		hashes:    make([][CommitmentHashSize]byte, len(activeIDs)),
		activeIDs: append([]uint8(nil), activeIDs...),
	}
	for i, id := range activeIDs {
		if id >= params.N {
			return nil, nil, errors.Errorf("thmldsa: active party id %d out of range", id)
		}
		if st2.act&(1<<id) != 0 {
			return nil, nil, errors.Errorf("thmldsa: duplicate active party id %d", id)
		}
		st2.act |= 1 << id
		if len(round1Hashes[i]) != CommitmentHashSize {
			return nil, nil, errors.Errorf("thmldsa: round-1 hash of party %d has wrong length", id)
		}
		copy(st2.hashes[i][:], round1Hashes[i])
	}

	st2.mu = dilithium.ComputeMu(&ks.Tr, dilithium.Framed(msg, ctx))
	return st1.wbuf, st2, nil
}

// Round3 verifies every peer's revealed commitment against its round-1
// hash, recovers the combined share for the active set, and computes the
// packed response.  commitments must be ordered like the active ids bound
// in Round2.
func Round3(ks *KeyShare, commitments [][]byte, st1 *Round1State, st2 *Round2State) ([]byte, error) {
	st1.guard()
	st2.guard()
	params := ks.params
	mode := params.mode

	if len(commitments) != len(st2.activeIDs) {
		return nil, errors.Errorf("thmldsa: got %d commitments for %d active parties", len(commitments), len(st2.activeIDs))
	}

	// Verify the commit-then-reveal binding and aggregate wfinal.
	wfinal := make([]dilithium.Vec, params.KIter)
	for i := range wfinal {
		wfinal[i] = dilithium.NewVec(mode.K)
	}
	for i, id := range st2.activeIDs {
		hash := commitmentHash(&ks.Tr, id, commitments[i])
		if hash != st2.hashes[i] {
			return nil, errors.Errorf("thmldsa: commitment hash mismatch for party %d", id)
		}
		ws, err := unpackVecs(commitments[i], int(params.KIter), mode.K)
		if err != nil {
			return nil, errors.Wrapf(err, "thmldsa: commitment of party %d", id)
		}
		aggregateVecs(wfinal, ws)
	}

	s1h, s2h, err := ks.recoverShare(st2.act)
	if err != nil {
		return nil, err
	}
	defer func() {
		s1h.Zero()
		s2h.Zero()
	}()

	w0 := dilithium.NewVec(mode.K)
	w1 := dilithium.NewVec(mode.K)
	cs1 := dilithium.NewVec(mode.L)
	cs2 := dilithium.NewVec(mode.K)
	zInt := dilithium.NewVec(mode.L)
	eInt := dilithium.NewVec(mode.K)
	zf := newFVec(mode)
	var c, ch dilithium.Poly
	w1Packed := make([]byte, mode.PolyW1Size*mode.K)
	cTilde := make([]byte, mode.CTildeSize)
	defer func() {
		cs1.Zero()
		cs2.Zero()
		zInt.Zero()
		eInt.Zero()
		zf.Zero()
	}()

	zs := make([]dilithium.Vec, params.KIter)
	h := sha3.NewShake256()
	for iter := uint16(0); iter < params.KIter; iter++ {
		zs[iter] = dilithium.NewVec(mode.L)

		wfinal[iter].Decompose(w0, w1, mode.Gamma2)
		for i := 0; i < mode.K; i++ {
			dilithium.PackW1(&w1[i], w1Packed[i*mode.PolyW1Size:], mode.W1Bits)
		}
		h.Reset()
		_, _ = h.Write(st2.mu[:])
		_, _ = h.Write(w1Packed)
		_, _ = h.Read(cTilde)

		dilithium.PolyDeriveUniformBall(&c, cTilde, mode.Tau)
		ch = c
		ch.NTT()

		for j := 0; j < mode.L; j++ {
			cs1[j].MulHat(&ch, &s1h[j])
			cs1[j].InvNTT()
		}
		for j := 0; j < mode.K; j++ {
			cs2[j].MulHat(&ch, &s2h[j])
			cs2[j].InvNTT()
		}

		zf.From(cs1, cs2)
		zf.Add(zf, st1.stw[iter])

		// The rounding always runs so the acceptance pattern leaks no
		// timing on the rotated secret.
		zf.Round(zInt, eInt)
		if !zf.Excess(params.R, params.Nu, mode.L) {
			copy(zs[iter], zInt)
		}
	}

	response := make([]byte, params.ResponseSize())
	packVecs(zs, response)
	for i := range zs {
		zs[i].Zero()
	}
	return response, nil
}

// Combine aggregates the revealed commitments and responses and attempts
// to assemble a standard FIPS 204 signature.  A nil signature with nil
// error means every iteration was rejected: the caller retries the rounds
// with a fresh nonce.
func Combine(pk *PublicKey, msg, ctx []byte, commitments, responses [][]byte, params *Params) ([]byte, error) {
	mode := params.mode
	dpk := (*dilithium.PublicKey)(pk)

	if len(ctx) > 255 {
		return nil, dilithium.ErrContextTooLong
	}
	if len(responses) < int(params.T) {
		return nil, errors.Errorf("thmldsa: got %d responses, threshold is %d", len(responses), params.T)
	}

	wfinal := make([]dilithium.Vec, params.KIter)
	zfinal := make([]dilithium.Vec, params.KIter)
	for i := range wfinal {
		wfinal[i] = dilithium.NewVec(mode.K)
		zfinal[i] = dilithium.NewVec(mode.L)
	}
	for i := range commitments {
		ws, err := unpackVecs(commitments[i], int(params.KIter), mode.K)
		if err != nil {
			return nil, errors.Wrapf(err, "thmldsa: commitment %d", i)
		}
		aggregateVecs(wfinal, ws)
	}
	for i := range responses {
		zv, err := unpackVecs(responses[i], int(params.KIter), mode.L)
		if err != nil {
			return nil, errors.Wrapf(err, "thmldsa: response %d", i)
		}
		aggregateVecs(zfinal, zv)
	}

	mu := dilithium.ComputeMu(&dpk.Tr, dilithium.Framed(msg, ctx))

	w0 := dilithium.NewVec(mode.K)
	w1 := dilithium.NewVec(mode.K)
	az := dilithium.NewVec(mode.K)
	ct1 := dilithium.NewVec(mode.K)
	f := dilithium.NewVec(mode.K)
	hint := dilithium.NewVec(mode.K)
	var c, ch dilithium.Poly
	w1Packed := make([]byte, mode.PolyW1Size*mode.K)
	cTilde := make([]byte, mode.CTildeSize)
	h := sha3.NewShake256()

	for iter := uint16(0); iter < params.KIter; iter++ {
		if zfinal[iter].Exceeds(mode.Gamma1 - mode.Beta) {
			continue
		}

		wfinal[iter].Decompose(w0, w1, mode.Gamma2)
		for i := 0; i < mode.K; i++ {
			dilithium.PackW1(&w1[i], w1Packed[i*mode.PolyW1Size:], mode.W1Bits)
		}
		h.Reset()
		_, _ = h.Write(mu[:])
		_, _ = h.Write(w1Packed)
		_, _ = h.Read(cTilde)

		dilithium.PolyDeriveUniformBall(&c, cTilde, mode.Tau)
		ch = c
		ch.NTT()

		zh := zfinal[iter].Copy()
		zh.NTT()
		dpk.A.MulVecHat(az, zh)
		for i := 0; i < mode.K; i++ {
			var t1Shift dilithium.Poly
			t1Shift.ShiftL(&dpk.T1[i])
			t1Shift.NTT()
			ct1[i].MulHat(&ch, &t1Shift)
		}
		az.Sub(az, ct1)
		az.InvNTT()

		f.Sub(az, wfinal[iter])
		if f.Exceeds(mode.Gamma2) {
			continue
		}

		w0.Add(w0, f)
		if w0.MakeHint(hint, w1, mode.Gamma2) > mode.Omega {
			continue
		}

		sig := make([]byte, mode.SignatureSize)
		copy(sig[:mode.CTildeSize], cTilde)
		off := mode.CTildeSize
		for i := 0; i < mode.L; i++ {
			dilithium.PackLeGamma1(&zfinal[iter][i], sig[off:], mode.Gamma1Bits)
			off += mode.PolyLeGamma1Size
		}
		dilithium.PackHint(hint, sig[off:], mode.Omega)
		return sig, nil
	}

	return nil, nil
}

// Sign runs the three-round protocol over co-located shares until an
// attempt succeeds, retrying with strictly increasing nonces.  The shares
// define the active set; at least T distinct shares are required.
func Sign(pk *PublicKey, shares []*KeyShare, msg, ctx []byte) ([]byte, error) {
	if len(shares) == 0 {
		return nil, errors.New("thmldsa: no key shares supplied")
	}
	params := shares[0].params
	activeIDs := make([]uint8, len(shares))
	for i, ks := range shares {
		activeIDs[i] = ks.ID
	}

	for nonce := uint16(0); nonce < maxSignAttempts; nonce++ {
		sig, err := signAttempt(pk, shares, activeIDs, msg, ctx, nonce, params)
		if err != nil {
			return nil, err
		}
		if sig != nil {
			return sig, nil
		}
	}
	return nil, ErrMaxAttempts
}

func signAttempt(pk *PublicKey, shares []*KeyShare, activeIDs []uint8, msg, ctx []byte, nonce uint16, params *Params) ([]byte, error) {
	n := len(shares)
	hashes := make([][]byte, n)
	st1s := make([]*Round1State, n)
	defer func() {
		for _, st := range st1s {
			if st != nil {
				st.Destroy()
			}
		}
	}()

	for i, ks := range shares {
		var err error
		hashes[i], st1s[i], err = Round1(ks, nonce, nil)
		if err != nil {
			return nil, err
		}
	}

	cmts := make([][]byte, n)
	st2s := make([]*Round2State, n)
	defer func() {
		for _, st := range st2s {
			if st != nil {
				st.Destroy()
			}
		}
	}()
	for i, ks := range shares {
		var err error
		cmts[i], st2s[i], err = Round2(ks, activeIDs, msg, ctx, hashes, st1s[i])
		if err != nil {
			return nil, err
		}
	}

	resps := make([][]byte, n)
	for i, ks := range shares {
		var err error
		resps[i], err = Round3(ks, cmts, st1s[i], st2s[i])
		if err != nil {
			return nil, err
		}
	}

	return Combine(pk, msg, ctx, cmts, resps, params)
}

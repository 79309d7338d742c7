package thmldsa

import (
	cryptoRand "crypto/rand"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"github.com/btc-vision/noble-post-quantum/sign/internal/dilithium"
)

// SessionIDSize is the required length of a DKG session identifier.
const SessionIDSize = 32

// Domain-separation tags for the two commitment types of Phase 1.  They
// must differ so a ρ commitment can never collide with a seed commitment.
const (
	dkgTagRho  = 0x01
	dkgTagSeed = 0x02
)

// DKG is one party's view of a distributed key generation session.  The
// setup (bitmask enumeration, holder sets, generator assignment) is a
// deterministic function of the parameters, so all parties agree on it
// without interaction.
type DKG struct {
	params    *Params
	sessionID [SessionIDSize]byte
	id        uint8

	bitmasks  []uint8
	generator map[uint8]uint8 // bitmask → generating holder
}

// NewDKG prepares a DKG session for the given party.
func NewDKG(params *Params, sessionID []byte, id uint8) (*DKG, error) {
	if len(sessionID) != SessionIDSize {
		return nil, errors.Errorf("thmldsa: session id must be %d bytes, got %d", SessionIDSize, len(sessionID))
	}
	if id >= params.N {
		return nil, errors.Errorf("thmldsa: party id %d out of range for N=%d", id, params.N)
	}
	d := &DKG{params: params, id: id}
	copy(d.sessionID[:], sessionID)

	// Generator assignment: for each bitmask, the holder with minimum
	// current load, ties broken by ascending party id.
	d.bitmasks = bitmasks(params)
	d.generator = make(map[uint8]uint8, len(d.bitmasks))
	load := make([]int, params.N)
	for _, b := range d.bitmasks {
		gen := uint8(0)
		best := -1
		for _, holder := range holdersOf(b, params.N) {
			if best < 0 || load[holder] < best {
				best = load[holder]
				gen = holder
			}
		}
		d.generator[b] = gen
		load[gen]++
	}
	return d, nil
}

// heldBitmasks lists the bitmasks containing the given party's bit.
func (d *DKG) heldBitmasks(id uint8) []uint8 {
	var out []uint8
	for _, b := range d.bitmasks {
		if b&(1<<id) != 0 {
			out = append(out, b)
		}
	}
	return out
}

// dkgCommit computes SHAKE256(sessionId ‖ tag ‖ party ‖ payload…, 32).
func (d *DKG) dkgCommit(tag byte, party uint8, payload ...[]byte) [32]byte {
	var out [32]byte
	h := sha3.NewShake256()
	_, _ = h.Write(d.sessionID[:])
	_, _ = h.Write([]byte{tag, party})
	for _, p := range payload {
		_, _ = h.Write(p)
	}
	_, _ = h.Read(out[:])
	return out
}

// Phase1Broadcast carries the session-bound commitments of one party.
type Phase1Broadcast struct {
	Party           uint8
	RhoCommitment   [32]byte
	SeedCommitments map[uint8][32]byte
}

// Phase1State retains the openings of Phase 1.
type Phase1State struct {
	rho       [32]byte
	key       [32]byte
	seeds     map[uint8][32]byte
	destroyed bool
}

// Destroy wipes the retained ρ share and bitmask seeds.
func (st *Phase1State) Destroy() {
	for i := range st.rho {
		st.rho[i] = 0
	}
	for i := range st.key {
		st.key[i] = 0
	}
	for b, s := range st.seeds {
		for i := range s {
			s[i] = 0
		}
		st.seeds[b] = s
	}
	st.seeds = nil
	st.destroyed = true
}

func (st *Phase1State) guard() {
	if st.destroyed {
		panic("thmldsa: use of destroyed Phase1State")
	}
}

// Phase1 draws this party's ρ contribution, its per-bitmask seeds and its
// signing key, and broadcasts the binding commitments.
func (d *DKG) Phase1(rand io.Reader) (*Phase1Broadcast, *Phase1State, error) {
	if rand == nil {
		rand = cryptoRand.Reader
	}
	st := &Phase1State{seeds: make(map[uint8][32]byte)}
	if _, err := io.ReadFull(rand, st.rho[:]); err != nil {
		return nil, nil, err
	}
	if _, err := io.ReadFull(rand, st.key[:]); err != nil {
		return nil, nil, err
	}

	bc := &Phase1Broadcast{
		Party:           d.id,
		RhoCommitment:   d.dkgCommit(dkgTagRho, d.id, st.rho[:]),
		SeedCommitments: make(map[uint8][32]byte),
	}
	for _, b := range d.heldBitmasks(d.id) {
		var seed [32]byte
		if _, err := io.ReadFull(rand, seed[:]); err != nil {
			return nil, nil, err
		}
		st.seeds[b] = seed
		bc.SeedCommitments[b] = d.dkgCommit(dkgTagSeed, d.id, []byte{b}, seed[:])
	}
	return bc, st, nil
}

// Phase2Broadcast reveals a party's ρ contribution.
type Phase2Broadcast struct {
	Party uint8
	Rho   [32]byte
}

// Phase2Private carries the bitmask seed reveals for one fellow holder.
// It must travel over an authenticated, confidential channel.
type Phase2Private struct {
	From  uint8
	To    uint8
	Seeds map[uint8][32]byte
}

// Phase2State carries the openings forward to the finalize step.
type Phase2State struct {
	rho       [32]byte
	key       [32]byte
	seeds     map[uint8][32]byte
	destroyed bool
}

// Destroy wipes the carried secrets.
func (st *Phase2State) Destroy() {
	for i := range st.rho {
		st.rho[i] = 0
	}
	for i := range st.key {
		st.key[i] = 0
	}
	for b, s := range st.seeds {
		for i := range s {
			s[i] = 0
		}
		st.seeds[b] = s
	}
	st.seeds = nil
	st.destroyed = true
}

func (st *Phase2State) guard() {
	if st.destroyed {
		panic("thmldsa: use of destroyed Phase2State")
	}
}

// Phase2 reveals ρ in the clear and the bitmask seeds to fellow holders,
// never to non-holders.
func (d *DKG) Phase2(st1 *Phase1State) (*Phase2Broadcast, map[uint8]*Phase2Private, *Phase2State, error) {
	st1.guard()

	bc := &Phase2Broadcast{Party: d.id, Rho: st1.rho}
	private := make(map[uint8]*Phase2Private)
	for _, b := range d.heldBitmasks(d.id) {
		seed, ok := st1.seeds[b]
		if !ok {
			return nil, nil, nil, errors.Errorf("thmldsa: phase 1 state is missing the seed for bitmask %#x", b)
		}
		for _, holder := range holdersOf(b, d.params.N) {
			if holder == d.id {
				continue
			}
			p, ok := private[holder]
			if !ok {
				p = &Phase2Private{From: d.id, To: holder, Seeds: make(map[uint8][32]byte)}
				private[holder] = p
			}
			p.Seeds[b] = seed
		}
	}

	st2 := &Phase2State{rho: st1.rho, key: st1.key, seeds: st1.seeds}
	return bc, private, st2, nil
}

// MaskPiece is one additive piece of a generator's public aggregation,
// routed confidentially to a holder of the bitmask.
type MaskPiece struct {
	From    uint8
	To      uint8
	Bitmask uint8
	Piece   []byte // K polynomials at 23-bit packing
}

// Phase3Output routes the mask pieces: Private[recipient] holds the
// pieces the transport must deliver confidentially.
type Phase3Output struct {
	Private map[uint8][]*MaskPiece
}

// Phase3State carries the derived shares and the retained mask pieces to
// the aggregation phase.
type Phase3State struct {
	rho       [32]byte
	key       [32]byte
	shares    map[uint8]*SecretShare
	ownPieces []dilithium.Vec
	a         *dilithium.Mat
	destroyed bool
}

// Destroy wipes the retained pieces; the shares live on inside the
// assembled KeyShare and are not wiped here.
func (st *Phase3State) Destroy() {
	for i := range st.ownPieces {
		st.ownPieces[i].Zero()
	}
	st.ownPieces = nil
	st.destroyed = true
}

func (st *Phase3State) guard() {
	if st.destroyed {
		panic("thmldsa: use of destroyed Phase3State")
	}
}

// Phase2Finalize verifies all commitments, derives the bitmask shares,
// and — for every bitmask this party generates — splits its public
// aggregation into mask pieces for the holders.
func (d *DKG) Phase2Finalize(bcasts1 []*Phase1Broadcast, bcasts2 []*Phase2Broadcast, received []*Phase2Private, st2 *Phase2State, rand io.Reader) (*Phase3Output, *Phase3State, error) {
	st2.guard()
	if rand == nil {
		rand = cryptoRand.Reader
	}
	params := d.params
	mode := params.mode

	p1, err := indexPhase1(bcasts1, params.N)
	if err != nil {
		return nil, nil, err
	}
	p2, err := indexPhase2(bcasts2, params.N)
	if err != nil {
		return nil, nil, err
	}

	// (a) Verify every revealed ρ against its Phase-1 commitment.
	for j := uint8(0); j < params.N; j++ {
		if d.dkgCommit(dkgTagRho, j, p2[j].Rho[:]) != p1[j].RhoCommitment {
			return nil, nil, errors.Errorf("thmldsa: rho commitment mismatch for party %d", j)
		}
	}

	// (b) Verify received seeds and group them by bitmask.
	seedsBy := make(map[uint8]map[uint8][32]byte)
	for _, b := range d.heldBitmasks(d.id) {
		seedsBy[b] = map[uint8][32]byte{d.id: st2.seeds[b]}
	}
	for _, p := range received {
		if p.To != d.id {
			return nil, nil, errors.Errorf("thmldsa: phase 2 reveal from party %d addressed to party %d", p.From, p.To)
		}
		if p.From >= params.N {
			return nil, nil, errors.Errorf("thmldsa: phase 2 reveal from unknown party %d", p.From)
		}
		for b, seed := range p.Seeds {
			holders, ok := seedsBy[b]
			if !ok {
				return nil, nil, errors.Errorf("thmldsa: party %d revealed a seed for bitmask %#x this party does not hold", p.From, b)
			}
			if b&(1<<p.From) == 0 {
				return nil, nil, errors.Errorf("thmldsa: party %d is not a holder of bitmask %#x", p.From, b)
			}
			if d.dkgCommit(dkgTagSeed, p.From, []byte{b}, seed[:]) != p1[p.From].SeedCommitments[b] {
				return nil, nil, errors.Errorf("thmldsa: bitmask seed commitment mismatch for party %d, bitmask %#x", p.From, b)
			}
			holders[p.From] = seed
		}
	}

	// (c) Derive the combined secret of every held bitmask.
	st3 := &Phase3State{
		key:    st2.key,
		shares: make(map[uint8]*SecretShare),
	}
	for _, b := range d.heldBitmasks(d.id) {
		var combined [64]byte
		h := sha3.NewShake256()
		_, _ = h.Write(d.sessionID[:])
		_, _ = h.Write([]byte{b})
		for _, holder := range holdersOf(b, params.N) {
			seed, ok := seedsBy[b][holder]
			if !ok {
				return nil, nil, errors.Errorf("thmldsa: missing phase 2 reveal from party %d for bitmask %#x", holder, b)
			}
			_, _ = h.Write(seed[:])
		}
		_, _ = h.Read(combined[:])
		st3.shares[b] = deriveShare(mode, &combined)
	}

	// ρ = SHAKE256(ρ_0 ‖ … ‖ ρ_{N-1}): uniform if any single party is
	// honest.
	h := sha3.NewShake256()
	for j := uint8(0); j < params.N; j++ {
		_, _ = h.Write(p2[j].Rho[:])
	}
	_, _ = h.Read(st3.rho[:])

	st3.a = dilithium.NewMat(mode.K, mode.L)
	st3.a.Derive(&st3.rho)

	// Generator duties: compute A·NTT(s1_b) + s2_b and split it into one
	// additive piece per holder, retaining our own.
	out := &Phase3Output{Private: make(map[uint8][]*MaskPiece)}
	for _, b := range d.heldBitmasks(d.id) {
		if d.generator[b] != d.id {
			continue
		}
		share := st3.shares[b]
		contrib := dilithium.NewVec(mode.K)
		st3.a.MulVecHat(contrib, share.S1Hat)
		contrib.InvNTT()
		contrib.Add(contrib, share.S2)

		holders := holdersOf(b, params.N)
		rest := contrib
		for _, holder := range holders {
			if holder == d.id {
				continue
			}
			piece := dilithium.NewVec(mode.K)
			var seed [32]byte
			if _, err := io.ReadFull(rand, seed[:]); err != nil {
				return nil, nil, err
			}
			for j := 0; j < mode.K; j++ {
				dilithium.PolyDeriveUniform(&piece[j], &seed, byte(j), 0xff)
			}
			rest.Sub(rest, piece)

			packed := make([]byte, mode.K*dilithium.PolyQSize)
			packVecs([]dilithium.Vec{piece}, packed)
			out.Private[holder] = append(out.Private[holder], &MaskPiece{
				From:    d.id,
				To:      holder,
				Bitmask: b,
				Piece:   packed,
			})
		}
		st3.ownPieces = append(st3.ownPieces, rest)
	}

	return out, st3, nil
}

// Phase4Broadcast carries a party's aggregated mask polynomial vector.
type Phase4Broadcast struct {
	Party uint8
	R     []byte // K polynomials at 23-bit packing
}

// Phase4 sums the received mask pieces with the retained ones into the
// aggregate R_j this party broadcasts.
func (d *DKG) Phase4(received []*MaskPiece, st3 *Phase3State) (*Phase4Broadcast, error) {
	st3.guard()
	params := d.params
	mode := params.mode

	// One piece is expected for every held bitmask generated by a peer.
	expected := make(map[uint8]bool)
	for _, b := range d.heldBitmasks(d.id) {
		if d.generator[b] != d.id {
			expected[b] = true
		}
	}

	r := dilithium.NewVec(mode.K)
	for _, p := range received {
		if p.To != d.id {
			return nil, errors.Errorf("thmldsa: mask piece from party %d addressed to party %d", p.From, p.To)
		}
		if !expected[p.Bitmask] {
			return nil, errors.Errorf("thmldsa: unexpected mask piece for bitmask %#x from party %d", p.Bitmask, p.From)
		}
		if d.generator[p.Bitmask] != p.From {
			return nil, errors.Errorf("thmldsa: party %d is not the generator of bitmask %#x", p.From, p.Bitmask)
		}
		vs, err := unpackVecs(p.Piece, 1, mode.K)
		if err != nil {
			return nil, errors.Wrapf(err, "thmldsa: mask piece from party %d", p.From)
		}
		r.Add(r, vs[0])
		delete(expected, p.Bitmask)
	}
	for b := range expected {
		return nil, errors.Errorf("thmldsa: missing mask piece for bitmask %#x", b)
	}
	for _, own := range st3.ownPieces {
		r.Add(r, own)
	}

	packed := make([]byte, mode.K*dilithium.PolyQSize)
	packVecs([]dilithium.Vec{r}, packed)
	return &Phase4Broadcast{Party: d.id, R: packed}, nil
}

// Finalize computes t = Σ_j R_j, derives the public key, and assembles
// this party's key share.  By construction Σ_j R_j = A·s₁ + s₂ for the
// summed bitmask secrets.
func (d *DKG) Finalize(bcasts4 []*Phase4Broadcast, st3 *Phase3State) (*PublicKey, *KeyShare, error) {
	st3.guard()
	params := d.params
	mode := params.mode

	if len(bcasts4) != int(params.N) {
		return nil, nil, errors.Errorf("thmldsa: got %d phase 4 broadcasts, need %d", len(bcasts4), params.N)
	}
	seen := make(map[uint8]bool)
	t := dilithium.NewVec(mode.K)
	for _, bc := range bcasts4 {
		if bc.Party >= params.N || seen[bc.Party] {
			return nil, nil, errors.Errorf("thmldsa: invalid phase 4 broadcast from party %d", bc.Party)
		}
		seen[bc.Party] = true
		vs, err := unpackVecs(bc.R, 1, mode.K)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "thmldsa: phase 4 broadcast of party %d", bc.Party)
		}
		t.Add(t, vs[0])
	}

	pk := &dilithium.PublicKey{Mode: mode, T1: dilithium.NewVec(mode.K), A: st3.a, Rho: st3.rho}
	t0 := dilithium.NewVec(mode.K)
	t.Power2Round(t0, pk.T1)
	packed := pk.Pack()
	h := sha3.NewShake256()
	_, _ = h.Write(packed)
	_, _ = h.Read(pk.Tr[:])
	t0.Zero()

	ks := &KeyShare{
		ID:     d.id,
		Rho:    st3.rho,
		Key:    st3.key,
		Tr:     pk.Tr,
		Shares: st3.shares,
		params: params,
		a:      st3.a,
	}
	return (*PublicKey)(pk), ks, nil
}

func indexPhase1(bcasts []*Phase1Broadcast, n uint8) ([]*Phase1Broadcast, error) {
	if len(bcasts) != int(n) {
		return nil, errors.Errorf("thmldsa: got %d phase 1 broadcasts, need %d", len(bcasts), n)
	}
	out := make([]*Phase1Broadcast, n)
	for _, bc := range bcasts {
		if bc.Party >= n || out[bc.Party] != nil {
			return nil, errors.Errorf("thmldsa: invalid phase 1 broadcast from party %d", bc.Party)
		}
		out[bc.Party] = bc
	}
	return out, nil
}

func indexPhase2(bcasts []*Phase2Broadcast, n uint8) ([]*Phase2Broadcast, error) {
	if len(bcasts) != int(n) {
		return nil, errors.Errorf("thmldsa: got %d phase 2 broadcasts, need %d", len(bcasts), n)
	}
	out := make([]*Phase2Broadcast, n)
	for _, bc := range bcasts {
		if bc.Party >= n || out[bc.Party] != nil {
			return nil, errors.Errorf("thmldsa: invalid phase 2 broadcast from party %d", bc.Party)
		}
		out[bc.Party] = bc
	}
	return out, nil
}

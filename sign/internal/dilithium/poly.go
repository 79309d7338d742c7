package dilithium

// Poly is a polynomial of R_q = ℤ_q[x]/(x²⁵⁶+1) with coefficients in
// normal form [0, q).  Multiplication requires both operands in the NTT
// domain.
type Poly [N]uint32

// Add sets p to a + b.
func (p *Poly) Add(a, b *Poly) {
	for i := range p {
		p[i] = fieldAdd(a[i], b[i])
	}
}

// Sub sets p to a - b.
func (p *Poly) Sub(a, b *Poly) {
	for i := range p {
		p[i] = fieldSub(a[i], b[i])
	}
}

// MulHat sets p to the pointwise product of the NTT-domain polynomials a
// and b.  The result carries a factor R⁻¹ that the next InvNTT cancels.
func (p *Poly) MulHat(a, b *Poly) {
	for i := range p {
		p[i] = montMul(a[i], b[i])
	}
}

// Exceeds returns whether any |smod(p[i])| ≥ bound.
func (p *Poly) Exceeds(bound int32) bool {
	for i := range p {
		if fieldNorm(p[i]) >= uint32(bound) {
			return true
		}
	}
	return false
}

// ShiftL multiplies every coefficient of a by 2^D and stores the result in
// p.  The caller passes a copy when a must be preserved; t₁ coefficients
// are below 2¹⁰, so no reduction is needed before the shift.
func (p *Poly) ShiftL(a *Poly) {
	for i := range p {
		p[i] = reduceOnce(a[i] << D)
	}
}

// Zero wipes p.
func (p *Poly) Zero() {
	for i := range p {
		p[i] = 0
	}
}

// Vec is a vector of polynomials, sized K or L by the caller's Mode.
type Vec []Poly

// NewVec allocates a zero vector of n polynomials.
func NewVec(n int) Vec {
	return make(Vec, n)
}

// Add sets v to a + b elementwise.
func (v Vec) Add(a, b Vec) {
	for i := range v {
		v[i].Add(&a[i], &b[i])
	}
}

// Sub sets v to a - b elementwise.
func (v Vec) Sub(a, b Vec) {
	for i := range v {
		v[i].Sub(&a[i], &b[i])
	}
}

// NTT transforms every polynomial of v in place.
func (v Vec) NTT() {
	for i := range v {
		v[i].NTT()
	}
}

// InvNTT transforms every polynomial of v back in place.
func (v Vec) InvNTT() {
	for i := range v {
		v[i].InvNTT()
	}
}

// Exceeds returns whether any polynomial of v exceeds bound.
func (v Vec) Exceeds(bound int32) bool {
	for i := range v {
		if v[i].Exceeds(bound) {
			return true
		}
	}
	return false
}

// Zero wipes every polynomial of v.
func (v Vec) Zero() {
	for i := range v {
		v[i].Zero()
	}
}

// Copy returns a deep copy of v.
func (v Vec) Copy() Vec {
	w := make(Vec, len(v))
	copy(w, v)
	return w
}

// Mat is the public matrix A, row-major with K rows of L polynomials, all
// in NTT form.
type Mat struct {
	KDim, LDim int
	Ps         []Poly
}

// NewMat allocates a K×L matrix.
func NewMat(k, l int) *Mat {
	return &Mat{KDim: k, LDim: l, Ps: make([]Poly, k*l)}
}

// At returns the polynomial at row i, column j.
func (m *Mat) At(i, j int) *Poly {
	return &m.Ps[i*m.LDim+j]
}

// Derive samples A from ρ in a K×L grid keyed by (j, i), as ExpandA.
func (m *Mat) Derive(rho *[32]byte) {
	for i := 0; i < m.KDim; i++ {
		for j := 0; j < m.LDim; j++ {
			PolyDeriveUniform(m.At(i, j), rho, byte(j), byte(i))
		}
	}
}

// DotHat sets p to the inner product of row i of m with the NTT-domain
// vector v.
func (m *Mat) DotHat(p *Poly, i int, v Vec) {
	var t Poly
	p.Zero()
	for j := 0; j < m.LDim; j++ {
		t.MulHat(m.At(i, j), &v[j])
		p.Add(p, &t)
	}
}

// MulVecHat computes w = A·v for an NTT-domain v, leaving every row of w
// in the NTT domain with the MulHat factor pending.
func (m *Mat) MulVecHat(w Vec, v Vec) {
	for i := 0; i < m.KDim; i++ {
		m.DotHat(&w[i], i, v)
	}
}

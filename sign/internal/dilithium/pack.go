package dilithium

// Bit-packed polynomial coders.  Every coder maps 256 coefficients to a
// fixed number of bytes at a fixed width d, with a compress transform on
// the way in and a verifying decompress on the way out.

// bitPack writes the d-bit images of p's coefficients as a little-endian
// bit stream into buf.
func bitPack(p *Poly, buf []byte, d uint, compress func(uint32) uint32) {
	var acc uint64
	var bits uint
	off := 0
	for i := 0; i < N; i++ {
		acc |= uint64(compress(p[i])) << bits
		bits += d
		for bits >= 8 {
			buf[off] = byte(acc)
			acc >>= 8
			bits -= 8
			off++
		}
	}
}

// bitUnpack reads 256 d-bit values from buf, passing each through
// decompress.  Returns false as soon as decompress rejects a value.
func bitUnpack(p *Poly, buf []byte, d uint, decompress func(uint32) (uint32, bool)) bool {
	var acc uint64
	var bits uint
	off := 0
	mask := uint32(1)<<d - 1
	for i := 0; i < N; i++ {
		for bits < d {
			acc |= uint64(buf[off]) << bits
			bits += 8
			off++
		}
		c, ok := decompress(uint32(acc) & mask)
		if !ok {
			return false
		}
		p[i] = c
		acc >>= d
		bits -= d
	}
	return true
}

func identity(c uint32) uint32 { return c }

// PackT1 packs unsigned 10-bit t₁ coefficients.
func PackT1(p *Poly, buf []byte) {
	bitPack(p, buf, 10, identity)
}

// UnpackT1 unpacks 10-bit t₁ coefficients.
func UnpackT1(p *Poly, buf []byte) {
	bitUnpack(p, buf, 10, func(c uint32) (uint32, bool) { return c, true })
}

// PackT0 packs t₀ coefficients centered around 2^(D-1) at 13 bits.
func PackT0(p *Poly, buf []byte) {
	const center = 1 << (D - 1)
	bitPack(p, buf, 13, func(c uint32) uint32 { return fieldSub(center, c) })
}

// UnpackT0 unpacks 13-bit t₀ coefficients.
func UnpackT0(p *Poly, buf []byte) {
	const center = 1 << (D - 1)
	bitUnpack(p, buf, 13, func(c uint32) (uint32, bool) { return fieldSub(center, c), true })
}

// PackLeqEta packs coefficients in [-η, η] as η - c at 3 or 4 bits.
func PackLeqEta(p *Poly, buf []byte, eta int) {
	d := uint(3)
	if eta == 4 {
		d = 4
	}
	e := uint32(eta)
	bitPack(p, buf, d, func(c uint32) uint32 { return fieldSub(e, c) })
}

// UnpackLeqEta unpacks η-coded coefficients, rejecting out-of-range images.
func UnpackLeqEta(p *Poly, buf []byte, eta int) bool {
	d := uint(3)
	if eta == 4 {
		d = 4
	}
	e := uint32(eta)
	return bitUnpack(p, buf, d, func(c uint32) (uint32, bool) {
		if c > 2*e {
			return 0, false
		}
		return fieldSub(e, c), true
	})
}

// PackLeGamma1 packs coefficients in (-γ₁, γ₁] as γ₁ - smod(c) at
// γ₁-bits+1 width.
func PackLeGamma1(p *Poly, buf []byte, gamma1Bits uint) {
	g := uint32(1) << gamma1Bits
	bitPack(p, buf, gamma1Bits+1, func(c uint32) uint32 { return fieldSub(g, c) })
}

// UnpackLeGamma1 unpacks γ₁-coded coefficients into normal form.
func UnpackLeGamma1(p *Poly, buf []byte, gamma1Bits uint) {
	unpackLeGamma1(p, buf, gamma1Bits)
}

func unpackLeGamma1(p *Poly, buf []byte, gamma1Bits uint) {
	g := uint32(1) << gamma1Bits
	bitUnpack(p, buf, gamma1Bits+1, func(c uint32) (uint32, bool) { return fieldSub(g, c), true })
}

// PackW1 packs unsigned HighBits coefficients at 6 (γ₂=(q-1)/88) or 4
// bits.
func PackW1(p *Poly, buf []byte, w1Bits uint) {
	bitPack(p, buf, w1Bits, identity)
}

// PackPolyQ packs full-width coefficients at 23 bits, the threshold
// commitment encoding.
func PackPolyQ(p *Poly, buf []byte) {
	bitPack(p, buf, QBits, identity)
}

// UnpackPolyQ unpacks 23-bit coefficients, rejecting any value ≥ q.
func UnpackPolyQ(p *Poly, buf []byte) bool {
	return bitUnpack(p, buf, QBits, func(c uint32) (uint32, bool) {
		if c >= Q {
			return 0, false
		}
		return c, true
	})
}

// PackHint packs the K hint polynomials into ω+K bytes: ascending indices
// of the 1-coefficients per row, then the running cursor per row.
func PackHint(h Vec, buf []byte, omega int) {
	k := len(h)
	for i := range buf[:omega+k] {
		buf[i] = 0
	}
	off := 0
	for i := 0; i < k; i++ {
		for j := 0; j < N; j++ {
			if h[i][j] != 0 {
				buf[off] = byte(j)
				off++
			}
		}
		buf[omega+i] = byte(off)
	}
}

// UnpackHint decodes the hint, rejecting decreasing cursors,
// non-increasing indices within a row, and nonzero bytes after the last
// cursor.
func UnpackHint(h Vec, buf []byte, omega int) bool {
	k := len(h)
	h.Zero()
	off := 0
	for i := 0; i < k; i++ {
		limit := int(buf[omega+i])
		if limit < off || limit > omega {
			return false
		}
		start := off
		for ; off < limit; off++ {
			pos := buf[off]
			if off > start && buf[off-1] >= pos {
				return false
			}
			h[i][pos] = 1
		}
	}
	for ; off < omega; off++ {
		if buf[off] != 0 {
			return false
		}
	}
	return true
}

// VecPack packs every polynomial of v with the given per-poly packer and
// stride.
func VecPack(v Vec, buf []byte, size int, pack func(*Poly, []byte)) {
	for i := range v {
		pack(&v[i], buf[i*size:])
	}
}

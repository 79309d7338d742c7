package dilithium

import "testing"

func TestPackT1RoundTrip(t *testing.T) {
	var p, p2 Poly
	for i := range p {
		p[i] = uint32(i*37) % 1024
	}
	var buf [PolyT1Size]byte
	PackT1(&p, buf[:])
	UnpackT1(&p2, buf[:])
	if p != p2 {
		t.Fatal()
	}
}

func TestPackT0RoundTrip(t *testing.T) {
	const half = 1 << (D - 1)
	var p, p2 Poly
	for i := range p {
		c := int32(i) - 100 // covers negatives
		if c < -half+1 {
			c = -half + 1
		}
		if c < 0 {
			c += Q
		}
		p[i] = uint32(c)
	}
	var buf [PolyT0Size]byte
	PackT0(&p, buf[:])
	UnpackT0(&p2, buf[:])
	if p != p2 {
		t.Fatal()
	}
}

func TestPackLeqEtaRoundTrip(t *testing.T) {
	for _, eta := range []int{2, 4} {
		var p, p2 Poly
		for i := range p {
			c := int32(i%(2*eta+1)) - int32(eta)
			if c < 0 {
				c += Q
			}
			p[i] = uint32(c)
		}
		size := (N * 3) / 8
		if eta == 4 {
			size = (N * 4) / 8
		}
		buf := make([]byte, size)
		PackLeqEta(&p, buf, eta)
		if !UnpackLeqEta(&p2, buf, eta) {
			t.Fatalf("eta=%d: unpack rejected valid encoding", eta)
		}
		if p != p2 {
			t.Fatalf("eta=%d: roundtrip mismatch", eta)
		}
	}
}

func TestUnpackLeqEtaRejects(t *testing.T) {
	buf := make([]byte, (N*3)/8)
	for i := range buf {
		buf[i] = 0xff // images ≥ 2η+1
	}
	var p Poly
	if UnpackLeqEta(&p, buf, 2) {
		t.Fatal("out-of-range eta encoding accepted")
	}
}

func TestPackLeGamma1RoundTrip(t *testing.T) {
	for _, bits := range []uint{17, 19} {
		gamma1 := int32(1) << bits
		var p, p2 Poly
		for i := range p {
			c := int32(i*1001)%(2*gamma1) - gamma1 + 1
			if c < 0 {
				c += Q
			}
			p[i] = uint32(c)
		}
		buf := make([]byte, (N*int(bits+1))/8)
		PackLeGamma1(&p, buf, bits)
		UnpackLeGamma1(&p2, buf, bits)
		if p != p2 {
			t.Fatalf("gamma1Bits=%d: roundtrip mismatch", bits)
		}
	}
}

func TestPackPolyQRoundTrip(t *testing.T) {
	var p, p2 Poly
	for i := range p {
		p[i] = uint32(i*32749) % Q
	}
	var buf [PolyQSize]byte
	PackPolyQ(&p, buf[:])
	if !UnpackPolyQ(&p2, buf[:]) {
		t.Fatal("unpack rejected valid encoding")
	}
	if p != p2 {
		t.Fatal()
	}
}

func TestUnpackPolyQRejectsLarge(t *testing.T) {
	var p Poly
	var buf [PolyQSize]byte
	for i := range buf {
		buf[i] = 0xff // every coefficient reads as 2²³-1 ≥ q
	}
	if UnpackPolyQ(&p, buf[:]) {
		t.Fatal("coefficient ≥ q accepted")
	}
}

func TestHintRoundTrip(t *testing.T) {
	const k, omega = 4, 80
	h := NewVec(k)
	h[0][3] = 1
	h[0][250] = 1
	h[2][0] = 1
	h[3][255] = 1
	buf := make([]byte, omega+k)
	PackHint(h, buf, omega)
	h2 := NewVec(k)
	if !UnpackHint(h2, buf, omega) {
		t.Fatal("unpack rejected valid hint")
	}
	for i := range h {
		if h[i] != h2[i] {
			t.Fatal("hint roundtrip mismatch")
		}
	}
}

func TestHintRejectsMalformed(t *testing.T) {
	const k, omega = 4, 80
	h := NewVec(k)
	h[0][3] = 1
	h[1][7] = 1
	buf := make([]byte, omega+k)
	PackHint(h, buf, omega)

	h2 := NewVec(k)

	// Decreasing cursor.
	bad := append([]byte(nil), buf...)
	bad[omega+2] = bad[omega+1] - 1
	if UnpackHint(h2, bad, omega) {
		t.Fatal("decreasing cursor accepted")
	}

	// Non-increasing index within a row.
	h3 := NewVec(k)
	h3[0][5] = 1
	h3[0][9] = 1
	bad = make([]byte, omega+k)
	PackHint(h3, bad, omega)
	bad[0], bad[1] = bad[1], bad[0]
	if UnpackHint(h2, bad, omega) {
		t.Fatal("non-increasing indices accepted")
	}

	// Nonzero byte after the last cursor.
	bad = append([]byte(nil), buf...)
	bad[omega-1] = 17
	if UnpackHint(h2, bad, omega) {
		t.Fatal("nonzero trailing byte accepted")
	}

	// Cursor beyond omega.
	bad = append([]byte(nil), buf...)
	bad[omega+k-1] = omega + 1
	if UnpackHint(h2, bad, omega) {
		t.Fatal("cursor beyond omega accepted")
	}
}

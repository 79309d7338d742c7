package thmldsa

import (
	"github.com/pkg/errors"

	"github.com/btc-vision/noble-post-quantum/sign/internal/dilithium"
)

// Threshold commitments and responses travel at full coefficient width:
// 23 bits per coefficient, little-endian bit stream, 736 bytes per
// polynomial, no padding between polynomials or iterations.

// packVecs packs the K_iter vectors of vs back to back into buf.
func packVecs(vs []dilithium.Vec, buf []byte) {
	off := 0
	for i := range vs {
		for j := range vs[i] {
			dilithium.PackPolyQ(&vs[i][j], buf[off:])
			off += dilithium.PolyQSize
		}
	}
}

// unpackVecs decodes K_iter vectors of width polys each, rejecting any
// coefficient ≥ q.
func unpackVecs(buf []byte, kIter, width int) ([]dilithium.Vec, error) {
	if len(buf) != kIter*width*dilithium.PolyQSize {
		return nil, errors.Errorf("thmldsa: packed vector must be %d bytes, got %d",
			kIter*width*dilithium.PolyQSize, len(buf))
	}
	vs := make([]dilithium.Vec, kIter)
	off := 0
	for i := range vs {
		vs[i] = dilithium.NewVec(width)
		for j := 0; j < width; j++ {
			if !dilithium.UnpackPolyQ(&vs[i][j], buf[off:]) {
				return nil, errors.New("thmldsa: coefficient out of range in packed vector")
			}
			off += dilithium.PolyQSize
		}
	}
	return vs, nil
}

// aggregateVecs adds src into dst elementwise mod q.
func aggregateVecs(dst, src []dilithium.Vec) {
	for i := range dst {
		dst[i].Add(dst[i], src[i])
	}
}

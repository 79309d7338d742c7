package dilithium

import (
	"errors"
	"io"
)

// ErrContextTooLong is returned when a context string exceeds 255 bytes.
var ErrContextTooLong = errors.New("dilithium: context string too long")

// Framed returns a writer callback emitting the FIPS 204 pure-signing
// frame: 0x00 ‖ len(ctx) ‖ ctx ‖ msg.  The caller must have checked
// len(ctx) ≤ 255.
func Framed(msg, ctx []byte) func(io.Writer) {
	return func(w io.Writer) {
		_, _ = w.Write([]byte{0, byte(len(ctx))})
		if len(ctx) > 0 {
			_, _ = w.Write(ctx)
		}
		_, _ = w.Write(msg)
	}
}

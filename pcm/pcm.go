// Package pcm packs float64 synthesis output into little-endian 16-bit PCM
// bytes (spec.md §4.H).
package pcm

import "github.com/alters-mit/clatter"

// PackInt16LE converts samples (expected in [-1, 1]) to little-endian int16
// bytes, saturating at the i16 limits. out is grown in place if undersized
// and returned truncated to exactly 2*len(samples) bytes. No dithering.
func PackInt16LE(samples []float64, out *[]byte) []byte {
	n := len(samples) * 2
	if cap(*out) < n {
		*out = make([]byte, n)
	}
	b := (*out)[:n]
	for i, s := range samples {
		v := s * clatter.Int16FullScale
		var clamped int16
		switch {
		case v >= clatter.Int16FullScale:
			clamped = clatter.Int16FullScale
		case v <= -clatter.Int16FullScale-1:
			clamped = -clatter.Int16FullScale - 1
		default:
			clamped = int16(v)
		}
		b[i*2] = byte(uint16(clamped))
		b[i*2+1] = byte(uint16(clamped) >> 8)
	}
	*out = b
	return b
}

// UnpackInt16LE is PackInt16LE's inverse, used by round-trip tests and hosts
// that need to verify saturation behavior.
func UnpackInt16LE(b []byte) []float64 {
	n := len(b) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v := int16(uint16(b[i*2]) | uint16(b[i*2+1])<<8)
		out[i] = float64(v) / clatter.Int16FullScale
	}
	return out
}

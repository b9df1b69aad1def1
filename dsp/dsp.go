// Package dsp implements the numeric kernels shared by the modal synthesizer,
// the impact generator, and the scrape generator: linspace, bounded discrete
// convolution, amortized piecewise-linear interpolation, a streaming median
// filter, and a Gaussian sampler.
//
// None of these allocate on the steady-state path unless the caller-supplied
// output buffer is undersized, in which case it is grown in place (typically
// by doubling).
package dsp

import "math"

// Linspace writes steps evenly spaced values into *out, growing *out in
// place if it is undersized. out[0] == a and out[steps-1] == b. Fails only
// when steps < 2.
func Linspace(a, b float64, steps int, out *[]float64) bool {
	if steps < 2 {
		return false
	}
	ensureLen(out, steps)
	o := *out
	step := (b - a) / float64(steps-1)
	for i := 0; i < steps; i++ {
		o[i] = a + step*float64(i)
	}
	o[steps-1] = b
	return true
}

// Convolve computes, for each i in [0, outLen), out[i] = sum_j signal[i-j] *
// kernel[j] over the valid index range where both indices are in bounds.
// out is grown in place if undersized; values at indices >= outLen are left
// undefined. There is no circular wrap-around: this is the direct-sum
// convolution, bounded to an arbitrary caller-chosen length rather than the
// natural len(signal)+len(kernel)-1.
func Convolve(signal []float64, kernel []float64, outLen int, out *[]float64) {
	ensureLen(out, outLen)
	o := *out
	for i := 0; i < outLen; i++ {
		var sum float64
		// j ranges so that both i-j in [0,len(signal)) and j in [0,len(kernel)).
		jLo := i - len(signal) + 1
		if jLo < 0 {
			jLo = 0
		}
		jHi := i
		if jHi > len(kernel)-1 {
			jHi = len(kernel) - 1
		}
		for j := jLo; j <= jHi; j++ {
			sum += signal[i-j] * kernel[j]
		}
		o[i] = sum
	}
}

// Interpolate1D performs a piecewise-linear lookup of x in the table
// (xs, ys[yOffset:]), with startIdx as a mutable hint that advances with
// monotonically increasing query values (amortized O(1) per call for a
// monotonic query sequence). end bounds the valid index range to
// [0, end). If x precedes xs[0], lower is returned. If x is at or beyond
// the last point of [*startIdx, end), upper is returned and *startIdx
// resets to 0.
func Interpolate1D(x float64, xs []float64, ys []float64, lower float64, upper float64, yOffset int, startIdx *int, end int) float64 {
	if len(xs) == 0 || end <= 0 {
		return lower
	}
	if x < xs[0] {
		return lower
	}
	i := *startIdx
	if i < 0 {
		i = 0
	}
	last := end - 1
	if last > len(xs)-1 {
		last = len(xs) - 1
	}
	for i < last && xs[i+1] <= x {
		i++
	}
	if i >= last {
		*startIdx = 0
		return upper
	}
	*startIdx = i
	x0, x1 := xs[i], xs[i+1]
	y0, y1 := ys[i+yOffset], ys[i+1+yOffset]
	if x1 == x0 {
		return y0
	}
	t := (x - x0) / (x1 - x0)
	return y0 + t*(y1-y0)
}

// MedianFilter is a streaming median filter over a fixed window of the last
// W samples. Until the window fills, the median is taken over the partial
// prefix seen so far.
type MedianFilter struct {
	window  []float64
	scratch []float64
	pos     int
	filled  bool
}

// NewMedianFilter creates a median filter of window size w (w >= 1).
func NewMedianFilter(w int) *MedianFilter {
	if w < 1 {
		w = 1
	}
	return &MedianFilter{
		window:  make([]float64, w),
		scratch: make([]float64, w),
	}
}

// Push inserts a new sample and returns the current median. The median is
// computed from a copy of the window contents (the scratch buffer), never
// from the circular buffer directly, so an in-place selection cannot
// corrupt samples future calls still need (see spec's median-filter hazard
// note).
func (m *MedianFilter) Push(v float64) float64 {
	m.window[m.pos] = v
	m.pos++
	n := len(m.window)
	if m.pos >= n {
		m.pos = 0
		m.filled = true
	}

	count := n
	if !m.filled {
		count = m.pos
	}
	if count == 0 {
		return v
	}
	copy(m.scratch[:count], m.window[:count])
	return median(m.scratch[:count])
}

// Reset clears filter state.
func (m *MedianFilter) Reset() {
	for i := range m.window {
		m.window[i] = 0
	}
	m.pos = 0
	m.filled = false
}

func median(s []float64) float64 {
	// Window sizes in this pipeline are tiny (W=5): insertion sort on the
	// scratch copy is simpler than a partial-selection algorithm and at
	// least as fast at this size.
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return 0.5 * (s[n/2-1] + s[n/2])
}

// UniformSource is the minimal RNG surface Gaussian needs, satisfied by
// *math/rand.Rand.
type UniformSource interface {
	Float64() float64
}

// GaussianCache is the per-stream state normal_sample needs across calls
// (the Marsaglia polar method's cached second draw). Callers own one
// instance per independent random stream (e.g. one per AudioEvent RNG) —
// it must never be shared across concurrently-running goroutines.
type GaussianCache struct {
	has   bool
	value float64
}

// Gaussian draws one N(mean, std) sample using the Marsaglia/Box-Muller
// polar method, caching the spare draw in cache for the next call on the
// same stream.
func Gaussian(mean, std float64, rng UniformSource, cache *GaussianCache) float64 {
	if cache.has {
		cache.has = false
		return mean + std*cache.value
	}
	var x1, x2, w float64
	for {
		x1 = 2*rng.Float64() - 1
		x2 = 2*rng.Float64() - 1
		w = x1*x1 + x2*x2
		if w < 1 && w > 0 {
			break
		}
	}
	mul := math.Sqrt(-2 * math.Log(w) / w)
	cache.value = x2 * mul
	cache.has = true
	return mean + std*x1*mul
}

func ensureLen(out *[]float64, n int) {
	if cap(*out) >= n {
		*out = (*out)[:n]
		return
	}
	newCap := cap(*out) * 2
	if newCap < n {
		newCap = n
	}
	grown := make([]float64, n, newCap)
	copy(grown, *out)
	*out = grown
}

// Package modal draws a fixed-size bank of damped sinusoidal modes from a
// material's modal parameter arrays and synthesizes their closed-form
// impulse response. See spec.md §4.C.
package modal

import (
	"fmt"
	"math"

	approx "github.com/cwbudde/algo-approx"

	"github.com/alters-mit/clatter/dsp"
	"github.com/alters-mit/clatter/material"
)

// NumModes is the fixed number of modes drawn per AudioEvent (spec.md §3).
const NumModes = 10

const (
	minFrequencyHz  = 20.0
	minDecaySeconds = 0.001
	framerate       = 44100.0
)

// Modes is one draw of NumModes damped-sinusoid parameters from a material's
// modal arrays, plus the reusable scratch buffer Sum writes its synthesized
// waveform into.
type Modes struct {
	Frequencies  [NumModes]float64 // Hz
	Powers       [NumModes]float64 // dB onset power
	DecayTimesMS [NumModes]float64 // milliseconds

	gaussCache dsp.GaussianCache
	modeBuf    []float64
}

// NewModes resamples NumModes (frequency, power, decay) triples from data's
// center-frequency, onset-power, and RT60 arrays, each perturbed by Gaussian
// noise and resampled until it clears a physical floor (spec.md §4.C):
// frequency must be >= 20 Hz, decay time >= 1ms. The arrays in data must each
// have length >= NumModes; mode m is drawn from index m.
func NewModes(data *material.ImpactData, rng dsp.UniformSource) (*Modes, error) {
	if data == nil {
		return nil, fmt.Errorf("modal: nil impact data")
	}
	if len(data.CF) < NumModes || len(data.OP) < NumModes || len(data.RT) < NumModes {
		return nil, fmt.Errorf("modal: impact data needs >= %d modes, got cf=%d op=%d rt=%d", NumModes, len(data.CF), len(data.OP), len(data.RT))
	}

	m := &Modes{}
	for i := 0; i < NumModes; i++ {
		cf := data.CF[i]
		for {
			f := cf + dsp.Gaussian(0, cf/10, rng, &m.gaussCache)
			if f >= minFrequencyHz {
				m.Frequencies[i] = f
				break
			}
		}
		m.Powers[i] = data.OP[i] + dsp.Gaussian(0, 10, rng, &m.gaussCache)

		rt := data.RT[i]
		for {
			t := rt + dsp.Gaussian(0, rt/10, rng, &m.gaussCache)
			if t >= minDecaySeconds {
				m.DecayTimesMS[i] = t * 1000
				break
			}
		}
	}
	return m, nil
}

// AdjustPowers perturbs every mode's power by N(0, 2) dB, in place, without
// re-drawing frequency or decay. event.Base.AdjustModes calls it on every
// call after the first, so successive impact hits differ; a scrape computes
// its impulse response once and so never reaches it.
func (m *Modes) AdjustPowers(rng dsp.UniformSource) {
	for i := range m.Powers {
		m.Powers[i] += dsp.Gaussian(0, 2, rng, &m.gaussCache)
	}
}

// Sum synthesizes the additive combination of all NumModes damped sinusoids
// into *out (grown in place as needed) and returns the number of samples
// written. resonance in [0,1] scales the decay time: resonance == 0 turns
// the decay envelope off (each mode keeps its onset amplitude for its whole
// length), resonance == 1 uses the drawn decay time unscaled.
//
// Each mode m contributes
//
//	n_m  = ceil(decay_ms[m] * (80+power[m]) / 60 / 1000 * framerate)
//	x[j] = cos(2*pi*f[m]*j/framerate) * 10^(power[m]/20) *
//	       10^(-60*j/(framerate*decay_ms[m]*resonance/1000) / 20)
//
// for j in [0, n_m), additively combined across modes with zero-padding for
// the shorter ones (spec.md §4.C).
func (m *Modes) Sum(resonance float64, out *[]float64) int {
	total := 0
	first := true
	for i := 0; i < NumModes; i++ {
		n := modeLength(m.DecayTimesMS[i], m.Powers[i])
		if n <= 0 {
			continue
		}
		ensureModeBuf(&m.modeBuf, n)
		synthesizeMode(m.modeBuf[:n], m.Frequencies[i], m.Powers[i], m.DecayTimesMS[i], resonance)
		if first {
			ensureModeBuf(out, n)
			copy((*out)[:n], m.modeBuf[:n])
			total = n
			first = false
			continue
		}
		total = Add(*out, total, m.modeBuf[:n], n, out)
	}
	if first {
		ensureModeBuf(out, 0)
		return 0
	}
	return total
}

// modeLength computes the number of samples a mode's envelope stays above
// the implicit -80dB noise floor before truncation (spec.md §4.C).
func modeLength(decayMS float64, powerDB float64) int {
	n := math.Ceil(decayMS * (80 + powerDB) / 60 / 1000 * framerate)
	if n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return int(n)
}

func synthesizeMode(out []float64, freqHz, powerDB, decayMS, resonance float64) {
	amp := dbToLinear(powerDB)
	omega := 2 * math.Pi * freqHz / framerate
	// decayPerSample converts RT60 (time to -60dB) into a per-sample dB
	// decrement, scaled by resonance.
	decaySamples := framerate * decayMS * resonance / 1000
	for j := range out {
		env := float64(1)
		if decaySamples > 0 {
			env = dbToLinear(-60 * float64(j) / decaySamples)
		}
		out[j] = math.Cos(omega*float64(j)) * amp * env
	}
}

// dbToLinear converts a dB magnitude to a linear amplitude using the
// teacher's fast exponential approximation rather than math.Pow, matching
// the hot-path convention established for exponential/decay terms.
func dbToLinear(db float64) float64 {
	const ln10Over20 = 0.115129254649702 // ln(10)/20
	return float64(approx.FastExp(float32(db) * float32(ln10Over20)))
}

// Add additively combines a (length aLen) and b (length bLen) into *out
// (grown in place as needed), zero-padding whichever is shorter. Returns
// max(aLen, bLen). a and *out may be the same slice (in-place accumulation).
func Add(a []float64, aLen int, b []float64, bLen int, out *[]float64) int {
	n := aLen
	if bLen > n {
		n = bLen
	}
	aliased := sameSlice(a, *out)
	ensureModeBuf(out, n)
	o := *out
	if !aliased {
		copy(o[:aLen], a[:aLen])
	}
	for i := aLen; i < n; i++ {
		o[i] = 0
	}
	for i := 0; i < bLen; i++ {
		o[i] += b[i]
	}
	return n
}

func sameSlice(a, b []float64) bool {
	return len(a) > 0 && len(b) > 0 && &a[0] == &b[0]
}

func ensureModeBuf(buf *[]float64, n int) {
	if cap(*buf) >= n {
		*buf = (*buf)[:n]
		return
	}
	newCap := cap(*buf) * 2
	if newCap < n {
		newCap = n
	}
	grown := make([]float64, n, newCap)
	copy(grown, *buf)
	*buf = grown
}

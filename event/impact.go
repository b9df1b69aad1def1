package event

import (
	"math"
	"time"

	"github.com/alters-mit/clatter"
	"github.com/alters-mit/clatter/dsp"
)

const maxClampedContactSeconds = 2e-3

// Impact is a one-shot transient hit generator: impulse response convolved
// with a half-sine contact force, rate-gated and normalized (spec.md §4.E).
type Impact struct {
	*Base

	lastHit time.Time

	ir     []float64
	domain []float64
	force  []float64
}

// NewImpact wraps base as an impact generator.
func NewImpact(base *Base) *Impact {
	return &Impact{Base: base}
}

// GetAudio attempts one impact synthesis at the given relative speed. It
// returns false (with no audio emitted) when rate-gated, when the impulse
// response is empty, or after the event has transitioned to end; the
// hot path never allocates on a rejection and never panics (spec.md §7).
func (im *Impact) GetAudio(speed float64) bool {
	if im.State == StateEnd {
		return false
	}

	if im.CollisionCount > 0 {
		dt := time.Since(im.lastHit).Seconds()
		if dt < im.Config.MinTimeBetweenImpacts {
			return false
		}
		if dt > im.Config.MaxTimeBetweenImpacts {
			im.State = StateEnd
			return false
		}
	}

	amp := im.AdjustModes(speed)
	irLen := im.ImpulseResponse(amp, &im.ir)
	if irLen == 0 {
		return false
	}

	mass := im.Primary.Mass
	if im.Secondary.Mass < mass {
		mass = im.Secondary.Mass
	}
	tau := 0.001 * mass
	if im.Config.ClampContactTime && tau > maxClampedContactSeconds {
		tau = maxClampedContactSeconds
	}
	steps := int(math.Ceil(tau * clatter.SampleRate))
	if steps < 2 {
		steps = 2
	}
	dsp.Linspace(0, math.Pi, steps, &im.domain)
	if cap(im.force) < steps {
		im.force = make([]float64, steps)
	}
	im.force = im.force[:steps]
	for i, x := range im.domain[:steps] {
		im.force[i] = math.Sin(x)
	}

	if im.Config.PreventDistortion && amp > 0.99 {
		amp = 0.99
	}

	dsp.Convolve(im.ir[:irLen], im.force, irLen, &im.Samples)
	normalizeTwoPass(im.Samples[:irLen], amp)

	im.lastHit = time.Now()
	im.recordSuccess(irLen)
	return true
}

// normalizeTwoPass applies spec.md §9's pinned two-pass normalization: first
// divide by the signed maximum (flipping sign if it is negative), then
// rescale by the resulting absolute maximum so the peak equals amp.
func normalizeTwoPass(samples []float64, amp float64) {
	if len(samples) == 0 {
		return
	}
	signedMax := samples[0]
	for _, s := range samples[1:] {
		if s > signedMax {
			signedMax = s
		}
	}
	if signedMax == 0 {
		return
	}
	for i := range samples {
		samples[i] /= signedMax
	}

	absMax := math.Abs(samples[0])
	for _, s := range samples[1:] {
		if math.Abs(s) > absMax {
			absMax = math.Abs(s)
		}
	}
	if absMax == 0 {
		return
	}
	for i := range samples {
		samples[i] = amp * samples[i] / absMax
	}
}

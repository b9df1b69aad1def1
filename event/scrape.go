package event

import (
	"fmt"
	"math"

	"github.com/alters-mit/clatter"
	"github.com/alters-mit/clatter/dsp"
	"github.com/alters-mit/clatter/material"
)

// chunkSamples is SCRAPE_SAMPLES_PER_CHUNK from spec.md §4.F, §6.
const chunkSamples = clatter.ScrapeSamplesPerChunk

const medianFilterWidth = 5

// Scrape is a continuous surface-contact generator emitting exactly
// chunkSamples samples per successful call, or nothing (spec.md §4.F).
type Scrape struct {
	*Base

	Data    *material.ScrapeData
	ScrapeID int64

	scrapeIdx int

	ir       []float64
	irLen    int
	irCached bool

	auxLinspace    []float64
	sharedLinspace []float64
	force          []float64

	vFilter *dsp.MedianFilter
}

// NewScrape wraps base as a scrape generator for data, drawing a stable
// scrape_id from base's RNG for downstream routing.
func NewScrape(base *Base, data *material.ScrapeData) (*Scrape, error) {
	if data == nil {
		return nil, fmt.Errorf("event: scrape requires non-nil scrape data")
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	s := &Scrape{
		Base:     base,
		Data:     data,
		ScrapeID: base.RNG().Int63(),
		vFilter:  dsp.NewMedianFilter(medianFilterWidth),
	}
	dsp.Linspace(0, 1, chunkSamples, &s.sharedLinspace)
	return s, nil
}

// GetAudio synthesizes exactly one chunkSamples-length chunk, or returns
// false (and transitions the event to end) when speed falls outside the
// valid surface-derivative range or the cached impulse response is empty
// (spec.md §4.F, §7).
func (sc *Scrape) GetAudio(speed float64) bool {
	if sc.State == StateEnd {
		return false
	}

	v := speed
	if v > sc.Config.ScrapeMaxSpeed {
		v = sc.Config.ScrapeMaxSpeed
	}
	numPts := int(math.Floor(v/10/material.PixelToMeter)) + 1
	if numPts <= 1 || numPts >= len(sc.Data.D2SDX2) {
		sc.State = StateEnd
		return false
	}

	if !sc.irCached {
		amp := sc.AdjustModes(speed)
		irLen := sc.ImpulseResponse(amp, &sc.ir)
		if irLen == 0 {
			sc.State = StateEnd
			return false
		}
		sc.irLen = irLen
		sc.irCached = true
	}

	finalIdx := sc.scrapeIdx + numPts
	dsp.Linspace(0, 1, numPts, &sc.auxLinspace)
	if finalIdx >= len(sc.Data.DSDX) {
		sc.scrapeIdx = 0
		finalIdx = numPts
	}

	ratio := v / sc.Config.ScrapeMaxSpeed
	verticalK := 0.5 * ratio * ratio
	horizontalK := 0.05 * ratio
	curveMass := 10 * sc.Primary.Mass

	if cap(sc.force) < chunkSamples {
		sc.force = make([]float64, chunkSamples)
	}
	sc.force = sc.force[:chunkSamples]

	dsdx := sc.Data.DSDX
	d2sdx2 := sc.Data.D2SDX2
	lowerH, upperH := dsdx[sc.scrapeIdx], dsdx[finalIdx]
	// d2sdx2 is one sample shorter than dsdx; scrape_idx/final_idx can reach
	// len(dsdx)-1 (the last valid dsdx index) without having wrapped, which
	// is one past d2sdx2's last valid index.
	d2StartIdx, d2FinalIdx := sc.scrapeIdx, finalIdx
	if d2StartIdx >= len(d2sdx2) {
		d2StartIdx = len(d2sdx2) - 1
	}
	if d2FinalIdx >= len(d2sdx2) {
		d2FinalIdx = len(d2sdx2) - 1
	}
	lowerV, upperV := d2sdx2[d2StartIdx], d2sdx2[d2FinalIdx]

	hHint, vHint := 0, 0
	for i := 0; i < chunkSamples; i++ {
		x := sc.sharedLinspace[i]
		h := horizontalK * dsp.Interpolate1D(x, sc.auxLinspace[:numPts], dsdx, lowerH, upperH, sc.scrapeIdx, &hHint, numPts)
		raw := dsp.Interpolate1D(x, sc.auxLinspace[:numPts], d2sdx2, lowerV, upperV, sc.scrapeIdx, &vHint, numPts)
		vv := verticalK * sc.vFilter.Push(math.Tanh(raw/curveMass))
		sc.force[i] = h + vv
	}

	dsp.Convolve(sc.ir[:sc.irLen], sc.force, chunkSamples, &sc.Samples)
	for i := 0; i < chunkSamples; i++ {
		sc.Samples[i] *= sc.Data.RoughnessRatio
	}

	sc.scrapeIdx = finalIdx
	sc.recordSuccess(chunkSamples)
	return true
}

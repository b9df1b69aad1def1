package event

import (
	"testing"
	"time"

	"github.com/alters-mit/clatter"
	"github.com/alters-mit/clatter/config"
	"github.com/alters-mit/clatter/material"
)

func testImpactData(base float64) *material.ImpactData {
	cf := make([]float64, 10)
	op := make([]float64, 10)
	rt := make([]float64, 10)
	for i := range cf {
		cf[i] = base + float64(i)*120
		op[i] = 30 - float64(i)
		rt[i] = 0.25
	}
	return &material.ImpactData{CF: cf, OP: op, RT: rt}
}

func testDescriptors(t *testing.T) (*clatter.ObjectDescriptor, *clatter.ObjectDescriptor) {
	t.Helper()
	primary, err := clatter.NewObjectDescriptor(1, material.NewSizedImpactMaterial(material.Metal, 0.2), 0.2, 0.2, 1, nil)
	if err != nil {
		t.Fatalf("primary descriptor: %v", err)
	}
	secondary, err := clatter.NewObjectDescriptor(2, material.NewSizedImpactMaterial(material.Stone, 3.0), 0.5, 0.1, 100, nil)
	if err != nil {
		t.Fatalf("secondary descriptor: %v", err)
	}
	primary.Speed, secondary.Speed = 1, 0
	return primary, secondary
}

func testImpact(t *testing.T) *Impact {
	t.Helper()
	primary, secondary := testDescriptors(t)
	cfg := config.Default()
	base, err := NewBase(primary, secondary, testImpactData(200), testImpactData(600), cfg, 0)
	if err != nil {
		t.Fatalf("NewBase: %v", err)
	}
	return NewImpact(base)
}

func TestImpactFirstHitSucceedsAndClampsAmplitude(t *testing.T) {
	im := testImpact(t)
	if !im.GetAudio(1.0) {
		t.Fatalf("expected first GetAudio call to succeed")
	}
	if im.SampleLen == 0 {
		t.Fatalf("expected non-empty sample buffer")
	}
	var maxAbs float64
	for _, s := range im.Samples[:im.SampleLen] {
		if a := abs(s); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs > 0.99+1e-9 {
		t.Fatalf("expected |sample| <= 0.99 with prevent_distortion, got %v", maxAbs)
	}
	if im.CollisionCount != 1 {
		t.Fatalf("expected collision_count == 1, got %d", im.CollisionCount)
	}
}

func TestImpactRateGateRejectsTooSoon(t *testing.T) {
	im := testImpact(t)
	if !im.GetAudio(1.0) {
		t.Fatalf("expected first hit to succeed")
	}
	im.lastHit = time.Now().Add(-50 * time.Millisecond)
	if im.GetAudio(1.0) {
		t.Fatalf("expected second hit within min_time_between_impacts to be rejected")
	}
	if im.State == StateEnd {
		t.Fatalf("rate-gated rejection must not change state")
	}
}

func TestImpactMaxIntervalTransitionsToEnd(t *testing.T) {
	im := testImpact(t)
	if !im.GetAudio(1.0) {
		t.Fatalf("expected first hit to succeed")
	}
	im.lastHit = time.Now().Add(-4 * time.Second)
	if im.GetAudio(1.0) {
		t.Fatalf("expected hit beyond max_time_between_impacts to be rejected")
	}
	if im.State != StateEnd {
		t.Fatalf("expected state end after exceeding max interval, got %v", im.State)
	}
}

func TestImpactSuccessiveHitsDiffer(t *testing.T) {
	im := testImpact(t)
	if !im.GetAudio(1.0) {
		t.Fatalf("expected first hit to succeed")
	}
	first := append([]float64(nil), im.Samples[:im.SampleLen]...)
	im.lastHit = time.Now().Add(-300 * time.Millisecond)
	if !im.GetAudio(1.0) {
		t.Fatalf("expected second hit within valid interval to succeed")
	}
	second := im.Samples[:im.SampleLen]
	if sliceEqual(first, second) {
		t.Fatalf("expected adjust_powers to perturb successive hits")
	}
}

func sliceEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func testScrapeData(t *testing.T, n int) *material.ScrapeData {
	t.Helper()
	surface := make([]float64, n)
	for i := range surface {
		surface[i] = float64(i%7) - 3
	}
	dsdx, d2sdx2, err := material.DerivativesFromSurface(surface)
	if err != nil {
		t.Fatalf("DerivativesFromSurface: %v", err)
	}
	return &material.ScrapeData{DSDX: dsdx, D2SDX2: d2sdx2, RoughnessRatio: 0.8}
}

func testScrape(t *testing.T) *Scrape {
	t.Helper()
	primary, secondary := testDescriptors(t)
	cfg := config.Default()
	base, err := NewBase(primary, secondary, testImpactData(200), testImpactData(600), cfg, 1)
	if err != nil {
		t.Fatalf("NewBase: %v", err)
	}
	data := testScrapeData(t, 20000)
	sc, err := NewScrape(base, data)
	if err != nil {
		t.Fatalf("NewScrape: %v", err)
	}
	return sc
}

func TestScrapeEmitsFixedChunkLength(t *testing.T) {
	sc := testScrape(t)
	if !sc.GetAudio(0.002) {
		t.Fatalf("expected first scrape chunk to succeed")
	}
	if sc.SampleLen != chunkSamples {
		t.Fatalf("expected chunk length %d, got %d", chunkSamples, sc.SampleLen)
	}
}

func TestScrapeIndexAdvancesMonotonically(t *testing.T) {
	sc := testScrape(t)
	if !sc.GetAudio(0.002) {
		t.Fatalf("expected first chunk to succeed")
	}
	idx1 := sc.scrapeIdx
	if !sc.GetAudio(0.002) {
		t.Fatalf("expected second chunk to succeed")
	}
	idx2 := sc.scrapeIdx
	if idx2 <= idx1 && idx2 != 0 {
		t.Fatalf("expected scrape_idx to advance or wrap, got idx1=%d idx2=%d", idx1, idx2)
	}
}

func TestScrapeCachesImpulseResponseAcrossChunks(t *testing.T) {
	sc := testScrape(t)
	if !sc.GetAudio(0.002) {
		t.Fatalf("expected first chunk to succeed")
	}
	irLenAfterFirst := sc.irLen
	firstIR := append([]float64(nil), sc.ir[:irLenAfterFirst]...)
	if !sc.GetAudio(0.003) {
		t.Fatalf("expected second chunk to succeed")
	}
	if sc.irLen != irLenAfterFirst || !sliceEqual(firstIR, sc.ir[:sc.irLen]) {
		t.Fatalf("expected impulse response to be cached across chunks, not regenerated")
	}
}

func TestScrapeRejectsSpeedOutOfRange(t *testing.T) {
	sc := testScrape(t)
	if sc.GetAudio(0.000001) {
		t.Fatalf("expected near-zero speed to be rejected (num_pts <= 1)")
	}
	if sc.State != StateEnd {
		t.Fatalf("expected state end after out-of-range rejection, got %v", sc.State)
	}
}

package modal

import (
	"math/rand"
	"testing"

	"github.com/alters-mit/clatter/material"
)

func tenModeData() *material.ImpactData {
	cf := make([]float64, NumModes)
	op := make([]float64, NumModes)
	rt := make([]float64, NumModes)
	for i := range cf {
		cf[i] = 200 + float64(i)*150
		op[i] = 40 - float64(i)*2
		rt[i] = 0.3
	}
	return &material.ImpactData{CF: cf, OP: op, RT: rt}
}

func TestNewModesRejectsShortArrays(t *testing.T) {
	data := &material.ImpactData{CF: []float64{100}, OP: []float64{10}, RT: []float64{0.1}}
	if _, err := NewModes(data, rand.New(rand.NewSource(1))); err == nil {
		t.Fatalf("expected error for under-length modal arrays")
	}
}

func TestNewModesDrawsFrequenciesAboveFloor(t *testing.T) {
	data := tenModeData()
	rng := rand.New(rand.NewSource(42))
	m, err := NewModes(data, rng)
	if err != nil {
		t.Fatalf("NewModes: %v", err)
	}
	for i, f := range m.Frequencies {
		if f < minFrequencyHz {
			t.Fatalf("mode %d frequency %v below floor %v", i, f, minFrequencyHz)
		}
	}
	for i, ms := range m.DecayTimesMS {
		if ms < minDecaySeconds*1000 {
			t.Fatalf("mode %d decay %vms below floor", i, ms)
		}
	}
}

func TestModesSumProducesNonEmptySamplesForPositiveResonance(t *testing.T) {
	data := tenModeData()
	rng := rand.New(rand.NewSource(7))
	m, err := NewModes(data, rng)
	if err != nil {
		t.Fatalf("NewModes: %v", err)
	}
	var out []float64
	n := m.Sum(1.0, &out)
	if n <= 0 {
		t.Fatalf("expected positive sample count, got %d", n)
	}
	if len(out) != n {
		t.Fatalf("expected out length %d to match returned count, got %d", n, len(out))
	}
	var anyNonZero bool
	for _, v := range out[:n] {
		if v != 0 {
			anyNonZero = true
			break
		}
	}
	if !anyNonZero {
		t.Fatalf("expected non-trivial synthesized waveform")
	}
}

func TestModesSumIsReusableAcrossResonanceValues(t *testing.T) {
	data := tenModeData()
	rng := rand.New(rand.NewSource(7))
	m, err := NewModes(data, rng)
	if err != nil {
		t.Fatalf("NewModes: %v", err)
	}
	var out []float64
	n1 := m.Sum(1.0, &out)
	high := append([]float64(nil), out[:n1]...)
	n2 := m.Sum(0.25, &out)
	if n1 != n2 {
		t.Fatalf("expected mode length to depend only on decay time/power, not resonance: n1=%d n2=%d", n1, n2)
	}
	low := out[:n2]
	var differs bool
	for i := range high {
		if high[i] != low[i] {
			differs = true
			break
		}
	}
	if !differs {
		t.Fatalf("expected resonance to change the decay envelope within the fixed-length window")
	}
}

func TestAddZeroPadsShorterOperand(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{10, 10}
	var out []float64
	n := Add(a, len(a), b, len(b), &out)
	if n != 3 {
		t.Fatalf("expected combined length 3, got %d", n)
	}
	want := []float64{11, 12, 3}
	for i, w := range want {
		if out[i] != w {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], w)
		}
	}
}

func TestAddInPlaceAccumulation(t *testing.T) {
	buf := []float64{1, 2, 3, 0}
	b := []float64{1, 1, 1, 1}
	n := Add(buf, 3, b, 4, &buf)
	if n != 4 {
		t.Fatalf("expected length 4, got %d", n)
	}
	want := []float64{2, 3, 4, 1}
	for i, w := range want {
		if buf[i] != w {
			t.Fatalf("buf[%d] = %v, want %v", i, buf[i], w)
		}
	}
}

func TestAdjustPowersChangesPowersOnly(t *testing.T) {
	data := tenModeData()
	rng := rand.New(rand.NewSource(3))
	m, err := NewModes(data, rng)
	if err != nil {
		t.Fatalf("NewModes: %v", err)
	}
	freqBefore := m.Frequencies
	m.AdjustPowers(rng)
	if m.Frequencies != freqBefore {
		t.Fatalf("AdjustPowers must not change frequencies")
	}
}

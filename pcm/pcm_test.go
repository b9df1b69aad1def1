package pcm

import "testing"

func TestPackInt16LERoundTripPreservesSignAndMagnitude(t *testing.T) {
	samples := []float64{0, 1, -1, 0.5, -0.5, 0.999}
	var out []byte
	packed := PackInt16LE(samples, &out)
	if len(packed) != len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", len(samples)*2, len(packed))
	}
	back := UnpackInt16LE(packed)
	for i, want := range samples {
		if diff := abs(back[i] - want); diff > 1.0/32767.0+1e-9 {
			t.Fatalf("sample %d: got %v, want %v (diff %v)", i, back[i], want, diff)
		}
	}
}

func TestPackInt16LESaturatesOutOfRangeSamples(t *testing.T) {
	samples := []float64{2.0, -2.0}
	var out []byte
	packed := PackInt16LE(samples, &out)
	back := UnpackInt16LE(packed)
	if back[0] <= 0.99 {
		t.Fatalf("expected positive saturation near full scale, got %v", back[0])
	}
	if back[1] >= -0.99 {
		t.Fatalf("expected negative saturation near full scale, got %v", back[1])
	}
}

func TestPackInt16LEGrowsBufferInPlace(t *testing.T) {
	var out []byte
	PackInt16LE(make([]float64, 4), &out)
	if len(out) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(out))
	}
	PackInt16LE(make([]float64, 2), &out)
	if len(out) != 4 {
		t.Fatalf("expected buffer truncated to 4 bytes, got %d", len(out))
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

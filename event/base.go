// Package event implements the shared AudioEvent state and the impact and
// scrape generators built on top of it (spec.md §3, §4.D, §4.E, §4.F).
//
// Impact and Scrape share state by composition over Base rather than
// inheritance or a dispatch table: both hold a *Base and a tagged identity,
// which is all the hot synthesis path needs (spec.md §9).
package event

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/alters-mit/clatter"
	"github.com/alters-mit/clatter/config"
	"github.com/alters-mit/clatter/material"
	"github.com/alters-mit/clatter/modal"
)

// State is an AudioEvent's lifecycle stage (spec.md §3).
type State int

// AudioEvent states.
const (
	StateStart State = iota
	StateOngoing
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateOngoing:
		return "ongoing"
	case StateEnd:
		return "end"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Base holds the state shared by every AudioEvent: the collision count,
// initial amplitude/speed, both objects' modal banks, the reusable sample
// buffer, lifecycle state, and a private RNG (spec.md §3).
type Base struct {
	Primary   *clatter.ObjectDescriptor
	Secondary *clatter.ObjectDescriptor
	Config    *config.Config

	CollisionCount int
	State          State
	InitialAmp     float64
	InitialSpeed   float64

	// ModesA is drawn from the secondary material, ModesB from the primary
	// material — the source pairs them this way and spec.md §9 preserves it
	// deliberately rather than "correcting" it.
	ModesA *modal.Modes
	ModesB *modal.Modes

	Samples    []float64
	SampleLen  int

	rng *rand.Rand

	irScratchA []float64
	irScratchB []float64
}

// NewBase constructs the shared state for one (primary, secondary) pair.
// primaryImpact/secondaryImpact are the already-loaded modal records for
// each object's sized impact material; seed gives the event its own,
// never-shared RNG stream.
func NewBase(primary, secondary *clatter.ObjectDescriptor, primaryImpact, secondaryImpact *material.ImpactData, cfg *config.Config, seed int64) (*Base, error) {
	if primary == nil || secondary == nil {
		return nil, fmt.Errorf("event: base requires non-nil primary and secondary descriptors")
	}
	if cfg == nil {
		return nil, fmt.Errorf("event: base requires non-nil config")
	}
	rng := rand.New(rand.NewSource(seed))

	modesA, err := modal.NewModes(secondaryImpact, rng)
	if err != nil {
		return nil, fmt.Errorf("event: modes_a (from secondary material): %w", err)
	}
	modesB, err := modal.NewModes(primaryImpact, rng)
	if err != nil {
		return nil, fmt.Errorf("event: modes_b (from primary material): %w", err)
	}

	return &Base{
		Primary:    primary,
		Secondary:  secondary,
		Config:     cfg,
		InitialAmp: primary.Amp * cfg.SimulationAmp,
		ModesA:     modesA,
		ModesB:     modesB,
		rng:        rng,
	}, nil
}

// AdjustModes implements spec.md §4.D: on the first call it applies a
// one-time log-amplitude decay-time shift to modes_b, sets initial_amp and
// initial_speed, and returns initial_amp. Subsequent calls perturb both
// modes' powers and return initial_amp scaled by speed/initial_speed.
func (b *Base) AdjustModes(speed float64) float64 {
	if b.CollisionCount == 0 {
		shiftDB := 20 * math.Log10(b.Secondary.Amp/b.Primary.Amp)
		for i := range b.ModesB.DecayTimesMS {
			b.ModesB.DecayTimesMS[i] += shiftDB
		}
		b.InitialAmp = b.Primary.Amp * b.Config.SimulationAmp
		b.InitialSpeed = speed
		return b.InitialAmp
	}
	b.ModesA.AdjustPowers(b.rng)
	b.ModesB.AdjustPowers(b.rng)
	return b.InitialAmp * speed / b.InitialSpeed
}

// ImpulseResponse writes the additive combination of modes_a.Sum(primary
// resonance) and modes_b.Sum(secondary resonance) into *out and returns the
// combined length. Returns 0 without touching *out if amp <= 0
// (spec.md §4.D).
func (b *Base) ImpulseResponse(amp float64, out *[]float64) int {
	if amp <= 0 {
		return 0
	}
	lenA := b.ModesA.Sum(b.Primary.Resonance, &b.irScratchA)
	lenB := b.ModesB.Sum(b.Secondary.Resonance, &b.irScratchB)
	return modal.Add(b.irScratchA, lenA, b.irScratchB, lenB, out)
}

// recordSuccess advances CollisionCount and the start->ongoing transition
// (spec.md §3: "start -> ongoing on second successful synthesis").
func (b *Base) recordSuccess(sampleLen int) {
	b.CollisionCount++
	b.SampleLen = sampleLen
	if b.State == StateStart && b.CollisionCount >= 2 {
		b.State = StateOngoing
	}
}

// RNG exposes the event's private RNG for generators built on Base.
func (b *Base) RNG() *rand.Rand { return b.rng }

// CurrentState reports the event's lifecycle state for callers (such as the
// multiplexer) that hold only a generator interface over Base.
func (b *Base) CurrentState() State { return b.State }

// SetState lets the multiplexer drive the scrape-specific start->ongoing
// transition, which is ordered by emission rather than by collision count
// (spec.md §4.G step 3, §9).
func (b *Base) SetState(s State) { b.State = s }

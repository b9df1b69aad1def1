// Package clatter synthesizes plausible physically-driven collision audio
// (impacts and continuous scrapes) from object descriptors and per-frame
// collision events. See SPEC_FULL.md for the full component breakdown.
package clatter

import (
	"fmt"

	"github.com/alters-mit/clatter/material"
)

// SampleRate is the engine's fixed PCM sample rate, in Hz (spec.md §6).
const SampleRate = 44100

// ScrapeSamplesPerChunk is the fixed number of samples emitted per scrape
// generator call: 100ms at SampleRate (spec.md §4.F, §6).
const ScrapeSamplesPerChunk = 4410

// Int16FullScale is the i16 full-scale magnitude used by the PCM packer
// (spec.md §6).
const Int16FullScale = 32767

// ObjectDescriptor describes one colliding body.
type ObjectDescriptor struct {
	ID             uint32
	Impact         material.SizedImpactMaterial
	Scrape         *material.ScrapeMaterial // optional
	Amp            float64                  // [0,1]
	Resonance      float64                  // [0,1]
	Mass           float64
	Speed          float64 // updated per tick by the host
	AngularSpeed   float64 // updated per tick by the host
}

// NewObjectDescriptor constructs a descriptor and validates it as a setup
// error surface (spec.md §7): unknown enum values or out-of-range amp/
// resonance are rejected before the descriptor can be used in a collision
// event.
func NewObjectDescriptor(id uint32, impact material.SizedImpactMaterial, amp, resonance, mass float64, scrape *material.ScrapeMaterial) (*ObjectDescriptor, error) {
	d := &ObjectDescriptor{
		ID:        id,
		Impact:    impact,
		Scrape:    scrape,
		Amp:       amp,
		Resonance: resonance,
		Mass:      mass,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate reports a setup error for an out-of-range or unrecognized
// descriptor.
func (d *ObjectDescriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("clatter: nil object descriptor")
	}
	if err := d.Impact.Validate(); err != nil {
		return err
	}
	if d.Scrape != nil && !d.Scrape.Valid() {
		return fmt.Errorf("clatter: object %d has invalid scrape material %v", d.ID, *d.Scrape)
	}
	if d.Amp < 0 || d.Amp > 1 {
		return fmt.Errorf("clatter: object %d amp %v out of [0,1]", d.ID, d.Amp)
	}
	if d.Resonance < 0 || d.Resonance > 1 {
		return fmt.Errorf("clatter: object %d resonance %v out of [0,1]", d.ID, d.Resonance)
	}
	if d.Mass <= 0 {
		return fmt.Errorf("clatter: object %d mass %v must be > 0", d.ID, d.Mass)
	}
	return nil
}

// CollisionKind classifies a collision event.
type CollisionKind int

// Collision kinds (spec.md §3). Roll and None are accepted by the
// multiplexer but never dispatched to synthesis (spec.md §4.G step 1).
const (
	KindNone CollisionKind = iota
	KindImpact
	KindScrape
	KindRoll
)

func (k CollisionKind) String() string {
	switch k {
	case KindImpact:
		return "impact"
	case KindScrape:
		return "scrape"
	case KindRoll:
		return "roll"
	case KindNone:
		return "none"
	default:
		return fmt.Sprintf("CollisionKind(%d)", int(k))
	}
}

// CollisionEvent is one per-tick collision notification from the host.
type CollisionEvent struct {
	PairID    uint64
	Primary   *ObjectDescriptor
	Secondary *ObjectDescriptor
	Kind      CollisionKind
	Speed     float64
	Position  [3]float64
}

// NewCollisionEvent builds a CollisionEvent, enforcing the
// Primary.Speed >= Secondary.Speed precondition (spec.md §3, §9): if the
// caller passes them in the other order, they are swapped so that the same
// physical contact maps to the same PairID regardless of argument order.
// When both speeds are equal, no swap happens and the argument order decides
// the PairID.
func NewCollisionEvent(primary, secondary *ObjectDescriptor, kind CollisionKind, speed float64, position [3]float64) (*CollisionEvent, error) {
	if primary == nil || secondary == nil {
		return nil, fmt.Errorf("clatter: collision event requires non-nil primary and secondary descriptors")
	}
	if primary.Speed < secondary.Speed {
		primary, secondary = secondary, primary
	}
	return &CollisionEvent{
		PairID:    PairID(primary.ID, secondary.ID),
		Primary:   primary,
		Secondary: secondary,
		Kind:      kind,
		Speed:     speed,
		Position:  position,
	}, nil
}

// PairID computes the composite per-pair map key (spec.md §3, §9):
// (primary.ID << 32) | secondary.ID.
func PairID(primaryID, secondaryID uint32) uint64 {
	return uint64(primaryID)<<32 | uint64(secondaryID)
}

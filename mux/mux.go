// Package mux implements the per-tick collision multiplexer: it owns every
// live impact and scrape event, dispatches one worker per queued collision
// per tick, joins them at a single barrier, and emits listener callbacks in
// the tick's input order (spec.md §4.G, §5).
package mux

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alters-mit/clatter"
	"github.com/alters-mit/clatter/config"
	"github.com/alters-mit/clatter/event"
	"github.com/alters-mit/clatter/material"
)

// joinTimeout bounds how long tick() waits on the worker barrier before
// logging a diagnostic; synthesis itself is never cancelled by it
// (spec.md §5, §7: "diagnostic-only; not used in steady state").
const joinTimeout = 2 * time.Second

// OnImpact is called once per tick for each impact that produced audio.
type OnImpact func(samples []float64, position [3]float64, audioSourceID int64)

// OnScrapeStart is called the tick a scrape first produces audio.
type OnScrapeStart func(samples []float64, position [3]float64, scrapeID int64)

// OnScrapeOngoing is called every subsequent tick a scrape produces audio.
type OnScrapeOngoing func(samples []float64, position [3]float64, scrapeID int64)

// OnScrapeEnd is called once, the tick a scrape transitions to end.
type OnScrapeEnd func(scrapeID int64)

type queuedCollision struct {
	event *clatter.CollisionEvent
	dealt bool // true when this slot's worker produced audio (GetAudio returned true)
}

// Multiplexer is the collision engine's single per-tick entry point.
type Multiplexer struct {
	catalog *material.Catalog
	cfg     *config.Config
	log     *logrus.Entry
	rng     *rand.Rand

	impacts     map[uint64]*event.Impact
	impactOrder []uint64
	scrapes     map[uint64]*event.Scrape
	scrapeOrder []uint64

	pending     []queuedCollision
	terminating bool
	terminated  bool

	l *listeners

	nextSeed int64
}

// New constructs a multiplexer over catalog (expected to be preloaded before
// any add_collision call, per spec.md §5's "complete before concurrent
// synthesis begins" preference). seed drives both the multiplexer's own
// random-audio-source-ID stream and the per-event RNG seeds it hands out.
func New(catalog *material.Catalog, cfg *config.Config, logger *logrus.Logger, seed int64) (*Multiplexer, error) {
	if catalog == nil {
		return nil, fmt.Errorf("mux: catalog must not be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("mux: config must not be nil")
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Multiplexer{
		catalog: catalog,
		cfg:     cfg,
		log:     logger.WithField("component", "mux"),
		rng:     rand.New(rand.NewSource(seed)),
		impacts: make(map[uint64]*event.Impact),
		scrapes: make(map[uint64]*event.Scrape),
		nextSeed: seed + 1,
	}, nil
}

// listeners is split out of Multiplexer so zero-value construction (tests
// that only exercise state transitions) doesn't need to wire callbacks.
type listeners struct {
	onImpact        OnImpact
	onScrapeStart   OnScrapeStart
	onScrapeOngoing OnScrapeOngoing
	onScrapeEnd     OnScrapeEnd
}

// OnImpact registers the impact-completion listener.
func (m *Multiplexer) OnImpact(fn OnImpact) { m.ensureListeners().onImpact = fn }

// OnScrapeStart registers the scrape-start listener.
func (m *Multiplexer) OnScrapeStart(fn OnScrapeStart) { m.ensureListeners().onScrapeStart = fn }

// OnScrapeOngoing registers the scrape-ongoing listener.
func (m *Multiplexer) OnScrapeOngoing(fn OnScrapeOngoing) { m.ensureListeners().onScrapeOngoing = fn }

// OnScrapeEnd registers the scrape-end listener.
func (m *Multiplexer) OnScrapeEnd(fn OnScrapeEnd) { m.ensureListeners().onScrapeEnd = fn }

func (m *Multiplexer) ensureListeners() *listeners {
	if m.l == nil {
		m.l = &listeners{}
	}
	return m.l
}

// AddCollision appends a collision to the current tick's buffer. Multiple
// events per tick, including repeats for the same pair, are allowed
// (spec.md §4.G).
func (m *Multiplexer) AddCollision(ev *clatter.CollisionEvent) error {
	if ev == nil {
		return fmt.Errorf("mux: nil collision event")
	}
	if m.terminating || m.terminated {
		return fmt.Errorf("mux: add_collision after end()")
	}
	m.pending = append(m.pending, queuedCollision{event: ev})
	return nil
}

// End signals termination. The next Tick joins and disposes all workers
// without emitting callbacks.
func (m *Multiplexer) End() {
	m.terminating = true
}

// Tick drains the per-tick buffer: it constructs any missing impact/scrape
// event for each queued collision, dispatches one worker per queued
// collision, waits for the join barrier, emits listener callbacks in input
// order, removes ended events, and resets per-tick state (spec.md §4.G).
func (m *Multiplexer) Tick() error {
	if m.terminated {
		return nil
	}
	if m.terminating {
		m.pending = nil
		m.impacts = make(map[uint64]*event.Impact)
		m.scrapes = make(map[uint64]*event.Scrape)
		m.impactOrder = nil
		m.scrapeOrder = nil
		m.terminated = true
		return nil
	}

	batch := m.pending
	m.pending = nil

	var wg sync.WaitGroup
	var inFlight int64
	for i := range batch {
		q := &batch[i]
		switch q.event.Kind {
		case clatter.KindImpact:
			im, err := m.impactFor(q.event)
			if err != nil {
				m.log.WithError(err).Warn("mux: dropping impact event")
				continue
			}
			wg.Add(1)
			atomic.AddInt64(&inFlight, 1)
			go func(im *event.Impact, speed float64, q *queuedCollision) {
				defer wg.Done()
				defer atomic.AddInt64(&inFlight, -1)
				q.dealt = im.GetAudio(speed)
			}(im, q.event.Speed, q)
		case clatter.KindScrape:
			if q.event.Secondary.Scrape == nil {
				continue
			}
			sc, err := m.scrapeFor(q.event)
			if err != nil {
				m.log.WithError(err).Warn("mux: dropping scrape event")
				continue
			}
			wg.Add(1)
			atomic.AddInt64(&inFlight, 1)
			go func(sc *event.Scrape, speed float64, q *queuedCollision) {
				defer wg.Done()
				defer atomic.AddInt64(&inFlight, -1)
				q.dealt = sc.GetAudio(speed)
			}(sc, q.event.Speed, q)
		default:
			// none / roll: no dispatch (spec.md §4.G step 1).
		}
	}

	m.joinWithTimeout(&wg, &inFlight)

	for i := range batch {
		q := &batch[i]
		switch q.event.Kind {
		case clatter.KindImpact:
			im, ok := m.impacts[q.event.PairID]
			if !ok {
				continue
			}
			if q.dealt && im.CurrentState() != event.StateEnd {
				if m.l != nil && m.l.onImpact != nil {
					audioSourceID := m.rng.Int63()
					m.l.onImpact(im.Samples[:im.SampleLen], q.event.Position, audioSourceID)
				}
			}
		case clatter.KindScrape:
			sc, ok := m.scrapes[q.event.PairID]
			if !ok {
				continue
			}
			if !q.dealt {
				continue
			}
			switch sc.CurrentState() {
			case event.StateStart:
				if m.l != nil && m.l.onScrapeStart != nil {
					m.l.onScrapeStart(sc.Samples[:sc.SampleLen], q.event.Position, sc.ScrapeID)
				}
				sc.SetState(event.StateOngoing)
			case event.StateOngoing:
				if m.l != nil && m.l.onScrapeOngoing != nil {
					m.l.onScrapeOngoing(sc.Samples[:sc.SampleLen], q.event.Position, sc.ScrapeID)
				}
			}
		}
	}

	m.impactOrder = removeEnded(m.impactOrder, func(id uint64) bool {
		im := m.impacts[id]
		if im.CurrentState() != event.StateEnd {
			return false
		}
		delete(m.impacts, id)
		return true
	})
	m.scrapeOrder = removeEnded(m.scrapeOrder, func(id uint64) bool {
		sc := m.scrapes[id]
		if sc.CurrentState() != event.StateEnd {
			return false
		}
		if m.l != nil && m.l.onScrapeEnd != nil {
			m.l.onScrapeEnd(sc.ScrapeID)
		}
		delete(m.scrapes, id)
		return true
	})

	if m.terminating {
		m.impacts = make(map[uint64]*event.Impact)
		m.scrapes = make(map[uint64]*event.Scrape)
		m.impactOrder = nil
		m.scrapeOrder = nil
		m.terminated = true
	}
	return nil
}

// joinWithTimeout waits for the tick's dispatched workers, logging a
// diagnostic (never cancelling synthesis) if the join runs long
// (spec.md §5, §7).
func (m *Multiplexer) joinWithTimeout(wg *sync.WaitGroup, inFlight *int64) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(joinTimeout):
		m.log.WithField("in_flight", atomic.LoadInt64(inFlight)).Warn("mux: tick join exceeded diagnostic timeout")
		<-done
	}
}

// removeEnded compacts order in place, calling remove(id) for each entry and
// keeping only those for which it returns false — the same filter-in-place
// pattern used to prune ended string groups from an active-notes list.
func removeEnded(order []uint64, remove func(id uint64) bool) []uint64 {
	kept := order[:0]
	for _, id := range order {
		if remove(id) {
			continue
		}
		kept = append(kept, id)
	}
	return kept
}

func (m *Multiplexer) impactFor(ev *clatter.CollisionEvent) (*event.Impact, error) {
	if im, ok := m.impacts[ev.PairID]; ok {
		return im, nil
	}
	primaryData, ok := m.catalog.Impact(ev.Primary.Impact)
	if !ok {
		return nil, fmt.Errorf("mux: no impact record for primary material %v", ev.Primary.Impact)
	}
	secondaryData, ok := m.catalog.Impact(ev.Secondary.Impact)
	if !ok {
		return nil, fmt.Errorf("mux: no impact record for secondary material %v", ev.Secondary.Impact)
	}
	base, err := event.NewBase(ev.Primary, ev.Secondary, primaryData, secondaryData, m.cfg, m.drawSeed())
	if err != nil {
		return nil, err
	}
	im := event.NewImpact(base)
	m.impacts[ev.PairID] = im
	m.impactOrder = append(m.impactOrder, ev.PairID)
	return im, nil
}

func (m *Multiplexer) scrapeFor(ev *clatter.CollisionEvent) (*event.Scrape, error) {
	if sc, ok := m.scrapes[ev.PairID]; ok {
		return sc, nil
	}
	primaryData, ok := m.catalog.Impact(ev.Primary.Impact)
	if !ok {
		return nil, fmt.Errorf("mux: no impact record for primary material %v", ev.Primary.Impact)
	}
	secondaryData, ok := m.catalog.Impact(ev.Secondary.Impact)
	if !ok {
		return nil, fmt.Errorf("mux: no impact record for secondary material %v", ev.Secondary.Impact)
	}
	scrapeData, ok := m.catalog.Scrape(*ev.Secondary.Scrape)
	if !ok {
		return nil, fmt.Errorf("mux: no scrape record for secondary material %v", *ev.Secondary.Scrape)
	}
	base, err := event.NewBase(ev.Primary, ev.Secondary, primaryData, secondaryData, m.cfg, m.drawSeed())
	if err != nil {
		return nil, err
	}
	sc, err := event.NewScrape(base, scrapeData)
	if err != nil {
		return nil, err
	}
	m.scrapes[ev.PairID] = sc
	m.scrapeOrder = append(m.scrapeOrder, ev.PairID)
	return sc, nil
}

func (m *Multiplexer) drawSeed() int64 {
	m.nextSeed++
	return m.nextSeed
}

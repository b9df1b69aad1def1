package material

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Catalog is an in-memory registry of impact- and scrape-material modal
// data. Entries are created on first request and never mutated thereafter;
// a second load of an already-present key is a no-op (idempotent). Lookups
// are safe for concurrent readers once loading is complete — see spec.md §5
// on preferring to preload all referenced materials before concurrent
// synthesis begins.
type Catalog struct {
	mu      sync.RWMutex
	impacts map[SizedImpactMaterial]*ImpactData
	scrapes map[ScrapeMaterial]*ScrapeData
	log     *logrus.Entry
}

// NewCatalog creates an empty catalog. logger may be nil, in which case
// catalog load diagnostics are silently dropped (never falls back to
// fmt-based logging on the hot or setup path).
func NewCatalog(logger *logrus.Logger) *Catalog {
	var entry *logrus.Entry
	if logger != nil {
		entry = logger.WithField("component", "material.Catalog")
	}
	return &Catalog{
		impacts: make(map[SizedImpactMaterial]*ImpactData),
		scrapes: make(map[ScrapeMaterial]*ScrapeData),
		log:     entry,
	}
}

// LoadImpact decodes and registers impact modal data for key from r. If key
// is already registered, r is not read and the call is a no-op (idempotent
// load, per spec.md §3/§4.B).
func (c *Catalog) LoadImpact(key SizedImpactMaterial, r io.Reader) error {
	if err := key.Validate(); err != nil {
		return err
	}

	c.mu.RLock()
	_, exists := c.impacts[key]
	c.mu.RUnlock()
	if exists {
		return nil
	}

	data, err := DecodeImpactRecord(r)
	if err != nil {
		return fmt.Errorf("material: load impact %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.impacts[key]; exists {
		return nil
	}
	c.impacts[key] = data
	if c.log != nil {
		c.log.WithFields(logrus.Fields{"material": key.String(), "modes": len(data.CF)}).Debug("loaded impact material")
	}
	return nil
}

// LoadScrape decodes and registers scrape surface data for key from r,
// idempotently.
func (c *Catalog) LoadScrape(key ScrapeMaterial, r io.Reader) error {
	if !key.Valid() {
		return fmt.Errorf("material: invalid scrape material %v", key)
	}

	c.mu.RLock()
	_, exists := c.scrapes[key]
	c.mu.RUnlock()
	if exists {
		return nil
	}

	data, err := DecodeScrapeRecord(r)
	if err != nil {
		return fmt.Errorf("material: load scrape %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.scrapes[key]; exists {
		return nil
	}
	c.scrapes[key] = data
	if c.log != nil {
		c.log.WithFields(logrus.Fields{"material": key.String(), "samples": len(data.DSDX)}).Debug("loaded scrape material")
	}
	return nil
}

// RegisterImpact inserts already-decoded data directly (idempotent), for
// hosts that decode material files themselves per spec.md §1's scope
// boundary (the core consumes decoded records, not bytes).
func (c *Catalog) RegisterImpact(key SizedImpactMaterial, data *ImpactData) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.impacts[key]; exists {
		return nil
	}
	c.impacts[key] = data
	return nil
}

// RegisterScrape inserts already-decoded scrape data directly (idempotent).
func (c *Catalog) RegisterScrape(key ScrapeMaterial, data *ScrapeData) error {
	if !key.Valid() {
		return fmt.Errorf("material: invalid scrape material %v", key)
	}
	if err := data.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.scrapes[key]; exists {
		return nil
	}
	c.scrapes[key] = data
	return nil
}

// Impact looks up registered impact data. ok is false if key has not been
// loaded.
func (c *Catalog) Impact(key SizedImpactMaterial) (*ImpactData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.impacts[key]
	return d, ok
}

// Scrape looks up registered scrape data. ok is false if key has not been
// loaded.
func (c *Catalog) Scrape(key ScrapeMaterial) (*ScrapeData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.scrapes[key]
	return d, ok
}

// Command clatter-demo drives the collision multiplexer against a single
// synthetic object pair and renders whatever audio it emits to a WAV file.
// It is a host: the core packages never import wav or go-audio/audio, only
// this command does.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
	"github.com/sirupsen/logrus"

	"github.com/alters-mit/clatter"
	"github.com/alters-mit/clatter/config"
	"github.com/alters-mit/clatter/material"
	"github.com/alters-mit/clatter/mux"
)

func main() {
	kind := flag.String("kind", "impact", "collision kind: impact or scrape")
	primaryMaterial := flag.String("primary-material", "metal", "primary object impact material name")
	secondaryMaterial := flag.String("secondary-material", "stone", "secondary object impact material name")
	scrapeMaterial := flag.String("scrape-material", "ceramic", "secondary object scrape material name (scrape kind only)")
	primarySize := flag.Float64("primary-size", 0.2, "primary object bounding-box-sum extent, meters")
	secondarySize := flag.Float64("secondary-size", 3.0, "secondary object bounding-box-sum extent, meters")
	primaryAmp := flag.Float64("primary-amp", 0.2, "primary object amplitude [0,1]")
	secondaryAmp := flag.Float64("secondary-amp", 0.5, "secondary object amplitude [0,1]")
	primaryResonance := flag.Float64("primary-resonance", 0.2, "primary object resonance [0,1]")
	secondaryResonance := flag.Float64("secondary-resonance", 0.1, "secondary object resonance [0,1]")
	primaryMass := flag.Float64("primary-mass", 1.0, "primary object mass, kg")
	secondaryMass := flag.Float64("secondary-mass", 100.0, "secondary object mass, kg")
	speed := flag.Float64("speed", 1.0, "relative collision speed, m/s")
	duration := flag.Float64("duration", 2.0, "requested audio duration, seconds (scrape kind)")
	hits := flag.Int("hits", 3, "number of simulated hits (impact kind)")
	hitInterval := flag.Duration("hit-interval", 300*time.Millisecond, "wall-clock delay between simulated hits (impact kind)")
	impactDataPath := flag.String("impact-data", "", "impact material record file (binary, spec layout); built-in synthetic data if empty")
	scrapeDataPath := flag.String("scrape-data", "", "scrape material record file (binary, spec layout); built-in synthetic data if empty")
	seed := flag.Int64("seed", 0, "RNG seed")
	configPath := flag.String("config", "", "YAML/JSON config file overriding engine defaults; optional")
	output := flag.String("output", "output.wav", "output WAV file path")
	flag.Parse()

	impactMat, err := material.ParseImpactMaterial(*primaryMaterial)
	if err != nil {
		fmt.Fprintf(os.Stderr, "primary material: %v\n", err)
		os.Exit(1)
	}
	secondaryImpactMat, err := material.ParseImpactMaterial(*secondaryMaterial)
	if err != nil {
		fmt.Fprintf(os.Stderr, "secondary material: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.StandardLogger()
	loader, err := config.NewLoader(*configPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	catalog := material.NewCatalog(logger)
	primaryKey := material.NewSizedImpactMaterial(impactMat, *primarySize)
	secondaryKey := material.NewSizedImpactMaterial(secondaryImpactMat, *secondarySize)
	if err := loadOrSynthesizeImpact(catalog, primaryKey, *impactDataPath); err != nil {
		fmt.Fprintf(os.Stderr, "primary impact data: %v\n", err)
		os.Exit(1)
	}
	if err := loadOrSynthesizeImpact(catalog, secondaryKey, *impactDataPath); err != nil {
		fmt.Fprintf(os.Stderr, "secondary impact data: %v\n", err)
		os.Exit(1)
	}

	var scrapeKey material.ScrapeMaterial
	if *kind == "scrape" {
		scrapeKey, err = material.ParseScrapeMaterial(*scrapeMaterial)
		if err != nil {
			fmt.Fprintf(os.Stderr, "scrape material: %v\n", err)
			os.Exit(1)
		}
		if err := loadOrSynthesizeScrape(catalog, scrapeKey, *scrapeDataPath); err != nil {
			fmt.Fprintf(os.Stderr, "scrape data: %v\n", err)
			os.Exit(1)
		}
	}

	primary, err := clatter.NewObjectDescriptor(1, primaryKey, *primaryAmp, *primaryResonance, *primaryMass, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "primary descriptor: %v\n", err)
		os.Exit(1)
	}
	var secondaryScrape *material.ScrapeMaterial
	if *kind == "scrape" {
		secondaryScrape = &scrapeKey
	}
	secondary, err := clatter.NewObjectDescriptor(2, secondaryKey, *secondaryAmp, *secondaryResonance, *secondaryMass, secondaryScrape)
	if err != nil {
		fmt.Fprintf(os.Stderr, "secondary descriptor: %v\n", err)
		os.Exit(1)
	}
	primary.Speed, secondary.Speed = *speed, 0

	m, err := mux.New(catalog, loader.Current(), logger, *seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "multiplexer: %v\n", err)
		os.Exit(1)
	}

	var samples []float64
	emitted := 0
	m.OnImpact(func(s []float64, _ [3]float64, audioSourceID int64) {
		samples = append(samples, s...)
		emitted++
		fmt.Printf("tick %d: impact audio_source_id=%d samples=%d\n", emitted, audioSourceID, len(s))
	})
	m.OnScrapeStart(func(s []float64, _ [3]float64, scrapeID int64) {
		samples = append(samples, s...)
		fmt.Printf("scrape %d start: samples=%d\n", scrapeID, len(s))
	})
	m.OnScrapeOngoing(func(s []float64, _ [3]float64, scrapeID int64) {
		samples = append(samples, s...)
	})
	m.OnScrapeEnd(func(scrapeID int64) {
		fmt.Printf("scrape %d end\n", scrapeID)
	})

	var kindValue clatter.CollisionKind
	switch *kind {
	case "impact":
		kindValue = clatter.KindImpact
	case "scrape":
		kindValue = clatter.KindScrape
	default:
		fmt.Fprintf(os.Stderr, "unknown kind %q (want impact or scrape)\n", *kind)
		os.Exit(1)
	}

	switch *kind {
	case "impact":
		for i := 0; i < *hits; i++ {
			ev, err := clatter.NewCollisionEvent(primary, secondary, kindValue, *speed, [3]float64{})
			if err != nil {
				fmt.Fprintf(os.Stderr, "collision event: %v\n", err)
				os.Exit(1)
			}
			if err := m.AddCollision(ev); err != nil {
				fmt.Fprintf(os.Stderr, "add_collision: %v\n", err)
				os.Exit(1)
			}
			if err := m.Tick(); err != nil {
				fmt.Fprintf(os.Stderr, "tick: %v\n", err)
				os.Exit(1)
			}
			if i < *hits-1 {
				time.Sleep(*hitInterval)
			}
		}
	case "scrape":
		numChunks := int(math.Floor(*duration * clatter.SampleRate / clatter.ScrapeSamplesPerChunk))
		for i := 0; i < numChunks; i++ {
			ev, err := clatter.NewCollisionEvent(primary, secondary, kindValue, *speed, [3]float64{})
			if err != nil {
				fmt.Fprintf(os.Stderr, "collision event: %v\n", err)
				os.Exit(1)
			}
			if err := m.AddCollision(ev); err != nil {
				fmt.Fprintf(os.Stderr, "add_collision: %v\n", err)
				os.Exit(1)
			}
			if err := m.Tick(); err != nil {
				fmt.Fprintf(os.Stderr, "tick: %v\n", err)
				os.Exit(1)
			}
		}
	}
	m.End()
	if err := m.Tick(); err != nil {
		fmt.Fprintf(os.Stderr, "final tick: %v\n", err)
		os.Exit(1)
	}

	if err := writeWAV(*output, samples); err != nil {
		fmt.Fprintf(os.Stderr, "wav write: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d samples, %.3fs)\n", *output, len(samples), float64(len(samples))/clatter.SampleRate)
}

func writeWAV(path string, samples []float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	const numChannels = 1
	encoder := wav.NewEncoder(file, clatter.SampleRate, 16, numChannels, 1)
	defer encoder.Close()

	f32 := make([]float32, len(samples))
	for i, s := range samples {
		f32[i] = float32(s)
	}
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  clatter.SampleRate,
			NumChannels: numChannels,
		},
		Data:           f32,
		SourceBitDepth: 16,
	}
	return encoder.Write(buf)
}

// loadOrSynthesizeImpact loads key's impact record from path, or registers a
// small built-in synthetic one if path is empty, so the demo runs without
// requiring material asset files on disk.
func loadOrSynthesizeImpact(catalog *material.Catalog, key material.SizedImpactMaterial, path string) error {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return catalog.LoadImpact(key, f)
	}
	const n = 10
	base := 200.0 + float64(key.Material)*80 + float64(key.Size)*15
	data := &material.ImpactData{CF: make([]float64, n), OP: make([]float64, n), RT: make([]float64, n)}
	for i := range data.CF {
		data.CF[i] = base + float64(i)*120
		data.OP[i] = 30 - float64(i)
		data.RT[i] = 0.25
	}
	return catalog.RegisterImpact(key, data)
}

// loadOrSynthesizeScrape mirrors loadOrSynthesizeImpact for scrape surfaces.
func loadOrSynthesizeScrape(catalog *material.Catalog, key material.ScrapeMaterial, path string) error {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return catalog.LoadScrape(key, f)
	}
	const n = 20000
	surface := make([]float64, n)
	for i := range surface {
		surface[i] = math.Sin(float64(i)*0.01) + float64(i%7)*0.1
	}
	r, err := material.EncodeScrapeRecord(0.8, surface)
	if err != nil {
		return err
	}
	return catalog.LoadScrape(key, bytes.NewReader(r))
}

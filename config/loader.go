package config

import (
	"errors"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Loader reads a configuration file and exposes the current Config via a
// lock-free atomic pointer; Watch swaps in each valid reload. A multiplexer
// keeps the *Config passed to mux.New for its whole life and does not call
// Current(), so a reload does not reach a multiplexer that already exists.
type Loader struct {
	v       *viper.Viper
	current atomic.Pointer[Config]
	log     *logrus.Entry
}

// NewLoader reads path (if it exists; missing files fall back to defaults)
// and returns a Loader holding the initial Config. logger may be nil.
func NewLoader(path string, logger *logrus.Logger) (*Loader, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if _, statErr := os.Stat(path); statErr == nil {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var entry *logrus.Entry
	if logger != nil {
		entry = logger.WithField("component", "config.Loader")
	}
	l := &Loader{v: v, log: entry}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	l.current.Store(cfg)
	return l, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("simulation_amp", d.SimulationAmp)
	v.SetDefault("prevent_distortion", d.PreventDistortion)
	v.SetDefault("clamp_contact_time", d.ClampContactTime)
	v.SetDefault("min_time_between_impacts", d.MinTimeBetweenImpacts)
	v.SetDefault("max_time_between_impacts", d.MaxTimeBetweenImpacts)
	v.SetDefault("scrape_max_speed", d.ScrapeMaxSpeed)
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Current returns the most recently loaded Config. Safe for concurrent use.
func (l *Loader) Current() *Config {
	return l.current.Load()
}

// Watch starts watching the config file for changes, swapping the atomic
// pointer on every valid reload. An invalid reload (fails Validate) is
// logged and discarded, leaving the previous Config in place.
func (l *Loader) Watch() {
	l.v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := l.unmarshal()
		if err != nil {
			if l.log != nil {
				l.log.WithError(err).Warn("rejected invalid configuration reload")
			}
			return
		}
		l.current.Store(cfg)
		if l.log != nil {
			l.log.Info("reloaded configuration")
		}
	})
	l.v.WatchConfig()
}

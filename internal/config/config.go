// Package config loads the YAML settings file: where sequences live, how they
// are loaded and which transitions exist.
package config

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/lucasew/seqcache/internal/player"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSequencesRoot       = "StreamingAssets/Sequences"
	DefaultBatchSize           = 2
	DefaultMaxCacheMemoryMB    = 0
	DefaultFrameRate           = 30
	DefaultLongLoadingChance   = 0.33
	DefaultLongLoadingDuration = 3 * time.Second

	MinFrameRate            = 15
	MaxFrameRate            = 120
	MaxHideLoadingBeforeEnd = 10 * time.Second
)

// Transition is one configured entry/exit pair.
type Transition struct {
	Name                    string        `yaml:"name"`
	EntrySequence           string        `yaml:"entry_sequence"`
	ExitSequence            string        `yaml:"exit_sequence"`
	FrameRate               int           `yaml:"frame_rate"`
	KeepLastFrameForLoading bool          `yaml:"keep_last_frame_for_loading"`
	ShowLoadingDelay        time.Duration `yaml:"show_loading_delay"`
	HideLoadingBeforeEnd    time.Duration `yaml:"hide_loading_before_end"`
}

// Player converts t for player.PlayTransition.
func (t Transition) Player() player.Transition {
	return player.Transition{
		Name:          t.Name,
		Entry:         t.EntrySequence,
		Exit:          t.ExitSequence,
		FrameRate:     float64(t.FrameRate),
		KeepLastFrame: t.KeepLastFrameForLoading,
		LoadingDelay:  t.ShowLoadingDelay,
	}
}

// Settings is the whole settings file.
type Settings struct {
	SequencesRoot       string        `yaml:"sequences_root"`
	BatchSize           int           `yaml:"batch_size"`
	MaxCacheMemoryMB    int64         `yaml:"max_cache_memory_mb"`
	DebugLogs           bool          `yaml:"debug_logs"`
	ShowMemoryUsage     bool          `yaml:"show_memory_usage"`
	LongLoadingChance   float64       `yaml:"long_loading_chance"`
	LongLoadingDuration time.Duration `yaml:"long_loading_duration"`
	Transitions         []Transition  `yaml:"transitions"`
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		SequencesRoot:       DefaultSequencesRoot,
		BatchSize:           DefaultBatchSize,
		MaxCacheMemoryMB:    DefaultMaxCacheMemoryMB,
		LongLoadingChance:   DefaultLongLoadingChance,
		LongLoadingDuration: DefaultLongLoadingDuration,
	}
}

// Load reads and validates the settings file at path.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	for i := range s.Transitions {
		if s.Transitions[i].FrameRate == 0 {
			s.Transitions[i].FrameRate = DefaultFrameRate
		}
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports every invalid field.
func (s Settings) Validate() error {
	var errs []error
	if s.SequencesRoot == "" {
		errs = append(errs, errors.New("sequences_root: must not be empty"))
	}
	if s.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch_size: %d is below 1", s.BatchSize))
	}
	if s.MaxCacheMemoryMB < 0 {
		errs = append(errs, fmt.Errorf("max_cache_memory_mb: %d is negative", s.MaxCacheMemoryMB))
	}
	if s.LongLoadingChance < 0 || s.LongLoadingChance > 1 {
		errs = append(errs, fmt.Errorf("long_loading_chance: %v is outside [0,1]", s.LongLoadingChance))
	}
	if s.LongLoadingDuration < 0 {
		errs = append(errs, fmt.Errorf("long_loading_duration: %v is negative", s.LongLoadingDuration))
	}

	seen := make(map[string]bool)
	for i, t := range s.Transitions {
		field := fmt.Sprintf("transitions[%d]", i)
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name: must not be empty", field))
		} else if seen[t.Name] {
			errs = append(errs, fmt.Errorf("%s.name: %q is used twice", field, t.Name))
		}
		seen[t.Name] = true
		if t.EntrySequence == "" {
			errs = append(errs, fmt.Errorf("%s.entry_sequence: must not be empty", field))
		}
		if t.ExitSequence == "" {
			errs = append(errs, fmt.Errorf("%s.exit_sequence: must not be empty", field))
		}
		if t.FrameRate < MinFrameRate || t.FrameRate > MaxFrameRate {
			errs = append(errs, fmt.Errorf("%s.frame_rate: %d is outside [%d,%d]", field, t.FrameRate, MinFrameRate, MaxFrameRate))
		}
		if t.ShowLoadingDelay < 0 {
			errs = append(errs, fmt.Errorf("%s.show_loading_delay: %v is negative", field, t.ShowLoadingDelay))
		}
		if t.HideLoadingBeforeEnd < 0 || t.HideLoadingBeforeEnd > MaxHideLoadingBeforeEnd {
			errs = append(errs, fmt.Errorf("%s.hide_loading_before_end: %v is outside [0,%v]", field, t.HideLoadingBeforeEnd, MaxHideLoadingBeforeEnd))
		}
	}
	return errors.Join(errs...)
}

// MaxCacheBytes is the memory bound in bytes, zero when unbounded.
func (s Settings) MaxCacheBytes() int64 {
	return s.MaxCacheMemoryMB << 20
}

// Transition finds a transition by name.
func (s Settings) Transition(name string) (Transition, bool) {
	for _, t := range s.Transitions {
		if t.Name == name {
			return t, true
		}
	}
	return Transition{}, false
}

// RandomTransition picks one transition uniformly.
func (s Settings) RandomTransition(rng *rand.Rand) (Transition, bool) {
	if len(s.Transitions) == 0 {
		return Transition{}, false
	}
	return s.Transitions[rng.IntN(len(s.Transitions))], true
}

// ShouldUseLongLoading rolls against LongLoadingChance.
func (s Settings) ShouldUseLongLoading(rng *rand.Rand) bool {
	return rng.Float64() < s.LongLoadingChance
}

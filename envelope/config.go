package envelope

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chase3718/nofft/tween"
)

// Default controller numbers.
const (
	DefaultModController    = 1
	DefaultDecayController  = 72
	DefaultAttackController = 73
)

// Default knob positions of a fresh channel.
const (
	DefaultAttackKnob = 0.0
	DefaultDecayKnob  = 0.5
)

// GuardDelay separates the attack and decay stages of a self-decaying note.
const GuardDelay = 10 * time.Millisecond

// Range bounds the envelope value.
type Range struct {
	Min, Max float64
}

// Curve shapes one envelope stage. The stage length is
// max(Min, Max*knob^Exponent).
type Curve struct {
	Min, Max time.Duration
	Exponent float64
	Easing   string
}

// Duration returns the stage length for a knob position in [0,1].
func (c Curve) Duration(knob float64) time.Duration {
	d := time.Duration(float64(c.Max) * math.Pow(knob, c.Exponent))
	if d < c.Min {
		return c.Min
	}
	return d
}

// Config holds the process-wide curve parameters. It is read by every
// channel and never changed after the System is built.
type Config struct {
	// IgnoreNoteOff makes every note decay on its own once the attack is
	// done; note-off messages then only reach the hooks.
	IgnoreNoteOff bool

	ModController    uint8
	DecayController  uint8
	AttackController uint8

	Envelope      Range
	VelocityCurve float64

	Attack Curve
	Decay  Curve
}

// DefaultConfig returns the stock envelope shape.
func DefaultConfig() Config {
	return Config{
		ModController:    DefaultModController,
		DecayController:  DefaultDecayController,
		AttackController: DefaultAttackController,
		Envelope:         Range{Min: 0, Max: 1},
		VelocityCurve:    2,
		Attack: Curve{
			Min:      10 * time.Millisecond,
			Max:      5000 * time.Millisecond,
			Exponent: 4,
			Easing:   tween.DefaultAttackEasing,
		},
		Decay: Curve{
			Min:      100 * time.Millisecond,
			Max:      8000 * time.Millisecond,
			Exponent: 5,
			Easing:   tween.DefaultDecayEasing,
		},
	}
}

// Peak is the top of the attack for a normalized velocity.
func (c *Config) Peak(velocity float64) float64 {
	return c.Envelope.Max * math.Pow(velocity, c.VelocityCurve)
}

var errInvalidConfig = errors.New("invalid config")

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	for _, cc := range []struct {
		name string
		num  uint8
	}{
		{"modController", c.ModController},
		{"decayController", c.DecayController},
		{"attackController", c.AttackController},
	} {
		if cc.num > 127 {
			return fmt.Errorf("%w: %s %d out of range 0..127", errInvalidConfig, cc.name, cc.num)
		}
	}
	if c.Envelope.Min > c.Envelope.Max {
		return fmt.Errorf("%w: minimumEnvelope %g above maximumEnvelope %g", errInvalidConfig, c.Envelope.Min, c.Envelope.Max)
	}
	if err := c.Attack.validate("attack"); err != nil {
		return err
	}
	return c.Decay.validate("decay")
}

func (c Curve) validate(stage string) error {
	if c.Min < 0 || c.Max < 0 {
		return fmt.Errorf("%w: negative %s duration", errInvalidConfig, stage)
	}
	if c.Exponent < 0 || math.IsNaN(c.Exponent) {
		return fmt.Errorf("%w: negative %s curve %g", errInvalidConfig, stage, c.Exponent)
	}
	if c.Min > c.Max {
		return fmt.Errorf("%w: minimum %s %v above maximum %v", errInvalidConfig, stage, c.Min, c.Max)
	}
	if _, ok := tween.LookupEasing(c.Easing); !ok {
		return fmt.Errorf("%w: unknown %s easing %q", errInvalidConfig, stage, c.Easing)
	}
	return nil
}

// fileConfig is the on-disk shape: option names as the host exposes them,
// durations in milliseconds.
type fileConfig struct {
	IgnoreNoteOff    bool    `yaml:"ignoreNoteOff"`
	ModController    uint8   `yaml:"modController"`
	DecayController  uint8   `yaml:"decayController"`
	AttackController uint8   `yaml:"attackController"`
	MinimumEnvelope  float64 `yaml:"minimumEnvelope"`
	MaximumEnvelope  float64 `yaml:"maximumEnvelope"`
	VelocityCurve    float64 `yaml:"velocityCurve"`
	MinimumAttack    float64 `yaml:"minimumAttack"`
	MaximumAttack    float64 `yaml:"maximumAttack"`
	AttackCurve      float64 `yaml:"attackCurve"`
	AttackEasing     string  `yaml:"attackEasing"`
	MinimumDecay     float64 `yaml:"minimumDecay"`
	MaximumDecay     float64 `yaml:"maximumDecay"`
	DecayCurve       float64 `yaml:"decayCurve"`
	DecayEasing      string  `yaml:"decayEasing"`
}

func toFile(c Config) fileConfig {
	return fileConfig{
		IgnoreNoteOff:    c.IgnoreNoteOff,
		ModController:    c.ModController,
		DecayController:  c.DecayController,
		AttackController: c.AttackController,
		MinimumEnvelope:  c.Envelope.Min,
		MaximumEnvelope:  c.Envelope.Max,
		VelocityCurve:    c.VelocityCurve,
		MinimumAttack:    millis(c.Attack.Min),
		MaximumAttack:    millis(c.Attack.Max),
		AttackCurve:      c.Attack.Exponent,
		AttackEasing:     c.Attack.Easing,
		MinimumDecay:     millis(c.Decay.Min),
		MaximumDecay:     millis(c.Decay.Max),
		DecayCurve:       c.Decay.Exponent,
		DecayEasing:      c.Decay.Easing,
	}
}

func (f fileConfig) config() Config {
	return Config{
		IgnoreNoteOff:    f.IgnoreNoteOff,
		ModController:    f.ModController,
		DecayController:  f.DecayController,
		AttackController: f.AttackController,
		Envelope:         Range{Min: f.MinimumEnvelope, Max: f.MaximumEnvelope},
		VelocityCurve:    f.VelocityCurve,
		Attack: Curve{
			Min:      fromMillis(f.MinimumAttack),
			Max:      fromMillis(f.MaximumAttack),
			Exponent: f.AttackCurve,
			Easing:   f.AttackEasing,
		},
		Decay: Curve{
			Min:      fromMillis(f.MinimumDecay),
			Max:      fromMillis(f.MaximumDecay),
			Exponent: f.DecayCurve,
			Easing:   f.DecayEasing,
		},
	}
}

func millis(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func fromMillis(ms float64) time.Duration { return time.Duration(ms * float64(time.Millisecond)) }

// ParseConfig decodes YAML over the defaults; keys that are absent keep
// their default value.
func ParseConfig(data []byte) (Config, error) {
	f := toFile(DefaultConfig())
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg := f.config()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// MarshalYAML writes c in the file format read by LoadConfig.
func (c Config) MarshalYAML() (interface{}, error) {
	return toFile(c), nil
}

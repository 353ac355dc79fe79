package encoder

import (
	"io/ioutil"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anyenc/anyrnn"
)

// Default values used by DefaultConfig.
const (
	DefaultInitRange = 0.1
	DefaultClip      = 50
)

// Config describes the recurrent layers of an encoder.
//
// Encoders keep their own copy of the Config, so changing
// a Config after construction has no effect.
type Config struct {
	// InputSize is the number of features per timestep.
	InputSize int

	// Cells is the number of hidden units per cell.
	Cells int

	// Layers is the number of stacked recurrent layers.
	Layers int

	// Keep probabilities for input and hidden dropout.
	// A value of 1 disables dropout.
	InputKeepProb  float64
	HiddenKeepProb float64

	// InitRange bounds the uniform weight initialization.
	InitRange float64

	// Clip bounds LSTM memory cells.
	// Zero disables clipping.
	Clip float64

	// Proj is the LSTM projection size, or 0 for none.
	Proj int

	// Seed determines the initial weights.
	Seed int64

	// Logger receives debug messages.
	// If nil, nothing is logged.
	Logger logrus.FieldLogger

	// Debug adds a statistics layer after every recurrent
	// layer.
	Debug bool
}

// DefaultConfig creates a single-layer Config without
// dropout or projection.
func DefaultConfig(inputSize, cells int) Config {
	return Config{
		InputSize:      inputSize,
		Cells:          cells,
		Layers:         1,
		InputKeepProb:  1,
		HiddenKeepProb: 1,
		InitRange:      DefaultInitRange,
		Clip:           DefaultClip,
	}
}

// Validate checks that the Config describes a buildable
// encoder.
// The returned error is a *ConfigError.
func (c *Config) Validate() error {
	switch {
	case c.InputSize < 1:
		return &ConfigError{Field: "InputSize", Reason: "must be at least 1"}
	case c.Cells < 1:
		return &ConfigError{Field: "Cells", Reason: "must be at least 1"}
	case c.Layers < 1:
		return &ConfigError{Field: "Layers", Reason: "must be at least 1"}
	case !validKeepProb(c.InputKeepProb):
		return &ConfigError{Field: "InputKeepProb", Reason: "must be in (0, 1]"}
	case !validKeepProb(c.HiddenKeepProb):
		return &ConfigError{Field: "HiddenKeepProb", Reason: "must be in (0, 1]"}
	case !finite(c.InitRange):
		return &ConfigError{Field: "InitRange", Reason: "must be finite"}
	case c.InitRange < 0:
		return &ConfigError{Field: "InitRange", Reason: "must not be negative"}
	case !finite(c.Clip):
		return &ConfigError{Field: "Clip", Reason: "must be finite"}
	case c.Clip < 0:
		return &ConfigError{Field: "Clip", Reason: "must not be negative"}
	case c.Proj < 0:
		return &ConfigError{Field: "Proj", Reason: "must not be negative"}
	}
	return nil
}

func (c *Config) logger() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

func (c *Config) weightInit() anyrnn.Init {
	return anyrnn.Init{
		Scale: c.InitRange,
		Rand:  rand.New(rand.NewSource(c.Seed)),
	}
}

func validKeepProb(p float64) bool {
	return p > 0 && p <= 1
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

package anyenc

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var d Dropout
	serializer.RegisterTypedDeserializer(d.SerializerType(), DeserializeDropout)
}

// A Dropout layer applies inverted dropout.
//
// Every component is kept with probability KeepProb and
// the survivors are scaled by 1/KeepProb, so the expected
// output equals the input.
// When disabled, or when KeepProb is 1, the layer is the
// identity.
// A fresh mask is drawn on every call to Apply.
type Dropout struct {
	Enabled bool

	// The probability of keeping any given input.
	KeepProb float64
}

// NewDropout creates an enabled Dropout layer.
func NewDropout(keepProb float64) *Dropout {
	return &Dropout{Enabled: true, KeepProb: keepProb}
}

// DeserializeDropout deserializes a Dropout.
func DeserializeDropout(d []byte) (*Dropout, error) {
	var enabled serializer.Int
	var keepProb serializer.Float64
	if err := serializer.DeserializeAny(d, &enabled, &keepProb); err != nil {
		return nil, essentials.AddCtx("deserialize Dropout", err)
	}
	return &Dropout{
		Enabled:  enabled == 1,
		KeepProb: float64(keepProb),
	}, nil
}

// Active reports whether Apply will drop anything.
func (d *Dropout) Active() bool {
	return d.Enabled && d.KeepProb < 1
}

// Apply applies the layer.
func (d *Dropout) Apply(in anydiff.Res, n int) anydiff.Res {
	if !d.Active() {
		return in
	}
	c := in.Output().Creator()
	mask := c.MakeVector(in.Output().Len())
	anyvec.Rand(mask, anyvec.Uniform, nil)
	anyvec.LessThan(mask, c.MakeNumeric(d.KeepProb))
	mask.Scale(c.MakeNumeric(1 / d.KeepProb))
	return anydiff.Mul(in, anydiff.NewConst(mask))
}

// SerializerType returns the unique ID used to serialize
// a Dropout with the serializer package.
func (d *Dropout) SerializerType() string {
	return "github.com/unixpickle/anyenc.Dropout"
}

// Serialize serializes the Dropout.
func (d *Dropout) Serialize() ([]byte, error) {
	enabledFlag := serializer.Int(0)
	if d.Enabled {
		enabledFlag = 1
	}
	return serializer.SerializeAny(enabledFlag, serializer.Float64(d.KeepProb))
}

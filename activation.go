package anyenc

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Activation
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeActivation)
}

// An Activation is an element-wise squashing function.
type Activation int

// These are the activations used by recurrent gates.
const (
	Tanh Activation = iota
	Sigmoid
	ReLU
)

// DeserializeActivation deserializes an Activation.
func DeserializeActivation(d []byte) (Activation, error) {
	if len(d) != 1 {
		return 0, fmt.Errorf("deserialize Activation: data length (%d) should be 1", len(d))
	}
	a := Activation(d[0])
	if a > ReLU {
		return 0, fmt.Errorf("deserialize Activation: unknown activation ID: %d", a)
	}
	return a, nil
}

// Apply applies the activation function.
// The batch size is ignored since every activation is
// element-wise.
func (a Activation) Apply(in anydiff.Res, n int) anydiff.Res {
	switch a {
	case Tanh:
		return anydiff.Tanh(in)
	case Sigmoid:
		return anydiff.Sigmoid(in)
	case ReLU:
		return anydiff.ClipPos(in)
	default:
		panic(fmt.Sprintf("unknown activation: %d", a))
	}
}

// String returns the name of the activation.
func (a Activation) String() string {
	switch a {
	case Tanh:
		return "Tanh"
	case Sigmoid:
		return "Sigmoid"
	case ReLU:
		return "ReLU"
	default:
		return fmt.Sprintf("Activation(%d)", int(a))
	}
}

// SerializerType returns the unique ID used to serialize
// an Activation.
func (a Activation) SerializerType() string {
	return "github.com/unixpickle/anyenc.Activation"
}

// Serialize serializes the activation.
func (a Activation) Serialize() ([]byte, error) {
	return []byte{byte(a)}, nil
}

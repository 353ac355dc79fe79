package anyrnn

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anyenc"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/serializer"
)

func TestLayerSerialize(t *testing.T) {
	testSerialize(t, &LayerBlock{
		Layer: anyenc.Tanh,
	})
}

func TestStackSerialize(t *testing.T) {
	testSerialize(t, Stack{
		&LayerBlock{Layer: anyenc.Tanh},
		&LayerBlock{Layer: anyenc.NewDropout(0.5)},
	})
}

func TestGateSerialize(t *testing.T) {
	c := anyvec32.CurrentCreator()
	g := NewGate(c, 3, 2, 4, true, anyenc.Sigmoid, DefaultInit)

	// Make sure the biases are different than the init state.
	g.Biases.Vector.AddScalar(float32(1))
	testSerialize(t, g)

	testSerialize(t, NewGate(c, 3, 2, 4, false, anyenc.Tanh, DefaultInit))
}

func TestLSTMSerialize(t *testing.T) {
	c := anyvec32.CurrentCreator()
	testSerialize(t, NewLSTM(c, 3, 2, 0, DefaultInit))

	projected := NewLSTM(c, 3, 4, 2, DefaultInit)
	projected.Clip = 50
	testSerialize(t, projected)
}

func TestGRUSerialize(t *testing.T) {
	testSerialize(t, NewGRU(anyvec32.CurrentCreator(), 3, 2, DefaultInit))
}

func TestBidirSerialize(t *testing.T) {
	c := anyvec32.CurrentCreator()
	b := &Bidir{
		Forward:  OutputDropout(NewLSTM(c, 5, 3, 0, DefaultInit), 0.8),
		Backward: OutputDropout(NewLSTM(c, 5, 3, 2, DefaultInit), 0.8),
		Mixer:    anyenc.ConcatMixer{},
	}
	testSerialize(t, b)
}

func testSerialize(t *testing.T, obj serializer.Serializer) {
	data, err := serializer.SerializeWithType(obj)
	if err != nil {
		t.Fatal(err)
	}
	newObj, err := serializer.DeserializeWithType(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(obj, newObj) {
		t.Errorf("expected %v but got %v", obj, newObj)
	}
}

package anyrnn

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyenc"
	"github.com/unixpickle/anyvec/anyvec64"
)

// affineLayer is a learnable per-component affine layer
// used to make LayerBlock tests non-trivial.
type affineLayer struct {
	Scalers *anydiff.Var
	Biases  *anydiff.Var
}

func newAffineLayer(size int) *affineLayer {
	c := anyvec64.DefaultCreator{}
	res := &affineLayer{
		Scalers: anydiff.NewVar(c.MakeVector(size)),
		Biases:  anydiff.NewVar(c.MakeVector(size)),
	}
	DefaultInit.randomize(res.Scalers.Vector)
	DefaultInit.randomize(res.Biases.Vector)
	return res
}

func (a *affineLayer) Apply(in anydiff.Res, n int) anydiff.Res {
	return anydiff.ScaleAddRepeated(in, a.Scalers, a.Biases)
}

func (a *affineLayer) Parameters() []*anydiff.Var {
	return []*anydiff.Var{a.Scalers, a.Biases}
}

func TestLayerBlock(t *testing.T) {
	inSeq, inVars := randomTestSequence(anyvec64.DefaultCreator{}, 3)
	block := &LayerBlock{
		Layer: anyenc.Net{newAffineLayer(3), anyenc.Tanh},
	}
	if len(block.Parameters()) != 2 {
		t.Errorf("expected 2 parameters, but got %d", len(block.Parameters()))
	}
	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return Map(inSeq, block)
		},
		V: append(inVars, block.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestWrapOutput(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, inVars := randomTestSequence(c, 3)
	gru := NewGRU(c, 3, 2, DefaultInit)
	block := WrapOutput(gru, newAffineLayer(2))
	if len(block.Parameters()) != len(gru.Parameters())+2 {
		t.Errorf("unexpected parameter count %d", len(block.Parameters()))
	}
	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return Map(inSeq, block)
		},
		V: append(inVars, block.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestOutputDropoutPassThrough(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, inVars := randomTestSequence(c, 3)
	lstm := NewLSTM(c, 3, 2, 0, DefaultInit)
	block := OutputDropout(lstm, 1)
	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return Map(inSeq, block)
		},
		V: append(inVars, block.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestOutputDropoutState(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, _ := randomTestSequence(c, 3)
	lstm := NewLSTM(c, 3, 4, 0, DefaultInit)

	// Dropout must leave the recurrent state untouched.
	_, expected := MapFinal(inSeq, Stack{lstm}, 4)
	dropped, actual := MapFinal(inSeq, OutputDropout(lstm, 0.5), 4)
	assertClose(t, vectorData(actual[0]), vectorData(expected[0]), 1e-8)

	plain := Map(inSeq, lstm).Output()
	for i, batch := range dropped.Output() {
		got := vectorData(batch.Packed)
		want := vectorData(plain[i].Packed)
		for j, x := range got {
			if x != 0 && math.Abs(x-2*want[j]) > 1e-8 {
				t.Fatalf("step %d index %d: expected 0 or %f but got %f", i, j,
					2*want[j], x)
			}
		}
	}
}


package anyrnn

import (
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyenc"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestFuncBlock(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, inVars := randomTestSequence(c, 3)
	stateGate := NewGate(c, 3, 2, 2, false, anyenc.Tanh, DefaultInit)
	outGate := NewGate(c, 3, 2, 3, false, anyenc.Sigmoid, DefaultInit)

	params := append(append(inVars, stateGate.Parameters()...),
		outGate.Parameters()...)

	block := &FuncBlock{
		Creator:   c,
		StateSize: 2,
		Func: func(in, state anydiff.Res, n int) (out, newState anydiff.Res) {
			newState = stateGate.Apply(in, state, nil, n)
			out = outGate.Apply(in, newState, nil, n)
			return
		},
	}

	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return Map(inSeq, block)
		},
		V: params,
	}
	checker.FullCheck(t)
}

func TestFuncBlockNilOut(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, inVars := randomTestSequence(c, 3)
	gate := NewGate(c, 3, 3, 3, false, anyenc.Tanh, Init{Scale: 0.5})

	block := &FuncBlock{
		Creator:   c,
		StateSize: 3,
		Func: func(in, state anydiff.Res, n int) (out, newState anydiff.Res) {
			return nil, gate.Apply(in, state, nil, n)
		},
	}

	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return Map(inSeq, block)
		},
		V: append(inVars, gate.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestFuncBlockZeroStart(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	block := &FuncBlock{Creator: c, StateSize: 2}
	start := block.Start(3).(*FuncBlockState)
	if start.Vector.Len() != 6 {
		t.Fatalf("expected 6 components but got %d", start.Vector.Len())
	}
	assertClose(t, vectorData(start.Vector), make([]float64, 6), 0)
	if start.Present().NumPresent() != 3 {
		t.Errorf("expected 3 present but got %d", start.Present().NumPresent())
	}
}

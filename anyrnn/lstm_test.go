package anyrnn

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestLSTMProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, inVars := randomTestSequence(c, 3)
	block := NewLSTM(c, 3, 2, 0, DefaultInit)
	if len(block.Parameters()) != 15 {
		t.Errorf("expected 15 parameters, but got %d", len(block.Parameters()))
	}
	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return Map(inSeq, block)
		},
		V: append(inVars, block.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestLSTMProjectionProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, inVars := randomTestSequence(c, 3)
	block := NewLSTM(c, 3, 4, 2, Init{Scale: 0.5})
	if block.OutCount != 2 {
		t.Errorf("expected 2 outputs but got %d", block.OutCount)
	}
	if len(block.Parameters()) != 16 {
		t.Errorf("expected 16 parameters, but got %d", len(block.Parameters()))
	}
	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return Map(inSeq, block)
		},
		V: append(inVars, block.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestLSTMRememberBias(t *testing.T) {
	block := NewLSTM(anyvec32.CurrentCreator(), 3, 4, 0, Init{Scale: 0})
	for _, x := range vectorData(block.Remember.Biases.Vector) {
		if x != 1 {
			t.Fatalf("expected remember bias 1 but got %f", x)
		}
	}
	for _, x := range vectorData(block.In.Biases.Vector) {
		if x != 0 {
			t.Fatalf("expected input bias 0 but got %f", x)
		}
	}
}

func TestLSTMClip(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	block := NewLSTM(c, 1, 2, 0, Init{Scale: 0})

	// With zero weights, every gate is σ(bias) and the
	// candidate value is tanh(bias).
	block.InValue.Biases.Vector.AddScalar(float64(10))
	block.In.Biases.Vector.AddScalar(float64(10))
	block.Remember.Biases.Vector.AddScalar(float64(10))
	block.Clip = 1.5

	state := block.Start(1)
	in := c.MakeVector(1)
	for i := 0; i < 5; i++ {
		state = block.Step(state, in).State()
	}
	_, memory := block.SplitState(state.(PackedState).PackedVectors()[0])
	assertClose(t, vectorData(memory), []float64{1.5, 1.5}, 1e-8)

	block.Clip = 0
	state = block.Start(1)
	for i := 0; i < 5; i++ {
		state = block.Step(state, in).State()
	}
	_, memory = block.SplitState(state.(PackedState).PackedVectors()[0])
	for _, x := range vectorData(memory) {
		if x < 4.5 {
			t.Errorf("expected unclipped memory near 5 but got %f", x)
		}
	}
}

func TestClipRange(t *testing.T) {
	in := anydiff.NewVar(anyvec64.MakeVectorData([]float64{-3, -0.5, 0, 0.7, 2.5}))
	actual := clipRange(in, 1).Output()
	assertClose(t, vectorData(actual), []float64{-1, -0.5, 0, 0.7, 1}, 1e-8)

	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return clipRange(in, 1)
		},
		V: []*anydiff.Var{in},
	}
	checker.FullCheck(t)
}

func TestLSTMStep(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	block := NewLSTM(c, 1, 1, 0, Init{Scale: 0})
	block.InValue.InputWeights.Vector.SetData([]float64{1})

	in := anyvec64.MakeVectorData([]float64{0.5})
	res := block.Step(block.Start(1), in)

	sig := func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
	cell := sig(0) * math.Tanh(0.5)
	out := sig(0) * math.Tanh(cell)
	assertClose(t, vectorData(res.Output()), []float64{out}, 1e-8)

	packed := res.State().(PackedState).PackedVectors()[0]
	assertClose(t, vectorData(packed), []float64{out, cell}, 1e-8)
}

func TestGRUProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, inVars := randomTestSequence(c, 3)
	block := NewGRU(c, 3, 2, DefaultInit)
	if len(block.Parameters()) != 9 {
		t.Errorf("expected 9 parameters, but got %d", len(block.Parameters()))
	}
	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return Map(inSeq, block)
		},
		V: append(inVars, block.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestGRUStep(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	block := NewGRU(c, 1, 1, Init{Scale: 0})
	block.Candidate.InputWeights.Vector.SetData([]float64{1})

	in := anyvec64.MakeVectorData([]float64{2})
	res := block.Step(block.Start(1), in)

	// From a zero state, h' = (1-u)*tanh(x) with u = σ(1).
	u := 1 / (1 + math.Exp(-1))
	expected := (1 - u) * math.Tanh(2)
	assertClose(t, vectorData(res.Output()), []float64{expected}, 1e-8)
}

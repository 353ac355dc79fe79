package anyrnn

import (
	"testing"

	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyenc"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestBidirProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, inVars := randomTestSequence(c, 3)
	block := &Bidir{
		Forward:  NewLSTM(c, 3, 2, 0, DefaultInit),
		Backward: NewLSTM(c, 3, 3, 1, DefaultInit),
		Mixer:    anyenc.ConcatMixer{},
	}
	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return block.Apply(inSeq)
		},
		V: append(inVars, block.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestBidirApplyFinal(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, _ := randomTestSequence(c, 3)
	forw := NewLSTM(c, 3, 2, 0, DefaultInit)
	back := NewGRU(c, 3, 3, DefaultInit)
	block := &Bidir{Forward: forw, Backward: back, Mixer: anyenc.ConcatMixer{}}

	out, forwFinal, backFinal := block.ApplyFinal(inSeq, 4)
	expected := block.Apply(inSeq).Output()
	if len(out.Output()) != len(expected) {
		t.Fatalf("expected %d steps but got %d", len(expected), len(out.Output()))
	}
	for i, batch := range out.Output() {
		assertClose(t, vectorData(batch.Packed), vectorData(expected[i].Packed), 1e-8)
	}

	for i, seq := range anyseq.SeparateSeqs(inSeq.Output()) {
		fState := forw.Start(1)
		for _, x := range seq {
			fState = forw.Step(fState, x).State()
		}
		bState := back.Start(1)
		for j := len(seq) - 1; j >= 0; j-- {
			bState = back.Step(bState, seq[j]).State()
		}
		assertClose(t, vectorData(forwFinal[0].Slice(i*4, (i+1)*4)),
			vectorData(fState.(PackedState).PackedVectors()[0]), 1e-8)
		assertClose(t, vectorData(backFinal[0].Slice(i*3, (i+1)*3)),
			vectorData(bState.(PackedState).PackedVectors()[0]), 1e-8)
	}
}

func TestBidirEmpty(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, _ := randomTestSequenceLen(c, 3, 0, 0, 0)
	block := &Bidir{
		Forward:  NewGRU(c, 3, 2, DefaultInit),
		Backward: NewGRU(c, 3, 2, DefaultInit),
		Mixer:    anyenc.ConcatMixer{},
	}
	out, forw, back := block.ApplyFinal(inSeq, 3)
	if len(out.Output()) != 0 {
		t.Errorf("expected no timesteps but got %d", len(out.Output()))
	}
	assertClose(t, vectorData(forw[0]), make([]float64, 6), 0)
	assertClose(t, vectorData(back[0]), make([]float64, 6), 0)
}

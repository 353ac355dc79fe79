package anyrnn

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
)

// randomTestSequence generates a batch of sequences with
// different lengths, including an empty one.
//
// Every timestep is its own variable.
func randomTestSequence(c anyvec.Creator, inSize int) (anyseq.Seq, []*anydiff.Var) {
	return randomTestSequenceLen(c, inSize, 3, 1, 0, 2)
}

func randomTestSequenceLen(c anyvec.Creator, inSize int,
	lengths ...int) (anyseq.Seq, []*anydiff.Var) {
	var seqs [][]anyvec.Vector
	for _, length := range lengths {
		var seq []anyvec.Vector
		for j := 0; j < length; j++ {
			vec := c.MakeVector(inSize)
			anyvec.Rand(vec, anyvec.Normal, nil)
			seq = append(seq, vec)
		}
		seqs = append(seqs, seq)
	}

	joined := anyseq.ConstSeqList(c, seqs)

	var vars []*anydiff.Var
	resBatches := make([]*anyseq.ResBatch, len(joined.Output()))
	for i, x := range joined.Output() {
		v := anydiff.NewVar(x.Packed)
		vars = append(vars, v)
		resBatches[i] = &anyseq.ResBatch{Packed: v, Present: x.Present}
	}
	return anyseq.ResSeq(c, resBatches), vars
}

func vectorData(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	case []float64:
		return data
	default:
		panic("unsupported numeric type")
	}
}

func assertClose(t *testing.T, actual, expected []float64, prec float64) {
	t.Helper()
	if len(actual) != len(expected) {
		t.Fatalf("expected length %d but got %d", len(expected), len(actual))
	}
	for i, x := range expected {
		if math.IsNaN(actual[i]) || math.Abs(actual[i]-x) > prec {
			t.Fatalf("index %d: expected %f but got %f", i, x, actual[i])
		}
	}
}

package anyrnn

import (
	"errors"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyenc"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var g Gate
	serializer.RegisterTypedDeserializer(g.SerializerType(), DeserializeGate)
}

// An Init describes how new cells are randomized.
//
// Weight matrices and peepholes are drawn uniformly from
// [-Scale, Scale].
// Biases start at zero unless a cell says otherwise.
type Init struct {
	Scale float64

	// Rand is the source of randomness.
	// If nil, the global source is used.
	Rand *rand.Rand
}

// DefaultInit is the usual initialization range.
var DefaultInit = Init{Scale: 0.1}

func (i Init) randomize(v anyvec.Vector) {
	c := v.Creator()
	anyvec.Rand(v, anyvec.Uniform, i.Rand)
	v.Scale(c.MakeNumeric(2 * i.Scale))
	v.AddScalar(c.MakeNumeric(-i.Scale))
}

// A Gate computes
//
//     act(Wi*input + Ws*state + p⊙cell + b)
//
// for a batch, where the peephole term p⊙cell is only
// present in gates that have a Peephole.
type Gate struct {
	InputWeights *anydiff.Var
	StateWeights *anydiff.Var
	Biases       *anydiff.Var

	// Peephole may be nil.
	Peephole *anydiff.Var

	Activation anyenc.Activation
}

// NewGate creates a randomized gate mapping in inputs and
// a state of size state to size out.
func NewGate(c anyvec.Creator, in, state, out int, peephole bool,
	act anyenc.Activation, init Init) *Gate {
	res := &Gate{
		InputWeights: anydiff.NewVar(c.MakeVector(in * out)),
		StateWeights: anydiff.NewVar(c.MakeVector(state * out)),
		Biases:       anydiff.NewVar(c.MakeVector(out)),
		Activation:   act,
	}
	init.randomize(res.InputWeights.Vector)
	init.randomize(res.StateWeights.Vector)
	if peephole {
		res.Peephole = anydiff.NewVar(c.MakeVector(out))
		init.randomize(res.Peephole.Vector)
	}
	return res
}

// DeserializeGate deserializes a Gate.
// An empty peephole vector means the gate has none.
func DeserializeGate(d []byte) (*Gate, error) {
	var iw, sw, b, p *anyvecsave.S
	var act anyenc.Activation
	if err := serializer.DeserializeAny(d, &iw, &sw, &b, &p, &act); err != nil {
		return nil, essentials.AddCtx("deserialize Gate", err)
	}
	out := b.Vector.Len()
	if out == 0 || iw.Vector.Len()%out != 0 || sw.Vector.Len()%out != 0 {
		return nil, errors.New("deserialize Gate: invalid matrix dimensions")
	}
	res := &Gate{
		InputWeights: anydiff.NewVar(iw.Vector),
		StateWeights: anydiff.NewVar(sw.Vector),
		Biases:       anydiff.NewVar(b.Vector),
		Activation:   act,
	}
	if p.Vector.Len() != 0 {
		if p.Vector.Len() != out {
			return nil, errors.New("deserialize Gate: invalid peephole size")
		}
		res.Peephole = anydiff.NewVar(p.Vector)
	}
	return res, nil
}

// OutCount returns the size of the gate's output.
func (g *Gate) OutCount() int {
	return g.Biases.Vector.Len()
}

// Apply computes the gate for a batch of n rows.
// The cell argument is ignored if the gate has no
// peephole.
func (g *Gate) Apply(in, state, cell anydiff.Res, n int) anydiff.Res {
	out := g.OutCount()
	inCount := g.InputWeights.Vector.Len() / out
	stateCount := g.StateWeights.Vector.Len() / out
	sum := anydiff.Add(
		applyWeights(inCount, out, g.InputWeights, in),
		applyWeights(stateCount, out, g.StateWeights, state),
	)
	if g.Peephole != nil {
		sum = anydiff.Add(sum, anydiff.ScaleAddRepeated(cell, g.Peephole, g.Biases))
	} else {
		sum = anydiff.AddRepeated(sum, g.Biases)
	}
	return g.Activation.Apply(sum, n)
}

// Parameters returns the gate's parameters.
func (g *Gate) Parameters() []*anydiff.Var {
	res := []*anydiff.Var{g.InputWeights, g.StateWeights, g.Biases}
	if g.Peephole != nil {
		res = append(res, g.Peephole)
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a Gate with the serializer package.
func (g *Gate) SerializerType() string {
	return "github.com/unixpickle/anyenc/anyrnn.Gate"
}

// Serialize serializes the gate.
func (g *Gate) Serialize() ([]byte, error) {
	peephole := g.Biases.Vector.Creator().MakeVector(0)
	if g.Peephole != nil {
		peephole = g.Peephole.Vector
	}
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: g.InputWeights.Vector},
		&anyvecsave.S{Vector: g.StateWeights.Vector},
		&anyvecsave.S{Vector: g.Biases.Vector},
		&anyvecsave.S{Vector: peephole},
		g.Activation,
	)
}

// applyWeights multiplies a batch of row vectors by the
// transpose of an out-by-in matrix.
func applyWeights(in, out int, weights anydiff.Res, batch anydiff.Res) anydiff.Res {
	weightMat := &anydiff.Matrix{Data: weights, Rows: out, Cols: in}
	inMat := &anydiff.Matrix{Data: batch, Rows: batch.Output().Len() / in, Cols: in}
	return anydiff.MatMul(false, true, inMat, weightMat).Data
}

// splitCols splits a batch of n rows into the first cols1
// columns and the remaining cols2 columns.
func splitCols(n int, joined anydiff.Res, cols1, cols2 int) (anydiff.Res, anydiff.Res) {
	t := anydiff.Transpose(&anydiff.Matrix{Data: joined, Rows: n, Cols: cols1 + cols2})
	first := &anydiff.Matrix{Data: anydiff.Slice(t.Data, 0, cols1*n), Rows: cols1, Cols: n}
	second := &anydiff.Matrix{
		Data: anydiff.Slice(t.Data, cols1*n, (cols1+cols2)*n),
		Rows: cols2,
		Cols: n,
	}
	return anydiff.Transpose(first).Data, anydiff.Transpose(second).Data
}

// joinCols is the inverse of splitCols.
func joinCols(n int, a anydiff.Res, aCols int, b anydiff.Res, bCols int) anydiff.Res {
	at := anydiff.Transpose(&anydiff.Matrix{Data: a, Rows: n, Cols: aCols})
	bt := anydiff.Transpose(&anydiff.Matrix{Data: b, Rows: n, Cols: bCols})
	joined := &anydiff.Matrix{
		Data: anydiff.Concat(at.Data, bt.Data),
		Rows: aCols + bCols,
		Cols: n,
	}
	return anydiff.Transpose(joined).Data
}

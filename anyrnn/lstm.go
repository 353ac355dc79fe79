package anyrnn

import (
	"errors"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyenc"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const lstmRememberBias = 1

func init() {
	var lstm LSTM
	serializer.RegisterTypedDeserializer(lstm.SerializerType(), DeserializeLSTM)
}

// LSTM is a long short-term memory block with peephole
// connections, optional clipping of the memory cells and
// an optional output projection.
//
// The state of an LSTM is the pair (output, memory).
// It is packed as a single vector per sequence, with the
// OutCount output components followed by the CellCount
// memory components.
//
// Each timestep computes
//
//     i  = σ(Wi*x + Ui*h + pi⊙c + bi)
//     f  = σ(Wf*x + Uf*h + pf⊙c + bf)
//     c' = clip(f⊙c + i⊙tanh(Wg*x + Ug*h + bg))
//     o  = σ(Wo*x + Uo*h + po⊙c' + bo)
//     h' = P*(o⊙tanh(c'))
//
// where P is the identity when there is no projection.
type LSTM struct {
	InCount   int
	CellCount int
	OutCount  int

	InValue  *Gate
	In       *Gate
	Remember *Gate
	Output   *Gate

	// Projection is an OutCount-by-CellCount matrix, or
	// nil if outputs are not projected.
	Projection *anydiff.Var

	// Clip bounds the memory cells to [-Clip, Clip].
	// Zero disables clipping.
	Clip float64
}

// NewLSTM creates a new, randomized LSTM.
//
// If proj is non-zero, outputs are projected down to proj
// components.
// The remember gates of the LSTM are initially biased to
// remember things.
func NewLSTM(c anyvec.Creator, in, cells, proj int, init Init) *LSTM {
	out := cells
	if proj > 0 {
		out = proj
	}
	res := &LSTM{
		InCount:   in,
		CellCount: cells,
		OutCount:  out,
		InValue:   NewGate(c, in, out, cells, false, anyenc.Tanh, init),
		In:        NewGate(c, in, out, cells, true, anyenc.Sigmoid, init),
		Remember:  NewGate(c, in, out, cells, true, anyenc.Sigmoid, init),
		Output:    NewGate(c, in, out, cells, true, anyenc.Sigmoid, init),
	}
	res.Remember.Biases.Vector.AddScalar(c.MakeNumeric(lstmRememberBias))
	if proj > 0 {
		res.Projection = anydiff.NewVar(c.MakeVector(proj * cells))
		init.randomize(res.Projection.Vector)
	}
	return res
}

// DeserializeLSTM deserializes an LSTM.
func DeserializeLSTM(d []byte) (*LSTM, error) {
	var inVal, in, rem, out *Gate
	var proj *anyvecsave.S
	var clip serializer.Float64
	err := serializer.DeserializeAny(d, &inVal, &in, &rem, &out, &proj, &clip)
	if err != nil {
		return nil, essentials.AddCtx("deserialize LSTM", err)
	}
	cells := inVal.OutCount()
	outCount := inVal.StateWeights.Vector.Len() / cells
	res := &LSTM{
		InCount:   inVal.InputWeights.Vector.Len() / cells,
		CellCount: cells,
		OutCount:  outCount,
		InValue:   inVal,
		In:        in,
		Remember:  rem,
		Output:    out,
		Clip:      float64(clip),
	}
	if proj.Vector.Len() != 0 {
		if proj.Vector.Len() != cells*outCount {
			return nil, errors.New("deserialize LSTM: invalid projection size")
		}
		res.Projection = anydiff.NewVar(proj.Vector)
	} else if outCount != cells {
		return nil, errors.New("deserialize LSTM: missing projection")
	}
	return res, nil
}

// Start produces a zero start state.
func (l *LSTM) Start(n int) State {
	return l.funcBlock().Start(n)
}

// PropagateStart does nothing, since the start state is
// constant.
func (l *LSTM) PropagateStart(s StateGrad, g anydiff.Grad) {
}

// Step applies the block for a single timestep.
func (l *LSTM) Step(s State, in anyvec.Vector) Res {
	return l.funcBlock().Step(s, in)
}

// SplitState splits a batch of packed states into the
// outputs and the memory cells.
func (l *LSTM) SplitState(packed anyvec.Vector) (out, memory anyvec.Vector) {
	n := packed.Len() / (l.OutCount + l.CellCount)
	o, m := splitCols(n, anydiff.NewConst(packed), l.OutCount, l.CellCount)
	return o.Output(), m.Output()
}

// Parameters returns the parameters of the block.
func (l *LSTM) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, g := range []*Gate{l.InValue, l.In, l.Remember, l.Output} {
		res = append(res, g.Parameters()...)
	}
	if l.Projection != nil {
		res = append(res, l.Projection)
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// an LSTM with the serializer package.
func (l *LSTM) SerializerType() string {
	return "github.com/unixpickle/anyenc/anyrnn.LSTM"
}

// Serialize serializes the LSTM.
// A missing projection is stored as an empty vector.
func (l *LSTM) Serialize() ([]byte, error) {
	proj := l.InValue.Biases.Vector.Creator().MakeVector(0)
	if l.Projection != nil {
		proj = l.Projection.Vector
	}
	return serializer.SerializeAny(l.InValue, l.In, l.Remember, l.Output,
		&anyvecsave.S{Vector: proj}, serializer.Float64(l.Clip))
}

func (l *LSTM) funcBlock() *FuncBlock {
	return &FuncBlock{
		Creator:   l.InValue.Biases.Vector.Creator(),
		StateSize: l.OutCount + l.CellCount,
		Func:      l.step,
	}
}

func (l *LSTM) step(in, state anydiff.Res, n int) (out, newState anydiff.Res) {
	lastOut, lastCell := splitCols(n, state, l.OutCount, l.CellCount)
	inVal := l.InValue.Apply(in, lastOut, nil, n)
	inGate := l.In.Apply(in, lastOut, lastCell, n)
	remGate := l.Remember.Apply(in, lastOut, lastCell, n)
	cell := anydiff.Add(anydiff.Mul(remGate, lastCell), anydiff.Mul(inGate, inVal))
	if l.Clip > 0 {
		cell = clipRange(cell, l.Clip)
	}
	outGate := l.Output.Apply(in, lastOut, cell, n)
	out = anydiff.Mul(outGate, anydiff.Tanh(cell))
	if l.Projection != nil {
		out = applyWeights(l.CellCount, l.OutCount, l.Projection, out)
	}
	return out, joinCols(n, out, l.OutCount, cell, l.CellCount)
}

// clipRange bounds every component to [-bound, bound].
func clipRange(x anydiff.Res, bound float64) anydiff.Res {
	c := x.Output().Creator()
	lo := c.MakeNumeric(-bound)
	hi := c.MakeNumeric(bound)
	neg := c.MakeNumeric(-1)

	// max(x, -bound)
	aboveLo := anydiff.AddScalar(anydiff.ClipPos(anydiff.AddScalar(x, hi)), lo)

	// min(y, bound) = bound - max(bound - y, 0)
	excess := anydiff.ClipPos(anydiff.AddScalar(anydiff.Scale(aboveLo, neg), hi))
	return anydiff.AddScalar(anydiff.Scale(excess, neg), hi)
}

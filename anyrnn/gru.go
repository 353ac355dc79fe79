package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyenc"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const gruGateBias = 1

func init() {
	var g GRU
	serializer.RegisterTypedDeserializer(g.SerializerType(), DeserializeGRU)
}

// GRU is a gated recurrent unit.
//
// The state of a GRU is its output, and each timestep
// computes
//
//     r  = σ(Wr*x + Ur*h + br)
//     u  = σ(Wu*x + Uu*h + bu)
//     h' = u⊙h + (1-u)⊙tanh(Wc*x + Uc*(r⊙h) + bc)
type GRU struct {
	InCount  int
	OutCount int

	Reset     *Gate
	Update    *Gate
	Candidate *Gate
}

// NewGRU creates a new, randomized GRU.
//
// The reset and update gates start out biased open.
func NewGRU(c anyvec.Creator, in, out int, init Init) *GRU {
	res := &GRU{
		InCount:   in,
		OutCount:  out,
		Reset:     NewGate(c, in, out, out, false, anyenc.Sigmoid, init),
		Update:    NewGate(c, in, out, out, false, anyenc.Sigmoid, init),
		Candidate: NewGate(c, in, out, out, false, anyenc.Tanh, init),
	}
	res.Reset.Biases.Vector.AddScalar(c.MakeNumeric(gruGateBias))
	res.Update.Biases.Vector.AddScalar(c.MakeNumeric(gruGateBias))
	return res
}

// DeserializeGRU deserializes a GRU.
func DeserializeGRU(d []byte) (*GRU, error) {
	var reset, update, cand *Gate
	if err := serializer.DeserializeAny(d, &reset, &update, &cand); err != nil {
		return nil, essentials.AddCtx("deserialize GRU", err)
	}
	out := cand.OutCount()
	return &GRU{
		InCount:   cand.InputWeights.Vector.Len() / out,
		OutCount:  out,
		Reset:     reset,
		Update:    update,
		Candidate: cand,
	}, nil
}

// Start produces a zero start state.
func (g *GRU) Start(n int) State {
	return g.funcBlock().Start(n)
}

// PropagateStart does nothing, since the start state is
// constant.
func (g *GRU) PropagateStart(s StateGrad, grad anydiff.Grad) {
}

// Step applies the block for a single timestep.
func (g *GRU) Step(s State, in anyvec.Vector) Res {
	return g.funcBlock().Step(s, in)
}

// Parameters returns the parameters of the block.
func (g *GRU) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, gate := range []*Gate{g.Reset, g.Update, g.Candidate} {
		res = append(res, gate.Parameters()...)
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a GRU with the serializer package.
func (g *GRU) SerializerType() string {
	return "github.com/unixpickle/anyenc/anyrnn.GRU"
}

// Serialize serializes the GRU.
func (g *GRU) Serialize() ([]byte, error) {
	return serializer.SerializeAny(g.Reset, g.Update, g.Candidate)
}

func (g *GRU) funcBlock() *FuncBlock {
	return &FuncBlock{
		Creator:   g.Candidate.Biases.Vector.Creator(),
		StateSize: g.OutCount,
		Func:      g.step,
	}
}

func (g *GRU) step(in, state anydiff.Res, n int) (out, newState anydiff.Res) {
	reset := g.Reset.Apply(in, state, nil, n)
	update := g.Update.Apply(in, state, nil, n)
	cand := g.Candidate.Apply(in, anydiff.Mul(reset, state), nil, n)
	newState = anydiff.Add(
		anydiff.Mul(update, state),
		anydiff.Mul(anydiff.Complement(update), cand),
	)
	return nil, newState
}

package encoder

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyenc/anyrnn"
	"github.com/unixpickle/anyvec"
)

// GRU is a stack of unidirectional GRU layers.
//
// The Clip and Proj settings do not apply to GRUs and are
// ignored.
type GRU struct {
	*base

	Cells []*anyrnn.GRU
	Block anyrnn.Stack
}

// NewGRU creates a randomly initialized GRU encoder.
func NewGRU(c anyvec.Creator, cfg Config) (*GRU, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res := &GRU{base: newBase(GRUKind, cfg, cfg.Cells)}

	weights := cfg.weightInit()
	inSize := cfg.InputSize
	for i := 0; i < cfg.Layers; i++ {
		cell := anyrnn.NewGRU(c, inSize, cfg.Cells, weights)
		res.Cells = append(res.Cells, cell)
		res.Block = append(res.Block, anyrnn.WrapOutput(cell, res.layerOutput(i)))
		inSize = cfg.Cells
	}

	res.logBuilt(res.Parameters())
	return res, nil
}

// Encode encodes the batch.
func (g *GRU) Encode(in *Batch, lengths []int) (*Output, error) {
	return g.encode(in, lengths, g.traverse)
}

// Parameters returns the parameters of every layer,
// first layer first.
func (g *GRU) Parameters() []*anydiff.Var {
	return g.Block.Parameters()
}

func (g *GRU) traverse(in anyseq.Seq, n int) (anyseq.Seq, []LayerState) {
	out, finals := anyrnn.MapFinal(in, g.Block, n)
	states := make([]LayerState, len(g.Cells))
	for i := range g.Cells {
		states[i].Forward = CellState{Hidden: finals[i]}
	}
	return out, states
}

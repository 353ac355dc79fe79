package encoder

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyenc/anyrnn"
	"github.com/unixpickle/anyvec"
)

// LSTM is a stack of unidirectional LSTM layers.
//
// Every layer is projected when a projection size is
// configured, and the final state covers every layer.
type LSTM struct {
	*base

	Cells []*anyrnn.LSTM
	Block anyrnn.Stack
}

// NewLSTM creates a randomly initialized LSTM encoder.
func NewLSTM(c anyvec.Creator, cfg Config) (*LSTM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	outSize := cfg.Cells
	if cfg.Proj > 0 {
		outSize = cfg.Proj
	}
	res := &LSTM{base: newBase(LSTMKind, cfg, outSize)}

	weights := cfg.weightInit()
	inSize := cfg.InputSize
	for i := 0; i < cfg.Layers; i++ {
		cell := anyrnn.NewLSTM(c, inSize, cfg.Cells, cfg.Proj, weights)
		cell.Clip = cfg.Clip
		res.Cells = append(res.Cells, cell)
		res.Block = append(res.Block, anyrnn.WrapOutput(cell, res.layerOutput(i)))
		inSize = outSize
	}

	res.logBuilt(res.Parameters())
	return res, nil
}

// Encode encodes the batch.
func (l *LSTM) Encode(in *Batch, lengths []int) (*Output, error) {
	return l.encode(in, lengths, l.traverse)
}

// Parameters returns the parameters of every layer,
// first layer first.
func (l *LSTM) Parameters() []*anydiff.Var {
	return l.Block.Parameters()
}

func (l *LSTM) traverse(in anyseq.Seq, n int) (anyseq.Seq, []LayerState) {
	out, finals := anyrnn.MapFinal(in, l.Block, n)
	states := make([]LayerState, len(l.Cells))
	for i, cell := range l.Cells {
		states[i].Forward = lstmCellState(cell, finals[i])
	}
	return out, states
}

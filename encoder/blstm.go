package encoder

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyenc"
	"github.com/unixpickle/anyenc/anyrnn"
	"github.com/unixpickle/anyvec"
)

// BLSTM is a stack of bidirectional LSTM layers.
//
// Each layer concatenates the output of a forward LSTM
// with the output of a backward LSTM, forward first.
// Only the backward LSTMs are projected.
//
// The final state only covers the last layer.
type BLSTM struct {
	*base

	Layers []*anyrnn.Bidir

	forward  []*anyrnn.LSTM
	backward []*anyrnn.LSTM
}

// NewBLSTM creates a randomly initialized BLSTM encoder.
func NewBLSTM(c anyvec.Creator, cfg Config) (*BLSTM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backOut := cfg.Cells
	if cfg.Proj > 0 {
		backOut = cfg.Proj
	}
	res := &BLSTM{base: newBase(BLSTMKind, cfg, cfg.Cells+backOut)}

	weights := cfg.weightInit()
	inSize := cfg.InputSize
	for i := 0; i < cfg.Layers; i++ {
		forw := anyrnn.NewLSTM(c, inSize, cfg.Cells, 0, weights)
		back := anyrnn.NewLSTM(c, inSize, cfg.Cells, cfg.Proj, weights)
		forw.Clip = cfg.Clip
		back.Clip = cfg.Clip
		res.forward = append(res.forward, forw)
		res.backward = append(res.backward, back)
		res.Layers = append(res.Layers, &anyrnn.Bidir{
			Forward:  anyrnn.WrapOutput(forw, res.hiddenDropout()),
			Backward: anyrnn.WrapOutput(back, res.hiddenDropout()),
			Mixer:    anyenc.ConcatMixer{},
		})
		inSize = res.outSize
	}

	res.logBuilt(res.Parameters())
	return res, nil
}

// Encode encodes the batch.
func (b *BLSTM) Encode(in *Batch, lengths []int) (*Output, error) {
	return b.encode(in, lengths, b.traverse)
}

// Parameters returns the parameters of every layer,
// first layer first.
func (b *BLSTM) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, l := range b.Layers {
		res = append(res, l.Parameters()...)
	}
	return res
}

func (b *BLSTM) traverse(in anyseq.Seq, n int) (anyseq.Seq, []LayerState) {
	var forwFinal, backFinal []anyvec.Vector
	for i, layer := range b.Layers {
		in, forwFinal, backFinal = layer.ApplyFinal(in, n)
		if b.cfg.Debug && len(in.Output()) > 0 {
			in = anyseq.Map(in, b.debugLayer(i).Apply)
		}
	}

	last := len(b.Layers) - 1
	forward := lstmCellState(b.forward[last], forwFinal[0])
	backward := lstmCellState(b.backward[last], backFinal[0])
	return in, []LayerState{{Forward: forward, Backward: &backward}}
}

func lstmCellState(l *anyrnn.LSTM, packed anyvec.Vector) CellState {
	hidden, memory := l.SplitState(packed)
	return CellState{Hidden: hidden, Memory: memory}
}

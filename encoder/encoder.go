// Package encoder implements recurrent sequence encoders
// for attention-based sequence-to-sequence models.
//
// An Encoder reads a padded batch of feature sequences
// and produces one hidden vector per timestep (the values
// an attention mechanism attends over) together with the
// final recurrent state of every sequence, which a decoder
// may use as its own start state.
package encoder

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyenc"
	"github.com/unixpickle/anyvec"
)

// An Encoder encodes batches of variable-length
// sequences.
//
// Encode is safe to call from multiple Goroutines at
// once, but SetTraining must not overlap with it.
type Encoder interface {
	// Encode encodes a padded batch.
	// The lengths slice has one entry per sequence.
	Encode(in *Batch, lengths []int) (*Output, error)

	// Parameters returns the learnable variables of the
	// encoder, which are also the variables that the
	// Outputs of Encode depend on.
	Parameters() []*anydiff.Var

	// OutSize returns the width of each output vector.
	OutSize() int

	// InputSize returns the number of features the
	// encoder expects per timestep.
	InputSize() int

	// SetTraining turns dropout on or off.
	// New encoders are in training mode.
	SetTraining(training bool)
}

// Kind identifies an encoder architecture.
type Kind int

const (
	BLSTMKind Kind = iota
	LSTMKind
	GRUKind
)

// ParseKind parses the name of a Kind.
// Names are case-insensitive.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "blstm":
		return BLSTMKind, nil
	case "lstm":
		return LSTMKind, nil
	case "gru":
		return GRUKind, nil
	default:
		return 0, &ConfigError{Field: "Kind", Reason: "unknown encoder: " + name}
	}
}

// String returns the name of the Kind.
func (k Kind) String() string {
	switch k {
	case BLSTMKind:
		return "BLSTM"
	case LSTMKind:
		return "LSTM"
	case GRUKind:
		return "GRU"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// New creates an encoder of the given Kind.
func New(c anyvec.Creator, k Kind, cfg Config) (Encoder, error) {
	var res Encoder
	var err error
	switch k {
	case BLSTMKind:
		res, err = NewBLSTM(c, cfg)
	case LSTMKind:
		res, err = NewLSTM(c, cfg)
	case GRUKind:
		res, err = NewGRU(c, cfg)
	default:
		err = &ConfigError{Field: "Kind", Reason: "unknown encoder: " + k.String()}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// A Batch is a padded batch of input sequences.
type Batch struct {
	// Data stores Size*MaxTime*Dim components, laid out
	// so that timestep t of sequence b starts at index
	// (b*MaxTime+t)*Dim.
	Data anydiff.Res

	Size    int
	MaxTime int
	Dim     int
}

// NewBatch creates a Batch from per-sequence inputs,
// padding every sequence with zeros to the longest one.
// It also returns the length of each sequence.
func NewBatch(c anyvec.Creator, seqs [][]anyvec.Vector, dim int) (*Batch, []int) {
	lengths := make([]int, len(seqs))
	var maxTime int
	for i, seq := range seqs {
		lengths[i] = len(seq)
		if len(seq) > maxTime {
			maxTime = len(seq)
		}
	}
	data := c.MakeVector(len(seqs) * maxTime * dim)
	for b, seq := range seqs {
		for t, vec := range seq {
			start := (b*maxTime + t) * dim
			data.Slice(start, start+dim).Set(vec)
		}
	}
	return &Batch{
		Data:    anydiff.NewConst(data),
		Size:    len(seqs),
		MaxTime: maxTime,
		Dim:     dim,
	}, lengths
}

// CellState is the final state of one recurrent cell
// for a whole batch.
//
// Both vectors are packed one row per sequence.
// Memory is nil for cells without memory, such as GRUs.
type CellState struct {
	Hidden anyvec.Vector
	Memory anyvec.Vector
}

// LayerState is the final state of one encoder layer.
// Backward is nil for unidirectional encoders.
type LayerState struct {
	Forward  CellState
	Backward *CellState
}

// Output is the result of encoding a batch.
type Output struct {
	// Outputs is a padded [Size][MaxTime][Width] tensor.
	// Components past the end of a sequence are zero.
	Outputs anydiff.Res

	// Seq contains the same values as Outputs, without
	// the padding.
	Seq anyseq.Seq

	// FinalState stores the state in which each sequence
	// left the recurrent layers.
	// These vectors are not differentiable.
	FinalState []LayerState

	// AttentionValues is the same as Outputs.
	AttentionValues anydiff.Res

	// AttentionValuesLength is the lengths slice which was
	// passed to Encode.
	AttentionValuesLength []int

	Size    int
	MaxTime int
	Width   int
}

// traverser runs the recurrent layers of an encoder on
// a ragged batch of n sequences.
type traverser func(in anyseq.Seq, n int) (anyseq.Seq, []LayerState)

// base implements the parts of an encoder which do not
// depend on the architecture.
type base struct {
	kind      Kind
	cfg       Config
	log       logrus.FieldLogger
	inDropout *anyenc.Dropout
	outSize   int

	// dropouts lists every dropout layer of the encoder,
	// including inDropout.
	dropouts []*anyenc.Dropout
}

func newBase(k Kind, cfg Config, outSize int) *base {
	inDropout := anyenc.NewDropout(cfg.InputKeepProb)
	return &base{
		kind:      k,
		cfg:       cfg,
		log:       cfg.logger().WithField("encoder", k.String()),
		inDropout: inDropout,
		outSize:   outSize,
		dropouts:  []*anyenc.Dropout{inDropout},
	}
}

// OutSize returns the width of each output vector.
func (b *base) OutSize() int {
	return b.outSize
}

// InputSize returns the number of features the encoder
// expects per timestep.
func (b *base) InputSize() int {
	return b.cfg.InputSize
}

// Config returns a copy of the encoder's configuration.
func (b *base) Config() Config {
	return b.cfg
}

// SetTraining enables or disables every dropout layer.
func (b *base) SetTraining(training bool) {
	for _, d := range b.dropouts {
		d.Enabled = training
	}
	b.log.WithField("training", training).Debug("set mode")
}

// hiddenDropout creates a dropout layer for cell outputs.
func (b *base) hiddenDropout() *anyenc.Dropout {
	d := anyenc.NewDropout(b.cfg.HiddenKeepProb)
	b.dropouts = append(b.dropouts, d)
	return d
}

// layerOutput creates the layer applied to every cell
// output.
func (b *base) layerOutput(layer int) anyenc.Net {
	net := anyenc.Net{b.hiddenDropout()}
	if b.cfg.Debug {
		net = append(net, b.debugLayer(layer))
	}
	return net
}

func (b *base) debugLayer(layer int) *anyenc.Debug {
	return &anyenc.Debug{
		Logger:        b.log,
		ID:            fmt.Sprintf("%s layer %d", b.kind, layer),
		PrintMean:     true,
		PrintVariance: true,
	}
}

func (b *base) logBuilt(params []*anydiff.Var) {
	var count int
	for _, p := range params {
		count += p.Vector.Len()
	}
	b.log.WithFields(logrus.Fields{
		"layers":     b.cfg.Layers,
		"cells":      b.cfg.Cells,
		"width":      b.outSize,
		"parameters": count,
	}).Debug("built encoder")
}

func (b *base) encode(in *Batch, lengths []int, f traverser) (*Output, error) {
	if err := b.checkShape(in, lengths); err != nil {
		return nil, err
	}

	var seq anyseq.Seq = newPaddedSeq(in.Data, lengths, in.MaxTime, in.Dim)
	if b.inDropout.Active() && len(seq.Output()) > 0 {
		seq = anyseq.Map(seq, b.inDropout.Apply)
	}
	outSeq, finals := f(seq, in.Size)
	outputs := newPaddedRes(outSeq, lengths, in.MaxTime, b.outSize)

	b.log.WithFields(logrus.Fields{
		"batch":    in.Size,
		"max_time": in.MaxTime,
		"steps":    len(outSeq.Output()),
	}).Debug("encoded batch")

	return &Output{
		Outputs:               outputs,
		Seq:                   outSeq,
		FinalState:            finals,
		AttentionValues:       outputs,
		AttentionValuesLength: lengths,
		Size:                  in.Size,
		MaxTime:               in.MaxTime,
		Width:                 b.outSize,
	}, nil
}

func (b *base) checkShape(in *Batch, lengths []int) error {
	switch {
	case in == nil || in.Data == nil:
		return shapeErrorf("missing input data")
	case in.Size < 1:
		return shapeErrorf("batch size %d is not positive", in.Size)
	case in.MaxTime < 0:
		return shapeErrorf("negative max time %d", in.MaxTime)
	case in.Dim != b.cfg.InputSize:
		return shapeErrorf("input size %d should be %d", in.Dim, b.cfg.InputSize)
	case in.Data.Output().Len() != in.Size*in.MaxTime*in.Dim:
		return shapeErrorf("data length %d should be %d", in.Data.Output().Len(),
			in.Size*in.MaxTime*in.Dim)
	case len(lengths) != in.Size:
		return shapeErrorf("got %d lengths for %d sequences", len(lengths), in.Size)
	}
	for i, l := range lengths {
		if l < 0 || l > in.MaxTime {
			return shapeErrorf("length %d of sequence %d is outside [0, %d]", l, i,
				in.MaxTime)
		}
	}
	return nil
}

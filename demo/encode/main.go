// Command encode builds a sequence encoder and runs it on
// a random batch of variable-length sequences.
package main

import (
	"flag"
	"io/ioutil"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyenc/encoder"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

func main() {
	var kindName, markupPath, logLevel string
	var cfg encoder.Config
	var batchSize, maxTime int
	var backprop bool

	def := encoder.DefaultConfig(40, 64)
	flag.StringVar(&kindName, "kind", "blstm", "encoder kind (blstm, lstm or gru)")
	flag.StringVar(&markupPath, "markup", "", "markup file describing the encoder")
	flag.IntVar(&cfg.InputSize, "input", def.InputSize, "features per timestep")
	flag.IntVar(&cfg.Cells, "cells", def.Cells, "hidden units per cell")
	flag.IntVar(&cfg.Layers, "layers", 2, "recurrent layers")
	flag.Float64Var(&cfg.InputKeepProb, "inkeep", def.InputKeepProb, "input keep probability")
	flag.Float64Var(&cfg.HiddenKeepProb, "hidkeep", def.HiddenKeepProb,
		"hidden keep probability")
	flag.Float64Var(&cfg.InitRange, "init", def.InitRange, "weight initialization range")
	flag.Float64Var(&cfg.Clip, "clip", def.Clip, "LSTM cell clip (0 to disable)")
	flag.IntVar(&cfg.Proj, "proj", 0, "LSTM projection size (0 for none)")
	flag.Int64Var(&cfg.Seed, "seed", 1, "weight initialization seed")
	flag.BoolVar(&cfg.Debug, "debug", false, "log per-layer statistics")
	flag.IntVar(&batchSize, "batch", 4, "sequences per batch")
	flag.IntVar(&maxTime, "maxtime", 20, "maximum sequence length")
	flag.BoolVar(&backprop, "backprop", false, "back-propagate through the outputs")
	flag.StringVar(&logLevel, "loglevel", "info", "log level")
	flag.Parse()

	log := logrus.New()
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if level, err := logrus.ParseLevel(logLevel); err != nil {
		log.WithError(err).Fatal("bad log level")
	} else {
		log.SetLevel(level)
	}
	cfg.Logger = log

	c := anyvec32.CurrentCreator()
	enc, err := buildEncoder(c, kindName, markupPath, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to build encoder")
	}

	batch, lengths, inVar := randomBatch(c, enc.InputSize(), batchSize, maxTime)
	out, err := enc.Encode(batch, lengths)
	if err != nil {
		log.WithError(err).Fatal("failed to encode")
	}

	log.WithFields(logrus.Fields{
		"lengths": lengths,
		"width":   out.Width,
		"layers":  len(out.FinalState),
		"steps":   len(out.Seq.Output()),
	}).Info("encoded batch")
	for i, state := range out.FinalState {
		fields := logrus.Fields{
			"layer":        i,
			"forward_norm": norm(state.Forward.Hidden),
		}
		if state.Backward != nil {
			fields["backward_norm"] = norm(state.Backward.Hidden)
		}
		log.WithFields(fields).Info("final state")
	}

	if backprop {
		grad := anydiff.NewGrad(append(enc.Parameters(), inVar)...)
		upstream := c.MakeVector(out.Outputs.Output().Len())
		upstream.AddScalar(c.MakeNumeric(1))
		out.Outputs.Propagate(upstream, grad)
		log.WithFields(logrus.Fields{
			"input_grad_norm": norm(grad[inVar]),
			"parameters":      len(enc.Parameters()),
		}).Info("back-propagated")
	}
}

func buildEncoder(c anyvec.Creator, kindName, markupPath string,
	cfg encoder.Config) (encoder.Encoder, error) {
	if markupPath != "" {
		code, err := ioutil.ReadFile(markupPath)
		if err != nil {
			return nil, err
		}
		enc, err := encoder.FromMarkup(c, string(code), cfg)
		if err != nil {
			return nil, err
		}
		return enc, nil
	}
	kind, err := encoder.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	return encoder.New(c, kind, cfg)
}

// randomBatch creates a batch of normally distributed
// inputs with random lengths.
func randomBatch(c anyvec.Creator, inSize, n,
	maxTime int) (*encoder.Batch, []int, *anydiff.Var) {
	lengths := make([]int, n)
	for i := range lengths {
		lengths[i] = rand.Intn(maxTime + 1)
	}
	data := c.MakeVector(n * maxTime * inSize)
	anyvec.Rand(data, anyvec.Normal, nil)
	inVar := anydiff.NewVar(data)
	return &encoder.Batch{
		Data:    inVar,
		Size:    n,
		MaxTime: maxTime,
		Dim:     inSize,
	}, lengths, inVar
}

func norm(v anyvec.Vector) float64 {
	switch sq := v.Dot(v).(type) {
	case float32:
		return math.Sqrt(float64(sq))
	case float64:
		return math.Sqrt(sq)
	default:
		panic("unsupported numeric type")
	}
}

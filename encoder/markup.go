package encoder

import (
	"errors"
	"fmt"
	"math"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/convmarkup"
	"github.com/unixpickle/essentials"
)

// FromMarkup creates an encoder from a markup file.
//
// The file starts with an Input block giving the feature
// dimensions, followed by exactly one BLSTM, LSTM or GRU
// block.
// For example:
//
//     Input(w=1, h=1, d=40)
//     BLSTM(cells=256, layers=3, inkeep=0.9, hidkeep=0.8)
//
// Encoder blocks take the attributes cells (required),
// layers, inkeep, hidkeep, init, clip, proj and seed.
// Attributes override the corresponding fields of base,
// and InputSize comes from the input dimensions.
// Logger and Debug are always taken from base.
// Pass DefaultConfig(0, 0) for the usual defaults.
//
// Invalid attributes produce a *ConfigError.
func FromMarkup(c anyvec.Creator, code string, base Config) (Encoder, error) {
	parsed, err := convmarkup.Parse(code)
	if err != nil {
		return nil, essentials.AddCtx("parse markup", err)
	}
	block, err := parsed.Block(convmarkup.Dims{}, MarkupCreators())
	if err != nil {
		return nil, essentials.AddCtx("make markup block", err)
	}
	chain := convmarkup.RealizerChain{&realizer{}, convmarkup.MetaRealizer{}}
	instance, _, err := chain.Realize(convmarkup.Dims{}, block)
	if err != nil {
		return nil, essentials.AddCtx("realize markup block", err)
	}
	desc := instance.(*markupBlock)
	k, err := ParseKind(desc.Name)
	if err != nil {
		return nil, err
	}
	cfg, err := desc.config(base)
	if err != nil {
		return nil, err
	}
	return New(c, k, cfg)
}

// MarkupCreators returns the convmarkup creators for
// encoder markup, including the defaults from convmarkup.
func MarkupCreators() map[string]convmarkup.Creator {
	def := convmarkup.DefaultCreators()
	for _, k := range []Kind{BLSTMKind, LSTMKind, GRUKind} {
		def[k.String()] = markupCreator(k.String())
	}
	return def
}

type realizer struct{}

func (r *realizer) Realize(ch convmarkup.RealizerChain, d convmarkup.Dims,
	b convmarkup.Block) (interface{}, error) {
	switch b := b.(type) {
	case *convmarkup.Root:
		return r.root(ch, d, b.Children)
	case *markupBlock:
		res := *b
		res.In = d
		return &res, nil
	default:
		return nil, convmarkup.ErrUnsupportedBlock
	}
}

func (r *realizer) root(ch convmarkup.RealizerChain, d convmarkup.Dims,
	blocks []convmarkup.Block) (*markupBlock, error) {
	var res *markupBlock
	for _, child := range blocks {
		obj, _, err := ch.Realize(d, child)
		if err != nil {
			return nil, err
		}
		d = child.OutDims()
		if obj == nil {
			continue
		}
		enc, ok := obj.(*markupBlock)
		if !ok {
			return nil, fmt.Errorf("not an encoder block: %T", obj)
		} else if res != nil {
			return nil, errors.New("multiple encoder blocks")
		}
		res = enc
	}
	if res == nil {
		return nil, errors.New("missing encoder block")
	}
	return res, nil
}

type markupBlock struct {
	Name string
	In   convmarkup.Dims
	Attr map[string]float64
}

func markupCreator(name string) convmarkup.Creator {
	return func(in convmarkup.Dims, attr map[string]float64,
		children []convmarkup.Block) (convmarkup.Block, error) {
		if len(children) > 0 {
			return nil, convmarkup.ErrUnexpectedChildren
		}
		return &markupBlock{Name: name, In: in, Attr: attr}, nil
	}
}

func (m *markupBlock) Type() string {
	return m.Name
}

func (m *markupBlock) OutDims() convmarkup.Dims {
	cells := int(m.Attr["cells"])
	out := cells
	if proj := int(m.Attr["proj"]); proj > 0 && m.Name != GRUKind.String() {
		if m.Name == BLSTMKind.String() {
			out = cells + proj
		} else {
			out = proj
		}
	} else if m.Name == BLSTMKind.String() {
		out = 2 * cells
	}
	return convmarkup.Dims{Width: 1, Height: 1, Depth: out}
}

func (m *markupBlock) config(base Config) (Config, error) {
	cfg := base
	cfg.InputSize = m.In.Volume()
	if _, ok := m.Attr["cells"]; !ok {
		return cfg, &ConfigError{Field: "cells", Reason: "missing attribute"}
	}
	for name, val := range m.Attr {
		var err error
		switch name {
		case "cells":
			cfg.Cells, err = intAttr(name, val)
		case "layers":
			cfg.Layers, err = intAttr(name, val)
		case "proj":
			cfg.Proj, err = intAttr(name, val)
		case "seed":
			var seed int
			seed, err = intAttr(name, val)
			cfg.Seed = int64(seed)
		case "inkeep":
			cfg.InputKeepProb = val
		case "hidkeep":
			cfg.HiddenKeepProb = val
		case "init":
			cfg.InitRange = val
		case "clip":
			cfg.Clip = val
		default:
			err = &ConfigError{Field: name, Reason: "unexpected attribute"}
		}
		if err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func intAttr(name string, val float64) (int, error) {
	if math.Floor(val) != val {
		return 0, &ConfigError{Field: name, Reason: "must be an integer"}
	}
	return int(val), nil
}

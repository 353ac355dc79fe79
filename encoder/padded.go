package encoder

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// paddedSeq views a padded [B][T][D] tensor as a ragged
// sequence batch.
// Sequence b is present at timestep t iff t < lengths[b],
// so padding never makes it into the batches.
type paddedSeq struct {
	In      anydiff.Res
	Lengths []int
	MaxTime int
	Dim     int
	Out     []*anyseq.Batch
}

func newPaddedSeq(in anydiff.Res, lengths []int, maxTime, dim int) *paddedSeq {
	res := &paddedSeq{In: in, Lengths: lengths, MaxTime: maxTime, Dim: dim}
	data := in.Output()
	for t := 0; t < essentials.MaxInt(lengths...); t++ {
		present := make([]bool, len(lengths))
		var rows []anyvec.Vector
		for b, length := range lengths {
			if t < length {
				present[b] = true
				start := (b*maxTime + t) * dim
				rows = append(rows, data.Slice(start, start+dim))
			}
		}
		res.Out = append(res.Out, &anyseq.Batch{
			Packed:  data.Creator().Concat(rows...),
			Present: present,
		})
	}
	return res
}

func (p *paddedSeq) Creator() anyvec.Creator {
	return p.In.Output().Creator()
}

func (p *paddedSeq) Output() []*anyseq.Batch {
	return p.Out
}

func (p *paddedSeq) Vars() anydiff.VarSet {
	return p.In.Vars()
}

func (p *paddedSeq) Propagate(u []*anyseq.Batch, g anydiff.Grad) {
	if !g.Intersects(p.In.Vars()) {
		return
	}
	down := p.Creator().MakeVector(p.In.Output().Len())
	for t, batch := range u {
		var row int
		for b, present := range batch.Present {
			if present {
				chunk := batch.Packed.Slice(row*p.Dim, (row+1)*p.Dim)
				start := (b*p.MaxTime + t) * p.Dim
				down.Slice(start, start+p.Dim).Set(chunk)
				row++
			}
		}
	}
	p.In.Propagate(down, g)
}

// paddedRes turns a ragged sequence batch back into a
// padded [B][T][W] tensor with zeros past each sequence's
// length.
type paddedRes struct {
	Seq     anyseq.Seq
	Lengths []int
	MaxTime int
	Width   int
	OutVec  anyvec.Vector
}

func newPaddedRes(seq anyseq.Seq, lengths []int, maxTime, width int) *paddedRes {
	res := &paddedRes{
		Seq:     seq,
		Lengths: lengths,
		MaxTime: maxTime,
		Width:   width,
		OutVec:  seq.Creator().MakeVector(len(lengths) * maxTime * width),
	}
	for t, batch := range seq.Output() {
		var row int
		for b, present := range batch.Present {
			if present {
				chunk := batch.Packed.Slice(row*width, (row+1)*width)
				start := (b*maxTime + t) * width
				res.OutVec.Slice(start, start+width).Set(chunk)
				row++
			}
		}
	}
	return res
}

func (p *paddedRes) Output() anyvec.Vector {
	return p.OutVec
}

func (p *paddedRes) Vars() anydiff.VarSet {
	return p.Seq.Vars()
}

func (p *paddedRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	steps := p.Seq.Output()
	if len(steps) == 0 {
		return
	}
	upstream := make([]*anyseq.Batch, len(steps))
	for t, batch := range steps {
		var rows []anyvec.Vector
		for b, present := range batch.Present {
			if present {
				start := (b*p.MaxTime + t) * p.Width
				rows = append(rows, u.Slice(start, start+p.Width))
			}
		}
		upstream[t] = &anyseq.Batch{
			Packed:  u.Creator().Concat(rows...),
			Present: batch.Present,
		}
	}
	p.Seq.Propagate(upstream, g)
}

package anyrnn

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
)

type mapRes struct {
	C        anyvec.Creator
	F        func(s StateGrad, g anydiff.Grad)
	InitPres PresentMap
	In       anyseq.Seq
	Out      []*anyseq.Batch
	BlockRes []Res
	Block    Block
	V        anydiff.VarSet
}

// Map maps a Block over an input sequence batch, giving
// an output sequence batch.
//
// Sequences leave the batch as soon as they end, so the
// Block never sees a timestep past a sequence's length.
func Map(s anyseq.Seq, b Block) anyseq.Seq {
	inSteps := s.Output()
	if len(inSteps) == 0 {
		return &mapRes{C: s.Creator(), V: s.Vars()}
	}

	state := b.Start(len(inSteps[0].Present))
	return MapWithStart(s, b, state, func(sg StateGrad, g anydiff.Grad) {
		b.PropagateStart(sg, g)
	})
}

// MapWithStart is like Map, but it takes a customized
// start state rather than using the block's default start
// state.
//
// During back-propagation, f is called with the upstream
// state gradient for the start state.
func MapWithStart(s anyseq.Seq, b Block, state State, f func(StateGrad, anydiff.Grad)) anyseq.Seq {
	inSteps := s.Output()
	if len(inSteps) == 0 {
		return &mapRes{C: s.Creator(), V: s.Vars()}
	}

	initPres := state.Present()
	if inSteps[0].NumPresent() != len(inSteps[0].Present) {
		state = state.Reduce(inSteps[0].Present)
	}
	res := &mapRes{C: s.Creator(), F: f, InitPres: initPres, In: s, Block: b, V: s.Vars()}

	for _, x := range inSteps {
		if x.NumPresent() != state.Present().NumPresent() {
			state = state.Reduce(x.Present)
		}
		step := b.Step(state, x.Packed)
		res.BlockRes = append(res.BlockRes, step)
		res.V = anydiff.MergeVarSets(res.V, step.Vars())
		res.Out = append(res.Out, &anyseq.Batch{
			Packed:  step.Output(),
			Present: x.Present,
		})
		state = step.State()
	}

	return res
}

// MapFinal is like Map, but it also reports the state in
// which every sequence ended.
//
// The batch holds n sequences.
// The result contains one vector for each packed vector of
// the Block's state (see PackedState), with one row per
// sequence in batch order.
// A sequence which never appears keeps the start state.
//
// The final states are plain values; gradients only flow
// through the output sequence.
func MapFinal(s anyseq.Seq, b Block, n int) (anyseq.Seq, []anyvec.Vector) {
	start := b.Start(n)
	var rec finalRecorder
	rec.Record(start)

	inSteps := s.Output()
	if len(inSteps) == 0 {
		return &mapRes{C: s.Creator(), V: s.Vars()}, rec.Packed()
	}
	if len(inSteps[0].Present) != n {
		panic(fmt.Sprintf("batch size should be %d but got %d", n, len(inSteps[0].Present)))
	}

	out := MapWithStart(s, b, start, func(sg StateGrad, g anydiff.Grad) {
		b.PropagateStart(sg, g)
	})
	for _, step := range out.(*mapRes).BlockRes {
		rec.Record(step.State())
	}
	return out, rec.Packed()
}

func (m *mapRes) Creator() anyvec.Creator {
	return m.C
}

func (m *mapRes) Output() []*anyseq.Batch {
	return m.Out
}

func (m *mapRes) Vars() anydiff.VarSet {
	return m.V
}

func (m *mapRes) Propagate(u []*anyseq.Batch, g anydiff.Grad) {
	if len(u) == 0 {
		return
	}

	var downstream []*anyseq.Batch
	if g.Intersects(m.In.Vars()) {
		downstream = make([]*anyseq.Batch, len(u))
	}

	var upState StateGrad
	for i := len(m.BlockRes) - 1; i >= 0; i-- {
		blockRes := m.BlockRes[i]
		if upState != nil {
			newPres := blockRes.State().Present()
			if newPres.NumPresent() != upState.Present().NumPresent() {
				upState = upState.Expand(newPres)
			}
		}
		down, downState := blockRes.Propagate(u[i].Packed, upState, g)
		if downstream != nil {
			downstream[i] = &anyseq.Batch{Packed: down, Present: u[i].Present}
		}
		upState = downState
	}

	if upState != nil {
		if m.InitPres.NumPresent() != upState.Present().NumPresent() {
			upState = upState.Expand(m.InitPres)
		}
		m.F(upState, g)
	}

	if downstream != nil {
		m.In.Propagate(downstream, g)
	}
}

// finalRecorder keeps the latest row of every packed
// state vector for each sequence.
type finalRecorder struct {
	// Rows is indexed by packed vector, then sequence.
	Rows [][]anyvec.Vector
}

func (f *finalRecorder) Record(s State) {
	vecs := packedVectors(s)
	pres := s.Present()
	num := pres.NumPresent()
	if f.Rows == nil {
		f.Rows = make([][]anyvec.Vector, len(vecs))
		for i := range f.Rows {
			f.Rows[i] = make([]anyvec.Vector, len(pres))
		}
	}
	if num == 0 {
		return
	}
	for i, vec := range vecs {
		size := vec.Len() / num
		var row int
		for seq, present := range pres {
			if present {
				f.Rows[i][seq] = vec.Slice(row*size, (row+1)*size)
				row++
			}
		}
	}
}

func (f *finalRecorder) Packed() []anyvec.Vector {
	res := make([]anyvec.Vector, len(f.Rows))
	for i, rows := range f.Rows {
		if len(rows) == 0 {
			continue
		}
		res[i] = rows[0].Creator().Concat(rows...)
	}
	return res
}

func packedVectors(s State) []anyvec.Vector {
	p, ok := s.(PackedState)
	if !ok {
		panic(fmt.Sprintf("state cannot be packed: %T", s))
	}
	return p.PackedVectors()
}

package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A FuncBlock is a Block defined by a differentiable
// state transition.
//
// Every sequence starts from a zero state of StateSize
// components.
// The cells in this package are FuncBlocks underneath.
type FuncBlock struct {
	Creator   anyvec.Creator
	StateSize int

	// Func applies the block to a batch of inputs and
	// states.
	//
	// If out is nil, the new state doubles as the output.
	Func func(in, state anydiff.Res, batch int) (out, newState anydiff.Res)
}

// Start generates a zero *FuncBlockState.
func (f *FuncBlock) Start(n int) State {
	return &FuncBlockState{
		VecState: NewZeroState(f.Creator, f.StateSize, n),
		V:        anydiff.VarSet{},
	}
}

// PropagateStart does nothing, since the start state is
// constant.
func (f *FuncBlock) PropagateStart(s StateGrad, g anydiff.Grad) {
}

// Step applies the block for a timestep.
func (f *FuncBlock) Step(s State, in anyvec.Vector) Res {
	fs := s.(*FuncBlockState)
	inPool := anydiff.NewVar(in)
	statePool := anydiff.NewVar(fs.Vector)
	out, state := f.Func(inPool, statePool, s.Present().NumPresent())
	stateVars := anydiff.MergeVarSets(fs.V, state.Vars())
	allVars := stateVars
	if out != nil {
		allVars = anydiff.MergeVarSets(stateVars, out.Vars())
	}
	for _, x := range []anydiff.VarSet{stateVars, allVars} {
		x.Del(inPool)
		x.Del(statePool)
	}
	return &funcBlockRes{
		InPool:    inPool,
		StatePool: statePool,
		OutRes:    out,
		StateRes:  state,
		OutState: &FuncBlockState{
			VecState: &VecState{
				PresentMap: fs.PresentMap,
				Vector:     state.Output(),
			},
			V: stateVars,
		},
		V: allVars,
	}
}

// FuncBlockState is the State and StateGrad type used by
// FuncBlock.
//
// V stores the variables upon which the state depends.
type FuncBlockState struct {
	*VecState
	V anydiff.VarSet
}

// Reduce reduces the state to the given sequences.
func (f *FuncBlockState) Reduce(p PresentMap) State {
	return &FuncBlockState{
		VecState: f.VecState.Reduce(p).(*VecState),
		V:        f.V,
	}
}

// Expand expands the state.
func (f *FuncBlockState) Expand(p PresentMap) StateGrad {
	return &FuncBlockState{
		VecState: f.VecState.Expand(p).(*VecState),
		V:        f.V,
	}
}

type funcBlockRes struct {
	InPool    *anydiff.Var
	StatePool *anydiff.Var
	OutRes    anydiff.Res
	StateRes  anydiff.Res
	OutState  *FuncBlockState
	V         anydiff.VarSet
}

func (f *funcBlockRes) State() State {
	return f.OutState
}

func (f *funcBlockRes) Output() anyvec.Vector {
	if f.OutRes == nil {
		return f.StateRes.Output()
	}
	return f.OutRes.Output()
}

func (f *funcBlockRes) Vars() anydiff.VarSet {
	return f.V
}

func (f *funcBlockRes) Propagate(u anyvec.Vector, s StateGrad,
	g anydiff.Grad) (anyvec.Vector, StateGrad) {
	c := f.InPool.Vector.Creator()
	g[f.InPool] = c.MakeVector(f.InPool.Output().Len())
	g[f.StatePool] = c.MakeVector(f.StatePool.Output().Len())
	if f.OutRes == nil {
		if s != nil {
			u.Add(s.(*FuncBlockState).Vector)
		}
		f.StateRes.Propagate(u, g)
	} else {
		f.OutRes.Propagate(u, g)
		if s != nil {
			f.StateRes.Propagate(s.(*FuncBlockState).Vector, g)
		}
	}
	inGrad := g[f.InPool]
	stateGrad := g[f.StatePool]
	delete(g, f.InPool)
	delete(g, f.StatePool)
	return inGrad, &FuncBlockState{
		VecState: &VecState{
			Vector:     stateGrad,
			PresentMap: f.OutState.PresentMap,
		},
	}
}

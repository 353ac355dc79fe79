package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyenc"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var b Bidir
	serializer.RegisterTypedDeserializer(b.SerializerType(), DeserializeBidir)
}

// Bidir implements a bi-directional RNN.
//
// In a bi-directional RNN, a forward block is evaluated
// on the input sequence, while a backward block is mapped
// over the reversed input sequence.
// Then, outputs from the forward and backward block for
// corresponding timesteps in the original sequence are
// combined using the mixer.
//
// The first input to the Mixer is from the forward block;
// the second is from the backward block.
type Bidir struct {
	Forward  Block
	Backward Block
	Mixer    anyenc.Mixer
}

// DeserializeBidir deserializes a Bidir.
func DeserializeBidir(d []byte) (*Bidir, error) {
	var res Bidir
	err := serializer.DeserializeAny(d, &res.Forward, &res.Backward, &res.Mixer)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Bidir", err)
	}
	return &res, nil
}

// Apply applies the bidirectional RNN.
func (b *Bidir) Apply(in anyseq.Seq) anyseq.Seq {
	return anyseq.Pool(in, func(in anyseq.Seq) anyseq.Seq {
		forwOut := Map(in, b.Forward)
		backOut := reverse(Map(reverse(in), b.Backward))
		return b.mix(forwOut, backOut)
	})
}

// ApplyFinal is like Apply, but it also reports the final
// states of both directions, as returned by MapFinal.
//
// The backward block reads each sequence from its last
// real timestep to its first, so its final state is the
// state after the first timestep.
func (b *Bidir) ApplyFinal(in anyseq.Seq, n int) (out anyseq.Seq, forward,
	backward []anyvec.Vector) {
	out = anyseq.Pool(in, func(in anyseq.Seq) anyseq.Seq {
		var forwOut, backOut anyseq.Seq
		forwOut, forward = MapFinal(in, b.Forward, n)
		backOut, backward = MapFinal(reverse(in), b.Backward, n)
		return b.mix(forwOut, reverse(backOut))
	})
	return
}

// Parameters returns the parameters of the blocks and
// Mixer if they implement anyenc.Parameterizer.
func (b *Bidir) Parameters() []*anydiff.Var {
	return anyenc.AllParameters(b.Forward, b.Backward, b.Mixer)
}

// SerializerType returns the unique ID used to serialize
// a Bidir with the serializer package.
func (b *Bidir) SerializerType() string {
	return "github.com/unixpickle/anyenc/anyrnn.Bidir"
}

// Serialize serializes the Bidir.
func (b *Bidir) Serialize() ([]byte, error) {
	return serializer.SerializeAny(b.Forward, b.Backward, b.Mixer)
}

func (b *Bidir) mix(forw, back anyseq.Seq) anyseq.Seq {
	if len(forw.Output()) == 0 {
		return forw
	}
	return anyseq.MapN(func(n int, v ...anydiff.Res) anydiff.Res {
		return b.Mixer.Mix(v[0], v[1], n)
	}, forw, back)
}

func reverse(s anyseq.Seq) anyseq.Seq {
	if len(s.Output()) == 0 {
		return s
	}
	return anyseq.Reverse(s)
}

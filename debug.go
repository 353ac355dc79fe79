package anyenc

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/serializer"
)

func init() {
	serializer.RegisterTypedDeserializer((&Debug{}).SerializerType(), DeserializeDebug)
}

// Debug is a layer which logs statistics about its
// inputs.
// Besides logging, the Debug layer does nothing to
// interfere with the flow of values in a network.
type Debug struct {
	// Logger receives the statistics at debug level.
	// If nil, they are printed to standard output.
	Logger logrus.FieldLogger

	ID            string
	PrintRaw      bool
	PrintMean     bool
	PrintVariance bool
}

// DeserializeDebug deserializes a Debug layer.
// The Logger will be nil.
func DeserializeDebug(d []byte) (*Debug, error) {
	var res Debug
	err := serializer.DeserializeAny(d, &res.ID, &res.PrintRaw, &res.PrintMean,
		&res.PrintVariance)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Apply logs information about its input.
// The input is returned, untouched.
func (d *Debug) Apply(in anydiff.Res, n int) anydiff.Res {
	if n == 0 || in.Output().Len() == 0 {
		return in
	}
	fields := logrus.Fields{"batch": n}
	if d.PrintRaw {
		fields["raw"] = in.Output().Data()
	}
	cols := in.Output().Len() / n
	if d.PrintMean || d.PrintVariance {
		mean := anyvec.SumRows(in.Output(), cols)
		normalizer := mean.Creator().MakeNumeric(1 / float64(n))
		mean.Scale(normalizer)
		if d.PrintMean {
			fields["mean"] = mean.Data()
		}
		if d.PrintVariance {
			two := mean.Creator().MakeNumeric(2)
			squared := in.Output().Copy()
			anyvec.Pow(squared, two)
			variance := anyvec.SumRows(squared, cols)
			variance.Scale(normalizer)
			anyvec.Pow(mean, two)
			variance.Sub(mean)
			fields["variance"] = variance.Data()
		}
	}
	d.log(fields)
	return in
}

// SerializerType returns the unique ID used to serialize
// a Debug layer with the serializer package.
func (d *Debug) SerializerType() string {
	return "github.com/unixpickle/anyenc.Debug"
}

// Serialize serializes the layer.
func (d *Debug) Serialize() ([]byte, error) {
	return serializer.SerializeAny(d.ID, d.PrintRaw, d.PrintMean, d.PrintVariance)
}

func (d *Debug) log(fields logrus.Fields) {
	if d.Logger == nil {
		fmt.Println("Debug ("+d.ID+"):", fields)
		return
	}
	d.Logger.WithFields(fields).WithField("layer", d.ID).Debug("layer statistics")
}

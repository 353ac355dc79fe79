package encoder

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestFromMarkup(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	code := `
		Input(w=1, h=1, d=5)
		BLSTM(cells=4, layers=3, inkeep=0.9, hidkeep=0.8, init=0.2, clip=10, proj=2, seed=3)
	`
	enc, err := FromMarkup(c, code, DefaultConfig(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	blstm, ok := enc.(*BLSTM)
	if !ok {
		t.Fatalf("expected *BLSTM but got %T", enc)
	}
	expected := Config{
		InputSize:      5,
		Cells:          4,
		Layers:         3,
		InputKeepProb:  0.9,
		HiddenKeepProb: 0.8,
		InitRange:      0.2,
		Clip:           10,
		Proj:           2,
		Seed:           3,
	}
	if blstm.Config() != expected {
		t.Errorf("expected %+v but got %+v", expected, blstm.Config())
	}
	if len(blstm.Layers) != 3 || enc.OutSize() != 6 {
		t.Errorf("unexpected encoder layout")
	}
	if blstm.backward[0].Clip != 10 {
		t.Errorf("expected clip 10 but got %f", blstm.backward[0].Clip)
	}
}

func TestFromMarkupDefaults(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	enc, err := FromMarkup(c, "Input(w=2, h=1, d=3)\nGRU(cells=7)", DefaultConfig(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	gru := enc.(*GRU)
	expected := DefaultConfig(6, 7)
	if gru.Config() != expected {
		t.Errorf("expected %+v but got %+v", expected, gru.Config())
	}

	enc, err = FromMarkup(c, "Input(w=1, h=1, d=3)\nLSTM(cells=7, proj=2, layers=2)",
		DefaultConfig(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(enc.(*LSTM).Cells) != 2 || enc.OutSize() != 2 {
		t.Error("unexpected LSTM layout")
	}
}

func TestFromMarkupErrors(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	for _, code := range []string{
		"Input(w=1, h=1, d=3)\nBLSTM(layers=2)",
		"Input(w=1, h=1, d=3)\nBLSTM(cells=4, layers=0)",
		"Input(w=1, h=1, d=3)\nBLSTM(cells=4.5)",
		"Input(w=1, h=1, d=3)\nLSTM(cells=4, inkeep=0)",
		"Input(w=1, h=1, d=3)\nGRU(cells=4, color=2)",
	} {
		_, err := FromMarkup(c, code, DefaultConfig(0, 0))
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("code %q: expected ConfigError but got %v", code, err)
		}
	}

	for _, code := range []string{
		"Input(w=1, h=1, d=3)",
		"Input(w=1, h=1, d=3)\nGRU(cells=4)\nGRU(cells=4)",
	} {
		if _, err := FromMarkup(c, code, DefaultConfig(0, 0)); err == nil {
			t.Errorf("code %q: expected error", code)
		}
	}
}

func TestFromMarkupBase(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	base := DefaultConfig(0, 0)
	base.Logger = logger
	base.Debug = true
	base.Layers = 2
	base.Clip = 5

	enc, err := FromMarkup(c, "Input(w=1, h=1, d=3)\nLSTM(cells=4, clip=8)", base)
	if err != nil {
		t.Fatal(err)
	}
	cfg := enc.(*LSTM).Config()
	if cfg.Logger != logger || !cfg.Debug {
		t.Error("logger and debug flag were not kept")
	}
	if cfg.InputSize != 3 || cfg.Cells != 4 || cfg.Layers != 2 || cfg.Clip != 8 {
		t.Errorf("unexpected config %+v", cfg)
	}

	var built bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "built encoder" && entry.Data["encoder"] == "LSTM" {
			built = true
		}
	}
	if !built {
		t.Error("expected a log entry from the encoder")
	}
}

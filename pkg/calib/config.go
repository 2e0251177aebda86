package calib

import(
	"fmt"
	"io/ioutil"
	"log"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/hdrp-calibrate/pkg/charmodel"
	"github.com/abworrall/hdrp-calibrate/pkg/efit"
	"github.com/abworrall/hdrp-calibrate/pkg/tonemap"
)

type Config struct {
	Verbosity       int

	Knots           []float64 `yaml:",omitempty"` // empty means the default 32 point grid

	DoRefine        bool
	RefineLow       float64
	RefineHigh      float64        // also: curve values beyond the first knot above this are pinned to 1
	RefineSamples   int

	GammaInit       string         // "fixed" or "loglog"
	ProbeTolerance  float64
	Optimizer       efit.Settings

	ImpulseScale    float64        // turns directional light intensity into u_k, for impulse renders
	LambertScale    float64        // the same, for the model test renders
	MaxDisplayValue float64        // model test samples brighter than this, in any channel, may be clipped

	OutputDir       string
}

func NewConfig() Config {
	ro := tonemap.DefaultRefineOptions()
	return Config{
		DoRefine:        true,
		RefineLow:       ro.Low,
		RefineHigh:      ro.High,
		RefineSamples:   ro.Samples,
		GammaInit:       "fixed",
		ProbeTolerance:  charmodel.DefaultProbeTolerance,
		Optimizer:       efit.DefaultSettings(),
		ImpulseScale:    0.823,
		LambertScale:    0.822,
		MaxDisplayValue: 0.99,
		OutputDir:       ".",
	}
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.Unmarshal(b, &c)
	return c, err
}

func LoadConfig(filename string) (Config, error) {
	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config read %s: %v", filename, err)
	}
	c, err := newConfigFromYaml(contents)
	if err != nil {
		return Config{}, fmt.Errorf("config parse %s: %v", filename, err)
	}
	return c, nil
}

func (c Config)AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

func (c Config)KnotGrid() (tonemap.KnotGrid, error) {
	if len(c.Knots) == 0 {
		return tonemap.DefaultKnots(), nil
	}
	return tonemap.NewKnotGrid(c.Knots...)
}

func (c Config)RefineOptions() tonemap.RefineOptions {
	ro := tonemap.DefaultRefineOptions()
	ro.Low, ro.High, ro.Samples = c.RefineLow, c.RefineHigh, c.RefineSamples
	ro.Settings.MaxEvaluations = c.Optimizer.MaxEvaluations
	return ro
}

func (c Config)GetGammaInit() (charmodel.GammaInit, error) {
	return charmodel.ParseGammaInit(c.GammaInit)
}

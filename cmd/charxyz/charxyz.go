package main

import(
	"flag"
	"log"
	"path/filepath"

	"github.com/abworrall/hdrp-calibrate/pkg/calib"
	"github.com/abworrall/hdrp-calibrate/pkg/charmodel"
	"github.com/abworrall/hdrp-calibrate/pkg/ecolor"
	"github.com/abworrall/hdrp-calibrate/pkg/emath"
	"github.com/abworrall/hdrp-calibrate/pkg/eplot"
)

var(
	fVerbosity int
	fProbeTolerance float64
	fNoRefine bool
	fCheck bool
	fPlot bool
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.Float64Var(&fProbeTolerance, "probetol", 0, "how close a stimulus must be to a probe (overrides config)")
	flag.BoolVar(&fNoRefine, "norefine", false, "don't refine the cube's knot values")
	flag.BoolVar(&fCheck, "check", false, "data was measured through a linearizing cube; fit, then check it is linear")
	flag.BoolVar(&fPlot, "plot", false, "write a PNG plot of the activations and fit")
	flag.Parse()

	log.Printf("charxyz starting\n")
}

func plotActivations(m *charmodel.TriStimulusModel, filename string) error {
	p := eplot.New("primary activations", "post-processed v_k", "activation")
	vv := emath.Linspace(0, 1, 100)
	for k := 0; k < 3; k++ {
		k := k
		p.Line("RGB"[k:k+1], vv, ecolor.Map(vv, func(v float64) float64 { return m.H(v, k) }), eplot.ChannelColors[k])
	}
	for k := 0; k < 3; k++ {
		x, y := []float64{}, []float64{}
		for i := range m.V {
			a, err := m.Activations(ecolor.VecToXYZ(m.XYZ[i]))
			if err != nil {
				return err
			}
			x, y = append(x, m.V[i][k]), append(y, a[k])
		}
		p.Scatter("", x, y, eplot.ChannelColors[k])
	}
	return p.SavePNG(filename)
}

func main() {
	in := calib.NewInputs()
	if err := in.LoadFilesAndDirs(flag.Args()...); err != nil {
		log.Fatal(err)
	}
	if len(in.DataFiles) != 1 {
		log.Fatalf("need exactly one measurement file (m_r,m_g,m_b,x,y,z), have %v\n", in.DataFiles)
	}

	cfg := in.Config
	if fVerbosity > 0 { cfg.Verbosity = fVerbosity }
	if fProbeTolerance > 0 { cfg.ProbeTolerance = fProbeTolerance }
	if fNoRefine { cfg.DoRefine = false }
	if cfg.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", cfg.AsYaml())
	}

	v, xyz, err := calib.LoadTriStimulusCSV(in.DataFiles[0])
	if err != nil {
		log.Fatal(err)
	}

	m, cal, err := calib.CalibrateTriStimulus(cfg, v, xyz)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("%s\n", m)

	if fCheck {
		lins, err := calib.CheckTriStimulusLinearity(m.Params, v, xyz)
		if err != nil {
			log.Fatal(err)
		}
		for k, lin := range lins {
			log.Printf("primary %c coefficient vs u: %s\n", "RGB"[k], lin)
		}
		return
	}

	if cal.Refine != nil {
		log.Printf("%s\n", cal.Refine)
	}
	filename := filepath.Join(cfg.OutputDir, cal.Cube.Title)
	if err := cal.Cube.Save(filename); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s\n", filename)

	if fPlot {
		if err := plotActivations(m, filepath.Join(cfg.OutputDir, "charxyz_fit.png")); err != nil {
			log.Fatal(err)
		}
	}
}

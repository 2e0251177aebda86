package main

import(
	"flag"
	"log"
	"path/filepath"

	"github.com/abworrall/hdrp-calibrate/pkg/calib"
	"github.com/abworrall/hdrp-calibrate/pkg/ecolor"
	"github.com/abworrall/hdrp-calibrate/pkg/emath"
	"github.com/abworrall/hdrp-calibrate/pkg/eplot"
)

var(
	fVerbosity int
	fGammaInit string
	fNoRefine bool
	fCheck bool
	fPlot bool
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fGammaInit, "gammainit", "", "where the fit starts gamma: [fixed loglog] (overrides config)")
	flag.BoolVar(&fNoRefine, "norefine", false, "don't refine the cube's knot values")
	flag.BoolVar(&fCheck, "check", false, "data was measured through a linearizing cube; check it is linear")
	flag.BoolVar(&fPlot, "plot", false, "write PNG plots of the fit")
	flag.Parse()

	log.Printf("charlum starting\n")
}

func main() {
	in := calib.NewInputs()
	if err := in.LoadFilesAndDirs(flag.Args()...); err != nil {
		log.Fatal(err)
	}
	if len(in.DataFiles) != 1 {
		log.Fatalf("need exactly one measurement file (m_k,lum), have %v\n", in.DataFiles)
	}

	cfg := in.Config
	if fVerbosity > 0 { cfg.Verbosity = fVerbosity }
	if fGammaInit != "" { cfg.GammaInit = fGammaInit }
	if fNoRefine { cfg.DoRefine = false }
	if cfg.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", cfg.AsYaml())
	}

	v, lum, err := calib.LoadLuminanceCSV(in.DataFiles[0])
	if err != nil {
		log.Fatal(err)
	}

	if fCheck {
		lin, err := calib.CheckLuminanceLinearity(v, lum)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("luminance vs u: %s\n", lin)
		return
	}

	m, cal, err := calib.CalibrateLuminance(cfg, v, lum)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("%s\n", m)
	if cal.Refine != nil {
		log.Printf("%s\n", cal.Refine)
	}

	filename := filepath.Join(cfg.OutputDir, cal.Cube.Title)
	if err := cal.Cube.Save(filename); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s\n", filename)

	// What the display should do with the cube installed
	u := emath.Linspace(0, 1, 20)
	pred := calib.PredictLuminance(m.Params, cal.Cube, u)
	log.Printf("predicted luminance at u=0: %.3f, u=1: %.3f\n", pred[0], pred[len(pred)-1])

	if fPlot {
		vv := emath.Linspace(0, 1, 100)
		p := eplot.New("luminance model", "post-processed v_k", "luminance (cd/m^2)")
		p.Line("fit", vv, ecolor.Map(vv, m.StimulusToLuminance), eplot.Black)
		p.Scatter("measurements", v, lum, eplot.Red)
		if err := p.SavePNG(filepath.Join(cfg.OutputDir, "charlum_fit.png")); err != nil {
			log.Fatal(err)
		}

		p = eplot.New("predicted luminance, with cube", "unprocessed u_k", "luminance (cd/m^2)")
		p.Line("", []float64{u[0], u[len(u)-1]}, []float64{pred[0], pred[len(pred)-1]}, eplot.Black)
		p.Scatter("", u, pred, eplot.Red)
		if err := p.SavePNG(filepath.Join(cfg.OutputDir, "charlum_predicted.png")); err != nil {
			log.Fatal(err)
		}
	}
}

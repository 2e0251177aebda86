package main

import(
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/abworrall/hdrp-calibrate/pkg/calib"
	"github.com/abworrall/hdrp-calibrate/pkg/eplot"
	"github.com/abworrall/hdrp-calibrate/pkg/tonemap"
)

var(
	fVerbosity int
	fNumKnots int
	fPlot bool
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.IntVar(&fNumKnots, "n", 32, "number of knots (and impulse cubes)")
	flag.BoolVar(&fPlot, "plot", false, "write a PNG plot of the impulse responses")
	flag.Parse()

	log.Printf("findknots starting\n")
}

func plotResponses(irs []tonemap.ImpulseResponse, g tonemap.KnotGrid, filename string) error {
	p := eplot.New("impulse responses", "unprocessed u_k", "tonemapped t_k")
	p.LogX = true
	for i, ir := range irs {
		p.Scatter("", ir.U, ir.T, eplot.ChannelColors[i%3])
	}
	for i := g.Floor; i < g.Len(); i++ {
		p.Line("", []float64{g.U[i], g.U[i]}, []float64{0, 1.1}, eplot.Grey)
	}
	return p.SavePNG(filename)
}

func main() {
	in := calib.NewInputs()
	if err := in.LoadFilesAndDirs(flag.Args()...); err != nil {
		log.Fatal(err)
	}
	if len(in.DataFiles) != 1 {
		log.Fatalf("need exactly one impulse render file (delta_m,i_d,v_r), have %v\n", in.DataFiles)
	}
	cfg := in.Config
	if fVerbosity > 0 { cfg.Verbosity = fVerbosity }

	irs, err := calib.LoadImpulseCSV(in.DataFiles[0], cfg.ImpulseScale)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Verbosity > 0 {
		log.Printf("loaded %d impulse responses\n", len(irs))
	}

	g, err := tonemap.EstimateKnots(irs, fNumKnots)
	if err != nil {
		log.Fatal(err)
	}

	strs := []string{}
	for _, u := range g.U {
		strs = append(strs, fmt.Sprintf("%.4g", u))
	}
	fmt.Printf("knots: [%s]\n", strings.Join(strs, ", "))

	if fPlot {
		if err := plotResponses(irs, g, filepath.Join(cfg.OutputDir, "findknots.png")); err != nil {
			log.Fatal(err)
		}
	}
}

package main

import(
	"flag"
	"log"
	"path/filepath"
	"strings"

	"github.com/abworrall/hdrp-calibrate/pkg/calib"
	"github.com/abworrall/hdrp-calibrate/pkg/eplot"
	"github.com/abworrall/hdrp-calibrate/pkg/tonemap"
)

var(
	fVerbosity int
	fOutputDir string
	fImpulses bool
	fPlot bool
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fOutputDir, "out", "", "directory to write cube files into (overrides config)")
	flag.BoolVar(&fImpulses, "impulses", false, "also write the impulse cubes, for knot estimation")
	flag.BoolVar(&fPlot, "plot", false, "write a PNG of each cube's red channel")
	flag.Parse()

	log.Printf("makecubes starting\n")
}

func plotRed(g tonemap.KnotGrid, c *tonemap.Cube, filename string) error {
	p := eplot.New(c.Title, "unprocessed input u_r", "tonemapped output t_r")
	p.LogX = true
	u := g.U[g.Floor:]
	t := c.Channel(0)[g.Floor:]
	p.Line("", u, t, eplot.Red)
	p.Scatter("", u, t, eplot.Red)
	return p.SavePNG(filename)
}

func main() {
	in := calib.NewInputs()
	if err := in.LoadFilesAndDirs(flag.Args()...); err != nil {
		log.Fatal(err)
	}
	cfg := in.Config
	if fVerbosity > 0 { cfg.Verbosity = fVerbosity }
	if fOutputDir != "" { cfg.OutputDir = fOutputDir }

	g, err := cfg.KnotGrid()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", cfg.AsYaml())
	}

	cubes, err := calib.StandardCubes(g)
	if err != nil {
		log.Fatal(err)
	}
	if fImpulses {
		imps, err := calib.ImpulseCubes(g)
		if err != nil {
			log.Fatal(err)
		}
		cubes = append(cubes, imps...)
	}

	filenames, err := calib.SaveCubes(cfg.OutputDir, cubes...)
	if err != nil {
		log.Fatal(err)
	}
	for i, filename := range filenames {
		log.Printf("wrote %s\n", filename)
		if fPlot {
			png := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".png"
			if err := plotRed(g, cubes[i], png); err != nil {
				log.Fatal(err)
			}
		}
	}
}

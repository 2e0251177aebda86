package main

import(
	"flag"
	"log"

	"github.com/abworrall/hdrp-calibrate/pkg/calib"
	"github.com/abworrall/hdrp-calibrate/pkg/tonemap"
)

var(
	fVerbosity int
	fCube string
	fLambertian bool
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fCube, "cube", "", "the .cube file the renders were made with")
	flag.BoolVar(&fLambertian, "lambertian", true, "include the Lambertian cosine term in the prediction")
	flag.Parse()

	log.Printf("modeltest starting\n")
}

func main() {
	in := calib.NewInputs()
	if err := in.LoadFilesAndDirs(flag.Args()...); err != nil {
		log.Fatal(err)
	}
	if len(in.DataFiles) == 0 {
		log.Fatal("need at least one render file\n")
	}
	cfg := in.Config
	if fVerbosity > 0 { cfg.Verbosity = fVerbosity }

	if fCube == "" {
		log.Fatal("need a -cube\n")
	}
	g, err := cfg.KnotGrid()
	if err != nil {
		log.Fatal(err)
	}
	cube, err := tonemap.NewCube(g)
	if err != nil {
		log.Fatal(err)
	}
	if err := cube.Load(fCube); err != nil {
		log.Fatal(err)
	}

	for _, filename := range in.DataFiles {
		samples, err := calib.LoadRenderCSV(filename)
		if err != nil {
			log.Fatal(err)
		}
		res, err := calib.ModelTest(cfg, cube, samples, fLambertian)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("%s: %s\n", filename, res)
		log.Printf("%s: median error %.2f (0-255 scale)\n", filename, res.MedianError())
	}
}

package main

import(
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/tmo"
	"golang.org/x/image/tiff"

	"github.com/abworrall/hdrp-calibrate/pkg/calib"
	"github.com/abworrall/hdrp-calibrate/pkg/tonemap"
)

var(
	fVerbosity int
	fCube string
	fInput string
	fRamp bool
	fWriteRamp string
	fExposure float64
	fLinear bool
	fCompare bool
	fOutput string
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fCube, "cube", "", "the .cube file to apply")
	flag.StringVar(&fInput, "in", "", "input HDR image (RGBE, .hdr)")
	flag.BoolVar(&fRamp, "ramp", false, "use a synthetic ramp image as input, instead of -in")
	flag.StringVar(&fWriteRamp, "writeramp", "", "also write the synthetic ramp out as an RGBE file")
	flag.Float64Var(&fExposure, "exposure", 1.0, "linear multiplier applied to the input")
	flag.BoolVar(&fLinear, "linear", false, "don't display-encode the cube output")
	flag.BoolVar(&fCompare, "compare", false, "also write out a plain linear tonemap, for comparison")
	flag.StringVar(&fOutput, "out", "cubetmo.png", "output file (.png or .tif)")
	flag.Parse()

	log.Printf("cubetmo starting\n")
}

func loadHDR(filename string) (hdr.Image, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open+r '%s': %v", filename, err)
	}
	defer reader.Close()

	img, err := rgbe.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("rgbe decode '%s': %v", filename, err)
	}
	hdrImg, ok := img.(hdr.Image)
	if !ok {
		return nil, fmt.Errorf("'%s' did not decode to an HDR image", filename)
	}
	return hdrImg, nil
}

func writeRGBE(filename string, img hdr.Image) error {
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	}
	defer writer.Close()
	if err := rgbe.Encode(writer, img); err != nil {
		return fmt.Errorf("rgbe encode '%s': %v", filename, err)
	}
	return writer.Close()
}

func writeImage(filename string, img image.Image) error {
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	}
	defer writer.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff":
		err = tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(writer, img)
	}
	if err != nil {
		return fmt.Errorf("encode '%s': %v", filename, err)
	}
	return writer.Close()
}

func main() {
	in := calib.NewInputs()
	if err := in.LoadFilesAndDirs(flag.Args()...); err != nil {
		log.Fatal(err)
	}
	cfg := in.Config
	if fVerbosity > 0 { cfg.Verbosity = fVerbosity }

	if fCube == "" {
		log.Fatal("need a -cube to apply\n")
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
	if cfg.Verbosity > 0 {
		log.Printf("loaded %s\n", cube)
	}

	var input hdr.Image
	switch {
	case fRamp:
		input = tonemap.Ramp{W: 1024, H: 256, Max: g.Upper()}
		if fWriteRamp != "" {
			if err := writeRGBE(fWriteRamp, input); err != nil {
				log.Fatal(err)
			}
			log.Printf("wrote %s\n", fWriteRamp)
		}
	case fInput != "":
		if input, err = loadHDR(fInput); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatal("need an input image: -in, or -ramp\n")
	}

	op := tonemap.NewCubeTMO(cube, input)
	op.Exposure = fExposure
	op.Decode = !fLinear

	ops := map[string]tmo.ToneMappingOperator{fOutput: op}
	if fCompare {
		ext := filepath.Ext(fOutput)
		ops[strings.TrimSuffix(fOutput, ext) + "-linear" + ext] = tmo.NewLinear(input)
	}

	for filename, op := range ops {
		if err := writeImage(filename, op.Perform()); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s\n", filename)
	}
}

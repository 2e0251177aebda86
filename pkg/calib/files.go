package calib

import(
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Inputs is what the command line pointed at: at most one config, and
// some measurement files.
type Inputs struct {
	Config    Config
	DataFiles []string
}

func NewInputs() Inputs {
	return Inputs{Config: NewConfig()}
}

// LoadFilesAndDirs walks the args; directories are recursed into, YAML
// files are loaded as the config, CSV and TXT files are noted as data.
func (in *Inputs)LoadFilesAndDirs(args ...string) error {
	for _, arg := range args {
		item, err := os.Stat(arg)

		switch {

		case err != nil:
			return fmt.Errorf("load %s: %v", arg, err)

		case item.IsDir():
			contents, err := ioutil.ReadDir(arg)
			if err != nil {
				return fmt.Errorf("readdir %s: %v", arg, err)
			}
			for _, content := range contents {
				if err := in.LoadFilesAndDirs(filepath.Join(arg, content.Name())); err != nil {
					return fmt.Errorf("load %s: %v", arg, err)
				}
			}

		default:
			if err := in.loadFile(arg); err != nil {
				return fmt.Errorf("loadfile %s: %v", arg, err)
			}
		}
	}

	return nil
}

func (in *Inputs)loadFile(filename string) error {
	switch strings.ToLower(filepath.Ext(filename)) {

	case ".yaml", ".yml":
		cfg, err := LoadConfig(filename)
		if err != nil {
			return err
		}
		in.Config = cfg
		log.Printf("Loaded base configuration from %s\n", filename)

	case ".csv", ".txt":
		in.DataFiles = append(in.DataFiles, filename)
	}

	return nil
}

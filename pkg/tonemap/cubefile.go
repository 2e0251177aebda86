package tonemap

import(
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

/* The .cube text format, as read by the renderer's LUT importer:

TITLE "cube/linearize_achromatic.cube"
LUT_3D_SIZE 32
DOMAIN_MIN 0.0 0.0 0.0
DOMAIN_MAX 1.0 1.0 1.0
0.000000 0.000000 0.000000
0.000001 0.000000 0.000000
...

The N^3 rows are in column-major order over (R,G,B): red varies fastest.

*/

// Save writes the cube to a file. The title defaults to the filename.
// The cube is written to a temporary file alongside, which only replaces
// filename once it is complete; on error any existing file is untouched.
func (c *Cube)Save(filename string) error {
	if c.IsEmpty() {
		return fmt.Errorf("save '%s': %w", filename, ErrEmptyCube)
	}
	title := c.Title
	if title == "" {
		title = filename
	}

	var buf bytes.Buffer
	if err := c.encode(&buf, title); err != nil {
		return fmt.Errorf("encode '%s': %w", filename, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename) + ".tmp*")
	if err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write '%s': %v", tmp.Name(), err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod '%s': %v", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close '%s': %v", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("rename to '%s': %v", filename, err)
	}

	c.Title = title
	return nil
}

// Encode writes the cube in .cube format.
func (c *Cube)Encode(w io.Writer) error {
	return c.encode(w, c.Title)
}

func (c *Cube)encode(w io.Writer, title string) error {
	if c.IsEmpty() {
		return ErrEmptyCube
	}

	n := c.Size()
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "TITLE \"%s\"\n", title)
	fmt.Fprintf(bw, "LUT_3D_SIZE %d\n", n)
	fmt.Fprintf(bw, "DOMAIN_MIN 0.0 0.0 0.0\n")
	fmt.Fprintf(bw, "DOMAIN_MAX 1.0 1.0 1.0\n")

	for k:=0; k<n; k++ {
		for j:=0; j<n; j++ {
			for i:=0; i<n; i++ {
				o := c.offset(i, j, k)
				fmt.Fprintf(bw, "%.6f %.6f %.6f\n", c.values[o], c.values[o+1], c.values[o+2])
			}
		}
	}

	return bw.Flush()
}

// Load reads a cube file, replacing the cube's values. The file must
// hold exactly Size()^3 rows. On error the cube is left unchanged.
func (c *Cube)Load(filename string) error {
	reader, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("open+r '%s': %v", filename, err)
	}
	defer reader.Close()

	if err := c.Decode(reader); err != nil {
		return fmt.Errorf("load '%s': %w", filename, err)
	}
	if c.Title == "" {
		c.Title = filename
	}
	return nil
}

// Decode parses .cube text. Any line that isn't three numbers is
// skipped, apart from TITLE and LUT_3D_SIZE which are checked.
func (c *Cube)Decode(r io.Reader) error {
	rows := [][3]float64{}
	declaredSize := -1
	title := ""

	scanner := bufio.NewScanner(r)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)

		switch {
		case len(fields) == 0, strings.HasPrefix(line, "#"):
			continue

		case fields[0] == "TITLE":
			title = strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "TITLE")), `"`)
			continue

		case fields[0] == "LUT_3D_SIZE" && len(fields) == 2:
			size, err := strconv.Atoi(fields[1])
			if err != nil {
				return fmt.Errorf("line %d: LUT_3D_SIZE '%s': %v", lineNum, fields[1], err)
			}
			declaredSize = size
			continue
		}

		if row, ok := parseTriple(fields); ok {
			rows = append(rows, row)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	n := int(math.Round(math.Cbrt(float64(len(rows)))))
	if len(rows) == 0 || n*n*n != len(rows) {
		return fmt.Errorf("%d rows is not a perfect cube: %w", len(rows), ErrSizeMismatch)
	}
	if declaredSize >= 0 && declaredSize != n {
		return fmt.Errorf("LUT_3D_SIZE %d, but %d rows: %w", declaredSize, len(rows), ErrSizeMismatch)
	}
	if n != c.Size() {
		return fmt.Errorf("cube size %d, but %d knots: %w", n, c.Size(), ErrSizeMismatch)
	}

	vals := make([]float64, n*n*n*3)
	idx := 0
	for k:=0; k<n; k++ {
		for j:=0; j<n; j++ {
			for i:=0; i<n; i++ {
				o := ((i*n + j)*n + k) * 3
				vals[o+0], vals[o+1], vals[o+2] = rows[idx][0], rows[idx][1], rows[idx][2]
				idx++
			}
		}
	}

	c.values = vals
	if title != "" {
		c.Title = title
	}
	return nil
}

func parseTriple(fields []string) ([3]float64, bool) {
	ret := [3]float64{}
	if len(fields) != 3 {
		return ret, false
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return ret, false
		}
		ret[i] = v
	}
	return ret, true
}

package emath

// Small fixed-size vectors and matrices, used for colour transforms and
// for the three independent channels of a tonemap.

import(
	"fmt"
	"math"

	"golang.org/x/image/math/f64"
	"gonum.org/v1/gonum/mat"
)

// Use local types so we can hang methods off them. A Mat3 is row-major.
type Vec3 f64.Vec3
type Mat3 f64.Mat3

// Mult is the matrix product a * b.
func (a Mat3)Mult(b Mat3) Mat3 {
	ret := Mat3{}
	for i:=0; i<3; i++ {
		ret.SetRow(i, a.Row(i).RowMult(b))
	}
	return ret
}

// Apply treats v as a column vector: m * v
func (m Mat3)Apply(v Vec3) Vec3 {
	return Vec3{
		(m[3*0+0]*v[0] + m[3*0+1]*v[1] + m[3*0+2]*v[2]),
		(m[3*1+0]*v[0] + m[3*1+1]*v[1] + m[3*1+2]*v[2]),
		(m[3*2+0]*v[0] + m[3*2+1]*v[1] + m[3*2+2]*v[2]),
	}
}

// RowMult treats v as a row vector: v * m. With one colour primary per
// row of m, this is the weighted sum of the primaries.
func (v Vec3)RowMult(m Mat3) Vec3 {
	return m.Transpose().Apply(v)
}

func (m Mat3)Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

func (m Mat3)Row(i int) Vec3 {
	return Vec3{m[3*i+0], m[3*i+1], m[3*i+2]}
}

func (m *Mat3)SetRow(i int, v Vec3) {
	m[3*i+0], m[3*i+1], m[3*i+2] = v[0], v[1], v[2]
}

// Inverse leans on gonum, so we get a proper error for singular matrices.
func (m Mat3)Inverse() (Mat3, error) {
	a := mat.NewDense(3, 3, m[:])
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return Mat3{}, fmt.Errorf("invert %v: %v", m, err)
	}
	ret := Mat3{}
	for i:=0; i<3; i++ {
		for j:=0; j<3; j++ {
			ret[3*i+j] = inv.At(i, j)
		}
	}
	return ret, nil
}

func (m Mat3)String() string {
	str := fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*0+0], m[3*0+1], m[3*0+2])
	str += fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*1+0], m[3*1+1], m[3*1+2])
	str += fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*2+0], m[3*2+1], m[3*2+2])
	return str
}
func (v Vec3)String() string {
	return fmt.Sprintf("[%12.10f, %12.10f, %12.10f]", v[0], v[1], v[2])
}

func (a Vec3)Add(b Vec3) Vec3      { return Vec3{a[0]+b[0], a[1]+b[1], a[2]+b[2]} }
func (a Vec3)Sub(b Vec3) Vec3      { return Vec3{a[0]-b[0], a[1]-b[1], a[2]-b[2]} }
func (a Vec3)Scale(s float64) Vec3 { return Vec3{a[0]*s, a[1]*s, a[2]*s} }
func (a Vec3)Dot(b Vec3) float64   { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a Vec3)Norm2() float64       { return a.Dot(a) }

// MaxAbsDiff is the Chebyshev distance; used for tolerant equality.
func (a Vec3)MaxAbsDiff(b Vec3) float64 {
	d := 0.0
	for i:=0; i<3; i++ {
		if x := math.Abs(a[i]-b[i]); x > d { d = x }
	}
	return d
}

func (v *Vec3)FloorAt(min float64) {
	if v[0] < min { v[0] = min }
	if v[1] < min { v[1] = min }
	if v[2] < min { v[2] = min }
}

func (v *Vec3)CeilingAt(max float64) {
	if v[0] > max { v[0] = max }
	if v[1] > max { v[1] = max }
	if v[2] > max { v[2] = max }
}

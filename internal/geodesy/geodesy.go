// Package geodesy converts between geographic and geocentric coordinates on
// the ellipsoids used by the French national datums.
package geodesy

import "math"

// Ellipsoid is a reference ellipsoid.
type Ellipsoid struct {
	Name string
	A    float64 // semi-major axis, metres
	B    float64 // semi-minor axis, metres
}

// Reference ellipsoids.
var (
	// GRS80 underlies RGF93.
	GRS80 = FromFlattening("GRS80", 6378137.0, 298.257222101)

	// Clarke1880IGN underlies NTF.
	Clarke1880IGN = Ellipsoid{Name: "Clarke 1880 IGN", A: 6378249.2, B: 6356515.0}
)

// FromFlattening builds an ellipsoid from its semi-major axis and inverse flattening.
func FromFlattening(name string, a, invF float64) Ellipsoid {
	return Ellipsoid{Name: name, A: a, B: a * (1 - 1/invF)}
}

// E2 returns the first eccentricity squared.
func (e Ellipsoid) E2() float64 {
	return (e.A*e.A - e.B*e.B) / (e.A * e.A)
}

// Geographic is a position in degrees (longitude east-positive) with
// ellipsoidal height in metres.
type Geographic struct {
	Lng float64
	Lat float64
	Hgt float64
}

// Vector is an earth-centred earth-fixed position or translation in metres.
type Vector struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

const deg = math.Pi / 180.0

// ToGeocentric converts g on e to geocentric coordinates.
func (e Ellipsoid) ToGeocentric(g Geographic) Vector {
	e2 := e.E2()
	lng, lat := g.Lng*deg, g.Lat*deg
	sinLat, cosLat := math.Sincos(lat)
	sinLng, cosLng := math.Sincos(lng)
	n := e.A / math.Sqrt(1-e2*sinLat*sinLat)
	return Vector{
		X: (n + g.Hgt) * cosLat * cosLng,
		Y: (n + g.Hgt) * cosLat * sinLng,
		Z: (n*(1-e2) + g.Hgt) * sinLat,
	}
}

// Convergence limits for FromGeocentric.
const (
	latTolerance  = 1e-12 // radians
	maxIterations = 20
)

// FromGeocentric converts v to geographic coordinates on e.
func (e Ellipsoid) FromGeocentric(v Vector) Geographic {
	e2 := e.E2()
	p := math.Hypot(v.X, v.Y)
	lng := math.Atan2(v.Y, v.X)

	if p < 1e-9 {
		// On the polar axis.
		lat := math.Copysign(math.Pi/2, v.Z)
		return Geographic{Lng: 0, Lat: lat / deg, Hgt: math.Abs(v.Z) - e.B}
	}

	lat := math.Atan2(v.Z, p*(1-e2))
	var hgt float64
	for i := 0; i < maxIterations; i++ {
		sinLat := math.Sin(lat)
		n := e.A / math.Sqrt(1-e2*sinLat*sinLat)
		hgt = p/math.Cos(lat) - n
		next := math.Atan2(v.Z, p*(1-e2*n/(n+hgt)))
		done := math.Abs(next-lat) < latTolerance
		lat = next
		if done {
			break
		}
	}
	sinLat := math.Sin(lat)
	n := e.A / math.Sqrt(1-e2*sinLat*sinLat)
	hgt = p/math.Cos(lat) - n
	return Geographic{Lng: lng / deg, Lat: lat / deg, Hgt: hgt}
}

// Translate moves g from ellipsoid from to ellipsoid to by adding the
// geocentric translation t.
func Translate(g Geographic, from, to Ellipsoid, t Vector) Geographic {
	return to.FromGeocentric(from.ToGeocentric(g).Add(t))
}

// NTFToRGF93 is the published mean translation from NTF to RGF93 geocentric
// coordinates.
var NTFToRGF93 = Vector{X: -168, Y: -60, Z: 320}

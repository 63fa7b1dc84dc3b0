package workflow

import "math"

// Coordinates is a sidereal position in degrees. RA lies in [0, 360), Dec in
// [-90, 90].
type Coordinates struct {
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`
}

// CoordinateLimits describes a rectangular sky window in degrees. When
// RAStart > RAEnd the RA interval wraps past 360/0 degrees. All four boundaries are
// inclusive.
type CoordinateLimits struct {
	RAStart  float64 `json:"ra_start"`
	RAEnd    float64 `json:"ra_end"`
	DecStart float64 `json:"dec_start"`
	DecEnd   float64 `json:"dec_end"`
}

// Contains reports whether the point lies within the window. The RA check
// handles wraparound: a window with RAStart > RAEnd covers
// [RAStart, 360) plus [0, RAEnd].
func (l CoordinateLimits) Contains(c Coordinates) bool {
	if c.Dec < l.DecStart || c.Dec > l.DecEnd {
		return false
	}
	if l.RAStart <= l.RAEnd {
		return c.RA >= l.RAStart && c.RA <= l.RAEnd
	}
	return c.RA >= l.RAStart || c.RA <= l.RAEnd
}

// Centroid returns the mean position of the given coordinates. The mean is
// taken over unit vectors so RA wraparound needs no special casing; an empty
// input yields the origin.
func Centroid(coords []Coordinates) Coordinates {
	if len(coords) == 0 {
		return Coordinates{}
	}
	if len(coords) == 1 {
		return coords[0]
	}
	var x, y, z float64
	for _, c := range coords {
		ra := c.RA * math.Pi / 180
		dec := c.Dec * math.Pi / 180
		x += math.Cos(dec) * math.Cos(ra)
		y += math.Cos(dec) * math.Sin(ra)
		z += math.Sin(dec)
	}
	n := float64(len(coords))
	x, y, z = x/n, y/n, z/n
	ra := math.Atan2(y, x) * 180 / math.Pi
	if ra < 0 {
		ra += 360
	}
	dec := math.Atan2(z, math.Hypot(x, y)) * 180 / math.Pi
	return Coordinates{RA: ra, Dec: dec}
}

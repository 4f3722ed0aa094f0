package domain

// Coordinates is a geographic point (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

// LonLat returns the point as [lon, lat], the order routing APIs expect.
func (c Coordinates) LonLat() []float64 { return []float64{c.Lon, c.Lat} }

// CoordinatesFromLonLat is the inverse of LonLat. ok is false unless exactly two values are given.
func CoordinatesFromLonLat(v []float64) (c Coordinates, ok bool) {
	if len(v) != 2 {
		return Coordinates{}, false
	}
	return Coordinates{Lon: v[0], Lat: v[1]}, true
}

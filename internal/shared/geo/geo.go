package geo

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

type Point struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func (p Point) DistanceKm(o Point) float64 {
	return HaversineKm(p.Lat, p.Lng, o.Lat, o.Lng)
}

// Near formats the coordinate fallback used when no address is known.
func (p Point) Near() string {
	return fmt.Sprintf("Near %.4f, %.4f", p.Lat, p.Lng)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

package routes

import (
	"math"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/models"
)

// KmPerDegree converts planar lat/lng distance into kilometres. It is an
// equator approximation and only meant for ordering and rough totals.
const KmPerDegree = 111.32

func planarDistance(a, b *models.Coordinates) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lng-b.Lng)
}

// NearestNeighbour orders stops greedily starting from the first stop with
// coordinates. Ties go to the stop that came first in the input. Stops
// without coordinates keep their relative order at the tail.
func NearestNeighbour(stops []*models.Stop) ([]*models.Stop, error) {
	located := make([]*models.Stop, 0, len(stops))
	var blind []*models.Stop
	for _, s := range stops {
		if s.Coords == nil {
			blind = append(blind, s)
			continue
		}
		located = append(located, s)
	}
	if len(located) < 2 {
		return nil, errs.InsufficientCoordinates(len(located))
	}

	out := make([]*models.Stop, 0, len(stops))
	used := make([]bool, len(located))
	cur := located[0]
	used[0] = true
	out = append(out, cur)
	for len(out) < len(located) {
		best, bestDist := -1, math.Inf(1)
		for i, s := range located {
			if used[i] {
				continue
			}
			if d := planarDistance(cur.Coords, s.Coords); d < bestDist {
				best, bestDist = i, d
			}
		}
		used[best] = true
		cur = located[best]
		out = append(out, cur)
	}
	return append(out, blind...), nil
}

// TwoOpt improves an open path by reversing segments while that shortens it.
// The first stop stays in place and stops without coordinates are left at
// the tail. The scan order is fixed, so the result is deterministic.
func TwoOpt(stops []*models.Stop) []*models.Stop {
	n := 0
	for n < len(stops) && stops[n].Coords != nil {
		n++
	}
	path := append([]*models.Stop(nil), stops...)
	if n < 4 {
		return path
	}

	const eps = 1e-12
	for improved := true; improved; {
		improved = false
		for i := 1; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				a, b := path[i-1].Coords, path[i].Coords
				c := path[j].Coords
				before := planarDistance(a, b)
				after := planarDistance(a, c)
				if j+1 < n {
					d := path[j+1].Coords
					before += planarDistance(c, d)
					after += planarDistance(b, d)
				}
				if after+eps < before {
					reverse(path[i : j+1])
					improved = true
				}
			}
		}
	}
	return path
}

func reverse(s []*models.Stop) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// PathMetrics returns the planar length of the path through the located
// stops in order, in km, and the time to drive it plus a fixed service time
// at each stop, in minutes.
func PathMetrics(stops []*models.Stop, speedKmh, serviceMinutes float64) (km, minutes float64) {
	var prev *models.Coordinates
	for _, s := range stops {
		if s.Coords == nil {
			continue
		}
		if prev != nil {
			km += planarDistance(prev, s.Coords) * KmPerDegree
		}
		prev = s.Coords
	}
	if speedKmh > 0 {
		minutes = km / speedKmh * 60
	}
	minutes += serviceMinutes * float64(len(stops))
	return math.Round(km*100) / 100, math.Round(minutes*10) / 10
}

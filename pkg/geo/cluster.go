// Package geo provides great-circle distance and proximity clustering for
// candidate activities.
package geo

import (
	"math"

	"github.com/codeGROOVE-dev/tripgen/pkg/catalog"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two coordinates in
// kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Cluster groups candidates within a proximity threshold of a seed
// candidate. Members are indexes into the slice passed to
// ClusterByProximity; Lat/Lon are the seed's coordinates.
type Cluster struct {
	Members        []int
	Lat            float64
	Lon            float64
	HasCoordinates bool
}

// ClusterByProximity partitions candidates into proximity clusters with a
// single greedy pass: each not-yet-assigned candidate seeds a new cluster
// and absorbs every remaining unassigned candidate within thresholdKm of
// the seed. Candidates without coordinates become singleton clusters.
//
// The partition is order-dependent by construction; it trades optimality
// for a single O(n²) pass, which is fine at tens of candidates.
func ClusterByProximity(cands []catalog.Candidate, thresholdKm float64) []Cluster {
	assigned := make([]bool, len(cands))
	var clusters []Cluster

	for i := range cands {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		cluster := Cluster{
			Members:        []int{i},
			Lat:            cands[i].Lat,
			Lon:            cands[i].Lon,
			HasCoordinates: cands[i].HasCoordinates,
		}
		if cands[i].HasCoordinates {
			for j := i + 1; j < len(cands); j++ {
				if assigned[j] || !cands[j].HasCoordinates {
					continue
				}
				if HaversineKm(cands[i].Lat, cands[i].Lon, cands[j].Lat, cands[j].Lon) <= thresholdKm {
					assigned[j] = true
					cluster.Members = append(cluster.Members, j)
				}
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

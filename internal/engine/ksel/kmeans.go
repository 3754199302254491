package ksel

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/kailas-cloud/topicdex/internal/domain"
)

const (
	kmeansInit    = 10
	kmeansMaxIter = 300
)

// KMeans partitions rows into k clusters with Lloyd iterations from
// k-means++ seeds. The best of kmeansInit restarts (lowest inertia) is kept.
func KMeans(rows [][]float64, k int, seed int64) ([]int, float64) {
	rng := rand.New(rand.NewSource(seed))
	var (
		best        []int
		bestInertia = math.Inf(1)
	)
	for run := 0; run < kmeansInit; run++ {
		labels, inertia := lloyd(rows, seedCenters(rows, k, rng))
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}
	return best, bestInertia
}

func seedCenters(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(rows[rng.Intn(len(rows))]))
	d2 := make([]float64, len(rows))
	for len(centers) < k {
		var total float64
		for i, r := range rows {
			d2[i] = math.Inf(1)
			for _, c := range centers {
				if d := sqDist(r, c); d < d2[i] {
					d2[i] = d
				}
			}
			total += d2[i]
		}
		if total == 0 {
			centers = append(centers, clone(rows[rng.Intn(len(rows))]))
			continue
		}
		target := rng.Float64() * total
		pick := len(rows) - 1
		for i, d := range d2 {
			target -= d
			if target <= 0 {
				pick = i
				break
			}
		}
		centers = append(centers, clone(rows[pick]))
	}
	return centers
}

func lloyd(rows [][]float64, centers [][]float64) ([]int, float64) {
	k := len(centers)
	dim := len(rows[0])
	labels := make([]int, len(rows))
	for i := range labels {
		labels[i] = -1
	}
	var inertia float64
	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		inertia = 0
		for i, r := range rows {
			best, bestD := 0, math.Inf(1)
			for c, center := range centers {
				if d := sqDist(r, center); d < bestD {
					best, bestD = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
			inertia += bestD
		}
		if !changed {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, r := range rows {
			floats.Add(sums[labels[i]], r)
			counts[labels[i]]++
		}
		for c := range centers {
			// an empty cluster keeps its previous center
			if counts[c] > 0 {
				floats.ScaleTo(centers[c], 1/float64(counts[c]), sums[c])
			}
		}
	}
	return labels, inertia
}

// Silhouette returns the mean silhouette coefficient of the labeling under
// Euclidean distance. It returns domain.ErrDegenerateCluster when fewer than
// two distinct labels occur.
func Silhouette(rows [][]float64, labels []int) (float64, error) {
	clusters := make(map[int][]int)
	for i, l := range labels {
		clusters[l] = append(clusters[l], i)
	}
	if len(clusters) < 2 {
		return -1, fmt.Errorf("silhouette: %w: %d cluster(s)", domain.ErrDegenerateCluster, len(clusters))
	}

	var total float64
	for i, r := range rows {
		own := clusters[labels[i]]
		if len(own) == 1 {
			continue
		}
		var a float64
		for _, j := range own {
			if j != i {
				a += floats.Distance(r, rows[j], 2)
			}
		}
		a /= float64(len(own) - 1)

		b := math.Inf(1)
		for l, members := range clusters {
			if l == labels[i] {
				continue
			}
			var d float64
			for _, j := range members {
				d += floats.Distance(r, rows[j], 2)
			}
			d /= float64(len(members))
			if d < b {
				b = d
			}
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(len(rows)), nil
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(v []float64) []float64 { return append([]float64(nil), v...) }

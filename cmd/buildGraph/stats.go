package main

import (
	"fmt"
	"sort"
)

// pointStats holds "5%-avg-min", median, and "5%-avg-max" for one X value.
type pointStats struct {
	x      float64 // plotted position
	orig   float64 // unshifted X value
	min    float64 // average of bottom 5%
	median float64
	max    float64 // average of top 5%
}

// statsPoints implements XYer and YErrorer so a series can be drawn as a
// line plus error bars.
type statsPoints []pointStats

func (s statsPoints) Len() int                { return len(s) }
func (s statsPoints) XY(i int) (x, y float64) { return s[i].x, s[i].median }
func (s statsPoints) YError(i int) (low, high float64) {
	return s[i].median - s[i].min, s[i].max - s[i].median
}

// buildStats sorts each sample set in place and summarises it.
func buildStats(samples map[float64][]float64) []pointStats {
	var out []pointStats
	for x, vals := range samples {
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		low, high := tailAverages(vals, 0.05)
		out = append(out, pointStats{
			x:      x,
			orig:   x,
			min:    low,
			median: median(vals),
			max:    high,
		})
	}
	return out
}

// tailAverages returns the averages of the bottom and top frac of sortedVals.
// Both tails use the same bucket size; when it rounds down to zero both fall
// back to the median, so small sample sets get symmetric error bars.
func tailAverages(sortedVals []float64, frac float64) (low, high float64) {
	n := len(sortedVals)
	k := int(float64(n) * frac)
	if k == 0 {
		m := median(sortedVals)
		return m, m
	}
	return mean(sortedVals[:k]), mean(sortedVals[n-k:])
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return 0.5 * (sorted[mid-1] + sorted[mid])
}

// formatNs nicely formats a nanoseconds value in ns, µs, ms, or s.
func formatNs(ns float64) string {
	switch {
	case ns < 1e3:
		return fmt.Sprintf("%.0fns", ns)
	case ns < 1e6:
		return fmt.Sprintf("%.1fµs", ns/1e3)
	case ns < 1e9:
		return fmt.Sprintf("%.1fms", ns/1e6)
	default:
		return fmt.Sprintf("%.2fs", ns/1e9)
	}
}

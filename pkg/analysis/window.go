package analysis

import "math"

// TrendPoint is one sample of a windowed trend. TimeIndex is the turn index
// at the end of the window that produced the value.
type TrendPoint struct {
	TimeIndex int     `json:"time_index"`
	Value     float64 `json:"value"`
}

// windowedTrend slides a non-overlapping window of size w over n items,
// advancing by w starting at index w, and reduces each [start,end) range to a
// single value.
func windowedTrend(n, w int, reduce func(start, end int) float64) []TrendPoint {
	var out []TrendPoint
	if w <= 0 {
		return out
	}
	for end := w; end <= n; end += w {
		out = append(out, TrendPoint{TimeIndex: end, Value: reduce(end-w, end)})
	}
	return out
}

// windowMean reduces a window by averaging a per-item extractor.
func windowMean(extract func(i int) float64) func(start, end int) float64 {
	return func(start, end int) float64 {
		if end <= start {
			return 0
		}
		sum := 0.0
		for i := start; i < end; i++ {
			sum += extract(i)
		}
		return sum / float64(end-start)
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationVariance returns the variance with an n (not n-1) denominator,
// matching the health-score definition.
func populationVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ratio divides safely, returning 0 for a zero denominator.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

// round2 keeps two decimal places, used for reported percentages.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// round1 keeps one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

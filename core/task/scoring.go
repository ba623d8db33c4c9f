package task

import "github.com/shopspring/decimal"

// WeightedAverage is a student's average score where each task weighs 1/groupSize:
//
//	round2( Σ score·(1/size) / Σ (1/size) )
//
// Grades without a score or group are skipped. No grades yields 0.
func WeightedAverage(grades []Grade) float64 {
	var sum, weights float64
	for _, g := range grades {
		if g.Score == nil || g.GroupSize <= 0 {
			continue
		}
		w := 1 / float64(g.GroupSize)
		sum += *g.Score * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return round2(sum / weights)
}

// ClassAverage is the plain mean of student-level averages, rounded to 2 decimals. No averages yields 0.
func ClassAverage(averages []float64) float64 {
	if len(averages) == 0 {
		return 0
	}
	var sum float64
	for _, avg := range averages {
		sum += avg
	}
	return round2(sum / float64(len(averages)))
}

// round2 rounds half away from zero to 2 decimal places.
func round2(x float64) float64 {
	f, _ := decimal.NewFromFloat(x).Round(2).Float64()
	return f
}

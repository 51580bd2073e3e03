package domain

import (
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// TTestResult holds the per-cell Welch's t-test outputs. T carries the
// signed statistic (negative = backscatter drop), DF the Welch-Satterthwaite
// degrees of freedom. NBaseline and NAssessment record the valid observation
// count per cell, for diagnostics.
type TTestResult struct {
	T           *Raster
	DF          *Raster
	NBaseline   *Raster
	NAssessment *Raster
}

// WelchTTest computes the per-cell Welch's t-statistic between two stacks.
// Cells where either stack has fewer than 2 valid observations get NaN.
// Cells with zero variance in both stacks and identical means get t = 0.
// The computation is independent per cell and fans rows out across CPUs.
func WelchTTest(baseline, assessment *ImageStack) (*TTestResult, error) {
	if err := alignGrids(baseline.Grid, assessment.Grid); err != nil {
		return nil, err
	}

	grid := baseline.Grid
	res := &TTestResult{
		T:           NewNoDataRaster(grid),
		DF:          NewNoDataRaster(grid),
		NBaseline:   NewRaster(grid),
		NAssessment: NewRaster(grid),
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > grid.Height {
		workers = grid.Height
	}
	if workers < 1 {
		workers = 1
	}

	rows := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bufB := make([]float64, 0, baseline.Len())
			bufA := make([]float64, 0, assessment.Len())
			for row := range rows {
				for col := 0; col < grid.Width; col++ {
					i := row*grid.Width + col
					bufB = baseline.SamplesAt(i, bufB)
					bufA = assessment.SamplesAt(i, bufA)
					res.NBaseline.Data[i] = float64(len(bufB))
					res.NAssessment.Data[i] = float64(len(bufA))
					if len(bufB) < minStackSize || len(bufA) < minStackSize {
						continue // stays NaN
					}
					t, df := welchCell(bufB, bufA)
					res.T.Data[i] = t
					res.DF.Data[i] = df
				}
			}
		}()
	}

	for row := 0; row < grid.Height; row++ {
		rows <- row
	}
	close(rows)
	wg.Wait()

	return res, nil
}

// welchCell computes (t, df) for one cell from the valid samples of each
// stack. Samples are in decibels; variance is the unbiased estimator.
func welchCell(baseline, assessment []float64) (float64, float64) {
	meanB, varB := stat.MeanVariance(baseline, nil)
	meanA, varA := stat.MeanVariance(assessment, nil)
	nB := float64(len(baseline))
	nA := float64(len(assessment))

	seB := varB / nB
	seA := varA / nA
	denom := math.Sqrt(seA + seB)

	diff := meanA - meanB
	if denom == 0 {
		// Degenerate: both stacks constant. Equal means are no change;
		// unequal constant means are an unbounded signal.
		if diff == 0 {
			return 0, math.NaN()
		}
		return math.Inf(sign(diff)), math.NaN()
	}

	t := diff / denom

	// Welch-Satterthwaite approximation.
	df := (seA + seB) * (seA + seB) / (seA*seA/(nA-1) + seB*seB/(nB-1))
	return t, df
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}

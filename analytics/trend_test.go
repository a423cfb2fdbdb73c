package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthsFrom(start time.Time, counts []int) []ActivityPoint {
	points := make([]ActivityPoint, len(counts))
	for i, c := range counts {
		points[i] = ActivityPoint{Month: start.AddDate(0, i, 0), Count: c}
	}
	return points
}

func TestBuildMonthlySeriesFillsGapMonths(t *testing.T) {
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	series := BuildMonthlySeries([]time.Time{jan, jan, mar})
	require.Len(t, series, 3, "february should be filled with a zero count")
	assert.Equal(t, 2, series[0].Count)
	assert.Equal(t, 0, series[1].Count)
	assert.Equal(t, 1, series[2].Count)
}

func TestBuildMonthlySeriesEmptyInput(t *testing.T) {
	assert.Nil(t, BuildMonthlySeries(nil))
}

func TestAnalyzeClassifiesRisingTrend(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := monthsFrom(start, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})

	trend := TrendPredictor{}.Analyze(series, PhaseInnovationTrigger)
	assert.Equal(t, DirectionRising, trend.Direction)
	assert.Greater(t, trend.Slope, slopeThreshold)
	assert.Greater(t, trend.RSquared, 0.9)
	assert.Equal(t, PhasePeakOfExpectations, trend.NextPhase)
	assert.Less(t, trend.MonthsToNextPhase, baseDurationMonths[PhaseInnovationTrigger], "rising trend should shorten the time to the next phase")
}

func TestAnalyzeClassifiesDecliningTrend(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := monthsFrom(start, []int{12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1})

	trend := TrendPredictor{}.Analyze(series, PhasePeakOfExpectations)
	assert.Equal(t, DirectionDeclining, trend.Direction)
	assert.Less(t, trend.Slope, -slopeThreshold)
	assert.Equal(t, PhaseTroughOfDisillusionment, trend.NextPhase)
	assert.Greater(t, trend.MonthsToNextPhase, baseDurationMonths[PhasePeakOfExpectations], "declining trend should lengthen the time to the next phase")
}

func TestAnalyzeClassifiesVolatileOnPoorFit(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := monthsFrom(start, []int{10, 1, 9, 2, 11, 0, 8, 3, 12, 1, 7, 4})

	trend := TrendPredictor{}.Analyze(series, PhaseInnovationTrigger)
	assert.Equal(t, DirectionVolatile, trend.Direction)
	assert.Less(t, trend.RSquared, r2VolatileThreshold)
	assert.Contains(t, trend.Risks, "activity series does not fit a stable linear trend")
}

func TestAnalyzeClassifiesStableWhenFlat(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := monthsFrom(start, []int{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5})

	trend := TrendPredictor{}.Analyze(series, PhaseSlopeOfEnlightenment)
	assert.Equal(t, DirectionStable, trend.Direction)
	assert.Equal(t, PhasePlateauOfProductivity, trend.NextPhase)
}

func TestAnalyzeFinalPhaseHasNoNextTransition(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := monthsFrom(start, []int{5, 5, 5, 5, 5, 5})

	trend := TrendPredictor{}.Analyze(series, PhasePlateauOfProductivity)
	assert.Equal(t, PhasePlateauOfProductivity, trend.NextPhase)
	assert.Equal(t, 0.0, trend.MonthsToNextPhase)
}

func TestConfidenceScoreIsClamped(t *testing.T) {
	assert.GreaterOrEqual(t, confidenceScore(0, 0, 0, 10), 0.1)
	assert.LessOrEqual(t, confidenceScore(48, 1, 10, 0), 0.9)
}

func TestAnalyzeShortHistoryAddsRiskFactor(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := monthsFrom(start, []int{1, 2, 3})

	trend := TrendPredictor{}.Analyze(series, PhaseInnovationTrigger)
	assert.Contains(t, trend.Risks, "short activity history reduces forecast reliability")
}

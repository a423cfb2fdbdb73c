// trend.go implements TrendPredictor (spec §4.9): linear regression over a
// monthly activity series, direction classification, lifecycle-phase
// prediction, and a bounded confidence score.
package analytics

import (
	"math"
	"sort"
	"time"
)

// TrendDirection is a closed tag for a fitted trend's classification.
type TrendDirection string

const (
	DirectionRising    TrendDirection = "rising"
	DirectionStable    TrendDirection = "stable"
	DirectionDeclining TrendDirection = "declining"
	DirectionVolatile  TrendDirection = "volatile"
)

// LifecyclePhase is a closed tag for the Gartner-style hype-cycle ordering
// spec §4.9 names.
type LifecyclePhase string

const (
	PhaseInnovationTrigger       LifecyclePhase = "innovation_trigger"
	PhasePeakOfExpectations      LifecyclePhase = "peak_of_expectations"
	PhaseTroughOfDisillusionment LifecyclePhase = "trough_of_disillusionment"
	PhaseSlopeOfEnlightenment    LifecyclePhase = "slope_of_enlightenment"
	PhasePlateauOfProductivity   LifecyclePhase = "plateau_of_productivity"
)

var lifecycleOrder = []LifecyclePhase{
	PhaseInnovationTrigger, PhasePeakOfExpectations, PhaseTroughOfDisillusionment,
	PhaseSlopeOfEnlightenment, PhasePlateauOfProductivity,
}

// baseDurationMonths is each phase's typical duration before trend
// adjustment, a rough per-phase scale in months (an order of magnitude,
// not a calibrated forecast).
var baseDurationMonths = map[LifecyclePhase]float64{
	PhaseInnovationTrigger:       6,
	PhasePeakOfExpectations:      9,
	PhaseTroughOfDisillusionment: 12,
	PhaseSlopeOfEnlightenment:    18,
	PhasePlateauOfProductivity:   24,
}

// slopeThreshold and r2VolatileThreshold are spec §4.9's named defaults.
const (
	slopeThreshold      = 0.1
	r2VolatileThreshold = 0.3
)

// ActivityPoint is one month's observed activity count.
type ActivityPoint struct {
	Month time.Time // truncated to the first of the month
	Count int
}

// Trend is TrendPredictor's output for one activity series.
type Trend struct {
	Direction         TrendDirection
	Slope             float64
	RSquared          float64
	CurrentPhase      LifecyclePhase
	NextPhase         LifecyclePhase
	MonthsToNextPhase float64
	Confidence        float64
	Factors           []string
	Risks             []string
}

// TrendPredictor fits trends to monthly activity series built from events
// (spec §4.9).
type TrendPredictor struct{}

// BuildMonthlySeries buckets a slice of event timestamps into monthly
// activity counts, sorted ascending by month, filling any gap months with
// a zero count so the regression sees a uniform time axis.
func BuildMonthlySeries(timestamps []time.Time) []ActivityPoint {
	if len(timestamps) == 0 {
		return nil
	}
	counts := make(map[time.Time]int)
	for _, ts := range timestamps {
		month := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
		counts[month]++
	}

	var months []time.Time
	for m := range counts {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	first, last := months[0], months[len(months)-1]
	var series []ActivityPoint
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		series = append(series, ActivityPoint{Month: m, Count: counts[m]})
	}
	return series
}

// Analyze fits a linear trend to series and classifies its direction,
// predicts the next lifecycle-phase transition, and scores confidence.
func (TrendPredictor) Analyze(series []ActivityPoint, currentPhase LifecyclePhase) Trend {
	slope, rSquared := linearRegression(series)

	direction := classifyDirection(slope, rSquared)

	next, monthsToNext := predictNextPhase(currentPhase, direction, slope)

	var factors, risks []string
	if rSquared >= 0.6 {
		factors = append(factors, "strong linear fit to recent activity")
	}
	if len(series) >= 12 {
		factors = append(factors, "at least a year of history available")
	} else {
		risks = append(risks, "short activity history reduces forecast reliability")
	}
	totalActivity := 0
	for _, p := range series {
		totalActivity += p.Count
	}
	if totalActivity < 10 {
		risks = append(risks, "low total activity volume")
	}
	if direction == DirectionVolatile {
		risks = append(risks, "activity series does not fit a stable linear trend")
	}

	confidence := confidenceScore(len(series), rSquared, len(factors), len(risks))

	return Trend{
		Direction:         direction,
		Slope:             slope,
		RSquared:          rSquared,
		CurrentPhase:      currentPhase,
		NextPhase:         next,
		MonthsToNextPhase: monthsToNext,
		Confidence:        confidence,
		Factors:           factors,
		Risks:             risks,
	}
}

// linearRegression fits count ~ month_index via ordinary least squares,
// returning the slope and R².
func linearRegression(series []ActivityPoint) (slope, rSquared float64) {
	n := float64(len(series))
	if n < 2 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range series {
		x := float64(i)
		y := float64(p.Count)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, p := range series {
		x := float64(i)
		y := float64(p.Count)
		predicted := slope*x + intercept
		ssRes += (y - predicted) * (y - predicted)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		return slope, 1
	}
	rSquared = 1 - ssRes/ssTot
	if rSquared < 0 {
		rSquared = 0
	}
	return slope, rSquared
}

func classifyDirection(slope, rSquared float64) TrendDirection {
	if rSquared < r2VolatileThreshold {
		return DirectionVolatile
	}
	switch {
	case slope > slopeThreshold:
		return DirectionRising
	case slope < -slopeThreshold:
		return DirectionDeclining
	default:
		return DirectionStable
	}
}

// predictNextPhase returns the phase after current and the trend-adjusted
// months until that transition: rising activity divides the base duration
// by 1+|slope|, declining activity multiplies it by 1+|slope|, and a
// volatile series multiplies it by a fixed 1.25.
func predictNextPhase(current LifecyclePhase, direction TrendDirection, slope float64) (LifecyclePhase, float64) {
	idx := phaseIndex(current)
	base := baseDurationMonths[current]
	if idx < 0 || idx >= len(lifecycleOrder)-1 {
		return current, 0 // already at (or past) the final phase
	}
	next := lifecycleOrder[idx+1]

	adjustment := 1.0
	switch direction {
	case DirectionRising:
		adjustment = 1.0 / (1.0 + math.Abs(slope))
	case DirectionDeclining:
		adjustment = 1.0 + math.Abs(slope)
	case DirectionVolatile:
		adjustment = 1.25 // volatile series carry more forecast uncertainty, not just longer duration
	}
	return next, base * adjustment
}

func phaseIndex(p LifecyclePhase) int {
	for i, lp := range lifecycleOrder {
		if lp == p {
			return i
		}
	}
	return -1
}

// confidenceScore combines data-coverage and fit-quality bases with a
// positive-factor bonus and risk penalty, clamped to [0.1, 0.9] per spec
// §4.9.
func confidenceScore(numMonths int, rSquared float64, numFactors, numRisks int) float64 {
	coverage := math.Min(float64(numMonths)/24.0, 1.0) // a 2-year history is "full" coverage
	base := 0.3 + 0.3*coverage + 0.2*rSquared
	score := base + 0.05*float64(numFactors) - 0.08*float64(numRisks)
	if score < 0.1 {
		score = 0.1
	}
	if score > 0.9 {
		score = 0.9
	}
	return score
}

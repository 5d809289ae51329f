package analysis

import (
	"math"

	"lingopulse-server/pkg/conversation"
)

// Cohesion insight labels.
const (
	CohesionStrong   = "strongly coherent"
	CohesionModerate = "moderately coherent"
	CohesionLow      = "incoherent"
)

// StructureResult is the structural-cohesion view: how tightly adjacent
// turns hang together, plus the windowed satisfaction trend.
type StructureResult struct {
	CohesionTrend     []TrendPoint `json:"cohesion_trend"`
	SatisfactionTrend []TrendPoint `json:"satisfaction_trend"`
	OverallCohesion   float64      `json:"overall_cohesion"`
	Insight           string       `json:"insight"`
}

// cohesionWindow counts adjacent-turn pairs within [start,end) whose
// similarity clears the connection threshold, normalized by window size.
func (a *Analyzer) cohesionWindow(turns []conversation.Turn, start, end int) float64 {
	connections := 0
	for i := start + 1; i < end; i++ {
		if Similarity(turns[i-1].Content, turns[i].Content) > a.opts.CohesionThreshold {
			connections++
		}
	}
	width := end - start
	if width <= 1 {
		return 0
	}
	return float64(connections) / float64(width-1)
}

// AnalyzeStructure computes the cohesion and satisfaction trends over fixed
// windows and labels the conversation's overall coherence.
func (a *Analyzer) AnalyzeStructure(conv *conversation.Conversation) *StructureResult {
	result := &StructureResult{}
	n := conv.Len()

	result.CohesionTrend = windowedTrend(n, a.opts.CohesionWindow, func(start, end int) float64 {
		return round2(a.cohesionWindow(conv.Turns, start, end))
	})
	satisfaction := windowMean(func(i int) float64 {
		return math.Max(0, a.ScoreTurn(conv.Turns[i].Content))
	})
	result.SatisfactionTrend = windowedTrend(n, a.opts.SatisfactionWindow, func(start, end int) float64 {
		return round2(satisfaction(start, end))
	})

	if n > 1 {
		result.OverallCohesion = round2(a.cohesionWindow(conv.Turns, 0, n))
	}
	result.Insight = cohesionLabel(result.OverallCohesion)
	return result
}

func cohesionLabel(cohesion float64) string {
	switch {
	case cohesion > 0.7:
		return CohesionStrong
	case cohesion > 0.4:
		return CohesionModerate
	default:
		return CohesionLow
	}
}

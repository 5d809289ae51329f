package analysis

import (
	"math"
	"strings"

	"lingopulse-server/pkg/conversation"
)

// Pulse pattern types.
const (
	PatternRising      = "rising"
	PatternFalling     = "falling"
	PatternOscillating = "oscillating"
	PatternStable      = "stable"
)

// PulsePoint is one turn's place on the conversation's intensity curve.
type PulsePoint struct {
	TurnIndex  int     `json:"turn_index"`
	Speaker    string  `json:"speaker"`
	Timestamp  string  `json:"timestamp"`
	Intensity  float64 `json:"intensity"`
	Sentiment  float64 `json:"sentiment"`
	Engagement float64 `json:"engagement"`
	Clarity    float64 `json:"clarity"`
}

// PulsePattern describes one detected shape of the intensity curve.
type PulsePattern struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Type         string  `json:"type"`
	Confidence   float64 `json:"confidence"`
	AvgIntensity float64 `json:"avg_intensity"`
	Volatility   float64 `json:"volatility"`
}

// PulseResult is the conversation-pulse view: the per-turn intensity curve,
// the patterns it exhibits, and derived health indicators.
type PulseResult struct {
	OverallScore    float64        `json:"overall_score"`
	Points          []PulsePoint   `json:"points"`
	Patterns        []PulsePattern `json:"patterns"`
	Insights        []string       `json:"insights"`
	Recommendations []string       `json:"recommendations"`
	PeakIntensity   float64        `json:"peak_intensity"`
	AvgIntensity    float64        `json:"avg_intensity"`
	StabilityScore  float64        `json:"stability_score"`
	MomentumScore   float64        `json:"momentum_score"`
}

// pulseIntensity blends the feature vector into a single [0,1] intensity.
func pulseIntensity(f TurnFeatures) float64 {
	intensity := f.EngagementScore*0.3 +
		f.EmotionalIntensity*0.25 +
		f.ComplexityScore*0.2 +
		(float64(f.WordCount)/50)*0.15 +
		f.ConfidenceLevel*0.1
	if f.WordCount > 0 {
		intensity += 0.1
	}
	return clamp(intensity, 0, 1)
}

// AnalyzePulse builds the intensity curve from per-turn features, detects
// rising/falling/oscillating/stable patterns over it, and derives insight
// and recommendation text from what it found.
func (a *Analyzer) AnalyzePulse(conv *conversation.Conversation) *PulseResult {
	result := &PulseResult{}

	for i, turn := range conv.Turns {
		f := a.ExtractFeatures(turn, conv.Turns[:i])
		result.Points = append(result.Points, PulsePoint{
			TurnIndex:  i,
			Speaker:    turn.Speaker,
			Timestamp:  turn.Timestamp,
			Intensity:  round2(pulseIntensity(f)),
			Sentiment:  f.SentimentScore,
			Engagement: round2(f.EngagementScore),
			Clarity:    round2(f.ClarityScore),
		})
	}

	intensities := make([]float64, len(result.Points))
	for i, p := range result.Points {
		intensities[i] = p.Intensity
	}

	result.Patterns = detectPulsePatterns(intensities)
	result.Insights = pulseInsights(result.Points, result.Patterns, intensities)
	result.Recommendations = pulseRecommendations(result.Patterns, result.Insights)

	if len(intensities) > 0 {
		peak := intensities[0]
		for _, v := range intensities[1:] {
			if v > peak {
				peak = v
			}
		}
		result.PeakIntensity = peak
		result.AvgIntensity = round2(mean(intensities))
	}
	result.StabilityScore = round2(stabilityScore(intensities))
	result.MomentumScore = round2(momentumScore(intensities))
	result.OverallScore = round2(overallPulseScore(intensities, result.Patterns))
	return result
}

func detectPulsePatterns(intensities []float64) []PulsePattern {
	if len(intensities) < 3 {
		return nil
	}
	var patterns []PulsePattern
	vol := volatility(intensities)
	avg := mean(intensities)

	if len(intensities) >= 5 {
		slope := regressionSlope(intensities)
		if slope > 0.05 {
			patterns = append(patterns, PulsePattern{
				Name:         "rising trend",
				Description:  "conversation intensity is climbing; engagement and interest are growing",
				Type:         PatternRising,
				Confidence:   math.Min(slope*10, 1),
				AvgIntensity: avg,
				Volatility:   vol,
			})
		}
		if slope < -0.05 {
			patterns = append(patterns, PulsePattern{
				Name:         "falling trend",
				Description:  "conversation intensity is dropping; this can signal fatigue or waning interest",
				Type:         PatternFalling,
				Confidence:   math.Min(math.Abs(slope)*10, 1),
				AvgIntensity: avg,
				Volatility:   vol,
			})
		}
	}

	if len(intensities) >= 6 {
		if ratio := directionChangeRatio(intensities); ratio > 0.4 {
			patterns = append(patterns, PulsePattern{
				Name:         "oscillating",
				Description:  "intensity swings frequently; topics or moods may be shifting",
				Type:         PatternOscillating,
				Confidence:   math.Min(ratio*2, 1),
				AvgIntensity: avg,
				Volatility:   vol,
			})
		}
	}

	if len(intensities) >= 4 && vol < 0.1 {
		patterns = append(patterns, PulsePattern{
			Name:         "stable",
			Description:  "intensity holds steady; the exchange has a smooth rhythm",
			Type:         PatternStable,
			Confidence:   1 - math.Min(vol*5, 1),
			AvgIntensity: avg,
			Volatility:   vol,
		})
	}
	return patterns
}

// regressionSlope is the least-squares slope of values over their indexes.
func regressionSlope(values []float64) float64 {
	n := float64(len(values))
	xMean := (n - 1) / 2
	yMean := mean(values)
	num := 0.0
	den := 0.0
	for i, y := range values {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// directionChangeRatio counts local extrema relative to the number of
// interior points.
func directionChangeRatio(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	changes := 0
	for i := 2; i < len(values); i++ {
		rising := values[i] > values[i-1] && values[i-1] <= values[i-2]
		falling := values[i] < values[i-1] && values[i-1] >= values[i-2]
		if rising || falling {
			changes++
		}
	}
	return float64(changes) / float64(len(values)-2)
}

func volatility(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return math.Sqrt(populationVariance(values))
}

func stabilityScore(intensities []float64) float64 {
	if len(intensities) < 2 {
		return 1
	}
	return math.Max(0, 1-volatility(intensities)*2)
}

// momentumScore is the positive intensity delta across the last three turns.
func momentumScore(intensities []float64) float64 {
	if len(intensities) < 3 {
		return 0
	}
	recent := intensities[len(intensities)-3:]
	return clamp(recent[len(recent)-1]-recent[0], 0, 1)
}

func overallPulseScore(intensities []float64, patterns []PulsePattern) float64 {
	if len(intensities) == 0 {
		return 0
	}
	stability := 1 - volatility(intensities)
	patternConfidence := 0.5
	for _, p := range patterns {
		if p.Confidence > patternConfidence {
			patternConfidence = p.Confidence
		}
	}
	return clamp(mean(intensities)*0.4+stability*0.3+patternConfidence*0.3, 0, 1)
}

func pulseInsights(points []PulsePoint, patterns []PulsePattern, intensities []float64) []string {
	var insights []string
	for _, p := range patterns {
		switch {
		case p.Type == PatternRising && p.Confidence > 0.7:
			insights = append(insights, "the conversation shows a positive upward trend with rising engagement")
		case p.Type == PatternFalling && p.Confidence > 0.7:
			insights = append(insights, "intensity is trending down; consider changing topic or taking a break")
		case p.Type == PatternOscillating && p.Confidence > 0.6:
			insights = append(insights, "intensity fluctuates noticeably; topic continuity may need attention")
		case p.Type == PatternStable && p.Confidence > 0.8:
			insights = append(insights, "the conversation keeps a steady rhythm; the exchange is flowing well")
		}
	}
	if len(points) > 0 {
		avg := mean(intensities)
		if avg > 0.7 {
			insights = append(insights, "overall intensity is high; both sides are deeply engaged")
		} else if avg < 0.3 {
			insights = append(insights, "overall intensity is low; more active interaction may help")
		}
		minSent, maxSent := points[0].Sentiment, points[0].Sentiment
		for _, p := range points[1:] {
			if p.Sentiment < minSent {
				minSent = p.Sentiment
			}
			if p.Sentiment > maxSent {
				maxSent = p.Sentiment
			}
		}
		if maxSent-minSent > 0.6 {
			insights = append(insights, "sentiment swings widely across the conversation; emotional shifts deserve attention")
		}
	}
	return insights
}

func pulseRecommendations(patterns []PulsePattern, insights []string) []string {
	var recs []string
	for _, p := range patterns {
		switch {
		case p.Type == PatternFalling && p.Confidence > 0.6:
			recs = append(recs,
				"introduce a new topic or ask questions to rekindle interest",
				"check for misunderstandings and clarify where needed")
		case p.Type == PatternOscillating && p.Confidence > 0.5:
			recs = append(recs,
				"keep the current topic going instead of switching frequently",
				"signal transitions clearly when the topic does change")
		case p.Type == PatternRising && p.Confidence > 0.7:
			recs = append(recs,
				"keep the current pace and depth of discussion",
				"explore related themes while engagement is high")
		}
	}
	for _, insight := range insights {
		switch {
		case strings.Contains(insight, "sentiment swings"):
			recs = append(recs, "listen for emotional cues and respond to them promptly")
		case strings.Contains(insight, "intensity is low"):
			recs = append(recs, "ask questions or share more to raise engagement")
		case strings.Contains(insight, "intensity is high"):
			recs = append(recs, "watch the pace to avoid overwhelming the exchange")
		}
	}
	return recs
}

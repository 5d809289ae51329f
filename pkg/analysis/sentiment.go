package analysis

import (
	"fmt"
	"math"
	"strings"

	"lingopulse-server/pkg/conversation"
	"lingopulse-server/pkg/lexicon"
)

// SentimentPoint is the scored sentiment of a single turn.
type SentimentPoint struct {
	TurnIndex int     `json:"turn_index"`
	Speaker   string  `json:"speaker"`
	Timestamp string  `json:"timestamp"`
	Score     float64 `json:"score"`
	Label     string  `json:"label"`
}

// TurningPoint marks a turn whose sentiment score departs sharply from the
// previous turn's.
type TurningPoint struct {
	TurnIndex   int     `json:"turn_index"`
	Magnitude   float64 `json:"magnitude"`
	Direction   string  `json:"direction"`
	Description string  `json:"description"`
}

// SentimentDistribution counts turns per polarity class.
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// SentimentResult is the emotional-health view of a conversation.
type SentimentResult struct {
	Distribution      SentimentDistribution `json:"distribution"`
	Trend             []SentimentPoint      `json:"trend"`
	SpeakerHistories  map[string][]float64  `json:"speaker_histories"`
	TurningPoints     []TurningPoint        `json:"turning_points"`
	EmotionalVariance float64               `json:"emotional_variance"`
	HealthScore       float64               `json:"health_score"`
	HealthLevel       string                `json:"health_level"`
}

// Turning-point direction labels.
const (
	DirectionRecovery = "positive recovery"
	DirectionDecline  = "negative turn"
)

// ScoreTurn maps a text to a polarity score in [-1,1]: 0.3 per matched
// positive lexicon phrase minus 0.3 per matched negative phrase, clamped.
// The neutral bucket exists for classification only and never moves the
// score. Absence of any signal yields exactly 0.
func (a *Analyzer) ScoreTurn(text string) float64 {
	folded := strings.ToLower(text)
	pos := lexicon.CountMatches(folded, a.lex.Sentiment[lexicon.Positive])
	neg := lexicon.CountMatches(folded, a.lex.Sentiment[lexicon.Negative])
	return clamp(0.3*float64(pos)-0.3*float64(neg), -1, 1)
}

// classifySentiment buckets a score using the documented thresholds.
func classifySentiment(score float64) string {
	switch {
	case score > 0.3:
		return lexicon.Positive
	case score < -0.3:
		return lexicon.Negative
	default:
		return lexicon.Neutral
	}
}

// AnalyzeSentiment scores every turn, accumulates the polarity distribution
// and per-speaker histories, detects turning points (adjacent score jumps
// above 0.5) and derives the 0-100 health score. Caps are applied after the
// full conversation has been scored.
func (a *Analyzer) AnalyzeSentiment(conv *conversation.Conversation) *SentimentResult {
	result := &SentimentResult{
		SpeakerHistories: make(map[string][]float64),
	}

	scores := make([]float64, len(conv.Turns))
	var trend []SentimentPoint
	var turningPoints []TurningPoint

	for i, turn := range conv.Turns {
		score := a.ScoreTurn(turn.Content)
		scores[i] = score
		label := classifySentiment(score)

		switch label {
		case lexicon.Positive:
			result.Distribution.Positive++
		case lexicon.Negative:
			result.Distribution.Negative++
		default:
			result.Distribution.Neutral++
		}

		result.SpeakerHistories[turn.Speaker] = append(result.SpeakerHistories[turn.Speaker], score)
		trend = append(trend, SentimentPoint{
			TurnIndex: i,
			Speaker:   turn.Speaker,
			Timestamp: turn.Timestamp,
			Score:     score,
			Label:     label,
		})

		if i > 0 {
			delta := score - scores[i-1]
			if math.Abs(delta) > 0.5 {
				direction := DirectionDecline
				if delta > 0 {
					direction = DirectionRecovery
				}
				turningPoints = append(turningPoints, TurningPoint{
					TurnIndex:   i,
					Magnitude:   math.Abs(delta),
					Direction:   direction,
					Description: fmt.Sprintf("sharp %s around: %s", direction, snippet(turn.Content, 30)),
				})
			}
		}
	}

	if len(trend) > a.opts.MaxSentimentTrend {
		trend = trend[:a.opts.MaxSentimentTrend]
	}
	if len(turningPoints) > a.opts.MaxTurningPoints {
		turningPoints = turningPoints[:a.opts.MaxTurningPoints]
	}
	result.Trend = trend
	result.TurningPoints = turningPoints

	total := float64(len(conv.Turns))
	if total == 0 {
		result.HealthLevel = healthLevel(0)
		return result
	}

	variance := math.Min(1, populationVariance(scores))
	result.EmotionalVariance = variance

	positivity := ratio(float64(result.Distribution.Positive), total)
	negativity := ratio(float64(result.Distribution.Negative), total)
	health := 100 * (0.4*positivity + 0.3*(1-negativity) + 0.3*(1-variance))
	result.HealthScore = clamp(health, 0, 100)
	result.HealthLevel = healthLevel(result.HealthScore)
	return result
}

func healthLevel(score float64) string {
	switch {
	case score > 70:
		return "good"
	case score > 50:
		return "fair"
	default:
		return "needs attention"
	}
}

// snippet returns the first n characters of text, rune-safe.
func snippet(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

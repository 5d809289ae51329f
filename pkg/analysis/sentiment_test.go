package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingopulse-server/pkg/conversation"
	"lingopulse-server/pkg/lexicon"
)

func conv(contents ...string) *conversation.Conversation {
	c := &conversation.Conversation{}
	for i, content := range contents {
		speaker := "A"
		if i%2 == 1 {
			speaker = "B"
		}
		c.Turns = append(c.Turns, conversation.Turn{Speaker: speaker, Content: content})
	}
	return c
}

func TestScoreTurnBounds(t *testing.T) {
	a := NewDefault()
	texts := []string{
		"好 棒 优秀 喜欢 高兴 快乐 满意 赞",
		"坏 差 讨厌 难过 失望 沮丧 痛苦 悲伤",
		"今天天气不错",
		"",
	}
	for _, text := range texts {
		score := a.ScoreTurn(text)
		assert.GreaterOrEqual(t, score, -1.0, "score should never drop below -1 for %q", text)
		assert.LessOrEqual(t, score, 1.0, "score should never exceed 1 for %q", text)
	}
}

func TestScoreTurnNoSignal(t *testing.T) {
	a := NewDefault()
	assert.Equal(t, 0.0, a.ScoreTurn("中性的陈述句"), "text without sentiment phrases should score exactly zero")
}

func TestSinglePositiveTurn(t *testing.T) {
	a := NewDefault()
	result := a.AnalyzeSentiment(conv("very good, I agree and support this"))

	require.Len(t, result.Trend, 1)
	assert.Greater(t, result.Trend[0].Score, 0.3, "strongly positive text should clear the positive threshold")
	assert.Equal(t, lexicon.Positive, result.Trend[0].Label)
	assert.Equal(t, 1, result.Distribution.Positive)
	assert.Greater(t, result.HealthScore, 70.0, "an all-positive conversation should score a high health value")
	assert.Equal(t, "good", result.HealthLevel)
}

func TestEmptyConversationSentiment(t *testing.T) {
	a := NewDefault()
	result := a.AnalyzeSentiment(conv())

	assert.Equal(t, SentimentDistribution{}, result.Distribution)
	assert.Empty(t, result.Trend)
	assert.Empty(t, result.TurningPoints)
	assert.Equal(t, 0.0, result.HealthScore)
	assert.Equal(t, "needs attention", result.HealthLevel)
}

func TestTurningPointDetection(t *testing.T) {
	a := NewDefault()
	// -0.6 then +0.3: the jump of 0.9 crosses the 0.5 threshold once.
	result := a.AnalyzeSentiment(conv("糟糕 失败", "赞"))

	require.Len(t, result.TurningPoints, 1)
	tp := result.TurningPoints[0]
	assert.Equal(t, 1, tp.TurnIndex, "the turning point belongs to the second turn")
	assert.Equal(t, DirectionRecovery, tp.Direction)
	assert.InDelta(t, 0.9, tp.Magnitude, 1e-9)
}

func TestNoTurningPointBelowThreshold(t *testing.T) {
	a := NewDefault()
	result := a.AnalyzeSentiment(conv("赞", "好"))
	assert.Empty(t, result.TurningPoints, "a flat score sequence should produce no turning points")
}

func TestTurningPointCapAppliedAfterScan(t *testing.T) {
	a := NewDefault()
	// Alternate between -0.6 and +0.6 so every adjacent pair jumps by 1.2.
	var contents []string
	for i := 0; i < 24; i++ {
		if i%2 == 0 {
			contents = append(contents, "糟糕 失败")
		} else {
			contents = append(contents, "赞 厉害")
		}
	}
	result := a.AnalyzeSentiment(conv(contents...))

	assert.Len(t, result.TurningPoints, 8, "turning points should be capped")
	assert.Equal(t, 1, result.TurningPoints[0].TurnIndex, "caps keep the first detections, not the largest")
	// The distribution still reflects every turn, proving the full
	// conversation was scanned before capping.
	assert.Equal(t, 12, result.Distribution.Positive)
	assert.Equal(t, 12, result.Distribution.Negative)
}

func TestSpeakerHistories(t *testing.T) {
	a := NewDefault()
	result := a.AnalyzeSentiment(conv("赞", "糟糕", "好"))

	assert.Len(t, result.SpeakerHistories["A"], 2)
	assert.Len(t, result.SpeakerHistories["B"], 1)
	assert.InDelta(t, 0.3, result.SpeakerHistories["A"][0], 1e-9)
	assert.InDelta(t, -0.3, result.SpeakerHistories["B"][0], 1e-9)
}

func TestHealthLevels(t *testing.T) {
	assert.Equal(t, "good", healthLevel(71))
	assert.Equal(t, "fair", healthLevel(70))
	assert.Equal(t, "fair", healthLevel(51))
	assert.Equal(t, "needs attention", healthLevel(50))
	assert.Equal(t, "needs attention", healthLevel(0))
}

func TestSentimentDeterminism(t *testing.T) {
	a := NewDefault()
	c := conv("项目进展很好 赞", "有点糟糕 担心", "还行吧")
	first := a.AnalyzeSentiment(c)
	second := a.AnalyzeSentiment(c)
	assert.Equal(t, first, second, "repeated analysis of the same input should be identical")
}

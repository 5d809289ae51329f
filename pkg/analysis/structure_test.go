package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCohesionTrendWindows(t *testing.T) {
	a := NewDefault()
	var contents []string
	for i := 0; i < 20; i++ {
		contents = append(contents, "项目 进度 汇报 讨论")
	}
	result := a.AnalyzeStructure(conv(contents...))

	require.Len(t, result.CohesionTrend, 2, "20 turns with window 10 produce two samples")
	assert.Equal(t, 10, result.CohesionTrend[0].TimeIndex)
	assert.Equal(t, 20, result.CohesionTrend[1].TimeIndex)
	assert.InDelta(t, 1.0, result.CohesionTrend[0].Value, 1e-9, "identical adjacent turns are all connected")
}

func TestIncoherentConversation(t *testing.T) {
	a := NewDefault()
	result := a.AnalyzeStructure(conv(
		"苹果 香蕉", "汽车 火车", "天空 大海", "篮球 足球",
		"钢琴 小提琴", "白色 黑色", "春天 夏天", "猫咪 小狗",
		"左边 右边", "上面 下面", "东边 西边",
	))

	assert.Equal(t, 0.0, result.OverallCohesion, "turns with no shared tokens have no connections")
	assert.Equal(t, CohesionLow, result.Insight)
}

func TestStronglyCoherentLabel(t *testing.T) {
	a := NewDefault()
	result := a.AnalyzeStructure(conv("同一个 话题", "同一个 话题", "同一个 话题"))

	assert.InDelta(t, 1.0, result.OverallCohesion, 1e-9)
	assert.Equal(t, CohesionStrong, result.Insight)
}

func TestCohesionLabels(t *testing.T) {
	assert.Equal(t, CohesionStrong, cohesionLabel(0.71))
	assert.Equal(t, CohesionModerate, cohesionLabel(0.7))
	assert.Equal(t, CohesionModerate, cohesionLabel(0.41))
	assert.Equal(t, CohesionLow, cohesionLabel(0.4))
	assert.Equal(t, CohesionLow, cohesionLabel(0))
}

func TestSatisfactionTrend(t *testing.T) {
	a := NewDefault()
	var contents []string
	for i := 0; i < 10; i++ {
		contents = append(contents, "赞")
	}
	result := a.AnalyzeStructure(conv(contents...))

	require.Len(t, result.SatisfactionTrend, 2, "10 turns with window 5 produce two samples")
	assert.Equal(t, 5, result.SatisfactionTrend[0].TimeIndex)
	assert.InDelta(t, 0.3, result.SatisfactionTrend[0].Value, 1e-9)
}

func TestSatisfactionIgnoresNegativeScores(t *testing.T) {
	a := NewDefault()
	var contents []string
	for i := 0; i < 5; i++ {
		contents = append(contents, "糟糕 失败")
	}
	result := a.AnalyzeStructure(conv(contents...))

	require.Len(t, result.SatisfactionTrend, 1)
	assert.Equal(t, 0.0, result.SatisfactionTrend[0].Value, "negative scores clamp to zero in the satisfaction trend")
}

func TestEmptyConversationStructure(t *testing.T) {
	a := NewDefault()
	result := a.AnalyzeStructure(conv())

	assert.Empty(t, result.CohesionTrend)
	assert.Empty(t, result.SatisfactionTrend)
	assert.Equal(t, 0.0, result.OverallCohesion)
	assert.Equal(t, CohesionLow, result.Insight)
}

func TestWindowedTrendShortInput(t *testing.T) {
	points := windowedTrend(7, 10, func(start, end int) float64 { return 1 })
	assert.Empty(t, points, "inputs shorter than one window produce no samples")
}

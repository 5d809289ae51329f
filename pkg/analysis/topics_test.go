package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingopulse-server/pkg/lexicon"
)

func TestDetectTopicsFallback(t *testing.T) {
	a := NewDefault()
	topics := a.DetectTopics("嗯嗯")
	assert.Equal(t, []string{lexicon.FallbackTopic}, topics, "unmatched content should yield exactly the fallback label")
}

func TestDetectTopicsMultipleCategories(t *testing.T) {
	a := NewDefault()
	topics := a.DetectTopics("这个项目的代码还要再改")
	assert.Equal(t, []string{"work", "technology"}, topics, "categories should come back in lexicon order")
}

func TestTopicDistribution(t *testing.T) {
	a := NewDefault()
	result := a.AnalyzeTopics(conv("项目进度如何", "代码写完了", "项目下周上线"))

	require.NotEmpty(t, result.Distribution)
	assert.Equal(t, "work", result.Distribution[0].Topic, "the most counted topic should rank first")
	assert.Equal(t, 2, result.Distribution[0].Count)
	total := 0.0
	for _, share := range result.Distribution {
		total += share.Percent
	}
	assert.InDelta(t, 100, total, 0.1, "percentages should cover all matches")
}

func TestTopicTransitions(t *testing.T) {
	a := NewDefault()
	result := a.AnalyzeTopics(conv("项目的事", "周末去旅游", "继续说项目"))

	require.Len(t, result.Transitions, 2)
	assert.Equal(t, TopicTransition{From: "work", To: "life"}, result.Transitions[0])
	assert.Equal(t, TopicTransition{From: "life", To: "work"}, result.Transitions[1])
}

func TestTopicEvolutionSampling(t *testing.T) {
	a := NewDefault()
	var contents []string
	for i := 0; i < 25; i++ {
		contents = append(contents, "讨论一下项目安排")
	}
	result := a.AnalyzeTopics(conv(contents...))

	require.NotEmpty(t, result.Evolution)
	for _, ev := range result.Evolution {
		assert.Contains(t, []int{10, 20}, ev.TimePoint, "evolution samples land on every 10th turn")
		assert.GreaterOrEqual(t, ev.Intensity, 0.0)
		assert.LessOrEqual(t, ev.Intensity, 100.0)
	}
}

func TestKeySegmentsRequireSubstantialTurns(t *testing.T) {
	a := NewDefault()
	long := "项目" + strings.Repeat("这个阶段的交付内容需要再确认一遍", 5)
	result := a.AnalyzeTopics(conv("短", long))

	require.Len(t, result.KeySegments, 1)
	seg := result.KeySegments[0]
	assert.Equal(t, "work", seg.Topic)
	assert.Equal(t, 1, seg.TurnIndex)
	assert.LessOrEqual(t, len([]rune(seg.Snippet)), 100, "snippets are truncated to 100 characters")
	assert.Equal(t, long, seg.Content)
}

func TestKeySegmentsCapAppliedAfterScan(t *testing.T) {
	a := NewDefault()
	long := strings.Repeat("项目交付的关键内容必须要在本周内完成确认", 4)
	var contents []string
	for i := 0; i < 14; i++ {
		contents = append(contents, long)
	}
	result := a.AnalyzeTopics(conv(contents...))

	assert.Len(t, result.KeySegments, 10, "key segments should be capped")
	// Distribution counts every turn, proving the scan was not cut short.
	require.NotEmpty(t, result.Distribution)
	assert.Equal(t, 14, result.Distribution[0].Count)
}

func TestTopicSummary(t *testing.T) {
	a := NewDefault()
	result := a.AnalyzeTopics(conv("项目的事", "又是项目", "周末去旅游"))

	assert.Equal(t, "work", result.Summary.DominantTopic)
	assert.Equal(t, 2, result.Summary.TopicVariety)
}

func TestEmptyConversationTopics(t *testing.T) {
	a := NewDefault()
	result := a.AnalyzeTopics(conv())

	assert.Empty(t, result.Distribution)
	assert.Empty(t, result.Evolution)
	assert.Empty(t, result.Transitions)
	assert.Empty(t, result.KeySegments)
	assert.Empty(t, result.Summary.DominantTopic, "an empty conversation has no dominant topic")
}

package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingopulse-server/pkg/conversation"
	"lingopulse-server/pkg/errors"
)

func TestAnalyzeNilConversation(t *testing.T) {
	a := NewDefault()
	report, err := a.Analyze(nil)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, errors.ErrInvalidConversation)
}

func TestAnalyzeAllViewsByDefault(t *testing.T) {
	a := NewDefault()
	report, err := a.Analyze(conv("项目进展很顺利", "赞 同意"))
	require.NoError(t, err)

	assert.NotNil(t, report.Topics)
	assert.NotNil(t, report.Sentiment)
	assert.NotNil(t, report.KeyPoints)
	assert.NotNil(t, report.Intents)
	assert.NotNil(t, report.Structure)
	assert.NotNil(t, report.Pulse)
}

func TestAnalyzeSelectedViewsOnly(t *testing.T) {
	a := NewDefault()
	report, err := a.Analyze(conv("项目进展很顺利"), ViewSentiment)
	require.NoError(t, err)

	assert.NotNil(t, report.Sentiment)
	assert.Nil(t, report.Topics)
	assert.Nil(t, report.KeyPoints)
	assert.Nil(t, report.Intents)
	assert.Nil(t, report.Structure)
	assert.Nil(t, report.Pulse)
}

func TestAnalyzeUnknownView(t *testing.T) {
	a := NewDefault()
	report, err := a.Analyze(conv("内容"), View("nonsense"))
	assert.Nil(t, report)
	assert.ErrorIs(t, err, errors.ErrUnknownView)
}

func TestAnalyzeRepairsMalformedTurns(t *testing.T) {
	a := NewDefault()
	c := &conversation.Conversation{Turns: []conversation.Turn{
		{Speaker: "", Content: "没有署名的发言"},
		{Speaker: "B", Content: ""},
	}}
	report, err := a.Analyze(c, ViewSentiment)
	require.NoError(t, err)

	require.Len(t, report.Sentiment.Trend, 2, "a malformed turn must not abort the batch")
	assert.Equal(t, conversation.AnonymousSpeaker, report.Sentiment.Trend[0].Speaker)
	assert.Equal(t, "", c.Turns[0].Speaker, "the caller's conversation is never mutated")
}

func TestAnalyzeDeterminism(t *testing.T) {
	a := NewDefault()
	c := conv("项目的进度怎么样？", "很顺利 本周可以上线", "太好了 辛苦大家", "周末一起庆祝吧")
	first, err := a.Analyze(c)
	require.NoError(t, err)
	second, err := a.Analyze(c)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseOptionsDefaults(t *testing.T) {
	opts := ParseOptions(nil)
	assert.Equal(t, DefaultOptions(), opts)
}

func TestParseOptionsOverrides(t *testing.T) {
	opts := ParseOptions(map[string]interface{}{
		"max_key_points":       float64(5),
		"similarity_threshold": 0.8,
	})
	assert.Equal(t, 5, opts.MaxKeyPoints)
	assert.Equal(t, 0.8, opts.SimilarityThreshold)
	assert.Equal(t, DefaultOptions().MaxTurningPoints, opts.MaxTurningPoints)
}

func TestParseOptionsIgnoresUnknownKeys(t *testing.T) {
	opts := ParseOptions(map[string]interface{}{
		"definitely_not_an_option": true,
		"another_stray":            "value",
	})
	assert.Equal(t, DefaultOptions(), opts, "unknown option keys are ignored, never an error")
}

func TestNewFillsZeroOptions(t *testing.T) {
	a := New(nil, Options{})
	assert.Equal(t, DefaultOptions(), a.opts)
	assert.NotNil(t, a.lex)
}

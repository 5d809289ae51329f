package analysis

import (
	"sort"
	"strings"

	"lingopulse-server/pkg/conversation"
	"lingopulse-server/pkg/lexicon"
)

// TopicShare is one row of the topic distribution.
type TopicShare struct {
	Topic   string  `json:"topic"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// EvolutionPoint samples which topics dominate a trailing window of turns.
type EvolutionPoint struct {
	TimePoint int     `json:"time_point"`
	Topic     string  `json:"topic"`
	Intensity float64 `json:"intensity"`
}

// TopicTransition records a change of leading topic between adjacent turns.
type TopicTransition struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// KeySegment is a substantial turn attributed to one of its matched topics.
type KeySegment struct {
	Topic     string `json:"topic"`
	TurnIndex int    `json:"turn_index"`
	Speaker   string `json:"speaker"`
	Snippet   string `json:"snippet"`
	Content   string `json:"content"`
}

// TopicSummary aggregates the topic view.
type TopicSummary struct {
	DominantTopic    string  `json:"dominant_topic"`
	TopicVariety     int     `json:"topic_variety"`
	AvgSegmentLength float64 `json:"avg_segment_length"`
}

// TopicsResult is the topic composition and evolution view.
type TopicsResult struct {
	Distribution []TopicShare      `json:"distribution"`
	Evolution    []EvolutionPoint  `json:"evolution"`
	Transitions  []TopicTransition `json:"transitions"`
	KeySegments  []KeySegment      `json:"key_segments"`
	Summary      TopicSummary      `json:"summary"`
}

// DetectTopics returns the matched topic categories for a text, in the
// lexicon's category order. A category matches when any trigger phrase
// occurs as a substring. With no match at all the singleton fallback label
// is returned, so the result is never empty.
func (a *Analyzer) DetectTopics(text string) []string {
	var matched []string
	for _, category := range a.lex.TopicOrder {
		if lexicon.ContainsAny(text, a.lex.Topics[category]) {
			matched = append(matched, category)
		}
	}
	if len(matched) == 0 {
		return []string{lexicon.FallbackTopic}
	}
	return matched
}

// AnalyzeTopics builds the topic distribution, the periodic evolution
// samples, the transition sequence, key segments and the summary.
func (a *Analyzer) AnalyzeTopics(conv *conversation.Conversation) *TopicsResult {
	result := &TopicsResult{}
	if len(conv.Turns) == 0 {
		return result
	}

	counts := make(map[string]int)
	order := append([]string{}, a.lex.TopicOrder...)
	order = append(order, lexicon.FallbackTopic)

	perTurn := make([][]string, len(conv.Turns))
	for i, turn := range conv.Turns {
		topics := a.DetectTopics(turn.Content)
		perTurn[i] = topics
		for _, topic := range topics {
			counts[topic]++
		}
	}

	// Distribution: percentage breakdown over all matches, largest first,
	// ties kept in category order.
	totalMatches := 0
	for _, c := range counts {
		totalMatches += c
	}
	for _, topic := range order {
		if c := counts[topic]; c > 0 {
			result.Distribution = append(result.Distribution, TopicShare{
				Topic:   topic,
				Count:   c,
				Percent: round2(100 * float64(c) / float64(totalMatches)),
			})
		}
	}
	sort.SliceStable(result.Distribution, func(i, j int) bool {
		return result.Distribution[i].Count > result.Distribution[j].Count
	})

	// Evolution: every 10th turn, re-detect topics over the trailing
	// 11-turn window. Intensity is a deterministic proxy: the number of
	// distinct trigger phrases of the topic found in the window, scaled to
	// [0,100].
	for i := 10; i < len(conv.Turns); i += 10 {
		start := i - 10
		var sb strings.Builder
		for j := start; j <= i; j++ {
			sb.WriteString(conv.Turns[j].Content)
			sb.WriteString(" ")
		}
		window := sb.String()
		for _, topic := range a.DetectTopics(window) {
			hits := lexicon.CountMatches(window, a.lex.Topics[topic])
			result.Evolution = append(result.Evolution, EvolutionPoint{
				TimePoint: i,
				Topic:     topic,
				Intensity: clamp(float64(hits)*20, 0, 100),
			})
		}
	}
	if len(result.Evolution) > a.opts.MaxEvolution {
		result.Evolution = result.Evolution[:a.opts.MaxEvolution]
	}

	// Transitions: leading-topic changes between adjacent turns.
	for i := 1; i < len(perTurn); i++ {
		prev, curr := perTurn[i-1][0], perTurn[i][0]
		if prev != curr {
			result.Transitions = append(result.Transitions, TopicTransition{From: prev, To: curr})
		}
	}
	if len(result.Transitions) > a.opts.MaxTransitions {
		result.Transitions = result.Transitions[:a.opts.MaxTransitions]
	}

	// Key segments: substantial turns, one record per matched topic, in
	// scan order.
	for i, turn := range conv.Turns {
		if runeLen(turn.Content) <= 50 {
			continue
		}
		for _, topic := range perTurn[i] {
			result.KeySegments = append(result.KeySegments, KeySegment{
				Topic:     topic,
				TurnIndex: i,
				Speaker:   turn.Speaker,
				Snippet:   snippet(turn.Content, 100),
				Content:   turn.Content,
			})
		}
	}
	if len(result.KeySegments) > a.opts.MaxKeySegments {
		result.KeySegments = result.KeySegments[:a.opts.MaxKeySegments]
	}

	// Summary.
	dominant := ""
	best := 0
	for _, topic := range order {
		if counts[topic] > best {
			best = counts[topic]
			dominant = topic
		}
	}
	result.Summary.DominantTopic = dominant
	result.Summary.TopicVariety = len(counts)
	if len(result.KeySegments) > 0 {
		sum := 0
		for _, seg := range result.KeySegments {
			sum += runeLen(seg.Content)
		}
		result.Summary.AvgSegmentLength = float64(sum) / float64(len(result.KeySegments))
	}
	return result
}

func runeLen(s string) int {
	return len([]rune(s))
}

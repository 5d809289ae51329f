package analysis

import (
	"math"
	"strings"
	"unicode"

	"lingopulse-server/pkg/conversation"
)

// TurnFeatures holds the per-turn linguistic features used by the pulse view.
// All scores except SentimentScore live in [0,1].
type TurnFeatures struct {
	WordCount          int     `json:"word_count"`
	SentenceCount      int     `json:"sentence_count"`
	AvgSentenceLength  float64 `json:"avg_sentence_length"`
	VocabularyRichness float64 `json:"vocabulary_richness"`
	SentimentScore     float64 `json:"sentiment_score"`
	EmotionalIntensity float64 `json:"emotional_intensity"`
	ConfidenceLevel    float64 `json:"confidence_level"`
	TopicConsistency   float64 `json:"topic_consistency"`
	ComplexityScore    float64 `json:"complexity_score"`
	ClarityScore       float64 `json:"clarity_score"`
	EngagementScore    float64 `json:"engagement_score"`
}

var stopWords = map[string]struct{}{
	"的": {}, "了": {}, "在": {}, "是": {}, "我": {}, "有": {}, "和": {}, "就": {},
	"不": {}, "人": {}, "都": {}, "一": {}, "一个": {}, "上": {}, "也": {}, "很": {},
	"到": {}, "说": {}, "要": {}, "去": {}, "你": {}, "会": {}, "着": {}, "没有": {},
	"看": {}, "好": {}, "自己": {}, "这": {},
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {},
}

var complexityIndicators = []string{
	"因为", "所以", "但是", "然而", "虽然", "尽管", "如果", "要是",
	"unless", "because", "therefore", "however", "although", "if",
}

var confidenceIndicators = []string{
	"确实", "肯定", "一定", "当然", "sure", "definitely", "absolutely", "certainly",
}

var doubtIndicators = []string{
	"可能", "也许", "大概", "或许", "maybe", "perhaps", "probably", "likely",
}

var conjunctionWords = []string{"和", "与", "以及", "and", "or", "but", "so"}

var secondPersonWords = []string{"你", "您", "you", "your"}

func isCJK(r rune) bool {
	return r >= 0x4e00 && r <= 0x9fff
}

// countWords counts CJK characters when the text contains any, otherwise
// whitespace-and-punctuation delimited words.
func countWords(text string) int {
	cjk := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		}
	}
	if cjk > 0 {
		return cjk
	}
	return len(latinWords(text))
}

// latinWords splits a text into lowercase alphanumeric runs.
func latinWords(text string) []string {
	var words []string
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		words = append(words, b.String())
	}
	return words
}

func countSentences(text string) int {
	count := 0
	pending := false
	for _, r := range text {
		switch r {
		case '.', '!', '?', '。', '！', '？':
			if pending {
				count++
				pending = false
			}
		default:
			if !unicode.IsSpace(r) {
				pending = true
			}
		}
	}
	if pending {
		count++
	}
	return count
}

func vocabularyRichness(text string) float64 {
	var kept []string
	for _, w := range latinWords(text) {
		if _, stop := stopWords[w]; !stop {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(kept))
	for _, w := range kept {
		unique[w] = struct{}{}
	}
	return float64(len(unique)) / float64(len(kept))
}

func countSubstrings(text string, needles []string) int {
	count := 0
	for _, n := range needles {
		if strings.Contains(text, n) {
			count++
		}
	}
	return count
}

func emotionalIntensity(text string) float64 {
	if text == "" {
		return 0
	}
	exclaim := float64(strings.Count(text, "!") + strings.Count(text, "！"))
	question := float64(strings.Count(text, "?") + strings.Count(text, "？"))
	upper := 0
	total := 0
	for _, r := range text {
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	upperRatio := float64(upper) / float64(total)
	return math.Min(1, (exclaim+question+upperRatio)/3)
}

func confidenceLevel(text string) float64 {
	folded := strings.ToLower(text)
	confident := countSubstrings(folded, confidenceIndicators)
	doubtful := countSubstrings(folded, doubtIndicators)
	total := confident + doubtful
	if total == 0 {
		return 0.5
	}
	return float64(confident) / float64(total)
}

func complexityScore(text string) float64 {
	folded := strings.ToLower(text)
	words := len(latinWords(text))
	sentences := countSentences(text)
	if sentences == 0 {
		sentences = 1
	}
	avgSentence := math.Min(float64(words)/float64(sentences)/20, 1)
	indicators := math.Min(float64(countSubstrings(folded, complexityIndicators))/5, 1)
	conjunctions := math.Min(float64(countSubstrings(folded, conjunctionWords))/3, 1)
	return (avgSentence + indicators + conjunctions) / 3
}

func clarityScore(text string) float64 {
	if text == "" {
		return 0
	}
	punct := 0
	for _, r := range text {
		switch r {
		case '.', ',', ';', ':', '!', '?', '，', '。', '；', '：', '！', '？':
			punct++
		}
	}
	factors := []float64{math.Min(float64(punct)/float64(runeLen(text))*10, 1)}

	words := latinWords(text)
	if len(words) > 0 {
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		repetition := 1 - float64(len(unique))/float64(len(words))
		factors = append(factors, math.Max(0, 1-repetition))
	}

	if sentences := countSentences(text); sentences > 0 {
		avgLength := float64(len(words)) / float64(sentences)
		factors = append(factors, 1-math.Abs(avgLength-15)/30)
	}
	return math.Max(0, mean(factors))
}

func engagementScore(text string) float64 {
	folded := strings.ToLower(text)
	questions := math.Min(float64(strings.Count(text, "?")+strings.Count(text, "？"))/2, 1)
	secondPerson := math.Min(float64(countSubstrings(folded, secondPersonWords))/3, 1)
	exclaims := math.Min(float64(strings.Count(text, "!")+strings.Count(text, "！"))/3, 1)
	return (questions + secondPerson + exclaims) / 3
}

// topicConsistency measures keyword overlap between a turn and the three
// turns before it.
func topicConsistency(current string, previous []conversation.Turn) float64 {
	if len(previous) == 0 {
		return 1
	}
	currentSet := Tokenize(current)
	if len(currentSet) == 0 {
		return 0
	}
	start := len(previous) - 3
	if start < 0 {
		start = 0
	}
	total := 0.0
	count := 0
	for _, prev := range previous[start:] {
		if len(Tokenize(prev.Content)) == 0 {
			continue
		}
		total += Similarity(current, prev.Content)
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// ExtractFeatures computes the linguistic feature vector for one turn given
// the turns preceding it.
func (a *Analyzer) ExtractFeatures(turn conversation.Turn, previous []conversation.Turn) TurnFeatures {
	f := TurnFeatures{
		WordCount:          countWords(turn.Content),
		SentenceCount:      countSentences(turn.Content),
		VocabularyRichness: vocabularyRichness(turn.Content),
		SentimentScore:     a.ScoreTurn(turn.Content),
		EmotionalIntensity: emotionalIntensity(turn.Content),
		ConfidenceLevel:    confidenceLevel(turn.Content),
		ComplexityScore:    complexityScore(turn.Content),
		ClarityScore:       clarityScore(turn.Content),
		EngagementScore:    engagementScore(turn.Content),
	}
	sentences := f.SentenceCount
	if sentences == 0 {
		sentences = 1
	}
	f.AvgSentenceLength = float64(f.WordCount) / float64(sentences)
	f.TopicConsistency = topicConsistency(turn.Content, previous)
	return f
}

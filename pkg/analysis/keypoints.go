package analysis

import (
	"math"
	"sort"
	"strings"

	"lingopulse-server/pkg/conversation"
	"lingopulse-server/pkg/lexicon"
)

// Opinion polarity values.
const (
	OpinionSupport = 1
	OpinionNeutral = 0
	OpinionOppose  = -1
)

// Stance labels derived from opinion polarity.
const (
	StanceSupportive = "supportive"
	StanceOpposed    = "opposed"
	StanceNeutral    = "neutral"
)

// KeyPoint is a turn that carries a substantive point.
type KeyPoint struct {
	TurnIndex      int      `json:"turn_index"`
	Speaker        string   `json:"speaker"`
	Timestamp      string   `json:"timestamp"`
	Content        string   `json:"content"`
	Importance     int      `json:"importance"`
	Opinion        int      `json:"opinion"`
	ConsensusLevel float64  `json:"consensus_level"`
	Intensity      int      `json:"intensity"`
	Evidence       []string `json:"evidence,omitempty"`
}

// ControversialPoint is a key point almost nobody else echoes.
type ControversialPoint struct {
	TurnIndex      int     `json:"turn_index"`
	Stance         string  `json:"stance"`
	Evidence       string  `json:"evidence"`
	ConsensusLevel float64 `json:"consensus_level"`
}

// ConsensusPoint is a key point echoed widely across the conversation.
type ConsensusPoint struct {
	TurnIndex      int     `json:"turn_index"`
	Content        string  `json:"content"`
	ConsensusLevel float64 `json:"consensus_level"`
}

// EvidenceReference points at a turn backed by evidentiary markers.
type EvidenceReference struct {
	TurnIndex int      `json:"turn_index"`
	Markers   []string `json:"markers"`
	Relevance float64  `json:"relevance"`
}

// KeyPointsSummary aggregates the key-point view.
type KeyPointsSummary struct {
	TotalKeyPoints int     `json:"total_key_points"`
	MeanConsensus  float64 `json:"mean_consensus"`
	DominantStance string  `json:"dominant_stance"`
}

// KeyPointsResult is the ranked key-point view with consensus/controversy
// classification.
type KeyPointsResult struct {
	KeyPoints     []KeyPoint           `json:"key_points"`
	Controversial []ControversialPoint `json:"controversial"`
	Consensus     []ConsensusPoint     `json:"consensus"`
	EvidenceRefs  []EvidenceReference  `json:"evidence_refs"`
	Summary       KeyPointsSummary     `json:"summary"`
}

// PointStrength estimates in [0,1] how "key" a text is: a length component
// capped at 200 characters, 0.5 for an importance marker, 0.3 for an
// ordinal/structure marker, normalized by the fixed 1.8 divisor.
func (a *Analyzer) PointStrength(text string) float64 {
	strength := math.Min(1, float64(runeLen(text))/200)
	if lexicon.ContainsAny(text, a.lex.Markers.Importance) {
		strength += 0.5
	}
	if lexicon.ContainsAny(text, a.lex.Markers.Structure) {
		strength += 0.3
	}
	return strength / 1.8
}

// opinionPolarity takes a simple lexical vote on a text's stance.
func (a *Analyzer) opinionPolarity(text string) int {
	folded := strings.ToLower(text)
	pos := lexicon.CountMatches(folded, a.lex.Sentiment[lexicon.Positive])
	neg := lexicon.CountMatches(folded, a.lex.Sentiment[lexicon.Negative])
	switch {
	case pos > neg:
		return OpinionSupport
	case neg > pos:
		return OpinionOppose
	default:
		return OpinionNeutral
	}
}

func stanceLabel(opinion int) string {
	switch opinion {
	case OpinionSupport:
		return StanceSupportive
	case OpinionOppose:
		return StanceOpposed
	default:
		return StanceNeutral
	}
}

// AnalyzeKeyPoints scores every turn's point strength, classifies qualifying
// turns as consensus or controversy via pairwise similarity against the rest
// of the conversation, and ranks the results. All caps are applied after the
// full conversation has been scored.
func (a *Analyzer) AnalyzeKeyPoints(conv *conversation.Conversation) *KeyPointsResult {
	result := &KeyPointsResult{}

	type scored struct {
		point    KeyPoint
		strength float64
	}
	var candidates []scored

	for i, turn := range conv.Turns {
		strength := a.PointStrength(turn.Content)
		if strength <= 0.7 && runeLen(turn.Content) <= 100 {
			continue
		}

		similar := 0
		for j, other := range conv.Turns {
			if j == i {
				continue
			}
			if Similarity(turn.Content, other.Content) > a.opts.SimilarityThreshold {
				similar++
			}
		}
		consensusLevel := math.Min(1, float64(similar)/3)

		candidates = append(candidates, scored{
			strength: strength,
			point: KeyPoint{
				TurnIndex:      i,
				Speaker:        turn.Speaker,
				Timestamp:      turn.Timestamp,
				Content:        turn.Content,
				Importance:     roundInt(strength * 100),
				Opinion:        a.opinionPolarity(turn.Content),
				ConsensusLevel: consensusLevel,
				Intensity:      roundInt(math.Abs(a.ScoreTurn(turn.Content)) * 100),
				Evidence:       lexicon.MatchedPhrases(turn.Content, a.lex.Markers.Evidence),
			},
		})
	}

	// Classification happens over every candidate, in scan order.
	for _, c := range candidates {
		switch {
		case c.point.ConsensusLevel < 0.3:
			result.Controversial = append(result.Controversial, ControversialPoint{
				TurnIndex:      c.point.TurnIndex,
				Stance:         stanceLabel(c.point.Opinion),
				Evidence:       c.point.Content,
				ConsensusLevel: c.point.ConsensusLevel,
			})
		case c.point.ConsensusLevel > 0.7:
			result.Consensus = append(result.Consensus, ConsensusPoint{
				TurnIndex:      c.point.TurnIndex,
				Content:        c.point.Content,
				ConsensusLevel: c.point.ConsensusLevel,
			})
		}
		if len(c.point.Evidence) > 0 {
			result.EvidenceRefs = append(result.EvidenceRefs, EvidenceReference{
				TurnIndex: c.point.TurnIndex,
				Markers:   c.point.Evidence,
				Relevance: c.strength,
			})
		}
	}
	if len(result.Controversial) > a.opts.MaxControversial {
		result.Controversial = result.Controversial[:a.opts.MaxControversial]
	}
	if len(result.Consensus) > a.opts.MaxConsensus {
		result.Consensus = result.Consensus[:a.opts.MaxConsensus]
	}
	sort.SliceStable(result.EvidenceRefs, func(i, j int) bool {
		return result.EvidenceRefs[i].Relevance > result.EvidenceRefs[j].Relevance
	})
	if len(result.EvidenceRefs) > a.opts.MaxEvidence {
		result.EvidenceRefs = result.EvidenceRefs[:a.opts.MaxEvidence]
	}

	// Rank by importance; ties keep original turn order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].point.Importance > candidates[j].point.Importance
	})
	for _, c := range candidates {
		result.KeyPoints = append(result.KeyPoints, c.point)
	}
	result.Summary.TotalKeyPoints = len(result.KeyPoints)
	if len(result.KeyPoints) > a.opts.MaxKeyPoints {
		result.KeyPoints = result.KeyPoints[:a.opts.MaxKeyPoints]
	}

	// Summary statistics over the retained key points.
	if len(result.KeyPoints) > 0 {
		sum := 0.0
		votes := 0
		for _, kp := range result.KeyPoints {
			sum += kp.ConsensusLevel
			votes += kp.Opinion
		}
		result.Summary.MeanConsensus = round1(sum / float64(len(result.KeyPoints)))
		switch {
		case votes > 0:
			result.Summary.DominantStance = StanceSupportive
		case votes < 0:
			result.Summary.DominantStance = StanceOpposed
		default:
			result.Summary.DominantStance = StanceNeutral
		}
	}
	return result
}

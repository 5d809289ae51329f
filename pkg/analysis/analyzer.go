// Package analysis implements the conversation analysis engine: lexicon
// driven topic, sentiment, key-point, intent, structure and pulse views over
// an ordered sequence of turns. Every view is a pure function of the input
// conversation and the static lexicon set; results are built fresh per call
// and views may be computed concurrently.
package analysis

import (
	"lingopulse-server/pkg/conversation"
	"lingopulse-server/pkg/errors"
	"lingopulse-server/pkg/lexicon"
)

// View identifies one independent analytical view.
type View string

const (
	ViewTopics    View = "topics"
	ViewSentiment View = "sentiment"
	ViewKeyPoints View = "keypoints"
	ViewIntents   View = "intents"
	ViewStructure View = "structure"
	ViewPulse     View = "pulse"
)

// AllViews lists every supported view in a stable order.
var AllViews = []View{ViewTopics, ViewSentiment, ViewKeyPoints, ViewIntents, ViewStructure, ViewPulse}

// Options tunes output caps and thresholds. Zero values are replaced by the
// documented defaults.
type Options struct {
	MaxSentimentTrend int
	MaxTurningPoints  int
	MaxEvolution      int
	MaxTransitions    int
	MaxKeySegments    int
	MaxKeyPoints      int
	MaxControversial  int
	MaxConsensus      int
	MaxEvidence       int

	SimilarityThreshold float64 // "similar turn" cutoff for consensus
	CohesionThreshold   float64 // adjacent-pair connection cutoff
	CohesionWindow      int
	SatisfactionWindow  int
}

// DefaultOptions returns the documented caps and thresholds.
func DefaultOptions() Options {
	return Options{
		MaxSentimentTrend:   50,
		MaxTurningPoints:    8,
		MaxEvolution:        20,
		MaxTransitions:      10,
		MaxKeySegments:      10,
		MaxKeyPoints:        15,
		MaxControversial:    8,
		MaxConsensus:        6,
		MaxEvidence:         10,
		SimilarityThreshold: 0.6,
		CohesionThreshold:   0.3,
		CohesionWindow:      10,
		SatisfactionWindow:  5,
	}
}

// ParseOptions builds Options from a loosely-typed option map, as delivered
// by API callers. Recognized keys override the defaults; unrecognized keys
// are ignored, never an error.
func ParseOptions(raw map[string]interface{}) Options {
	opts := DefaultOptions()
	if raw == nil {
		return opts
	}
	setInt := func(key string, dst *int) {
		if v, ok := raw[key]; ok {
			switch n := v.(type) {
			case int:
				if n > 0 {
					*dst = n
				}
			case float64:
				if n > 0 {
					*dst = int(n)
				}
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := raw[key]; ok {
			if f, ok := v.(float64); ok && f > 0 {
				*dst = f
			}
		}
	}
	setInt("max_key_points", &opts.MaxKeyPoints)
	setInt("max_turning_points", &opts.MaxTurningPoints)
	setInt("max_sentiment_trend", &opts.MaxSentimentTrend)
	setInt("max_evolution", &opts.MaxEvolution)
	setInt("max_transitions", &opts.MaxTransitions)
	setInt("max_key_segments", &opts.MaxKeySegments)
	setInt("max_controversial", &opts.MaxControversial)
	setInt("max_consensus", &opts.MaxConsensus)
	setInt("max_evidence", &opts.MaxEvidence)
	setFloat("similarity_threshold", &opts.SimilarityThreshold)
	setFloat("cohesion_threshold", &opts.CohesionThreshold)
	setInt("cohesion_window", &opts.CohesionWindow)
	setInt("satisfaction_window", &opts.SatisfactionWindow)
	return opts
}

// Analyzer computes analytical views over conversations. It holds only
// immutable state (lexicons and resolved options) and is safe for concurrent
// use.
type Analyzer struct {
	lex  *lexicon.Set
	opts Options
}

// New creates an analyzer with the given lexicon set and options. A nil
// lexicon set falls back to the built-in tables.
func New(lex *lexicon.Set, opts Options) *Analyzer {
	if lex == nil {
		lex = lexicon.Default()
	}
	def := DefaultOptions()
	if opts.MaxSentimentTrend <= 0 {
		opts.MaxSentimentTrend = def.MaxSentimentTrend
	}
	if opts.MaxTurningPoints <= 0 {
		opts.MaxTurningPoints = def.MaxTurningPoints
	}
	if opts.MaxEvolution <= 0 {
		opts.MaxEvolution = def.MaxEvolution
	}
	if opts.MaxTransitions <= 0 {
		opts.MaxTransitions = def.MaxTransitions
	}
	if opts.MaxKeySegments <= 0 {
		opts.MaxKeySegments = def.MaxKeySegments
	}
	if opts.MaxKeyPoints <= 0 {
		opts.MaxKeyPoints = def.MaxKeyPoints
	}
	if opts.MaxControversial <= 0 {
		opts.MaxControversial = def.MaxControversial
	}
	if opts.MaxConsensus <= 0 {
		opts.MaxConsensus = def.MaxConsensus
	}
	if opts.MaxEvidence <= 0 {
		opts.MaxEvidence = def.MaxEvidence
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = def.SimilarityThreshold
	}
	if opts.CohesionThreshold <= 0 {
		opts.CohesionThreshold = def.CohesionThreshold
	}
	if opts.CohesionWindow <= 0 {
		opts.CohesionWindow = def.CohesionWindow
	}
	if opts.SatisfactionWindow <= 0 {
		opts.SatisfactionWindow = def.SatisfactionWindow
	}
	return &Analyzer{lex: lex, opts: opts}
}

// NewDefault creates an analyzer with the built-in lexicons and defaults.
func NewDefault() *Analyzer {
	return New(lexicon.Default(), DefaultOptions())
}

// Report aggregates the requested views. Only requested views are non-nil.
type Report struct {
	Topics    *TopicsResult    `json:"topics,omitempty"`
	Sentiment *SentimentResult `json:"sentiment,omitempty"`
	KeyPoints *KeyPointsResult `json:"key_points,omitempty"`
	Intents   *IntentsResult   `json:"intents,omitempty"`
	Structure *StructureResult `json:"structure,omitempty"`
	Pulse     *PulseResult     `json:"pulse,omitempty"`
}

// Analyze validates the conversation and computes the requested views. With
// no views given, every view is computed. The input conversation is never
// mutated; malformed turns are repaired on a private copy.
func (a *Analyzer) Analyze(conv *conversation.Conversation, views ...View) (*Report, error) {
	if conv == nil {
		return nil, errors.ErrInvalidConversation
	}
	if len(views) == 0 {
		views = AllViews
	}
	norm := conv.Normalize()

	report := &Report{}
	for _, v := range views {
		switch v {
		case ViewTopics:
			report.Topics = a.AnalyzeTopics(norm)
		case ViewSentiment:
			report.Sentiment = a.AnalyzeSentiment(norm)
		case ViewKeyPoints:
			report.KeyPoints = a.AnalyzeKeyPoints(norm)
		case ViewIntents:
			report.Intents = a.AnalyzeIntents(norm)
		case ViewStructure:
			report.Structure = a.AnalyzeStructure(norm)
		case ViewPulse:
			report.Pulse = a.AnalyzePulse(norm)
		default:
			return nil, errors.Wrap(errors.ErrUnknownView, "unsupported analysis view", map[string]interface{}{"view": string(v)})
		}
	}
	return report, nil
}

package analysis

import (
	"math"
	"sort"
	"strings"

	"lingopulse-server/pkg/conversation"
	"lingopulse-server/pkg/lexicon"
)

// Role labels inferred from authority-marker density.
const (
	RoleDecisionMaker = "decision maker"
	RoleAdvisor       = "advisor"
	RoleAnalyst       = "analyst"
	RoleParticipant   = "participant"
)

// IntentScore is one intent category with its match evidence.
type IntentScore struct {
	Category   string  `json:"category"`
	Matches    int     `json:"matches"`
	Confidence float64 `json:"confidence"`
}

// MotivationPriority ranks an inferred motivation by keyword frequency.
type MotivationPriority struct {
	Name      string `json:"name"`
	Magnitude int    `json:"magnitude"`
}

// CommunicationPattern ranks an observed communication style.
type CommunicationPattern struct {
	Name      string `json:"name"`
	Magnitude int    `json:"magnitude"`
}

// ParticipantProfile is the per-speaker view of intents, engagement and role.
type ParticipantProfile struct {
	Speaker        string                 `json:"speaker"`
	TurnCount      int                    `json:"turn_count"`
	PrimaryIntents []IntentScore          `json:"primary_intents"`
	Participation  int                    `json:"participation"`
	Satisfaction   int                    `json:"satisfaction"`
	Influence      float64                `json:"influence"`
	Collaboration  int                    `json:"collaboration"`
	Authority      float64                `json:"authority"`
	Role           string                 `json:"role"`
	FormalPower    int                    `json:"formal_power"`
	InformalPower  int                    `json:"informal_power"`
	Motivations    []MotivationPriority   `json:"motivations"`
	Patterns       []CommunicationPattern `json:"patterns"`
}

// IntentsResult is the intent-and-role view, one profile per participant in
// first-appearance order.
type IntentsResult struct {
	Profiles []ParticipantProfile `json:"profiles"`
}

// AnalyzeIntents builds a profile for every participant from their own turns.
func (a *Analyzer) AnalyzeIntents(conv *conversation.Conversation) *IntentsResult {
	result := &IntentsResult{}
	total := conv.Len()

	for _, speaker := range conv.Participants() {
		var turns []conversation.Turn
		for _, t := range conv.Turns {
			if t.Speaker == speaker {
				turns = append(turns, t)
			}
		}
		result.Profiles = append(result.Profiles, a.profileParticipant(speaker, turns, total))
	}
	return result
}

func (a *Analyzer) profileParticipant(speaker string, turns []conversation.Turn, totalTurns int) ParticipantProfile {
	p := ParticipantProfile{Speaker: speaker, TurnCount: len(turns)}
	if len(turns) == 0 || totalTurns == 0 {
		p.Role = RoleParticipant
		p.InformalPower = 100
		return p
	}
	n := float64(len(turns))

	// Intent categories, ranked by turn-level matches.
	for _, category := range a.lex.IntentOrder {
		matches := 0
		for _, t := range turns {
			if lexicon.ContainsAny(strings.ToLower(t.Content), a.lex.Intents[category]) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		p.PrimaryIntents = append(p.PrimaryIntents, IntentScore{
			Category:   category,
			Matches:    matches,
			Confidence: math.Min(1, float64(matches)/n),
		})
	}
	sort.SliceStable(p.PrimaryIntents, func(i, j int) bool {
		return p.PrimaryIntents[i].Matches > p.PrimaryIntents[j].Matches
	})
	if len(p.PrimaryIntents) > 3 {
		p.PrimaryIntents = p.PrimaryIntents[:3]
	}

	positive := 0
	collab := 0
	authority := 0
	decision := 0
	suggestion := 0
	analysis := 0
	lengthSum := 0
	for _, t := range turns {
		if a.ScoreTurn(t.Content) > 0.2 {
			positive++
		}
		if lexicon.ContainsAny(t.Content, a.lex.Markers.Collaboration) {
			collab++
		}
		if lexicon.ContainsAny(t.Content, a.lex.Markers.Authority) {
			authority++
		}
		if lexicon.ContainsAny(t.Content, a.lex.Markers.Decision) {
			decision++
		}
		if lexicon.ContainsAny(t.Content, a.lex.Markers.Suggestion) {
			suggestion++
		}
		if lexicon.ContainsAny(t.Content, a.lex.Markers.Analysis) {
			analysis++
		}
		lengthSum += runeLen(t.Content)
	}
	meanLength := float64(lengthSum) / n

	p.Participation = roundInt(100 * n / float64(totalTurns))
	p.Satisfaction = roundInt(100 * float64(positive) / n)
	p.Influence = round2(0.4*(n/float64(totalTurns)) + 0.6*(meanLength/200))
	p.Collaboration = roundInt(math.Min(100, 200*float64(collab)/n))
	p.Authority = round2(math.Min(1, float64(authority)/n))

	switch {
	case decision > 0:
		p.Role = RoleDecisionMaker
	case suggestion > 0:
		p.Role = RoleAdvisor
	case analysis > 0:
		p.Role = RoleAnalyst
	default:
		p.Role = RoleParticipant
	}
	p.FormalPower = roundInt(p.Authority * 100)
	p.InformalPower = roundInt((1 - p.Authority) * 100)

	// Descriptive rankings, each magnitude proportional to the frequency of
	// the markers behind the named motivation or pattern.
	p.Motivations = []MotivationPriority{
		{Name: "reaching decisions", Magnitude: roundInt(100 * float64(decision) / n)},
		{Name: "shaping direction", Magnitude: roundInt(100 * float64(suggestion) / n)},
		{Name: "understanding the problem", Magnitude: roundInt(100 * float64(analysis) / n)},
		{Name: "building alignment", Magnitude: roundInt(100 * float64(collab) / n)},
	}
	sort.SliceStable(p.Motivations, func(i, j int) bool {
		return p.Motivations[i].Magnitude > p.Motivations[j].Magnitude
	})

	p.Patterns = []CommunicationPattern{
		{Name: "directive", Magnitude: roundInt(100 * float64(authority) / n)},
		{Name: "supportive", Magnitude: p.Satisfaction},
		{Name: "analytical", Magnitude: roundInt(100 * float64(analysis) / n)},
		{Name: "expansive", Magnitude: roundInt(math.Min(100, meanLength/2))},
	}
	sort.SliceStable(p.Patterns, func(i, j int) bool {
		return p.Patterns[i].Magnitude > p.Patterns[j].Magnitude
	})

	return p
}

package conversation

import (
	"strings"
)

// AnonymousSpeaker is substituted for turns that arrive without a speaker.
const AnonymousSpeaker = "unknown"

// Turn is one message in a conversation. The analysis engine treats turns as
// immutable input and never modifies them.
type Turn struct {
	Speaker   string `json:"speaker"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Conversation is an ordered sequence of turns. Order is significant: trend
// and evolution features are derived from turn positions.
type Conversation struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Turns []Turn `json:"turns"`
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.Turns)
}

// Participants returns the distinct speakers in first-appearance order.
func (c *Conversation) Participants() []string {
	seen := make(map[string]bool, 4)
	var out []string
	for _, t := range c.Turns {
		speaker := t.Speaker
		if speaker == "" {
			speaker = AnonymousSpeaker
		}
		if !seen[speaker] {
			seen[speaker] = true
			out = append(out, speaker)
		}
	}
	return out
}

// Normalize returns a copy of the conversation with malformed turns repaired:
// a missing speaker becomes AnonymousSpeaker and a missing content stays an
// empty string so detectors see "no signal" instead of failing. The receiver
// is left untouched.
func (c *Conversation) Normalize() *Conversation {
	out := &Conversation{ID: c.ID, Title: c.Title, Turns: make([]Turn, len(c.Turns))}
	for i, t := range c.Turns {
		if strings.TrimSpace(t.Speaker) == "" {
			t.Speaker = AnonymousSpeaker
		}
		out.Turns[i] = t
	}
	return out
}

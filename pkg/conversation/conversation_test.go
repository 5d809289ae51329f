package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParticipantsFirstAppearanceOrder(t *testing.T) {
	c := &Conversation{Turns: []Turn{
		{Speaker: "B", Content: "first"},
		{Speaker: "A", Content: "second"},
		{Speaker: "B", Content: "third"},
	}}
	assert.Equal(t, []string{"B", "A"}, c.Participants())
}

func TestParticipantsAnonymous(t *testing.T) {
	c := &Conversation{Turns: []Turn{
		{Speaker: "", Content: "who said this"},
		{Speaker: "A", Content: "me"},
	}}
	assert.Equal(t, []string{AnonymousSpeaker, "A"}, c.Participants())
}

func TestNormalizeRepairsSpeakers(t *testing.T) {
	c := &Conversation{ID: "c1", Turns: []Turn{
		{Speaker: "  ", Content: "blank speaker"},
		{Speaker: "A", Content: "fine"},
	}}
	n := c.Normalize()

	assert.Equal(t, AnonymousSpeaker, n.Turns[0].Speaker)
	assert.Equal(t, "A", n.Turns[1].Speaker)
	assert.Equal(t, "c1", n.ID)
	assert.Equal(t, "  ", c.Turns[0].Speaker, "the receiver is left untouched")
}

func TestNormalizeEmpty(t *testing.T) {
	c := &Conversation{}
	n := c.Normalize()
	assert.Equal(t, 0, n.Len())
}

package core

// Role values used in messages and turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role/content entry in a model-facing history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn records one utterance inside a conversation. SpeakerID identifies the
// agent identity that produced it; Role is the chat role the utterance is
// replayed under ("user" for the persona agent, "assistant" for the SUT).
type Turn struct {
	SpeakerID string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// Conversation is one complete ordered exchange of turns pursuing a single
// goal. Turns are append-only and strictly ordered by occurrence.
type Conversation struct {
	ID    string `json:"id"`
	Goal  string `json:"goal"`
	Turns []Turn `json:"turns"`
}

// NewConversation creates an empty conversation for the given goal.
func NewConversation(id, goal string) *Conversation {
	return &Conversation{ID: id, Goal: goal, Turns: []Turn{}}
}

// AddTurn appends a turn to the conversation.
func (c *Conversation) AddTurn(speakerID, role, content string) {
	c.Turns = append(c.Turns, Turn{SpeakerID: speakerID, Role: role, Content: content})
}

// LastTurn returns the most recent turn and true, or a zero turn and false
// for an empty conversation.
func (c *Conversation) LastTurn() (Turn, bool) {
	if len(c.Turns) == 0 {
		return Turn{}, false
	}
	return c.Turns[len(c.Turns)-1], true
}

// Messages converts the turn history into model-facing messages, dropping
// speaker identities.
func (c *Conversation) Messages() []Message {
	msgs := make([]Message, len(c.Turns))
	for i, t := range c.Turns {
		msgs[i] = Message{Role: t.Role, Content: t.Content}
	}
	return msgs
}

// SessionResult maps "goal_<n>" (1-based goal index) to the conversations
// produced for that goal, one per successful replica. A goal whose seed
// prompt generation failed for every replica has no key at all.
type SessionResult map[string][]*Conversation

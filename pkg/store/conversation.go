package store

import (
	"time"

	"docubot-be/pkg/llm"
)

// Conversation is one user's running chat history. It lives only in memory.
type Conversation struct {
	UserID    string        `json:"user_id"`
	Turns     []llm.Message `json:"turns"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func NewConversation(userID string) *Conversation {
	return &Conversation{UserID: userID, UpdatedAt: time.Now().UTC()}
}

func (c *Conversation) Append(msgs ...llm.Message) {
	c.Turns = append(c.Turns, msgs...)
	c.UpdatedAt = time.Now().UTC()
}

// Recent returns a copy of at most n trailing turns.
func (c *Conversation) Recent(n int) []llm.Message {
	turns := c.Turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]llm.Message, len(turns))
	copy(out, turns)
	return out
}

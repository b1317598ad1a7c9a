package core

import "time"

const (
	AppName    = "tuskmem"
	AppVersion = "0.1.0"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneNeutral  Tone = "neutral"
)

// Turn is one message of a conversation. Turns are immutable once produced.
// Index is the turn's position in its conversation, starting at 0.
type Turn struct {
	ID             string    `json:"id"`
	Index          int       `json:"index"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

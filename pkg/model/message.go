package model

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged turn of a conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Exchange is one completed user/assistant round trip, handed from the
// generation stage to the capture stage.
type Exchange struct {
	UserMessage string
	Response    string
	At          time.Time
}

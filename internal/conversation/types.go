package conversation

import (
	"time"

	"chat-trigger-engine/internal/intent"
)

// Stage is how far a conversation has progressed towards a sale.
type Stage string

const (
	StageInitial     Stage = "initial"
	StageExploring   Stage = "exploring"
	StageInterested  Stage = "interested"
	StageNegotiating Stage = "negotiating"
	StageClosing     Stage = "closing"
)

// ParseStage maps free text to a stage, unknown values become StageInitial.
func ParseStage(s string) Stage {
	switch Stage(s) {
	case StageInitial, StageExploring, StageInterested, StageNegotiating, StageClosing:
		return Stage(s)
	default:
		return StageInitial
	}
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Intent    *intent.Result `json:"intent,omitempty"`
}

// Context is the state tracked for one user. Values handed out by Store are
// copies; mutating them does not affect the store.
type Context struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Messages      []Message       `json:"messages"`
	CurrentStage  Stage           `json:"currentStage"`
	IntentHistory []intent.Intent `json:"intentHistory"`
	TotalScore    int             `json:"totalScore"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (c *Context) clone() *Context {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	out.IntentHistory = append([]intent.Intent(nil), c.IntentHistory...)
	return &out
}

func (c *Context) hasIntent(in ...intent.Intent) bool {
	for _, h := range c.IntentHistory {
		for _, want := range in {
			if h == want {
				return true
			}
		}
	}
	return false
}

// Rounds is the number of user messages in the conversation.
func (c *Context) Rounds() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

package dispatch

import (
	"time"

	"github.com/google/uuid"

	"chat-trigger-engine/internal/intent"
)

type ActionType string

const (
	ActionReply       ActionType = "reply"
	ActionSend        ActionType = "send"
	ActionHandoff     ActionType = "handoff"
	ActionWaiting     ActionType = "waiting"
	ActionCreateGroup ActionType = "create_group"
	ActionRecord      ActionType = "record"
	ActionNotify      ActionType = "notify"
	ActionFailed      ActionType = "failed"
)

// Event is one inbound message as seen by the dispatcher.
type Event struct {
	GroupID        string    `json:"groupId"`
	UserID         string    `json:"userId"`
	UserName       string    `json:"userName"`
	Message        string    `json:"message"`
	MatchedKeyword string    `json:"matchedKeyword,omitempty"`
	ReceivedAt     time.Time `json:"receivedAt"`
}

type GroupPlan struct {
	Name         string           `json:"name"`
	RoleAccounts []RoleAssignment `json:"roleAccounts"`
	ScriptID     string           `json:"scriptId"`
}

type Lead struct {
	UserID      string   `json:"userId"`
	UserName    string   `json:"userName"`
	SourceGroup string   `json:"sourceGroup"`
	Keyword     string   `json:"keyword"`
	Tags        []string `json:"tags"`
	Stage       string   `json:"stage"`
}

type Notification struct {
	Channels     []string          `json:"channels"`
	Recipients   []string          `json:"recipients"`
	Urgency      string            `json:"urgency"`
	AutoAssignee string            `json:"autoAssignee,omitempty"`
	Data         map[string]string `json:"data"`
}

// ActionResult is the single decision made for an event. The dispatcher
// only describes the action; the caller carries it out.
type ActionResult struct {
	ID      string     `json:"id"`
	Success bool       `json:"success"`
	Type    ActionType `json:"type"`
	Mode    Mode       `json:"mode"`
	Error   string     `json:"error,omitempty"`
	Reason  string     `json:"reason,omitempty"`

	Content         string        `json:"content,omitempty"`
	Delay           time.Duration `json:"delay"`
	SenderAccountID string        `json:"senderAccountId,omitempty"`

	Intent            intent.Intent    `json:"intent,omitempty"`
	Confidence        float64          `json:"confidence,omitempty"`
	Sentiment         intent.Sentiment `json:"sentiment,omitempty"`
	MatchedRules      []string         `json:"matchedRules,omitempty"`
	SuggestedFollowUp string           `json:"suggestedFollowUp,omitempty"`
	TokensUsed        int              `json:"tokensUsed,omitempty"`
	ModelUsed         string           `json:"modelUsed,omitempty"`

	Score     int `json:"score,omitempty"`
	Threshold int `json:"threshold,omitempty"`
	Rounds    int `json:"rounds,omitempty"`
	MinRounds int `json:"minRounds,omitempty"`

	Group        *GroupPlan    `json:"group,omitempty"`
	Lead         *Lead         `json:"lead,omitempty"`
	Notification *Notification `json:"notification,omitempty"`

	// Set from matched rule actions.
	Tags        []string `json:"tags,omitempty"`
	NotifyHuman bool     `json:"notifyHuman,omitempty"`
	StageChange string   `json:"stageChange,omitempty"`
	SendOffer   bool     `json:"sendOffer,omitempty"`

	Event     Event     `json:"event"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsConversion reports whether the action hands the lead to people.
func (r *ActionResult) IsConversion() bool {
	return r.Success && (r.Type == ActionHandoff || r.Type == ActionCreateGroup)
}

func newResult(ev Event, mode Mode, typ ActionType) *ActionResult {
	return &ActionResult{
		ID:        uuid.NewString(),
		Success:   true,
		Type:      typ,
		Mode:      mode,
		Event:     ev,
		CreatedAt: time.Now(),
	}
}

func failed(ev Event, mode Mode, msg string) *ActionResult {
	res := newResult(ev, mode, ActionFailed)
	res.Success = false
	res.Error = msg
	return res
}

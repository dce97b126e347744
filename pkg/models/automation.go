package models

import "time"

// RuleRequest is the body accepted when creating or replacing a smart rule
type RuleRequest struct {
	ID                string            `json:"id"`
	Name              string            `json:"name" binding:"required"`
	TriggerIntent     string            `json:"triggerIntent" binding:"required"`
	TriggerConditions RuleConditionsDTO `json:"triggerConditions"`
	Actions           RuleActionsDTO    `json:"actions"`
	IsActive          *bool             `json:"isActive"`
	Priority          int               `json:"priority"`
}

type RuleConditionsDTO struct {
	IntentScore        *float64 `json:"intentScore,omitempty" binding:"omitempty,gte=0,lte=1"`
	ConversationRounds *int     `json:"conversationRounds,omitempty" binding:"omitempty,gte=0"`
	KeywordMatch       []string `json:"keywordMatch,omitempty"`
}

type RuleActionsDTO struct {
	NotifyHuman bool   `json:"notifyHuman"`
	AutoReply   string `json:"autoReply,omitempty"`
	AddTag      string `json:"addTag,omitempty"`
	ChangeStage string `json:"changeStage,omitempty" binding:"omitempty,oneof=initial exploring interested negotiating closing"`
	SendOffer   bool   `json:"sendOffer"`
}

// AnalyticsSummary represents the dashboard totals for rules and actions
type AnalyticsSummary struct {
	TotalRules      int64            `json:"total_rules"`
	ActiveRules     int64            `json:"active_rules"`
	TotalActions    int64            `json:"total_actions"`
	SuccessfulActs  int64            `json:"successful_actions"`
	FailedActs      int64            `json:"failed_actions"`
	ExecutedActions int64            `json:"executed_actions"`
	ByType          map[string]int64 `json:"by_type"`
	ByIntent        map[string]int64 `json:"by_intent"`
	Leads           int64            `json:"leads"`
	HandedOff       int64            `json:"handed_off"`
	Triggered       int64            `json:"triggered"`
	Conversions     int64            `json:"conversions"`
}

// ConversationSummary represents one tracked conversation in listings
type ConversationSummary struct {
	UserID        string    `json:"user_id"`
	Stage         string    `json:"stage"`
	Score         int       `json:"score"`
	Rounds        int       `json:"rounds"`
	ShouldHandoff bool      `json:"should_handoff"`
	LastMessage   string    `json:"last_message"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BroadcastRecipient is one contact in a template broadcast
type BroadcastRecipient struct {
	WaID string            `json:"wa_id" binding:"required"`
	Name string            `json:"name"`
	Vars map[string]string `json:"vars,omitempty"`
}

type BroadcastRequest struct {
	Content       string               `json:"content" binding:"required"`
	EnableSpintax bool                 `json:"enable_spintax"`
	AccountID     string               `json:"account_id"`
	Recipients    []BroadcastRecipient `json:"recipients" binding:"required,min=1,dive"`
}

type PreviewRequest struct {
	Content       string            `json:"content" binding:"required"`
	Name          string            `json:"name"`
	Vars          map[string]string `json:"vars,omitempty"`
	EnableSpintax bool              `json:"enable_spintax"`
	Count         int               `json:"count" binding:"omitempty,min=1,max=20"`
}

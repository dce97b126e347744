package models

import (
	"strings"
	"time"

	"chat-trigger-engine/internal/dispatch"
	"chat-trigger-engine/internal/intent"
	"chat-trigger-engine/internal/rules"
)

// Message represents a WhatsApp message seen or sent by the engine
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	WaID      string    `gorm:"index;not null" json:"wa_id"`
	Sender    string    `gorm:"not null" json:"sender"`
	AccountID string    `gorm:"type:varchar(100)" json:"account_id"`
	Content   string    `gorm:"type:text" json:"content"`
	Type      string    `gorm:"type:varchar(50)" json:"type"`
	Status    string    `gorm:"type:varchar(20)" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

// Lead represents a contact the engine has recorded or handed to sales
type Lead struct {
	WaID        string    `gorm:"primaryKey" json:"wa_id"` // WhatsApp ID (phone number)
	Name        string    `gorm:"type:varchar(255)" json:"name"`
	SourceGroup string    `gorm:"type:varchar(255);index" json:"source_group"`
	Keyword     string    `gorm:"type:varchar(255)" json:"keyword"`
	Tags        string    `gorm:"type:text" json:"tags"` // Comma separated tags
	Stage       string    `gorm:"type:varchar(50)" json:"stage"`
	Status      string    `gorm:"type:varchar(50);default:'new'" json:"status"` // new, handed_off, grouped
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

func (l *Lead) TagList() []string {
	if l.Tags == "" {
		return nil
	}
	return strings.Split(l.Tags, ",")
}

// MergeTags adds tags not already present, keeping the existing order.
func (l *Lead) MergeTags(tags []string) {
	current := l.TagList()
	seen := make(map[string]bool, len(current))
	for _, t := range current {
		seen[t] = true
	}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		current = append(current, t)
	}
	l.Tags = strings.Join(current, ",")
}

// SmartRule represents a stored rule; conditions and actions are JSON columns
type SmartRule struct {
	ID            string                  `gorm:"primaryKey;type:varchar(100)" json:"id"`
	Name          string                  `gorm:"type:varchar(255);not null" json:"name"`
	TriggerIntent string                  `gorm:"type:varchar(50);not null;index" json:"trigger_intent"`
	Conditions    rules.TriggerConditions `gorm:"type:text;serializer:json" json:"conditions"`
	Actions       rules.Actions           `gorm:"type:text;serializer:json" json:"actions"`
	IsActive      bool                    `gorm:"default:true" json:"is_active"`
	Priority      int                     `gorm:"default:0" json:"priority"`
	CreatedAt     time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SmartRule) TableName() string {
	return "smart_rules"
}

func (r SmartRule) ToRule() rules.SmartRule {
	return rules.SmartRule{
		ID:                r.ID,
		Name:              r.Name,
		TriggerIntent:     intent.Intent(r.TriggerIntent),
		TriggerConditions: r.Conditions,
		Actions:           r.Actions,
		IsActive:          r.IsActive,
		Priority:          r.Priority,
	}
}

func SmartRuleFrom(r rules.SmartRule) SmartRule {
	return SmartRule{
		ID:            r.ID,
		Name:          r.Name,
		TriggerIntent: string(r.TriggerIntent),
		Conditions:    r.TriggerConditions,
		Actions:       r.Actions,
		IsActive:      r.IsActive,
		Priority:      r.Priority,
	}
}

// GlobalScope is the scope key of the single global trigger config.
const GlobalScope = "global"

// TriggerConfig represents the stored global trigger-action config
type TriggerConfig struct {
	ID        uint                         `gorm:"primaryKey" json:"id"`
	Scope     string                       `gorm:"type:varchar(50);uniqueIndex" json:"scope"`
	Config    dispatch.TriggerActionConfig `gorm:"type:text;serializer:json" json:"config"`
	UpdatedAt time.Time                    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TriggerConfig) TableName() string {
	return "trigger_configs"
}

// GroupTriggerConfig represents a per-group override
type GroupTriggerConfig struct {
	GroupID   string                      `gorm:"primaryKey;type:varchar(255)" json:"group_id"`
	Config    dispatch.GroupTriggerConfig `gorm:"type:text;serializer:json" json:"config"`
	UpdatedAt time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GroupTriggerConfig) TableName() string {
	return "group_trigger_configs"
}

// ActionLog represents one dispatch decision and how it was executed
type ActionLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ActionID        string    `gorm:"type:varchar(64);uniqueIndex" json:"action_id"`
	WaID            string    `gorm:"type:varchar(50);index" json:"wa_id"`
	GroupID         string    `gorm:"type:varchar(255);index" json:"group_id"`
	Mode            string    `gorm:"type:varchar(50)" json:"mode"`
	ActionType      string    `gorm:"type:varchar(50);index" json:"action_type"`
	Intent          string    `gorm:"type:varchar(50)" json:"intent"`
	Confidence      float64   `json:"confidence"`
	MatchedRules    string    `gorm:"type:text" json:"matched_rules"` // Comma separated rule names
	SenderAccountID string    `gorm:"type:varchar(100)" json:"sender_account_id"`
	Content         string    `gorm:"type:text" json:"content"`
	Success         bool      `json:"success"`
	Executed        bool      `json:"executed"`
	ErrorMessage    string    `gorm:"type:text" json:"error_message"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ActionLog) TableName() string {
	return "action_logs"
}

func ActionLogFrom(res *dispatch.ActionResult) ActionLog {
	return ActionLog{
		ActionID:        res.ID,
		WaID:            res.Event.UserID,
		GroupID:         res.Event.GroupID,
		Mode:            string(res.Mode),
		ActionType:      string(res.Type),
		Intent:          string(res.Intent),
		Confidence:      res.Confidence,
		MatchedRules:    strings.Join(res.MatchedRules, ","),
		SenderAccountID: res.SenderAccountID,
		Content:         res.Content,
		Success:         res.Success,
		ErrorMessage:    res.Error,
	}
}

// SystemSetting represents a key/value setting that overrides the environment
type SystemSetting struct {
	Key       string    `gorm:"primaryKey;type:varchar(100)" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}

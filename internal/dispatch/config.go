package dispatch

import (
	"chat-trigger-engine/internal/accounts"
	"chat-trigger-engine/internal/reply"
)

type Mode string

const (
	ModeAISmart      Mode = "ai_smart"
	ModeTemplateSend Mode = "template_send"
	ModeMultiRole    Mode = "multi_role"
	ModeRecordOnly   Mode = "record_only"
	ModeNotifyHuman  Mode = "notify_human"
)

// AIReplyConfig drives ai_smart replies. Delays are in seconds.
type AIReplyConfig struct {
	MinDelaySeconds   int             `json:"minDelaySeconds" yaml:"minDelaySeconds" validate:"gte=0,lte=86400"`
	MaxDelaySeconds   int             `json:"maxDelaySeconds" yaml:"maxDelaySeconds" validate:"gtefield=MinDelaySeconds,lte=86400"`
	SimulateTyping    bool            `json:"simulateTyping" yaml:"simulateTyping"`
	HandoffOnPurchase bool            `json:"handoffOnPurchase" yaml:"handoffOnPurchase"`
	HandoffOnNegative bool            `json:"handoffOnNegative" yaml:"handoffOnNegative"`
	UseContext        bool            `json:"useContext" yaml:"useContext"`
	Settings          *reply.Settings `json:"settings,omitempty" yaml:"settings,omitempty"`
}

type TemplateConfig struct {
	Content         string `json:"content" yaml:"content" validate:"required"`
	EnableSpintax   bool   `json:"enableSpintax" yaml:"enableSpintax"`
	Personalize     bool   `json:"personalize" yaml:"personalize"`
	MinDelaySeconds int    `json:"minDelaySeconds" yaml:"minDelaySeconds" validate:"gte=0,lte=86400"`
	MaxDelaySeconds int    `json:"maxDelaySeconds" yaml:"maxDelaySeconds" validate:"gtefield=MinDelaySeconds,lte=86400"`
}

// RoleAssignment puts an account into a scripted group under a role.
type RoleAssignment struct {
	AccountID string `json:"accountId" yaml:"accountId" validate:"required"`
	Role      string `json:"role" yaml:"role" validate:"required"`
}

type MultiRoleConfig struct {
	ScoreThreshold    int              `json:"scoreThreshold" yaml:"scoreThreshold" validate:"gte=0"`
	MinRounds         int              `json:"minRounds" yaml:"minRounds" validate:"gte=0"`
	RoleAccounts      []RoleAssignment `json:"roleAccounts" yaml:"roleAccounts" validate:"required,min=1,dive"`
	ScriptID          string           `json:"scriptId" yaml:"scriptId" validate:"required"`
	GroupNameTemplate string           `json:"groupNameTemplate" yaml:"groupNameTemplate"`
}

type RecordOnlyConfig struct {
	AutoTags  []string `json:"autoTags" yaml:"autoTags"`
	AutoStage string   `json:"autoStage" yaml:"autoStage" validate:"omitempty,oneof=initial exploring interested negotiating closing"`
}

type NotifyHumanConfig struct {
	Channels     []string `json:"channels" yaml:"channels" validate:"required,min=1,dive,required"`
	Recipients   []string `json:"recipients" yaml:"recipients"`
	Urgency      string   `json:"urgency" yaml:"urgency" validate:"omitempty,oneof=low medium high"`
	AutoAssignee string   `json:"autoAssignee,omitempty" yaml:"autoAssignee,omitempty"`
}

// Stats are running counters kept alongside a config.
type Stats struct {
	Triggered   int64 `json:"triggered" yaml:"triggered"`
	Successful  int64 `json:"successful" yaml:"successful"`
	Failed      int64 `json:"failed" yaml:"failed"`
	Conversions int64 `json:"conversions" yaml:"conversions"`
}

// Record folds one dispatch outcome into s.
func (s *Stats) Record(res *ActionResult) {
	s.Triggered++
	if res.Success {
		s.Successful++
	} else {
		s.Failed++
	}
	if res.IsConversion() {
		s.Conversions++
	}
}

// Add folds counters gathered elsewhere into s.
func (s *Stats) Add(o Stats) {
	s.Triggered += o.Triggered
	s.Successful += o.Successful
	s.Failed += o.Failed
	s.Conversions += o.Conversions
}

type TriggerActionConfig struct {
	IsActive                bool               `json:"isActive" yaml:"isActive"`
	Mode                    Mode               `json:"mode" yaml:"mode" validate:"required,oneof=ai_smart template_send multi_role record_only notify_human"`
	AIReply                 *AIReplyConfig     `json:"aiReply,omitempty" yaml:"aiReply,omitempty" validate:"required_if=Mode ai_smart"`
	Template                *TemplateConfig    `json:"template,omitempty" yaml:"template,omitempty" validate:"required_if=Mode template_send"`
	MultiRole               *MultiRoleConfig   `json:"multiRole,omitempty" yaml:"multiRole,omitempty" validate:"required_if=Mode multi_role"`
	RecordOnly              *RecordOnlyConfig  `json:"recordOnly,omitempty" yaml:"recordOnly,omitempty" validate:"required_if=Mode record_only"`
	NotifyHuman             *NotifyHumanConfig `json:"notifyHuman,omitempty" yaml:"notifyHuman,omitempty" validate:"required_if=Mode notify_human"`
	SenderAccountIDs        []string           `json:"senderAccountIds" yaml:"senderAccountIds"`
	AccountRotationStrategy accounts.Strategy  `json:"accountRotationStrategy" yaml:"accountRotationStrategy" validate:"omitempty,oneof=sequential random load_balance"`
	Stats                   Stats              `json:"stats" yaml:"stats"`
}

// Overrides lists the fields a group may set on top of its base config.
type Overrides struct {
	Mode             *Mode    `json:"mode,omitempty" yaml:"mode,omitempty"`
	SenderAccountIDs []string `json:"senderAccountIds,omitempty" yaml:"senderAccountIds,omitempty"`
}

type GroupTriggerConfig struct {
	GroupID         string               `json:"groupId" yaml:"groupId" validate:"required"`
	UseGlobalConfig bool                 `json:"useGlobalConfig" yaml:"useGlobalConfig"`
	CustomConfig    *TriggerActionConfig `json:"customConfig,omitempty" yaml:"customConfig,omitempty"`
	Overrides       Overrides            `json:"overrides" yaml:"overrides"`
}

// Resolve returns the config that applies to a group. Without a group
// override, or when the group defers to global, global is returned as is.
// Otherwise the group's custom config (or global) is taken and only the
// explicitly overridden fields are replaced.
func Resolve(global TriggerActionConfig, group *GroupTriggerConfig) TriggerActionConfig {
	if group == nil || group.UseGlobalConfig {
		return global
	}

	base := global
	if group.CustomConfig != nil {
		base = *group.CustomConfig
	}
	if group.Overrides.Mode != nil {
		base.Mode = *group.Overrides.Mode
	}
	if len(group.Overrides.SenderAccountIDs) > 0 {
		base.SenderAccountIDs = append([]string(nil), group.Overrides.SenderAccountIDs...)
	}
	return base
}

package rules

import (
	"sort"
	"strings"

	"chat-trigger-engine/internal/intent"
)

// TriggerConditions narrow when a rule fires. Nil or empty fields are not checked.
type TriggerConditions struct {
	IntentScore        *float64 `json:"intentScore,omitempty" yaml:"intentScore,omitempty"`
	ConversationRounds *int     `json:"conversationRounds,omitempty" yaml:"conversationRounds,omitempty"`
	KeywordMatch       []string `json:"keywordMatch,omitempty" yaml:"keywordMatch,omitempty"`
}

type Actions struct {
	NotifyHuman bool   `json:"notifyHuman" yaml:"notifyHuman"`
	AutoReply   string `json:"autoReply,omitempty" yaml:"autoReply,omitempty"`
	AddTag      string `json:"addTag,omitempty" yaml:"addTag,omitempty"`
	ChangeStage string `json:"changeStage,omitempty" yaml:"changeStage,omitempty"`
	SendOffer   bool   `json:"sendOffer" yaml:"sendOffer"`
}

// SmartRule is read-only configuration; Evaluate never modifies it.
type SmartRule struct {
	ID                string            `json:"id" yaml:"id"`
	Name              string            `json:"name" yaml:"name"`
	TriggerIntent     intent.Intent     `json:"triggerIntent" yaml:"triggerIntent"`
	TriggerConditions TriggerConditions `json:"triggerConditions" yaml:"triggerConditions"`
	Actions           Actions           `json:"actions" yaml:"actions"`
	IsActive          bool              `json:"isActive" yaml:"isActive"`
	Priority          int               `json:"priority" yaml:"priority"`
}

// Matches reports whether the rule fires for res after rounds user messages.
func (r *SmartRule) Matches(res *intent.Result, rounds int) bool {
	if !r.IsActive || res == nil || r.TriggerIntent != res.Intent {
		return false
	}

	cond := r.TriggerConditions
	if cond.IntentScore != nil && res.Confidence < *cond.IntentScore {
		return false
	}
	if cond.ConversationRounds != nil && rounds < *cond.ConversationRounds {
		return false
	}
	if len(cond.KeywordMatch) > 0 && !keywordOverlap(cond.KeywordMatch, res.Keywords) {
		return false
	}
	return true
}

func keywordOverlap(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(strings.TrimSpace(w), strings.TrimSpace(h)) {
				return true
			}
		}
	}
	return false
}

// Evaluate returns the rules in pool that fire for res, highest priority
// first. Rules with equal priority keep their pool order.
func Evaluate(res *intent.Result, pool []SmartRule, rounds int) []SmartRule {
	var matched []SmartRule
	for i := range pool {
		if pool[i].Matches(res, rounds) {
			matched = append(matched, pool[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})
	return matched
}

// Names lists rule names in order.
func Names(rs []SmartRule) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Name)
	}
	return out
}

// Tags collects the distinct AddTag actions of rs in order.
func Tags(rs []SmartRule) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rs {
		tag := r.Actions.AddTag
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

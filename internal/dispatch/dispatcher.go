package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"chat-trigger-engine/internal/accounts"
	"chat-trigger-engine/internal/ai"
	"chat-trigger-engine/internal/conversation"
	"chat-trigger-engine/internal/intent"
	"chat-trigger-engine/internal/logger"
	"chat-trigger-engine/internal/reply"
	"chat-trigger-engine/internal/rules"
	"chat-trigger-engine/internal/template"
)

var log = logger.Get("dispatch")

const (
	historyTurns             = 6
	defaultGroupNameTemplate = "{name} VIP"
	defaultNotifyUrgency     = "medium"
)

type Classifier interface {
	Classify(ctx context.Context, message, userID string, useContext bool) *intent.Result
}

type Conversations interface {
	Update(userID, content string, role conversation.Role, res *intent.Result) *conversation.Context
	IntentScore(userID string) int
	Rounds(userID string) int
	ShouldHandoff(userID string) bool
	RecentTurns(userID string, n int) []ai.Message
}

type Composer interface {
	Compose(ctx context.Context, req reply.Request) *reply.Reply
	SuggestDelay(content string, urgency intent.Urgency) time.Duration
}

type RuleSource interface {
	Snapshot() []rules.SmartRule
}

// Deps are the collaborators a Dispatcher decides with. Directory may be nil.
type Deps struct {
	Classifier Classifier
	Store      Conversations
	Composer   Composer
	Rules      RuleSource
	Directory  accounts.Directory
	Selector   *accounts.Selector
	Expander   *template.Expander
}

// Dispatcher turns an inbound event and its effective config into exactly
// one ActionResult. It never delivers anything itself.
type Dispatcher struct {
	deps Deps

	mu  sync.Mutex
	rng *rand.Rand
}

func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Selector == nil {
		deps.Selector = accounts.NewDefaultSelector()
	}
	if deps.Expander == nil {
		deps.Expander = template.NewExpander(time.Now().UnixNano())
	}
	return &Dispatcher{
		deps: deps,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Dispatch decides the action for ev. Problems with the config and internal
// panics come back as failed results, never as a panic or error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event, cfg TriggerActionConfig) (res *ActionResult) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := otel.Tracer("dispatch").Start(ctx, "dispatch.Dispatcher.Dispatch")
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{"mode": cfg.Mode, "user_id": ev.UserID}).Errorf("dispatch panic: %v", r)
			res = failed(ev, cfg.Mode, fmt.Sprintf("internal error: %v", r))
		}
		dispatches.WithLabelValues(string(cfg.Mode), string(res.Type)).Inc()
		dispatchDuration.WithLabelValues(string(cfg.Mode)).Observe(time.Since(start).Seconds())
		span.SetAttributes(
			attribute.String("mode", string(cfg.Mode)),
			attribute.String("action", string(res.Type)),
			attribute.Bool("success", res.Success),
		)
	}()

	if !cfg.IsActive {
		return failed(ev, cfg.Mode, "trigger config is not active")
	}

	switch cfg.Mode {
	case ModeAISmart:
		if cfg.AIReply == nil {
			return missing(ev, cfg.Mode)
		}
		return d.aiSmart(ctx, ev, cfg, *cfg.AIReply)
	case ModeTemplateSend:
		if cfg.Template == nil {
			return missing(ev, cfg.Mode)
		}
		return d.templateSend(ev, cfg)
	case ModeMultiRole:
		if cfg.MultiRole == nil {
			return missing(ev, cfg.Mode)
		}
		return d.multiRole(ctx, ev, cfg)
	case ModeRecordOnly:
		if cfg.RecordOnly == nil {
			return missing(ev, cfg.Mode)
		}
		return d.recordOnly(ev, cfg)
	case ModeNotifyHuman:
		if cfg.NotifyHuman == nil {
			return missing(ev, cfg.Mode)
		}
		return d.notifyHuman(ev, cfg)
	default:
		return failed(ev, cfg.Mode, fmt.Sprintf("unsupported mode %q", cfg.Mode))
	}
}

func missing(ev Event, mode Mode) *ActionResult {
	return failed(ev, mode, fmt.Sprintf("mode %s has no configuration", mode))
}

// composed is the outcome of the shared AI reply path.
type composed struct {
	intent  *intent.Result
	matched []rules.SmartRule
	history []ai.Message
	reply   *reply.Reply
}

// analyze classifies the message, which also records it in the
// conversation, and evaluates the rule pool.
func (d *Dispatcher) analyze(ctx context.Context, ev Event, useContext bool) composed {
	history := d.deps.Store.RecentTurns(ev.UserID, historyTurns)
	res := d.deps.Classifier.Classify(ctx, ev.Message, ev.UserID, useContext)

	var pool []rules.SmartRule
	if d.deps.Rules != nil {
		pool = d.deps.Rules.Snapshot()
	}
	return composed{
		intent:  res,
		matched: rules.Evaluate(res, pool, d.deps.Store.Rounds(ev.UserID)),
		history: history,
	}
}

// write fills c.reply. The top rule's auto-reply text, when present, is used
// instead of the AI.
func (d *Dispatcher) write(ctx context.Context, ev Event, c *composed, settings *reply.Settings) {
	if len(c.matched) > 0 && c.matched[0].Actions.AutoReply != "" {
		top := c.matched[0]
		text := d.deps.Expander.Render(top.Actions.AutoReply, map[string]string{"name": displayName(ev.UserName)}, true)
		c.reply = &reply.Reply{
			Content:        text,
			ModelUsed:      "rule:" + top.ID,
			SuggestedDelay: d.deps.Composer.SuggestDelay(text, c.intent.Urgency),
		}
		return
	}

	c.reply = d.deps.Composer.Compose(ctx, reply.Request{
		Message:  ev.Message,
		UserName: ev.UserName,
		Intent:   c.intent,
		Settings: settings,
		History:  c.history,
	})
}

func (d *Dispatcher) aiSmart(ctx context.Context, ev Event, cfg TriggerActionConfig, sub AIReplyConfig) *ActionResult {
	c := d.analyze(ctx, ev, sub.UseContext)
	d.write(ctx, ev, &c, sub.Settings)

	if reason, ok := d.handoffReason(ev.UserID, c.intent, sub); ok {
		res := newResult(ev, cfg.Mode, ActionHandoff)
		fillDiagnostics(res, c)
		res.Content = c.reply.Content
		res.Reason = reason
		return res
	}

	res := newResult(ev, cfg.Mode, ActionReply)
	fillDiagnostics(res, c)
	res.Content = c.reply.Content
	if sub.SimulateTyping {
		res.Delay = c.reply.SuggestedDelay
	} else {
		res.Delay = d.uniformDelay(sub.MinDelaySeconds, sub.MaxDelaySeconds)
	}
	res.SenderAccountID = d.pickSender(cfg)
	d.deps.Store.Update(ev.UserID, res.Content, conversation.RoleAssistant, nil)
	return res
}

// handoffReason applies the configured toggles to the conversation's handoff state.
func (d *Dispatcher) handoffReason(userID string, res *intent.Result, sub AIReplyConfig) (string, bool) {
	if !d.deps.Store.ShouldHandoff(userID) {
		return "", false
	}
	if sub.HandoffOnPurchase && res.Intent == intent.PurchaseIntent {
		return "purchase intent detected", true
	}
	negative := res.Intent == intent.NegativeSentiment || res.Intent == intent.Complaint || res.Sentiment == intent.Negative
	if sub.HandoffOnNegative && negative {
		return "negative sentiment detected", true
	}
	return "", false
}

func (d *Dispatcher) templateSend(ev Event, cfg TriggerActionConfig) *ActionResult {
	sub := cfg.Template

	content := sub.Content
	if sub.Personalize {
		content = template.Personalize(content, ev.UserName)
	}
	if sub.EnableSpintax {
		content = d.deps.Expander.ExpandSpintax(content)
	}

	res := newResult(ev, cfg.Mode, ActionSend)
	res.Content = content
	res.Delay = d.uniformDelay(sub.MinDelaySeconds, sub.MaxDelaySeconds)
	res.SenderAccountID = d.pickSender(cfg)
	return res
}

func (d *Dispatcher) multiRole(ctx context.Context, ev Event, cfg TriggerActionConfig) *ActionResult {
	sub := cfg.MultiRole

	nurture := AIReplyConfig{UseContext: true, SimulateTyping: true}
	if cfg.AIReply != nil {
		nurture = *cfg.AIReply
	}

	c := d.analyze(ctx, ev, nurture.UseContext)
	score := d.deps.Store.IntentScore(ev.UserID)
	rounds := d.deps.Store.Rounds(ev.UserID)

	if score < sub.ScoreThreshold {
		d.write(ctx, ev, &c, nurture.Settings)
		res := newResult(ev, cfg.Mode, ActionWaiting)
		fillDiagnostics(res, c)
		res.Content = c.reply.Content
		if nurture.SimulateTyping {
			res.Delay = c.reply.SuggestedDelay
		} else {
			res.Delay = d.uniformDelay(nurture.MinDelaySeconds, nurture.MaxDelaySeconds)
		}
		res.SenderAccountID = d.pickSender(cfg)
		res.Score = score
		res.Threshold = sub.ScoreThreshold
		res.Rounds = rounds
		res.Reason = fmt.Sprintf("intent score %d below threshold %d", score, sub.ScoreThreshold)
		d.deps.Store.Update(ev.UserID, res.Content, conversation.RoleAssistant, nil)
		return res
	}

	if rounds < sub.MinRounds {
		res := newResult(ev, cfg.Mode, ActionWaiting)
		fillDiagnostics(res, c)
		res.Score = score
		res.Threshold = sub.ScoreThreshold
		res.Rounds = rounds
		res.MinRounds = sub.MinRounds
		res.Reason = fmt.Sprintf("needs %d more conversation rounds", sub.MinRounds-rounds)
		return res
	}

	nameTemplate := sub.GroupNameTemplate
	if nameTemplate == "" {
		nameTemplate = defaultGroupNameTemplate
	}

	res := newResult(ev, cfg.Mode, ActionCreateGroup)
	fillDiagnostics(res, c)
	res.Score = score
	res.Threshold = sub.ScoreThreshold
	res.Rounds = rounds
	res.MinRounds = sub.MinRounds
	res.Group = &GroupPlan{
		Name:         template.Personalize(nameTemplate, displayName(ev.UserName)),
		RoleAccounts: append([]RoleAssignment(nil), sub.RoleAccounts...),
		ScriptID:     sub.ScriptID,
	}
	return res
}

func (d *Dispatcher) recordOnly(ev Event, cfg TriggerActionConfig) *ActionResult {
	sub := cfg.RecordOnly
	res := newResult(ev, cfg.Mode, ActionRecord)
	res.Lead = &Lead{
		UserID:      ev.UserID,
		UserName:    ev.UserName,
		SourceGroup: ev.GroupID,
		Keyword:     ev.MatchedKeyword,
		Tags:        append([]string(nil), sub.AutoTags...),
		Stage:       sub.AutoStage,
	}
	res.Tags = res.Lead.Tags
	return res
}

func (d *Dispatcher) notifyHuman(ev Event, cfg TriggerActionConfig) *ActionResult {
	sub := cfg.NotifyHuman
	urgency := sub.Urgency
	if urgency == "" {
		urgency = defaultNotifyUrgency
	}

	res := newResult(ev, cfg.Mode, ActionNotify)
	res.NotifyHuman = true
	res.Notification = &Notification{
		Channels:     append([]string(nil), sub.Channels...),
		Recipients:   append([]string(nil), sub.Recipients...),
		Urgency:      urgency,
		AutoAssignee: sub.AutoAssignee,
		Data: map[string]string{
			"groupId":        ev.GroupID,
			"userId":         ev.UserID,
			"userName":       ev.UserName,
			"message":        ev.Message,
			"matchedKeyword": ev.MatchedKeyword,
		},
	}
	return res
}

func fillDiagnostics(res *ActionResult, c composed) {
	res.Intent = c.intent.Intent
	res.Confidence = c.intent.Confidence
	res.Sentiment = c.intent.Sentiment
	res.SuggestedFollowUp = c.intent.SuggestedAction
	res.MatchedRules = rules.Names(c.matched)
	res.Tags = rules.Tags(c.matched)
	if c.reply != nil {
		res.TokensUsed = c.reply.TokensUsed
		res.ModelUsed = c.reply.ModelUsed
	}
	for _, r := range c.matched {
		if r.Actions.NotifyHuman {
			res.NotifyHuman = true
		}
		if r.Actions.SendOffer {
			res.SendOffer = true
		}
		if res.StageChange == "" && r.Actions.ChangeStage != "" {
			res.StageChange = r.Actions.ChangeStage
		}
	}
}

func (d *Dispatcher) pickSender(cfg TriggerActionConfig) string {
	ids := accounts.FilterByRole(d.deps.Directory, cfg.SenderAccountIDs, accounts.RoleSender)
	id, _ := d.deps.Selector.Select(ids, cfg.AccountRotationStrategy)
	return id
}

// MaxDelaySeconds caps every configured reply delay at one day.
const MaxDelaySeconds = 86400

// uniformDelay picks a delay in [min, max] seconds, both clamped to
// [0, MaxDelaySeconds].
func (d *Dispatcher) uniformDelay(minSec, maxSec int) time.Duration {
	minSec = clampDelay(minSec)
	maxSec = clampDelay(maxSec)
	if maxSec <= minSec {
		return time.Duration(minSec) * time.Second
	}
	d.mu.Lock()
	extra := d.rng.Int63n(int64(maxSec-minSec)*int64(time.Second) + 1)
	d.mu.Unlock()
	return time.Duration(minSec)*time.Second + time.Duration(extra)
}

func clampDelay(sec int) int {
	if sec < 0 {
		return 0
	}
	if sec > MaxDelaySeconds {
		return MaxDelaySeconds
	}
	return sec
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

package dispatch

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-trigger-engine/internal/accounts"
	"chat-trigger-engine/internal/conversation"
	"chat-trigger-engine/internal/intent"
	"chat-trigger-engine/internal/reply"
	"chat-trigger-engine/internal/rules"
	"chat-trigger-engine/internal/template"
)

type harness struct {
	classifier *intent.Classifier
	store      *conversation.Store
	pool       *rules.Pool
	dispatcher *Dispatcher
}

// newHarness wires the real components with no AI backend, so classification
// uses the keyword heuristic and replies use canned lines.
func newHarness(t *testing.T, rs ...rules.SmartRule) *harness {
	t.Helper()
	store := conversation.NewStore()
	classifier := intent.NewClassifier(nil, store, intent.DefaultConfig())
	composer := reply.NewComposer(nil, nil, reply.DefaultConfig())
	pool := rules.NewPool(rs)

	return &harness{
		classifier: classifier,
		store:      store,
		pool:       pool,
		dispatcher: NewDispatcher(Deps{
			Classifier: classifier,
			Store:      store,
			Composer:   composer,
			Rules:      pool,
			Selector:   accounts.NewSelector(1),
			Expander:   template.NewExpander(1),
		}),
	}
}

func event(user, msg string) Event {
	return Event{GroupID: "g1", UserID: user, UserName: "Ana", Message: msg, MatchedKeyword: "price"}
}

func aiConfig(sub AIReplyConfig) TriggerActionConfig {
	return TriggerActionConfig{
		IsActive:         true,
		Mode:             ModeAISmart,
		AIReply:          &sub,
		SenderAccountIDs: []string{"acc1", "acc2"},
	}
}

func TestDispatch_PriceQuestionGetsReply(t *testing.T) {
	h := newHarness(t)
	cfg := aiConfig(AIReplyConfig{MinDelaySeconds: 5, MaxDelaySeconds: 10, HandoffOnPurchase: true})

	res := h.dispatcher.Dispatch(context.Background(), event("u1", "how much does it cost?"), cfg)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, ActionReply, res.Type)
	assert.Equal(t, intent.PriceInquiry, res.Intent)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.NotEmpty(t, res.Content)
	assert.Equal(t, "acc1", res.SenderAccountID)
	assert.GreaterOrEqual(t, res.Delay, 5*time.Second)
	assert.LessOrEqual(t, res.Delay, 10*time.Second)
	assert.NotEmpty(t, res.SuggestedFollowUp)

	ctx := h.store.GetContext("u1")
	require.NotNil(t, ctx)
	require.Len(t, ctx.Messages, 2)
	assert.Equal(t, conversation.RoleUser, ctx.Messages[0].Role)
	assert.Equal(t, conversation.RoleAssistant, ctx.Messages[1].Role)
	assert.Equal(t, res.Content, ctx.Messages[1].Content)
}

func TestDispatch_ClosingConversationCreatesGroup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msgs := []string{"hello", "what do you sell?", "i want to buy this now", "great", "ok"}
	for i, m := range msgs {
		h.classifier.Classify(ctx, m, "u2", true)
		if i == 2 {
			c := h.store.GetContext("u2")
			require.NotNil(t, c)
			assert.Equal(t, conversation.StageClosing, c.CurrentStage)
		}
	}
	c := h.store.GetContext("u2")
	assert.Equal(t, conversation.StageClosing, c.CurrentStage)
	assert.Len(t, c.Messages, 5)

	cfg := TriggerActionConfig{
		IsActive: true,
		Mode:     ModeMultiRole,
		MultiRole: &MultiRoleConfig{
			ScoreThreshold:    30,
			MinRounds:         3,
			RoleAccounts:      []RoleAssignment{{AccountID: "expert", Role: "expert"}, {AccountID: "buyer", Role: "happy_customer"}},
			ScriptID:          "script-7",
			GroupNameTemplate: "VIP {name}",
		},
	}
	res := h.dispatcher.Dispatch(ctx, event("u2", "when can we start?"), cfg)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, ActionCreateGroup, res.Type)
	require.NotNil(t, res.Group)
	assert.Equal(t, "VIP Ana", res.Group.Name)
	assert.Equal(t, "script-7", res.Group.ScriptID)
	assert.Len(t, res.Group.RoleAccounts, 2)
	assert.GreaterOrEqual(t, res.Score, 30)
	assert.Equal(t, 30, res.Threshold)
	assert.True(t, res.IsConversion())
}

func TestDispatch_TemplateSendPersonalized(t *testing.T) {
	h := newHarness(t)
	cfg := TriggerActionConfig{
		IsActive: true,
		Mode:     ModeTemplateSend,
		Template: &TemplateConfig{
			Content:         "Hi {name}, {welcome|hello} there!",
			EnableSpintax:   true,
			Personalize:     true,
			MinDelaySeconds: 1,
			MaxDelaySeconds: 3,
		},
		SenderAccountIDs:        []string{"a", "b", "c"},
		AccountRotationStrategy: accounts.Random,
	}

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		res := h.dispatcher.Dispatch(context.Background(), event("u3", "hi"), cfg)
		require.True(t, res.Success)
		assert.Equal(t, ActionSend, res.Type)
		assert.True(t, strings.HasPrefix(res.Content, "Hi Ana, "), res.Content)
		assert.True(t, strings.HasSuffix(res.Content, " there!"), res.Content)
		middle := strings.TrimSuffix(strings.TrimPrefix(res.Content, "Hi Ana, "), " there!")
		assert.Contains(t, []string{"welcome", "hello"}, middle)
		assert.Contains(t, []string{"a", "b", "c"}, res.SenderAccountID)
		assert.GreaterOrEqual(t, res.Delay, time.Second)
		assert.LessOrEqual(t, res.Delay, 3*time.Second)
		seen[middle] = true
	}
	assert.Len(t, seen, 2)
	assert.Nil(t, h.store.GetContext("u3"), "template sends do not classify")
}

func TestDispatch_Handoff(t *testing.T) {
	t.Run("purchase with toggle", func(t *testing.T) {
		h := newHarness(t)
		res := h.dispatcher.Dispatch(context.Background(), event("u", "i want to buy this now"),
			aiConfig(AIReplyConfig{HandoffOnPurchase: true}))
		assert.Equal(t, ActionHandoff, res.Type)
		assert.NotEmpty(t, res.Content, "composed content kept for reference")
		assert.Empty(t, res.SenderAccountID)
		assert.True(t, res.IsConversion())
		assert.Len(t, h.store.GetContext("u").Messages, 1, "handoff content is not sent")
	})

	t.Run("purchase without toggle", func(t *testing.T) {
		h := newHarness(t)
		res := h.dispatcher.Dispatch(context.Background(), event("u", "i want to buy this now"),
			aiConfig(AIReplyConfig{HandoffOnNegative: true}))
		assert.Equal(t, ActionReply, res.Type)
	})

	t.Run("negative with toggle", func(t *testing.T) {
		h := newHarness(t)
		res := h.dispatcher.Dispatch(context.Background(), event("u", "this is a scam"),
			aiConfig(AIReplyConfig{HandoffOnNegative: true}))
		assert.Equal(t, ActionHandoff, res.Type)
		assert.Equal(t, intent.NegativeSentiment, res.Intent)
	})

	t.Run("negative without toggle", func(t *testing.T) {
		h := newHarness(t)
		res := h.dispatcher.Dispatch(context.Background(), event("u", "this is a scam"),
			aiConfig(AIReplyConfig{HandoffOnPurchase: true}))
		assert.Equal(t, ActionReply, res.Type)
	})
}

func TestDispatch_SimulatedTypingUsesSuggestedDelay(t *testing.T) {
	h := newHarness(t)
	res := h.dispatcher.Dispatch(context.Background(), event("u", "call me asap"),
		aiConfig(AIReplyConfig{SimulateTyping: true, MinDelaySeconds: 100, MaxDelaySeconds: 200}))

	require.Equal(t, ActionReply, res.Type)
	assert.GreaterOrEqual(t, res.Delay, 10*time.Second)
	assert.Less(t, res.Delay, 20*time.Second, "high urgency shortens the typing delay")
}

func TestDispatch_RuleAutoReplyAndActions(t *testing.T) {
	h := newHarness(t,
		rules.SmartRule{
			ID: "low", Name: "Generic price", TriggerIntent: intent.PriceInquiry, IsActive: true, Priority: 1,
			Actions: rules.Actions{AddTag: "pricing"},
		},
		rules.SmartRule{
			ID: "high", Name: "Price offer", TriggerIntent: intent.PriceInquiry, IsActive: true, Priority: 10,
			Actions: rules.Actions{AutoReply: "{Hi|Hey} {name}, plans start at $20.", AddTag: "offer", NotifyHuman: true, SendOffer: true, ChangeStage: "negotiating"},
		},
		rules.SmartRule{
			ID: "off", Name: "Disabled", TriggerIntent: intent.PriceInquiry, IsActive: false, Priority: 99,
		},
	)

	res := h.dispatcher.Dispatch(context.Background(), event("u", "how much does it cost?"), aiConfig(AIReplyConfig{}))

	require.Equal(t, ActionReply, res.Type)
	assert.Contains(t, []string{"Hi Ana, plans start at $20.", "Hey Ana, plans start at $20."}, res.Content)
	assert.Equal(t, "rule:high", res.ModelUsed)
	assert.Equal(t, []string{"Price offer", "Generic price"}, res.MatchedRules)
	assert.Equal(t, []string{"offer", "pricing"}, res.Tags)
	assert.True(t, res.NotifyHuman)
	assert.True(t, res.SendOffer)
	assert.Equal(t, "negotiating", res.StageChange)
}

func TestDispatch_MultiRoleWaiting(t *testing.T) {
	cfg := TriggerActionConfig{
		IsActive: true,
		Mode:     ModeMultiRole,
		MultiRole: &MultiRoleConfig{
			ScoreThreshold: 50,
			MinRounds:      1,
			RoleAccounts:   []RoleAssignment{{AccountID: "x", Role: "expert"}},
			ScriptID:       "s",
		},
		SenderAccountIDs: []string{"acc1"},
	}

	t.Run("score below threshold nurtures", func(t *testing.T) {
		h := newHarness(t)
		res := h.dispatcher.Dispatch(context.Background(), event("u", "how much does it cost?"), cfg)

		assert.Equal(t, ActionWaiting, res.Type)
		assert.True(t, res.Success)
		assert.NotEmpty(t, res.Content)
		assert.Equal(t, 16, res.Score)
		assert.Equal(t, 50, res.Threshold)
		assert.Equal(t, "acc1", res.SenderAccountID)
		assert.False(t, res.IsConversion())
		assert.Len(t, h.store.GetContext("u").Messages, 2, "nurture reply is recorded")
	})

	t.Run("rounds below minimum", func(t *testing.T) {
		h := newHarness(t)
		roundsCfg := cfg
		mr := *cfg.MultiRole
		mr.ScoreThreshold = 10
		mr.MinRounds = 4
		roundsCfg.MultiRole = &mr

		res := h.dispatcher.Dispatch(context.Background(), event("u", "i want to buy this now"), roundsCfg)

		assert.Equal(t, ActionWaiting, res.Type)
		assert.Empty(t, res.Content)
		assert.Equal(t, 1, res.Rounds)
		assert.Equal(t, 4, res.MinRounds)
		assert.Contains(t, res.Reason, "3 more")
	})
}

func TestDispatch_RecordOnly(t *testing.T) {
	h := newHarness(t)
	cfg := TriggerActionConfig{
		IsActive:   true,
		Mode:       ModeRecordOnly,
		RecordOnly: &RecordOnlyConfig{AutoTags: []string{"webinar"}, AutoStage: "interested"},
	}

	res := h.dispatcher.Dispatch(context.Background(), event("u", "price?"), cfg)

	require.Equal(t, ActionRecord, res.Type)
	require.NotNil(t, res.Lead)
	assert.Equal(t, Lead{
		UserID: "u", UserName: "Ana", SourceGroup: "g1", Keyword: "price",
		Tags: []string{"webinar"}, Stage: "interested",
	}, *res.Lead)
	assert.Empty(t, res.Content)
	assert.Nil(t, h.store.GetContext("u"))
}

func TestDispatch_NotifyHuman(t *testing.T) {
	h := newHarness(t)
	cfg := TriggerActionConfig{
		IsActive: true,
		Mode:     ModeNotifyHuman,
		NotifyHuman: &NotifyHumanConfig{
			Channels:     []string{"websocket"},
			Recipients:   []string{"ops"},
			AutoAssignee: "sam",
		},
	}

	res := h.dispatcher.Dispatch(context.Background(), event("u", "call me"), cfg)

	require.Equal(t, ActionNotify, res.Type)
	require.NotNil(t, res.Notification)
	assert.Equal(t, "medium", res.Notification.Urgency)
	assert.Equal(t, "sam", res.Notification.AutoAssignee)
	assert.Equal(t, "call me", res.Notification.Data["message"])
	assert.Equal(t, "g1", res.Notification.Data["groupId"])
	assert.True(t, res.NotifyHuman)
}

func TestDispatch_Failures(t *testing.T) {
	h := newHarness(t)

	t.Run("inactive", func(t *testing.T) {
		cfg := aiConfig(AIReplyConfig{})
		cfg.IsActive = false
		res := h.dispatcher.Dispatch(context.Background(), event("inactive", "buy"), cfg)
		assert.False(t, res.Success)
		assert.Equal(t, ActionFailed, res.Type)
		assert.Contains(t, res.Error, "not active")
		assert.Nil(t, h.store.GetContext("inactive"), "no action taken")
	})

	for _, mode := range []Mode{ModeAISmart, ModeTemplateSend, ModeMultiRole, ModeRecordOnly, ModeNotifyHuman} {
		t.Run("missing "+string(mode), func(t *testing.T) {
			res := h.dispatcher.Dispatch(context.Background(), event("u", "x"), TriggerActionConfig{IsActive: true, Mode: mode})
			assert.False(t, res.Success)
			assert.Equal(t, mode, res.Mode)
			assert.Contains(t, res.Error, string(mode))
		})
	}

	t.Run("unknown mode", func(t *testing.T) {
		res := h.dispatcher.Dispatch(context.Background(), event("u", "x"), TriggerActionConfig{IsActive: true, Mode: "carrier_pigeon"})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "carrier_pigeon")
	})
}

type panickyClassifier struct{}

func (panickyClassifier) Classify(context.Context, string, string, bool) *intent.Result {
	panic("classifier exploded")
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d := NewDispatcher(Deps{
		Classifier: panickyClassifier{},
		Store:      conversation.NewStore(),
		Composer:   reply.NewComposer(nil, nil, reply.DefaultConfig()),
	})

	var res *ActionResult
	require.NotPanics(t, func() {
		res = d.Dispatch(context.Background(), event("u", "x"), aiConfig(AIReplyConfig{}))
	})
	assert.False(t, res.Success)
	assert.Equal(t, ModeAISmart, res.Mode)
	assert.Contains(t, res.Error, "classifier exploded")
}

func TestDispatch_SenderFilteredByRole(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.deps.Directory = accounts.StaticDirectory{
		{AccountID: "mon", Roles: []accounts.Role{accounts.RoleMonitor}, PrimaryRole: accounts.RoleMonitor},
		{AccountID: "snd", Roles: []accounts.Role{accounts.RoleSender}, PrimaryRole: accounts.RoleSender},
	}
	cfg := TriggerActionConfig{
		IsActive:         true,
		Mode:             ModeTemplateSend,
		Template:         &TemplateConfig{Content: "hi"},
		SenderAccountIDs: []string{"mon", "snd"},
	}

	res := h.dispatcher.Dispatch(context.Background(), event("u", "x"), cfg)
	assert.Equal(t, "snd", res.SenderAccountID)

	cfg.SenderAccountIDs = nil
	res = h.dispatcher.Dispatch(context.Background(), event("u", "x"), cfg)
	assert.True(t, res.Success)
	assert.Empty(t, res.SenderAccountID)
}

func TestUniformDelay(t *testing.T) {
	d := NewDispatcher(Deps{})
	assert.Equal(t, 5*time.Second, d.uniformDelay(5, 5))
	assert.Equal(t, 5*time.Second, d.uniformDelay(5, 2))
	assert.Equal(t, time.Duration(0), d.uniformDelay(-3, 0))
	for i := 0; i < 100; i++ {
		got := d.uniformDelay(2, 4)
		assert.GreaterOrEqual(t, got, 2*time.Second)
		assert.LessOrEqual(t, got, 4*time.Second)
	}

	huge := d.uniformDelay(0, math.MaxInt)
	assert.GreaterOrEqual(t, huge, time.Duration(0))
	assert.LessOrEqual(t, huge, MaxDelaySeconds*time.Second)
	assert.Equal(t, MaxDelaySeconds*time.Second, d.uniformDelay(math.MaxInt, math.MaxInt))
}

package reply

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-trigger-engine/internal/ai"
	"chat-trigger-engine/internal/intent"
)

type stubChat struct {
	content string
	err     error
	delay   time.Duration
	got     []ai.Message
}

func (s *stubChat) Chat(ctx context.Context, messages []ai.Message, _ ai.Options) (*ai.Response, error) {
	s.got = messages
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &ai.Response{Content: s.content, TotalTokens: 57, Model: "gpt-test"}, nil
}

func newTestComposer(client ai.ChatClient, knowledge KnowledgeProvider) *Composer {
	cfg := DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	return NewComposer(client, knowledge, cfg).WithRand(rand.New(rand.NewSource(1)))
}

func TestCompose_Success(t *testing.T) {
	chat := &stubChat{content: "Reply: **Sure**, the basic plan is $20 a month."}
	c := newTestComposer(chat, nil)

	out := c.Compose(context.Background(), Request{
		Message: "how much?",
		Intent:  &intent.Result{Intent: intent.PriceInquiry, Urgency: intent.UrgencyMedium},
	})

	assert.Equal(t, "Sure, the basic plan is $20 a month.", out.Content)
	assert.Equal(t, 57, out.TokensUsed)
	assert.Equal(t, "gpt-test", out.ModelUsed)
	assert.False(t, out.FallbackUsed)
	assert.GreaterOrEqual(t, out.SuggestedDelay, 30*time.Second)
}

func TestCompose_SendsCappedHistory(t *testing.T) {
	chat := &stubChat{content: "ok"}
	c := newTestComposer(chat, nil)

	var history []ai.Message
	for i := 0; i < 10; i++ {
		history = append(history, ai.Message{Role: ai.RoleUser, Content: string(rune('a' + i))})
	}
	c.Compose(context.Background(), Request{Message: "now", History: history})

	require.Len(t, chat.got, 1+6+1)
	assert.Equal(t, ai.RoleSystem, chat.got[0].Role)
	assert.Equal(t, "e", chat.got[1].Content)
	assert.Equal(t, "now", chat.got[7].Content)
}

func TestCompose_FallbackOnError(t *testing.T) {
	c := newTestComposer(&stubChat{err: errors.New("503")}, nil)

	out := c.Compose(context.Background(), Request{
		Message: "refund please",
		Intent:  &intent.Result{Intent: intent.Complaint},
	})

	assert.True(t, out.FallbackUsed)
	assert.Equal(t, fallbackModel, out.ModelUsed)
	assert.Contains(t, fallbackReplies[intent.Complaint], out.Content)
}

func TestCompose_FallbackOnTimeout(t *testing.T) {
	c := newTestComposer(&stubChat{content: "late", delay: time.Second}, nil)

	start := time.Now()
	out := c.Compose(context.Background(), Request{Message: "hi"})

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, out.FallbackUsed)
	assert.Contains(t, generalFallbacks, out.Content)
}

func TestCompose_FallbackOnEmptyContent(t *testing.T) {
	c := newTestComposer(&stubChat{content: "  **  "}, nil)
	out := c.Compose(context.Background(), Request{Message: "hi"})
	assert.True(t, out.FallbackUsed)
}

func TestCompose_NilClient(t *testing.T) {
	c := newTestComposer(nil, nil)
	out := c.Compose(context.Background(), Request{Message: "hi", Intent: &intent.Result{Intent: intent.HighValue}})
	assert.True(t, out.FallbackUsed)
	assert.Contains(t, generalFallbacks, out.Content, "intents without canned lines use the general set")
}

func TestCompose_NilClientDoesNotWarn(t *testing.T) {
	hook := logtest.NewLocal(log.Logger)
	defer hook.Reset()

	c := newTestComposer(nil, nil)
	for i := 0; i < 3; i++ {
		c.Compose(context.Background(), Request{Message: "hi"})
	}

	for _, e := range hook.AllEntries() {
		assert.False(t, e.Level <= logrus.WarnLevel && e.Data["component"] == "reply",
			"unexpected log: %s", e.Message)
	}
}

func TestCompose_UsesKnowledge(t *testing.T) {
	chat := &stubChat{content: "ok"}
	kb := &StaticKnowledge{
		Persona: Settings{Style: StyleDirect, Length: LengthShort, Emoji: EmojiNone, PersonaName: "Mia"},
		Entries: []KnowledgeEntry{
			{Title: "Pricing", Content: "Basic is $20/month.", Keywords: []string{"price", "cost"}},
			{Title: "Shipping", Content: "Ships in 2 days.", Keywords: []string{"ship"}},
		},
	}
	c := newTestComposer(chat, kb)

	c.Compose(context.Background(), Request{Message: "what does it cost?"})

	system := chat.got[0].Content
	assert.Contains(t, system, "You are Mia")
	assert.Contains(t, system, "Pricing: Basic is $20/month.")
	assert.NotContains(t, system, "Ships in 2 days")
	assert.Contains(t, system, emojiDirectives[EmojiNone])
}

func TestPostProcess_NamePrefixProbability(t *testing.T) {
	c := NewComposer(nil, nil, DefaultConfig()).WithRand(rand.New(rand.NewSource(99)))

	prefixed := 0
	const runs = 2000
	for i := 0; i < runs; i++ {
		out := c.PostProcess("thanks for asking", "Ana")
		if strings.HasPrefix(out, "Ana, ") {
			prefixed++
		} else {
			assert.Equal(t, "thanks for asking", out)
		}
	}
	ratio := float64(prefixed) / runs
	assert.InDelta(t, 0.3, ratio, 0.05)
}

func TestPostProcess_NameAlreadyPresent(t *testing.T) {
	c := NewComposer(nil, nil, DefaultConfig())
	for i := 0; i < 50; i++ {
		assert.Equal(t, "Hi ana, sure.", c.PostProcess("Hi ana, sure.", "Ana"))
	}
	assert.Equal(t, "sure", c.PostProcess("sure", ""))
}

func TestClean(t *testing.T) {
	tests := map[string]string{
		"  hello  ":                     "hello",
		"Reply: hi there":               "hi there",
		"response : hi":                 "hi",
		"回复：你好":                         "你好",
		"## Title\nbody":                "Title\nbody",
		"use `code` and **bold** _it_":  "use code and bold it",
		"snake_case_name stays":         "snake_case_name stays",
		"A reply: not at the start":     "A reply: not at the start",
	}
	for in, want := range tests {
		assert.Equal(t, want, Clean(in), in)
	}
}

func TestSuggestDelay(t *testing.T) {
	c := NewComposer(nil, nil, DefaultConfig()).WithRand(rand.New(rand.NewSource(5)))
	content := strings.Repeat("x", 100)

	for i := 0; i < 200; i++ {
		d := c.SuggestDelay(content, intent.UrgencyMedium)
		assert.GreaterOrEqual(t, d, 40*time.Second)
		assert.Less(t, d, 70*time.Second)

		u := c.SuggestDelay(content, intent.UrgencyHigh)
		assert.GreaterOrEqual(t, u, 10*time.Second)
		assert.Less(t, u, 20*time.Second)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	t.Run("custom prompt wins", func(t *testing.T) {
		p := BuildSystemPrompt(Settings{CustomPrompt: "You are the Acme concierge.", PersonaName: "Mia"}, nil)
		assert.True(t, strings.HasPrefix(p, "You are the Acme concierge."))
		assert.NotContains(t, p, "Mia")
	})

	t.Run("defaults for unknown values", func(t *testing.T) {
		p := BuildSystemPrompt(Settings{Style: "weird", Length: "huge", Emoji: "lots"}, nil)
		assert.Contains(t, p, "You are Alex")
		assert.Contains(t, p, styleDirectives[StyleFriendly])
		assert.Contains(t, p, lengthDirectives[LengthMedium])
		assert.Contains(t, p, emojiDirectives[EmojiLow])
		assert.NotContains(t, p, "Business information")
	})

	t.Run("every style has a directive", func(t *testing.T) {
		for _, s := range []Style{StyleProfessional, StyleFriendly, StyleCasual, StyleEnthusiastic, StyleDirect} {
			assert.Contains(t, BuildSystemPrompt(Settings{Style: s}, nil), styleDirectives[s])
		}
	})

	t.Run("safety rules always present", func(t *testing.T) {
		assert.Contains(t, BuildSystemPrompt(DefaultSettings(), []string{"fact"}), safetyRules)
	})
}

func TestStaticKnowledge_SettingsDefaults(t *testing.T) {
	kb := &StaticKnowledge{Persona: Settings{Style: StyleCasual}}
	s := kb.Settings()
	assert.Equal(t, StyleCasual, s.Style)
	assert.Equal(t, DefaultSettings().Length, s.Length)
	assert.Equal(t, "Alex", s.PersonaName)

	var none *StaticKnowledge
	assert.Equal(t, DefaultSettings(), none.Settings())
}

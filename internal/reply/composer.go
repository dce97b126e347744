package reply

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"chat-trigger-engine/internal/ai"
	"chat-trigger-engine/internal/intent"
	"chat-trigger-engine/internal/logger"
)

var log = logger.Get("reply")

const (
	maxHistory       = 6
	maxSnippets      = 3
	fallbackModel    = "fallback"
	defaultTimeout   = 10 * time.Second
	defaultMaxTokens = 300
)

var fallbackReplies = map[intent.Intent][]string{
	intent.PurchaseIntent: {
		"Great choice! Let me get the details ready for you.",
		"Happy to help you with that order. Let me check the next steps for you.",
	},
	intent.PriceInquiry: {
		"Good question about the price. Let me check the latest offer for you.",
		"Let me confirm the current pricing and get right back to you.",
	},
	intent.ProductQuestion: {
		"Let me check that for you and come back with the details.",
		"Good question! Give me a moment to confirm.",
	},
	intent.Complaint: {
		"I'm really sorry about that. Let me look into it right away.",
		"Sorry for the trouble. I'll check what happened and get back to you.",
	},
	intent.NegativeSentiment: {
		"I understand, and I'm sorry for the frustration. How can I make this right?",
		"Thanks for telling me. Let me see how I can help.",
	},
	intent.Urgent: {
		"On it now, give me just a moment.",
		"Understood, I'm checking this right away.",
	},
}

var generalFallbacks = []string{
	"Thanks for your message! Let me check and get back to you shortly.",
	"Got it, thanks! I'll follow up in a moment.",
	"Thanks for reaching out. How can I help you today?",
}

type Config struct {
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

func DefaultConfig() Config {
	return Config{
		Timeout:     defaultTimeout,
		Temperature: 0.7,
		MaxTokens:   defaultMaxTokens,
	}
}

// Request is everything needed to compose one reply.
type Request struct {
	Message  string
	UserName string
	Intent   *intent.Result
	// Settings override the knowledge provider's persona when set.
	Settings *Settings
	// History holds earlier turns, oldest first. Only the last six are sent.
	History []ai.Message
}

type Reply struct {
	Content        string        `json:"content"`
	TokensUsed     int           `json:"tokensUsed"`
	ModelUsed      string        `json:"modelUsed"`
	SuggestedDelay time.Duration `json:"suggestedDelay"`
	FallbackUsed   bool          `json:"fallbackUsed"`
}

// Composer writes replies through the AI backend.
//
// A failed or slow backend call is never surfaced: Compose falls back to a
// canned line for the message intent.
type Composer struct {
	client    ai.ChatClient
	knowledge KnowledgeProvider
	config    Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewComposer builds a composer. client and knowledge may be nil.
func NewComposer(client ai.ChatClient, knowledge KnowledgeProvider, config Config) *Composer {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultMaxTokens
	}
	return &Composer{
		client:    client,
		knowledge: knowledge,
		config:    config,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand replaces the random source; used by tests for determinism.
func (c *Composer) WithRand(r *rand.Rand) *Composer {
	c.mu.Lock()
	c.rng = r
	c.mu.Unlock()
	return c
}

func (c *Composer) float64() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64()
}

func (c *Composer) intn(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Intn(n)
}

func (c *Composer) settings(req Request) Settings {
	if req.Settings != nil {
		return *req.Settings
	}
	if c.knowledge != nil {
		return c.knowledge.Settings()
	}
	return DefaultSettings()
}

func (c *Composer) Compose(ctx context.Context, req Request) *Reply {
	ctx, span := otel.Tracer("reply").Start(ctx, "reply.Composer.Compose")
	defer span.End()

	urgency := intent.UrgencyMedium
	in := intent.GeneralChat
	if req.Intent != nil {
		urgency = req.Intent.Urgency
		in = req.Intent.Intent
	}

	var snippets []string
	if c.knowledge != nil {
		snippets = c.knowledge.Snippets(req.Message, maxSnippets)
	}
	msgs := buildMessages(BuildSystemPrompt(c.settings(req), snippets), req.History, req.Message)

	out := &Reply{}
	var (
		resp *ai.Response
		err  error
	)
	if c.client != nil {
		resp, err = ai.ChatWithTimeout(ctx, c.client, msgs, ai.Options{
			Temperature: c.config.Temperature,
			MaxTokens:   c.config.MaxTokens,
		}, c.config.Timeout)
	}

	if err == nil && resp != nil && Clean(resp.Content) != "" {
		out.Content = resp.Content
		out.TokensUsed = resp.TotalTokens
		out.ModelUsed = resp.Model
	} else {
		if err != nil {
			log.WithFields(logrus.Fields{"intent": in}).WithError(err).Warn("reply generation failed, using fallback")
		}
		out.Content = c.fallback(in)
		out.ModelUsed = fallbackModel
		out.FallbackUsed = true
	}

	out.Content = c.PostProcess(out.Content, req.UserName)
	out.SuggestedDelay = c.SuggestDelay(out.Content, urgency)

	span.SetAttributes(
		attribute.Bool("fallback_used", out.FallbackUsed),
		attribute.Int("tokens_used", out.TokensUsed),
	)
	return out
}

func buildMessages(system string, history []ai.Message, message string) []ai.Message {
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: message})
	return msgs
}

// fallback returns a canned line for the intent, or a general one.
func (c *Composer) fallback(in intent.Intent) string {
	lines, ok := fallbackReplies[in]
	if !ok {
		lines = generalFallbacks
	}
	return lines[c.intn(len(lines))]
}

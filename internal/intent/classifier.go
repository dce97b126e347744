package intent

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"chat-trigger-engine/internal/ai"
	"chat-trigger-engine/internal/logger"
)

var log = logger.Get("intent")

const classificationPrompt = `You are an intent classifier for a sales chat assistant.

Classify the customer's latest message. Allowed intents:
purchase_intent, price_inquiry, product_question, complaint, general_chat,
negative_sentiment, high_value, urgent.

Respond with ONLY one JSON object, no markdown, no commentary:
{"intent":"...","confidence":0.0,"subIntents":[],"keywords":[],"sentiment":"positive|neutral|negative","urgency":"low|medium|high","suggestedAction":"..."}`

// Recorder is the conversation state the classifier reads grounding from
// and reports results to.
type Recorder interface {
	RecentTurns(userID string, n int) []ai.Message
	RecordClassified(userID, message string, result *Result)
}

type Config struct {
	// Timeout bounds one call to the AI backend; on expiry the heuristic is used.
	Timeout      time.Duration
	CacheTTL     time.Duration
	CacheMaxSize int
	// ContextTurns is how many recent messages are sent as grounding.
	ContextTurns int
	Temperature  float32
	MaxTokens    int
}

func DefaultConfig() Config {
	return Config{
		Timeout:      5 * time.Second,
		CacheTTL:     60 * time.Second,
		CacheMaxSize: 1000,
		ContextTurns: 5,
		Temperature:  0.1,
		MaxTokens:    256,
	}
}

// Classifier turns raw messages into intent results.
//
// Description:
//
//	Looks up the short-lived cache first, then asks the AI backend for a
//	structured classification. Any backend failure, timeout or unparsable
//	answer falls back to Heuristic, so Classify always yields a result.
//	Concurrent misses for the same key share one backend call.
//
// Thread Safety: safe for concurrent use.
type Classifier struct {
	client   ai.ChatClient
	recorder Recorder
	cache    *Cache
	config   Config
	inflight singleflight.Group
}

// NewClassifier builds a classifier. client may be nil, in which case every
// miss goes straight to the heuristic. recorder may be nil.
func NewClassifier(client ai.ChatClient, recorder Recorder, config Config) *Classifier {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultConfig().CacheTTL
	}
	if config.ContextTurns < 0 {
		config.ContextTurns = 0
	}
	return &Classifier{
		client:   client,
		recorder: recorder,
		cache:    NewCache(config.CacheTTL, config.CacheMaxSize),
		config:   config,
	}
}

// Cache exposes the result cache, mainly for tests and diagnostics.
func (c *Classifier) Cache() *Cache {
	return c.cache
}

// Classify returns the intent of message. A cache hit returns the cached
// result with no other effect. On a miss the result is cached and, when
// userID is set, recorded as a user message in the conversation.
func (c *Classifier) Classify(ctx context.Context, message, userID string, useContext bool) *Result {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer("intent").Start(ctx, "intent.Classifier.Classify",
		trace.WithAttributes(
			attribute.Int("message_length", len(message)),
			attribute.Bool("use_context", useContext),
		),
	)
	defer span.End()

	key := CacheKey(userID, message)
	if cached, ok := c.cache.Get(key); ok {
		span.SetAttributes(attribute.Bool("cached", true))
		return cached
	}

	v, _, _ := c.inflight.Do(key, func() (interface{}, error) {
		// A concurrent caller may have filled the cache while we queued.
		if cached, ok := c.cache.Get(key); ok {
			return cached, nil
		}

		res := c.classify(ctx, message, userID, useContext)
		c.cache.Set(key, res)
		recordClassification(res)

		if userID != "" && c.recorder != nil {
			c.recorder.RecordClassified(userID, message, res)
		}
		return res, nil
	})

	res := v.(*Result)
	span.SetAttributes(
		attribute.String("intent", string(res.Intent)),
		attribute.Float64("confidence", res.Confidence),
		attribute.Bool("fallback_used", res.FallbackUsed),
	)
	return res
}

func (c *Classifier) classify(ctx context.Context, message, userID string, useContext bool) *Result {
	if c.client == nil {
		return Heuristic(message)
	}

	msgs := make([]ai.Message, 0, c.config.ContextTurns+2)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: classificationPrompt})
	if useContext && userID != "" && c.recorder != nil && c.config.ContextTurns > 0 {
		msgs = append(msgs, c.recorder.RecentTurns(userID, c.config.ContextTurns)...)
	}
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: message})

	res, err := c.callBackend(ctx, msgs)
	if err != nil {
		log.WithField("user_id", userID).WithError(err).Warn("classification failed, using keyword heuristic")
		return Heuristic(message)
	}
	return res
}

func (c *Classifier) callBackend(ctx context.Context, msgs []ai.Message) (*Result, error) {
	resp, err := ai.ChatWithTimeout(ctx, c.client, msgs, ai.Options{
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}, c.config.Timeout)
	if err != nil {
		return nil, err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, errors.New("empty classification response")
	}
	return ParseResponse(resp.Content)
}

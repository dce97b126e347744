package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chat-trigger-engine/internal/ai"
	"chat-trigger-engine/internal/intent"
	"chat-trigger-engine/internal/logger"
)

var log = logger.Get("conversation")

type entry struct {
	mu  sync.Mutex
	ctx *Context
	// dead is set when Clear drops the entry; holders must look it up again.
	dead bool
}

// Store keeps one Context per user id.
//
// Updates for one user are applied one at a time in call order; different
// users never block each other beyond the map lookup.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (s *Store) lookup(userID string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[userID]
}

func (s *Store) lookupOrCreate(userID string) *entry {
	if e := s.lookup(userID); e != nil {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		return e
	}
	e := &entry{}
	s.entries[userID] = e
	return e
}

// lockLive returns the user's entry with its lock held, skipping entries
// that a concurrent Clear removed after the lookup.
func (s *Store) lockLive(userID string) *entry {
	for {
		e := s.lookupOrCreate(userID)
		e.mu.Lock()
		if !e.dead {
			return e
		}
		e.mu.Unlock()
	}
}

func (s *Store) newContext(userID string) *Context {
	now := s.now()
	return &Context{
		ID:           uuid.NewString(),
		UserID:       userID,
		CurrentStage: StageInitial,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// GetContext returns a copy of the user's context, or nil if none exists.
func (s *Store) GetContext(userID string) *Context {
	e := s.lookup(userID)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil {
		return nil
	}
	return e.ctx.clone()
}

// CreateContext returns the user's context, creating an empty one if needed.
func (s *Store) CreateContext(userID string) *Context {
	e := s.lockLive(userID)
	defer e.mu.Unlock()
	if e.ctx == nil {
		e.ctx = s.newContext(userID)
		log.WithField("user_id", userID).Debug("conversation created")
	}
	return e.ctx.clone()
}

// Update appends a message and, for user messages with an intent, folds the
// intent into history, score and stage. It returns a copy of the new state.
func (s *Store) Update(userID, content string, role Role, res *intent.Result) *Context {
	e := s.lockLive(userID)
	defer e.mu.Unlock()

	if e.ctx == nil {
		e.ctx = s.newContext(userID)
	}
	c := e.ctx
	now := s.now()

	c.Messages = append(c.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
		Intent:    res,
	})

	if role == RoleUser && res != nil {
		c.IntentHistory = append(c.IntentHistory, res.Intent)
		c.TotalScore += Contribution(res)
	}

	prev := c.CurrentStage
	c.CurrentStage = deriveStage(c)
	c.UpdatedAt = now

	if prev != c.CurrentStage {
		log.WithFields(logrus.Fields{
			"user_id": userID,
			"from":    prev,
			"to":      c.CurrentStage,
			"score":   c.TotalScore,
		}).Info("conversation stage changed")
	}
	return c.clone()
}

func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return
	}
	// Waits for an in-flight update so it is cleared rather than orphaned.
	e.mu.Lock()
	e.dead = true
	e.mu.Unlock()
	delete(s.entries, userID)
}

// IntentScore is the user's cumulative score, 0 for unknown users.
func (s *Store) IntentScore(userID string) int {
	c := s.GetContext(userID)
	if c == nil {
		return 0
	}
	return c.TotalScore
}

func (s *Store) ShouldHandoff(userID string) bool {
	c := s.GetContext(userID)
	if c == nil {
		return false
	}
	return shouldHandoff(c)
}

func (s *Store) Rounds(userID string) int {
	c := s.GetContext(userID)
	if c == nil {
		return 0
	}
	return c.Rounds()
}

// Recent returns up to n of the user's latest messages, oldest first.
func (s *Store) Recent(userID string, n int) []Message {
	c := s.GetContext(userID)
	if c == nil || n <= 0 {
		return nil
	}
	if len(c.Messages) > n {
		return c.Messages[len(c.Messages)-n:]
	}
	return c.Messages
}

// RecentTurns is Recent in the shape the AI backend takes.
func (s *Store) RecentTurns(userID string, n int) []ai.Message {
	msgs := s.Recent(userID, n)
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// RecordClassified lets the intent classifier report user messages.
func (s *Store) RecordClassified(userID, message string, res *intent.Result) {
	s.Update(userID, message, RoleUser, res)
}

// Users lists the user ids with a tracked conversation.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	return out
}

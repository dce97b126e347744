package conversation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-trigger-engine/internal/intent"
)

func res(in intent.Intent, confidence float64) *intent.Result {
	return &intent.Result{Intent: in, Confidence: confidence}
}

func TestContribution(t *testing.T) {
	tests := []struct {
		in         intent.Intent
		confidence float64
		want       int
	}{
		{intent.PurchaseIntent, 1, 30},
		{intent.PurchaseIntent, 0.85, 26},
		{intent.PriceInquiry, 0.8, 16},
		{intent.HighValue, 1, 25},
		{intent.Urgent, 0.7, 11},
		{intent.ProductQuestion, 0.7, 7},
		{intent.GeneralChat, 0.5, 3},
		{intent.Complaint, 0.75, -8},
		{intent.NegativeSentiment, 0.8, -16},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s@%.2f", tt.in, tt.confidence), func(t *testing.T) {
			assert.Equal(t, tt.want, Contribution(res(tt.in, tt.confidence)))
		})
	}
	assert.Equal(t, 0, Contribution(nil))
}

func TestStore_UpdateIsAppendOnly(t *testing.T) {
	s := NewStore()
	for i := 0; i < 10; i++ {
		before := 0
		if c := s.GetContext("u1"); c != nil {
			before = len(c.Messages)
		}
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		after := s.Update("u1", fmt.Sprintf("m%d", i), role, res(intent.GeneralChat, 0.5))
		assert.Equal(t, before+1, len(after.Messages))
		assert.Equal(t, fmt.Sprintf("m%d", i), after.Messages[len(after.Messages)-1].Content)
	}
}

func TestStore_AssistantMessagesDoNotScore(t *testing.T) {
	s := NewStore()
	c := s.Update("u1", "buy now!", RoleAssistant, res(intent.PurchaseIntent, 1))
	assert.Equal(t, 0, c.TotalScore)
	assert.Empty(t, c.IntentHistory)
	assert.Equal(t, StageInitial, c.CurrentStage)
}

func TestStore_StageDerivation(t *testing.T) {
	t.Run("exploring after three messages", func(t *testing.T) {
		s := NewStore()
		s.Update("u", "hi", RoleUser, res(intent.GeneralChat, 0.5))
		s.Update("u", "hello", RoleAssistant, nil)
		c := s.Update("u", "ok", RoleUser, res(intent.GeneralChat, 0.5))
		assert.Equal(t, StageExploring, c.CurrentStage)
	})

	t.Run("interested by score", func(t *testing.T) {
		s := NewStore()
		s.Update("u", "q1", RoleUser, res(intent.ProductQuestion, 1))
		s.Update("u", "q2", RoleUser, res(intent.ProductQuestion, 1))
		c := s.Update("u", "hurry", RoleUser, res(intent.Urgent, 1))
		assert.Equal(t, 35, c.TotalScore)
		assert.Equal(t, StageInterested, c.CurrentStage)
	})

	t.Run("interested by high value", func(t *testing.T) {
		s := NewStore()
		c := s.Update("u", "500 seats", RoleUser, res(intent.HighValue, 0.4))
		assert.Equal(t, StageInterested, c.CurrentStage)
	})

	t.Run("negotiating beats interested", func(t *testing.T) {
		s := NewStore()
		s.Update("u", "500 seats", RoleUser, res(intent.HighValue, 1))
		c := s.Update("u", "price?", RoleUser, res(intent.PriceInquiry, 0.8))
		assert.Equal(t, StageNegotiating, c.CurrentStage)
	})

	t.Run("closing wins and never regresses", func(t *testing.T) {
		s := NewStore()
		c := s.Update("u", "buy", RoleUser, res(intent.PurchaseIntent, 0.9))
		require.Equal(t, StageClosing, c.CurrentStage)
		for _, in := range []intent.Intent{intent.NegativeSentiment, intent.Complaint, intent.NegativeSentiment, intent.GeneralChat} {
			c = s.Update("u", "x", RoleUser, res(in, 1))
			assert.Equal(t, StageClosing, c.CurrentStage)
		}
		assert.Less(t, c.TotalScore, 0)
	})
}

func TestStore_ShouldHandoff(t *testing.T) {
	s := NewStore()
	assert.False(t, s.ShouldHandoff("nobody"))

	s.Update("a", "hi", RoleUser, res(intent.GeneralChat, 0.5))
	assert.False(t, s.ShouldHandoff("a"))

	s.Update("b", "refund", RoleUser, res(intent.Complaint, 0.75))
	assert.True(t, s.ShouldHandoff("b"))

	s.Update("c", "buy", RoleUser, res(intent.PurchaseIntent, 0.1))
	assert.True(t, s.ShouldHandoff("c"))

	for i := 0; i < 4; i++ {
		s.Update("d", "big", RoleUser, res(intent.HighValue, 0.6))
	}
	assert.Equal(t, 60, s.IntentScore("d"))
	assert.True(t, s.ShouldHandoff("d"))
}

func TestStore_ContextsAreCopies(t *testing.T) {
	s := NewStore()
	s.Update("u", "hi", RoleUser, res(intent.GeneralChat, 0.5))

	c := s.GetContext("u")
	c.Messages[0].Content = "tampered"
	c.Messages = append(c.Messages, Message{Content: "extra"})
	c.TotalScore = 999

	fresh := s.GetContext("u")
	assert.Equal(t, "hi", fresh.Messages[0].Content)
	assert.Len(t, fresh.Messages, 1)
	assert.Equal(t, 3, fresh.TotalScore)
}

func TestStore_CreateGetClear(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.GetContext("u"))

	created := s.CreateContext("u")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, StageInitial, created.CurrentStage)

	again := s.CreateContext("u")
	assert.Equal(t, created.ID, again.ID)

	s.Clear("u")
	assert.Nil(t, s.GetContext("u"))
	assert.Equal(t, 0, s.IntentScore("u"))
	assert.Equal(t, 0, s.Rounds("u"))
}

func TestStore_UpdateAfterClearUsesFreshEntry(t *testing.T) {
	s := NewStore()
	s.Update("u", "hello", RoleUser, res(intent.GeneralChat, 0.5))

	// An updater that looked the entry up just before Clear ran.
	stale := s.lookup("u")
	require.NotNil(t, stale)

	s.Clear("u")
	assert.True(t, stale.dead)

	s.Update("u", "again", RoleUser, res(intent.PriceInquiry, 0.8))

	got := s.GetContext("u")
	require.NotNil(t, got)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "again", got.Messages[0].Content)
	assert.NotSame(t, stale, s.lookup("u"))
}

func TestStore_ConcurrentClearAndUpdate(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Update("u", fmt.Sprintf("m%d", i), RoleUser, res(intent.GeneralChat, 0.5))
		}(i)
		go func() {
			defer wg.Done()
			s.Clear("u")
		}()
	}
	wg.Wait()

	// Whatever survived, the next update must be visible.
	s.Update("u", "last", RoleUser, res(intent.GeneralChat, 0.5))
	got := s.GetContext("u")
	require.NotNil(t, got)
	assert.Equal(t, "last", got.Messages[len(got.Messages)-1].Content)
}

func TestStore_RecentAndRounds(t *testing.T) {
	s := NewStore()
	for i := 0; i < 4; i++ {
		s.Update("u", fmt.Sprintf("q%d", i), RoleUser, res(intent.GeneralChat, 0.5))
		s.Update("u", fmt.Sprintf("a%d", i), RoleAssistant, nil)
	}

	assert.Equal(t, 4, s.Rounds("u"))

	recent := s.Recent("u", 3)
	require.Len(t, recent, 3)
	assert.Equal(t, "a2", recent[0].Content)
	assert.Equal(t, "a3", recent[2].Content)

	turns := s.RecentTurns("u", 2)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "q3", turns[0].Content)

	assert.Nil(t, s.Recent("u", 0))
}

func TestStore_ConcurrentUsers(t *testing.T) {
	s := NewStore()
	const users, perUser = 20, 50

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", u)
			for i := 0; i < perUser; i++ {
				s.Update(id, fmt.Sprintf("%d", i), RoleUser, res(intent.GeneralChat, 1))
			}
		}(u)
	}
	wg.Wait()

	assert.Len(t, s.Users(), users)
	for u := 0; u < users; u++ {
		c := s.GetContext(fmt.Sprintf("user-%d", u))
		require.NotNil(t, c)
		require.Len(t, c.Messages, perUser)
		assert.Equal(t, perUser*5, c.TotalScore)
		for i, m := range c.Messages {
			assert.Equal(t, fmt.Sprintf("%d", i), m.Content, "messages stay in call order")
		}
	}
}

func TestStore_ConcurrentUpdatesSameUser(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update("shared", "x", RoleUser, res(intent.ProductQuestion, 1))
		}()
	}
	wg.Wait()

	c := s.GetContext("shared")
	assert.Len(t, c.Messages, 100)
	assert.Len(t, c.IntentHistory, 100)
	assert.Equal(t, 1000, c.TotalScore)
}

func TestParseStage(t *testing.T) {
	assert.Equal(t, StageClosing, ParseStage("closing"))
	assert.Equal(t, StageInitial, ParseStage("whatever"))
}

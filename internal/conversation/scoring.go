package conversation

import (
	"math"

	"chat-trigger-engine/internal/intent"
)

var intentWeights = map[intent.Intent]int{
	intent.PurchaseIntent:    30,
	intent.PriceInquiry:      20,
	intent.HighValue:         25,
	intent.Urgent:            15,
	intent.ProductQuestion:   10,
	intent.GeneralChat:       5,
	intent.Complaint:         -10,
	intent.NegativeSentiment: -20,
}

const (
	interestedScore = 30
	handoffScore    = 50
)

// Contribution is the signed score one classified message adds.
func Contribution(res *intent.Result) int {
	if res == nil {
		return 0
	}
	return int(math.Round(float64(intentWeights[res.Intent]) * res.Confidence))
}

// deriveStage is evaluated top-down; the first matching rule wins.
func deriveStage(c *Context) Stage {
	switch {
	case c.hasIntent(intent.PurchaseIntent):
		return StageClosing
	case c.hasIntent(intent.PriceInquiry):
		return StageNegotiating
	case c.TotalScore >= interestedScore || c.hasIntent(intent.HighValue):
		return StageInterested
	case len(c.Messages) > 2:
		return StageExploring
	default:
		return StageInitial
	}
}

func shouldHandoff(c *Context) bool {
	return c.CurrentStage == StageClosing ||
		c.hasIntent(intent.NegativeSentiment, intent.Complaint) ||
		c.TotalScore >= handoffScore
}

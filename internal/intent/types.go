package intent

// Intent is the primary purpose detected in an inbound message.
type Intent string

const (
	PurchaseIntent    Intent = "purchase_intent"
	PriceInquiry      Intent = "price_inquiry"
	ProductQuestion   Intent = "product_question"
	Complaint         Intent = "complaint"
	GeneralChat       Intent = "general_chat"
	NegativeSentiment Intent = "negative_sentiment"
	HighValue         Intent = "high_value"
	Urgent            Intent = "urgent"
)

type Sentiment string

const (
	Positive Sentiment = "positive"
	Neutral  Sentiment = "neutral"
	Negative Sentiment = "negative"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Result is produced once per classification and never mutated afterwards;
// cache hits hand out the same pointer.
type Result struct {
	Intent          Intent    `json:"intent"`
	Confidence      float64   `json:"confidence"`
	SubIntents      []string  `json:"subIntents"`
	Keywords        []string  `json:"keywords"`
	Sentiment       Sentiment `json:"sentiment"`
	Urgency         Urgency   `json:"urgency"`
	SuggestedAction string    `json:"suggestedAction"`
	FallbackUsed    bool      `json:"fallbackUsed"`
}

// ParseIntent maps free text to a known intent, unknown values become GeneralChat.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case PurchaseIntent, PriceInquiry, ProductQuestion, Complaint,
		GeneralChat, NegativeSentiment, HighValue, Urgent:
		return Intent(s)
	default:
		return GeneralChat
	}
}

func ParseSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case Positive, Neutral, Negative:
		return Sentiment(s)
	default:
		return Neutral
	}
}

func ParseUrgency(s string) Urgency {
	switch Urgency(s) {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return Urgency(s)
	default:
		return UrgencyMedium
	}
}

// HasKeyword reports whether kw is among the result keywords.
func (r *Result) HasKeyword(kw string) bool {
	for _, k := range r.Keywords {
		if k == kw {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

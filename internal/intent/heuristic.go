package intent

import (
	"strings"
	"unicode/utf8"
)

// Keyword sets used when the AI backend cannot classify a message.
var (
	purchaseKeywords = []string{
		"buy", "purchase", "order", "i want", "i'll take", "sign up", "checkout",
		"how to pay", "add to cart", "购买", "买", "下单", "怎么买", "我要",
	}
	priceKeywords = []string{
		"how much", "price", "prices", "pricing", "cost", "costs", "quote",
		"discount", "fee", "多少钱", "价格", "报价", "优惠", "费用",
	}
	questionKeywords = []string{
		"what", "how", "which", "does it", "can it", "is it", "do you",
		"?", "？", "什么", "怎么", "吗", "如何",
	}
	complaintKeywords = []string{
		"refund", "complaint", "broken", "not working", "doesn't work",
		"投诉", "退款", "坏了",
	}
	negativeKeywords = []string{
		"scam", "fraud", "spam", "terrible", "awful", "hate", "angry",
		"disappointed", "worst", "useless", "stop messaging", "骗子", "垃圾",
	}
	positiveKeywords = []string{
		"great", "awesome", "love", "thanks", "thank you", "perfect", "good",
		"nice", "好", "谢谢", "棒", "不错",
	}
	urgencyKeywords = []string{
		"urgent", "asap", "now", "immediately", "today", "right away",
		"急", "马上", "立刻", "尽快",
	}
)

var suggestedActions = map[Intent]string{
	PurchaseIntent:    "confirm order details and guide the customer to payment",
	PriceInquiry:      "share pricing and highlight the current offer",
	ProductQuestion:   "answer the product question with concrete details",
	Complaint:         "apologise and escalate to a human agent",
	NegativeSentiment: "de-escalate and offer human assistance",
	Urgent:            "respond quickly and confirm the next step",
	HighValue:         "prioritise and involve a senior sales agent",
	GeneralChat:       "keep the conversation going and qualify interest",
}

// Heuristic classifies msg with fixed keyword lists. It is pure and total:
// any input, including the empty string, yields a valid result.
func Heuristic(msg string) *Result {
	text := strings.ToLower(msg)

	purchase := matchKeywords(text, purchaseKeywords)
	price := matchKeywords(text, priceKeywords)
	question := matchKeywords(text, questionKeywords)
	complaint := matchKeywords(text, complaintKeywords)
	negative := matchKeywords(text, negativeKeywords)
	positive := matchKeywords(text, positiveKeywords)
	urgency := matchKeywords(text, urgencyKeywords)

	res := &Result{
		Intent:       GeneralChat,
		Confidence:   0.5,
		Sentiment:    Neutral,
		Urgency:      UrgencyMedium,
		FallbackUsed: true,
	}

	// Only negative sentiment outranks a purchase keyword; a complaint word
	// next to one ("buy ... refund?") is still a buyer.
	switch {
	case len(complaint) > 0 && len(purchase) == 0:
		res.Intent = Complaint
		res.Confidence = 0.75
		res.Sentiment = Negative
	case len(negative) > 0:
		res.Intent = NegativeSentiment
		res.Confidence = 0.8
		res.Sentiment = Negative
	case len(purchase) > 0:
		res.Intent = PurchaseIntent
		res.Confidence = 0.85
		res.Sentiment = Positive
	case len(price) > 0:
		res.Intent = PriceInquiry
		res.Confidence = 0.8
	case len(question) > 0:
		res.Intent = ProductQuestion
		res.Confidence = 0.7
	case len(urgency) > 0:
		res.Intent = Urgent
		res.Confidence = 0.7
	}

	if len(urgency) > 0 {
		res.Urgency = UrgencyHigh
	}
	if res.Sentiment == Neutral && len(positive) > 0 {
		res.Sentiment = Positive
	}

	if res.Intent != Complaint && len(complaint) > 0 {
		res.SubIntents = append(res.SubIntents, string(Complaint))
	}
	if res.Intent != PurchaseIntent && len(purchase) > 0 {
		res.SubIntents = append(res.SubIntents, string(PurchaseIntent))
	}
	if res.Intent != PriceInquiry && len(price) > 0 {
		res.SubIntents = append(res.SubIntents, string(PriceInquiry))
	}
	if res.Intent != ProductQuestion && len(question) > 0 {
		res.SubIntents = append(res.SubIntents, string(ProductQuestion))
	}

	res.Keywords = uniqueKeywords(purchase, price, question, complaint, negative, positive, urgency)
	res.SuggestedAction = suggestedActions[res.Intent]
	return res
}

func matchKeywords(text string, keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if containsKeyword(text, kw) {
			out = append(out, kw)
		}
	}
	return out
}

// containsKeyword matches kw in text, requiring word boundaries on any
// edge of kw that is a letter or digit. "now" matches "buy now" but not "know".
func containsKeyword(text, kw string) bool {
	if kw == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(kw)
	last, _ := utf8.DecodeLastRuneInString(kw)
	needStart := isASCIIWordRune(first)
	needEnd := isASCIIWordRune(last)

	from := 0
	for from <= len(text) {
		idx := strings.Index(text[from:], kw)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(kw)

		ok := true
		if needStart && start > 0 {
			prev, _ := utf8.DecodeLastRuneInString(text[:start])
			if isASCIIWordRune(prev) {
				ok = false
			}
		}
		if ok && needEnd && end < len(text) {
			next, _ := utf8.DecodeRuneInString(text[end:])
			if isASCIIWordRune(next) {
				ok = false
			}
		}
		if ok {
			return true
		}
		from = start + 1
	}
	return false
}

func isASCIIWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func uniqueKeywords(groups ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, g := range groups {
		for _, kw := range g {
			if _, ok := seen[kw]; ok {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

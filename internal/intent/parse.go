package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoJSON = errors.New("no JSON object in response")

type rawResult struct {
	Intent          string   `json:"intent"`
	Confidence      *float64 `json:"confidence"`
	SubIntents      []string `json:"subIntents"`
	Keywords        []string `json:"keywords"`
	Sentiment       string   `json:"sentiment"`
	Urgency         string   `json:"urgency"`
	SuggestedAction string   `json:"suggestedAction"`
}

// ParseResponse extracts a Result from model output. The output may wrap the
// JSON object in prose or code fences; the span from the first '{' to the
// last '}' is decoded. Confidence is clamped to [0,1] and unknown enum values
// fall back to their defaults.
func ParseResponse(raw string) (*Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, errNoJSON
	}

	var rr rawResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &rr); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}

	confidence := 0.5
	if rr.Confidence != nil {
		confidence = clamp01(*rr.Confidence)
	}

	res := &Result{
		Intent:          ParseIntent(strings.TrimSpace(rr.Intent)),
		Confidence:      confidence,
		SubIntents:      rr.SubIntents,
		Keywords:        uniqueKeywords(rr.Keywords),
		Sentiment:       ParseSentiment(strings.TrimSpace(rr.Sentiment)),
		Urgency:         ParseUrgency(strings.TrimSpace(rr.Urgency)),
		SuggestedAction: rr.SuggestedAction,
	}
	if res.SuggestedAction == "" {
		res.SuggestedAction = suggestedActions[res.Intent]
	}
	return res, nil
}

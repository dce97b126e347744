package reply

import (
	"regexp"
	"strings"
	"time"

	"chat-trigger-engine/internal/intent"
)

var (
	replyPrefix   = regexp.MustCompile(`^(?i)(reply|response|answer|assistant|回复|回答)\s*[:：]\s*`)
	headingMarker = regexp.MustCompile(`(?m)^\s*#{1,6}\s*`)
	emphasis      = strings.NewReplacer("**", "", "__", "", "*", "", "`", "")
	underscores   = regexp.MustCompile(`(^|\s)_([^_\s][^_]*)_`)
)

// namePrefixChance is how often a known user name is prepended.
const namePrefixChance = 0.3

// PostProcess cleans model or fallback output: trims, removes a leading
// label, markdown emphasis, headings and backticks, and sometimes prepends the
// user's name when it is not already mentioned.
func (c *Composer) PostProcess(content, userName string) string {
	out := Clean(content)

	name := strings.TrimSpace(userName)
	if name == "" || out == "" || strings.Contains(strings.ToLower(out), strings.ToLower(name)) {
		return out
	}
	if c.float64() < namePrefixChance {
		out = name + ", " + out
	}
	return out
}

// Clean is the deterministic part of PostProcess.
func Clean(content string) string {
	out := strings.TrimSpace(content)
	out = replyPrefix.ReplaceAllString(out, "")
	out = headingMarker.ReplaceAllString(out, "")
	out = emphasis.Replace(out)
	out = underscores.ReplaceAllString(out, "$1$2")
	return strings.TrimSpace(out)
}

// SuggestDelay returns a human-like wait before sending content: 30-60s plus
// 0.1s per character, or 10-20s when the customer is in a hurry.
func (c *Composer) SuggestDelay(content string, urgency intent.Urgency) time.Duration {
	if urgency == intent.UrgencyHigh {
		return 10*time.Second + time.Duration(c.float64()*float64(10*time.Second))
	}
	base := 30*time.Second + time.Duration(c.float64()*float64(30*time.Second))
	typing := time.Duration(len([]rune(content))) * 100 * time.Millisecond
	return base + typing
}

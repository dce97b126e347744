package reply

import (
	"strings"
)

var styleDirectives = map[Style]string{
	StyleProfessional: "Keep a professional, courteous tone. Be precise and avoid slang.",
	StyleFriendly:     "Be warm and friendly, like a helpful acquaintance.",
	StyleCasual:       "Write casually, the way people text each other.",
	StyleEnthusiastic: "Sound upbeat and enthusiastic about helping.",
	StyleDirect:       "Be direct and to the point. No small talk.",
}

var lengthDirectives = map[Length]string{
	LengthShort:  "Answer in one or two short sentences.",
	LengthMedium: "Answer in two to four sentences.",
	LengthLong:   "You may answer in a short paragraph when detail helps.",
}

var emojiDirectives = map[EmojiLevel]string{
	EmojiNone:   "Do not use any emoji.",
	EmojiLow:    "Use at most one emoji, only when it fits naturally.",
	EmojiMedium: "You may use a couple of emoji.",
	EmojiHigh:   "Feel free to use emoji generously.",
}

const safetyRules = `Rules:
- Never say or imply you are a bot, AI or automated system.
- Plain text only: no markdown, lists, headings or code formatting.
- Do not start with labels such as "Reply:" or "Response:".
- If you are not sure about a fact, say you will check rather than guess.`

// BuildSystemPrompt assembles the instruction sent ahead of the conversation.
// Unknown style, length or emoji values use the friendly/medium/low directives.
func BuildSystemPrompt(s Settings, snippets []string) string {
	var b strings.Builder

	if strings.TrimSpace(s.CustomPrompt) != "" {
		b.WriteString(strings.TrimSpace(s.CustomPrompt))
	} else {
		name := strings.TrimSpace(s.PersonaName)
		if name == "" {
			name = DefaultSettings().PersonaName
		}
		b.WriteString("You are " + name + ", a helpful sales assistant chatting with a customer.")
	}
	b.WriteString("\n\n")

	b.WriteString(lookup(styleDirectives, s.Style, StyleFriendly))
	b.WriteString("\n")
	b.WriteString(lookup(lengthDirectives, s.Length, LengthMedium))
	b.WriteString("\n")
	b.WriteString(lookup(emojiDirectives, s.Emoji, EmojiLow))
	b.WriteString("\n")

	if len(snippets) > 0 {
		b.WriteString("\nBusiness information you can rely on:\n")
		for _, sn := range snippets {
			b.WriteString("- ")
			b.WriteString(strings.TrimSpace(sn))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(safetyRules)
	return b.String()
}

func lookup[K comparable](m map[K]string, k, fallback K) string {
	if v, ok := m[k]; ok {
		return v
	}
	return m[fallback]
}

package reply

import (
	"strings"
)

type Style string

const (
	StyleProfessional Style = "professional"
	StyleFriendly     Style = "friendly"
	StyleCasual       Style = "casual"
	StyleEnthusiastic Style = "enthusiastic"
	StyleDirect       Style = "direct"
)

type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

type EmojiLevel string

const (
	EmojiNone   EmojiLevel = "none"
	EmojiLow    EmojiLevel = "low"
	EmojiMedium EmojiLevel = "medium"
	EmojiHigh   EmojiLevel = "high"
)

// Settings describe how replies should sound.
type Settings struct {
	Style        Style      `json:"style" yaml:"style"`
	Length       Length     `json:"length" yaml:"length"`
	Emoji        EmojiLevel `json:"emoji" yaml:"emoji"`
	PersonaName  string     `json:"personaName" yaml:"personaName"`
	CustomPrompt string     `json:"customPrompt,omitempty" yaml:"customPrompt,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		Style:       StyleFriendly,
		Length:      LengthMedium,
		Emoji:       EmojiLow,
		PersonaName: "Alex",
	}
}

// KnowledgeProvider supplies persona settings and business context.
type KnowledgeProvider interface {
	Settings() Settings
	Snippets(query string, limit int) []string
}

type KnowledgeEntry struct {
	Title    string   `json:"title" yaml:"title"`
	Content  string   `json:"content" yaml:"content"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// StaticKnowledge serves a fixed persona and knowledge list. Snippets returns
// entries whose keywords (or title) appear in the query, in list order.
type StaticKnowledge struct {
	Persona Settings         `json:"persona" yaml:"persona"`
	Entries []KnowledgeEntry `json:"entries" yaml:"entries"`
}

// Settings returns the persona, with unset fields taken from DefaultSettings.
func (k *StaticKnowledge) Settings() Settings {
	d := DefaultSettings()
	if k == nil {
		return d
	}
	s := k.Persona
	if s.Style == "" {
		s.Style = d.Style
	}
	if s.Length == "" {
		s.Length = d.Length
	}
	if s.Emoji == "" {
		s.Emoji = d.Emoji
	}
	if s.PersonaName == "" {
		s.PersonaName = d.PersonaName
	}
	return s
}

func (k *StaticKnowledge) Snippets(query string, limit int) []string {
	if k == nil || limit <= 0 {
		return nil
	}
	q := strings.ToLower(query)

	var out []string
	for _, e := range k.Entries {
		if !entryMatches(e, q) {
			continue
		}
		text := e.Content
		if e.Title != "" {
			text = e.Title + ": " + e.Content
		}
		out = append(out, text)
		if len(out) == limit {
			break
		}
	}
	return out
}

func entryMatches(e KnowledgeEntry, query string) bool {
	if e.Title != "" && strings.Contains(query, strings.ToLower(e.Title)) {
		return true
	}
	for _, kw := range e.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(query, kw) {
			return true
		}
	}
	return false
}

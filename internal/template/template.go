// Package template fills message templates: {key} variable substitution and
// {a|b|c} spintax.
package template

import (
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
)

// spinGroup matches an innermost brace group that offers at least two options.
var spinGroup = regexp.MustCompile(`\{([^{}]*\|[^{}]*)\}`)

// maxSpinPasses bounds expansion of nested groups.
const maxSpinPasses = 32

// Expander owns the random source used for spintax choices.
type Expander struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewExpander(seed int64) *Expander {
	return &Expander{rng: rand.New(rand.NewSource(seed))}
}

var defaultExpander = NewExpander(time.Now().UnixNano())

func (e *Expander) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}

// ExpandSpintax replaces every {a|b|...} group with one uniformly chosen
// option, repeating until none remain so nested groups resolve inside out.
// Single-option groups such as {name} are left as they are.
func (e *Expander) ExpandSpintax(text string) string {
	for i := 0; i < maxSpinPasses && spinGroup.MatchString(text); i++ {
		text = spinGroup.ReplaceAllStringFunc(text, func(group string) string {
			options := strings.Split(group[1:len(group)-1], "|")
			return options[e.intn(len(options))]
		})
	}
	return text
}

func ExpandSpintax(text string) string {
	return defaultExpander.ExpandSpintax(text)
}

// Substitute replaces {key} with vars[key]. Unknown keys are kept.
func Substitute(text string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(text, "{") {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Personalize substitutes the recipient's display name. An empty name
// becomes "there" so greetings still read naturally.
func Personalize(text, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "there"
	}
	return Substitute(text, map[string]string{"name": name})
}

// Render runs substitution before spintax, so options may reference variables.
func (e *Expander) Render(text string, vars map[string]string, spin bool) string {
	text = Substitute(text, vars)
	if spin {
		text = e.ExpandSpintax(text)
	}
	return text
}

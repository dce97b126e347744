package template

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandSpintax_OnlyKnownOutputs(t *testing.T) {
	seen := map[string]int{}
	for i := 0; i < 500; i++ {
		out := ExpandSpintax("A{x|y}B")
		assert.Contains(t, []string{"AxB", "AyB"}, out)
		seen[out]++
	}
	assert.Len(t, seen, 2, "both options should appear over many runs")
}

func TestExpandSpintax_MultipleGroups(t *testing.T) {
	e := NewExpander(1)
	for i := 0; i < 200; i++ {
		out := e.ExpandSpintax("{Hi|Hello} {friend|pal}!")
		parts := strings.SplitN(strings.TrimSuffix(out, "!"), " ", 2)
		assert.Contains(t, []string{"Hi", "Hello"}, parts[0])
		assert.Contains(t, []string{"friend", "pal"}, parts[1])
	}
}

func TestExpandSpintax_Nested(t *testing.T) {
	e := NewExpander(3)
	for i := 0; i < 200; i++ {
		out := e.ExpandSpintax("{a|b{c|d}}")
		assert.Contains(t, []string{"a", "bc", "bd"}, out)
	}
}

func TestExpandSpintax_LeavesVariablesAndPlainText(t *testing.T) {
	assert.Equal(t, "Hi {name}", ExpandSpintax("Hi {name}"))
	assert.Equal(t, "no braces", ExpandSpintax("no braces"))
	assert.Equal(t, "", ExpandSpintax(""))
	assert.Equal(t, "{", ExpandSpintax("{"))
}

func TestExpandSpintax_EmptyOption(t *testing.T) {
	e := NewExpander(5)
	for i := 0; i < 100; i++ {
		assert.Contains(t, []string{"ab", "a!b"}, e.ExpandSpintax("a{|!}b"))
	}
}

func TestSubstitute(t *testing.T) {
	got := Substitute("Hi {name}, welcome to {group}. {unknown}", map[string]string{
		"name":  "Ana",
		"group": "VIP",
	})
	assert.Equal(t, "Hi Ana, welcome to VIP. {unknown}", got)
	assert.Equal(t, "plain", Substitute("plain", nil))
}

func TestPersonalize(t *testing.T) {
	assert.Equal(t, "Hi Ana", Personalize("Hi {name}", " Ana "))
	assert.Equal(t, "Hi there", Personalize("Hi {name}", ""))
}

func TestRender_SubstitutesBeforeSpin(t *testing.T) {
	e := NewExpander(9)
	for i := 0; i < 200; i++ {
		out := e.Render("Hi {name}, {welcome|hello} there!", map[string]string{"name": "Ana"}, true)
		assert.True(t, strings.HasPrefix(out, "Hi Ana, "), out)
		assert.True(t, strings.HasSuffix(out, " there!"), out)
		middle := strings.TrimSuffix(strings.TrimPrefix(out, "Hi Ana, "), " there!")
		assert.Contains(t, []string{"welcome", "hello"}, middle)
	}

	assert.Equal(t, "{a|b} Ana", e.Render("{a|b} {name}", map[string]string{"name": "Ana"}, false))
}

func TestRender_OptionsMayReferenceVariables(t *testing.T) {
	e := NewExpander(11)
	for i := 0; i < 100; i++ {
		out := e.Render("{Hey {name}|Hello {name}}", map[string]string{"name": "Bo"}, true)
		assert.Contains(t, []string{"Hey Bo", "Hello Bo"}, out)
	}
}

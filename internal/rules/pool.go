package rules

import (
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Pool holds the current rule set. Readers get an immutable snapshot;
// writers swap the whole set.
type Pool struct {
	current atomic.Pointer[[]SmartRule]
}

func NewPool(initial []SmartRule) *Pool {
	p := &Pool{}
	p.Replace(initial)
	return p
}

// Replace installs a copy of rs as the new snapshot.
func (p *Pool) Replace(rs []SmartRule) {
	snap := make([]SmartRule, len(rs))
	for i, r := range rs {
		r.TriggerConditions.KeywordMatch = append([]string(nil), r.TriggerConditions.KeywordMatch...)
		snap[i] = r
	}
	p.current.Store(&snap)
}

// Snapshot returns the current rules. Callers must not modify the slice.
func (p *Pool) Snapshot() []SmartRule {
	snap := p.current.Load()
	if snap == nil {
		return nil
	}
	return *snap
}

func (p *Pool) Len() int {
	return len(p.Snapshot())
}

type ruleFile struct {
	Rules []SmartRule `yaml:"rules"`
}

// LoadFile reads a YAML document with a top-level "rules" list.
func LoadFile(path string) ([]SmartRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read rules file %s", path)
	}
	return Parse(data)
}

func Parse(data []byte) ([]SmartRule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse rules yaml")
	}
	for i, r := range f.Rules {
		if r.ID == "" {
			return nil, errors.Errorf("rule %d (%q) has no id", i, r.Name)
		}
	}
	return f.Rules, nil
}

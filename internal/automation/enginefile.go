package automation

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chat-trigger-engine/internal/accounts"
	"chat-trigger-engine/internal/dispatch"
	"chat-trigger-engine/internal/models"
	"chat-trigger-engine/internal/reply"
	"chat-trigger-engine/internal/rules"
)

// EngineFile is the YAML document operators keep alongside the service:
// account roles, persona and knowledge, rules and trigger configs.
type EngineFile struct {
	Accounts  []accounts.AccountRoleConfig  `yaml:"accounts"`
	Knowledge reply.StaticKnowledge         `yaml:"knowledge"`
	Rules     []rules.SmartRule             `yaml:"rules"`
	Trigger   *dispatch.TriggerActionConfig `yaml:"trigger"`
	Groups    []dispatch.GroupTriggerConfig `yaml:"groups"`
}

func LoadEngineFile(path string) (*EngineFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read engine file %s", path)
	}
	return ParseEngineFile(data)
}

func ParseEngineFile(data []byte) (*EngineFile, error) {
	var f EngineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse engine file")
	}

	seen := make(map[string]bool)
	for i, r := range f.Rules {
		if r.ID == "" {
			return nil, errors.Errorf("rule %d (%q) has no id", i, r.Name)
		}
		if seen[r.ID] {
			return nil, errors.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true
	}
	if f.Trigger != nil {
		if err := dispatch.Validate(f.Trigger); err != nil {
			return nil, errors.Wrap(err, "trigger")
		}
	}
	for i := range f.Groups {
		if err := dispatch.ValidateGroup(&f.Groups[i]); err != nil {
			return nil, errors.Wrapf(err, "group %q", f.Groups[i].GroupID)
		}
	}
	return &f, nil
}

// Directory exposes the file's accounts to the dispatcher.
func (f *EngineFile) Directory() accounts.Directory {
	return accounts.StaticDirectory(f.Accounts)
}

// ImportSummary counts what ImportEngineFile wrote.
type ImportSummary struct {
	Rules  int
	Global bool
	Groups int
}

// ImportEngineFile stores the file's rules and trigger configs. Without
// overwrite, anything already stored is kept and only missing entries are
// added.
func ImportEngineFile(db *gorm.DB, configs *ConfigSource, f *EngineFile, overwrite bool) (ImportSummary, error) {
	var sum ImportSummary

	for _, r := range f.Rules {
		rec := models.SmartRuleFrom(r)
		q := db
		if !overwrite {
			q = q.Clauses(clause.OnConflict{DoNothing: true})
		} else {
			q = q.Clauses(clause.OnConflict{UpdateAll: true})
		}
		res := q.Create(&rec)
		if res.Error != nil {
			return sum, errors.Wrapf(res.Error, "import rule %s", r.ID)
		}
		sum.Rules += int(res.RowsAffected)
	}

	if f.Trigger != nil {
		var n int64
		if err := db.Model(&models.TriggerConfig{}).Where("scope = ?", models.GlobalScope).Count(&n).Error; err != nil {
			return sum, errors.Wrap(err, "check global trigger config")
		}
		if overwrite || n == 0 {
			if err := configs.SaveGlobal(*f.Trigger); err != nil {
				return sum, err
			}
			sum.Global = true
		}
	}

	for _, g := range f.Groups {
		if _, ok := configs.Group(g.GroupID); ok && !overwrite {
			continue
		}
		if err := configs.SaveGroup(g); err != nil {
			return sum, err
		}
		sum.Groups++
	}
	return sum, nil
}

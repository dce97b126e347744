package automation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chat-trigger-engine/internal/dispatch"
	"chat-trigger-engine/internal/models"
	"chat-trigger-engine/internal/rules"
)

type configSnapshot struct {
	global dispatch.TriggerActionConfig
	groups map[string]dispatch.GroupTriggerConfig
}

// ConfigSource serves trigger configs from an in-memory snapshot backed by
// the database. Reads never touch the database; writes persist first and
// then swap the snapshot.
//
// Stats recorded per message only touch memory. The counters gathered since
// the last flush are kept as deltas and added to the stored rows by Flush.
type ConfigSource struct {
	db   *gorm.DB
	snap atomic.Pointer[configSnapshot]
	// mu serialises writers and guards the pending deltas.
	mu            sync.Mutex
	pendingGlobal dispatch.Stats
	pendingGroups map[string]dispatch.Stats
}

// DefaultTriggerConfig is used until an operator stores one: inactive, so a
// fresh install never messages anyone.
func DefaultTriggerConfig() dispatch.TriggerActionConfig {
	return dispatch.TriggerActionConfig{
		IsActive: false,
		Mode:     dispatch.ModeAISmart,
		AIReply: &dispatch.AIReplyConfig{
			MinDelaySeconds: 30,
			MaxDelaySeconds: 90,
			SimulateTyping:  true,
			UseContext:      true,
		},
	}
}

func NewConfigSource(db *gorm.DB) *ConfigSource {
	s := &ConfigSource{db: db, pendingGroups: map[string]dispatch.Stats{}}
	s.snap.Store(&configSnapshot{
		global: DefaultTriggerConfig(),
		groups: map[string]dispatch.GroupTriggerConfig{},
	})
	return s
}

// Reload replaces the snapshot with what is stored.
func (s *ConfigSource) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

func (s *ConfigSource) reloadLocked() error {
	if err := s.flushLocked(); err != nil {
		return err
	}

	next := &configSnapshot{
		global: DefaultTriggerConfig(),
		groups: map[string]dispatch.GroupTriggerConfig{},
	}

	var global models.TriggerConfig
	err := s.db.Where("scope = ?", models.GlobalScope).First(&global).Error
	switch {
	case err == nil:
		next.global = global.Config
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return errors.Wrap(err, "load global trigger config")
	}

	var groups []models.GroupTriggerConfig
	if err := s.db.Find(&groups).Error; err != nil {
		return errors.Wrap(err, "load group trigger configs")
	}
	for _, g := range groups {
		next.groups[g.GroupID] = g.Config
	}

	s.snap.Store(next)
	return nil
}

func (s *ConfigSource) Global() dispatch.TriggerActionConfig {
	return s.snap.Load().global
}

func (s *ConfigSource) Group(groupID string) (dispatch.GroupTriggerConfig, bool) {
	g, ok := s.snap.Load().groups[groupID]
	return g, ok
}

func (s *ConfigSource) Groups() []dispatch.GroupTriggerConfig {
	snap := s.snap.Load()
	out := make([]dispatch.GroupTriggerConfig, 0, len(snap.groups))
	for _, g := range snap.groups {
		out = append(out, g)
	}
	return out
}

// Effective resolves the config that applies to a group at this moment.
func (s *ConfigSource) Effective(groupID string) dispatch.TriggerActionConfig {
	snap := s.snap.Load()
	if g, ok := snap.groups[groupID]; ok {
		return dispatch.Resolve(snap.global, &g)
	}
	return dispatch.Resolve(snap.global, nil)
}

// SaveGlobal validates and stores the global config. Running stats are
// kept from the current config.
func (s *ConfigSource) SaveGlobal(cfg dispatch.TriggerActionConfig) error {
	if err := dispatch.Validate(&cfg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg.Stats = s.snap.Load().global.Stats
	if err := s.upsertGlobal(cfg); err != nil {
		return err
	}
	s.pendingGlobal = dispatch.Stats{}
	return s.reloadLocked()
}

func (s *ConfigSource) upsertGlobal(cfg dispatch.TriggerActionConfig) error {
	rec := models.TriggerConfig{Scope: models.GlobalScope, Config: cfg}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{"config", "updated_at"}),
	}).Create(&rec).Error
	return errors.Wrap(err, "save global trigger config")
}

func (s *ConfigSource) SaveGroup(g dispatch.GroupTriggerConfig) error {
	if err := dispatch.ValidateGroup(&g); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Counters belong to the engine, never to the request body.
	if g.CustomConfig != nil {
		custom := *g.CustomConfig
		custom.Stats = dispatch.Stats{}
		if prev, ok := s.snap.Load().groups[g.GroupID]; ok && prev.CustomConfig != nil {
			custom.Stats = prev.CustomConfig.Stats
		}
		g.CustomConfig = &custom
	}

	if err := s.upsertGroup(g); err != nil {
		return err
	}
	delete(s.pendingGroups, g.GroupID)
	return s.reloadLocked()
}

func (s *ConfigSource) upsertGroup(g dispatch.GroupTriggerConfig) error {
	rec := models.GroupTriggerConfig{GroupID: g.GroupID, Config: g}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"config", "updated_at"}),
	}).Create(&rec).Error
	return errors.Wrapf(err, "save group %s trigger config", g.GroupID)
}

func (s *ConfigSource) DeleteGroup(groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Delete(&models.GroupTriggerConfig{}, "group_id = ?", groupID).Error; err != nil {
		return errors.Wrapf(err, "delete group %s trigger config", groupID)
	}
	delete(s.pendingGroups, groupID)
	return s.reloadLocked()
}

// RecordStats folds a dispatch outcome into the stats of the config that
// produced it: the group's own config when it has one in effect, else global.
// The snapshot reflects it at once; the database catches up on Flush.
func (s *ConfigSource) RecordStats(groupID string, res *dispatch.ActionResult) {
	if res == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snap.Load()
	next := &configSnapshot{global: snap.global, groups: snap.groups}
	if g, ok := snap.groups[groupID]; ok && ownsStats(g) {
		custom := *g.CustomConfig
		custom.Stats.Record(res)
		g.CustomConfig = &custom

		next.groups = make(map[string]dispatch.GroupTriggerConfig, len(snap.groups))
		for id, other := range snap.groups {
			next.groups[id] = other
		}
		next.groups[groupID] = g

		delta := s.pendingGroups[groupID]
		delta.Record(res)
		s.pendingGroups[groupID] = delta
	} else {
		next.global.Stats.Record(res)
		s.pendingGlobal.Record(res)
	}
	s.snap.Store(next)
}

func ownsStats(g dispatch.GroupTriggerConfig) bool {
	return !g.UseGlobalConfig && g.CustomConfig != nil
}

// Flush adds the pending stats deltas to the stored configs.
func (s *ConfigSource) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *ConfigSource) flushLocked() error {
	if s.pendingGlobal != (dispatch.Stats{}) {
		var rec models.TriggerConfig
		err := s.db.Where("scope = ?", models.GlobalScope).First(&rec).Error
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec.Config = s.snap.Load().global
			rec.Config.Stats = dispatch.Stats{}
		default:
			return errors.Wrap(err, "load global trigger config")
		}
		rec.Config.Stats.Add(s.pendingGlobal)
		if err := s.upsertGlobal(rec.Config); err != nil {
			return err
		}
		s.pendingGlobal = dispatch.Stats{}
	}

	for groupID, delta := range s.pendingGroups {
		var rec models.GroupTriggerConfig
		err := s.db.Where("group_id = ?", groupID).First(&rec).Error
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			delete(s.pendingGroups, groupID)
			continue
		default:
			return errors.Wrapf(err, "load group %s trigger config", groupID)
		}

		g := rec.Config
		if g.CustomConfig != nil {
			custom := *g.CustomConfig
			custom.Stats.Add(delta)
			g.CustomConfig = &custom
			if err := s.upsertGroup(g); err != nil {
				return err
			}
		}
		delete(s.pendingGroups, groupID)
	}
	return nil
}

// Run flushes stats every interval until ctx is done, then once more.
func (s *ConfigSource) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				log.Printf("Error flushing trigger stats: %v", err)
			}
		case <-ctx.Done():
			if err := s.Flush(); err != nil {
				log.Printf("Error flushing trigger stats: %v", err)
			}
			return
		}
	}
}

// LoadRules reads every stored rule into pool.
func LoadRules(db *gorm.DB, pool *rules.Pool) error {
	var recs []models.SmartRule
	if err := db.Order("priority DESC, created_at ASC").Find(&recs).Error; err != nil {
		return errors.Wrap(err, "load rules")
	}
	out := make([]rules.SmartRule, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ToRule())
	}
	pool.Replace(out)
	return nil
}

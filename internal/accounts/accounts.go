package accounts

import (
	"math/rand"
	"sync"
	"time"
)

type Strategy string

const (
	Sequential  Strategy = "sequential"
	Random      Strategy = "random"
	LoadBalance Strategy = "load_balance"
)

// ParseStrategy maps free text to a strategy, unknown values become Sequential.
func ParseStrategy(s string) Strategy {
	switch Strategy(s) {
	case Sequential, Random, LoadBalance:
		return Strategy(s)
	default:
		return Sequential
	}
}

type Role string

const (
	RoleSender   Role = "sender"
	RoleMonitor  Role = "monitor"
	RoleRolePlay Role = "role_play"
	RoleAIChat   Role = "ai_chat"
	RoleBackup   Role = "backup"
)

// AccountRoleConfig tags a messaging account with what it may be used for.
type AccountRoleConfig struct {
	AccountID   string `json:"accountId" yaml:"accountId"`
	Roles       []Role `json:"roles" yaml:"roles"`
	PrimaryRole Role   `json:"primaryRole" yaml:"primaryRole"`
	// PhoneNumberID is the WhatsApp Cloud API number used to send as this account.
	PhoneNumberID string `json:"phoneNumberId,omitempty" yaml:"phoneNumberId,omitempty"`
}

func (a AccountRoleConfig) HasRole(r Role) bool {
	if a.PrimaryRole == r {
		return true
	}
	for _, have := range a.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// Directory supplies the known accounts. It is read-only to the engine.
type Directory interface {
	Accounts() []AccountRoleConfig
}

// StaticDirectory is a fixed account list, usually loaded from the engine file.
type StaticDirectory []AccountRoleConfig

func (d StaticDirectory) Accounts() []AccountRoleConfig {
	return d
}

// Lookup finds an account by id.
func Lookup(dir Directory, id string) (AccountRoleConfig, bool) {
	if dir == nil {
		return AccountRoleConfig{}, false
	}
	for _, a := range dir.Accounts() {
		if a.AccountID == id {
			return a, true
		}
	}
	return AccountRoleConfig{}, false
}

// FilterByRole keeps the ids in candidates whose account holds role. With a
// nil directory, or when the directory knows none of the ids, candidates are
// returned unchanged.
func FilterByRole(dir Directory, candidates []string, role Role) []string {
	if dir == nil {
		return candidates
	}
	known := make(map[string]AccountRoleConfig)
	for _, a := range dir.Accounts() {
		known[a.AccountID] = a
	}

	var out []string
	anyKnown := false
	for _, id := range candidates {
		a, ok := known[id]
		if !ok {
			continue
		}
		anyKnown = true
		if a.HasRole(role) {
			out = append(out, id)
		}
	}
	if !anyKnown {
		return candidates
	}
	return out
}

// Selector picks a sender account from a pool.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelector(seed int64) *Selector {
	return &Selector{rng: rand.New(rand.NewSource(seed))}
}

func NewDefaultSelector() *Selector {
	return NewSelector(time.Now().UnixNano())
}

// Select returns one id from ids. An empty pool yields ("", false).
//
// Sequential and LoadBalance currently return the first id: no rotation
// cursor or per-account load is tracked yet.
func (s *Selector) Select(ids []string, strategy Strategy) (string, bool) {
	if len(ids) == 0 {
		return "", false
	}

	if strategy == Random {
		s.mu.Lock()
		i := s.rng.Intn(len(ids))
		s.mu.Unlock()
		return ids[i], true
	}
	// TODO: keep a per-pool cursor for Sequential and per-account send counts for LoadBalance.
	return ids[0], true
}

package llm

import (
	"sync"
	"sync/atomic"
)

// AccountTokenUsage tracks cumulative token usage for a single account
// (one upstream caller, identified however the embedding service likes).
type AccountTokenUsage struct {
	PromptTokens     atomic.Int64
	CompletionTokens atomic.Int64
	TotalTokens      atomic.Int64
}

// Add accumulates usage from a single API call.
func (u *AccountTokenUsage) Add(usage Usage) {
	u.PromptTokens.Add(usage.PromptTokens)
	u.CompletionTokens.Add(usage.CompletionTokens)
	u.TotalTokens.Add(usage.TotalTokens)
}

// Snapshot returns the current cumulative usage.
func (u *AccountTokenUsage) Snapshot() Usage {
	return Usage{
		PromptTokens:     u.PromptTokens.Load(),
		CompletionTokens: u.CompletionTokens.Load(),
		TotalTokens:      u.TotalTokens.Load(),
	}
}

var (
	accountUsageMu sync.RWMutex
	accountUsage   = make(map[string]*AccountTokenUsage)
)

// GetAccountTokenUsage returns the token usage tracker for an account
// (creates if needed).
func GetAccountTokenUsage(account string) *AccountTokenUsage {
	accountUsageMu.RLock()
	u, ok := accountUsage[account]
	accountUsageMu.RUnlock()
	if ok {
		return u
	}
	accountUsageMu.Lock()
	defer accountUsageMu.Unlock()
	if u, ok = accountUsage[account]; ok {
		return u
	}
	u = &AccountTokenUsage{}
	accountUsage[account] = u
	return u
}

// AddAccountTokenUsage is a convenience function to accumulate usage for an account.
func AddAccountTokenUsage(account string, usage Usage) {
	if usage.TotalTokens <= 0 {
		return
	}
	GetAccountTokenUsage(account).Add(usage)
}

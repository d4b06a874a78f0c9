package routing

import (
	"math/rand"
	"sync"
	"time"
)

// ResolveGroupID returns the provider group id a request type routes to for
// the given profile: the explicit routing rule first, then the profile's
// default provider group. A nil result means unrouted (default behavior).
func ResolveGroupID(p *Profile, t RequestType) *string {
	if p == nil {
		return nil
	}
	if ref := p.RoutingRules.Get(t); ref != nil {
		return ref
	}
	return p.DefaultProviderGroup
}

// ResolveGroup resolves the provider group the active profile routes the
// request type to, or nil when the request is unrouted.
func (c *RoutingConfig) ResolveGroup(t RequestType) *ProviderGroup {
	ref := ResolveGroupID(c.ActiveProfile(), t)
	if ref == nil {
		return nil
	}
	return c.FindGroup(*ref)
}

// AccountPicker applies a provider group's selection strategy over its
// account ids. Round-robin cursors are kept per group id so interleaved
// requests to different groups rotate independently.
type AccountPicker struct {
	mu      sync.Mutex
	cursors map[string]int
	rng     *rand.Rand
}

// NewAccountPicker creates a picker with fresh rotation state.
func NewAccountPicker() *AccountPicker {
	return &AccountPicker{
		cursors: make(map[string]int),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Pick chooses one account id from the group according to its selection
// strategy. Returns false when the group is nil or has no accounts.
func (p *AccountPicker) Pick(g *ProviderGroup) (string, bool) {
	if g == nil || len(g.AccountIDs) == 0 {
		return "", false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch g.SelectionStrategy {
	case StrategyPriority:
		// Accounts are kept in insertion order; the first is the preferred one.
		return g.AccountIDs[0], true
	case StrategyRandom:
		return g.AccountIDs[p.rng.Intn(len(g.AccountIDs))], true
	default:
		// Round-robin, also the fallback for unknown strategies.
		idx := p.cursors[g.ID] % len(g.AccountIDs)
		p.cursors[g.ID] = idx + 1
		return g.AccountIDs[idx], true
	}
}

// Reset clears rotation state, e.g. after a config reload replaces groups.
func (p *AccountPicker) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursors = make(map[string]int)
}

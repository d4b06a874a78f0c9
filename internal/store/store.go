// Package store owns the routing configuration state: profiles, provider
// groups, and the active profile id. All mutations go through the Store,
// which enforces the model invariants synchronously, persists the state
// after every successful mutation, and notifies subscribers with a fresh
// snapshot so downstream sync can propagate it.
package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"profilehub/internal/logger"
	"profilehub/internal/routing"
	"profilehub/internal/storage"
)

// ErrDuplicateName is returned when a profile name collides case-insensitively
// with an existing profile.
var ErrDuplicateName = errors.New("a profile with this name already exists")

// Listener receives a snapshot after every successful mutation.
type Listener func(cfg *routing.RoutingConfig)

// OptionalRef distinguishes "leave unchanged" from "set to null" for nullable
// provider-group references in partial updates.
type OptionalRef struct {
	Valid bool
	Ref   *string
}

// SetRef builds an OptionalRef pointing at a group id.
func SetRef(id string) OptionalRef {
	return OptionalRef{Valid: true, Ref: &id}
}

// ClearRef builds an OptionalRef that clears the reference.
func ClearRef() OptionalRef {
	return OptionalRef{Valid: true}
}

// ProfileUpdate is a partial update for a profile. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	Name                 *string
	Color                *string
	Icon                 *string
	DefaultProviderGroup OptionalRef
}

// GroupUpdate is a partial update for a provider group. Nil fields are left
// unchanged.
type GroupUpdate struct {
	Name              *string
	AccountIDs        *[]string
	SelectionStrategy *routing.SelectionStrategy
}

// Store is the single source of truth for routing configuration.
type Store struct {
	mu              sync.Mutex
	profiles        []*routing.Profile
	groups          []*routing.ProviderGroup
	activeProfileID *string
	families        routing.ModelFamilies

	state storage.StateStore
	log   *logger.Logger

	listenerMu sync.Mutex
	listeners  map[int64]Listener
	nextListen int64

	statusMu   sync.Mutex
	lastSynced time.Time
	lastError  string

	now func() time.Time
}

// New creates a Store backed by the given state store. Previously persisted
// state is adopted (and normalized back to the invariants if needed);
// otherwise the store starts with the single default profile active.
func New(state storage.StateStore, log *logger.Logger) (*Store, error) {
	if state == nil {
		return nil, errors.New("state store is nil")
	}
	if log == nil {
		log = logger.GetDefault()
	}

	s := &Store{
		state:     state,
		log:       log,
		families:  routing.DefaultModelFamilies(),
		listeners: make(map[int64]Listener),
		now:       time.Now,
	}

	persisted, err := state.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted state: %w", err)
	}

	if persisted == nil {
		now := s.now()
		s.profiles = []*routing.Profile{routing.NewDefaultProfile(now)}
		s.groups = []*routing.ProviderGroup{}
		s.activeProfileID = routing.Ref(routing.DefaultProfileID)
		if err := s.persistLocked(); err != nil {
			log.Warn("Failed to persist initial state: %v", err)
		}
		return s, nil
	}

	s.profiles = persisted.Profiles
	s.groups = persisted.ProviderGroups
	s.activeProfileID = persisted.ActiveProfileID
	if s.normalizeLocked() {
		if err := s.persistLocked(); err != nil {
			log.Warn("Failed to persist normalized state: %v", err)
		}
	}
	return s, nil
}

// normalizeLocked repairs persisted state that predates the invariants or was
// edited out of band. Returns true when anything changed.
func (s *Store) normalizeLocked() bool {
	changed := false
	now := s.now()

	if s.findProfileLocked(routing.DefaultProfileID) == nil {
		s.profiles = append([]*routing.Profile{routing.NewDefaultProfile(now)}, s.profiles...)
		changed = true
	}
	if s.activeProfileID != nil && s.findProfileLocked(*s.activeProfileID) == nil {
		s.activeProfileID = routing.Ref(routing.DefaultProfileID)
		changed = true
	}

	for _, g := range s.groups {
		deduped := dedupeAccounts(g.AccountIDs)
		if len(deduped) != len(g.AccountIDs) {
			g.AccountIDs = deduped
			changed = true
		}
		if !g.SelectionStrategy.Valid() {
			g.SelectionStrategy = routing.StrategyRoundRobin
			changed = true
		}
	}

	for _, p := range s.profiles {
		for _, t := range routing.RequestTypes {
			if ref := p.RoutingRules.Get(t); ref != nil && s.findGroupLocked(*ref) == nil {
				p.RoutingRules.Set(t, nil)
				changed = true
			}
		}
		if p.DefaultProviderGroup != nil && s.findGroupLocked(*p.DefaultProviderGroup) == nil {
			p.DefaultProviderGroup = nil
			changed = true
		}
	}

	return changed
}

// CreateProfile appends a new profile with empty routing rules. Fails with
// ErrDuplicateName when the name collides case-insensitively with an existing
// profile. Empty color falls back to the default profile color.
func (s *Store) CreateProfile(name, color, icon string) (*routing.Profile, error) {
	s.mu.Lock()

	if s.nameTakenLocked(name, "") {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	if color == "" {
		color = routing.DefaultProfileColor
	}
	now := s.now()
	profile := &routing.Profile{
		ID:        uuid.New().String(),
		Name:      name,
		Color:     color,
		Icon:      icon,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.profiles = append(s.profiles, profile)

	out := profile.Clone()
	s.commitLocked()
	return out, nil
}

// UpdateProfile applies a partial update. Unknown ids are a silent no-op.
// A name change re-checks uniqueness against every other profile.
func (s *Store) UpdateProfile(id string, update ProfileUpdate) error {
	s.mu.Lock()

	profile := s.findProfileLocked(id)
	if profile == nil {
		s.mu.Unlock()
		return nil
	}

	if update.Name != nil && s.nameTakenLocked(*update.Name, id) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateName, *update.Name)
	}

	if update.Name != nil {
		profile.Name = *update.Name
	}
	if update.Color != nil {
		profile.Color = *update.Color
	}
	if update.Icon != nil {
		profile.Icon = *update.Icon
	}
	if update.DefaultProviderGroup.Valid {
		ref := update.DefaultProviderGroup.Ref
		if ref != nil && s.findGroupLocked(*ref) == nil {
			// Dangling references are never stored.
			s.log.Warn("Ignoring default group update for profile %s: unknown group %s", id, *ref)
		} else {
			profile.DefaultProviderGroup = cloneRef(ref)
		}
	}
	profile.UpdatedAt = s.now()

	s.commitLocked()
	return nil
}

// DeleteProfile removes a profile. The default profile and unknown ids are
// left untouched and reported as false. Deleting the active profile falls
// the active id back to the default profile.
func (s *Store) DeleteProfile(id string) bool {
	if id == routing.DefaultProfileID {
		return false
	}

	s.mu.Lock()

	if s.findProfileLocked(id) == nil {
		s.mu.Unlock()
		return false
	}

	kept := s.profiles[:0]
	for _, p := range s.profiles {
		if p.ID == id {
			continue
		}
		kept = append(kept, p)
	}
	s.profiles = kept

	if s.activeProfileID != nil && *s.activeProfileID == id {
		s.activeProfileID = routing.Ref(routing.DefaultProfileID)
	}

	s.commitLocked()
	return true
}

// SetActiveProfile switches the active profile. A non-nil id that does not
// reference an existing profile is rejected as a no-op; re-activating the
// current profile is a safe no-op that still re-triggers a sync round.
func (s *Store) SetActiveProfile(id *string) {
	s.mu.Lock()

	if id != nil && s.findProfileLocked(*id) == nil {
		s.mu.Unlock()
		return
	}

	s.activeProfileID = cloneRef(id)
	s.commitLocked()
}

// GetActiveProfile returns a copy of the active profile, or nil when the
// active id is unset or does not resolve.
func (s *Store) GetActiveProfile() *routing.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeProfileID == nil {
		return nil
	}
	return s.findProfileLocked(*s.activeProfileID).Clone()
}

// Profiles returns copies of all profiles in insertion order.
func (s *Store) Profiles() []*routing.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*routing.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.Clone())
	}
	return out
}

// ProviderGroups returns copies of all provider groups in insertion order.
func (s *Store) ProviderGroups() []*routing.ProviderGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*routing.ProviderGroup, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g.Clone())
	}
	return out
}

// CreateProviderGroup appends a new provider group. Account ids are
// deduplicated; an empty or unknown strategy defaults to round-robin.
func (s *Store) CreateProviderGroup(name string, accountIDs []string, strategy routing.SelectionStrategy) *routing.ProviderGroup {
	if !strategy.Valid() {
		strategy = routing.StrategyRoundRobin
	}

	s.mu.Lock()

	group := &routing.ProviderGroup{
		ID:                uuid.New().String(),
		Name:              name,
		AccountIDs:        dedupeAccounts(accountIDs),
		SelectionStrategy: strategy,
	}
	s.groups = append(s.groups, group)

	out := group.Clone()
	s.commitLocked()
	return out
}

// UpdateProviderGroup applies a partial update. Unknown ids are a silent
// no-op; replacement account lists are deduplicated and invalid strategies
// ignored.
func (s *Store) UpdateProviderGroup(id string, update GroupUpdate) {
	s.mu.Lock()

	group := s.findGroupLocked(id)
	if group == nil {
		s.mu.Unlock()
		return
	}

	if update.Name != nil {
		group.Name = *update.Name
	}
	if update.AccountIDs != nil {
		group.AccountIDs = dedupeAccounts(*update.AccountIDs)
	}
	if update.SelectionStrategy != nil && update.SelectionStrategy.Valid() {
		group.SelectionStrategy = *update.SelectionStrategy
	}

	s.commitLocked()
}

// DeleteProviderGroup removes a group and, in the same mutation, nulls every
// reference to it across all profiles' routing rules and default groups.
// updatedAt is bumped only on profiles actually changed. Unknown ids return
// false.
func (s *Store) DeleteProviderGroup(id string) bool {
	s.mu.Lock()

	if s.findGroupLocked(id) == nil {
		s.mu.Unlock()
		return false
	}

	kept := s.groups[:0]
	for _, g := range s.groups {
		if g.ID == id {
			continue
		}
		kept = append(kept, g)
	}
	s.groups = kept

	now := s.now()
	for _, p := range s.profiles {
		changed := false
		for _, t := range routing.RequestTypes {
			if ref := p.RoutingRules.Get(t); ref != nil && *ref == id {
				p.RoutingRules.Set(t, nil)
				changed = true
			}
		}
		if p.DefaultProviderGroup != nil && *p.DefaultProviderGroup == id {
			p.DefaultProviderGroup = nil
			changed = true
		}
		if changed {
			p.UpdatedAt = now
		}
	}

	s.commitLocked()
	return true
}

// AddAccountToGroup adds an account id to a group. Idempotent: an account
// already present is left alone. Unknown groups are a no-op.
func (s *Store) AddAccountToGroup(groupID, accountID string) {
	s.mu.Lock()

	group := s.findGroupLocked(groupID)
	if group == nil {
		s.mu.Unlock()
		return
	}
	for _, id := range group.AccountIDs {
		if id == accountID {
			s.mu.Unlock()
			return
		}
	}
	group.AccountIDs = append(group.AccountIDs, accountID)

	s.commitLocked()
}

// RemoveAccountFromGroup removes an account id from a group. Absent accounts
// and unknown groups are a no-op.
func (s *Store) RemoveAccountFromGroup(groupID, accountID string) {
	s.mu.Lock()

	group := s.findGroupLocked(groupID)
	if group == nil {
		s.mu.Unlock()
		return
	}

	found := false
	kept := group.AccountIDs[:0]
	for _, id := range group.AccountIDs {
		if id == accountID {
			found = true
			continue
		}
		kept = append(kept, id)
	}
	if !found {
		s.mu.Unlock()
		return
	}
	group.AccountIDs = kept

	s.commitLocked()
}

// SetRoutingRule sets exactly one routing-rule entry on a profile and bumps
// its updatedAt. Unknown profiles, unknown request types, and non-nil group
// ids that do not resolve are all rejected as no-ops.
func (s *Store) SetRoutingRule(profileID string, t routing.RequestType, groupID *string) {
	if !t.Valid() {
		return
	}

	s.mu.Lock()

	profile := s.findProfileLocked(profileID)
	if profile == nil {
		s.mu.Unlock()
		return
	}
	if groupID != nil && s.findGroupLocked(*groupID) == nil {
		s.mu.Unlock()
		return
	}

	profile.RoutingRules.Set(t, cloneRef(groupID))
	profile.UpdatedAt = s.now()

	s.commitLocked()
}

// GetRoutingConfig projects the current state into the synchronizable
// snapshot shape, always including the static model families.
func (s *Store) GetRoutingConfig() *routing.RoutingConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Reset restores the single default profile, empties provider groups, and
// re-activates the default profile.
func (s *Store) Reset() {
	s.mu.Lock()

	now := s.now()
	s.profiles = []*routing.Profile{routing.NewDefaultProfile(now)}
	s.groups = []*routing.ProviderGroup{}
	s.activeProfileID = routing.Ref(routing.DefaultProfileID)

	s.commitLocked()
}

// Subscribe registers a listener invoked with a snapshot after every
// successful mutation. The returned function unsubscribes it.
func (s *Store) Subscribe(listener Listener) func() {
	s.listenerMu.Lock()
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = listener
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

// SetSyncStatus records the outcome of the latest sync round so the UI can
// show a "not synced" indicator. An empty errMsg clears the error.
func (s *Store) SetSyncStatus(syncedAt time.Time, errMsg string) {
	s.statusMu.Lock()
	if errMsg == "" {
		s.lastSynced = syncedAt
	}
	s.lastError = errMsg
	s.statusMu.Unlock()
}

// LastSynced returns the time of the last successful sync round (zero when
// none has succeeded yet).
func (s *Store) LastSynced() time.Time {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.lastSynced
}

// LastError returns the most recent persistence or sync error, empty when the
// last round was clean.
func (s *Store) LastError() string {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.lastError
}

// commitLocked persists the mutated state and releases the lock, then fans
// the fresh snapshot out to subscribers. Persistence failure keeps the
// in-memory mutation (the change is applied but may not survive a restart)
// and is surfaced through LastError. Listeners run outside the lock so a
// tray-originated echo can safely re-enter the store.
func (s *Store) commitLocked() {
	persistErr := s.persistLocked()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if persistErr != nil {
		s.log.Warn("Failed to persist state: %v", persistErr)
		s.statusMu.Lock()
		s.lastError = fmt.Sprintf("failed to persist state: %v", persistErr)
		s.statusMu.Unlock()
	}

	s.listenerMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenerMu.Unlock()

	for _, l := range listeners {
		l(snapshot.Clone())
	}
}

func (s *Store) persistLocked() error {
	return s.state.Save(&storage.PersistedState{
		Profiles:        s.profiles,
		ProviderGroups:  s.groups,
		ActiveProfileID: s.activeProfileID,
	})
}

func (s *Store) snapshotLocked() *routing.RoutingConfig {
	cfg := &routing.RoutingConfig{
		Version:         routing.ConfigVersion,
		ActiveProfileID: cloneRef(s.activeProfileID),
		Profiles:        make([]*routing.Profile, 0, len(s.profiles)),
		ProviderGroups:  make([]*routing.ProviderGroup, 0, len(s.groups)),
		ModelFamilies:   s.families.Clone(),
	}
	for _, p := range s.profiles {
		cfg.Profiles = append(cfg.Profiles, p.Clone())
	}
	for _, g := range s.groups {
		cfg.ProviderGroups = append(cfg.ProviderGroups, g.Clone())
	}
	return cfg
}

func (s *Store) findProfileLocked(id string) *routing.Profile {
	for _, p := range s.profiles {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Store) findGroupLocked(id string) *routing.ProviderGroup {
	for _, g := range s.groups {
		if g.ID == id {
			return g
		}
	}
	return nil
}

func (s *Store) nameTakenLocked(name, excludeID string) bool {
	for _, p := range s.profiles {
		if p.ID == excludeID {
			continue
		}
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func dedupeAccounts(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func cloneRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	v := *ref
	return &v
}

// Package routing defines the routing configuration data model: profiles,
// provider groups, and the snapshot shape consumed by the proxy runtime.
package routing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConfigVersion is the schema version of the RoutingConfig snapshot.
const ConfigVersion = 1

// DefaultProfileID is the reserved id of the built-in profile. The profile
// with this id always exists and can never be deleted.
const DefaultProfileID = "default"

// DefaultProfileColor is the display color assigned to new profiles when the
// caller does not pick one.
const DefaultProfileColor = "#6366F1"

// Validation errors
var (
	ErrNoDefaultProfile     = errors.New("default profile is missing")
	ErrUnknownActiveProfile = errors.New("activeProfileId does not reference an existing profile")
	ErrDuplicateProfileName = errors.New("duplicate profile name")
	ErrDanglingGroupRef     = errors.New("routing rule references an unknown provider group")
	ErrDuplicateAccountID   = errors.New("provider group contains a duplicate account id")
)

// RequestType classifies an inbound AI request.
type RequestType string

const (
	RequestTypeChat       RequestType = "chat"
	RequestTypeCompletion RequestType = "completion"
	RequestTypeEmbedding  RequestType = "embedding"
	RequestTypeOther      RequestType = "other"
)

// RequestTypes lists every request type in routing-rule order.
var RequestTypes = []RequestType{
	RequestTypeChat,
	RequestTypeCompletion,
	RequestTypeEmbedding,
	RequestTypeOther,
}

// Valid reports whether t is a known request type.
func (t RequestType) Valid() bool {
	switch t {
	case RequestTypeChat, RequestTypeCompletion, RequestTypeEmbedding, RequestTypeOther:
		return true
	}
	return false
}

// SelectionStrategy determines how the proxy runtime picks one account from a
// provider group at request time.
type SelectionStrategy string

const (
	StrategyRoundRobin SelectionStrategy = "round-robin"
	StrategyPriority   SelectionStrategy = "priority"
	StrategyRandom     SelectionStrategy = "random"
)

// Valid reports whether s is a known selection strategy.
func (s SelectionStrategy) Valid() bool {
	switch s {
	case StrategyRoundRobin, StrategyPriority, StrategyRandom:
		return true
	}
	return false
}

// RoutingRules maps every request type to a provider group id. All four keys
// are always present in the wire shape; a null entry means the request type
// falls through to the profile's default provider group.
type RoutingRules struct {
	Chat       *string `json:"chat"`
	Completion *string `json:"completion"`
	Embedding  *string `json:"embedding"`
	Other      *string `json:"other"`
}

// Get returns the group id the request type is mapped to, or nil.
func (r *RoutingRules) Get(t RequestType) *string {
	switch t {
	case RequestTypeChat:
		return r.Chat
	case RequestTypeCompletion:
		return r.Completion
	case RequestTypeEmbedding:
		return r.Embedding
	case RequestTypeOther:
		return r.Other
	}
	return nil
}

// Set assigns the group id for the request type. Unknown request types are
// ignored and reported as false.
func (r *RoutingRules) Set(t RequestType, groupID *string) bool {
	switch t {
	case RequestTypeChat:
		r.Chat = groupID
	case RequestTypeCompletion:
		r.Completion = groupID
	case RequestTypeEmbedding:
		r.Embedding = groupID
	case RequestTypeOther:
		r.Other = groupID
	default:
		return false
	}
	return true
}

// Clone returns a deep copy of the rules.
func (r *RoutingRules) Clone() RoutingRules {
	return RoutingRules{
		Chat:       cloneRef(r.Chat),
		Completion: cloneRef(r.Completion),
		Embedding:  cloneRef(r.Embedding),
		Other:      cloneRef(r.Other),
	}
}

// Profile is a named, user-switchable bundle of routing rules.
type Profile struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	Color                string       `json:"color,omitempty"`
	Icon                 string       `json:"icon,omitempty"`
	RoutingRules         RoutingRules `json:"routingRules"`
	DefaultProviderGroup *string      `json:"defaultProviderGroup"`
	CreatedAt            time.Time    `json:"createdAt"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.RoutingRules = p.RoutingRules.Clone()
	out.DefaultProviderGroup = cloneRef(p.DefaultProviderGroup)
	return &out
}

// NewDefaultProfile builds the built-in profile created at first store
// initialization and restored by reset.
func NewDefaultProfile(now time.Time) *Profile {
	return &Profile{
		ID:        DefaultProfileID,
		Name:      "Default",
		Color:     DefaultProfileColor,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ProviderGroup is a named set of authenticated accounts plus the strategy
// used to pick one at request time.
type ProviderGroup struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	AccountIDs        []string          `json:"accountIds"`
	SelectionStrategy SelectionStrategy `json:"selectionStrategy"`
}

// Clone returns a deep copy of the group.
func (g *ProviderGroup) Clone() *ProviderGroup {
	if g == nil {
		return nil
	}
	out := *g
	out.AccountIDs = append([]string(nil), g.AccountIDs...)
	return &out
}

// RoutingConfig is the full synchronizable snapshot delivered to the proxy
// runtime's config file and to the tray.
type RoutingConfig struct {
	Version         int              `json:"version"`
	ActiveProfileID *string          `json:"activeProfileId"`
	Profiles        []*Profile       `json:"profiles"`
	ProviderGroups  []*ProviderGroup `json:"providerGroups"`
	ModelFamilies   ModelFamilies    `json:"modelFamilies"`
}

// Clone returns a deep copy of the snapshot.
func (c *RoutingConfig) Clone() *RoutingConfig {
	if c == nil {
		return nil
	}
	out := &RoutingConfig{
		Version:         c.Version,
		ActiveProfileID: cloneRef(c.ActiveProfileID),
		Profiles:        make([]*Profile, 0, len(c.Profiles)),
		ProviderGroups:  make([]*ProviderGroup, 0, len(c.ProviderGroups)),
		ModelFamilies:   c.ModelFamilies.Clone(),
	}
	for _, p := range c.Profiles {
		out.Profiles = append(out.Profiles, p.Clone())
	}
	for _, g := range c.ProviderGroups {
		out.ProviderGroups = append(out.ProviderGroups, g.Clone())
	}
	return out
}

// ActiveProfile resolves the active profile, or nil when unset.
func (c *RoutingConfig) ActiveProfile() *Profile {
	if c.ActiveProfileID == nil {
		return nil
	}
	return c.FindProfile(*c.ActiveProfileID)
}

// FindProfile returns the profile with the given id, or nil.
func (c *RoutingConfig) FindProfile(id string) *Profile {
	for _, p := range c.Profiles {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// FindGroup returns the provider group with the given id, or nil.
func (c *RoutingConfig) FindGroup(id string) *ProviderGroup {
	for _, g := range c.ProviderGroups {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// ToJSON serializes the snapshot to the on-disk wire shape.
func (c *RoutingConfig) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ParseConfig parses a snapshot from JSON data.
func ParseConfig(data []byte) (*RoutingConfig, error) {
	var cfg RoutingConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse routing config JSON: %w", err)
	}
	return &cfg, nil
}

// Validate checks the snapshot invariants and returns every violation found
// (empty if valid).
func (c *RoutingConfig) Validate() []error {
	var errs []error

	if c.FindProfile(DefaultProfileID) == nil {
		errs = append(errs, ErrNoDefaultProfile)
	}
	if c.ActiveProfileID != nil && c.FindProfile(*c.ActiveProfileID) == nil {
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownActiveProfile, *c.ActiveProfileID))
	}

	seenNames := make(map[string]bool, len(c.Profiles))
	for _, p := range c.Profiles {
		folded := strings.ToLower(p.Name)
		if seenNames[folded] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateProfileName, p.Name))
		}
		seenNames[folded] = true

		for _, t := range RequestTypes {
			if ref := p.RoutingRules.Get(t); ref != nil && c.FindGroup(*ref) == nil {
				errs = append(errs, fmt.Errorf("%w: profile %s rule %s -> %s", ErrDanglingGroupRef, p.ID, t, *ref))
			}
		}
		if p.DefaultProviderGroup != nil && c.FindGroup(*p.DefaultProviderGroup) == nil {
			errs = append(errs, fmt.Errorf("%w: profile %s default -> %s", ErrDanglingGroupRef, p.ID, *p.DefaultProviderGroup))
		}
	}

	for _, g := range c.ProviderGroups {
		seen := make(map[string]bool, len(g.AccountIDs))
		for _, id := range g.AccountIDs {
			if seen[id] {
				errs = append(errs, fmt.Errorf("%w: group %s account %s", ErrDuplicateAccountID, g.ID, id))
			}
			seen[id] = true
		}
	}

	return errs
}

// Ref wraps an id into a nullable reference.
func Ref(id string) *string {
	return &id
}

func cloneRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	v := *ref
	return &v
}

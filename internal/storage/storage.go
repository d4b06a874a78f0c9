// Package storage provides durable persistence for the routing configuration
// state. State is stored as a single namespaced JSON entry in a local
// key-value store.
package storage

import (
	"encoding/json"
	"fmt"

	"profilehub/internal/routing"
)

const (
	// StateKey is the fixed key the persisted state lives under.
	StateKey = "profile-storage"
	// StateVersion is the schema version of the persisted envelope.
	StateVersion = 1
)

// PersistedState is the durable triple written after every mutation. Model
// families and transient fields (loading/error/last-synced) are not
// persisted; families are recomputed as static defaults on load.
type PersistedState struct {
	Profiles        []*routing.Profile       `json:"profiles"`
	ProviderGroups  []*routing.ProviderGroup `json:"providerGroups"`
	ActiveProfileID *string                  `json:"activeProfileId"`
}

// envelope is the on-disk wrapper around the state.
type envelope struct {
	State   *PersistedState `json:"state"`
	Version int             `json:"version"`
}

// StateStore defines the durable state operations.
type StateStore interface {
	// Load returns the persisted state, or nil when none has been saved yet.
	Load() (*PersistedState, error)
	// Save writes the state, replacing any previous entry.
	Save(state *PersistedState) error
	// Close closes the store.
	Close() error
}

// EncodeState serializes the state into the persisted envelope shape.
func EncodeState(state *PersistedState) ([]byte, error) {
	data, err := json.Marshal(envelope{State: state, Version: StateVersion})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize state: %w", err)
	}
	return data, nil
}

// DecodeState parses a persisted envelope back into the state triple.
func DecodeState(data []byte) (*PersistedState, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse state JSON: %w", err)
	}
	if env.State == nil {
		return nil, nil
	}
	return env.State, nil
}

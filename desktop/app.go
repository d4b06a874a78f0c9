package main

import (
	"context"
	"fmt"
	"time"

	"profilehub/internal/routing"
	"profilehub/internal/store"
	"profilehub/internal/sync"
	"profilehub/internal/tray"
	"profilehub/internal/websocket"
)

// ProfileUpdateRequest is the partial profile update shape exposed to the
// frontend. Nil fields are left unchanged; ClearDefaultProviderGroup wins
// over DefaultProviderGroup.
type ProfileUpdateRequest struct {
	Name                      *string `json:"name,omitempty"`
	Color                     *string `json:"color,omitempty"`
	Icon                      *string `json:"icon,omitempty"`
	DefaultProviderGroup      *string `json:"defaultProviderGroup,omitempty"`
	ClearDefaultProviderGroup bool    `json:"clearDefaultProviderGroup,omitempty"`
}

// GroupUpdateRequest is the partial provider-group update shape exposed to
// the frontend.
type GroupUpdateRequest struct {
	Name              *string  `json:"name,omitempty"`
	AccountIDs        []string `json:"accountIds,omitempty"`
	SelectionStrategy *string  `json:"selectionStrategy,omitempty"`
}

// SyncStatus is the sync indicator state exposed to the frontend.
type SyncStatus struct {
	State      string     `json:"state"`
	LastSynced *time.Time `json:"lastSynced,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// App struct represents the Wails application controller
type App struct {
	ctx         context.Context
	store       *store.Store
	coordinator *sync.Coordinator
	bridge      *tray.Bridge
	wsHub       *websocket.Hub
}

// NewApp creates a new App application struct
func NewApp() *App {
	return &App{}
}

// startup is called when the app starts. The context is saved
// so we can call the runtime methods
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// SetStore sets the config store instance for the app
func (a *App) SetStore(s *store.Store) {
	a.store = s
}

// SetCoordinator sets the sync coordinator instance for the app
func (a *App) SetCoordinator(c *sync.Coordinator) {
	a.coordinator = c
}

// SetTrayBridge sets the tray bridge instance for the app
func (a *App) SetTrayBridge(b *tray.Bridge) {
	a.bridge = b
}

// SetWSHub sets the WebSocket hub instance for the app
func (a *App) SetWSHub(hub *websocket.Hub) {
	a.wsHub = hub
}

// =============================================================================
// Profile Methods
// =============================================================================

// GetProfiles returns all profiles in insertion order
func (a *App) GetProfiles() ([]*routing.Profile, error) {
	if a.store == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	return a.store.Profiles(), nil
}

// GetActiveProfile returns the active profile, or nil when none is active
func (a *App) GetActiveProfile() (*routing.Profile, error) {
	if a.store == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	return a.store.GetActiveProfile(), nil
}

// CreateProfile creates a new profile
func (a *App) CreateProfile(name, color, icon string) (*routing.Profile, error) {
	if a.store == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	return a.store.CreateProfile(name, color, icon)
}

// UpdateProfile applies a partial update to a profile
func (a *App) UpdateProfile(id string, req ProfileUpdateRequest) error {
	if a.store == nil {
		return fmt.Errorf("store not initialized")
	}

	update := store.ProfileUpdate{
		Name:  req.Name,
		Color: req.Color,
		Icon:  req.Icon,
	}
	if req.ClearDefaultProviderGroup {
		update.DefaultProviderGroup = store.ClearRef()
	} else if req.DefaultProviderGroup != nil {
		update.DefaultProviderGroup = store.SetRef(*req.DefaultProviderGroup)
	}
	return a.store.UpdateProfile(id, update)
}

// DeleteProfile removes a profile. The default profile cannot be deleted.
func (a *App) DeleteProfile(id string) (bool, error) {
	if a.store == nil {
		return false, fmt.Errorf("store not initialized")
	}
	return a.store.DeleteProfile(id), nil
}

// SetActiveProfile switches the active profile. An empty id clears it.
func (a *App) SetActiveProfile(id string) error {
	if a.store == nil {
		return fmt.Errorf("store not initialized")
	}
	if id == "" {
		a.store.SetActiveProfile(nil)
		return nil
	}
	a.store.SetActiveProfile(&id)
	return nil
}

// =============================================================================
// Provider Group Methods
// =============================================================================

// GetProviderGroups returns all provider groups in insertion order
func (a *App) GetProviderGroups() ([]*routing.ProviderGroup, error) {
	if a.store == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	return a.store.ProviderGroups(), nil
}

// CreateProviderGroup creates a new provider group
func (a *App) CreateProviderGroup(name string, accountIDs []string, strategy string) (*routing.ProviderGroup, error) {
	if a.store == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	return a.store.CreateProviderGroup(name, accountIDs, routing.SelectionStrategy(strategy)), nil
}

// UpdateProviderGroup applies a partial update to a provider group
func (a *App) UpdateProviderGroup(id string, req GroupUpdateRequest) error {
	if a.store == nil {
		return fmt.Errorf("store not initialized")
	}

	update := store.GroupUpdate{Name: req.Name}
	if req.AccountIDs != nil {
		ids := req.AccountIDs
		update.AccountIDs = &ids
	}
	if req.SelectionStrategy != nil {
		strategy := routing.SelectionStrategy(*req.SelectionStrategy)
		update.SelectionStrategy = &strategy
	}
	a.store.UpdateProviderGroup(id, update)
	return nil
}

// DeleteProviderGroup removes a group and clears every reference to it
func (a *App) DeleteProviderGroup(id string) (bool, error) {
	if a.store == nil {
		return false, fmt.Errorf("store not initialized")
	}
	return a.store.DeleteProviderGroup(id), nil
}

// AddAccountToGroup adds an account to a group (idempotent)
func (a *App) AddAccountToGroup(groupID, accountID string) error {
	if a.store == nil {
		return fmt.Errorf("store not initialized")
	}
	a.store.AddAccountToGroup(groupID, accountID)
	return nil
}

// RemoveAccountFromGroup removes an account from a group
func (a *App) RemoveAccountFromGroup(groupID, accountID string) error {
	if a.store == nil {
		return fmt.Errorf("store not initialized")
	}
	a.store.RemoveAccountFromGroup(groupID, accountID)
	return nil
}

// =============================================================================
// Routing Methods
// =============================================================================

// SetRoutingRule sets one routing-rule entry. An empty groupID clears it.
func (a *App) SetRoutingRule(profileID, requestType, groupID string) error {
	if a.store == nil {
		return fmt.Errorf("store not initialized")
	}
	var ref *string
	if groupID != "" {
		ref = &groupID
	}
	a.store.SetRoutingRule(profileID, routing.RequestType(requestType), ref)
	return nil
}

// GetRoutingConfig returns the full snapshot, including model families
func (a *App) GetRoutingConfig() (*routing.RoutingConfig, error) {
	if a.store == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	return a.store.GetRoutingConfig(), nil
}

// =============================================================================
// Sync Methods
// =============================================================================

// SyncNow pushes the current snapshot synchronously and returns the outcome
func (a *App) SyncNow() (sync.Result, error) {
	if a.store == nil || a.coordinator == nil {
		return sync.Result{}, fmt.Errorf("store not initialized")
	}
	return a.coordinator.Push(a.store.GetRoutingConfig()), nil
}

// GetSyncStatus returns the sync indicator state for the UI
func (a *App) GetSyncStatus() (SyncStatus, error) {
	if a.store == nil || a.coordinator == nil {
		return SyncStatus{}, fmt.Errorf("store not initialized")
	}

	state, _ := a.coordinator.Status()
	status := SyncStatus{
		State: string(state),
		Error: a.store.LastError(),
	}
	if synced := a.store.LastSynced(); !synced.IsZero() {
		status.LastSynced = &synced
	}
	return status, nil
}

// ResetConfig restores the default profile and empties provider groups
func (a *App) ResetConfig() error {
	if a.store == nil {
		return fmt.Errorf("store not initialized")
	}
	a.store.Reset()
	return nil
}

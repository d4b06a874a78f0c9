// Package tray adapts between snapshot pushes and the tray-menu presentation,
// and translates tray clicks back into active-profile changes.
package tray

import (
	"reflect"
	"sync"

	"profilehub/internal/logger"
	"profilehub/internal/routing"
)

// MenuItem is one profile entry in the tray menu.
type MenuItem struct {
	ProfileID string `json:"profileId"`
	Label     string `json:"label"`
	Color     string `json:"color,omitempty"`
	Icon      string `json:"icon,omitempty"`
	Active    bool   `json:"active"`
}

// MenuState is the full menu model the tray host renders: the profile list
// with the active one marked.
type MenuState struct {
	Items           []MenuItem `json:"items"`
	ActiveProfileID *string    `json:"activeProfileId"`
}

// Host renders menu state into an actual tray menu, e.g. by pushing it to the
// tray process over IPC.
type Host interface {
	RenderMenu(state MenuState) error
}

// Bridge is the bidirectional channel between the store-side sync push and
// the tray host.
// Menu state and callback registry are guarded separately so a profile
// selection can echo through the store back into SyncProfiles without
// re-entering the lock held around the callbacks.
type Bridge struct {
	renderMu sync.Mutex
	host     Host
	last     *MenuState
	log      *logger.Logger

	cbMu      sync.Mutex
	callbacks map[int64]func(profileID string)
	nextID    int64
}

// NewBridge creates a bridge. A nil host is tolerated; snapshots are then
// only recorded, which keeps headless tests simple.
func NewBridge(host Host, log *logger.Logger) *Bridge {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Bridge{
		host:      host,
		log:       log,
		callbacks: make(map[int64]func(string)),
	}
}

// SyncProfiles consumes a snapshot and re-renders the tray menu. Safe to call
// repeatedly: a snapshot producing the same menu as the last rendered one is
// skipped, which makes the store→tray→store echo a harmless no-op.
func (b *Bridge) SyncProfiles(cfg *routing.RoutingConfig) error {
	menu := buildMenu(cfg)

	b.renderMu.Lock()
	defer b.renderMu.Unlock()

	if b.last != nil && reflect.DeepEqual(*b.last, menu) {
		return nil
	}
	if b.host != nil {
		if err := b.host.RenderMenu(menu); err != nil {
			return err
		}
	}
	b.last = &menu
	return nil
}

// MenuState returns the last rendered menu, for hosts that need to re-render
// on reconnect. The second result is false when nothing has been synced yet.
func (b *Bridge) MenuState() (MenuState, bool) {
	b.renderMu.Lock()
	defer b.renderMu.Unlock()

	if b.last == nil {
		return MenuState{}, false
	}
	return *b.last, true
}

// OnProfileChanged registers a listener invoked whenever the user selects a
// profile from the tray. The returned function unsubscribes it; once it
// returns, the callback is never invoked again.
func (b *Bridge) OnProfileChanged(cb func(profileID string)) func() {
	b.cbMu.Lock()
	id := b.nextID
	b.nextID++
	b.callbacks[id] = cb
	b.cbMu.Unlock()

	return func() {
		b.cbMu.Lock()
		delete(b.callbacks, id)
		b.cbMu.Unlock()
	}
}

// ProfileSelected is invoked by the tray host when the user picks a profile.
// Callbacks run under the registry lock so an unsubscribe that has returned
// is guaranteed to see no further invocations.
func (b *Bridge) ProfileSelected(profileID string) {
	b.log.Debug("Tray selected profile %s", profileID)

	b.cbMu.Lock()
	defer b.cbMu.Unlock()

	for _, cb := range b.callbacks {
		cb(profileID)
	}
}

func buildMenu(cfg *routing.RoutingConfig) MenuState {
	menu := MenuState{Items: make([]MenuItem, 0, len(cfg.Profiles))}
	if cfg.ActiveProfileID != nil {
		id := *cfg.ActiveProfileID
		menu.ActiveProfileID = &id
	}
	for _, p := range cfg.Profiles {
		menu.Items = append(menu.Items, MenuItem{
			ProfileID: p.ID,
			Label:     p.Name,
			Color:     p.Color,
			Icon:      p.Icon,
			Active:    cfg.ActiveProfileID != nil && *cfg.ActiveProfileID == p.ID,
		})
	}
	return menu
}

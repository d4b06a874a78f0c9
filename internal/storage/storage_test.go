package storage

import (
	"testing"
	"time"

	"profilehub/internal/routing"
)

func sampleState() *PersistedState {
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	return &PersistedState{
		Profiles: []*routing.Profile{
			routing.NewDefaultProfile(now),
			{
				ID: "p1", Name: "Work", Color: "#FF5733",
				RoutingRules:         routing.RoutingRules{Chat: routing.Ref("g1")},
				DefaultProviderGroup: routing.Ref("g1"),
				CreatedAt:            now, UpdatedAt: now,
			},
		},
		ProviderGroups: []*routing.ProviderGroup{
			{ID: "g1", Name: "Fast", AccountIDs: []string{"a", "b"}, SelectionStrategy: routing.StrategyPriority},
		},
		ActiveProfileID: routing.Ref("p1"),
	}
}

func assertSampleState(t *testing.T, got *PersistedState) {
	t.Helper()
	if got == nil {
		t.Fatal("state is nil")
	}
	if len(got.Profiles) != 2 || len(got.ProviderGroups) != 1 {
		t.Fatalf("profiles=%d groups=%d", len(got.Profiles), len(got.ProviderGroups))
	}
	if got.ActiveProfileID == nil || *got.ActiveProfileID != "p1" {
		t.Fatalf("activeProfileId=%v", got.ActiveProfileID)
	}
	work := got.Profiles[1]
	if work.Name != "Work" {
		t.Fatalf("profile name=%s", work.Name)
	}
	if ref := work.RoutingRules.Get(routing.RequestTypeChat); ref == nil || *ref != "g1" {
		t.Fatalf("chat rule=%v", ref)
	}
	group := got.ProviderGroups[0]
	if group.SelectionStrategy != routing.StrategyPriority || len(group.AccountIDs) != 2 {
		t.Fatalf("group=%+v", group)
	}
}

func TestEncodeDecodeState(t *testing.T) {
	t.Parallel()

	data, err := EncodeState(sampleState())
	if err != nil {
		t.Fatalf("EncodeState err=%v", err)
	}

	got, err := DecodeState(data)
	if err != nil {
		t.Fatalf("DecodeState err=%v", err)
	}
	assertSampleState(t, got)
}

func TestDecodeState_EmptyEnvelope(t *testing.T) {
	t.Parallel()

	got, err := DecodeState([]byte(`{"version":1}`))
	if err != nil {
		t.Fatalf("DecodeState err=%v", err)
	}
	if got != nil {
		t.Fatalf("expected nil state, got %+v", got)
	}

	if _, err := DecodeState([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestMemoryStateStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStateStore()

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if got != nil {
		t.Fatalf("fresh store should load nil, got %+v", got)
	}

	if err := store.Save(sampleState()); err != nil {
		t.Fatalf("Save err=%v", err)
	}
	got, err = store.Load()
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	assertSampleState(t, got)
}

func TestSQLiteStateStore(t *testing.T) {
	path := t.TempDir() + "/sub/state.sqlite"

	store, err := OpenSQLiteStateStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStateStore err=%v", err)
	}
	defer store.Close()

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if got != nil {
		t.Fatalf("fresh db should load nil, got %+v", got)
	}

	if err := store.Save(sampleState()); err != nil {
		t.Fatalf("Save err=%v", err)
	}

	// Save must replace, not accumulate.
	replaced := sampleState()
	replaced.ActiveProfileID = routing.Ref(routing.DefaultProfileID)
	if err := store.Save(replaced); err != nil {
		t.Fatalf("second Save err=%v", err)
	}

	got, err = store.Load()
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if got == nil || got.ActiveProfileID == nil || *got.ActiveProfileID != routing.DefaultProfileID {
		t.Fatalf("activeProfileId=%v, want default", got.ActiveProfileID)
	}
}

func TestSQLiteStateStore_SurvivesReopen(t *testing.T) {
	path := t.TempDir() + "/state.sqlite"

	store, err := OpenSQLiteStateStore(path)
	if err != nil {
		t.Fatalf("open err=%v", err)
	}
	if err := store.Save(sampleState()); err != nil {
		t.Fatalf("Save err=%v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close err=%v", err)
	}

	reopened, err := OpenSQLiteStateStore(path)
	if err != nil {
		t.Fatalf("reopen err=%v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	assertSampleState(t, got)
}

func TestOpenSQLiteStateStore_EmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := OpenSQLiteStateStore("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

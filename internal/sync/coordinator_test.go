package sync

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"profilehub/internal/routing"
)

func testConfig(active string) *routing.RoutingConfig {
	return &routing.RoutingConfig{
		Version:         routing.ConfigVersion,
		ActiveProfileID: routing.Ref(active),
		Profiles:        []*routing.Profile{routing.NewDefaultProfile(time.Now())},
		ModelFamilies:   routing.DefaultModelFamilies(),
	}
}

// recordingSink captures every snapshot it is handed and can be made to fail
// or block on demand.
type recordingSink struct {
	mu      sync.Mutex
	configs []*routing.RoutingConfig
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *recordingSink) WriteConfig(cfg *routing.RoutingConfig) error {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.configs = append(s.configs, cfg)
	return nil
}

func (s *recordingSink) received() []*routing.RoutingConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*routing.RoutingConfig(nil), s.configs...)
}

type recordingTray struct {
	mu      sync.Mutex
	configs []*routing.RoutingConfig
	err     error
}

func (t *recordingTray) SyncProfiles(cfg *routing.RoutingConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.configs = append(t.configs, cfg)
	return nil
}

func (t *recordingTray) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.configs)
}

func TestPush_Success(t *testing.T) {
	sink := &recordingSink{}
	trayTarget := &recordingTray{}
	c := NewCoordinator(sink, trayTarget, nil)

	res := c.Push(testConfig("default"))
	if !res.Success {
		t.Fatalf("result=%+v", res)
	}
	if res.SyncedAt.IsZero() {
		t.Fatal("SyncedAt not set")
	}
	if len(sink.received()) != 1 || trayTarget.count() != 1 {
		t.Fatalf("sink=%d tray=%d, want 1/1", len(sink.received()), trayTarget.count())
	}

	state, last := c.Status()
	if state != StateSynced {
		t.Fatalf("state=%s, want synced", state)
	}
	if !last.Success {
		t.Fatalf("lastResult=%+v", last)
	}
}

func TestPush_SinkFailureStillReachesTray(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	trayTarget := &recordingTray{}
	c := NewCoordinator(sink, trayTarget, nil)

	res := c.Push(testConfig("default"))
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error == "" {
		t.Fatal("error message not set")
	}
	if trayTarget.count() != 1 {
		t.Fatalf("tray=%d, want 1 (targets are independent)", trayTarget.count())
	}

	state, _ := c.Status()
	if state != StateErrored {
		t.Fatalf("state=%s, want errored", state)
	}
}

func TestPush_FirstErrorWins(t *testing.T) {
	sink := &recordingSink{err: errors.New("sink boom")}
	trayTarget := &recordingTray{err: errors.New("tray boom")}
	c := NewCoordinator(sink, trayTarget, nil)

	res := c.Push(testConfig("default"))
	if res.Success {
		t.Fatal("expected failure")
	}
	if want := "config sink: sink boom"; res.Error != want {
		t.Fatalf("error=%q, want %q", res.Error, want)
	}
}

func TestPush_NilTargets(t *testing.T) {
	c := NewCoordinator(nil, nil, nil)

	if res := c.Push(testConfig("default")); !res.Success {
		t.Fatalf("result=%+v, nil targets should succeed", res)
	}
}

func TestNotify_CoalescesBurst(t *testing.T) {
	sink := &recordingSink{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := NewCoordinator(sink, nil, nil)

	results := make(chan Result, 8)
	c.SetOnResult(func(res Result) { results <- res })

	go c.Run()
	defer c.Stop()

	first := testConfig("first")
	c.Notify(first)
	<-sink.started // first push is now in flight

	// These land while the worker is busy; only the last may survive.
	c.Notify(testConfig("dropped"))
	last := testConfig("last")
	c.Notify(last)

	sink.release <- struct{}{}
	waitResult(t, results)

	// The worker drains the coalesced snapshot next.
	<-sink.started
	sink.release <- struct{}{}
	waitResult(t, results)

	got := sink.received()
	if len(got) != 2 {
		t.Fatalf("pushes=%d, want 2 (burst coalesced)", len(got))
	}
	if *got[0].ActiveProfileID != "first" || *got[1].ActiveProfileID != "last" {
		t.Fatalf("pushed [%s, %s], want [first, last]",
			*got[0].ActiveProfileID, *got[1].ActiveProfileID)
	}
}

func TestNotify_ResultCallback(t *testing.T) {
	sink := &recordingSink{}
	c := NewCoordinator(sink, nil, nil)

	results := make(chan Result, 1)
	c.SetOnResult(func(res Result) { results <- res })

	go c.Run()
	defer c.Stop()

	c.Notify(testConfig("default"))
	res := waitResult(t, results)
	if !res.Success {
		t.Fatalf("result=%+v", res)
	}

	state, _ := c.Status()
	if state != StateSynced {
		t.Fatalf("state=%s, want synced", state)
	}
}

func TestStop_DropsPending(t *testing.T) {
	sink := &recordingSink{}
	c := NewCoordinator(sink, nil, nil)

	c.Stop()
	done := make(chan struct{})
	go func() {
		c.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	// Snapshots scheduled after the loop exits are never delivered.
	c.Notify(testConfig("default"))
	if len(sink.received()) != 0 {
		t.Fatal("snapshot pushed after Stop")
	}

	// Stop is idempotent.
	c.Stop()
}

func TestFileConfigSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "routing.json")
	sink := NewFileConfigSink(path)

	cfg := testConfig("default")
	if err := sink.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig err=%v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	parsed, err := routing.ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig err=%v", err)
	}
	if parsed.ActiveProfileID == nil || *parsed.ActiveProfileID != "default" {
		t.Fatalf("activeProfileId=%v", parsed.ActiveProfileID)
	}

	// Overwrites replace the file and leave no temp file behind.
	cfg.ActiveProfileID = nil
	if err := sink.WriteConfig(cfg); err != nil {
		t.Fatalf("second WriteConfig err=%v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	data, _ = os.ReadFile(path)
	parsed, err = routing.ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig err=%v", err)
	}
	if parsed.ActiveProfileID != nil {
		t.Fatalf("activeProfileId=%v, want nil", parsed.ActiveProfileID)
	}
}

func TestFileConfigSink_EmptyPath(t *testing.T) {
	sink := NewFileConfigSink("")
	if err := sink.WriteConfig(testConfig("default")); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func waitResult(t *testing.T, ch chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sync result")
		return Result{}
	}
}

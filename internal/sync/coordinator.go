// Package sync propagates routing configuration snapshots to the downstream
// consumers: the on-disk config file read by the proxy runtime, and the tray
// menu. Pushes never block or roll back the store mutation that triggered
// them; a failed round is retried implicitly by the next mutation.
package sync

import (
	"fmt"
	"sync"
	"time"

	"profilehub/internal/logger"
	"profilehub/internal/routing"
)

// State is the coordinator's sync state machine.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateSynced  State = "synced"
	StateErrored State = "errored"
)

// Result reports the outcome of one push round. A failure in either target
// sets Success false and records the first error encountered; the store's
// local state stays authoritative either way.
type Result struct {
	Success  bool      `json:"success"`
	Error    string    `json:"error,omitempty"`
	SyncedAt time.Time `json:"syncedAt"`
}

// ConfigSink receives snapshots destined for the proxy runtime.
type ConfigSink interface {
	WriteConfig(cfg *routing.RoutingConfig) error
}

// TrayNotifier receives snapshots destined for the tray menu.
type TrayNotifier interface {
	SyncProfiles(cfg *routing.RoutingConfig) error
}

// Coordinator pushes snapshots to both targets. Fire-and-forget delivery goes
// through Notify, which keeps only the latest pending snapshot: a burst of
// mutations collapses to one push of the final state.
type Coordinator struct {
	sink ConfigSink
	tray TrayNotifier
	log  *logger.Logger

	mu         sync.Mutex
	state      State
	lastResult Result
	pending    *routing.RoutingConfig
	onResult   func(Result)

	wake    chan struct{}
	stopCh  chan struct{}
	stopped sync.Once
}

// NewCoordinator creates a coordinator. Either target may be nil, in which
// case it is skipped. Start the delivery loop with `go c.Run()`.
func NewCoordinator(sink ConfigSink, tray TrayNotifier, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Coordinator{
		sink:   sink,
		tray:   tray,
		log:    log,
		state:  StateIdle,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
}

// SetOnResult registers a callback invoked after every push round, e.g. to
// record the sync status on the store. Set before Run.
func (c *Coordinator) SetOnResult(cb func(Result)) {
	c.mu.Lock()
	c.onResult = cb
	c.mu.Unlock()
}

// Run drains pending snapshots until Stop is called.
func (c *Coordinator) Run() {
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.wake:
			for {
				c.mu.Lock()
				cfg := c.pending
				c.pending = nil
				if cfg != nil {
					c.state = StateSyncing
				}
				c.mu.Unlock()

				if cfg == nil {
					break
				}
				c.finish(c.pushRound(cfg))
			}
		}
	}
}

// Stop terminates the delivery loop. In-flight rounds run to completion;
// snapshots still pending are dropped.
func (c *Coordinator) Stop() {
	c.stopped.Do(func() { close(c.stopCh) })
}

// Notify schedules a snapshot for delivery, replacing any not-yet-pushed one.
// Never blocks.
func (c *Coordinator) Notify(cfg *routing.RoutingConfig) {
	c.mu.Lock()
	c.pending = cfg
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Push delivers a snapshot synchronously and returns the round's result.
// Used by callers that need the outcome, e.g. the UI's explicit sync action.
func (c *Coordinator) Push(cfg *routing.RoutingConfig) Result {
	c.mu.Lock()
	c.state = StateSyncing
	c.mu.Unlock()

	res := c.pushRound(cfg)
	c.finish(res)
	return res
}

// Status returns the current state and the result of the last completed
// round.
func (c *Coordinator) Status() (State, Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.lastResult
}

// pushRound attempts both targets independently; both are always tried, and
// the first error encountered is the round's error.
func (c *Coordinator) pushRound(cfg *routing.RoutingConfig) Result {
	var firstErr error

	if c.sink != nil {
		if err := c.sink.WriteConfig(cfg); err != nil {
			firstErr = fmt.Errorf("config sink: %w", err)
			c.log.Warn("Failed to write routing config: %v", err)
		}
	}
	if c.tray != nil {
		if err := c.tray.SyncProfiles(cfg); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("tray: %w", err)
			}
			c.log.Warn("Failed to sync profiles to tray: %v", err)
		}
	}

	res := Result{Success: firstErr == nil, SyncedAt: time.Now()}
	if firstErr != nil {
		res.Error = firstErr.Error()
	}
	return res
}

func (c *Coordinator) finish(res Result) {
	c.mu.Lock()
	if res.Success {
		c.state = StateSynced
	} else {
		c.state = StateErrored
	}
	c.lastResult = res
	cb := c.onResult
	c.mu.Unlock()

	if cb != nil {
		cb(res)
	}
}

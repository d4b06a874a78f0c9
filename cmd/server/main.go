// Package main provides the headless server mode for Profile Hub: the config
// store, sync coordinator, and WebSocket IPC without the GUI shell.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"profilehub/internal/config"
	"profilehub/internal/routing"
	"profilehub/internal/storage"
	"profilehub/internal/store"
	appsync "profilehub/internal/sync"
	"profilehub/internal/tray"
	"profilehub/internal/websocket"
)

// Default configuration values
const (
	DefaultPort = 5700
)

// wsTrayHost renders tray menu state by broadcasting it to the tray process
// over the WebSocket hub.
type wsTrayHost struct {
	hub *websocket.Hub
}

func (h *wsTrayHost) RenderMenu(state tray.MenuState) error {
	h.hub.BroadcastTrayMenu(state)
	return nil
}

func main() {
	log.SetPrefix("[profilehub] ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("Starting Profile Hub in headless mode...")

	dataDir := config.GetDataDir()
	port := DefaultPort
	if envPort := config.GetPortFromEnv(); envPort > 0 {
		port = envPort
	}
	log.Printf("Configuration: port=%d, dataDir=%s", port, dataDir)

	stateStore, err := storage.OpenSQLiteStateStore(config.StateDBPath(dataDir))
	if err != nil {
		log.Fatalf("Failed to open state db: %v", err)
	}
	defer stateStore.Close()

	configStore, err := store.New(stateStore, nil)
	if err != nil {
		log.Fatalf("Failed to initialize config store: %v", err)
	}
	log.Println("Config store initialized successfully")

	wsHub := websocket.NewHub()
	go wsHub.Run()
	defer wsHub.Stop()

	bridge := tray.NewBridge(&wsTrayHost{hub: wsHub}, nil)
	wsHub.SetSelectHandler(bridge.ProfileSelected)
	unsubscribeTray := bridge.OnProfileChanged(func(profileID string) {
		configStore.SetActiveProfile(&profileID)
	})
	defer unsubscribeTray()

	sink := appsync.NewFileConfigSink(config.RoutingConfigPath(dataDir))
	coordinator := appsync.NewCoordinator(sink, bridge, nil)
	coordinator.SetOnResult(func(res appsync.Result) {
		configStore.SetSyncStatus(res.SyncedAt, res.Error)
		wsHub.BroadcastSyncResult(res)
	})
	go coordinator.Run()
	defer coordinator.Stop()

	unsubscribeStore := configStore.Subscribe(func(cfg *routing.RoutingConfig) {
		coordinator.Notify(cfg)
		wsHub.BroadcastRoutingConfig(cfg)
	})
	defer unsubscribeStore()

	// Write the current state once at startup so the proxy runtime picks up
	// the config even when nothing changes this session.
	result := coordinator.Push(configStore.GetRoutingConfig())
	if result.Success {
		log.Printf("Routing config written to %s", sink.Path())
	} else {
		log.Printf("Warning: initial sync failed: %s", result.Error)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHub.HandleWebSocket)
	ipcServer := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}
	go func() {
		log.Printf("IPC server listening on %s", ipcServer.Addr)
		if err := ipcServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("IPC server error: %v", err)
		}
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := ipcServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error stopping IPC server: %v", err)
	}
	log.Println("Shutdown complete")
}

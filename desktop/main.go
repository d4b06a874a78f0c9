package main

import (
	"context"
	"embed"
	"fmt"
	"log"
	"net/http"
	"time"

	"profilehub/internal/config"
	"profilehub/internal/routing"
	"profilehub/internal/storage"
	"profilehub/internal/store"
	appsync "profilehub/internal/sync"
	"profilehub/internal/tray"
	"profilehub/internal/websocket"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:ui/dist
var assets embed.FS

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

	log.Println("Starting Profile Hub in GUI mode...")

	dataDir := config.GetDataDir()
	log.Printf("Data directory: %s", dataDir)

	// Durable state store; fall back to memory so the app still opens when
	// the database is unusable (edits then won't survive a restart).
	var stateStore storage.StateStore
	if db, err := storage.OpenSQLiteStateStore(config.StateDBPath(dataDir)); err != nil {
		log.Printf("Warning: Failed to open state db, state will not persist: %v", err)
		stateStore = storage.NewMemoryStateStore()
	} else {
		stateStore = db
		log.Printf("State db: %s", config.StateDBPath(dataDir))
	}

	configStore, err := store.New(stateStore, nil)
	if err != nil {
		log.Fatalf("Failed to initialize config store: %v", err)
	}

	// IPC port priority: PORT environment variable, then default.
	port := DefaultPort
	if envPort := config.GetPortFromEnv(); envPort > 0 {
		port = envPort
		log.Printf("Using port from PORT environment variable: %d", port)
	}

	// WebSocket hub for the tray process and any other IPC consumers.
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Tray bridge renders through the hub; tray selections flow back into
	// the store, which re-triggers a sync round (idempotent echo).
	bridge := tray.NewBridge(&wsTrayHost{hub: wsHub}, nil)
	wsHub.SetSelectHandler(bridge.ProfileSelected)
	unsubscribeTray := bridge.OnProfileChanged(func(profileID string) {
		configStore.SetActiveProfile(&profileID)
	})

	// Sync coordinator pushes snapshots to the proxy runtime's config file
	// and to the tray, and feeds outcomes back to the store and the UI.
	sink := appsync.NewFileConfigSink(config.RoutingConfigPath(dataDir))
	coordinator := appsync.NewCoordinator(sink, bridge, nil)
	coordinator.SetOnResult(func(res appsync.Result) {
		configStore.SetSyncStatus(res.SyncedAt, res.Error)
		wsHub.BroadcastSyncResult(res)
	})
	go coordinator.Run()

	unsubscribeStore := configStore.Subscribe(func(cfg *routing.RoutingConfig) {
		coordinator.Notify(cfg)
		wsHub.BroadcastRoutingConfig(cfg)
	})

	// Deliver the current state once at startup so the proxy runtime and the
	// tray come up consistent even if nothing is mutated this session.
	coordinator.Notify(configStore.GetRoutingConfig())

	// IPC endpoint for the tray process.
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHub.HandleWebSocket)
	ipcServer := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}
	go func() {
		log.Printf("IPC server listening on %s", ipcServer.Addr)
		if err := ipcServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("IPC server error: %v", err)
		}
	}()

	// Create the app instance and wire up all components
	app := NewApp()
	app.SetStore(configStore)
	app.SetCoordinator(coordinator)
	app.SetTrayBridge(bridge)
	app.SetWSHub(wsHub)

	err = wails.Run(&options.App{
		Title:  "Profile Hub",
		Width:  1200,
		Height: 800,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup:        app.startup,
		OnShutdown: func(ctx context.Context) {
			log.Println("Shutting down...")
			unsubscribeTray()
			unsubscribeStore()
			coordinator.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := ipcServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error stopping IPC server: %v", err)
			}
			wsHub.Stop()
			if err := stateStore.Close(); err != nil {
				log.Printf("Error closing state db: %v", err)
			}
			log.Println("Shutdown complete")
		},
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		log.Printf("Error: %v", err.Error())
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/drawmap/backend/internal/api"
	"github.com/drawmap/backend/internal/config"
	"github.com/drawmap/backend/internal/editor"
	"github.com/drawmap/backend/internal/idalloc"
	"github.com/drawmap/backend/internal/kvstore"
	"github.com/drawmap/backend/internal/queue"
	"github.com/drawmap/backend/internal/remote"
	"github.com/drawmap/backend/internal/repair"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Optional .env for local development; a missing file is fine.
	godotenv.Load()

	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	configPath := filepath.Join(exeDir, "drawmap.yaml")
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Pick the persistence backend: a remote keyed store when configured,
	// otherwise the local sqlite store.
	var backend remote.Store
	mode := "Local"
	if cfg.Remote.BaseURL != "" {
		backend = remote.NewClient(cfg.Remote.BaseURL, time.Duration(cfg.Remote.TimeoutSeconds)*time.Second)
		mode = "Remote"
	} else {
		local, err := kvstore.Open(cfg.GetDatabasePath())
		if err != nil {
			fmt.Printf("Failed to open local store: %v\n", err)
			os.Exit(1)
		}
		defer local.Close()
		backend = local
	}

	// Load the persisted dataset and run the schema repair pipeline.
	bootCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	raw, err := backend.List(bootCtx)
	cancel()
	if err != nil {
		fmt.Printf("Failed to load persisted data: %v\n", err)
		os.Exit(1)
	}

	modelStore, report, err := repair.Load(raw, idalloc.New())
	if err != nil {
		fmt.Printf("Failed to repair persisted data: %v\n", err)
		os.Exit(1)
	}

	q := queue.New(backend,
		cfg.Queue.MaxAttempts,
		time.Duration(cfg.Queue.BaseDelayMillis)*time.Millisecond,
		time.Duration(cfg.Queue.MaxDelaySeconds)*time.Second,
	)
	defer q.Close()

	persister := queue.NewPersister(modelStore, q)

	if report.Changed() {
		// ID migrations rewrite types/statuses/colors and the references
		// into them, so every dataset key is re-saved, not just projects.
		fmt.Println("[Repair] persisted data was repaired, re-saving")
		if err := persister.SaveDataset(); err != nil {
			fmt.Printf("[Repair] re-save failed: %v\n", err)
		}
	}

	hub := api.NewEventHub()
	q.Subscribe(hub.QueueListener())

	editorMgr := editor.NewManager(modelStore, persister,
		time.Duration(cfg.Editor.FrameIntervalMillis)*time.Millisecond,
		hub.NotifyRepaint,
	)

	// Background editor session cleanup
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Editor.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n := editorMgr.CleanupOldSessions(time.Duration(cfg.Editor.SessionTimeoutMinutes) * time.Minute); n > 0 {
				fmt.Printf("[Editor] cleaned up %d idle sessions\n", n)
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || strings.HasPrefix(path, "/api/ws/")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
		LogLevel:          0,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
		},
		ErrorMessage: "Request timeout",
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	handlers := api.NewHandlers(&api.Dependencies{
		Backend:   backend,
		Store:     modelStore,
		Queue:     q,
		EditorMgr: editorMgr,
		Hub:       hub,
		Version:   Version,
	})
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Map Editor Server                               ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Store:      %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	e.Logger.Fatal(e.StartServer(s))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"thinkstudio/internal/api"
	"thinkstudio/internal/catalog"
	"thinkstudio/internal/config"
	"thinkstudio/internal/diagnostic"
	"thinkstudio/internal/search"
	"thinkstudio/internal/semantic"
	"thinkstudio/internal/session"
	"thinkstudio/internal/storage"
	"thinkstudio/internal/tension"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the thinkstudio server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running thinkstudio server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show thinkstudio system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "thinkstudio.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// loadContent resolves the catalog, themes and lenses from config,
// falling back to the built-in sample catalog and curated defaults.
func loadContent(cfg config.Config) (*catalog.Store, []diagnostic.Theme, []tension.Axis, error) {
	var store *catalog.Store
	var err error
	if cfg.Catalog.Path != "" {
		store, err = catalog.Load(cfg.Catalog.Path)
	} else {
		store, err = catalog.LoadEmbedded()
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading catalog: %w", err)
	}

	themes := diagnostic.DefaultThemes()
	axes := tension.DefaultAxes()
	if cfg.Catalog.ContentPack != "" {
		f, err := os.Open(cfg.Catalog.ContentPack)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening content pack: %w", err)
		}
		defer f.Close()
		themes, err = diagnostic.LoadThemes(f)
		if err != nil {
			return nil, nil, nil, err
		}
		if _, err := f.Seek(0, 0); err != nil {
			return nil, nil, nil, fmt.Errorf("rewinding content pack: %w", err)
		}
		axes, err = tension.LoadAxes(f)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return store, themes, axes, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "thinkstudio version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("thinkstudio is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("thinkstudio is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load catalog and curated content.
	catalogStore, themes, axes, err := loadContent(cfg)
	if err != nil {
		return err
	}
	slog.Info("catalog loaded", "records", catalogStore.Len())

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Optional semantic backend. Search degrades to keyword matching
	// when it is absent or misbehaving.
	var backend search.Backend
	if cfg.Semantic.BaseURL != "" {
		timeout, err := time.ParseDuration(cfg.Semantic.Timeout)
		if err != nil {
			slog.Warn("invalid semantic timeout, using default 3s", "value", cfg.Semantic.Timeout, "error", err)
			timeout = 3 * time.Second
		}
		client := semantic.NewClient(cfg.Semantic.BaseURL, timeout)
		backend = client

		// Index in the background; searches before indexing finishes
		// fall back to keyword matching.
		go func() {
			if err := client.IndexCatalog(ctx, catalogStore.All()); err != nil {
				slog.Warn("catalog indexing failed, keyword search only", "error", err)
			}
		}()
	}

	engine := search.NewEngine(catalogStore, backend, cfg.Semantic.TopK)
	sessions := session.NewManager(store, themes, axes)

	appHandler := api.NewAppHandler(api.AppDeps{
		Catalog:   catalogStore,
		Search:    engine,
		Sessions:  sessions,
		TopShifts: cfg.Tension.TopShifts,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Catalog:   catalogStore,
		Search:    engine,
		Sessions:  sessions,
		TopShifts: cfg.Tension.TopShifts,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "thinkstudio listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("thinkstudio is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop thinkstudio (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to thinkstudio (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if cfg.Semantic.BaseURL == "" {
		printStatus("Semantic search", "disabled (keyword matching only)")
	} else {
		if _, err := client.Get(cfg.Semantic.BaseURL + "/health"); err != nil {
			printStatus("Semantic search", "backend not reachable at %s", cfg.Semantic.BaseURL)
		} else {
			printStatus("Semantic search", "backend at %s", cfg.Semantic.BaseURL)
		}
	}

	if running {
		statsResp, err := client.Get(serverURL + "/catalog/stats")
		if err == nil {
			var stats catalog.Stats
			if decodeJSON(statsResp, &stats) == nil {
				printStatus("Catalog", "%d records, %d countries, years %d to %d", stats.Records, stats.Countries, stats.YearMin, stats.YearMax)
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

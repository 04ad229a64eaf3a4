package main

import (
	"context"
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

	"github.com/kalambet/minimemo/internal/api"
	"github.com/kalambet/minimemo/internal/assetcache"
	"github.com/kalambet/minimemo/internal/config"
	"github.com/kalambet/minimemo/internal/storage"
)

// shellPaths are the same-origin assets prewarmed on startup so the app
// keeps working when the upstream origin is unreachable.
var shellPaths = []string{
	"/",
	"/index.html",
	"/index.tsx",
	"/manifest.json",
	"/icon.svg",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the minimemo server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		prewarm, _ := cmd.Flags().GetBool("prewarm")
		return runServer(prewarm)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running minimemo server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show minimemo system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().Bool("prewarm", false, "fetch the app shell into the asset cache on startup")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "minimemo.pid")
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

func runServer(prewarm bool) error {
	fmt.Fprintf(os.Stderr, "minimemo version %s\n", version)

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
			printWarning("minimemo is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("minimemo is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	// Activate the asset cache generation; older generations are purged.
	printStep("Activating asset cache %s...", cfg.Cache.Version)
	assets, err := assetcache.New(assetcache.Config{
		Dir:     filepath.Join(cfg.Storage.DataDir, "assets"),
		Version: cfg.Cache.Version,
		Origin:  cfg.Cache.Origin,
	})
	if err != nil {
		return fmt.Errorf("initializing asset cache: %w", err)
	}
	if err := assets.Activate(); err != nil {
		return fmt.Errorf("activating asset cache: %w", err)
	}
	slog.Info("asset cache activated", "version", cfg.Cache.Version)

	if prewarm {
		printStep("Prewarming app shell...")
		if err := assets.Install(ctx, shellPaths); err != nil {
			printWarning("shell prewarm failed: %v", err)
		} else {
			slog.Info("app shell prewarmed", "paths", len(shellPaths))
		}
	}

	// Build HTTP handler and server.
	appHandler := api.NewAppHandler(api.AppDeps{
		Store:  store,
		Token:  cfg.Server.APIToken,
		Assets: assets,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	// Build and start MCP server (stdio plus SSE on its own port).
	mcpSrv := api.NewMCPServer(api.MCPDeps{Store: store})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	sseSrv := server.NewSSEServer(mcpSrv)
	go func() {
		mcpAddr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort)
		if err := sseSrv.Start(mcpAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("MCP SSE server error", "error", err)
		}
	}()
	slog.Info("MCP server started", "sse_port", cfg.Server.MCPPort)

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "minimemo listening on %s\n", addr)
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
	sseSrv.Shutdown(shutdownCtx)
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
		printError("minimemo is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop minimemo (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to minimemo (PID %d)", pid)
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

	running := false
	resp, err := client.Get(serverURL + "/health")
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

	// Show note/category counts if the server is up.
	if running {
		if apiC, err := newAPIClient(); err == nil {
			ctx := context.Background()
			if notesResp, err := apiC.get(ctx, "/api/notes"); err == nil {
				var listing struct {
					Notes []struct {
						ID string `json:"id"`
					} `json:"notes"`
				}
				if decodeJSON(notesResp, &listing) == nil {
					printStatus("Notes", "%d", len(listing.Notes))
				}
			}
			if catResp, err := apiC.get(ctx, "/api/categories"); err == nil {
				var listing struct {
					Categories []string `json:"categories"`
				}
				if decodeJSON(catResp, &listing) == nil {
					printStatus("Categories", "%d", len(listing.Categories))
				}
			}
		}
	}

	printStatus("MCP port", "%d", cfg.Server.MCPPort)
	printStatus("Cache version", "%s", cfg.Cache.Version)
	printStatus("Origin", "%s", cfg.Cache.Origin)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// Command broker runs the console-mcp developer observability daemon: a
// WebSocket endpoint for browser extension clients and an HTTP surface for
// tool-server processes, both bound to loopback.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/console-mcp/broker/internal/config"
	"github.com/console-mcp/broker/internal/correlator"
	"github.com/console-mcp/broker/internal/hub"
	"github.com/console-mcp/broker/internal/httpapi"
	"github.com/console-mcp/broker/internal/logging"
	"github.com/console-mcp/broker/internal/model"
	"github.com/console-mcp/broker/internal/spawn"
	"github.com/console-mcp/broker/internal/store"
	"github.com/console-mcp/broker/internal/tabs"
)

func main() {
	devMode := flag.Bool("dev", false, "Development mode (human-readable console logging)")
	flag.Parse()

	log, err := logging.New(*devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := config.Load()
	serverID := uuid.NewString()

	spawnOpts := spawn.Options{
		DiscoveryPort: cfg.DiscoveryPort,
		LockTimeout:   cfg.SpawnLockTimeout,
		ReadyTimeout:  cfg.SpawnReadyTimeout,
	}
	if err := spawn.WritePIDFile(spawnOpts); err != nil {
		logging.Component(log, "main").Warnw("failed to write pid file", "error", err)
	}
	defer spawn.RemovePIDFile(spawnOpts)

	logStore := store.New[model.LogEntry](cfg.MaxLogs, cfg.LogTTL)
	netStore := store.New[model.NetEntry](cfg.MaxNetwork, cfg.LogTTL)
	registry := tabs.New()

	h := hub.New(logging.Component(log, "hub"), logStore, netStore, registry, cfg.HeartbeatInterval)
	corr := correlator.New(h.SendCommand)
	h.SetResolver(corr.Resolve)

	api := httpapi.New(logging.Component(log, "httpapi"), cfg, serverID, logStore, netStore, registry, corr, h)

	wsServer := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.WSPort),
		Handler: h,
	}
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.DiscoveryPort),
		Handler: api,
	}

	go h.Run()

	errCh := make(chan error, 2)
	go func() {
		logging.Component(log, "main").Infow("websocket hub listening", "addr", wsServer.Addr)
		errCh <- wsServer.ListenAndServe()
	}()
	go func() {
		logging.Component(log, "main").Infow("http surface listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		logging.Component(log, "main").Infow("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logging.Component(log, "main").Errorw("server error", "error", err)
		}
	}

	corr.Shutdown()
	h.Close()
	_ = wsServer.Close()
	_ = httpServer.Close()
}

package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"log/slog"

	"github.com/spf13/cobra"
	"github.com/user/campaignd/internal/approval"
	"github.com/user/campaignd/internal/gate"
	"github.com/user/campaignd/internal/orchestrator"
	"github.com/user/campaignd/internal/poll"
	"github.com/user/campaignd/internal/provider"
	"github.com/user/campaignd/internal/server"
	"github.com/user/campaignd/internal/session"
	"github.com/user/campaignd/internal/types"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&resumeSession, "resume", "", "session id to resume on startup")
}

var resumeSession string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the campaignd daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "campaignd.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Runtime client implements all four collaborator contracts.
	client := provider.NewClient(cfg.Runtime.BaseURL, cfg.Runtime.APIKey,
		time.Duration(cfg.Runtime.TimeoutSeconds)*time.Second)

	snapshots := session.NewSnapshotStore(cfg.DataDir)

	monitor := poll.NewMonitor(client,
		time.Duration(cfg.Poll.IntervalSeconds)*time.Second,
		time.Duration(cfg.Runtime.TimeoutSeconds)*time.Second)
	monitor.SetDegradedAfter(cfg.Poll.DegradedAfter)
	defer monitor.Stop()

	orch := orchestrator.New(orchestrator.Services{
		Starter:   client,
		Submitter: client,
		Analytics: client,
	}, monitor, snapshots, gate.New(gate.Mode(cfg.Tabs.Mode)), approval.Policy{
		BlockBulkDuringRevision: cfg.Approval.BlockBulkDuringRevision,
	})

	if resumeSession != "" {
		if err := orch.Resume(types.SessionID(resumeSession)); err != nil {
			return fmt.Errorf("resume session %s: %w", resumeSession, err)
		}
		slog.Info("resumed session", "session_id", resumeSession)
	}

	slog.Info("campaignd started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"runtime_url", cfg.Runtime.BaseURL,
		"poll_interval", cfg.Poll.IntervalSeconds,
		"tabs_mode", cfg.Tabs.Mode,
		"pid_file", pidPath,
	)

	if cfg.HTTP.Enabled {
		apiSrv := server.NewServer(orch, snapshots)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: apiSrv,
		}
		go func() {
			slog.Info("api server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("api server error", "error", err)
			}
		}()
		defer httpServer.Close()
	} else {
		slog.Warn("api server disabled")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/joescharf/codeguardian/internal/api"
	"github.com/joescharf/codeguardian/internal/config"
	"github.com/joescharf/codeguardian/internal/daemon"
	"github.com/joescharf/codeguardian/internal/llm"
	"github.com/joescharf/codeguardian/internal/sessions"
	"github.com/joescharf/codeguardian/internal/ui"
)

// minShutdownTimeout is the shortest grace period for in-flight requests on
// exit and for `serve stop` before it escalates to SIGKILL.
const minShutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI and JSON API server",
	Long: `Start an HTTP server that serves the embedded web UI and the
/api/v1 JSON API. By default it listens on port 8080. Use --port to change it.

Use 'serve start' to run it in the background, 'serve status' to check on
it and 'serve stop' to stop it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return serveRun(ctx)
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("server.port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

// pidFile returns the PID file of the background server.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(stateDir(), "codeguardian-serve.pid"))
}

// serveLogPath returns the log file of the background server.
func serveLogPath() string {
	return filepath.Join(stateDir(), "codeguardian-serve.log")
}

func stateDir() string {
	if dir := viper.GetString("state_dir"); dir != "" {
		return expandHome(dir)
	}
	dir, _ := configDirFunc()
	return dir
}

// newHandler wires the review service, session ledgers and UI into one
// handler. Idle sessions are swept until cleanup runs.
func newHandler(ctx context.Context, cfg *config.Config, logger *slog.Logger) (http.Handler, func(), error) {
	svc, p, err := newReviewService(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	sweepCtx, stopSweep := context.WithCancel(ctx)
	cleanup := func() {
		stopSweep()
		_ = llm.Close(p)
		closeStore()
	}

	factory, err := ledgerFactory(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	mgr := sessions.NewManager(factory, cfg.History.SessionTTL)
	go mgr.Run(sweepCtx, 0)

	apiServer := api.NewServer(svc, mgr, logger)
	handler, err := ui.Handler(apiServer.Router())
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize UI handler: %w", err)
	}
	return handler, cleanup, nil
}

func serveRun(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	handler, cleanup, err := newHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.Server.Port, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.LLM.Timeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting",
			"addr", ln.Addr().String(), "provider", cfg.LLM.Provider, "history", cfg.History.Backend)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), max(cfg.LLM.Timeout, minShutdownTimeout))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	ui.Success("Serving codeguardian at http://localhost:%d", cfg.Server.Port)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func serveStartRun() error {
	pf := pidFile()
	if st, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (pid %d) at %s", st.PID, st.URL())
	}

	port := viper.GetInt("server.port")
	logPath := serveLogPath()
	if dryRun {
		ui.DryRunMsg("Would start server on port %d (log: %s)", port, logPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}

	args := []string{"serve", "--port", strconv.Itoa(port)}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	st := &daemon.State{PID: child.Process.Pid, Port: port, LogPath: logPath, StartedAt: time.Now().UTC()}
	if err := pf.WriteState(st); err != nil {
		_ = child.Process.Kill()
		return fmt.Errorf("write PID file: %w", err)
	}
	_ = child.Process.Release()

	ui.Success("Server started (pid %d) at %s", st.PID, st.URL())
	ui.Info("Logs: %s", logPath)
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	st, running := pf.IsRunning()
	if !running {
		if st != nil {
			_ = pf.Remove()
		}
		return fmt.Errorf("server is not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (pid %d)", st.PID)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}

	deadline := time.Now().Add(minShutdownTimeout)
	for time.Now().Before(deadline) {
		if _, alive := pf.IsRunning(); !alive {
			_ = pf.Remove()
			ui.Success("Server stopped (pid %d)", st.PID)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	ui.Warning("Server did not exit in %s, killing it", minShutdownTimeout)
	if err := pf.Signal(sigKILL()); err != nil {
		return fmt.Errorf("kill server: %w", err)
	}
	_ = pf.Remove()
	ui.Success("Server killed (pid %d)", st.PID)
	return nil
}

func serveStatusRun() error {
	pf := pidFile()
	st, running := pf.IsRunning()
	if !running {
		if st != nil {
			ui.Warning("Stale PID file for pid %d; removing it", st.PID)
			_ = pf.Remove()
		}
		ui.Info("Server is not running")
		return nil
	}

	ui.Success("Server is running (pid %d)", st.PID)
	if url := st.URL(); url != "" {
		ui.Info("URL: %s", url)
	}
	if up := st.Uptime(time.Now()); up > 0 {
		ui.Info("Uptime: %s", up)
	}
	if st.LogPath != "" {
		ui.Info("Logs: %s", st.LogPath)
	}
	return nil
}

// Command rkvm-server grabs local input devices and streams their
// events to whichever authenticated client currently holds the switch
// combo, looping events back to the server itself otherwise.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/rkvm-go/rkvm/internal/auth"
	"github.com/rkvm-go/rkvm/internal/config"
	"github.com/rkvm-go/rkvm/internal/eventbus"
	"github.com/rkvm-go/rkvm/internal/logging"
	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/monitor"
	"github.com/rkvm-go/rkvm/internal/registry"
	"github.com/rkvm-go/rkvm/internal/router"
	"github.com/rkvm-go/rkvm/internal/statusapi"
	"github.com/rkvm-go/rkvm/internal/systemd"
	"github.com/rkvm-go/rkvm/internal/updater"
	"github.com/rkvm-go/rkvm/internal/version"
)

// Default per-operation timeouts, per spec: 500ms for read/write/TLS,
// 1s for the keepalive ping. Not exposed as config fields since no
// deployment so far has needed to change them.
const (
	readTimeout  = 500 * time.Millisecond
	writeTimeout = 500 * time.Millisecond
	tlsTimeout   = 500 * time.Millisecond
	pingInterval = time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rkvm-server",
		Short: "Networked keyboard/mouse switch, server side",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newUpdateCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			info := version.Get()
			fmt.Printf("rkvm-server %s (%s, built %s, %s/%s)\n",
				info.Version, info.GitCommit, info.BuildDate, info.GoVersion, info.Platform)
		},
	}
}

func newServeCmd() *cobra.Command {
	cfg := config.DefaultServerConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Grab local input devices and serve the switch to clients",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadConfig(&cfg, cmd); err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Config, "config", cfg.Config, "config file path")
	f.StringVar(&cfg.Listen, "listen", cfg.Listen, "address to listen on, e.g. 0.0.0.0:5258")
	f.StringVar(&cfg.Certificate, "certificate", cfg.Certificate, "path to TLS certificate")
	f.StringVar(&cfg.Key, "key", cfg.Key, "path to TLS private key")
	f.StringVar(&cfg.Password, "password", cfg.Password, "shared password for client authentication")
	f.StringSliceVar(&cfg.SwitchKeys, "switch-keys", cfg.SwitchKeys, "key combo that rotates the routing target")
	f.BoolVar(&cfg.PropagateSwitchKeys, "propagate-switch-keys", cfg.PropagateSwitchKeys, "forward the switch combo's own key events to the target that was active before the switch")
	f.StringVar(&cfg.DeviceDirectory, "device-directory", cfg.DeviceDirectory, "directory scanned for input devices")
	f.StringVar(&cfg.LoggingLevel, "logging-level", cfg.LoggingLevel, "log level: debug, info, warn, error")
	f.StringVar(&cfg.LoggingFormat, "logging-format", cfg.LoggingFormat, "log format: text or json")
	f.StringVar(&cfg.StatusListen, "status-listen", cfg.StatusListen, "address for the read-only status/metrics surface, empty disables it")

	return cmd
}

func newUpdateCmd() *cobra.Command {
	var repo string
	var prerelease bool
	var check bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for and apply a new release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "info", Format: "text"})
			logger := logging.GetLogger("updater")

			svc, err := updater.NewService(&updater.Options{Repository: repo, Prerelease: prerelease})
			if err != nil {
				return fmt.Errorf("creating updater: %w", err)
			}
			if !svc.IsEnabled() {
				return fmt.Errorf("updates disabled: %s", svc.DisabledReason())
			}

			info, err := svc.CheckForUpdate(cmd.Context())
			if err != nil {
				return fmt.Errorf("checking for update: %w", err)
			}
			if !info.UpdateAvailable {
				logger.Info("already up to date", "version", info.CurrentVersion)
				return nil
			}
			logger.Info("update available", "current", info.CurrentVersion, "latest", info.LatestVersion)
			if check {
				return nil
			}
			return svc.ApplyUpdate(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&repo, "repository", "rkvm-go/rkvm", "GitHub repo slug to check for releases")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "include prereleases")
	cmd.Flags().BoolVar(&check, "check", false, "only check, do not apply")
	return cmd
}

func runServe(parentCtx context.Context, cfg config.ServerConfig) error {
	loggingCfg := config.LoadLoggingConfig(cfg.Config)
	loggingCfg.Level = cfg.LoggingLevel
	loggingCfg.Format = cfg.LoggingFormat
	logging.Initialize(loggingCfg)
	logger := logging.GetLogger("server")

	if cfg.Listen == "" || cfg.Certificate == "" || cfg.Key == "" || cfg.Password == "" {
		return fmt.Errorf("listen, certificate, key and password are all required")
	}

	combo := make([]model.Key, 0, len(cfg.SwitchKeys))
	for _, name := range cfg.SwitchKeys {
		k, ok := model.ParseKey(name)
		if !ok {
			return fmt.Errorf("unknown switch key %q", name)
		}
		combo = append(combo, k)
	}

	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cert, err := tls.LoadX509KeyPair(cfg.Certificate, cfg.Key)
	if err != nil {
		return fmt.Errorf("loading TLS keypair: %w", err)
	}
	listener, err := tls.Listen("tcp", cfg.Listen, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Listen, err)
	}
	defer listener.Close()

	bus := eventbus.New()
	reg := registry.New()
	mon := monitor.New(cfg.DeviceDirectory, reg, logger)

	r := router.New(router.Config{
		Combo:               combo,
		PropagateSwitchKeys: cfg.PropagateSwitchKeys,
		PingInterval:        pingInterval,
		ReadTimeout:         readTimeout,
		WriteTimeout:        writeTimeout,
	}, bus, logger)

	svcMgr, err := systemd.NewManager(ctx)
	if err != nil {
		logger.Debug("systemd service manager unavailable", "error", err)
		svcMgr = nil
	} else {
		defer svcMgr.Close()
	}

	var statusSrv *http.Server
	if cfg.StatusListen != "" {
		api := statusapi.NewServer(statusapi.Options{Router: r, Bus: bus, Systemd: svcMgr})
		statusSrv = &http.Server{Addr: cfg.StatusListen, Handler: api.Mux()}
		go func() {
			logger.Info("status API listening", "address", cfg.StatusListen)
			if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status API exited", "error", err)
			}
		}()
	}

	errCh := make(chan error, 3)

	go func() { errCh <- mon.Run(ctx) }()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ic := <-mon.Interceptors():
				if err := r.AddDevice(ctx, ic); err != nil {
					return
				}
			case err := <-mon.Errors():
				errCh <- err
				return
			}
		}
	}()
	go func() { errCh <- r.Run(ctx) }()
	go func() { errCh <- acceptLoop(ctx, listener, r, cfg.Password, bus, logger) }()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Debug("sd_notify READY failed", "error", err)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("fatal error", "error", err)
			stop()
			if statusSrv != nil {
				_ = statusSrv.Close()
			}
			return err
		}
	}

	if statusSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = statusSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// acceptLoop accepts connections, performs the auth handshake with a
// bounded deadline, and hands authenticated transports to the router.
// A per-connection auth failure is logged and the connection dropped;
// it never brings the server down.
func acceptLoop(ctx context.Context, listener net.Listener, r *router.Router, password string, bus *eventbus.Bus, logger *slog.Logger) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept: %w", err)
		}
		go handleConn(ctx, conn, r, password, bus, logger)
	}
}

func handleConn(ctx context.Context, conn net.Conn, r *router.Router, password string, bus *eventbus.Bus, logger *slog.Logger) {
	remote := conn.RemoteAddr().String()

	if tc, ok := conn.(*tls.Conn); ok {
		if err := tc.SetDeadline(time.Now().Add(tlsTimeout)); err != nil {
			logger.Warn("setting TLS deadline failed", "remote", remote, "error", err)
			conn.Close()
			return
		}
		if err := tc.HandshakeContext(ctx); err != nil {
			logger.Warn("TLS handshake failed", "remote", remote, "error", err)
			if bus != nil {
				bus.Publish(eventbus.AuthFailedEvent{Remote: remote, Reason: err.Error(), Timestamp: time.Now().UTC().Format(time.RFC3339)})
			}
			conn.Close()
			return
		}
		if err := tc.SetDeadline(time.Time{}); err != nil {
			conn.Close()
			return
		}
	}

	if err := auth.ServerHandshake(conn, password, auth.Timeouts{Read: readTimeout, Write: writeTimeout}); err != nil {
		logger.Warn("handshake failed", "remote", remote, "error", err)
		if bus != nil {
			bus.Publish(eventbus.AuthFailedEvent{Remote: remote, Reason: err.Error(), Timestamp: time.Now().UTC().Format(time.RFC3339)})
		}
		conn.Close()
		return
	}

	if err := r.AddClient(ctx, router.NewNetTransport(conn)); err != nil {
		conn.Close()
	}
}

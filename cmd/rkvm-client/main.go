// Command rkvm-client dials an rkvm-server and mirrors every device it
// announces onto a local virtual input device, relaying whichever
// events the server currently routes to this client.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rkvm-go/rkvm/internal/auth"
	"github.com/rkvm-go/rkvm/internal/clientrecv"
	"github.com/rkvm-go/rkvm/internal/config"
	"github.com/rkvm-go/rkvm/internal/logging"
	"github.com/rkvm-go/rkvm/internal/updater"
	"github.com/rkvm-go/rkvm/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rkvm-client",
		Short: "Networked keyboard/mouse switch, client side",
	}
	root.AddCommand(newRunCmd())
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
			fmt.Printf("rkvm-client %s (%s, built %s, %s/%s)\n",
				info.Version, info.GitCommit, info.BuildDate, info.GoVersion, info.Platform)
		},
	}
}

func newRunCmd() *cobra.Command {
	cfg := config.DefaultClientConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to a server and mirror its routed events locally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadConfig(&cfg, cmd); err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runClient(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Config, "config", cfg.Config, "config file path")
	f.StringVar(&cfg.Server, "server", cfg.Server, "server address to dial, host:port")
	f.StringVar(&cfg.Certificate, "certificate", cfg.Certificate, "path to TLS certificate used to verify the server")
	f.StringVar(&cfg.Password, "password", cfg.Password, "shared password for server authentication")
	f.IntVar(&cfg.ReadTimeoutSeconds, "timeout-read", cfg.ReadTimeoutSeconds, "seconds before an idle connection is considered dead")
	f.IntVar(&cfg.WriteTimeoutSeconds, "timeout-write", cfg.WriteTimeoutSeconds, "seconds before a stalled write is aborted")
	f.IntVar(&cfg.TLSTimeoutSeconds, "timeout-tls", cfg.TLSTimeoutSeconds, "seconds allowed for the TLS handshake")
	f.StringVar(&cfg.LoggingLevel, "logging-level", cfg.LoggingLevel, "log level: debug, info, warn, error")
	f.StringVar(&cfg.LoggingFormat, "logging-format", cfg.LoggingFormat, "log format: text or json")

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

func runClient(parentCtx context.Context, cfg config.ClientConfig) error {
	loggingCfg := config.LoadLoggingConfig(cfg.Config)
	loggingCfg.Level = cfg.LoggingLevel
	loggingCfg.Format = cfg.LoggingFormat
	logging.Initialize(loggingCfg)
	logger := logging.GetLogger("client")

	if cfg.Server == "" || cfg.Certificate == "" || cfg.Password == "" {
		return fmt.Errorf("server, certificate and password are all required")
	}

	readTimeout := time.Duration(cfg.ReadTimeoutSeconds) * time.Second
	writeTimeout := time.Duration(cfg.WriteTimeoutSeconds) * time.Second
	tlsTimeout := time.Duration(cfg.TLSTimeoutSeconds) * time.Second

	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := certPool(cfg.Certificate)
	if err != nil {
		return fmt.Errorf("loading TLS certificate: %w", err)
	}

	host, _, err := net.SplitHostPort(cfg.Server)
	if err != nil {
		return fmt.Errorf("parsing server address %q: %w", cfg.Server, err)
	}

	dialer := &net.Dialer{Timeout: tlsTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", cfg.Server)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", cfg.Server, err)
	}

	conn := tls.Client(rawConn, &tls.Config{
		RootCAs:    pool,
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	})
	if err := conn.SetDeadline(time.Now().Add(tlsTimeout)); err != nil {
		conn.Close()
		return err
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("TLS handshake with %s: %w", cfg.Server, err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return err
	}
	defer conn.Close()

	if err := auth.ClientHandshake(conn, cfg.Password, auth.Timeouts{Read: readTimeout, Write: writeTimeout}); err != nil {
		return fmt.Errorf("authenticating with %s: %w", cfg.Server, err)
	}
	logger.Info("connected", "server", cfg.Server)

	recv := clientrecv.New(clientrecv.NewConn(conn), clientrecv.Config{
		PingInterval: time.Second,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}, nil, logger)

	err = recv.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("disconnected")
	return nil
}

// certPool builds a certificate pool containing exactly the server's
// certificate, mirroring the spec's pinned-certificate trust model
// instead of the system root store.
func certPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no valid certificates found in %s", path)
	}
	return pool, nil
}

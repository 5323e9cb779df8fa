package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fgeck/gossh-mcp/internal/metrics"
	"github.com/fgeck/gossh-mcp/internal/services/ssh"
	"github.com/fgeck/gossh-mcp/internal/services/toolserver"
	"github.com/fgeck/gossh-mcp/internal/services/wol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	metricsAddr string
	skipProbe   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the remote operations as MCP tools on stdio",
	Long: `Serve execute_command, get_command_output, check_ssh_connection,
execute_interactive_command and upload_file as MCP tools on stdin/stdout.
wake_host is added when Wake-on-LAN is configured.

The connection is checked once at startup; a failed check is logged and
the server starts anyway.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9100)")
	serveCmd.Flags().BoolVar(&skipProbe, "skip-probe", false, "do not check the connection at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	sshSvc := ssh.New(log.Logger, cfg.SSH)

	if metricsAddr != "" {
		srv := startMetricsServer(sshSvc)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if !skipProbe {
		probe := sshSvc.CheckConnection(ctx)
		if probe.Connected {
			log.Info().
				Str("host", probe.Host).
				Int("port", probe.Port).
				Str("username", probe.Username).
				Msg("SSH connection verified")
		} else {
			log.Warn().
				Str("host", probe.Host).
				Int("port", probe.Port).
				Str("error", probe.Error.Message).
				Msg("SSH connection check failed, tools may fail until the host is reachable")
		}
	}

	toolserver.Version = Version
	srv := toolserver.New(log.Logger, sshSvc, wol.New(log.Logger), *cfg)
	if err := srv.ServeStdio(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("MCP server stopped")
		return err
	}

	log.Info().Msg("MCP server stopped")
	return nil
}

func startMetricsServer(sshSvc *ssh.Impl) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sshSvc.SetObserver(metrics.New(reg))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", metricsAddr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", metricsAddr).Msg("metrics server failed")
		}
	}()

	return srv
}

package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fgeck/gossh-mcp/internal/config"
	"github.com/fgeck/gossh-mcp/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile string
	envFile    string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "gossh-mcp",
	Short: "Run commands on and upload files to a remote host over SSH",
	Long: `gossh-mcp gives an agent controlled access to one remote host:
  - execute commands and capture exit code, stdout and stderr
  - feed input to interactive commands
  - upload files over SFTP with size verification
  - check connectivity and credentials
  - wake the host with Wake-on-LAN

The host is configured through SSH_HOST, SSH_PORT, SSH_USERNAME, SSH_PASSWORD
and SSH_KEY_PATH, optionally from a config file or a .env file.

Run "gossh-mcp serve" to expose these operations as MCP tools on stdio.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (optional, environment takes precedence)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from a .env file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(outputCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(wakeCmd)
	rootCmd.AddCommand(validateCmd)
}

// setupLogging writes logs to stderr; stdout is reserved for results and
// the MCP protocol.
func setupLogging() {
	// Set output format
	if jsonOutput {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loadConfig resolves and validates the configuration. Values from the
// environment override the config file.
func loadConfig() (*models.ServerConfig, error) {
	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			log.Error().Err(err).Str("file", envFile).Msg("failed to load env file")
			return nil, err
		}
	}

	parser := config.NewParser()

	var cfg *models.ServerConfig
	var err error
	if configFile != "" {
		cfg, err = parser.LoadFile(configFile)
	} else {
		cfg, err = parser.Load()
	}
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return nil, err
	}

	log.Debug().
		Str("host", cfg.SSH.Host).
		Int("port", cfg.SSH.Port).
		Str("username", cfg.SSH.Username).
		Bool("key", cfg.SSH.KeyPath != "").
		Msg("configuration loaded")

	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

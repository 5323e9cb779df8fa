// Package config resolves the connection parameters of the remote host.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fgeck/gossh-mcp/internal/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables that may carry
// them, in order of precedence.
var envBindings = map[string][]string{
	"ssh.host":           {"SSH_HOST", "HOST"},
	"ssh.port":           {"SSH_PORT", "PORT"},
	"ssh.username":       {"SSH_USERNAME", "USERNAME"},
	"ssh.password":       {"SSH_PASSWORD", "PASSWORD"},
	"ssh.key_path":       {"SSH_KEY_PATH", "KEY_PATH"},
	"ssh.key_passphrase": {"SSH_KEY_PASSPHRASE"},
	"wol.mac_address":    {"SSH_WOL_MAC"},
	"wol.broadcast_ip":   {"SSH_WOL_BROADCAST"},
	"wol.timeout":        {"SSH_WOL_TIMEOUT"},
	"wol.poll_interval":  {"SSH_WOL_POLL_INTERVAL"},
	"wol.stabilize_wait": {"SSH_WOL_STABILIZE_WAIT"},
}

// Parser handles configuration parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser. Environment variables always
// take precedence over values read from a file.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	return &Parser{v: v}
}

// LoadEnvFile loads variables from a dotenv file into the process
// environment. Variables that are already set are not overridden.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// Load resolves configuration from the environment only.
func (p *Parser) Load() (*models.ServerConfig, error) {
	return p.parse()
}

// LoadFile loads configuration from a file path, overlaid by the environment.
func (p *Parser) LoadFile(path string) (*models.ServerConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a string (useful for testing).
func (p *Parser) LoadReader(content string) (*models.ServerConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

func (p *Parser) parse() (*models.ServerConfig, error) {
	port, err := p.port()
	if err != nil {
		return nil, err
	}

	cfg := &models.ServerConfig{
		SSH: models.ConnectionConfig{
			Host:           p.expandEnv(p.v.GetString("ssh.host")),
			Port:           port,
			Username:       p.expandEnv(p.v.GetString("ssh.username")),
			Password:       p.v.GetString("ssh.password"),
			KeyPath:        p.expandEnv(p.v.GetString("ssh.key_path")),
			KeyPassphrase:  p.v.GetString("ssh.key_passphrase"),
			ConnectTimeout: models.DefaultConnectTimeout,
		},
	}

	// Parse optional WOL config.
	if mac := p.v.GetString("wol.mac_address"); mac != "" {
		cfg.WOL = &models.WOLConfig{
			MACAddress:    mac,
			BroadcastIP:   p.v.GetString("wol.broadcast_ip"),
			Timeout:       p.v.GetDuration("wol.timeout"),
			PollInterval:  p.v.GetDuration("wol.poll_interval"),
			StabilizeWait: p.v.GetDuration("wol.stabilize_wait"),
		}

		if cfg.WOL.BroadcastIP == "" {
			cfg.WOL.BroadcastIP = "255.255.255.255"
		}
		if cfg.WOL.Timeout == 0 {
			cfg.WOL.Timeout = 5 * time.Minute
		}
		if cfg.WOL.PollInterval == 0 {
			cfg.WOL.PollInterval = 5 * time.Second
		}
		if cfg.WOL.StabilizeWait == 0 {
			cfg.WOL.StabilizeWait = 10 * time.Second
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// port reads ssh.port, defaulting to 22 only when it is unset.
func (p *Parser) port() (int, error) {
	raw := strings.TrimSpace(p.v.GetString("ssh.port"))
	if raw == "" {
		return 22, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: SSH_PORT must be an integer, got %q", models.ErrConfiguration, raw)
	}
	return port, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration. Every error it
// returns wraps models.ErrConfiguration.
func Validate(cfg *models.ServerConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", models.ErrConfiguration)
	}

	if cfg.SSH.Host == "" {
		return fmt.Errorf("%w: SSH_HOST is required", models.ErrConfiguration)
	}

	if cfg.SSH.Username == "" {
		return fmt.Errorf("%w: SSH_USERNAME is required", models.ErrConfiguration)
	}

	if cfg.SSH.Password == "" && cfg.SSH.KeyPath == "" {
		return fmt.Errorf("%w: SSH_PASSWORD or SSH_KEY_PATH is required", models.ErrConfiguration)
	}

	if cfg.SSH.Port < 1 || cfg.SSH.Port > 65535 {
		return fmt.Errorf("%w: SSH_PORT must be between 1 and 65535, got %d", models.ErrConfiguration, cfg.SSH.Port)
	}

	return nil
}

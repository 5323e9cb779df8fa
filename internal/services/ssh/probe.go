package ssh

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fgeck/gossh-mcp/internal/models"
)

const (
	probeCommand = `echo "connection test ok"`
	probeTimeout = 5 * time.Second
)

// CheckConnection verifies reachability and authentication by running a
// trivial command. Host, port and username are reported on every path.
func (s *Impl) CheckConnection(ctx context.Context) *models.ProbeResult {
	start := time.Now()
	logger := s.opLogger(OpCheckConnection)

	result := &models.ProbeResult{
		Host:     s.cfg.Host,
		Port:     s.cfg.Port,
		Username: s.cfg.Username,
	}

	logger.Debug().
		Str("host", s.cfg.Host).
		Int("port", s.cfg.Port).
		Msg("testing SSH connection")

	fail := func(err error) *models.ProbeResult {
		opErr := commandError(err, "SSH connection test failed")
		logger.Error().Err(err).Str("kind", string(opErr.Kind)).Msg(opErr.Message)
		result.Error = opErr
		s.observe(OpCheckConnection, start, string(opErr.Kind))
		return result
	}

	client, err := s.connector.Acquire(ctx)
	if err != nil {
		return fail(err)
	}
	defer s.connector.Release(client)

	session, err := client.NewSession()
	if err != nil {
		return fail(fmt.Errorf("failed to create session: %w", err))
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.SetOutput(&stdout, &stderr)

	if err := session.Start(probeCommand); err != nil {
		return fail(fmt.Errorf("failed to start test command: %w", err))
	}

	if err := withTimeout(ctx, probeTimeout, "test command", func() { _ = session.Close() }, session.Wait); err != nil {
		return fail(fmt.Errorf("test command failed: %w", err))
	}

	result.Connected = true
	result.TestOutput = strings.TrimSpace(strings.ToValidUTF8(stdout.String(), "\uFFFD"))

	logger.Info().
		Str("host", s.cfg.Host).
		Int("port", s.cfg.Port).
		Str("output", result.TestOutput).
		Msg("SSH connection test succeeded")

	s.observe(OpCheckConnection, start, OutcomeSuccess)
	return result
}

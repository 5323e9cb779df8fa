// Package ssh runs commands on, and uploads files to, the configured remote
// host. Every operation opens its own connection and closes it before
// returning; failures are reported inside the result, never as an error.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fgeck/gossh-mcp/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Default timeouts applied when the caller passes zero.
const (
	DefaultCommandTimeout  = 30 * time.Second
	DefaultTransferTimeout = 60 * time.Second
)

// Operation names, shared with the tool server and metrics.
const (
	OpExecute            = "execute_command"
	OpGetOutput          = "get_command_output"
	OpExecuteInteractive = "execute_interactive_command"
	OpUpload             = "upload_file"
	OpCheckConnection    = "check_ssh_connection"
)

// Service defines the interface for remote operations.
type Service interface {
	Execute(ctx context.Context, command string, timeout time.Duration) *models.ExecutionResult
	GetOutput(ctx context.Context, command string, timeout time.Duration) string
	ExecuteInteractive(ctx context.Context, command, input string, timeout time.Duration) *models.ExecutionResult
	Upload(ctx context.Context, localPath, remotePath string, timeout time.Duration) *models.TransferResult
	CheckConnection(ctx context.Context) *models.ProbeResult
}

// Observer receives the outcome of every operation.
type Observer interface {
	ObserveOperation(operation, outcome string, d time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveOperation(string, string, time.Duration) {}

// Impl implements the SSH Service interface.
type Impl struct {
	cfg       models.ConnectionConfig
	connector Connector
	observer  Observer
	logger    zerolog.Logger
}

// New creates a new SSH service for cfg.
func New(logger zerolog.Logger, cfg models.ConnectionConfig) *Impl {
	return NewWithConnector(logger, cfg, NewDialConnector(logger, cfg, &DefaultClientFactory{}))
}

// NewWithConnector creates a new SSH service with a custom connector (for testing).
func NewWithConnector(logger zerolog.Logger, cfg models.ConnectionConfig, connector Connector) *Impl {
	return &Impl{
		cfg:       cfg,
		connector: connector,
		observer:  noopObserver{},
		logger:    logger,
	}
}

// SetObserver registers o to receive operation outcomes.
func (s *Impl) SetObserver(o Observer) {
	if o == nil {
		o = noopObserver{}
	}
	s.observer = o
}

func (s *Impl) opLogger(op string) zerolog.Logger {
	return s.logger.With().
		Str("op", op).
		Str("op_id", uuid.NewString()).
		Logger()
}

// Outcomes reported to the Observer besides the error kinds.
const (
	OutcomeSuccess     = "success"
	OutcomeExitNonZero = "exit_nonzero"
	OutcomeUnverified  = "unverified"
)

func (s *Impl) observe(op string, start time.Time, outcome string) {
	s.observer.ObserveOperation(op, outcome, time.Since(start))
}

// Execute runs command on the remote host and captures its exit code and
// output streams.
func (s *Impl) Execute(ctx context.Context, command string, timeout time.Duration) *models.ExecutionResult {
	return s.run(ctx, OpExecute, command, nil, timeout)
}

// ExecuteInteractive runs command and feeds input to its standard input.
// Standard input is always closed, so commands that read until EOF finish.
func (s *Impl) ExecuteInteractive(ctx context.Context, command, input string, timeout time.Duration) *models.ExecutionResult {
	return s.run(ctx, OpExecuteInteractive, command, &input, timeout)
}

// GetOutput returns the standard output of command. Failures are described
// in the returned text.
func (s *Impl) GetOutput(ctx context.Context, command string, timeout time.Duration) string {
	result := s.run(ctx, OpGetOutput, command, nil, timeout)
	if result.Success {
		return result.Stdout
	}
	return FormatFailure(result)
}

// FormatFailure renders a failed ExecutionResult as a multi-line diagnostic.
func FormatFailure(result *models.ExecutionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "command failed (exit code: %d)", result.ExitCode)
	if result.Stderr != "" {
		fmt.Fprintf(&b, "\nstderr: %s", result.Stderr)
	}
	if result.Error != nil {
		fmt.Fprintf(&b, "\nerror: %s", result.Error.Message)
	}
	return b.String()
}

func (s *Impl) run(ctx context.Context, op, command string, input *string, timeout time.Duration) *models.ExecutionResult {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	start := time.Now()
	logger := s.opLogger(op)

	logger.Debug().
		Str("command", command).
		Dur("timeout", timeout).
		Bool("has_input", input != nil && *input != "").
		Msg("executing command")

	genericPrefix := "command execution failed"
	if input != nil {
		genericPrefix = "interactive command execution failed"
	}

	fail := func(err error) *models.ExecutionResult {
		opErr := commandError(err, genericPrefix)
		logger.Error().Err(err).Str("kind", string(opErr.Kind)).Str("command", command).Msg(opErr.Message)
		s.observe(op, start, string(opErr.Kind))
		return &models.ExecutionResult{ExitCode: -1, Error: opErr}
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

	var stdin io.WriteCloser
	if input != nil {
		stdin, err = session.StdinPipe()
		if err != nil {
			return fail(fmt.Errorf("failed to open stdin: %w", err))
		}
	}

	if err := session.Start(command); err != nil {
		return fail(fmt.Errorf("failed to start command: %w", err))
	}

	waitErr := withTimeout(ctx, timeout, "command", func() { _ = session.Close() }, func() error {
		if stdin != nil {
			if *input != "" {
				if _, err := io.WriteString(stdin, *input); err != nil {
					return fmt.Errorf("failed to write stdin: %w", err)
				}
			}
			if err := stdin.Close(); err != nil {
				return fmt.Errorf("failed to close stdin: %w", err)
			}
		}
		return session.Wait()
	})

	exitCode := 0
	var exitErr exitStatuser
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitStatus()
	} else if waitErr != nil {
		return fail(waitErr)
	}

	result := &models.ExecutionResult{
		Success:  exitCode == 0,
		ExitCode: exitCode,
		Stdout:   strings.ToValidUTF8(stdout.String(), "\uFFFD"),
		Stderr:   strings.ToValidUTF8(stderr.String(), "\uFFFD"),
	}

	logger.Info().
		Str("command", command).
		Int("exit_code", exitCode).
		Dur("duration", time.Since(start)).
		Msg("command completed")

	outcome := OutcomeSuccess
	if exitCode != 0 {
		outcome = OutcomeExitNonZero
	}
	s.observe(op, start, outcome)
	return result
}

// withTimeout runs fn, giving up after timeout or when ctx is done. abort is
// called on give-up and must unblock fn.
func withTimeout(ctx context.Context, timeout time.Duration, what string, abort func(), fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		abort()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &timeoutError{what: what, timeout: timeout}
		}
		return ctx.Err()
	}
}

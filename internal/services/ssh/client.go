package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/fgeck/gossh-mcp/internal/models"
	"github.com/melbahja/goph"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// SSHClient wraps an authenticated connection for mocking.
type SSHClient interface {
	NewSession() (SSHSession, error)
	NewSFTP() (SFTPClient, error)
	Close() error
}

// SSHSession wraps ssh.Session for mocking.
type SSHSession interface {
	StdinPipe() (io.WriteCloser, error)
	SetOutput(stdout, stderr io.Writer)
	Start(cmd string) error
	Wait() error
	Close() error
}

// SFTPClient wraps sftp.Client for mocking.
type SFTPClient interface {
	Create(path string) (io.WriteCloser, error)
	Stat(path string) (os.FileInfo, error)
	Close() error
}

// ClientFactory creates SSH clients.
type ClientFactory interface {
	NewClient(network, addr string, config *ssh.ClientConfig) (SSHClient, error)
}

// Connector hands out one authenticated connection per operation. Release
// must be called exactly once for every client returned by Acquire.
type Connector interface {
	Acquire(ctx context.Context) (SSHClient, error)
	Release(client SSHClient)
}

// DefaultClientFactory is the default SSH client factory.
type DefaultClientFactory struct{}

// NewClient dials addr and performs the SSH handshake. config.Timeout bounds
// both the TCP connect and the handshake.
func (f *DefaultClientFactory) NewClient(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
	conn, err := net.DialTimeout(network, addr, config.Timeout)
	if err != nil {
		return nil, err
	}

	if config.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(config.Timeout))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	// Channel operations are bounded per call from here on.
	_ = conn.SetDeadline(time.Time{})

	return &defaultSSHClient{client: &goph.Client{Client: ssh.NewClient(sshConn, chans, reqs)}}, nil
}

type defaultSSHClient struct {
	client *goph.Client
}

func (c *defaultSSHClient) NewSession() (SSHSession, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, err
	}
	return &defaultSSHSession{session: session}, nil
}

func (c *defaultSSHClient) NewSFTP() (SFTPClient, error) {
	client, err := c.client.NewSftp()
	if err != nil {
		return nil, err
	}
	return &defaultSFTPClient{client: client}, nil
}

func (c *defaultSSHClient) Close() error {
	return c.client.Close()
}

type defaultSSHSession struct {
	session *ssh.Session
}

func (s *defaultSSHSession) StdinPipe() (io.WriteCloser, error) {
	return s.session.StdinPipe()
}

func (s *defaultSSHSession) SetOutput(stdout, stderr io.Writer) {
	s.session.Stdout = stdout
	s.session.Stderr = stderr
}

func (s *defaultSSHSession) Start(cmd string) error {
	return s.session.Start(cmd)
}

func (s *defaultSSHSession) Wait() error {
	return s.session.Wait()
}

func (s *defaultSSHSession) Close() error {
	return s.session.Close()
}

type defaultSFTPClient struct {
	client *sftp.Client
}

func (c *defaultSFTPClient) Create(path string) (io.WriteCloser, error) {
	return c.client.Create(path)
}

func (c *defaultSFTPClient) Stat(path string) (os.FileInfo, error) {
	return c.client.Stat(path)
}

func (c *defaultSFTPClient) Close() error {
	return c.client.Close()
}

// authError marks failures to prepare credentials locally, so they are
// reported as authentication failures rather than generic ones.
type authError struct {
	err error
}

func (e *authError) Error() string { return e.err.Error() }
func (e *authError) Unwrap() error { return e.err }

// BuildClientConfig builds the client configuration for cfg. Any host key is
// accepted.
//
// A key is used when KeyPath points at an existing file; the password is
// offered as well when set.
func BuildClientConfig(cfg models.ConnectionConfig) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if cfg.KeyPath != "" {
		if _, err := os.Stat(cfg.KeyPath); err == nil {
			signer, err := loadSigner(cfg.KeyPath, cfg.KeyPassphrase)
			if err != nil {
				return nil, &authError{err: err}
			}
			auth = append(auth, ssh.PublicKeys(signer))
		}
	}

	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}

	if len(auth) == 0 {
		return nil, &authError{err: fmt.Errorf("no usable authentication method: key file %q not found and no password set", cfg.KeyPath)}
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = models.DefaultConnectTimeout
	}

	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // host keys are not verified
		Timeout:         timeout,
	}, nil
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	key, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to read private key from %s: %w", path, err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return signer, nil
}

// DialConnector opens a fresh connection on every Acquire and closes it on
// Release. There is no pooling.
type DialConnector struct {
	cfg     models.ConnectionConfig
	factory ClientFactory
	logger  zerolog.Logger
}

// NewDialConnector creates a connector for cfg.
func NewDialConnector(logger zerolog.Logger, cfg models.ConnectionConfig, factory ClientFactory) *DialConnector {
	if factory == nil {
		factory = &DefaultClientFactory{}
	}
	return &DialConnector{cfg: cfg, factory: factory, logger: logger}
}

// Acquire establishes one authenticated connection.
func (c *DialConnector) Acquire(ctx context.Context) (SSHClient, error) {
	sshConfig, err := BuildClientConfig(c.cfg)
	if err != nil {
		return nil, err
	}

	addr := c.cfg.Address()

	type dialResult struct {
		client SSHClient
		err    error
	}
	clientChan := make(chan dialResult, 1)

	go func() {
		client, err := c.factory.NewClient("tcp", addr, sshConfig)
		clientChan <- dialResult{client, err}
	}()

	select {
	case <-ctx.Done():
		// A late connection must not leak.
		go func() {
			if res := <-clientChan; res.client != nil {
				_ = res.client.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-clientChan:
		if res.err != nil {
			c.logger.Debug().Err(res.err).Str("addr", addr).Msg("SSH connect failed")
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, res.err)
		}
		c.logger.Debug().Str("addr", addr).Msg("SSH connection established")
		return res.client, nil
	}
}

// Release closes client. It is safe to call with nil.
func (c *DialConnector) Release(client SSHClient) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Debug().Err(err).Msg("closing SSH connection")
	}
}

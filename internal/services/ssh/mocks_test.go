package ssh

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fgeck/gossh-mcp/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// Mock implementations

type mockExitError struct {
	code int
}

func (e *mockExitError) Error() string   { return fmt.Sprintf("Process exited with status %d", e.code) }
func (e *mockExitError) ExitStatus() int { return e.code }

type mockStdin struct {
	bytes.Buffer
	closed bool
}

func (m *mockStdin) Close() error {
	m.closed = true
	return nil
}

type mockSSHSession struct {
	startFunc func(cmd string) error
	// waitFunc receives everything written to stdin and the output writers.
	waitFunc  func(stdin *mockStdin, stdout, stderr io.Writer) error
	closeFunc func() error

	mu     sync.Mutex
	cmd    string
	stdin  *mockStdin
	stdout io.Writer
	stderr io.Writer
	closed int
}

func (m *mockSSHSession) StdinPipe() (io.WriteCloser, error) {
	m.stdin = &mockStdin{}
	return m.stdin, nil
}

func (m *mockSSHSession) SetOutput(stdout, stderr io.Writer) {
	m.stdout = stdout
	m.stderr = stderr
}

func (m *mockSSHSession) Start(cmd string) error {
	m.cmd = cmd
	if m.startFunc != nil {
		return m.startFunc(cmd)
	}
	return nil
}

func (m *mockSSHSession) Wait() error {
	if m.waitFunc != nil {
		return m.waitFunc(m.stdin, m.stdout, m.stderr)
	}
	return nil
}

func (m *mockSSHSession) Close() error {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func (m *mockSSHSession) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// mockRemoteFile keeps its buffer unexported so io.Copy goes through Write.
type mockRemoteFile struct {
	buf      bytes.Buffer
	writeErr error
	closed   bool
}

func (f *mockRemoteFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.buf.Write(p)
}

func (f *mockRemoteFile) String() string { return f.buf.String() }
func (f *mockRemoteFile) Len() int       { return f.buf.Len() }

func (f *mockRemoteFile) Close() error {
	f.closed = true
	return nil
}

type mockFileInfo struct {
	name string
	size int64
}

func (fi mockFileInfo) Name() string       { return fi.name }
func (fi mockFileInfo) Size() int64        { return fi.size }
func (fi mockFileInfo) Mode() os.FileMode  { return 0o644 }
func (fi mockFileInfo) ModTime() time.Time { return time.Time{} }
func (fi mockFileInfo) IsDir() bool        { return false }
func (fi mockFileInfo) Sys() interface{}   { return nil }

type mockSFTPClient struct {
	createFunc func(path string) (io.WriteCloser, error)
	statFunc   func(path string) (os.FileInfo, error)
	closeFunc  func() error

	files map[string]*mockRemoteFile
}

func (m *mockSFTPClient) Create(path string) (io.WriteCloser, error) {
	if m.createFunc != nil {
		return m.createFunc(path)
	}
	f := &mockRemoteFile{}
	if m.files == nil {
		m.files = map[string]*mockRemoteFile{}
	}
	m.files[path] = f
	return f, nil
}

func (m *mockSFTPClient) Stat(path string) (os.FileInfo, error) {
	if m.statFunc != nil {
		return m.statFunc(path)
	}
	f, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return mockFileInfo{name: path, size: int64(f.Len())}, nil
}

func (m *mockSFTPClient) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

type mockSSHClient struct {
	newSessionFunc func() (SSHSession, error)
	newSFTPFunc    func() (SFTPClient, error)
	closeFunc      func() error

	mu     sync.Mutex
	closed int
}

func (m *mockSSHClient) NewSession() (SSHSession, error) {
	if m.newSessionFunc != nil {
		return m.newSessionFunc()
	}
	return &mockSSHSession{}, nil
}

func (m *mockSSHClient) NewSFTP() (SFTPClient, error) {
	if m.newSFTPFunc != nil {
		return m.newSFTPFunc()
	}
	return &mockSFTPClient{}, nil
}

func (m *mockSSHClient) Close() error {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func (m *mockSSHClient) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type mockClientFactory struct {
	newClientFunc func(network, addr string, config *ssh.ClientConfig) (SSHClient, error)
	calls         int
}

func (m *mockClientFactory) NewClient(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
	m.calls++
	if m.newClientFunc != nil {
		return m.newClientFunc(network, addr, config)
	}
	return &mockSSHClient{}, nil
}

type observation struct {
	operation string
	outcome   string
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (r *recordingObserver) ObserveOperation(operation, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, observation{operation, outcome})
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testConfig() models.ConnectionConfig {
	return models.ConnectionConfig{
		Host:           "192.168.1.100",
		Port:           22,
		Username:       "root",
		Password:       "secret",
		ConnectTimeout: models.DefaultConnectTimeout,
	}
}

// newTestService wires a service to a factory that always returns client.
func newTestService(client SSHClient) (*Impl, *mockClientFactory) {
	factory := &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
			return client, nil
		},
	}
	cfg := testConfig()
	return NewWithConnector(testLogger(), cfg, NewDialConnector(testLogger(), cfg, factory)), factory
}

// sessionWithOutput returns a session that prints stdout/stderr and exits with code.
func sessionWithOutput(stdout, stderr string, code int) *mockSSHSession {
	return &mockSSHSession{
		waitFunc: func(_ *mockStdin, out, errOut io.Writer) error {
			_, _ = io.WriteString(out, stdout)
			_, _ = io.WriteString(errOut, stderr)
			if code != 0 {
				return &mockExitError{code: code}
			}
			return nil
		},
	}
}

var errAuthRejected = errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password], no supported methods remain")

package ssh

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fgeck/gossh-mcp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func writeLocalFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// uploadClient returns a client whose sessions record the commands they run.
func uploadClient(sftpClient *mockSFTPClient, commands *[]string) *mockSSHClient {
	var mu sync.Mutex
	return &mockSSHClient{
		newSessionFunc: func() (SSHSession, error) {
			return &mockSSHSession{
				startFunc: func(cmd string) error {
					mu.Lock()
					defer mu.Unlock()
					*commands = append(*commands, cmd)
					return nil
				},
			}, nil
		},
		newSFTPFunc: func() (SFTPClient, error) { return sftpClient, nil },
	}
}

func TestUpload_Success(t *testing.T) {
	local := writeLocalFile(t, "hello world")
	sftpClient := &mockSFTPClient{}
	var commands []string
	client := uploadClient(sftpClient, &commands)
	svc, _ := newTestService(client)

	result := svc.Upload(context.Background(), local, "/srv/app/config/payload.txt", 0)

	require.Nil(t, result.Error)
	assert.True(t, result.Success)
	assert.True(t, result.Verified)
	assert.Empty(t, result.VerifyNote)
	assert.Equal(t, int64(11), result.FileSize)
	assert.Equal(t, local, result.LocalPath)
	assert.Equal(t, "/srv/app/config/payload.txt", result.RemotePath)

	require.Contains(t, sftpClient.files, "/srv/app/config/payload.txt")
	remote := sftpClient.files["/srv/app/config/payload.txt"]
	assert.Equal(t, "hello world", remote.String())
	assert.True(t, remote.closed)

	assert.Equal(t, []string{"mkdir -p '/srv/app/config'"}, commands)
	assert.Equal(t, 1, client.closeCount())
}

func TestUpload_MissingLocalFileDoesNotConnect(t *testing.T) {
	svc, factory := newTestService(&mockSSHClient{})

	result := svc.Upload(context.Background(), "/tmp/missing_file", "/remote/x", 0)

	assert.False(t, result.Success)
	assert.Equal(t, int64(0), result.FileSize)
	require.NotNil(t, result.Error)
	assert.Equal(t, models.KindLocalIO, result.Error.Kind)
	assert.Contains(t, result.Error.Message, "local file")
	assert.Equal(t, 0, factory.calls, "no connection may be attempted")
}

func TestUpload_DirectoryIsRejected(t *testing.T) {
	svc, factory := newTestService(&mockSSHClient{})

	result := svc.Upload(context.Background(), t.TempDir(), "/remote/x", 0)

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, models.KindLocalIO, result.Error.Kind)
	assert.Contains(t, result.Error.Message, "not a regular file")
	assert.Equal(t, 0, factory.calls)
}

func TestUpload_UnreadableLocalFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	local := writeLocalFile(t, "secret")
	require.NoError(t, os.Chmod(local, 0o000))
	svc, factory := newTestService(&mockSSHClient{})

	result := svc.Upload(context.Background(), local, "/remote/x", 0)

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, models.KindPermission, result.Error.Kind)
	assert.Equal(t, 0, factory.calls)
}

func TestUpload_SizeMismatch(t *testing.T) {
	local := writeLocalFile(t, "0123456789")
	sftpClient := &mockSFTPClient{
		statFunc: func(path string) (os.FileInfo, error) {
			return mockFileInfo{name: path, size: 4}, nil
		},
	}
	var commands []string
	svc, _ := newTestService(uploadClient(sftpClient, &commands))

	result := svc.Upload(context.Background(), local, "/remote/file", 0)

	assert.False(t, result.Success)
	assert.False(t, result.Verified)
	assert.Equal(t, int64(10), result.FileSize, "reports the attempted size")
	require.NotNil(t, result.Error)
	assert.Equal(t, models.KindVerificationMismatch, result.Error.Kind)
	assert.Contains(t, result.Error.Message, "remote file size (4)")
	assert.Contains(t, result.Error.Message, "local file size (10)")
}

func TestUpload_StatFailureIsNonFatal(t *testing.T) {
	local := writeLocalFile(t, "abc")
	sftpClient := &mockSFTPClient{
		statFunc: func(path string) (os.FileInfo, error) {
			return nil, errors.New("sftp: stat not supported")
		},
	}
	var commands []string
	svc, _ := newTestService(uploadClient(sftpClient, &commands))

	result := svc.Upload(context.Background(), local, "/remote/file", 0)

	assert.True(t, result.Success)
	assert.False(t, result.Verified)
	assert.Nil(t, result.Error)
	assert.Equal(t, int64(3), result.FileSize)
	assert.Contains(t, result.VerifyNote, "verification failed")
	assert.Contains(t, result.VerifyNote, "stat not supported")
}

func TestUpload_MkdirFailureIsNonFatal(t *testing.T) {
	local := writeLocalFile(t, "abc")
	sftpClient := &mockSFTPClient{}
	client := &mockSSHClient{
		newSessionFunc: func() (SSHSession, error) {
			return sessionWithOutput("", "mkdir: cannot create directory", 1), nil
		},
		newSFTPFunc: func() (SFTPClient, error) { return sftpClient, nil },
	}
	svc, _ := newTestService(client)

	result := svc.Upload(context.Background(), local, "/readonly/dir/file", 0)

	require.Nil(t, result.Error)
	assert.True(t, result.Success)
	assert.True(t, result.Verified)
}

func TestUpload_MkdirSessionFailureIsNonFatal(t *testing.T) {
	local := writeLocalFile(t, "abc")
	sftpClient := &mockSFTPClient{}
	client := &mockSSHClient{
		newSessionFunc: func() (SSHSession, error) { return nil, errors.New("no more sessions") },
		newSFTPFunc:    func() (SFTPClient, error) { return sftpClient, nil },
	}
	svc, _ := newTestService(client)

	result := svc.Upload(context.Background(), local, "/some/dir/file", 0)

	assert.True(t, result.Success)
}

func TestUpload_NoMkdirForRootOrRelativePaths(t *testing.T) {
	for _, remote := range []string{"/file.txt", "file.txt"} {
		t.Run(remote, func(t *testing.T) {
			local := writeLocalFile(t, "abc")
			var commands []string
			svc, _ := newTestService(uploadClient(&mockSFTPClient{}, &commands))

			result := svc.Upload(context.Background(), local, remote, 0)

			assert.True(t, result.Success)
			assert.Empty(t, commands)
		})
	}
}

func TestUpload_RemotePermissionDenied(t *testing.T) {
	local := writeLocalFile(t, "abc")
	sftpClient := &mockSFTPClient{
		createFunc: func(path string) (io.WriteCloser, error) {
			return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrPermission}
		},
	}
	var commands []string
	svc, _ := newTestService(uploadClient(sftpClient, &commands))

	result := svc.Upload(context.Background(), local, "/etc/passwd", 0)

	assert.False(t, result.Success)
	assert.Equal(t, int64(0), result.FileSize)
	require.NotNil(t, result.Error)
	assert.Equal(t, models.KindPermission, result.Error.Kind)
	assert.Contains(t, result.Error.Message, "permission denied")
	assert.Contains(t, result.Error.Message, "/etc/passwd")
}

func TestUpload_WriteFailure(t *testing.T) {
	local := writeLocalFile(t, "abc")
	sftpClient := &mockSFTPClient{
		createFunc: func(path string) (io.WriteCloser, error) {
			return &mockRemoteFile{writeErr: errors.New("disk full")}, nil
		},
	}
	var commands []string
	svc, _ := newTestService(uploadClient(sftpClient, &commands))

	result := svc.Upload(context.Background(), local, "/remote/file", 0)

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, models.KindGeneric, result.Error.Kind)
	assert.Contains(t, result.Error.Message, "file upload failed")
	assert.Contains(t, result.Error.Message, "disk full")
}

func TestUpload_AuthenticationFailed(t *testing.T) {
	local := writeLocalFile(t, "abc")
	factory := &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
			return nil, errAuthRejected
		},
	}
	cfg := testConfig()
	svc := NewWithConnector(testLogger(), cfg, NewDialConnector(testLogger(), cfg, factory))

	result := svc.Upload(context.Background(), local, "/remote/file", 0)

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, models.KindAuthentication, result.Error.Kind)
}

func TestUpload_SFTPUnavailable(t *testing.T) {
	local := writeLocalFile(t, "abc")
	client := &mockSSHClient{
		newSFTPFunc: func() (SFTPClient, error) {
			return nil, errors.New("ssh: subsystem request failed")
		},
	}
	svc, _ := newTestService(client)

	result := svc.Upload(context.Background(), local, "/remote/file", 0)

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, models.KindTransport, result.Error.Kind)
	assert.Contains(t, result.Error.Message, "failed to open SFTP channel")
	assert.Equal(t, 1, client.closeCount())
}

func TestUpload_ClosesSFTPBeforeConnection(t *testing.T) {
	local := writeLocalFile(t, "abc")
	var order []string
	sftpClient := &mockSFTPClient{
		closeFunc: func() error {
			order = append(order, "sftp")
			return nil
		},
	}
	client := &mockSSHClient{
		newSFTPFunc: func() (SFTPClient, error) { return sftpClient, nil },
		closeFunc: func() error {
			order = append(order, "client")
			return nil
		},
	}
	svc, _ := newTestService(client)

	result := svc.Upload(context.Background(), local, "/file", 0)

	assert.True(t, result.Success)
	assert.Equal(t, []string{"sftp", "client"}, order)
}

func TestUpload_Timeout(t *testing.T) {
	local := writeLocalFile(t, strings.Repeat("x", 64))
	unblock := make(chan struct{})
	var once sync.Once
	release := func() error {
		once.Do(func() { close(unblock) })
		return nil
	}
	sftpClient := &mockSFTPClient{
		createFunc: func(path string) (io.WriteCloser, error) {
			<-unblock
			return nil, errors.New("sftp: connection closed")
		},
		closeFunc: release,
	}
	client := &mockSSHClient{
		newSFTPFunc: func() (SFTPClient, error) { return sftpClient, nil },
		closeFunc:   release,
	}
	svc, _ := newTestService(client)

	result := svc.Upload(context.Background(), local, "/file", 50*time.Millisecond)

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, models.KindGeneric, result.Error.Kind)
	assert.Contains(t, result.Error.Message, "file transfer timed out")
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'/srv/app'`, shellQuote("/srv/app"))
	assert.Equal(t, `'/srv/it'"'"'s here'`, shellQuote("/srv/it's here"))
	assert.Equal(t, `'$(rm -rf /)'`, shellQuote("$(rm -rf /)"))
}

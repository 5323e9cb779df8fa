package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/fgeck/gossh-mcp/internal/models"
	"github.com/rs/zerolog"
)

// mkdirTimeout bounds the best-effort remote directory creation.
const mkdirTimeout = 10 * time.Second

// Upload copies localPath to remotePath over SFTP and verifies the remote
// size. The remote file is overwritten; a size mismatch leaves it in place.
//
//nolint:funlen // upload steps are sequential
func (s *Impl) Upload(ctx context.Context, localPath, remotePath string, timeout time.Duration) *models.TransferResult {
	if timeout <= 0 {
		timeout = DefaultTransferTimeout
	}
	start := time.Now()
	logger := s.opLogger(OpUpload)

	result := &models.TransferResult{
		LocalPath:  localPath,
		RemotePath: remotePath,
	}

	fail := func(opErr *models.OpError) *models.TransferResult {
		logger.Error().Err(opErr.Err).Str("kind", string(opErr.Kind)).Msg(opErr.Message)
		result.Success = false
		result.Error = opErr
		s.observe(OpUpload, start, string(opErr.Kind))
		return result
	}

	// No connection is made for a missing or unreadable local file.
	local, size, opErr := openLocalFile(localPath, remotePath)
	if opErr != nil {
		return fail(opErr)
	}
	defer func() { _ = local.Close() }()

	client, err := s.connector.Acquire(ctx)
	if err != nil {
		return fail(transferError(err, localPath, remotePath))
	}
	defer s.connector.Release(client)

	sftpClient, err := client.NewSFTP()
	if err != nil {
		return fail(transferError(fmt.Errorf("failed to open SFTP channel: %w", err), localPath, remotePath))
	}
	defer func() { _ = sftpClient.Close() }()

	logger.Info().
		Str("local_path", localPath).
		Str("remote_path", remotePath).
		Int64("size", size).
		Msg("starting upload")

	var remoteInfo os.FileInfo
	var statErr error

	abort := func() {
		_ = sftpClient.Close()
		_ = client.Close()
	}
	err = withTimeout(ctx, timeout, "file transfer", abort, func() error {
		s.ensureRemoteDir(logger, client, remotePath)

		remote, err := sftpClient.Create(remotePath)
		if err != nil {
			return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
		}
		if _, err := io.Copy(remote, local); err != nil {
			_ = remote.Close()
			return fmt.Errorf("failed to write remote file %s: %w", remotePath, err)
		}
		if err := remote.Close(); err != nil {
			return fmt.Errorf("failed to close remote file %s: %w", remotePath, err)
		}

		remoteInfo, statErr = sftpClient.Stat(remotePath)
		return nil
	})
	if err != nil {
		return fail(transferError(err, localPath, remotePath))
	}

	result.FileSize = size

	if statErr != nil {
		// The write did not fail, so the upload is presumed complete.
		result.Success = true
		result.VerifyNote = fmt.Sprintf("upload completed but verification failed: unable to stat remote file: %v", statErr)
		logger.Warn().Err(statErr).Msg("could not verify remote file")
		s.observe(OpUpload, start, OutcomeUnverified)
		return result
	}

	if remoteInfo.Size() != size {
		return fail(models.NewOpError(models.KindVerificationMismatch,
			fmt.Sprintf("upload verification failed: remote file size (%d) does not match local file size (%d)", remoteInfo.Size(), size), nil))
	}

	result.Success = true
	result.Verified = true

	logger.Info().
		Str("local_path", localPath).
		Str("remote_path", remotePath).
		Int64("size", size).
		Dur("duration", time.Since(start)).
		Msg("upload completed")

	s.observe(OpUpload, start, OutcomeSuccess)
	return result
}

// openLocalFile checks that localPath is a readable regular file and opens it.
func openLocalFile(localPath, remotePath string) (*os.File, int64, *models.OpError) {
	info, err := os.Stat(localPath)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, 0, transferError(err, localPath, remotePath)
		}
		return nil, 0, models.NewOpError(models.KindLocalIO, fmt.Sprintf("local file does not exist: %s", localPath), err)
	}

	if !info.Mode().IsRegular() {
		return nil, 0, models.NewOpError(models.KindLocalIO, fmt.Sprintf("local file is not a regular file: %s", localPath), nil)
	}

	f, err := os.Open(localPath) //nolint:gosec // path supplied by the caller on purpose
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, 0, transferError(err, localPath, remotePath)
		}
		return nil, 0, models.NewOpError(models.KindLocalIO, fmt.Sprintf("local file cannot be opened: %s: %v", localPath, err), err)
	}

	return f, info.Size(), nil
}

// ensureRemoteDir creates the parent directory of remotePath. Failures are
// logged and ignored.
func (s *Impl) ensureRemoteDir(logger zerolog.Logger, client SSHClient, remotePath string) {
	dir := path.Dir(remotePath)
	if dir == "." || dir == "/" || dir == "" {
		return
	}

	session, err := client.NewSession()
	if err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("could not open session to create remote directory")
		return
	}
	defer func() { _ = session.Close() }()

	var stderr bytes.Buffer
	session.SetOutput(io.Discard, &stderr)

	cmd := "mkdir -p " + shellQuote(dir)
	if err := session.Start(cmd); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("could not create remote directory")
		return
	}

	err = withTimeout(context.Background(), mkdirTimeout, "mkdir", func() { _ = session.Close() }, session.Wait)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("dir", dir).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Msg("could not create remote directory")
	}
}

// shellQuote wraps s in single quotes for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

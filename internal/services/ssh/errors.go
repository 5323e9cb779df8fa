package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/fgeck/gossh-mcp/internal/models"
	"golang.org/x/crypto/ssh"
)

// timeoutError is returned when a command or transfer outlives the
// caller-supplied timeout.
type timeoutError struct {
	what    string
	timeout time.Duration
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.what, e.timeout)
}

// exitStatuser is implemented by *ssh.ExitError.
type exitStatuser interface {
	error
	ExitStatus() int
}

// classify maps a failure to its error kind. Timeouts are generic failures.
func classify(err error) models.ErrorKind {
	var authErr *authError
	var tErr *timeoutError
	var netErr net.Error
	var chanErr *ssh.OpenChannelError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &tErr), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.KindGeneric
	case errors.As(err, &authErr), isAuthFailure(err):
		return models.KindAuthentication
	case errors.Is(err, fs.ErrPermission):
		return models.KindPermission
	case errors.As(err, &netErr), errors.As(err, &chanErr),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed),
		isProtocolFailure(err):
		return models.KindTransport
	default:
		return models.KindGeneric
	}
}

// x/crypto/ssh reports rejected credentials only through the message.
func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}

func isProtocolFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "ssh: ") || strings.Contains(msg, "sftp: ")
}

// commandError converts a command or probe failure into an OpError.
func commandError(err error, genericPrefix string) *models.OpError {
	kind := classify(err)
	switch kind {
	case models.KindAuthentication:
		return models.NewOpError(kind, fmt.Sprintf("SSH authentication failed, check username and password/key: %v", err), err)
	case models.KindTransport:
		return models.NewOpError(kind, fmt.Sprintf("SSH connection error: %v", err), err)
	case models.KindPermission:
		return models.NewOpError(kind, fmt.Sprintf("permission denied: %v", err), err)
	default:
		return models.NewOpError(models.KindGeneric, fmt.Sprintf("%s: %v", genericPrefix, err), err)
	}
}

// transferError converts an upload failure into an OpError.
func transferError(err error, localPath, remotePath string) *models.OpError {
	switch classify(err) {
	case models.KindPermission:
		return models.NewOpError(models.KindPermission,
			fmt.Sprintf("permission denied: cannot access local file %s or remote path %s: %v", localPath, remotePath, err), err)
	default:
		return commandError(err, "file upload failed")
	}
}

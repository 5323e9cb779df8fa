// Package models contains the data structures used throughout gossh-mcp.
package models

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// ErrConfiguration marks a missing or invalid connection parameter. It is the
// only error kind that is allowed to stop the process.
var ErrConfiguration = errors.New("configuration error")

// DefaultConnectTimeout bounds TCP connect plus SSH handshake.
const DefaultConnectTimeout = 10 * time.Second

// ServerConfig holds the complete process configuration.
type ServerConfig struct {
	SSH ConnectionConfig
	WOL *WOLConfig // nil if not configured
}

// ConnectionConfig holds the parameters of the single remote host.
type ConnectionConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string // optional if KeyPath is set
	KeyPath        string // optional if Password is set
	KeyPassphrase  string // optional, for encrypted keys
	ConnectTimeout time.Duration
}

// Address returns the host:port pair used for dialing.
func (c ConnectionConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

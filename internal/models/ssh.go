package models

import "encoding/json"

// ErrorKind classifies why an operation failed.
type ErrorKind string

// Error kinds reported in operation results.
const (
	KindConfiguration        ErrorKind = "configuration"
	KindAuthentication       ErrorKind = "authentication"
	KindTransport            ErrorKind = "transport"
	KindLocalIO              ErrorKind = "local_io"
	KindPermission           ErrorKind = "permission"
	KindVerificationMismatch ErrorKind = "verification_mismatch"
	KindGeneric              ErrorKind = "generic"
)

// OpError is the failure variant of an operation result.
type OpError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewOpError creates an OpError. err may be nil.
func NewOpError(kind ErrorKind, msg string, err error) *OpError {
	return &OpError{Kind: kind, Message: msg, Err: err}
}

func (e *OpError) Error() string {
	return e.Message
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error as {"kind": ..., "message": ...}.
func (e *OpError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    ErrorKind `json:"kind"`
		Message string    `json:"message"`
	}{e.Kind, e.Message})
}

// ExecutionResult holds the result of a remote command.
type ExecutionResult struct {
	Success  bool     `json:"success"`
	ExitCode int      `json:"exit_code"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
	Error    *OpError `json:"error"`
}

// TransferResult holds the result of a file upload.
//
// Verified is false when the post-upload stat could not be performed; in that
// case Success stays true and VerifyNote explains why.
type TransferResult struct {
	Success    bool     `json:"success"`
	LocalPath  string   `json:"local_path"`
	RemotePath string   `json:"remote_path"`
	FileSize   int64    `json:"file_size"`
	Verified   bool     `json:"verified"`
	VerifyNote string   `json:"verify_note,omitempty"`
	Error      *OpError `json:"error"`
}

// ProbeResult holds the result of a connection check.
type ProbeResult struct {
	Connected  bool     `json:"connected"`
	Host       string   `json:"host"`
	Port       int      `json:"port"`
	Username   string   `json:"username"`
	TestOutput string   `json:"test_output"`
	Error      *OpError `json:"error"`
}

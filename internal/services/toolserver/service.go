// Package toolserver exposes the remote operations as MCP tools.
package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"math"
	"time"

	"github.com/fgeck/gossh-mcp/internal/models"
	"github.com/fgeck/gossh-mcp/internal/services/ssh"
	"github.com/fgeck/gossh-mcp/internal/services/wol"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Name is the server name announced to clients.
const Name = "gossh-mcp"

// OpWake is the tool name of the Wake-on-LAN operation.
const OpWake = "wake_host"

// Version is announced to clients during initialization.
var Version = "dev"

// Server wires the SSH and WOL services to an MCP server.
type Server struct {
	sshSvc ssh.Service
	wolSvc wol.Service
	cfg    models.ServerConfig
	mcp    *server.MCPServer
	logger zerolog.Logger
}

// New creates a tool server backed by sshSvc and wolSvc. The wake_host tool
// is only registered when cfg.WOL is set.
func New(logger zerolog.Logger, sshSvc ssh.Service, wolSvc wol.Service, cfg models.ServerConfig) *Server {
	s := &Server{
		sshSvc: sshSvc,
		wolSvc: wolSvc,
		cfg:    cfg,
		logger: logger,
	}

	s.mcp = server.NewMCPServer(Name, Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.mcp.AddTools(s.tools()...)

	return s
}

// MCPServer returns the configured MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP requests on stdin/stdout until the input is closed.
func (s *Server) ServeStdio() error {
	s.logger.Info().
		Str("host", s.cfg.SSH.Host).
		Int("port", s.cfg.SSH.Port).
		Bool("wol", s.cfg.WOL != nil).
		Msg("serving MCP on stdio")

	return server.ServeStdio(s.mcp, server.WithErrorLogger(stdlog.New(s.logger, "", 0)))
}

func (s *Server) tools() []server.ServerTool {
	tools := []server.ServerTool{
		{
			Tool: mcp.NewTool(ssh.OpExecute,
				mcp.WithDescription("Execute a command on the remote host and return exit code, stdout and stderr"),
				mcp.WithString("command", mcp.Required(), mcp.Description("Shell command to run")),
				mcp.WithNumber("timeout", mcp.Description("Timeout in seconds (default 30)")),
			),
			Handler: s.handleExecute,
		},
		{
			Tool: mcp.NewTool(ssh.OpGetOutput,
				mcp.WithDescription("Execute a command on the remote host and return only its output"),
				mcp.WithString("command", mcp.Required(), mcp.Description("Shell command to run")),
				mcp.WithNumber("timeout", mcp.Description("Timeout in seconds (default 30)")),
			),
			Handler: s.handleGetOutput,
		},
		{
			Tool: mcp.NewTool(ssh.OpCheckConnection,
				mcp.WithDescription("Check that the remote host is reachable and accepts the configured credentials"),
			),
			Handler: s.handleCheckConnection,
		},
		{
			Tool: mcp.NewTool(ssh.OpExecuteInteractive,
				mcp.WithDescription("Execute a command on the remote host, writing input_data to its standard input"),
				mcp.WithString("command", mcp.Required(), mcp.Description("Shell command to run")),
				mcp.WithString("input_data", mcp.Description("Text written to the command's standard input")),
				mcp.WithNumber("timeout", mcp.Description("Timeout in seconds (default 30)")),
			),
			Handler: s.handleExecuteInteractive,
		},
		{
			Tool: mcp.NewTool(ssh.OpUpload,
				mcp.WithDescription("Upload a local file to the remote host over SFTP and verify its size"),
				mcp.WithString("local_path", mcp.Required(), mcp.Description("Path of the file on this machine")),
				mcp.WithString("remote_path", mcp.Required(), mcp.Description("Destination path on the remote host")),
				mcp.WithNumber("timeout", mcp.Description("Timeout in seconds (default 60)")),
			),
			Handler: s.handleUpload,
		},
	}

	if s.cfg.WOL != nil {
		tools = append(tools, server.ServerTool{
			Tool: mcp.NewTool(OpWake,
				mcp.WithDescription("Send a Wake-on-LAN packet to the remote host and wait for its SSH port"),
			),
			Handler: s.handleWake,
		})
	}

	return tools
}

func (s *Server) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.sshSvc.Execute(ctx, command, timeoutArg(req, ssh.DefaultCommandTimeout)))
}

func (s *Server) handleGetOutput(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.sshSvc.GetOutput(ctx, command, timeoutArg(req, ssh.DefaultCommandTimeout))), nil
}

func (s *Server) handleCheckConnection(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sshSvc.CheckConnection(ctx))
}

func (s *Server) handleExecuteInteractive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	input := req.GetString("input_data", "")
	return jsonResult(s.sshSvc.ExecuteInteractive(ctx, command, input, timeoutArg(req, ssh.DefaultCommandTimeout)))
}

func (s *Server) handleUpload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	localPath, err := req.RequireString("local_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	remotePath, err := req.RequireString("remote_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.sshSvc.Upload(ctx, localPath, remotePath, timeoutArg(req, ssh.DefaultTransferTimeout)))
}

// wakeResponse is the wire form of a WOL result.
type wakeResponse struct {
	*models.WOLResult
	Error *string `json:"error"`
}

func (s *Server) handleWake(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.cfg.WOL == nil {
		return mcp.NewToolResultError("Wake-on-LAN is not configured"), nil
	}

	result, err := s.wolSvc.Wake(ctx, *s.cfg.WOL, s.cfg.SSH.Address())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("WOL failed: %v", err)), nil
	}

	resp := wakeResponse{WOLResult: result}
	if result.Error != nil {
		msg := result.Error.Error()
		resp.Error = &msg
		s.logger.Warn().Err(result.Error).Msg("WOL failed")
	}
	return jsonResult(resp)
}

// timeoutArg reads the optional "timeout" argument in seconds. Values beyond
// the range of time.Duration are clamped to its maximum.
func timeoutArg(req mcp.CallToolRequest, def time.Duration) time.Duration {
	seconds := req.GetFloat("timeout", 0)
	if seconds <= 0 {
		return def
	}
	nanos := seconds * float64(time.Second)
	if nanos >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(nanos)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fgeck/gossh-mcp/internal/models"
	"github.com/fgeck/gossh-mcp/internal/services/ssh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	execTimeout time.Duration
	execInput   string
	execStdin   bool
)

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- <command>",
	Short: "Execute a command on the remote host",
	Long: `Execute a command on the remote host and print the result as JSON.

With --input or --stdin the text is written to the command's standard
input, which is then closed.`,
	Example: `  gossh-mcp exec -- uptime
  gossh-mcp exec --input "abc" -- cat
  echo "SELECT 1;" | gossh-mcp exec --stdin -- psql`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().DurationVarP(&execTimeout, "timeout", "t", ssh.DefaultCommandTimeout, "command timeout")
	execCmd.Flags().StringVarP(&execInput, "input", "i", "", "text written to the command's standard input")
	execCmd.Flags().BoolVar(&execStdin, "stdin", false, "forward this process's standard input to the command")
	execCmd.MarkFlagsMutuallyExclusive("input", "stdin")
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	command := strings.Join(args, " ")

	input := execInput
	if execStdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		input = string(data)
	}

	ctx, cancel := signalContext()
	defer cancel()

	svc := ssh.New(log.Logger, cfg.SSH)

	var result *models.ExecutionResult
	if cmd.Flags().Changed("input") || execStdin {
		result = svc.ExecuteInteractive(ctx, command, input, execTimeout)
	} else {
		result = svc.Execute(ctx, command, execTimeout)
	}

	if err := printJSON(result); err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("command failed (exit code: %d)", result.ExitCode)
	}
	return nil
}

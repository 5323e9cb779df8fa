package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fgeck/gossh-mcp/internal/services/ssh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var outputTimeout time.Duration

var outputCmd = &cobra.Command{
	Use:   "output [flags] -- <command>",
	Short: "Print the output of a remote command",
	Long: `Print the standard output of a remote command. On failure a diagnostic
with the exit code, stderr and error is printed instead; the exit status
is always zero.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOutput,
}

func init() {
	outputCmd.Flags().DurationVarP(&outputTimeout, "timeout", "t", ssh.DefaultCommandTimeout, "command timeout")
}

func runOutput(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	out := ssh.New(log.Logger, cfg.SSH).GetOutput(ctx, strings.Join(args, " "), outputTimeout)
	fmt.Print(out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Println()
	}
	return nil
}

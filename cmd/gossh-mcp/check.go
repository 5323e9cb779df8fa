package main

import (
	"errors"

	"github.com/fgeck/gossh-mcp/internal/services/ssh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the remote host is reachable and accepts the credentials",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	result := ssh.New(log.Logger, cfg.SSH).CheckConnection(ctx)
	if err := printJSON(result); err != nil {
		return err
	}

	if !result.Connected {
		return errors.New("connection check failed")
	}
	return nil
}

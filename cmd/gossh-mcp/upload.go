package main

import (
	"errors"
	"time"

	"github.com/fgeck/gossh-mcp/internal/services/ssh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var uploadTimeout time.Duration

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> <remote-path>",
	Short: "Upload a file to the remote host over SFTP",
	Long: `Upload a local file to the remote host, creating the remote parent
directory when needed, and verify the remote size afterwards.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().DurationVarP(&uploadTimeout, "timeout", "t", ssh.DefaultTransferTimeout, "transfer timeout")
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	result := ssh.New(log.Logger, cfg.SSH).Upload(ctx, args[0], args[1], uploadTimeout)
	if err := printJSON(result); err != nil {
		return err
	}

	if !result.Success {
		return errors.New("upload failed")
	}
	return nil
}

package main

import (
	"errors"
	"fmt"

	"github.com/fgeck/gossh-mcp/internal/services/wol"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var wakeNoWait bool

var wakeCmd = &cobra.Command{
	Use:   "wake",
	Short: "Wake the remote host with Wake-on-LAN",
	Long: `Send a Wake-on-LAN magic packet to the configured MAC address and wait
until the SSH port of the host accepts connections.`,
	RunE: runWake,
}

func init() {
	wakeCmd.Flags().BoolVar(&wakeNoWait, "no-wait", false, "send the packet without waiting for the host")
}

func runWake(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.WOL == nil {
		log.Error().Msg("Wake-on-LAN is not configured, set SSH_WOL_MAC or the wol section")
		return errors.New("wake-on-lan not configured")
	}
	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	target := cfg.SSH.Address()
	if wakeNoWait {
		target = ""
	}

	result, err := wol.New(log.Logger).Wake(ctx, *cfg.WOL, target)
	if err != nil {
		return fmt.Errorf("WOL failed: %w", err)
	}
	if result.Error != nil {
		log.Error().Err(result.Error).Bool("packet_sent", result.PacketSent).Msg("WOL failed")
		return fmt.Errorf("WOL failed: %w", result.Error)
	}

	log.Info().
		Bool("packet_sent", result.PacketSent).
		Bool("target_ready", result.TargetReady).
		Dur("wait_duration", result.WaitDuration).
		Msg("WOL completed")

	return nil
}

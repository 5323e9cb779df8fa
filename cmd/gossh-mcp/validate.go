package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long:  `Validate the configuration without connecting to the remote host.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Host: %s\n", cfg.SSH.Host)
	fmt.Printf("  Port: %d\n", cfg.SSH.Port)
	fmt.Printf("  Username: %s\n", cfg.SSH.Username)
	if cfg.SSH.Password != "" {
		fmt.Printf("  Password: (configured)\n")
	}
	if cfg.SSH.KeyPath != "" {
		fmt.Printf("  Key Path: %s\n", cfg.SSH.KeyPath)
	}
	if cfg.SSH.KeyPassphrase != "" {
		fmt.Printf("  Key Passphrase: (configured)\n")
	}
	fmt.Printf("  Connect Timeout: %s\n", cfg.SSH.ConnectTimeout)
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Wake-on-LAN: %v\n", cfg.WOL != nil)

	if cfg.WOL != nil {
		fmt.Println()
		fmt.Println("WOL Configuration:")
		fmt.Printf("  MAC Address: %s\n", cfg.WOL.MACAddress)
		fmt.Printf("  Broadcast IP: %s\n", cfg.WOL.BroadcastIP)
		fmt.Printf("  Timeout: %s\n", cfg.WOL.Timeout)
		fmt.Printf("  Poll Interval: %s\n", cfg.WOL.PollInterval)
		fmt.Printf("  Stabilize Wait: %s\n", cfg.WOL.StabilizeWait)
	}

	return nil
}

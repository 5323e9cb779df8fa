package models

import "time"

// WOLConfig holds Wake-on-LAN configuration for the remote host.
type WOLConfig struct {
	MACAddress    string
	BroadcastIP   string
	Timeout       time.Duration // max time to wait for the SSH port
	PollInterval  time.Duration // how often to dial the SSH port
	StabilizeWait time.Duration // wait after the port accepts connections
}

// WOLResult holds the result of a Wake-on-LAN operation.
type WOLResult struct {
	PacketSent   bool          `json:"packet_sent"`
	TargetReady  bool          `json:"target_ready"`
	WaitDuration time.Duration `json:"wait_duration"`
	Error        error         `json:"-"`
}

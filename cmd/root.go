// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/cobraflex/pkg/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config

	// Robot connection flags
	transportKind string
	robotHost     string
	httpDialect   string
	timeout       string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Output flags
	logLevel    string
	logFile     string
	journalPath string
)

var rootCmd = &cobra.Command{
	Use:   "cobraflex",
	Short: "Cobra Flex Motion and Gimbal Teleop",
	Long: `Cobraflex - drive a Cobra Flex mecanum robot and its pan/tilt gimbal.

Operator intents (hold a direction, step the gimbal, change a light) are turned
into JSON commands and sent to the robot's controller board.

Connection modes:
  HTTP:      --host 192.168.4.1 [--dialect esp32|jetson]
  Serial:    --transport serial --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --transport websocket --url ws://host/path [--username user]

Settings are read from ~/.config/cobraflex/config.yaml (or --config) and
overridden by flags. COBRAFLEX_HOST overrides the configured host.

For WebSocket authentication, the password is read from the COBRAFLEX_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.config/cobraflex/config.yaml)")

	// Robot connection flags
	rootCmd.PersistentFlags().StringVarP(&transportKind, "transport", "t", "", "Transport: http, serial or websocket")
	rootCmd.PersistentFlags().StringVar(&robotHost, "host", "", "Robot host or base URL (http only)")
	rootCmd.PersistentFlags().StringVar(&httpDialect, "dialect", "", "HTTP dialect: esp32 or jetson")
	rootCmd.PersistentFlags().StringVar(&timeout, "timeout", "", "Request timeout, e.g. 2s")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Output flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append logs to this file")
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "", "Record every sent command to this CBOR journal")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, loaded); err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded
	return nil
}

func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("transport") {
		c.Robot.Transport = transportKind
	}
	if flags.Changed("host") {
		c.Robot.Host = robotHost
	}
	if flags.Changed("dialect") {
		c.Robot.Dialect = httpDialect
	}
	if flags.Changed("timeout") {
		var d config.Duration
		if err := d.Set(timeout); err != nil {
			return err
		}
		c.Robot.Timeout = d
	}

	// --port and --url imply their transport, like the connection modes above
	if flags.Changed("port") {
		c.Robot.Port = portName
		if !flags.Changed("transport") {
			c.Robot.Transport = config.TransportSerial
		}
	}
	if flags.Changed("baud") {
		c.Robot.Baud = baudRate
	}
	if flags.Changed("url") {
		c.Robot.URL = wsURL
		if !flags.Changed("transport") {
			c.Robot.Transport = config.TransportWebSocket
		}
	}
	if flags.Changed("username") {
		c.Robot.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		c.Robot.NoSSLVerify = wsNoSSLVerify
	}

	if flags.Changed("log-level") {
		c.Logging.Level = logLevel
	}
	if flags.Changed("log-file") {
		c.Logging.File = logFile
	}
	if flags.Changed("journal") {
		c.Journal.Path = journalPath
	}
	return nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/config"
	"github.com/Thermoquad/cobraflex/pkg/journal"
	"github.com/Thermoquad/cobraflex/pkg/log"
	"github.com/Thermoquad/cobraflex/pkg/motion"
	"github.com/Thermoquad/cobraflex/pkg/teleop"
	"github.com/Thermoquad/cobraflex/pkg/transport"
	"github.com/Thermoquad/cobraflex/pkg/wire"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// PasswordEnv holds the WebSocket password when set.
const PasswordEnv = "COBRAFLEX_PASSWORD"

// shutdownTimeout bounds the final stop commands.
const shutdownTimeout = 5 * time.Second

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// newLogger builds the command logger. The TUI owns the terminal, so it logs
// to the configured file only.
func newLogger(console bool) (log.Logger, io.Closer, error) {
	opts := log.Options{
		Level: cfg.Logging.Level,
		File:  cfg.Logging.File,
	}
	if console {
		opts.Console = os.Stderr
	}
	return log.New(opts)
}

// openBaseTransport opens the transport selected by the configuration.
func openBaseTransport(c *config.Config) (transport.Transport, error) {
	switch c.Robot.Transport {
	case config.TransportSerial:
		if c.Robot.Port == "" {
			return nil, fmt.Errorf("serial transport needs --port")
		}
		return transport.NewSerialTransport(transport.SerialOptions{
			Port:         c.Robot.Port,
			BaudRate:     c.Robot.Baud,
			ReplyTimeout: c.Robot.Timeout.Std(),
		})

	case config.TransportWebSocket:
		if c.Robot.URL == "" {
			return nil, fmt.Errorf("websocket transport needs --url")
		}
		password := ""
		if c.Robot.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}
		return transport.NewWebSocketTransport(transport.WebSocketOptions{
			URL:           c.Robot.URL,
			Username:      c.Robot.Username,
			Password:      password,
			SkipSSLVerify: c.Robot.NoSSLVerify,
			ReplyTimeout:  c.Robot.Timeout.Std(),
		})

	default:
		dialect, err := transport.ParseDialect(c.Robot.Dialect)
		if err != nil {
			return nil, err
		}
		return transport.NewHTTPTransport(transport.HTTPOptions{
			Host:    c.Robot.Host,
			Dialect: dialect,
			Timeout: c.Robot.Timeout.Std(),
		})
	}
}

// OpenTransport opens the configured transport, journals it when a journal
// path is set, and meters it. Closing the meter closes everything beneath.
func OpenTransport(logger log.Logger) (*transport.Meter, error) {
	base, err := openBaseTransport(cfg)
	if err != nil {
		return nil, err
	}

	next := base
	if cfg.Journal.Path != "" {
		rec, err := journal.Create(cfg.Journal.Path, base, nil)
		if err != nil {
			base.Close()
			return nil, err
		}
		logger.WithField("session", rec.Session()).Infof("journaling commands to %s", cfg.Journal.Path)
		next = rec
	}

	return transport.NewMeter(next, nil, logger), nil
}

// newController builds a controller over t from the configuration.
func newController(t transport.Transport, logger log.Logger) (*teleop.Controller, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	codec, err := wire.NewCodec(policy)
	if err != nil {
		return nil, err
	}

	ramp := cfg.SpeedRamp()
	limits := motion.DefaultGimbalLimits()
	return teleop.New(teleop.Options{
		Codec:         codec,
		Transport:     t,
		Logger:        logger,
		Ramp:          &ramp,
		GimbalLimits:  &limits,
		SpeedLevel:    cfg.Chassis.SpeedLevel,
		ChassisPeriod: cfg.Chassis.Period.Std(),
		GimbalPeriod:  cfg.Gimbal.Period.Std(),
	})
}

// session bundles what every robot command needs.
type session struct {
	logger     log.Logger
	logCloser  io.Closer
	meter      *transport.Meter
	controller *teleop.Controller
}

// openSession sets up logging, the transport and the controller.
func openSession(console bool) (*session, error) {
	logger, logCloser, err := newLogger(console)
	if err != nil {
		return nil, err
	}

	meter, err := OpenTransport(logger)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	controller, err := newController(meter, logger)
	if err != nil {
		meter.Close()
		logCloser.Close()
		return nil, err
	}

	return &session{logger: logger, logCloser: logCloser, meter: meter, controller: controller}, nil
}

func (s *session) Close() error {
	err := s.meter.Close()
	s.logCloser.Close()
	return err
}

// interruptContext is cancelled on Ctrl+C or SIGTERM.
func interruptContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// finish stops the robot and closes the session, keeping the first error.
func (s *session) finish(err error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := s.controller.Shutdown(ctx); serr != nil && err == nil {
		err = serr
	}
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

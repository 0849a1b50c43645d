// Package config loads server settings from the environment and command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds the runtime settings of the chat server. Empty transport
// addresses disable the corresponding listener.
type Config struct {
	TCPAddr      string   `env:"ROOMCHAT_TCP_ADDR"      envDefault:":7337"`
	SSHAddr      string   `env:"ROOMCHAT_SSH_ADDR"`
	HostKeyPath  string   `env:"ROOMCHAT_SSH_HOST_KEY"  envDefault:"configs/ssh_host_ed25519"`
	WSAddr       string   `env:"ROOMCHAT_WS_ADDR"`
	DefaultRooms []string `env:"ROOMCHAT_DEFAULT_ROOMS" envDefault:"chat" envSeparator:","`
	ServerName   string   `env:"ROOMCHAT_SERVER_NAME"   envDefault:"Batman"`
	SendQueue    int      `env:"ROOMCHAT_SEND_QUEUE"    envDefault:"4096"`
	LogLevel     string   `env:"ROOMCHAT_LOG_LEVEL"     envDefault:"info"`
	LogConsole   bool     `env:"ROOMCHAT_LOG_CONSOLE"   envDefault:"true"`
}

// LoadDotenv copies variables from a dotenv file into the process environment.
// Variables already set win, and a missing file is not an error.
func LoadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Parse reads the environment and then applies flag overrides from args.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	fs.StringVar(&cfg.TCPAddr, "tcp-addr", cfg.TCPAddr, "TCP address for the line protocol (empty disables)")
	fs.StringVar(&cfg.SSHAddr, "ssh-addr", cfg.SSHAddr, "TCP address for the SSH transport (empty disables)")
	fs.StringVar(&cfg.HostKeyPath, "host-key", cfg.HostKeyPath, "Path to the SSH host private key (auto-generated if missing)")
	fs.StringVar(&cfg.WSAddr, "ws-addr", cfg.WSAddr, "HTTP address for the WebSocket transport (empty disables)")
	fs.Func("rooms", "Comma separated rooms created at startup", func(v string) error {
		cfg.DefaultRooms = splitList(v)
		return nil
	})
	fs.StringVar(&cfg.ServerName, "name", cfg.ServerName, "Server name shown in the greeting")
	fs.IntVar(&cfg.SendQueue, "send-queue", cfg.SendQueue, "Undelivered lines a connection may accumulate before it is dropped")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.LogConsole, "log-console", cfg.LogConsole, "Human readable console logs instead of JSON")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: parse flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	if c.TCPAddr == "" && c.SSHAddr == "" && c.WSAddr == "" {
		return errors.New("config: at least one of tcp, ssh or ws address is required")
	}
	if c.SendQueue <= 0 {
		return fmt.Errorf("config: send queue must be positive, got %d", c.SendQueue)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

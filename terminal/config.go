package terminal

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration parsed from flags and an optional
// YAML file. Flags win over the file, the file wins over defaults.
type Config struct {
	ListenHost    string        `yaml:"listen_host"`
	ListenPort    int           `yaml:"listen_port"`
	DataPortStart int           `yaml:"data_port_start"`
	DataPortEnd   int           `yaml:"data_port_end"`
	RootDir       string        `yaml:"root_dir"`
	PublicHost    string        `yaml:"public_host"`
	AuthMode      string        `yaml:"auth_mode"`
	UsersFile     string        `yaml:"users_file"`
	SharedSecret  string        `yaml:"shared_secret"`
	AcceptTimeout time.Duration `yaml:"accept_timeout"`
	LogLevel      string        `yaml:"log_level"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenHost:    "0.0.0.0",
		ListenPort:    2121,
		DataPortStart: 0,
		DataPortEnd:   0,
		RootDir:       ".",
		AuthMode:      "open",
		AcceptTimeout: 30 * time.Second,
		LogLevel:      "info",
	}
}

// LoadConfig builds the configuration from the given argument list. Pass
// os.Args[1:] from main.
func LoadConfig(args []string) (*Config, error) {
	config := DefaultConfig()

	fs := flag.NewFlagSet("scrivo-ftp", flag.ContinueOnError)
	configFile := fs.String("config", "", "path to YAML config file")
	fs.StringVar(&config.ListenHost, "host", config.ListenHost, "address to listen on")
	fs.IntVar(&config.ListenPort, "port", config.ListenPort, "control connection port")
	fs.IntVar(&config.DataPortStart, "data-port-start", config.DataPortStart, "first passive data port (0 for ephemeral)")
	fs.IntVar(&config.DataPortEnd, "data-port-end", config.DataPortEnd, "last passive data port (0 for ephemeral)")
	fs.StringVar(&config.RootDir, "root", config.RootDir, "directory served as the FTP root")
	fs.StringVar(&config.PublicHost, "public-host", config.PublicHost, "IPv4 address advertised in PASV replies")
	fs.StringVar(&config.AuthMode, "auth", config.AuthMode, "auth mode: open, secret or users")
	fs.StringVar(&config.UsersFile, "users-file", config.UsersFile, "JSON user file for auth mode users")
	fs.StringVar(&config.SharedSecret, "secret", config.SharedSecret, "shared password for auth mode secret")
	fs.DurationVar(&config.AcceptTimeout, "accept-timeout", config.AcceptTimeout, "how long to wait for the data connection")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level: debug, info, warn or error")

	// First pass only to learn the config file path, second pass so the
	// remaining flags override whatever the file set.
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *configFile != "" {
		if err := loadConfigFile(*configFile, config); err != nil {
			return nil, err
		}
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// ValidateConfig validates the parsed configuration.
func ValidateConfig(config *Config) error {
	info, err := os.Stat(config.RootDir)
	if err != nil {
		return fmt.Errorf("root directory %s: %w", config.RootDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", config.RootDir)
	}

	if config.ListenPort < 0 || config.ListenPort > 65535 {
		return fmt.Errorf("invalid listen port: %d (must be 0-65535)", config.ListenPort)
	}

	if config.DataPortStart < 0 || config.DataPortStart > 65535 {
		return fmt.Errorf("invalid data port start: %d (must be 0-65535)", config.DataPortStart)
	}
	if config.DataPortEnd < 0 || config.DataPortEnd > 65535 {
		return fmt.Errorf("invalid data port end: %d (must be 0-65535)", config.DataPortEnd)
	}
	if (config.DataPortStart == 0) != (config.DataPortEnd == 0) {
		return fmt.Errorf("data port start and end must both be set or both be zero")
	}
	if config.DataPortStart > config.DataPortEnd {
		return fmt.Errorf("data port start (%d) must not exceed data port end (%d)",
			config.DataPortStart, config.DataPortEnd)
	}

	switch config.AuthMode {
	case "open":
	case "secret":
		if config.SharedSecret == "" {
			return fmt.Errorf("auth mode secret requires -secret")
		}
	case "users":
		if config.UsersFile == "" {
			return fmt.Errorf("auth mode users requires -users-file")
		}
	default:
		return fmt.Errorf("unknown auth mode: %s", config.AuthMode)
	}

	if config.AcceptTimeout <= 0 {
		return fmt.Errorf("accept timeout must be positive, got %s", config.AcceptTimeout)
	}

	if _, err := ParseLogLevel(config.LogLevel); err != nil {
		return err
	}

	return nil
}

// ParseLogLevel maps the configured level name to a slog level.
func ParseLogLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", name)
	}
}

// PrintStartupInfo logs the effective configuration at startup.
func PrintStartupInfo(logger *slog.Logger, config *Config) {
	logger.Info("starting FTP server",
		"listen", fmt.Sprintf("%s:%d", config.ListenHost, config.ListenPort),
		"root", config.RootDir,
		"auth", config.AuthMode)
	if config.DataPortStart != 0 {
		logger.Info("passive data port range", "start", config.DataPortStart, "end", config.DataPortEnd)
	}
	if config.PublicHost != "" {
		logger.Info("advertising public host in PASV replies", "host", config.PublicHost)
	}
}

package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Store   StoreConfig   `toml:"store"`
	Session SessionConfig `toml:"session"`
	Mail    MailConfig    `toml:"mail"`
	Admin   AdminConfig   `toml:"admin"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	IP       string `toml:"ip"`
	Port     int    `toml:"port"`
	URL      string `toml:"url"`
	TLSCert  string `toml:"tls_cert"`
	TLSKey   string `toml:"tls_key"`
	LogLevel string `toml:"log_level"`
}

// TLS reports whether both a certificate and a key are configured.
func (s ServerConfig) TLS() bool {
	return s.TLSCert != "" && s.TLSKey != ""
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend              string `toml:"backend"`
	SQLitePath           string `toml:"sqlite_path"`
	RedisAddr            string `toml:"redis_addr"`
	RedisPassword        string `toml:"redis_password"`
	RedisDB              int    `toml:"redis_db"`
	RedisURL             string `toml:"redis_url"`
	PurgeIntervalMinutes int    `toml:"purge_interval_minutes"`
}

// SessionConfig holds session cookie settings. The cookie secret is only
// read from the environment.
type SessionConfig struct {
	CookieName string `toml:"cookie_name"`
	TTLHours   int    `toml:"ttl_hours"`
	Secret     []byte `toml:"-"`
}

// MailConfig selects and configures the mail transport.
type MailConfig struct {
	Transport    string `toml:"transport"`
	SendmailPath string `toml:"sendmail_path"`
	SMTPHost     string `toml:"smtp_host"`
	SMTPPort     int    `toml:"smtp_port"`
	SMTPUsername string `toml:"smtp_username"`
	SMTPPassword string `toml:"smtp_password"`
	SMTPTLS      string `toml:"smtp_tls"`
}

// AdminConfig names a user created as admin at startup if missing.
type AdminConfig struct {
	Email string `toml:"email"`
}

const defaultConfigContent = `[server]
ip = "127.0.0.1"
port = 8443
url = "localhost:8443"            # Public host used in emailed links (or set WEATHER_URL)
tls_cert = ""                     # e.g. "cert.pem"
tls_key = ""                      # e.g. "key.pem"
log_level = "info"

[store]
backend = "sqlite"                # "sqlite" or "redis"
sqlite_path = "./data/haak.db"
redis_addr = "127.0.0.1:6379"
redis_db = 0
purge_interval_minutes = 10

[session]
cookie_name = "haak_session"
ttl_hours = 24

[mail]
transport = "log"                 # "smtp", "sendmail" or "log"
sendmail_path = "/usr/sbin/sendmail"
smtp_host = ""
smtp_port = 587
smtp_username = ""
smtp_password = ""                # Or set SMTP_PASSWORD
smtp_tls = "mandatory"            # "mandatory", "opportunistic" or "none"

[admin]
email = ""                        # Created as admin on startup if missing
`

// Load reads and parses the TOML config from the given path. If the file does
// not exist, it creates a default config file at that path. Environment
// variables override values from the file with highest priority.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
		slog.Info("created default config file", "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Validate explicitly-set values before applying defaults, so that
	// explicitly writing "port = 0" is an error rather than silently
	// being replaced with the default.
	if err := validateExplicit(&cfg, md); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// createDefault writes the default config content to the given path,
// creating any parent directories as needed.
func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

// validateExplicit checks values that were explicitly set in the TOML file.
func validateExplicit(cfg *Config, md toml.MetaData) error {
	if md.IsDefined("server", "port") && !validPort(cfg.Server.Port) {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}
	if md.IsDefined("mail", "smtp_port") && !validPort(cfg.Mail.SMTPPort) {
		return fmt.Errorf("invalid mail.smtp_port %d: must be between 1 and 65535", cfg.Mail.SMTPPort)
	}
	if md.IsDefined("session", "ttl_hours") && cfg.Session.TTLHours < 1 {
		return fmt.Errorf("invalid session.ttl_hours %d: must be >= 1", cfg.Session.TTLHours)
	}
	if md.IsDefined("store", "purge_interval_minutes") && cfg.Store.PurgeIntervalMinutes < 1 {
		return fmt.Errorf("invalid store.purge_interval_minutes %d: must be >= 1", cfg.Store.PurgeIntervalMinutes)
	}
	return nil
}

// applyDefaults sets default values for any zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.IP == "" {
		cfg.Server.IP = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8443
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "sqlite"
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "./data/haak.db"
	}
	if cfg.Store.RedisAddr == "" {
		cfg.Store.RedisAddr = "127.0.0.1:6379"
	}
	if cfg.Store.PurgeIntervalMinutes == 0 {
		cfg.Store.PurgeIntervalMinutes = 10
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "haak_session"
	}
	if cfg.Session.TTLHours == 0 {
		cfg.Session.TTLHours = 24
	}
	if cfg.Mail.Transport == "" {
		cfg.Mail.Transport = "log"
	}
	if cfg.Mail.SendmailPath == "" {
		cfg.Mail.SendmailPath = "/usr/sbin/sendmail"
	}
	if cfg.Mail.SMTPPort == 0 {
		cfg.Mail.SMTPPort = 587
	}
	if cfg.Mail.SMTPTLS == "" {
		cfg.Mail.SMTPTLS = "mandatory"
	}
}

// applyEnvOverrides applies environment variable overrides. Environment
// variables take highest priority over config file values.
//
//   - WEATHER_IP, WEATHER_PORT, WEATHER_URL: listen address and public host
//   - COOKIE_SECRET_KEY: base64 session cookie secret (required)
//   - REDIS_URL: redis://... connection URL, replaces redis_addr/db/password
//   - SMTP_PASSWORD: SMTP relay password
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("WEATHER_IP"); v != "" {
		cfg.Server.IP = v
	}
	if v := os.Getenv("WEATHER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing WEATHER_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("WEATHER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Store.RedisURL = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Mail.SMTPPassword = v
	}
	if v := os.Getenv("COOKIE_SECRET_KEY"); v != "" {
		secret, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("decoding COOKIE_SECRET_KEY: %w", err)
		}
		cfg.Session.Secret = secret
	}
	return nil
}

// validate checks that configuration values are within acceptable ranges.
func validate(cfg *Config) error {
	if !validPort(cfg.Server.Port) {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}
	if cfg.Server.URL == "" {
		return errors.New("server.url is empty: set it in the config file or via WEATHER_URL")
	}
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		return errors.New("server.tls_cert and server.tls_key must be set together")
	}

	switch cfg.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid server.log_level %q: must be debug, info, warn or error", cfg.Server.LogLevel)
	}

	switch cfg.Store.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("invalid store.backend %q: must be \"sqlite\" or \"redis\"", cfg.Store.Backend)
	}

	switch cfg.Mail.Transport {
	case "log", "sendmail":
	case "smtp":
		if cfg.Mail.SMTPHost == "" {
			return errors.New("mail.smtp_host is required for the smtp transport")
		}
	default:
		return fmt.Errorf("invalid mail.transport %q: must be \"smtp\", \"sendmail\" or \"log\"", cfg.Mail.Transport)
	}

	switch cfg.Mail.SMTPTLS {
	case "mandatory", "opportunistic", "none":
	default:
		return fmt.Errorf("invalid mail.smtp_tls %q: must be mandatory, opportunistic or none", cfg.Mail.SMTPTLS)
	}

	if len(cfg.Session.Secret) < 32 {
		return errors.New("COOKIE_SECRET_KEY must hold at least 32 base64-encoded bytes, generate one with `head -c 32 /dev/urandom | base64`")
	}

	if cfg.Mail.Transport == "log" {
		slog.Warn("mail.transport is \"log\": login links are written to the log instead of being emailed")
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"informatik-booking/internal/email"
	"informatik-booking/internal/slots"
)

const DEFAULT_ADMIN_EMAIL = "info@informatik-ai.de"

type RBACConfig struct {
	PolicyFile string   `mapstructure:"policy_file"` // Path to the RBAC policy file. Empty uses the built-in policy.
	Admins     []string `mapstructure:"admins"`      // Emails granted the admin role
}

type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	CalendarID   string `mapstructure:"calendar_id"`
	// Overrides for the token and Calendar API endpoints. Empty uses Google's.
	TokenURL    string `mapstructure:"token_url"`
	APIEndpoint string `mapstructure:"api_endpoint"`
	// Lifetime of the OAuth state parameter in seconds
	StateTTL uint `mapstructure:"state_ttl"`
}

type BookingConfig struct {
	WindowStart string        `mapstructure:"window_start"`
	WindowEnd   string        `mapstructure:"window_end"`
	SlotMinutes uint          `mapstructure:"slot_minutes"`
	Timezone    string        `mapstructure:"timezone"`
	ResetDelay  time.Duration `mapstructure:"reset_delay"`
	// Base URL of the booking API, used by the CLI client commands
	ServerURL string `mapstructure:"server_url"`
	CacheFile string `mapstructure:"cache_file"`
}

type Config struct {
	// Secret key for signing admin tokens. Must be set in production.
	Secret     string `mapstructure:"secret"`
	LogLevel   string `mapstructure:"log_level"`
	ListenAddr string `mapstructure:"listen_addr"`
	NonceStore string `mapstructure:"nonce_store"`

	// Comma separated list of allowed CIDR networks. Empty means allow all.
	AllowedNetworks string `mapstructure:"allowed_networks"`
	// Comma separated list of origins allowed for CORS. Empty disables CORS headers.
	CORSOrigins string `mapstructure:"cors_origins"`

	// Admin token TTL in minutes
	AdminTokenTTL uint `mapstructure:"admin_token_ttl"`

	RBAC    RBACConfig    `mapstructure:"rbac"`
	Google  GoogleConfig  `mapstructure:"google"`
	Booking BookingConfig `mapstructure:"booking"`
	Storage Storage       `mapstructure:"storage"`

	// Booking notification mail. Disabled when host is empty.
	Email email.SMTPConfig `mapstructure:"email"`
}

var Cfg *Config

// Check if running in Docker container by checking for the presence of /.dockerenv file
func runningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

func getConfigPath() string {
	if runningInDocker() {
		return "/app/instance"
	}
	return "./instance"
}

// LoadConfig reads configuration from an optional config file, .env-populated
// environment variables and defaults, and stores the result in Cfg.
func LoadConfig(configFile ...string) (*Config, error) {
	var cfg Config

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(getConfigPath())
	v.AddConfigPath(".")
	// google.client_id is read from GOOGLE_CLIENT_ID
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, path := range configFile {
		v.SetConfigFile(path)
	}

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && len(configFile) > 0 {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if _, err := cfg.Window(); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	cfg.Storage.resolvePaths(getConfigPath())

	// Warn if secret is missing - this is a critical security setting for production
	if cfg.Secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			return nil, errors.New("SECRET configuration variable is required in production")
		}
		slog.Warn("Secret is not set. Do not use in production.")
	}

	Cfg = &cfg
	return &cfg, nil
}

// Window returns the configured daily booking window.
func (c *Config) Window() (slots.Window, error) {
	w, err := slots.NewWindow(c.Booking.WindowStart, c.Booking.WindowEnd, time.Duration(c.Booking.SlotMinutes)*time.Minute)
	if err != nil {
		return slots.Window{}, fmt.Errorf("booking window: %w", err)
	}
	return w, nil
}

// Location returns the time zone slots are expressed in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("booking timezone %q: %w", c.Booking.Timezone, err)
	}
	return loc, nil
}

// relativeTo makes path absolute under base unless it already is, or is the
// sqlite in-memory marker.
func relativeTo(base, path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

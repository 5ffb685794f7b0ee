package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/seuros/scout/internal/filters"
)

// Config holds application configuration
type Config struct {
	DatabaseURL    string
	Port           string
	TrustedOrigins []string
	SessionTTL     time.Duration
	RealtimeNotify bool // Fan filter changes out through Postgres LISTEN/NOTIFY

	// Dimensions and Hierarchies define the filter schema. Empty means the
	// built-in retail schema.
	Dimensions  []string
	Hierarchies []filters.Hierarchy
}

const defaultSessionTTL = 30 * time.Minute

// Load loads configuration from multiple sources with priority:
// 1. Command flags (passed as overrides)
// 2. Config file (./scout.toml or $XDG_CONFIG_HOME/scout/scout.toml)
// 3. Environment variables
func Load() (*Config, error) {
	return LoadWithOverrides("", "")
}

// LoadWithOverrides loads config and applies flag overrides
func LoadWithOverrides(databaseURL, port string) (*Config, error) {
	v := newBaseViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return buildConfig(v, databaseURL, port)
}

func newBaseViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("scout")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	// XDG Base Directory, resolved by hand so tests can point HOME elsewhere
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(home, ".config")
		}
	}
	if configHome != "" {
		v.AddConfigPath(filepath.Join(configHome, "scout"))
	}

	return v
}

func buildConfig(v *viper.Viper, overrideDatabaseURL, overridePort string) (*Config, error) {
	cfg := &Config{
		Port:           "3000",
		TrustedOrigins: []string{"localhost"},
		SessionTTL:     defaultSessionTTL,
	}

	// Apply config file values
	if v.IsSet("database_url") {
		cfg.DatabaseURL = v.GetString("database_url")
	}
	if v.IsSet("port") {
		cfg.Port = v.GetString("port")
	}
	if v.IsSet("trusted_origins") {
		cfg.TrustedOrigins = parseTrustedOrigins(strings.Join(v.GetStringSlice("trusted_origins"), ","))
	}
	if v.IsSet("session_ttl") {
		ttl, err := parseTTL(v.GetString("session_ttl"))
		if err != nil {
			return nil, err
		}
		cfg.SessionTTL = ttl
	}
	if v.IsSet("realtime_notify") {
		cfg.RealtimeNotify = v.GetBool("realtime_notify")
	}
	if v.IsSet("filters.dimensions") {
		cfg.Dimensions = v.GetStringSlice("filters.dimensions")
	}
	if v.IsSet("filters.hierarchies") {
		cfg.Hierarchies = parseHierarchies(v.GetStringMapStringSlice("filters.hierarchies"))
	}

	// Environment fallback (only if not configured)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if !v.IsSet("port") {
		if envPort := os.Getenv("PORT"); envPort != "" {
			cfg.Port = envPort
		}
	}
	if !v.IsSet("trusted_origins") {
		if envOrigins := os.Getenv("TRUSTED_ORIGINS"); envOrigins != "" {
			cfg.TrustedOrigins = parseTrustedOrigins(envOrigins)
		}
	}
	if !v.IsSet("session_ttl") {
		if envTTL := os.Getenv("SESSION_TTL"); envTTL != "" {
			ttl, err := parseTTL(envTTL)
			if err != nil {
				return nil, err
			}
			cfg.SessionTTL = ttl
		}
	}
	if !v.IsSet("realtime_notify") {
		if envNotify := os.Getenv("REALTIME_NOTIFY"); envNotify != "" {
			cfg.RealtimeNotify = envNotify == "true"
		}
	}
	if !v.IsSet("filters.dimensions") {
		if envDims := os.Getenv("SCOUT_DIMENSIONS"); envDims != "" {
			cfg.Dimensions = splitList(envDims)
		}
	}

	// Apply overrides (flags) last
	if overrideDatabaseURL != "" {
		cfg.DatabaseURL = overrideDatabaseURL
	}
	if overridePort != "" {
		cfg.Port = overridePort
	}

	return cfg, nil
}

// Schema builds the filter schema from the configured dimensions.
func (c *Config) Schema() (*filters.Schema, error) {
	if len(c.Dimensions) == 0 {
		return filters.DefaultSchema(), nil
	}

	// Hierarchies that mention dimensions outside a custom list are a config
	// error, reported by NewSchema.
	return filters.NewSchema(c.Dimensions, c.Hierarchies...)
}

func parseTTL(value string) (time.Duration, error) {
	ttl, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid session_ttl %q: %w", value, err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("session_ttl must be positive, got %s", ttl)
	}
	return ttl, nil
}

// parseHierarchies orders hierarchies by name so the schema is deterministic.
func parseHierarchies(raw map[string][]string) []filters.Hierarchy {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]filters.Hierarchy, 0, len(names))
	for _, name := range names {
		out = append(out, filters.Hierarchy{Name: name, Levels: slices.Clone(raw[name])})
	}
	return out
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseTrustedOrigins parses a comma-separated string into a slice of trimmed, lowercased origins
func parseTrustedOrigins(originsStr string) []string {
	if originsStr == "" {
		return []string{}
	}

	parts := strings.Split(originsStr, ",")
	origins := make([]string, 0, len(parts))

	for _, part := range parts {
		origin, err := SanitizeTrustedDomain(part)
		if err != nil {
			continue
		}
		origins = append(origins, origin)
	}

	return origins
}

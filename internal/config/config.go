// Package config holds the YAML-backed configuration structs for the
// three services, following the Default*/Load* pattern the teacher's
// login server config uses.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds PostgreSQL connection parameters, shared by
// every service that talks to the account/character store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	MaxConns int32 `yaml:"max_conns"`
	MinConns int32 `yaml:"min_conns"`
}

// DSN returns the PostgreSQL connection string pgxpool expects.
func (d DatabaseConfig) DSN() string {
	base := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)

	var params []string
	if d.MaxConns > 0 {
		params = append(params, fmt.Sprintf("pool_max_conns=%d", d.MaxConns))
	}
	if d.MinConns > 0 {
		params = append(params, fmt.Sprintf("pool_min_conns=%d", d.MinConns))
	}
	if len(params) > 0 {
		return base + "&" + strings.Join(params, "&")
	}
	return base
}

func defaultDatabase() DatabaseConfig {
	return DatabaseConfig{
		Host: "127.0.0.1", Port: 5432, User: "wildcore", Password: "wildcore",
		DBName: "wildcore", SSLMode: "disable",
	}
}

// RateLimitRule configures one risk class's token-bucket policy.
type RateLimitRule struct {
	Count  int `yaml:"count"`
	Window int `yaml:"window_seconds"`
}

// RateLimit configures the per-class policies a service's Limiter is
// built from.
type RateLimit struct {
	Auth RateLimitRule `yaml:"auth"`
}

// Timeouts configures the idle/frame deadlines a connection enforces.
type Timeouts struct {
	IdlePreAuthSeconds  int `yaml:"idle_pre_auth_seconds"`
	IdlePostAuthSeconds int `yaml:"idle_post_auth_seconds"`
	FrameSeconds        int `yaml:"frame_seconds"`
}

// IdlePreAuth returns the pre-auth idle timeout as a Duration.
func (t Timeouts) IdlePreAuth() time.Duration {
	return time.Duration(t.IdlePreAuthSeconds) * time.Second
}

// IdlePostAuth returns the post-auth idle timeout as a Duration.
func (t Timeouts) IdlePostAuth() time.Duration {
	return time.Duration(t.IdlePostAuthSeconds) * time.Second
}

// Frame returns the per-frame read timeout as a Duration.
func (t Timeouts) Frame() time.Duration {
	return time.Duration(t.FrameSeconds) * time.Second
}

func defaultTimeouts() Timeouts {
	return Timeouts{IdlePreAuthSeconds: 120, IdlePostAuthSeconds: 300, FrameSeconds: 30}
}

// AuthServer holds configuration for the auth service.
type AuthServer struct {
	BindAddress string         `yaml:"bind_address"`
	Port        int            `yaml:"port"`
	LogLevel    string         `yaml:"log_level"`
	Database    DatabaseConfig `yaml:"database"`
	RateLimit   RateLimit      `yaml:"rate_limit"`
	Timeouts    Timeouts       `yaml:"timeouts"`
}

// DefaultAuthServer returns AuthServer config with sensible defaults.
func DefaultAuthServer() AuthServer {
	return AuthServer{
		BindAddress: "0.0.0.0",
		Port:        6600,
		LogLevel:    "info",
		Database:    defaultDatabase(),
		RateLimit:   RateLimit{Auth: RateLimitRule{Count: 5, Window: 60}},
		Timeouts:    defaultTimeouts(),
	}
}

// LoadAuthServer loads AuthServer config from a YAML file, falling
// back to defaults if the file does not exist.
func LoadAuthServer(path string) (AuthServer, error) {
	cfg := DefaultAuthServer()
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RealmEntry describes one realm the realm service advertises.
type RealmEntry struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RealmServer holds configuration for the realm service.
type RealmServer struct {
	BindAddress string         `yaml:"bind_address"`
	Port        int            `yaml:"port"`
	LogLevel    string         `yaml:"log_level"`
	Database    DatabaseConfig `yaml:"database"`
	Timeouts    Timeouts       `yaml:"timeouts"`
	Realms      []RealmEntry   `yaml:"realms"`
}

// DefaultRealmServer returns RealmServer config with sensible defaults.
func DefaultRealmServer() RealmServer {
	return RealmServer{
		BindAddress: "0.0.0.0",
		Port:        6601,
		LogLevel:    "info",
		Database:    defaultDatabase(),
		Timeouts:    defaultTimeouts(),
		Realms: []RealmEntry{
			{ID: 1, Name: "Jabbit", Host: "127.0.0.1", Port: 6602},
		},
	}
}

// LoadRealmServer loads RealmServer config from a YAML file.
func LoadRealmServer(path string) (RealmServer, error) {
	cfg := DefaultRealmServer()
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WorldServer holds configuration for the world service.
type WorldServer struct {
	BindAddress        string         `yaml:"bind_address"`
	Port               int            `yaml:"port"`
	LogLevel           string         `yaml:"log_level"`
	Database           DatabaseConfig `yaml:"database"`
	Timeouts           Timeouts       `yaml:"timeouts"`
	MaxWriteQueueBytes int            `yaml:"max_write_queue_bytes"`

	// RealmID is this world server's own realm id, compared against a
	// ClientRealmSelect's requested id to detect the reference client's
	// back-button re-send (spec.md §4.8).
	RealmID int `yaml:"realm_id"`
	// OtherRealms lists the realms a ClientRealmSelect may redirect to
	// when it names a realm other than RealmID.
	OtherRealms []RealmEntry `yaml:"other_realms"`

	// MaxCharacterLevel is reported verbatim in ServerMaxCharacterLevel.
	MaxCharacterLevel uint32 `yaml:"max_character_level"`
}

// DefaultWorldServer returns WorldServer config with sensible defaults.
func DefaultWorldServer() WorldServer {
	return WorldServer{
		BindAddress:        "0.0.0.0",
		Port:               6602,
		LogLevel:           "info",
		Database:           defaultDatabase(),
		Timeouts:           defaultTimeouts(),
		MaxWriteQueueBytes: 1 << 20,
		RealmID:            1,
		MaxCharacterLevel:  50,
	}
}

// LoadWorldServer loads WorldServer config from a YAML file.
func LoadWorldServer(path string) (WorldServer, error) {
	cfg := DefaultWorldServer()
	if err := loadYAML(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

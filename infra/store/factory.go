package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/kilianp07/smartcharge/core/logger"
	corestore "github.com/kilianp07/smartcharge/core/store"
)

// Config selects the backend for overrides, decisions and settings.
type Config struct {
	// Backend is "memory" or "valkey".
	Backend    string `json:"backend"`
	ValkeyAddr string `json:"valkey_addr"`
	KeyPrefix  string `json:"key_prefix"`
	// OverrideTTLMin is the lifetime granted to a manual override whose
	// request carries no explicit duration.
	OverrideTTLMin int `json:"override_ttl_min"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "smartcharge"
	}
	if c.OverrideTTLMin == 0 {
		c.OverrideTTLMin = 60
	}
}

// Validate rejects unknown backends.
func (c *Config) Validate() error {
	switch c.Backend {
	case "memory":
	case "valkey":
		if c.ValkeyAddr == "" {
			return fmt.Errorf("store backend valkey requires valkey_addr")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Backend)
	}
	if c.OverrideTTLMin < 0 {
		return fmt.Errorf("override_ttl_min must not be negative")
	}
	return nil
}

// OverrideTTL returns the default override lifetime as a duration.
func (c Config) OverrideTTL() time.Duration {
	return time.Duration(c.OverrideTTLMin) * time.Minute
}

// HistoryConfig selects the history backend. An empty postgres_dsn and
// jsonl_path keep history in a memory ring.
type HistoryConfig struct {
	PostgresDSN   string `json:"postgres_dsn"`
	JSONLPath     string `json:"jsonl_path"`
	MaxSizeMB     int    `json:"max_size_mb"`
	MaxBackups    int    `json:"max_backups"`
	RetentionDays int    `json:"retention_days"`
	MemoryLimit   int    `json:"memory_limit"`
}

// SetDefaults fills unset fields.
func (c *HistoryConfig) SetDefaults() {
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = 7
	}
	if c.MemoryLimit == 0 {
		c.MemoryLimit = 2000
	}
}

// Validate rejects unusable retention settings.
func (c *HistoryConfig) Validate() error {
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative")
	}
	return nil
}

// Stores bundles the concrete backends behind the core interfaces.
type Stores struct {
	Overrides corestore.OverrideStore
	Decisions corestore.DecisionStore
	Settings  corestore.SettingsStore
	History   corestore.HistoryStore

	closers []func()
}

// Close releases every backend that holds a connection.
func (s *Stores) Close() {
	for _, c := range s.closers {
		c()
	}
	if s.History != nil {
		s.History.Close()
	}
}

// New builds the configured backends. An unreachable Valkey or Postgres is
// logged and replaced by the memory backend rather than failing the service.
func New(ctx context.Context, cfg Config, hist HistoryConfig, log logger.Logger) *Stores {
	cfg.SetDefaults()
	hist.SetDefaults()
	s := &Stores{}

	if cfg.Backend == "valkey" {
		if vk, err := newValkeyClient(ctx, cfg.ValkeyAddr); err != nil {
			log.Errorf("valkey unavailable, falling back to memory store: %v", err)
		} else {
			log.Infof("valkey store enabled at %s", cfg.ValkeyAddr)
			base := NewValkeyStore(vk, cfg.KeyPrefix)
			s.Overrides = base
			s.Decisions = base.Decisions()
			s.Settings = base.Settings()
			s.closers = append(s.closers, base.Close)
		}
	}
	if s.Overrides == nil {
		s.Overrides = NewMemoryOverrides()
		s.Decisions = NewMemoryDecisions()
		s.Settings = NewMemorySettings()
	}

	switch {
	case hist.PostgresDSN != "":
		pg, err := NewPostgresHistory(ctx, hist.PostgresDSN)
		if err != nil {
			log.Errorf("postgres history unavailable, falling back: %v", err)
		} else {
			log.Infof("postgres history enabled")
			s.History = pg
		}
	case hist.JSONLPath != "":
		jl, err := NewJSONLHistory(hist.JSONLPath, hist.MaxSizeMB, hist.MaxBackups, hist.RetentionDays)
		if err != nil {
			log.Errorf("jsonl history unavailable, falling back: %v", err)
		} else {
			log.Infof("jsonl history enabled at %s", hist.JSONLPath)
			s.History = jl
		}
	}
	if s.History == nil {
		s.History = NewMemoryHistory(hist.MemoryLimit)
	}
	return s
}

func newValkeyClient(ctx context.Context, addr string) (valkey.Client, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(addr, "://") {
		opt, err = valkey.ParseURL(addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{addr}}
	}
	if err != nil {
		return nil, err
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

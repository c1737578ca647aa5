package memory

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

// ModuleConfig is the per-module indexing policy.
// Disabling a module halts indexing for it but never deletes records
// already in the index; only an explicit rebuild drops data.
type ModuleConfig struct {
	Enabled     bool      `json:"enabled"`
	TableName   string    `json:"table_name"`
	LastIndexed time.Time `json:"last_indexed"`
	IndexCount  int       `json:"index_count"`
	AutoUpdate  bool      `json:"auto_update"`
}

// IndexConfig is the persisted indexing configuration for one memory root:
// one ModuleConfig per module plus global settings.
type IndexConfig struct {
	Modules map[Module]*ModuleConfig `json:"modules"`

	AutoIndexOnCreate       bool `json:"auto_index_on_create"`
	AutoIndexOnUpdate       bool `json:"auto_index_on_update"`
	MaxTokensPerModule      int  `json:"max_tokens_per_module"`
	DynamicInjectionEnabled bool `json:"dynamic_injection_enabled"`
}

// DefaultIndexConfig returns the configuration created on first run:
// every module enabled with auto-update, one collection per module.
func DefaultIndexConfig() *IndexConfig {
	cfg := &IndexConfig{
		Modules:                 make(map[Module]*ModuleConfig, len(AllModules)),
		AutoIndexOnCreate:       true,
		AutoIndexOnUpdate:       true,
		MaxTokensPerModule:      512,
		DynamicInjectionEnabled: true,
	}
	for _, m := range AllModules {
		cfg.Modules[m] = &ModuleConfig{
			Enabled:    true,
			TableName:  "mem_" + string(m),
			AutoUpdate: true,
		}
	}
	return cfg
}

// Module returns the config for a module, creating a default entry if the
// persisted document predates the module.
func (c *IndexConfig) Module(m Module) *ModuleConfig {
	if mc, ok := c.Modules[m]; ok {
		return mc
	}
	mc := &ModuleConfig{Enabled: true, TableName: "mem_" + string(m), AutoUpdate: true}
	c.Modules[m] = mc
	return mc
}

// Save writes the configuration as a JSON document.
func (c *IndexConfig) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write index config: %w", err)
	}
	return nil
}

// LoadIndexConfig reads a persisted configuration. A missing or corrupt
// document falls back to defaults with a logged warning; startup never
// fails on bad config state.
func LoadIndexConfig(path string) *IndexConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[CONFIG] Failed to read %s: %v (using defaults)", path, err)
		}
		return DefaultIndexConfig()
	}

	var cfg IndexConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Printf("[CONFIG] Corrupt index config at %s: %v (using defaults)", path, err)
		return DefaultIndexConfig()
	}
	if cfg.Modules == nil {
		cfg.Modules = make(map[Module]*ModuleConfig)
	}
	return &cfg
}

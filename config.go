package formkeep

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage scopes. Tab-scoped state dies with the process; browser-scoped
// state survives restarts.
const (
	StorageTab     = "tab"
	StorageBrowser = "browser"
)

// DefaultExcludeFields are never read or written: the anti-automation
// honeypot and the CSRF token.
var DefaultExcludeFields = []string{"_gotcha", "authenticity_token"}

// Config holds all formkeep configuration.
type Config struct {
	// StoragePrefix is prepended to every form identity to build its
	// storage key.
	StoragePrefix string `yaml:"storage_prefix"`
	// StorageType selects the backend scope: "tab" or "browser".
	StorageType string `yaml:"storage_type"`
	// DBPath is the SQLite path for browser-scoped storage.
	DBPath string `yaml:"db_path"`

	AutoSave      bool `yaml:"auto_save"`
	AutoRestore   bool `yaml:"auto_restore"`
	ClearOnSubmit bool `yaml:"clear_on_submit"`
	Debug         bool `yaml:"debug"`

	// ExcludeFields replaces DefaultExcludeFields when non-empty.
	ExcludeFields []string `yaml:"exclude_fields"`

	// DebounceWindow is the trailing-debounce delay for field changes.
	DebounceWindow time.Duration `yaml:"debounce_window"`
	// SubmitCheckDelay is how long after a submission the presence check
	// runs to decide retain-vs-discard.
	SubmitCheckDelay time.Duration `yaml:"submit_check_delay"`

	// Browser configures the live-page daemon (cmd/formkeep).
	Browser BrowserConfig `yaml:"browser"`
	Pages   []PageConfig  `yaml:"pages"`
}

// BrowserConfig controls the daemon's Chrome attachment.
type BrowserConfig struct {
	Remote  string `yaml:"remote"`
	Stealth bool   `yaml:"stealth"`
}

// PageConfig defines a page whose forms the daemon preserves.
type PageConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// DefaultConfig returns the configuration used when no file is given.
// Auto behaviours default on; absent YAML keys keep these values.
func DefaultConfig() *Config {
	cfg := &Config{
		AutoSave:      true,
		AutoRestore:   true,
		ClearOnSubmit: true,
	}
	cfg.defaults()
	return cfg
}

func (c *Config) defaults() {
	if c.StoragePrefix == "" {
		c.StoragePrefix = "formkeep:"
	}
	if c.StorageType == "" {
		c.StorageType = StorageTab
	}
	if c.DBPath == "" {
		c.DBPath = "formkeep.db"
	}
	if len(c.ExcludeFields) == 0 {
		c.ExcludeFields = append([]string(nil), DefaultExcludeFields...)
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 500 * time.Millisecond
	}
	if c.SubmitCheckDelay <= 0 {
		c.SubmitCheckDelay = 1000 * time.Millisecond
	}
}

func (c *Config) validate() error {
	switch c.StorageType {
	case StorageTab, StorageBrowser:
		return nil
	default:
		return fmt.Errorf("formkeep: unknown storage_type %q", c.StorageType)
	}
}

// LoadConfigFile reads a YAML config file over the defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Package config provides configuration management for promptman.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// AppName names the per-user config directory.
const AppName = "promptman"

// Config represents the application configuration
type Config struct {
	General  GeneralConfig  `toml:"general" yaml:"general" json:"general"`
	Engine   EngineConfig   `toml:"engine" yaml:"engine" json:"engine"`
	Rewriter RewriterConfig `toml:"rewriter" yaml:"rewriter" json:"rewriter"`
	Usage    UsageConfig    `toml:"usage" yaml:"usage" json:"usage"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging" json:"logging"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// APIEnabled enables the local HTTP API and settings page
	APIEnabled bool `toml:"api_enabled" yaml:"api_enabled" json:"api_enabled"`

	// APIPort is the port for the API server, bound to 127.0.0.1
	APIPort int `toml:"api_port" yaml:"api_port" json:"api_port"`

	// APIToken is an optional bearer token for API requests
	APIToken string `toml:"api_token,omitempty" yaml:"api_token,omitempty" json:"api_token,omitempty"`

	// RulesPath is the rules file; empty means prompts.json next to the config
	RulesPath string `toml:"rules_path,omitempty" yaml:"rules_path,omitempty" json:"rules_path,omitempty"`

	// RulesBackend is "json" or "sqlite"
	RulesBackend string `toml:"rules_backend" yaml:"rules_backend" json:"rules_backend"`

	// WatchRules reloads the rules when the file is edited by hand
	WatchRules bool `toml:"watch_rules" yaml:"watch_rules" json:"watch_rules"`

	// StartOnBoot registers the app to start at login
	StartOnBoot bool `toml:"start_on_boot" yaml:"start_on_boot" json:"start_on_boot"`

	// PauseHotkey toggles expansion (e.g. "Ctrl+Alt+P")
	PauseHotkey string `toml:"pause_hotkey,omitempty" yaml:"pause_hotkey,omitempty" json:"pause_hotkey,omitempty"`

	// SettingsHotkey opens the settings page (e.g. "Ctrl+Alt+S")
	SettingsHotkey string `toml:"settings_hotkey,omitempty" yaml:"settings_hotkey,omitempty" json:"settings_hotkey,omitempty"`
}

// EngineConfig tunes matching, replacement and the enhancement indicator.
type EngineConfig struct {
	BufferCap      int      `toml:"buffer_cap" yaml:"buffer_cap" json:"buffer_cap"`
	Sentinel       string   `toml:"sentinel" yaml:"sentinel" json:"sentinel"`
	BackspacePace  Duration `toml:"backspace_pace" yaml:"backspace_pace" json:"backspace_pace"`
	Glyph          string   `toml:"glyph" yaml:"glyph" json:"glyph"`
	MaxSpaces      int      `toml:"max_spaces" yaml:"max_spaces" json:"max_spaces"`
	FrameDelay     Duration `toml:"frame_delay" yaml:"frame_delay" json:"frame_delay"`
	StopWait       Duration `toml:"stop_wait" yaml:"stop_wait" json:"stop_wait"`
	EnhanceTimeout Duration `toml:"enhance_timeout" yaml:"enhance_timeout" json:"enhance_timeout"`
}

// RewriterConfig selects the language model used for enhancement.
type RewriterConfig struct {
	// Model is the Gemini model; empty picks one from the account's list
	Model string `toml:"model,omitempty" yaml:"model,omitempty" json:"model,omitempty"`

	// APIKeyEnv names the environment variable holding the key
	APIKeyEnv string `toml:"api_key_env" yaml:"api_key_env" json:"api_key_env"`

	// EnvFile is loaded into the environment at startup; empty means .env next to the config
	EnvFile string `toml:"env_file,omitempty" yaml:"env_file,omitempty" json:"env_file,omitempty"`
}

// UsageConfig configures the external usage endpoint.
type UsageConfig struct {
	Endpoint string   `toml:"endpoint,omitempty" yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Timeout  Duration `toml:"timeout" yaml:"timeout" json:"timeout"`
	Recent   int      `toml:"recent" yaml:"recent" json:"recent"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
	File   string `toml:"file,omitempty" yaml:"file,omitempty" json:"file,omitempty"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			APIEnabled:     true,
			APIPort:        5000,
			RulesBackend:   "json",
			WatchRules:     true,
			PauseHotkey:    "Ctrl+Alt+P",
			SettingsHotkey: "Ctrl+Alt+S",
		},
		Engine: EngineConfig{
			BufferCap:      500,
			Sentinel:       "//enhance",
			BackspacePace:  Duration{10 * time.Millisecond},
			Glyph:          "➤",
			MaxSpaces:      10,
			FrameDelay:     Duration{150 * time.Millisecond},
			StopWait:       Duration{250 * time.Millisecond},
			EnhanceTimeout: Duration{30 * time.Second},
		},
		Rewriter: RewriterConfig{
			APIKeyEnv: "GEMINI_API_KEY",
		},
		Usage: UsageConfig{
			Timeout: Duration{50 * time.Millisecond},
			Recent:  20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.General.APIPort < 1 || c.General.APIPort > 65535:
		return fmt.Errorf("config: api_port %d out of range", c.General.APIPort)
	case c.General.RulesBackend != "json" && c.General.RulesBackend != "sqlite":
		return fmt.Errorf("config: unknown rules_backend %q", c.General.RulesBackend)
	case c.Engine.BufferCap < 1:
		return errors.New("config: buffer_cap must be positive")
	case strings.TrimSpace(c.Engine.Sentinel) == "":
		return errors.New("config: sentinel must not be blank")
	case c.Engine.Glyph == "":
		return errors.New("config: glyph must not be empty")
	case c.Engine.MaxSpaces < 0:
		return errors.New("config: max_spaces must not be negative")
	case c.Engine.FrameDelay.Duration <= 0:
		return errors.New("config: frame_delay must be positive")
	case c.Engine.EnhanceTimeout.Duration <= 0:
		return errors.New("config: enhance_timeout must be positive")
	case c.Usage.Timeout.Duration <= 0:
		return errors.New("config: usage timeout must be positive")
	}
	return nil
}

// Duration is a time.Duration written as "150ms" in every config format.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a configuration manager. An empty path selects the
// per-user default location.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.toml")
	}
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}, nil
}

// Dir returns the per-user config directory, creating it if needed.
func Dir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", AppName)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, AppName)
	default:
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(base, AppName)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}

// Path returns the config file path.
func (m *Manager) Path() string {
	return m.configPath
}

// RulesPath resolves the rules file, defaulting next to the config file.
func (m *Manager) RulesPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.config.General.RulesPath; p != "" {
		return p
	}
	name := "prompts.json"
	if m.config.General.RulesBackend == "sqlite" {
		name = "prompts.db"
	}
	return filepath.Join(filepath.Dir(m.configPath), name)
}

// EnvPath resolves the .env file holding the API key.
func (m *Manager) EnvPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.config.Rewriter.EnvFile; p != "" {
		return p
	}
	return filepath.Join(filepath.Dir(m.configPath), ".env")
}

// Load reads the configuration from disk, applies environment overrides
// and validates the result. A missing file leaves the defaults in place.
func (m *Manager) Load() error {
	m.mu.Lock()
	cfg := DefaultConfig()
	data, err := os.ReadFile(m.configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		m.mu.Unlock()
		return err
	default:
		if err := decode(m.configPath, data, cfg); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("config: parse %s: %w", m.configPath, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		m.mu.Unlock()
		return err
	}
	if err := cfg.Validate(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.config = cfg
	fn := m.onChanged
	m.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := encode(m.configPath, m.config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.config
}

// Set validates and replaces the configuration
func (m *Manager) Set(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = &cfg
	fn := m.onChanged
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".json":
		return json.Unmarshal(data, cfg)
	default:
		_, err := toml.Decode(string(data), cfg)
		return err
	}
}

func encode(path string, cfg *Config) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	case ".json":
		return json.MarshalIndent(cfg, "", "  ")
	default:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PROMPTMAN_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PROMPTMAN_API_PORT: %w", err)
		}
		cfg.General.APIPort = port
	}
	if v := os.Getenv("PROMPTMAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PROMPTMAN_SENTINEL"); v != "" {
		cfg.Engine.Sentinel = v
	}
	return nil
}

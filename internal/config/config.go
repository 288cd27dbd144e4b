// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Agent() AgentConfig
	LLM() LLMModelConfig
	MCP() MCPConfig

	// Agent Setters
	SetAgentMaxIteration(int)
	SetAgentUseVision(bool)
	SetAgentInstructions([]string)

	// Browser Setters
	SetBrowserHeadless(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	AgentCfg    AgentConfig    `mapstructure:"agent" yaml:"agent"`
	LLMCfg      LLMModelConfig `mapstructure:"llm" yaml:"llm"`
	MCPCfg      MCPConfig      `mapstructure:"mcp" yaml:"mcp"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Agent() AgentConfig       { return c.AgentCfg }
func (c *Config) LLM() LLMModelConfig      { return c.LLMCfg }
func (c *Config) MCP() MCPConfig           { return c.MCPCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetAgentMaxIteration(n int)       { c.AgentCfg.MaxIteration = n }
func (c *Config) SetAgentUseVision(b bool)         { c.AgentCfg.UseVision = b }
func (c *Config) SetAgentInstructions(s []string)  { c.AgentCfg.Instructions = s }
func (c *Config) SetBrowserHeadless(b bool)        { c.BrowserCfg.Headless = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details for the memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the controlled browser.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// RemoteURL connects to an already running browser over the DevTools
	// websocket instead of launching a new one.
	RemoteURL         string         `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath          string         `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir       string         `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	DownloadsDir      string         `mapstructure:"downloads_dir" yaml:"downloads_dir"`
	UploadsDir        string         `mapstructure:"uploads_dir" yaml:"uploads_dir"`
	Timeout           time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SlowMo            time.Duration  `mapstructure:"slow_mo" yaml:"slow_mo"`
	MinWait           time.Duration  `mapstructure:"min_wait" yaml:"min_wait"`
	UserAgent         string         `mapstructure:"user_agent" yaml:"user_agent"`
	DisableSecurity   bool           `mapstructure:"disable_security" yaml:"disable_security"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	// IgnoredURLPatterns lists substrings of frame hosts that are treated as
	// ads or trackers and never indexed.
	IgnoredURLPatterns []string `mapstructure:"ignored_url_patterns" yaml:"ignored_url_patterns"`
}

// AgentConfig holds settings related to the reasoning loop.
type AgentConfig struct {
	MaxIteration int          `mapstructure:"max_iteration" yaml:"max_iteration"`
	UseVision    bool         `mapstructure:"use_vision" yaml:"use_vision"`
	Instructions []string     `mapstructure:"instructions" yaml:"instructions"`
	Memory       MemoryConfig `mapstructure:"memory" yaml:"memory"`
}

// MemoryConfig specifies the backend for long-term run memory.
type MemoryConfig struct {
	Type        string `mapstructure:"type" yaml:"type"`
	RecallLimit int    `mapstructure:"recall_limit" yaml:"recall_limit"`
}

// Supported memory backends.
const (
	MemoryNone     = "none"
	MemoryInMemory = "in-memory"
	MemoryPostgres = "postgres"
)

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMModelConfig defines the configuration for the completion service.
type LLMModelConfig struct {
	Provider          LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model             string            `mapstructure:"model" yaml:"model"`
	APIKey            string            `mapstructure:"api_key" yaml:"-"`
	Endpoint          string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP              float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK              int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens         int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters     map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
	RequestsPerMinute int               `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxRetries        int               `mapstructure:"max_retries" yaml:"max_retries"`
}

// MCPConfig names the tool server advertised over MCP.
type MCPConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Version string `mapstructure:"version" yaml:"version"`
}

// DefaultUserAgent is sent by every page the agent opens unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"

// DefaultIgnoredURLPatterns is the ad and tracker denylist applied to frame hosts.
var DefaultIgnoredURLPatterns = []string{
	"analytics", "tracking", "telemetry", "googletagmanager", "beacon", "metrics",
	"doubleclick", "adsystem", "adserver", "advertising", "cdn.optimizely",
	"facebook.com/plugins", "platform.twitter", "linkedin.com/embed", "livechat",
	"zendesk", "intercom", "crisp.chat", "hotjar", "push-notifications", "onesignal",
	"pushwoosh", "heartbeat", "ping", "alive", "webrtc", "rtmp://", "wss://",
	"cloudfront.net", "fastly.net",
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "browser-agent")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.downloads_dir", "~/Downloads")
	v.SetDefault("browser.uploads_dir", "./uploads")
	v.SetDefault("browser.timeout", "60s")
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.slow_mo", "300ms")
	v.SetDefault("browser.min_wait", "500ms")
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.disable_security", true)
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 720})
	v.SetDefault("browser.ignored_url_patterns", DefaultIgnoredURLPatterns)

	// -- Agent --
	v.SetDefault("agent.max_iteration", 10)
	v.SetDefault("agent.use_vision", false)
	v.SetDefault("agent.memory.type", MemoryNone)
	v.SetDefault("agent.memory.recall_limit", 5)

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderGemini))
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.api_timeout", "2m")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.top_p", 0.95)
	v.SetDefault("llm.top_k", 40)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.requests_per_minute", 15)
	v.SetDefault("llm.max_retries", 3)

	// -- MCP --
	v.SetDefault("mcp.name", "browser-agent")
	v.SetDefault("mcp.version", "0.1.0")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("llm.api_key", "BROWSER_AGENT_LLM_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("database.url", "BROWSER_AGENT_DATABASE_URL", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPaths resolves a leading ~ in the directory settings.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.BrowserCfg.DownloadsDir, &c.BrowserCfg.UploadsDir, &c.BrowserCfg.UserDataDir} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("could not expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.AgentCfg.MaxIteration <= 0 {
		return fmt.Errorf("agent.max_iteration must be a positive integer")
	}
	if err := c.AgentCfg.Memory.Validate(); err != nil {
		return fmt.Errorf("agent.memory configuration invalid: %w", err)
	}
	if c.AgentCfg.Memory.Type == MemoryPostgres && c.DatabaseCfg.URL == "" {
		return fmt.Errorf("database.url is required when agent.memory.type is postgres")
	}
	if err := c.LLMCfg.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the MemoryConfig settings.
func (m *MemoryConfig) Validate() error {
	switch m.Type {
	case "", MemoryNone, MemoryInMemory, MemoryPostgres:
	default:
		return fmt.Errorf("unknown memory type %q", m.Type)
	}
	if m.RecallLimit < 0 {
		return fmt.Errorf("recall_limit must not be negative")
	}
	return nil
}

// Validate checks the LLMModelConfig settings.
func (l *LLMModelConfig) Validate() error {
	switch LLMProvider(strings.ToLower(string(l.Provider))) {
	case ProviderGemini:
		if l.APIKey == "" {
			return fmt.Errorf("API key is required for gemini. Ensure GOOGLE_API_KEY is set")
		}
	default:
		return fmt.Errorf("unsupported provider %q", l.Provider)
	}
	if l.Model == "" {
		return fmt.Errorf("model is required")
	}
	if l.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	return nil
}

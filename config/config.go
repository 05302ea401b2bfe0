package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the lrps services.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Messaging MessagingConfig `mapstructure:"messaging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
}

func (g GeneralConfig) Normalize() GeneralConfig {
	g.LogLevel = strings.ToLower(strings.TrimSpace(g.LogLevel))
	if g.LogLevel == "" {
		g.LogLevel = "info"
		if g.Debug {
			g.LogLevel = "debug"
		}
	}
	if g.DefaultTimeout <= 0 {
		g.DefaultTimeout = 30 * time.Second
	}
	return g
}

func (g GeneralConfig) Validate() error {
	switch g.LogLevel {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("general.log_level %q is not one of debug, info, warn, error", g.LogLevel)
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	JWTSecret      string   `mapstructure:"jwt_secret"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s ServerConfig) Validate() error {
	if _, _, err := net.SplitHostPort(s.Address); err != nil {
		return fmt.Errorf("server.address %q: %w", s.Address, err)
	}
	return s.ValidateOrigins()
}

// ValidateOrigins rejects the "*" wildcard. The auth cookie is sent with
// credentials, and browsers refuse a wildcard origin on such requests.
func (s ServerConfig) ValidateOrigins() error {
	for _, o := range s.AllowedOrigins {
		if strings.TrimSpace(o) == "*" {
			return errors.New("server.allowed_origins must list explicit origins, not \"*\"")
		}
	}
	return nil
}

// AuthConfig lists the accounts allowed to log in. Users maps an email to
// its bcrypt password hash.
type AuthConfig struct {
	TokenTTL   time.Duration     `mapstructure:"token_ttl"`
	CookieName string            `mapstructure:"cookie_name"`
	Users      map[string]string `mapstructure:"users"`
}

func (a AuthConfig) Normalize() AuthConfig {
	if a.TokenTTL <= 0 {
		a.TokenTTL = 24 * time.Hour
	}
	if strings.TrimSpace(a.CookieName) == "" {
		a.CookieName = "auth"
	}
	users := make(map[string]string, len(a.Users))
	for email, hash := range a.Users {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		users[email] = hash
	}
	a.Users = users
	return a
}

func (a AuthConfig) Validate() error {
	for email, hash := range a.Users {
		if !strings.HasPrefix(hash, "$2") {
			return fmt.Errorf("auth.users[%s] is not a bcrypt hash", email)
		}
	}
	return nil
}

// LLMConfig configures the chat completion provider. SimpleModel serves
// short prompts, BulkyModel the issue suggestions.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	SimpleModel string        `mapstructure:"simple_model"`
	BulkyModel  string        `mapstructure:"bulky_model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Normalize() LLMConfig {
	if strings.TrimSpace(l.BaseURL) == "" {
		l.BaseURL = "https://api.openai.com/v1"
	}
	if l.SimpleModel == "" {
		l.SimpleModel = "gpt-4o-mini"
	}
	if l.BulkyModel == "" {
		l.BulkyModel = l.SimpleModel
	}
	if l.Timeout <= 0 {
		l.Timeout = 60 * time.Second
	}
	return l
}

func (l LLMConfig) Validate() error {
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	if l.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens cannot be negative")
	}
	return nil
}

// WorkflowConfig points at the n8n instance holding the prompt workflows.
type WorkflowConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	IDs            []string      `mapstructure:"ids"`
	PromptNode     string        `mapstructure:"prompt_node"`
	BackupDir      string        `mapstructure:"backup_dir"`
	BackupSchedule string        `mapstructure:"backup_schedule"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

func (w WorkflowConfig) Normalize() WorkflowConfig {
	w.BaseURL = strings.TrimRight(strings.TrimSpace(w.BaseURL), "/")
	if w.BaseURL == "" {
		w.BaseURL = "http://localhost:5678/api/v1"
	}
	if w.PromptNode == "" {
		w.PromptNode = "Basic LLM Chain"
	}
	if w.BackupDir == "" {
		w.BackupDir = "."
	}
	if w.Timeout <= 0 {
		w.Timeout = 15 * time.Second
	}
	return w
}

func (w WorkflowConfig) Validate() error {
	if w.BackupSchedule != "" && len(w.IDs) == 0 {
		return fmt.Errorf("workflow.ids required when workflow.backup_schedule is set")
	}
	return nil
}

// MessagingConfig configures the pub/sub broker. In debug mode every
// session shares one topic.
type MessagingConfig struct {
	Debug bool        `mapstructure:"debug"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Addr is host:port.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, r.Port)
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("messaging.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("messaging.redis.port required")
	}
	return nil
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

func (t TelemetryConfig) Normalize() TelemetryConfig {
	if t.MetricsPath == "" {
		t.MetricsPath = "/metrics"
	}
	return t
}

func (t TelemetryConfig) Validate() error {
	if !strings.HasPrefix(t.MetricsPath, "/") {
		return fmt.Errorf("telemetry.metrics_path must start with /")
	}
	return nil
}

// JWTSecret prefers server.jwt_secret over general.jwt_secret.
func (c *Config) JWTSecret() string {
	if c.Server.JWTSecret != "" {
		return c.Server.JWTSecret
	}
	return c.General.JWTSecret
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "")
	v.SetDefault("general.jwt_secret", "")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("workflow.api_key", "")
	v.SetDefault("workflow.base_url", "http://localhost:5678/api/v1")
	v.SetDefault("messaging.debug", false)
	v.SetDefault("messaging.redis.host", "localhost")
	v.SetDefault("messaging.redis.port", "6379")
	v.SetDefault("messaging.redis.timeout", "5s")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.metrics_path", "/metrics")
}

// Load reads config from path, or searches the usual locations when path is
// empty. A missing file is tolerated only in search mode, so environment
// variables alone can configure the services.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, ".."))
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("LRPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// conventional names used by the n8n and OpenAI tooling
	_ = v.BindEnv("llm.api_key", "LRPS_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("workflow.api_key", "LRPS_WORKFLOW_API_KEY", "N8N_API_KEY")
	_ = v.BindEnv("general.jwt_secret", "LRPS_GENERAL_JWT_SECRET", "JWT_SECRET")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.General = cfg.General.Normalize()
	cfg.Auth = cfg.Auth.Normalize()
	cfg.LLM = cfg.LLM.Normalize()
	cfg.Workflow = cfg.Workflow.Normalize()
	cfg.Telemetry = cfg.Telemetry.Normalize()

	for _, check := range []func() error{
		cfg.General.Validate,
		cfg.Server.Validate,
		cfg.Auth.Validate,
		cfg.LLM.Validate,
		cfg.Workflow.Validate,
		cfg.Messaging.Redis.Validate,
		cfg.Telemetry.Validate,
	} {
		if err := check(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// LoadConfig is Load for command entry points: it panics on error.
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return cfg
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"thinkdesk/internal/lookup"
	"thinkdesk/internal/wizard"
)

// DefaultPath is read when present; a missing default file is not an error.
const DefaultPath = "thinkdesk.yaml"

const (
	EnvBaseURL = "THINKDESK_BASE_URL"
	EnvToken   = "THINKDESK_TOKEN"
)

// Config is the root configuration for thinkdesk.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Log    LogConfig    `yaml:"log"`
	UI     UIConfig     `yaml:"ui"`
	Wizard WizardConfig `yaml:"wizard"`
}

// APIConfig contains the ThinkDesk API connection settings.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	// Timeout of 0 leaves requests without a deadline.
	Timeout time.Duration `yaml:"timeout"`
	// Token is used by the docs request runner before the wizard has logged in.
	Token string `yaml:"token"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	BlurDelay time.Duration `yaml:"blur_delay"`
	// SpecFile replaces the built-in catalog with an OpenAPI document (path or URL).
	SpecFile string `yaml:"spec_file"`
}

// WizardConfig contains the initial form values and, for headless runs,
// selections to use when a step cannot seed them from created entities.
type WizardConfig struct {
	Forms      wizard.Forms `yaml:"forms"`
	Selections Selections   `yaml:"selections"`
}

type Selections struct {
	TenantID    *int64 `yaml:"tenant_id"`
	RoleID      *int64 `yaml:"role_id"`
	RequesterID *int64 `yaml:"requester_id"`
	CategoryID  *int64 `yaml:"category_id"`
	PriorityID  *int64 `yaml:"priority_id"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		API: APIConfig{BaseURL: "http://localhost:8080"},
		Log: LogConfig{Level: "info", Format: "text"},
		UI:  UIConfig{BlurDelay: lookup.DefaultBlurDelay},
		Wizard: WizardConfig{
			Forms: wizard.DefaultForms(time.Now()),
		},
	}
}

// Load reads configuration from a YAML file on top of Defaults. An empty path
// skips the file. Environment variables from .env are loaded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		// Expand environment variables.
		expanded := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ResolvePath returns explicit when set, DefaultPath when it exists, or "".
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultPath); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return DefaultPath
}

// expandEnvVars replaces ${VAR} and $VAR patterns with environment variable values.
func expandEnvVars(s string) string {
	// Match ${VAR} pattern.
	re := regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})

	// Match $VAR pattern.
	re = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[1:]); ok {
			return val
		}
		return match
	})
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		cfg.API.Token = v
	}
}

// applyDefaults fills fields a file explicitly blanked.
func applyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8080"
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	if cfg.Wizard.Forms.Ticket.TicketType == "" {
		cfg.Wizard.Forms.Ticket.TicketType = "INCIDENT"
	}
	cfg.Wizard.Forms.Ticket.TicketType = strings.ToUpper(cfg.Wizard.Forms.Ticket.TicketType)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", c.API.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("api.base_url has no host: %q", c.API.BaseURL)
	}

	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}

	if c.UI.BlurDelay < 0 {
		return fmt.Errorf("ui.blur_delay must not be negative")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log.format: %s", c.Log.Format)
	}

	if !wizard.ValidTicketType(c.Wizard.Forms.Ticket.TicketType) {
		return fmt.Errorf("wizard.forms.ticket.ticket_type must be one of %s",
			strings.Join(wizard.TicketTypes, ", "))
	}

	if _, err := wizard.FormatDueDate(c.Wizard.Forms.Ticket.ResolutionDueDate); err != nil {
		return fmt.Errorf("wizard.forms.ticket: %w", err)
	}

	return nil
}

// String returns a sanitized string representation of the config (no secrets).
func (c *Config) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("API: base_url=%s timeout=%s token=%t\n",
		c.API.BaseURL, c.API.Timeout, c.API.Token != ""))
	sb.WriteString(fmt.Sprintf("Log: level=%s format=%s file=%s\n", c.Log.Level, c.Log.Format, c.Log.File))
	sb.WriteString(fmt.Sprintf("UI: blur_delay=%s spec_file=%s\n", c.UI.BlurDelay, c.UI.SpecFile))
	sb.WriteString(fmt.Sprintf("Wizard: login=%s tenant=%q role=%s\n",
		c.Wizard.Forms.Login.Login, c.Wizard.Forms.Tenant.TradingName, c.Wizard.Forms.Role.Name))

	return sb.String()
}

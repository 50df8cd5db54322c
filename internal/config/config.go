package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default values for the configuration.
const (
	DefaultRESTPort    = 8000
	DefaultHistoryPath = "alert-history.json"
	DefaultSMTPPort    = 25
)

// Config is the full rule document parsed from the YAML file passed
// via -config.
type Config struct {
	Cluster ClusterConfig `yaml:"cluster"`
	Source  SourceConfig  `yaml:"source"`
	Email   EmailConfig   `yaml:"email"`
	History HistoryConfig `yaml:"history"`
	Rules   Rules         `yaml:"rules"`
}

// ClusterConfig identifies the storage cluster being monitored and the
// credentials used against its REST API.
type ClusterConfig struct {
	// Name appears in every alert subject line.
	Name string `yaml:"name"`

	// Address is the cluster's REST API host. Required when source.type
	// is "rest".
	Address string `yaml:"address"`

	// Port is the REST API port (default 8000).
	Port int `yaml:"port"`

	// Username authenticates against the REST API.
	Username string `yaml:"username"`

	// PasswordEnv is the name of the environment variable that holds the
	// REST API password.
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the REST password resolved from the environment.
func (c ClusterConfig) Password() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// SourceConfig selects where telemetry readings come from.
type SourceConfig struct {
	// Type is one of: rest | prometheus. Default "rest".
	Type string `yaml:"type"`

	// Endpoint is the metrics URL scraped when Type is "prometheus",
	// e.g. "http://cluster.example.com:9100/metrics".
	Endpoint string `yaml:"endpoint"`
}

// EmailConfig holds the sender identity and delivery provider settings.
type EmailConfig struct {
	// Sender is the From address on every alert email.
	Sender string `yaml:"sender"`

	// Provider is one of: smtp | ses | resend. Default "smtp".
	Provider string `yaml:"provider"`

	SMTP   SMTPConfig   `yaml:"smtp"`
	SES    SESConfig    `yaml:"ses"`
	Resend ResendConfig `yaml:"resend"`
}

// SMTPConfig configures the smtp provider.
type SMTPConfig struct {
	Host string `yaml:"host"`

	// Port defaults to 25. Port 587 uses STARTTLS, 465 implicit TLS.
	Port int `yaml:"port"`

	// User enables SMTP authentication when non-empty.
	User string `yaml:"user"`

	// PasswordEnv names the environment variable holding the SMTP password.
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the SMTP password resolved from the environment.
func (s SMTPConfig) Password() string {
	if s.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(s.PasswordEnv)
}

// SESConfig configures the ses provider.
type SESConfig struct {
	// Region is the AWS region SES requests are sent to (default us-east-1).
	Region string `yaml:"region"`
}

// ResendConfig configures the resend provider.
type ResendConfig struct {
	// APIKeyEnv names the environment variable holding the Resend API key.
	APIKeyEnv string `yaml:"api_key_env"`
}

// APIKey returns the Resend API key resolved from the environment.
func (r ResendConfig) APIKey() string {
	if r.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(r.APIKeyEnv)
}

// HistoryConfig controls where the alert history store lives.
type HistoryConfig struct {
	// Path is the history file location (default "alert-history.json").
	Path string `yaml:"path"`
}

// Rules holds every configured alert rule, grouped by kind.
type Rules struct {
	// Quota rules apply to the directory quota at their Path.
	Quota []QuotaRule `yaml:"quota"`

	// DefaultQuota rules apply to every observed quota path not named by
	// any explicit Quota rule.
	DefaultQuota []QuotaRule `yaml:"default_quota"`

	// Capacity rules watch total cluster usage.
	Capacity []CapacityRule `yaml:"capacity"`

	// Replication rules watch replication relationships for errors.
	Replication []ReplicationRule `yaml:"replication"`
}

// QuotaRule defines threshold alerting for one directory quota, or for
// all uncovered quotas when used as a default rule (Path empty).
type QuotaRule struct {
	Name string `yaml:"name"`

	// Path is the directory the quota applies to. Must be empty on
	// default rules and non-empty on explicit rules.
	Path string `yaml:"path"`

	// Thresholds are usage percentages in (0, 100], strictly ascending.
	// An alert fires when usage reaches a threshold not yet alerted on.
	Thresholds []float64 `yaml:"thresholds"`

	// MailTo is the recipient list. At least one address is required.
	MailTo []string `yaml:"mail_to"`

	// CustomMsg is appended to the alert body when non-empty.
	CustomMsg string `yaml:"custom_msg"`

	// IncludeCapacity adds total cluster capacity to the alert body.
	IncludeCapacity bool `yaml:"include_capacity"`
}

// CapacityRule defines threshold alerting for total cluster usage.
type CapacityRule struct {
	Name       string    `yaml:"name"`
	Thresholds []float64 `yaml:"thresholds"`
	MailTo     []string  `yaml:"mail_to"`
	CustomMsg  string    `yaml:"custom_msg"`
}

// ReplicationRule defines binary alerting on replication relationship
// errors. No thresholds: a relationship either reports an error or not.
type ReplicationRule struct {
	Name      string   `yaml:"name"`
	MailTo    []string `yaml:"mail_to"`
	CustomMsg string   `yaml:"custom_msg"`
}

// Load reads and parses the rule document at path. Missing fields are
// filled with defaults before validation. Any validation failure is
// returned as an error naming the offending field; callers must treat it
// as fatal and run no checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Cluster: ClusterConfig{Port: DefaultRESTPort},
		Source:  SourceConfig{Type: "rest"},
		Email:   EmailConfig{Provider: "smtp", SMTP: SMTPConfig{Port: DefaultSMTPPort}},
		History: HistoryConfig{Path: DefaultHistoryPath},
	}
}

// applyDefaults fills fields the YAML may have set to their zero value.
func applyDefaults(cfg *Config) {
	if cfg.Cluster.Port == 0 {
		cfg.Cluster.Port = DefaultRESTPort
	}
	if cfg.Source.Type == "" {
		cfg.Source.Type = "rest"
	}
	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "smtp"
	}
	if cfg.Email.SMTP.Port == 0 {
		cfg.Email.SMTP.Port = DefaultSMTPPort
	}
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	switch cfg.Source.Type {
	case "rest":
		if cfg.Cluster.Address == "" {
			return fmt.Errorf("cluster.address is required when source.type is rest")
		}
	case "prometheus":
		if cfg.Source.Endpoint == "" {
			return fmt.Errorf("source.endpoint is required when source.type is prometheus")
		}
	default:
		return fmt.Errorf("source.type %q unknown: want rest|prometheus", cfg.Source.Type)
	}

	switch cfg.Email.Provider {
	case "smtp", "ses", "resend":
	default:
		return fmt.Errorf("email.provider %q unknown: want smtp|ses|resend", cfg.Email.Provider)
	}
	if cfg.Email.Sender == "" {
		return fmt.Errorf("email.sender is required")
	}

	seenQuota := map[string]bool{}
	for i, r := range cfg.Rules.Quota {
		field := fmt.Sprintf("rules.quota[%d]", i)
		if r.Path == "" {
			return fmt.Errorf("%s.path is required", field)
		}
		key := r.Path + "\x00" + r.Name
		if seenQuota[key] {
			return fmt.Errorf("%s: duplicate rule %q for path %q", field, r.Name, r.Path)
		}
		seenQuota[key] = true
		if err := checkThresholdRule(field, r.Name, r.Thresholds, r.MailTo); err != nil {
			return err
		}
	}

	seen := map[string]bool{}
	for i, r := range cfg.Rules.DefaultQuota {
		field := fmt.Sprintf("rules.default_quota[%d]", i)
		if r.Path != "" {
			return fmt.Errorf("%s.path must be empty on default rules", field)
		}
		if err := checkName(field, r.Name, seen); err != nil {
			return err
		}
		if err := checkThresholdRule(field, r.Name, r.Thresholds, r.MailTo); err != nil {
			return err
		}
	}

	seen = map[string]bool{}
	for i, r := range cfg.Rules.Capacity {
		field := fmt.Sprintf("rules.capacity[%d]", i)
		if err := checkName(field, r.Name, seen); err != nil {
			return err
		}
		if err := checkThresholdRule(field, r.Name, r.Thresholds, r.MailTo); err != nil {
			return err
		}
	}

	seen = map[string]bool{}
	for i, r := range cfg.Rules.Replication {
		field := fmt.Sprintf("rules.replication[%d]", i)
		if err := checkName(field, r.Name, seen); err != nil {
			return err
		}
		if err := checkRecipients(field, r.MailTo); err != nil {
			return err
		}
	}
	return nil
}

func checkName(field, name string, seen map[string]bool) error {
	if name == "" {
		return fmt.Errorf("%s.name is required", field)
	}
	if seen[name] {
		return fmt.Errorf("%s: duplicate rule name %q", field, name)
	}
	seen[name] = true
	return nil
}

// checkThresholdRule validates the shared shape of quota, default quota,
// and capacity rules.
func checkThresholdRule(field, name string, thresholds []float64, mailTo []string) error {
	if name == "" {
		return fmt.Errorf("%s.name is required", field)
	}
	if len(thresholds) == 0 {
		return fmt.Errorf("%s.thresholds must not be empty", field)
	}
	prev := 0.0
	for _, t := range thresholds {
		if t <= 0 || t > 100 {
			return fmt.Errorf("%s.thresholds: %v is out of range (0, 100]", field, t)
		}
		if t <= prev {
			return fmt.Errorf("%s.thresholds must be strictly ascending, got %v after %v", field, t, prev)
		}
		prev = t
	}
	return checkRecipients(field, mailTo)
}

func checkRecipients(field string, mailTo []string) error {
	if len(mailTo) == 0 {
		return fmt.Errorf("%s.mail_to must not be empty", field)
	}
	for _, addr := range mailTo {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("%s.mail_to: %q is not an email address", field, addr)
		}
	}
	return nil
}

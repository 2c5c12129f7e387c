package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPeriodDays = 28
	DefaultQueue      = "low"
)

// Config models linkboard.yml.
type Config struct {
	Planner struct {
		DefaultPeriodDays int    `yaml:"default_period_days"`
		MaxPeriodDays     int    `yaml:"max_period_days"`
		Queue             string `yaml:"queue"`
		MaxRetry          int    `yaml:"max_retry"`
	} `yaml:"planner"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles"`
	} `yaml:"rbac"`
	Insights Insights        `yaml:"insights"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type Insights struct {
	// Source is "rules" or "http".
	Source         string        `yaml:"source"`
	Endpoint       string        `yaml:"endpoint"`
	Secret         string        `yaml:"secret"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Rules          []InsightRule `yaml:"rules"`
}

// InsightRule is a catalog entry the rule source turns into a plan item.
type InsightRule struct {
	Key           string `yaml:"key"`
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
	Priority      string `yaml:"priority"`
	ImpactScore   int    `yaml:"impact_score"`
	Effort        string `yaml:"effort"`
	PlannerGroup  string `yaml:"planner_group"`
	MinPeriodDays int    `yaml:"min_period_days"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

var knownPermissions = map[string]bool{
	"insights.view": true,
	"insights.run":  true,
}

// Load reads and validates config from workspace, falling back to defaults
// when the file is absent.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Planner.DefaultPeriodDays <= 0 {
		return fmt.Errorf("config.planner.default_period_days must be positive")
	}
	if c.Planner.MaxPeriodDays < c.Planner.DefaultPeriodDays {
		return fmt.Errorf("config.planner.max_period_days must be >= default_period_days")
	}
	if strings.TrimSpace(c.Planner.Queue) == "" {
		return fmt.Errorf("config.planner.queue is required")
	}
	if c.Planner.MaxRetry < 0 {
		return fmt.Errorf("config.planner.max_retry must not be negative")
	}
	for roleID, role := range c.RBAC.Roles {
		if roleID == "" {
			return fmt.Errorf("config.rbac.roles contains empty role id")
		}
		if roleID == "owner" {
			return fmt.Errorf("config.rbac.roles must not redefine owner")
		}
		for _, perm := range role.Permissions {
			if !knownPermissions[perm] {
				return fmt.Errorf("role %s has unknown permission %q", roleID, perm)
			}
		}
	}
	switch c.Insights.Source {
	case "rules":
		if len(c.Insights.Rules) == 0 {
			return fmt.Errorf("config.insights.rules is required for source rules")
		}
	case "http":
		if strings.TrimSpace(c.Insights.Endpoint) == "" {
			return fmt.Errorf("config.insights.endpoint is required for source http")
		}
	default:
		return fmt.Errorf("config.insights.source must be rules or http")
	}
	seen := map[string]bool{}
	for i, r := range c.Insights.Rules {
		if r.Key == "" || r.Title == "" {
			return fmt.Errorf("insight rule %d needs key and title", i)
		}
		if seen[r.Key] {
			return fmt.Errorf("insight rule %s defined twice", r.Key)
		}
		seen[r.Key] = true
		if r.ImpactScore < 0 || r.ImpactScore > 100 {
			return fmt.Errorf("insight rule %s impact_score out of range", r.Key)
		}
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhook %d missing url", i)
		}
	}
	return nil
}

// RolePermissions returns the permissions granted by a member role.
func (c *Config) RolePermissions(role string) ([]string, bool) {
	r, ok := c.RBAC.Roles[role]
	if !ok {
		return nil, false
	}
	return r.Permissions, true
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "linkboard.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing planner
// settings fall back to defaults.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

func (c *Config) applyDefaults() {
	if c.Planner.DefaultPeriodDays == 0 {
		c.Planner.DefaultPeriodDays = DefaultPeriodDays
	}
	if c.Planner.MaxPeriodDays == 0 {
		c.Planner.MaxPeriodDays = 90
	}
	if c.Planner.Queue == "" {
		c.Planner.Queue = DefaultQueue
	}
	if c.Planner.MaxRetry == 0 {
		c.Planner.MaxRetry = 5
	}
	if c.Insights.Source == "" {
		c.Insights.Source = "rules"
	}
	if c.Insights.Source == "rules" && len(c.Insights.Rules) == 0 {
		c.Insights.Rules = Default().Insights.Rules
	}
}

const defaultTemplate = `planner:
  default_period_days: 28
  max_period_days: 90
  queue: low
  max_retry: 5

rbac:
  roles:
    viewer:
      description: "Can see the planner board"
      permissions: [insights.view]
    analyst:
      description: "Can generate and apply plans"
      permissions: [insights.view, insights.run]

insights:
  source: rules
  timeout_seconds: 30
  rules:
    - key: fix-broken-backlinks
      title: "Reclaim broken backlinks"
      description: "Contact referring sites linking to 404 pages or redirect the targets."
      priority: p1
      impact_score: 90
      effort: medium
      planner_group: today
    - key: disavow-toxic-links
      title: "Review toxic referring domains"
      description: "Audit referring domains flagged as spam and prepare a disavow file."
      priority: p1
      impact_score: 80
      effort: high
      planner_group: week
    - key: anchor-text-diversity
      title: "Diversify anchor text"
      description: "Rebalance exact-match anchors in active campaigns."
      priority: p2
      impact_score: 60
      effort: medium
      planner_group: week
    - key: outreach-campaign
      title: "Launch guest post outreach"
      description: "Shortlist ten relevant publishers and send outreach."
      priority: p2
      impact_score: 55
      effort: high
      planner_group: month
      min_period_days: 14
    - key: internal-linking
      title: "Strengthen internal links to money pages"
      priority: p3
      impact_score: 35
      effort: low
      planner_group: month
      min_period_days: 28
`

package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config models staffline.yml: org identity plus the allocation policy knobs.
type Config struct {
	Org struct {
		ID   string `yaml:"id" json:"id"`
		Name string `yaml:"name" json:"name"`
	} `yaml:"org" json:"org"`
	Policy struct {
		// CapacityPercent caps the sum of active workload per employee.
		CapacityPercent int `yaml:"capacity_percent" json:"capacity_percent"`
		// MinAssignPercent/MaxAssignPercent are presentation-layer slider
		// bounds, advertised to clients but not enforced by the validator.
		MinAssignPercent int `yaml:"min_assign_percent" json:"min_assign_percent"`
		MaxAssignPercent int `yaml:"max_assign_percent" json:"max_assign_percent"`
		// RequireActiveEmployment rejects assignments to terminated
		// employees inside the engine instead of leaving it to the caller.
		RequireActiveEmployment bool `yaml:"require_active_employment" json:"require_active_employment"`
	} `yaml:"policy" json:"policy"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Org.ID == "" {
		return fmt.Errorf("config.org.id is required")
	}
	if c.Policy.CapacityPercent < 1 || c.Policy.CapacityPercent > 100 {
		return fmt.Errorf("config.policy.capacity_percent must be in [1,100]")
	}
	if c.Policy.MinAssignPercent < 1 || c.Policy.MinAssignPercent > c.Policy.CapacityPercent {
		return fmt.Errorf("config.policy.min_assign_percent must be in [1,capacity_percent]")
	}
	if c.Policy.MaxAssignPercent < c.Policy.MinAssignPercent || c.Policy.MaxAssignPercent > c.Policy.CapacityPercent {
		return fmt.Errorf("config.policy.max_assign_percent must be in [min_assign_percent,capacity_percent]")
	}
	return nil
}

// Default returns the default Config struct for an org.
func Default(orgID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, orgID))).Decode(&cfg)
	cfg.Org.ID = orgID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
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

// GenerateDefault returns default config YAML.
func GenerateDefault(orgID string) string {
	return fmt.Sprintf(defaultTemplate, orgID)
}

const defaultTemplate = `org:
  id: %s
  name: Default Org

policy:
  capacity_percent: 100
  min_assign_percent: 10
  max_assign_percent: 80
  require_active_employment: false
`

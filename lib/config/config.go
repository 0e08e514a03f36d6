// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for developer machines and test images.
	Development Environment = "development"
	// Production is for device images.
	Production Environment = "production"
)

// Config is the configuration of the policy manager.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Paths configures file and directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Service configures the privileged socket service.
	Service ServiceConfig `yaml:"service"`

	// Policy configures privilege policy behavior.
	Policy PolicyConfig `yaml:"policy"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Service *ServiceConfig `yaml:"service,omitempty"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// Root is the base directory for persistent state. Other paths
	// may reference it as ${SECMGR_ROOT}.
	Root string `yaml:"root"`

	// RulesDir holds one rule file per application, package and
	// author, plus the shared read-only file.
	RulesDir string `yaml:"rules_dir"`

	// MergedRules is the concatenation of every rule file, loaded at
	// boot before the service starts.
	MergedRules string `yaml:"merged_rules"`

	// TemplateDir holds the rule templates shipped with the platform.
	TemplateDir string `yaml:"template_dir"`

	// Database is the SQLite database of installed applications.
	Database string `yaml:"database"`

	// VarDir holds the permissible label sets.
	VarDir string `yaml:"var_dir"`

	// Socket is the Unix socket the service listens on.
	Socket string `yaml:"socket"`

	// LockFile is held exclusively by a running service. Clients
	// that can lock it run in offline mode.
	LockFile string `yaml:"lock_file"`

	// PrivilegeGroups is the JSONC privilege-to-group mapping.
	PrivilegeGroups string `yaml:"privilege_groups"`

	// Smackfs is the mount point of the SMACK filesystem.
	Smackfs string `yaml:"smackfs"`
}

// ServiceConfig configures the socket service.
type ServiceConfig struct {
	// RequestTimeout bounds reading one request and writing its
	// response. Default: 30s
	RequestTimeout string `yaml:"request_timeout"`
}

// PolicyConfig configures privilege policy.
type PolicyConfig struct {
	// Levels are the policy level descriptions, from most to least
	// restrictive. Policy updates must use one of them.
	Levels []string `yaml:"levels"`

	// GlobalAppUID is the uid that owns globally installed
	// applications.
	GlobalAppUID int `yaml:"global_app_uid"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:            "/opt/dbspace/secmgr",
			RulesDir:        "${SECMGR_ROOT}/rules",
			MergedRules:     "${SECMGR_ROOT}/rules-merged/rules.merged",
			TemplateDir:     "/usr/share/secmgr/policy",
			Database:        "${SECMGR_ROOT}/secmgr.db",
			VarDir:          "/var/secmgr",
			Socket:          "/run/secmgr/api.sock",
			LockFile:        "/run/secmgr/secmgr.lock",
			PrivilegeGroups: "/usr/share/secmgr/privilege-groups.jsonc",
			Smackfs:         "/sys/fs/smackfs",
		},
		Service: ServiceConfig{
			RequestTimeout: "30s",
		},
		Policy: PolicyConfig{
			Levels:       []string{"Deny", "Ask user", "Allow"},
			GlobalAppUID: 201,
		},
	}
}

// Load loads configuration from the file named by SECMGR_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("SECMGR_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SECMGR_CONFIG environment variable not set; " +
			"set it to the path of your secmgr.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies the
// section matching the environment, and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		override := overrides.Paths
		for _, field := range []struct {
			target *string
			value  string
		}{
			{&c.Paths.Root, override.Root},
			{&c.Paths.RulesDir, override.RulesDir},
			{&c.Paths.MergedRules, override.MergedRules},
			{&c.Paths.TemplateDir, override.TemplateDir},
			{&c.Paths.Database, override.Database},
			{&c.Paths.VarDir, override.VarDir},
			{&c.Paths.Socket, override.Socket},
			{&c.Paths.LockFile, override.LockFile},
			{&c.Paths.PrivilegeGroups, override.PrivilegeGroups},
			{&c.Paths.Smackfs, override.Smackfs},
		} {
			if field.value != "" {
				*field.target = field.value
			}
		}
	}

	if overrides.Service != nil && overrides.Service.RequestTimeout != "" {
		c.Service.RequestTimeout = overrides.Service.RequestTimeout
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"SECMGR_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["SECMGR_ROOT"] = c.Paths.Root

	for _, path := range []*string{
		&c.Paths.RulesDir,
		&c.Paths.MergedRules,
		&c.Paths.TemplateDir,
		&c.Paths.Database,
		&c.Paths.VarDir,
		&c.Paths.Socket,
		&c.Paths.LockFile,
		&c.Paths.PrivilegeGroups,
		&c.Paths.Smackfs,
	} {
		*path = expandVars(*path, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// RequestTimeout returns the parsed service request timeout.
func (c *Config) RequestTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Service.RequestTimeout)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	for _, required := range []struct {
		name  string
		value string
	}{
		{"paths.rules_dir", c.Paths.RulesDir},
		{"paths.merged_rules", c.Paths.MergedRules},
		{"paths.template_dir", c.Paths.TemplateDir},
		{"paths.database", c.Paths.Database},
		{"paths.var_dir", c.Paths.VarDir},
		{"paths.socket", c.Paths.Socket},
		{"paths.lock_file", c.Paths.LockFile},
	} {
		if required.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", required.name))
		} else if !filepath.IsAbs(required.value) {
			errs = append(errs, fmt.Errorf("%s must be absolute, got %q", required.name, required.value))
		}
	}

	if timeout, err := c.RequestTimeout(); err != nil {
		errs = append(errs, fmt.Errorf("service.request_timeout: %w", err))
	} else if timeout <= 0 {
		errs = append(errs, fmt.Errorf("service.request_timeout must be positive"))
	}

	if len(c.Policy.Levels) == 0 {
		errs = append(errs, fmt.Errorf("policy.levels must not be empty"))
	}
	seen := make(map[string]bool)
	for _, level := range c.Policy.Levels {
		if level == "" {
			errs = append(errs, fmt.Errorf("policy.levels contains an empty level"))
		} else if seen[level] {
			errs = append(errs, fmt.Errorf("policy.levels contains %q twice", level))
		}
		seen[level] = true
	}

	if c.Policy.GlobalAppUID < 0 {
		errs = append(errs, fmt.Errorf("policy.global_app_uid must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the directories the service writes into.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.RulesDir,
		filepath.Dir(c.Paths.MergedRules),
		filepath.Dir(c.Paths.Database),
		c.Paths.VarDir,
		filepath.Dir(c.Paths.Socket),
		filepath.Dir(c.Paths.LockFile),
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

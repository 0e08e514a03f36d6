// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Paths.Smackfs != "/sys/fs/smackfs" {
		t.Errorf("expected smackfs=/sys/fs/smackfs, got %s", cfg.Paths.Smackfs)
	}
	if len(cfg.Policy.Levels) == 0 {
		t.Error("expected default policy levels")
	}

	cfg.expandVariables()
	if cfg.Paths.RulesDir != "/opt/dbspace/secmgr/rules" {
		t.Errorf("expected rules_dir under root, got %s", cfg.Paths.RulesDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expanded default config invalid: %v", err)
	}
}

func TestLoad_RequiresConfigVariable(t *testing.T) {
	t.Setenv("SECMGR_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when SECMGR_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "SECMGR_CONFIG environment variable not set") {
		t.Errorf("unexpected error message %q", err.Error())
	}
}

func TestLoad_WithConfigVariable(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "secmgr.yaml")
	configContent := `
environment: production
paths:
  root: /test/root
  socket: /test/api.sock
policy:
  levels: [Deny, Allow]
  global_app_uid: 301
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("SECMGR_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Production {
		t.Errorf("expected environment=production, got %s", cfg.Environment)
	}
	if cfg.Paths.Socket != "/test/api.sock" {
		t.Errorf("expected socket=/test/api.sock, got %s", cfg.Paths.Socket)
	}
	if cfg.Paths.Database != "/test/root/secmgr.db" {
		t.Errorf("expected database under the configured root, got %s", cfg.Paths.Database)
	}
	if len(cfg.Policy.Levels) != 2 || cfg.Policy.GlobalAppUID != 301 {
		t.Errorf("policy = %+v", cfg.Policy)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "secmgr.yaml")
	if err := os.WriteFile(configPath, []byte("paths: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "secmgr.yaml")
	configContent := `
environment: production

paths:
  root: /default/root
  template_dir: /default/templates

service:
  request_timeout: 10s

development:
  paths:
    root: /dev/root

production:
  paths:
    root: /prod/root
  service:
    request_timeout: 2s
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/prod/root" {
		t.Errorf("expected root=/prod/root, got %s", cfg.Paths.Root)
	}
	if cfg.Paths.RulesDir != "/prod/root/rules" {
		t.Errorf("expected rules_dir=/prod/root/rules, got %s", cfg.Paths.RulesDir)
	}
	if cfg.Paths.TemplateDir != "/default/templates" {
		t.Errorf("expected base template_dir to survive, got %s", cfg.Paths.TemplateDir)
	}
	if cfg.Service.RequestTimeout != "2s" {
		t.Errorf("expected request_timeout=2s, got %s", cfg.Service.RequestTimeout)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	t.Setenv("SECMGR_ROOT", "/env/root")

	configPath := filepath.Join(t.TempDir(), "secmgr.yaml")
	configContent := `
paths:
  root: /file/root
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Paths.Root != "/file/root" {
		t.Errorf("expected root=/file/root, got %s", cfg.Paths.Root)
	}
	if cfg.Paths.RulesDir != "/file/root/rules" {
		t.Errorf("expected rules_dir=/file/root/rules, got %s", cfg.Paths.RulesDir)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{"${HOME}/secmgr", map[string]string{"HOME": "/home/owner"}, "/home/owner/secmgr"},
		{"${SECMGR_TEST_MISSING:-default}", map[string]string{}, "default"},
		{"${PRESENT:-default}", map[string]string{"PRESENT": "value"}, "value"},
		{"${A}/${B}", map[string]string{"A": "first", "B": "second"}, "first/second"},
		{"no variables here", map[string]string{}, "no variables here"},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"invalid environment", func(c *Config) { c.Environment = "staging" }, true},
		{"empty socket", func(c *Config) { c.Paths.Socket = "" }, true},
		{"relative rules dir", func(c *Config) { c.Paths.RulesDir = "rules" }, true},
		{"bad timeout", func(c *Config) { c.Service.RequestTimeout = "soon" }, true},
		{"zero timeout", func(c *Config) { c.Service.RequestTimeout = "0s" }, true},
		{"no levels", func(c *Config) { c.Policy.Levels = nil }, true},
		{"duplicate level", func(c *Config) { c.Policy.Levels = []string{"Allow", "Allow"} }, true},
		{"negative global uid", func(c *Config) { c.Policy.GlobalAppUID = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.expandVariables()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()

	cfg := Default()
	cfg.Paths.Root = root
	cfg.Paths.VarDir = filepath.Join(root, "var")
	cfg.Paths.Socket = filepath.Join(root, "run", "api.sock")
	cfg.Paths.LockFile = filepath.Join(root, "run", "secmgr.lock")
	cfg.expandVariables()

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{
		cfg.Paths.RulesDir,
		filepath.Dir(cfg.Paths.MergedRules),
		cfg.Paths.VarDir,
		filepath.Join(root, "run"),
	} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}

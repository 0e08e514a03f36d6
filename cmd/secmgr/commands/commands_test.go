// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/secmgr/cmd/secmgr/cli"
	"github.com/bureau-foundation/secmgr/lib/protocol"
	"github.com/bureau-foundation/secmgr/lib/service"
)

// writeConfig writes a config whose paths all live under a temporary
// directory, so commands run offline against fresh state.
func writeConfig(t *testing.T) (configPath, root string) {
	t.Helper()
	root = t.TempDir()
	configPath = filepath.Join(root, "secmgr.yaml")
	content := `
paths:
  root: ` + root + `
  template_dir: ${SECMGR_ROOT}/templates
  var_dir: ${SECMGR_ROOT}/var
  socket: ${SECMGR_ROOT}/run/api.sock
  lock_file: ${SECMGR_ROOT}/run/secmgr.lock
  privilege_groups: ${SECMGR_ROOT}/groups.jsonc
  smackfs: ${SECMGR_ROOT}
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	groups := `{
	// Network access.
	"http://tizen.org/privilege/internet": ["priv_internet"],
}`
	if err := os.WriteFile(filepath.Join(root, "groups.jsonc"), []byte(groups), 0o644); err != nil {
		t.Fatal(err)
	}
	return configPath, root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	saved := stdout
	stdout = &out
	t.Cleanup(func() { stdout = saved })

	root := Root()
	root.Output = &bytes.Buffer{}
	err := root.Execute(context.Background(), args)
	return out.String(), err
}

func TestOfflineQueries(t *testing.T) {
	configPath, _ := writeConfig(t)

	out, err := execute(t, "policy", "levels", "--config", configPath)
	if err != nil {
		t.Fatalf("policy levels: %v", err)
	}
	if out != "Deny\nAsk user\nAllow\n" {
		t.Errorf("policy levels output = %q", out)
	}

	out, err = execute(t, "policy", "groups", "--config", configPath, "--json")
	if err != nil {
		t.Fatalf("policy groups: %v", err)
	}
	if !strings.Contains(out, `"priv_internet"`) {
		t.Errorf("policy groups output = %q", out)
	}

	_, err = execute(t, "pkg-id", "--config", configPath, "org.example.absent")
	if code := protocol.CodeOf(err); code != protocol.ResultNoSuchObject {
		t.Errorf("pkg-id of absent application: code %v (%v)", code, err)
	}

	out, err = execute(t, "policy", "get", "--config", configPath, "--scope", "self")
	if err != nil {
		t.Fatalf("policy get: %v", err)
	}
	if !strings.HasPrefix(out, "USER") {
		t.Errorf("policy get output = %q", out)
	}
}

func TestRulesMerge(t *testing.T) {
	configPath, root := writeConfig(t)
	rulesDir := filepath.Join(root, "rules")
	if err := os.MkdirAll(rulesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(rulesDir, "app_org.example.gallery"),
		[]byte("System User::App::org.example.gallery rwxat\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "rules", "merge", "--config", configPath)
	if err != nil {
		t.Fatalf("rules merge: %v", err)
	}
	if !strings.Contains(out, "1 files") {
		t.Errorf("rules merge output = %q", out)
	}
	merged, err := os.ReadFile(filepath.Join(root, "rules-merged", "rules.merged"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(merged), "User::App::org.example.gallery") {
		t.Errorf("merged snapshot = %q", merged)
	}

	// A running service owns the files.
	lock, err := service.AcquireLock(filepath.Join(root, "run", "secmgr.lock"))
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Close()
	if _, err := execute(t, "rules", "merge", "--config", configPath); err == nil {
		t.Error("rules merge ran while the service lock was held")
	}
}

func TestHasPrivilegeExitCode(t *testing.T) {
	configPath, _ := writeConfig(t)

	// Nothing is installed, so nothing is allowed.
	out, err := execute(t, "has-privilege", "--config", configPath, "--uid", "5001",
		"org.example.gallery", "http://tizen.org/privilege/internet")
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("error = %v, want exit code 1", err)
	}
	if out != "denied\n" {
		t.Errorf("output = %q", out)
	}
}

func TestArgumentErrors(t *testing.T) {
	configPath, _ := writeConfig(t)
	tests := []struct {
		name string
		args []string
	}{
		{"install without app", []string{"install", "--config", configPath, "--pkg", "org.example.media"}},
		{"bad path type", []string{"install", "--config", configPath, "--pkg", "p", "--path", "/data:rwx", "a"}},
		{"bad install type", []string{"uninstall", "--config", configPath, "--type", "everywhere", "a"}},
		{"bad uid", []string{"user", "add", "--config", configPath, "owner"}},
		{"bad user type", []string{"user", "add", "--config", configPath, "--type", "root", "5001"}},
		{"bad scope", []string{"policy", "get", "--config", configPath, "--scope", "everyone"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestParsePathSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    protocol.AppPath
		wantErr bool
	}{
		{"/opt/usr/data", protocol.AppPath{Path: "/opt/usr/data", Type: protocol.PathRW}, false},
		{"/opt/usr/data:ro", protocol.AppPath{Path: "/opt/usr/data", Type: protocol.PathRO}, false},
		{"/opt/usr/shared:shared-ro", protocol.AppPath{Path: "/opt/usr/shared", Type: protocol.PathSharedRO}, false},
		{"/opt/usr/trusted:trusted-rw", protocol.AppPath{Path: "/opt/usr/trusted", Type: protocol.PathTrustedRW}, false},
		{"/opt/usr/data:public", protocol.AppPath{}, true},
		{":rw", protocol.AppPath{}, true},
	}
	for _, tt := range tests {
		got, err := parsePathSpec(tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePathSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePathSpec(%q) = %+v, want %+v", tt.spec, got, tt.want)
		}
	}
}

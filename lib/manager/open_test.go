// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bureau-foundation/secmgr/lib/config"
	"github.com/bureau-foundation/secmgr/lib/permissible"
	"github.com/bureau-foundation/secmgr/lib/protocol"
	"github.com/bureau-foundation/secmgr/lib/rules"
	"github.com/bureau-foundation/secmgr/lib/service"
	"github.com/bureau-foundation/secmgr/lib/testutil"
)

func TestOpen(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.PathsConfig{
		Root:            root,
		RulesDir:        filepath.Join(root, "rules"),
		MergedRules:     filepath.Join(root, "rules-merged", "rules.merged"),
		TemplateDir:     filepath.Join(root, "templates"),
		Database:        filepath.Join(root, "secmgr.db"),
		VarDir:          filepath.Join(root, "var"),
		Socket:          filepath.Join(root, "run", "api.sock"),
		LockFile:        filepath.Join(root, "run", "secmgr.lock"),
		PrivilegeGroups: filepath.Join(root, "absent.jsonc"),
		// Not a smackfs, so the kernel reports SMACK disabled.
		Smackfs: root,
	}
	testutil.WriteFiles(t, cfg.Paths.TemplateDir, testTemplates)

	s, err := Open(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.Engine().Kernel().Enabled() {
		t.Fatal("temporary directory reported as smackfs")
	}

	ctx := context.Background()
	creds := service.Credentials{UID: 0}
	if _, _, err := service.Dispatch(ctx, s, creds, &protocol.AppInstall{
		AppID: "org.example.clock", PkgID: "org.example.clock", UID: cfg.Policy.GlobalAppUID,
	}); err != nil {
		t.Fatalf("install: %v", err)
	}

	for _, path := range []string{
		filepath.Join(cfg.Paths.RulesDir, "app_org.example.clock"),
		filepath.Join(cfg.Paths.RulesDir, "pkg_org.example.clock"),
		cfg.Paths.MergedRules,
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not written: %v", path, err)
		}
	}
	labels, err := permissible.Read(filepath.Join(cfg.Paths.VarDir, permissible.FileName))
	if err != nil || !reflect.DeepEqual(labels, []string{"User::App::org.example.clock"}) {
		t.Errorf("global permissible set = %q, %v", labels, err)
	}

	_, response, err := service.Dispatch(ctx, s, creds, &protocol.GroupsGet{})
	if err != nil {
		t.Fatal(err)
	}
	if names := response.(*protocol.Names).Names; len(names) != 0 {
		t.Errorf("groups without a mapping file = %q", names)
	}

	set := rules.New(s.Engine().Kernel())
	defer set.Close()
	if err := set.LoadFromFile(cfg.Paths.MergedRules); err != nil {
		t.Fatalf("loading merged rules: %v", err)
	}
	if set.Len() == 0 {
		t.Error("merged rules empty after install")
	}
}

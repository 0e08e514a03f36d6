// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bureau-foundation/secmgr/lib/smack/smacktest"
)

func TestAddFromTemplate(t *testing.T) {
	set := New(smacktest.New())
	lines := []string{
		"~PROCESS~ ~PATH_RW~ rwxat",
		"",
		"System ~PROCESS~ rwxat",
		"~PROCESS~ ~PATH_TRUSTED~ rwxat",
		"~PROCESS~ ~PATH_RO~ rxl",
	}
	if err := set.AddFromTemplate(lines, "User::App::Gallery", "gallery", 3); err != nil {
		t.Fatalf("AddFromTemplate: %v", err)
	}
	want := []string{
		"User::App::Gallery User::Pkg::gallery rwxat",
		"System User::App::Gallery rwxat",
		"User::App::Gallery User::Author::3 rwxat",
		"User::App::Gallery User::Pkg::gallery::RO rxl",
	}
	if got := ruleLines(set); !reflect.DeepEqual(got, want) {
		t.Errorf("rules = %q, want %q", got, want)
	}
}

func TestAddFromTemplateDropsUnresolvedLines(t *testing.T) {
	set := New(smacktest.New())
	lines := []string{
		"~PROCESS~ ~PATH_TRUSTED~ rwxat",
		"~PROCESS~ ~PATH_RW~ rwxat",
		"System ~PATH_SHARED_RO~ rwxat",
	}
	if err := set.AddFromTemplate(lines, "User::App::Gallery", "", -1); err != nil {
		t.Fatalf("AddFromTemplate: %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("rules = %q, want none", ruleLines(set))
	}

	withPkg := New(smacktest.New())
	if err := withPkg.AddFromTemplate(lines, "", "gallery", -1); err != nil {
		t.Fatalf("AddFromTemplate: %v", err)
	}
	want := []string{"System User::Pkg::gallery::SharedRO rwxat"}
	if got := ruleLines(withPkg); !reflect.DeepEqual(got, want) {
		t.Errorf("rules = %q, want %q", got, want)
	}
}

func TestAddFromTemplateMalformed(t *testing.T) {
	set := New(smacktest.New())
	set.Add("x", "y", "r")

	lines := []string{
		"~PROCESS~ ~PATH_RW~ rwxat",
		"~PROCESS~ ~PATH_RO~",
		"System ~PROCESS~ rwxat",
	}
	err := set.AddFromTemplate(lines, "User::App::A", "p", -1)
	if !errors.Is(err, ErrTemplate) {
		t.Fatalf("AddFromTemplate = %v, want ErrTemplate", err)
	}
	if got := ruleLines(set); !reflect.DeepEqual(got, []string{"x y r"}) {
		t.Errorf("malformed template modified the set: %q", got)
	}
}

func TestAddFromTemplateHasNoComments(t *testing.T) {
	// A '#' line is parsed like any other line.
	set := New(smacktest.New())
	err := set.AddFromTemplate([]string{"# a b c d", "x y r"}, "", "", -1)
	if !errors.Is(err, ErrTemplate) {
		t.Fatalf("AddFromTemplate = %v, want ErrTemplate", err)
	}
	if set.Len() != 0 {
		t.Errorf("rules = %q, want none", ruleLines(set))
	}

	if err := set.AddFromTemplate([]string{"", "x y r", "  "}, "", "", -1); err != nil {
		t.Fatalf("AddFromTemplate with blank lines: %v", err)
	}
	if got, want := ruleLines(set), []string{"x y r"}; !reflect.DeepEqual(got, want) {
		t.Errorf("rules = %q, want %q", got, want)
	}
}

func TestAddFromTemplateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.smack")
	if err := os.WriteFile(path, []byte("~PROCESS~ _ l\n~PROCESS~ ~PATH_RW~ rwxat\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	set := New(smacktest.New())
	if err := set.AddFromTemplateFile(path, "User::App::A", "p", -1); err != nil {
		t.Fatalf("AddFromTemplateFile: %v", err)
	}
	if set.Len() != 2 {
		t.Errorf("rules = %q, want 2", ruleLines(set))
	}

	err := set.AddFromTemplateFile(filepath.Join(t.TempDir(), "missing"), "User::App::A", "p", -1)
	if !errors.Is(err, ErrFile) {
		t.Errorf("missing template = %v, want ErrFile", err)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bureau-foundation/secmgr/lib/smack"
	"github.com/bureau-foundation/secmgr/lib/smack/smacktest"
)

func ruleLines(set *RuleSet) []string {
	var lines []string
	for _, rule := range set.Rules() {
		lines = append(lines, rule.String())
	}
	return lines
}

func TestAddMergesPermissions(t *testing.T) {
	set := New(smacktest.New())
	if err := set.Add("a", "b", "rx"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := set.Add("c", "d", "xr"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := set.Add("a", "b", "wl"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	want := []string{"a b rwxl", "c d xr"}
	if got := ruleLines(set); !reflect.DeepEqual(got, want) {
		t.Errorf("rules = %q, want %q", got, want)
	}
}

func TestAddRejectsInvalidRule(t *testing.T) {
	set := New(smacktest.New())
	for _, test := range []struct{ subject, object, permissions string }{
		{"", "b", "r"},
		{"a", "b c", "r"},
		{"a", "b", "rq"},
	} {
		if err := set.Add(test.subject, test.object, test.permissions); !errors.Is(err, ErrInvalidRule) {
			t.Errorf("Add(%q, %q, %q) = %v, want ErrInvalidRule", test.subject, test.object, test.permissions, err)
		}
	}
	if set.Len() != 0 {
		t.Errorf("failed adds left %d rules", set.Len())
	}
}

func TestApplyAndClear(t *testing.T) {
	kernel := smacktest.New()
	set := New(kernel)
	set.Add("a", "b", "rwx")
	set.AddModify("a", "c", "", "w")

	if err := kernel.Load([]smack.Rule{{Subject: "a", Object: "c", Access: smack.Read | smack.Write}}); err != nil {
		t.Fatal(err)
	}
	if err := set.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := kernel.Access("a", "b"); got != smack.Read|smack.Write|smack.Execute {
		t.Errorf("a b = %v, want rwx", got)
	}
	if got := kernel.Access("a", "c"); got != smack.Read {
		t.Errorf("a c = %v, want r", got)
	}

	if err := set.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if rules := kernel.Rules(); len(rules) != 0 {
		t.Errorf("kernel still holds %q after Clear", rules)
	}
}

func TestApplyKernelFailure(t *testing.T) {
	kernel := smacktest.New()
	kernel.FailNext(errors.New("EINVAL"))

	set := New(kernel)
	set.Add("a", "b", "r")
	if err := set.Apply(); !errors.Is(err, smack.ErrKernel) {
		t.Errorf("Apply = %v, want ErrKernel", err)
	}
}

func TestApplyDisabledKernel(t *testing.T) {
	kernel := smacktest.Disabled()
	kernel.FailNext(errors.New("must not be reached"))

	set := New(kernel)
	set.Add("a", "b", "r")
	if err := set.Apply(); err != nil {
		t.Errorf("Apply on disabled kernel = %v", err)
	}
	if err := set.Clear(); err != nil {
		t.Errorf("Clear on disabled kernel = %v", err)
	}
}

func TestClosedSet(t *testing.T) {
	set := New(smacktest.New())
	set.Add("a", "b", "r")
	set.Close()

	if err := set.Add("a", "b", "r"); !errors.Is(err, ErrClosed) {
		t.Errorf("Add after Close = %v", err)
	}
	if err := set.Apply(); !errors.Is(err, ErrClosed) {
		t.Errorf("Apply after Close = %v", err)
	}
	if err := set.SaveToFile(t.TempDir() + "/rules"); !errors.Is(err, ErrClosed) {
		t.Errorf("SaveToFile after Close = %v", err)
	}
}

func TestGeneratePackageCrossDeps(t *testing.T) {
	set := New(smacktest.New())
	if err := set.GeneratePackageCrossDeps([]string{"A", "B", "C"}); err != nil {
		t.Fatalf("GeneratePackageCrossDeps: %v", err)
	}
	want := []string{
		"A B rwxat", "A C rwxat",
		"B A rwxat", "B C rwxat",
		"C A rwxat", "C B rwxat",
	}
	if got := ruleLines(set); !reflect.DeepEqual(got, want) {
		t.Errorf("rules = %q, want %q", got, want)
	}

	single := New(smacktest.New())
	single.GeneratePackageCrossDeps([]string{"A"})
	if single.Len() != 0 {
		t.Errorf("single label produced %d rules", single.Len())
	}
}

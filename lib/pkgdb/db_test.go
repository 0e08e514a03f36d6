// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pkgdb

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bureau-foundation/secmgr/lib/protocol"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "secmgr.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustInstall(t *testing.T, db *DB, install Install) Installed {
	t.Helper()
	installed, err := db.AddApplication(context.Background(), install)
	if err != nil {
		t.Fatalf("AddApplication(%s): %v", install.AppID, err)
	}
	return installed
}

func TestAddApplication(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	installed := mustInstall(t, db, Install{
		AppID:      "Gallery",
		PkgID:      "gallery",
		UID:        5001,
		AuthorName: "Example",
		Privileges: []string{"http://tizen.org/privilege/internet", "http://tizen.org/privilege/camera"},
		Paths:      []protocol.AppPath{{Path: "/opt/gallery/data", Type: protocol.PathRW}},
	})
	if installed.AuthorID == NoAuthor {
		t.Error("author not recorded")
	}

	pkgID, err := db.AppPackage(ctx, "Gallery")
	if err != nil || pkgID != "gallery" {
		t.Errorf("AppPackage = %q, %v", pkgID, err)
	}
	if _, err := db.AppPackage(ctx, "Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AppPackage(Missing) = %v, want ErrNotFound", err)
	}

	privileges, err := db.AppPrivileges(ctx, "Gallery", 5001)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"http://tizen.org/privilege/camera", "http://tizen.org/privilege/internet"}
	if !reflect.DeepEqual(privileges, want) {
		t.Errorf("privileges = %q, want %q", privileges, want)
	}

	author, err := db.PackageAuthor(ctx, "gallery")
	if err != nil || author != installed.AuthorID {
		t.Errorf("PackageAuthor = %d, %v; want %d", author, err, installed.AuthorID)
	}

	paths, err := db.AppPaths(ctx, "Gallery")
	if err != nil || len(paths) != 1 || paths[0].Path != "/opt/gallery/data" {
		t.Errorf("AppPaths = %+v, %v", paths, err)
	}

	ok, err := db.InstalledFor(ctx, "Gallery", 5002, 5001)
	if err != nil || !ok {
		t.Errorf("InstalledFor = %v, %v", ok, err)
	}
	ok, _ = db.InstalledFor(ctx, "Gallery", 5002)
	if ok {
		t.Error("installed for an unrelated user")
	}
}

func TestAddApplicationPackageMismatch(t *testing.T) {
	db := openTestDB(t)
	mustInstall(t, db, Install{AppID: "A", PkgID: "p", UID: 5001})

	_, err := db.AddApplication(context.Background(), Install{AppID: "A", PkgID: "q", UID: 5001})
	if !errors.Is(err, ErrPackageMismatch) {
		t.Fatalf("AddApplication = %v, want ErrPackageMismatch", err)
	}
	packages, _ := db.Packages(context.Background())
	if len(packages) != 1 {
		t.Errorf("failed install left packages %+v", packages)
	}
}

func TestRemoveApplicationCascade(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	first := mustInstall(t, db, Install{AppID: "A", PkgID: "p", UID: 5001, AuthorName: "Example"})
	mustInstall(t, db, Install{AppID: "A", PkgID: "p", UID: 5002})
	mustInstall(t, db, Install{AppID: "B", PkgID: "p", UID: 5001})

	removal, err := db.RemoveApplication(ctx, "A", 5001)
	if err != nil {
		t.Fatal(err)
	}
	if removal.AppRemoved {
		t.Error("app removed while still installed for 5002")
	}

	removal, err = db.RemoveApplication(ctx, "A", 5002)
	if err != nil {
		t.Fatal(err)
	}
	if !removal.AppRemoved || removal.PkgRemoved {
		t.Errorf("removal = %+v, want app removed and package kept", removal)
	}

	removal, err = db.RemoveApplication(ctx, "B", 5001)
	if err != nil {
		t.Fatal(err)
	}
	want := Removal{PkgID: "p", AuthorID: first.AuthorID, AppRemoved: true, PkgRemoved: true, AuthorRemoved: true}
	if removal != want {
		t.Errorf("removal = %+v, want %+v", removal, want)
	}

	if _, err := db.RemoveApplication(ctx, "B", 5001); !errors.Is(err, ErrNotFound) {
		t.Errorf("second removal = %v, want ErrNotFound", err)
	}
}

func TestPackages(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustInstall(t, db, Install{AppID: "B", PkgID: "q", UID: 1})
	mustInstall(t, db, Install{AppID: "A2", PkgID: "p", UID: 1})
	mustInstall(t, db, Install{AppID: "A1", PkgID: "p", UID: 1})
	if err := db.SetPackageSharedRO(ctx, "q"); err != nil {
		t.Fatal(err)
	}

	packages, err := db.Packages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []Package{
		{ID: "p", Apps: []string{"A1", "A2"}},
		{ID: "q", SharedRO: true, Apps: []string{"B"}},
	}
	if !reflect.DeepEqual(packages, want) {
		t.Errorf("Packages = %+v, want %+v", packages, want)
	}

	apps, err := db.PackageApps(ctx, "p")
	if err != nil || !reflect.DeepEqual(apps, []string{"A1", "A2"}) {
		t.Errorf("PackageApps = %q, %v", apps, err)
	}
	userApps, err := db.UserApps(ctx, 1)
	if err != nil || !reflect.DeepEqual(userApps, []string{"A1", "A2", "B"}) {
		t.Errorf("UserApps = %q, %v", userApps, err)
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := db.AddUser(ctx, 5001, protocol.UserNormal); err != nil {
		t.Fatal(err)
	}
	userType, err := db.UserType(ctx, 5001)
	if err != nil || userType != protocol.UserNormal {
		t.Errorf("UserType = %v, %v", userType, err)
	}
	if err := db.RemoveUser(ctx, 5001); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UserType(ctx, 5001); !errors.Is(err, ErrNotFound) {
		t.Errorf("UserType after removal = %v, want ErrNotFound", err)
	}
}

func TestPolicyLevels(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	err := db.SetPolicy(ctx, []PolicyRecord{
		{UID: AnyUID, AppID: Wildcard, Privilege: "camera", Bucket: BucketAdmin, Level: "Ask user"},
		{UID: 5001, AppID: "Gallery", Privilege: "camera", Bucket: BucketAdmin, Level: "Deny"},
		{UID: 5001, AppID: "Gallery", Privilege: "camera", Bucket: BucketSelf, Level: "Allow"},
	})
	if err != nil {
		t.Fatal(err)
	}

	levels, err := db.Levels(ctx, 5001, "Gallery", "camera")
	if err != nil {
		t.Fatal(err)
	}
	want := map[Bucket]string{BucketAdmin: "Deny", BucketSelf: "Allow"}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("Levels = %v, want %v", levels, want)
	}

	levels, _ = db.Levels(ctx, 5002, "Viewer", "camera")
	if !reflect.DeepEqual(levels, map[Bucket]string{BucketAdmin: "Ask user"}) {
		t.Errorf("wildcard Levels = %v", levels)
	}

	admin, err := db.Policy(ctx, BucketAdmin)
	if err != nil || len(admin) != 2 {
		t.Errorf("Policy(admin) = %+v, %v", admin, err)
	}
}

func TestSharing(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustInstall(t, db, Install{AppID: "Owner1", PkgID: "owner", UID: 1})
	mustInstall(t, db, Install{AppID: "Owner2", PkgID: "owner", UID: 1})
	mustInstall(t, db, Install{AppID: "Target", PkgID: "target", UID: 1})

	shared, _ := db.PathShared(ctx, "/data/a")
	if shared {
		t.Error("path shared before any share")
	}

	if count, err := db.ApplySharing(ctx, "Owner1", "Target", "/data/a", "L"); err != nil || count != 1 {
		t.Fatalf("ApplySharing = %d, %v", count, err)
	}
	if count, _ := db.ApplySharing(ctx, "Owner1", "Target", "/data/a", "L"); count != 2 {
		t.Errorf("second ApplySharing count = %d, want 2", count)
	}

	// Sharing is tracked per owner package, not per owner application.
	sharing, err := db.TargetSharing(ctx, "owner", "Target")
	if err != nil || !sharing {
		t.Errorf("TargetSharing = %v, %v", sharing, err)
	}

	if count, _ := db.DropSharing(ctx, "Owner1", "Target", "/data/a"); count != 1 {
		t.Errorf("DropSharing count = %d, want 1", count)
	}
	if count, _ := db.DropSharing(ctx, "Owner1", "Target", "/data/a"); count != 0 {
		t.Errorf("DropSharing count = %d, want 0", count)
	}
	if _, err := db.DropSharing(ctx, "Owner1", "Target", "/data/a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DropSharing of absent share = %v, want ErrNotFound", err)
	}
	shared, _ = db.PathShared(ctx, "/data/a")
	sharing, _ = db.TargetSharing(ctx, "owner", "Target")
	if shared || sharing {
		t.Errorf("after drops shared=%v sharing=%v", shared, sharing)
	}
}

func TestSharesRemovedWithApplication(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mustInstall(t, db, Install{AppID: "Owner", PkgID: "owner", UID: 1})
	mustInstall(t, db, Install{AppID: "Target", PkgID: "target", UID: 1})
	if _, err := db.ApplySharing(ctx, "Owner", "Target", "/data/a", "L"); err != nil {
		t.Fatal(err)
	}

	shares, err := db.AppShares(ctx, "Target")
	if err != nil || len(shares) != 1 || shares[0].OwnerAppID != "Owner" {
		t.Fatalf("AppShares = %+v, %v", shares, err)
	}

	if _, err := db.RemoveApplication(ctx, "Target", 1); err != nil {
		t.Fatal(err)
	}
	shares, _ = db.AppShares(ctx, "Owner")
	if len(shares) != 0 {
		t.Errorf("shares survived target removal: %+v", shares)
	}
}

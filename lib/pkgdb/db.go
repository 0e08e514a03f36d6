// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pkgdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/secmgr/lib/protocol"
	"github.com/bureau-foundation/secmgr/lib/sqlitepool"
)

var (
	// ErrNotFound is returned when a queried application, package,
	// user, or share does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPackageMismatch is returned when an install names a package
	// other than the one the application already belongs to.
	ErrPackageMismatch = errors.New("application belongs to another package")
)

// NoAuthor is the author id of packages installed without an author.
const NoAuthor = -1

// DB is the package database. It is safe for concurrent use.
type DB struct {
	pool *sqlitepool.Pool
}

// Open opens or creates the database at path.
func Open(path string, logger *slog.Logger) (*DB, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, err
	}
	return &DB{pool: pool}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.pool.Close()
}

// Install is the record of one application installation.
type Install struct {
	AppID      string
	PkgID      string
	UID        int
	AuthorName string
	Privileges []string
	Paths      []protocol.AppPath
}

// Installed reports what AddApplication recorded.
type Installed struct {
	// AuthorID is the package author, or NoAuthor.
	AuthorID int
}

// AddApplication records an installation. Reinstalling replaces the
// privileges of the application for the user and its registered paths.
func (db *DB) AddApplication(ctx context.Context, install Install) (Installed, error) {
	result := Installed{AuthorID: NoAuthor}
	err := db.pool.Write(ctx, func(conn *sqlite.Conn) error {
		if install.AuthorName != "" {
			err := exec(conn, "INSERT OR IGNORE INTO author (name) VALUES (?)", install.AuthorName)
			if err != nil {
				return err
			}
			result.AuthorID, err = queryInt(conn, "SELECT author_id FROM author WHERE name = ?", install.AuthorName)
			if err != nil {
				return err
			}
		}

		pkgRowID, pkgAuthor, err := ensurePackage(conn, install.PkgID, result.AuthorID)
		if err != nil {
			return err
		}
		if pkgAuthor != NoAuthor {
			result.AuthorID = pkgAuthor
		}

		appRowID, err := ensureApp(conn, install.AppID, install.PkgID, pkgRowID)
		if err != nil {
			return err
		}

		if err := exec(conn, "INSERT OR IGNORE INTO user_app (app_id, uid) VALUES (?, ?)", appRowID, install.UID); err != nil {
			return err
		}
		if err := exec(conn, "DELETE FROM app_privilege WHERE app_id = ? AND uid = ?", appRowID, install.UID); err != nil {
			return err
		}
		for _, privilege := range install.Privileges {
			err := exec(conn, "INSERT OR IGNORE INTO app_privilege (app_id, uid, privilege) VALUES (?, ?, ?)",
				appRowID, install.UID, privilege)
			if err != nil {
				return err
			}
		}
		if len(install.Paths) > 0 {
			if err := exec(conn, "DELETE FROM app_path WHERE app_id = ?", appRowID); err != nil {
				return err
			}
			for _, path := range install.Paths {
				err := exec(conn, "INSERT OR REPLACE INTO app_path (app_id, path, type) VALUES (?, ?, ?)",
					appRowID, path.Path, int(path.Type))
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return Installed{}, fmt.Errorf("recording %s in %s: %w", install.AppID, install.PkgID, err)
	}
	return result, nil
}

// ensurePackage returns the row id and author of pkgID, creating the
// package with authorID if it is new. A package created without an
// author adopts the first author it is installed with.
func ensurePackage(conn *sqlite.Conn, pkgID string, authorID int) (rowID int64, author int, err error) {
	found := false
	err = sqlitex.Execute(conn, "SELECT pkg_id, ifnull(author_id, -1) FROM pkg WHERE name = ?", &sqlitex.ExecOptions{
		Args: []any{pkgID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			rowID = stmt.ColumnInt64(0)
			author = stmt.ColumnInt(1)
			return nil
		},
	})
	if err != nil {
		return 0, 0, err
	}
	if found {
		if author == NoAuthor && authorID != NoAuthor {
			if err := exec(conn, "UPDATE pkg SET author_id = ? WHERE pkg_id = ?", authorID, rowID); err != nil {
				return 0, 0, err
			}
			author = authorID
		}
		return rowID, author, nil
	}
	if err := exec(conn, "INSERT INTO pkg (name, author_id) VALUES (?, ?)", pkgID, nullableAuthor(authorID)); err != nil {
		return 0, 0, err
	}
	return conn.LastInsertRowID(), authorID, nil
}

func ensureApp(conn *sqlite.Conn, appID, pkgID string, pkgRowID int64) (int64, error) {
	var rowID, appPkg int64
	found := false
	err := sqlitex.Execute(conn, "SELECT app_id, pkg_id FROM app WHERE name = ?", &sqlitex.ExecOptions{
		Args: []any{appID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			rowID = stmt.ColumnInt64(0)
			appPkg = stmt.ColumnInt64(1)
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	if found {
		if appPkg != pkgRowID {
			return 0, fmt.Errorf("%w: %s is not in %s", ErrPackageMismatch, appID, pkgID)
		}
		return rowID, nil
	}
	if err := exec(conn, "INSERT INTO app (name, pkg_id) VALUES (?, ?)", appID, pkgRowID); err != nil {
		return 0, err
	}
	return conn.LastInsertRowID(), nil
}

// Removal reports what RemoveApplication deleted.
type Removal struct {
	PkgID    string
	AuthorID int
	SharedRO bool

	// AppRemoved is set when no user has the application installed
	// any more and it was deleted with its paths and shares.
	AppRemoved bool

	// PkgRemoved is set when the package lost its last application.
	PkgRemoved bool

	// AuthorRemoved is set when the author lost its last package.
	AuthorRemoved bool
}

// RemoveApplication records that uid uninstalled appID. It returns
// ErrNotFound if the application is not installed for uid.
func (db *DB) RemoveApplication(ctx context.Context, appID string, uid int) (Removal, error) {
	var removal Removal
	err := db.pool.Write(ctx, func(conn *sqlite.Conn) error {
		var appRowID, pkgRowID int64
		found := false
		err := sqlitex.Execute(conn, `
			SELECT app.app_id, pkg.pkg_id, pkg.name, ifnull(pkg.author_id, -1), pkg.shared_ro
			FROM app JOIN pkg ON app.pkg_id = pkg.pkg_id
			JOIN user_app ON user_app.app_id = app.app_id
			WHERE app.name = ? AND user_app.uid = ?`, &sqlitex.ExecOptions{
			Args: []any{appID, uid},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				appRowID = stmt.ColumnInt64(0)
				pkgRowID = stmt.ColumnInt64(1)
				removal.PkgID = stmt.ColumnText(2)
				removal.AuthorID = stmt.ColumnInt(3)
				removal.SharedRO = stmt.ColumnBool(4)
				return nil
			},
		})
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s for uid %d", ErrNotFound, appID, uid)
		}

		if err := exec(conn, "DELETE FROM user_app WHERE app_id = ? AND uid = ?", appRowID, uid); err != nil {
			return err
		}
		if err := exec(conn, "DELETE FROM app_privilege WHERE app_id = ? AND uid = ?", appRowID, uid); err != nil {
			return err
		}
		users, err := queryInt(conn, "SELECT count(*) FROM user_app WHERE app_id = ?", appRowID)
		if err != nil {
			return err
		}
		if users > 0 {
			return nil
		}

		if err := exec(conn, "DELETE FROM app WHERE app_id = ?", appRowID); err != nil {
			return err
		}
		removal.AppRemoved = true

		apps, err := queryInt(conn, "SELECT count(*) FROM app WHERE pkg_id = ?", pkgRowID)
		if err != nil {
			return err
		}
		if apps > 0 {
			return nil
		}
		if err := exec(conn, "DELETE FROM pkg WHERE pkg_id = ?", pkgRowID); err != nil {
			return err
		}
		removal.PkgRemoved = true

		if removal.AuthorID == NoAuthor {
			return nil
		}
		pkgs, err := queryInt(conn, "SELECT count(*) FROM pkg WHERE author_id = ?", removal.AuthorID)
		if err != nil {
			return err
		}
		if pkgs > 0 {
			return nil
		}
		if err := exec(conn, "DELETE FROM author WHERE author_id = ?", removal.AuthorID); err != nil {
			return err
		}
		removal.AuthorRemoved = true
		return nil
	})
	if err != nil {
		return Removal{}, fmt.Errorf("removing %s: %w", appID, err)
	}
	return removal, nil
}

// AppPackage returns the package of appID.
func (db *DB) AppPackage(ctx context.Context, appID string) (string, error) {
	var pkgID string
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		pkgID, err = queryText(conn, "SELECT pkg.name FROM app JOIN pkg ON app.pkg_id = pkg.pkg_id WHERE app.name = ?", appID)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("package of %s: %w", appID, err)
	}
	return pkgID, nil
}

// InstalledFor reports whether appID is installed for any of uids.
func (db *DB) InstalledFor(ctx context.Context, appID string, uids ...int) (bool, error) {
	installed := false
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		for _, uid := range uids {
			count, err := queryInt(conn, `
				SELECT count(*) FROM user_app JOIN app ON user_app.app_id = app.app_id
				WHERE app.name = ? AND user_app.uid = ?`, appID, uid)
			if err != nil {
				return err
			}
			if count > 0 {
				installed = true
				return nil
			}
		}
		return nil
	})
	return installed, err
}

// PackageApps returns the applications of pkgID, by name.
func (db *DB) PackageApps(ctx context.Context, pkgID string) ([]string, error) {
	var apps []string
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		apps, err = queryTexts(conn, `
			SELECT app.name FROM app JOIN pkg ON app.pkg_id = pkg.pkg_id
			WHERE pkg.name = ? ORDER BY app.name`, pkgID)
		return err
	})
	return apps, err
}

// PackageAuthor returns the author id of pkgID, or NoAuthor.
func (db *DB) PackageAuthor(ctx context.Context, pkgID string) (int, error) {
	var author int
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		author, err = queryInt(conn, "SELECT ifnull(author_id, -1) FROM pkg WHERE name = ?", pkgID)
		return err
	})
	if err != nil {
		return NoAuthor, fmt.Errorf("author of %s: %w", pkgID, err)
	}
	return author, nil
}

// Package is an installed package with its applications.
type Package struct {
	ID       string
	SharedRO bool
	Apps     []string
}

// Packages returns every installed package, by name.
func (db *DB) Packages(ctx context.Context) ([]Package, error) {
	var packages []Package
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		index := make(map[string]int)
		err := sqlitex.Execute(conn, "SELECT name, shared_ro FROM pkg ORDER BY name", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				index[stmt.ColumnText(0)] = len(packages)
				packages = append(packages, Package{ID: stmt.ColumnText(0), SharedRO: stmt.ColumnBool(1)})
				return nil
			},
		})
		if err != nil {
			return err
		}
		return sqlitex.Execute(conn, `
			SELECT pkg.name, app.name FROM app JOIN pkg ON app.pkg_id = pkg.pkg_id
			ORDER BY pkg.name, app.name`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if i, ok := index[stmt.ColumnText(0)]; ok {
					packages[i].Apps = append(packages[i].Apps, stmt.ColumnText(1))
				}
				return nil
			},
		})
	})
	return packages, err
}

// SetPackageSharedRO marks pkgID as owning shared read-only paths.
func (db *DB) SetPackageSharedRO(ctx context.Context, pkgID string) error {
	return db.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return exec(conn, "UPDATE pkg SET shared_ro = 1 WHERE name = ?", pkgID)
	})
}

// AppPrivileges returns the privileges appID was installed with for
// any of uids, deduplicated and sorted.
func (db *DB) AppPrivileges(ctx context.Context, appID string, uids ...int) ([]string, error) {
	var privileges []string
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		seen := make(map[string]bool)
		for _, uid := range uids {
			values, err := queryTexts(conn, `
				SELECT privilege FROM app_privilege JOIN app ON app_privilege.app_id = app.app_id
				WHERE app.name = ? AND app_privilege.uid = ? ORDER BY privilege`, appID, uid)
			if err != nil {
				return err
			}
			for _, value := range values {
				if !seen[value] {
					seen[value] = true
					privileges = append(privileges, value)
				}
			}
		}
		return nil
	})
	sortStrings(privileges)
	return privileges, err
}

// AppPaths returns the paths registered by appID.
func (db *DB) AppPaths(ctx context.Context, appID string) ([]protocol.AppPath, error) {
	var paths []protocol.AppPath
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT path, type FROM app_path JOIN app ON app_path.app_id = app.app_id
			WHERE app.name = ? ORDER BY path`, &sqlitex.ExecOptions{
			Args: []any{appID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				paths = append(paths, protocol.AppPath{Path: stmt.ColumnText(0), Type: protocol.PathType(stmt.ColumnInt(1))})
				return nil
			},
		})
	})
	return paths, err
}

// UserApps returns the applications installed for uid, by name.
func (db *DB) UserApps(ctx context.Context, uid int) ([]string, error) {
	var apps []string
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		apps, err = queryTexts(conn, `
			SELECT app.name FROM app JOIN user_app ON user_app.app_id = app.app_id
			WHERE user_app.uid = ? ORDER BY app.name`, uid)
		return err
	})
	return apps, err
}

func nullableAuthor(authorID int) any {
	if authorID == NoAuthor {
		return nil
	}
	return authorID
}
